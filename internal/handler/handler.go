package handler

import (
	"errors"
	"strconv"

	"petmaster/internal/config"
	"petmaster/internal/gateway"
	"petmaster/internal/model"
	"petmaster/internal/repository"
	"petmaster/internal/service"
	"petmaster/pkg/money"
	"petmaster/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Handler 统一处理器，包含所有服务依赖
type Handler struct {
	logger         *zap.Logger
	verifier       *gateway.NotifyVerifier
	paymentService *service.PaymentService
	cardService    *service.CardService
	pointsService  *service.PointsService
	settlement     *service.SettlementService
}

// NewHandler 创建处理器实例
func NewHandler(db *gorm.DB, rdb *redis.Client, cfg *config.Config, gw gateway.TradeGateway, verifier *gateway.NotifyVerifier, logger *zap.Logger) *Handler {
	settlement := service.NewSettlementService(db, cfg, logger)
	return &Handler{
		logger:         logger,
		verifier:       verifier,
		settlement:     settlement,
		paymentService: service.NewPaymentService(db, rdb, cfg, gw, settlement, logger),
		cardService:    service.NewCardService(db, logger),
		pointsService:  service.NewPointsService(db),
	}
}

// ============================================================
// 支付相关接口
// ============================================================

// CreatePaymentRequest 创建支付请求
type CreatePaymentRequest struct {
	UserID      int64  `json:"user_id" binding:"required"`
	Amount      string `json:"amount" binding:"required"`       // 元，最多两位小数
	RelatedType string `json:"related_type" binding:"required"` // product / appointment / member_card_recharge
	RelatedID   int64  `json:"related_id" binding:"required"`
	Subject     string `json:"subject" binding:"required"`
}

// CreatePayment 创建支付意向
// POST /api/v1/payment/create
func (h *Handler) CreatePayment(c *gin.Context) {
	var req CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	amount, err := money.YuanToFen(req.Amount)
	if err != nil {
		response.BusinessError(c, response.CodeInvalidAmount, "金额格式错误: "+req.Amount)
		return
	}

	resp, err := h.paymentService.CreatePayment(c.Request.Context(), &service.CreatePaymentRequest{
		UserID:      req.UserID,
		Amount:      amount,
		RelatedType: req.RelatedType,
		RelatedID:   req.RelatedID,
		Subject:     req.Subject,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidAmount):
			response.BusinessError(c, response.CodeInvalidAmount, err.Error())
		case errors.Is(err, service.ErrInvalidRelatedType):
			response.ParamError(c, err.Error())
		default:
			response.ServerError(c, err.Error())
		}
		return
	}

	response.Success(c, resp)
}

// PollPaymentStatus 查询支付状态（主动对账路径）
// GET /api/v1/payment/status?order_no=xxx
//
// 异步通知不保证送达，本接口向网关查询最新交易状态，
// 并与通知路径走同一个结算引擎，随后返回订单当前状态。
func (h *Handler) PollPaymentStatus(c *gin.Context) {
	orderNo := c.Query("order_no")
	if orderNo == "" {
		response.ParamError(c, "order_no 参数不能为空")
		return
	}

	order, err := h.paymentService.Poll(c.Request.Context(), orderNo)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrOrderNotFound):
			response.BusinessError(c, response.CodeOrderNotFound, "订单不存在")
		case errors.Is(err, service.ErrAmountMismatch):
			response.BusinessError(c, response.CodeAmountMismatch, "交易金额与订单不一致，已拒绝处理")
		default:
			response.ServerError(c, err.Error())
		}
		return
	}

	response.Success(c, gin.H{
		"order_no": order.OrderNo,
		"status":   order.Status,
		"amount":   money.FenToYuan(order.Amount),
		"paid_at":  order.PaidAt,
	})
}

// GetPayment 查询支付订单详情（只读，不触发对账）
// GET /api/v1/payment/detail?order_no=xxx
func (h *Handler) GetPayment(c *gin.Context) {
	orderNo := c.Query("order_no")
	if orderNo == "" {
		response.ParamError(c, "order_no 参数不能为空")
		return
	}

	order, err := h.paymentService.GetOrder(c.Request.Context(), orderNo)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			response.BusinessError(c, response.CodeOrderNotFound, "订单不存在")
			return
		}
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, order)
}

// ListPayments 查询用户支付订单列表
// GET /api/v1/payment/list?user_id=xxx&page=1&page_size=10
func (h *Handler) ListPayments(c *gin.Context) {
	userIDStr := c.Query("user_id")
	userID, err := strconv.ParseInt(userIDStr, 10, 64)
	if err != nil {
		response.ParamError(c, "user_id 参数错误")
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))

	orders, total, err := h.paymentService.ListUserOrders(c.Request.Context(), userID, page, pageSize)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, gin.H{
		"list":      orders,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// AlipayNotify 支付宝异步通知
// POST /api/v1/payment/alipay/notify
//
// 【关键点】响应约定：只有结算已持久化（或确认早已结算）才返回
// 纯文本 success，其余一律返回 fail，网关会持续重试投递——
// 这正是结算必须幂等的原因。验签失败的通知不产生任何状态变更，
// 仅记录审计日志。
func (h *Handler) AlipayNotify(c *gin.Context) {
	if err := c.Request.ParseForm(); err != nil {
		c.String(200, "fail")
		return
	}

	notification, err := h.verifier.Verify(c.Request.PostForm)
	if err != nil {
		// 审计记录，不做任何状态变更
		h.logger.Warn("异步通知验签失败，已拒绝",
			zap.String("remote_addr", c.ClientIP()),
			zap.String("out_trade_no", c.Request.PostForm.Get("out_trade_no")),
			zap.Error(err),
		)
		c.String(200, "fail")
		return
	}

	_, err = h.settlement.Settle(
		c.Request.Context(),
		notification.OutTradeNo,
		notification.TradeStatus,
		notification.TradeNo,
		notification.TotalAmount,
	)
	if err != nil {
		h.logger.Warn("异步通知结算失败",
			zap.String("out_trade_no", notification.OutTradeNo),
			zap.Error(err),
		)
		c.String(200, "fail")
		return
	}

	c.String(200, "success")
}

// ============================================================
// 会员卡相关接口
// ============================================================

// OpenCard 开通会员卡
// POST /api/v1/card/open
func (h *Handler) OpenCard(c *gin.Context) {
	var req struct {
		UserID int64 `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	card, err := h.cardService.OpenCard(c.Request.Context(), req.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrCardExists) {
			response.BusinessError(c, response.CodeCardExists, "用户已有会员卡")
			return
		}
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, card)
}

// GetCard 查询会员卡
// GET /api/v1/card/detail?card_id=xxx 或 ?user_id=xxx
func (h *Handler) GetCard(c *gin.Context) {
	if cardIDStr := c.Query("card_id"); cardIDStr != "" {
		cardID, err := strconv.ParseInt(cardIDStr, 10, 64)
		if err != nil {
			response.ParamError(c, "card_id 参数错误")
			return
		}
		h.respondCard(c, cardID, 0)
		return
	}

	userIDStr := c.Query("user_id")
	userID, err := strconv.ParseInt(userIDStr, 10, 64)
	if err != nil {
		response.ParamError(c, "card_id 或 user_id 参数必填其一")
		return
	}
	h.respondCard(c, 0, userID)
}

func (h *Handler) respondCard(c *gin.Context, cardID, userID int64) {
	var (
		card *model.MemberCard
		err  error
	)
	if cardID != 0 {
		card, err = h.cardService.GetCard(c.Request.Context(), cardID)
	} else {
		card, err = h.cardService.GetCardByUser(c.Request.Context(), userID)
	}
	if err != nil {
		if errors.Is(err, repository.ErrCardNotFound) {
			response.BusinessError(c, response.CodeCardNotFound, "会员卡不存在")
			return
		}
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, card)
}

// ListRechargeRecords 查询充值记录
// GET /api/v1/card/recharge_records?card_id=xxx
func (h *Handler) ListRechargeRecords(c *gin.Context) {
	cardIDStr := c.Query("card_id")
	cardID, err := strconv.ParseInt(cardIDStr, 10, 64)
	if err != nil {
		response.ParamError(c, "card_id 参数错误")
		return
	}

	records, err := h.cardService.ListRechargeRecords(c.Request.Context(), cardID)
	if err != nil {
		if errors.Is(err, repository.ErrCardNotFound) {
			response.BusinessError(c, response.CodeCardNotFound, "会员卡不存在")
			return
		}
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, gin.H{"list": records})
}

// DebitCard 会员卡消费
// POST /api/v1/card/debit
func (h *Handler) DebitCard(c *gin.Context) {
	var req struct {
		CardID int64  `json:"card_id" binding:"required"`
		Amount string `json:"amount" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	amount, err := money.YuanToFen(req.Amount)
	if err != nil {
		response.BusinessError(c, response.CodeInvalidAmount, "金额格式错误: "+req.Amount)
		return
	}

	if err := h.cardService.Debit(c.Request.Context(), req.CardID, amount); err != nil {
		switch {
		case errors.Is(err, repository.ErrCardNotFound):
			response.BusinessError(c, response.CodeCardNotFound, "会员卡不存在")
		case errors.Is(err, repository.ErrBalanceNotEnough):
			response.BusinessError(c, response.CodeBalanceNotEnough, "会员卡余额不足")
		case errors.Is(err, service.ErrInvalidAmount):
			response.BusinessError(c, response.CodeInvalidAmount, err.Error())
		default:
			response.ServerError(c, err.Error())
		}
		return
	}

	response.Success(c, gin.H{"message": "消费成功"})
}

// RetireCard 会员卡销户
// POST /api/v1/card/retire
func (h *Handler) RetireCard(c *gin.Context) {
	var req struct {
		CardID int64 `json:"card_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.cardService.Retire(c.Request.Context(), req.CardID); err != nil {
		switch {
		case errors.Is(err, repository.ErrCardNotFound):
			response.BusinessError(c, response.CodeCardNotFound, "会员卡不存在")
		case errors.Is(err, repository.ErrNonZeroBalance):
			response.BusinessError(c, response.CodeNonZeroBalance, err.Error())
		default:
			response.ServerError(c, err.Error())
		}
		return
	}

	response.Success(c, gin.H{"message": "会员卡已销户"})
}

// ============================================================
// 积分相关接口
// ============================================================

// ListPointRecords 查询积分明细
// GET /api/v1/points/records?user_id=xxx&page=1&page_size=10
func (h *Handler) ListPointRecords(c *gin.Context) {
	userIDStr := c.Query("user_id")
	userID, err := strconv.ParseInt(userIDStr, 10, 64)
	if err != nil {
		response.ParamError(c, "user_id 参数错误")
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))

	records, total, err := h.pointsService.ListUserRecords(c.Request.Context(), userID, page, pageSize)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, gin.H{
		"list":      records,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}
