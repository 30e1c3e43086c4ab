package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"petmaster/internal/config"
	"petmaster/internal/gateway"
	"petmaster/internal/infrastructure/lock"
	"petmaster/internal/model"
	"petmaster/internal/repository"
	"petmaster/pkg/idgen"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrInvalidAmount      = errors.New("支付金额必须大于0")
	ErrInvalidRelatedType = errors.New("不支持的关联业务类型")
)

// PaymentService 支付订单服务：创建支付意向、查询、主动对账
type PaymentService struct {
	db          *gorm.DB
	redisClient *redis.Client
	cfg         *config.Config
	logger      *zap.Logger
	gateway     gateway.TradeGateway
	settlement  *SettlementService
	orderRepo   *repository.OrderRepository
}

func NewPaymentService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config, gw gateway.TradeGateway, settlement *SettlementService, logger *zap.Logger) *PaymentService {
	return &PaymentService{
		db:          db,
		redisClient: redisClient,
		cfg:         cfg,
		logger:      logger,
		gateway:     gw,
		settlement:  settlement,
		orderRepo:   repository.NewOrderRepository(db),
	}
}

type CreatePaymentRequest struct {
	UserID      int64
	Amount      int64 // 单位：分
	RelatedType string
	RelatedID   int64
	Subject     string
}

type CreatePaymentResponse struct {
	OrderNo string `json:"order_no"`
	Status  string `json:"status"`
	Amount  int64  `json:"amount"`
	PayURL  string `json:"pay_url"`
}

// CreatePayment 创建支付意向
// 订单先以 CREATED 落库，再向网关开单；网关受理后迁移到 PENDING。
// 网关开单失败时订单保留在 CREATED，由超时任务兜底关闭。
func (s *PaymentService) CreatePayment(ctx context.Context, req *CreatePaymentRequest) (*CreatePaymentResponse, error) {
	if req.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if !model.IsValidRelatedType(req.RelatedType) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRelatedType, req.RelatedType)
	}

	orderNo := idgen.GenerateOrderNo()
	expiredAt := time.Now().Add(time.Duration(s.cfg.Business.OrderTimeoutMinutes) * time.Minute)

	order := &model.PaymentOrder{
		OrderNo:     orderNo,
		UserID:      req.UserID,
		Amount:      req.Amount,
		RelatedType: req.RelatedType,
		RelatedID:   req.RelatedID,
		Subject:     req.Subject,
		Status:      model.OrderStatusCreated,
		ExpiredAt:   expiredAt,
	}

	if err := s.orderRepo.Create(ctx, nil, order); err != nil {
		return nil, fmt.Errorf("创建订单失败: %w", err)
	}

	payURL, err := s.gateway.CreatePagePay(ctx, order)
	if err != nil {
		s.logger.Warn("网关开单失败，订单保留待超时关闭",
			zap.String("order_no", orderNo),
			zap.Error(err),
		)
		return nil, fmt.Errorf("创建支付请求失败: %w", err)
	}

	if err := s.orderRepo.MarkPending(ctx, orderNo, ""); err != nil {
		return nil, fmt.Errorf("更新订单状态失败: %w", err)
	}

	s.logger.Info("支付意向已创建",
		zap.String("order_no", orderNo),
		zap.Int64("user_id", req.UserID),
		zap.Int64("amount", req.Amount),
		zap.String("related_type", req.RelatedType),
	)

	return &CreatePaymentResponse{
		OrderNo: orderNo,
		Status:  model.OrderStatusPending,
		Amount:  req.Amount,
		PayURL:  payURL,
	}, nil
}

func (s *PaymentService) GetOrder(ctx context.Context, orderNo string) (*model.PaymentOrder, error) {
	return s.orderRepo.GetByOrderNo(ctx, orderNo)
}

func (s *PaymentService) ListUserOrders(ctx context.Context, userID int64, page, pageSize int) ([]*model.PaymentOrder, int64, error) {
	return s.orderRepo.ListByUserID(ctx, userID, page, pageSize)
}

// Poll 主动向网关查询交易结果并走统一结算
//
// 推送通知不保证送达，本方法是兜底的活性机制：查询结果与推送路径
// 走同一个结算引擎，先到者胜出，后到者幂等返回。
// 网关查询在进入结算事务之前完成，订单行锁期间不发生网络调用；
// 同一订单的并发查询由 Redis 锁去重，避免重复打到网关。
func (s *PaymentService) Poll(ctx context.Context, orderNo string) (*model.PaymentOrder, error) {
	order, err := s.orderRepo.GetByOrderNo(ctx, orderNo)
	if err != nil {
		return nil, err
	}

	if model.IsTerminalStatus(order.Status) {
		return order, nil
	}

	pollLock := lock.NewOrderLock(s.redisClient, orderNo, uuid.NewString())
	if err := pollLock.Lock(ctx, 100*time.Millisecond, 30); err != nil {
		return nil, fmt.Errorf("系统繁忙，请稍后重试: %w", err)
	}
	defer pollLock.Unlock(ctx)

	result, err := s.gateway.QueryTrade(ctx, orderNo)
	if err != nil {
		return nil, fmt.Errorf("查询网关交易失败: %w", err)
	}

	// 网关侧尚无交易记录：订单保持原状
	if result == nil {
		return order, nil
	}

	return s.settlement.Settle(ctx, orderNo, result.TradeStatus, result.TradeNo, result.TotalAmount)
}
