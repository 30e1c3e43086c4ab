package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"petmaster/internal/config"
	"petmaster/internal/gateway"
	"petmaster/internal/model"
	"petmaster/internal/repository"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrAmountMismatch 通知金额与订单金额不一致
	// 需按疑似欺诈/集成缺陷处理：高等级告警，绝不发生任何状态变更
	ErrAmountMismatch = errors.New("通知金额与订单金额不一致")
)

// errAlreadySettled 并发结算中竞争失败方的内部信号，事务回滚用，不对外暴露
var errAlreadySettled = errors.New("订单已由并发调用方结算")

// SettlementService 结算引擎
//
// 推送通知与主动查询两条路径都汇入 Settle，这是订单进入 PAID/FAILED
// 终态以及资金入账的唯一入口。
//
// 【关键点】结算必须保证：
// 1. 幂等性：同一订单的成功结果无论送达多少次，资金只入账一次
// 2. 原子性：订单置 PAID、余额入账/积分发放、结算事件落库同一事务
// 3. 并发安全：同一订单的并发结算通过订单行上的 compare-and-set
//    更新串行化，恰好一方胜出，其余走幂等路径；不同订单互不阻塞
type SettlementService struct {
	db         *gorm.DB
	cfg        *config.Config
	logger     *zap.Logger
	orderRepo  *repository.OrderRepository
	cardRepo   *repository.CardRepository
	pointsRepo *repository.PointsRepository
	outboxRepo *repository.OutboxRepository
}

func NewSettlementService(db *gorm.DB, cfg *config.Config, logger *zap.Logger) *SettlementService {
	return &SettlementService{
		db:         db,
		cfg:        cfg,
		logger:     logger,
		orderRepo:  repository.NewOrderRepository(db),
		cardRepo:   repository.NewCardRepository(db),
		pointsRepo: repository.NewPointsRepository(db),
		outboxRepo: repository.NewOutboxRepository(db),
	}
}

// Settle 对一次观察到的交易结果进行结算
//
// observedStatus 为网关交易状态（TRADE_SUCCESS 等），observedAmount 单位为分。
// 重复送达与并发竞争不是错误：这些调用收敛到已有终态并正常返回。
func (s *SettlementService) Settle(ctx context.Context, orderNo string, observedStatus string, gatewayTradeNo string, observedAmount int64) (*model.PaymentOrder, error) {
	order, err := s.orderRepo.GetByOrderNo(ctx, orderNo)
	if err != nil {
		return nil, err
	}

	// 金额校验先于一切状态变更
	if observedAmount != order.Amount {
		s.logger.Error("结算金额与订单金额不一致，疑似欺诈或集成缺陷",
			zap.String("order_no", orderNo),
			zap.Int64("order_amount", order.Amount),
			zap.Int64("observed_amount", observedAmount),
			zap.String("gateway_trade_no", gatewayTradeNo),
		)
		return nil, ErrAmountMismatch
	}

	// 已支付：幂等空操作
	if order.Status == model.OrderStatusPaid {
		return order, nil
	}

	switch {
	case gateway.IsSuccessStatus(observedStatus):
		return s.settleSuccess(ctx, order, gatewayTradeNo)
	case gateway.IsFailureStatus(observedStatus):
		return s.settleFailure(ctx, order)
	default:
		// WAIT_BUYER_PAY 等中间态，不做任何变更
		return order, nil
	}
}

func (s *SettlementService) settleSuccess(ctx context.Context, order *model.PaymentOrder, gatewayTradeNo string) (*model.PaymentOrder, error) {
	// 已失败的订单不允许被晚到的成功通知复活
	if order.Status == model.OrderStatusFailed {
		return order, nil
	}

	fromStatuses := []string{model.OrderStatusCreated, model.OrderStatusPending}
	if order.Status == model.OrderStatusClosed {
		if !s.cfg.Business.AllowLateSuccess {
			s.flagLateSuccess(ctx, order, gatewayTradeNo)
			return order, nil
		}
		fromStatuses = []string{model.OrderStatusClosed}
	}

	paidAt := time.Now()

	err := s.db.Transaction(func(tx *gorm.DB) error {
		won, err := s.orderRepo.MarkPaid(ctx, tx, order.OrderNo, gatewayTradeNo, paidAt, fromStatuses)
		if err != nil {
			return fmt.Errorf("更新订单状态失败: %w", err)
		}
		if !won {
			return errAlreadySettled
		}

		if err := s.applyFinancialEffect(ctx, tx, order, gatewayTradeNo); err != nil {
			return err
		}

		return s.enqueueSettledEvent(ctx, tx, order, gatewayTradeNo, paidAt)
	})

	if err != nil && !errors.Is(err, errAlreadySettled) {
		return nil, err
	}

	if err == nil {
		s.logger.Info("订单结算成功",
			zap.String("order_no", order.OrderNo),
			zap.String("gateway_trade_no", gatewayTradeNo),
			zap.Int64("amount", order.Amount),
			zap.String("related_type", order.RelatedType),
		)
	}

	// 竞争失败方与胜出方统一返回最新订单状态
	return s.orderRepo.GetByOrderNo(ctx, order.OrderNo)
}

func (s *SettlementService) settleFailure(ctx context.Context, order *model.PaymentOrder) (*model.PaymentOrder, error) {
	if model.IsTerminalStatus(order.Status) {
		return order, nil
	}

	won, err := s.orderRepo.MarkFailed(ctx, nil, order.OrderNo)
	if err != nil {
		return nil, fmt.Errorf("更新订单状态失败: %w", err)
	}

	if won {
		s.logger.Info("订单结算为失败", zap.String("order_no", order.OrderNo))
	}

	return s.orderRepo.GetByOrderNo(ctx, order.OrderNo)
}

// applyFinancialEffect 应用资金效果，必须与订单的 PAID 迁移同一事务提交
// 充值类订单为会员卡入账并追加充值记录，消费类订单发放积分
func (s *SettlementService) applyFinancialEffect(ctx context.Context, tx *gorm.DB, order *model.PaymentOrder, gatewayTradeNo string) error {
	switch order.RelatedType {
	case model.RelatedTypeCardRecharge:
		card, err := s.cardRepo.GetByID(ctx, tx, order.RelatedID)
		if err != nil {
			return fmt.Errorf("查询会员卡失败: %w", err)
		}

		if err := s.cardRepo.Credit(ctx, tx, card.ID, order.Amount); err != nil {
			return fmt.Errorf("会员卡入账失败: %w", err)
		}

		record := &model.CardRechargeRecord{
			MemberCardID:  card.ID,
			OrderNo:       order.OrderNo,
			TransactionNo: gatewayTradeNo,
			Amount:        order.Amount,
			BalanceBefore: card.Balance,
			BalanceAfter:  card.Balance + order.Amount,
			Remark:        "支付宝在线充值",
		}
		if err := s.cardRepo.CreateRechargeRecord(ctx, tx, record); err != nil {
			return fmt.Errorf("记录充值流水失败: %w", err)
		}

	case model.RelatedTypeProduct, model.RelatedTypeAppointment:
		// 消费积分规则：1元 = PointsPerYuan 分，不足1元部分不计
		points := int(order.Amount/100) * s.cfg.Business.PointsPerYuan
		if points <= 0 {
			return nil
		}

		record := &model.PointRecord{
			UserID:  order.UserID,
			OrderNo: order.OrderNo,
			Points:  points,
			Type:    model.PointRecordTypeEarn,
			Reason:  "消费获得积分",
		}
		if err := s.pointsRepo.Create(ctx, tx, record); err != nil {
			return fmt.Errorf("发放积分失败: %w", err)
		}

	default:
		s.logger.Warn("未知的关联业务类型，仅更新订单状态",
			zap.String("order_no", order.OrderNo),
			zap.String("related_type", order.RelatedType),
		)
	}

	return nil
}

// enqueueSettledEvent 结算事件写入发件箱，随结算事务一并提交
func (s *SettlementService) enqueueSettledEvent(ctx context.Context, tx *gorm.DB, order *model.PaymentOrder, gatewayTradeNo string, paidAt time.Time) error {
	payload := map[string]interface{}{
		"order_no":         order.OrderNo,
		"user_id":          order.UserID,
		"amount":           order.Amount,
		"related_type":     order.RelatedType,
		"related_id":       order.RelatedID,
		"gateway_trade_no": gatewayTradeNo,
		"status":           model.OrderStatusPaid,
		"paid_at":          paidAt.Format(time.RFC3339),
	}
	payloadBytes, _ := json.Marshal(payload)

	msg := &model.OutboxMessage{
		MessageKey: order.OrderNo,
		Topic:      s.cfg.Kafka.Topic.PaymentSettled,
		Payload:    string(payloadBytes),
		Status:     model.OutboxStatusPending,
	}
	if err := s.outboxRepo.Create(ctx, tx, msg); err != nil {
		return fmt.Errorf("写入结算事件失败: %w", err)
	}

	return nil
}

// flagLateSuccess 超时关单后到达的成功通知：不入账，标记待人工对账
func (s *SettlementService) flagLateSuccess(ctx context.Context, order *model.PaymentOrder, gatewayTradeNo string) {
	s.logger.Error("关单后收到成功通知，已拒绝入账，等待人工对账",
		zap.String("order_no", order.OrderNo),
		zap.String("gateway_trade_no", gatewayTradeNo),
		zap.Int64("amount", order.Amount),
	)

	payload := map[string]interface{}{
		"type":             "late_success_after_closed",
		"order_no":         order.OrderNo,
		"gateway_trade_no": gatewayTradeNo,
		"amount":           order.Amount,
		"flagged_at":       time.Now().Format(time.RFC3339),
	}
	payloadBytes, _ := json.Marshal(payload)

	msg := &model.OutboxMessage{
		MessageKey: order.OrderNo,
		Topic:      s.cfg.Kafka.Topic.PaymentAnomaly,
		Payload:    string(payloadBytes),
		Status:     model.OutboxStatusPending,
	}
	if err := s.outboxRepo.Create(ctx, nil, msg); err != nil {
		s.logger.Error("写入对账异常事件失败",
			zap.String("order_no", order.OrderNo),
			zap.Error(err),
		)
	}
}
