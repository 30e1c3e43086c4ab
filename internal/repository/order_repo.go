package repository

import (
	"context"
	"errors"
	"time"

	"petmaster/internal/model"

	"gorm.io/gorm"
)

var (
	ErrOrderNotFound      = errors.New("订单不存在")
	ErrOrderStatusInvalid = errors.New("订单状态不合法")
)

type OrderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) Create(ctx context.Context, tx *gorm.DB, order *model.PaymentOrder) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(order).Error
}

func (r *OrderRepository) GetByOrderNo(ctx context.Context, orderNo string) (*model.PaymentOrder, error) {
	var order model.PaymentOrder
	err := r.db.WithContext(ctx).Where("order_no = ?", orderNo).First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return &order, nil
}

// MarkPending 订单迁移到 PENDING，仅允许从 CREATED 出发
// 网关交易号此时通常未知，非空时一并回填
func (r *OrderRepository) MarkPending(ctx context.Context, orderNo string, gatewayTradeNo string) error {
	updates := map[string]interface{}{
		"status": model.OrderStatusPending,
	}
	if gatewayTradeNo != "" {
		updates["gateway_trade_no"] = gatewayTradeNo
	}

	result := r.db.WithContext(ctx).
		Model(&model.PaymentOrder{}).
		Where("order_no = ? AND status = ?", orderNo, model.OrderStatusCreated).
		Updates(updates)

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrOrderStatusInvalid
	}

	return nil
}

// MarkPaid 订单入终态 PAID 的唯一入口
//
// 使用 compare-and-set 更新：同一订单的并发结算在数据库行锁上串行化，
// 只有一个调用方能命中 fromStatuses 并胜出，其余调用方 RowsAffected 为 0。
// 返回值表示本次调用是否胜出。
func (r *OrderRepository) MarkPaid(ctx context.Context, tx *gorm.DB, orderNo string, gatewayTradeNo string, paidAt time.Time, fromStatuses []string) (bool, error) {
	if tx == nil {
		tx = r.db
	}

	updates := map[string]interface{}{
		"status":  model.OrderStatusPaid,
		"paid_at": &paidAt,
	}
	if gatewayTradeNo != "" {
		updates["gateway_trade_no"] = gatewayTradeNo
	}

	result := tx.WithContext(ctx).
		Model(&model.PaymentOrder{}).
		Where("order_no = ? AND status IN ?", orderNo, fromStatuses).
		Updates(updates)

	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected > 0, nil
}

// MarkFailed 订单入终态 FAILED，仅允许从非终态出发
func (r *OrderRepository) MarkFailed(ctx context.Context, tx *gorm.DB, orderNo string) (bool, error) {
	if tx == nil {
		tx = r.db
	}

	result := tx.WithContext(ctx).
		Model(&model.PaymentOrder{}).
		Where("order_no = ? AND status IN ?", orderNo,
			[]string{model.OrderStatusCreated, model.OrderStatusPending}).
		Update("status", model.OrderStatusFailed)

	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected > 0, nil
}

// UpdateStatus 受状态机约束的通用状态迁移（超时关单使用）
func (r *OrderRepository) UpdateStatus(ctx context.Context, tx *gorm.DB, orderNo string, fromStatus, toStatus string) error {
	if !model.CanTransitionTo(fromStatus, toStatus) {
		return ErrOrderStatusInvalid
	}

	if tx == nil {
		tx = r.db
	}

	result := tx.WithContext(ctx).
		Model(&model.PaymentOrder{}).
		Where("order_no = ? AND status = ?", orderNo, fromStatus).
		Update("status", toStatus)

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrOrderStatusInvalid
	}

	return nil
}

// GetExpiredOrders 查询已过期但仍未进入终态的订单
func (r *OrderRepository) GetExpiredOrders(ctx context.Context, limit int) ([]*model.PaymentOrder, error) {
	var orders []*model.PaymentOrder
	err := r.db.WithContext(ctx).
		Where("status IN ? AND expired_at < ?",
			[]string{model.OrderStatusCreated, model.OrderStatusPending}, time.Now()).
		Limit(limit).
		Find(&orders).Error
	return orders, err
}

func (r *OrderRepository) ListByUserID(ctx context.Context, userID int64, page, pageSize int) ([]*model.PaymentOrder, int64, error) {
	var orders []*model.PaymentOrder
	var total int64

	query := r.db.WithContext(ctx).Model(&model.PaymentOrder{}).Where("user_id = ?", userID)

	err := query.Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	err = query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&orders).Error

	return orders, total, err
}
