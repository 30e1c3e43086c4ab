package model

import (
	"time"
)

const (
	OrderStatusCreated = "CREATED" // 已创建，尚未向网关开单
	OrderStatusPending = "PENDING" // 网关已受理，等待支付结果
	OrderStatusPaid    = "PAID"    // 已支付（终态）
	OrderStatusFailed  = "FAILED"  // 支付失败（终态）
	OrderStatusClosed  = "CLOSED"  // 超时关闭（终态）
)

// ValidStatusTransitions 订单状态机
// PAID / FAILED / CLOSED 均为终态，进入后不允许再迁移
var ValidStatusTransitions = map[string][]string{
	OrderStatusCreated: {OrderStatusPending, OrderStatusPaid, OrderStatusFailed, OrderStatusClosed},
	OrderStatusPending: {OrderStatusPaid, OrderStatusFailed, OrderStatusClosed},
}

func CanTransitionTo(currentStatus, targetStatus string) bool {
	allowedStatuses, exists := ValidStatusTransitions[currentStatus]
	if !exists {
		return false
	}
	for _, s := range allowedStatuses {
		if s == targetStatus {
			return true
		}
	}
	return false
}

// IsTerminalStatus 是否终态
func IsTerminalStatus(status string) bool {
	return status == OrderStatusPaid || status == OrderStatusFailed || status == OrderStatusClosed
}

// 支付关联业务类型
const (
	RelatedTypeProduct      = "product"              // 商品购买
	RelatedTypeAppointment  = "appointment"          // 预约服务
	RelatedTypeCardRecharge = "member_card_recharge" // 会员卡充值
)

func IsValidRelatedType(relatedType string) bool {
	switch relatedType {
	case RelatedTypeProduct, RelatedTypeAppointment, RelatedTypeCardRecharge:
		return true
	}
	return false
}

// PaymentOrder 支付订单表
//
// OrderNo 是本系统生成的商户订单号，也是结算的幂等键；
// GatewayTradeNo 是支付网关侧的交易号，网关受理后才会回填。
// 订单创建后永不删除，作为对账审计依据。
type PaymentOrder struct {
	ID             int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderNo        string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"order_no"`
	UserID         int64      `gorm:"index;not null" json:"user_id"`
	Amount         int64      `gorm:"not null" json:"amount"` // 金额，单位：分
	RelatedType    string     `gorm:"type:varchar(32);not null" json:"related_type"`
	RelatedID      int64      `gorm:"not null" json:"related_id"`
	Subject        string     `gorm:"type:varchar(255)" json:"subject"`
	Status         string     `gorm:"type:varchar(20);index;not null" json:"status"`
	GatewayTradeNo string     `gorm:"type:varchar(64);index" json:"gateway_trade_no"`
	ExpiredAt      time.Time  `gorm:"not null" json:"expired_at"`
	PaidAt         *time.Time `json:"paid_at"`
	CreatedAt      time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (PaymentOrder) TableName() string {
	return "payment_order"
}
