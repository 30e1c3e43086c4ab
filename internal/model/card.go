package model

import (
	"time"
)

const (
	CardStatusActive = "ACTIVE"
	CardStatusFrozen = "FROZEN"
)

// MemberCard 会员卡（储值账户）表
// Balance 只允许结算引擎入账、消费接口出账两条路径修改
type MemberCard struct {
	ID               int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID           int64     `gorm:"uniqueIndex;not null" json:"user_id"`
	CardNumber       string    `gorm:"type:varchar(32);uniqueIndex;not null" json:"card_number"`
	Balance          int64     `gorm:"not null;default:0" json:"balance"`           // 当前余额（分）
	TotalRecharge    int64     `gorm:"not null;default:0" json:"total_recharge"`    // 累计充值（分）
	TotalConsumption int64     `gorm:"not null;default:0" json:"total_consumption"` // 累计消费（分）
	Status           string    `gorm:"type:varchar(20);not null;default:ACTIVE" json:"status"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (MemberCard) TableName() string {
	return "member_card"
}

// CardRechargeRecord 会员卡充值记录表
//
// 【重要】充值记录设计原则：
// 1. 只追加，不修改 —— 每笔入账都可追溯到一笔支付订单
// 2. 记录充值前后余额 —— 便于校验余额一致性
// 3. 唯一例外：销卡时随会员卡一并删除（显式业务决策，见 CardService.Retire）
type CardRechargeRecord struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	MemberCardID  int64     `gorm:"index;not null" json:"member_card_id"`
	OrderNo       string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"order_no"` // 关联支付订单号
	TransactionNo string    `gorm:"type:varchar(64);index" json:"transaction_no"`          // 网关交易号
	Amount        int64     `gorm:"not null" json:"amount"`
	BalanceBefore int64     `gorm:"not null" json:"balance_before"`
	BalanceAfter  int64     `gorm:"not null" json:"balance_after"`
	Remark        string    `gorm:"type:varchar(255)" json:"remark"`
	CreatedAt     time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (CardRechargeRecord) TableName() string {
	return "card_recharge_record"
}
