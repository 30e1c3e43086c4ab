package model

import (
	"time"
)

const (
	PointRecordTypeEarn   = "EARN"   // 消费获得
	PointRecordTypeAdjust = "ADJUST" // 人工调整
)

// PointRecord 积分流水表
// 消费类订单结算成功时随订单的 PAID 迁移一并写入，只追加不修改。
// 同一订单至多产生一条 EARN 记录，由 OrderNo 唯一索引兜底。
type PointRecord struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    int64     `gorm:"index;not null" json:"user_id"`
	OrderNo   string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"order_no"`
	Points    int       `gorm:"not null" json:"points"` // 积分变动，发放为正数
	Type      string    `gorm:"type:varchar(20);not null" json:"type"`
	Reason    string    `gorm:"type:varchar(255)" json:"reason"`
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (PointRecord) TableName() string {
	return "point_record"
}
