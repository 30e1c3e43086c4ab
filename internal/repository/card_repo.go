package repository

import (
	"context"
	"errors"

	"petmaster/internal/model"

	"gorm.io/gorm"
)

var (
	ErrCardNotFound     = errors.New("会员卡不存在")
	ErrCardExists       = errors.New("用户已有会员卡")
	ErrBalanceNotEnough = errors.New("会员卡余额不足")
	ErrNonZeroBalance   = errors.New("会员卡余额不为零")
)

type CardRepository struct {
	db *gorm.DB
}

func NewCardRepository(db *gorm.DB) *CardRepository {
	return &CardRepository{db: db}
}

func (r *CardRepository) Create(ctx context.Context, card *model.MemberCard) error {
	return r.db.WithContext(ctx).Create(card).Error
}

func (r *CardRepository) GetByID(ctx context.Context, tx *gorm.DB, cardID int64) (*model.MemberCard, error) {
	if tx == nil {
		tx = r.db
	}
	var card model.MemberCard
	err := tx.WithContext(ctx).Where("id = ?", cardID).First(&card).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCardNotFound
		}
		return nil, err
	}
	return &card, nil
}

func (r *CardRepository) GetByUserID(ctx context.Context, userID int64) (*model.MemberCard, error) {
	var card model.MemberCard
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&card).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCardNotFound
		}
		return nil, err
	}
	return &card, nil
}

// Credit 充值入账：余额与累计充值同步增加
func (r *CardRepository) Credit(ctx context.Context, tx *gorm.DB, cardID int64, amount int64) error {
	if tx == nil {
		tx = r.db
	}

	result := tx.WithContext(ctx).
		Model(&model.MemberCard{}).
		Where("id = ?", cardID).
		Updates(map[string]interface{}{
			"balance":        gorm.Expr("balance + ?", amount),
			"total_recharge": gorm.Expr("total_recharge + ?", amount),
		})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrCardNotFound
	}

	return nil
}

// Debit 消费出账，余额不足时拒绝
// WHERE 条件同时校验余额，避免并发出账导致余额为负
func (r *CardRepository) Debit(ctx context.Context, tx *gorm.DB, cardID int64, amount int64) error {
	if tx == nil {
		tx = r.db
	}

	result := tx.WithContext(ctx).
		Model(&model.MemberCard{}).
		Where("id = ? AND balance >= ?", cardID, amount).
		Updates(map[string]interface{}{
			"balance":           gorm.Expr("balance - ?", amount),
			"total_consumption": gorm.Expr("total_consumption + ?", amount),
		})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		if _, err := r.GetByID(ctx, tx, cardID); err != nil {
			return err
		}
		return ErrBalanceNotEnough
	}

	return nil
}

func (r *CardRepository) CreateRechargeRecord(ctx context.Context, tx *gorm.DB, record *model.CardRechargeRecord) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(record).Error
}

func (r *CardRepository) ListRechargeRecords(ctx context.Context, cardID int64) ([]*model.CardRechargeRecord, error) {
	var records []*model.CardRechargeRecord
	err := r.db.WithContext(ctx).
		Where("member_card_id = ?", cardID).
		Order("created_at DESC").
		Find(&records).Error
	return records, err
}

// DeleteRechargeRecords 销卡时级联删除充值记录，仅允许在销卡事务内调用
func (r *CardRepository) DeleteRechargeRecords(ctx context.Context, tx *gorm.DB, cardID int64) error {
	return tx.WithContext(ctx).
		Where("member_card_id = ?", cardID).
		Delete(&model.CardRechargeRecord{}).Error
}

// DeleteIfZeroBalance 余额为零时删除会员卡
// WHERE 条件校验余额，拦截"检查后、删除前"窗口内的并发入账；
// 返回值表示是否确实删除
func (r *CardRepository) DeleteIfZeroBalance(ctx context.Context, tx *gorm.DB, cardID int64) (bool, error) {
	result := tx.WithContext(ctx).
		Where("id = ? AND balance = 0", cardID).
		Delete(&model.MemberCard{})

	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected > 0, nil
}
