package service

import (
	"context"
	"errors"
	"fmt"

	"petmaster/internal/model"
	"petmaster/internal/repository"
	"petmaster/pkg/idgen"
	"petmaster/pkg/money"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CardService 会员卡服务：开卡、查询、消费、销卡
// 充值入账不在本服务：资金入账只能发生在结算引擎的结算事务内
type CardService struct {
	db       *gorm.DB
	logger   *zap.Logger
	cardRepo *repository.CardRepository
}

func NewCardService(db *gorm.DB, logger *zap.Logger) *CardService {
	return &CardService{
		db:       db,
		logger:   logger,
		cardRepo: repository.NewCardRepository(db),
	}
}

// OpenCard 为用户开通会员卡，每个用户至多一张
func (s *CardService) OpenCard(ctx context.Context, userID int64) (*model.MemberCard, error) {
	existing, err := s.cardRepo.GetByUserID(ctx, userID)
	if err != nil && !errors.Is(err, repository.ErrCardNotFound) {
		return nil, err
	}
	if existing != nil {
		return nil, repository.ErrCardExists
	}

	card := &model.MemberCard{
		UserID:     userID,
		CardNumber: idgen.GenerateCardNo(),
		Balance:    0,
		Status:     model.CardStatusActive,
	}

	if err := s.cardRepo.Create(ctx, card); err != nil {
		return nil, fmt.Errorf("开通会员卡失败: %w", err)
	}

	s.logger.Info("会员卡已开通",
		zap.Int64("user_id", userID),
		zap.String("card_number", card.CardNumber),
	)

	return card, nil
}

func (s *CardService) GetCard(ctx context.Context, cardID int64) (*model.MemberCard, error) {
	return s.cardRepo.GetByID(ctx, nil, cardID)
}

func (s *CardService) GetCardByUser(ctx context.Context, userID int64) (*model.MemberCard, error) {
	return s.cardRepo.GetByUserID(ctx, userID)
}

func (s *CardService) ListRechargeRecords(ctx context.Context, cardID int64) ([]*model.CardRechargeRecord, error) {
	if _, err := s.cardRepo.GetByID(ctx, nil, cardID); err != nil {
		return nil, err
	}
	return s.cardRepo.ListRechargeRecords(ctx, cardID)
}

// Debit 会员卡消费出账
func (s *CardService) Debit(ctx context.Context, cardID int64, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}

	if err := s.cardRepo.Debit(ctx, nil, cardID, amount); err != nil {
		return err
	}

	s.logger.Info("会员卡消费",
		zap.Int64("card_id", cardID),
		zap.Int64("amount", amount),
	)

	return nil
}

// Retire 销卡
//
// 【关键点】销卡是一项显式的、需要审计的业务决策：
// 1. 仅允许余额为零的卡销户
// 2. 充值记录随卡一并删除，且与删卡同一事务提交（显式级联，非 ORM 级联）
// 3. "检查余额为零"到"删除"之间的并发入账由删除语句的余额条件拦截
func (s *CardService) Retire(ctx context.Context, cardID int64) error {
	card, err := s.cardRepo.GetByID(ctx, nil, cardID)
	if err != nil {
		return err
	}

	if card.Balance != 0 {
		return fmt.Errorf("%w: 当前余额 %s 元", repository.ErrNonZeroBalance, money.FenToYuan(card.Balance))
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.cardRepo.DeleteRechargeRecords(ctx, tx, cardID); err != nil {
			return fmt.Errorf("删除充值记录失败: %w", err)
		}

		deleted, err := s.cardRepo.DeleteIfZeroBalance(ctx, tx, cardID)
		if err != nil {
			return fmt.Errorf("删除会员卡失败: %w", err)
		}
		if !deleted {
			// 检查后、删除前发生了并发入账
			return repository.ErrNonZeroBalance
		}

		return nil
	})

	if err != nil {
		return err
	}

	s.logger.Info("会员卡已销户，充值记录已随卡删除",
		zap.Int64("card_id", cardID),
		zap.String("card_number", card.CardNumber),
	)

	return nil
}
