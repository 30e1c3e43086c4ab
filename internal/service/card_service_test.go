package service

import (
	"context"
	"errors"
	"testing"

	"petmaster/internal/model"
	"petmaster/internal/repository"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestCardService(t *testing.T, db *gorm.DB) *CardService {
	t.Helper()
	return NewCardService(db, zap.NewNop())
}

func TestOpenCard(t *testing.T) {
	db := newTestDB(t)
	svc := newTestCardService(t, db)
	ctx := context.Background()

	card, err := svc.OpenCard(ctx, 2001)
	if err != nil {
		t.Fatalf("开卡失败: %v", err)
	}
	if card.Balance != 0 {
		t.Errorf("新卡余额 = %d, want 0", card.Balance)
	}
	if card.Status != model.CardStatusActive {
		t.Errorf("新卡状态 = %s, want ACTIVE", card.Status)
	}
	if card.CardNumber == "" {
		t.Error("卡号未生成")
	}

	// 同一用户不允许重复开卡
	if _, err := svc.OpenCard(ctx, 2001); !errors.Is(err, repository.ErrCardExists) {
		t.Errorf("重复开卡期望 ErrCardExists，实际: %v", err)
	}
}

func TestDebit(t *testing.T) {
	db := newTestDB(t)
	svc := newTestCardService(t, db)
	ctx := context.Background()

	card, _ := seedRechargeOrder(t, db, 10000)
	db.Model(&model.MemberCard{}).Where("id = ?", card.ID).Update("balance", 10000)

	if err := svc.Debit(ctx, card.ID, 3000); err != nil {
		t.Fatalf("消费失败: %v", err)
	}

	got := getCard(t, db, card.ID)
	if got.Balance != 7000 {
		t.Errorf("余额 = %d, want 7000", got.Balance)
	}
	if got.TotalConsumption != 3000 {
		t.Errorf("累计消费 = %d, want 3000", got.TotalConsumption)
	}

	// 余额不足
	if err := svc.Debit(ctx, card.ID, 8000); !errors.Is(err, repository.ErrBalanceNotEnough) {
		t.Errorf("期望 ErrBalanceNotEnough，实际: %v", err)
	}
	if got := getCard(t, db, card.ID); got.Balance != 7000 {
		t.Errorf("拒绝的消费不得变更余额: %d", got.Balance)
	}

	// 非法金额
	if err := svc.Debit(ctx, card.ID, 0); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("期望 ErrInvalidAmount，实际: %v", err)
	}
	if err := svc.Debit(ctx, card.ID, -100); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("期望 ErrInvalidAmount，实际: %v", err)
	}

	// 卡不存在
	if err := svc.Debit(ctx, 99999, 100); !errors.Is(err, repository.ErrCardNotFound) {
		t.Errorf("期望 ErrCardNotFound，实际: %v", err)
	}
}

func TestRetireNonZeroBalance(t *testing.T) {
	db := newTestDB(t)
	svc := newTestCardService(t, db)
	ctx := context.Background()

	card, _ := seedRechargeOrder(t, db, 10000)
	db.Model(&model.MemberCard{}).Where("id = ?", card.ID).Update("balance", 500)

	err := svc.Retire(ctx, card.ID)
	if !errors.Is(err, repository.ErrNonZeroBalance) {
		t.Fatalf("期望 ErrNonZeroBalance，实际: %v", err)
	}

	// 卡与充值记录都应保留
	if _, err := svc.GetCard(ctx, card.ID); err != nil {
		t.Errorf("销户被拒绝后卡不应被删除: %v", err)
	}
}

func TestRetireZeroBalanceCascades(t *testing.T) {
	db := newTestDB(t)
	cfg := newTestConfig()
	settlement := newTestSettlement(t, db, cfg)
	svc := newTestCardService(t, db)
	ctx := context.Background()

	// 充值后消费到零，再销户
	card, order := seedRechargeOrder(t, db, 10000)
	if _, err := settlement.Settle(ctx, order.OrderNo, "TRADE_SUCCESS", testTradeNo, 10000); err != nil {
		t.Fatalf("结算失败: %v", err)
	}
	if err := svc.Debit(ctx, card.ID, 10000); err != nil {
		t.Fatalf("消费失败: %v", err)
	}

	if err := svc.Retire(ctx, card.ID); err != nil {
		t.Fatalf("销户失败: %v", err)
	}

	if _, err := svc.GetCard(ctx, card.ID); !errors.Is(err, repository.ErrCardNotFound) {
		t.Errorf("销户后卡应已删除，实际: %v", err)
	}

	// 充值记录随卡一并删除
	var count int64
	db.Model(&model.CardRechargeRecord{}).Where("member_card_id = ?", card.ID).Count(&count)
	if count != 0 {
		t.Errorf("销户后充值记录数 = %d, want 0", count)
	}

	// 支付订单作为审计依据保留
	final := getOrder(t, db, order.OrderNo)
	if final.Status != model.OrderStatusPaid {
		t.Errorf("销户不得影响支付订单: %s", final.Status)
	}
}

func TestRetireCardNotFound(t *testing.T) {
	db := newTestDB(t)
	svc := newTestCardService(t, db)

	err := svc.Retire(context.Background(), 99999)
	if !errors.Is(err, repository.ErrCardNotFound) {
		t.Errorf("期望 ErrCardNotFound，实际: %v", err)
	}
}
