package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"petmaster/internal/gateway"
	"petmaster/internal/model"
	"petmaster/internal/repository"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// fakeGateway 可编程的网关桩
type fakeGateway struct {
	payURL      string
	payErr      error
	queryResult *gateway.TradeResult
	queryErr    error
	queryCalls  int64
}

func (f *fakeGateway) CreatePagePay(ctx context.Context, order *model.PaymentOrder) (string, error) {
	if f.payErr != nil {
		return "", f.payErr
	}
	return f.payURL, nil
}

func (f *fakeGateway) QueryTrade(ctx context.Context, orderNo string) (*gateway.TradeResult, error) {
	atomic.AddInt64(&f.queryCalls, 1)
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return f.queryResult, nil
}

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func newTestPaymentService(t *testing.T, db *gorm.DB, gw gateway.TradeGateway) *PaymentService {
	t.Helper()
	cfg := newTestConfig()
	settlement := newTestSettlement(t, db, cfg)
	return NewPaymentService(db, newTestRedis(t), cfg, gw, settlement, zap.NewNop())
}

func TestCreatePayment(t *testing.T) {
	db := newTestDB(t)
	gw := &fakeGateway{payURL: "https://openapi.alipay.com/gateway.do?xxx"}
	svc := newTestPaymentService(t, db, gw)
	ctx := context.Background()

	resp, err := svc.CreatePayment(ctx, &CreatePaymentRequest{
		UserID:      1001,
		Amount:      10000,
		RelatedType: model.RelatedTypeProduct,
		RelatedID:   42,
		Subject:     "狗粮",
	})
	if err != nil {
		t.Fatalf("创建支付失败: %v", err)
	}

	if resp.Status != model.OrderStatusPending {
		t.Errorf("状态 = %s, want PENDING", resp.Status)
	}
	if resp.PayURL != gw.payURL {
		t.Errorf("PayURL = %s", resp.PayURL)
	}

	order := getOrder(t, db, resp.OrderNo)
	if order.Status != model.OrderStatusPending {
		t.Errorf("落库状态 = %s, want PENDING", order.Status)
	}
	if order.ExpiredAt.Before(time.Now()) {
		t.Error("有效期未设置")
	}
}

func TestCreatePaymentValidation(t *testing.T) {
	db := newTestDB(t)
	svc := newTestPaymentService(t, db, &fakeGateway{payURL: "u"})
	ctx := context.Background()

	_, err := svc.CreatePayment(ctx, &CreatePaymentRequest{
		UserID: 1, Amount: 0, RelatedType: model.RelatedTypeProduct, RelatedID: 1, Subject: "x",
	})
	if !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("零金额期望 ErrInvalidAmount，实际: %v", err)
	}

	_, err = svc.CreatePayment(ctx, &CreatePaymentRequest{
		UserID: 1, Amount: 100, RelatedType: "refund", RelatedID: 1, Subject: "x",
	})
	if !errors.Is(err, ErrInvalidRelatedType) {
		t.Errorf("非法类型期望 ErrInvalidRelatedType，实际: %v", err)
	}
}

// 网关开单失败：订单保留在 CREATED，等待超时任务关闭
func TestCreatePaymentGatewayFailure(t *testing.T) {
	db := newTestDB(t)
	gw := &fakeGateway{payErr: errors.New("gateway unavailable")}
	svc := newTestPaymentService(t, db, gw)

	_, err := svc.CreatePayment(context.Background(), &CreatePaymentRequest{
		UserID: 1001, Amount: 10000, RelatedType: model.RelatedTypeProduct, RelatedID: 42, Subject: "狗粮",
	})
	if err == nil {
		t.Fatal("期望报错")
	}

	var orders []*model.PaymentOrder
	db.Find(&orders)
	if len(orders) != 1 {
		t.Fatalf("订单数 = %d, want 1", len(orders))
	}
	if orders[0].Status != model.OrderStatusCreated {
		t.Errorf("订单状态 = %s, want CREATED", orders[0].Status)
	}
}

// 终态订单的查询不打网关
func TestPollTerminalOrder(t *testing.T) {
	db := newTestDB(t)
	gw := &fakeGateway{}
	svc := newTestPaymentService(t, db, gw)
	ctx := context.Background()

	_, order := seedRechargeOrder(t, db, 10000)
	db.Model(&model.PaymentOrder{}).Where("order_no = ?", order.OrderNo).
		Update("status", model.OrderStatusPaid)

	got, err := svc.Poll(ctx, order.OrderNo)
	if err != nil {
		t.Fatalf("查询失败: %v", err)
	}
	if got.Status != model.OrderStatusPaid {
		t.Errorf("状态 = %s, want PAID", got.Status)
	}
	if atomic.LoadInt64(&gw.queryCalls) != 0 {
		t.Error("终态订单不应触发网关查询")
	}
}

// 网关侧尚无交易记录：订单保持原状
func TestPollTradeNotExist(t *testing.T) {
	db := newTestDB(t)
	gw := &fakeGateway{queryResult: nil}
	svc := newTestPaymentService(t, db, gw)
	ctx := context.Background()

	_, order := seedRechargeOrder(t, db, 10000)

	got, err := svc.Poll(ctx, order.OrderNo)
	if err != nil {
		t.Fatalf("查询失败: %v", err)
	}
	if got.Status != model.OrderStatusPending {
		t.Errorf("状态 = %s, want PENDING", got.Status)
	}
}

// 主动查询发现支付成功：与通知路径走同一结算引擎入账
func TestPollSettlesSuccess(t *testing.T) {
	db := newTestDB(t)
	_, order := seedRechargeOrder(t, db, 10000)

	gw := &fakeGateway{queryResult: &gateway.TradeResult{
		OutTradeNo:  order.OrderNo,
		TradeNo:     testTradeNo,
		TradeStatus: gateway.TradeStatusSuccess,
		TotalAmount: 10000,
	}}
	svc := newTestPaymentService(t, db, gw)
	ctx := context.Background()

	got, err := svc.Poll(ctx, order.OrderNo)
	if err != nil {
		t.Fatalf("查询失败: %v", err)
	}
	if got.Status != model.OrderStatusPaid {
		t.Errorf("状态 = %s, want PAID", got.Status)
	}

	// 重复查询幂等
	got, err = svc.Poll(ctx, order.OrderNo)
	if err != nil {
		t.Fatalf("重复查询失败: %v", err)
	}
	if got.Status != model.OrderStatusPaid {
		t.Errorf("状态 = %s, want PAID", got.Status)
	}

	var count int64
	db.Model(&model.CardRechargeRecord{}).Count(&count)
	if count != 1 {
		t.Errorf("充值记录数 = %d, want 1", count)
	}
}

func TestPollOrderNotFound(t *testing.T) {
	db := newTestDB(t)
	svc := newTestPaymentService(t, db, &fakeGateway{})

	_, err := svc.Poll(context.Background(), "PAY_NOT_EXIST")
	if !errors.Is(err, repository.ErrOrderNotFound) {
		t.Errorf("期望 ErrOrderNotFound，实际: %v", err)
	}
}

// 买家尚未付款：订单保持 PENDING
func TestPollWaitBuyerPay(t *testing.T) {
	db := newTestDB(t)
	_, order := seedRechargeOrder(t, db, 10000)

	gw := &fakeGateway{queryResult: &gateway.TradeResult{
		OutTradeNo:  order.OrderNo,
		TradeStatus: gateway.TradeStatusWaitBuyerPay,
		TotalAmount: 10000,
	}}
	svc := newTestPaymentService(t, db, gw)

	got, err := svc.Poll(context.Background(), order.OrderNo)
	if err != nil {
		t.Fatalf("查询失败: %v", err)
	}
	if got.Status != model.OrderStatusPending {
		t.Errorf("状态 = %s, want PENDING", got.Status)
	}
}
