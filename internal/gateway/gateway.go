package gateway

import (
	"context"

	"petmaster/internal/model"
)

// 网关交易状态
const (
	TradeStatusWaitBuyerPay = "WAIT_BUYER_PAY" // 交易创建，等待买家付款
	TradeStatusSuccess      = "TRADE_SUCCESS"  // 支付成功
	TradeStatusFinished     = "TRADE_FINISHED" // 交易结束，不可退款（同样视为支付成功）
	TradeStatusClosed       = "TRADE_CLOSED"   // 未付款交易超时关闭，或支付完成后全额退款
)

// IsSuccessStatus 交易状态是否表示支付成功
func IsSuccessStatus(status string) bool {
	return status == TradeStatusSuccess || status == TradeStatusFinished
}

// IsFailureStatus 交易状态是否表示支付失败
func IsFailureStatus(status string) bool {
	return status == TradeStatusClosed
}

// TradeResult 网关侧的交易查询结果
type TradeResult struct {
	OutTradeNo  string // 商户订单号
	TradeNo     string // 网关交易号
	TradeStatus string
	TotalAmount int64 // 金额，单位：分
}

// TradeGateway 支付网关客户端
//
// CreatePagePay 向网关开单并返回收银台跳转地址；
// QueryTrade 查询交易状态，网关侧尚无交易记录时返回 (nil, nil)。
// 两个方法都是出站网络调用，调用方不得在持有订单锁的情况下调用。
type TradeGateway interface {
	CreatePagePay(ctx context.Context, order *model.PaymentOrder) (string, error)
	QueryTrade(ctx context.Context, orderNo string) (*TradeResult, error)
}
