package gateway

import (
	"context"
	"fmt"

	"petmaster/internal/config"
	"petmaster/internal/model"
	"petmaster/pkg/money"

	"github.com/smartwalle/alipay/v3"
	"go.uber.org/zap"
)

// 网关查询返回该子错误码时表示交易尚未在网关侧创建（买家未进入收银台）
const subCodeTradeNotExist = "ACQ.TRADE_NOT_EXIST"

// AlipayGateway 支付宝网关客户端，TradeGateway 的生产实现
type AlipayGateway struct {
	client *alipay.Client
	cfg    *config.AlipayConfig
	logger *zap.Logger
}

func NewAlipayGateway(cfg *config.AlipayConfig, logger *zap.Logger) (*AlipayGateway, error) {
	client, err := alipay.New(cfg.AppID, cfg.AppPrivateKey, !cfg.UseSandbox)
	if err != nil {
		return nil, fmt.Errorf("创建支付宝客户端失败: %w", err)
	}

	if err := client.LoadAliPayPublicKey(cfg.AlipayPublicKey); err != nil {
		return nil, fmt.Errorf("加载支付宝公钥失败: %w", err)
	}

	logger.Info("支付宝客户端已创建", zap.Bool("sandbox", cfg.UseSandbox))

	return &AlipayGateway{
		client: client,
		cfg:    cfg,
		logger: logger,
	}, nil
}

// CreatePagePay 创建电脑网站支付交易，返回收银台跳转地址
func (g *AlipayGateway) CreatePagePay(ctx context.Context, order *model.PaymentOrder) (string, error) {
	p := alipay.TradePagePay{}
	p.OutTradeNo = order.OrderNo
	p.TotalAmount = money.FenToYuan(order.Amount)
	p.Subject = order.Subject
	p.ProductCode = "FAST_INSTANT_TRADE_PAY"
	p.NotifyURL = g.cfg.NotifyURL
	p.ReturnURL = g.cfg.ReturnURL

	payURL, err := g.client.TradePagePay(p)
	if err != nil {
		return "", fmt.Errorf("创建支付宝交易失败: %w", err)
	}

	g.logger.Info("支付宝交易已创建",
		zap.String("order_no", order.OrderNo),
		zap.String("amount", p.TotalAmount),
	)

	return payURL.String(), nil
}

// QueryTrade 查询交易状态
// 网关侧尚无交易记录（买家未扫码/未进入收银台）时返回 (nil, nil)
func (g *AlipayGateway) QueryTrade(ctx context.Context, orderNo string) (*TradeResult, error) {
	rsp, err := g.client.TradeQuery(ctx, alipay.TradeQuery{OutTradeNo: orderNo})
	if err != nil {
		return nil, fmt.Errorf("查询支付宝交易失败: %w", err)
	}

	if rsp.IsFailure() {
		if rsp.SubCode == subCodeTradeNotExist {
			return nil, nil
		}
		return nil, fmt.Errorf("查询支付宝交易失败: code=%s sub_code=%s sub_msg=%s",
			rsp.Code, rsp.SubCode, rsp.SubMsg)
	}

	amount, err := money.YuanToFen(rsp.TotalAmount)
	if err != nil {
		return nil, fmt.Errorf("解析交易金额失败: %w", err)
	}

	return &TradeResult{
		OutTradeNo:  rsp.OutTradeNo,
		TradeNo:     rsp.TradeNo,
		TradeStatus: string(rsp.TradeStatus),
		TotalAmount: amount,
	}, nil
}
