package gateway

import (
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"petmaster/pkg/money"
)

var (
	ErrInvalidSignature = errors.New("通知验签失败")
)

// TradeNotification 验签通过后的异步通知内容
type TradeNotification struct {
	OutTradeNo  string // 商户订单号
	TradeNo     string // 网关交易号
	TradeStatus string
	TotalAmount int64 // 金额，单位：分
}

// NotifyVerifier 异步通知验签器
//
// 网关使用应用无法获知的私钥对通知签名（RSA2，即 SHA256withRSA），
// 本验签器持有网关公钥，按网关文档规则重建待签名串后做非对称验签。
// 验签失败的通知一律拒绝，不产生任何状态变更。
type NotifyVerifier struct {
	publicKey *rsa.PublicKey
}

// NewNotifyVerifier 从 PEM 或裸 base64 格式的公钥字符串创建验签器
func NewNotifyVerifier(publicKeyStr string) (*NotifyVerifier, error) {
	block, _ := pem.Decode([]byte(formatPublicKey(publicKeyStr)))
	if block == nil {
		return nil, errors.New("解析支付宝公钥失败: 非法的 PEM 数据")
	}

	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("解析支付宝公钥失败: %w", err)
	}

	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("解析支付宝公钥失败: 不是 RSA 公钥")
	}

	return &NotifyVerifier{publicKey: rsaPub}, nil
}

// NewNotifyVerifierFromKey 直接使用已解析的公钥创建验签器
func NewNotifyVerifierFromKey(key *rsa.PublicKey) *NotifyVerifier {
	return &NotifyVerifier{publicKey: key}
}

// Verify 验证一条异步通知并返回类型化的通知内容
// 签名缺失、签名算法不符、验签不通过、金额字段非法均返回 ErrInvalidSignature
func (v *NotifyVerifier) Verify(values url.Values) (*TradeNotification, error) {
	sign := values.Get("sign")
	if sign == "" {
		return nil, fmt.Errorf("%w: 缺少 sign 字段", ErrInvalidSignature)
	}

	if signType := values.Get("sign_type"); signType != "" && signType != "RSA2" {
		return nil, fmt.Errorf("%w: 不支持的签名算法 %s", ErrInvalidSignature, signType)
	}

	signBytes, err := base64.StdEncoding.DecodeString(sign)
	if err != nil {
		return nil, fmt.Errorf("%w: 签名不是合法的 base64", ErrInvalidSignature)
	}

	digest := sha256.Sum256([]byte(CanonicalSignContent(values)))
	if err := rsa.VerifyPKCS1v15(v.publicKey, crypto.SHA256, digest[:], signBytes); err != nil {
		return nil, ErrInvalidSignature
	}

	amount, err := money.YuanToFen(values.Get("total_amount"))
	if err != nil {
		return nil, fmt.Errorf("%w: total_amount 字段非法", ErrInvalidSignature)
	}

	return &TradeNotification{
		OutTradeNo:  values.Get("out_trade_no"),
		TradeNo:     values.Get("trade_no"),
		TradeStatus: values.Get("trade_status"),
		TotalAmount: amount,
	}, nil
}

// CanonicalSignContent 重建网关的待签名串
// 规则：除 sign、sign_type 外的全部字段，按字段名字典序排序，
// 以 key=value 形式用 & 连接（值不做 URL 编码）
func CanonicalSignContent(values url.Values) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		if k == "sign" || k == "sign_type" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+values.Get(k))
	}
	return strings.Join(pairs, "&")
}

// formatPublicKey 将无 BEGIN/END 行的裸 base64 公钥包装为 PEM 格式
func formatPublicKey(key string) string {
	key = strings.TrimSpace(key)
	if strings.HasPrefix(key, "-----BEGIN") {
		return key
	}

	var b strings.Builder
	b.WriteString("-----BEGIN PUBLIC KEY-----\n")
	for len(key) > 64 {
		b.WriteString(key[:64])
		b.WriteByte('\n')
		key = key[64:]
	}
	b.WriteString(key)
	b.WriteString("\n-----END PUBLIC KEY-----")
	return b.String()
}
