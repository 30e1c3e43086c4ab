package gateway

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"net/url"
	"testing"
)

// signValues 用测试私钥按网关规则对通知签名
func signValues(t *testing.T, priv *rsa.PrivateKey, values url.Values) {
	t.Helper()
	digest := sha256.Sum256([]byte(CanonicalSignContent(values)))
	sig, err := rsa.SignPKCS1v15(rand.Reader, priv, crypto.SHA256, digest[:])
	if err != nil {
		t.Fatalf("签名失败: %v", err)
	}
	values.Set("sign", base64.StdEncoding.EncodeToString(sig))
	values.Set("sign_type", "RSA2")
}

func newTestNotification() url.Values {
	return url.Values{
		"out_trade_no": {"PAY2025010112000012345678"},
		"trade_no":     {"2025010122001412341234"},
		"trade_status": {"TRADE_SUCCESS"},
		"total_amount": {"100.00"},
		"app_id":       {"2021000000000000"},
		"notify_id":    {"abc123"},
	}
}

func TestVerifyValidNotification(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("生成测试密钥失败: %v", err)
	}
	verifier := NewNotifyVerifierFromKey(&priv.PublicKey)

	values := newTestNotification()
	signValues(t, priv, values)

	notification, err := verifier.Verify(values)
	if err != nil {
		t.Fatalf("验签失败: %v", err)
	}

	if notification.OutTradeNo != "PAY2025010112000012345678" {
		t.Errorf("OutTradeNo = %s", notification.OutTradeNo)
	}
	if notification.TradeNo != "2025010122001412341234" {
		t.Errorf("TradeNo = %s", notification.TradeNo)
	}
	if notification.TradeStatus != TradeStatusSuccess {
		t.Errorf("TradeStatus = %s", notification.TradeStatus)
	}
	if notification.TotalAmount != 10000 {
		t.Errorf("TotalAmount = %d, want 10000", notification.TotalAmount)
	}
}

func TestVerifyRejects(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("生成测试密钥失败: %v", err)
	}
	verifier := NewNotifyVerifierFromKey(&priv.PublicKey)

	otherPriv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("生成测试密钥失败: %v", err)
	}

	tests := []struct {
		name   string
		values func() url.Values
	}{
		{
			"缺少签名",
			func() url.Values {
				return newTestNotification()
			},
		},
		{
			"签名算法不符",
			func() url.Values {
				v := newTestNotification()
				signValues(t, priv, v)
				v.Set("sign_type", "RSA")
				return v
			},
		},
		{
			"签名非法 base64",
			func() url.Values {
				v := newTestNotification()
				v.Set("sign", "not-base64!!!")
				return v
			},
		},
		{
			"他人私钥签名",
			func() url.Values {
				v := newTestNotification()
				signValues(t, otherPriv, v)
				return v
			},
		},
		{
			"签名后篡改金额",
			func() url.Values {
				v := newTestNotification()
				signValues(t, priv, v)
				v.Set("total_amount", "0.01")
				return v
			},
		},
		{
			"签名后篡改订单号",
			func() url.Values {
				v := newTestNotification()
				signValues(t, priv, v)
				v.Set("out_trade_no", "PAY_OTHER")
				return v
			},
		},
		{
			"金额字段非法",
			func() url.Values {
				v := newTestNotification()
				v.Set("total_amount", "abc")
				signValues(t, priv, v)
				return v
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := verifier.Verify(tt.values())
			if !errors.Is(err, ErrInvalidSignature) {
				t.Errorf("期望 ErrInvalidSignature，实际: %v", err)
			}
		})
	}
}

func TestCanonicalSignContent(t *testing.T) {
	values := url.Values{
		"b_key":     {"2"},
		"a_key":     {"1"},
		"sign":      {"should_be_excluded"},
		"sign_type": {"RSA2"},
		"c_key":     {"3"},
	}

	got := CanonicalSignContent(values)
	want := "a_key=1&b_key=2&c_key=3"
	if got != want {
		t.Errorf("CanonicalSignContent = %q, want %q", got, want)
	}
}

func TestNewNotifyVerifierBareKey(t *testing.T) {
	// 支付宝开放平台给出的公钥没有 PEM 头尾，只有 base64 正文
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("生成测试密钥失败: %v", err)
	}

	der, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		t.Fatalf("序列化公钥失败: %v", err)
	}
	bare := base64.StdEncoding.EncodeToString(der)

	verifier, err := NewNotifyVerifier(bare)
	if err != nil {
		t.Fatalf("裸 base64 公钥解析失败: %v", err)
	}

	values := newTestNotification()
	signValues(t, priv, values)
	if _, err := verifier.Verify(values); err != nil {
		t.Errorf("验签失败: %v", err)
	}
}
