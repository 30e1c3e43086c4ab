package money

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// 金额在系统内部统一以"分"为单位的 int64 存储，
// 与支付宝接口交互时转换为保留两位小数的"元"字符串（如 "100.00"）。

var ErrInvalidAmount = errors.New("金额格式不合法")

// FenToYuan 分转元字符串，固定两位小数
func FenToYuan(fen int64) string {
	return decimal.NewFromInt(fen).Div(decimal.NewFromInt(100)).StringFixed(2)
}

// YuanToFen 元字符串转分
// 超过两位小数、非数字、或超出 int64 表示范围均视为非法
func YuanToFen(yuan string) (int64, error) {
	d, err := decimal.NewFromString(yuan)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrInvalidAmount, yuan)
	}

	fen := d.Mul(decimal.NewFromInt(100))
	if !fen.IsInteger() {
		return 0, fmt.Errorf("%w: 金额最多两位小数: %s", ErrInvalidAmount, yuan)
	}
	if fen.GreaterThan(decimal.NewFromInt(1<<62)) || fen.LessThan(decimal.NewFromInt(-(1 << 62))) {
		return 0, fmt.Errorf("%w: 金额超出范围: %s", ErrInvalidAmount, yuan)
	}

	return fen.IntPart(), nil
}
