package money

import (
	"errors"
	"testing"
)

func TestFenToYuan(t *testing.T) {
	tests := []struct {
		fen  int64
		want string
	}{
		{0, "0.00"},
		{1, "0.01"},
		{100, "1.00"},
		{10050, "100.50"},
		{99999, "999.99"},
		{-150, "-1.50"},
	}

	for _, tt := range tests {
		if got := FenToYuan(tt.fen); got != tt.want {
			t.Errorf("FenToYuan(%d) = %s, want %s", tt.fen, got, tt.want)
		}
	}
}

func TestYuanToFen(t *testing.T) {
	tests := []struct {
		yuan    string
		want    int64
		wantErr bool
	}{
		{"0.00", 0, false},
		{"0.01", 1, false},
		{"1", 100, false},
		{"1.5", 150, false},
		{"100.50", 10050, false},
		{"999.99", 99999, false},
		{"1.999", 0, true}, // 超过两位小数
		{"abc", 0, true},
		{"", 0, true},
		{"1.00.0", 0, true},
	}

	for _, tt := range tests {
		got, err := YuanToFen(tt.yuan)
		if tt.wantErr {
			if err == nil {
				t.Errorf("YuanToFen(%q) 期望报错，实际返回 %d", tt.yuan, got)
			} else if !errors.Is(err, ErrInvalidAmount) {
				t.Errorf("YuanToFen(%q) 错误类型不对: %v", tt.yuan, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("YuanToFen(%q) 意外报错: %v", tt.yuan, err)
			continue
		}
		if got != tt.want {
			t.Errorf("YuanToFen(%q) = %d, want %d", tt.yuan, got, tt.want)
		}
	}
}

// 往返转换应无损
func TestRoundTrip(t *testing.T) {
	for _, fen := range []int64{0, 1, 99, 100, 12345, 1000000} {
		got, err := YuanToFen(FenToYuan(fen))
		if err != nil {
			t.Fatalf("往返转换报错: fen=%d, err=%v", fen, err)
		}
		if got != fen {
			t.Errorf("往返转换不一致: %d -> %s -> %d", fen, FenToYuan(fen), got)
		}
	}
}
