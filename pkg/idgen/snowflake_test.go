package idgen

import (
	"strings"
	"sync"
	"testing"
)

func TestNextIDUnique(t *testing.T) {
	Init(1)

	const goroutines = 10
	const perGoroutine = 1000

	var mu sync.Mutex
	seen := make(map[int64]bool, goroutines*perGoroutine)

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids := make([]int64, 0, perGoroutine)
			for j := 0; j < perGoroutine; j++ {
				ids = append(ids, NextID())
			}
			mu.Lock()
			defer mu.Unlock()
			for _, id := range ids {
				if seen[id] {
					t.Errorf("ID 重复: %d", id)
				}
				seen[id] = true
			}
		}()
	}
	wg.Wait()

	if len(seen) != goroutines*perGoroutine {
		t.Errorf("生成 ID 数量 = %d, want %d", len(seen), goroutines*perGoroutine)
	}
}

func TestGenerateOrderNo(t *testing.T) {
	no := GenerateOrderNo()

	if !strings.HasPrefix(no, "PAY") {
		t.Errorf("订单号前缀错误: %s", no)
	}
	// PAY + 14位时间 + 8位序列
	if len(no) != 3+14+8 {
		t.Errorf("订单号长度 = %d, want %d: %s", len(no), 3+14+8, no)
	}

	if GenerateOrderNo() == no {
		t.Error("连续生成的订单号不应重复")
	}
}

func TestGenerateCardNo(t *testing.T) {
	no := GenerateCardNo()

	if !strings.HasPrefix(no, "CARD") {
		t.Errorf("卡号前缀错误: %s", no)
	}
	// CARD + 8位日期 + 8位序列
	if len(no) != 4+8+8 {
		t.Errorf("卡号长度 = %d, want %d: %s", len(no), 4+8+8, no)
	}
}
