package ratelimit

import (
	"errors"
	"sync"
	"testing"
	"time"
)

// fixedClock returns a limiter whose clock only moves when advance is called.
func fixedClock(rate, burst float64) (*Limiter, func(time.Duration)) {
	now := time.Now()
	l := NewLimiter(rate, burst)
	l.nowFunc = func() time.Time { return now }
	return l, func(d time.Duration) { now = now.Add(d) }
}

func TestAllow_Burst(t *testing.T) {
	l, _ := fixedClock(1, 3)
	for i := range 3 {
		if !l.Allow("k") {
			t.Errorf("request %d should be allowed within burst", i+1)
		}
	}
	if l.Allow("k") {
		t.Error("request after burst exhaustion should be rejected")
	}
}

func TestAllow_Refill(t *testing.T) {
	l, advance := fixedClock(10, 2)
	l.Allow("k")
	l.Allow("k")
	if l.Allow("k") {
		t.Fatal("expected rejection after burst")
	}
	advance(200 * time.Millisecond)
	if !l.Allow("k") {
		t.Error("expected allow after refill")
	}
}

func TestAllow_RefillCappedAtBurst(t *testing.T) {
	l, advance := fixedClock(100, 3)
	for range 3 {
		l.Allow("k")
	}
	advance(10 * time.Second)
	for i := range 3 {
		if !l.Allow("k") {
			t.Errorf("request %d should be allowed after refill", i+1)
		}
	}
	if l.Allow("k") {
		t.Error("refill should stop at the burst")
	}
}

func TestAllow_IndependentKeys(t *testing.T) {
	l, _ := fixedClock(0, 1)
	l.Allow("a")
	if l.Allow("a") {
		t.Error("a should be exhausted")
	}
	if !l.Allow("b") {
		t.Error("b has its own bucket")
	}
}

func TestAllowN(t *testing.T) {
	tests := []struct {
		name  string
		costs []float64
		want  []bool
	}{
		{"single large draw", []float64{900}, []bool{true}},
		{"draws until empty", []float64{600, 300, 200}, []bool{true, true, false}},
		{"over burst", []float64{1001}, []bool{false}},
		{"fractional", []float64{0.5, 999.5, 0.1}, []bool{true, true, false}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, _ := fixedClock(0, 1000)
			for i, c := range tt.costs {
				if got := l.AllowN("k", c); got != tt.want[i] {
					t.Errorf("AllowN(%g) #%d = %v, want %v", c, i, got, tt.want[i])
				}
			}
		})
	}
}

func TestAllow_ConcurrentAccess(t *testing.T) {
	l, _ := fixedClock(0, 100)

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for range 200 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Allow("k") {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowed != 100 {
		t.Errorf("allowed %d requests, want exactly the burst of 100", allowed)
	}
}

func TestNewToolLimiters(t *testing.T) {
	limiters := NewToolLimiters()
	for _, tool := range []string{
		"gas_step", "gas_observe", "gas_render", "gas_set_parameter",
		"gas_set_divider", "gas_place_particle", "gas_reset",
	} {
		if _, ok := limiters[tool]; !ok {
			t.Errorf("missing rate limiter for tool: %s", tool)
		}
	}
}

func TestCheckCost(t *testing.T) {
	limiters := ToolLimiters{"gas_step": NewLimiter(0, 1000)}

	if err := CheckCost(limiters, "gas_step", 800); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := CheckCost(limiters, "gas_step", 300); !errors.Is(err, ErrRateLimited) {
		t.Errorf("CheckCost = %v, want ErrRateLimited", err)
	}
	if err := CheckCost(limiters, "gas_step", 5000); !errors.Is(err, ErrRateLimited) {
		t.Errorf("cost above burst: %v, want ErrRateLimited", err)
	}
	if err := CheckLimit(limiters, "unknown_tool"); err != nil {
		t.Errorf("unknown tools are unlimited, got %v", err)
	}
}
