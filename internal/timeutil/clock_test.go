package timeutil

import (
	"sync"
	"testing"
	"time"
)

func TestRealClockNow(t *testing.T) {
	before := time.Now()
	got := RealClock{}.Now()
	after := time.Now()

	if got.Before(before) || got.After(after) {
		t.Errorf("Now() = %v, want between %v and %v", got, before, after)
	}
}

func TestRealClockSince(t *testing.T) {
	start := time.Now().Add(-time.Second)
	if d := (RealClock{}).Since(start); d < time.Second {
		t.Errorf("Since() = %v, want at least 1s", d)
	}
}

func TestMockClockAdvance(t *testing.T) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	m := NewMockClock(base)

	if got := m.Now(); !got.Equal(base) {
		t.Fatalf("Now() = %v, want %v", got, base)
	}

	m.Advance(90 * time.Second)
	if got := m.Now(); !got.Equal(base.Add(90 * time.Second)) {
		t.Errorf("Now() after Advance = %v", got)
	}
	if d := m.Since(base); d != 90*time.Second {
		t.Errorf("Since(base) = %v, want 90s", d)
	}
}

func TestMockClockSet(t *testing.T) {
	m := NewMockClock(time.Unix(0, 0))
	target := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	m.Set(target)
	if got := m.Now(); !got.Equal(target) {
		t.Errorf("Now() = %v, want %v", got, target)
	}
}

func TestMockClockConcurrentAccess(t *testing.T) {
	m := NewMockClock(time.Unix(0, 0))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			m.Advance(time.Millisecond)
		}()
		go func() {
			defer wg.Done()
			_ = m.Now()
		}()
	}
	wg.Wait()

	if got := m.Now(); !got.Equal(time.Unix(0, 0).Add(10 * time.Millisecond)) {
		t.Errorf("Now() = %v after 10 concurrent advances", got)
	}
}
