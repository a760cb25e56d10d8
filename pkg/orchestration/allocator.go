package orchestration

import (
	"context"
	"sync"
	"time"
)

// ClockAllocator derives CDC keys from wall-clock seconds. A key never
// repeats within the process: when the clock has not advanced past the last
// key, the last key plus one is returned instead.
type ClockAllocator struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

func NewClockAllocator() *ClockAllocator {
	return &ClockAllocator{now: time.Now}
}

func (a *ClockAllocator) Next(_ context.Context) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	key := a.now().Unix()
	if key <= a.last {
		key = a.last + 1
	}
	a.last = key
	return key, nil
}
