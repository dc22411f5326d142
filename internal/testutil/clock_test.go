package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStepClock_AdvancesByStep(t *testing.T) {
	clock := NewStepClock(5 * time.Millisecond)

	first := clock.Now()
	second := clock.Now()

	assert.Equal(t, 5*time.Millisecond, second.Sub(first))
	assert.Equal(t, 5*time.Millisecond, clock.Step())
}

func TestStepClock_DefaultStep(t *testing.T) {
	clock := NewStepClock(0)

	assert.Equal(t, time.Millisecond, clock.Step())
}

func TestStepClock_ConcurrentAccess(t *testing.T) {
	clock := NewStepClock(time.Millisecond)
	start := clock.Now()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				clock.Now()
			}
		}()
	}
	wg.Wait()

	// 1000 concurrent reads plus this one
	assert.Equal(t, 1001*time.Millisecond, clock.Now().Sub(start))
}
