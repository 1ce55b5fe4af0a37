package worker

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPool_AcquireRelease(t *testing.T) {
	p := NewPool(2)
	assert.Equal(t, 2, p.Capacity())
	assert.True(t, p.Healthy())
	assert.Zero(t, p.ActiveCount())

	p.Acquire()
	assert.Equal(t, 1, p.ActiveCount())
	assert.InDelta(t, 0.5, p.LoadFraction(), 0.001)
	assert.True(t, p.Healthy())

	p.Acquire()
	assert.Equal(t, 2, p.ActiveCount())
	assert.False(t, p.Healthy(), "a full pool is not ready for more work")

	p.Release()
	assert.Equal(t, 1, p.ActiveCount())
	assert.True(t, p.Healthy())
}

func TestPool_BoundsConcurrency(t *testing.T) {
	p := NewPool(4)

	var mu sync.Mutex
	peak := 0

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Acquire()
			defer p.Release()

			mu.Lock()
			if a := p.ActiveCount(); a > peak {
				peak = a
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peak, 4)
	assert.Zero(t, p.ActiveCount())
}

func TestPool_MinimumCapacity(t *testing.T) {
	p := NewPool(0)
	assert.Equal(t, 1, p.Capacity())
}
