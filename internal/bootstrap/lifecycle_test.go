package bootstrap

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"pricewise/internal/adapters/config"
	"pricewise/pkg/logger"
)

func TestLongestWorkerInterval(t *testing.T) {
	c := NewContainer()
	c.Config = &config.Config{
		Workers: config.WorkerConfig{ExpiryInterval: time.Hour, BatchPricingInterval: 24 * time.Hour},
		Jobs:    config.JobsConfig{JanitorInterval: 10 * time.Minute},
	}
	assert.Equal(t, 24*time.Hour, c.longestWorkerInterval())
}

func TestShutdownWithoutComponents(t *testing.T) {
	c := NewContainer()
	c.Log = logger.Get()

	done := make(chan struct{})
	go func() {
		c.Shutdown()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("shutdown blocked")
	}
	assert.Error(t, c.Context.Err())
}

func TestWaitForGoroutinesTimesOut(t *testing.T) {
	var wg sync.WaitGroup
	wg.Add(1)
	defer wg.Done()

	start := time.Now()
	NewLifecycle().waitForGoroutines(&wg, 20*time.Millisecond, logger.Get())
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}
