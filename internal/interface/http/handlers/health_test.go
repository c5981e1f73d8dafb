package handlers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHealthChecker(t *testing.T) {
	ctx := context.Background()
	hc := NewHealthChecker("test")

	status := hc.Check(ctx)
	assert.True(t, status.Healthy)
	assert.Equal(t, "No health checks registered", status.Message)

	hc.AddCheck("postgres", func(context.Context) error { return nil })
	hc.AddCheck("redis", func(context.Context) error { return errors.New("connection refused") })

	status = hc.Check(ctx)
	assert.False(t, status.Healthy)
	assert.Equal(t, "Some checks failed: redis", status.Message)
	assert.True(t, status.Checks["postgres"].Healthy)
	assert.Equal(t, "connection refused", status.Checks["redis"].Message)
	assert.Equal(t, "test", status.Version)
}

func TestHealthChecker_Timeout(t *testing.T) {
	hc := NewHealthChecker("")
	hc.SetTimeout(10 * time.Millisecond)
	hc.AddCheck("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	status := hc.Check(context.Background())
	assert.False(t, status.Healthy)
	assert.Contains(t, status.Checks["slow"].Message, "deadline exceeded")
}
