package server

import (
	"context"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppRunsShutdownHooksInReverse(t *testing.T) {
	gin.SetMode(gin.TestMode)
	grpcServer, hs := NewGRPCServer(true)

	app, err := New(Config{HttpPort: "0", GrpcPort: "0"}, gin.New(), grpcServer, hs)
	require.NoError(t, err)

	var order []string
	app.OnShutdown("redis", func(context.Context) error { order = append(order, "redis"); return nil })
	app.OnShutdown("cron", func(context.Context) error { order = append(order, "cron"); return nil })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("app did not stop")
	}
	assert.Equal(t, []string{"cron", "redis"}, order)
}
