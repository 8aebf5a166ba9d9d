package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"deposit-core/pkg/logger"
)

type Config struct {
	HttpPort string
	GrpcPort string
	// DrainDelay 先把 gRPC health 置为 NOT_SERVING, 等这么久再关 listener
	DrainDelay time.Duration
}

type hook struct {
	name string
	fn   func(ctx context.Context) error
}

// App HTTP + gRPC health, 退出时按注册的逆序执行 hook
type App struct {
	cfg          Config
	httpServer   *http.Server
	grpcServer   *grpc.Server
	grpcListener net.Listener
	health       *health.Server
	hooks        []hook
}

func New(cfg Config, httpHandler *gin.Engine, grpcServer *grpc.Server, hs *health.Server) (*App, error) {
	lis, err := net.Listen("tcp", ":"+cfg.GrpcPort)
	if err != nil {
		return nil, fmt.Errorf("listen grpc :%s: %w", cfg.GrpcPort, err)
	}
	return &App{
		cfg: cfg,
		httpServer: &http.Server{
			Addr:              ":" + cfg.HttpPort,
			Handler:           httpHandler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		grpcServer:   grpcServer,
		grpcListener: lis,
		health:       hs,
	}, nil
}

// OnShutdown 注册退出清理 (worker / cron / producer / 连接池)
func (a *App) OnShutdown(name string, fn func(ctx context.Context) error) {
	a.hooks = append(a.hooks, hook{name: name, fn: fn})
}

// Run 阻塞到收到信号, ctx 取消, 或某个 listener 出错
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 2)

	go func() {
		logger.Info("http server listening", zap.String("addr", a.httpServer.Addr))
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http: %w", err)
		}
	}()
	go func() {
		logger.Info("grpc server listening", zap.String("addr", a.grpcListener.Addr().String()))
		if err := a.grpcServer.Serve(a.grpcListener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			errCh <- fmt.Errorf("grpc: %w", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	var runErr error
	select {
	case sig := <-quit:
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))
	case <-ctx.Done():
	case runErr = <-errCh:
		logger.Error("server failed, shutting down", zap.Error(runErr))
	}

	a.shutdown()
	return runErr
}

func (a *App) shutdown() {
	// 1. 摘流量
	if a.health != nil {
		a.health.SetServingStatus(DepositServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
		if a.cfg.DrainDelay > 0 {
			time.Sleep(a.cfg.DrainDelay)
		}
		a.health.Shutdown()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// 2. 关 listener, 等进行中的请求 (confirm 可能还在等钱包签名)
	if err := a.httpServer.Shutdown(ctx); err != nil {
		logger.Error("http server forced to shutdown", zap.Error(err))
	}
	a.grpcServer.GracefulStop()

	// 3. 后台组件
	for i := len(a.hooks) - 1; i >= 0; i-- {
		h := a.hooks[i]
		if err := h.fn(ctx); err != nil {
			logger.Warn("shutdown hook failed", zap.String("hook", h.name), zap.Error(err))
		}
	}
	logger.Info("server exited")
}
