package server

import (
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// DepositServiceName 健康检查里的服务名
const DepositServiceName = "deposit.v1.DepositService"

// NewGRPCServer 只注册健康检查; ready 为 false 时 DepositService 报 NOT_SERVING
func NewGRPCServer(ready bool) (*grpc.Server, *health.Server) {
	s := grpc.NewServer()

	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if ready {
		status = healthpb.HealthCheckResponse_SERVING
	}
	hs.SetServingStatus(DepositServiceName, status)

	healthpb.RegisterHealthServer(s, hs)
	reflection.Register(s)
	return s, hs
}
