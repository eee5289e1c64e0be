package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/elskow/backoffice/internal/config"
	"github.com/elskow/backoffice/internal/shell"
)

const readHeaderTimeout = 10 * time.Second

type Server struct {
	config     *config.AppConfig
	log        *zap.Logger
	httpServer *http.Server
	grpcServer *grpc.Server
	health     *health.Server
}

type Params struct {
	fx.In

	Config *config.AppConfig
	Logger *zap.Logger
	Shell  *shell.Shell
}

func NewServer(p Params) (*Server, error) {
	if p.Config.Environment == EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	engine, err := p.Shell.Handler()
	if err != nil {
		return nil, fmt.Errorf("failed to build http handler: %w", err)
	}

	server := &Server{
		config: p.Config,
		log:    p.Logger,
		httpServer: &http.Server{
			Addr:              net.JoinHostPort(p.Config.Server.Host, p.Config.Server.Port),
			Handler:           engine,
			ReadHeaderTimeout: readHeaderTimeout,
		},
	}

	if p.Config.GRPC.Enabled {
		opts := []grpc.ServerOption{
			grpc.UnaryInterceptor(loggingInterceptor(p.Logger)),
			grpc.MaxRecvMsgSize(p.Config.GRPC.MaxReceiveMessageSize),
			grpc.MaxSendMsgSize(p.Config.GRPC.MaxSendMessageSize),
		}
		server.grpcServer = grpc.NewServer(opts...)
		server.health = health.NewServer()
		healthpb.RegisterHealthServer(server.grpcServer, server.health)

		if p.Config.GRPC.EnableReflection {
			reflection.Register(server.grpcServer)
		}
	}

	return server, nil
}

func loggingInterceptor(log *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		fields := []zap.Field{
			zap.String("method", info.FullMethod),
			zap.Duration("latency", time.Since(start)),
		}
		if err != nil {
			log.Warn("grpc call failed", append(fields, zap.Error(err))...)
		} else {
			log.Debug("grpc call", fields...)
		}
		return resp, err
	}
}

// Start binds both listeners before returning, then serves in the
// background.
func (s *Server) Start() error {
	httpLis, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	var grpcLis net.Listener
	if s.grpcServer != nil {
		addr := net.JoinHostPort(s.config.GRPC.Host, s.config.GRPC.Port)
		grpcLis, err = net.Listen("tcp", addr)
		if err != nil {
			httpLis.Close()
			return fmt.Errorf("failed to listen: %w", err)
		}
	}

	s.log.Info("Starting HTTP server",
		zap.String("address", s.httpServer.Addr),
		zap.Object("config", serverConfigToField(s.config)),
	)
	go func() {
		if err := s.httpServer.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("http server stopped", zap.Error(err))
		}
	}()

	if grpcLis != nil {
		s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
		s.log.Info("Starting ops gRPC server", zap.String("address", grpcLis.Addr().String()))
		go func() {
			if err := s.grpcServer.Serve(grpcLis); err != nil {
				s.log.Error("grpc server stopped", zap.Error(err))
			}
		}()
	}
	return nil
}

func serverConfigToField(config *config.AppConfig) zapcore.ObjectMarshaler {
	return zapcore.ObjectMarshalerFunc(func(enc zapcore.ObjectEncoder) error {
		enc.AddString("environment", config.Environment)
		enc.AddBool("grpc_enabled", config.GRPC.Enabled)
		enc.AddBool("reflection_enabled", config.GRPC.EnableReflection)
		enc.AddInt("trusted_proxies", len(config.Server.TrustedProxies))
		enc.AddString("modules_dir", config.Modules.Dir)
		enc.AddBool("modules_strict", config.Modules.Strict)
		return nil
	})
}

func (s *Server) Stop(ctx context.Context) error {
	s.log.Info("shutting down servers")
	if s.grpcServer != nil {
		s.health.Shutdown()
		s.grpcServer.GracefulStop()
	}
	return s.httpServer.Shutdown(ctx)
}
