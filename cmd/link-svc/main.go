package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	"bondedlink/internal/common"
	"bondedlink/internal/di"
)

const (
	shutdownTimeout    = 30 * time.Second
	healthCheckTimeout = 5 * time.Second
)

func main() {
	app, err := di.InitializeApplication()
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}
	logger := app.Logger

	server := &http.Server{
		Addr:           fmt.Sprintf("%s:%s", app.Config.Server.Host, app.Config.Server.Port),
		Handler:        withMiddleware(app, setupRouter(app)),
		ReadTimeout:    time.Duration(app.Config.Server.ReadTimeout) * time.Second,
		WriteTimeout:   time.Duration(app.Config.Server.WriteTimeout) * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	grpcServer := setupRealtime(app)
	lis, err := net.Listen("tcp", fmt.Sprintf(":%s", app.Config.Server.RealtimePort))
	if err != nil {
		logger.Fatal("failed to listen for realtime", zap.Error(err))
	}

	go func() {
		logger.Info("realtime gRPC server listening", zap.String("addr", lis.Addr().String()))
		if err := grpcServer.Serve(lis); err != nil {
			logger.Fatal("realtime server failed", zap.Error(err))
		}
	}()

	go func() {
		logger.Info("http server starting", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Warn("http server forced to shutdown", zap.Error(err))
	}
	app.Hub.Close()
	stopGRPC(ctx, grpcServer, logger)
	app.Close(ctx)
	logger.Info("server stopped")
}

// withMiddleware wraps the whole router; mux skips Router.Use middleware on
// 404 and 405, and CORS preflight requests land on exactly those.
func withMiddleware(app *di.Application, h http.Handler) http.Handler {
	return common.CORSMiddleware(common.LoggingMiddleware(app.Logger)(h))
}

func setupRouter(app *di.Application) *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/health", healthHandler(app)).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	app.Handler.RegisterRoutes(router,
		common.AuthMiddleware(app.Validator),
		common.RateLimitMiddleware(app.Limiter),
	)
	return router
}

// healthHandler reports degraded, not down, when only the Link backend is
// unreachable: history still loads without it.
func healthHandler(app *di.Application) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		body := map[string]any{"status": "ok", "backend": "ok"}
		status := http.StatusOK

		if sqlDB, err := app.DB.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
			body["status"] = "down"
			status = http.StatusServiceUnavailable
		}
		if _, err := app.Backend.Health(ctx); err != nil {
			app.Logger.Warn("link backend health check failed", zap.Error(err))
			body["backend"] = "unreachable"
			if status == http.StatusOK {
				body["status"] = "degraded"
			}
		}
		common.WriteJSON(w, status, body)
	}
}

// reflectionMethods stay open so grpcurl can list the service without a token.
var reflectionMethods = map[string]bool{
	"/grpc.reflection.v1.ServerReflection/ServerReflectionInfo":      true,
	"/grpc.reflection.v1alpha.ServerReflection/ServerReflectionInfo": true,
}

func setupRealtime(app *di.Application) *grpc.Server {
	s := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			common.UnaryLoggingInterceptor(app.Logger),
			common.UnaryAuthInterceptor(app.Validator, reflectionMethods),
		),
		grpc.ChainStreamInterceptor(
			common.StreamLoggingInterceptor(app.Logger),
			common.StreamAuthInterceptor(app.Validator, reflectionMethods),
		),
	)
	app.Hub.Register(s)
	reflection.Register(s)
	return s
}

// stopGRPC drains in-flight calls until ctx ends, then cuts the rest off.
func stopGRPC(ctx context.Context, s *grpc.Server, logger *zap.Logger) {
	stopped := make(chan struct{})
	go func() {
		s.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-ctx.Done():
		logger.Warn("realtime server forced to stop", zap.Error(ctx.Err()))
		s.Stop()
		<-stopped
	}
}
