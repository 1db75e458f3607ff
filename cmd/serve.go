package cmd

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/vibast-solutions/ms-go-plans/app/controller"
	grpcserver "github.com/vibast-solutions/ms-go-plans/app/grpc"
	"github.com/vibast-solutions/ms-go-plans/app/types"
	"github.com/vibast-solutions/ms-go-plans/config"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and gRPC servers",
	Long:  "Start both HTTP (Echo) and gRPC servers for the plans service.",
	Run:   runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) {
	cfg := mustLoadConfig()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rt, cleanup := newPlansRuntime(ctx, cfg)
	defer cleanup()

	plansController := controller.NewPlansController(rt.plansService, rt.webhookService)
	grpcPlansServer := grpcserver.NewServer(rt.plansService, rt.webhookService)

	adminMiddleware, authCleanup := newAdminAuthMiddleware(ctx, cfg)
	defer authCleanup()

	e := setupHTTPServer(plansController, adminMiddleware...)
	grpcSrv, healthSrv, lis := setupGRPCServer(cfg, grpcPlansServer)

	if rt.bus != nil {
		go func() {
			err := rt.bus.Subscribe(ctx, func(reason string) {
				rt.plansService.InvalidateLocal(reason)
			})
			if err != nil && ctx.Err() == nil {
				logrus.WithError(err).Error("Invalidation subscriber stopped")
			}
		}()
	}

	if cfg.Plans.RefreshInterval > 0 {
		go runRefresher(ctx, "plans_refresh", cfg.Plans.RefreshInterval, func(ctx context.Context) error {
			result := rt.plansService.Refresh(ctx)
			logrus.WithFields(logrus.Fields{
				"source": result.Source,
				"plans":  len(result.Plans),
			}).Debug("Plans refreshed")
			return nil
		})
	}

	go func() {
		httpAddr := net.JoinHostPort(cfg.HTTP.Host, cfg.HTTP.Port)
		logrus.WithField("addr", httpAddr).Info("Starting HTTP server")
		if err := e.Start(httpAddr); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("HTTP server error")
		}
	}()

	go func() {
		logrus.WithField("addr", lis.Addr().String()).Info("Starting gRPC server")
		if err := grpcSrv.Serve(lis); err != nil {
			logrus.WithError(err).Fatal("gRPC server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	healthSrv.Shutdown()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("HTTP shutdown error")
	}
	grpcSrv.GracefulStop()

	logrus.Info("Server stopped")
}

// setupHTTPServer registers the routes. adminMiddleware applies to admin
// routes only; the public plans list and webhooks stay open.
func setupHTTPServer(plansController *controller.PlansController, adminMiddleware ...echo.MiddlewareFunc) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogRemoteIP:  true,
		LogLatency:   true,
		LogUserAgent: true,
		LogError:     true,
		HandleError:  true,
		LogRequestID: true,
		LogValuesFunc: func(_ echo.Context, v echomiddleware.RequestLoggerValues) error {
			fields := logrus.Fields{
				"remote_ip":  v.RemoteIP,
				"host":       v.Host,
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency":    v.Latency.String(),
				"latency_ns": v.Latency.Nanoseconds(),
				"user_agent": v.UserAgent,
				"request_id": v.RequestID,
			}
			entry := logrus.WithFields(fields)
			if v.Error != nil {
				entry = entry.WithError(v.Error)
			}
			entry.Info("http_request")
			return nil
		},
	}))
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		ExposeHeaders: []string{types.PlansSourceHeader, echo.HeaderXRequestID},
	}))
	e.Use(echomiddleware.RequestIDWithConfig(echomiddleware.RequestIDConfig{
		Generator: func() string {
			return fmt.Sprintf("rest-%s", uuid.New().String())
		},
	}))

	e.GET("/health", plansController.Health)

	plans := e.Group("/plans")
	plans.GET("", plansController.GetPlans)
	plans.GET("/status", plansController.Status, adminMiddleware...)
	// The admin UI used to POST here after saving plans.
	plans.POST("", plansController.Webhook)

	webhooks := e.Group("/webhooks")
	webhooks.POST("/plans", plansController.Webhook)

	return e
}

func setupGRPCServer(cfg *config.Config, plansServer *grpcserver.Server) (*grpc.Server, *health.Server, net.Listener) {
	grpcAddr := net.JoinHostPort(cfg.GRPC.Host, cfg.GRPC.Port)
	lis, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to listen on gRPC port")
	}

	grpcSrv := grpc.NewServer(grpcserver.UnaryInterceptors())
	grpcserver.RegisterPlansServiceServer(grpcSrv, plansServer)

	healthSrv := health.NewServer()
	healthSrv.SetServingStatus("plans.PlansService", healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcSrv, healthSrv)

	return grpcSrv, healthSrv, lis
}
