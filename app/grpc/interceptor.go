package grpc

import (
	"context"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-plans/app/factory"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

const requestIDHeader = "x-request-id"

type requestIDContextKey struct{}

var interceptorLogger = factory.NewModuleLogger("plans-grpc")

// UnaryInterceptors installs recovery, request id and access logging,
// outermost first.
func UnaryInterceptors() grpc.ServerOption {
	return grpc.ChainUnaryInterceptor(
		RecoveryInterceptor(),
		RequestIDInterceptor(),
		LoggingInterceptor(),
	)
}

// RequestIDInterceptor keeps the caller's x-request-id or mints grpc-<uuid>,
// and echoes it back in the response header.
func RequestIDInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		requestID := requestIDFromMetadata(ctx)
		if requestID == "" {
			requestID = "grpc-" + uuid.NewString()
		}

		ctx = context.WithValue(ctx, requestIDContextKey{}, requestID)
		_ = grpc.SetHeader(ctx, metadata.Pairs(requestIDHeader, requestID))

		return handler(ctx, req)
	}
}

func LoggingInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		latency := time.Since(start)

		service, method := splitFullMethod(info.FullMethod)
		code := status.Code(err)
		entry := loggerWithContext(ctx).WithFields(logrus.Fields{
			"grpc_service": service,
			"grpc_method":  method,
			"grpc_code":    code.String(),
			"latency":      latency.String(),
			"latency_ns":   latency.Nanoseconds(),
		})
		if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
			entry = entry.WithField("remote_addr", p.Addr.String())
		}

		switch code {
		case codes.OK:
			entry.Info("grpc_request")
		case codes.Internal, codes.Unknown, codes.DataLoss:
			entry.WithError(err).Error("grpc_request")
		default:
			entry.WithError(err).Warn("grpc_request")
		}
		return resp, err
	}
}

func RecoveryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (_ interface{}, err error) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			loggerWithContext(ctx).WithFields(logrus.Fields{
				"grpc_method": info.FullMethod,
				"panic":       rec,
				"stack":       string(debug.Stack()),
			}).Error("grpc_panic_recovered")
			err = status.Error(codes.Internal, "internal server error")
		}()

		return handler(ctx, req)
	}
}

func RequestIDFromContext(ctx context.Context) string {
	requestID, _ := ctx.Value(requestIDContextKey{}).(string)
	return requestID
}

func loggerWithContext(ctx context.Context) logrus.FieldLogger {
	if requestID := RequestIDFromContext(ctx); requestID != "" {
		return interceptorLogger.WithField("request_id", requestID)
	}
	return interceptorLogger
}

func requestIDFromMetadata(ctx context.Context) string {
	values := metadata.ValueFromIncomingContext(ctx, requestIDHeader)
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0])
}

// splitFullMethod turns "/plans.PlansService/GetPlans" into its service and
// method parts.
func splitFullMethod(fullMethod string) (string, string) {
	service, method, ok := strings.Cut(strings.TrimPrefix(fullMethod, "/"), "/")
	if !ok {
		return "", fullMethod
	}
	return service, method
}
