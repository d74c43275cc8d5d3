package grpcserver

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const requestIDKey = "x-request-id"

// LoggingInterceptor logs each call with its latency and status code,
// tagged with the caller's x-request-id or a generated one.
func LoggingInterceptor(l zerolog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		rid := requestID(ctx)
		_ = grpc.SetHeader(ctx, metadata.Pairs(requestIDKey, rid))

		resp, err := handler(ctx, req)

		ev := l.Debug()
		if err != nil {
			ev = l.Warn().Err(err)
		}
		ev.Str("rid", rid).
			Str("method", info.FullMethod).
			Str("code", status.Code(err).String()).
			Dur("latency", time.Since(start)).
			Msg("grpc_request")
		return resp, err
	}
}

func requestID(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if v := md.Get(requestIDKey); len(v) > 0 && v[0] != "" {
			return v[0]
		}
	}
	return uuid.NewString()
}
