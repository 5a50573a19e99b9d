package common

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// Identity is the caller as established by the bearer token. AccessToken is
// forwarded to the Link backend, which re-checks it.
type Identity struct {
	UserID       string
	UniversityID string
	Email        string
	FullName     string
	AccessToken  string
}

type identityKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

// bearerToken extracts <token> from "Bearer <token>".
func bearerToken(header string) (string, bool) {
	parts := strings.Fields(header)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return "", false
	}
	return parts[1], true
}

func (v *TokenValidator) identity(header string) (Identity, error) {
	token, ok := bearerToken(header)
	if !ok {
		return Identity{}, NewUnauthorizedError("invalid auth header")
	}
	claims, err := v.ValidToken(token)
	if err != nil {
		return Identity{}, NewUnauthorizedError("invalid or expired token")
	}
	return Identity{
		UserID:       claims.UserID,
		UniversityID: claims.UniversityID,
		Email:        claims.Email,
		FullName:     claims.FullName,
		AccessToken:  token,
	}, nil
}

// AuthMiddleware rejects requests without a valid bearer token and puts the
// caller's Identity into the request context.
func AuthMiddleware(v *TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				WriteError(w, NewUnauthorizedError("authorization required"))
				return
			}
			id, err := v.identity(header)
			if err != nil {
				WriteError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

func CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func LoggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			logger.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", rec.status),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}

func (v *TokenValidator) grpcIdentity(ctx context.Context) (Identity, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return Identity{}, status.Error(codes.Unauthenticated, "missing metadata")
	}
	vals := md["authorization"]
	if len(vals) == 0 {
		return Identity{}, status.Error(codes.Unauthenticated, "authorization required")
	}
	id, err := v.identity(vals[0])
	if err != nil {
		return Identity{}, status.Error(codes.Unauthenticated, PublicMessage(err))
	}
	return id, nil
}

// UnaryAuthInterceptor is the gRPC counterpart of AuthMiddleware. Methods in
// public skip the check.
func UnaryAuthInterceptor(v *TokenValidator, public map[string]bool) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if public[info.FullMethod] {
			return handler(ctx, req)
		}
		id, err := v.grpcIdentity(ctx)
		if err != nil {
			return nil, err
		}
		return handler(WithIdentity(ctx, id), req)
	}
}

type identityStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *identityStream) Context() context.Context { return s.ctx }

func StreamAuthInterceptor(v *TokenValidator, public map[string]bool) grpc.StreamServerInterceptor {
	return func(srv interface{}, stream grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		if public[info.FullMethod] {
			return handler(srv, stream)
		}
		id, err := v.grpcIdentity(stream.Context())
		if err != nil {
			return err
		}
		return handler(srv, &identityStream{ServerStream: stream, ctx: WithIdentity(stream.Context(), id)})
	}
}

func UnaryLoggingInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		if err != nil {
			logger.Warn("grpc call failed", zap.String("method", info.FullMethod), zap.Duration("duration", time.Since(start)), zap.Error(err))
		} else {
			logger.Debug("grpc call", zap.String("method", info.FullMethod), zap.Duration("duration", time.Since(start)))
		}
		return resp, err
	}
}

func StreamLoggingInterceptor(logger *zap.Logger) grpc.StreamServerInterceptor {
	return func(srv interface{}, stream grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		logger.Debug("grpc stream started", zap.String("method", info.FullMethod))
		err := handler(srv, stream)
		if err != nil {
			logger.Warn("grpc stream ended with error", zap.String("method", info.FullMethod), zap.Error(err))
		}
		return err
	}
}
