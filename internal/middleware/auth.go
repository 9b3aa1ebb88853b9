package middleware

import (
	"context"
	"net/http"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"automedic-booking/internal/api"
	"automedic-booking/internal/auth"
	"automedic-booking/internal/model"
)

type ctxKey string

const identityKey ctxKey = "identity"

// anonymous callers allowed for these
var open = map[string]bool{
	api.MethodGetAvailability:   true,
	api.MethodWatchAvailability: true,
}

// WithIdentity returns ctx carrying who.
func WithIdentity(ctx context.Context, who model.Identity) context.Context {
	return context.WithValue(ctx, identityKey, who)
}

// IdentityFrom returns the caller resolved by the auth middleware, or the
// zero (anonymous) identity.
func IdentityFrom(ctx context.Context) model.Identity {
	who, _ := ctx.Value(identityKey).(model.Identity)
	return who
}

func bearer(v string) string {
	if len(v) > 7 && strings.EqualFold(v[:7], "Bearer ") {
		return strings.TrimSpace(v[7:])
	}
	return ""
}

// resolve reads the token from Authorization: Bearer <jwt>. A missing token
// is anonymous on open methods; a bad token is always rejected.
func resolve(ctx context.Context, method, secret string) (context.Context, error) {
	raw := ""
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if vals := md.Get("authorization"); len(vals) > 0 {
			raw = bearer(vals[0])
		}
	}

	if raw == "" {
		if open[method] {
			return ctx, nil
		}
		return nil, status.Error(codes.Unauthenticated, "no token")
	}

	claims, err := auth.ParseToken(raw, secret)
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, "bad token")
	}
	return WithIdentity(ctx, claims.Identity()), nil
}

func Auth(secret string) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
		ctx, err := resolve(ctx, info.FullMethod, secret)
		if err != nil {
			return nil, err
		}
		return next(ctx, req)
	}
}

func AuthStream(secret string) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, next grpc.StreamHandler) error {
		ctx, err := resolve(ss.Context(), info.FullMethod, secret)
		if err != nil {
			return err
		}
		return next(srv, &identityStream{ServerStream: ss, ctx: ctx})
	}
}

type identityStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *identityStream) Context() context.Context { return s.ctx }

// OptionalIdentity is the HTTP counterpart for endpoints open to anonymous
// callers: a valid bearer token attaches its identity, a bad one is a 401.
func OptionalIdentity(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearer(r.Header.Get("Authorization"))
			if raw == "" {
				next.ServeHTTP(w, r)
				return
			}
			claims, err := auth.ParseToken(raw, secret)
			if err != nil {
				http.Error(w, `{"message":"bad token"}`, http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), claims.Identity())))
		})
	}
}
