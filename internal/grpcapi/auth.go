package grpcapi

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/example/verinex/internal/auth"
)

const authorizationKey = "authorization"

// AdminInterceptor requires an admin bearer token in the "authorization"
// metadata for UpdateReview. GetRecord stays public like GET /result/:token.
func AdminInterceptor(secret, audience string) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if info.FullMethod != updateReviewMethod {
			return handler(ctx, req)
		}

		var header string
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if values := md.Get(authorizationKey); len(values) > 0 {
				header = values[0]
			}
		}
		tokenString, err := auth.ExtractBearerToken(header)
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, err.Error())
		}
		claims, err := auth.ParseAdminToken(tokenString, secret, audience)
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, err.Error())
		}
		return handler(auth.WithAdmin(ctx, claims.Subject), req)
	}
}
