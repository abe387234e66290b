package grpcapi

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/example/verinex/internal/logging"
	"github.com/example/verinex/internal/repository"
)

// Client talks to a Records service and returns domain records.
type Client struct {
	cc     *grpc.ClientConn
	client RecordsClient
	logger *zap.Logger

	// Timeout applies per RPC when non-zero.
	Timeout time.Duration
	// Token is sent as a bearer token when non-empty.
	Token string
}

// DialRecords returns a ready-to-use client for the Records service.
func DialRecords(ctx context.Context, addr string, logger *zap.Logger, opts ...grpc.DialOption) (*Client, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithBlock(),
	}, opts...)

	conn, err := grpc.DialContext(dialCtx, addr, dialOpts...)
	if err != nil {
		wrapped := logging.NewOperationError("grpcapi.dial_records", "", err)
		logger.Error("failed to dial records service", zap.Error(wrapped), zap.String("addr", addr))
		return nil, wrapped
	}
	return &Client{cc: conn, client: NewRecordsClient(conn), logger: logger.Named("grpc_client")}, nil
}

func (c *Client) Close() error {
	if c == nil || c.cc == nil {
		return nil
	}
	return c.cc.Close()
}

// GetRecord fetches the record behind a verification token.
func (c *Client) GetRecord(ctx context.Context, token string) (*repository.VerificationRecord, error) {
	ctx, cancel := c.ctx(ctx)
	defer cancel()

	reply, err := c.client.GetRecord(ctx, wrapperspb.String(token))
	if err != nil {
		return nil, c.fail("grpcapi.get_record", token, err)
	}
	return structToRecord(reply)
}

// UpdateReview applies a review decision remotely.
func (c *Client) UpdateReview(ctx context.Context, id int64, reviewStatus repository.ReviewStatus, reason string) (*repository.VerificationRecord, error) {
	ctx, cancel := c.ctx(ctx)
	defer cancel()

	req, err := structpb.NewStruct(map[string]interface{}{
		"id":     float64(id),
		"status": string(reviewStatus),
		"reason": reason,
	})
	if err != nil {
		return nil, err
	}
	reply, err := c.client.UpdateReview(ctx, req)
	if err != nil {
		return nil, c.fail("grpcapi.update_review", "", err)
	}
	return structToRecord(reply)
}

func (c *Client) ctx(parent context.Context) (context.Context, context.CancelFunc) {
	if c.Token != "" {
		parent = metadata.AppendToOutgoingContext(parent, authorizationKey, "Bearer "+c.Token)
	}
	if c.Timeout > 0 {
		return context.WithTimeout(parent, c.Timeout)
	}
	return context.WithCancel(parent)
}

func (c *Client) fail(operation, requestID string, err error) error {
	mapped := mapRPC(err)
	if mapped == err {
		wrapped := logging.NewOperationError(operation, requestID, err)
		c.logger.Error("records call failed", zap.Error(wrapped))
		return wrapped
	}
	return mapped
}

// mapRPC turns status codes the server emits for domain errors back into
// the repository sentinels.
func mapRPC(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.NotFound:
		return repository.ErrRecordNotFound
	case codes.InvalidArgument:
		return &InvalidArgumentError{Message: st.Message()}
	case codes.Unauthenticated:
		return ErrUnauthenticated
	default:
		return err
	}
}

// ErrUnauthenticated is returned when the server refused the credentials.
var ErrUnauthenticated = errors.New("admin token required")

// InvalidArgumentError is returned when the server refused the request.
type InvalidArgumentError struct {
	Message string
}

func (e *InvalidArgumentError) Error() string {
	return "invalid argument: " + e.Message
}
