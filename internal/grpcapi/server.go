package grpcapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/example/verinex/internal/auth"
	"github.com/example/verinex/internal/logging"
	"github.com/example/verinex/internal/repository"
	"github.com/example/verinex/internal/usecase"
)

// RecordService is the part of the use case the RPC surface needs.
type RecordService interface {
	GetResult(ctx context.Context, token string) (*repository.VerificationRecord, error)
	ReviewVerification(ctx context.Context, id int64, status repository.ReviewStatus, reason string) (*repository.VerificationRecord, error)
}

// Server exposes record lookup and review over gRPC.
type Server struct {
	UnimplementedRecordsServer
	records RecordService
	logger  *zap.Logger
}

// NewServer creates a Server backed by records.
func NewServer(records RecordService, logger *zap.Logger) *Server {
	return &Server{records: records, logger: logger.Named("grpc")}
}

// NewGRPCServer builds a grpc.Server with the Records service registered.
// Review updates need an admin token signed with secret.
func NewGRPCServer(records RecordService, secret, audience string, logger *zap.Logger) *grpc.Server {
	srv := grpc.NewServer(grpc.UnaryInterceptor(AdminInterceptor(secret, audience)))
	RegisterRecordsServer(srv, NewServer(records, logger))
	return srv
}

func (s *Server) GetRecord(ctx context.Context, in *wrapperspb.StringValue) (*structpb.Struct, error) {
	token := in.GetValue()
	if token == "" {
		return nil, status.Error(codes.InvalidArgument, "token is required")
	}
	rec, err := s.records.GetResult(ctx, token)
	if err != nil {
		return nil, s.mapErr("grpcapi.get_record", token, err)
	}
	return recordToStruct(rec)
}

func (s *Server) UpdateReview(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	fields := in.GetFields()

	id, err := parseID(fields["id"])
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	reviewStatus, err := repository.ParseReviewStatus(fields["status"].GetStringValue())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	rec, err := s.records.ReviewVerification(ctx, id, reviewStatus, fields["reason"].GetStringValue())
	if err != nil {
		return nil, s.mapErr("grpcapi.update_review", strconv.FormatInt(id, 10), err)
	}
	admin, _ := auth.GetAdmin(ctx)
	s.logger.Info("review updated",
		zap.Int64("id", id),
		zap.String("status", string(reviewStatus)),
		zap.String("admin", admin),
	)
	return recordToStruct(rec)
}

func (s *Server) mapErr(operation, requestID string, err error) error {
	switch {
	case errors.Is(err, repository.ErrRecordNotFound):
		return status.Error(codes.NotFound, repository.ErrRecordNotFound.Error())
	case errors.Is(err, repository.ErrInvalidReviewStatus), errors.Is(err, usecase.ErrReasonRequired):
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		wrapped := logging.NewOperationError(operation, requestID, err)
		s.logger.Error("rpc failed", zap.Error(wrapped))
		return status.Error(codes.Internal, "internal error")
	}
}

func parseID(v *structpb.Value) (int64, error) {
	switch kind := v.GetKind().(type) {
	case *structpb.Value_NumberValue:
		n := kind.NumberValue
		if n != math.Trunc(n) || n <= 0 {
			return 0, fmt.Errorf("id must be a positive integer, got %v", n)
		}
		return int64(n), nil
	case *structpb.Value_StringValue:
		id, err := strconv.ParseInt(kind.StringValue, 10, 64)
		if err != nil || id <= 0 {
			return 0, fmt.Errorf("id must be a positive integer, got %q", kind.StringValue)
		}
		return id, nil
	default:
		return 0, errors.New("id is required")
	}
}

// recordToStruct goes through the JSON form so field names match the HTTP API.
func recordToStruct(rec *repository.VerificationRecord) (*structpb.Struct, error) {
	raw, err := json.Marshal(rec)
	if err != nil {
		return nil, status.Error(codes.Internal, "encode record")
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, status.Error(codes.Internal, "encode record")
	}
	out, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Error(codes.Internal, "encode record")
	}
	return out, nil
}

func structToRecord(s *structpb.Struct) (*repository.VerificationRecord, error) {
	raw, err := json.Marshal(s.AsMap())
	if err != nil {
		return nil, err
	}
	var rec repository.VerificationRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}
