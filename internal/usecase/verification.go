package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/verinex/internal/imaging"
	"github.com/example/verinex/internal/logging"
	"github.com/example/verinex/internal/repository"
	"github.com/example/verinex/internal/verification"
)

const (
	// StatusPreverified is reported instead of the verdict in review-queue mode.
	StatusPreverified = "preverified"

	estimatedResponseWindow = 24 * time.Hour
	estimatedResponseText   = "24 hours"
	tokenAttempts           = 3
	issueSeparator          = "; "
)

var (
	// ErrInvalidSubmission is returned when required fields or images are missing.
	ErrInvalidSubmission = errors.New("invalid submission")
	// ErrReasonRequired is returned when rejecting or requesting information without a reason.
	ErrReasonRequired = errors.New("a reason is required for this review status")
)

// VerificationRepository defines the persistence operations needed by the use case.
type VerificationRepository interface {
	AppendRecord(ctx context.Context, rec *repository.VerificationRecord) error
	UpdateReviewState(ctx context.Context, id int64, status repository.ReviewStatus, reason string) (*repository.VerificationRecord, error)
	FindByToken(ctx context.Context, token string) (*repository.VerificationRecord, error)
	FindByID(ctx context.Context, id int64) (*repository.VerificationRecord, error)
	List(ctx context.Context, filter repository.RecordFilter) ([]*repository.VerificationRecord, error)
	AggregateStats(ctx context.Context) (*repository.Stats, error)
}

// PartnerSession carries the identifiers of a partner-initiated flow.
type PartnerSession struct {
	UserID        string `json:"user_id,omitempty"`
	Email         string `json:"email,omitempty"`
	SessionID     string `json:"session_id,omitempty"`
	IsRetry       bool   `json:"is_retry,omitempty"`
	PreviousToken string `json:"previous_token,omitempty"`
}

// Active reports whether the session came from the partner flow.
func (p PartnerSession) Active() bool {
	return p.UserID != "" && p.SessionID != ""
}

// Submission is one verification attempt as uploaded by the user.
type Submission struct {
	DocumentType  verification.DocumentType
	Name          string
	Phone         string
	DocumentFront []byte
	DocumentBack  []byte
	Selfie        []byte
	Partner       PartnerSession
}

// Validate checks the required fields for the document type.
func (s Submission) Validate() error {
	switch {
	case strings.TrimSpace(s.Name) == "":
		return fmt.Errorf("%w: name is required", ErrInvalidSubmission)
	case strings.TrimSpace(s.Phone) == "":
		return fmt.Errorf("%w: phone is required", ErrInvalidSubmission)
	case s.DocumentType == "":
		return fmt.Errorf("%w: document type is required", ErrInvalidSubmission)
	case len(s.DocumentFront) == 0:
		return fmt.Errorf("%w: document front image is required", ErrInvalidSubmission)
	case s.DocumentType.RequiresBackImage() && len(s.DocumentBack) == 0:
		return fmt.Errorf("%w: document back image is required for %s", ErrInvalidSubmission, s.DocumentType)
	case len(s.Selfie) == 0:
		return fmt.Errorf("%w: selfie image is required", ErrInvalidSubmission)
	}
	return nil
}

// Result is what the caller gets back from Verify.
type Result struct {
	RecordID              int64                           `json:"record_id"`
	Token                 string                          `json:"token"`
	Status                string                          `json:"status"`
	Verdict               verification.Verdict            `json:"verdict"`
	Confidence            int                             `json:"confidence"`
	ProcessingTime        time.Duration                   `json:"-"`
	EstimatedResponseTime string                          `json:"estimated_response_time"`
	Issues                []string                        `json:"issues"`
	Document              verification.DocumentExtraction `json:"document"`
	Biometric             verification.BiometricResult    `json:"biometric"`
	Partner               PartnerSession                  `json:"partner"`
}

// Options tunes the use case.
type Options struct {
	ReviewQueue   bool
	DecodeTimeout time.Duration
	ResultTTL     time.Duration
	Rand          verification.Rand
}

// VerificationUseCase encapsulates business logic for the verification flow.
type VerificationUseCase struct {
	repo           VerificationRepository
	cache          Cache
	logger         *zap.Logger
	rng            verification.Rand
	reviewQueue    bool
	decodeTimeout  time.Duration
	resultTTL      time.Duration
	now            func() time.Time
	retryAttempts  int
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

// NewVerificationUseCase constructs a new use case instance.
func NewVerificationUseCase(repo VerificationRepository, cache Cache, logger *zap.Logger, opts Options) *VerificationUseCase {
	rng := opts.Rand
	if rng == nil {
		rng = verification.NewTimeSeededRand()
	}
	if cache == nil {
		cache = NopCache{}
	}
	decodeTimeout := opts.DecodeTimeout
	if decodeTimeout <= 0 {
		decodeTimeout = 10 * time.Second
	}
	resultTTL := opts.ResultTTL
	if resultTTL <= 0 {
		resultTTL = 24 * time.Hour
	}
	return &VerificationUseCase{
		repo:           repo,
		cache:          cache,
		logger:         logger.Named("verification_usecase"),
		rng:            verification.NewLockedRand(rng),
		reviewQueue:    opts.ReviewQueue,
		decodeTimeout:  decodeTimeout,
		resultTTL:      resultTTL,
		now:            time.Now,
		retryAttempts:  3,
		initialBackoff: 50 * time.Millisecond,
		maxBackoff:     time.Second,
	}
}

// Verify runs the pipeline for one submission and persists the record.
// Image problems never abort the run; they degrade the affected stage to a
// zero-confidence result and the decision is still made.
func (uc *VerificationUseCase) Verify(ctx context.Context, sub Submission) (*Result, error) {
	requestID := uuid.NewString()
	opLogger := logging.WithOperation(uc.logger, "usecase.verify", requestID)

	if err := sub.Validate(); err != nil {
		return nil, err
	}
	start := uc.now()

	docImg, docErr := uc.decode(ctx, sub.DocumentFront)
	var doc verification.DocumentExtraction
	if docErr != nil {
		opLogger.Warn("document image could not be decoded", zap.Error(docErr))
		doc = verification.FailedExtraction(docErr)
	} else {
		doc = verification.ExtractDocument(uc.rng, docImg, sub.DocumentType, sub.Name)
	}

	selfieImg, selfieErr := uc.decode(ctx, sub.Selfie)
	var bio verification.BiometricResult
	switch {
	case docErr != nil:
		bio = verification.FailedBiometric(docErr)
	case selfieErr != nil:
		opLogger.Warn("selfie image could not be decoded", zap.Error(selfieErr))
		bio = verification.FailedBiometric(selfieErr)
	default:
		matched, err := verification.MatchBiometrics(uc.rng, docImg, selfieImg, sub.Name)
		if err != nil {
			opLogger.Warn("biometric match failed", zap.Error(err))
			matched = verification.FailedBiometric(err)
		}
		bio = matched
	}

	decision := verification.MakeDecision(doc, bio)
	status := string(decision.Verdict)
	if uc.reviewQueue {
		status = StatusPreverified
	}

	createdAt := uc.now().UTC()
	rec := &repository.VerificationRecord{
		CreatedAt:           createdAt,
		PartnerUserID:       sub.Partner.UserID,
		Email:               sub.Partner.Email,
		SessionID:           sub.Partner.SessionID,
		Name:                strings.TrimSpace(sub.Name),
		Phone:               strings.TrimSpace(sub.Phone),
		DocumentType:        string(sub.DocumentType),
		Verdict:             string(decision.Verdict),
		Confidence:          int(math.Round(decision.Confidence * 100)),
		ExtractedName:       doc.Name(),
		DocumentNumber:      doc.DocumentNumber(),
		MatchPercentage:     bio.MatchPercentage,
		Issues:              strings.Join(decision.Issues, issueSeparator),
		ReviewStatus:        repository.ReviewPending,
		EstimatedResponseAt: createdAt.Add(estimatedResponseWindow),
		FromPartner:         sub.Partner.Active(),
	}
	if err := uc.appendWithFreshToken(ctx, rec, decision.Verdict); err != nil {
		wrapped := logging.NewOperationError("usecase.append_record", requestID, err)
		opLogger.Error("failed to persist verification record", zap.Error(wrapped))
		return nil, wrapped
	}
	uc.cacheRecord(ctx, requestID, rec)

	opLogger.Info("verification completed",
		zap.String("token", rec.Token),
		zap.String("verdict", rec.Verdict),
		zap.Int("confidence", rec.Confidence),
		zap.Bool("partner", rec.FromPartner),
	)

	return &Result{
		RecordID:              rec.ID,
		Token:                 rec.Token,
		Status:                status,
		Verdict:               decision.Verdict,
		Confidence:            rec.Confidence,
		ProcessingTime:        uc.now().Sub(start),
		EstimatedResponseTime: estimatedResponseText,
		Issues:                decision.Issues,
		Document:              doc,
		Biometric:             bio,
		Partner:               sub.Partner,
	}, nil
}

// GetResult returns the record for a token, preferring the cache.
func (uc *VerificationUseCase) GetResult(ctx context.Context, token string) (*repository.VerificationRecord, error) {
	opLogger := logging.WithOperation(uc.logger, "usecase.get_result", token)

	cached, err := uc.withRedisGet(ctx, token, "cache.get.result", resultCacheKey(token))
	if err == nil {
		var rec repository.VerificationRecord
		decodeErr := json.Unmarshal([]byte(cached), &rec)
		if decodeErr == nil {
			return &rec, nil
		}
		opLogger.Warn("failed to decode cached result", zap.Error(decodeErr))
	} else if !errors.Is(err, redis.Nil) {
		opLogger.Warn("failed to read cache", zap.Error(err))
	}

	rec, err := uc.repo.FindByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	uc.cacheRecord(ctx, token, rec)
	return rec, nil
}

// ReviewVerification applies an admin review decision to one record.
// Rejections and information requests need a reason.
func (uc *VerificationUseCase) ReviewVerification(ctx context.Context, id int64, status repository.ReviewStatus, reason string) (*repository.VerificationRecord, error) {
	reason = strings.TrimSpace(reason)
	if (status == repository.ReviewRejected || status == repository.ReviewInfoRequested) && reason == "" {
		return nil, ErrReasonRequired
	}

	current, err := uc.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	// The cached copy is dropped on both sides of the update so a reader
	// never sees the previous review state once this call returns.
	if err := uc.invalidateResult(ctx, current.Token); err != nil {
		return nil, err
	}
	rec, err := uc.repo.UpdateReviewState(ctx, id, status, reason)
	if err != nil {
		return nil, err
	}
	if err := uc.invalidateResult(ctx, rec.Token); err != nil {
		return nil, err
	}
	uc.cacheRecord(ctx, rec.Token, rec)
	logging.WithOperation(uc.logger, "usecase.review", rec.Token).Info("review state updated",
		zap.Int64("id", rec.ID),
		zap.String("status", string(status)),
	)
	return rec, nil
}

// ListVerifications returns the records matching filter.
func (uc *VerificationUseCase) ListVerifications(ctx context.Context, filter repository.RecordFilter) ([]*repository.VerificationRecord, error) {
	return uc.repo.List(ctx, filter)
}

func (uc *VerificationUseCase) decode(ctx context.Context, data []byte) (imaging.RawImage, error) {
	decodeCtx, cancel := context.WithTimeout(ctx, uc.decodeTimeout)
	defer cancel()
	return imaging.DecodeContext(decodeCtx, data)
}

func (uc *VerificationUseCase) appendWithFreshToken(ctx context.Context, rec *repository.VerificationRecord, verdict verification.Verdict) error {
	suffix := verification.SuffixFor(verdict, uc.reviewQueue)
	var err error
	for attempt := 0; attempt < tokenAttempts; attempt++ {
		rec.Token = verification.GenerateToken(uc.rng, rec.FromPartner, suffix)
		err = uc.repo.AppendRecord(ctx, rec)
		if !errors.Is(err, repository.ErrDuplicateToken) {
			return err
		}
	}
	return err
}

func (uc *VerificationUseCase) invalidateResult(ctx context.Context, token string) error {
	err := uc.withRedisRetry(ctx, token, "cache.del.result", func() error {
		return uc.cache.Del(ctx, resultCacheKey(token))
	})
	if err != nil {
		logging.WithOperation(uc.logger, "usecase.invalidate_result", token).Error("failed to invalidate cached result", zap.Error(err))
		return err
	}
	return nil
}

// cacheRecord is best effort; the repository stays the source of truth.
func (uc *VerificationUseCase) cacheRecord(ctx context.Context, requestID string, rec *repository.VerificationRecord) {
	serialized, err := json.Marshal(rec)
	if err != nil {
		logging.WithOperation(uc.logger, "usecase.cache_record", requestID).Warn("failed to serialize record", zap.Error(err))
		return
	}
	if err := uc.withRedisRetry(ctx, requestID, "cache.set.result", func() error {
		return uc.cache.Set(ctx, resultCacheKey(rec.Token), string(serialized), uc.resultTTL)
	}); err != nil {
		logging.WithOperation(uc.logger, "usecase.cache_record", requestID).Warn("failed to cache verification record", zap.Error(err))
	}
}

func (uc *VerificationUseCase) withRedisRetry(ctx context.Context, requestID, operation string, fn func() error) error {
	if uc.retryAttempts <= 1 {
		return logging.NewOperationError(operation, requestID, fn())
	}

	backoff := uc.initialBackoff
	opLogger := logging.WithOperation(uc.logger, operation, requestID)
	var err error
	for attempt := 0; attempt < uc.retryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return logging.NewOperationError(operation, requestID, ctx.Err())
			case <-time.After(backoff):
			}
			if next := backoff * 2; next <= uc.maxBackoff {
				backoff = next
			}
		}

		err = fn()
		if err == nil {
			if attempt > 0 {
				opLogger.Info("redis operation succeeded after retry", zap.Int("attempt", attempt+1))
			}
			return nil
		}

		if !logging.IsTransient(err) || attempt == uc.retryAttempts-1 {
			if !errors.Is(err, redis.Nil) {
				opLogger.Error("redis operation failed", zap.Error(err), zap.Int("attempt", attempt+1))
			}
			return logging.NewOperationError(operation, requestID, err)
		}

		opLogger.Warn("transient redis error", zap.Error(err), zap.Int("attempt", attempt+1))
	}
	return logging.NewOperationError(operation, requestID, err)
}

func (uc *VerificationUseCase) withRedisGet(ctx context.Context, requestID, operation, cacheKey string) (string, error) {
	var result string
	err := uc.withRedisRetry(ctx, requestID, operation, func() error {
		value, err := uc.cache.Get(ctx, cacheKey)
		if err != nil {
			return err
		}
		result = value
		return nil
	})
	if err != nil {
		return "", err
	}
	return result, nil
}
