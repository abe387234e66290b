package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/example/verinex/internal/repository"
	"github.com/example/verinex/internal/verification"
)

type stubCache struct {
	setErrs   []error
	getErrs   []error
	getValues []string
	setKeys   []string
	setValues []string
	getKeys   []string
	delErrs   []error
	delKeys   []string
}

func (s *stubCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	s.setKeys = append(s.setKeys, key)
	if v, ok := value.(string); ok {
		s.setValues = append(s.setValues, v)
	}
	if len(s.setErrs) == 0 {
		return nil
	}
	err := s.setErrs[0]
	s.setErrs = s.setErrs[1:]
	return err
}

func (s *stubCache) Get(ctx context.Context, key string) (string, error) {
	s.getKeys = append(s.getKeys, key)
	var value string
	if len(s.getValues) > 0 {
		value = s.getValues[0]
		s.getValues = s.getValues[1:]
	}
	var err error
	if len(s.getErrs) > 0 {
		err = s.getErrs[0]
		s.getErrs = s.getErrs[1:]
	}
	return value, err
}

func (s *stubCache) Del(ctx context.Context, key string) error {
	s.delKeys = append(s.delKeys, key)
	if len(s.delErrs) == 0 {
		return nil
	}
	err := s.delErrs[0]
	s.delErrs = s.delErrs[1:]
	return err
}

// mapCache keeps values like Redis would so reads observe earlier writes.
type mapCache struct {
	values map[string]string
	setErr error
	delErr error
}

func newMapCache() *mapCache {
	return &mapCache{values: make(map[string]string)}
}

func (m *mapCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.values[key] = value.(string)
	return nil
}

func (m *mapCache) Get(ctx context.Context, key string) (string, error) {
	v, ok := m.values[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (m *mapCache) Del(ctx context.Context, key string) error {
	if m.delErr != nil {
		return m.delErr
	}
	delete(m.values, key)
	return nil
}

type transientRedisError struct{}

func (transientRedisError) Error() string   { return "redis transient" }
func (transientRedisError) Timeout() bool   { return true }
func (transientRedisError) Temporary() bool { return true }

type failingRepository struct {
	*repository.MemoryStore
	appendErr error
}

func (f *failingRepository) AppendRecord(ctx context.Context, rec *repository.VerificationRecord) error {
	return f.appendErr
}

func checkerPNG(t *testing.T, size int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			c := color.NRGBA{A: 255}
			if (x+y)%2 == 0 {
				c.R, c.G, c.B = 255, 255, 255
			}
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	return buf.Bytes()
}

func newTestUseCase(repo VerificationRepository, cache Cache, reviewQueue bool) *VerificationUseCase {
	uc := NewVerificationUseCase(repo, cache, zap.NewNop(), Options{
		ReviewQueue: reviewQueue,
		Rand:        verification.NewRand(42),
	})
	uc.initialBackoff = time.Millisecond
	uc.maxBackoff = 2 * time.Millisecond
	return uc
}

func validSubmission(t *testing.T) Submission {
	img := checkerPNG(t, 16)
	return Submission{
		DocumentType:  verification.DocumentDNI,
		Name:          "Ana Garcia",
		Phone:         "+34 600 000 000",
		DocumentFront: img,
		DocumentBack:  img,
		Selfie:        img,
	}
}

func TestVerifyApprovesAndPersists(t *testing.T) {
	store := repository.NewMemoryStore()
	cache := &stubCache{}
	uc := newTestUseCase(store, cache, false)

	res, err := uc.Verify(context.Background(), validSubmission(t))
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if res.Verdict != verification.VerdictApproved || res.Status != "approved" {
		t.Fatalf("expected approved, got verdict=%s status=%s", res.Verdict, res.Status)
	}
	if !verification.TokenPattern.MatchString(res.Token) || !strings.HasPrefix(res.Token, "VER-DI-") || !strings.HasSuffix(res.Token, "-OK") {
		t.Fatalf("unexpected token %q", res.Token)
	}
	if len(res.Issues) != 0 {
		t.Fatalf("expected no issues, got %v", res.Issues)
	}
	if res.Document.Name() != "ANA GARCIA" || res.Document.NameMatchStatus != verification.NameMatch {
		t.Fatalf("unexpected extraction: %+v", res.Document)
	}
	if res.Confidence < 80 || res.Confidence > 100 {
		t.Fatalf("unexpected confidence %d", res.Confidence)
	}

	rec, err := store.FindByToken(context.Background(), res.Token)
	if err != nil {
		t.Fatalf("expected record to be stored: %v", err)
	}
	if rec.ReviewStatus != repository.ReviewPending || rec.ID != res.RecordID {
		t.Fatalf("unexpected stored record: %+v", rec)
	}
	if !rec.EstimatedResponseAt.Equal(rec.CreatedAt.Add(24 * time.Hour)) {
		t.Fatalf("expected response estimate 24h after creation")
	}
	if len(cache.setKeys) != 1 || cache.setKeys[0] != "verification:"+res.Token {
		t.Fatalf("expected result to be cached, got keys %v", cache.setKeys)
	}
}

func TestVerifyReviewQueuePartnerToken(t *testing.T) {
	store := repository.NewMemoryStore()
	uc := newTestUseCase(store, &stubCache{}, true)

	sub := validSubmission(t)
	sub.Partner = PartnerSession{UserID: "u-1", SessionID: "s-1", Email: "a@example.com"}

	res, err := uc.Verify(context.Background(), sub)
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if res.Status != StatusPreverified {
		t.Fatalf("expected preverified status, got %s", res.Status)
	}
	if !strings.HasPrefix(res.Token, "VER-XK-") || !strings.HasSuffix(res.Token, "-PRE") {
		t.Fatalf("unexpected token %q", res.Token)
	}

	rec, err := store.FindByToken(context.Background(), res.Token)
	if err != nil {
		t.Fatalf("expected stored record: %v", err)
	}
	if !rec.FromPartner || rec.Email != "a@example.com" {
		t.Fatalf("expected partner record, got %+v", rec)
	}
}

func TestVerifyAbsorbsDecodeFailures(t *testing.T) {
	store := repository.NewMemoryStore()
	uc := newTestUseCase(store, &stubCache{}, false)

	sub := validSubmission(t)
	sub.DocumentFront = []byte("not an image")

	res, err := uc.Verify(context.Background(), sub)
	if err != nil {
		t.Fatalf("decode failure must not abort the pipeline: %v", err)
	}
	if res.Document.Confidence != 0 || res.Document.Error == "" {
		t.Fatalf("expected zero-confidence extraction with error, got %+v", res.Document)
	}
	if res.Biometric.MatchPercentage != 0 || res.Biometric.Error == "" {
		t.Fatalf("expected failed biometric result, got %+v", res.Biometric)
	}
	if res.Verdict != verification.VerdictRejected || !strings.HasSuffix(res.Token, "-REJ") {
		t.Fatalf("expected rejection, got %s (%s)", res.Verdict, res.Token)
	}
	want := []string{verification.IssueDocumentQuality, verification.IssueLivenessPending, verification.IssueBiometricMismatch}
	if strings.Join(res.Issues, "|") != strings.Join(want, "|") {
		t.Fatalf("unexpected issues %v", res.Issues)
	}
	if res.Confidence != 60 {
		t.Fatalf("expected floored confidence 60, got %d", res.Confidence)
	}
}

func TestVerifySelfieDecodeFailureKeepsDocument(t *testing.T) {
	uc := newTestUseCase(repository.NewMemoryStore(), &stubCache{}, false)

	sub := validSubmission(t)
	sub.Selfie = []byte{0x89, 'P', 'N', 'G'}

	res, err := uc.Verify(context.Background(), sub)
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if res.Document.Confidence < 0.85 {
		t.Fatalf("expected document extraction to succeed, got %+v", res.Document)
	}
	if res.Biometric.Error == "" || res.Verdict != verification.VerdictRejected {
		t.Fatalf("expected rejected biometric failure, got %+v %s", res.Biometric, res.Verdict)
	}
}

func TestVerifyValidatesSubmission(t *testing.T) {
	uc := newTestUseCase(repository.NewMemoryStore(), &stubCache{}, false)

	sub := validSubmission(t)
	sub.DocumentBack = nil
	if _, err := uc.Verify(context.Background(), sub); !errors.Is(err, ErrInvalidSubmission) {
		t.Fatalf("expected ErrInvalidSubmission for missing back image, got %v", err)
	}

	sub.DocumentType = verification.DocumentPassport
	if _, err := uc.Verify(context.Background(), sub); err != nil {
		t.Fatalf("passport should not need a back image: %v", err)
	}

	sub.Phone = "  "
	if _, err := uc.Verify(context.Background(), sub); !errors.Is(err, ErrInvalidSubmission) {
		t.Fatalf("expected ErrInvalidSubmission for missing phone, got %v", err)
	}
}

func TestVerifyRetriesRedisSet(t *testing.T) {
	cache := &stubCache{setErrs: []error{transientRedisError{}}}
	uc := newTestUseCase(repository.NewMemoryStore(), cache, false)

	if _, err := uc.Verify(context.Background(), validSubmission(t)); err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if len(cache.setKeys) != 2 {
		t.Fatalf("expected 2 cache set calls (retry), got %d", len(cache.setKeys))
	}
	if cache.setKeys[0] != cache.setKeys[1] {
		t.Fatalf("expected retry to target same key, got %s and %s", cache.setKeys[0], cache.setKeys[1])
	}
}

func TestVerifyReturnsOperationErrorOnPersistFailure(t *testing.T) {
	repo := &failingRepository{MemoryStore: repository.NewMemoryStore(), appendErr: errors.New("disk full")}
	uc := newTestUseCase(repo, &stubCache{}, false)

	_, err := uc.Verify(context.Background(), validSubmission(t))
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "usecase.append_record") {
		t.Fatalf("expected operation in error, got %v", err)
	}
}

func TestGetResultFallsBackToRepositoryWhenCacheMiss(t *testing.T) {
	store := repository.NewMemoryStore()
	rec := &repository.VerificationRecord{Token: "VER-DI-AB12-OK", Name: "from-db"}
	if err := store.AppendRecord(context.Background(), rec); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	cache := &stubCache{getErrs: []error{redis.Nil}}
	uc := newTestUseCase(store, cache, false)

	got, err := uc.GetResult(context.Background(), "VER-DI-AB12-OK")
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if got.Name != "from-db" {
		t.Fatalf("unexpected record %+v", got)
	}
	if len(cache.setKeys) != 1 {
		t.Fatalf("expected cache to be refilled, got %d sets", len(cache.setKeys))
	}
}

func TestGetResultUsesCache(t *testing.T) {
	payload, _ := json.Marshal(repository.VerificationRecord{Token: "VER-XK-ZZ99-PRE", Name: "cached"})
	cache := &stubCache{getValues: []string{string(payload)}}
	uc := newTestUseCase(repository.NewMemoryStore(), cache, false)

	got, err := uc.GetResult(context.Background(), "VER-XK-ZZ99-PRE")
	if err != nil {
		t.Fatalf("expected cache hit, got error: %v", err)
	}
	if got.Name != "cached" {
		t.Fatalf("unexpected record %+v", got)
	}
}

func TestGetResultUnknownToken(t *testing.T) {
	uc := newTestUseCase(repository.NewMemoryStore(), NopCache{}, false)
	if _, err := uc.GetResult(context.Background(), "VER-DI-0000-OK"); !errors.Is(err, repository.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
}

func TestReviewVerification(t *testing.T) {
	store := repository.NewMemoryStore()
	cache := &stubCache{}
	uc := newTestUseCase(store, cache, false)

	res, err := uc.Verify(context.Background(), validSubmission(t))
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}

	if _, err := uc.ReviewVerification(context.Background(), res.RecordID, repository.ReviewRejected, " "); !errors.Is(err, ErrReasonRequired) {
		t.Fatalf("expected ErrReasonRequired, got %v", err)
	}

	rec, err := uc.ReviewVerification(context.Background(), res.RecordID, repository.ReviewInfoRequested, "back side is cropped")
	if err != nil {
		t.Fatalf("review failed: %v", err)
	}
	if rec.ReviewStatus != repository.ReviewInfoRequested || rec.ReviewedAt == nil {
		t.Fatalf("unexpected reviewed record %+v", rec)
	}
	last := cache.setValues[len(cache.setValues)-1]
	if !strings.Contains(last, `"review_status":"info_requested"`) {
		t.Fatalf("expected cache refresh with new status, got %s", last)
	}
	wantKey := resultCacheKey(res.Token)
	if len(cache.delKeys) != 2 || cache.delKeys[0] != wantKey || cache.delKeys[1] != wantKey {
		t.Fatalf("expected the cached result to be dropped before and after the update, got %v", cache.delKeys)
	}

	if _, err := uc.ReviewVerification(context.Background(), res.RecordID+1, repository.ReviewApproved, ""); !errors.Is(err, repository.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
}

func TestReviewVerificationDoesNotLeaveStaleCache(t *testing.T) {
	store := repository.NewMemoryStore()
	cache := newMapCache()
	uc := newTestUseCase(store, cache, false)
	ctx := context.Background()

	res, err := uc.Verify(ctx, validSubmission(t))
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if _, ok := cache.values[resultCacheKey(res.Token)]; !ok {
		t.Fatal("expected verify to cache the result")
	}

	cache.setErr = errors.New("redis write refused")
	if _, err := uc.ReviewVerification(ctx, res.RecordID, repository.ReviewRejected, "document expired"); err != nil {
		t.Fatalf("review failed: %v", err)
	}

	got, err := uc.GetResult(ctx, res.Token)
	if err != nil {
		t.Fatalf("get result failed: %v", err)
	}
	if got.ReviewStatus != repository.ReviewRejected || got.ReviewReason != "document expired" {
		t.Fatalf("expected the reviewed state, got status=%s reason=%q", got.ReviewStatus, got.ReviewReason)
	}
}

func TestReviewVerificationFailsWhenCacheCannotBeInvalidated(t *testing.T) {
	store := repository.NewMemoryStore()
	cache := newMapCache()
	uc := newTestUseCase(store, cache, false)
	ctx := context.Background()

	res, err := uc.Verify(ctx, validSubmission(t))
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}

	cache.delErr = errors.New("redis unavailable")
	_, err = uc.ReviewVerification(ctx, res.RecordID, repository.ReviewApproved, "")
	if err == nil || !strings.Contains(err.Error(), "cache.del.result") {
		t.Fatalf("expected invalidation error, got %v", err)
	}

	rec, err := store.FindByID(ctx, res.RecordID)
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if rec.ReviewStatus != repository.ReviewPending {
		t.Fatalf("expected review to be skipped, got %s", rec.ReviewStatus)
	}
}

func TestGetStats(t *testing.T) {
	store := repository.NewMemoryStore()
	uc := newTestUseCase(store, NopCache{}, false)
	ctx := context.Background()

	var ids []int64
	for i := 0; i < 3; i++ {
		res, err := uc.Verify(ctx, validSubmission(t))
		if err != nil {
			t.Fatalf("verify failed: %v", err)
		}
		ids = append(ids, res.RecordID)
	}
	if _, err := uc.ReviewVerification(ctx, ids[0], repository.ReviewApproved, ""); err != nil {
		t.Fatalf("review failed: %v", err)
	}
	if _, err := uc.ReviewVerification(ctx, ids[1], repository.ReviewRejected, "mismatch"); err != nil {
		t.Fatalf("review failed: %v", err)
	}

	stats, err := uc.GetStats(ctx)
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.Total != 3 || stats.Pending != 1 || stats.Approved != 1 || stats.Rejected != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if stats.ApprovalRate != 0.5 {
		t.Fatalf("expected approval rate 0.5, got %v", stats.ApprovalRate)
	}
}
