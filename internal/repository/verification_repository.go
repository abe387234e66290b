package repository

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// VerificationRepository persists verification records with gorm.
type VerificationRepository struct {
	db *gorm.DB
	retryPolicy
	now func() time.Time
}

// NewVerificationRepository creates a new repository instance.
func NewVerificationRepository(db *gorm.DB, logger *zap.Logger) *VerificationRepository {
	return &VerificationRepository{
		db:          db,
		retryPolicy: defaultRetryPolicy(logger.Named("verification_repository")),
		now:         time.Now,
	}
}

// AutoMigrate ensures the schema is available.
func (r *VerificationRepository) AutoMigrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&VerificationRecord{})
}

// AppendRecord assigns the next id and inserts rec. The table lock keeps ids
// strictly increasing across concurrent writers.
func (r *VerificationRepository) AppendRecord(ctx context.Context, rec *VerificationRecord) error {
	return r.executeWithRetry(ctx, "repository.append_record", rec.Token, func() error {
		return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Exec("LOCK TABLE verification_records IN SHARE ROW EXCLUSIVE MODE").Error; err != nil {
				return err
			}
			var last int64
			if err := tx.Model(&VerificationRecord{}).Select("COALESCE(MAX(id), 0)").Scan(&last).Error; err != nil {
				return err
			}
			if rec.CreatedAt.IsZero() {
				rec.CreatedAt = r.now().UTC()
			}
			if rec.ReviewStatus == "" {
				rec.ReviewStatus = ReviewPending
			}
			rec.ID = nextID(rec.CreatedAt, last)
			if err := tx.Create(rec).Error; err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					return ErrDuplicateToken
				}
				return err
			}
			return nil
		})
	})
}

// UpdateReviewState records a human review decision on one record.
func (r *VerificationRepository) UpdateReviewState(ctx context.Context, id int64, status ReviewStatus, reason string) (*VerificationRecord, error) {
	var rec VerificationRecord
	err := r.executeWithRetry(ctx, "repository.update_review_state", "", func() error {
		return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.First(&rec, "id = ?", id).Error; err != nil {
				return mapNotFound(err)
			}
			reviewedAt := r.now().UTC()
			rec.ReviewStatus = status
			rec.ReviewReason = reason
			rec.ReviewedAt = &reviewedAt
			return tx.Model(&rec).Updates(map[string]any{
				"review_status": status,
				"review_reason": reason,
				"reviewed_at":   reviewedAt,
			}).Error
		})
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// FindByToken retrieves a record by its verification token.
func (r *VerificationRepository) FindByToken(ctx context.Context, token string) (*VerificationRecord, error) {
	var rec VerificationRecord
	err := r.executeWithRetry(ctx, "repository.find_by_token", token, func() error {
		return mapNotFound(r.db.WithContext(ctx).First(&rec, "token = ?", token).Error)
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// FindByID retrieves a record by id.
func (r *VerificationRepository) FindByID(ctx context.Context, id int64) (*VerificationRecord, error) {
	var rec VerificationRecord
	err := r.executeWithRetry(ctx, "repository.find_by_id", "", func() error {
		return mapNotFound(r.db.WithContext(ctx).First(&rec, "id = ?", id).Error)
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// List returns the records matching filter in id order.
func (r *VerificationRepository) List(ctx context.Context, filter RecordFilter) ([]*VerificationRecord, error) {
	var records []*VerificationRecord
	err := r.executeWithRetry(ctx, "repository.list", "", func() error {
		q := r.db.WithContext(ctx).Model(&VerificationRecord{})
		if filter.Status != "" {
			q = q.Where("review_status = ?", filter.Status)
		}
		if filter.Day != nil {
			start, end := dayBounds(*filter.Day)
			q = q.Where("created_at >= ? AND created_at < ?", start, end)
		}
		switch filter.Client {
		case ClientPartner:
			q = q.Where("from_partner = ?", true)
		case ClientDirect:
			q = q.Where("from_partner = ?", false)
		}
		return q.Order("id ASC").Find(&records).Error
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// AggregateStats counts records per review status.
func (r *VerificationRepository) AggregateStats(ctx context.Context) (*Stats, error) {
	var stats Stats
	err := r.executeWithRetry(ctx, "repository.aggregate_stats", "", func() error {
		return r.db.WithContext(ctx).Model(&VerificationRecord{}).Select(`
			COUNT(*) AS total,
			COALESCE(SUM(CASE WHEN review_status = ? THEN 1 ELSE 0 END), 0) AS pending,
			COALESCE(SUM(CASE WHEN review_status = ? THEN 1 ELSE 0 END), 0) AS approved,
			COALESCE(SUM(CASE WHEN review_status = ? THEN 1 ELSE 0 END), 0) AS rejected,
			COALESCE(SUM(CASE WHEN review_status = ? THEN 1 ELSE 0 END), 0) AS info_requested,
			COALESCE(SUM(CASE WHEN from_partner THEN 1 ELSE 0 END), 0) AS partner,
			COALESCE(AVG(confidence), 0) AS average_confidence`,
			ReviewPending, ReviewApproved, ReviewRejected, ReviewInfoRequested,
		).Scan(&stats).Error
	})
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

func mapNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrRecordNotFound
	}
	return err
}
