package repository

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrRecordNotFound is returned when no record matches the lookup.
	ErrRecordNotFound = errors.New("verification record not found")
	// ErrInvalidReviewStatus is returned for an unknown review status.
	ErrInvalidReviewStatus = errors.New("invalid review status")
	// ErrDuplicateToken is returned when a token is already taken.
	ErrDuplicateToken = errors.New("verification token already exists")
)

// ReviewStatus is the human review state attached to a record.
type ReviewStatus string

const (
	ReviewPending       ReviewStatus = "pending"
	ReviewApproved      ReviewStatus = "approved"
	ReviewRejected      ReviewStatus = "rejected"
	ReviewInfoRequested ReviewStatus = "info_requested"
)

// ParseReviewStatus accepts the stored form or the dashboard label.
func ParseReviewStatus(s string) (ReviewStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pending", "pending review":
		return ReviewPending, nil
	case "approved":
		return ReviewApproved, nil
	case "rejected":
		return ReviewRejected, nil
	case "info_requested", "information required", "inforequested":
		return ReviewInfoRequested, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidReviewStatus, s)
	}
}

// Label is the dashboard wording for the status.
func (s ReviewStatus) Label() string {
	switch s {
	case ReviewPending:
		return "Pending Review"
	case ReviewApproved:
		return "Approved"
	case ReviewRejected:
		return "Rejected"
	case ReviewInfoRequested:
		return "Information Required"
	default:
		return string(s)
	}
}

// VerificationRecord is one persisted verification attempt.
type VerificationRecord struct {
	ID                  int64        `gorm:"primaryKey;autoIncrement:false" json:"id"`
	CreatedAt           time.Time    `gorm:"column:created_at;index" json:"created_at"`
	Token               string       `gorm:"column:token;uniqueIndex;size:32" json:"token"`
	PartnerUserID       string       `gorm:"column:partner_user_id;size:128" json:"partner_user_id,omitempty"`
	Email               string       `gorm:"column:email;size:255" json:"email,omitempty"`
	SessionID           string       `gorm:"column:session_id;size:128" json:"session_id,omitempty"`
	Name                string       `gorm:"column:name;size:255" json:"name"`
	Phone               string       `gorm:"column:phone;size:64" json:"phone"`
	DocumentType        string       `gorm:"column:document_type;size:32" json:"document_type"`
	Verdict             string       `gorm:"column:verdict;size:16" json:"verdict"`
	Confidence          int          `gorm:"column:confidence" json:"confidence"`
	ExtractedName       string       `gorm:"column:extracted_name;size:255" json:"extracted_name"`
	DocumentNumber      string       `gorm:"column:document_number;size:32" json:"document_number"`
	MatchPercentage     float64      `gorm:"column:match_percentage" json:"match_percentage"`
	Issues              string       `gorm:"column:issues;type:text" json:"issues"`
	ReviewStatus        ReviewStatus `gorm:"column:review_status;size:32;index" json:"review_status"`
	ReviewReason        string       `gorm:"column:review_reason;type:text" json:"review_reason,omitempty"`
	ReviewedAt          *time.Time   `gorm:"column:reviewed_at" json:"reviewed_at,omitempty"`
	EstimatedResponseAt time.Time    `gorm:"column:estimated_response_at" json:"estimated_response_at"`
	FromPartner         bool         `gorm:"column:from_partner;index" json:"from_partner"`
}

// TableName overrides the default table name.
func (VerificationRecord) TableName() string {
	return "verification_records"
}

// ClientFilter narrows records by where the session came from.
type ClientFilter string

const (
	ClientAll     ClientFilter = "all"
	ClientPartner ClientFilter = "partner"
	ClientDirect  ClientFilter = "direct"
)

// RecordFilter selects records for the admin listing. Zero values match
// everything.
type RecordFilter struct {
	Status ReviewStatus
	Day    *time.Time
	Client ClientFilter
}

// Matches applies the filter to a single record.
func (f RecordFilter) Matches(rec *VerificationRecord) bool {
	if f.Status != "" && rec.ReviewStatus != f.Status {
		return false
	}
	if f.Day != nil {
		start, end := dayBounds(*f.Day)
		created := rec.CreatedAt.UTC()
		if created.Before(start) || !created.Before(end) {
			return false
		}
	}
	switch f.Client {
	case ClientPartner:
		return rec.FromPartner
	case ClientDirect:
		return !rec.FromPartner
	}
	return true
}

// Stats summarises the review queue.
type Stats struct {
	Total             int64   `json:"total"`
	Pending           int64   `json:"pending"`
	Approved          int64   `json:"approved"`
	Rejected          int64   `json:"rejected"`
	InfoRequested     int64   `json:"info_requested"`
	Partner           int64   `json:"partner"`
	AverageConfidence float64 `json:"average_confidence"`
}

func dayBounds(day time.Time) (time.Time, time.Time) {
	d := day.UTC()
	start := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.Add(24 * time.Hour)
}

// nextID derives a millisecond timestamp id that is strictly greater than
// the last issued id.
func nextID(now time.Time, last int64) int64 {
	id := now.UnixMilli()
	if id <= last {
		id = last + 1
	}
	return id
}
