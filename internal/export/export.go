// Package export renders verification records for the admin dashboard as
// CSV and XLSX.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/example/verinex/internal/repository"
)

const sheetName = "Verifications"

// Columns is the header row shared by both formats.
var Columns = []string{
	"Date",
	"Token",
	"Partner User",
	"Email",
	"Session ID",
	"Name",
	"Document Type",
	"Verdict",
	"Confidence",
	"Extracted Name",
	"Document Number",
	"Biometric Match",
	"Observations",
	"Review Status",
	"Review Reason",
}

const notAvailable = "N/A"

// Row flattens one record into the export column order.
func Row(rec *repository.VerificationRecord) []string {
	observations := rec.Issues
	if observations == "" {
		observations = "No observations"
	}
	return []string{
		rec.CreatedAt.UTC().Format(time.RFC3339),
		rec.Token,
		orNA(rec.PartnerUserID),
		orNA(rec.Email),
		orNA(rec.SessionID),
		rec.Name,
		rec.DocumentType,
		rec.Verdict,
		strconv.Itoa(rec.Confidence) + "%",
		orNA(rec.ExtractedName),
		orNA(rec.DocumentNumber),
		strconv.FormatFloat(rec.MatchPercentage, 'f', -1, 64) + "%",
		observations,
		rec.ReviewStatus.Label(),
		rec.ReviewReason,
	}
}

// Service renders record exports.
type Service struct {
	logger *zap.Logger
}

// NewService creates an export service.
func NewService(logger *zap.Logger) *Service {
	return &Service{logger: logger.Named("export")}
}

// CSV writes a header row followed by one line per record.
func (s *Service) CSV(records []*repository.VerificationRecord) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(Columns); err != nil {
		return nil, fmt.Errorf("csv header: %w", err)
	}
	for _, rec := range records {
		if err := w.Write(Row(rec)); err != nil {
			return nil, fmt.Errorf("csv row %d: %w", rec.ID, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("csv flush: %w", err)
	}
	s.logger.Info("export.csv.ok", zap.Int("rows", len(records)))
	return buf.Bytes(), nil
}

// XLSX returns a workbook with one sheet of records.
func (s *Service) XLSX(records []*repository.VerificationRecord) ([]byte, error) {
	start := time.Now()

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	for i, h := range Columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheetName, cell, h); err != nil {
			return nil, fmt.Errorf("xlsx header: %w", err)
		}
	}

	for r, rec := range records {
		row := Row(rec)
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			if err := f.SetCellValue(sheetName, cell, v); err != nil {
				return nil, fmt.Errorf("xlsx row %d: %w", rec.ID, err)
			}
		}
	}

	_ = f.SetColWidth(sheetName, "A", "A", 22) // date
	_ = f.SetColWidth(sheetName, "B", "B", 20) // token
	_ = f.SetColWidth(sheetName, "F", "F", 28) // name
	_ = f.SetColWidth(sheetName, "M", "M", 60) // observations
	_ = f.SetColWidth(sheetName, "O", "O", 40) // reason

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		zap.Int("rows", len(records)),
		zap.Int64("elapsed_ms", time.Since(start).Milliseconds()),
	)
	return buf.Bytes(), nil
}

func orNA(s string) string {
	if s == "" {
		return notAvailable
	}
	return s
}
