package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/verinex/internal/auth"
	"github.com/example/verinex/internal/export"
	"github.com/example/verinex/internal/repository"
	"github.com/example/verinex/internal/usecase"
	"github.com/example/verinex/internal/verification"
)

const (
	// MaxDocumentSize caps each document image.
	MaxDocumentSize = 15 << 20
	// MaxSelfieSize caps the selfie image.
	MaxSelfieSize = 10 << 20
	// MaxUploadSize caps the whole multipart body: two document sides, the
	// selfie and room for the text fields.
	MaxUploadSize = 2*MaxDocumentSize + MaxSelfieSize + 1<<20

	dateLayout      = "2006-01-02"
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var allowedImageTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/jpg":  {},
	"image/png":  {},
	"image/webp": {},
}

var (
	errFileTooLarge    = errors.New("file too large")
	errUnsupportedType = errors.New("unsupported content type")
	errBadFilter       = errors.New("invalid filter")
)

// Handler serves the public and admin HTTP API.
type Handler struct {
	uc       *usecase.VerificationUseCase
	exporter *export.Service
	issuer   *auth.Issuer
	logger   *zap.Logger
}

// New creates a Handler.
func New(uc *usecase.VerificationUseCase, exporter *export.Service, issuer *auth.Issuer, logger *zap.Logger) *Handler {
	return &Handler{uc: uc, exporter: exporter, issuer: issuer, logger: logger.Named("http")}
}

// RegisterRoutes wires the HTTP handlers to the Gin router.
func RegisterRoutes(router *gin.Engine, h *Handler, authMiddleware gin.HandlerFunc) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.POST("/verify", h.verify)
	router.GET("/result/:token", h.result)
	router.POST("/admin/login", h.login)

	admin := router.Group("/admin", authMiddleware)
	admin.GET("/verifications", h.listVerifications)
	admin.GET("/stats", h.stats)
	admin.POST("/verifications/:id/review", h.review)
	admin.GET("/export.csv", h.exportCSV)
	admin.GET("/export.xlsx", h.exportXLSX)
}

type verifyResponse struct {
	*usecase.Result
	ProcessingTimeMS int64 `json:"processing_time_ms"`
}

func (h *Handler) verify(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxUploadSize)
	form, err := c.MultipartForm()
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "upload too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart form required"})
		return
	}

	docType, err := verification.ParseDocumentType(formValue(form, "document_type"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sub := usecase.Submission{
		DocumentType: docType,
		Name:         formValue(form, "name"),
		Phone:        formValue(form, "phone"),
		Partner: usecase.PartnerSession{
			UserID:        formValue(form, "user_id"),
			Email:         formValue(form, "email"),
			SessionID:     formValue(form, "session_id"),
			PreviousToken: formValue(form, "previous_token"),
		},
	}
	if retry := formValue(form, "retry"); retry != "" {
		sub.Partner.IsRetry, _ = strconv.ParseBool(retry)
	}

	uploads := []struct {
		field string
		limit int64
		dst   *[]byte
	}{
		{"document_front", MaxDocumentSize, &sub.DocumentFront},
		{"document_back", MaxDocumentSize, &sub.DocumentBack},
		{"selfie", MaxSelfieSize, &sub.Selfie},
	}
	for _, u := range uploads {
		data, err := readImage(form, u.field, u.limit)
		switch {
		case errors.Is(err, errFileTooLarge):
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error()})
			return
		case errors.Is(err, errUnsupportedType):
			c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": err.Error()})
			return
		case err != nil:
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		*u.dst = data
	}

	result, err := h.uc.Verify(c.Request.Context(), sub)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, verifyResponse{
		Result:           result,
		ProcessingTimeMS: result.ProcessingTime.Milliseconds(),
	})
}

func (h *Handler) result(c *gin.Context) {
	token := strings.ToUpper(strings.TrimSpace(c.Param("token")))
	if !verification.TokenPattern.MatchString(token) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid token format"})
		return
	}

	rec, err := h.uc.GetResult(c.Request.Context(), token)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

type loginRequest struct {
	Password string `json:"password"`
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	token, expiresAt, err := h.issuer.Login(req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidPassword) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "incorrect password"})
			return
		}
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "expires_at": expiresAt.UTC()})
}

func (h *Handler) listVerifications(c *gin.Context) {
	filter, err := parseFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	records, err := h.uc.ListVerifications(c.Request.Context(), filter)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": records, "count": len(records)})
}

func (h *Handler) stats(c *gin.Context) {
	summary, err := h.uc.GetStats(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

type reviewRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

func (h *Handler) review(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	status, err := repository.ParseReviewStatus(req.Status)
	if err != nil {
		h.writeError(c, err)
		return
	}

	rec, err := h.uc.ReviewVerification(c.Request.Context(), id, status, req.Reason)
	if err != nil {
		h.writeError(c, err)
		return
	}
	admin, _ := auth.GetAdmin(c.Request.Context())
	h.logger.Info("review updated",
		zap.Int64("id", id),
		zap.String("status", string(status)),
		zap.String("admin", admin),
	)
	c.JSON(http.StatusOK, rec)
}

func (h *Handler) exportCSV(c *gin.Context) {
	h.export(c, "csv", "text/csv; charset=utf-8", h.exporter.CSV)
}

func (h *Handler) exportXLSX(c *gin.Context) {
	h.export(c, "xlsx", xlsxContentType, h.exporter.XLSX)
}

func (h *Handler) export(c *gin.Context, ext, contentType string, render func([]*repository.VerificationRecord) ([]byte, error)) {
	filter, err := parseFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	records, err := h.uc.ListVerifications(c.Request.Context(), filter)
	if err != nil {
		h.writeError(c, err)
		return
	}
	data, err := render(records)
	if err != nil {
		h.writeError(c, err)
		return
	}

	filename := fmt.Sprintf("verifications-%s.%s", time.Now().UTC().Format(dateLayout), ext)
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, contentType, data)
}

func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, usecase.ErrInvalidSubmission),
		errors.Is(err, usecase.ErrReasonRequired),
		errors.Is(err, repository.ErrInvalidReviewStatus):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, repository.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "verification not found"})
	default:
		h.logger.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func parseFilter(c *gin.Context) (repository.RecordFilter, error) {
	var filter repository.RecordFilter

	if status := c.Query("status"); status != "" && status != "all" {
		parsed, err := repository.ParseReviewStatus(status)
		if err != nil {
			return filter, err
		}
		filter.Status = parsed
	}

	if date := c.Query("date"); date != "" {
		day, err := time.Parse(dateLayout, date)
		if err != nil {
			return filter, fmt.Errorf("%w: date must be YYYY-MM-DD", errBadFilter)
		}
		filter.Day = &day
	}

	switch client := repository.ClientFilter(c.DefaultQuery("client", string(repository.ClientAll))); client {
	case repository.ClientAll, repository.ClientPartner, repository.ClientDirect:
		filter.Client = client
	default:
		return filter, fmt.Errorf("%w: client must be all, partner or direct", errBadFilter)
	}
	return filter, nil
}

func formValue(form *multipart.Form, key string) string {
	if values := form.Value[key]; len(values) > 0 {
		return strings.TrimSpace(values[0])
	}
	return ""
}

// readImage returns nil without error when the field is absent; the use
// case decides which images are mandatory.
func readImage(form *multipart.Form, field string, limit int64) ([]byte, error) {
	files := form.File[field]
	if len(files) == 0 {
		return nil, nil
	}
	header := files[0]
	if header.Size > limit {
		return nil, fmt.Errorf("%w: %s exceeds %d MB", errFileTooLarge, field, limit>>20)
	}

	mediaType, _, err := mime.ParseMediaType(header.Header.Get("Content-Type"))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", errUnsupportedType, field)
	}
	if _, ok := allowedImageTypes[strings.ToLower(mediaType)]; !ok {
		return nil, fmt.Errorf("%w: %s has type %s", errUnsupportedType, field, mediaType)
	}

	src, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", field, err)
	}
	defer src.Close()

	data, err := io.ReadAll(io.LimitReader(src, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", field, err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: %s exceeds %d MB", errFileTooLarge, field, limit>>20)
	}
	return data, nil
}
