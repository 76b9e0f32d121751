package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/vivi-tora/mfc/internal/importer"
	"github.com/vivi-tora/mfc/internal/model"
	"github.com/vivi-tora/mfc/internal/service"
	"github.com/vivi-tora/mfc/internal/validation"
	"github.com/vivi-tora/mfc/pkg/apierror"
	"github.com/vivi-tora/mfc/pkg/response"
)

// MaxItemsPerBatch caps a single submission.
const MaxItemsPerBatch = 5000

// AvailabilityHandler accepts availability batches.
type AvailabilityHandler struct {
	batches   *service.BatchService
	validate  *validator.Validate
	maxUpload int64
}

// NewAvailabilityHandler creates a handler. maxUpload bounds request bodies
// and CSV uploads in bytes.
func NewAvailabilityHandler(batches *service.BatchService, maxUpload int64) *AvailabilityHandler {
	if maxUpload <= 0 {
		maxUpload = 10 << 20
	}
	return &AvailabilityHandler{
		batches:   batches,
		validate:  validation.New(),
		maxUpload: maxUpload,
	}
}

// Item-level rules (JAN format, price, URL) are applied by the submitter
// so a bad item fails alone instead of rejecting the batch.
type submitItem struct {
	JAN       string `json:"jan"`
	Available *bool  `json:"available" validate:"required"`
	Price     int64  `json:"price"`
	URL       string `json:"url"`
	Title     string `json:"title"`
	Vendor    string `json:"vendor"`
}

type submitRequest struct {
	Items        []submitItem `json:"items" validate:"required,min=1,max=5000,dive"`
	SkippedCount int          `json:"skipped_count" validate:"gte=0"`
}

// SubmitResponse is returned when a batch has been started.
type SubmitResponse struct {
	BatchID      string `json:"batch_id"`
	Total        int    `json:"total"`
	SkippedCount int    `json:"skipped_count"`
}

// Submit handles POST /api/v1/availability
func (h *AvailabilityHandler) Submit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(w, apierror.TooLarge("Request body too large"))
			return
		}
		response.Error(w, apierror.BadRequest("Invalid JSON body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.Error(w, validationError(err))
		return
	}

	items := make([]model.Item, len(req.Items))
	for i, it := range req.Items {
		items[i] = model.Item{
			Code:      it.JAN,
			Available: *it.Available,
			Price:     it.Price,
			URL:       it.URL,
			Title:     it.Title,
			Vendor:    it.Vendor,
		}
	}
	h.start(w, r, items, req.SkippedCount)
}

// SubmitCSV handles POST /api/v1/availability/csv with a multipart "file"
// holding a Shopify product export. Any row error rejects the whole upload.
func (h *AvailabilityHandler) SubmitCSV(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)

	file, _, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(w, apierror.TooLarge("Upload too large"))
			return
		}
		response.Error(w, apierror.BadRequest(`Multipart field "file" is required`))
		return
	}
	defer file.Close()

	result, err := importer.Parse(file)
	if err != nil {
		var missing *importer.MissingColumnsError
		switch {
		case errors.Is(err, importer.ErrEmpty):
			response.Error(w, apierror.BadRequest("CSV file is empty"))
		case errors.As(err, &missing):
			details := make([]apierror.FieldError, len(missing.Columns))
			for i, col := range missing.Columns {
				details[i] = apierror.FieldError{Field: col, Message: "required column is missing"}
			}
			response.Error(w, apierror.ValidationError("CSV is missing required columns", details...))
		default:
			response.Error(w, apierror.BadRequest(err.Error()))
		}
		return
	}

	if !result.Valid() {
		details := make([]apierror.FieldError, len(result.Errors))
		for i, rowErr := range result.Errors {
			details[i] = apierror.FieldError{
				Field:   fmt.Sprintf("row %d", rowErr.Row),
				Message: rowErr.Error(),
			}
		}
		response.Error(w, apierror.ValidationError("CSV contains invalid rows", details...))
		return
	}
	if len(result.Items) == 0 {
		response.Error(w, apierror.BadRequest("CSV has no submittable rows"))
		return
	}
	if len(result.Items) > MaxItemsPerBatch {
		response.Error(w, apierror.BadRequest(fmt.Sprintf("CSV has more than %d submittable rows", MaxItemsPerBatch)))
		return
	}

	h.start(w, r, result.Items, result.Skipped)
}

func (h *AvailabilityHandler) start(w http.ResponseWriter, r *http.Request, items []model.Item, skipped int) {
	progress, err := h.batches.Start(r.Context(), items, skipped)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	w.Header().Set("Location", "/api/v1/batches/"+progress.ID)
	response.Accepted(w, SubmitResponse{
		BatchID:      progress.ID,
		Total:        progress.Total,
		SkippedCount: skipped,
	})
}
