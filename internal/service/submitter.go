package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/vivi-tora/mfc/internal/metrics"
	"github.com/vivi-tora/mfc/internal/model"
	"github.com/vivi-tora/mfc/internal/repository"
	"github.com/vivi-tora/mfc/internal/signer"
	"github.com/vivi-tora/mfc/internal/validation"
)

const (
	// DefaultEndpoint is the vendor's availability API.
	DefaultEndpoint = "https://myfigurecollection.net/papi.php?mode=set-availability"

	// DefaultRequestTimeout bounds one vendor call.
	DefaultRequestTimeout = 30 * time.Second

	formContentType = "application/x-www-form-urlencoded"
	maxResponseBody = 1 << 20
)

// SubmitterConfig holds settings for the vendor client.
type SubmitterConfig struct {
	Endpoint   string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Observer receives per-item notifications while a batch runs.
// Either callback may be nil. Callbacks run on the submitting goroutine.
type Observer struct {
	OnProgress func(model.Progress)
	OnOutcome  func(model.Outcome)
}

func (o Observer) progress(p model.Progress) {
	if o.OnProgress != nil {
		o.OnProgress(p)
	}
}

func (o Observer) outcome(out model.Outcome) {
	if o.OnOutcome != nil {
		o.OnOutcome(out)
	}
}

// Submitter sends availability updates to the vendor one item at a time and
// records one log entry per item.
type Submitter struct {
	endpoint string
	timeout  time.Duration
	client   *http.Client
	store    repository.LogRepository
	validate *validator.Validate
	metrics  *metrics.Metrics
}

// NewSubmitter creates a submitter writing to store. m may be nil.
func NewSubmitter(cfg SubmitterConfig, store repository.LogRepository, m *metrics.Metrics) *Submitter {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultRequestTimeout
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	return &Submitter{
		endpoint: cfg.Endpoint,
		timeout:  cfg.Timeout,
		client:   cfg.HTTPClient,
		store:    store,
		validate: validation.New(),
		metrics:  m,
	}
}

// Preflight checks the credentials before any item is touched. A failure is
// recorded in the log store.
func (s *Submitter) Preflight(ctx context.Context, creds signer.Credentials) (*signer.Signer, error) {
	sg, err := signer.New(creds)
	if err != nil {
		s.write(ctx, model.LogEntry{
			Level:   model.LevelError,
			Message: err.Error(),
		})
		return nil, fmt.Errorf("preflight: %w", err)
	}
	return sg, nil
}

// Submit processes items in order. Cancellation of ctx is honored between
// items only; the in-flight request always runs to completion or timeout.
// Items not reached are returned in BatchResult.Skipped.
func (s *Submitter) Submit(ctx context.Context, items []model.Item, creds signer.Credentials, obs Observer) (*model.BatchResult, error) {
	sg, err := s.Preflight(ctx, creds)
	if err != nil {
		return nil, err
	}

	result := &model.BatchResult{Outcomes: make([]model.Outcome, 0, len(items))}
	for i, item := range items {
		if ctx.Err() != nil {
			for _, rest := range items[i:] {
				result.Skipped = append(result.Skipped, rest.Code)
			}
			log.Printf("[Submitter] Cancelled after %d of %d items", i, len(items))
			break
		}

		obs.progress(model.Progress{Index: i, Total: len(items), Code: item.Code})

		out := s.submitItem(ctx, sg, i, item)
		result.Add(out)
		obs.outcome(out)
	}
	return result, nil
}

func (s *Submitter) submitItem(ctx context.Context, sg *signer.Signer, index int, item model.Item) model.Outcome {
	out := model.Outcome{Index: index, Code: item.Code}

	if err := s.validate.Struct(item); err != nil {
		out.Status = model.StatusInvalid
		out.Message = "Invalid item data: " + validation.Describe(err)
		s.metrics.ObserveSubmission(out.Status, 0)
		s.write(ctx, model.LogEntry{
			Level:   model.LevelError,
			Message: "Invalid item data for JAN: " + item.Code,
			Data:    itemData(item, out),
		})
		return out
	}

	body := sg.Body(item.Code, item.Available, item.Price, item.URL)
	reqInfo := model.RequestInfo{
		Method:  http.MethodPost,
		URL:     s.endpoint,
		Headers: map[string]string{"Content-Type": formContentType},
		Body:    body,
	}

	start := time.Now()
	status, raw, err := s.post(ctx, body)
	elapsed := time.Since(start)

	entry := model.LogEntry{Request: reqInfo.Payload()}
	switch {
	case err != nil:
		out.Status, out.Message = classifyTransportError(err, s.timeout)
		entry.Level = model.LevelError
		entry.Message = "Request failed for JAN: " + item.Code

	case status < 200 || status > 299:
		out.Status = model.StatusHTTPError
		out.HTTPStatus = status
		out.Message = fmt.Sprintf("HTTP error! status: %d", status)
		entry.Level = model.LevelError
		entry.Message = "HTTP error for JAN: " + item.Code
		entry.Response = model.ResponseInfo{Status: status, Body: decodeBody(raw)}.Payload()

	default:
		out.HTTPStatus = status
		out.Status, out.Message = classifyVendorResponse(raw)
		entry.Level = model.LevelInfo
		if !out.Succeeded() {
			entry.Level = model.LevelWarn
		}
		entry.Message = "Received response for JAN: " + item.Code
		entry.Response = model.ResponseInfo{Status: status, Body: decodeBody(raw)}.Payload()
	}

	entry.Data = itemData(item, out)
	s.metrics.ObserveSubmission(out.Status, elapsed)
	s.write(ctx, entry)
	return out
}

// post sends one form body on a context detached from the caller's
// cancellation and bounded by the request timeout.
func (s *Submitter) post(ctx context.Context, body string) (int, []byte, error) {
	reqCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, s.endpoint, strings.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", formContentType)
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, raw, nil
}

func (s *Submitter) write(ctx context.Context, entry model.LogEntry) {
	if s.store == nil {
		return
	}
	if err := s.store.Write(context.WithoutCancel(ctx), entry); err != nil {
		s.metrics.LogWriteFailed()
		log.Printf("[Submitter] Failed to write log entry %q: %v", entry.Message, err)
	}
}

type vendorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func classifyVendorResponse(raw []byte) (string, string) {
	var vr vendorResponse
	if err := json.Unmarshal(raw, &vr); err != nil {
		return model.StatusFailed, "invalid vendor response: " + err.Error()
	}
	if vr.Status == "" {
		return model.StatusFailed, "vendor response has no status"
	}
	return vr.Status, vr.Message
}

func classifyTransportError(err error, timeout time.Duration) (string, string) {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return model.StatusTimeout, fmt.Sprintf("request timed out after %s", timeout)
	}
	return model.StatusNetworkError, err.Error()
}

// decodeBody keeps a JSON response as a value and anything else as text.
func decodeBody(raw []byte) any {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(trimmed, &v); err == nil {
		return v
	}
	return string(raw)
}

func itemData(item model.Item, out model.Outcome) model.Payload {
	return model.StructuredPayload(map[string]any{
		"title":     item.Title,
		"jan":       item.Code,
		"available": item.Available,
		"price":     item.Price,
		"vendor":    item.Vendor,
		"url":       item.URL,
		"status":    out.Status,
		"message":   out.Message,
	})
}
