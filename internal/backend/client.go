// Package backend is the REST client for the interview service's HTTP
// surface: interview history, aggregate stats, analytics, resume upload,
// and result downloads.
//
// Read endpoints degrade gracefully: a failed or non-OK analytics call
// returns an empty payload and no error, because the dashboards they feed
// are best-effort. Mutating calls (resume upload) report their errors.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

const defaultTimeout = 10 * time.Second

// Option configures a [Client].
type Option func(*Client)

// WithHTTPClient overrides the HTTP client, mainly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// Client talks to the interview backend's REST API.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a Client rooted at baseURL (no trailing slash).
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// InterviewRecord is one historical interview row.
type InterviewRecord struct {
	SessionID string    `json:"session_id"`
	Mode      string    `json:"mode"`
	Score     float64   `json:"score"`
	Questions int       `json:"questions"`
	CreatedAt time.Time `json:"created_at"`
}

// InterviewPage is one page of interview history.
type InterviewPage struct {
	Interviews []InterviewRecord `json:"interviews"`
	Total      int               `json:"total"`
	Page       int               `json:"page"`
	PageSize   int               `json:"page_size"`
}

// ListFilter narrows and pages an interview history query. Zero values
// mean "no filter" / backend defaults.
type ListFilter struct {
	Mode     string
	Page     int
	PageSize int
}

// ListInterviews fetches one page of interview history.
func (c *Client) ListInterviews(ctx context.Context, f ListFilter) (InterviewPage, error) {
	q := url.Values{}
	if f.Mode != "" {
		q.Set("mode", f.Mode)
	}
	if f.Page > 0 {
		q.Set("page", strconv.Itoa(f.Page))
	}
	if f.PageSize > 0 {
		q.Set("page_size", strconv.Itoa(f.PageSize))
	}

	var page InterviewPage
	c.getJSON(ctx, "/api/interviews", q, &page)
	return page, nil
}

// StatsOverview is the aggregate dashboard payload.
type StatsOverview struct {
	TotalInterviews int     `json:"total_interviews"`
	AverageScore    float64 `json:"average_score"`
	BestScore       float64 `json:"best_score"`
	TotalHours      float64 `json:"total_hours"`
}

// Stats fetches the aggregate overview. Failures yield a zero overview.
func (c *Client) Stats(ctx context.Context) (StatsOverview, error) {
	var stats StatsOverview
	c.getJSON(ctx, "/api/interviews/stats/overview", nil, &stats)
	return stats, nil
}

// PerformancePoint is one time-bucketed performance sample.
type PerformancePoint struct {
	Date  string  `json:"date"`
	Score float64 `json:"score"`
}

// Performance fetches the score-over-time series. Failures yield an empty
// series.
func (c *Client) Performance(ctx context.Context) ([]PerformancePoint, error) {
	var payload struct {
		Performance []PerformancePoint `json:"performance"`
	}
	c.getJSON(ctx, "/api/interviews/analytics/performance", nil, &payload)
	return payload.Performance, nil
}

// Insight is one generated improvement suggestion.
type Insight struct {
	Category string `json:"category"`
	Text     string `json:"text"`
}

// Insights fetches improvement suggestions. Failures yield an empty list.
func (c *Client) Insights(ctx context.Context) ([]Insight, error) {
	var payload struct {
		Insights []Insight `json:"insights"`
	}
	c.getJSON(ctx, "/api/interviews/analytics/insights", nil, &payload)
	return payload.Insights, nil
}

// UploadResume posts the resume file as multipart form data and returns
// the backend-assigned resume ID.
func (c *Client) UploadResume(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("backend: open resume %q: %w", path, err)
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("resume", filepath.Base(path))
	if err != nil {
		return "", fmt.Errorf("backend: build upload: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", fmt.Errorf("backend: read resume: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("backend: finalize upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload_resume", &body)
	if err != nil {
		return "", fmt.Errorf("backend: build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("backend: upload resume: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("backend: upload resume: unexpected status %d", resp.StatusCode)
	}

	var payload struct {
		ResumeID string `json:"resume_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("backend: decode upload response: %w", err)
	}
	if payload.ResumeID == "" {
		return "", fmt.Errorf("backend: upload response missing resume_id")
	}
	return payload.ResumeID, nil
}

// DownloadResults streams the result document for sessionID into w.
func (c *Client) DownloadResults(ctx context.Context, sessionID string, w io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/download_results/"+url.PathEscape(sessionID), nil)
	if err != nil {
		return fmt.Errorf("backend: build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("backend: download results: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("backend: download results: unexpected status %d", resp.StatusCode)
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("backend: download results: %w", err)
	}
	return nil
}

// ExportFormat selects the interview history export encoding.
type ExportFormat string

const (
	ExportCSV  ExportFormat = "csv"
	ExportJSON ExportFormat = "json"
)

// Export streams the full interview history in the given format into w.
func (c *Client) Export(ctx context.Context, format ExportFormat, w io.Writer) error {
	if format != ExportCSV && format != ExportJSON {
		return fmt.Errorf("backend: export format %q is invalid; valid values: csv, json", format)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/api/interviews/export?format="+string(format), nil)
	if err != nil {
		return fmt.Errorf("backend: build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("backend: export: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("backend: export: unexpected status %d", resp.StatusCode)
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("backend: export: %w", err)
	}
	return nil
}

// getJSON fetches path into out, treating every failure as an empty
// payload. The read endpoints feed best-effort dashboards, so a warning
// log is the whole error contract.
func (c *Client) getJSON(ctx context.Context, path string, q url.Values, out any) {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		slog.Warn("backend: build request failed", "path", path, "error", err)
		return
	}
	resp, err := c.http.Do(req)
	if err != nil {
		slog.Warn("backend: request failed", "path", path, "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		slog.Warn("backend: unexpected status", "path", path, "status", resp.StatusCode)
		return
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		slog.Warn("backend: decode failed", "path", path, "error", err)
	}
}
