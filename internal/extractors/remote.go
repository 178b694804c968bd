package extractors

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/scopeworks/kbcore/internal/core/domain"
	"github.com/scopeworks/kbcore/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.Extractor = (*Remote)(nil)

// remoteExtensions are binary formats delegated to the extraction service.
var remoteExtensions = map[string]string{
	".pdf":  "application/pdf",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".ppt":  "application/vnd.ms-powerpoint",
	".pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

// Remote extracts binary document formats through a Tika-compatible HTTP
// extraction service (PUT /tika with the raw bytes, text/plain back).
type Remote struct {
	baseURL string
	client  *http.Client
}

// RemoteConfig holds extraction service configuration.
type RemoteConfig struct {
	// BaseURL is the extraction service endpoint
	BaseURL string

	// Timeout for HTTP requests; large PDFs can take a while
	Timeout time.Duration
}

// NewRemote creates a remote extractor.
func NewRemote(cfg RemoteConfig) *Remote {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	return &Remote{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// Supports reports whether the file is a binary format the service handles.
func (r *Remote) Supports(fileName string) bool {
	ext := strings.ToLower(filepath.Ext(fileName))
	_, ok := remoteExtensions[ext]
	return ok
}

// Extract sends the raw bytes to the extraction service and returns the
// plain text it produced.
func (r *Remote) Extract(ctx context.Context, data []byte, fileName string) (string, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	contentType, ok := remoteExtensions[ext]
	if !ok {
		return "", &domain.ExtractionError{
			Kind:     domain.ExtractionUnsupported,
			FileName: fileName,
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, r.baseURL+"/tika", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "text/plain")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", &domain.ExtractionError{
			Kind:     domain.ExtractionCorrupt,
			FileName: fileName,
			Err:      err,
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnprocessableEntity {
		return "", &domain.ExtractionError{
			Kind:     domain.ExtractionCorrupt,
			FileName: fileName,
			Err:      fmt.Errorf("extraction service could not parse file"),
		}
	}
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", &domain.ExtractionError{
			Kind:     domain.ExtractionCorrupt,
			FileName: fileName,
			Err:      fmt.Errorf("extraction service returned %s: %s", resp.Status, string(body)),
		}
	}

	text, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read extraction response: %w", err)
	}

	return strings.TrimSpace(string(text)), nil
}

// Name identifies the extractor in logs.
func (r *Remote) Name() string {
	return "remote"
}

// HealthCheck verifies the extraction service is reachable.
func (r *Remote) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/tika", nil)
	if err != nil {
		return err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return fmt.Errorf("extraction service unhealthy: %s", resp.Status)
	}
	return nil
}
