// Package transfer moves file bytes to and from pre-signed storage URLs.
//
// Storage URLs carry their own authorization, so requests made here never
// include the API bearer token. Transfers are single-attempt.
package transfer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"slopectl/internal/apperrors"
	"slopectl/internal/observability"
)

// maxErrorBody bounds how much of a failed response is kept in errors.
const maxErrorBody = 4096

// Client performs uploads and downloads against storage URLs.
type Client struct {
	httpClient *http.Client
	metrics    *observability.Metrics
}

// New creates a Client. A nil httpClient falls back to http.DefaultClient.
func New(httpClient *http.Client, metrics *observability.Metrics) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{httpClient: httpClient, metrics: metrics}
}

// Upload PUTs the file at srcPath to url and returns the number of bytes sent.
func (c *Client) Upload(ctx context.Context, url, srcPath string) (int64, error) {
	file, err := os.Open(srcPath)
	if err != nil {
		return 0, apperrors.Validation("file", fmt.Sprintf("cannot read %s: %v", srcPath, err))
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return 0, apperrors.Validation("file", fmt.Sprintf("cannot stat %s: %v", srcPath, err))
	}
	size := info.Size()

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, file)
	if err != nil {
		return 0, apperrors.Request("upload file", err)
	}
	req.ContentLength = size
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, apperrors.Request("upload file", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, apperrors.Transport("upload file", resp.StatusCode, readErrorBody(resp.Body))
	}

	c.metrics.RecordTransfer(ctx, "upload", size)
	slog.Debug("Uploaded file", "bytes", size, "path", srcPath)
	return size, nil
}

// Download GETs url into destPath and returns the number of bytes written.
//
// The body is streamed into a temporary file beside destPath and renamed into
// place on success, so a failed download never leaves a partial file and an
// existing destination is replaced only by a complete one.
func (c *Client) Download(ctx context.Context, url, destPath string) (int64, error) {
	dir := filepath.Dir(destPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("failed to create directory: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return 0, apperrors.Request("download file", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, apperrors.Request("download file", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, apperrors.Transport("download file", resp.StatusCode, readErrorBody(resp.Body))
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(destPath)+".*.part")
	if err != nil {
		return 0, fmt.Errorf("failed to create file: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmp, resp.Body)
	if err != nil {
		return 0, apperrors.Request("download file", err)
	}
	if err := tmp.Sync(); err != nil {
		return 0, fmt.Errorf("failed to sync file: %w", err)
	}
	// Replaced files keep their mode; new files get the usual 0644.
	mode := os.FileMode(0o644)
	if info, err := os.Stat(destPath); err == nil {
		mode = info.Mode().Perm()
	}
	if err := tmp.Chmod(mode); err != nil {
		return 0, fmt.Errorf("failed to set file mode: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("failed to close file: %w", err)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return 0, fmt.Errorf("failed to move file into place: %w", err)
	}
	committed = true

	c.metrics.RecordTransfer(ctx, "download", written)
	slog.Debug("Downloaded file", "bytes", written, "path", destPath)
	return written, nil
}

func readErrorBody(r io.Reader) string {
	body, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))
	return string(body)
}
