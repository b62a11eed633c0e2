package slope

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"slopectl/internal/apperrors"
)

type filePathRequest struct {
	FilePath string `json:"filePath"`
	Version  *int   `json:"version,omitempty"`
}

type uploadURLResponse struct {
	UploadURL string `json:"uploadUrl"`
}

type saveUploadResponse struct {
	FileID int `json:"fileId"`
}

type downloadURLResponse struct {
	DownloadURL string `json:"downloadUrl"`
}

// UploadFile stores the local file at slopePath and returns its file ID.
//
// The bytes go straight to storage through a pre-signed URL; the API is then
// told the upload is complete.
func (s *Session) UploadFile(ctx context.Context, localPath, slopePath string) (int, error) {
	if slopePath == "" {
		return 0, apperrors.Validation("filePath", "remote file path is required")
	}
	req := filePathRequest{FilePath: slopePath}

	var urlResp uploadURLResponse
	if err := s.do(ctx, http.MethodPost, "/Files/GetUploadUrl", nil, req, &urlResp); err != nil {
		return 0, err
	}
	if urlResp.UploadURL == "" {
		return 0, apperrors.Decode("/Files/GetUploadUrl", fmt.Errorf("missing uploadUrl"))
	}

	size, err := s.storage.Upload(ctx, urlResp.UploadURL, localPath)
	if err != nil {
		return 0, err
	}

	var saved saveUploadResponse
	if err := s.do(ctx, http.MethodPost, "/Files/SaveUpload", nil, req, &saved); err != nil {
		return 0, err
	}

	slog.Info("Uploaded file", "path", slopePath, "fileId", saved.FileID, "bytes", size)
	return saved.FileID, nil
}

// DownloadFile fetches the file stored at slopePath into localPath,
// overwriting it. A nil version selects the latest.
func (s *Session) DownloadFile(ctx context.Context, slopePath string, version *int, localPath string) error {
	if slopePath == "" {
		return apperrors.Validation("filePath", "remote file path is required")
	}

	var resp downloadURLResponse
	req := filePathRequest{FilePath: slopePath, Version: version}
	if err := s.do(ctx, http.MethodPost, "/Files/GetDownloadUrl", nil, req, &resp); err != nil {
		return err
	}
	if resp.DownloadURL == "" {
		return apperrors.Decode("/Files/GetDownloadUrl", fmt.Errorf("missing downloadUrl"))
	}

	size, err := s.storage.Download(ctx, resp.DownloadURL, localPath)
	if err != nil {
		return err
	}
	slog.Info("Downloaded file", "path", slopePath, "dest", localPath, "bytes", size)
	return nil
}
