package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// SupabaseStorage speaks the Supabase Storage REST API.
type SupabaseStorage struct {
	baseURL    string
	serviceKey string
	httpClient *http.Client
}

func NewSupabaseStorage(supabaseURL, serviceKey string) *SupabaseStorage {
	return &SupabaseStorage{
		baseURL:    supabaseURL + "/storage/v1",
		serviceKey: serviceKey,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
	}
}

func (s *SupabaseStorage) objectURL(bucket, path string) string {
	return fmt.Sprintf("%s/object/%s/%s", s.baseURL, bucket, path)
}

func (s *SupabaseStorage) do(ctx context.Context, method, url string, body io.Reader, contentType string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", method, err)
	}
	req.Header.Set("Authorization", "Bearer "+s.serviceKey)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return s.httpClient.Do(req)
}

func (s *SupabaseStorage) Upload(ctx context.Context, bucket, path string, data io.Reader, contentType string) error {
	resp, err := s.do(ctx, http.MethodPost, s.objectURL(bucket, path), data, contentType)
	if err != nil {
		return unavailable("upload", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return unavailable("upload", path, fmt.Errorf("status %d: %s", resp.StatusCode, string(body)))
	}
	return nil
}

func (s *SupabaseStorage) Download(ctx context.Context, bucket, path string) (io.ReadCloser, error) {
	resp, err := s.do(ctx, http.MethodGet, s.objectURL(bucket, path), nil, "")
	if err != nil {
		return nil, unavailable("download", path, err)
	}

	if resp.StatusCode >= 400 {
		resp.Body.Close()
		if notFound(resp.StatusCode) {
			return nil, ErrNotFound
		}
		return nil, unavailable("download", path, fmt.Errorf("status %d", resp.StatusCode))
	}
	return resp.Body, nil
}

func (s *SupabaseStorage) Delete(ctx context.Context, bucket, path string) error {
	resp, err := s.do(ctx, http.MethodDelete, s.objectURL(bucket, path), nil, "")
	if err != nil {
		return unavailable("delete", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		if notFound(resp.StatusCode) {
			return ErrNotFound
		}
		return unavailable("delete", path, fmt.Errorf("status %d", resp.StatusCode))
	}
	return nil
}

func (s *SupabaseStorage) Exists(ctx context.Context, bucket, path string) (bool, error) {
	resp, err := s.do(ctx, http.MethodHead, s.objectURL(bucket, path), nil, "")
	if err != nil {
		return false, unavailable("head", path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode < 300:
		return true, nil
	case notFound(resp.StatusCode):
		return false, nil
	default:
		return false, unavailable("head", path, fmt.Errorf("status %d", resp.StatusCode))
	}
}

// Supabase reports missing objects as 400 on some routes and 404 on others.
func notFound(status int) bool {
	return status == http.StatusNotFound || status == http.StatusBadRequest
}
