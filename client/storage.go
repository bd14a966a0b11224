package client

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/junaidrashid-git/storefront-core/errs"
)

// StorageClient uploads objects to the backend's storage buckets and builds
// public URLs for them.
type StorageClient struct {
	c *Client
}

// Upload writes one object. Existing objects at the same path are replaced.
func (s *StorageClient) Upload(ctx context.Context, bucket, path string, r io.Reader, contentType string) error {
	u := fmt.Sprintf("%s/storage/v1/object/%s/%s", s.c.baseURL, bucket, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, r)
	if err != nil {
		return err
	}
	req.Header.Set("apikey", s.c.anonKey)
	req.Header.Set("Authorization", "Bearer "+s.c.bearer())
	req.Header.Set("x-upsert", "true")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := s.c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return errs.Canceled(ctx.Err())
		}
		return errs.Transient(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return s.c.statusError(resp)
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

// PublicURL returns the unauthenticated URL of an object in a public bucket.
func (s *StorageClient) PublicURL(bucket, path string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.c.baseURL, bucket, path)
}
