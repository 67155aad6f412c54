package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
)

// HTTPProvider treats an HTTP(S) URL as a document: GET reads it, PUT
// replaces it and HEAD's Last-Modified header dates it. Presigned object
// storage URLs and WebDAV endpoints both fit this shape.
type HTTPProvider struct {
	client   *http.Client
	grants   GrantStore
	spoolDir string
}

// NewHTTPProvider returns a provider using client (nil means
// http.DefaultClient).
func NewHTTPProvider(client *http.Client, grants GrantStore, spoolDir string) *HTTPProvider {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPProvider{client: client, grants: grants, spoolDir: spoolDir}
}

func (p *HTTPProvider) OpenRead(ctx context.Context, loc Locator) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, loc.String(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		_ = resp.Body.Close()
		return nil, ErrNoStream
	case resp.StatusCode/100 != 2:
		_ = resp.Body.Close()
		return nil, fmt.Errorf("get %s: %s", loc, resp.Status)
	}
	return resp.Body, nil
}

func (p *HTTPProvider) OpenWrite(ctx context.Context, loc Locator) (io.WriteCloser, error) {
	return newSpool(p.spoolDir, func(f *os.File, size int64) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPut, loc.String(), f)
		if err != nil {
			return err
		}
		req.ContentLength = size
		req.Header.Set("Content-Type", "application/octet-stream")

		resp, err := p.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode/100 != 2 {
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return fmt.Errorf("upload failed: %s; body: %s", resp.Status, string(b))
		}
		return nil
	})
}

func (p *HTTPProvider) LastModified(ctx context.Context, loc Locator) (Timestamp, error) {
	resp, err := p.head(ctx, loc)
	if err != nil {
		return Unknown, err
	}
	if resp.StatusCode/100 != 2 {
		return Unknown, fmt.Errorf("head %s: %s", loc, resp.Status)
	}

	lm := resp.Header.Get("Last-Modified")
	if lm == "" {
		return Unknown, nil
	}
	t, err := http.ParseTime(lm)
	if err != nil {
		return Unknown, nil
	}
	return At(t), nil
}

// AcquirePersistentAccess accepts any locator the server does not refuse
// outright; a missing resource is fine since externalizing creates it.
func (p *HTTPProvider) AcquirePersistentAccess(ctx context.Context, loc Locator) error {
	resp, err := p.head(ctx, loc)
	if err != nil {
		return err
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("access to %s denied: %s", loc, resp.Status)
	case resp.StatusCode >= 500:
		return fmt.Errorf("head %s: %s", loc, resp.Status)
	}
	if p.grants == nil {
		return nil
	}
	return p.grants.Grant(ctx, loc)
}

func (p *HTTPProvider) ReleasePersistentAccess(ctx context.Context, loc Locator) error {
	if p.grants == nil {
		return nil
	}
	return p.grants.Revoke(ctx, loc)
}

func (p *HTTPProvider) head(ctx context.Context, loc Locator) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, loc.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	_ = resp.Body.Close()
	return resp, nil
}
