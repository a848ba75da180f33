package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Confirmer completes a subscription handshake by fetching its
// confirmation URL.
type Confirmer interface {
	Confirm(ctx context.Context, subscribeURL string) error
}

// HTTPConfirmer fetches SubscribeURL with a GET request. When HostSuffix is
// set only https URLs on matching hosts are fetched.
type HTTPConfirmer struct {
	Client     *http.Client
	HostSuffix string
}

func NewHTTPConfirmer(client *http.Client, hostSuffix string) *HTTPConfirmer {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPConfirmer{Client: client, HostSuffix: hostSuffix}
}

func (c *HTTPConfirmer) Confirm(ctx context.Context, subscribeURL string) error {
	u, err := url.Parse(subscribeURL)
	if err != nil || u.Host == "" {
		return fmt.Errorf("invalid subscribe url %q", subscribeURL)
	}
	if c.HostSuffix != "" {
		if u.Scheme != "https" || !strings.HasSuffix(u.Hostname(), c.HostSuffix) {
			return fmt.Errorf("subscribe url host %q not allowed", u.Host)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("build confirm request: %w", err)
	}
	resp, err := c.Client.Do(req)
	if err != nil {
		return fmt.Errorf("confirm subscription: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("confirm subscription: unexpected status %d", resp.StatusCode)
	}
	return nil
}
