// Package presence is the client side of the closure-detection protocol: it
// watches for the session going away, delivers a best-effort closure signal
// over a priority-ordered chain of transports, and falls back to a durable
// pending-closure ledger when nothing gets through.
package presence

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Trigger names carried in closure signals.
const (
	TriggerHide      = "pagehide"
	TriggerUnload    = "beforeunload"
	TriggerReconcile = "reconcile"
	TriggerManual    = "manual"
)

// Signal is the wire payload for the auto-punch-out endpoint.
type Signal struct {
	Trigger         string    `json:"trigger"`
	Source          string    `json:"source,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
	OriginalTrigger string    `json:"originalTrigger,omitempty"`
}

// Transport is one delivery strategy for a closure signal. Implementations
// are tried in priority order until one succeeds.
type Transport interface {
	Name() string
	Deliver(ctx context.Context, sig Signal) error
}

// BeaconTransport mimics the browser's background-beacon primitive: the
// request is handed off and any response at all counts as delivered. It must
// not linger during teardown, so the attempt itself is bounded tightly.
type BeaconTransport struct {
	URL    string
	Token  string
	client *http.Client
}

func NewBeaconTransport(url, token string) *BeaconTransport {
	return &BeaconTransport{
		URL:    url,
		Token:  token,
		client: &http.Client{Timeout: 2 * time.Second},
	}
}

func (t *BeaconTransport) Name() string { return "beacon" }

func (t *BeaconTransport) Deliver(ctx context.Context, sig Signal) error {
	resp, err := post(ctx, t.client, t.URL, t.Token, sig)
	if err != nil {
		return err
	}
	// Fire-and-forget: the beacon has no visibility into the response.
	drain(resp)
	return nil
}

// KeepaliveTransport is the fallback request that is allowed to outlive the
// triggering event, with a bounded timeout so a hung request cannot block
// teardown indefinitely. Unlike the beacon it checks the response status.
type KeepaliveTransport struct {
	URL    string
	Token  string
	client *http.Client
}

func NewKeepaliveTransport(url, token string, timeout time.Duration) *KeepaliveTransport {
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &KeepaliveTransport{
		URL:    url,
		Token:  token,
		client: &http.Client{Timeout: timeout},
	}
}

func (t *KeepaliveTransport) Name() string { return "keepalive" }

func (t *KeepaliveTransport) Deliver(ctx context.Context, sig Signal) error {
	resp, err := post(ctx, t.client, t.URL, t.Token, sig)
	if err != nil {
		return err
	}
	defer drain(resp)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("keepalive: server returned %s", resp.Status)
	}
	return nil
}

func post(ctx context.Context, client *http.Client, url, token string, sig Signal) (*http.Response, error) {
	body, err := json.Marshal(sig)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return client.Do(req)
}

func drain(resp *http.Response) {
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}
