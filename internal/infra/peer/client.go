package peer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"vaultmesh/internal/domain"
)

// Client pushes receipt bundles to remote ledgers and checks whether a
// remote already holds a receipt.
type Client struct {
	httpClient *http.Client
}

func New(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{httpClient: &http.Client{Timeout: timeout}}
}

// Push submits a bundle to the peer's verify endpoint. Transport
// failures map to ErrNetwork; peer-side rejections map to the error
// class the status code implies so the caller can distinguish "peer is
// down" from "peer refused".
func (c *Client) Push(ctx context.Context, peerURL string, bundle domain.Bundle) (*domain.PushResult, error) {
	if c == nil {
		return nil, errors.New("peer client is nil")
	}
	if peerURL == "" {
		return nil, errors.New("peer url is required")
	}
	body, err := json.Marshal(bundle)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(peerURL, "/")+"/v1/verify", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: push to %s: %v", domain.ErrNetwork, peerURL, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading peer response: %v", domain.ErrNetwork, err)
	}
	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusBadRequest:
		return nil, fmt.Errorf("%w: peer rejected bundle: %s", domain.ErrSchema, peerMessage(raw))
	case http.StatusForbidden:
		return nil, fmt.Errorf("%w: peer policy: %s", domain.ErrPolicyDenied, peerMessage(raw))
	case http.StatusUnprocessableEntity:
		return nil, fmt.Errorf("%w: peer verification: %s", domain.ErrSignatureInvalid, peerMessage(raw))
	default:
		return nil, fmt.Errorf("%w: peer returned status %d", domain.ErrNetwork, resp.StatusCode)
	}

	var result domain.PushResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("%w: malformed peer response: %v", domain.ErrNetwork, err)
	}
	return &result, nil
}

// VerifyRemote asks the peer for the receipt stored under digest and
// re-runs signature verification on what comes back. The peer's word is
// not trusted; the returned document must verify locally.
func (c *Client) VerifyRemote(ctx context.Context, peerURL, digest string, validate func([]byte) error) error {
	if c == nil {
		return errors.New("peer client is nil")
	}
	if peerURL == "" || digest == "" {
		return errors.New("peer url and digest are required")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(peerURL, "/")+"/v1/ledger/"+digest, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: fetch from %s: %v", domain.ErrNetwork, peerURL, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: reading peer response: %v", domain.ErrNetwork, err)
	}
	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return fmt.Errorf("%w: peer has no receipt %s", domain.ErrNotFound, digest)
	default:
		return fmt.Errorf("%w: peer returned status %d", domain.ErrNetwork, resp.StatusCode)
	}
	if validate == nil {
		return nil
	}
	return validate(raw)
}

func peerMessage(raw []byte) string {
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && body.Error != "" {
		return body.Error
	}
	return strings.TrimSpace(string(raw))
}
