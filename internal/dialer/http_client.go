package dialer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HTTPProvider talks to the dialer provider's REST API.
//
// Timeouts are bounded by the injected http.Client so a slow provider can
// never stall a scheduler tick; the caller abandons and reverts the
// contact instead.
type HTTPProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

type HTTPProviderConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

func NewHTTPProvider(cfg HTTPProviderConfig) (*HTTPProvider, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("dialer: base URL is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPProvider{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

func (p *HTTPProvider) Name() string { return "http" }

func (p *HTTPProvider) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/v1/health", nil)
	if err != nil {
		return err
	}
	p.authorize(req)
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: health status %d", ErrUnavailable, resp.StatusCode)
	}
	return nil
}

func (p *HTTPProvider) Submit(ctx context.Context, sub SubmitRequest) (string, error) {
	body, err := json.Marshal(sub)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/dials", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	p.authorize(req)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		var out struct {
			DialID string `json:"dial_id"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return "", fmt.Errorf("dialer: decode submit response: %w", err)
		}
		if out.DialID == "" {
			return "", fmt.Errorf("dialer: provider returned empty dial_id")
		}
		return out.DialID, nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return "", fmt.Errorf("%w: status %d", ErrRejected, resp.StatusCode)
	default:
		return "", fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
}

func (p *HTTPProvider) GetStatus(ctx context.Context, externalID string) (StatusEvent, error) {
	if externalID == "" {
		return StatusEvent{}, fmt.Errorf("dialer: external id is required")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/v1/dials/"+externalID, nil)
	if err != nil {
		return StatusEvent{}, err
	}
	p.authorize(req)

	resp, err := p.client.Do(req)
	if err != nil {
		return StatusEvent{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		var ev StatusEvent
		if err := json.NewDecoder(resp.Body).Decode(&ev); err != nil {
			return StatusEvent{}, fmt.Errorf("dialer: decode status response: %w", err)
		}
		if ev.ExternalID == "" {
			ev.ExternalID = externalID
		}
		return ev, nil
	case resp.StatusCode == http.StatusNotFound:
		return StatusEvent{}, ErrUnknownDial
	default:
		return StatusEvent{}, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
}

func (p *HTTPProvider) authorize(req *http.Request) {
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}
}
