package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"supportchat-ws/internal/domain"
)

// HTTPGateway talks to the chat backend's internal REST API.
type HTTPGateway struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
}

func NewHTTPGateway(baseURL string, timeout time.Duration) *HTTPGateway {
	tr := &http.Transport{
		DialContext:     (&net.Dialer{Timeout: 5 * time.Second}).DialContext,
		MaxIdleConns:    32,
		IdleConnTimeout: 90 * time.Second,
	}
	return &HTTPGateway{
		baseURL: baseURL,
		http:    &http.Client{Transport: tr, Timeout: timeout},
		timeout: timeout,
	}
}

func (g *HTTPGateway) IsParticipant(ctx context.Context, conversationID, userID string) (bool, error) {
	url := fmt.Sprintf("%s/internal/conversations/%s/participants/%s", g.baseURL, conversationID, userID)
	resp, err := g.getWithRetry(ctx, url)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer drain(resp)
	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("%w: participant check returned %d", ErrUnavailable, resp.StatusCode)
	}
}

func (g *HTTPGateway) CreateMessage(ctx context.Context, conversationID, senderID string, senderRole domain.Role, contentType domain.ContentType, body string) (*domain.Message, error) {
	payload, err := json.Marshal(map[string]string{
		"senderId":    senderID,
		"senderRole":  string(senderRole),
		"contentType": string(contentType),
		"body":        body,
	})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	url := fmt.Sprintf("%s/internal/conversations/%s/messages", g.baseURL, conversationID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	// Writes are not retried: the backbone already tolerates duplicates,
	// but there is no reason to manufacture them here.
	resp, err := g.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer drain(resp)

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		var msg domain.Message
		if err := json.NewDecoder(resp.Body).Decode(&msg); err != nil {
			return nil, fmt.Errorf("%w: decode stored message: %v", ErrUnavailable, err)
		}
		return &msg, nil
	case http.StatusForbidden:
		return nil, ErrNotParticipant
	default:
		return nil, fmt.Errorf("%w: create message returned %d", ErrUnavailable, resp.StatusCode)
	}
}

func (g *HTTPGateway) FindConversationsForUser(ctx context.Context, userID string) ([]string, error) {
	url := fmt.Sprintf("%s/internal/users/%s/conversations", g.baseURL, userID)
	resp, err := g.getWithRetry(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer drain(resp)
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: conversation lookup returned %d", ErrUnavailable, resp.StatusCode)
	}
	var out struct {
		Conversations []string `json:"conversations"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode conversations: %v", ErrUnavailable, err)
	}
	return out.Conversations, nil
}

// getWithRetry runs an idempotent GET with exponential backoff, bounded
// by the gateway timeout. 5xx responses count as retryable.
func (g *HTTPGateway) getWithRetry(ctx context.Context, url string) (*http.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	var resp *http.Response
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		r, err := g.http.Do(req)
		if err != nil {
			return err
		}
		if r.StatusCode >= 500 {
			drain(r)
			return fmt.Errorf("server error %d", r.StatusCode)
		}
		resp = r
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxElapsedTime = g.timeout
	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return nil, err
	}
	return resp, nil
}

func drain(r *http.Response) {
	_, _ = io.Copy(io.Discard, r.Body)
	_ = r.Body.Close()
}
