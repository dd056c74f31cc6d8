package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrRejected is returned when the gateway refuses a notification outright.
var ErrRejected = errors.New("notify: rejected by gateway")

// Message is a single push notification to one user.
type Message struct {
	UserID string
	Title  string
	Body   string
	Data   map[string]string
	// Key deduplicates retries on the gateway side. Generated when empty.
	Key string
}

// Receipt is the gateway's acknowledgement.
type Receipt struct {
	ID     string
	Status string
}

// Client delivers notifications.
type Client interface {
	Send(ctx context.Context, msg Message) (Receipt, error)
}

// HTTPClient implements Client against the push gateway's REST API.
type HTTPClient struct {
	baseURL *url.URL
	apiKey  string
	client  *http.Client
	logger  *zap.Logger
}

// NewHTTPClient constructs a gateway client with bounded timeouts.
func NewHTTPClient(baseURL, apiKey string, timeout time.Duration, logger *zap.Logger) (*HTTPClient, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	parsed, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse push gateway url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("parse push gateway url: %q is not absolute", baseURL)
	}
	return &HTTPClient{
		baseURL: parsed,
		apiKey:  apiKey,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   timeout,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout:   timeout,
				ResponseHeaderTimeout: timeout,
			},
		},
		logger: logger,
	}, nil
}

// Send posts one notification.
func (c *HTTPClient) Send(ctx context.Context, msg Message) (Receipt, error) {
	if msg.UserID == "" {
		return Receipt{}, fmt.Errorf("%w: missing recipient", ErrRejected)
	}
	key := msg.Key
	if key == "" {
		key = uuid.NewString()
	}

	body, err := json.Marshal(buildPayload(msg))
	if err != nil {
		return Receipt{}, fmt.Errorf("encode notification: %w", err)
	}

	endpoint := c.baseURL.ResolveReference(&url.URL{Path: "/notifications"})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(body))
	if err != nil {
		return Receipt{}, err
	}
	req.Header.Set("X-API-Key", c.apiKey)
	req.Header.Set("Idempotency-Key", key)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return Receipt{}, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		var payload receiptPayload
		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil && !errors.Is(err, io.EOF) {
			return Receipt{}, fmt.Errorf("decode push gateway response: %w", err)
		}
		return normalizeReceipt(payload, key), nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		c.logger.Warn("push gateway rejected notification",
			zap.Int("status", resp.StatusCode),
			zap.String("user_id", msg.UserID),
		)
		return Receipt{}, fmt.Errorf("%w: status %d", ErrRejected, resp.StatusCode)
	default:
		return Receipt{}, fmt.Errorf("notify: gateway returned %d", resp.StatusCode)
	}
}

type notificationPayload struct {
	To    string            `json:"to"`
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

type receiptPayload struct {
	ID     *string `json:"id"`
	Status *string `json:"status"`
}

func buildPayload(msg Message) notificationPayload {
	title := strings.TrimSpace(msg.Title)
	if title == "" {
		title = "Notification"
	}
	return notificationPayload{
		To:    msg.UserID,
		Title: title,
		Body:  msg.Body,
		Data:  msg.Data,
	}
}

func normalizeReceipt(payload receiptPayload, key string) Receipt {
	receipt := Receipt{ID: key, Status: "queued"}
	if payload.ID != nil && *payload.ID != "" {
		receipt.ID = *payload.ID
	}
	if payload.Status != nil && *payload.Status != "" {
		receipt.Status = *payload.Status
	}
	return receipt
}

// IsRejected reports whether retrying err is pointless.
func IsRejected(err error) bool {
	return errors.Is(err, ErrRejected)
}
