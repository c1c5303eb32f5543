// Package pushgw предоставляет клиент внешнего push-шлюза (мобильные и браузерные уведомления).
package pushgw

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mmeshcher/hazirhay-backend/internal/model"
)

// ErrNotConfigured возвращается, если адрес шлюза не задан.
var ErrNotConfigured = errors.New("push gateway client not configured")

// RateLimitError возвращается, когда шлюз ответил 429.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("push gateway rate limited, retry after %s", e.RetryAfter)
}

// Client инкапсулирует HTTP-взаимодействие с push-шлюзом.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Message описывает тело запроса к шлюзу.
type Message struct {
	ID         string `json:"id"`
	UserID     string `json:"userId"`
	Type       string `json:"type"`
	Title      string `json:"title"`
	Body       string `json:"body"`
	CheckoutID string `json:"checkoutId,omitempty"`
}

// NewClient создаёт HTTP-клиент для обращения к push-шлюзу по указанному адресу.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// Send пересылает уведомление в шлюз.
func (c *Client) Send(ctx context.Context, n model.Notification) error {
	if c == nil || c.baseURL == "" {
		return ErrNotConfigured
	}

	base := c.baseURL
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}

	body, err := json.Marshal(Message{
		ID:         n.ID,
		UserID:     n.UserID,
		Type:       n.Type,
		Title:      titleFor(n.Type),
		Body:       n.Message,
		CheckoutID: n.CheckoutID,
	})
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/api/push", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusAccepted, http.StatusNoContent:
		return nil
	case http.StatusTooManyRequests:
		retryAfter := time.Duration(0)
		if v := resp.Header.Get("Retry-After"); v != "" {
			if seconds, parseErr := strconv.Atoi(v); parseErr == nil {
				retryAfter = time.Duration(seconds) * time.Second
			}
		}
		return &RateLimitError{RetryAfter: retryAfter}
	default:
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}
}

func titleFor(kind string) string {
	switch kind {
	case "account":
		return "Account"
	case "request":
		return "New request"
	case "order":
		return "Order update"
	case "payment":
		return "Payment"
	case "worker":
		return "Team"
	case "review":
		return "New review"
	}
	return "HazirHay"
}
