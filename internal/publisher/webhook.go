package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shaiso/Crosspost/internal/domain"
)

const defaultWebhookTimeout = 30 * time.Second

// WebhookConfig — настройки WebhookAdapter.
type WebhookConfig struct {
	// BaseURL — адрес шлюза; запрос уходит на <BaseURL>/<platform_type>.
	BaseURL string

	// Headers — дополнительные заголовки (например, Authorization).
	Headers map[string]string

	// Timeout — таймаут запроса. Default: 30s.
	Timeout time.Duration

	// Client — HTTP-клиент (для тестов).
	Client *http.Client
}

// WebhookAdapter — публикация через внешний HTTP-шлюз платформ.
//
// Тело запроса:
//
//	{"post_id": "...", "platform_type": "x", "title": "...", "content": "...", "image_url": "..."}
//
// Ответ 2xx — успех, external_id берётся из JSON-ответа, если есть.
// Ответ >= 400 — логический отказ с текстом "HTTP <code>: <body>".
type WebhookAdapter struct {
	baseURL string
	headers map[string]string
	timeout time.Duration
	client  *http.Client
}

// NewWebhookAdapter создаёт WebhookAdapter.
func NewWebhookAdapter(cfg WebhookConfig) *WebhookAdapter {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultWebhookTimeout
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{}
	}
	return &WebhookAdapter{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		headers: cfg.Headers,
		timeout: cfg.Timeout,
		client:  cfg.Client,
	}
}

type webhookRequest struct {
	PostID       string              `json:"post_id"`
	PlatformType domain.PlatformType `json:"platform_type"`
	Title        string              `json:"title"`
	Content      string              `json:"content"`
	ImageURL     string              `json:"image_url,omitempty"`
}

type webhookResponse struct {
	ExternalID string `json:"external_id"`
	Message    string `json:"message"`
}

// Publish реализует Adapter.
func (a *WebhookAdapter) Publish(ctx context.Context, post *domain.Post, platform *domain.Platform) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	body, err := json.Marshal(webhookRequest{
		PostID:       post.ID.String(),
		PlatformType: platform.Type,
		Title:        post.Title,
		Content:      post.Content,
		ImageURL:     post.ImageURL,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: marshal body: %v", ErrWebhookRequest, err)
	}

	url := a.baseURL + "/" + string(platform.Type)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", ErrWebhookRequest, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for key, val := range a.headers {
		req.Header.Set(key, val)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWebhookRequest, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrWebhookRequest, err)
	}

	if resp.StatusCode >= 400 {
		return &Result{
			Success: false,
			Message: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, truncate(string(respBody), 200)),
		}, nil
	}

	// Тело ответа необязательно.
	var parsed webhookResponse
	_ = json.Unmarshal(respBody, &parsed)

	msg := parsed.Message
	if msg == "" {
		msg = fmt.Sprintf("Successfully published to %s", platform.Name)
	}
	return &Result{Success: true, Message: msg, ExternalID: parsed.ExternalID}, nil
}

// truncate обрезает строку до указанной длины.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
