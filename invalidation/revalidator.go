package invalidation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	goerrors "github.com/goliatone/go-errors"
)

// Revalidator tells the rendering layer that a page or tag is stale.
type Revalidator interface {
	RevalidatePath(ctx context.Context, path string) error
	RevalidateTag(ctx context.Context, tag string) error
}

// NoopRevalidator discards every request.
type NoopRevalidator struct{}

func (NoopRevalidator) RevalidatePath(context.Context, string) error { return nil }
func (NoopRevalidator) RevalidateTag(context.Context, string) error  { return nil }

// RevalidatorFuncs adapts plain functions to Revalidator. Nil functions are no-ops.
type RevalidatorFuncs struct {
	Path func(ctx context.Context, path string) error
	Tag  func(ctx context.Context, tag string) error
}

func (f RevalidatorFuncs) RevalidatePath(ctx context.Context, path string) error {
	if f.Path == nil {
		return nil
	}
	return f.Path(ctx, path)
}

func (f RevalidatorFuncs) RevalidateTag(ctx context.Context, tag string) error {
	if f.Tag == nil {
		return nil
	}
	return f.Tag(ctx, tag)
}

// SecretHeader carries the shared secret on webhook requests.
const SecretHeader = "X-Revalidate-Secret"

// WebhookConfig configures a WebhookRevalidator.
type WebhookConfig struct {
	URL        string
	Secret     string
	Timeout    time.Duration
	MaxRetries uint64
}

// WebhookRevalidator POSTs revalidation requests to the rendering layer.
type WebhookRevalidator struct {
	url        string
	secret     string
	maxRetries uint64
	client     *http.Client
}

type webhookPayload struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// NewWebhookRevalidator returns a revalidator posting to cfg.URL. A nil client
// uses a client with cfg.Timeout.
func NewWebhookRevalidator(cfg WebhookConfig, client *http.Client) (*WebhookRevalidator, error) {
	if cfg.URL == "" {
		return nil, goerrors.New("revalidation webhook URL is required", goerrors.CategoryValidation)
	}
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &WebhookRevalidator{
		url:        cfg.URL,
		secret:     cfg.Secret,
		maxRetries: cfg.MaxRetries,
		client:     client,
	}, nil
}

func (w *WebhookRevalidator) RevalidatePath(ctx context.Context, path string) error {
	return w.post(ctx, webhookPayload{Type: "path", Value: path})
}

func (w *WebhookRevalidator) RevalidateTag(ctx context.Context, tag string) error {
	return w.post(ctx, webhookPayload{Type: "tag", Value: tag})
}

func (w *WebhookRevalidator) post(ctx context.Context, payload webhookPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), w.maxRetries),
		ctx,
	)

	return backoff.Retry(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		if w.secret != "" {
			req.Header.Set(SecretHeader, w.secret)
		}

		resp, err := w.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, resp.Body)

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return nil
		case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
			return fmt.Errorf("revalidate %s %q: status %d", payload.Type, payload.Value, resp.StatusCode)
		default:
			return backoff.Permanent(fmt.Errorf("revalidate %s %q: status %d", payload.Type, payload.Value, resp.StatusCode))
		}
	}, policy)
}
