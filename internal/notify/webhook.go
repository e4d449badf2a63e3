package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// Webhook POSTs each change as JSON.
type Webhook struct {
	url  string
	rest *resty.Client
}

func NewWebhook(url string, timeout time.Duration) *Webhook {
	r := resty.New()
	if timeout > 0 {
		r.SetTimeout(timeout)
	} else {
		r.SetTimeout(5 * time.Second)
	}
	r.SetHeader("Content-Type", "application/json")
	return &Webhook{url: url, rest: r}
}

func (w *Webhook) Notify(ctx context.Context, c Change) error {
	resp, err := w.rest.R().
		SetContext(ctx).
		SetBody(c).
		Post(w.url)
	if err != nil {
		return fmt.Errorf("webhook: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("webhook: status %d", resp.StatusCode())
	}
	return nil
}
