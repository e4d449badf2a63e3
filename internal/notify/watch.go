package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Watch subscribes to a hub at url and sends every change to out until ctx
// is done, reconnecting with exponential backoff.
func Watch(ctx context.Context, url string, out chan<- Change) error {
	backoff := time.Second
	maxBackoff := 30 * time.Second

	for {
		err := watchOnce(ctx, url, out)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn().Err(err).Dur("backoff", backoff).Msg("Prediction stream lost, reconnecting")

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func watchOnce(ctx context.Context, url string, out chan<- Change) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	log.Info().Str("url", url).Msg("Subscribed to prediction stream")
	for {
		var c Change
		if err := conn.ReadJSON(&c); err != nil {
			return fmt.Errorf("read: %w", err)
		}
		select {
		case out <- c:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
