// Package scraper fetches the latest outcome from the public results feed.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"roulette-dozen/internal/dozen"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
)

// ErrMalformed is returned when the feed answers without the fields an
// observation needs.
var ErrMalformed = errors.New("malformed feed response")

type feedResponse struct {
	Data struct {
		StartedAt string `json:"startedAt"`
		Result    struct {
			Outcome struct {
				Number *int   `json:"number"`
				Color  string `json:"color"`
			} `json:"outcome"`
			LuckyNumbersList []struct {
				Number int `json:"number"`
			} `json:"luckyNumbersList"`
		} `json:"result"`
	} `json:"data"`
}

// Client polls the feed. Repeated failures open a circuit breaker so a dead
// feed is not hammered every tick.
type Client struct {
	url     string
	rest    *resty.Client
	breaker *gobreaker.CircuitBreaker
}

// New creates a feed client. A zero timeout falls back to 10s.
func New(url, userAgent string, timeout time.Duration) *Client {
	r := resty.New()
	if timeout > 0 {
		r.SetTimeout(timeout)
	} else {
		r.SetTimeout(10 * time.Second)
	}
	if userAgent != "" {
		r.SetHeader("User-Agent", userAgent)
	}
	r.SetHeader("Accept", "application/json")

	st := gobreaker.Settings{
		Name:     "feed",
		Interval: 10 * time.Minute,
		Timeout:  2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("Feed circuit breaker state changed")
		},
	}
	return &Client{url: url, rest: r, breaker: gobreaker.NewCircuitBreaker(st)}
}

// Fetch returns the most recent outcome. The observation is not validated
// here; range checks belong to ingestion.
func (c *Client) Fetch(ctx context.Context) (dozen.Observation, error) {
	v, err := c.breaker.Execute(func() (interface{}, error) {
		return c.fetch(ctx)
	})
	if err != nil {
		return dozen.Observation{}, err
	}
	return v.(dozen.Observation), nil
}

func (c *Client) fetch(ctx context.Context) (dozen.Observation, error) {
	body := &feedResponse{}
	resp, err := c.rest.R().
		SetContext(ctx).
		SetResult(body).
		Get(c.url)
	if err != nil {
		return dozen.Observation{}, fmt.Errorf("fetch feed: %w", err)
	}
	if resp.IsError() {
		return dozen.Observation{}, fmt.Errorf("fetch feed: status %d", resp.StatusCode())
	}
	return parse(body)
}

func parse(body *feedResponse) (dozen.Observation, error) {
	outcome := body.Data.Result.Outcome
	if outcome.Number == nil {
		return dozen.Observation{}, fmt.Errorf("%w: no outcome number", ErrMalformed)
	}
	if body.Data.StartedAt == "" {
		return dozen.Observation{}, fmt.Errorf("%w: no startedAt", ErrMalformed)
	}
	color := outcome.Color
	if color == "" {
		color = "-"
	}
	o := dozen.Observation{
		Number:    *outcome.Number,
		Color:     color,
		Timestamp: body.Data.StartedAt,
	}
	for _, ln := range body.Data.Result.LuckyNumbersList {
		o.LuckyNumbers = append(o.LuckyNumbers, ln.Number)
	}

	log.Debug().Int("number", o.Number).Str("timestamp", o.Timestamp).Msg("Feed outcome captured")
	return o, nil
}
