package scraper

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `{
  "data": {
    "startedAt": "2024-05-01T12:00:00.000Z",
    "result": {
      "outcome": {"number": 27, "color": "Red"},
      "luckyNumbersList": [{"number": 3, "roulettePayout": 500}, {"number": 27, "roulettePayout": 50}]
    }
  }
}`

func TestFetch_ParsesOutcome(t *testing.T) {
	var agent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		agent = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(sample))
	}))
	defer srv.Close()

	c := New(srv.URL, "Mozilla/5.0", time.Second)
	o, err := c.Fetch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "Mozilla/5.0", agent)
	assert.Equal(t, 27, o.Number)
	assert.Equal(t, "Red", o.Color)
	assert.Equal(t, "2024-05-01T12:00:00.000Z", o.Timestamp)
	assert.Equal(t, []int{3, 27}, o.LuckyNumbers)
}

func TestFetch_MissingFields(t *testing.T) {
	cases := map[string]string{
		"no number":    `{"data":{"startedAt":"t","result":{"outcome":{"color":"Red"}}}}`,
		"no timestamp": `{"data":{"result":{"outcome":{"number":4}}}}`,
		"empty":        `{}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte(body))
			}))
			defer srv.Close()

			_, err := New(srv.URL, "", time.Second).Fetch(context.Background())
			assert.True(t, errors.Is(err, ErrMalformed), "got %v", err)
		})
	}
}

func TestFetch_DefaultColor(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{"startedAt":"t","result":{"outcome":{"number":0}}}}`))
	}))
	defer srv.Close()

	o, err := New(srv.URL, "", time.Second).Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, o.Number)
	assert.Equal(t, "-", o.Color)
}

func TestFetch_BreakerOpensAfterFailures(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New(srv.URL, "", time.Second)
	for i := 0; i < 5; i++ {
		_, err := c.Fetch(context.Background())
		assert.Error(t, err)
	}
	_, err := c.Fetch(context.Background())
	assert.True(t, errors.Is(err, gobreaker.ErrOpenState))
	assert.Equal(t, int32(5), atomic.LoadInt32(&hits))
}

func TestFetch_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := New(srv.URL, "", time.Second).Fetch(ctx)
	assert.Error(t, err)
}
