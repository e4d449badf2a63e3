package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"roulette-dozen/internal/dozen"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func change(l dozen.Label) Change {
	return Change{Label: l, Confidence: 0.5, HistorySize: 30, At: time.Unix(0, 0).UTC()}
}

func TestWebhook_PostsChange(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	prev := dozen.First
	c := change(dozen.Third)
	c.Previous = &prev
	require.NoError(t, NewWebhook(srv.URL, time.Second).Notify(context.Background(), c))

	assert.Equal(t, "THIRD", got["label"])
	assert.Equal(t, "FIRST", got["previous"])
	assert.Equal(t, float64(30), got["history_size"])
}

func TestWebhook_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := NewWebhook(srv.URL, time.Second).Notify(context.Background(), change(dozen.Zero))
	assert.Error(t, err)
}

func TestMulti_DeliversToAllAndJoinsErrors(t *testing.T) {
	var calls int
	ok := NotifierFunc(func(context.Context, Change) error { calls++; return nil })
	boom := errors.New("boom")
	bad := NotifierFunc(func(context.Context, Change) error { calls++; return boom })

	err := Multi{ok, bad, nil, ok, Nop{}}.Notify(context.Background(), change(dozen.First))
	assert.Equal(t, 3, calls)
	assert.True(t, errors.Is(err, boom))

	assert.NoError(t, Multi{ok}.Notify(context.Background(), change(dozen.First)))
}

func TestHub_BroadcastsToClients(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(hub)
	defer srv.Close()
	defer hub.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 10*time.Millisecond)
	require.NoError(t, hub.Notify(context.Background(), change(dozen.Second)))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got Change
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, dozen.Second, got.Label)
	assert.Equal(t, 30, got.HistorySize)

	conn.Close()
	assert.Eventually(t, func() bool { return hub.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestWatch_ReceivesChanges(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(hub)
	defer srv.Close()
	defer hub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan Change, 1)
	done := make(chan error, 1)
	go func() { done <- Watch(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), out) }()

	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, hub.Notify(ctx, change(dozen.Zero)))

	select {
	case c := <-out:
		assert.Equal(t, dozen.Zero, c.Label)
	case <-time.After(2 * time.Second):
		t.Fatal("no change received")
	}

	cancel()
	select {
	case err := <-done:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop")
	}
}
