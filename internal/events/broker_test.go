package events

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"furnishAi/internal/storage"
)

func TestBroker_PublishFansOut(t *testing.T) {
	b := NewBroker()
	a := b.Subscribe()
	c := b.Subscribe()
	require.Equal(t, 2, b.Subscribers())

	evt := Event{SessionID: "s1", Kind: KindSuggestions, State: storage.StateRunning}
	b.Publish(evt)

	assert.Equal(t, evt, <-a)
	assert.Equal(t, evt, <-c)

	b.Unsubscribe(a)
	b.Unsubscribe(a)
	assert.Equal(t, 1, b.Subscribers())
	_, open := <-a
	assert.False(t, open)
}

func TestBroker_SlowSubscriberDoesNotBlock(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe()
	for i := 0; i < 100; i++ {
		b.Publish(Event{SessionID: "s", Kind: KindBlend})
	}
	assert.Len(t, ch, cap(ch))
}

func TestBroker_ServeHTTPFiltersBySession(t *testing.T) {
	b := NewBroker()
	srv := httptest.NewServer(b)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"?session=mine", nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	require.Eventually(t, func() bool { return b.Subscribers() == 1 }, time.Second, 5*time.Millisecond)
	b.Publish(Event{SessionID: "other", Kind: KindBlend, State: storage.StateRunning})
	b.Publish(Event{SessionID: "mine", Kind: KindSuggestions, State: storage.StateSucceeded})

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "event: suggestions\n", line)
	line, err = reader.ReadString('\n')
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(line, "data: "))
	assert.Contains(t, line, `"session_id":"mine"`)
	assert.Contains(t, line, `"state":"succeeded"`)
}
