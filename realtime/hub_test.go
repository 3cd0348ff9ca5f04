package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func receive(t *testing.T, s *Subscriber) Event {
	t.Helper()
	select {
	case ev := <-s.Events():
		return ev
	case <-time.After(time.Second):
		t.Fatal("no event received")
		return Event{}
	}
}

func TestPublishRoutesByTopic(t *testing.T) {
	h := NewHub(zap.NewNop())
	admin := h.Subscribe(TopicAdmin)
	ticket := h.Subscribe(TicketTopic("t1"))
	other := h.Subscribe(TicketTopic("t2"))

	h.Publish(TopicAdmin, Event{Type: "order.created"})
	h.Publish(TicketTopic("t1"), Event{Type: "ticket.message"})

	assert.Equal(t, "order.created", receive(t, admin).Type)
	ev := receive(t, ticket)
	assert.Equal(t, "ticket.message", ev.Type)
	assert.False(t, ev.At.IsZero())
	assert.Empty(t, other.Events())
}

func TestSlowSubscriberIsDropped(t *testing.T) {
	h := NewHub(zap.NewNop())
	h.buffer = 2
	slow := h.Subscribe(TopicAdmin)

	for i := 0; i < 3; i++ {
		h.Publish(TopicAdmin, Event{Type: "x"})
	}

	select {
	case <-slow.Done():
	default:
		t.Fatal("slow subscriber was not dropped")
	}
	assert.Equal(t, 0, h.Subscribers())
}

func TestRunStopsSubscribersOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	h := NewHub(zap.NewNop())
	s := h.Subscribe(TopicAdmin)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(done)
	}()

	cancel()
	<-done
	<-s.Done()

	late := h.Subscribe(TopicAdmin)
	<-late.Done()
	assert.Equal(t, 0, h.Subscribers())
}

func TestServeWS(t *testing.T) {
	h := NewHub(zap.NewNop())
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.ServeWS(w, r, TopicAdmin)
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return h.Subscribers() == 1 }, time.Second, 10*time.Millisecond)
	h.Publish(TopicAdmin, Event{Type: "ticket.created", Data: map[string]string{"id": "t1"}})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev Event
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, "ticket.created", ev.Type)

	h.Close()
	_, _, err = conn.ReadMessage()
	assert.Error(t, err)
}

func TestServeWSChecksOrigin(t *testing.T) {
	h := NewHub(zap.NewNop())
	h.AllowOrigins("https://www.liontech.com.br/")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.ServeWS(w, r, TopicAdmin)
	}))
	defer srv.Close()
	defer h.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	_, resp, err := websocket.DefaultDialer.Dial(wsURL, http.Header{"Origin": {"https://evil.example"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	for _, origin := range []string{"https://www.liontech.com.br", srv.URL} {
		conn, _, err := websocket.DefaultDialer.Dial(wsURL, http.Header{"Origin": {origin}})
		require.NoError(t, err, origin)
		conn.Close()
	}
}
