package realtime

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

// AllowOrigins adds browser origins, such as the public storefront URL,
// that may open websockets. Requests from the serving host itself and
// clients that send no Origin header are always accepted. Call before
// serving.
func (h *Hub) AllowOrigins(origins ...string) {
	for _, o := range origins {
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			h.origins = append(h.origins, strings.ToLower(u.Scheme+"://"+u.Host))
		}
	}
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	if strings.EqualFold(u.Host, r.Host) {
		return true
	}
	got := strings.ToLower(u.Scheme + "://" + u.Host)
	for _, o := range h.origins {
		if o == got {
			return true
		}
	}
	return false
}

// ServeWS upgrades the request and streams the events of topics until the
// client disconnects or the subscriber is dropped. Client messages are
// discarded.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, topics ...string) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("problem initiating websocket", zap.Error(err))
		return
	}
	defer conn.Close()

	sub := h.Subscribe(topics...)
	defer h.Unsubscribe(sub)

	go func() {
		defer h.Unsubscribe(sub)
		conn.SetReadLimit(512)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case ev := <-sub.Events():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-sub.Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		}
	}
}

// FeedHandler streams the dashboard topic.
func FeedHandler(h *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.ServeWS(w, r, TopicAdmin)
	}
}
