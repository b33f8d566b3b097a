package httpapi

import (
	"context"
	"net/http"
	"sync"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/agentworkforce/recordmirror/internal/mirror"
)

const websocketWriteTimeout = 5 * time.Second

// hub fans pages out to websocket clients. Each client holds at most one
// pending page; a slow client skips straight to the newest one.
type hub struct {
	mu      sync.Mutex
	clients map[*wsClient]struct{}
}

type wsClient struct {
	pages chan mirror.Page
	done  chan struct{}
	once  sync.Once
}

func newHub() *hub {
	return &hub{clients: map[*wsClient]struct{}{}}
}

func (h *hub) add() *wsClient {
	c := &wsClient{
		pages: make(chan mirror.Page, 1),
		done:  make(chan struct{}),
	}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	return c
}

func (h *hub) remove(c *wsClient) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.close()
}

func (h *hub) broadcast(page mirror.Page) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.offer(page)
	}
}

func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.close()
		delete(h.clients, c)
	}
}

func (h *hub) size() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (c *wsClient) offer(page mirror.Page) {
	select {
	case c.pages <- page:
		return
	default:
	}
	select {
	case <-c.pages:
	default:
	}
	select {
	case c.pages <- page:
	default:
	}
}

func (c *wsClient) close() {
	c.once.Do(func() { close(c.done) })
}

// handleWebsocket sends the current page on connect and then every page the
// session produces. Messages from the client are ignored.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.logf("websocket accept failed: %v", err)
		return
	}
	defer conn.Close(websocket.StatusInternalError, "")

	ctx := conn.CloseRead(r.Context())
	client := s.hub.add()
	defer s.hub.remove(client)

	if err := writePage(ctx, conn, s.session.Page()); err != nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-client.done:
			conn.Close(websocket.StatusGoingAway, "server shutting down")
			return
		case page := <-client.pages:
			if err := writePage(ctx, conn, page); err != nil {
				return
			}
		}
	}
}

func writePage(ctx context.Context, conn *websocket.Conn, page mirror.Page) error {
	ctx, cancel := context.WithTimeout(ctx, websocketWriteTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, page)
}
