// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package events

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	log "github.com/inconshreveable/log15"
)

const (
	wsReadBuffer   = 1024
	wsWriteBuffer  = 1024
	wsPingInterval = 30 * time.Second
	wsWriteTimeout = 5 * time.Second
	wsReadLimit    = 4 * 1024

	// sendBuffer is how many events a slow page may fall behind before it
	// is dropped.
	sendBuffer = 16
)

// Hub serves the events websocket. Each connection is an observer of the
// registry for as long as it stays open.
type Hub struct {
	registry *Registry
	upgrader websocket.Upgrader

	wg  sync.WaitGroup
	log log.Logger
}

func NewHub(registry *Registry) *Hub {
	return &Hub{
		registry: registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  wsReadBuffer,
			WriteBufferSize: wsWriteBuffer,
			// Pages on any origin may listen; nothing sensitive is pushed.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		log: log.New("module", "events-hub"),
	}
}

type peer struct {
	conn   *websocket.Conn
	send   chan Event
	closed chan struct{}
	once   sync.Once
}

// Notify queues e without blocking. A full queue closes the peer.
func (p *peer) Notify(e Event) {
	select {
	case p.send <- e:
	case <-p.closed:
	default:
		p.close()
	}
}

func (p *peer) close() {
	p.once.Do(func() {
		close(p.closed)
		_ = p.conn.Close()
	})
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("websocket upgrade failed", "err", err)
		return
	}
	conn.SetReadLimit(wsReadLimit)

	p := &peer{
		conn:   conn,
		send:   make(chan Event, sendBuffer),
		closed: make(chan struct{}),
	}
	unsubscribe := h.registry.Subscribe(p)
	h.log.Debug("page subscribed", "origin", r.Header.Get("Origin"))

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		defer unsubscribe()
		h.write(p)
	}()

	// Pages never send; reading only detects the close.
	for {
		if _, _, err := conn.NextReader(); err != nil {
			p.close()
			return
		}
	}
}

func (h *Hub) write(p *peer) {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()
	for {
		select {
		case e := <-p.send:
			_ = p.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := p.conn.WriteJSON(e); err != nil {
				h.log.Debug("dropping page", "err", err)
				p.close()
				return
			}
			if e.Event == Uninstall {
				p.close()
				return
			}
		case <-ticker.C:
			deadline := time.Now().Add(wsWriteTimeout)
			if err := p.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				p.close()
				return
			}
		case <-p.closed:
			return
		}
	}
}

// Wait blocks until every connection's writer has exited.
func (h *Hub) Wait() {
	h.wg.Wait()
}
