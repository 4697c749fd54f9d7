// Package monitor serves the live log stream to a browser or tooling client
// over a websocket.
package monitor

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/thn-ecu/lampdiag/logstream"
)

const drainInterval = 200 * time.Millisecond

// Server streams the lines of one log queue. The queue has a single
// consumer: with several clients connected, each line reaches exactly one of
// them, so one live viewer is the intended setup.
type Server struct {
	queue    *logstream.Queue
	upgrader websocket.Upgrader
}

func New(queue *logstream.Queue) *Server {
	return &Server{
		queue: queue,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// ListenAndServe blocks serving the websocket endpoint at /ws.
func (s *Server) ListenAndServe(addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	log.Printf("monitor: listening on %s", addr)
	return http.ListenAndServe(addr, mux)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("monitor: upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	// Reader goroutine: only there to notice the client going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(drainInterval)
	defer ticker.Stop()
	for {
		select {
		case <-closed:
			return
		case <-ticker.C:
			for _, line := range s.queue.Drain() {
				if err := conn.WriteMessage(websocket.TextMessage, []byte(line)); err != nil {
					return
				}
			}
		}
	}
}
