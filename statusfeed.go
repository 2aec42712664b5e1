// Package main - statusfeed.go
//
// StatusFeed serves the live bot status to local dashboards.
//
// Endpoints (loopback clients only):
//   - GET /status       JSON snapshot
//   - GET /status/ws    websocket; one JSON Status text message per tick
//
// Each websocket client gets a small outbound queue. A client that cannot
// keep up loses messages rather than slowing the bot down; a write error
// drops the client.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	feedQueueSize    = 8
	feedWriteTimeout = 5 * time.Second
)

type feedClient struct {
	out chan []byte
}

// StatusFeed broadcasts Status snapshots over websocket.
type StatusFeed struct {
	snapshot func() Status
	interval time.Duration
	log      Logger
	upgrader websocket.Upgrader

	clients map[*feedClient]struct{}
	mu      sync.Mutex
}

// NewStatusFeed creates a feed that polls snapshot every interval.
func NewStatusFeed(snapshot func() Status, interval time.Duration, log Logger) *StatusFeed {
	if interval <= 0 {
		interval = time.Second
	}
	return &StatusFeed{
		snapshot: snapshot,
		interval: interval,
		log:      orNop(log),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[*feedClient]struct{}),
	}
}

// Clients returns the number of connected websocket clients
func (f *StatusFeed) Clients() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.clients)
}

// Broadcast queues st for every client.
func (f *StatusFeed) Broadcast(st Status) {
	b, err := json.Marshal(st)
	if err != nil {
		f.log.Error("encode status: %v", err)
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for c := range f.clients {
		select {
		case c.out <- b:
		default:
		}
	}
}

// Handler returns the HTTP routes of the feed.
func (f *StatusFeed) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", f.serveSnapshot)
	mux.HandleFunc("/status/ws", f.serveWS)
	return mux
}

func (f *StatusFeed) serveSnapshot(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !isLoopbackRemote(r.RemoteAddr) {
		http.Error(rw, "forbidden", http.StatusForbidden)
		return
	}
	rw.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(rw).Encode(f.snapshot())
}

func (f *StatusFeed) serveWS(rw http.ResponseWriter, r *http.Request) {
	if !isLoopbackRemote(r.RemoteAddr) {
		http.Error(rw, "forbidden", http.StatusForbidden)
		return
	}
	conn, err := f.upgrader.Upgrade(rw, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	c := &feedClient{out: make(chan []byte, feedQueueSize)}
	f.mu.Lock()
	f.clients[c] = struct{}{}
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		delete(f.clients, c)
		f.mu.Unlock()
	}()
	f.log.Debug("status client %s connected", r.RemoteAddr)

	// Reads only detect the close; clients have nothing to say.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			f.log.Debug("status client %s left", r.RemoteAddr)
			return
		case b := <-c.out:
			_ = conn.SetWriteDeadline(time.Now().Add(feedWriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
				f.log.Debug("status client %s dropped: %v", r.RemoteAddr, err)
				return
			}
		}
	}
}

// Run broadcasts a snapshot every interval until ctx is done.
func (f *StatusFeed) Run(ctx context.Context) error {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			f.Broadcast(f.snapshot())
		}
	}
}

// ListenAndServe serves the feed on addr and broadcasts until ctx is done.
func (f *StatusFeed) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           f.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	SafeGo(f.log, "status feed broadcaster", func() { _ = f.Run(ctx) })

	f.log.Info("Status feed listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
