// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/relabs-tech/headtrack/internal/tracker"
)

// monitorRate caps how many samples per second reach websocket clients.
const monitorRate = 10

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// Frame is one sample pushed to websocket clients.
type Frame struct {
	Mode        string  `json:"mode"`
	Calibration bool    `json:"calibration"`
	W           float64 `json:"w"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Z           float64 `json:"z"`
	Roll        float64 `json:"roll"`
	Pitch       float64 `json:"pitch"`
	Yaw         float64 `json:"yaw"`
	Time        string  `json:"time"`
}

func frameOf(d tracker.Dispatch) Frame {
	roll, pitch, yaw := d.Sample.Euler()
	return Frame{
		Mode:        d.Mode.String(),
		Calibration: d.Calibration,
		W:           d.Sample.W,
		X:           d.Sample.X,
		Y:           d.Sample.Y,
		Z:           d.Sample.Z,
		Roll:        roll,
		Pitch:       pitch,
		Yaw:         yaw,
		Time:        d.Time.Format(time.RFC3339Nano),
	}
}

// Monitor serves node status, metrics and a throttled sample stream.
type Monitor struct {
	ctrl    Controller
	metrics *Metrics
	limiter *rate.Limiter
	logger  *log.Entry

	frames chan Frame

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

func NewMonitor(ctrl Controller, metrics *Metrics) *Monitor {
	return &Monitor{
		ctrl:    ctrl,
		metrics: metrics,
		limiter: rate.NewLimiter(rate.Limit(monitorRate), 1),
		logger:  log.WithField("component", "web"),
		frames:  make(chan Frame, 1),
		clients: make(map[*websocket.Conn]struct{}),
	}
}

// Observe is a tracker.Observer. Calibration samples always pass the
// throttle; samples over the rate or arriving while a frame is pending are
// dropped.
func (m *Monitor) Observe(d tracker.Dispatch) {
	if !d.Calibration && !m.limiter.Allow() {
		return
	}
	select {
	case m.frames <- frameOf(d):
	default:
	}
}

// Handler returns the monitor's routes.
func (m *Monitor) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", m.handleStatus)
	mux.Handle("/metrics", m.metrics.Handler())
	mux.HandleFunc("/ws", m.handleWS)
	return mux
}

func (m *Monitor) handleStatus(w http.ResponseWriter, _ *http.Request) {
	s := m.ctrl.Status()
	m.metrics.setStatus(s)
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s); err != nil {
		m.logger.Printf("json encode error: %v", err)
	}
}

func (m *Monitor) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		m.logger.Printf("websocket upgrade error: %v", err)
		return
	}
	m.mu.Lock()
	m.clients[conn] = struct{}{}
	n := len(m.clients)
	m.mu.Unlock()
	m.logger.Printf("websocket client connected (%d total)", n)

	// Clients only listen; reading detects the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	m.drop(conn)
}

func (m *Monitor) drop(conn *websocket.Conn) {
	m.mu.Lock()
	_, ok := m.clients[conn]
	delete(m.clients, conn)
	m.mu.Unlock()
	if ok {
		conn.Close()
	}
}

// closeAll disconnects every client; hijacked connections outlive Shutdown.
func (m *Monitor) closeAll() {
	m.mu.Lock()
	conns := m.clients
	m.clients = make(map[*websocket.Conn]struct{})
	m.mu.Unlock()
	for c := range conns {
		c.Close()
	}
}

func (m *Monitor) broadcast(f Frame) {
	m.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(m.clients))
	for c := range m.clients {
		conns = append(conns, c)
	}
	m.mu.Unlock()

	for _, c := range conns {
		c.SetWriteDeadline(time.Now().Add(time.Second))
		if err := c.WriteJSON(f); err != nil {
			m.logger.Printf("websocket write error: %v", err)
			m.drop(c)
		}
	}
}

// pump forwards frames to clients until ctx is done.
func (m *Monitor) pump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			m.closeAll()
			return
		case f := <-m.frames:
			m.broadcast(f)
		}
	}
}

// Run serves on port until ctx is done.
func (m *Monitor) Run(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: m.Handler(),
	}

	go m.pump(ctx)
	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdown)
	}()

	m.logger.Printf("web monitor listening on %s", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("web: %w", err)
	}
	return nil
}
