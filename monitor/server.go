// Package monitor exposes the tuner over HTTP: a JSON status snapshot
// and a WebSocket event stream for dashboards.
package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"radiotuner/events"
	"radiotuner/tuner"
)

// Server serves /api/status and /ws. Create with New, then call Run.
type Server struct {
	machine *tuner.Machine
	hub     *events.Hub
	addr    string
	auth    *authenticator

	upgrader websocket.Upgrader
}

// New builds a monitor listening on addr. A non-empty authSecret
// requires a bearer token on every request.
func New(addr, authSecret string, machine *tuner.Machine, hub *events.Hub) *Server {
	return &Server{
		machine: machine,
		hub:     hub,
		addr:    addr,
		auth:    newAuthenticator(authSecret),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Run serves until ctx is cancelled. A clean shutdown returns nil.
func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", s.auth.require(s.handleStatus))
	mux.HandleFunc("/ws", s.auth.require(s.handleWS))

	srv := &http.Server{
		Addr:    s.addr,
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutCtx)
	}()

	log.Printf("[monitor] listening on %s", s.addr)
	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// statusReply is the /api/status JSON shape.
type statusReply struct {
	Mode      string `json:"mode"`
	Frequency string `json:"frequency,omitempty"`
	Volume    int    `json:"volume"`
	Muted     bool   `json:"muted"`
	Busy      bool   `json:"busy"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	st, err := s.machine.Status(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	reply := statusReply{
		Mode:   st.Mode.String(),
		Volume: st.Volume,
		Muted:  st.Muted,
		Busy:   st.Busy,
	}
	if st.Mode != tuner.ModeOff {
		reply.Frequency = tuner.FormatFrequency(st.Mode, st.Frequency)
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(reply); err != nil {
		log.Printf("[monitor] status encode: %v", err)
	}
}

// eventFrame is the /ws JSON shape, one frame per tuner event.
type eventFrame struct {
	Type      string `json:"type"`
	Stamp     int64  `json:"stamp"` // Unix ms
	Mode      string `json:"mode,omitempty"`
	Frequency string `json:"frequency,omitempty"`
	Volume    int    `json:"volume,omitempty"`
	Muted     bool   `json:"muted,omitempty"`
	Found     bool   `json:"found,omitempty"`
	Error     string `json:"error,omitempty"`
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] upgrade error: %v", err)
		return
	}
	defer conn.Close()

	sub := s.hub.Subscribe("ws:" + r.RemoteAddr)
	defer s.hub.Unsubscribe(sub)

	log.Printf("[ws] client connected from %s", r.RemoteAddr)

	// The read loop only exists to notice the peer going away.
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
		case <-r.Context().Done():
			return
		case <-done:
			return
		case ev, ok := <-sub.Events():
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := conn.WriteJSON(frameFor(ev)); err != nil {
				log.Printf("[ws] write to %s: %v", r.RemoteAddr, err)
				return
			}
		}
	}
}

func frameFor(ev events.Event) eventFrame {
	frame := eventFrame{
		Type:   ev.Type.String(),
		Stamp:  ev.Time.UnixMilli(),
		Mode:   ev.Mode,
		Volume: ev.Volume,
		Muted:  ev.Muted,
		Found:  ev.Found,
		Error:  ev.Err,
	}

	mode := tuner.ModeOff
	switch ev.Mode {
	case tuner.ModeFM.String():
		mode = tuner.ModeFM
	case tuner.ModeAM.String():
		mode = tuner.ModeAM
	}
	if mode != tuner.ModeOff && ev.Frequency != 0 {
		frame.Frequency = tuner.FormatFrequency(mode, ev.Frequency)
	}
	return frame
}
