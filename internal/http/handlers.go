package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"triage-kiosk/internal/core"
	"triage-kiosk/internal/db"
	"triage-kiosk/internal/sensor"
	"triage-kiosk/internal/session"
	"triage-kiosk/pkg"
)

// Server is the thin presentation shim in front of the session machine. It
// translates HTTP calls into the machine's callbacks, re-emits the machine's
// events over SSE, and runs the post-classification work (description
// refinement, queue notification) that must not live in the core. It
// implements http.Handler and session.Events.
type Server struct {
	Machine    *session.Machine
	Store      *db.Store
	Summarizer *core.Summarizer
	Notifier   *db.Notifier // nil disables queue notifications

	mu        sync.Mutex
	lastSnap  session.Snapshot
	lastError string
	subs      map[chan []byte]struct{}
}

// NewServer constructs a Server. Wire it as the machine's Events sink before
// the machine processes anything.
func NewServer(store *db.Store, summarizer *core.Summarizer, notifier *db.Notifier) *Server {
	return &Server{
		Store:      store,
		Summarizer: summarizer,
		Notifier:   notifier,
		subs:       make(map[chan []byte]struct{}),
	}
}

// ServeHTTP dispatches incoming requests based on the URL path. Minimal
// routing logic is implemented here to keep dependencies light.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	switch {
	case path == "/api/session" && r.Method == http.MethodGet:
		s.handleGetSession(w, r)
	case path == "/api/session/stream" && r.Method == http.MethodGet:
		s.handleStream(w, r)
	case path == "/api/symptoms" && r.Method == http.MethodGet:
		s.writeJSON(w, map[string]interface{}{"symptoms": pkg.SymptomCatalog})
	case path == "/api/session/begin" && r.Method == http.MethodPost:
		s.respond(w, s.Machine.Begin())
	case path == "/api/session/identify" && r.Method == http.MethodPost:
		s.handleIdentify(w, r)
	case path == "/api/session/biometric" && r.Method == http.MethodPost:
		s.respond(w, s.Machine.BiometricConfirm())
	case strings.HasPrefix(path, "/api/session/measure/") && r.Method == http.MethodPost:
		kind := sensor.Kind(strings.TrimPrefix(path, "/api/session/measure/"))
		s.respond(w, s.Machine.MeasureTrigger(kind))
	case path == "/api/session/symptoms" && r.Method == http.MethodPost:
		s.handleSymptoms(w, r)
	case path == "/api/session/back" && r.Method == http.MethodPost:
		s.respond(w, s.Machine.Back())
	case path == "/api/session/restart" && r.Method == http.MethodPost:
		s.respond(w, s.Machine.Restart())
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	lastError := s.lastError
	s.mu.Unlock()
	s.writeJSON(w, map[string]interface{}{
		"session": s.Machine.Snapshot(),
		"error":   lastError,
	})
}

func (s *Server) handleIdentify(w http.ResponseWriter, r *http.Request) {
	var req struct {
		NationalID string `json:"national_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	s.respond(w, s.Machine.IdentifySubmit(r.Context(), req.NationalID))
}

func (s *Server) handleSymptoms(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Symptoms []string `json:"symptoms"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	s.respond(w, s.Machine.SymptomsConfirm(req.Symptoms))
}

// respond maps a callback result to HTTP and returns the fresh snapshot, so
// a kiosk UI without the event stream can still poll its way through.
func (s *Server) respond(w http.ResponseWriter, err error) {
	if err != nil {
		if errors.Is(err, session.ErrInvalidTransition) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.mu.Lock()
	lastError := s.lastError
	s.mu.Unlock()
	s.writeJSON(w, map[string]interface{}{
		"session": s.Machine.Snapshot(),
		"error":   lastError,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response: %v", err)
	}
}

// handleStream streams machine events to the kiosk UI as SSE.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	sub := make(chan []byte, 16)
	s.mu.Lock()
	s.subs[sub] = struct{}{}
	snap := s.lastSnap
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.subs, sub)
		s.mu.Unlock()
	}()

	// Send the current state first so a reconnecting UI can resync.
	if data, err := json.Marshal(map[string]interface{}{"type": "state_changed", "session": snap}); err == nil {
		io.WriteString(w, "data: "+string(data)+"\n\n")
		flusher.Flush()
	}
	for {
		select {
		case <-r.Context().Done():
			return
		case data := <-sub:
			if _, err := io.WriteString(w, "data: "+string(data)+"\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// broadcast fans an event payload out to all stream subscribers. A slow
// subscriber loses events rather than stalling the session.
func (s *Server) broadcast(payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("marshal event: %v", err)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for sub := range s.subs {
		select {
		case sub <- data:
		default:
		}
	}
}

// StateChanged implements session.Events.
func (s *Server) StateChanged(snap session.Snapshot) {
	s.mu.Lock()
	s.lastSnap = snap
	s.mu.Unlock()
	s.broadcast(map[string]interface{}{"type": "state_changed", "session": snap})
}

// ValidationError implements session.Events.
func (s *Server) ValidationError(message string) {
	s.mu.Lock()
	s.lastError = message
	s.mu.Unlock()
	s.broadcast(map[string]interface{}{"type": "validation_error", "message": message})
}

// MeasurementRecorded implements session.Events.
func (s *Server) MeasurementRecorded(kind sensor.Kind, value string) {
	s.broadcast(map[string]interface{}{"type": "measurement_recorded", "kind": kind, "value": value})
}

// ClassificationReady implements session.Events. Besides forwarding the
// event, it kicks off the fire-and-forget post-classification work using the
// snapshot emitted just before this event.
func (s *Server) ClassificationReady(level pkg.RiskLevel, color string) {
	s.mu.Lock()
	snap := s.lastSnap
	s.mu.Unlock()
	s.broadcast(map[string]interface{}{"type": "classification_ready", "risk_level": int(level), "color": color})
	go s.afterClassification(snap, level)
}

// afterClassification refines the persisted description and notifies the
// queue display. Both are best-effort: failures are logged and never touch
// the session.
func (s *Server) afterClassification(snap session.Snapshot, level pkg.RiskLevel) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if snap.Person == nil {
		return
	}
	if s.Summarizer != nil {
		base := core.DescribeVisit(&snap.Reading)
		desc, err := s.Summarizer.Describe(ctx, snap.Person, &snap.Reading, level)
		if err != nil {
			log.Println("failed to refine description:", err)
		} else if desc != base {
			if err := s.Store.UpdateRecordDescription(ctx, snap.Person.ID, desc); err != nil {
				log.Println("failed to update description:", err)
			}
		}
	}
	if s.Notifier != nil {
		err := s.Notifier.Notify(ctx, db.Classification{
			VisitID:    snap.VisitID,
			PersonID:   snap.Person.ID,
			RiskLevel:  int(level),
			Color:      level.Color(),
			NotifiedAt: time.Now().UTC().Format(time.RFC3339),
		})
		if err != nil {
			log.Println("failed to notify queue channel:", err)
		}
	}
}
