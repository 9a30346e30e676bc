package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"triage-kiosk/internal/db"
	"triage-kiosk/internal/sensor"
	"triage-kiosk/internal/session"
	"triage-kiosk/internal/triage"
	"triage-kiosk/pkg"
)

type stubStore struct {
	people map[string]*pkg.Person
}

func (s *stubStore) FindPersonByNationalID(_ context.Context, id string) (*pkg.Person, error) {
	p, ok := s.people[id]
	if !ok {
		return nil, db.ErrPersonNotFound
	}
	return p, nil
}

func (s *stubStore) UpsertPatientRecord(context.Context, *pkg.PatientRecord) error {
	return nil
}

func newTestServer() *Server {
	srv := NewServer(nil, nil, nil)
	store := &stubStore{people: map[string]*pkg.Person{
		"52998224725": {ID: 1, Name: "Maria da Silva", NationalID: "52998224725"},
	}}
	srv.Machine = session.New(session.Config{
		Sensors:    sensor.NewSimulatedSource(1, time.Millisecond, time.Millisecond),
		Classifier: triage.NewRuleBasedClassifier(triage.Config{}),
		Store:      store,
		Events:     srv,
	})
	return srv
}

type sessionResponse struct {
	Session session.Snapshot `json:"session"`
	Error   string           `json:"error"`
}

func post(t *testing.T, srv *Server, path, body string) (*httptest.ResponseRecorder, sessionResponse) {
	t.Helper()
	r := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, r)
	var resp sessionResponse
	if w.Code == http.StatusOK {
		if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
			t.Fatalf("decode %s response: %v", path, err)
		}
	}
	return w, resp
}

func TestSymptomCatalogEndpoint(t *testing.T) {
	srv := newTestServer()
	r := httptest.NewRequest(http.MethodGet, "/api/symptoms", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp struct {
		Symptoms []string `json:"symptoms"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Symptoms) != 7 {
		t.Errorf("catalog size = %d, want 7", len(resp.Symptoms))
	}
}

func TestIdentifyFlowOverHTTP(t *testing.T) {
	srv := newTestServer()

	w, resp := post(t, srv, "/api/session/begin", "")
	if w.Code != http.StatusOK || resp.Session.State != session.StateIdentify {
		t.Fatalf("begin: status %d state %q", w.Code, resp.Session.State)
	}

	// Unknown person keeps the session in Identify and reports the error.
	w, resp = post(t, srv, "/api/session/identify", `{"national_id":"111.444.777-35"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("identify: status %d", w.Code)
	}
	if resp.Session.State != session.StateIdentify {
		t.Errorf("state = %q, want identify", resp.Session.State)
	}
	if resp.Error == "" {
		t.Error("expected a validation message for an unknown ID")
	}

	// The seeded person advances to biometric.
	w, resp = post(t, srv, "/api/session/identify", `{"national_id":"529.982.247-25"}`)
	if w.Code != http.StatusOK || resp.Session.State != session.StateBiometric {
		t.Fatalf("identify known: status %d state %q", w.Code, resp.Session.State)
	}
	if resp.Session.Person == nil || resp.Session.Person.NationalID != "52998224725" {
		t.Errorf("person = %+v", resp.Session.Person)
	}
}

func TestOutOfOrderCallbackConflicts(t *testing.T) {
	srv := newTestServer()
	w, _ := post(t, srv, "/api/session/measure/temperature", "")
	if w.Code != http.StatusConflict {
		t.Errorf("measure from idle: status = %d, want 409", w.Code)
	}
	w, _ = post(t, srv, "/api/session/symptoms", `{"symptoms":[]}`)
	if w.Code != http.StatusConflict {
		t.Errorf("symptoms from idle: status = %d, want 409", w.Code)
	}
}

func TestIdentifyRejectsBadBody(t *testing.T) {
	srv := newTestServer()
	post(t, srv, "/api/session/begin", "")
	w, _ := post(t, srv, "/api/session/identify", "{not json")
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}
