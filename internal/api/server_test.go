package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ifpj/netwatch/internal/eventbus"
	"github.com/ifpj/netwatch/internal/types"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubConfigStore struct {
	cfg        types.Config
	applyCalls int
	applyErr   error
}

func (s *stubConfigStore) Current() types.Config { return s.cfg }

func (s *stubConfigStore) Apply(cfg types.Config) error {
	s.applyCalls++
	if s.applyErr != nil {
		return s.applyErr
	}
	s.cfg = cfg
	return nil
}

func port(p int) *int { return &p }

func validConfig() types.Config {
	return types.Config{
		Targets: []types.Target{
			{ID: "a", Name: "api", Protocol: types.ProtocolTCP, Host: "example.com", Port: port(443), IntervalS: 10, TimeoutS: 2, Threshold: 3},
		},
		DataRetentionDays: 3,
	}
}

func TestHandleStatus_ReturnsStatuses(t *testing.T) {
	up := true
	statuses := []types.TargetStatus{{Target: types.Target{ID: "a"}, CurrentState: &up}}
	srv := NewServer(func() []types.TargetStatus { return statuses }, &stubConfigStore{}, eventbus.New(), discardLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got []types.TargetStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(got) != 1 || got[0].Target.ID != "a" {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestHandlePostConfig_RejectsInvalidConfig(t *testing.T) {
	store := &stubConfigStore{}
	srv := NewServer(func() []types.TargetStatus { return nil }, store, eventbus.New(), discardLogger())

	body := []byte(`{"targets":[{"id":"a","protocol":"TCP","host":"x","interval":10,"timeout":2,"threshold":3}]}`)
	req := httptest.NewRequest(http.MethodPost, "/api/config", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing port, got %d", rec.Code)
	}
	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if success, _ := resp["success"].(bool); success {
		t.Fatalf("expected success=false in response: %s", rec.Body.String())
	}
	if store.applyCalls != 0 {
		t.Fatalf("expected Apply not called for invalid config")
	}
}

func TestHandlePostConfig_AcceptsValidConfig(t *testing.T) {
	store := &stubConfigStore{}
	srv := NewServer(func() []types.TargetStatus { return nil }, store, eventbus.New(), discardLogger())

	body, _ := json.Marshal(validConfig())
	req := httptest.NewRequest(http.MethodPost, "/api/config", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if store.applyCalls != 1 {
		t.Fatalf("expected Apply called once, got %d", store.applyCalls)
	}
}

func TestHandleHealthz_ReturnsOK(t *testing.T) {
	srv := NewServer(func() []types.TargetStatus { return nil }, &stubConfigStore{}, eventbus.New(), discardLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/healthz", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
