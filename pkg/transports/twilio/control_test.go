package twilio

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	api "github.com/twilio/twilio-go/rest/api/v2010"
)

type stubCallAPI struct {
	fetchedSID string
	fetchResp  *api.ApiV2010Call
	fetchErr   error

	updatedSID string
	lastUpdate *api.UpdateCallParams
	updateErr  error
}

func (s *stubCallAPI) FetchCall(sid string, _ *api.FetchCallParams) (*api.ApiV2010Call, error) {
	s.fetchedSID = sid
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	return s.fetchResp, nil
}

func (s *stubCallAPI) UpdateCall(sid string, params *api.UpdateCallParams) (*api.ApiV2010Call, error) {
	s.updatedSID = sid
	s.lastUpdate = params
	if s.updateErr != nil {
		return nil, s.updateErr
	}
	return &api.ApiV2010Call{Sid: &sid}, nil
}

func TestCallControlEndCallSetsCompleted(t *testing.T) {
	stub := &stubCallAPI{}
	c := NewCallControl(Config{AccountSID: "AC1", AuthToken: "token"})
	c.client = stub

	if err := c.EndCall(context.Background(), "CA1"); err != nil {
		t.Fatalf("end call: %v", err)
	}
	if stub.updatedSID != "CA1" {
		t.Fatalf("expected update for CA1, got %q", stub.updatedSID)
	}
	if stub.lastUpdate == nil || stub.lastUpdate.Status == nil || *stub.lastUpdate.Status != "completed" {
		t.Fatalf("expected status completed, got %+v", stub.lastUpdate)
	}
}

func TestCallControlFetchCallMapsFields(t *testing.T) {
	status, from, to, duration := "in-progress", "+15550001111", "+15559998888", "42"
	stub := &stubCallAPI{fetchResp: &api.ApiV2010Call{
		Status:   &status,
		From:     &from,
		To:       &to,
		Duration: &duration,
	}}
	c := NewCallControl(Config{AccountSID: "AC1", AuthToken: "token"})
	c.client = stub

	info, err := c.FetchCall(context.Background(), "CA2")
	if err != nil {
		t.Fatalf("fetch call: %v", err)
	}
	if stub.fetchedSID != "CA2" {
		t.Fatalf("expected fetch for CA2, got %q", stub.fetchedSID)
	}
	if info.SID != "CA2" || info.Status != status || info.From != from || info.To != to || info.Duration != duration {
		t.Fatalf("unexpected call info: %+v", info)
	}
}

func TestCallControlRequiresSID(t *testing.T) {
	c := NewCallControl(Config{AccountSID: "AC1", AuthToken: "token"})
	c.client = &stubCallAPI{}
	if err := c.EndCall(context.Background(), " "); err == nil {
		t.Fatalf("expected error for blank sid")
	}
	if _, err := c.FetchCall(context.Background(), ""); err == nil {
		t.Fatalf("expected error for empty sid")
	}
}

func TestHandleCallControlEndsCall(t *testing.T) {
	stub := &stubCallAPI{}
	tr := newTestTransport(Config{AccountSID: "AC1", AuthToken: "token"}, &stubHandler{})
	tr.control.client = stub

	req := httptest.NewRequest(http.MethodDelete, "/api/call/CA55", nil)
	w := httptest.NewRecorder()
	tr.handleCallControl(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if stub.updatedSID != "CA55" {
		t.Fatalf("expected hangup for CA55, got %q", stub.updatedSID)
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["status"] != "completed" {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestHandleCallControlFetchesCall(t *testing.T) {
	status := "in-progress"
	stub := &stubCallAPI{fetchResp: &api.ApiV2010Call{Status: &status}}
	tr := newTestTransport(Config{AccountSID: "AC1", AuthToken: "token"}, &stubHandler{})
	tr.control.client = stub

	req := httptest.NewRequest(http.MethodGet, "/api/call/CA56", nil)
	w := httptest.NewRecorder()
	tr.handleCallControl(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["call_sid"] != "CA56" || body["status"] != "in-progress" {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestHandleCallControlMissingSID(t *testing.T) {
	tr := newTestTransport(Config{AccountSID: "AC1", AuthToken: "token"}, &stubHandler{})
	req := httptest.NewRequest(http.MethodDelete, "/api/call/", nil)
	w := httptest.NewRecorder()
	tr.handleCallControl(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}
