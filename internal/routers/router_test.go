package routers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"prompter/internal/models"
	"prompter/internal/session"
	"prompter/internal/utils"
)

func newTestServer(t *testing.T) (*httptest.Server, *session.Registry) {
	t.Helper()
	registry := session.NewRegistry()
	server := httptest.NewServer(New(utils.NewLogger(), registry, nil))
	t.Cleanup(server.Close)
	return server, registry
}

func TestHealthRoute(t *testing.T) {
	server, _ := newTestServer(t)
	resp, err := http.Get(server.URL + "/api/v1/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestCreateAndLookupRoom(t *testing.T) {
	server, _ := newTestServer(t)

	resp, err := http.Post(server.URL+"/api/v1/rooms", "application/json", nil)
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var created models.CreateRoomResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	lookup, err := http.Get(server.URL + "/api/v1/rooms/" + created.RoomID)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	defer lookup.Body.Close()
	if lookup.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", lookup.StatusCode)
	}

	viewer, err := http.Get(server.URL + "/api/v1/viewer/" + created.ViewerID)
	if err != nil {
		t.Fatalf("viewer lookup: %v", err)
	}
	defer viewer.Body.Close()
	var resolved models.ViewerResolveResponse
	if err := json.NewDecoder(viewer.Body).Decode(&resolved); err != nil {
		t.Fatalf("decode viewer: %v", err)
	}
	if resolved.RoomID != created.RoomID {
		t.Fatalf("expected %q, got %q", created.RoomID, resolved.RoomID)
	}
}

func TestUnknownRoomIs404(t *testing.T) {
	server, _ := newTestServer(t)
	for _, path := range []string{"/api/v1/rooms/deadbeef", "/api/v1/viewer/doesnotexistatall"} {
		resp, err := http.Get(server.URL + path)
		if err != nil {
			t.Fatalf("%s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("%s: expected 404, got %d", path, resp.StatusCode)
		}
	}
}

func TestMetricsRoute(t *testing.T) {
	server, _ := newTestServer(t)
	resp, err := http.Get(server.URL + "/metrics")
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestCORSHeaders(t *testing.T) {
	server, _ := newTestServer(t)
	req, _ := http.NewRequest(http.MethodOptions, server.URL+"/api/v1/rooms", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("preflight: %v", err)
	}
	defer resp.Body.Close()
	if got := resp.Header.Get("Access-Control-Allow-Origin"); !strings.Contains(got, "*") {
		t.Fatalf("expected origin-open CORS, got %q", got)
	}
}
