package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"psnrelay/internal/api"
	"psnrelay/internal/scene"
	"psnrelay/internal/tracker"
)

func TestClientSendsTokenAndDecodes(t *testing.T) {
	var gotAuth, gotMethod string
	var gotBody api.TrackerRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotMethod = r.Method
		if r.URL.Path != "/api/trackers" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(api.TrackerView{ID: gotBody.ID, X: 0.5, Y: 0.5, Z: 2})
	}))
	defer srv.Close()

	client := api.NewClient(srv.URL+"/", "secret", nil)
	view, err := client.AddTracker(context.Background(), 7)
	if err != nil {
		t.Fatalf("AddTracker returned error: %v", err)
	}
	if gotAuth != "Bearer secret" || gotMethod != http.MethodPost || gotBody.ID != 7 {
		t.Fatalf("unexpected request: auth=%q method=%s body=%+v", gotAuth, gotMethod, gotBody)
	}
	if view.ID != 7 || view.Z != 2 {
		t.Fatalf("unexpected view: %+v", view)
	}
}

func TestClientReturnsStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"unknown scene mode: \"stage\""}`))
	}))
	defer srv.Close()

	_, err := api.NewClient(srv.URL, "", nil).SetMode(context.Background(), "stage")
	var statusErr *api.StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.Code != http.StatusBadRequest || statusErr.Message != `unknown scene mode: "stage"` {
		t.Fatalf("unexpected status error: %+v", statusErr)
	}
}

func TestClientFallsBackToPlainTextErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gateway down", http.StatusBadGateway)
	}))
	defer srv.Close()

	err := api.NewClient(srv.URL, "", nil).RemoveTracker(context.Background(), 1)
	var statusErr *api.StatusError
	if !errors.As(err, &statusErr) || statusErr.Message != "gateway down" {
		t.Fatalf("expected plain text status error, got %v", err)
	}
}

func TestTrackerViewsAddSceneCoordinates(t *testing.T) {
	preset := scene.Preset{
		Name:   "scene_only",
		Bounds: scene.Bounds{XMin: -6.5, XMax: 6.5, YMin: 0, YMax: 6.3, ZMin: 0, ZMax: 4},
	}
	resp := api.TrackerViews(tracker.Roster(2, 0.5, 0.5, 2), preset)
	if resp.Mode != "scene_only" || len(resp.Trackers) != 2 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	view := resp.Trackers[1]
	if view.ID != 1 || view.SceneX != 0 || view.SceneY != 3.15 || view.SceneZ != 2 {
		t.Fatalf("unexpected scene coordinates: %+v", view)
	}
}

func TestFormatTimeRoundTrip(t *testing.T) {
	if api.FormatTime(time.Time{}) != "" {
		t.Fatal("zero time should format empty")
	}
	ts := time.Date(2024, 5, 1, 12, 30, 0, 123000000, time.UTC)
	parsed, err := api.ParseTime(api.FormatTime(ts))
	if err != nil || !parsed.Equal(ts) {
		t.Fatalf("round trip: got %v, %v", parsed, err)
	}
}
