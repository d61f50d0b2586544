package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/v0xg/deskreplay/internal/platform"
	"github.com/v0xg/deskreplay/internal/playback"
	"github.com/v0xg/deskreplay/internal/sequence"
)

const twoClicks = `{
	"version": "1.0",
	"duration": 0.3,
	"platform": "linux",
	"actions": [
		{"action_type": "click", "timestamp": 0, "x": 10, "y": 10, "button": "left"},
		{"action_type": "click", "timestamp": 0.3, "x": 20, "y": 20, "button": "left"}
	]
}`

func newTestServer(t *testing.T) (*httptest.Server, *playback.Engine) {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	engine := playback.New(platform.NewDryRun(logger, 100, 100), playback.Options{
		Logger:           logger,
		InterActionDelay: -1,
		Retry:            &playback.RetryPolicy{MaxAttempts: 3, InitialDelay: time.Millisecond, Multiplier: 1},
	})
	srv := httptest.NewServer(NewRouter(engine, Options{Logger: logger, EventBuffer: 256}))
	t.Cleanup(func() {
		_ = engine.Stop()
		srv.Close()
	})
	return srv, engine
}

func post(t *testing.T, srv *httptest.Server, path, body string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Post(srv.URL+path, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	return resp, data
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}

func TestLoad_Errors(t *testing.T) {
	srv, _ := newTestServer(t)

	if resp, _ := post(t, srv, "/api/playback/load", `{not json`); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("malformed body: expected 400, got %d", resp.StatusCode)
	}
	if resp, _ := post(t, srv, "/api/playback/load", `{"actions": []}`); resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("empty sequence: expected 422, got %d", resp.StatusCode)
	}
	resp, body := post(t, srv, "/api/playback/load", `{"actions": [{"action_type": "teleport", "timestamp": 0}]}`)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("unknown action: expected 422, got %d", resp.StatusCode)
	}
	var e errorResponse
	if err := json.Unmarshal(body, &e); err != nil || !strings.Contains(e.Error, "teleport") {
		t.Errorf("expected error naming the action, got %s", body)
	}
}

func TestControlWhenIdle(t *testing.T) {
	srv, _ := newTestServer(t)

	if resp, _ := post(t, srv, "/api/playback/start", `{}`); resp.StatusCode != http.StatusConflict {
		t.Errorf("start without sequence: expected 409, got %d", resp.StatusCode)
	}
	if resp, _ := post(t, srv, "/api/playback/stop", ``); resp.StatusCode != http.StatusConflict {
		t.Errorf("stop when idle: expected 409, got %d", resp.StatusCode)
	}
	if resp, _ := post(t, srv, "/api/playback/pause", ``); resp.StatusCode != http.StatusConflict {
		t.Errorf("pause when idle: expected 409, got %d", resp.StatusCode)
	}

	resp, err := http.Get(srv.URL + "/api/playback/stats")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("stats before any run: expected 404, got %d", resp.StatusCode)
	}
}

func TestStart_BadBody(t *testing.T) {
	srv, _ := newTestServer(t)
	post(t, srv, "/api/playback/load", twoClicks)
	if resp, _ := post(t, srv, "/api/playback/start", `{"speed": "fast"}`); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

func TestPlaybackOverWebSocket(t *testing.T) {
	srv, engine := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/playback/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if resp, body := post(t, srv, "/api/playback/load", twoClicks); resp.StatusCode != http.StatusOK {
		t.Fatalf("load: %d %s", resp.StatusCode, body)
	}
	resp, body := post(t, srv, "/api/playback/start", `{"speed": 2, "loops": 2}`)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("start: %d %s", resp.StatusCode, body)
	}
	var snap playback.Snapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		t.Fatal(err)
	}
	if snap.PlaybackSpeed != 2 || snap.TotalLoops != 2 {
		t.Errorf("unexpected snapshot: %+v", snap)
	}

	if resp, _ := post(t, srv, "/api/playback/start", `{}`); resp.StatusCode != http.StatusConflict {
		t.Errorf("second start: expected 409, got %d", resp.StatusCode)
	}

	var kinds []playback.EventKind
	var done playback.Complete
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v (got %v)", err, kinds)
		}
		ev, err := playback.UnmarshalEvent(msg)
		if err != nil {
			t.Fatalf("decode %s: %v", msg, err)
		}
		kinds = append(kinds, ev.Kind())
		if c, ok := ev.(playback.Complete); ok {
			done = c
			break
		}
	}

	if kinds[0] != playback.KindStatus {
		t.Errorf("expected started status first, got %v", kinds)
	}
	if !done.Completed || done.ActionsExecuted != 4 || done.LoopsCompleted != 2 {
		t.Errorf("unexpected completion: %+v", done)
	}

	// Stats become available once the run has finished.
	waitUntil(t, func() bool { _, ok := engine.LastStatistics(); return ok })
	statsResp, err := http.Get(srv.URL + "/api/playback/stats")
	if err != nil {
		t.Fatal(err)
	}
	defer statsResp.Body.Close()
	var stats playback.Statistics
	if err := json.NewDecoder(statsResp.Body).Decode(&stats); err != nil {
		t.Fatal(err)
	}
	if stats.ActionsExecuted != 4 || stats.SuccessRate != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestPauseAndStop(t *testing.T) {
	srv, _ := newTestServer(t)

	slow := `{"actions": [
		{"action_type": "move", "timestamp": 0, "x": 1, "y": 1},
		{"action_type": "move", "timestamp": 5, "x": 2, "y": 2}
	]}`
	post(t, srv, "/api/playback/load", slow)
	if resp, body := post(t, srv, "/api/playback/start", ``); resp.StatusCode != http.StatusAccepted {
		t.Fatalf("start: %d %s", resp.StatusCode, body)
	}

	resp, body := post(t, srv, "/api/playback/pause", ``)
	var p pauseResponse
	if resp.StatusCode != http.StatusOK || json.Unmarshal(body, &p) != nil || !p.Paused {
		t.Errorf("pause: %d %s", resp.StatusCode, body)
	}

	statusResp, err := http.Get(srv.URL + "/api/playback/status")
	if err != nil {
		t.Fatal(err)
	}
	var snap playback.Snapshot
	json.NewDecoder(statusResp.Body).Decode(&snap)
	statusResp.Body.Close()
	if !snap.IsPaused || snap.State != playback.StatePaused {
		t.Errorf("expected paused snapshot, got %+v", snap)
	}

	if resp, body := post(t, srv, "/api/playback/stop", ``); resp.StatusCode != http.StatusOK {
		t.Errorf("stop: %d %s", resp.StatusCode, body)
	}
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{playback.ErrAlreadyPlaying, http.StatusConflict},
		{fmt.Errorf("load: %w", playback.ErrAlreadyPlaying), http.StatusConflict},
		{playback.ErrRunInFlight, http.StatusConflict},
		{fmt.Errorf("%w: %w", playback.ErrPermissionDenied, errors.New("revoked")), http.StatusForbidden},
		{&sequence.ValidationError{Index: 1, Field: "x/y", Reason: "bad"}, http.StatusUnprocessableEntity},
		{sequence.ErrEmptySequence, http.StatusUnprocessableEntity},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		if got := statusFor(c.err); got != c.want {
			t.Errorf("statusFor(%v) = %d, want %d", c.err, got, c.want)
		}
	}
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := newTestServer(t)
	req, _ := http.NewRequest(http.MethodOptions, srv.URL+"/api/playback/start", bytes.NewReader(nil))
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("expected allowed origin header, got %q", got)
	}
}

func TestWebSocketRejectsForeignOrigin(t *testing.T) {
	srv, _ := newTestServer(t)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/playback/events"
	header := http.Header{"Origin": []string{"http://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err == nil {
		t.Fatal("expected handshake to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("expected 403, got %v", resp)
	}
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
