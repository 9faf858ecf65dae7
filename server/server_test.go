package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	orchestratorx "github.com/tanpawarit/device-reservation-agent/agent/agents/orchestrator"
	contractx "github.com/tanpawarit/device-reservation-agent/agent/contract"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeEngine struct {
	events    []orchestratorx.Event
	streamErr error
	action    contractx.ActionResponse
	actionErr error

	gotSession string
	gotMessage string
	gotAction  contractx.ActionRequest
}

func (f *fakeEngine) StreamTurn(ctx context.Context, sessionID, message string, sink orchestratorx.EventSink) error {
	f.gotSession = sessionID
	f.gotMessage = message
	for _, ev := range f.events {
		if err := sink(ev); err != nil {
			return err
		}
	}
	return f.streamErr
}

func (f *fakeEngine) ApplyAction(ctx context.Context, req contractx.ActionRequest) (contractx.ActionResponse, error) {
	f.gotAction = req
	return f.action, f.actionErr
}

func testConfig() Config {
	return Config{AppName: "reservation-test", APIPrefix: "/api", CORSAllowOrigins: []string{"*"}}
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func detail(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("json.Unmarshal() error = %v, body=%s", err, rec.Body.String())
	}
	s, _ := body["detail"].(string)
	return s
}

func ndjson(t *testing.T, raw []byte) []map[string]any {
	t.Helper()
	var out []map[string]any
	sc := bufio.NewScanner(bytes.NewReader(raw))
	for sc.Scan() {
		var line map[string]any
		if err := json.Unmarshal(sc.Bytes(), &line); err != nil {
			t.Fatalf("invalid ndjson line %q: %v", sc.Text(), err)
		}
		out = append(out, line)
	}
	return out
}

func TestHealth(t *testing.T) {
	t.Parallel()

	rec := do(t, New(testConfig(), nil).Handler(), http.MethodGet, "/api/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]string
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if body["status"] != "ok" || body["service"] != "reservation-test" {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestChatStreamWritesNDJSON(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{events: []orchestratorx.Event{
		orchestratorx.ToolEvent{ToolName: "check_device_availability", Output: map[string]any{"available": true}},
		orchestratorx.TokenEvent{Content: "空いて"},
		orchestratorx.MessageEvent{Content: "空いています <ok>"},
		orchestratorx.DoneEvent{},
	}}
	rec := do(t, New(testConfig(), engine).Handler(), http.MethodPost, "/api/agent/chat/stream", `{"session_id":" s1 ","message":"free at 9?"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/x-ndjson" {
		t.Fatalf("unexpected content type %q", ct)
	}
	if engine.gotSession != "s1" || engine.gotMessage != "free at 9?" {
		t.Fatalf("engine got session=%q message=%q", engine.gotSession, engine.gotMessage)
	}
	if !strings.Contains(rec.Body.String(), "空いています <ok>") {
		t.Fatalf("non-ASCII and HTML must stay unescaped: %s", rec.Body.String())
	}

	lines := ndjson(t, rec.Body.Bytes())
	var types []string
	for _, l := range lines {
		types = append(types, fmt.Sprint(l["type"]))
	}
	if got := strings.Join(types, ","); got != "tool,token,message,done" {
		t.Fatalf("unexpected stream: %s", got)
	}
	if lines[0]["tool_name"] != "check_device_availability" {
		t.Fatalf("unexpected tool line: %v", lines[0])
	}
}

func TestChatStreamFailureAfterStart(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{
		events:    []orchestratorx.Event{orchestratorx.TokenEvent{Content: "Let me"}},
		streamErr: fmt.Errorf("%w: provider down", contractx.ErrModelInvoke),
	}
	rec := do(t, New(testConfig(), engine).Handler(), http.MethodPost, "/api/agent/chat/stream", `{"session_id":"s1","message":"hi"}`)

	lines := ndjson(t, rec.Body.Bytes())
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %s", len(lines), rec.Body.String())
	}
	if lines[1]["type"] != "error" || !strings.Contains(fmt.Sprint(lines[1]["error"]), "provider down") {
		t.Fatalf("unexpected final line: %v", lines[1])
	}
}

func TestChatStreamFailureBeforeStart(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{streamErr: errors.New("boom")}
	rec := do(t, New(testConfig(), engine).Handler(), http.MethodPost, "/api/agent/chat/stream", `{"session_id":"s1","message":"hi"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}

	engine = &fakeEngine{streamErr: fmt.Errorf("%w: message is empty", contractx.ErrValidation)}
	rec = do(t, New(testConfig(), engine).Handler(), http.MethodPost, "/api/agent/chat/stream", `{"session_id":"s1","message":"hi"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestChatStreamValidation(t *testing.T) {
	t.Parallel()

	h := New(testConfig(), &fakeEngine{}).Handler()
	cases := map[string]string{
		`{"message":"hi"}`:                 detailSessionRequired,
		`{"session_id":"s1","message":""}`: detailMessageRequired,
		`not json`:                         detailInvalidBody,
	}
	for body, want := range cases {
		rec := do(t, h, http.MethodPost, "/api/agent/chat/stream", body)
		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("body=%s: status = %d", body, rec.Code)
		}
		if got := detail(t, rec); got != want {
			t.Fatalf("body=%s: detail = %q, want %q", body, got, want)
		}
	}
}

func TestAgentRoutesWithoutEngine(t *testing.T) {
	t.Parallel()

	h := New(testConfig(), nil).Handler()
	rec := do(t, h, http.MethodPost, "/api/agent/chat/stream", `{"session_id":"s1","message":"hi"}`)
	if rec.Code != http.StatusServiceUnavailable || detail(t, rec) != detailUnavailable {
		t.Fatalf("unexpected response: %d %s", rec.Code, rec.Body.String())
	}
	rec = do(t, h, http.MethodPost, "/api/agent/reservations/decision", `{"session_id":"s1","action":"cancel","reservation_id":"r1"}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
}

func TestDecision(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{action: contractx.ActionResponse{
		Scheduler:        map[string]any{"success": false, "reason": "Reservation not found for session."},
		AssistantMessage: "I could not find that reservation.",
	}}
	rec := do(t, New(testConfig(), engine).Handler(), http.MethodPost, "/api/agent/reservations/decision",
		`{"session_id":"s1","action":"cancel","reservation_id":"never-booked"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	if engine.gotAction.Action != contractx.ActionCancel || engine.gotAction.ReservationID != "never-booked" {
		t.Fatalf("unexpected engine request: %+v", engine.gotAction)
	}

	var body struct {
		Scheduler        map[string]any `json:"scheduler"`
		AssistantMessage string         `json:"assistant_message"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}
	if body.Scheduler["reason"] != "Reservation not found for session." || body.AssistantMessage == "" {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestDecisionValidation(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{}
	h := New(testConfig(), engine).Handler()
	cases := map[string]string{
		`{"action":"confirm","start_time":"2025-03-01T09:00:00Z"}`:    detailSessionRequired,
		`{"session_id":"s1","action":"hold"}`:                         detailActionInvalid,
		`{"session_id":"s1","action":"Cancel","reservation_id":"r1"}`: detailActionInvalid,
		`{"session_id":"s1","action":" confirm","start_time":"x"}`:    detailActionInvalid,
		`{"session_id":"s1","action":"confirm"}`:                      detailStartTimeMissing,
		`{"session_id":"s1","action":"cancel"}`:                       detailReservationIDMissing,
	}
	for body, want := range cases {
		rec := do(t, h, http.MethodPost, "/api/agent/reservations/decision", body)
		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("body=%s: status = %d", body, rec.Code)
		}
		if got := detail(t, rec); got != want {
			t.Fatalf("body=%s: detail = %q, want %q", body, got, want)
		}
	}
	if engine.gotAction.SessionID != "" {
		t.Fatal("engine must not be called for invalid requests")
	}

	engine.actionErr = fmt.Errorf("%w: start_time must be ISO 8601 formatted", contractx.ErrValidation)
	rec := do(t, h, http.MethodPost, "/api/agent/reservations/decision", `{"session_id":"s1","action":"confirm","start_time":"soon"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("engine validation error must map to 422, got %d", rec.Code)
	}
}

func TestRateLimit(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.RateLimitPerMinute = 1
	cfg.RateLimitBurst = 2
	h := New(cfg, nil).Handler()

	for i := 0; i < 2; i++ {
		if rec := do(t, h, http.MethodGet, "/api/health", ""); rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d", i, rec.Code)
		}
	}
	if rec := do(t, h, http.MethodGet, "/api/health", ""); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
}

func TestIPLimiterDropsIdleBuckets(t *testing.T) {
	t.Parallel()

	clock := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	l := newIPLimiter(60, 1)
	l.now = func() time.Time { return clock }
	l.lastSweep = clock

	if !l.get("10.0.0.1").Allow() {
		t.Fatal("first request must pass")
	}
	if l.get("10.0.0.1").Allow() {
		t.Fatal("burst of 1 must reject the second request")
	}
	clock = clock.Add(limiterIdleTTL / 2)
	l.get("10.0.0.2")
	if l.size() != 2 {
		t.Fatalf("expected 2 buckets, got %d", l.size())
	}

	clock = clock.Add(limiterIdleTTL)
	l.get("10.0.0.3")
	if l.size() != 1 {
		t.Fatalf("idle buckets must be dropped, got %d", l.size())
	}
	if _, ok := l.limiters["10.0.0.1"]; ok {
		t.Fatal("bucket of the idle IP must be gone")
	}
}

func TestCORSConfig(t *testing.T) {
	t.Parallel()

	all := corsConfig([]string{" * "})
	if !all.AllowAllOrigins || all.AllowCredentials {
		t.Fatalf("wildcard must allow all origins without credentials: %+v", all)
	}
	some := corsConfig([]string{"https://lab.example", ""})
	if some.AllowAllOrigins || len(some.AllowOrigins) != 1 || !some.AllowCredentials {
		t.Fatalf("unexpected explicit config: %+v", some)
	}
}
