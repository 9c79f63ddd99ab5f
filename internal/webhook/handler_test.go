package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"teamsbot/internal/agent"
	"teamsbot/internal/card"
	"teamsbot/internal/domain"
	"teamsbot/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

// newTestServer wires a server with real agents and card rendering.
func newTestServer(t *testing.T, cfg ServerConfig) *Server {
	t.Helper()
	logger := testLogger()
	if cfg.Logger == nil {
		cfg.Logger = logger
	}
	if cfg.Dispatcher == nil {
		catalog := agent.LoadCatalog("", logger)
		cfg.Dispatcher = agent.NewRegistry(agent.RegistryConfig{
			WeatherTime: agent.NewWeatherTime(catalog, logger),
			Traffic:     agent.NewTraffic(catalog, logger),
			Logger:      logger,
		})
	}
	if cfg.Renderer == nil {
		cfg.Renderer = card.NewFormatter()
	}
	return NewServer(cfg)
}

func postActivity(t *testing.T, h http.Handler, activity domain.Activity, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(activity)
	if err != nil {
		t.Fatal(err)
	}
	return postRaw(t, h, body, headers)
}

func postRaw(t *testing.T, h http.Handler, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/teams/webhook", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func messageActivity(text string) domain.Activity {
	return domain.Activity{
		Type:         "message",
		ID:           "act-1",
		From:         domain.Account{ID: "user-1", Name: "Alice"},
		Conversation: domain.ConversationAccount{ID: "conv-1"},
		Recipient:    domain.Account{ID: "bot-1", Name: "Teams Weather Bot"},
		Text:         text,
	}
}

// decodedReply mirrors ReplyActivity with the card body left raw, since
// the card element interface cannot be unmarshaled directly.
type decodedReply struct {
	Type         string                     `json:"type"`
	From         domain.Account             `json:"from"`
	Conversation domain.ConversationAccount `json:"conversation"`
	Recipient    domain.Account             `json:"recipient"`
	Attachments  []struct {
		ContentType string          `json:"contentType"`
		Content     json.RawMessage `json:"content"`
	} `json:"attachments"`
}

func decodeReply(t *testing.T, rec *httptest.ResponseRecorder) decodedReply {
	t.Helper()
	var reply decodedReply
	if err := json.Unmarshal(rec.Body.Bytes(), &reply); err != nil {
		t.Fatalf("cannot decode reply: %v\nbody: %s", err, rec.Body.String())
	}
	return reply
}

// --- Stubs ---

type stubDispatcher struct {
	called bool
	delay  time.Duration
	env    domain.Envelope
}

func (d *stubDispatcher) Dispatch(ctx context.Context, in domain.Intent, city string) domain.Envelope {
	d.called = true
	if d.delay > 0 {
		select {
		case <-time.After(d.delay):
		case <-ctx.Done():
		}
	}
	return d.env
}

type captureRecorder struct {
	deliveries []store.Delivery
}

func (c *captureRecorder) Record(ctx context.Context, d store.Delivery) error {
	c.deliveries = append(c.deliveries, d)
	return nil
}

// --- End to end ---

func TestWebhook_WeatherMessage(t *testing.T) {
	s := newTestServer(t, ServerConfig{BotID: "bot-1"})
	h := s.Handler()

	rec := postActivity(t, h, messageActivity("What's the weather in London?"), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", rec.Code, rec.Body.String())
	}

	reply := decodeReply(t, rec)
	if reply.Type != "message" {
		t.Errorf("reply type = %q, want message", reply.Type)
	}
	if reply.Recipient.ID != "user-1" {
		t.Errorf("recipient = %q, want user-1", reply.Recipient.ID)
	}
	if reply.Conversation.ID != "conv-1" {
		t.Errorf("conversation = %q, want conv-1", reply.Conversation.ID)
	}
	if len(reply.Attachments) != 1 {
		t.Fatalf("attachments = %d, want 1", len(reply.Attachments))
	}
	att := reply.Attachments[0]
	if att.ContentType != domain.AdaptiveCardContentType {
		t.Errorf("contentType = %q", att.ContentType)
	}

	cardJSON := string(att.Content)
	if !strings.Contains(cardJSON, "Weather in London") {
		t.Errorf("missing weather title: %s", cardJSON)
	}
	if !strings.Contains(cardJSON, domain.AdaptiveCardSchema) {
		t.Errorf("missing card schema: %s", cardJSON)
	}
}

func TestWebhook_HelpMessage(t *testing.T) {
	s := newTestServer(t, ServerConfig{})
	rec := postActivity(t, s.Handler(), messageActivity("help"), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	reply := decodeReply(t, rec)
	cardJSON := string(reply.Attachments[0].Content)
	if !strings.Contains(cardJSON, "Welcome to Teams Weather Bot") {
		t.Errorf("missing help greeting: %s", cardJSON)
	}
	if n := strings.Count(cardJSON, "Action.Submit"); n != 3 {
		t.Errorf("help actions = %d, want 3", n)
	}
}

func TestWebhook_CardSubmitValue(t *testing.T) {
	s := newTestServer(t, ServerConfig{})
	activity := domain.Activity{
		Type:  "message",
		From:  domain.Account{ID: "user-1"},
		Value: map[string]any{"action": "traffic", "text": "How's traffic in Chicago?"},
	}
	rec := postActivity(t, s.Handler(), activity, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	reply := decodeReply(t, rec)
	cardJSON := string(reply.Attachments[0].Content)
	if !strings.Contains(cardJSON, "Traffic in Chicago") {
		t.Errorf("submit value not routed: %s", cardJSON)
	}
}

func TestWebhook_IgnoresNonMessageActivity(t *testing.T) {
	s := newTestServer(t, ServerConfig{})
	rec := postActivity(t, s.Handler(), domain.Activity{Type: "typing"}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["status"] != "ignored" {
		t.Errorf("status = %q, want ignored", resp["status"])
	}
	if resp["reason"] != "Not a message activity" {
		t.Errorf("reason = %q", resp["reason"])
	}
}

func TestWebhook_InvalidJSON(t *testing.T) {
	s := newTestServer(t, ServerConfig{})
	rec := postRaw(t, s.Handler(), []byte("{not json"), nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestWebhook_MethodNotAllowed(t *testing.T) {
	s := newTestServer(t, ServerConfig{})
	req := httptest.NewRequest(http.MethodGet, "/api/teams/webhook", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}

func TestWebhook_NoDispatcher(t *testing.T) {
	logger := testLogger()
	s := NewServer(ServerConfig{Logger: logger, Renderer: card.NewFormatter()})
	rec := postActivity(t, s.Handler(), messageActivity("hi"), nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

// --- Signature verification ---

func sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestWebhook_ValidSignature(t *testing.T) {
	s := newTestServer(t, ServerConfig{Secret: "shared-secret"})
	body, _ := json.Marshal(messageActivity("help"))
	rec := postRaw(t, s.Handler(), body, map[string]string{
		signatureHeader: sign(body, "shared-secret"),
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", rec.Code, rec.Body.String())
	}
}

func TestWebhook_InvalidSignature(t *testing.T) {
	stub := &stubDispatcher{}
	s := newTestServer(t, ServerConfig{Secret: "shared-secret", Dispatcher: stub})
	body, _ := json.Marshal(messageActivity("help"))

	sig := sign(body, "shared-secret")
	// Flip one hex digit.
	mutated := []byte(sig)
	if mutated[0] == 'a' {
		mutated[0] = 'b'
	} else {
		mutated[0] = 'a'
	}

	rec := postRaw(t, s.Handler(), body, map[string]string{signatureHeader: string(mutated)})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if stub.called {
		t.Error("dispatcher must not run on signature failure")
	}
}

func TestWebhook_MissingSignature(t *testing.T) {
	s := newTestServer(t, ServerConfig{Secret: "shared-secret"})
	body, _ := json.Marshal(messageActivity("help"))
	rec := postRaw(t, s.Handler(), body, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestWebhook_NoSecretSkipsCheck(t *testing.T) {
	s := newTestServer(t, ServerConfig{})
	rec := postActivity(t, s.Handler(), messageActivity("help"), map[string]string{
		signatureHeader: "garbage",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 in open mode", rec.Code)
	}
}

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"type":"message"}`)
	good := sign(body, "k")
	if !verifySignature(body, "k", good) {
		t.Error("valid signature rejected")
	}
	if verifySignature(body, "k", "") {
		t.Error("empty signature accepted")
	}
	if verifySignature(body, "other", good) {
		t.Error("wrong-key signature accepted")
	}
	if verifySignature(append(body, ' '), "k", good) {
		t.Error("mutated body accepted")
	}
}

// --- Timeout ---

func TestWebhook_PipelineTimeout(t *testing.T) {
	stub := &stubDispatcher{delay: 5 * time.Second}
	s := newTestServer(t, ServerConfig{
		Dispatcher:     stub,
		RequestTimeout: 50 * time.Millisecond,
	})

	start := time.Now()
	rec := postActivity(t, s.Handler(), messageActivity("What's the weather?"), nil)
	elapsed := time.Since(start)

	if rec.Code != http.StatusGatewayTimeout {
		t.Fatalf("status = %d, want 504", rec.Code)
	}
	if elapsed > 2*time.Second {
		t.Errorf("handler waited for pipeline: %v", elapsed)
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["error"] != "Request processing timeout" {
		t.Errorf("error = %q", resp["error"])
	}
}

// --- Routes and middleware ---

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t, ServerConfig{Version: "1.2.3"})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["status"] != "healthy" || resp["service"] != "teamsbot" || resp["version"] != "1.2.3" {
		t.Errorf("unexpected health payload: %v", resp)
	}
}

func TestNotFound_StructuredJSON(t *testing.T) {
	s := newTestServer(t, ServerConfig{})
	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["error"] != "Endpoint not found" || resp["path"] != "/nope" {
		t.Errorf("unexpected 404 payload: %v", resp)
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	s := newTestServer(t, ServerConfig{})
	h := s.Handler()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID not assigned")
	}
	if rec.Header().Get("X-Response-Time") == "" {
		t.Error("X-Response-Time not set")
	}

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "caller-id-7")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-ID"); got != "caller-id-7" {
		t.Errorf("inbound request ID not honored: %q", got)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, ServerConfig{MetricsEnabled: true, MetricsEndpoint: "/metrics"})
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "teamsbot_uptime_seconds") {
		t.Errorf("metrics output missing uptime: %s", rec.Body.String())
	}
}

// --- Delivery audit ---

func TestWebhook_RecordsDelivery(t *testing.T) {
	capture := &captureRecorder{}
	s := newTestServer(t, ServerConfig{Recorder: capture})

	rec := postActivity(t, s.Handler(), messageActivity("What's the weather in Chicago?"), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	if len(capture.deliveries) != 1 {
		t.Fatalf("deliveries = %d, want 1", len(capture.deliveries))
	}
	d := capture.deliveries[0]
	if d.Outcome != store.OutcomeOK {
		t.Errorf("outcome = %q", d.Outcome)
	}
	if d.Intent != "weather" || d.City != "Chicago" {
		t.Errorf("intent/city = %q/%q", d.Intent, d.City)
	}
	if d.UserID != "user-1" || d.ConversationID != "conv-1" {
		t.Errorf("identity fields = %q/%q", d.UserID, d.ConversationID)
	}
	if d.ID == "" {
		t.Error("delivery missing request ID")
	}
}

func TestWebhook_RecordsIgnored(t *testing.T) {
	capture := &captureRecorder{}
	s := newTestServer(t, ServerConfig{Recorder: capture})

	postActivity(t, s.Handler(), domain.Activity{Type: "conversationUpdate"}, nil)
	if len(capture.deliveries) != 1 {
		t.Fatalf("deliveries = %d, want 1", len(capture.deliveries))
	}
	if capture.deliveries[0].Outcome != store.OutcomeIgnored {
		t.Errorf("outcome = %q", capture.deliveries[0].Outcome)
	}
}
