package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"teamsbot/internal/domain"
	"teamsbot/internal/intent"
	"teamsbot/internal/metrics"
	"teamsbot/internal/store"
)

const (
	maxBodyBytes    = 1 << 20
	signatureHeader = "X-Teams-Signature"
)

// handleWebhook is the inbound Teams activity endpoint. Order matters:
// signature check before JSON parse, activity-type filter before the
// pipeline is ever started.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	start := time.Now()
	requestID := RequestIDFrom(r.Context())

	metrics.InflightRequests.Inc()
	defer metrics.InflightRequests.Dec()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Cannot read request body")
		return
	}
	defer r.Body.Close()

	if s.secret != "" && !verifySignature(body, s.secret, r.Header.Get(signatureHeader)) {
		metrics.SignatureFailures.Inc()
		s.logger.Warn("webhook signature rejected",
			"request_id", requestID,
			"remote", r.RemoteAddr,
		)
		writeError(w, http.StatusUnauthorized, "Invalid signature")
		return
	}

	var activity domain.Activity
	if err := json.Unmarshal(body, &activity); err != nil {
		s.logger.Warn("invalid webhook body", "request_id", requestID, "err", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if activity.Type != "message" {
		metrics.IgnoredTotal.Inc()
		s.logger.Debug("ignoring non-message activity", "request_id", requestID, "type", activity.Type)
		s.record(requestID, activity, "", "", store.OutcomeIgnored, start)
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "ignored",
			"reason": "Not a message activity",
		})
		return
	}

	if s.dispatcher == nil || s.renderer == nil {
		writeError(w, http.StatusServiceUnavailable, "Service temporarily unavailable")
		return
	}

	metrics.MessagesTotal.Inc()

	text := activity.MessageText()
	in, city := intent.Classify(text)
	metrics.IntentTotal(string(in)).Inc()

	s.logger.Info("message received",
		"request_id", requestID,
		"user", activity.From.Name,
		"conversation", activity.Conversation.ID,
		"intent", string(in),
		"city", city,
	)

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	type result struct {
		att domain.Attachment
		err error
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- result{err: fmt.Errorf("pipeline panic: %v", rec)}
			}
		}()
		env := s.dispatcher.Dispatch(ctx, in, city)
		done <- result{att: s.renderer.Render(env)}
	}()

	select {
	case <-ctx.Done():
		// Respond immediately; the abandoned pipeline sees the cancelled
		// context and winds down on its own.
		metrics.TimeoutsTotal.Inc()
		s.logger.Error("pipeline timed out",
			"request_id", requestID,
			"intent", string(in),
			"timeout", s.timeout,
		)
		s.record(requestID, activity, in, city, store.OutcomeTimeout, start)
		writeError(w, http.StatusGatewayTimeout, "Request processing timeout")

	case res := <-done:
		if res.err != nil {
			s.logger.Error("pipeline failed", "request_id", requestID, "err", res.err)
			s.record(requestID, activity, in, city, store.OutcomeError, start)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error":     "Failed to process message",
				"timestamp": time.Now().UTC().Format(time.RFC3339),
			})
			return
		}

		metrics.PipelineLatency.Observe(time.Since(start).Seconds())
		s.record(requestID, activity, in, city, store.OutcomeOK, start)

		reply := domain.ReplyActivity{
			Type:         "message",
			From:         domain.Account{ID: s.botID, Name: s.botName},
			Conversation: activity.Conversation,
			Recipient:    activity.From,
			Attachments:  []domain.Attachment{res.att},
			Timestamp:    time.Now().UTC().Format(time.RFC3339),
		}
		writeJSON(w, http.StatusOK, reply)
	}
}

// record writes a delivery audit row. Audit failures are logged and
// never affect the response.
func (s *Server) record(requestID string, activity domain.Activity, in domain.Intent, city, outcome string, start time.Time) {
	if s.recorder == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := s.recorder.Record(ctx, store.Delivery{
		ID:             requestID,
		ActivityID:     activity.ID,
		UserID:         activity.From.ID,
		ConversationID: activity.Conversation.ID,
		Intent:         string(in),
		City:           city,
		Outcome:        outcome,
		LatencyMs:      time.Since(start).Milliseconds(),
	})
	if err != nil {
		s.logger.Warn("delivery record failed", "request_id", requestID, "err", err)
	}
}

// verifySignature checks the hex HMAC-SHA256 of the raw body against the
// signature header value.
func verifySignature(body []byte, secret, signature string) bool {
	if signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
