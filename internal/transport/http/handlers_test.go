package httptransport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"compass/internal/audit"
	"compass/internal/domain"
	"compass/internal/user"
	"compass/internal/verification"
)

type stubPipeline struct {
	decision domain.OutboundDecision
	err      error
	got      domain.InboundEvent
}

func (s *stubPipeline) HandleInbound(_ context.Context, ev domain.InboundEvent) (domain.OutboundDecision, error) {
	s.got = ev
	return s.decision, s.err
}

func newTestRouter(t *testing.T, pipeline *stubPipeline) (http.Handler, *verification.TokenService, user.Store) {
	t.Helper()
	tokens := verification.NewTokenService("test-key", "age-provider")
	users := user.NewInMemoryStore()
	auditPub := audit.NewPublisher(audit.NewInMemoryStore())
	verifier := verification.NewService(tokens, users, auditPub, slog.Default())
	h := NewHandler(pipeline, verifier, auditPub, slog.Default())
	return NewRouter(h, slog.Default()), tokens, users
}

func postJSON(t *testing.T, router http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestInboundEndpointReturnsDecision(t *testing.T) {
	pipeline := &stubPipeline{decision: domain.Send("hello there")}
	router, _, _ := newTestRouter(t, pipeline)

	rec := postJSON(t, router, "/v1/events/inbound", map[string]string{
		"event_id": "ev-1",
		"handle":   "+15550001111",
		"text":     "hi",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	var resp decisionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "send", resp.Decision)
	assert.Equal(t, "hello there", resp.Text)
	assert.Equal(t, "ev-1", pipeline.got.EventID)
	assert.Equal(t, "+15550001111", pipeline.got.Handle)
}

func TestInboundEndpointSuppressDecision(t *testing.T) {
	pipeline := &stubPipeline{decision: domain.Suppress(domain.SuppressOptedOut)}
	router, _, _ := newTestRouter(t, pipeline)

	rec := postJSON(t, router, "/v1/events/inbound", map[string]string{
		"event_id": "ev-1",
		"handle":   "+15550001111",
		"text":     "hello",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	var resp decisionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "suppress", resp.Decision)
	assert.Equal(t, "opted_out", resp.Reason)
	assert.Empty(t, resp.Text)
}

func TestInboundEndpointValidation(t *testing.T) {
	router, _, _ := newTestRouter(t, &stubPipeline{})

	rec := postJSON(t, router, "/v1/events/inbound", map[string]string{"text": "hi"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/v1/events/inbound", bytes.NewReader([]byte("{not json")))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInboundEndpointPipelineFailure(t *testing.T) {
	pipeline := &stubPipeline{
		decision: domain.Suppress(domain.SuppressPersistence),
		err:      errors.New("store down"),
	}
	router, _, _ := newTestRouter(t, pipeline)

	rec := postJSON(t, router, "/v1/events/inbound", map[string]string{
		"event_id": "ev-1",
		"handle":   "+15550001111",
		"text":     "hi",
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "store down")
}

func TestVerificationCallbackEndpoint(t *testing.T) {
	router, tokens, users := newTestRouter(t, &stubPipeline{})
	ctx := context.Background()
	require.NoError(t, users.Create(ctx, domain.NewUser("+15550001111", time.Now())))

	token, err := tokens.Generate("+15550001111", "verified_adult", time.Minute)
	require.NoError(t, err)

	rec := postJSON(t, router, "/v1/verification/callback", map[string]string{"token": token})
	require.Equal(t, http.StatusNoContent, rec.Code)

	u, err := users.Load(ctx, "+15550001111")
	require.NoError(t, err)
	assert.Equal(t, domain.VerificationAdult, u.Verification)
}

func TestVerificationCallbackRejectsForgedToken(t *testing.T) {
	router, _, users := newTestRouter(t, &stubPipeline{})
	require.NoError(t, users.Create(context.Background(), domain.NewUser("+15550001111", time.Now())))

	forged := verification.NewTokenService("other-key", "age-provider")
	token, err := forged.Generate("+15550001111", "verified_adult", time.Minute)
	require.NoError(t, err)

	rec := postJSON(t, router, "/v1/verification/callback", map[string]string{"token": token})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHealthAndMetricsEndpoints(t *testing.T) {
	router, _, _ := newTestRouter(t, &stubPipeline{})

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestAuditTrailEndpoint(t *testing.T) {
	pipeline := &stubPipeline{decision: domain.Send("ok")}
	router, _, _ := newTestRouter(t, pipeline)

	req := httptest.NewRequest(http.MethodGet, "/v1/users/+15550001111/audit", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Events []audit.Event `json:"events"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Empty(t, resp.Events)
}
