package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/agentmap/dashboard/config"
	"github.com/agentmap/dashboard/internal/domain"
	"github.com/agentmap/dashboard/internal/infrastructure/agentmap"
	"github.com/agentmap/dashboard/internal/infrastructure/session"
	"github.com/agentmap/dashboard/internal/usecase"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// TestMain sets up test environment before running tests
func TestMain(m *testing.M) {
	// Set Gin to test mode once for all tests
	gin.SetMode(gin.TestMode)

	os.Exit(m.Run())
}

const fakeMatchBody = `{
  "mse_id": 7,
  "mse_name": "Varanasi Handlooms",
  "predicted_domain": "ONDC:RET12",
  "matches": [
    {"snp_id": 1, "snp_name": "WeaveKart", "composite_score": 0.755, "confidence_band": "green",
     "factors": {"domain_score": 0.9, "geo_score": 0.8, "commission_score": 0.6, "history_score": 0.7, "sentiment_score": 0.5},
     "explainer_en": "WeaveKart sells handloom textiles", "explainer_hi": "WeaveKart हथकरघा बेचता है"},
    {"snp_id": 2, "snp_name": "CraftBazaar", "composite_score": 0.6, "confidence_band": "yellow",
     "factors": {"domain_score": 0.6, "geo_score": 0.6, "commission_score": 0.6, "history_score": 0.6, "sentiment_score": 0.6},
     "explainer_en": "CraftBazaar", "explainer_hi": "CraftBazaar"}
  ]
}`

// fakeAgentMap is an httptest stand-in for the AgentMap API.
type fakeAgentMap struct {
	classifyStatus int
	classifyBody   string
	matchBody      string
	matchCalls     atomic.Int32
	classifyCalls  atomic.Int32
}

func (f *fakeAgentMap) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/classify/", func(w http.ResponseWriter, r *http.Request) {
		f.classifyCalls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		if f.classifyStatus != 0 {
			w.WriteHeader(f.classifyStatus)
			w.Write([]byte(f.classifyBody))
			return
		}
		w.Write([]byte(`{"mse_id":7,"top3":[],"selected_domain":"ONDC:RET12","confidence":0.9}`))
	})
	mux.HandleFunc("/match/", func(w http.ResponseWriter, r *http.Request) {
		f.matchCalls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		body := fakeMatchBody
		if f.matchBody != "" {
			body = f.matchBody
		}
		w.Write([]byte(body))
	})
	mux.HandleFunc("/mse/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodPost:
			var reg map[string]any
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&reg))
			if reg["udyam_number"] == "UDYAM-DUP" {
				w.WriteHeader(http.StatusConflict)
				w.Write([]byte(`{"detail":"Udyam number already registered"}`))
				return
			}
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"id":42,"udyam_number":"` + reg["udyam_number"].(string) + `","name":"` + reg["name"].(string) + `","description":"x","district":null,"state":null,"pin_code":null,"nic_code":null,"language":"en","created_at":"2026-10-01T09:30:00.123456"}`))
		case r.URL.Path == "/mse/":
			assert.Equal(t, "20", r.URL.Query().Get("limit"))
			w.Write([]byte(`[{"id":1,"udyam_number":"UDYAM-UP-00-0000001","name":"Varanasi Handlooms","description":"silk","district":"Varanasi","state":"Uttar Pradesh","pin_code":"221001","nic_code":null,"language":"hi","created_at":"2026-10-01T09:30:00"}]`))
		case r.URL.Path == "/mse/1":
			w.Write([]byte(`{"id":1,"udyam_number":"UDYAM-UP-00-0000001","name":"Varanasi Handlooms","description":"silk","district":null,"state":null,"pin_code":null,"nic_code":null,"language":"hi","created_at":"2026-10-01T09:30:00"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"detail":"MSE not found"}`))
		}
	})
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"agentmap-api","version":"0.1.0"}`))
	})
	return mux
}

// setupTestRouter wires the real client, orchestrator and dashboard service
// against a fake AgentMap API.
func setupTestRouter(t *testing.T, fake *fakeAgentMap) *gin.Engine {
	t.Helper()

	upstream := httptest.NewServer(fake.handler(t))
	t.Cleanup(upstream.Close)

	cfg := &config.Config{
		Server: config.ServerConfig{
			Port:           "8080",
			Environment:    "test",
			AllowedOrigins: []string{"http://localhost:3000"},
		},
	}

	log := zaptest.NewLogger(t)
	client := agentmap.NewClient(upstream.URL, agentmap.Options{
		Timeout:           2 * time.Second,
		RequestsPerSecond: 1000,
		Burst:             100,
		Logger:            log,
	})
	orchestrator := usecase.NewOrchestrator(client, usecase.OrchestratorConfig{Timeout: 5 * time.Second}, log)

	store := session.NewMemoryStore(time.Minute)
	t.Cleanup(store.Close)
	dashboard := usecase.NewDashboardService(orchestrator, store, usecase.DashboardServiceConfig{SessionTTL: time.Minute}, log)

	return SetupRouter(cfg, NewHandler(client, orchestrator, dashboard, log), log)
}

func doJSON(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestHealthCheckEndpoint(t *testing.T) {
	t.Run("returns healthy status with remote health", func(t *testing.T) {
		router := setupTestRouter(t, &fakeAgentMap{})

		w := doJSON(router, http.MethodGet, "/health", "")
		require.Equal(t, http.StatusOK, w.Code)

		resp := decode[map[string]any](t, w)
		assert.Equal(t, "healthy", resp["status"])
		assert.Equal(t, "agentmap-dashboard", resp["service"])
		assert.NotEmpty(t, resp["version"])
		assert.Equal(t, "ok", resp["remote"].(map[string]any)["status"])
	})

	t.Run("accepts GET requests only", func(t *testing.T) {
		router := setupTestRouter(t, &fakeAgentMap{})

		for _, method := range []string{"POST", "PUT", "DELETE", "PATCH"} {
			w := doJSON(router, method, "/health", "")
			assert.Equal(t, http.StatusNotFound, w.Code, "method %s", method)
		}
	})
}

func TestHealthCheck_RemoteDown(t *testing.T) {
	log := zaptest.NewLogger(t)
	client := agentmap.NewClient("http://127.0.0.1:1", agentmap.Options{Timeout: 200 * time.Millisecond, Logger: log})
	cfg := &config.Config{Server: config.ServerConfig{Environment: "test"}}
	router := SetupRouter(cfg, NewHandler(client, nil, nil, log), log)

	w := doJSON(router, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[map[string]any](t, w)
	assert.Equal(t, "degraded", resp["status"])
}

func TestMatchEndpoint(t *testing.T) {
	t.Run("renders ranked cards with recomputed scores", func(t *testing.T) {
		fake := &fakeAgentMap{}
		router := setupTestRouter(t, fake)

		w := doJSON(router, http.MethodPost, "/api/v1/match", `{"mse_id": 7, "top_k": 5}`)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		view := decode[usecase.DashboardView](t, w)
		require.NotNil(t, view.Header)
		assert.Equal(t, "Matches for Varanasi Handlooms", view.Header.Title)
		assert.Equal(t, "ONDC:RET12", view.Header.Domain)
		require.Len(t, view.Cards, 2)
		assert.Equal(t, int64(1), view.Cards[0].SNPID)
		assert.Equal(t, "75.5%", view.Cards[0].Badge.Percent)
		assert.Equal(t, domain.BandYellow, view.Cards[0].Badge.Band, "upstream band is re-derived")
		assert.Equal(t, "90%", view.Cards[0].Factors[0].Percent)
		assert.Equal(t, "WeaveKart sells handloom textiles", view.Cards[0].Explainer)
		assert.Equal(t, int32(1), fake.classifyCalls.Load())
		assert.Equal(t, int32(1), fake.matchCalls.Load())
	})

	t.Run("accepts a string id and Hindi", func(t *testing.T) {
		router := setupTestRouter(t, &fakeAgentMap{})

		w := doJSON(router, http.MethodPost, "/api/v1/match?lang=hi", `{"mse_id": "7"}`)
		require.Equal(t, http.StatusOK, w.Code)

		view := decode[usecase.DashboardView](t, w)
		assert.Equal(t, usecase.LangHindi, view.Language)
		assert.Equal(t, "WeaveKart हथकरघा बेचता है", view.Cards[0].Explainer)
	})

	t.Run("rejects invalid identifiers without remote calls", func(t *testing.T) {
		fake := &fakeAgentMap{}
		router := setupTestRouter(t, fake)

		for _, body := range []string{`{"mse_id": 0}`, `{"mse_id": "abc"}`, `{"mse_id": -3}`, `{}`} {
			w := doJSON(router, http.MethodPost, "/api/v1/match", body)
			assert.Equal(t, http.StatusBadRequest, w.Code, body)
			resp := decode[map[string]string](t, w)
			assert.Equal(t, "invalid_identifier", resp["kind"], body)
		}
		assert.Zero(t, fake.classifyCalls.Load())
	})

	t.Run("malformed body", func(t *testing.T) {
		router := setupTestRouter(t, &fakeAgentMap{})

		w := doJSON(router, http.MethodPost, "/api/v1/match", `{not json`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "invalid_input", decode[map[string]string](t, w)["kind"])
	})

	t.Run("classify failure surfaces detail and skips match", func(t *testing.T) {
		fake := &fakeAgentMap{classifyStatus: http.StatusInternalServerError, classifyBody: `{"detail":"model unavailable"}`}
		router := setupTestRouter(t, fake)

		w := doJSON(router, http.MethodPost, "/api/v1/match", `{"mse_id": 7}`)
		assert.Equal(t, http.StatusBadGateway, w.Code)
		resp := decode[map[string]string](t, w)
		assert.Equal(t, "model unavailable", resp["error"])
		assert.Equal(t, "remote_rejected", resp["kind"])
		assert.Zero(t, fake.matchCalls.Load())
	})

	t.Run("malformed upstream match payload is a bad gateway", func(t *testing.T) {
		fake := &fakeAgentMap{matchBody: `{"mse_id":7,"mse_name":"X","predicted_domain":null,"matches":[
			{"snp_id":1,"snp_name":"A","factors":{"domain_score":0.5,"geo_score":0.5}}]}`}
		router := setupTestRouter(t, fake)

		w := doJSON(router, http.MethodPost, "/api/v1/match", `{"mse_id": 7}`)
		assert.Equal(t, http.StatusBadGateway, w.Code)
		resp := decode[map[string]string](t, w)
		assert.Equal(t, "invalid_input", resp["kind"])
		assert.Contains(t, resp["error"], "commission_score")
	})
}

func TestSessionEndpoints(t *testing.T) {
	router := setupTestRouter(t, &fakeAgentMap{})

	w := doJSON(router, http.MethodPost, "/api/v1/sessions", "")
	require.Equal(t, http.StatusCreated, w.Code)
	sessionID := decode[map[string]string](t, w)["session_id"]
	require.NotEmpty(t, sessionID)

	w = doJSON(router, http.MethodGet, "/api/v1/sessions/"+sessionID, "")
	assert.Equal(t, http.StatusNotFound, w.Code, "no state before the first match")

	w = doJSON(router, http.MethodPost, "/api/v1/sessions/"+sessionID+"/match", `{"mse_id": 7}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doJSON(router, http.MethodGet, "/api/v1/sessions/"+sessionID+"?lang=hi", "")
	require.Equal(t, http.StatusOK, w.Code)
	view := decode[usecase.DashboardView](t, w)
	assert.False(t, view.Loading)
	assert.Len(t, view.Cards, 2)
	assert.Equal(t, "मध्यम विश्वास", view.Cards[0].Badge.Label)

	w = doJSON(router, http.MethodPost, "/api/v1/sessions/"+sessionID+"/match", `{"mse_id": "x"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(router, http.MethodGet, "/api/v1/sessions/"+sessionID, "")
	view = decode[usecase.DashboardView](t, w)
	assert.NotEmpty(t, view.Error)
	assert.Equal(t, domain.KindInvalidIdentifier, view.ErrorKind)
	assert.Empty(t, view.Cards)

	w = doJSON(router, http.MethodDelete, "/api/v1/sessions/"+sessionID, "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = doJSON(router, http.MethodGet, "/api/v1/sessions/"+sessionID, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMSEEndpoints(t *testing.T) {
	router := setupTestRouter(t, &fakeAgentMap{})

	t.Run("register forwards empty fields", func(t *testing.T) {
		w := doJSON(router, http.MethodPost, "/api/v1/mse", `{"udyam_number":"","name":"","description":"Spice trading"}`)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		assert.Equal(t, float64(42), decode[map[string]any](t, w)["id"])
	})

	t.Run("register surfaces remote detail", func(t *testing.T) {
		w := doJSON(router, http.MethodPost, "/api/v1/mse", `{"udyam_number":"UDYAM-DUP","name":"Dup"}`)
		assert.Equal(t, http.StatusBadGateway, w.Code)
		assert.Equal(t, "Udyam number already registered", decode[map[string]string](t, w)["error"])
	})

	t.Run("review queue", func(t *testing.T) {
		w := doJSON(router, http.MethodGet, "/api/v1/mse", "")
		require.Equal(t, http.StatusOK, w.Code)
		resp := decode[map[string]any](t, w)
		assert.Equal(t, float64(1), resp["count"])
		rows := resp["rows"].([]any)
		assert.Equal(t, "Uttar Pradesh", rows[0].(map[string]any)["state"])
	})

	t.Run("review queue rejects bad limit", func(t *testing.T) {
		w := doJSON(router, http.MethodGet, "/api/v1/mse?limit=0", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("get by id", func(t *testing.T) {
		w := doJSON(router, http.MethodGet, "/api/v1/mse/1", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "Varanasi Handlooms", decode[map[string]any](t, w)["name"])
	})

	t.Run("get unknown id maps upstream 404", func(t *testing.T) {
		w := doJSON(router, http.MethodGet, "/api/v1/mse/99", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "MSE not found", decode[map[string]string](t, w)["error"])
	})

	t.Run("get invalid id", func(t *testing.T) {
		w := doJSON(router, http.MethodGet, "/api/v1/mse/abc", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestRegistrationOptionsEndpoint(t *testing.T) {
	router := setupTestRouter(t, &fakeAgentMap{})

	w := doJSON(router, http.MethodGet, "/api/v1/register/options", "")
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[map[string]any](t, w)
	assert.Len(t, resp["states"], 28)
	assert.Len(t, resp["languages"], 5)
}

func TestAuditEndpoint(t *testing.T) {
	router := setupTestRouter(t, &fakeAgentMap{})

	w := doJSON(router, http.MethodGet, "/api/v1/audit", "")
	assert.Equal(t, http.StatusNotImplemented, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	router := setupTestRouter(t, &fakeAgentMap{})
	doJSON(router, http.MethodPost, "/api/v1/match", `{"mse_id": 7}`)

	w := doJSON(router, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "agentmap_dashboard_orchestrations_total")
	assert.Contains(t, w.Body.String(), "agentmap_dashboard_http_requests_total")
}

// TestCORSIntegration tests CORS headers work end-to-end with full router
func TestCORSIntegration(t *testing.T) {
	router := setupTestRouter(t, &fakeAgentMap{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))
}

// TestRecoveryMiddleware tests panic recovery
func TestRecoveryMiddleware(t *testing.T) {
	router := setupTestRouter(t, &fakeAgentMap{})
	router.GET("/panic", func(c *gin.Context) {
		panic("test panic")
	})

	w := doJSON(router, http.MethodGet, "/panic", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "internal", decode[map[string]string](t, w)["kind"])
}

// TestJSONResponses tests that all responses are valid JSON
func TestJSONResponses(t *testing.T) {
	endpoints := []struct {
		method string
		path   string
	}{
		{"GET", "/health"},
		{"GET", "/api/v1/audit"},
		{"GET", "/api/v1/mse"},
		{"POST", "/api/v1/match"},
	}

	for _, endpoint := range endpoints {
		t.Run(endpoint.method+" "+endpoint.path, func(t *testing.T) {
			router := setupTestRouter(t, &fakeAgentMap{})

			w := doJSON(router, endpoint.method, endpoint.path, "")

			assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))
			var response map[string]any
			assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		})
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.Errorf(domain.KindInvalidInput, "x"), http.StatusBadRequest},
		{&domain.Error{Kind: domain.KindInvalidInput, Remote: true}, http.StatusBadGateway},
		{domain.Errorf(domain.KindInvalidIdentifier, "x"), http.StatusBadRequest},
		{&domain.Error{Kind: domain.KindRemoteRejected, Status: 500}, http.StatusBadGateway},
		{&domain.Error{Kind: domain.KindRemoteRejected, Status: 404}, http.StatusNotFound},
		{domain.Errorf(domain.KindRemoteUnavailable, "x"), http.StatusServiceUnavailable},
		{domain.Errorf(domain.KindTimeout, "x"), http.StatusGatewayTimeout},
		{domain.Errorf(domain.KindSuperseded, "x"), http.StatusConflict},
		{domain.Errorf(domain.KindCanceled, "x"), 499},
		{domain.ErrSessionNotFound, http.StatusNotFound},
		{assert.AnError, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), "%v", tt.err)
	}
}
