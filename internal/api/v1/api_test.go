package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evmtrack/evmtrack/internal/api/auth"
	mw "github.com/evmtrack/evmtrack/internal/api/middleware"
	"github.com/evmtrack/evmtrack/internal/conf"
	"github.com/evmtrack/evmtrack/internal/custody/custodytest"
	"github.com/evmtrack/evmtrack/internal/datastore/entities"
	"github.com/evmtrack/evmtrack/internal/errors"
	"github.com/evmtrack/evmtrack/internal/logger"
	"github.com/evmtrack/evmtrack/internal/registry"
)

const testPassword = "correct horse"

type testServer struct {
	e         *echo.Echo
	env       *custodytest.Env
	tokens    *auth.TokenIssuer
	reportDir string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	env := custodytest.New(t)
	hash, err := auth.HashPassword(testPassword)
	require.NoError(t, err)
	require.NoError(t, env.DB.Model(&entities.User{}).
		Where("id = ?", env.DEO.ID).
		Update("password_hash", hash).Error)

	tokens := auth.NewTokenIssuer("api-test-secret", "evmtrack-test", time.Minute, time.Hour)
	authService := auth.NewService(env.Store.Directory, tokens, auth.NewMemoryRevocationStore(), logger.NewDiscard())

	e := echo.New()
	e.Use(mw.NewCorrelationID())

	reportDir := t.TempDir()
	services := NewServices(env.Deps, &conf.CustodySettings{ManufacturerUserID: env.Manufacturer.ID})
	New(e, services, authService, reportDir, logger.NewDiscard())

	return &testServer{e: e, env: env, tokens: tokens, reportDir: reportDir}
}

func (s *testServer) token(t *testing.T, u entities.User) string {
	t.Helper()
	tok, _, err := s.tokens.Issue(&u, auth.TokenAccess)
	require.NoError(t, err)
	return tok
}

func (s *testServer) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func registerRequest(warehouseID uint, serials ...string) registry.RegisterRequest {
	req := registry.RegisterRequest{OrderNo: "ORD-7", WarehouseID: warehouseID}
	for _, s := range serials {
		req.Components = append(req.Components, registry.NewComponent{Serial: s, Type: entities.TypeCU})
	}
	return req
}

func TestLoginFlow(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/auth/login",
		LoginRequest{Username: s.env.DEO.Username, Password: testPassword}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	pair := decode[auth.TokenPair](t, rec)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)

	rec = s.do(t, http.MethodGet, "/api/v1/components?owner_id=me", nil, pair.AccessToken)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/api/v1/auth/logout", RefreshRequest{RefreshToken: pair.RefreshToken}, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/auth/refresh", RefreshRequest{RefreshToken: pair.RefreshToken}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginRejects(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	tests := []struct {
		name string
		req  LoginRequest
		code int
	}{
		{"wrong password", LoginRequest{Username: s.env.DEO.Username, Password: "nope"}, http.StatusUnauthorized},
		{"unknown user", LoginRequest{Username: "ghost", Password: testPassword}, http.StatusUnauthorized},
		{"missing password", LoginRequest{Username: s.env.DEO.Username}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/api/v1/auth/login", tt.req, "")
			assert.Equal(t, tt.code, rec.Code)
			resp := decode[ErrorResponse](t, rec)
			assert.Equal(t, tt.code, resp.Code)
			assert.NotEmpty(t, resp.CorrelationID)
		})
	}
}

func TestProtectedRoutes(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/v1/components", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/components/sec-approve",
		SerialsRequest{Serials: []string{"CU001"}}, s.token(t, s.env.DEO))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRegisterSendsReceipt(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/components/register",
		registerRequest(s.env.Warehouse.ID, "CU101", "CU102"), s.token(t, s.env.DEO))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/pdf", rec.Header().Get(echo.HeaderContentType))
	assert.Contains(t, rec.Header().Get(echo.HeaderContentDisposition), "attachment")
	assert.Equal(t, "%PDF-fake", rec.Body.String())

	entries, err := os.ReadDir(s.reportDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "staged report should be removed after sending")
}

func TestRegisterJSONFormat(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/components/register?format=json",
		registerRequest(s.env.Warehouse.ID, "CU201"), s.token(t, s.env.DEO))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	result := decode[registry.RegisterResult](t, rec)
	require.Len(t, result.Components, 1)
	assert.Equal(t, entities.StatusFLCPending, result.Components[0].Status)
}

func TestRegisterPartialSuccessWhenRendererFails(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	s.env.Renderer.Fail = true

	rec := s.do(t, http.MethodPost, "/api/v1/components/register",
		registerRequest(s.env.Warehouse.ID, "CU301"), s.token(t, s.env.DEO))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		Status      string                  `json:"status"`
		Result      registry.RegisterResult `json:"result"`
		ReportError string                  `json:"report_error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "partial_success", body.Status)
	assert.NotEmpty(t, body.ReportError)
	require.Len(t, body.Result.Components, 1)

	// the registration committed despite the failed receipt
	rec = s.do(t, http.MethodGet, "/api/v1/components/CU301", nil, s.token(t, s.env.DEO))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestErrorMapping(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	token := s.token(t, s.env.DEO)

	rec := s.do(t, http.MethodGet, "/api/v1/components/NOPE404", nil, token)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, string(errors.CategoryNotFound), decode[ErrorResponse](t, rec).Error)

	rec = s.do(t, http.MethodPost, "/api/v1/components/register?format=json",
		registerRequest(s.env.Warehouse.ID, "CU401", "X", "CU401"), token)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
	resp := decode[ErrorResponse](t, rec)
	assert.Equal(t, string(errors.CategoryValidationBatch), resp.Error)
	assert.Len(t, resp.Errors, 2)

	rec = s.do(t, http.MethodGet, "/api/v1/allotments/abc", nil, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/audit/spaceship/1", nil, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCorrelationIDReachesAudit(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	token := s.token(t, s.env.DEO)

	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(registerRequest(s.env.Warehouse.ID, "CU501")))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/components/register?format=json", &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	req.Header.Set(mw.HeaderCorrelationID, "corr-501")
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "corr-501", rec.Header().Get(mw.HeaderCorrelationID))

	rec = s.do(t, http.MethodGet, "/api/v1/audit/correlation/corr-501", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	events := decode[[]map[string]any](t, rec)
	assert.Len(t, events, 1)
}
