package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"tallerpos/internal/dto"
	"tallerpos/internal/middleware"
	"tallerpos/internal/repository"
	"tallerpos/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubCashboxService returns canned results so the tests pin down the HTTP
// status mapping without a database.
type stubCashboxService struct {
	openErr    error
	recordErr  error
	closeErr   error
	getErr     error
	session    dto.SessionResponse
	closeResp  dto.CloseSessionResponse
	movement   dto.MovementResponse
	lastFilter repository.MovementFilter
}

func (s *stubCashboxService) Open(_ context.Context, _ uuid.UUID, _ dto.OpenSessionRequest) (*dto.SessionResponse, error) {
	if s.openErr != nil {
		return nil, s.openErr
	}
	return &s.session, nil
}

func (s *stubCashboxService) RecordMovement(_ context.Context, _ uuid.UUID, _ dto.RecordMovementRequest) (*dto.MovementResponse, error) {
	if s.recordErr != nil {
		return nil, s.recordErr
	}
	return &s.movement, nil
}

func (s *stubCashboxService) Close(_ context.Context, _ uuid.UUID, _ dto.CloseSessionRequest) (*dto.CloseSessionResponse, error) {
	if s.closeErr != nil {
		return nil, s.closeErr
	}
	return &s.closeResp, nil
}

func (s *stubCashboxService) GetSession(_ context.Context, _ uuid.UUID) (*dto.SessionResponse, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return &s.session, nil
}

func (s *stubCashboxService) GetActive(_ context.Context, _ int) (*dto.SessionResponse, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return &s.session, nil
}

func (s *stubCashboxService) ListMovements(_ context.Context, _ uuid.UUID, f repository.MovementFilter) ([]dto.MovementResponse, error) {
	s.lastFilter = f
	return []dto.MovementResponse{s.movement}, nil
}

func (s *stubCashboxService) ComputeTotals(_ context.Context, _ uuid.UUID) (*dto.MethodTotals, error) {
	return &dto.MethodTotals{}, nil
}

func (s *stubCashboxService) History(_ context.Context, page, limit int) (*dto.SessionListResponse, error) {
	return &dto.SessionListResponse{Page: page, Limit: limit}, nil
}

// fakeAuth injects claims the way JWTAuth would after verifying a token.
func fakeAuth(operatorID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ClaimsKey, &middleware.JWTClaims{
			OperatorID:       operatorID,
			Username:         "maria",
			Role:             "cashier",
			RegisteredClaims: jwt.RegisteredClaims{},
		})
		c.Next()
	}
}

func testRouter(svc service.CashboxService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewCashboxHandler(svc)
	r := gin.New()
	r.Use(fakeAuth(uuid.NewString()))
	r.POST("/v1/cashbox/sessions", h.Open)
	r.POST("/v1/cashbox/sessions/close", h.Close)
	r.POST("/v1/cashbox/movements", h.RecordMovement)
	r.GET("/v1/cashbox/sessions/:id", h.Get)
	r.GET("/v1/cashbox/sessions/:id/movements", h.ListMovements)
	r.GET("/v1/cashbox/registers/:register/active", h.GetActive)
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func validOpenBody() dto.OpenSessionRequest {
	return dto.OpenSessionRequest{Register: 1, OpeningFloat: decimal.RequireFromString("100.00")}
}

func TestOpenReturns201(t *testing.T) {
	stub := &stubCashboxService{session: dto.SessionResponse{ID: uuid.NewString(), State: "open"}}
	r := testRouter(stub)

	w := doJSON(t, r, http.MethodPost, "/v1/cashbox/sessions", validOpenBody())
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestOpenConflictReturns409(t *testing.T) {
	stub := &stubCashboxService{openErr: &service.ConflictError{Reason: "register 1 already has an open session"}}
	r := testRouter(stub)

	w := doJSON(t, r, http.MethodPost, "/v1/cashbox/sessions", validOpenBody())
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "already has an open session")
}

func TestOpenMalformedBodyReturns422(t *testing.T) {
	r := testRouter(&stubCashboxService{})

	req := httptest.NewRequest(http.MethodPost, "/v1/cashbox/sessions", bytes.NewBufferString("{not json"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestOpenMissingRegisterReturns422(t *testing.T) {
	r := testRouter(&stubCashboxService{})

	w := doJSON(t, r, http.MethodPost, "/v1/cashbox/sessions", gin.H{"opening_float": "50"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestErrorTaxonomyMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"validation", &service.ValidationError{Reason: "amount must be greater than zero"}, http.StatusUnprocessableEntity},
		{"conflict", &service.ConflictError{Reason: "duplicate"}, http.StatusConflict},
		{"invalid state", &service.InvalidStateError{Reason: "session is closed"}, http.StatusConflict},
		{"not found", &service.NotFoundError{Entity: "session", ID: uuid.NewString()}, http.StatusNotFound},
		{"unknown", assert.AnError, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			stub := &stubCashboxService{recordErr: tc.err}
			r := testRouter(stub)
			w := doJSON(t, r, http.MethodPost, "/v1/cashbox/movements", dto.RecordMovementRequest{
				SessionID: uuid.NewString(),
				Kind:      "sale",
				Method:    "cash",
				Amount:    decimal.RequireFromString("10"),
			})
			assert.Equal(t, tc.status, w.Code)
		})
	}
}

func TestRecordMovementBadKindRejectedBeforeService(t *testing.T) {
	stub := &stubCashboxService{}
	r := testRouter(stub)

	w := doJSON(t, r, http.MethodPost, "/v1/cashbox/movements", gin.H{
		"session_id": uuid.NewString(),
		"kind":       "refund",
		"method":     "cash",
		"amount":     "10",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestCloseReturnsWarnings(t *testing.T) {
	stub := &stubCashboxService{closeResp: dto.CloseSessionResponse{
		Session:  dto.SessionResponse{State: "closed"},
		Warnings: []string{"declared card total 35 differs from system total 40"},
	}}
	r := testRouter(stub)

	w := doJSON(t, r, http.MethodPost, "/v1/cashbox/sessions/close", dto.CloseSessionRequest{
		SessionID: uuid.NewString(),
		Declared:  dto.MethodTotals{},
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp dto.CloseSessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Warnings, 1)
}

func TestCloseTwiceReturns409(t *testing.T) {
	stub := &stubCashboxService{closeErr: &service.InvalidStateError{Reason: "session is already closed"}}
	r := testRouter(stub)

	w := doJSON(t, r, http.MethodPost, "/v1/cashbox/sessions/close", dto.CloseSessionRequest{
		SessionID: uuid.NewString(),
		Declared:  dto.MethodTotals{},
	})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestGetSessionBadUUIDReturns422(t *testing.T) {
	r := testRouter(&stubCashboxService{})

	w := doJSON(t, r, http.MethodGet, "/v1/cashbox/sessions/not-a-uuid", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestGetActiveBadRegisterReturns422(t *testing.T) {
	r := testRouter(&stubCashboxService{})

	w := doJSON(t, r, http.MethodGet, "/v1/cashbox/registers/zero/active", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestListMovementsParsesFilters(t *testing.T) {
	stub := &stubCashboxService{}
	r := testRouter(stub)

	id := uuid.NewString()
	w := doJSON(t, r, http.MethodGet,
		"/v1/cashbox/sessions/"+id+"/movements?kind=withdrawal&method=cash&from=2026-03-15T00:00:00Z", nil)
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, "withdrawal", stub.lastFilter.Kind)
	assert.Equal(t, "cash", stub.lastFilter.Method)
	require.NotNil(t, stub.lastFilter.From)
	assert.Nil(t, stub.lastFilter.To)
}

func TestListMovementsBadTimestampReturns422(t *testing.T) {
	r := testRouter(&stubCashboxService{})

	w := doJSON(t, r, http.MethodGet,
		"/v1/cashbox/sessions/"+uuid.NewString()+"/movements?from=yesterday", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}
