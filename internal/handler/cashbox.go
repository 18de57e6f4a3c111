package handler

import (
	"net/http"
	"strconv"
	"time"

	"tallerpos/internal/apierror"
	"tallerpos/internal/dto"
	"tallerpos/internal/repository"
	"tallerpos/internal/service"

	"github.com/gin-gonic/gin"
)

// CashboxHandler exposes the session and movement ledger over HTTP.
type CashboxHandler struct {
	svc service.CashboxService
}

func NewCashboxHandler(svc service.CashboxService) *CashboxHandler {
	return &CashboxHandler{svc: svc}
}

// Open handles POST /v1/cashbox/sessions.
// 201 on success, 409 when the register already has an open session.
func (h *CashboxHandler) Open(c *gin.Context) {
	opID, ok := operatorID(c)
	if !ok {
		return
	}
	var req dto.OpenSessionRequest
	if !bindAndValidate(c, &req) {
		return
	}

	resp, err := h.svc.Open(c.Request.Context(), opID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// RecordMovement handles POST /v1/cashbox/movements.
// 201 on append, 409 once the session is closed.
func (h *CashboxHandler) RecordMovement(c *gin.Context) {
	opID, ok := operatorID(c)
	if !ok {
		return
	}
	var req dto.RecordMovementRequest
	if !bindAndValidate(c, &req) {
		return
	}

	resp, err := h.svc.RecordMovement(c.Request.Context(), opID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Close handles POST /v1/cashbox/sessions/close.
// Electronic mismatches come back as warnings next to the closed session;
// only a second close or a bad declaration is an error.
func (h *CashboxHandler) Close(c *gin.Context) {
	opID, ok := operatorID(c)
	if !ok {
		return
	}
	var req dto.CloseSessionRequest
	if !bindAndValidate(c, &req) {
		return
	}

	resp, err := h.svc.Close(c.Request.Context(), opID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Get handles GET /v1/cashbox/sessions/:id.
func (h *CashboxHandler) Get(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.GetSession(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GetActive handles GET /v1/cashbox/registers/:register/active.
func (h *CashboxHandler) GetActive(c *gin.Context) {
	register, err := strconv.Atoi(c.Param("register"))
	if err != nil || register < 1 {
		c.JSON(http.StatusUnprocessableEntity, apierror.New("register must be a positive till number"))
		return
	}
	resp, err := h.svc.GetActive(c.Request.Context(), register)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ListMovements handles GET /v1/cashbox/sessions/:id/movements.
// Optional query filters: kind, method, from, to (RFC 3339).
func (h *CashboxHandler) ListMovements(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	filter := repository.MovementFilter{
		Kind:   c.Query("kind"),
		Method: c.Query("method"),
	}
	if raw := c.Query("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusUnprocessableEntity, apierror.New("from must be an RFC 3339 timestamp"))
			return
		}
		filter.From = &t
	}
	if raw := c.Query("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusUnprocessableEntity, apierror.New("to must be an RFC 3339 timestamp"))
			return
		}
		filter.To = &t
	}

	resp, err := h.svc.ListMovements(c.Request.Context(), id, filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Totals handles GET /v1/cashbox/sessions/:id/totals.
// Returns the live signed fold of the session's ledger by payment method.
func (h *CashboxHandler) Totals(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.ComputeTotals(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// History handles GET /v1/cashbox/sessions — paginated closed sessions,
// most recently closed first.
func (h *CashboxHandler) History(c *gin.Context) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 1 || limit > 100 {
		limit = 20
	}

	resp, svcErr := h.svc.History(c.Request.Context(), page, limit)
	if svcErr != nil {
		respondError(c, svcErr)
		return
	}
	c.JSON(http.StatusOK, resp)
}
