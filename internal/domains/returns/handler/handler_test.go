package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"returns-backend/internal/domains/returns/courier"
	courierMock "returns-backend/internal/domains/returns/courier/mock"
	"returns-backend/internal/domains/returns/repository"
	"returns-backend/internal/domains/returns/service"
	"returns-backend/internal/shared/response"
)

// =====================================================
// TEST HARNESS
// =====================================================

type harness struct {
	router  *gin.Engine
	gateway *courierMock.Gateway
}

func newHarness() *harness {
	gin.SetMode(gin.TestMode)

	repo := repository.NewMemoryReturnRepository()
	gateway := courierMock.NewGateway()
	svc := service.NewReturnService(repo, gateway, nil, nil)
	h := NewReturnHandler(svc)

	router := gin.New()
	v1 := router.Group("/v1")
	v1.Use(func(c *gin.Context) {
		c.Set("email", "admin@example.com")
		c.Next()
	})
	h.RegisterCustomerRoutes(v1)
	h.RegisterAdminRoutes(v1)

	return &harness{router: router, gateway: gateway}
}

func (h *harness) do(t *testing.T, method, path string, body interface{}) (*httptest.ResponseRecorder, response.Response) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)

	var envelope response.Response
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	}
	return rec, envelope
}

func createBody() map[string]interface{} {
	return map[string]interface{}{
		"order_id":      "ORD-3001",
		"product_id":    "SKU-11",
		"product_title": "Bluetooth Speaker",
		"quantity":      1,
		"unit_price":    "59.99",
		"reason":        "damaged on arrival",
		"requested_by":  "bob@example.com",
	}
}

func (h *harness) createReturn(t *testing.T) string {
	t.Helper()
	rec, envelope := h.do(t, http.MethodPost, "/v1/returns", createBody())
	require.Equal(t, http.StatusCreated, rec.Code)
	data := envelope.Data.(map[string]interface{})
	return data["id"].(string)
}

func (h *harness) approve(t *testing.T, id string) {
	t.Helper()
	rec, _ := h.do(t, http.MethodPatch, "/v1/admin/returns/"+id+"/approve", map[string]interface{}{})
	require.Equal(t, http.StatusOK, rec.Code)
}

// =====================================================
// CREATE & READ
// =====================================================

func TestCreateReturnEndpoint(t *testing.T) {
	t.Run("creates a pending request", func(t *testing.T) {
		h := newHarness()
		rec, envelope := h.do(t, http.MethodPost, "/v1/returns", createBody())
		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.True(t, envelope.Success)
		data := envelope.Data.(map[string]interface{})
		assert.Equal(t, "pending", data["status"])
	})

	t.Run("malformed body", func(t *testing.T) {
		h := newHarness()
		req := httptest.NewRequest(http.MethodPost, "/v1/returns", bytes.NewReader([]byte("{not json")))
		rec := httptest.NewRecorder()
		h.router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("validation failure", func(t *testing.T) {
		h := newHarness()
		body := createBody()
		body["reason"] = ""
		rec, envelope := h.do(t, http.MethodPost, "/v1/returns", body)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		require.NotNil(t, envelope.Error)
		assert.Equal(t, "RET005", envelope.Error.Code)
	})
}

func TestGetReturnEndpoint(t *testing.T) {
	h := newHarness()
	id := h.createReturn(t)

	t.Run("by id", func(t *testing.T) {
		rec, envelope := h.do(t, http.MethodGet, "/v1/returns/"+id, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, envelope.Success)
	})

	t.Run("invalid uuid", func(t *testing.T) {
		rec, envelope := h.do(t, http.MethodGet, "/v1/returns/not-a-uuid", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		require.NotNil(t, envelope.Error)
		assert.Equal(t, "BAD_REQUEST", envelope.Error.Code)
	})

	t.Run("unknown id", func(t *testing.T) {
		rec, envelope := h.do(t, http.MethodGet, "/v1/returns/6a0f76a3-5a79-4f49-9c29-6f3a5a9c0d11", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		require.NotNil(t, envelope.Error)
		assert.Equal(t, "RET001", envelope.Error.Code)
	})
}

// =====================================================
// TRANSITIONS
// =====================================================

func TestTransitionEndpoints(t *testing.T) {
	t.Run("approve then complete via process", func(t *testing.T) {
		h := newHarness()
		id := h.createReturn(t)

		rec, envelope := h.do(t, http.MethodPatch, "/v1/admin/returns/"+id+"/approve",
			map[string]interface{}{"admin_notes": "ok"})
		assert.Equal(t, http.StatusOK, rec.Code)
		data := envelope.Data.(map[string]interface{})
		assert.Equal(t, "approved", data["status"])

		rec, _ = h.do(t, http.MethodPatch, "/v1/admin/returns/"+id+"/process", map[string]interface{}{})
		assert.Equal(t, http.StatusOK, rec.Code)

		rec, envelope = h.do(t, http.MethodPatch, "/v1/admin/returns/"+id+"/complete",
			map[string]interface{}{"refund_amount": "59.99", "refund_method": "upi"})
		assert.Equal(t, http.StatusOK, rec.Code)
		data = envelope.Data.(map[string]interface{})
		assert.Equal(t, "completed", data["status"])
	})

	t.Run("illegal transition maps to 409", func(t *testing.T) {
		h := newHarness()
		id := h.createReturn(t)

		rec, envelope := h.do(t, http.MethodPatch, "/v1/admin/returns/"+id+"/complete",
			map[string]interface{}{"refund_amount": "10", "refund_method": "upi"})
		assert.Equal(t, http.StatusConflict, rec.Code)
		require.NotNil(t, envelope.Error)
		assert.Equal(t, "RET002", envelope.Error.Code)
	})

	t.Run("terminal state maps to 409", func(t *testing.T) {
		h := newHarness()
		id := h.createReturn(t)
		rec, _ := h.do(t, http.MethodPatch, "/v1/admin/returns/"+id+"/reject", map[string]interface{}{})
		require.Equal(t, http.StatusOK, rec.Code)

		rec, envelope := h.do(t, http.MethodPatch, "/v1/admin/returns/"+id+"/approve", map[string]interface{}{})
		assert.Equal(t, http.StatusConflict, rec.Code)
		require.NotNil(t, envelope.Error)
		assert.Equal(t, "RET003", envelope.Error.Code)
	})

	t.Run("missing refund amount maps to 422", func(t *testing.T) {
		h := newHarness()
		id := h.createReturn(t)
		h.approve(t, id)
		rec, _ := h.do(t, http.MethodPatch, "/v1/admin/returns/"+id+"/process", map[string]interface{}{})
		require.Equal(t, http.StatusOK, rec.Code)

		rec, envelope := h.do(t, http.MethodPatch, "/v1/admin/returns/"+id+"/complete",
			map[string]interface{}{"refund_method": "upi"})
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		require.NotNil(t, envelope.Error)
		assert.Equal(t, "RET004", envelope.Error.Code)

		// An explicit zero is a supplied amount that fails the bounds check
		rec, envelope = h.do(t, http.MethodPatch, "/v1/admin/returns/"+id+"/complete",
			map[string]interface{}{"refund_amount": "0", "refund_method": "upi"})
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		require.NotNil(t, envelope.Error)
		assert.Equal(t, "RET005", envelope.Error.Code)
	})
}

// =====================================================
// PICKUP
// =====================================================

func pickupBody() map[string]interface{} {
	return map[string]interface{}{
		"customer_name": "Bob Stone",
		"phone":         "9876501234",
		"address":       "7 Hill Road",
		"city":          "Mumbai",
		"state":         "Maharashtra",
		"pincode":       "400050",
		"pickup_date":   "2099-01-15",
		"time_slot":     "9am-11am",
	}
}

func TestSchedulePickupEndpoint(t *testing.T) {
	t.Run("books a pickup on an approved return", func(t *testing.T) {
		h := newHarness()
		id := h.createReturn(t)
		h.approve(t, id)

		rec, envelope := h.do(t, http.MethodPost, "/v1/admin/returns/"+id+"/pickup", pickupBody())
		assert.Equal(t, http.StatusOK, rec.Code)
		data := envelope.Data.(map[string]interface{})
		assert.Equal(t, "approved", data["status"])
		pickup := data["pickup"].(map[string]interface{})
		assert.NotEmpty(t, pickup["tracking_number"])
	})

	t.Run("unavailable slot maps to 409", func(t *testing.T) {
		h := newHarness()
		id := h.createReturn(t)
		h.approve(t, id)

		body := pickupBody()
		body["time_slot"] = "11pm-1am"
		rec, envelope := h.do(t, http.MethodPost, "/v1/admin/returns/"+id+"/pickup", body)
		assert.Equal(t, http.StatusConflict, rec.Code)
		require.NotNil(t, envelope.Error)
		assert.Equal(t, "RET007", envelope.Error.Code)
	})

	t.Run("provider outage maps to 503", func(t *testing.T) {
		h := newHarness()
		id := h.createReturn(t)
		h.approve(t, id)
		h.gateway.SlotsErr = courier.ErrProviderUnavailable

		rec, envelope := h.do(t, http.MethodPost, "/v1/admin/returns/"+id+"/pickup", pickupBody())
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		require.NotNil(t, envelope.Error)
		assert.Equal(t, "RET008", envelope.Error.Code)
	})
}

func TestGetPickupSlotsEndpoint(t *testing.T) {
	t.Run("lists provider slots", func(t *testing.T) {
		h := newHarness()
		rec, envelope := h.do(t, http.MethodGet, "/v1/admin/returns/pickup-slots?pincode=400050&date=2099-01-15", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		data := envelope.Data.(map[string]interface{})
		assert.NotEmpty(t, data["slots"])
	})

	t.Run("rejects a malformed date", func(t *testing.T) {
		h := newHarness()
		rec, _ := h.do(t, http.MethodGet, "/v1/admin/returns/pickup-slots?pincode=400050&date=15-01-2099", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

// =====================================================
// LIST / STATS / ARCHIVE
// =====================================================

func TestListReturnsEndpoint(t *testing.T) {
	h := newHarness()
	first := h.createReturn(t)
	h.createReturn(t)
	h.approve(t, first)

	t.Run("returns paginated results with meta", func(t *testing.T) {
		rec, envelope := h.do(t, http.MethodGet, "/v1/admin/returns?page=1&limit=1", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, envelope.Meta)
		assert.Equal(t, 2, envelope.Meta.Total)
		assert.Equal(t, 1, envelope.Meta.Limit)
		items := envelope.Data.([]interface{})
		assert.Len(t, items, 1)
	})

	t.Run("filters by status", func(t *testing.T) {
		rec, envelope := h.do(t, http.MethodGet, "/v1/admin/returns?status=approved", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, envelope.Meta)
		assert.Equal(t, 1, envelope.Meta.Total)
	})

	t.Run("unknown status maps to 422", func(t *testing.T) {
		rec, envelope := h.do(t, http.MethodGet, "/v1/admin/returns?status=shipped", nil)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		require.NotNil(t, envelope.Error)
		assert.Equal(t, "RET005", envelope.Error.Code)
	})
}

func TestGetStatsEndpoint(t *testing.T) {
	h := newHarness()
	h.createReturn(t)

	rec, envelope := h.do(t, http.MethodGet, "/v1/admin/returns/stats", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	data := envelope.Data.(map[string]interface{})
	assert.Equal(t, float64(1), data["total"])
}

func TestArchiveReturnEndpoint(t *testing.T) {
	h := newHarness()
	id := h.createReturn(t)

	rec, _ := h.do(t, http.MethodDelete, "/v1/admin/returns/"+id, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Zero(t, rec.Body.Len())

	// Idempotent
	rec, _ = h.do(t, http.MethodDelete, "/v1/admin/returns/"+id, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	// Hidden from listings afterwards
	rec, envelope := h.do(t, http.MethodGet, "/v1/admin/returns", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, envelope.Meta)
	assert.Equal(t, 0, envelope.Meta.Total)
}
