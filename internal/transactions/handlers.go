package transactions

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mbd888/fraudguard/internal/pagination"
	"github.com/mbd888/fraudguard/internal/risk"
	"github.com/mbd888/fraudguard/internal/validation"
)

var (
	errNoData      = errors.New("no data provided")
	errInvalidBody = errors.New("request body must be a JSON object")
)

// Handler provides HTTP endpoints for scoring and transaction review.
type Handler struct {
	service *Service
}

// NewHandler creates a new transaction handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes sets up the scoring and transaction routes.
func (h *Handler) RegisterRoutes(r gin.IRoutes) {
	r.POST("/predict", h.Predict)
	r.POST("/save_transaction", h.SaveTransaction)

	r.GET("/transactions", h.ListTransactions)
	r.GET("/get_transactions", h.ListTransactions)
	r.DELETE("/transactions", h.DeleteAllTransactions)

	// Static segment before the :id wildcard.
	r.GET("/transactions/stats", h.GetStats)
	r.GET("/transactions/:id", validation.IDParamMiddleware(), h.GetTransaction)
	r.DELETE("/transactions/:id", validation.IDParamMiddleware(), h.DeleteTransaction)
}

// Predict handles POST /predict
func (h *Handler) Predict(c *gin.Context) {
	data, err := readObject(c)
	if err != nil && !errors.Is(err, errNoData) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	features, err := risk.DecodeFeatures(data)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, h.service.Predict(c.Request.Context(), features))
}

// SaveTransaction handles POST /save_transaction
func (h *Handler) SaveTransaction(c *gin.Context) {
	data, err := readObject(c)
	if errors.Is(err, errNoData) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No data provided"})
		return
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tx, err := DecodeTransaction(data)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	saved, err := h.service.Save(c.Request.Context(), tx)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "Failed to save transaction (duplicate or DB error)",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"message":        "Transaction saved successfully",
		"transaction_id": saved.ID,
	})
}

// ListTransactions handles GET /transactions and GET /get_transactions
func (h *Handler) ListTransactions(c *gin.Context) {
	page, err := pagination.Parse(c.Query("limit"), c.Query("offset"), DefaultListLimit, MaxListLimit)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	txns, err := h.service.List(c.Request.Context(), ListOptions{
		Prediction: c.Query("prediction"),
		StartDate:  c.Query("start_date"),
		EndDate:    c.Query("end_date"),
		Limit:      page.Limit,
		Offset:     page.Offset,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, txns)
}

// GetTransaction handles GET /transactions/:id
func (h *Handler) GetTransaction(c *gin.Context) {
	tx, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Transaction not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, tx)
}

// GetStats handles GET /transactions/stats
func (h *Handler) GetStats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, stats)
}

// DeleteTransaction handles DELETE /transactions/:id
func (h *Handler) DeleteTransaction(c *gin.Context) {
	err := h.service.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Deleted"})
}

// DeleteAllTransactions handles DELETE /transactions
func (h *Handler) DeleteAllTransactions(c *gin.Context) {
	n, err := h.service.DeleteAll(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "deleted_count": n})
}

// readObject decodes the request body as a JSON object, keeping numbers as
// json.Number so integer fields are not rounded through float64. An empty
// body or empty object yields errNoData.
func readObject(c *gin.Context) (map[string]any, error) {
	dec := json.NewDecoder(c.Request.Body)
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return map[string]any{}, errNoData
		}
		return nil, errInvalidBody
	}
	if raw == nil {
		return map[string]any{}, errNoData
	}
	data, ok := raw.(map[string]any)
	if !ok {
		return nil, errInvalidBody
	}
	if len(data) == 0 {
		return data, errNoData
	}
	return data, nil
}
