package api

import (
	"net/http"

	"shop-service/internal/models"
	"shop-service/internal/service"

	"github.com/gin-gonic/gin"
)

// placeOrder is the alternate checkout entry point producing a pending order
func (h *Handler) placeOrder(c *gin.Context) {
	var req service.PlaceOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	if req.IdempotencyKey == "" {
		req.IdempotencyKey = c.GetHeader("Idempotency-Key")
	}

	summary, err := h.checkout.PlaceOrder(c.Request.Context(), &req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, summary)
}

// listOrders returns orders. By default only the latest confirmed order is
// returned; ?all=true lists everything, ?status= filters either form.
func (h *Handler) listOrders(c *gin.Context) {
	status := c.Query("status")

	if c.Query("all") == "true" {
		orders, err := h.order.List(c.Request.Context(), status)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, orders)
		return
	}

	if status == "" {
		status = models.OrderStatusConfirmed
	}
	order, err := h.order.Latest(c.Request.Context(), status)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// listUserOrders returns a user's full order history, newest first
func (h *Handler) listUserOrders(c *gin.Context) {
	userID, ok := pathID(c, "user_id")
	if !ok {
		return
	}

	orders, err := h.order.ListForUser(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

// getOrderDetails returns the user's latest order with the snapshot cart's
// line items
func (h *Handler) getOrderDetails(c *gin.Context) {
	userID, ok := pathID(c, "user_id")
	if !ok {
		return
	}

	detail, err := h.order.DetailsForUser(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}
