package api

import (
	"net/http"

	"shop-service/internal/models"
	"shop-service/internal/service"
	"shop-service/internal/util"

	"github.com/gin-gonic/gin"
)

// createCart builds a cart for a user and fills it with the requested lines
func (h *Handler) createCart(c *gin.Context) {
	var req service.CreateCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	cart, err := h.cart.Create(c.Request.Context(), &req)
	if err != nil {
		writeError(c, err)
		return
	}

	util.CartsCreatedTotal.Inc()
	c.JSON(http.StatusCreated, cart)
}

// checkoutCart finalizes a cart into a confirmed order
func (h *Handler) checkoutCart(c *gin.Context) {
	cartID, ok := pathID(c, "cart_id")
	if !ok {
		return
	}

	summary, err := h.checkout.Checkout(c.Request.Context(), cartID, models.OrderStatusConfirmed)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// getActiveCart returns the user's current active cart
func (h *Handler) getActiveCart(c *gin.Context) {
	userID, ok := pathID(c, "user_id")
	if !ok {
		return
	}

	cart, err := h.cart.GetActiveCart(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cart)
}

// getUserCarts returns all carts for a user, active and finalized
func (h *Handler) getUserCarts(c *gin.Context) {
	userID, ok := pathID(c, "user_id")
	if !ok {
		return
	}

	carts, err := h.cart.GetCartsForUser(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, carts)
}
