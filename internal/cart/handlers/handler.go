package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/marwa-q/Orange-ecommerce-microservices-system/internal/api"
	"github.com/marwa-q/Orange-ecommerce-microservices-system/internal/auth"
	"github.com/marwa-q/Orange-ecommerce-microservices-system/internal/cart"
	"github.com/marwa-q/Orange-ecommerce-microservices-system/internal/middleware"
	"github.com/marwa-q/Orange-ecommerce-microservices-system/pkg/ctxmanage"
	"github.com/marwa-q/Orange-ecommerce-microservices-system/pkg/logkey"
)

type Handler struct {
	svc      *cart.Service
	validate *validator.Validate
}

func NewHandler(svc *cart.Service) *Handler {
	return &Handler{
		svc:      svc,
		validate: validator.New(),
	}
}

func API(endpointPrefix string, keys *auth.Keys, svc *cart.Service) *gin.Engine {
	r := gin.New()
	mode := os.Getenv("GIN_MODE")
	if mode == gin.ReleaseMode {
		gin.SetMode(mode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	m, err := middleware.NewMid(keys)
	if err != nil {
		panic(err)
	}
	h := NewHandler(svc)

	r.Use(middleware.Logger(), gin.Recovery())
	r.GET("/ping", healthCheck)

	v1 := r.Group(endpointPrefix)
	{
		// Collaborator contract for the order service: items of any cart by
		// id, including checked-out carts. Internal network only.
		v1.GET("/internal/:cartID/items", h.ItemsByCartID)

		v1.Use(m.Authentication())
		v1.POST("/add-item", m.Authorize(h.AddItem, auth.RoleUser))
		v1.GET("/items", m.Authorize(h.GetCart, auth.RoleUser))
		v1.PUT("/items/:productID", m.Authorize(h.UpdateItemQuantity, auth.RoleUser))
		v1.DELETE("/items/:productID", m.Authorize(h.RemoveItem, auth.RoleUser))
		v1.DELETE("/clear", m.Authorize(h.ClearCart, auth.RoleUser))
		v1.POST("/checkout", m.Authorize(h.Checkout, auth.RoleUser))
	}

	return r
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func claimsOfRequest(c *gin.Context) (auth.Claims, bool) {
	claims, ok := c.Request.Context().Value(auth.ClaimsKey).(auth.Claims)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
	}
	return claims, ok
}

type addItemRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid4"`
	Quantity  int    `json:"quantity" validate:"required,gt=0"`
}

func (h *Handler) AddItem(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := claimsOfRequest(c)
	if !ok {
		return
	}

	var req addItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.Error("invalid request body", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusBadRequest, api.FailureMsg("cart.invalid_request"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		slog.Error("request validation failed", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusBadRequest, api.FailureMsg("cart.invalid_request"))
		return
	}

	err := h.svc.AddItem(c.Request.Context(), claims.Subject, req.ProductID, req.Quantity)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, api.SuccessMsg("cart.item_added"))
	case errors.Is(err, cart.ErrProductNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, api.Failure(err))
	case errors.Is(err, cart.ErrInsufficientStock):
		c.AbortWithStatusJSON(http.StatusConflict, api.Failure(err))
	case errors.Is(err, cart.ErrInvalidQuantity):
		c.AbortWithStatusJSON(http.StatusBadRequest, api.Failure(err))
	default:
		slog.Error("error adding product to cart", slog.String(logkey.TraceID, traceId),
			slog.String(logkey.ProductID, req.ProductID), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, api.FailureMsg("cart.add_failed"))
	}
}

func (h *Handler) GetCart(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := claimsOfRequest(c)
	if !ok {
		return
	}

	activeCart, err := h.svc.GetCart(c.Request.Context(), claims.Subject)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, api.Success(activeCart))
	case errors.Is(err, cart.ErrCartNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, api.Failure(err))
	default:
		slog.Error("error fetching cart", slog.String(logkey.TraceID, traceId),
			slog.String(logkey.UserID, claims.Subject), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, api.FailureMsg("cart.fetch_failed"))
	}
}

type updateQuantityRequest struct {
	Quantity int `json:"quantity" validate:"required,gt=0"`
}

func (h *Handler) UpdateItemQuantity(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := claimsOfRequest(c)
	if !ok {
		return
	}
	productID := c.Param("productID")

	var req updateQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, api.Failure(cart.ErrInvalidQuantity))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, api.Failure(cart.ErrInvalidQuantity))
		return
	}

	err := h.svc.UpdateItemQuantity(c.Request.Context(), claims.Subject, productID, req.Quantity)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, api.SuccessMsg("cart.item.quantity.updated"))
	case errors.Is(err, cart.ErrCartNotFound), errors.Is(err, cart.ErrItemNotFound), errors.Is(err, cart.ErrProductNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, api.Failure(err))
	case errors.Is(err, cart.ErrInsufficientStock):
		c.AbortWithStatusJSON(http.StatusConflict, api.Failure(err))
	case errors.Is(err, cart.ErrInvalidQuantity):
		c.AbortWithStatusJSON(http.StatusBadRequest, api.Failure(err))
	default:
		slog.Error("error updating item quantity", slog.String(logkey.TraceID, traceId),
			slog.String(logkey.ProductID, productID), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, api.FailureMsg("cart.update_failed"))
	}
}

func (h *Handler) RemoveItem(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := claimsOfRequest(c)
	if !ok {
		return
	}
	productID := c.Param("productID")

	err := h.svc.RemoveItem(c.Request.Context(), claims.Subject, productID)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, api.SuccessMsg("cart.item_removed"))
	case errors.Is(err, cart.ErrCartNotFound), errors.Is(err, cart.ErrItemNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, api.Failure(err))
	default:
		slog.Error("error removing cart item", slog.String(logkey.TraceID, traceId),
			slog.String(logkey.ProductID, productID), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, api.FailureMsg("cart.remove_failed"))
	}
}

func (h *Handler) ClearCart(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := claimsOfRequest(c)
	if !ok {
		return
	}

	err := h.svc.ClearCart(c.Request.Context(), claims.Subject)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, api.SuccessMsg("cart.cleared"))
	case errors.Is(err, cart.ErrCartNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, api.Failure(err))
	default:
		slog.Error("error clearing cart", slog.String(logkey.TraceID, traceId),
			slog.String(logkey.UserID, claims.Subject), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, api.FailureMsg("cart.clear_failed"))
	}
}

// Checkout hands the active cart off to the order pipeline.
func (h *Handler) Checkout(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := claimsOfRequest(c)
	if !ok {
		return
	}

	err := h.svc.Checkout(c.Request.Context(), claims.Subject)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, api.SuccessMsg("cart.checked_out"))
	case errors.Is(err, cart.ErrCartNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, api.Failure(err))
	case errors.Is(err, cart.ErrCartEmpty):
		c.AbortWithStatusJSON(http.StatusBadRequest, api.Failure(err))
	case errors.Is(err, cart.ErrPublishFailed):
		// The cart is already CHECKED_OUT; the event will not arrive. Surface
		// the failure so the caller knows the order was not created.
		c.AbortWithStatusJSON(http.StatusBadGateway, api.Failure(err))
	default:
		slog.Error("error checking out cart", slog.String(logkey.TraceID, traceId),
			slog.String(logkey.UserID, claims.Subject), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, api.FailureMsg("cart.checkout_failed"))
	}
}

// ItemsByCartID serves order-service item fetches for any cart id.
func (h *Handler) ItemsByCartID(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	cartID := c.Param("cartID")

	items, err := h.svc.ItemsByCartID(c.Request.Context(), cartID)
	if err != nil {
		slog.Error("error fetching items by cart id", slog.String(logkey.TraceID, traceId),
			slog.String(logkey.CartID, cartID), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, api.FailureMsg("cart.fetch_failed"))
		return
	}

	c.JSON(http.StatusOK, api.Success(items))
}
