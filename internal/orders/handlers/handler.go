package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/marwa-q/Orange-ecommerce-microservices-system/internal/api"
	"github.com/marwa-q/Orange-ecommerce-microservices-system/internal/auth"
	"github.com/marwa-q/Orange-ecommerce-microservices-system/internal/middleware"
	"github.com/marwa-q/Orange-ecommerce-microservices-system/internal/orders"
	"github.com/marwa-q/Orange-ecommerce-microservices-system/pkg/ctxmanage"
	"github.com/marwa-q/Orange-ecommerce-microservices-system/pkg/logkey"
)

type Handler struct {
	svc      *orders.Service
	validate *validator.Validate
}

func NewHandler(svc *orders.Service) *Handler {
	return &Handler{
		svc:      svc,
		validate: validator.New(),
	}
}

func API(endpointPrefix string, keys *auth.Keys, svc *orders.Service) *gin.Engine {
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
		v1.Use(m.Authentication())

		v1.GET("/list", m.Authorize(h.MyOrders, auth.RoleUser))
		v1.GET("/view/:orderID", m.Authorize(h.MyOrder, auth.RoleUser))
		v1.POST("/submit/:orderID", m.Authorize(h.Submit, auth.RoleUser))
		v1.POST("/cancel/:orderID", m.Authorize(h.Cancel, auth.RoleUser))

		admin := v1.Group("/admin")
		{
			admin.GET("/all", m.Authorize(h.AllOrders, auth.RoleAdmin))
			admin.GET("/submitted", m.Authorize(h.SubmittedOrders, auth.RoleAdmin))
			admin.PUT("/under-review/:orderID", m.Authorize(h.MarkUnderReview, auth.RoleAdmin))
			admin.PUT("/ship/:orderID", m.Authorize(h.MarkShipped, auth.RoleAdmin))
			admin.PUT("/deliver/:orderID", m.Authorize(h.MarkDelivered, auth.RoleAdmin))
		}
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

// pageOfRequest reads ?page and ?size; the service clamps whatever comes in,
// so parse failures just fall back to zero values.
func pageOfRequest(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "0"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", "10"))
	return page, size
}

func (h *Handler) MyOrders(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := claimsOfRequest(c)
	if !ok {
		return
	}
	page, size := pageOfRequest(c)

	result, err := h.svc.UserOrders(c.Request.Context(), claims.Subject, page, size)
	if err != nil {
		slog.Error("error listing user orders", slog.String(logkey.TraceID, traceId),
			slog.String(logkey.UserID, claims.Subject), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, api.FailureMsg("order.list_failed"))
		return
	}

	c.JSON(http.StatusOK, api.Success(result))
}

func (h *Handler) MyOrder(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := claimsOfRequest(c)
	if !ok {
		return
	}
	orderID := c.Param("orderID")

	order, err := h.svc.OrderForUser(c.Request.Context(), orderID, claims.Subject)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, api.Success(order))
	case errors.Is(err, orders.ErrOrderNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, api.Failure(err))
	default:
		slog.Error("error fetching order", slog.String(logkey.TraceID, traceId),
			slog.String(logkey.OrderID, orderID), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, api.FailureMsg("order.fetch_failed"))
	}
}

type submitOrderRequest struct {
	PaymentMethod string `json:"payment_method" validate:"required"`
	Address       string `json:"address" validate:"required"`
}

// Submit runs the stock validation and reservation pipeline for a pending
// order.
func (h *Handler) Submit(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := claimsOfRequest(c)
	if !ok {
		return
	}
	orderID := c.Param("orderID")

	var req submitOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.Error("invalid request body", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusBadRequest, api.FailureMsg("order.invalid_request"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		slog.Error("request validation failed", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusBadRequest, api.FailureMsg("order.invalid_request"))
		return
	}

	order, err := h.svc.Submit(c.Request.Context(), orderID, claims.Subject, req.PaymentMethod, req.Address)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, api.Success(order))
	case errors.Is(err, orders.ErrOrderNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, api.Failure(err))
	case errors.Is(err, orders.ErrCannotSubmitStatus), errors.Is(err, orders.ErrInsufficientStock):
		c.AbortWithStatusJSON(http.StatusConflict, api.Failure(err))
	case errors.Is(err, orders.ErrNoItems):
		c.AbortWithStatusJSON(http.StatusBadRequest, api.Failure(err))
	default:
		slog.Error("error submitting order", slog.String(logkey.TraceID, traceId),
			slog.String(logkey.OrderID, orderID), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, api.FailureMsg("order.submit_failed"))
	}
}

func (h *Handler) Cancel(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := claimsOfRequest(c)
	if !ok {
		return
	}
	orderID := c.Param("orderID")

	order, err := h.svc.Cancel(c.Request.Context(), orderID, claims.Subject)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, api.Success(order))
	case errors.Is(err, orders.ErrOrderNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, api.Failure(err))
	case errors.Is(err, orders.ErrCannotCancelShipped), errors.Is(err, orders.ErrAlreadyCancelled), errors.Is(err, orders.ErrConflict):
		c.AbortWithStatusJSON(http.StatusConflict, api.Failure(err))
	default:
		slog.Error("error cancelling order", slog.String(logkey.TraceID, traceId),
			slog.String(logkey.OrderID, orderID), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, api.FailureMsg("order.cancel_failed"))
	}
}

func (h *Handler) AllOrders(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	page, size := pageOfRequest(c)

	result, err := h.svc.AllOrders(c.Request.Context(), page, size)
	if err != nil {
		slog.Error("error listing all orders", slog.String(logkey.TraceID, traceId),
			slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, api.FailureMsg("order.list_failed"))
		return
	}

	c.JSON(http.StatusOK, api.Success(result))
}

func (h *Handler) SubmittedOrders(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	page, size := pageOfRequest(c)

	result, err := h.svc.SubmittedOrders(c.Request.Context(), page, size)
	if err != nil {
		slog.Error("error listing submitted orders", slog.String(logkey.TraceID, traceId),
			slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, api.FailureMsg("order.list_failed"))
		return
	}

	c.JSON(http.StatusOK, api.Success(result))
}

func (h *Handler) MarkUnderReview(c *gin.Context) {
	h.adminTransition(c, h.svc.MarkUnderReview)
}

func (h *Handler) MarkShipped(c *gin.Context) {
	h.adminTransition(c, h.svc.MarkShipped)
}

func (h *Handler) MarkDelivered(c *gin.Context) {
	h.adminTransition(c, h.svc.MarkDelivered)
}

func (h *Handler) adminTransition(c *gin.Context, transition func(ctx context.Context, orderID string) (orders.Order, error)) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	orderID := c.Param("orderID")

	order, err := transition(c.Request.Context(), orderID)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, api.Success(order))
	case errors.Is(err, orders.ErrOrderNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, api.Failure(err))
	case errors.Is(err, orders.ErrInvalidTransition):
		c.AbortWithStatusJSON(http.StatusConflict, api.Failure(err))
	default:
		slog.Error("error transitioning order status", slog.String(logkey.TraceID, traceId),
			slog.String(logkey.OrderID, orderID), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, api.FailureMsg("order.transition_failed"))
	}
}
