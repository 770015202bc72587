package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/marwa-q/Orange-ecommerce-microservices-system/internal/api"
	"github.com/marwa-q/Orange-ecommerce-microservices-system/internal/auth"
	"github.com/marwa-q/Orange-ecommerce-microservices-system/internal/middleware"
	"github.com/marwa-q/Orange-ecommerce-microservices-system/internal/products"
	"github.com/marwa-q/Orange-ecommerce-microservices-system/pkg/ctxmanage"
	"github.com/marwa-q/Orange-ecommerce-microservices-system/pkg/logkey"
)

type Handler struct {
	p *products.Conf
}

func NewHandler(p *products.Conf) *Handler {
	return &Handler{p: p}
}

func API(endpointPrefix string, keys *auth.Keys, p *products.Conf) *gin.Engine {
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
	h := NewHandler(p)

	r.Use(middleware.Logger(), gin.Recovery())
	r.GET("/ping", healthCheck)

	v1 := r.Group(endpointPrefix)
	{
		// Read endpoints serve the cart add flow and event enrichment
		// over the internal network; only the stock mutation needs a token.
		v1.GET("/stock/:productID", h.ProductStockAndPrice)
		v1.GET("/name/:productID", h.ProductName)

		v1.Use(m.Authentication())
		v1.POST("/stock/:productID", h.SetStock)
	}

	return r
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ProductStockAndPrice returns the stock and price snapshot for one product.
func (h *Handler) ProductStockAndPrice(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	productID := c.Param("productID")

	product, err := h.p.ProductByID(c.Request.Context(), productID)
	if err != nil {
		if errors.Is(err, products.ErrProductNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, api.Failure(err))
			return
		}
		slog.Error("error fetching product", slog.String(logkey.TraceID, traceId),
			slog.String(logkey.ProductID, productID), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, api.FailureMsg("product.fetch_failed"))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"product_id": product.ID,
		"name":       product.Name,
		"price":      product.Price,
		"stock":      product.Stock,
	})
}

func (h *Handler) ProductName(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	productID := c.Param("productID")

	name, err := h.p.NameByID(c.Request.Context(), productID)
	if err != nil {
		if errors.Is(err, products.ErrProductNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, api.Failure(err))
			return
		}
		slog.Error("error fetching product name", slog.String(logkey.TraceID, traceId),
			slog.String(logkey.ProductID, productID), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, api.FailureMsg("product.fetch_failed"))
		return
	}

	c.JSON(http.StatusOK, api.Success(name))
}

// SetStock is the ledger's single mutation: increase or decrease by a
// positive quantity, atomically.
func (h *Handler) SetStock(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	productID := c.Param("productID")

	quantity, err := strconv.Atoi(c.Query("quantity"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, api.Failure(products.ErrInvalidQuantity))
		return
	}
	action := c.Query("action")

	err = h.p.SetStock(c.Request.Context(), productID, quantity, action)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, api.SuccessMsg("product.stock.updated"))
	case errors.Is(err, products.ErrProductNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, api.Failure(err))
	case errors.Is(err, products.ErrInsufficientStock):
		c.AbortWithStatusJSON(http.StatusConflict, api.Failure(err))
	case errors.Is(err, products.ErrInvalidQuantity), errors.Is(err, products.ErrInvalidAction):
		c.AbortWithStatusJSON(http.StatusBadRequest, api.Failure(err))
	default:
		slog.Error("error setting stock", slog.String(logkey.TraceID, traceId),
			slog.String(logkey.ProductID, productID), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, api.FailureMsg("product.stock.update_failed"))
	}
}
