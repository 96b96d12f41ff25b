package httpserver

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/Skotchmaster/owner_shop/internal/logging"
	authmw "github.com/Skotchmaster/owner_shop/internal/middleware/auth"
	"github.com/Skotchmaster/owner_shop/internal/service"
	"github.com/Skotchmaster/owner_shop/internal/transport"
	"github.com/Skotchmaster/owner_shop/internal/util"
)

type ProductHTTP struct {
	Svc *service.ProductService
}

func (h *ProductHTTP) GetProducts(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With(zap.String("handler", "product.get_products"))

	p, ok := authmw.PrincipalFrom(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	items, err := h.Svc.List(ctx, p.ID)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			l.Warn("get_products_failed", zap.Int("status", 404), zap.String("reason", "no products"))
			return echo.NewHTTPError(http.StatusNotFound, "No products found!")
		}
		l.Error("get_products_failed", zap.Int("status", 500), zap.String("reason", "cannot list products"), zap.Error(err))
		return serverError(err)
	}

	l.Info("get_products_success", zap.Int("count", len(items)))
	return c.JSON(http.StatusOK, items)
}

func (h *ProductHTTP) GetProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With(zap.String("handler", "product.get_product"))

	p, ok := authmw.PrincipalFrom(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	product, err := h.Svc.Get(ctx, p.ID, c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			l.Warn("get_product_failed", zap.Int("status", 404), zap.String("reason", "product not found"), zap.String("product_id", c.Param("id")))
			return echo.NewHTTPError(http.StatusNotFound, "Product not found!")
		}
		l.Error("get_product_failed", zap.Int("status", 500), zap.String("reason", "cannot get product"), zap.Error(err))
		return serverError(err)
	}

	return c.JSON(http.StatusOK, product)
}

func (h *ProductHTTP) CreateProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With(zap.String("handler", "product.create_product"))

	p, ok := authmw.PrincipalFrom(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	var req transport.CreateProductRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("create_product_failed", zap.Int("status", 400), zap.String("reason", "invalid body"), zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	product, err := h.Svc.Create(ctx, p.ID, req)
	if err != nil {
		if errors.Is(err, service.ErrValidation) {
			l.Warn("create_product_failed", zap.Int("status", 400), zap.String("reason", "invalid body"), zap.Error(err))
			return validationError(err)
		}
		if errors.Is(err, service.ErrOwnerNotFound) {
			l.Warn("create_product_failed", zap.Int("status", 404), zap.String("reason", "owner not found"))
			return echo.NewHTTPError(http.StatusNotFound, "Owner not found")
		}
		l.Error("create_product_failed", zap.Int("status", 500), zap.String("reason", "cannot add product to db"), zap.Error(err))
		return serverError(err)
	}

	l.Info("create_product_success", zap.String("product_id", product.ID))
	return c.JSON(http.StatusOK, product)
}

func (h *ProductHTTP) UpdateProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With(zap.String("handler", "product.update_product"))

	p, ok := authmw.PrincipalFrom(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	var req transport.PatchProductRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("update_product_failed", zap.Int("status", 400), zap.String("reason", "invalid body"), zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	product, err := h.Svc.Update(ctx, p.ID, c.Param("id"), req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			l.Warn("update_product_failed", zap.Int("status", 400), zap.String("reason", "invalid body"), zap.Error(err))
			return validationError(err)
		case errors.Is(err, service.ErrNotFound):
			l.Warn("update_product_failed", zap.Int("status", 404), zap.String("reason", "product not found"))
			return echo.NewHTTPError(http.StatusNotFound, "Product not found")
		case errors.Is(err, service.ErrForbidden):
			l.Warn("update_product_forbidden", zap.Int("status", 403), zap.String("reason", "not the owner"))
			return echo.NewHTTPError(http.StatusForbidden, "You are not authorized to update this product")
		default:
			l.Error("update_product_failed", zap.Int("status", 500), zap.String("reason", "cannot update product"), zap.Error(err))
			return serverError(err)
		}
	}

	l.Info("update_product_success", zap.String("product_id", product.ID))
	return c.JSON(http.StatusCreated, product)
}

func (h *ProductHTTP) DeleteProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With(zap.String("handler", "product.delete_product"))

	p, ok := authmw.PrincipalFrom(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	if err := h.Svc.Delete(ctx, p.ID, c.Param("id")); err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			l.Warn("delete_product_failed", zap.Int("status", 404), zap.String("reason", "product not found"))
			return echo.NewHTTPError(http.StatusNotFound, "Product not found")
		case errors.Is(err, service.ErrForbidden):
			l.Warn("delete_product_forbidden", zap.Int("status", 403), zap.String("reason", "not the owner"))
			return echo.NewHTTPError(http.StatusForbidden, "You are not authorized to delete this product")
		default:
			l.Error("delete_product_failed", zap.Int("status", 500), zap.String("reason", "cannot delete product from db"), zap.Error(err))
			return serverError(err)
		}
	}

	l.Info("delete_product_success")
	return c.JSON(http.StatusOK, transport.MessageResponse{Message: "Product deleted successfully"})
}

func (h *ProductHTTP) SearchProducts(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With(zap.String("handler", "product.search_products"))

	p, ok := authmw.PrincipalFrom(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	page := util.ParseIntDefault(c.QueryParam("page"), 1)
	size := util.ParseIntDefault(c.QueryParam("size"), util.DefaultPageSize)

	total, items, err := h.Svc.Search(ctx, p.ID, c.QueryParam("q"), page, size)
	if err != nil {
		if errors.Is(err, service.ErrValidation) {
			l.Warn("search_products_failed", zap.Int("status", 400), zap.String("reason", "empty query"))
			return validationError(err)
		}
		l.Error("search_products_failed", zap.Int("status", 500), zap.String("reason", "search failed"), zap.Error(err))
		return serverError(err)
	}

	return c.JSON(http.StatusOK, transport.SearchResponse{Total: total, Products: items})
}
