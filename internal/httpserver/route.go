package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	authmw "github.com/Skotchmaster/owner_shop/internal/middleware/auth"
)

type Deps struct {
	OwnerHandler   *OwnerHTTP
	ProductHandler *ProductHTTP
	Authorizer     *authmw.Authorizer
	OwnerRole      string
	ProductRole    string
	Ready          func(ctx context.Context) error
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error {
		if d.Ready == nil {
			return c.NoContent(http.StatusOK)
		}
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := d.Ready(ctx); err != nil {
			return echo.NewHTTPError(http.StatusServiceUnavailable, "not ready").SetInternal(err)
		}
		return c.NoContent(http.StatusOK)
	})

	e.GET("/uploads/:filename", d.OwnerHandler.Picture)

	api := e.Group("/api/v1")

	owner := api.Group("/owner")
	owner.POST("/login", d.OwnerHandler.Login)
	owner.POST("/register", d.OwnerHandler.Register)
	owner.GET("/profile", d.OwnerHandler.Profile, d.Authorizer.Authorize(d.OwnerRole))

	products := api.Group("/products", d.Authorizer.Authorize(d.ProductRole))
	products.GET("", d.ProductHandler.GetProducts)
	products.GET("/search", d.ProductHandler.SearchProducts)
	products.GET("/:id", d.ProductHandler.GetProduct)
	products.POST("", d.ProductHandler.CreateProduct)
	products.PUT("/:id", d.ProductHandler.UpdateProduct)
	products.DELETE("/:id", d.ProductHandler.DeleteProduct)
}
