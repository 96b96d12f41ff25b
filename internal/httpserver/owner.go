package httpserver

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/Skotchmaster/owner_shop/internal/hash"
	"github.com/Skotchmaster/owner_shop/internal/logging"
	authmw "github.com/Skotchmaster/owner_shop/internal/middleware/auth"
	"github.com/Skotchmaster/owner_shop/internal/service"
	"github.com/Skotchmaster/owner_shop/internal/storage"
	"github.com/Skotchmaster/owner_shop/internal/tokens"
	"github.com/Skotchmaster/owner_shop/internal/transport"
)

type OwnerHTTP struct {
	Svc *service.OwnerService
}

func isCredentialError(err error) bool {
	var (
		he *hash.HashError
		ce *hash.ComparisonError
		te *tokens.TokenError
	)
	return errors.As(err, &he) || errors.As(err, &ce) || errors.As(err, &te)
}

func (h *OwnerHTTP) Register(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With(zap.String("handler", "owner.register"))

	req := transport.RegisterRequest{
		Name:     c.FormValue("name"),
		Email:    c.FormValue("email"),
		Password: c.FormValue("password"),
		Address:  c.FormValue("address"),
	}

	var pic *service.Upload
	if fh, err := c.FormFile("picture"); err == nil {
		src, err := fh.Open()
		if err != nil {
			l.Warn("register_failed", zap.Int("status", 400), zap.String("reason", "cannot read picture"), zap.Error(err))
			return echo.NewHTTPError(http.StatusBadRequest, "cannot read picture")
		}
		defer src.Close()
		pic = &service.Upload{Filename: fh.Filename, Size: fh.Size, Body: src}
	}

	token, owner, err := h.Svc.Register(ctx, req, pic)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			l.Warn("register_failed", zap.Int("status", 400), zap.String("reason", "invalid body"), zap.Error(err))
			return validationError(err)
		case errors.Is(err, service.ErrEmailTaken):
			l.Warn("register_failed", zap.Int("status", 400), zap.String("reason", "owner already exists"))
			return echo.NewHTTPError(http.StatusBadRequest, "Owner already exists!")
		case isCredentialError(err):
			l.Warn("register_failed", zap.Int("status", 401), zap.String("reason", "credential failure"), zap.Error(err))
			return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
		default:
			l.Error("register_failed", zap.Int("status", 500), zap.String("reason", "cannot register owner"), zap.Error(err))
			return serverError(err)
		}
	}

	l.Info("register_success", zap.String("owner_id", owner.ID))
	return c.JSON(http.StatusCreated, transport.TokenResponse{Message: "Registration successful", Token: token})
}

func (h *OwnerHTTP) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With(zap.String("handler", "owner.login"))

	var req transport.LoginRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("login_failed", zap.Int("status", 400), zap.String("reason", "invalid body"), zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	token, err := h.Svc.Login(ctx, req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			l.Warn("login_failed", zap.Int("status", 400), zap.String("reason", "invalid body"), zap.Error(err))
			return validationError(err)
		case errors.Is(err, service.ErrNotFound):
			l.Warn("login_failed", zap.Int("status", 404), zap.String("reason", "owner not found"))
			return echo.NewHTTPError(http.StatusNotFound, "Owner not found")
		case errors.Is(err, service.ErrInvalidCredentials):
			l.Warn("login_failed", zap.Int("status", 401), zap.String("reason", "password mismatch"))
			return echo.NewHTTPError(http.StatusUnauthorized, "Incorrect email or password")
		case isCredentialError(err):
			l.Warn("login_failed", zap.Int("status", 401), zap.String("reason", "credential failure"), zap.Error(err))
			return echo.NewHTTPError(http.StatusUnauthorized, "Incorrect email or password")
		default:
			l.Error("login_failed", zap.Int("status", 500), zap.String("reason", "cannot log in"), zap.Error(err))
			return serverError(err)
		}
	}

	l.Info("login_success")
	return c.JSON(http.StatusOK, transport.TokenResponse{Message: "Login Successful", Token: token})
}

func (h *OwnerHTTP) Profile(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With(zap.String("handler", "owner.profile"))

	p, ok := authmw.PrincipalFrom(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	owner, err := h.Svc.Profile(ctx, p.ID)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			l.Warn("profile_failed", zap.Int("status", 404), zap.String("reason", "owner doesn't exist"))
			return echo.NewHTTPError(http.StatusNotFound, "Owner doesn't exist!")
		}
		l.Error("profile_failed", zap.Int("status", 500), zap.String("reason", "cannot load owner"), zap.Error(err))
		return serverError(err)
	}

	return c.JSON(http.StatusOK, transport.ProfileResponse{
		Name:         owner.Name,
		Email:        owner.Email,
		ProfilePhoto: fmt.Sprintf("%s://%s/uploads/%s", c.Scheme(), c.Request().Host, owner.Picture),
	})
}

func (h *OwnerHTTP) Picture(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With(zap.String("handler", "owner.picture"))

	name := c.Param("filename")
	rc, err := h.Svc.OpenPicture(ctx, name)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			l.Warn("picture_failed", zap.Int("status", 404), zap.String("reason", "no such picture"), zap.String("picture", name))
			return echo.NewHTTPError(http.StatusNotFound, "picture not found")
		}
		l.Error("picture_failed", zap.Int("status", 500), zap.String("reason", "cannot open picture"), zap.Error(err))
		return serverError(err)
	}
	defer rc.Close()

	return c.Stream(http.StatusOK, storage.ContentType(name), rc)
}
