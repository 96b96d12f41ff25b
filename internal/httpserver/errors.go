package httpserver

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/Skotchmaster/owner_shop/internal/logging"
	"github.com/Skotchmaster/owner_shop/internal/service"
)

const serverErrorMessage = "Server error"

// ErrorHandler renders every error as {"message": ...}. Anything that is not
// an *echo.HTTPError becomes a 500 with a generic message.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	var msg any = serverErrorMessage

	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		msg = he.Message
		if code >= http.StatusInternalServerError && he.Internal != nil {
			logging.FromContext(c.Request().Context()).Error("internal_error", zap.Error(he.Internal))
		}
	} else {
		logging.FromContext(c.Request().Context()).Error("unhandled_error", zap.Error(err))
	}

	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(code)
		return
	}
	_ = c.JSON(code, map[string]any{"message": msg})
}

func validationError(err error) *echo.HTTPError {
	var ve *service.ValidationError
	if errors.As(err, &ve) {
		return echo.NewHTTPError(http.StatusBadRequest, ve.Messages)
	}
	return echo.NewHTTPError(http.StatusBadRequest, err.Error())
}

func serverError(err error) *echo.HTTPError {
	return echo.NewHTTPError(http.StatusInternalServerError, serverErrorMessage).SetInternal(err)
}
