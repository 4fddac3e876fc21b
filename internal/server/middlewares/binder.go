package middlewares

import (
	"net/http"

	"github.com/focalpics/focal/internal/apierror"
	"github.com/labstack/echo/v4"
)

type binder struct {
	echo.DefaultBinder
	methodsWithBody map[string]bool
}

// NewBinder returns a wrapp of the default binder implementation with extra checks.
func NewBinder() echo.Binder {
	return &binder{
		methodsWithBody: map[string]bool{
			http.MethodPost: true,
			http.MethodPut:  true,
		},
	}
}

// Bind implements the echo.Bind interface.
// Empty bodies are only allowed on methods that do not require one.
func (b *binder) Bind(i interface{}, c echo.Context) error {
	if c.Request().ContentLength == 0 {
		if b.methodsWithBody[c.Request().Method] {
			return apierror.NewWithTagCode(http.StatusBadRequest, "invalid-parameters", "Request body can't be empty.")
		}
		return nil
	}

	if err := b.DefaultBinder.Bind(i, c); err != nil {
		return apierror.NewWithTagCode(http.StatusBadRequest, "invalid-parameters", "Invalid request body.")
	}
	return nil
}
