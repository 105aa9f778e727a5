package api

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/casecompass/case-compass/internal/database"
	"github.com/casecompass/case-compass/internal/status"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	// Decimals validate as their float value, so gt/gte/lt tags apply.
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
	return v
}

// requestError is a client mistake whose message is safe to return.
type requestError struct {
	status  int
	message string
}

func (e *requestError) Error() string { return e.message }

func badRequest(format string, args ...interface{}) error {
	return &requestError{status: http.StatusBadRequest, message: fmt.Sprintf(format, args...)}
}

// validationMessage renders validator errors with JSON field names.
func validationMessage(errs validator.ValidationErrors) string {
	parts := make([]string, 0, len(errs))
	for _, fe := range errs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s must satisfy %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		} else {
			parts = append(parts, fmt.Sprintf("%s must satisfy %s", fe.Field(), fe.Tag()))
		}
	}
	return "Invalid fields: " + strings.Join(parts, "; ")
}

// respondError maps err onto an HTTP status. Driver messages are logged and
// only returned when EXPOSE_DB_ERRORS is set.
func (h *Handlers) respondError(c *gin.Context, action string, err error) {
	var reqErr *requestError
	var valErrs validator.ValidationErrors

	switch {
	case errors.As(err, &reqErr):
		fail(c, reqErr.status, reqErr.message)
		return
	case errors.As(err, &valErrs):
		fail(c, http.StatusBadRequest, validationMessage(valErrs))
		return
	case errors.Is(err, gorm.ErrRecordNotFound):
		fail(c, http.StatusNotFound, "Resource not found")
		return
	case errors.Is(err, status.ErrInvalidTransition):
		fail(c, http.StatusConflict, err.Error())
		return
	case errors.Is(err, status.ErrUnknownStatus), errors.Is(err, database.ErrInvalidReference):
		fail(c, http.StatusBadRequest, err.Error())
		return
	case database.IsDuplicate(err):
		fail(c, http.StatusConflict, "A row with the same unique value already exists")
		return
	}

	h.logger.Error(action, "error", err, "path", c.Request.URL.Path)

	code, message := http.StatusInternalServerError, action
	switch {
	case errors.Is(err, database.ErrConnectionFailed):
		code = http.StatusServiceUnavailable
		message = "Database connection failed. Please check the database configuration."
	case database.IsMissingTable(err):
		message = "A required table does not exist. Please check the database schema setup."
	}

	body := gin.H{"success": false, "message": message}
	if h.cfg.ExposeDBErrors {
		body["error"] = err.Error()
	}
	c.JSON(code, body)
}

func fail(c *gin.Context, code int, message string) {
	c.JSON(code, gin.H{"success": false, "message": message})
}
