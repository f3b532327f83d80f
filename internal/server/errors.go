package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/feeledger/internal/lock"
	paymentdomain "github.com/smallbiznis/feeledger/internal/payment/domain"
	ramedomain "github.com/smallbiznis/feeledger/internal/rame/domain"
	"github.com/smallbiznis/feeledger/internal/ratelimit"
	schooldomain "github.com/smallbiznis/feeledger/internal/school/domain"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
	Reasons []string          `json:"reasons,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

// classifyErrorForLog feeds the request logger with the same type the client sees.
func classifyErrorForLog(err error) (string, string) {
	status, payload := mapError(err)
	return payload.Type, http.StatusText(status)
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	var fieldErr *paymentdomain.ValidationError
	if errors.As(err, &fieldErr) {
		out := make([]ValidationError, 0, len(fieldErr.Fields))
		for _, f := range fieldErr.Fields {
			out = append(out, ValidationError{Field: f.Field, Code: "invalid_" + f.Field, Message: f.Message})
		}
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  out,
		}
	}

	var balanceErr *paymentdomain.InsufficientRemainingBalanceError
	if errors.As(err, &balanceErr) {
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    "insufficient_remaining_balance",
			Message: "amount exceeds what is still owed",
			Details: map[string]string{
				"amount":    balanceErr.Amount.StringFixed(2),
				"remaining": balanceErr.Remaining.StringFixed(2),
			},
		}
	}

	var ineligible *paymentdomain.DiscountIneligibleError
	if errors.As(err, &ineligible) {
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    "discount_ineligible",
			Message: "global discount not applicable",
			Reasons: ineligible.Reasons,
		}
	}

	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, ramedomain.ErrInvalidMarkedBy):
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(err),
					Code:    err.Error(),
					Message: "invalid value",
				},
			},
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, paymentdomain.ErrInsufficientRemainingBalance):
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    "insufficient_remaining_balance",
			Message: "amount exceeds what is still owed",
		}
	case errors.Is(err, paymentdomain.ErrScholarshipDiscountConflict):
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    "scholarship_discount_conflict",
			Message: "a scholarship student cannot take the global discount",
		}
	case errors.Is(err, ramedomain.ErrAlreadyMarked),
		errors.Is(err, ramedomain.ErrInvalidTransition):
		return http.StatusConflict, errorPayload{
			Type:    "rame_already_marked",
			Message: "rame already marked as brought",
		}
	case errors.Is(err, paymentdomain.ErrDuplicateReceiptNumber):
		return http.StatusConflict, errorPayload{
			Type:    "duplicate_receipt_number",
			Message: "could not issue a unique receipt number, retry",
		}
	case errors.Is(err, lock.ErrLockTimeout):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "ledger_busy",
			Message: "another payment for this student is in progress, retry",
		}
	case errors.Is(err, ratelimit.ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many payment writes, retry later",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, schooldomain.ErrStudentNotFound),
		errors.Is(err, schooldomain.ErrSchoolYearNotFound),
		errors.Is(err, schooldomain.ErrNoCurrentYear),
		errors.Is(err, paymentdomain.ErrPaymentNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func validationErrorField(err error) string {
	if errors.Is(err, ramedomain.ErrInvalidMarkedBy) {
		return "marked_by"
	}
	return "request"
}
