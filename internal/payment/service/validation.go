package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	paymentdomain "github.com/smallbiznis/feeledger/internal/payment/domain"
	"github.com/smallbiznis/feeledger/internal/pricing"
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func (s *Service) validateCreate(req paymentdomain.CreateRequest) error {
	verr := &paymentdomain.ValidationError{}

	if err := s.validate.Struct(req); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return err
		}
		for _, fe := range fieldErrs {
			verr.Add(fe.Field(), describe(fe))
		}
	}

	if req.IsRamePhysical {
		if !req.Amount.IsZero() {
			verr.Add("amount", "must be 0 for a physical RAME deposit")
		}
		if req.ApplyGlobalDiscount {
			verr.Add("apply_global_discount", "not allowed for a physical RAME deposit")
		}
	} else {
		if !req.Amount.IsPositive() {
			verr.Add("amount", "must be greater than 0")
		} else if !req.Amount.Equal(req.Amount.Round(2)) {
			verr.Add("amount", "must have at most 2 decimal places")
		}
	}

	if req.VersementDate != nil && !req.PaymentDate.IsZero() &&
		!pricing.SameDayOrBefore(req.PaymentDate, *req.VersementDate) {
		verr.Add("versement_date", "must not be before payment_date")
	}
	return verr.OrNil()
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
