package purchases

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/top-ti/inventory-go/cmd/api/equipment"
	"github.com/top-ti/inventory-go/internal/errs"
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
	return v
}

// message renders one field error in the same human form the rest of the API
// uses, instead of validator's struct-path default.
func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "oneof":
		return "must be one of " + strings.ReplaceAll(fe.Param(), " ", ", ")
	}
	return "is invalid"
}

// checkCreate validates a create request, including the checks the struct
// tags cannot express.
func checkCreate(req CreateRequest) error {
	fields := map[string]string{}
	if err := validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, fe := range verrs {
			fields[fe.Field()] = message(fe)
		}
	}
	if !req.EstimatedUnitValue.GreaterThan(decimal.Zero) {
		fields["estimated_unit_value"] = "must be greater than zero"
	}
	if req.ExpectedDate != nil && req.ExpectedDate.Before(equipment.Today().Time) {
		fields["expected_date"] = "cannot be in the past"
	}
	if len(fields) > 0 {
		return &errs.ValidationError{Fields: fields}
	}
	return nil
}

// checkUpdated revalidates a merged record after a partial update.
func checkUpdated(p *PurchaseRequest) error {
	fields := map[string]string{}
	if strings.TrimSpace(p.Description) == "" {
		fields["description"] = "is required"
	}
	if strings.TrimSpace(p.Category) == "" {
		fields["category"] = "is required"
	}
	if p.EstimatedQuantity <= 0 {
		fields["estimated_quantity"] = "must be greater than 0"
	}
	if !p.EstimatedUnitValue.GreaterThan(decimal.Zero) {
		fields["estimated_unit_value"] = "must be greater than zero"
	}
	switch p.Urgency {
	case UrgencyLow, UrgencyMedium, UrgencyHigh, UrgencyCritical:
	default:
		fields["urgency"] = "must be one of low, medium, high, critical"
	}
	switch p.Status {
	case StatusPending, StatusApproved, StatusRejected:
	case StatusAcquired:
		fields["status"] = "acquired is set by conversion only"
	default:
		fields["status"] = "must be one of pending, approved, rejected"
	}
	if len(fields) > 0 {
		return &errs.ValidationError{Fields: fields}
	}
	return nil
}
