package booking

import (
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// CreateRequest is the raw inbound booking payload, before any state is
// touched. Validation here is purely structural; existence, availability,
// and pastness are the orchestrator's business.
type CreateRequest struct {
	ProviderID string `json:"provider_id" validate:"required,uuid"`
	Date       string `json:"date" validate:"required"`
}

// ValidatedRequest is a CreateRequest that passed structural validation.
type ValidatedRequest struct {
	ProviderID string
	Date       time.Time
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report json field names, not Go struct field names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ParseCreateRequest validates req and returns either a ValidatedRequest or
// an invalid_request rejection enumerating the failing fields.
func ParseCreateRequest(req CreateRequest) (ValidatedRequest, error) {
	var fields []string
	if err := validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if !asValidationErrors(err, &verrs) {
			return ValidatedRequest{}, reject(CodeInvalidRequest, "validation failed")
		}
		for _, fe := range verrs {
			fields = append(fields, fe.Field())
		}
	}

	var date time.Time
	if req.Date != "" {
		parsed, err := time.Parse(time.RFC3339, req.Date)
		if err != nil {
			fields = append(fields, "date")
		} else {
			date = parsed
		}
	}

	if len(fields) > 0 {
		return ValidatedRequest{}, &Error{
			Code:    CodeInvalidRequest,
			Message: "validation failed",
			Fields:  dedupe(fields),
		}
	}
	return ValidatedRequest{ProviderID: req.ProviderID, Date: date}, nil
}

func asValidationErrors(err error, target *validator.ValidationErrors) bool {
	verrs, ok := err.(validator.ValidationErrors)
	if ok {
		*target = verrs
	}
	return ok
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
