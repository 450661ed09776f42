package liquidation

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"regexp"
	"strings"
	"sync"

	validator "github.com/go-playground/validator/v10"
)

// ErrInvalidItem is wrapped by every item validation failure.
var ErrInvalidItem = errors.New("liquidation: invalid item")

// ValidationError reports the first field that failed validation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// Unwrap lets callers match on ErrInvalidItem.
func (e *ValidationError) Unwrap() error { return ErrInvalidItem }

var (
	validateOnce sync.Once
	validate     *validator.Validate
	awbPattern   = regexp.MustCompile(`^\d{3}-\d{4}-\d{4}$`)
)

// Validator returns the shared struct validator with the domain tags registered.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		_ = v.RegisterValidation("basis", func(fl validator.FieldLevel) bool {
			return Basis(fl.Field().String()).Valid()
		})
		validate = v
	})
	return validate
}

// ValidateItem checks an item before it may enter a collection.
func ValidateItem(item Item) error {
	if item == nil {
		return &ValidationError{Message: "item is required"}
	}
	if err := Validator().Struct(item); err != nil {
		return translate(err)
	}
	if cv, ok := item.(CompraVentaItem); ok {
		return validateSides(cv)
	}
	return nil
}

func validateSides(item CompraVentaItem) error {
	switch item.RubroType {
	case RubroCompra:
		if item.ValorCompra <= 0 {
			return &ValidationError{Field: "valorCompra", Message: "purchase value must be greater than 0"}
		}
	case RubroVenta:
		if item.ValorVenta <= 0 {
			return &ValidationError{Field: "valorVenta", Message: "sale value must be greater than 0"}
		}
	case RubroBoth:
		if item.ValorCompra <= 0 && item.ValorVenta <= 0 {
			return &ValidationError{Field: "valorCompra", Message: "at least one of purchase or sale value must be greater than 0"}
		}
	}
	return nil
}

func translate(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return fmt.Errorf("%w: %v", ErrInvalidItem, err)
	}
	fe := fieldErrs[0]
	var msg string
	switch fe.Tag() {
	case "required":
		msg = "is required"
	case "basis":
		msg = fmt.Sprintf("unknown calculation basis %q", fe.Value())
	case "oneof":
		msg = "must be one of " + fe.Param()
	case "gt":
		msg = "must be greater than " + fe.Param()
	case "gte":
		msg = "must not be negative"
	default:
		msg = "failed " + fe.Tag() + " check"
	}
	return &ValidationError{Field: fe.Field(), Message: msg}
}

// ValidateAWB checks the NNN-NNNN-NNNN air waybill format.
func ValidateAWB(value string) error {
	if !awbPattern.MatchString(strings.TrimSpace(value)) {
		return &ValidationError{Field: string(KeyImportadorAWB), Message: "invalid AWB format (expected 123-4567-8901)"}
	}
	return nil
}

// ValidateWeight rejects non-positive or implausibly large weights.
func ValidateWeight(field Key, value float64) error {
	if math.IsNaN(value) || value <= 0 {
		return &ValidationError{Field: string(field), Message: "weight must be greater than 0"}
	}
	if value > 100000 {
		return &ValidationError{Field: string(field), Message: "weight looks too high, check the value"}
	}
	return nil
}

// ValidatePieces requires a positive whole piece count.
func ValidatePieces(value float64) error {
	if value <= 0 || value != math.Trunc(value) {
		return &ValidationError{Field: string(KeyPiezas), Message: "piece count must be a positive integer"}
	}
	if value > 10000 {
		return &ValidationError{Field: string(KeyPiezas), Message: "piece count looks too high"}
	}
	return nil
}

// ValidateField applies the field-specific checks for a general-info update.
// Fields without a dedicated rule are accepted as-is.
func ValidateField(key Key, value Scalar) error {
	switch key {
	case KeyImportadorAWB:
		return ValidateAWB(value.String())
	case KeyGrossWeight, KeyPesoCobrable:
		return ValidateWeight(key, numeric(value))
	case KeyPiezas:
		return ValidatePieces(numeric(value))
	default:
		return nil
	}
}

func numeric(value Scalar) float64 {
	if value.IsNumber() {
		return value.Float()
	}
	if strings.TrimSpace(value.String()) == "" {
		return math.NaN()
	}
	if v := value.Float(); v != 0 {
		return v
	}
	return math.NaN()
}
