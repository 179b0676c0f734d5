package middleware

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	apierrors "meterfill/internal/errors"
	"meterfill/pkg/contracts/domain"
)

// ValidationMiddleware wraps go-playground/validator with the custom
// rules used by the gap-fill API.
type ValidationMiddleware struct {
	validator *validator.Validate
	logger    *slog.Logger
}

// NewValidationMiddleware creates a validation middleware instance
func NewValidationMiddleware(logger *slog.Logger) *ValidationMiddleware {
	v := validator.New()

	// Report field names from json tags so error messages match the
	// request payloads callers actually send.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	v.RegisterValidation("yearmonth", validateYearMonth)
	v.RegisterValidation("siteid", validateSiteID)

	return &ValidationMiddleware{
		validator: v,
		logger:    logger,
	}
}

// validateYearMonth accepts any month string ParseMonth understands.
func validateYearMonth(fl validator.FieldLevel) bool {
	_, err := domain.ParseMonth(fl.Field().String())
	return err == nil
}

// validateSiteID rejects empty or whitespace-only site identifiers.
func validateSiteID(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

// ValidateStruct validates a struct and returns an APIError listing
// every failed field, or nil when the struct is valid.
func (vm *ValidationMiddleware) ValidateStruct(s interface{}) *apierrors.APIError {
	err := vm.validator.Struct(s)
	if err == nil {
		return nil
	}

	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return apierrors.InvalidRequestWithError(err)
	}

	fields := make([]apierrors.ValidationError, 0, len(validationErrors))
	for _, fieldError := range validationErrors {
		fields = append(fields, apierrors.ValidationError{
			Field:   fieldError.Field(),
			Message: formatValidationError(fieldError),
		})
	}
	return apierrors.ValidationFailedWithFields(fields)
}

// DecodeAndValidate decodes a JSON request body into dst and validates
// it. The body is restored so downstream handlers can re-read it.
func (vm *ValidationMiddleware) DecodeAndValidate(r *http.Request, dst interface{}) *apierrors.APIError {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		return apierrors.InvalidRequestWithError(err)
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	if len(bytes.TrimSpace(body)) == 0 {
		return apierrors.New(http.StatusBadRequest, "INVALID_REQUEST", "Request body is empty")
	}

	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return apierrors.InvalidRequestWithError(err)
	}

	return vm.ValidateStruct(dst)
}

// maxRequestBody caps request bodies at 1 MiB.
const maxRequestBody = 1 << 20

// ContentTypeValidator ensures JSON requests declare a JSON content type
func ContentTypeValidator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			contentType := r.Header.Get("Content-Type")
			if contentType != "" && !strings.HasPrefix(contentType, "application/json") {
				w.Header().Set("Content-Type", "application/problem+json")
				w.WriteHeader(http.StatusUnsupportedMediaType)
				w.Write([]byte(`{"type":"/errors/validation","title":"Unsupported Media Type","status":415,"detail":"Content-Type must be application/json"}`))
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// formatValidationError produces a human-readable message for a field error
func formatValidationError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required"
	case "yearmonth":
		return "Must be a year-month such as 2025-04"
	case "siteid":
		return "Must be a non-empty site identifier"
	case "min":
		return fmt.Sprintf("Must have at least %s item(s)", fe.Param())
	case "max":
		return fmt.Sprintf("Must have at most %s item(s)", fe.Param())
	case "gt":
		return fmt.Sprintf("Must be greater than %s", fe.Param())
	case "dive":
		return "Contains an invalid element"
	default:
		return fmt.Sprintf("Failed validation rule: %s", fe.Tag())
	}
}
