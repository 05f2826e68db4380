package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/onnwee/reelcast/internal/apperr"
	"github.com/onnwee/reelcast/internal/authz"
	"github.com/onnwee/reelcast/internal/middleware"
)

const maxBodyBytes = 1 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeJSON reads a JSON body into dst and runs struct validation.
// Malformed bodies and failed constraints are ValidationErrors.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.Validation("request body is required")
		}
		return apperr.Validation("invalid JSON body: %v", err)
	}
	if err := validate.Struct(dst); err != nil {
		return validationError(err)
	}
	return nil
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return apperr.Validation("%v", err)
	}
	fe := verrs[0]
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return apperr.Validation("%s is required", field)
	case "oneof":
		return apperr.Validation("%s must be one of: %s", field, fe.Param())
	case "gt", "gte", "lt", "lte", "min", "max":
		return apperr.Validation("%s must satisfy %s=%s", field, fe.Tag(), fe.Param())
	}
	return apperr.Validation("%s is invalid (%s)", field, fe.Tag())
}

// callerFrom builds the operation caller from the authenticated request.
func callerFrom(r *http.Request) authz.Caller {
	return authz.Caller{
		UserID:    middleware.GetUserID(r.Context()),
		IPAddress: clientIP(r),
	}
}

var ipKey = middleware.IPKeyFunc()

func clientIP(r *http.Request) string {
	return ipKey(r)
}

// queryInt parses an optional integer query parameter.
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, apperr.Validation("%s must be a non-negative integer", name)
	}
	return n, nil
}

// queryCursor parses an optional pagination cursor.
func queryCursor(r *http.Request) (int64, error) {
	raw := r.URL.Query().Get("cursor")
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		return 0, apperr.Validation("cursor must be a non-negative integer")
	}
	return n, nil
}

func queryBool(r *http.Request, name string) (bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, apperr.Validation("%s must be a boolean", name)
	}
	return b, nil
}
