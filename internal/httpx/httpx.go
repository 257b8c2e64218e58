package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

var errTrailingData = errors.New("body must contain a single JSON object")

// DecodeJSON decodes exactly one JSON object, rejecting unknown fields and
// trailing data so a malformed client payload fails loudly instead of half
// filling the request struct.
func DecodeJSON(body io.Reader, v interface{}) error {
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errTrailingData
	}
	return nil
}

// ValidationDetails flattens validator errors into a field→tag map for the
// error envelope.
func ValidationDetails(errs validator.ValidationErrors) map[string]string {
	if len(errs) == 0 {
		return nil
	}
	details := make(map[string]string, len(errs))
	for _, err := range errs {
		details[err.Field()] = err.Tag()
	}
	return details
}

func ParseLimitOffset(values url.Values, defaultLimit, maxLimit int64) (int64, int64, error) {
	limit, err := parseQueryInt(values, "limit", defaultLimit, 1)
	if err != nil {
		return 0, 0, err
	}
	offset, err := parseQueryInt(values, "offset", 0, 0)
	if err != nil {
		return 0, 0, err
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return limit, offset, nil
}

func parseQueryInt(values url.Values, key string, fallback, min int64) (int64, error) {
	raw := strings.TrimSpace(values.Get(key))
	if raw == "" {
		return fallback, nil
	}
	parsed, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || parsed < min {
		return 0, errors.New("invalid " + key)
	}
	return parsed, nil
}
