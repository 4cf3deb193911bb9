package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/mediatheque/backend/internal/apierror"
)

// decodeJSON reads the request body into dst; a malformed body yields
// the missing-field envelope for the whole payload.
func decodeJSON(r *http.Request, dst any) *apierror.Error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return &apierror.Error{
			Code:    apierror.CodeMissingField,
			Message: "invalid request body",
			Status:  http.StatusBadRequest,
		}
	}
	return nil
}

// optString is a PATCH field that distinguishes absent from present.
type optString struct {
	Value string
	Set   bool
}

func (o *optString) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}
	return json.Unmarshal(data, &o.Value)
}

// optInt is a PATCH field accepting a JSON number or a numeric string,
// mirroring the coercion the UI relies on. Absent, present-but-null,
// valid, and invalid are all distinguished; an invalid value is
// reported by the handler as a conflict rather than a decode failure.
type optInt struct {
	Value   *int
	Set     bool
	Invalid bool
}

func (o *optInt) UnmarshalJSON(data []byte) error {
	o.Set = true
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) || bytes.Equal(data, []byte(`""`)) {
		return nil
	}

	raw := string(data)
	if strings.HasPrefix(raw, `"`) {
		if err := json.Unmarshal(data, &raw); err != nil {
			o.Invalid = true
			return nil
		}
	}

	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		o.Invalid = true
		return nil
	}
	o.Value = &value
	return nil
}

// coerceError is the envelope for a failed integer coercion on a write
// path.
func coerceError(field, resource string) *apierror.Error {
	return apierror.Conflict(field+" must be an integer", resource)
}

// intList collapses a list of coercible ids, reporting the first
// invalid element.
func intList(values []optInt, field, resource string) ([]int, *apierror.Error) {
	ids := make([]int, 0, len(values))
	for _, v := range values {
		if v.Invalid {
			return nil, coerceError(field, resource)
		}
		if v.Value == nil {
			continue
		}
		ids = append(ids, *v.Value)
	}
	return ids, nil
}
