package validators

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/livebag-backend/pkg/errors"
)

// Query helpers treat a blank parameter as absent and report a bad one as a
// validation error naming the parameter, so list filters fail with 400
// before they reach the repository.

func queryParam(r *http.Request, key string) string {
	return strings.TrimSpace(r.URL.Query().Get(key))
}

func queryError(key, want string, extra map[string]any) *pkgerrors.Error {
	details := map[string]any{"field": key}
	for k, v := range extra {
		details[k] = v
	}
	return pkgerrors.Newf(pkgerrors.CodeValidation, "query parameter %s must be %s", key, want).WithDetails(details)
}

// ParseQueryInt reads an integer page or limit parameter bounded to
// [lo, hi], falling back to def when it is absent.
func ParseQueryInt(r *http.Request, key string, def, lo, hi int) (int, error) {
	raw := queryParam(r, key)
	if raw == "" {
		return def, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, queryError(key, "numeric", nil)
	}
	if value < lo || value > hi {
		return 0, queryError(key, "within range", map[string]any{"min": lo, "max": hi})
	}
	return value, nil
}

// ParseQueryBool reads an opt-in filter flag; absent means false.
func ParseQueryBool(r *http.Request, key string) (bool, error) {
	raw := queryParam(r, key)
	if raw == "" {
		return false, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, queryError(key, "a boolean", nil)
	}
	return value, nil
}

// ParseQueryUUID reads an optional id filter such as live_event_id. A nil
// result means the filter was not given.
func ParseQueryUUID(r *http.Request, key string) (*uuid.UUID, error) {
	raw := queryParam(r, key)
	if raw == "" {
		return nil, nil
	}
	value, err := uuid.Parse(raw)
	if err != nil {
		return nil, queryError(key, "a uuid", nil)
	}
	return &value, nil
}
