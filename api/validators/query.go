package validators

import (
	"net/http"
	"strconv"
	"strings"

	pkgerrors "github.com/foodbowl/foodbowl-backend/pkg/errors"
	"github.com/foodbowl/foodbowl-backend/pkg/pagination"
)

// cursors are base64 of a timestamp and uuid; anything much longer is not ours
const maxCursorLength = 256

// PageParams reads ?limit= and ?cursor= for the cursor-paged listings.
// A missing limit means pagination.DefaultLimit; out-of-range values are rejected
// rather than clamped so clients notice.
func PageParams(r *http.Request) (pagination.Params, error) {
	query := r.URL.Query()
	params := pagination.Params{
		Limit:  pagination.DefaultLimit,
		Cursor: strings.TrimSpace(query.Get("cursor")),
	}

	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return pagination.Params{}, pkgerrors.New(pkgerrors.CodeValidation, "limit must be a whole number").
				WithDetails(map[string]any{"field": "limit"})
		}
		if limit < 1 || limit > pagination.MaxLimit {
			return pagination.Params{}, pkgerrors.New(pkgerrors.CodeValidation, "limit out of range").
				WithDetails(map[string]any{"field": "limit", "min": 1, "max": pagination.MaxLimit})
		}
		params.Limit = limit
	}

	if len(params.Cursor) > maxCursorLength {
		return pagination.Params{}, pkgerrors.New(pkgerrors.CodeValidation, "cursor too long").
			WithDetails(map[string]any{"field": "cursor"})
	}
	return params, nil
}
