package validators

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/foodbowl/foodbowl-backend/pkg/errors"
	"github.com/foodbowl/foodbowl-backend/pkg/pagination"
)

func TestPageParams(t *testing.T) {
	params, err := PageParams(httptest.NewRequest(http.MethodGet, "/api/order/user", nil))
	require.NoError(t, err)
	assert.Equal(t, pagination.DefaultLimit, params.Limit)
	assert.Empty(t, params.Cursor)

	params, err = PageParams(httptest.NewRequest(http.MethodGet, "/api/order/user?limit=10&cursor=%20abc%20", nil))
	require.NoError(t, err)
	assert.Equal(t, 10, params.Limit)
	assert.Equal(t, "abc", params.Cursor)

	for _, query := range []string{"limit=0", "limit=101", "limit=ten", "cursor=" + strings.Repeat("a", 300)} {
		_, err := PageParams(httptest.NewRequest(http.MethodGet, "/api/order/user?"+query, nil))
		require.Error(t, err, query)
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), query)
	}
}

type target struct {
	Name     string `json:"name" validate:"required"`
	Quantity int    `json:"quantity" validate:"min=1"`
}

func TestDecodeJSONBody(t *testing.T) {
	var dest target
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"dosa","quantity":2}`))
	require.NoError(t, DecodeJSONBody(req, &dest))
	assert.Equal(t, target{Name: "dosa", Quantity: 2}, dest)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"dosa","quantity":2,"price":9}`))
	assert.True(t, pkgerrors.IsCode(DecodeJSONBody(req, &target{}), pkgerrors.CodeValidation))

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"quantity":0}`))
	err := DecodeJSONBody(req, &target{})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	details, ok := typed.Details().(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "is required", details["name"])
	assert.Equal(t, "must be at least 1", details["quantity"])
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "12 MG Road", SanitizeString("  12 MG Road \n", 0))
	assert.Equal(t, "ಬೆಂ", SanitizeString("ಬೆಂಗಳೂರು", 3))
	assert.Equal(t, "short", SanitizeString("short", 10))
}

type cartBody struct {
	Method string     `json:"method" validate:"required,payment_method"`
	Lines  []cartLine `json:"lines" validate:"required,min=1,dive"`
}

type cartLine struct {
	Quantity int `json:"quantity" validate:"required,min=1"`
}

func TestDecodeJSONBodyReportsNestedPaths(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"method":"card","lines":[{"quantity":1},{"quantity":-2}]}`))
	typed := pkgerrors.As(DecodeJSONBody(req, &cartBody{}))
	require.NotNil(t, typed)
	details, ok := typed.Details().(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "must be one of [cash online razorpay]", details["method"])
	assert.Equal(t, "must be at least 1", details["lines[1].quantity"])
	assert.NotContains(t, details, "lines[0].quantity")

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"method":"razorpay","lines":[]}`))
	typed = pkgerrors.As(DecodeJSONBody(req, &cartBody{}))
	require.NotNil(t, typed)
	assert.Equal(t, "must contain at least 1 entries", typed.Details().(map[string]string)["lines"])
}

func TestDecodeJSONBodyRejectsEmptyAndTrailingInput(t *testing.T) {
	err := DecodeJSONBody(httptest.NewRequest(http.MethodPost, "/", strings.NewReader("")), &target{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "request body is required")

	err = DecodeJSONBody(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"a","quantity":1}{"name":"b"}`)), &target{})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
