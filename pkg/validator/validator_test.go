package validator

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type loadRequest struct {
	Path string `json:"path" validate:"omitempty,max=10"`
}

type searchParams struct {
	Query string `query:"q" validate:"required"`
	Limit int    `query:"limit" validate:"gte=1,lte=100"`
}

func TestValidate_ReportsTagNames(t *testing.T) {
	err := Validate(searchParams{Limit: 500})

	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Equal(t, map[string]string{
		"q":     "is required",
		"limit": "must be less than or equal to 100",
	}, valErr.Fields())
	assert.Contains(t, valErr.Error(), "field 'q' is required")
}

func TestValidate_Passes(t *testing.T) {
	assert.NoError(t, Validate(searchParams{Query: "shoe", Limit: 20}))
}

func TestDecodeAndValidate(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    string
		wantErr error
	}{
		{"empty body", "", "", nil},
		{"path", `{"path":"a.csv"}`, "a.csv", nil},
		{"malformed", `{"path":`, "", ErrMalformedBody},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/index/load", strings.NewReader(tt.body))
			var dst loadRequest
			err := DecodeAndValidate(httptest.NewRecorder(), req, &dst)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, dst.Path)
		})
	}
}

func TestDecodeAndValidate_RejectsInvalidField(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/index/load", strings.NewReader(`{"path":"far-too-long.csv"}`))
	var dst loadRequest

	err := DecodeAndValidate(httptest.NewRecorder(), req, &dst)
	var valErr *ValidationError
	require.True(t, errors.As(err, &valErr))
	assert.Equal(t, "must be at most 10 characters", valErr.Fields()["path"])
}
