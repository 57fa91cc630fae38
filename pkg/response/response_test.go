package response

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
)

func TestValidationErrorResponse(t *testing.T) {
	type req struct {
		URL    string `json:"url" validate:"required,http_url"`
		Custom string `json:"custom" validate:"omitempty,alphanum,max=64"`
		Other  string `json:"other" validate:"omitempty,numeric"`
	}

	validate := validator.New()

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	tests := []struct {
		name string
		req  req
		want ErrorResponse
	}{
		{
			name: "missing url",
			req:  req{},
			want: URLRequiredResponse,
		},
		{
			name: "bad scheme",
			req:  req{URL: "ftp://example.com"},
			want: InvalidURLResponse,
		},
		{
			name: "not a url",
			req:  req{URL: "not a url"},
			want: InvalidURLResponse,
		},
		{
			name: "bad alias",
			req:  req{URL: "https://example.com", Custom: "has-dash"},
			want: InvalidAliasResponse,
		},
		{
			name: "other field",
			req:  req{URL: "https://example.com", Other: "abc"},
			want: ErrorResponse{Error: "Invalid other"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validate.Struct(tt.req)
			got := ValidationErrorResponse(err)

			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("not a validation error", func(t *testing.T) {
		assert.Equal(t, InvalidJSONResponse, ValidationErrorResponse(errors.New("boom")))
	})
}
