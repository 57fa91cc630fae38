// Package response holds the JSON error bodies returned by the HTTP API.
package response

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

var (
	InvalidJSONResponse          = ErrorResponse{Error: "Invalid JSON"}
	URLRequiredResponse          = ErrorResponse{Error: "URL is required"}
	InvalidURLResponse           = ErrorResponse{Error: "Need proper URL"}
	InvalidAliasResponse         = ErrorResponse{Error: "Invalid custom alias"}
	InvalidCodeResponse          = ErrorResponse{Error: "invalid code"}
	AliasTakenResponse           = ErrorResponse{Error: "Custom alias is already taken"}
	CodeGenerationFailedResponse = ErrorResponse{Error: "failed to generate unique code"}
	NotFoundResponse             = ErrorResponse{Error: "Not found"}
	MethodNotAllowedResponse     = ErrorResponse{Error: "Method not allowed"}
	TooManyRequestsResponse      = ErrorResponse{Error: "Too many requests"}
	ServerErrorResponse          = ErrorResponse{Error: "Internal Server Error"}
)

// ValidationErrorResponse maps the first failed field of a shorten request
// to its client message. Field names are the json tag names.
func ValidationErrorResponse(err error) ErrorResponse {
	var validateErrs validator.ValidationErrors
	if !errors.As(err, &validateErrs) || len(validateErrs) == 0 {
		return InvalidJSONResponse
	}

	fe := validateErrs[0]

	switch fe.Field() {
	case "url":
		if fe.Tag() == "required" {
			return URLRequiredResponse
		}
		return InvalidURLResponse
	case "custom":
		return InvalidAliasResponse
	default:
		return ErrorResponse{Error: fmt.Sprintf("Invalid %s", fe.Field())}
	}
}
