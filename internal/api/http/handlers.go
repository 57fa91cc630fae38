package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httplog/v2"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/vadimbarashkov/notveryshort/internal/database"
	"github.com/vadimbarashkov/notveryshort/internal/models"
	"github.com/vadimbarashkov/notveryshort/internal/service"
	"github.com/vadimbarashkov/notveryshort/pkg/response"
)

const (
	reusedNote   = "This URL was already shortened; returning the existing short URL."
	maxBodyBytes = 1 << 20
)

var errMalformedJSON = errors.New("malformed json")

func handlePing(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "pong")
}

// handlePreflight answers OPTIONS requests that are not CORS preflights
// (those are handled by the cors middleware).
func handlePreflight(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept")
	w.WriteHeader(http.StatusOK)
}

// shortenRequest keeps url untyped so a non-string value is reported as a
// missing url instead of malformed JSON.
type shortenRequest struct {
	URL    any    `json:"url"`
	Custom string `json:"custom"`
}

type shortenInput struct {
	URL    string `json:"url" validate:"required,http_url"`
	Custom string `json:"custom" validate:"omitempty,alphanum,max=64"`
}

type shortenResponse struct {
	ShortURL string `json:"shortURL"`
	Note     string `json:"note,omitempty"`
}

type linkResponse struct {
	ID          int64     `json:"id"`
	ShortCode   string    `json:"short_code"`
	OriginalURL string    `json:"original_url"`
	ShortURL    string    `json:"short_url"`
	CreatedAt   time.Time `json:"created_at"`
}

func toLinkResponse(link *models.Link, baseURL string) linkResponse {
	return linkResponse{
		ID:          link.ID,
		ShortCode:   link.ShortCode,
		OriginalURL: link.OriginalURL,
		ShortURL:    baseURL + "/" + link.ShortCode,
		CreatedAt:   link.CreatedAt,
	}
}

func handleShortenURL(svc URLService, validate *validator.Validate, baseURL string) http.HandlerFunc {
	const op = "api.http.handleShortenURL"

	return func(w http.ResponseWriter, r *http.Request) {
		var req shortenRequest

		if err := decodeJSONBody(w, r, &req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.InvalidJSONResponse)
			return
		}

		rawURL, ok := req.URL.(string)
		if !ok {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.URLRequiredResponse)
			return
		}

		in := shortenInput{
			URL:    strings.TrimSpace(rawURL),
			Custom: req.Custom,
		}

		if err := validate.Struct(in); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.ValidationErrorResponse(err))
			return
		}

		res, err := svc.Shorten(r.Context(), in.URL, in.Custom)
		if err != nil {
			status, resp := shortenErrorResponse(err)
			if status == http.StatusInternalServerError {
				httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})
			}

			render.Status(r, status)
			render.JSON(w, r, resp)
			return
		}

		resp := shortenResponse{ShortURL: baseURL + "/" + res.Link.ShortCode}
		if res.Reused {
			resp.Note = reusedNote
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, resp)
	}
}

// decodeJSONBody decodes the request body into v. The body must be exactly one
// JSON document: trailing data after the first value is rejected.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, v any) error {
	const op = "api.http.decodeJSONBody"

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("%s: failed to read body: %w", op, err)
	}

	if !json.Valid(body) {
		return fmt.Errorf("%s: %w", op, errMalformedJSON)
	}

	if err := render.DecodeJSON(bytes.NewReader(body), v); err != nil {
		return fmt.Errorf("%s: failed to decode body: %w", op, err)
	}

	return nil
}

func shortenErrorResponse(err error) (int, response.ErrorResponse) {
	switch {
	case errors.Is(err, service.ErrInvalidURL):
		return http.StatusBadRequest, response.InvalidURLResponse
	case errors.Is(err, service.ErrInvalidAlias):
		return http.StatusBadRequest, response.InvalidAliasResponse
	case errors.Is(err, service.ErrAliasTaken):
		return http.StatusConflict, response.AliasTakenResponse
	case errors.Is(err, service.ErrCodeGenerationExhausted):
		return http.StatusInternalServerError, response.CodeGenerationFailedResponse
	default:
		return http.StatusInternalServerError, response.ServerErrorResponse
	}
}

// resolveErrorResponse maps a Resolve error to its status and body.
func resolveErrorResponse(err error) (int, response.ErrorResponse) {
	switch {
	case errors.Is(err, service.ErrInvalidCode):
		return http.StatusBadRequest, response.InvalidCodeResponse
	case errors.Is(err, database.ErrLinkNotFound):
		return http.StatusNotFound, response.NotFoundResponse
	default:
		return http.StatusInternalServerError, response.ServerErrorResponse
	}
}

func handleRedirect(svc URLService) http.HandlerFunc {
	const op = "api.http.handleRedirect"

	return func(w http.ResponseWriter, r *http.Request) {
		shortCode := chi.URLParam(r, "shortCode")

		link, err := svc.Resolve(r.Context(), shortCode)
		if err != nil {
			status, resp := resolveErrorResponse(err)
			if status == http.StatusInternalServerError {
				httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})
			}

			render.Status(r, status)
			render.JSON(w, r, resp)
			return
		}

		http.Redirect(w, r, link.OriginalURL, http.StatusMovedPermanently)
	}
}

func handleLookup(svc URLService, baseURL string) http.HandlerFunc {
	const op = "api.http.handleLookup"

	return func(w http.ResponseWriter, r *http.Request) {
		shortCode := chi.URLParam(r, "shortCode")

		link, err := svc.Resolve(r.Context(), shortCode)
		if err != nil {
			status, resp := resolveErrorResponse(err)
			if status == http.StatusInternalServerError {
				httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})
			}

			render.Status(r, status)
			render.JSON(w, r, resp)
			return
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, toLinkResponse(link, baseURL))
	}
}
