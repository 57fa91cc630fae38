package http

import (
	"context"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v2"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	httpSwagger "github.com/swaggo/http-swagger"
	"github.com/vadimbarashkov/notveryshort/internal/models"
	"github.com/vadimbarashkov/notveryshort/internal/service"
	pkgmiddleware "github.com/vadimbarashkov/notveryshort/pkg/middleware"
	"github.com/vadimbarashkov/notveryshort/pkg/middleware/recoverer"
	"github.com/vadimbarashkov/notveryshort/pkg/response"
)

// URLService defines the shortening operations exposed over HTTP.
type URLService interface {
	// Shorten returns the link for url, creating it when needed.
	// custom is an optional alias; empty means a generated code.
	Shorten(ctx context.Context, url, custom string) (*service.ShortenResult, error)

	// Resolve returns the link bound to shortCode.
	Resolve(ctx context.Context, shortCode string) (*models.Link, error)
}

type routerOptions struct {
	shortenLimiter pkgmiddleware.Middleware
	swaggerPath    string
}

type RouterOption func(*routerOptions)

// WithShortenLimiter guards POST /api/v1/shorten with mw.
func WithShortenLimiter(mw pkgmiddleware.Middleware) RouterOption {
	return func(o *routerOptions) {
		o.shortenLimiter = mw
	}
}

// WithSwaggerPath sets the OpenAPI document served at /docs/swagger.yml.
func WithSwaggerPath(path string) RouterOption {
	return func(o *routerOptions) {
		o.swaggerPath = path
	}
}

func getValidate() *validator.Validate {
	validate := validator.New()

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return validate
}

// NewRouter builds the HTTP API. Short URLs are rendered as baseURL + "/" + code.
func NewRouter(logger *httplog.Logger, urlSvc URLService, baseURL string, opts ...RouterOption) http.Handler {
	o := routerOptions{swaggerPath: "./docs/swagger.yml"}
	for _, opt := range opts {
		opt(&o)
	}

	baseURL = strings.TrimRight(baseURL, "/")

	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Accept"},
		AllowCredentials: false,
		MaxAge:           86400,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httplog.RequestLogger(logger))
	r.Use(recoverer.New(logger.Logger))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, response.NotFoundResponse)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		render.Status(r, http.StatusMethodNotAllowed)
		render.JSON(w, r, response.MethodNotAllowedResponse)
	})

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/docs/swagger.yml"),
	))
	r.Get("/docs/swagger.yml", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, o.swaggerPath)
	})

	r.Route("/api/v1", func(r chi.Router) {
		validate := getValidate()

		r.Get("/ping", handlePing)

		r.Route("/shorten", func(r chi.Router) {
			shorten := http.Handler(handleShortenURL(urlSvc, validate, baseURL))
			if o.shortenLimiter != nil {
				shorten = o.shortenLimiter(shorten)
			}

			r.Method(http.MethodPost, "/", shorten)
			r.Options("/", handlePreflight)
			r.Get("/{shortCode}", handleLookup(urlSvc, baseURL))
		})
	})

	r.Get("/{shortCode}", handleRedirect(urlSvc))

	return r
}
