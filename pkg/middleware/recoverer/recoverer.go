package recoverer

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"
	"github.com/vadimbarashkov/notveryshort/pkg/middleware"
	"github.com/vadimbarashkov/notveryshort/pkg/response"
)

// New returns a middleware that turns a panic into a 500 with the generic
// error body. http.ErrAbortHandler is re-raised so net/http can abort the
// connection.
func New(logger *slog.Logger) middleware.Middleware {
	const op = "middleware.recoverer.New"

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					if err, ok := rvr.(error); ok && errors.Is(err, http.ErrAbortHandler) {
						panic(rvr)
					}

					logger.Error(
						"something went wrong, panic occurred",
						slog.String("op", op),
						slog.Any("err", rvr),
						slog.String("path", r.URL.Path),
					)

					render.Status(r, http.StatusInternalServerError)
					render.JSON(w, r, response.ServerErrorResponse)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
