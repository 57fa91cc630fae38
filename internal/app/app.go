package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/httplog/v2"
	"github.com/redis/go-redis/v9"
	"github.com/vadimbarashkov/notveryshort/internal/cache"
	"github.com/vadimbarashkov/notveryshort/internal/config"
	"github.com/vadimbarashkov/notveryshort/internal/service"
	"github.com/vadimbarashkov/notveryshort/internal/shortcode"
	"github.com/vadimbarashkov/notveryshort/pkg/middleware/ratelimit"
	"golang.org/x/sync/errgroup"

	apihttp "github.com/vadimbarashkov/notveryshort/internal/api/http"
)

func Run(ctx context.Context, cfg *config.Config, logger *httplog.Logger) error {
	const op = "app.Run"

	policy, err := service.ParseCheckErrorPolicy(cfg.Shortener.OnCheckError)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	db, repo, err := openStorage(ctx, cfg)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer db.Close()

	var routerOpts []apihttp.RouterOption
	routerOpts = append(routerOpts, apihttp.WithSwaggerPath(cfg.HTTPServer.SwaggerPath))

	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("%s: failed to connect to redis: %w", op, err)
		}

		repo = cache.NewCachedLinkRepository(
			repo,
			rdb,
			cache.WithTTL(cfg.Redis.CacheTTL),
			cache.WithLogger(logger.Logger),
		)

		if cfg.RateLimit.Enabled {
			limiter := ratelimit.New(rdb, cfg.RateLimit.Requests, cfg.RateLimit.Window, logger.Logger)
			routerOpts = append(routerOpts, apihttp.WithShortenLimiter(limiter))
		}
	}

	urlSvc := service.NewURLService(
		repo,
		shortcode.NewGenerator(),
		service.WithCheckErrorPolicy(policy),
		service.WithLogger(logger.Logger),
	)

	server := &http.Server{
		Addr:           cfg.HTTPServer.Addr(),
		Handler:        apihttp.NewRouter(logger, urlSvc, cfg.BaseURL, routerOpts...),
		ReadTimeout:    cfg.HTTPServer.ReadTimeout,
		WriteTimeout:   cfg.HTTPServer.WriteTimeout,
		IdleTimeout:    cfg.HTTPServer.IdleTimeout,
		MaxHeaderBytes: cfg.HTTPServer.MaxHeaderBytes,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error

		logger.Info("starting server",
			slog.String("addr", server.Addr),
			slog.String("env", cfg.Env),
			slog.String("storage", cfg.Storage.Driver),
			slog.Bool("redis", cfg.Redis.Enabled),
		)

		switch cfg.Env {
		case config.EnvProd:
			err = server.ListenAndServeTLS(cfg.HTTPServer.CertFile, cfg.HTTPServer.KeyFile)
		default:
			err = server.ListenAndServe()
		}

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("%s: server error occurred: %w", op, err)
		}

		return nil
	})

	g.Go(func() error {
		<-ctx.Done()

		logger.Info("shutting down server")

		if err := server.Shutdown(context.Background()); err != nil {
			return fmt.Errorf("%s: failed to shutdown server: %w", op, err)
		}

		return nil
	})

	return g.Wait()
}
