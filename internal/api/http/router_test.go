package http

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gavv/httpexpect/v2"
	"github.com/go-chi/httplog/v2"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/suite"
	"github.com/vadimbarashkov/notveryshort/internal/database/sqlite"
	"github.com/vadimbarashkov/notveryshort/internal/service"
	"github.com/vadimbarashkov/notveryshort/internal/shortcode"

	sqlitepkg "github.com/vadimbarashkov/notveryshort/pkg/sqlite"
)

const migrationsPath = "file://../../../migrations/sqlite"

type constantGenerator string

func (g constantGenerator) Generate(string, int) (string, error) {
	return string(g), nil
}

// RouterTestSuite drives the router against the real service and an
// in-memory SQLite database.
type RouterTestSuite struct {
	suite.Suite
	logger *httplog.Logger
	db     *sqlx.DB
	server *httptest.Server
	e      *httpexpect.Expect
}

func (suite *RouterTestSuite) SetupSuite() {
	suite.logger = httplog.NewLogger("", httplog.Options{Writer: io.Discard})
}

func (suite *RouterTestSuite) SetupSubTest() {
	suite.setup(shortcode.NewGenerator())
}

func (suite *RouterTestSuite) TearDownSubTest() {
	suite.server.Close()
	suite.db.Close()
	suite.server, suite.db = nil, nil
}

func (suite *RouterTestSuite) setup(gen service.CodeGenerator) {
	db, err := sqlitepkg.New(context.Background(), ":memory:")
	suite.Require().NoError(err)
	suite.Require().NoError(sqlitepkg.RunMigrations(db, migrationsPath))

	// Replacing the fixture inside a subtest.
	if suite.server != nil {
		suite.server.Close()
		suite.db.Close()
	}

	svc := service.NewURLService(sqlite.NewLinkRepository(db), gen)

	suite.db = db
	suite.server = httptest.NewServer(NewRouter(suite.logger, svc, testBaseURL))
	suite.e = newExpect(suite.T(), suite.server.URL)
}

func (suite *RouterTestSuite) countLinks() int {
	var n int
	suite.Require().NoError(suite.db.Get(&n, "SELECT COUNT(*) FROM links"))
	return n
}

func (suite *RouterTestSuite) shorten(body map[string]any) string {
	shortURL := suite.e.POST("/api/v1/shorten").
		WithJSON(body).
		Expect().
		Status(http.StatusOK).
		JSON().Object().
		Value("shortURL").String().Raw()

	suite.Require().True(strings.HasPrefix(shortURL, testBaseURL+"/"))
	return strings.TrimPrefix(shortURL, testBaseURL)
}

func (suite *RouterTestSuite) TestShortenThenRedirect() {
	suite.Run("round trip", func() {
		path := suite.shorten(map[string]any{"url": "https://example.com/some/long/path?q=1"})

		suite.e.GET(path).
			Expect().
			Status(http.StatusMovedPermanently).
			Header("Location").IsEqual("https://example.com/some/long/path?q=1")
	})

	suite.Run("url with fragment", func() {
		for _, rawURL := range []string{"https://example.com#top", "https://example.com/a#b"} {
			path := suite.shorten(map[string]any{"url": rawURL})

			suite.e.GET(path).
				Expect().
				Status(http.StatusMovedPermanently).
				Header("Location").IsEqual(rawURL)
		}
	})

	suite.Run("generated code format", func() {
		path := suite.shorten(map[string]any{"url": "https://example.com"})

		suite.Regexp(`^/[0-9a-f]{10}$`, path)
	})

	suite.Run("lookup", func() {
		path := suite.shorten(map[string]any{"url": "https://example.com"})

		suite.e.GET("/api/v1/shorten"+path).
			Expect().
			Status(http.StatusOK).
			JSON().Object().
			HasValue("original_url", "https://example.com").
			HasValue("short_url", testBaseURL+path)
	})
}

func (suite *RouterTestSuite) TestCanonicalReuse() {
	suite.Run("same url twice", func() {
		first := suite.shorten(map[string]any{"url": "https://example.com"})

		suite.e.POST("/api/v1/shorten").
			WithJSON(map[string]any{"url": "https://example.com"}).
			Expect().
			Status(http.StatusOK).
			JSON().Object().
			HasValue("shortURL", testBaseURL+first).
			ContainsKey("note")

		suite.Equal(1, suite.countLinks())
	})
}

func (suite *RouterTestSuite) TestInvalidInputLeavesNoRecord() {
	suite.Run("ftp url", func() {
		suite.e.POST("/api/v1/shorten").
			WithJSON(map[string]any{"url": "ftp://x"}).
			Expect().
			Status(http.StatusBadRequest).
			JSON().Object().
			HasValue("error", "Need proper URL")

		suite.Equal(0, suite.countLinks())
	})

	suite.Run("not json", func() {
		suite.e.POST("/api/v1/shorten").
			WithHeader("Content-Type", "application/json").
			WithBytes([]byte("not-json")).
			Expect().
			Status(http.StatusBadRequest).
			JSON().Object().
			HasValue("error", "Invalid JSON")

		suite.Equal(0, suite.countLinks())
	})

	suite.Run("trailing data after json", func() {
		for _, body := range []string{`{"url":"https://a.com"} xx`, `{"url":"https://a.com"}{"url":"https://b.com"}`} {
			suite.e.POST("/api/v1/shorten").
				WithHeader("Content-Type", "application/json").
				WithBytes([]byte(body)).
				Expect().
				Status(http.StatusBadRequest).
				JSON().Object().
				HasValue("error", "Invalid JSON")
		}

		suite.Equal(0, suite.countLinks())
	})

	suite.Run("empty object", func() {
		suite.e.POST("/api/v1/shorten").
			WithJSON(map[string]any{}).
			Expect().
			Status(http.StatusBadRequest).
			JSON().Object().
			HasValue("error", "URL is required")

		suite.Equal(0, suite.countLinks())
	})
}

func (suite *RouterTestSuite) TestCustomAlias() {
	suite.Run("idempotent", func() {
		first := suite.shorten(map[string]any{"url": "https://example.com", "custom": "mine"})
		second := suite.shorten(map[string]any{"url": "https://example.com", "custom": "mine"})

		suite.Equal("/mine", first)
		suite.Equal(first, second)
		suite.Equal(1, suite.countLinks())
	})

	suite.Run("taken by another url", func() {
		suite.shorten(map[string]any{"url": "https://example.com", "custom": "mine"})

		suite.e.POST("/api/v1/shorten").
			WithJSON(map[string]any{"url": "https://other.example.com", "custom": "mine"}).
			Expect().
			Status(http.StatusConflict).
			JSON().Object().
			HasValue("error", "Custom alias is already taken")

		suite.Equal(1, suite.countLinks())
	})

	suite.Run("short alias redirects", func() {
		suite.shorten(map[string]any{"url": "https://example.com", "custom": "x"})

		suite.e.GET("/x").
			Expect().
			Status(http.StatusMovedPermanently).
			Header("Location").IsEqual("https://example.com")
	})
}

func (suite *RouterTestSuite) TestGenerationExhausted() {
	suite.Run("every candidate taken", func() {
		suite.setup(constantGenerator("taken00000"))

		suite.shorten(map[string]any{"url": "https://first.example.com"})
		suite.Equal(1, suite.countLinks())

		suite.e.POST("/api/v1/shorten").
			WithJSON(map[string]any{"url": "https://second.example.com"}).
			Expect().
			Status(http.StatusInternalServerError).
			JSON().Object().
			HasValue("error", "failed to generate unique code")

		suite.Equal(1, suite.countLinks())
	})
}

func (suite *RouterTestSuite) TestRedirect() {
	suite.Run("unknown code", func() {
		suite.e.GET("/unknown123").
			Expect().
			Status(http.StatusNotFound).
			JSON().Object().
			HasValue("error", "Not found")
	})

	suite.Run("malformed code", func() {
		suite.e.GET("/bad-code").
			Expect().
			Status(http.StatusBadRequest).
			JSON().Object().
			HasValue("error", "invalid code")
	})
}

func TestRouter(t *testing.T) {
	suite.Run(t, new(RouterTestSuite))
}
