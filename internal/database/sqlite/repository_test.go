package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"github.com/vadimbarashkov/notveryshort/internal/database"

	sqlitepkg "github.com/vadimbarashkov/notveryshort/pkg/sqlite"
)

const migrationsPath = "file://../../../migrations/sqlite"

type LinkRepositoryTestSuite struct {
	suite.Suite
	repo *LinkRepository
}

func (suite *LinkRepositoryTestSuite) SetupSubTest() {
	ctx := context.Background()

	db, err := sqlitepkg.New(ctx, ":memory:")
	if err != nil {
		suite.T().Fatalf("Failed to open database: %v", err)
	}
	suite.T().Cleanup(func() {
		db.Close()
	})

	if err := sqlitepkg.RunMigrations(db, migrationsPath); err != nil {
		suite.T().Fatalf("Failed to run migrations: %v", err)
	}

	suite.repo = NewLinkRepository(db)
}

func (suite *LinkRepositoryTestSuite) TestInsert() {
	ctx := context.Background()

	suite.Run("success", func() {
		link, err := suite.repo.Insert(ctx, "a1b2c3d4e5", "https://example.com")

		suite.NoError(err)
		suite.NotNil(link)
		suite.NotZero(link.ID)
		suite.Equal("a1b2c3d4e5", link.ShortCode)
		suite.Equal("https://example.com", link.OriginalURL)
		suite.False(link.CreatedAt.IsZero())
	})

	suite.Run("short code exists", func() {
		_, err := suite.repo.Insert(ctx, "abc", "https://example.com/one")
		suite.Require().NoError(err)

		link, err := suite.repo.Insert(ctx, "abc", "https://example.com/two")

		suite.Error(err)
		suite.ErrorIs(err, database.ErrShortCodeExists)
		suite.Nil(link)
	})

	suite.Run("same url under different codes", func() {
		_, err := suite.repo.Insert(ctx, "one", "https://example.com")
		suite.Require().NoError(err)

		link, err := suite.repo.Insert(ctx, "two", "https://example.com")

		suite.NoError(err)
		suite.Equal("two", link.ShortCode)
	})
}

func (suite *LinkRepositoryTestSuite) TestFindByCode() {
	ctx := context.Background()

	suite.Run("link not found", func() {
		link, err := suite.repo.FindByCode(ctx, "missing")

		suite.Error(err)
		suite.ErrorIs(err, database.ErrLinkNotFound)
		suite.Nil(link)
	})

	suite.Run("case sensitive", func() {
		_, err := suite.repo.Insert(ctx, "AbC", "https://example.com")
		suite.Require().NoError(err)

		link, err := suite.repo.FindByCode(ctx, "abc")

		suite.ErrorIs(err, database.ErrLinkNotFound)
		suite.Nil(link)
	})

	suite.Run("success", func() {
		inserted, err := suite.repo.Insert(ctx, "abc123", "https://example.com")
		suite.Require().NoError(err)

		link, err := suite.repo.FindByCode(ctx, "abc123")

		suite.NoError(err)
		suite.Equal(inserted.ID, link.ID)
		suite.Equal("https://example.com", link.OriginalURL)
	})
}

func (suite *LinkRepositoryTestSuite) TestFindByURL() {
	ctx := context.Background()

	suite.Run("link not found", func() {
		link, err := suite.repo.FindByURL(ctx, "https://example.com")

		suite.ErrorIs(err, database.ErrLinkNotFound)
		suite.Nil(link)
	})

	suite.Run("exact match only", func() {
		_, err := suite.repo.Insert(ctx, "abc123", "https://Example.com")
		suite.Require().NoError(err)

		link, err := suite.repo.FindByURL(ctx, "https://example.com")

		suite.ErrorIs(err, database.ErrLinkNotFound)
		suite.Nil(link)
	})

	suite.Run("first mapping wins", func() {
		_, err := suite.repo.Insert(ctx, "first1", "https://example.com")
		suite.Require().NoError(err)
		_, err = suite.repo.Insert(ctx, "second", "https://example.com")
		suite.Require().NoError(err)

		link, err := suite.repo.FindByURL(ctx, "https://example.com")

		suite.NoError(err)
		suite.Equal("first1", link.ShortCode)
	})
}

func (suite *LinkRepositoryTestSuite) TestFindByCodeAndURL() {
	ctx := context.Background()

	suite.Run("different url", func() {
		_, err := suite.repo.Insert(ctx, "abc", "https://example.com")
		suite.Require().NoError(err)

		link, err := suite.repo.FindByCodeAndURL(ctx, "abc", "https://other.com")

		suite.ErrorIs(err, database.ErrLinkNotFound)
		suite.Nil(link)
	})

	suite.Run("success", func() {
		_, err := suite.repo.Insert(ctx, "abc", "https://example.com")
		suite.Require().NoError(err)

		link, err := suite.repo.FindByCodeAndURL(ctx, "abc", "https://example.com")

		suite.NoError(err)
		suite.Equal("abc", link.ShortCode)
		suite.Equal("https://example.com", link.OriginalURL)
	})
}

func TestLinkRepository(t *testing.T) {
	suite.Run(t, new(LinkRepositoryTestSuite))
}

func TestIsUniqueViolationError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "unique constraint",
			err:  sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique},
			want: true,
		},
		{
			name: "other constraint",
			err:  sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintNotNull},
			want: false,
		},
		{
			name: "not sqlite error",
			err:  errors.New("unknown error"),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := isUniqueViolationError(tt.err)

			assert.Equal(t, tt.want, got)
		})
	}
}
