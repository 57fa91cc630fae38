package service

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/vadimbarashkov/notveryshort/internal/models"
)

type MockLinkRepository struct {
	mock.Mock
}

func (r *MockLinkRepository) FindByCode(ctx context.Context, shortCode string) (*models.Link, error) {
	args := r.Called(ctx, shortCode)
	link, _ := args.Get(0).(*models.Link)
	return link, args.Error(1)
}

func (r *MockLinkRepository) FindByURL(ctx context.Context, originalURL string) (*models.Link, error) {
	args := r.Called(ctx, originalURL)
	link, _ := args.Get(0).(*models.Link)
	return link, args.Error(1)
}

func (r *MockLinkRepository) FindByCodeAndURL(ctx context.Context, shortCode, originalURL string) (*models.Link, error) {
	args := r.Called(ctx, shortCode, originalURL)
	link, _ := args.Get(0).(*models.Link)
	return link, args.Error(1)
}

func (r *MockLinkRepository) Insert(ctx context.Context, shortCode, originalURL string) (*models.Link, error) {
	args := r.Called(ctx, shortCode, originalURL)
	link, _ := args.Get(0).(*models.Link)
	return link, args.Error(1)
}

type MockCodeGenerator struct {
	mock.Mock
}

func (g *MockCodeGenerator) Generate(rawURL string, attempt int) (string, error) {
	args := g.Called(rawURL, attempt)
	return args.String(0), args.Error(1)
}
