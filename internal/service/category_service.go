package service

import (
	"context"
	"fmt"

	"shop-service/internal/models"
)

// CategoryStore is the persistence surface for category CRUD
type CategoryStore interface {
	CreateCategory(ctx context.Context, category *models.Category) error
	GetCategories(ctx context.Context) ([]models.Category, error)
	GetCategoryByID(ctx context.Context, id int64) (*models.Category, error)
	GetCategoryByName(ctx context.Context, name string) (*models.Category, error)
	UpdateCategory(ctx context.Context, category *models.Category) error
	DeleteCategory(ctx context.Context, id int64) error
}

// CategoryService handles category CRUD
type CategoryService struct {
	store CategoryStore
}

// NewCategoryService creates a new category service
func NewCategoryService(store CategoryStore) *CategoryService {
	return &CategoryService{store: store}
}

// CategoryRequest represents a create/update payload
type CategoryRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

// CategoryUpdateRequest allows partial updates
type CategoryUpdateRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Create adds a new category; names are unique
func (s *CategoryService) Create(ctx context.Context, req *CategoryRequest) (*models.Category, error) {
	existing, err := s.store.GetCategoryByName(ctx, req.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing category: %w", err)
	}
	if existing != nil {
		return nil, ErrCategoryExists
	}

	category := &models.Category{Name: req.Name, Description: req.Description}
	if err := s.store.CreateCategory(ctx, category); err != nil {
		return nil, fmt.Errorf("failed to create category: %w", err)
	}
	return category, nil
}

// List returns all categories
func (s *CategoryService) List(ctx context.Context) ([]models.Category, error) {
	return s.store.GetCategories(ctx)
}

// Get returns a category by ID
func (s *CategoryService) Get(ctx context.Context, id int64) (*models.Category, error) {
	category, err := s.store.GetCategoryByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if category == nil {
		return nil, ErrCategoryNotFound
	}
	return category, nil
}

// Update applies non-empty fields to an existing category
func (s *CategoryService) Update(ctx context.Context, id int64, req *CategoryUpdateRequest) (*models.Category, error) {
	category, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != "" {
		category.Name = req.Name
	}
	if req.Description != "" {
		category.Description = req.Description
	}

	if err := s.store.UpdateCategory(ctx, category); err != nil {
		return nil, fmt.Errorf("failed to update category: %w", err)
	}
	return category, nil
}

// Delete removes a category by ID
func (s *CategoryService) Delete(ctx context.Context, id int64) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return s.store.DeleteCategory(ctx, id)
}
