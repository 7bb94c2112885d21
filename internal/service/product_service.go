package service

import (
	"context"
	"fmt"

	"shop-service/internal/models"
)

// ProductStore is the persistence surface for the product catalog
type ProductStore interface {
	CreateProduct(ctx context.Context, product *models.Product) error
	GetProducts(ctx context.Context) ([]models.Product, error)
	GetProductByID(ctx context.Context, id int64) (*models.Product, error)
	GetCategoryByID(ctx context.Context, id int64) (*models.Category, error)
	GetCategories(ctx context.Context) ([]models.Category, error)
}

// ProductService handles catalog reads and writes
type ProductService struct {
	store ProductStore
}

// NewProductService creates a new product service
func NewProductService(store ProductStore) *ProductService {
	return &ProductService{store: store}
}

// ProductRequest represents a product creation payload
type ProductRequest struct {
	Name           string  `json:"name" binding:"required"`
	Description    string  `json:"description"`
	Price          float64 `json:"price" binding:"min=0"`
	CategoryID     int64   `json:"category_id" binding:"required"`
	TotalUnits     int     `json:"total_units" binding:"min=0"`
	RemainingUnits *int    `json:"remaining_units,omitempty"`
}

// ProductView is a product with its category embedded and the derived
// stock status
type ProductView struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       float64         `json:"price"`
	Category    models.Category `json:"category"`
	StockStatus string          `json:"stock_status"`
}

// Create adds a product to the catalog. The category must exist;
// remaining_units defaults to total_units.
func (s *ProductService) Create(ctx context.Context, req *ProductRequest) (*ProductView, error) {
	category, err := s.store.GetCategoryByID(ctx, req.CategoryID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up category: %w", err)
	}
	if category == nil {
		return nil, fmt.Errorf("%w: category does not exist", ErrInvalidInput)
	}

	remaining := req.TotalUnits
	if req.RemainingUnits != nil {
		remaining = *req.RemainingUnits
	}
	if remaining < 0 || remaining > req.TotalUnits {
		return nil, fmt.Errorf("%w: remaining_units must be between 0 and total_units", ErrInvalidInput)
	}

	product := &models.Product{
		Name:           req.Name,
		Description:    req.Description,
		Price:          req.Price,
		CategoryID:     req.CategoryID,
		TotalUnits:     req.TotalUnits,
		RemainingUnits: remaining,
	}
	if err := s.store.CreateProduct(ctx, product); err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	return newProductView(product, category), nil
}

// List returns all products with categories and stock status
func (s *ProductService) List(ctx context.Context) ([]ProductView, error) {
	products, err := s.store.GetProducts(ctx)
	if err != nil {
		return nil, err
	}

	categories, err := s.store.GetCategories(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]models.Category, len(categories))
	for _, c := range categories {
		byID[c.ID] = c
	}

	views := make([]ProductView, 0, len(products))
	for i := range products {
		category, found := byID[products[i].CategoryID]
		if !found {
			category = models.Category{ID: products[i].CategoryID}
		}
		views = append(views, *newProductView(&products[i], &category))
	}
	return views, nil
}

// Get returns a single product view
func (s *ProductService) Get(ctx context.Context, id int64) (*ProductView, error) {
	product, err := s.store.GetProductByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, ErrProductNotFound
	}

	category, err := s.store.GetCategoryByID(ctx, product.CategoryID)
	if err != nil {
		return nil, err
	}
	if category == nil {
		category = &models.Category{ID: product.CategoryID}
	}
	return newProductView(product, category), nil
}

func newProductView(p *models.Product, c *models.Category) *ProductView {
	return &ProductView{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		Category:    *c,
		StockStatus: p.StockStatus(),
	}
}
