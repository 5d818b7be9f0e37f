package services

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"pocketbook/internal/aggregation"
	apperrors "pocketbook/internal/errors"
	"pocketbook/internal/integrity"
	"pocketbook/internal/models"
	"pocketbook/internal/pagination"
	"pocketbook/internal/store"
)

// categoryService handles category-related business logic.
type categoryService struct {
	store       store.Reader
	engine      *integrity.Engine
	aggregation *aggregation.Service
}

// NewCategoryService creates a new CategoryServicer.
func NewCategoryService(r store.Reader, engine *integrity.Engine, agg *aggregation.Service) CategoryServicer {
	return &categoryService{store: r, engine: engine, aggregation: agg}
}

// CreateCategory creates a new category
func (s *categoryService) CreateCategory(ctx context.Context, userID, name string, categoryType models.CategoryType) (*models.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "category name is required")
	}
	if categoryType != models.CategoryTypeIncome && categoryType != models.CategoryTypeExpense {
		return nil, apperrors.WithFields(apperrors.ErrValidationFailed, map[string]string{
			"type": "must be income or expense",
		})
	}

	category := &models.Category{
		UserID:         userID,
		Name:           name,
		Type:           categoryType,
		Sum:            decimal.Zero,
		BudgetElements: []string{},
	}
	if err := s.engine.CreateChild(ctx, category); err != nil {
		return nil, err
	}
	return category, nil
}

// GetUserCategories retrieves a paginated list of categories for a user.
func (s *categoryService) GetUserCategories(ctx context.Context, userID string, page pagination.PageRequest) (*pagination.PageResponse[models.Category], error) {
	return s.list(ctx, store.ByUser(userID), page)
}

// GetUserCategoriesByType retrieves a paginated list of categories of a specific type for a user.
func (s *categoryService) GetUserCategoriesByType(ctx context.Context, userID string, categoryType models.CategoryType, page pagination.PageRequest) (*pagination.PageResponse[models.Category], error) {
	filter := store.ByUser(userID)
	filter.Where["type"] = string(categoryType)
	return s.list(ctx, filter, page)
}

func (s *categoryService) list(ctx context.Context, filter store.Filter, page pagination.PageRequest) (*pagination.PageResponse[models.Category], error) {
	page.Defaults()

	totalItems, err := s.store.Count(ctx, models.KindCategory, filter)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	filter.Limit = page.PageSize
	filter.Offset = page.Offset()
	recs, err := s.store.FindMany(ctx, models.KindCategory, filter)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	found := store.Collect[*models.Category](recs)
	if err := s.aggregation.RecomputeSums(ctx, found); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	categories := make([]models.Category, 0, len(found))
	for _, c := range found {
		categories = append(categories, *c)
	}

	result := pagination.NewPageResponse(categories, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// GetCategoryByID retrieves a category by ID for a specific user
func (s *categoryService) GetCategoryByID(ctx context.Context, userID, categoryID string) (*models.Category, error) {
	rec, err := s.engine.Lookup(ctx, userID, models.Ref{Kind: models.KindCategory, ID: categoryID})
	if err != nil {
		return nil, err
	}
	category := rec.(*models.Category)
	if err := s.aggregation.RecomputeSums(ctx, []*models.Category{category}); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return category, nil
}

// UpdateCategory renames a category.
func (s *categoryService) UpdateCategory(ctx context.Context, userID, categoryID, name string) (*models.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "category name is required")
	}

	rec, err := s.engine.UpdateChild(ctx, userID, models.Ref{Kind: models.KindCategory, ID: categoryID}, func(rec models.Record) error {
		rec.(*models.Category).Name = name
		return nil
	})
	if err != nil {
		return nil, err
	}
	category := rec.(*models.Category)
	if err := s.aggregation.RecomputeSums(ctx, []*models.Category{category}); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return category, nil
}

// DeleteCategory deletes a category that holds no budget elements.
func (s *categoryService) DeleteCategory(ctx context.Context, userID, categoryID string) error {
	return s.engine.DeleteChild(ctx, userID, models.Ref{Kind: models.KindCategory, ID: categoryID})
}
