// Package aggregation derives category totals from budget elements.
package aggregation

import (
	"context"

	"pocketbook/internal/models"
	"pocketbook/internal/store"

	"github.com/shopspring/decimal"
)

// Service computes read-time category sums.
type Service struct {
	store store.Reader
}

// NewService creates a Service reading from r.
func NewService(r store.Reader) *Service {
	return &Service{store: r}
}

// Totals returns the sum of element amounts per category id. Categories
// without elements are absent from the result.
func (s *Service) Totals(ctx context.Context, categoryIDs []string) (map[string]decimal.Decimal, error) {
	totals := make(map[string]decimal.Decimal, len(categoryIDs))
	if len(categoryIDs) == 0 {
		return totals, nil
	}

	recs, err := s.store.FindMany(ctx, models.KindBudgetElement, store.Filter{
		Where: map[string]any{"category_id": categoryIDs},
	})
	if err != nil {
		return nil, err
	}
	for _, e := range store.Collect[*models.BudgetElement](recs) {
		totals[e.CategoryID] = totals[e.CategoryID].Add(e.Amount)
	}
	return totals, nil
}

// RecomputeSums overwrites the in-memory Sum of every category whose
// budget element set is non-empty with the total of its elements.
// Categories with an empty set keep their stored sum. Nothing is written
// back to the store.
func (s *Service) RecomputeSums(ctx context.Context, categories []*models.Category) error {
	ids := make([]string, 0, len(categories))
	for _, c := range categories {
		if len(c.BudgetElements) > 0 {
			ids = append(ids, c.ID)
		}
	}

	totals, err := s.Totals(ctx, ids)
	if err != nil {
		return err
	}
	for _, c := range categories {
		if len(c.BudgetElements) > 0 {
			c.Sum = totals[c.ID]
		}
	}
	return nil
}
