package services

import (
	"context"
	"strings"
	"time"

	apperrors "pocketbook/internal/errors"
	"pocketbook/internal/integrity"
	"pocketbook/internal/models"
	"pocketbook/internal/pagination"
	"pocketbook/internal/store"
)

// budgetElementOrder lists the newest entries first.
const budgetElementOrder = "date DESC, id DESC"

// budgetElementService handles budget element business logic. Elements are
// linked into the sets of their user, wallet and category by the integrity
// engine.
type budgetElementService struct {
	store  store.Reader
	engine *integrity.Engine
	now    func() time.Time
}

// NewBudgetElementService creates a new BudgetElementServicer.
func NewBudgetElementService(r store.Reader, engine *integrity.Engine) BudgetElementServicer {
	return &budgetElementService{store: r, engine: engine, now: time.Now}
}

// CreateBudgetElement creates an element after checking that its wallet and
// category exist and belong to userID.
func (s *budgetElementService) CreateBudgetElement(ctx context.Context, userID string, in BudgetElementInput) (*models.BudgetElement, error) {
	fields := map[string]string{}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		fields["name"] = "is required"
	}
	if in.WalletID == "" {
		fields["wallet_id"] = "is required"
	}
	if in.CategoryID == "" {
		fields["category_id"] = "is required"
	}
	if !validEntryType(in.Type) {
		fields["type"] = "must be income or expense"
	}
	if len(fields) > 0 {
		return nil, apperrors.WithFields(apperrors.ErrValidationFailed, fields)
	}

	date := s.now().UTC()
	if in.Date != nil {
		date = in.Date.UTC()
	}

	element := &models.BudgetElement{
		UserID:     userID,
		WalletID:   in.WalletID,
		CategoryID: in.CategoryID,
		Name:       name,
		Amount:     in.Amount,
		Type:       in.Type,
		Date:       date,
	}
	if err := s.engine.CreateChild(ctx, element); err != nil {
		return nil, err
	}
	return element, nil
}

// GetUserBudgetElements retrieves a paginated, filtered list of a user's elements.
func (s *budgetElementService) GetUserBudgetElements(ctx context.Context, userID string, page pagination.PageRequest, filter BudgetElementFilter) (*pagination.PageResponse[models.BudgetElement], error) {
	page.Defaults()

	f := filter.toStore(userID)
	totalItems, err := s.store.Count(ctx, models.KindBudgetElement, f)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	f.OrderBy = budgetElementOrder
	f.Limit = page.PageSize
	f.Offset = page.Offset()
	recs, err := s.store.FindMany(ctx, models.KindBudgetElement, f)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	elements := make([]models.BudgetElement, 0, len(recs))
	for _, e := range store.Collect[*models.BudgetElement](recs) {
		elements = append(elements, *e)
	}

	result := pagination.NewPageResponse(elements, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// GetBudgetElementByID retrieves an element by ID for a specific user
func (s *budgetElementService) GetBudgetElementByID(ctx context.Context, userID, elementID string) (*models.BudgetElement, error) {
	rec, err := s.engine.Lookup(ctx, userID, models.Ref{Kind: models.KindBudgetElement, ID: elementID})
	if err != nil {
		return nil, err
	}
	return rec.(*models.BudgetElement), nil
}

// UpdateBudgetElement applies update. A new wallet or category must belong
// to the same user; the element is moved between the parents' sets in the
// same transaction as the save.
func (s *budgetElementService) UpdateBudgetElement(ctx context.Context, userID, elementID string, update BudgetElementUpdate) (*models.BudgetElement, error) {
	fields := map[string]string{}
	if update.Name != nil && strings.TrimSpace(*update.Name) == "" {
		fields["name"] = "must not be empty"
	}
	if update.WalletID != nil && *update.WalletID == "" {
		fields["wallet_id"] = "must not be empty"
	}
	if update.CategoryID != nil && *update.CategoryID == "" {
		fields["category_id"] = "must not be empty"
	}
	if update.Type != nil && !validEntryType(*update.Type) {
		fields["type"] = "must be income or expense"
	}
	if len(fields) > 0 {
		return nil, apperrors.WithFields(apperrors.ErrValidationFailed, fields)
	}

	ref := models.Ref{Kind: models.KindBudgetElement, ID: elementID}
	rec, err := s.engine.UpdateChild(ctx, userID, ref, func(rec models.Record) error {
		e := rec.(*models.BudgetElement)
		if update.Name != nil {
			e.Name = strings.TrimSpace(*update.Name)
		}
		if update.Amount != nil {
			e.Amount = *update.Amount
		}
		if update.Type != nil {
			e.Type = *update.Type
		}
		if update.Date != nil {
			e.Date = update.Date.UTC()
		}
		if update.WalletID != nil {
			e.WalletID = *update.WalletID
		}
		if update.CategoryID != nil {
			e.CategoryID = *update.CategoryID
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rec.(*models.BudgetElement), nil
}

// DeleteBudgetElement deletes an element and unlinks it from its parents.
func (s *budgetElementService) DeleteBudgetElement(ctx context.Context, userID, elementID string) error {
	return s.engine.DeleteChild(ctx, userID, models.Ref{Kind: models.KindBudgetElement, ID: elementID})
}

func (f BudgetElementFilter) toStore(userID string) store.Filter {
	filter := store.ByUser(userID)
	if f.WalletID != nil {
		filter.Where["wallet_id"] = *f.WalletID
	}
	if f.CategoryID != nil {
		filter.Where["category_id"] = *f.CategoryID
	}
	if f.Type != nil {
		filter.Where["type"] = string(*f.Type)
	}
	return filter
}

func validEntryType(t models.EntryType) bool {
	return t == models.EntryTypeIncome || t == models.EntryTypeExpense
}
