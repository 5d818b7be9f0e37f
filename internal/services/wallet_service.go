package services

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	apperrors "pocketbook/internal/errors"
	"pocketbook/internal/integrity"
	"pocketbook/internal/models"
	"pocketbook/internal/pagination"
	"pocketbook/internal/store"
)

// walletService handles wallet-related business logic. Every write goes
// through the integrity engine so the owning user's wallet set stays in step.
type walletService struct {
	store  store.Reader
	engine *integrity.Engine
}

// NewWalletService creates a new WalletServicer.
func NewWalletService(r store.Reader, engine *integrity.Engine) WalletServicer {
	return &walletService{store: r, engine: engine}
}

// CreateWallet creates a wallet holding sum as its starting balance.
func (s *walletService) CreateWallet(ctx context.Context, userID, name string, sum decimal.Decimal) (*models.Wallet, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "wallet name is required")
	}

	wallet := &models.Wallet{
		UserID:         userID,
		Name:           name,
		Sum:            sum,
		BudgetElements: []string{},
	}
	if err := s.engine.CreateChild(ctx, wallet); err != nil {
		return nil, err
	}
	return wallet, nil
}

// GetUserWallets retrieves a paginated list of wallets for a user.
func (s *walletService) GetUserWallets(ctx context.Context, userID string, page pagination.PageRequest) (*pagination.PageResponse[models.Wallet], error) {
	page.Defaults()

	filter := store.ByUser(userID)
	totalItems, err := s.store.Count(ctx, models.KindWallet, filter)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	filter.Limit = page.PageSize
	filter.Offset = page.Offset()
	recs, err := s.store.FindMany(ctx, models.KindWallet, filter)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	wallets := make([]models.Wallet, 0, len(recs))
	for _, w := range store.Collect[*models.Wallet](recs) {
		wallets = append(wallets, *w)
	}

	result := pagination.NewPageResponse(wallets, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// GetWalletByID retrieves a wallet by ID for a specific user
func (s *walletService) GetWalletByID(ctx context.Context, userID, walletID string) (*models.Wallet, error) {
	rec, err := s.engine.Lookup(ctx, userID, models.Ref{Kind: models.KindWallet, ID: walletID})
	if err != nil {
		return nil, err
	}
	return rec.(*models.Wallet), nil
}

// UpdateWallet renames a wallet.
func (s *walletService) UpdateWallet(ctx context.Context, userID, walletID, name string) (*models.Wallet, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "wallet name is required")
	}

	rec, err := s.engine.UpdateChild(ctx, userID, models.Ref{Kind: models.KindWallet, ID: walletID}, func(rec models.Record) error {
		rec.(*models.Wallet).Name = name
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rec.(*models.Wallet), nil
}

// DeleteWallet deletes a wallet that holds no budget elements.
func (s *walletService) DeleteWallet(ctx context.Context, userID, walletID string) error {
	return s.engine.DeleteChild(ctx, userID, models.Ref{Kind: models.KindWallet, ID: walletID})
}
