package services

import (
	"context"
	"io"
	"time"

	"github.com/shopspring/decimal"

	"pocketbook/internal/integrity"
	"pocketbook/internal/models"
	"pocketbook/internal/pagination"
)

// ProfileUpdate holds the editable profile fields. Nil fields are left unchanged.
type ProfileUpdate struct {
	FirstName   *string
	LastName    *string
	PhoneNumber *string
	Country     *string
}

// AccountDeletion reports what a user cascade removed. Image is the avatar
// path the user held, so the caller can remove the file.
type AccountDeletion struct {
	integrity.CascadeResult
	Image string `json:"-"`
}

// UserServicer defines the contract for user-related business logic.
type UserServicer interface {
	CreateUser(ctx context.Context, email, password, firstName, lastName string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	VerifyPassword(user *models.User, password string) bool
	AttemptLogin(ctx context.Context, email, password string) (*models.User, error)
	StoreRefreshTokenHash(ctx context.Context, userID, tokenHash string) error
	GetRefreshTokenHash(ctx context.Context, userID string) (string, error)
	UpdateProfile(ctx context.Context, userID string, update ProfileUpdate) (*models.User, error)
	// SetAvatar stores path as the user's avatar and returns the previous one.
	SetAvatar(ctx context.Context, userID, path string) (string, error)
	// ClearAvatar removes the user's avatar and returns the previous path.
	ClearAvatar(ctx context.Context, userID string) (string, error)
	DeleteUser(ctx context.Context, userID string) (*AccountDeletion, error)
}

// PasswordResetServicer issues and redeems password reset tokens.
type PasswordResetServicer interface {
	// RequestReset sends a reset link when email belongs to a user. Unknown
	// addresses are not reported.
	RequestReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
}

// WalletServicer defines the contract for wallet-related business logic.
type WalletServicer interface {
	CreateWallet(ctx context.Context, userID, name string, sum decimal.Decimal) (*models.Wallet, error)
	GetUserWallets(ctx context.Context, userID string, page pagination.PageRequest) (*pagination.PageResponse[models.Wallet], error)
	GetWalletByID(ctx context.Context, userID, walletID string) (*models.Wallet, error)
	UpdateWallet(ctx context.Context, userID, walletID, name string) (*models.Wallet, error)
	DeleteWallet(ctx context.Context, userID, walletID string) error
}

// CategoryServicer defines the contract for category-related business logic.
// Categories returned by the read methods carry recomputed sums.
type CategoryServicer interface {
	CreateCategory(ctx context.Context, userID, name string, categoryType models.CategoryType) (*models.Category, error)
	GetUserCategories(ctx context.Context, userID string, page pagination.PageRequest) (*pagination.PageResponse[models.Category], error)
	GetUserCategoriesByType(ctx context.Context, userID string, categoryType models.CategoryType, page pagination.PageRequest) (*pagination.PageResponse[models.Category], error)
	GetCategoryByID(ctx context.Context, userID, categoryID string) (*models.Category, error)
	UpdateCategory(ctx context.Context, userID, categoryID, name string) (*models.Category, error)
	DeleteCategory(ctx context.Context, userID, categoryID string) error
}

// BudgetElementInput holds the fields of a new budget element.
type BudgetElementInput struct {
	WalletID   string
	CategoryID string
	Name       string
	Amount     decimal.Decimal
	Type       models.EntryType
	// Date defaults to the creation time when nil.
	Date *time.Time
}

// BudgetElementUpdate holds optional changes to a budget element. Changing
// WalletID or CategoryID moves the element to the new parent.
type BudgetElementUpdate struct {
	WalletID   *string
	CategoryID *string
	Name       *string
	Amount     *decimal.Decimal
	Type       *models.EntryType
	Date       *time.Time
}

// BudgetElementFilter holds optional filter parameters for listing budget elements.
type BudgetElementFilter struct {
	WalletID   *string
	CategoryID *string
	Type       *models.EntryType
}

// BudgetElementServicer defines the contract for budget element business logic.
type BudgetElementServicer interface {
	CreateBudgetElement(ctx context.Context, userID string, in BudgetElementInput) (*models.BudgetElement, error)
	GetUserBudgetElements(ctx context.Context, userID string, page pagination.PageRequest, filter BudgetElementFilter) (*pagination.PageResponse[models.BudgetElement], error)
	GetBudgetElementByID(ctx context.Context, userID, elementID string) (*models.BudgetElement, error)
	UpdateBudgetElement(ctx context.Context, userID, elementID string, update BudgetElementUpdate) (*models.BudgetElement, error)
	DeleteBudgetElement(ctx context.Context, userID, elementID string) error
}

// ExportServicer renders a user's budget elements as a spreadsheet.
type ExportServicer interface {
	ExportBudgetElements(ctx context.Context, userID string, filter BudgetElementFilter, w io.Writer) error
}

// MaintenanceServicer exposes repair operations for operators.
type MaintenanceServicer interface {
	RebuildIndex(ctx context.Context, userID string) (int, error)
}

// AuditServicer defines the contract for audit logging.
type AuditServicer interface {
	Log(userID, action, resourceType, resourceID, ipAddress string, changes map[string]interface{})
}
