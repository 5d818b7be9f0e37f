package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// EntryType represents the direction of a budget element
type EntryType string

const (
	EntryTypeIncome  EntryType = "income"
	EntryTypeExpense EntryType = "expense"
)

// BudgetElement is a single income or expense entry. It is a leaf entity
// referencing its user, wallet and category.
type BudgetElement struct {
	Base
	UserID     string          `gorm:"type:uuid;not null;index" json:"user_id"`
	WalletID   string          `gorm:"type:uuid;not null;index" json:"wallet_id"`
	CategoryID string          `gorm:"type:uuid;not null;index" json:"category_id"`
	Name       string          `gorm:"not null" json:"name"`
	Amount     decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"amount"`
	Type       EntryType       `gorm:"not null" json:"type"`
	Date       time.Time       `gorm:"not null" json:"date"`
}

// Kind implements Record.
func (b *BudgetElement) Kind() Kind { return KindBudgetElement }

// OwnerID implements Record.
func (b *BudgetElement) OwnerID() string { return b.UserID }

// Parents implements Child.
func (b *BudgetElement) Parents() []Ref {
	return []Ref{
		{Kind: KindUser, ID: b.UserID},
		{Kind: KindWallet, ID: b.WalletID},
		{Kind: KindCategory, ID: b.CategoryID},
	}
}
