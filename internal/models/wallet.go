package models

import "github.com/shopspring/decimal"

// Wallet is a money container owned by a user. Sum holds the balance supplied
// at creation.
type Wallet struct {
	Base
	UserID string          `gorm:"type:uuid;not null;index" json:"user_id"`
	Name   string          `gorm:"not null" json:"name"`
	Sum    decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"sum"`

	BudgetElements []string `gorm:"-" json:"budget_elements"`
}

// Kind implements Record.
func (w *Wallet) Kind() Kind { return KindWallet }

// OwnerID implements Record.
func (w *Wallet) OwnerID() string { return w.UserID }

// Parents implements Child.
func (w *Wallet) Parents() []Ref {
	return []Ref{{Kind: KindUser, ID: w.UserID}}
}

// ChildKinds implements Parent.
func (w *Wallet) ChildKinds() []Kind { return []Kind{KindBudgetElement} }

// SetMembers implements Parent.
func (w *Wallet) SetMembers(child Kind, ids []string) {
	if child == KindBudgetElement {
		w.BudgetElements = idsOrEmpty(ids)
	}
}
