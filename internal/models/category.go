package models

import "github.com/shopspring/decimal"

// CategoryType represents the type of category
type CategoryType string

const (
	CategoryTypeIncome  CategoryType = "income"
	CategoryTypeExpense CategoryType = "expense"
)

// Category groups budget elements. Sum is a read-time projection of the
// category's element amounts; see the aggregation package.
type Category struct {
	Base
	UserID string          `gorm:"type:uuid;not null;index" json:"user_id"`
	Name   string          `gorm:"not null" json:"name"`
	Type   CategoryType    `gorm:"not null" json:"type"`
	Sum    decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"sum"`

	BudgetElements []string `gorm:"-" json:"budget_elements"`
}

// Kind implements Record.
func (c *Category) Kind() Kind { return KindCategory }

// OwnerID implements Record.
func (c *Category) OwnerID() string { return c.UserID }

// Parents implements Child.
func (c *Category) Parents() []Ref {
	return []Ref{{Kind: KindUser, ID: c.UserID}}
}

// ChildKinds implements Parent.
func (c *Category) ChildKinds() []Kind { return []Kind{KindBudgetElement} }

// SetMembers implements Parent.
func (c *Category) SetMembers(child Kind, ids []string) {
	if child == KindBudgetElement {
		c.BudgetElements = idsOrEmpty(ids)
	}
}
