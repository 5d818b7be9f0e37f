package models

import "time"

// User represents the user model in the database
type User struct {
	Base
	Email               string     `gorm:"uniqueIndex;not null" json:"email"`
	Password            string     `gorm:"not null" json:"-"`
	FirstName           string     `gorm:"not null" json:"first_name"`
	LastName            string     `gorm:"not null" json:"last_name"`
	PhoneNumber         string     `json:"phone_number,omitempty"`
	Country             string     `json:"country,omitempty"`
	Image               string     `json:"image,omitempty"`
	RefreshTokenHash    string     `gorm:"size:64" json:"-"`
	ResetTokenHash      string     `gorm:"size:64;index" json:"-"`
	ResetTokenExpiresAt *time.Time `json:"-"`
	FailedLoginAttempts int        `gorm:"default:0" json:"-"`
	LockedUntil         *time.Time `json:"-"`
	LastLoginAt         *time.Time `json:"last_login_at,omitempty"`

	// Owning sets, loaded from the owning_sets index.
	Wallets        []string `gorm:"-" json:"wallets"`
	Categories     []string `gorm:"-" json:"categories"`
	BudgetElements []string `gorm:"-" json:"budget_elements"`
}

// Kind implements Record.
func (u *User) Kind() Kind { return KindUser }

// OwnerID implements Record; a user owns itself.
func (u *User) OwnerID() string { return u.ID }

// ChildKinds implements Parent.
func (u *User) ChildKinds() []Kind {
	return []Kind{KindWallet, KindCategory, KindBudgetElement}
}

// SetMembers implements Parent.
func (u *User) SetMembers(child Kind, ids []string) {
	switch child {
	case KindWallet:
		u.Wallets = idsOrEmpty(ids)
	case KindCategory:
		u.Categories = idsOrEmpty(ids)
	case KindBudgetElement:
		u.BudgetElements = idsOrEmpty(ids)
	}
}
