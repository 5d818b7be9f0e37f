package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"pocketbook/internal/models"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// TestPassword is the plain-text password of every fixture user.
const TestPassword = "password123"

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// CreateTestUser creates a user with a hashed password and unique email.
func CreateTestUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	email := fmt.Sprintf("user%d@test.com", nextID())
	return CreateTestUserWithEmail(t, db, email)
}

// CreateTestUserWithEmail creates a user with the given email.
func CreateTestUserWithEmail(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(TestPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := &models.User{
		Email:     email,
		Password:  string(hash),
		FirstName: "Test",
		LastName:  fmt.Sprintf("User%d", nextID()),
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// CreateTestWallet creates a wallet with the given starting sum and links it
// into the user's wallet set.
func CreateTestWallet(t *testing.T, db *gorm.DB, userID string, sum int64) *models.Wallet {
	t.Helper()

	wallet := &models.Wallet{
		UserID: userID,
		Name:   fmt.Sprintf("Test Wallet %d", nextID()),
		Sum:    decimal.NewFromInt(sum),
	}
	if err := db.Create(wallet).Error; err != nil {
		t.Fatalf("failed to create test wallet: %v", err)
	}
	link(t, db, userID, models.Ref{Kind: models.KindUser, ID: userID}, models.RefOf(wallet))
	return wallet
}

// CreateTestCategory creates a category of the given type and links it into
// the user's category set.
func CreateTestCategory(t *testing.T, db *gorm.DB, userID string, categoryType models.CategoryType) *models.Category {
	t.Helper()

	category := &models.Category{
		UserID: userID,
		Name:   fmt.Sprintf("Test Category %d", nextID()),
		Type:   categoryType,
		Sum:    decimal.Zero,
	}
	if err := db.Create(category).Error; err != nil {
		t.Fatalf("failed to create test category: %v", err)
	}
	link(t, db, userID, models.Ref{Kind: models.KindUser, ID: userID}, models.RefOf(category))
	return category
}

// CreateTestBudgetElement creates an expense element and links it into the
// sets of its user, wallet and category.
func CreateTestBudgetElement(t *testing.T, db *gorm.DB, userID, walletID, categoryID string, amount int64) *models.BudgetElement {
	t.Helper()

	element := &models.BudgetElement{
		UserID:     userID,
		WalletID:   walletID,
		CategoryID: categoryID,
		Name:       fmt.Sprintf("Test Element %d", nextID()),
		Amount:     decimal.NewFromInt(amount),
		Type:       models.EntryTypeExpense,
		Date:       time.Now().UTC(),
	}
	if err := db.Create(element).Error; err != nil {
		t.Fatalf("failed to create test budget element: %v", err)
	}
	for _, parent := range element.Parents() {
		link(t, db, userID, parent, models.RefOf(element))
	}
	return element
}

func link(t *testing.T, db *gorm.DB, owner string, parent, child models.Ref) {
	t.Helper()

	entry := &models.SetEntry{
		OwnerID:    owner,
		ParentKind: parent.Kind,
		ParentID:   parent.ID,
		ChildKind:  child.Kind,
		ChildID:    child.ID,
	}
	if err := db.Create(entry).Error; err != nil {
		t.Fatalf("failed to link %s %s into %s %s: %v", child.Kind, child.ID, parent.Kind, parent.ID, err)
	}
}
