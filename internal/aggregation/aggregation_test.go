package aggregation_test

import (
	"context"
	"testing"

	"pocketbook/internal/aggregation"
	"pocketbook/internal/models"
	"pocketbook/internal/store"
	"pocketbook/internal/testutil"

	"github.com/shopspring/decimal"
)

func TestRecomputeSums(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	ctx := context.Background()

	s := store.New(db, store.Options{})
	svc := aggregation.NewService(s)

	user := testutil.CreateTestUser(t, db)
	wallet := testutil.CreateTestWallet(t, db, user.ID, 0)
	food := testutil.CreateTestCategory(t, db, user.ID, models.CategoryTypeExpense)
	rent := testutil.CreateTestCategory(t, db, user.ID, models.CategoryTypeExpense)
	empty := testutil.CreateTestCategory(t, db, user.ID, models.CategoryTypeIncome)

	testutil.CreateTestBudgetElement(t, db, user.ID, wallet.ID, food.ID, 12)
	testutil.CreateTestBudgetElement(t, db, user.ID, wallet.ID, food.ID, 30)
	testutil.CreateTestBudgetElement(t, db, user.ID, wallet.ID, rent.ID, 900)

	// A stored sum that an empty category must keep.
	if err := db.Model(empty).Update("sum", decimal.NewFromInt(7)).Error; err != nil {
		t.Fatalf("failed to seed sum: %v", err)
	}

	load := func() []*models.Category {
		recs, err := s.FindMany(ctx, models.KindCategory, store.ByUser(user.ID))
		testutil.AssertNoError(t, err)
		return store.Collect[*models.Category](recs)
	}

	categories := load()
	testutil.AssertNoError(t, svc.RecomputeSums(ctx, categories))

	want := map[string]decimal.Decimal{
		food.ID:  decimal.NewFromInt(42),
		rent.ID:  decimal.NewFromInt(900),
		empty.ID: decimal.NewFromInt(7),
	}
	for _, c := range categories {
		if !c.Sum.Equal(want[c.ID]) {
			t.Errorf("category %s: expected sum %s, got %s", c.Name, want[c.ID], c.Sum)
		}
	}

	t.Run("idempotent", func(t *testing.T) {
		testutil.AssertNoError(t, svc.RecomputeSums(ctx, categories))
		for _, c := range categories {
			if !c.Sum.Equal(want[c.ID]) {
				t.Errorf("category %s: expected sum %s after second run, got %s", c.Name, want[c.ID], c.Sum)
			}
		}
	})

	t.Run("nothing written back", func(t *testing.T) {
		for _, c := range load() {
			if c.ID == food.ID && !c.Sum.IsZero() {
				t.Errorf("expected stored sum to stay zero, got %s", c.Sum)
			}
		}
	})

	t.Run("no categories", func(t *testing.T) {
		testutil.AssertNoError(t, svc.RecomputeSums(ctx, nil))
	})
}

func TestTotals(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	ctx := context.Background()

	svc := aggregation.NewService(store.New(db, store.Options{}))

	user := testutil.CreateTestUser(t, db)
	wallet := testutil.CreateTestWallet(t, db, user.ID, 0)
	category := testutil.CreateTestCategory(t, db, user.ID, models.CategoryTypeExpense)
	other := testutil.CreateTestCategory(t, db, user.ID, models.CategoryTypeExpense)
	testutil.CreateTestBudgetElement(t, db, user.ID, wallet.ID, category.ID, 5)
	testutil.CreateTestBudgetElement(t, db, user.ID, wallet.ID, other.ID, 8)

	totals, err := svc.Totals(ctx, []string{category.ID})
	testutil.AssertNoError(t, err)
	if len(totals) != 1 || !totals[category.ID].Equal(decimal.NewFromInt(5)) {
		t.Errorf("expected only the requested category, got %v", totals)
	}
}
