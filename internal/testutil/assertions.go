package testutil

import (
	"errors"
	"testing"

	apperrors "pocketbook/internal/errors"
	"pocketbook/internal/models"

	"gorm.io/gorm"
)

// AssertAppError checks that err is an *AppError with the expected error code.
func AssertAppError(t *testing.T, err error, expectedCode string) {
	t.Helper()

	if err == nil {
		t.Fatalf("expected AppError with code %q, got nil", expectedCode)
	}

	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *AppError, got %T: %v", err, err)
	}

	if appErr.Code != expectedCode {
		t.Errorf("expected error code %q, got %q (message: %s)", expectedCode, appErr.Code, appErr.Message)
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertMembers checks that the owning set of parent holding children of
// kind child contains exactly want, in order.
func AssertMembers(t *testing.T, db *gorm.DB, parent models.Ref, child models.Kind, want ...string) {
	t.Helper()

	got := []string{}
	err := db.Model(&models.SetEntry{}).
		Where("parent_kind = ? AND parent_id = ? AND child_kind = ?", parent.Kind, parent.ID, child).
		Order("seq ASC").
		Pluck("child_id", &got).Error
	if err != nil {
		t.Fatalf("failed to read %s set of %s %s: %v", child, parent.Kind, parent.ID, err)
	}

	if len(got) != len(want) {
		t.Fatalf("expected %s set of %s %s to be %v, got %v", child, parent.Kind, parent.ID, want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %s set of %s %s to be %v, got %v", child, parent.Kind, parent.ID, want, got)
		}
	}
}

// AssertRowCount checks how many rows of model match the given condition.
func AssertRowCount(t *testing.T, db *gorm.DB, model any, want int64, query string, args ...any) {
	t.Helper()

	var got int64
	if err := db.Model(model).Where(query, args...).Count(&got).Error; err != nil {
		t.Fatalf("failed to count rows: %v", err)
	}
	if got != want {
		t.Errorf("expected %d rows where %s %v, got %d", want, query, args, got)
	}
}
