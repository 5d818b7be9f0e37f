package services

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"gorm.io/gorm"

	"pocketbook/internal/models"
	"pocketbook/internal/notify"
	"pocketbook/internal/testutil"
)

type recordingSender struct {
	recipient string
	data      notify.PasswordReset
	calls     int
	err       error
}

func (s *recordingSender) SendPasswordReset(_ context.Context, recipient string, data notify.PasswordReset) error {
	s.calls++
	s.recipient = recipient
	s.data = data
	return s.err
}

func (s *recordingSender) Close() error { return nil }

var _ notify.Sender = (*recordingSender)(nil)

func newPasswordResetService(db *gorm.DB, sender notify.Sender) *passwordResetService {
	s, engine := newTestStore(db)
	svc := NewPasswordResetService(s, NewUserService(s, engine), sender, time.Hour, "http://app.test/reset")
	return svc.(*passwordResetService)
}

func tokenFrom(t *testing.T, resetURL string) string {
	t.Helper()
	u, err := url.Parse(resetURL)
	if err != nil {
		t.Fatalf("invalid reset url %q: %v", resetURL, err)
	}
	token := u.Query().Get("token")
	if token == "" {
		t.Fatalf("reset url %q carries no token", resetURL)
	}
	return token
}

func TestRequestReset(t *testing.T) {
	ctx := context.Background()

	t.Run("sends_link_and_stores_hash", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		sender := &recordingSender{}
		svc := newPasswordResetService(db, sender)

		user := testutil.CreateTestUserWithEmail(t, db, "reset@example.com")
		testutil.AssertNoError(t, svc.RequestReset(ctx, "Reset@Example.com"))

		if sender.calls != 1 || sender.recipient != "reset@example.com" {
			t.Fatalf("expected one message to reset@example.com, got %d to %q", sender.calls, sender.recipient)
		}
		token := tokenFrom(t, sender.data.ResetURL)
		if len(token) != 43 {
			t.Errorf("expected 43 character token, got %d", len(token))
		}

		var stored models.User
		db.First(&stored, "id = ?", user.ID)
		if stored.ResetTokenHash == "" || stored.ResetTokenHash == token {
			t.Error("expected only the token hash to be stored")
		}
		if stored.ResetTokenExpiresAt == nil || !stored.ResetTokenExpiresAt.After(time.Now()) {
			t.Error("expected expiry in the future")
		}
	})

	t.Run("unknown_email_is_silent", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		sender := &recordingSender{}
		svc := newPasswordResetService(db, sender)

		testutil.AssertNoError(t, svc.RequestReset(ctx, "nobody@example.com"))
		if sender.calls != 0 {
			t.Errorf("expected no message, got %d", sender.calls)
		}
	})

	t.Run("sender_failure", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		sender := &recordingSender{err: errors.New("broker down")}
		svc := newPasswordResetService(db, sender)

		testutil.CreateTestUserWithEmail(t, db, "reset@example.com")
		err := svc.RequestReset(ctx, "reset@example.com")
		testutil.AssertAppError(t, err, "INTERNAL_ERROR")
	})
}

func TestResetPassword(t *testing.T) {
	ctx := context.Background()

	t.Run("valid_token", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		sender := &recordingSender{}
		svc := newPasswordResetService(db, sender)
		users := newUserService(db)

		user := testutil.CreateTestUserWithEmail(t, db, "reset@example.com")
		db.Model(&models.User{}).Where("id = ?", user.ID).Updates(map[string]any{
			"failed_login_attempts": 5,
			"refresh_token_hash":    "old",
		})
		testutil.AssertNoError(t, svc.RequestReset(ctx, "reset@example.com"))
		token := tokenFrom(t, sender.data.ResetURL)

		testutil.AssertNoError(t, svc.ResetPassword(ctx, token, "newpassword1"))

		got, err := users.AttemptLogin(ctx, "reset@example.com", "newpassword1")
		testutil.AssertNoError(t, err)
		if got.RefreshTokenHash != "" {
			t.Error("expected refresh token to be revoked")
		}

		err = svc.ResetPassword(ctx, token, "anotherpass1")
		testutil.AssertAppError(t, err, "INVALID_RESET_TOKEN")
	})

	t.Run("expired_token", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		sender := &recordingSender{}
		svc := newPasswordResetService(db, sender)

		testutil.CreateTestUserWithEmail(t, db, "reset@example.com")
		testutil.AssertNoError(t, svc.RequestReset(ctx, "reset@example.com"))
		token := tokenFrom(t, sender.data.ResetURL)

		svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		err := svc.ResetPassword(ctx, token, "newpassword1")
		testutil.AssertAppError(t, err, "INVALID_RESET_TOKEN")
	})

	t.Run("token_redeems_once_under_concurrency", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		sender := &recordingSender{}
		first := newPasswordResetService(db, sender)
		users := newUserService(db)

		testutil.CreateTestUserWithEmail(t, db, "reset@example.com")
		testutil.AssertNoError(t, first.RequestReset(ctx, "reset@example.com"))
		token := tokenFrom(t, sender.data.ResetURL)

		// The second redemption looks the token up, then the first one
		// completes before the second writes.
		second := newPasswordResetService(db, sender)
		second.store = &changedAfterReadStore{Store: second.store, after: func() {
			testutil.AssertNoError(t, first.ResetPassword(ctx, token, "firstpass1"))
		}}
		err := second.ResetPassword(ctx, token, "secondpass1")
		testutil.AssertAppError(t, err, "INVALID_RESET_TOKEN")

		_, err = users.AttemptLogin(ctx, "reset@example.com", "firstpass1")
		testutil.AssertNoError(t, err)
		_, err = users.AttemptLogin(ctx, "reset@example.com", "secondpass1")
		testutil.AssertAppError(t, err, "INVALID_CREDENTIALS")
	})

	t.Run("newer_request_invalidates_looked_up_token", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		sender := &recordingSender{}
		svc := newPasswordResetService(db, sender)

		testutil.CreateTestUserWithEmail(t, db, "reset@example.com")
		testutil.AssertNoError(t, svc.RequestReset(ctx, "reset@example.com"))
		token := tokenFrom(t, sender.data.ResetURL)

		plain := svc.store
		svc.store = &changedAfterReadStore{Store: plain, after: func() {
			reissue := newPasswordResetService(db, &recordingSender{})
			testutil.AssertNoError(t, reissue.RequestReset(ctx, "reset@example.com"))
		}}
		err := svc.ResetPassword(ctx, token, "newpassword1")
		testutil.AssertAppError(t, err, "INVALID_RESET_TOKEN")
		testutil.AssertRowCount(t, db, &models.User{}, 1, "email = ? AND reset_token_hash <> ''", "reset@example.com")
	})

	t.Run("unknown_token", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newPasswordResetService(db, &recordingSender{})

		err := svc.ResetPassword(ctx, "does-not-exist", "newpassword1")
		testutil.AssertAppError(t, err, "INVALID_RESET_TOKEN")
	})

	t.Run("short_password", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newPasswordResetService(db, &recordingSender{})

		err := svc.ResetPassword(ctx, "token", "short")
		testutil.AssertAppError(t, err, "VALIDATION_FAILED")
	})
}
