package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"net/url"
	"time"

	"golang.org/x/crypto/bcrypt"

	apperrors "pocketbook/internal/errors"
	"pocketbook/internal/logger"
	"pocketbook/internal/middleware"
	"pocketbook/internal/models"
	"pocketbook/internal/notify"
	"pocketbook/internal/store"
)

const resetTokenBytes = 32

// passwordResetService issues single-use password reset tokens. Only the
// SHA-256 hash of a token is stored.
type passwordResetService struct {
	store   store.Store
	users   UserServicer
	sender  notify.Sender
	ttl     time.Duration
	urlBase string
	now     func() time.Time
}

// NewPasswordResetService creates a new PasswordResetServicer. Reset links
// point at urlBase with the token in the "token" query parameter.
func NewPasswordResetService(s store.Store, users UserServicer, sender notify.Sender, ttl time.Duration, urlBase string) PasswordResetServicer {
	return &passwordResetService{
		store:   s,
		users:   users,
		sender:  sender,
		ttl:     ttl,
		urlBase: urlBase,
		now:     time.Now,
	}
}

// RequestReset issues a token for the user with the given email and hands
// the reset link to the notification sender.
func (s *passwordResetService) RequestReset(ctx context.Context, email string) error {
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if apperrors.KindOf(err) == apperrors.KindNotFound {
			logger.Get().Infow("Password reset requested for unknown email")
			return nil
		}
		return err
	}

	token, err := newResetToken()
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	expiresAt := s.now().Add(s.ttl)

	err = s.store.UpdateFields(ctx, models.KindUser, user.ID, map[string]any{
		"reset_token_hash":       middleware.HashToken(token),
		"reset_token_expires_at": expiresAt,
	})
	if errors.Is(err, store.ErrNotFound) {
		logger.Get().Infow("Password reset requested for deleted user")
		return nil
	}
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	data := notify.PasswordReset{
		FirstName: user.FirstName,
		ResetURL:  s.resetURL(token),
		ExpiresAt: expiresAt,
	}
	if err := s.sender.SendPasswordReset(ctx, user.Email, data); err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

// ResetPassword replaces the password of the user holding token. The token
// is consumed, and any failed-login lock and refresh token are cleared.
func (s *passwordResetService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if token == "" {
		return apperrors.ErrInvalidResetToken
	}
	if len(newPassword) < 8 {
		return apperrors.WithFields(apperrors.ErrValidationFailed, map[string]string{
			"password": "must be at least 8 characters",
		})
	}

	tokenHash := middleware.HashToken(token)
	recs, err := s.store.FindMany(ctx, models.KindUser, store.Filter{
		Where: map[string]any{"reset_token_hash": tokenHash},
		Limit: 1,
	})
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	users := store.Collect[*models.User](recs)
	if len(users) == 0 {
		return apperrors.ErrInvalidResetToken
	}
	user := users[0]
	if user.ResetTokenExpiresAt == nil || !user.ResetTokenExpiresAt.After(s.now()) {
		return apperrors.ErrInvalidResetToken
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	// The token is consumed only if it is still the stored one; a
	// concurrent redemption or a newer request leaves nothing to match.
	err = s.store.UpdateFields(ctx, models.KindUser, user.ID, map[string]any{
		"password":               string(hashedPassword),
		"reset_token_hash":       "",
		"reset_token_expires_at": nil,
		"refresh_token_hash":     "",
		"failed_login_attempts":  0,
		"locked_until":           nil,
	}, store.Where("reset_token_hash = ?", tokenHash))
	if errors.Is(err, store.ErrNotFound) {
		return apperrors.ErrInvalidResetToken
	}
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

func (s *passwordResetService) resetURL(token string) string {
	u, err := url.Parse(s.urlBase)
	if err != nil {
		return s.urlBase + "?token=" + url.QueryEscape(token)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String()
}

func newResetToken() (string, error) {
	b := make([]byte, resetTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
