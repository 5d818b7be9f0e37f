package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	apperrors "pocketbook/internal/errors"
	"pocketbook/internal/integrity"
	"pocketbook/internal/models"
	"pocketbook/internal/store"
)

const (
	maxFailedLoginAttempts = 5
	lockoutDuration        = 15 * time.Minute
)

// userService handles user-related business logic.
type userService struct {
	store  store.Store
	engine *integrity.Engine
	now    func() time.Time
}

// NewUserService creates a new UserServicer.
func NewUserService(s store.Store, engine *integrity.Engine) UserServicer {
	return &userService{store: s, engine: engine, now: time.Now}
}

// CreateUser registers a new user
func (s *userService) CreateUser(ctx context.Context, email, password, firstName, lastName string) (*models.User, error) {
	if email == "" || password == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "email and password are required")
	}
	email = strings.ToLower(strings.TrimSpace(email))

	count, err := s.store.Count(ctx, models.KindUser, store.Filter{Where: map[string]any{"email": email}})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if count > 0 {
		return nil, apperrors.ErrDuplicateEmail
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	user := &models.User{
		Email:          email,
		Password:       string(hashedPassword),
		FirstName:      firstName,
		LastName:       lastName,
		Wallets:        []string{},
		Categories:     []string{},
		BudgetElements: []string{},
	}

	if err := s.store.Save(ctx, user); err != nil {
		// Lost a race with a concurrent sign-up for the same address.
		if store.IsUniqueViolation(err) {
			return nil, apperrors.ErrDuplicateEmail
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	return user, nil
}

// GetUserByEmail retrieves a user by email
func (s *userService) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	recs, err := s.store.FindMany(ctx, models.KindUser, store.Filter{
		Where: map[string]any{"email": strings.ToLower(strings.TrimSpace(email))},
		Limit: 1,
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	users := store.Collect[*models.User](recs)
	if len(users) == 0 {
		return nil, apperrors.ErrUserNotFound
	}
	return users[0], nil
}

// GetUserByID retrieves a user by ID together with its owning sets.
func (s *userService) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	rec, err := s.engine.Lookup(ctx, "", models.Ref{Kind: models.KindUser, ID: id})
	if err != nil {
		return nil, err
	}
	return rec.(*models.User), nil
}

// VerifyPassword checks if the provided password matches the stored hash
func (s *userService) VerifyPassword(user *models.User, password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password))
	return err == nil
}

// AttemptLogin verifies credentials and tracks failed attempts. After
// maxFailedLoginAttempts consecutive failures the account is locked for
// lockoutDuration.
func (s *userService) AttemptLogin(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.GetUserByEmail(ctx, email)
	if err != nil {
		if apperrors.KindOf(err) == apperrors.KindNotFound {
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, err
	}

	now := s.now()
	if user.LockedUntil != nil && user.LockedUntil.After(now) {
		return nil, apperrors.ErrAccountLocked
	}

	if !s.VerifyPassword(user, password) {
		// Count in the database so concurrent failures all register.
		if err := s.updateUser(ctx, user.ID, map[string]any{
			"failed_login_attempts": store.Raw("failed_login_attempts + 1"),
		}); err != nil {
			return nil, err
		}
		err := s.store.UpdateFields(ctx, models.KindUser, user.ID,
			map[string]any{"locked_until": now.Add(lockoutDuration)},
			store.Where("failed_login_attempts >= ?", maxFailedLoginAttempts))
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil, apperrors.ErrInvalidCredentials
	}

	if err := s.updateUser(ctx, user.ID, map[string]any{
		"failed_login_attempts": 0,
		"locked_until":          nil,
		"last_login_at":         now,
	}); err != nil {
		return nil, err
	}
	user.FailedLoginAttempts = 0
	user.LockedUntil = nil
	user.LastLoginAt = &now
	return user, nil
}

// StoreRefreshTokenHash saves the SHA-256 hash of the user's current refresh token.
func (s *userService) StoreRefreshTokenHash(ctx context.Context, userID, tokenHash string) error {
	return s.updateUser(ctx, userID, map[string]any{"refresh_token_hash": tokenHash})
}

// GetRefreshTokenHash returns the stored refresh token hash of a user.
func (s *userService) GetRefreshTokenHash(ctx context.Context, userID string) (string, error) {
	user, err := s.GetUserByID(ctx, userID)
	if err != nil {
		return "", err
	}
	return user.RefreshTokenHash, nil
}

// UpdateProfile changes the profile fields present in update.
func (s *userService) UpdateProfile(ctx context.Context, userID string, update ProfileUpdate) (*models.User, error) {
	fields := map[string]any{}
	if update.FirstName != nil {
		if strings.TrimSpace(*update.FirstName) == "" {
			return nil, apperrors.WithFields(apperrors.ErrValidationFailed, map[string]string{"first_name": "must not be empty"})
		}
		fields["first_name"] = *update.FirstName
	}
	if update.LastName != nil {
		if strings.TrimSpace(*update.LastName) == "" {
			return nil, apperrors.WithFields(apperrors.ErrValidationFailed, map[string]string{"last_name": "must not be empty"})
		}
		fields["last_name"] = *update.LastName
	}
	if update.PhoneNumber != nil {
		fields["phone_number"] = *update.PhoneNumber
	}
	if update.Country != nil {
		fields["country"] = *update.Country
	}

	if len(fields) > 0 {
		if err := s.updateUser(ctx, userID, fields); err != nil {
			return nil, err
		}
	}
	return s.GetUserByID(ctx, userID)
}

// SetAvatar stores path as the user's avatar image.
func (s *userService) SetAvatar(ctx context.Context, userID, path string) (string, error) {
	return s.swapImage(ctx, userID, path)
}

// ClearAvatar removes the user's avatar image.
func (s *userService) ClearAvatar(ctx context.Context, userID string) (string, error) {
	return s.swapImage(ctx, userID, "")
}

func (s *userService) swapImage(ctx context.Context, userID, path string) (string, error) {
	var previous string
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		rec, err := tx.FindForUpdate(ctx, models.KindUser, userID)
		if err != nil {
			return err
		}
		previous = rec.(*models.User).Image
		return tx.UpdateFields(ctx, models.KindUser, userID, map[string]any{"image": path})
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", apperrors.ErrUserNotFound
		}
		return "", apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return previous, nil
}

// updateUser writes only the given columns of a user row.
func (s *userService) updateUser(ctx context.Context, userID string, fields map[string]any) error {
	if err := s.store.UpdateFields(ctx, models.KindUser, userID, fields); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperrors.ErrUserNotFound
		}
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

// DeleteUser removes the user and everything it owns.
func (s *userService) DeleteUser(ctx context.Context, userID string) (*AccountDeletion, error) {
	user, err := s.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	result, err := s.engine.DeleteUserCascade(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &AccountDeletion{CascadeResult: result, Image: user.Image}, nil
}
