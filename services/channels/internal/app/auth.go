package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"quotecards/internal/util"
	"quotecards/pkg/auth"
	"quotecards/pkg/domain"
	"quotecards/pkg/store"
)

// Register creates a user, stores the password hash and logs the user in.
func (a *App) Register(ctx context.Context, username, password string) (domain.User, string, error) {
	username = strings.TrimSpace(username)
	if err := auth.ValidateCredentials(username, password); err != nil {
		return domain.User{}, "", fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if _, exists, err := a.store.GetUserByUsername(ctx, username); err != nil {
		return domain.User{}, "", err
	} else if exists {
		return domain.User{}, "", store.ErrUserExists
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("hash password: %w", err)
	}
	user := domain.User{
		ID:           util.NewID(),
		Username:     username,
		CreatedAt:    a.now(),
		LikedCardIDs: []string{},
	}
	// The hash goes first: a user record without a password would lock the username forever.
	// Whatever was stored under the name before is put back if the user record cannot be added.
	prev, hadPrev, err := a.passwords.Get(ctx, username)
	if err != nil {
		return domain.User{}, "", err
	}
	if err := a.passwords.Set(ctx, username, hash); err != nil {
		return domain.User{}, "", err
	}
	if err := a.store.AddUser(ctx, user); err != nil {
		restore := func() error { return a.passwords.Delete(ctx, username) }
		if hadPrev {
			restore = func() error { return a.passwords.Set(ctx, username, prev) }
		}
		if rerr := restore(); rerr != nil {
			util.LoggerFromContext(ctx).Warn("password rollback failed", "err", rerr)
		}
		return domain.User{}, "", err
	}
	util.LoggerFromContext(ctx).Info("user registered", "user_id", user.ID)
	return a.startSession(ctx, user)
}

// Login checks the password and points the session at the user. A legacy password encoding is
// upgraded to bcrypt on success.
func (a *App) Login(ctx context.Context, username, password string) (domain.User, string, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return domain.User{}, "", fmt.Errorf("%w: username and password required", ErrInvalidInput)
	}
	user, ok, err := a.store.GetUserByUsername(ctx, username)
	if err != nil {
		return domain.User{}, "", err
	}
	if !ok {
		return domain.User{}, "", ErrUserNotFound
	}
	stored, ok, err := a.passwords.Get(ctx, username)
	if err != nil {
		return domain.User{}, "", err
	}
	if !ok || !auth.CheckPassword(password, stored) {
		return domain.User{}, "", ErrIncorrectPassword
	}
	if auth.NeedsRehash(stored) {
		if hash, err := auth.HashPassword(password); err == nil {
			if err := a.passwords.Set(ctx, username, hash); err != nil {
				util.LoggerFromContext(ctx).Warn("password rehash failed", "user_id", user.ID, "err", err)
			}
		}
	}
	return a.startSession(ctx, user)
}

func (a *App) startSession(ctx context.Context, user domain.User) (domain.User, string, error) {
	if err := a.store.SetCurrentUser(ctx, user.ID); err != nil {
		return domain.User{}, "", err
	}
	token, err := a.sessions.Issue(user.ID)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("issue session: %w", err)
	}
	return user, token, nil
}

// Logout revokes token and clears the current-user pointer.
func (a *App) Logout(ctx context.Context, token string) error {
	if err := a.sessions.Revoke(ctx, token); err != nil {
		util.LoggerFromContext(ctx).Warn("session revoke failed", "err", err)
	}
	return a.store.SetCurrentUser(ctx, "")
}

// UserFromToken resolves a session token to its user.
func (a *App) UserFromToken(ctx context.Context, token string) (domain.User, error) {
	userID, err := a.sessions.Verify(ctx, token)
	if err != nil {
		return domain.User{}, ErrUnauthorized
	}
	user, ok, err := a.store.GetUser(ctx, userID)
	if err != nil {
		return domain.User{}, err
	}
	if !ok {
		return domain.User{}, ErrUnauthorized
	}
	return user, nil
}

// CurrentUser returns the user the stored session pointer refers to.
func (a *App) CurrentUser(ctx context.Context) (domain.User, bool, error) {
	return a.store.CurrentUser(ctx)
}

func isNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}
