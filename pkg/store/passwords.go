package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// PasswordStore keeps the username to password-hash map under its own key, apart from the
// document so that document dumps never carry credentials.
type PasswordStore struct {
	repo   Repository
	logger *slog.Logger
	mu     sync.Mutex
}

func NewPasswordStore(repo Repository, logger *slog.Logger) *PasswordStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PasswordStore{repo: repo, logger: logger}
}

func (p *PasswordStore) load(ctx context.Context) (map[string]string, error) {
	raw, ok, err := p.repo.Get(ctx, PasswordsKey)
	if err != nil {
		return nil, fmt.Errorf("read passwords: %w", err)
	}
	out := map[string]string{}
	if !ok || len(raw) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		p.logger.Warn("stored password map is corrupt, starting empty", "err", err)
		return map[string]string{}, nil
	}
	return out, nil
}

// Get returns the stored hash for username.
func (p *PasswordStore) Get(ctx context.Context, username string) (string, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	m, err := p.load(ctx)
	if err != nil {
		return "", false, err
	}
	hash, ok := m[username]
	return hash, ok, nil
}

// Set stores hash for username, replacing any previous value. A full backend reports
// ErrStorageFull; the password map has no media to drop.
func (p *PasswordStore) Set(ctx context.Context, username, hash string) error {
	return p.modify(ctx, func(m map[string]string) { m[username] = hash })
}

// Delete forgets username. Deleting an unknown name is a no-op.
func (p *PasswordStore) Delete(ctx context.Context, username string) error {
	return p.modify(ctx, func(m map[string]string) { delete(m, username) })
}

func (p *PasswordStore) modify(ctx context.Context, fn func(map[string]string)) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	m, err := p.load(ctx)
	if err != nil {
		return err
	}
	fn(m)
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode passwords: %w", err)
	}
	if err := p.repo.Put(ctx, PasswordsKey, data); err != nil {
		if errors.Is(err, ErrQuotaExceeded) {
			return fmt.Errorf("%w: %v", ErrStorageFull, err)
		}
		return fmt.Errorf("write passwords: %w", err)
	}
	return nil
}
