// Package account keeps the signed-in user: it authenticates against the
// remote service and persists the token and user under the "token" and
// "user" store keys.
package account

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aretw0/triage/internal/logging"
	"github.com/aretw0/triage/pkg/domain"
	"github.com/aretw0/triage/pkg/ports"
)

// Service manages the persisted credentials.
type Service struct {
	remote ports.RemoteService
	store  ports.BlobStore
	logger *slog.Logger
}

type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

func New(remote ports.RemoteService, store ports.BlobStore, opts ...Option) *Service {
	s := &Service{remote: remote, store: store, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Login authenticates and persists the session token.
func (s *Service) Login(ctx context.Context, email, password string) (domain.AuthResult, error) {
	creds := domain.Credentials{Email: strings.TrimSpace(email), Password: password}
	if err := requireField("email", creds.Email); err != nil {
		return domain.AuthResult{}, err
	}
	if err := requireField("password", creds.Password); err != nil {
		return domain.AuthResult{}, err
	}
	res, err := s.remote.Login(ctx, creds)
	if err != nil {
		return domain.AuthResult{}, err
	}
	return res, s.persist(ctx, res)
}

// Register creates an account and signs it in.
func (s *Service) Register(ctx context.Context, creds domain.Credentials) (domain.AuthResult, error) {
	creds.Email = strings.TrimSpace(creds.Email)
	creds.Name = strings.TrimSpace(creds.Name)
	if err := requireField("email", creds.Email); err != nil {
		return domain.AuthResult{}, err
	}
	if err := requireField("password", creds.Password); err != nil {
		return domain.AuthResult{}, err
	}
	res, err := s.remote.Register(ctx, creds)
	if err != nil {
		return domain.AuthResult{}, err
	}
	return res, s.persist(ctx, res)
}

// Logout forgets the token and user. It is idempotent.
func (s *Service) Logout(ctx context.Context) error {
	if err := s.store.Delete(ctx, domain.StoreKeyToken); err != nil {
		return fmt.Errorf("failed to clear token: %w", err)
	}
	if err := s.store.Delete(ctx, domain.StoreKeyUser); err != nil {
		return fmt.Errorf("failed to clear user: %w", err)
	}
	s.logger.Info("signed out")
	return nil
}

// Token returns the persisted token, or "" when signed out.
func (s *Service) Token(ctx context.Context) (string, error) {
	data, err := s.store.Get(ctx, domain.StoreKeyToken)
	if errors.Is(err, domain.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load token: %w", err)
	}
	return string(data), nil
}

// User returns the signed-in user, or nil when signed out.
func (s *Service) User(ctx context.Context) (*domain.User, error) {
	data, err := s.store.Get(ctx, domain.StoreKeyUser)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	var u domain.User
	if err := json.Unmarshal(data, &u); err != nil {
		return nil, fmt.Errorf("failed to decode user: %w", err)
	}
	return &u, nil
}

func (s *Service) persist(ctx context.Context, res domain.AuthResult) error {
	if res.Token == "" {
		return &domain.TransportError{Op: "auth", Err: errors.New("empty token")}
	}
	data, err := json.Marshal(res.User)
	if err != nil {
		return fmt.Errorf("failed to encode user: %w", err)
	}
	if err := s.store.Put(ctx, domain.StoreKeyToken, []byte(res.Token)); err != nil {
		return fmt.Errorf("failed to persist token: %w", err)
	}
	if err := s.store.Put(ctx, domain.StoreKeyUser, data); err != nil {
		return fmt.Errorf("failed to persist user: %w", err)
	}
	s.logger.Info("signed in", "user_id", res.User.ID)
	return nil
}

func requireField(key, v string) error {
	if v == "" {
		return &domain.ValidationError{Key: key, Bound: domain.BoundRequired}
	}
	return nil
}
