package service

import (
	"context"
	"strings"

	apperrors "github.com/nft3d-scanner/internal/errors"
	"github.com/nft3d-scanner/internal/logging"
)

// CredentialStore persists the provider API key
type CredentialStore interface {
	LoadCredential(ctx context.Context) (string, error)
	SaveCredential(ctx context.Context, apiKey string) error
}

// CredentialReloader accepts a new provider API key
type CredentialReloader interface {
	ReloadCredential(apiKey string)
	HasCredential() bool
}

// MemoryClearer drops the fast cache tier
type MemoryClearer interface {
	ClearMemory()
}

// CredentialService manages the provider API key
type CredentialService struct {
	store  CredentialStore
	client CredentialReloader
	cache  MemoryClearer
	logger *logging.Logger
}

// NewCredentialService creates a credential service
func NewCredentialService(store CredentialStore, client CredentialReloader, cache MemoryClearer, logger *logging.Logger) *CredentialService {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &CredentialService{
		store:  store,
		client: client,
		cache:  cache,
		logger: logger.Component("credential"),
	}
}

// Init loads the stored key into the client. When nothing is stored and a
// fallback key is given, the fallback is saved and used.
func (s *CredentialService) Init(ctx context.Context, fallback string) error {
	stored, err := s.store.LoadCredential(ctx)
	if err != nil {
		return apperrors.NewDatabaseError("load credential", err)
	}
	if stored != "" {
		s.client.ReloadCredential(stored)
		s.logger.Info("Loaded stored provider credential")
		return nil
	}
	if fallback = strings.TrimSpace(fallback); fallback == "" {
		s.logger.Warn("No provider credential configured; discovery will fail until one is set")
		return nil
	}
	if err := s.store.SaveCredential(ctx, fallback); err != nil {
		return apperrors.NewDatabaseError("save credential", err)
	}
	s.client.ReloadCredential(fallback)
	s.logger.Info("Seeded provider credential from environment")
	return nil
}

// Update saves a new key, reloads the client with it (which resets the
// shared backoff) and clears the fast cache tier.
func (s *CredentialService) Update(ctx context.Context, apiKey string) error {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return apperrors.NewInvalidParameterError("apiKey", "must not be empty")
	}
	if err := s.store.SaveCredential(ctx, apiKey); err != nil {
		return apperrors.NewDatabaseError("save credential", err)
	}
	s.client.ReloadCredential(apiKey)
	s.cache.ClearMemory()
	s.logger.Info("Provider credential updated")
	return nil
}

// Configured reports whether the client holds a key
func (s *CredentialService) Configured() bool {
	return s.client.HasCredential()
}
