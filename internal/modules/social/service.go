// Package social manages linked social platform accounts: CSRF state for the
// OAuth redirect dance and encrypted credential storage. The provider token
// exchange itself happens in an external service.
package social

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/creatorlink/core/internal/models"
	"github.com/creatorlink/core/internal/pkg/encryption"
	"github.com/creatorlink/core/internal/pkg/kv"
	"gorm.io/gorm"
)

const (
	stateKeyPrefix = "oauth_state:"
	stateTTL       = 10 * time.Minute
)

var (
	errUnknownProvider = errors.New("unknown provider")
	errStateMismatch   = errors.New("oauth state invalid or expired")
	errNotLinked       = errors.New("account not linked")
)

var supportedProviders = map[string]bool{
	"instagram": true,
	"youtube":   true,
	"tiktok":    true,
}

type Service struct {
	db  *gorm.DB
	kv  kv.Store
	enc *encryption.Service
}

func NewService(db *gorm.DB, store kv.Store, enc *encryption.Service) *Service {
	return &Service{db: db, kv: store, enc: enc}
}

// BeginLink issues a CSRF state token for the redirect flow. Only the hash is
// stored, TTL-bound in the KV store so it survives restarts and scales
// horizontally.
func (s *Service) BeginLink(ctx context.Context, userID, provider string) (string, error) {
	if !supportedProviders[provider] {
		return "", errUnknownProvider
	}
	state, err := encryption.GenerateOAuthState()
	if err != nil {
		return "", err
	}
	key := stateKey(provider, userID)
	if err := s.kv.Set(ctx, key, encryption.HashState(state), stateTTL); err != nil {
		return "", fmt.Errorf("social: store state: %w", err)
	}
	return state, nil
}

// CompleteLink consumes the state token and stores the provider credentials
// encrypted at rest.
func (s *Service) CompleteLink(ctx context.Context, userID, provider string, dto *LinkDTO) (*models.SocialAccountModel, error) {
	if !supportedProviders[provider] {
		return nil, errUnknownProvider
	}

	key := stateKey(provider, userID)
	stored, err := s.kv.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("social: read state: %w", err)
	}
	if stored == "" || stored != encryption.HashState(dto.State) {
		return nil, errStateMismatch
	}
	// One-shot: the state must not be replayable.
	if err := s.kv.Del(ctx, key); err != nil {
		return nil, fmt.Errorf("social: consume state: %w", err)
	}

	encAccess, err := s.enc.Encrypt(dto.AccessToken)
	if err != nil {
		return nil, err
	}
	encRefresh, err := s.enc.Encrypt(dto.RefreshToken)
	if err != nil {
		return nil, err
	}

	account := models.SocialAccountModel{
		UserID:                userID,
		Provider:              provider,
		ProviderUID:           dto.ProviderUID,
		Username:              dto.Username,
		EncryptedAccessToken:  encAccess,
		EncryptedRefreshToken: encRefresh,
		TokenExpiresAt:        dto.TokenExpiresAt,
	}

	var existing models.SocialAccountModel
	err = s.db.Where("user_id = ? AND provider = ?", userID, provider).First(&existing).Error
	switch {
	case err == nil:
		updates := map[string]interface{}{
			"provider_uid":            account.ProviderUID,
			"username":                account.Username,
			"encrypted_access_token":  account.EncryptedAccessToken,
			"encrypted_refresh_token": account.EncryptedRefreshToken,
			"token_expires_at":        account.TokenExpiresAt,
		}
		if err := s.db.Model(&existing).Updates(updates).Error; err != nil {
			return nil, err
		}
		return &existing, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		if err := s.db.Create(&account).Error; err != nil {
			return nil, err
		}
		return &account, nil
	default:
		return nil, err
	}
}

// AccessToken decrypts the stored access token for a linked account. Failure
// to decrypt is surfaced as-is: it means key mismatch or tampering, never a
// value to fall back from.
func (s *Service) AccessToken(ctx context.Context, userID, provider string) (string, error) {
	var account models.SocialAccountModel
	if err := s.db.Where("user_id = ? AND provider = ?", userID, provider).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", errNotLinked
		}
		return "", err
	}
	return s.enc.Decrypt(account.EncryptedAccessToken)
}

func (s *Service) List(ctx context.Context, userID string) ([]models.SocialAccountModel, error) {
	var accounts []models.SocialAccountModel
	err := s.db.Where("user_id = ?", userID).Order("created_at ASC").Find(&accounts).Error
	return accounts, err
}

func (s *Service) Unlink(ctx context.Context, userID, provider string) error {
	res := s.db.Where("user_id = ? AND provider = ?", userID, provider).
		Delete(&models.SocialAccountModel{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errNotLinked
	}
	return nil
}

func stateKey(provider, userID string) string {
	return stateKeyPrefix + provider + ":" + userID
}
