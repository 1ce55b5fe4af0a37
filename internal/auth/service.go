package auth

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/crewdeck-platform/crewdeck/internal/claims"
	"github.com/crewdeck-platform/crewdeck/internal/plan"
)

// Service issues and revokes token pairs. Refresh tokens are one-shot:
// each refresh revokes the presented token and mints a replacement, with
// the live set tracked in Redis under refresh:<account>:<token-id>.
type Service struct {
	jwt   *JWTManager
	redis redis.Cmdable
}

func NewService(jwt *JWTManager, redisClient redis.Cmdable) *Service {
	return &Service{
		jwt:   jwt,
		redis: redisClient,
	}
}

func (s *Service) GenerateTokens(ctx context.Context, accountID, email string, tier plan.Tier) (*TokenPair, error) {
	pair, tokenID, err := s.jwt.GenerateTokenPair(accountID, email, tier)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("refresh:%s:%s", accountID, tokenID)
	if err := s.redis.Set(ctx, key, "1", s.jwt.RefreshExpiry()).Err(); err != nil {
		return nil, fmt.Errorf("storing refresh token: %w", err)
	}

	return pair, nil
}

// RefreshTokens validates and revokes the presented refresh token, then
// mints a new pair. The caller supplies fresh email and plan values so
// the new access token reflects the account's current state.
func (s *Service) RefreshTokens(ctx context.Context, refreshToken, email string, tier plan.Tier) (*TokenPair, error) {
	rc, err := s.jwt.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, fmt.Errorf("invalid refresh token: %w", err)
	}

	key := fmt.Sprintf("refresh:%s:%s", rc.AccountID, rc.TokenID)
	exists, err := s.redis.Exists(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("checking refresh token: %w", err)
	}
	if exists == 0 {
		return nil, fmt.Errorf("refresh token revoked")
	}

	s.redis.Del(ctx, key)

	return s.GenerateTokens(ctx, rc.AccountID, email, tier)
}

// ParseRefreshToken validates the token signature and expiry without
// touching the revocation set. Handlers use it to learn the account id
// before loading the account.
func (s *Service) ParseRefreshToken(refreshToken string) (*RefreshClaims, error) {
	return s.jwt.ValidateRefreshToken(refreshToken)
}

// Logout revokes every live refresh token for the account.
func (s *Service) Logout(ctx context.Context, accountID string) error {
	pattern := fmt.Sprintf("refresh:%s:*", accountID)
	iter := s.redis.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		s.redis.Del(ctx, iter.Val())
	}
	return iter.Err()
}

func (s *Service) ValidateAccessToken(token string) (*claims.Claims, error) {
	return s.jwt.ValidateAccessToken(token)
}
