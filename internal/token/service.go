// Package token は単回使用の検証トークンの発行と検証を提供する。
package token

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/nesafrica/endorse/internal/model"
	"github.com/nesafrica/endorse/internal/repository"
)

// tokenBytes はトークンのエントロピー長（バイト）。256ビット。
const tokenBytes = 32

// Service は検証トークンの発行・検証・無効化を担うサービス層。
// トークンの発行と無効化はこのサービスのみが行う。
type Service struct {
	repo repository.TokenRepository
	now  func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(repo repository.TokenRepository) *Service {
	return &Service{
		repo: repo,
		now:  time.Now,
	}
}

// Generate は暗号学的に安全なランダムトークンを発行し、
// (identifier, type)をキーに保存する。同じキーの既存トークンは上書きされ、
// 以後の有効性を失う（再送は置き換え）。発行したトークン文字列を返す。
func (s *Service) Generate(ctx context.Context, identifier string, typ model.TokenType, ttl time.Duration) (string, error) {
	raw := make([]byte, tokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to generate random token: %w", err)
	}
	value := hex.EncodeToString(raw)

	t := &model.VerificationToken{
		Token:      value,
		Identifier: identifier,
		Type:       typ,
		Expires:    s.now().Add(ttl),
	}

	if err := s.repo.Upsert(ctx, t); err != nil {
		return "", fmt.Errorf("failed to store verification token: %w", err)
	}

	return value, nil
}

// Verify はtoken・identifier・typeの全てに一致し有効期限内のトークンが
// 存在するかどうかを返す。検証に成功してもトークンは削除しない。
// 単回使用にしたい呼び出し側は成功後に明示的にDeleteを呼ぶこと。
// 「存在しない」はエラーではなくfalseとして返す。
func (s *Service) Verify(ctx context.Context, token, identifier string, typ model.TokenType) (bool, error) {
	found, err := s.repo.FindLive(ctx, token, identifier, typ, s.now())
	if err != nil {
		return false, fmt.Errorf("failed to verify token: %w", err)
	}

	return found != nil, nil
}

// Delete は(identifier, type)に一致するトークンを全て削除する。
// 対象が存在しなくてもエラーにしない（冪等）。
func (s *Service) Delete(ctx context.Context, identifier string, typ model.TokenType) error {
	if err := s.repo.DeleteByIdentifierAndType(ctx, identifier, typ); err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}

	return nil
}
