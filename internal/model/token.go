package model

import "time"

// TokenType は検証トークンの用途を表す。
type TokenType string

const (
	// TokenTypeEmailVerification はメールアドレス確認用トークン。
	TokenTypeEmailVerification TokenType = "email_verification"
)

// VerificationToken は単回使用の検証トークンを表す。
// (identifier, type) の組み合わせごとに有効なトークンは最大1件。
// 再送時は同じ組み合わせの既存トークンを上書きする。
type VerificationToken struct {
	Token      string
	Identifier string
	Type       TokenType
	Expires    time.Time
}

// IsExpired は有効期限切れかどうかを返す。
func (t *VerificationToken) IsExpired(now time.Time) bool {
	return !t.Expires.After(now)
}
