package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/nesafrica/endorse/internal/model"
)

// PostgresTokenRepo はPostgreSQLを使用した検証トークンリポジトリ。
type PostgresTokenRepo struct {
	db *sql.DB
}

// NewPostgresTokenRepo はPostgresTokenRepoを生成する。
func NewPostgresTokenRepo(db *sql.DB) *PostgresTokenRepo {
	return &PostgresTokenRepo{db: db}
}

// Upsert は(identifier, type)をキーにトークンを挿入または上書きする。
// 主キー衝突時は既存行のtokenとexpiresを新しい値で置き換える。
func (r *PostgresTokenRepo) Upsert(ctx context.Context, token *model.VerificationToken) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO verification_tokens (token, identifier, type, expires)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (identifier, type)
		 DO UPDATE SET token = EXCLUDED.token, expires = EXCLUDED.expires`,
		token.Token, token.Identifier, string(token.Type), token.Expires,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert verification token: %w", err)
	}

	return nil
}

// FindLive はtoken・identifier・typeの全てに一致し、有効期限内のトークンを返す。
// 期限切れトークンはこの読み取りで常に除外される。見つからない場合はnilを返す。
func (r *PostgresTokenRepo) FindLive(ctx context.Context, token, identifier string, typ model.TokenType, now time.Time) (*model.VerificationToken, error) {
	t := &model.VerificationToken{}
	var tokenType string

	err := r.db.QueryRowContext(ctx,
		`SELECT token, identifier, type, expires FROM verification_tokens
		 WHERE token = $1 AND identifier = $2 AND type = $3 AND expires > $4`,
		token, identifier, string(typ), now,
	).Scan(&t.Token, &t.Identifier, &tokenType, &t.Expires)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find verification token: %w", err)
	}

	t.Type = model.TokenType(tokenType)

	return t, nil
}

// DeleteByIdentifierAndType は(identifier, type)に一致するトークンを削除する。冪等。
func (r *PostgresTokenRepo) DeleteByIdentifierAndType(ctx context.Context, identifier string, typ model.TokenType) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM verification_tokens WHERE identifier = $1 AND type = $2`,
		identifier, string(typ),
	)
	if err != nil {
		return fmt.Errorf("failed to delete verification token: %w", err)
	}

	return nil
}

// DeleteExpired は有効期限切れのトークンを削除し、削除件数を返す。
func (r *PostgresTokenRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM verification_tokens WHERE expires <= $1`,
		now,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired tokens: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return n, nil
}

// compile-time interface check
var _ TokenRepository = (*PostgresTokenRepo)(nil)
