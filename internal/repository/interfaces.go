// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/nesafrica/endorse/internal/model"
)

// ErrDuplicateEmail は同一emailのレコードが既に存在する場合にCreateが返す。
// アプリケーション層の事前チェックをすり抜けた同時申込は、
// データベースのユニーク制約が最終的にこのエラーとして拒否する。
var ErrDuplicateEmail = errors.New("endorsement with this email already exists")

// ShowcaseFilter は公開ショーケースの検索条件を表す。
// Featuredがnilの場合は注目表示での絞り込みを行わない。
type ShowcaseFilter struct {
	Category string
	Country  string
	Featured *bool
	Limit    int
	Offset   int
}

// EndorsementRepository はエンドースメントの永続化インターフェース。
// 状態遷移の更新は条件付きUPDATEで行い、ガード条件を満たさない場合は
// 行を変更せずfalseを返す。同時更新の競合はこの層で最終的に検出される。
type EndorsementRepository interface {
	// Create はエンドースメントを作成する。
	// emailのユニーク制約違反の場合はErrDuplicateEmailを返す。
	Create(ctx context.Context, e *model.Endorsement) error

	// FindByEmail はemailでエンドースメントを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.Endorsement, error)

	// FindByID は指定IDのエンドースメントを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Endorsement, error)

	// MarkVerified はpending_verification状態のレコードをpending_reviewへ遷移させ、
	// verifiedをtrueにする。遷移できた場合はtrueを返す。
	MarkVerified(ctx context.Context, id string, now time.Time) (bool, error)

	// Approve はpending_reviewかつverifiedのレコードをapprovedへ遷移させ、
	// approved_atを設定する。approved_atが設定されるのはこの遷移の1回のみ。
	Approve(ctx context.Context, id string, now time.Time) (bool, error)

	// Reject はpending_verificationまたはpending_reviewのレコードをrejectedへ
	// 遷移させ、却下理由を記録する。遷移できた場合はtrueを返す。
	Reject(ctx context.Context, id, reason string, now time.Time) (bool, error)

	// Feature はapproved状態のレコードのfeaturedをtrueにする。
	// approved以外の場合は行を変更せずfalseを返す。
	Feature(ctx context.Context, id string, now time.Time) (bool, error)

	// Unfeature はレコードのfeaturedをfalseにする。状態を問わず実行でき、冪等。
	// レコードが存在した場合はtrueを返す。
	Unfeature(ctx context.Context, id string, now time.Time) (bool, error)

	// ListShowcase は公開対象（approvedかつverified）のエンドースメントを
	// 条件で絞り込み、created_at降順でページング取得する。
	ListShowcase(ctx context.Context, f ShowcaseFilter) ([]*model.Endorsement, error)

	// CountShowcase はListShowcaseと同一条件での総件数を返す。
	CountShowcase(ctx context.Context, f ShowcaseFilter) (int, error)

	// ShowcaseFacets は全approvedレコードを対象に、カテゴリと国の
	// 重複なし一覧を返す。アクティブなフィルタとは独立に算出する。
	ShowcaseFacets(ctx context.Context) (categories, countries []string, err error)

	// ListByStatus は指定ステータスのエンドースメントをcreated_at降順で返す。
	// statusがnilの場合は全件を返す。
	ListByStatus(ctx context.Context, status *model.Status) ([]*model.Endorsement, error)

	// CountByStatus は指定ステータスの件数を返す。
	CountByStatus(ctx context.Context, status model.Status) (int, error)

	// CountAll は全件数を返す。
	CountAll(ctx context.Context) (int, error)

	// CountFeatured はfeatured=trueの件数を返す。
	CountFeatured(ctx context.Context) (int, error)
}

// TokenRepository は検証トークンの永続化インターフェース。
// 期限切れトークンは物理削除されるまで残るため、読み取りは常に
// expires > now でフィルタする。
type TokenRepository interface {
	// Upsert は(identifier, type)をキーにトークンを挿入または上書きする。
	// 既存トークンは新しい値で置き換えられ、以後の有効性を失う。
	Upsert(ctx context.Context, token *model.VerificationToken) error

	// FindLive はtoken・identifier・typeの全てに一致し、かつ有効期限内の
	// トークンを返す。見つからない場合はnilを返す。
	FindLive(ctx context.Context, token, identifier string, typ model.TokenType, now time.Time) (*model.VerificationToken, error)

	// DeleteByIdentifierAndType は(identifier, type)に一致するトークンを削除する。
	// 対象が存在しなくてもエラーにしない。
	DeleteByIdentifierAndType(ctx context.Context, identifier string, typ model.TokenType) error

	// DeleteExpired は有効期限切れのトークンを削除し、削除件数を返す。
	// クリーンアップワーカーから定期的に呼び出される。
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
