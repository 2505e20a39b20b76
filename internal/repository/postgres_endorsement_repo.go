package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/nesafrica/endorse/internal/model"
)

// endorsementColumns はSELECT句で使用するカラム一覧。scanEndorsementと順序を一致させること。
const endorsementColumns = `id, email, organization_name, contact_person, phone, country, website,
	category, endorsement_type, tier, payment_method, payment_reference, payment_verified,
	headline, statement, logo_url, video_url,
	consent_to_publish, authorized_to_submit, digital_signature,
	status, verified, featured, rejection_reason, certificate_generated,
	created_at, updated_at, approved_at`

// PostgresEndorsementRepo はPostgreSQLを使用したエンドースメントリポジトリ。
type PostgresEndorsementRepo struct {
	db *sql.DB
}

// NewPostgresEndorsementRepo はPostgresEndorsementRepoを生成する。
func NewPostgresEndorsementRepo(db *sql.DB) *PostgresEndorsementRepo {
	return &PostgresEndorsementRepo{db: db}
}

// Create はエンドースメントを作成する。
// emailのユニーク制約違反の場合はErrDuplicateEmailを返す。
func (r *PostgresEndorsementRepo) Create(ctx context.Context, e *model.Endorsement) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO endorsements (
			id, email, organization_name, contact_person, phone, country, website,
			category, endorsement_type, tier, payment_method, payment_reference, payment_verified,
			headline, statement, logo_url, video_url,
			consent_to_publish, authorized_to_submit, digital_signature,
			status, verified, featured, rejection_reason, certificate_generated,
			created_at, updated_at, approved_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, $9, $10, $11, $12, $13,
			$14, $15, $16, $17,
			$18, $19, $20,
			$21, $22, $23, $24, $25,
			$26, $27, $28
		)`,
		e.ID, e.Email, e.OrganizationName, e.ContactPerson, e.Phone, e.Country, e.Website,
		e.Category, string(e.EndorsementType), e.Tier, e.PaymentMethod, e.PaymentReference, e.PaymentVerified,
		e.Headline, e.Statement, e.LogoURL, e.VideoURL,
		e.ConsentToPublish, e.AuthorizedToSubmit, e.DigitalSignature,
		string(e.Status), e.Verified, e.Featured, e.RejectionReason, e.CertificateGenerated,
		e.CreatedAt, e.UpdatedAt, e.ApprovedAt,
	)
	if err != nil {
		// 23505 = unique_violation。同時申込の競合はユニーク制約が最終的に拒否する
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("failed to insert endorsement: %w", err)
	}

	return nil
}

// FindByEmail はemailでエンドースメントを検索する。見つからない場合はnilを返す。
func (r *PostgresEndorsementRepo) FindByEmail(ctx context.Context, email string) (*model.Endorsement, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+endorsementColumns+` FROM endorsements WHERE email = $1`,
		email,
	)

	e, err := scanEndorsement(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find endorsement by email: %w", err)
	}

	return e, nil
}

// FindByID は指定IDのエンドースメントを取得する。見つからない場合はnilを返す。
func (r *PostgresEndorsementRepo) FindByID(ctx context.Context, id string) (*model.Endorsement, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+endorsementColumns+` FROM endorsements WHERE id = $1`,
		id,
	)

	e, err := scanEndorsement(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find endorsement by ID: %w", err)
	}

	return e, nil
}

// MarkVerified はpending_verification状態のレコードをpending_reviewへ遷移させる。
func (r *PostgresEndorsementRepo) MarkVerified(ctx context.Context, id string, now time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE endorsements
		 SET status = $1, verified = TRUE, updated_at = $2
		 WHERE id = $3 AND status = $4`,
		string(model.StatusPendingReview), now, id, string(model.StatusPendingVerification),
	)
	if err != nil {
		return false, fmt.Errorf("failed to mark endorsement verified: %w", err)
	}

	return rowsAffected(result)
}

// Approve はpending_reviewかつverifiedのレコードをapprovedへ遷移させる。
// ガード条件をWHERE句に含めることで、同時承認の競合でも二重遷移は起こらない。
func (r *PostgresEndorsementRepo) Approve(ctx context.Context, id string, now time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE endorsements
		 SET status = $1, approved_at = $2, updated_at = $2
		 WHERE id = $3 AND status = $4 AND verified = TRUE`,
		string(model.StatusApproved), now, id, string(model.StatusPendingReview),
	)
	if err != nil {
		return false, fmt.Errorf("failed to approve endorsement: %w", err)
	}

	return rowsAffected(result)
}

// Reject はpending_verificationまたはpending_reviewのレコードをrejectedへ遷移させる。
func (r *PostgresEndorsementRepo) Reject(ctx context.Context, id, reason string, now time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE endorsements
		 SET status = $1, rejection_reason = $2, updated_at = $3
		 WHERE id = $4 AND status IN ($5, $6)`,
		string(model.StatusRejected), reason, now, id,
		string(model.StatusPendingVerification), string(model.StatusPendingReview),
	)
	if err != nil {
		return false, fmt.Errorf("failed to reject endorsement: %w", err)
	}

	return rowsAffected(result)
}

// Feature はapproved状態のレコードのfeaturedをtrueにする。
func (r *PostgresEndorsementRepo) Feature(ctx context.Context, id string, now time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE endorsements
		 SET featured = TRUE, updated_at = $1
		 WHERE id = $2 AND status = $3`,
		now, id, string(model.StatusApproved),
	)
	if err != nil {
		return false, fmt.Errorf("failed to feature endorsement: %w", err)
	}

	return rowsAffected(result)
}

// Unfeature はレコードのfeaturedをfalseにする。状態を問わず実行でき、冪等。
func (r *PostgresEndorsementRepo) Unfeature(ctx context.Context, id string, now time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE endorsements
		 SET featured = FALSE, updated_at = $1
		 WHERE id = $2`,
		now, id,
	)
	if err != nil {
		return false, fmt.Errorf("failed to unfeature endorsement: %w", err)
	}

	return rowsAffected(result)
}

// showcaseWhereClause は公開ショーケース検索のWHERE句と引数を構築する。
// 公開対象は常にapprovedかつverified。
func showcaseWhereClause(f ShowcaseFilter) (string, []any) {
	conds := []string{"status = $1", "verified = TRUE"}
	args := []any{string(model.StatusApproved)}

	if f.Category != "" {
		args = append(args, f.Category)
		conds = append(conds, "category = $"+strconv.Itoa(len(args)))
	}
	if f.Country != "" {
		args = append(args, f.Country)
		conds = append(conds, "country = $"+strconv.Itoa(len(args)))
	}
	if f.Featured != nil {
		args = append(args, *f.Featured)
		conds = append(conds, "featured = $"+strconv.Itoa(len(args)))
	}

	return strings.Join(conds, " AND "), args
}

// ListShowcase は公開対象のエンドースメントを条件で絞り込み、created_at降順で取得する。
func (r *PostgresEndorsementRepo) ListShowcase(ctx context.Context, f ShowcaseFilter) ([]*model.Endorsement, error) {
	where, args := showcaseWhereClause(f)

	args = append(args, f.Limit)
	limitPos := len(args)
	args = append(args, f.Offset)
	offsetPos := len(args)

	query := `SELECT ` + endorsementColumns + ` FROM endorsements WHERE ` + where +
		` ORDER BY created_at DESC LIMIT $` + strconv.Itoa(limitPos) + ` OFFSET $` + strconv.Itoa(offsetPos)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list showcase endorsements: %w", err)
	}
	defer rows.Close()

	var results []*model.Endorsement
	for rows.Next() {
		e, err := scanEndorsement(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan showcase endorsement: %w", err)
		}
		results = append(results, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate showcase endorsements: %w", err)
	}

	return results, nil
}

// CountShowcase はListShowcaseと同一条件での総件数を返す。
func (r *PostgresEndorsementRepo) CountShowcase(ctx context.Context, f ShowcaseFilter) (int, error) {
	where, args := showcaseWhereClause(f)

	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM endorsements WHERE `+where,
		args...,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count showcase endorsements: %w", err)
	}

	return count, nil
}

// ShowcaseFacets は全approvedレコードを対象にカテゴリと国の重複なし一覧を返す。
// フィルタUIの選択肢を、アクティブな絞り込みと無関係に提示するために使用する。
func (r *PostgresEndorsementRepo) ShowcaseFacets(ctx context.Context) ([]string, []string, error) {
	categories, err := r.distinctColumn(ctx, "category")
	if err != nil {
		return nil, nil, err
	}

	countries, err := r.distinctColumn(ctx, "country")
	if err != nil {
		return nil, nil, err
	}

	return categories, countries, nil
}

// distinctColumn はapprovedレコードの指定カラムの重複なし値を昇順で返す。
// columnは呼び出し側が固定文字列で渡すこと（ユーザー入力を渡してはならない）。
func (r *PostgresEndorsementRepo) distinctColumn(ctx context.Context, column string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT `+column+` FROM endorsements
		 WHERE status = $1 AND `+column+` <> ''
		 ORDER BY `+column,
		string(model.StatusApproved),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query distinct %s: %w", column, err)
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan distinct %s: %w", column, err)
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate distinct %s: %w", column, err)
	}

	return values, nil
}

// ListByStatus は指定ステータスのエンドースメントをcreated_at降順で返す。
// statusがnilの場合は全件を返す。
func (r *PostgresEndorsementRepo) ListByStatus(ctx context.Context, status *model.Status) ([]*model.Endorsement, error) {
	var (
		rows *sql.Rows
		err  error
	)

	if status != nil {
		rows, err = r.db.QueryContext(ctx,
			`SELECT `+endorsementColumns+` FROM endorsements WHERE status = $1 ORDER BY created_at DESC`,
			string(*status),
		)
	} else {
		rows, err = r.db.QueryContext(ctx,
			`SELECT `+endorsementColumns+` FROM endorsements ORDER BY created_at DESC`,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list endorsements: %w", err)
	}
	defer rows.Close()

	var results []*model.Endorsement
	for rows.Next() {
		e, err := scanEndorsement(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan endorsement: %w", err)
		}
		results = append(results, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate endorsements: %w", err)
	}

	return results, nil
}

// CountByStatus は指定ステータスの件数を返す。
func (r *PostgresEndorsementRepo) CountByStatus(ctx context.Context, status model.Status) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM endorsements WHERE status = $1`,
		string(status),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count endorsements by status: %w", err)
	}

	return count, nil
}

// CountAll は全件数を返す。
func (r *PostgresEndorsementRepo) CountAll(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM endorsements`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count endorsements: %w", err)
	}

	return count, nil
}

// CountFeatured はfeatured=trueの件数を返す。
func (r *PostgresEndorsementRepo) CountFeatured(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM endorsements WHERE featured = TRUE`,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count featured endorsements: %w", err)
	}

	return count, nil
}

// rowsAffected はUPDATE結果から1行以上変更されたかどうかを返す。
func rowsAffected(result sql.Result) (bool, error) {
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

// rowScanner はsql.Rowとsql.Rowsの共通Scanインターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

// scanEndorsement は1行をmodel.Endorsementに読み取る。
// カラム順はendorsementColumnsと一致させること。
func scanEndorsement(row rowScanner) (*model.Endorsement, error) {
	e := &model.Endorsement{}
	var (
		endorsementType string
		status          string
	)

	err := row.Scan(
		&e.ID, &e.Email, &e.OrganizationName, &e.ContactPerson, &e.Phone, &e.Country, &e.Website,
		&e.Category, &endorsementType, &e.Tier, &e.PaymentMethod, &e.PaymentReference, &e.PaymentVerified,
		&e.Headline, &e.Statement, &e.LogoURL, &e.VideoURL,
		&e.ConsentToPublish, &e.AuthorizedToSubmit, &e.DigitalSignature,
		&status, &e.Verified, &e.Featured, &e.RejectionReason, &e.CertificateGenerated,
		&e.CreatedAt, &e.UpdatedAt, &e.ApprovedAt,
	)
	if err != nil {
		return nil, err
	}

	e.EndorsementType = model.EndorsementType(endorsementType)
	e.Status = model.Status(status)

	return e, nil
}

// compile-time interface check
var _ EndorsementRepository = (*PostgresEndorsementRepo)(nil)
