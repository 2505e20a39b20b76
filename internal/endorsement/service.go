// Package endorsement はエンドースメントのライフサイクル管理を提供する。
//
// 状態機械は次の遷移のみを許可する:
//
//	pending_verification → pending_review → {approved | rejected}
//	pending_verification → rejected（メール未確認でも却下可能）
//
// featuredは承認済みレコードに対する表示用フラグであり、状態遷移とは独立。
// 全ての状態変更はこのサービスを経由し、通知はコミット後のベストエフォートで行う。
package endorsement

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nesafrica/endorse/internal/model"
	"github.com/nesafrica/endorse/internal/repository"
)

// TokenService はライフサイクルサービスが必要とするトークン操作のインターフェース。
type TokenService interface {
	// Generate はトークンを発行して保存し、トークン文字列を返す。
	Generate(ctx context.Context, identifier string, typ model.TokenType, ttl time.Duration) (string, error)
	// Verify はトークンの有効性を返す。削除は行わない。
	Verify(ctx context.Context, token, identifier string, typ model.TokenType) (bool, error)
	// Delete は(identifier, type)のトークンを削除する。冪等。
	Delete(ctx context.Context, identifier string, typ model.TokenType) error
}

// Notifier はライフサイクル通知の送信インターフェース。
// 送信失敗は呼び出し側がログに記録するのみで、状態遷移は巻き戻さない。
type Notifier interface {
	SendVerification(ctx context.Context, email, contactPerson, organizationName, token, verifyLink string) error
	SendApproval(ctx context.Context, email, contactPerson, organizationName string) error
	SendRejection(ctx context.Context, email, contactPerson, organizationName, reason string) error
}

// Sanitizer は申込内容のサニタイズインターフェース。
type Sanitizer interface {
	SanitizeStatement(rawHTML string) string
	SanitizePlain(raw string) string
}

// MetricsRecorder はライフサイクルイベントのメトリクス記録インターフェース。
type MetricsRecorder interface {
	RecordSubmission()
	RecordVerification()
	RecordTransition(action string)
	RecordNotificationSent(kind string)
	RecordNotificationFailure(kind string)
}

// nopMetrics はメトリクス未設定時のno-op実装。
type nopMetrics struct{}

func (nopMetrics) RecordSubmission()                {}
func (nopMetrics) RecordVerification()              {}
func (nopMetrics) RecordTransition(string)          {}
func (nopMetrics) RecordNotificationSent(string)    {}
func (nopMetrics) RecordNotificationFailure(string) {}

// ServiceConfig はライフサイクルサービスの設定。
type ServiceConfig struct {
	// BaseURL は確認リンクの組み立てに使用する公開URL。
	BaseURL string
	// TokenTTL は確認トークンの有効期間。
	TokenTTL time.Duration
}

// Service はエンドースメントライフサイクルのサービス層。
// 状態遷移のガード検証、トークンプロトコル、通知のトリガーを担う。
type Service struct {
	repo      repository.EndorsementRepository
	tokens    TokenService
	notifier  Notifier
	sanitizer Sanitizer
	metrics   MetricsRecorder
	logger    *slog.Logger
	cfg       ServiceConfig
	now       func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
// metricsがnilの場合はno-op実装を使用する。
func NewService(
	repo repository.EndorsementRepository,
	tokens TokenService,
	notifier Notifier,
	sanitizer Sanitizer,
	metrics MetricsRecorder,
	logger *slog.Logger,
	cfg ServiceConfig,
) *Service {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		tokens:    tokens,
		notifier:  notifier,
		sanitizer: sanitizer,
		metrics:   metrics,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
	}
}

// SubmitInput は申込リクエストの入力。
type SubmitInput struct {
	Email            string
	OrganizationName string
	ContactPerson    string
	Phone            string
	Country          string
	Website          string
	Category         string
	EndorsementType  string
	Tier             string
	PaymentMethod    string
	PaymentReference string

	Headline  string
	Statement string
	LogoURL   string
	VideoURL  string

	ConsentToPublish   bool
	AuthorizedToSubmit bool
	DigitalSignature   string
}

// Submit は新規エンドースメントを受け付ける。
// レコードをpending_verification状態で作成し、確認トークンを発行して
// 確認メールの送信をトリガーする。同一emailの申込は既存レコードの
// IDとステータスを添えた重複エラーで拒否する。
func (s *Service) Submit(ctx context.Context, in SubmitInput) (*model.Endorsement, error) {
	email := normalizeEmail(in.Email)

	if err := s.validateSubmit(&in); err != nil {
		return nil, err
	}

	// 事前チェック: 親切なエラーメッセージのための最適化であり、
	// 同時申込の正しさはDBのユニーク制約が保証する
	existing, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing endorsement: %w", err)
	}
	if existing != nil {
		return nil, model.NewEmailExistsError(existing.ID, existing.Status)
	}

	now := s.now()
	e := &model.Endorsement{
		ID:               uuid.NewString(),
		Email:            email,
		OrganizationName: s.sanitizer.SanitizePlain(in.OrganizationName),
		ContactPerson:    s.sanitizer.SanitizePlain(in.ContactPerson),
		Phone:            strings.TrimSpace(in.Phone),
		Country:          strings.TrimSpace(in.Country),
		Website:          strings.TrimSpace(in.Website),
		Category:         strings.TrimSpace(in.Category),
		EndorsementType:  model.EndorsementType(in.EndorsementType),
		Tier:             strings.TrimSpace(in.Tier),
		PaymentMethod:    strings.TrimSpace(in.PaymentMethod),
		PaymentReference: strings.TrimSpace(in.PaymentReference),

		Headline:  s.sanitizer.SanitizePlain(in.Headline),
		Statement: s.sanitizer.SanitizeStatement(in.Statement),
		LogoURL:   strings.TrimSpace(in.LogoURL),
		VideoURL:  strings.TrimSpace(in.VideoURL),

		ConsentToPublish:   in.ConsentToPublish,
		AuthorizedToSubmit: in.AuthorizedToSubmit,
		DigitalSignature:   strings.TrimSpace(in.DigitalSignature),

		Status:    model.StatusPendingVerification,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Create(ctx, e); err != nil {
		if err == repository.ErrDuplicateEmail {
			// 事前チェック後に割り込まれた同時申込。既存レコードを引き直して返す
			raced, findErr := s.repo.FindByEmail(ctx, email)
			if findErr == nil && raced != nil {
				return nil, model.NewEmailExistsError(raced.ID, raced.Status)
			}
			return nil, model.NewEmailExistsError("", "")
		}
		return nil, fmt.Errorf("failed to create endorsement: %w", err)
	}

	s.metrics.RecordSubmission()

	// レコードは確定済み。トークン発行や通知の失敗で申込自体は失敗にしない
	// （resend-verificationで回復できる）
	s.issueAndSendVerification(ctx, e)

	return e, nil
}

// validateSubmit は申込のビジネスルールを検証する。
func (s *Service) validateSubmit(in *SubmitInput) error {
	if in.EndorsementType == "" {
		in.EndorsementType = string(model.EndorsementTypeFree)
	}

	switch model.EndorsementType(in.EndorsementType) {
	case model.EndorsementTypeFree:
		// 無料は追加条件なし
	case model.EndorsementTypePaid:
		if strings.TrimSpace(in.Tier) == "" || strings.TrimSpace(in.PaymentMethod) == "" {
			return model.NewValidationError("Paid endorsements require tier and payment method")
		}
	default:
		return model.NewValidationError("Endorsement type must be free or paid")
	}

	if !in.ConsentToPublish || !in.AuthorizedToSubmit || strings.TrimSpace(in.DigitalSignature) == "" {
		return model.NewValidationError("Consent to publish, authorization to submit and digital signature are required")
	}

	return nil
}

// issueAndSendVerification は確認トークンを発行し、確認メールの送信を試みる。
// どちらの失敗もログ記録のみで呼び出し元へは伝播させない。
func (s *Service) issueAndSendVerification(ctx context.Context, e *model.Endorsement) {
	tok, err := s.tokens.Generate(ctx, e.Email, model.TokenTypeEmailVerification, s.cfg.TokenTTL)
	if err != nil {
		s.logger.Error("failed to issue verification token",
			slog.String("endorsement_id", e.ID),
			slog.String("error", err.Error()),
		)
		return
	}

	link := s.verifyLink(e.Email, tok)
	if err := s.notifier.SendVerification(ctx, e.Email, e.ContactPerson, e.OrganizationName, tok, link); err != nil {
		s.metrics.RecordNotificationFailure("verification")
		s.logger.Error("failed to send verification email",
			slog.String("endorsement_id", e.ID),
			slog.String("error", err.Error()),
		)
		return
	}

	s.metrics.RecordNotificationSent("verification")
}

// verifyLink はメール内の確認リンクを組み立てる。
func (s *Service) verifyLink(email, token string) string {
	return fmt.Sprintf("%s/api/endorsements/verify-email?email=%s&token=%s",
		strings.TrimRight(s.cfg.BaseURL, "/"),
		url.QueryEscape(email),
		url.QueryEscape(token),
	)
}

// GetByEmail はemailでエンドースメントを取得する。見つからない場合は404エラーを返す。
func (s *Service) GetByEmail(ctx context.Context, email string) (*model.Endorsement, error) {
	e, err := s.repo.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, fmt.Errorf("failed to find endorsement: %w", err)
	}
	if e == nil {
		return nil, model.NewNotFoundError()
	}

	return e, nil
}

// VerifyEmail は確認トークンを検証し、レコードをpending_reviewへ遷移させる。
// 検証に成功したトークンは削除され、以後は再利用できない（単回使用）。
// トークン不一致・期限切れ・対象レコード不在はいずれも同じ無効トークンエラーになる。
func (s *Service) VerifyEmail(ctx context.Context, email, tokenValue string) (*model.Endorsement, error) {
	email = normalizeEmail(email)
	if email == "" || tokenValue == "" {
		return nil, model.NewInvalidTokenError()
	}

	ok, err := s.tokens.Verify(ctx, tokenValue, email, model.TokenTypeEmailVerification)
	if err != nil {
		return nil, fmt.Errorf("failed to verify token: %w", err)
	}
	if !ok {
		return nil, model.NewInvalidTokenError()
	}

	e, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find endorsement: %w", err)
	}
	if e == nil {
		return nil, model.NewInvalidTokenError()
	}

	changed, err := s.repo.MarkVerified(ctx, e.ID, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to mark endorsement verified: %w", err)
	}

	// トークンは役目を終えたため遷移の成否に関わらず削除する
	if err := s.tokens.Delete(ctx, email, model.TokenTypeEmailVerification); err != nil {
		s.logger.Error("failed to delete consumed token",
			slog.String("endorsement_id", e.ID),
			slog.String("error", err.Error()),
		)
	}

	if !changed {
		// トークンは有効だったが、レコードは既にpending_verificationではない
		// （並行する確認や管理者の却下など）
		return nil, model.NewInvalidTokenError()
	}

	s.metrics.RecordVerification()

	return s.reload(ctx, e.ID)
}

// ResendVerification は確認メールを再送する。
// 新しいトークンが既存トークンを置き換えるため、有効なトークンは常に1件のみ。
func (s *Service) ResendVerification(ctx context.Context, email string) error {
	email = normalizeEmail(email)

	e, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to find endorsement: %w", err)
	}
	if e == nil {
		return model.NewNotFoundError()
	}
	if e.Verified {
		return model.NewAlreadyVerifiedError()
	}

	tok, err := s.tokens.Generate(ctx, email, model.TokenTypeEmailVerification, s.cfg.TokenTTL)
	if err != nil {
		return fmt.Errorf("failed to issue verification token: %w", err)
	}

	link := s.verifyLink(email, tok)
	if err := s.notifier.SendVerification(ctx, email, e.ContactPerson, e.OrganizationName, tok, link); err != nil {
		s.metrics.RecordNotificationFailure("verification")
		s.logger.Error("failed to send verification email",
			slog.String("endorsement_id", e.ID),
			slog.String("error", err.Error()),
		)
		// トークンは発行済みなので再送自体は成功として扱う
	} else {
		s.metrics.RecordNotificationSent("verification")
	}

	return nil
}

// Approve はpending_reviewかつverifiedのエンドースメントを承認する。
// approved_atはこの遷移で1回だけ設定される。承認通知はコミット後のベストエフォート。
func (s *Service) Approve(ctx context.Context, id string) (*model.Endorsement, error) {
	e, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find endorsement: %w", err)
	}
	if e == nil {
		return nil, model.NewNotFoundError()
	}
	if !e.CanApprove() {
		return nil, model.NewNotReadyForApprovalError()
	}

	changed, err := s.repo.Approve(ctx, id, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to approve endorsement: %w", err)
	}
	if !changed {
		// ガード再検査で弾かれた＝並行操作に先を越された
		return nil, model.NewNotReadyForApprovalError()
	}

	s.metrics.RecordTransition("approve")

	if err := s.notifier.SendApproval(ctx, e.Email, e.ContactPerson, e.OrganizationName); err != nil {
		s.metrics.RecordNotificationFailure("approval")
		s.logger.Error("failed to send approval email",
			slog.String("endorsement_id", id),
			slog.String("error", err.Error()),
		)
	} else {
		s.metrics.RecordNotificationSent("approval")
	}

	return s.reload(ctx, id)
}

// Reject はpending_verificationまたはpending_reviewのエンドースメントを却下する。
// 却下理由は必須で、レコードに記録され却下通知にも含まれる。
func (s *Service) Reject(ctx context.Context, id, reason string) (*model.Endorsement, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, model.NewReasonRequiredError()
	}

	e, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find endorsement: %w", err)
	}
	if e == nil {
		return nil, model.NewNotFoundError()
	}
	if !e.CanReject() {
		return nil, model.NewCannotRejectError()
	}

	changed, err := s.repo.Reject(ctx, id, reason, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to reject endorsement: %w", err)
	}
	if !changed {
		return nil, model.NewCannotRejectError()
	}

	s.metrics.RecordTransition("reject")

	if err := s.notifier.SendRejection(ctx, e.Email, e.ContactPerson, e.OrganizationName, reason); err != nil {
		s.metrics.RecordNotificationFailure("rejection")
		s.logger.Error("failed to send rejection email",
			slog.String("endorsement_id", id),
			slog.String("error", err.Error()),
		)
	} else {
		s.metrics.RecordNotificationSent("rejection")
	}

	return s.reload(ctx, id)
}

// Feature は承認済みエンドースメントを注目表示に設定する。
func (s *Service) Feature(ctx context.Context, id string) (*model.Endorsement, error) {
	e, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find endorsement: %w", err)
	}
	if e == nil {
		return nil, model.NewNotFoundError()
	}
	if !e.CanFeature() {
		return nil, model.NewNotApprovedError()
	}

	changed, err := s.repo.Feature(ctx, id, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to feature endorsement: %w", err)
	}
	if !changed {
		return nil, model.NewNotApprovedError()
	}

	s.metrics.RecordTransition("feature")

	return s.reload(ctx, id)
}

// Unfeature はエンドースメントの注目表示を解除する。
// 状態を問わず実行でき、既に解除済みでも成功する（冪等）。
func (s *Service) Unfeature(ctx context.Context, id string) (*model.Endorsement, error) {
	e, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find endorsement: %w", err)
	}
	if e == nil {
		return nil, model.NewNotFoundError()
	}

	if _, err := s.repo.Unfeature(ctx, id, s.now()); err != nil {
		return nil, fmt.Errorf("failed to unfeature endorsement: %w", err)
	}

	s.metrics.RecordTransition("unfeature")

	return s.reload(ctx, id)
}

// reload は更新後のレコードを取得して返す。
func (s *Service) reload(ctx context.Context, id string) (*model.Endorsement, error) {
	e, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to reload endorsement: %w", err)
	}
	if e == nil {
		return nil, model.NewNotFoundError()
	}

	return e, nil
}

// normalizeEmail はemailを比較可能な形式に正規化する。
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
