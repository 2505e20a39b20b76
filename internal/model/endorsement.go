// Package model はドメインモデルを定義する。
package model

import "time"

// Status はエンドースメントの審査状態を表す。
type Status string

const (
	// StatusPendingVerification はメールアドレス確認待ちの状態。
	StatusPendingVerification Status = "pending_verification"
	// StatusPendingReview はメール確認済みで審査待ちの状態。
	StatusPendingReview Status = "pending_review"
	// StatusApproved は審査を通過した状態。
	StatusApproved Status = "approved"
	// StatusRejected は却下された状態。
	// pending_verification と pending_review のどちらからも遷移しうる。
	StatusRejected Status = "rejected"
)

// AllStatuses は定義済みの全ステータスを返す。
// 管理画面のフィルタUIとダッシュボード集計に使用する。
func AllStatuses() []Status {
	return []Status{
		StatusPendingVerification,
		StatusPendingReview,
		StatusApproved,
		StatusRejected,
	}
}

// Valid は既知のステータス値かどうかを返す。
func (s Status) Valid() bool {
	switch s {
	case StatusPendingVerification, StatusPendingReview, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// EndorsementType はエンドースメントの申込種別を表す。
type EndorsementType string

const (
	// EndorsementTypeFree は無料のエンドースメント。
	EndorsementTypeFree EndorsementType = "free"
	// EndorsementTypePaid は有料のエンドースメント。tierと支払い方法が必須。
	EndorsementTypePaid EndorsementType = "paid"
)

// Endorsement は組織からの推薦申込を表す。emailアドレスごとに1件のみ存在する。
type Endorsement struct {
	ID    string
	Email string

	// Profile
	OrganizationName string
	ContactPerson    string
	Phone            string
	Country          string
	Website          string
	Category         string
	EndorsementType  EndorsementType
	Tier             string
	PaymentMethod    string
	PaymentReference string
	PaymentVerified  bool

	// Content
	Headline  string
	Statement string
	LogoURL   string
	VideoURL  string

	// Consent（申込時に全て真であることが必須）
	ConsentToPublish   bool
	AuthorizedToSubmit bool
	DigitalSignature   string

	// Lifecycle
	Status               Status
	Verified             bool
	Featured             bool
	RejectionReason      *string
	CertificateGenerated bool

	CreatedAt  time.Time
	UpdatedAt  time.Time
	ApprovedAt *time.Time
}

// CanApprove は承認可能な状態かどうかを返す。
// 審査待ちかつメール確認済みの場合のみ承認できる。
func (e *Endorsement) CanApprove() bool {
	return e.Status == StatusPendingReview && e.Verified
}

// CanReject は却下可能な状態かどうかを返す。
// メール未確認の申込も却下できる。承認済み・却下済みは対象外。
func (e *Endorsement) CanReject() bool {
	return e.Status == StatusPendingVerification || e.Status == StatusPendingReview
}

// CanFeature は注目表示に設定可能な状態かどうかを返す。
// 承認済みの申込のみ対象。
func (e *Endorsement) CanFeature() bool {
	return e.Status == StatusApproved
}
