package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// ハンドラー層でHTTPステータスコードにマッピングされ、
// `{"success":false,"message":...}` 形式のエラーレスポンスになる。
type APIError struct {
	Code    string // エラーコード
	Message string // エラーメッセージ（そのままレスポンスに含める）

	// Existing は重複申込エラーの場合のみ設定される。
	// 呼び出し側が既存レコードの再開フローへ誘導できるようにIDとステータスを返す。
	Existing *ExistingEndorsement
}

// ExistingEndorsement は重複申込エラーに含める既存レコードの参照情報。
type ExistingEndorsement struct {
	ID     string `json:"id"`
	Status Status `json:"status"`
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeEmailExists         = "EMAIL_EXISTS"
	ErrCodeInvalidToken        = "INVALID_TOKEN"
	ErrCodeNotReadyForApproval = "NOT_READY_FOR_APPROVAL"
	ErrCodeCannotReject        = "CANNOT_REJECT"
	ErrCodeReasonRequired      = "REASON_REQUIRED"
	ErrCodeNotApproved         = "NOT_APPROVED"
	ErrCodeAlreadyVerified     = "ALREADY_VERIFIED"
	ErrCodeValidation          = "VALIDATION_ERROR"
	ErrCodeInvalidAction       = "INVALID_ACTION"
	ErrCodeNotFound            = "ENDORSEMENT_NOT_FOUND"
)

// NewEmailExistsError は重複メールアドレスエラーを生成する。
// 既存レコードのIDとステータスを添えて返す。
func NewEmailExistsError(id string, status Status) *APIError {
	return &APIError{
		Code:    ErrCodeEmailExists,
		Message: "An endorsement with this email already exists",
		Existing: &ExistingEndorsement{
			ID:     id,
			Status: status,
		},
	}
}

// NewInvalidTokenError は無効または期限切れトークンのエラーを生成する。
// 「存在しない」と「期限切れ」は呼び出し側に区別させない。
func NewInvalidTokenError() *APIError {
	return &APIError{
		Code:    ErrCodeInvalidToken,
		Message: "Invalid or expired verification token",
	}
}

// NewNotReadyForApprovalError は承認前提条件を満たさない場合のエラーを生成する。
func NewNotReadyForApprovalError() *APIError {
	return &APIError{
		Code:    ErrCodeNotReadyForApproval,
		Message: "Endorsement is not ready for approval",
	}
}

// NewCannotRejectError は却下不可能な状態でのエラーを生成する。
func NewCannotRejectError() *APIError {
	return &APIError{
		Code:    ErrCodeCannotReject,
		Message: "Endorsement cannot be rejected in its current state",
	}
}

// NewReasonRequiredError は却下理由が空の場合のエラーを生成する。
func NewReasonRequiredError() *APIError {
	return &APIError{
		Code:    ErrCodeReasonRequired,
		Message: "Rejection reason is required",
	}
}

// NewNotApprovedError は承認済み以外を注目表示しようとした場合のエラーを生成する。
func NewNotApprovedError() *APIError {
	return &APIError{
		Code:    ErrCodeNotApproved,
		Message: "Only approved endorsements can be featured",
	}
}

// NewAlreadyVerifiedError は確認済みメールアドレスへの再送エラーを生成する。
func NewAlreadyVerifiedError() *APIError {
	return &APIError{
		Code:    ErrCodeAlreadyVerified,
		Message: "Email is already verified",
	}
}

// NewValidationError は入力検証エラーを生成する。
func NewValidationError(message string) *APIError {
	return &APIError{
		Code:    ErrCodeValidation,
		Message: message,
	}
}

// NewInvalidActionError は未知の管理アクションのエラーを生成する。
func NewInvalidActionError(action string) *APIError {
	return &APIError{
		Code:    ErrCodeInvalidAction,
		Message: fmt.Sprintf("Unknown action: %s", action),
	}
}

// NewNotFoundError はエンドースメント未検出エラーを生成する。
func NewNotFoundError() *APIError {
	return &APIError{
		Code:    ErrCodeNotFound,
		Message: "Endorsement not found",
	}
}
