package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/nesafrica/endorse/internal/endorsement"
	"github.com/nesafrica/endorse/internal/model"
)

// EndorsementServiceInterface は公開ハンドラーが必要とするサービスインターフェース。
type EndorsementServiceInterface interface {
	// Submit は新規エンドースメントを受け付ける。
	Submit(ctx context.Context, in endorsement.SubmitInput) (*model.Endorsement, error)
	// GetByEmail はemailでエンドースメントを取得する。
	GetByEmail(ctx context.Context, email string) (*model.Endorsement, error)
	// VerifyEmail は確認トークンを検証してpending_reviewへ遷移させる。
	VerifyEmail(ctx context.Context, email, token string) (*model.Endorsement, error)
	// ResendVerification は確認メールを再送する。
	ResendVerification(ctx context.Context, email string) error
	// Showcase は公開ショーケースの1ページ分を返す。
	Showcase(ctx context.Context, q endorsement.ShowcaseQuery) (*endorsement.ShowcasePage, error)
}

// EndorsementHandler は公開エンドースメントAPIのHTTPハンドラー。
type EndorsementHandler struct {
	service  EndorsementServiceInterface
	validate *validator.Validate
}

// NewEndorsementHandler はEndorsementHandlerを生成する。
func NewEndorsementHandler(service EndorsementServiceInterface) *EndorsementHandler {
	v := validator.New()
	// エラーメッセージにはJSONフィールド名を使用する
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &EndorsementHandler{
		service:  service,
		validate: v,
	}
}

// submitRequest は申込リクエストのボディ。
type submitRequest struct {
	Email            string `json:"email" validate:"required,email"`
	OrganizationName string `json:"organization_name" validate:"required"`
	ContactPerson    string `json:"contact_person" validate:"required"`
	Phone            string `json:"phone"`
	Country          string `json:"country" validate:"required"`
	Website          string `json:"website" validate:"omitempty,url"`
	Category         string `json:"category" validate:"required"`
	EndorsementType  string `json:"endorsement_type" validate:"omitempty,oneof=free paid"`
	Tier             string `json:"tier"`
	PaymentMethod    string `json:"payment_method"`
	PaymentReference string `json:"payment_reference"`

	Headline  string `json:"headline"`
	Statement string `json:"statement" validate:"required"`
	LogoURL   string `json:"logo_url" validate:"omitempty,url"`
	VideoURL  string `json:"video_url" validate:"omitempty,url"`

	ConsentToPublish   bool   `json:"consent_to_publish"`
	AuthorizedToSubmit bool   `json:"authorized_to_submit"`
	DigitalSignature   string `json:"digital_signature"`
}

// endorsementResponse はエンドースメント1件のAPIレスポンス。
type endorsementResponse struct {
	ID               string  `json:"id"`
	Email            string  `json:"email"`
	OrganizationName string  `json:"organization_name"`
	ContactPerson    string  `json:"contact_person"`
	Country          string  `json:"country"`
	Website          string  `json:"website,omitempty"`
	Category         string  `json:"category"`
	EndorsementType  string  `json:"endorsement_type"`
	Tier             string  `json:"tier,omitempty"`
	Headline         string  `json:"headline,omitempty"`
	Statement        string  `json:"statement"`
	LogoURL          string  `json:"logo_url,omitempty"`
	VideoURL         string  `json:"video_url,omitempty"`
	Status           string  `json:"status"`
	Verified         bool    `json:"verified"`
	Featured         bool    `json:"featured"`
	RejectionReason  *string `json:"rejection_reason,omitempty"`
	CreatedAt        string  `json:"created_at"`
	UpdatedAt        string  `json:"updated_at"`
	ApprovedAt       *string `json:"approved_at,omitempty"`
}

// showcaseItemResponse は公開ショーケース向けの投影。
// 連絡先・支払い・同意関連のフィールドは含めない。
type showcaseItemResponse struct {
	ID               string  `json:"id"`
	OrganizationName string  `json:"organization_name"`
	Country          string  `json:"country"`
	Category         string  `json:"category"`
	Headline         string  `json:"headline,omitempty"`
	Statement        string  `json:"statement"`
	LogoURL          string  `json:"logo_url,omitempty"`
	VideoURL         string  `json:"video_url,omitempty"`
	Featured         bool    `json:"featured"`
	ApprovedAt       *string `json:"approved_at,omitempty"`
}

// Submit は新規エンドースメントの申込を処理する。
// POST /api/endorsements/submit
func (h *EndorsementHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("Invalid JSON body"))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError(validationMessage(err)))
		return
	}

	e, err := h.service.Submit(r.Context(), endorsement.SubmitInput{
		Email:            req.Email,
		OrganizationName: req.OrganizationName,
		ContactPerson:    req.ContactPerson,
		Phone:            req.Phone,
		Country:          req.Country,
		Website:          req.Website,
		Category:         req.Category,
		EndorsementType:  req.EndorsementType,
		Tier:             req.Tier,
		PaymentMethod:    req.PaymentMethod,
		PaymentReference: req.PaymentReference,

		Headline:  req.Headline,
		Statement: req.Statement,
		LogoURL:   req.LogoURL,
		VideoURL:  req.VideoURL,

		ConsentToPublish:   req.ConsentToPublish,
		AuthorizedToSubmit: req.AuthorizedToSubmit,
		DigitalSignature:   req.DigitalSignature,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, map[string]any{
		"success":     true,
		"message":     "Endorsement submitted. Please check your email to verify your address.",
		"endorsement": toEndorsementResponse(e),
	})
}

// GetSubmission は申込状況の照会を処理する。
// GET /api/endorsements/submit?email=
func (h *EndorsementHandler) GetSubmission(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if email == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("Email query parameter is required"))
		return
	}

	e, err := h.service.GetByEmail(r.Context(), email)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]any{
		"success":     true,
		"endorsement": toEndorsementResponse(e),
	})
}

// verifyEmailRequest はメールアドレス確認リクエストのボディ。
type verifyEmailRequest struct {
	Email             string `json:"email"`
	VerificationToken string `json:"verification_token"`
}

// VerifyEmail はメールアドレス確認を処理する。
// POST /api/endorsements/verify-email
func (h *EndorsementHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req verifyEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("Invalid JSON body"))
		return
	}

	h.verifyAndRespond(w, r, req.Email, req.VerificationToken)
}

// VerifyEmailLink はメール内リンクからのメールアドレス確認を処理する。
// GET /api/endorsements/verify-email?email=&token=
func (h *EndorsementHandler) VerifyEmailLink(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	h.verifyAndRespond(w, r, q.Get("email"), q.Get("token"))
}

// verifyAndRespond はPOSTとGETで共通の確認処理を実行する。
func (h *EndorsementHandler) verifyAndRespond(w http.ResponseWriter, r *http.Request, email, token string) {
	e, err := h.service.VerifyEmail(r.Context(), email, token)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]any{
		"success":     true,
		"message":     "Email verified successfully. Your endorsement is now pending review.",
		"endorsement": toEndorsementResponse(e),
	})
}

// resendVerificationRequest は確認メール再送リクエストのボディ。
type resendVerificationRequest struct {
	Email string `json:"email"`
}

// ResendVerification は確認メールの再送を処理する。
// POST /api/endorsements/resend-verification
func (h *EndorsementHandler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	var req resendVerificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("Invalid JSON body"))
		return
	}
	if req.Email == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("Email is required"))
		return
	}

	if err := h.service.ResendVerification(r.Context(), req.Email); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Verification email sent",
	})
}

// Showcase は公開ショーケースの取得を処理する。
// GET /api/endorsements/showcase?category=&country=&featured=&limit=&offset=
func (h *EndorsementHandler) Showcase(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	query := endorsement.ShowcaseQuery{
		Category: q.Get("category"),
		Country:  q.Get("country"),
	}
	if v := q.Get("featured"); v != "" {
		featured, err := strconv.ParseBool(v)
		if err != nil {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("Featured must be true or false"))
			return
		}
		query.Featured = &featured
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("Limit must be an integer"))
			return
		}
		query.Limit = limit
	}
	if v := q.Get("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("Offset must be an integer"))
			return
		}
		query.Offset = offset
	}

	page, err := h.service.Showcase(r.Context(), query)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	items := make([]showcaseItemResponse, 0, len(page.Items))
	for _, e := range page.Items {
		items = append(items, toShowcaseItemResponse(e))
	}

	writeJSONResponse(w, http.StatusOK, map[string]any{
		"success":      true,
		"endorsements": items,
		"pagination": map[string]any{
			"total":    page.Total,
			"limit":    page.Limit,
			"offset":   page.Offset,
			"has_more": page.HasMore,
		},
		"filters": map[string]any{
			"categories": page.Categories,
			"countries":  page.Countries,
		},
	})
}

// --- ヘルパー関数 ---

// toEndorsementResponse はmodel.EndorsementからAPIレスポンスに変換する。
func toEndorsementResponse(e *model.Endorsement) endorsementResponse {
	resp := endorsementResponse{
		ID:               e.ID,
		Email:            e.Email,
		OrganizationName: e.OrganizationName,
		ContactPerson:    e.ContactPerson,
		Country:          e.Country,
		Website:          e.Website,
		Category:         e.Category,
		EndorsementType:  string(e.EndorsementType),
		Tier:             e.Tier,
		Headline:         e.Headline,
		Statement:        e.Statement,
		LogoURL:          e.LogoURL,
		VideoURL:         e.VideoURL,
		Status:           string(e.Status),
		Verified:         e.Verified,
		Featured:         e.Featured,
		RejectionReason:  e.RejectionReason,
		CreatedAt:        e.CreatedAt.Format(timeFormat),
		UpdatedAt:        e.UpdatedAt.Format(timeFormat),
	}
	if e.ApprovedAt != nil {
		at := e.ApprovedAt.Format(timeFormat)
		resp.ApprovedAt = &at
	}
	return resp
}

// toShowcaseItemResponse はmodel.Endorsementから公開向け投影に変換する。
func toShowcaseItemResponse(e *model.Endorsement) showcaseItemResponse {
	item := showcaseItemResponse{
		ID:               e.ID,
		OrganizationName: e.OrganizationName,
		Country:          e.Country,
		Category:         e.Category,
		Headline:         e.Headline,
		Statement:        e.Statement,
		LogoURL:          e.LogoURL,
		VideoURL:         e.VideoURL,
		Featured:         e.Featured,
	}
	if e.ApprovedAt != nil {
		at := e.ApprovedAt.Format(timeFormat)
		item.ApprovedAt = &at
	}
	return item
}

// timeFormat はAPIレスポンスの時刻フォーマット。
const timeFormat = "2006-01-02T15:04:05Z07:00"

// validationMessage はバリデーションエラーから先頭の1件を人間可読な文字列にする。
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Invalid request"
	}

	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("Field %s is required", fe.Field())
	case "email":
		return "A valid email address is required"
	case "url":
		return fmt.Sprintf("Field %s must be a valid URL", fe.Field())
	case "oneof":
		return fmt.Sprintf("Field %s must be one of: %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("Field %s is invalid", fe.Field())
	}
}
