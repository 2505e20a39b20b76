package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/nesafrica/endorse/internal/endorsement"
	"github.com/nesafrica/endorse/internal/model"
)

// AdminServiceInterface は管理ハンドラーが必要とするサービスインターフェース。
type AdminServiceInterface interface {
	// AdminList は管理画面向けの一覧を返す。statusが空の場合は全件。
	AdminList(ctx context.Context, status string) ([]*model.Endorsement, error)
	// Approve はpending_reviewかつverifiedのエンドースメントを承認する。
	Approve(ctx context.Context, id string) (*model.Endorsement, error)
	// Reject はエンドースメントを理由付きで却下する。
	Reject(ctx context.Context, id, reason string) (*model.Endorsement, error)
	// Feature は承認済みエンドースメントを注目表示に設定する。
	Feature(ctx context.Context, id string) (*model.Endorsement, error)
	// Unfeature は注目表示を解除する。冪等。
	Unfeature(ctx context.Context, id string) (*model.Endorsement, error)
	// Dashboard は管理ダッシュボードの集計を返す。
	Dashboard(ctx context.Context) (*endorsement.DashboardCounts, error)
}

// AdminHandler は管理APIのHTTPハンドラー。
// 認証はルーター側のAdminAuthMiddlewareが担い、このハンドラーには
// 認証済みリクエストのみが到達する。
type AdminHandler struct {
	service AdminServiceInterface
}

// NewAdminHandler はAdminHandlerを生成する。
func NewAdminHandler(service AdminServiceInterface) *AdminHandler {
	return &AdminHandler{
		service: service,
	}
}

// List はエンドースメント一覧の取得を処理する。
// GET /api/admin/endorsements?status=
func (h *AdminHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.AdminList(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	responses := make([]endorsementResponse, 0, len(items))
	for _, e := range items {
		responses = append(responses, toEndorsementResponse(e))
	}

	statuses := make([]string, 0, len(model.AllStatuses()))
	for _, st := range model.AllStatuses() {
		statuses = append(statuses, string(st))
	}

	writeJSONResponse(w, http.StatusOK, map[string]any{
		"success":      true,
		"endorsements": responses,
		"total":        len(responses),
		"statuses":     statuses,
	})
}

// adminActionRequest は管理アクションリクエストのボディ。
type adminActionRequest struct {
	ID     string `json:"id"`
	Action string `json:"action"`
	Reason string `json:"reason"`
}

// Action は管理アクション（approve/reject/feature/unfeature）を処理する。
// POST /api/admin/endorsements
func (h *AdminHandler) Action(w http.ResponseWriter, r *http.Request) {
	var req adminActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("Invalid JSON body"))
		return
	}
	if req.ID == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("Endorsement id is required"))
		return
	}

	var (
		e       *model.Endorsement
		message string
		err     error
	)
	switch req.Action {
	case "approve":
		e, err = h.service.Approve(r.Context(), req.ID)
		message = "Endorsement approved"
	case "reject":
		e, err = h.service.Reject(r.Context(), req.ID, req.Reason)
		message = "Endorsement rejected"
	case "feature":
		e, err = h.service.Feature(r.Context(), req.ID)
		message = "Endorsement featured"
	case "unfeature":
		e, err = h.service.Unfeature(r.Context(), req.ID)
		message = "Endorsement unfeatured"
	default:
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidActionError(req.Action))
		return
	}
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]any{
		"success":     true,
		"message":     message,
		"endorsement": toEndorsementResponse(e),
	})
}

// Dashboard はダッシュボード集計の取得を処理する。
// GET /api/admin/dashboard
func (h *AdminHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	counts, err := h.service.Dashboard(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]any{
		"success":      true,
		"endorsements": counts,
	})
}
