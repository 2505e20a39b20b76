// Package handler はHTTP APIのハンドラー層を提供する。
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/nesafrica/endorse/internal/model"
)

// errorResponse は統一エラーフォーマットのレスポンス。
// 重複申込エラーの場合のみendorsementに既存レコードの参照を含める。
type errorResponse struct {
	Success     bool                       `json:"success"`
	Message     string                     `json:"message"`
	Endorsement *model.ExistingEndorsement `json:"endorsement,omitempty"`
}

// writeJSONResponse はJSONレスポンスを書き込む。
func writeJSONResponse(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(payload)
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	writeJSONResponse(w, statusCode, errorResponse{
		Success:     false,
		Message:     apiErr.Message,
		Endorsement: apiErr.Existing,
	})
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う。詳細はログのみに残す
	slog.Error("internal server error", slog.String("error", err.Error()))
	writeJSONResponse(w, http.StatusInternalServerError, errorResponse{
		Success: false,
		Message: "Internal server error",
	})
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeEmailExists:
		return http.StatusConflict
	case model.ErrCodeNotFound:
		return http.StatusNotFound
	case model.ErrCodeInvalidToken,
		model.ErrCodeNotReadyForApproval,
		model.ErrCodeCannotReject,
		model.ErrCodeReasonRequired,
		model.ErrCodeNotApproved,
		model.ErrCodeAlreadyVerified,
		model.ErrCodeValidation,
		model.ErrCodeInvalidAction:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
