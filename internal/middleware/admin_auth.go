package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
)

// NewAdminAuthMiddleware は管理エンドポイント用のBearerトークン認証ミドルウェアを返す。
// Authorizationヘッダーのトークンを共有シークレットと定数時間比較し、
// 不一致・欠落時は401を返す。トークン値はログに出力しない。
func NewAdminAuthMiddleware(adminToken string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			const prefix = "Bearer "
			if !strings.HasPrefix(auth, prefix) {
				writeUnauthorizedResponse(w)
				return
			}

			presented := auth[len(prefix):]
			if subtle.ConstantTimeCompare([]byte(presented), []byte(adminToken)) != 1 {
				writeUnauthorizedResponse(w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// writeUnauthorizedResponse は401レスポンスを書き込む。
func writeUnauthorizedResponse(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)

	json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"message": "Unauthorized",
	})
}
