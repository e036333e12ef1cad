package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/taskchat/internal/auth"
	"github.com/hitoshi/taskchat/internal/metrics"
	"github.com/hitoshi/taskchat/internal/middleware"
	"github.com/hitoshi/taskchat/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	CreateSession(ctx context.Context, idToken, currentToken string) (*auth.CreateSessionResult, error)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	CookieDomain  string
	CookieSecure  bool
	SessionMaxAge int // セッションCookieの有効期間（秒）
}

// AuthHandler はセッション管理のHTTPハンドラー。
type AuthHandler struct {
	service   AuthServiceInterface
	config    AuthHandlerConfig
	collector metrics.MetricsCollector
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, config AuthHandlerConfig, collector metrics.MetricsCollector) *AuthHandler {
	return &AuthHandler{
		service:   service,
		config:    config,
		collector: collector,
	}
}

// createSessionRequest はセッション作成リクエストのボディ。
type createSessionRequest struct {
	IDToken string `json:"idToken"`
}

// CreateSession はIDトークンを検証しセッションCookieを発行する。
// POST /auth/session
//
// 既存の有効なセッションが同一ユーザーのものである場合はCookieを再発行しない。
func (h *AuthHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("JSONボディを解析できません"))
		return
	}

	// 既存セッションCookieは冪等化判定のために渡す。存在しなくてもよい
	var currentToken string
	if cookie, err := r.Cookie(middleware.SessionCookieName); err == nil {
		currentToken = cookie.Value
	}

	result, err := h.service.CreateSession(r.Context(), req.IDToken, currentToken)
	if err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeUnauthorized {
			h.collector.RecordAuthRejection()
		}
		handleServiceError(w, r, err)
		return
	}

	if !result.Reused {
		http.SetCookie(w, &http.Cookie{
			Name:     middleware.SessionCookieName,
			Value:    result.Token,
			Path:     "/",
			Domain:   h.config.CookieDomain,
			MaxAge:   h.config.SessionMaxAge,
			HttpOnly: true,
			Secure:   h.config.CookieSecure,
			SameSite: http.SameSiteLaxMode,
		})
	}

	h.collector.RecordSessionCreated(result.Reused)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"success": true,
		"reused":  result.Reused,
	})
}

// DeleteSession はセッションCookieを破棄する。
// DELETE /auth/session
//
// Cookieの有無やトークンの有効性に関わらず常にクリアして成功を返す。
// サーバー側に破棄すべきセッション状態は存在しない。
func (h *AuthHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	slog.Info("session cleared")

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"success": true,
	})
}
