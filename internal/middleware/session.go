// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hitoshi/taskchat/internal/model"
	"github.com/hitoshi/taskchat/internal/session"
)

// SessionCookieName はセッショントークンを保持するCookieの名前。
// 値はセッションコーデックの出力（不透明な暗号化blob）のみを格納する。
// 生のIDトークン等をCookieに直接入れることはしない。
const SessionCookieName = "session"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// subjectIDContextKey はリクエストコンテキストに検証済みサブジェクトIDを格納するためのキー。
var subjectIDContextKey = contextKey("subject_id")

// TokenUnsealer はセッショントークンの開封に必要なインターフェース。
// session.Codecの部分集合として定義する。
type TokenUnsealer interface {
	Unseal(token string) (session.Claims, error)
}

// NewSessionMiddleware はHTTP Only Cookieからセッショントークンを読み取り、
// コーデックで開封・検証するミドルウェアを返す。
// 検証済みサブジェクトIDをリクエストコンテキストに注入する。
// Cookieの欠落・改ざん・期限切れはいずれも401 Unauthorizedで打ち切り、
// 副作用は発生させない。無効なセッションの修復は行わず、クライアントに再ログインを要求する。
func NewSessionMiddleware(codec TokenUnsealer) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// 1. Cookieからトークンを取得
			cookie, err := r.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			// 2. トークンを開封・検証
			claims, err := codec.Unseal(cookie.Value)
			if err != nil {
				// 拒否理由の区別はログにのみ残し、レスポンスでは区別しない
				if errors.Is(err, session.ErrExpired) {
					slog.Info("session rejected: expired")
				} else {
					slog.Warn("session rejected: invalid token")
				}
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			// 3. 検証済みサブジェクトIDをコンテキストに注入
			ctx := context.WithValue(r.Context(), subjectIDContextKey, claims.SubjectID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SubjectIDFromContext はリクエストコンテキストから検証済みサブジェクトIDを取得する。
// セッションミドルウェアを通過したリクエストでのみ有効。
func SubjectIDFromContext(ctx context.Context) (string, error) {
	subjectID, ok := ctx.Value(subjectIDContextKey).(string)
	if !ok || subjectID == "" {
		return "", fmt.Errorf("subject ID not found in context")
	}
	return subjectID, nil
}

// ContextWithSubjectID はコンテキストにサブジェクトIDを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithSubjectID(ctx context.Context, subjectID string) context.Context {
	return context.WithValue(ctx, subjectIDContextKey, subjectID)
}
