// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/taskchat/internal/middleware"
	"github.com/hitoshi/taskchat/internal/model"
)

// statusForAPIError はエラーコードからHTTPステータスコードを決定する。
func statusForAPIError(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case model.ErrCodeTaskNotFound:
		return http.StatusNotFound
	case model.ErrCodeInvalidRequest, model.ErrCodeInvalidStatus,
		model.ErrCodeEmptyPrompt, model.ErrCodeEmptyTitle:
		return http.StatusBadRequest
	case model.ErrCodeUpstreamGenError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// handleServiceError はサービス層のエラーを統一エラーフォーマットで書き出す。
// *model.APIErrorはコードに応じたステータスで返し、それ以外は詳細をログにのみ
// 残して500を返す。
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteErrorResponse(w, statusForAPIError(apiErr), apiErr)
		return
	}

	slog.Error("request failed",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	middleware.WriteInternalServerError(w)
}
