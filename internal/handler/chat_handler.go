package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/taskchat/internal/chat"
	"github.com/hitoshi/taskchat/internal/metrics"
	"github.com/hitoshi/taskchat/internal/middleware"
	"github.com/hitoshi/taskchat/internal/model"
)

// ChatServiceInterface はチャットハンドラーが必要とするサービスインターフェース。
type ChatServiceInterface interface {
	GenerateStream(ctx context.Context, prompt string) (<-chan chat.Event, error)
}

// ChatHandler は生成ストリームをSSEで配信するHTTPハンドラー。
type ChatHandler struct {
	service   ChatServiceInterface
	collector metrics.MetricsCollector
}

// NewChatHandler はChatHandlerを生成する。
func NewChatHandler(service ChatServiceInterface, collector metrics.MetricsCollector) *ChatHandler {
	return &ChatHandler{
		service:   service,
		collector: collector,
	}
}

// chatStreamRequest はチャットストリーム開始リクエストのボディ。
type chatStreamRequest struct {
	Prompt string `json:"prompt"`
}

// StreamChat はプロンプトへの生成応答をSSEでストリーミングする。
// POST /api/chat/stream
//
// 各断片は message イベント、自然完了は done イベント、異常終了は error イベント
// として配信する。ストリーム開始前のエラーは通常のJSONエラーレスポンスで返す。
func (h *ChatHandler) StreamChat(w http.ResponseWriter, r *http.Request) {
	if _, ok := subjectID(w, r); !ok {
		return
	}

	var req chatStreamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("JSONボディを解析できません"))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		slog.Error("response writer does not support streaming")
		middleware.WriteInternalServerError(w)
		return
	}

	events, err := h.service.GenerateStream(r.Context(), req.Prompt)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	// リバースプロキシのバッファリングを無効化
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	start := time.Now()
	fragments := 0

	for ev := range events {
		if ev.Err != nil {
			h.collector.RecordUpstreamFailure()
			writeSSEError(w, ev.Err)
			flusher.Flush()
			h.finishStream(start, fragments)
			return
		}

		payload, err := json.Marshal(map[string]string{"text": ev.Text})
		if err != nil {
			slog.Error("failed to marshal stream fragment", slog.String("error", err.Error()))
			continue
		}
		fmt.Fprintf(w, "event: message\ndata: %s\n\n", payload)
		flusher.Flush()
		fragments++
	}

	// クライアント切断時は終端イベントを書いても届かないだけなので区別しない
	fmt.Fprint(w, "event: done\ndata: {}\n\n")
	flusher.Flush()
	h.finishStream(start, fragments)
}

// writeSSEError は終端エラーイベントを書き込む。
// 上流の生の失敗内容はログにのみ残し、クライアントには統一フォーマットで返す。
func writeSSEError(w http.ResponseWriter, streamErr error) {
	apiErr := model.NewUpstreamGenerationError()
	if errors.Is(streamErr, chat.ErrIdleTimeout) {
		slog.Warn("stream terminated by idle timeout")
	}

	payload, err := json.Marshal(middleware.ErrorResponseBody{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
	if err != nil {
		slog.Error("failed to marshal stream error", slog.String("error", err.Error()))
		return
	}
	fmt.Fprintf(w, "event: error\ndata: %s\n\n", payload)
}

func (h *ChatHandler) finishStream(start time.Time, fragments int) {
	h.collector.RecordStreamFragments(fragments)
	h.collector.RecordStreamDuration(time.Since(start))
}
