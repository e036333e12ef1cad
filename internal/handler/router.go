package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/taskchat/internal/metrics"
	"github.com/hitoshi/taskchat/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	SessionCodec      middleware.TokenUnsealer
	CORSAllowedOrigin string
	CSRFConfig        middleware.CSRFConfig
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// タスク
	TaskService TaskServiceInterface

	// チャット
	ChatService ChatServiceInterface

	// メトリクス
	Collector metrics.MetricsCollector
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → SecurityHeaders → CORS → (保護ルートのみ: Session → CSRF → RateLimit)
//
// セッション作成・破棄（/auth/session）とヘルスチェックはセッションミドルウェアの外に
// 配置する。状態変更を伴う認証ルートにはCSRF検証のみ適用する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig, deps.Collector)
	taskHandler := NewTaskHandler(deps.TaskService, deps.Collector)
	chatHandler := NewChatHandler(deps.ChatService, deps.Collector)

	csrf := middleware.NewCSRFMiddleware(deps.CSRFConfig)

	// --- 認証不要のルート ---

	r.Get("/health", handleHealth)
	r.Method(http.MethodGet, "/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))

	// セッション管理。作成はIDトークン自体が資格情報であり、破棄は常に成功する
	r.Route("/auth/session", func(r chi.Router) {
		r.Use(csrf)
		r.Post("/", authHandler.CreateSession)
		r.Delete("/", authHandler.DeleteSession)
	})

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Session → CSRF → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionCodec))
		r.Use(csrf)
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// タスク管理
		r.Route("/api/tasks", func(r chi.Router) {
			r.Post("/", taskHandler.CreateTask)
			r.Get("/", taskHandler.ListTasks)

			r.Route("/{id}", func(r chi.Router) {
				r.Patch("/", taskHandler.UpdateTaskDetails)
				r.Delete("/", taskHandler.DeleteTask)
				r.Put("/status", taskHandler.UpdateTaskStatus)
			})
		})

		// チャットストリーム（生成専用レート制限を追加）
		r.With(deps.RateLimiter.ChatMiddleware()).Post("/api/chat/stream", chatHandler.StreamChat)
	})

	return r
}

// handleHealth は死活監視用のエンドポイント。
// GET /health
func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status": "ok",
	})
}
