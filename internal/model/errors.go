package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, task, generation, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized      = "UNAUTHORIZED"
	ErrCodeTaskNotFound      = "TASK_NOT_FOUND"
	ErrCodeInvalidRequest    = "INVALID_REQUEST"
	ErrCodeInvalidStatus     = "INVALID_STATUS"
	ErrCodeEmptyPrompt       = "EMPTY_PROMPT"
	ErrCodeEmptyTitle        = "EMPTY_TITLE"
	ErrCodeUpstreamGenError  = "UPSTREAM_GENERATION_ERROR"
	ErrCodeInternal          = "INTERNAL_ERROR"
)

// NewUnauthorizedError は未認証エラーを生成する。
// セッションの欠落・改ざん・期限切れ、IDトークンの検証失敗のいずれも同じエラーになる。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewTaskNotFoundError はタスク未検出エラーを生成する。
// 「存在しない」と「他ユーザーの所有物」を意図的に区別しない。
// 区別すると他ユーザーのタスクIDの存在が推測可能になるため。
func NewTaskNotFoundError(taskID string) *APIError {
	return &APIError{
		Code:     ErrCodeTaskNotFound,
		Message:  fmt.Sprintf("指定されたタスクが見つかりません: %s", taskID),
		Category: "task",
		Action:   "タスクIDを確認してください。",
	}
}

// NewInvalidRequestError は不正なリクエスト形式エラーを生成する。
func NewInvalidRequestError(detail string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("リクエストの形式が不正です: %s", detail),
		Category: "validation",
		Action:   "リクエスト内容を確認してください。",
	}
}

// NewInvalidStatusError は無効なタスク状態エラーを生成する。
func NewInvalidStatusError(status string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidStatus,
		Message:  fmt.Sprintf("無効なタスク状態です: %s", status),
		Category: "validation",
		Action:   "状態には BACKLOG、TODO、IN_PROGRESS、DONE、CANCELED のいずれかを指定してください。",
	}
}

// NewEmptyPromptError は空のプロンプトエラーを生成する。
func NewEmptyPromptError() *APIError {
	return &APIError{
		Code:     ErrCodeEmptyPrompt,
		Message:  "プロンプトが空です。",
		Category: "validation",
		Action:   "メッセージを入力してから送信してください。",
	}
}

// NewEmptyTitleError は空のタイトルエラーを生成する。
func NewEmptyTitleError() *APIError {
	return &APIError{
		Code:     ErrCodeEmptyTitle,
		Message:  "タスクのタイトルが空です。",
		Category: "validation",
		Action:   "タイトルを入力してください。",
	}
}

// NewUpstreamGenerationError は生成APIの失敗エラーを生成する。
// 上流の生の失敗内容はログにのみ記録し、クライアントには返さない。
func NewUpstreamGenerationError() *APIError {
	return &APIError{
		Code:     ErrCodeUpstreamGenError,
		Message:  "応答の生成に失敗しました。",
		Category: "generation",
		Action:   "プロンプトを再送信してください。",
	}
}

// NewInternalError は内部エラーを生成する。
// 原因の詳細はサーバー側のログにのみ残す。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
