package model

import "time"

// TaskStatus はタスクの進行状態を表す。
type TaskStatus string

const (
	TaskStatusBacklog    TaskStatus = "BACKLOG"
	TaskStatusTodo       TaskStatus = "TODO"
	TaskStatusInProgress TaskStatus = "IN_PROGRESS"
	TaskStatusDone       TaskStatus = "DONE"
	TaskStatusCanceled   TaskStatus = "CANCELED"
)

// IsValid はTaskStatusが定義済みの値かどうかを判定する。
func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskStatusBacklog, TaskStatusTodo, TaskStatusInProgress, TaskStatusDone, TaskStatusCanceled:
		return true
	default:
		return false
	}
}

// Task はユーザーが所有するToDoタスクを表す。
// すべての読み書きはUserIDとセッションのサブジェクトIDの一致を条件とするSQL述語で保護され、
// 他ユーザーのタスクへのアクセスは構造的に不可能となる。
type Task struct {
	ID          string
	UserID      string // 所有者のサブジェクトID
	Title       string
	Description string // 空の場合あり
	Status      TaskStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
