// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/taskchat/internal/model"
)

// ErrNotFound は所有者スコープ付きの変更が0行にしか一致しなかったことを表す。
// 「存在しない」と「他ユーザーの所有物」は意図的に区別しない。
var ErrNotFound = errors.New("not found")

// UserRepository はユーザーディレクトリの永続化インターフェース。
type UserRepository interface {
	// Upsert はサブジェクトIDをキーとしてユーザーを冪等にUPSERTする。
	// 未登録なら作成、登録済みならemailとupdated_atのみ更新する。
	Upsert(ctx context.Context, user *model.User) error

	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)
}

// TaskRepository はタスクデータの永続化インターフェース。
// すべての読み書きは所有者スコープ付き述語（id AND user_id）で保護される。
type TaskRepository interface {
	// Create はタスクを作成する。
	Create(ctx context.Context, task *model.Task) error

	// ListByUserID はユーザーのタスク一覧を作成日時の降順で返す。
	ListByUserID(ctx context.Context, userID string) ([]*model.Task, error)

	// UpdateStatus は所有者スコープ付きでタスクの状態を更新する。
	// 0行にしか一致しない場合はErrNotFoundを返す。
	UpdateStatus(ctx context.Context, id, userID string, status model.TaskStatus) error

	// UpdateDetails は所有者スコープ付きでタイトル・説明を部分更新する。
	// nilのフィールドは変更しない。0行にしか一致しない場合はErrNotFoundを返す。
	UpdateDetails(ctx context.Context, id, userID string, title, description *string) error

	// Delete は所有者スコープ付きでタスクを削除する。
	// 0行にしか一致しない場合はErrNotFoundを返す。
	Delete(ctx context.Context, id, userID string) error
}
