package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/taskchat/internal/model"
)

// PostgresTaskRepo はPostgreSQLを使用したタスクリポジトリ。
// 変更系のSQLはすべて id AND user_id を条件に含み、
// 他ユーザーのタスクへの影響を構造的に不可能にする。
type PostgresTaskRepo struct {
	db *sql.DB
}

// NewPostgresTaskRepo はPostgresTaskRepoを生成する。
func NewPostgresTaskRepo(db *sql.DB) *PostgresTaskRepo {
	return &PostgresTaskRepo{db: db}
}

// Create はタスクを作成する。
func (r *PostgresTaskRepo) Create(ctx context.Context, task *model.Task) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tasks (id, user_id, title, description, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		task.ID, task.UserID, task.Title, task.Description, string(task.Status),
		task.CreatedAt, task.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert task: %w", err)
	}
	return nil
}

// ListByUserID はユーザーのタスク一覧を作成日時の降順で返す。
func (r *PostgresTaskRepo) ListByUserID(ctx context.Context, userID string) ([]*model.Task, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, title, description, status, created_at, updated_at
		 FROM tasks
		 WHERE user_id = $1
		 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*model.Task
	for rows.Next() {
		task := &model.Task{}
		var status string
		if err := rows.Scan(&task.ID, &task.UserID, &task.Title, &task.Description,
			&status, &task.CreatedAt, &task.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		task.Status = model.TaskStatus(status)
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tasks: %w", err)
	}

	return tasks, nil
}

// UpdateStatus は所有者スコープ付きでタスクの状態を更新する。
func (r *PostgresTaskRepo) UpdateStatus(ctx context.Context, id, userID string, status model.TaskStatus) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE tasks SET status = $3, updated_at = $4
		 WHERE id = $1 AND user_id = $2`,
		id, userID, string(status), time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to update task status: %w", err)
	}
	return requireRowAffected(result)
}

// UpdateDetails は所有者スコープ付きでタイトル・説明を部分更新する。
// nilのフィールドはCOALESCEにより既存値を維持する。
func (r *PostgresTaskRepo) UpdateDetails(ctx context.Context, id, userID string, title, description *string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE tasks
		 SET title = COALESCE($3, title),
		     description = COALESCE($4, description),
		     updated_at = $5
		 WHERE id = $1 AND user_id = $2`,
		id, userID, title, description, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to update task details: %w", err)
	}
	return requireRowAffected(result)
}

// Delete は所有者スコープ付きでタスクを削除する。
func (r *PostgresTaskRepo) Delete(ctx context.Context, id, userID string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM tasks WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	return requireRowAffected(result)
}

// requireRowAffected は変更行数が0の場合にErrNotFoundを返す。
func requireRowAffected(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// compile-time interface check
var _ TaskRepository = (*PostgresTaskRepo)(nil)
