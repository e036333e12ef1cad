// Package task はタスクのCRUD操作のビジネスロジックを提供する。
package task

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/taskchat/internal/model"
	"github.com/hitoshi/taskchat/internal/repository"
)

// Service はタスク操作のサービス。
// すべての操作は呼び出し元のセッションのサブジェクトIDを所有者として受け取り、
// 所有者スコープ外のタスクは存在しないものとして扱う。
type Service struct {
	taskRepo repository.TaskRepository
	now      func() time.Time
	newID    func() string
}

// NewService はServiceを生成する。
func NewService(taskRepo repository.TaskRepository) *Service {
	return &Service{
		taskRepo: taskRepo,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// CreateInput はタスク作成の入力。
type CreateInput struct {
	Title       string
	Description string
	Status      string // 空の場合はTODO
}

// Create はタスクを作成する。タイトルは必須で、状態を省略するとTODOになる。
func (s *Service) Create(ctx context.Context, userID string, input CreateInput) (*model.Task, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, model.NewEmptyTitleError()
	}

	status := model.TaskStatusTodo
	if input.Status != "" {
		status = model.TaskStatus(input.Status)
		if !status.IsValid() {
			return nil, model.NewInvalidStatusError(input.Status)
		}
	}

	now := s.now()
	task := &model.Task{
		ID:          s.newID(),
		UserID:      userID,
		Title:       title,
		Description: input.Description,
		Status:      status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.taskRepo.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	return task, nil
}

// List はユーザーのタスク一覧を作成日時の降順で返す。
func (s *Service) List(ctx context.Context, userID string) ([]*model.Task, error) {
	tasks, err := s.taskRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return tasks, nil
}

// UpdateStatus はタスクの状態を更新する。
// 所有者スコープ外のタスクIDはTASK_NOT_FOUNDとして扱う。
func (s *Service) UpdateStatus(ctx context.Context, userID, taskID, status string) error {
	newStatus := model.TaskStatus(status)
	if !newStatus.IsValid() {
		return model.NewInvalidStatusError(status)
	}

	if err := s.taskRepo.UpdateStatus(ctx, taskID, userID, newStatus); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewTaskNotFoundError(taskID)
		}
		return fmt.Errorf("failed to update task status: %w", err)
	}

	return nil
}

// UpdateDetailsInput はタイトル・説明の部分更新の入力。nilのフィールドは変更しない。
type UpdateDetailsInput struct {
	Title       *string
	Description *string
}

// UpdateDetails はタスクのタイトル・説明を部分更新する。
func (s *Service) UpdateDetails(ctx context.Context, userID, taskID string, input UpdateDetailsInput) error {
	if input.Title != nil {
		trimmed := strings.TrimSpace(*input.Title)
		if trimmed == "" {
			return model.NewEmptyTitleError()
		}
		input.Title = &trimmed
	}

	if input.Title == nil && input.Description == nil {
		return model.NewInvalidRequestError("更新するフィールドがありません")
	}

	if err := s.taskRepo.UpdateDetails(ctx, taskID, userID, input.Title, input.Description); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewTaskNotFoundError(taskID)
		}
		return fmt.Errorf("failed to update task details: %w", err)
	}

	return nil
}

// Delete はタスクを削除する。
func (s *Service) Delete(ctx context.Context, userID, taskID string) error {
	if err := s.taskRepo.Delete(ctx, taskID, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewTaskNotFoundError(taskID)
		}
		return fmt.Errorf("failed to delete task: %w", err)
	}

	return nil
}
