package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/taskchat/internal/model"
	"github.com/hitoshi/taskchat/internal/repository"
	"github.com/hitoshi/taskchat/internal/session"
)

// SessionCodec はセッショントークンの封緘・開封インターフェース。
// session.Codecの部分集合として定義する。
type SessionCodec interface {
	Seal(claims session.Claims) (string, error)
	Unseal(token string) (session.Claims, error)
}

// CreateSessionResult はセッション作成の結果を表す。
type CreateSessionResult struct {
	// Token は新規発行されたセッショントークン。Reusedがtrueの場合は空。
	Token string
	// Reused は有効な既存セッションが同一サブジェクトのものであり、
	// 再発行もユーザーディレクトリへの書き込みも行わなかったことを示す。
	Reused bool
}

// Service はセッション発行に関するビジネスロジックを提供する。
type Service struct {
	verifier IdentityVerifier
	codec    SessionCodec
	userRepo repository.UserRepository
}

// NewService はServiceを生成する。
func NewService(verifier IdentityVerifier, codec SessionCodec, userRepo repository.UserRepository) *Service {
	return &Service{
		verifier: verifier,
		codec:    codec,
		userRepo: userRepo,
	}
}

// CreateSession はIDトークンを検証し、セッショントークンを発行する。
// currentTokenには既存セッションCookieの値を渡す（存在しない場合は空文字列）。
//
// 既存セッションが有効かつ同一サブジェクトの場合は、ユーザーディレクトリへの
// 書き込みもトークンの再発行も行わずReused=trueを返す。ページリロード等で
// 繰り返し呼ばれた際の冗長な書き込みを避けるための冪等化。
//
// IDトークンの検証失敗は*model.APIError（UNAUTHORIZED）、それ以降の失敗は
// 原因を内包したエラーとして返す。原因はログにのみ残り、クライアントへは返らない。
func (s *Service) CreateSession(ctx context.Context, idToken, currentToken string) (*CreateSessionResult, error) {
	// 1. IDトークンをIdPで検証
	info, err := s.verifier.VerifyIDToken(ctx, idToken)
	if err != nil {
		slog.Warn("id token verification failed", slog.String("error", err.Error()))
		return nil, model.NewUnauthorizedError()
	}

	// 2. 冪等化: 既存セッションが同一サブジェクトなら何もしない
	if currentToken != "" {
		if claims, err := s.codec.Unseal(currentToken); err == nil && claims.SubjectID == info.SubjectID {
			slog.Info("existing session reused",
				slog.String("subject_id", info.SubjectID),
			)
			return &CreateSessionResult{Reused: true}, nil
		}
		// 開封失敗や別サブジェクトは新規発行で上書きする。無効なセッションの修復は行わない。
	}

	// 3. ユーザーディレクトリを冪等にUPSERT
	now := time.Now()
	user := &model.User{
		ID:        info.SubjectID,
		Email:     info.Email,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.userRepo.Upsert(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}

	// 4. 新しいクレームを封緘。ログインのたびに既存セッションを完全に置き換える
	token, err := s.codec.Seal(session.Claims{SubjectID: info.SubjectID})
	if err != nil {
		return nil, fmt.Errorf("failed to seal session claims: %w", err)
	}

	slog.Info("session created",
		slog.String("subject_id", info.SubjectID),
	)

	return &CreateSessionResult{Token: token}, nil
}
