// Package auth はIDトークンの検証とセッション発行のビジネスロジックを提供する。
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const defaultGoogleTokenInfoURL = "https://oauth2.googleapis.com/tokeninfo"

// IdentityInfo はIdPで検証済みのユーザー情報を表す。
type IdentityInfo struct {
	SubjectID string
	Email     string // 空の場合あり
}

// IdentityVerifier は不透明なIDトークンを検証するインターフェース。
// 将来的に複数IdP（Google, GitHub等）に対応するための抽象化。
type IdentityVerifier interface {
	// VerifyIDToken はIDトークンを検証し、検証済みのサブジェクトIDとメールアドレスを返す。
	VerifyIDToken(ctx context.Context, idToken string) (*IdentityInfo, error)
}

// GoogleVerifierConfig はGoogle IDトークン検証の設定。
type GoogleVerifierConfig struct {
	ClientID string

	// テスト用にオーバーライド可能なURL
	TokenInfoURL string
}

// GoogleVerifier はGoogleのtokeninfoエンドポイントによるIDトークン検証を提供する。
// 起動時に1回だけ生成し、プロセス全体で共有する。初回呼び出し時の遅延初期化は行わない。
type GoogleVerifier struct {
	config GoogleVerifierConfig
	client *http.Client
}

// NewGoogleVerifier はGoogleVerifierを生成する。
func NewGoogleVerifier(config GoogleVerifierConfig) *GoogleVerifier {
	if config.TokenInfoURL == "" {
		config.TokenInfoURL = defaultGoogleTokenInfoURL
	}
	return &GoogleVerifier{
		config: config,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// googleTokenInfo はtokeninfoエンドポイントのレスポンス。
type googleTokenInfo struct {
	Sub   string `json:"sub"`
	Email string `json:"email"`
	Aud   string `json:"aud"`
	Exp   string `json:"exp"` // Unix秒の文字列表現
}

// VerifyIDToken はIDトークンをtokeninfoエンドポイントで検証する。
// audが設定済みクライアントIDと一致し、期限内で、subが空でないことを確認する。
func (v *GoogleVerifier) VerifyIDToken(ctx context.Context, idToken string) (*IdentityInfo, error) {
	if idToken == "" {
		return nil, fmt.Errorf("empty id token")
	}

	endpoint := v.config.TokenInfoURL + "?" + url.Values{"id_token": {idToken}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create tokeninfo request: %w", err)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tokeninfo request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read tokeninfo response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("token verification failed with status %d: %s", resp.StatusCode, string(body))
	}

	var info googleTokenInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("failed to parse tokeninfo response: %w", err)
	}

	if info.Sub == "" {
		return nil, fmt.Errorf("empty sub in tokeninfo response")
	}
	if info.Aud != v.config.ClientID {
		return nil, fmt.Errorf("audience mismatch")
	}
	if exp, err := strconv.ParseInt(info.Exp, 10, 64); err == nil && time.Now().Unix() > exp {
		return nil, fmt.Errorf("id token expired")
	}

	return &IdentityInfo{
		SubjectID: info.Sub,
		Email:     info.Email,
	}, nil
}

// compile-time interface check
var _ IdentityVerifier = (*GoogleVerifier)(nil)
