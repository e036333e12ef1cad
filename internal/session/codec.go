// Package session はセッションクレームの封緘（認証付き暗号化）と開封を提供する。
package session

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/chacha20poly1305"
)

// MinSecretLength はセッションシークレットの最小文字数。
// 起動時に1回だけ検証する不変条件であり、Seal/Unsealごとには検証しない。
const MinSecretLength = 32

var (
	// ErrInvalidToken は認証タグの検証失敗（改ざんまたは別シークレット）や
	// トークンの形式不正を表す。原因の区別はしない。
	ErrInvalidToken = errors.New("invalid session token")

	// ErrExpired はトークンに埋め込まれた有効期限の超過を表す。
	ErrExpired = errors.New("session token expired")
)

// Claims はセッショントークンに封入する最小限の認証済みペイロード。
type Claims struct {
	SubjectID string `json:"sub"`
}

// sealedPayload は暗号化前のシリアライズ形式。有効期限を内包する。
type sealedPayload struct {
	SubjectID string `json:"sub"`
	ExpiresAt int64  `json:"exp"` // Unix秒
}

// Codec はXChaCha20-Poly1305によるセッショントークンの封緘・開封を行う。
// Cookieの値はこのコーデックの出力のみを用い、生のIDトークン等を直接格納しない。
type Codec struct {
	aead cipher.AEAD
	ttl  time.Duration

	// now はテストで時刻を差し替えるためのフック。
	now func() time.Time
}

// NewCodec はCodecを生成する。
// secretがMinSecretLength文字未満の場合は設定エラーを返す。
func NewCodec(secret string, ttl time.Duration) (*Codec, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("session secret must be at least %d characters, got %d", MinSecretLength, len(secret))
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("session ttl must be positive, got %v", ttl)
	}

	// シークレットから鍵長固定の鍵を導出する
	key := sha256.Sum256([]byte(secret))
	aead, err := chacha20poly1305.NewX(key[:])
	if err != nil {
		return nil, fmt.Errorf("failed to initialize aead: %w", err)
	}

	return &Codec{
		aead: aead,
		ttl:  ttl,
		now:  time.Now,
	}, nil
}

// Seal はクレームを暗号化・認証し、不透明なトークン文字列を返す。
// 有効期限はTTLから導出してトークンに埋め込む。
func (c *Codec) Seal(claims Claims) (string, error) {
	payload := sealedPayload{
		SubjectID: claims.SubjectID,
		ExpiresAt: c.now().Add(c.ttl).Unix(),
	}

	plaintext, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal claims: %w", err)
	}

	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	// nonce || ciphertext をbase64urlで連結する
	sealed := c.aead.Seal(nonce, nonce, plaintext, nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Unseal はトークンを復号・検証してクレームを返す。
// 認証タグの検証失敗や形式不正はErrInvalidToken、期限超過はErrExpiredを返す。
// 形式不正と復号失敗は同じエラーに集約し、区別可能な情報を漏らさない。
func (c *Codec) Unseal(token string) (Claims, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Claims{}, ErrInvalidToken
	}

	nonceSize := c.aead.NonceSize()
	if len(raw) < nonceSize+c.aead.Overhead() {
		return Claims{}, ErrInvalidToken
	}

	nonce, ciphertext := raw[:nonceSize], raw[nonceSize:]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return Claims{}, ErrInvalidToken
	}

	var payload sealedPayload
	if err := json.Unmarshal(plaintext, &payload); err != nil {
		return Claims{}, ErrInvalidToken
	}
	if payload.SubjectID == "" {
		return Claims{}, ErrInvalidToken
	}

	// 有効期限はCookieのmax-ageとは独立に、開封のたびに再検証する
	if c.now().Unix() > payload.ExpiresAt {
		return Claims{}, ErrExpired
	}

	return Claims{SubjectID: payload.SubjectID}, nil
}
