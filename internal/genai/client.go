// Package genai はホスト型テキスト生成APIのストリーミングクライアントを提供する。
package genai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.openai.com/v1"

// Config は生成APIクライアントの設定。
type Config struct {
	APIKey string
	Model  string

	// テスト用にオーバーライド可能なURL
	BaseURL string
}

// Client は生成APIのchat completionsエンドポイントをSSEストリーミングで呼び出す。
// 起動時に1回だけ生成し、プロセス全体で共有する。
type Client struct {
	config Config
	client *http.Client
}

// NewClient はClientを生成する。
func NewClient(config Config) *Client {
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	return &Client{
		config: config,
		// ストリーミング応答全体の所要時間は不定のため全体タイムアウトは設定しない。
		// 接続確立までの上限のみ設ける。フラグメント間の停滞はブリッジ側で打ち切る。
		client: &http.Client{
			Transport: &http.Transport{
				ResponseHeaderTimeout: 30 * time.Second,
			},
		},
	}
}

// chatCompletionRequest はchat completionsエンドポイントのリクエストボディ。
type chatCompletionRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatCompletionChunk はSSEで届くストリーミングチャンク。
type chatCompletionChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
}

// StreamGenerate はプロンプトを送信し、生成されたテキスト断片が届くたびにemitを呼ぶ。
// ストリームが自然完了した場合はnilを返す。emitがエラーを返した場合は即座に
// 中断してそのエラーを返す。キャンセルはctx経由で上流リクエストに伝播する。
func (c *Client) StreamGenerate(ctx context.Context, prompt string, emit func(text string) error) error {
	reqBody, err := json.Marshal(chatCompletionRequest{
		Model:    c.config.Model,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
		Stream:   true,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal generation request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.config.BaseURL+"/chat/completions", bytes.NewReader(reqBody))
	if err != nil {
		return fmt.Errorf("failed to create generation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("generation request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("generation API returned status %d: %s", resp.StatusCode, string(body))
	}

	return c.consumeStream(ctx, resp.Body, emit)
}

// consumeStream はSSE形式のレスポンスボディを1行ずつ読み、テキスト断片をemitする。
func (c *Client) consumeStream(ctx context.Context, body io.Reader, emit func(text string) error) error {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" || !strings.HasPrefix(line, "data:") {
			continue
		}

		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "[DONE]" {
			return nil
		}

		var chunk chatCompletionChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			return fmt.Errorf("failed to parse stream chunk: %w", err)
		}

		for _, choice := range chunk.Choices {
			if choice.Delta.Content == "" {
				continue
			}
			if err := emit(choice.Delta.Content); err != nil {
				return err
			}
		}
	}

	if err := scanner.Err(); err != nil {
		// キャンセルによるボディ切断はctxのエラーとして返す
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("failed to read generation stream: %w", err)
	}

	// [DONE]なしのEOFも自然完了として扱う
	return nil
}
