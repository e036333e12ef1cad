// Package chat は生成APIのストリーミング断片をHTTPハンドラへ橋渡しする。
package chat

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hitoshi/taskchat/internal/model"
)

// ストリーミング中の異常を表すエラー
var (
	// ErrIdleTimeout は次の断片が一定時間届かずストリームを打ち切ったことを示す。
	ErrIdleTimeout = errors.New("stream idle timeout exceeded")
)

const defaultIdleTimeout = 30 * time.Second

// Upstream は断片単位でテキストを生成するストリーミング上流。
type Upstream interface {
	StreamGenerate(ctx context.Context, prompt string, emit func(text string) error) error
}

// Event はブリッジが配信する1件のストリームイベント。
// Errが非nilの場合は終端イベントであり、以後イベントは届かない。
type Event struct {
	Text string
	Err  error
}

// Bridge は上流の生成ストリームをイベントチャネルへ変換する。
// チャネル容量は1で、消費側が追いつくまで生産側をブロックする。
type Bridge struct {
	upstream    Upstream
	idleTimeout time.Duration
}

// NewBridge はBridgeを生成する。idleTimeoutが0以下の場合はデフォルト値を使う。
func NewBridge(upstream Upstream, idleTimeout time.Duration) *Bridge {
	if idleTimeout <= 0 {
		idleTimeout = defaultIdleTimeout
	}
	return &Bridge{
		upstream:    upstream,
		idleTimeout: idleTimeout,
	}
}

// GenerateStream はプロンプトに対する生成を開始し、断片を順序どおりに配信する
// チャネルを返す。チャネルは自然完了時にクローズされ、異常終了時はErrを持つ
// 終端イベントの後にクローズされる。ctxのキャンセルは上流リクエストに伝播し、
// その場合は終端イベントなしでクローズされる。
func (b *Bridge) GenerateStream(ctx context.Context, prompt string) (<-chan Event, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, model.NewEmptyPromptError()
	}

	out := make(chan Event, 1)

	go func() {
		defer close(out)

		prodCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		// 次の断片が届かないまま放置されたストリームを打ち切るタイマー。
		// 断片が届くたびにリセットする。
		var timedOut atomic.Bool
		idle := time.AfterFunc(b.idleTimeout, func() {
			timedOut.Store(true)
			cancel()
		})
		defer idle.Stop()

		err := b.upstream.StreamGenerate(prodCtx, prompt, func(text string) error {
			idle.Reset(b.idleTimeout)
			select {
			case out <- Event{Text: text}:
				return nil
			case <-prodCtx.Done():
				return prodCtx.Err()
			}
		})
		if err == nil {
			return
		}

		if timedOut.Load() {
			err = ErrIdleTimeout
		}

		// クライアント起因のキャンセルは配信先が既にいないため終端イベント不要
		if ctx.Err() != nil && !timedOut.Load() {
			slog.Debug("generation stream canceled by client", "error", err)
			return
		}

		slog.Warn("generation stream failed", "error", err)
		select {
		case out <- Event{Err: err}:
		case <-ctx.Done():
		}
	}()

	return out, nil
}
