// C:\Users\wasab\OneDrive\デスクトップ\TSUSHO\scanner\buffer.go
package scanner

import (
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

const (
	DefaultQuiet     = 500 * time.Millisecond
	DefaultMaxLength = 20
)

// State はスキャン入力の状態です。
type State int

const (
	Idle State = iota
	Buffering
)

func (s State) String() string {
	if s == Buffering {
		return "buffering"
	}
	return "idle"
}

// Options はスキャナごとの設定です。
type Options struct {
	Quiet     time.Duration // 入力が途切れてから確定するまでの待ち時間
	MaxLength int           // 正規化後の長さがこれに達したら即確定
	Reversed  bool          // 文字列を逆順で出力するスキャナ向け
}

// Buffer はスキャナのキー入力を貯め、1回分のコードとして確定させます。
// 確定時のコールバックはロックの外で呼び出します。
type Buffer struct {
	opts   Options
	onScan func(string)

	mu     sync.Mutex
	buf    strings.Builder
	state  State
	timer  *time.Timer
	gen    uint64
	closed bool
}

func NewBuffer(opts Options, onScan func(string)) *Buffer {
	if opts.Quiet <= 0 {
		opts.Quiet = DefaultQuiet
	}
	if opts.MaxLength <= 0 {
		opts.MaxLength = DefaultMaxLength
	}
	return &Buffer{opts: opts, onScan: onScan}
}

// Normalize は改行を除去して前後の空白を取り、全角を半角に寄せて NFKC 正規化します。
func Normalize(raw string, reversed bool) string {
	s := strings.NewReplacer("\r", "", "\n", "").Replace(raw)
	s = strings.TrimSpace(s)
	s = width.Narrow.String(s)
	s = norm.NFKC.String(s)
	if reversed {
		r := []rune(s)
		for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
			r[i], r[j] = r[j], r[i]
		}
		s = string(r)
	}
	return s
}

// Input は受信した文字列を追加します。
// 改行を含む場合はその位置までを1件として確定し、残りは次の入力として扱います。
func (b *Buffer) Input(chunk string) {
	var emits []string

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	for chunk != "" {
		i := strings.IndexAny(chunk, "\r\n")
		if i < 0 {
			b.buf.WriteString(chunk)
			break
		}
		b.buf.WriteString(chunk[:i])
		if code := b.takeLocked(); code != "" {
			emits = append(emits, code)
		}
		chunk = chunk[i+1:]
	}

	if b.buf.Len() > 0 {
		if utf8.RuneCountInString(Normalize(b.buf.String(), false)) >= b.opts.MaxLength {
			if code := b.takeLocked(); code != "" {
				emits = append(emits, code)
			}
		} else {
			b.armLocked()
		}
	}
	b.mu.Unlock()

	for _, code := range emits {
		b.onScan(code)
	}
}

// State は現在の状態を返します。
func (b *Buffer) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Close は待機中のタイマーを止め、以降の入力を無視します。
func (b *Buffer) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.stopLocked()
	b.buf.Reset()
	b.state = Idle
}

// armLocked は静止タイマーを張り直します。古いタイマーは世代番号で無効化します。
func (b *Buffer) armLocked() {
	b.stopLocked()
	b.state = Buffering
	gen := b.gen
	b.timer = time.AfterFunc(b.opts.Quiet, func() { b.expire(gen) })
}

func (b *Buffer) stopLocked() {
	b.gen++
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
}

func (b *Buffer) expire(gen uint64) {
	b.mu.Lock()
	if b.closed || gen != b.gen {
		b.mu.Unlock()
		return
	}
	b.timer = nil
	code := b.takeLocked()
	b.mu.Unlock()

	if code != "" {
		b.onScan(code)
	}
}

// takeLocked は貯めた入力を正規化して返し、バッファを空にします。
func (b *Buffer) takeLocked() string {
	raw := b.buf.String()
	b.buf.Reset()
	b.stopLocked()
	b.state = Idle
	return Normalize(raw, b.opts.Reversed)
}
