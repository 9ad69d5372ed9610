package chat

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"strings"
	"time"

	"rikyu/internal/ui"

	"github.com/charmbracelet/lipgloss"
)

// Renderer writes chat output. Agent replies are typed out word by word with a
// random pause in [MinDelay, MaxDelay) between words.
type Renderer struct {
	out      io.Writer
	styles   ui.Styles
	minDelay time.Duration
	maxDelay time.Duration
	rnd      *rand.Rand
	sleep    func(ctx context.Context, d time.Duration) error
}

// RendererOption configures a Renderer.
type RendererOption func(*Renderer)

// WithTypingDelay sets the per-word delay bounds. Zero disables the effect.
func WithTypingDelay(min, max time.Duration) RendererOption {
	return func(r *Renderer) {
		if max < min {
			max = min
		}
		r.minDelay, r.maxDelay = min, max
	}
}

// WithStyles sets the line styles.
func WithStyles(s ui.Styles) RendererOption {
	return func(r *Renderer) { r.styles = s }
}

// WithSleep replaces the pause function. Tests use it to record delays.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) RendererOption {
	return func(r *Renderer) { r.sleep = fn }
}

// NewRenderer creates a renderer writing to out with plain styles and no typing delay.
func NewRenderer(out io.Writer, opts ...RendererOption) *Renderer {
	r := &Renderer{
		out:    out,
		styles: ui.PlainStyles(),
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		sleep:  sleepCtx,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Styles returns the renderer's styles.
func (r *Renderer) Styles() ui.Styles { return r.styles }

// Line writes text in style followed by a newline.
func (r *Renderer) Line(style lipgloss.Style, text string) {
	fmt.Fprintln(r.out, style.Render(text))
}

// Write writes text in style without a newline.
func (r *Renderer) Write(style lipgloss.Style, text string) {
	fmt.Fprint(r.out, style.Render(text))
}

// Type writes prefix and then text one space-separated word at a time, ending
// with a newline. Line breaks inside text are kept. A cancelled context prints
// the remainder at once.
func (r *Renderer) Type(ctx context.Context, style lipgloss.Style, prefix, text string) {
	r.Write(style, prefix)
	words := strings.Split(text, " ")
	for i, w := range words {
		if i > 0 {
			r.Write(style, " ")
		}
		r.Write(style, w)
		if i == len(words)-1 {
			break
		}
		if err := r.sleep(ctx, r.wordDelay()); err != nil {
			r.Write(style, " "+strings.Join(words[i+1:], " "))
			break
		}
	}
	fmt.Fprintln(r.out)
}

// Contemplate prints "<name> is contemplating" followed by three dots spaced by delay.
func (r *Renderer) Contemplate(ctx context.Context, name string, delay time.Duration) {
	r.Write(r.styles.Muted, name+" is contemplating")
	for i := 0; i < 3; i++ {
		_ = r.sleep(ctx, delay)
		r.Write(r.styles.Muted, ".")
	}
	fmt.Fprintln(r.out)
}

func (r *Renderer) wordDelay() time.Duration {
	if r.maxDelay <= 0 {
		return 0
	}
	span := r.maxDelay - r.minDelay
	if span <= 0 {
		return r.minDelay
	}
	return r.minDelay + time.Duration(r.rnd.Int63n(int64(span)))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
