package chat

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"rikyu/internal/config"
	"rikyu/internal/conversation"
	"rikyu/internal/transcript"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var fixedNow = time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

type fakeReplier struct {
	calls    [][]transcript.Turn
	personas []string
	ctxErrs  []error
	reply    string
	err      error
	// during runs inside BuildReply before the reply is returned.
	during func()
}

func (f *fakeReplier) BuildReply(ctx context.Context, turns []transcript.Turn, persona string) (string, error) {
	f.calls = append(f.calls, turns)
	f.personas = append(f.personas, persona)
	if f.during != nil {
		f.during()
	}
	f.ctxErrs = append(f.ctxErrs, ctx.Err())
	return f.reply, f.err
}

type fakeSpeaker struct{ spoken []string }

func (f *fakeSpeaker) Speak(text string) error {
	f.spoken = append(f.spoken, text)
	return nil
}

type harness struct {
	session *Session
	store   *transcript.JSONStore
	replier *fakeReplier
	speaker *fakeSpeaker
	out     *bytes.Buffer
	dir     string
}

func newHarness(t *testing.T, input string, seed ...transcript.Turn) *harness {
	t.Helper()
	return newHarnessWithInput(t, strings.NewReader(input), seed...)
}

func newHarnessWithInput(t *testing.T, input io.Reader, seed ...transcript.Turn) *harness {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "history.json")

	if len(seed) > 0 {
		pre := transcript.NewJSONStore(path, transcript.WithLogger(zap.NewNop()))
		for _, turn := range seed {
			require.NoError(t, pre.Append(turn))
		}
	}

	h := &harness{
		store:   transcript.NewJSONStore(path, transcript.WithLogger(zap.NewNop())),
		replier: &fakeReplier{reply: "A quiet cup of tea, then."},
		speaker: &fakeSpeaker{},
		out:     &bytes.Buffer{},
		dir:     dir,
	}
	noSleep := func(context.Context, time.Duration) error { return nil }

	s, err := NewSession(Options{
		Store:     h.store,
		Replier:   h.replier,
		Renderer:  NewRenderer(h.out, WithSleep(noSleep)),
		Input:     input,
		Speaker:   h.speaker,
		Persona:   config.DefaultPersona(),
		ExportDir: dir,
		Now:       func() time.Time { return fixedNow },
		Logger:    zap.NewNop(),
	})
	require.NoError(t, err)
	h.session = s
	return h
}

func user(msg string) transcript.Turn {
	return transcript.Turn{Role: transcript.RoleUser, Message: msg, Timestamp: fixedNow}
}

func bot(msg string) transcript.Turn {
	return transcript.Turn{Role: transcript.RoleBot, Message: msg, Timestamp: fixedNow}
}

func TestRun_SuccessPersistsReplyVerbatimAfterUserTurn(t *testing.T) {
	raw := "Hmm...  *sips tea*\nLet us sit with that."
	h := newHarness(t, "hello there\n/exit\n")
	h.replier.reply = raw

	require.NoError(t, h.session.Run(context.Background()))

	want := []transcript.Turn{user("hello there"), bot(raw)}
	if diff := cmp.Diff(want, h.store.Turns()); diff != "" {
		t.Fatalf("transcript mismatch (-want +got):\n%s", diff)
	}

	require.Len(t, h.replier.calls, 1)
	assert.Equal(t, []transcript.Turn{user("hello there")}, h.replier.calls[0], "adapter sees the user turn")
	assert.Equal(t, config.DefaultPersona().Prompt, h.replier.personas[0])

	out := h.out.String()
	assert.Contains(t, out, "Rikyu is contemplating...")
	assert.Contains(t, out, "Rikyu: Hmm...  *sips tea*\nLet us sit with that.")
	assert.Contains(t, out, Farewell)
}

func TestRun_EmptyTranscriptDoesNotPersistWelcome(t *testing.T) {
	h := newHarness(t, "/exit\n")
	require.NoError(t, h.session.Run(context.Background()))

	assert.Empty(t, h.store.Turns())
	assert.Contains(t, h.out.String(), "Rikyu: "+config.DefaultPersona().Welcome)
}

func TestRun_WelcomePersistedWhenHistoryExists(t *testing.T) {
	h := newHarness(t, "/exit\n", user("hi"), bot("hello"))
	require.NoError(t, h.session.Run(context.Background()))

	turns := h.store.Turns()
	require.Len(t, turns, 3)
	last := turns[2]
	assert.Equal(t, transcript.RoleBot, last.Role)
	assert.True(t, last.IsWelcome)
	assert.Equal(t, config.DefaultPersona().Welcome, last.Message)
}

func TestRun_FailureAppendsNoAgentTurn(t *testing.T) {
	h := newHarness(t, "hello\n/exit\n")
	h.replier.err = conversation.Wrap(conversation.NetworkError, errors.New("dial tcp: timeout"))

	require.NoError(t, h.session.Run(context.Background()))

	assert.Equal(t, []transcript.Turn{user("hello")}, h.store.Turns())
	assert.Contains(t, h.out.String(), "Rikyu: "+Apology)
	assert.Contains(t, h.out.String(), "network_error")
}

func TestRun_EndOfInputEndsSession(t *testing.T) {
	h := newHarness(t, "hello")
	require.NoError(t, h.session.Run(context.Background()))

	assert.Len(t, h.store.Turns(), 2)
	assert.Contains(t, h.out.String(), Farewell)
}

func TestRun_CancelledContext(t *testing.T) {
	h := newHarness(t, "hello\n")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := h.session.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, h.replier.calls)
}

func TestRun_CancelWhileWaitingForInput(t *testing.T) {
	pr, pw := io.Pipe()
	h := newHarnessWithInput(t, pr)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errc := make(chan error, 1)
	go func() { errc <- h.session.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancellation at the prompt")
	}
	require.NoError(t, pw.Close())

	assert.Empty(t, h.replier.calls)
	assert.Empty(t, h.store.Turns())
	assert.Contains(t, h.out.String(), Farewell)
}

func TestRun_CancelDuringReplyLetsCallFinish(t *testing.T) {
	h := newHarness(t, "hello\n/exit\n")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.replier.during = cancel

	err := h.session.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	require.Len(t, h.replier.ctxErrs, 1)
	assert.NoError(t, h.replier.ctxErrs[0], "the remote call is not aborted")
	want := []transcript.Turn{user("hello"), bot(h.replier.reply)}
	if diff := cmp.Diff(want, h.store.Turns()); diff != "" {
		t.Fatalf("transcript mismatch (-want +got):\n%s", diff)
	}
}

func TestRun_LongLineIsOneMessage(t *testing.T) {
	long := strings.Repeat("a", 70*1024)
	h := newHarness(t, long+"\nhi\n/exit\n")

	require.NoError(t, h.session.Run(context.Background()))

	turns := h.store.Turns()
	require.Len(t, turns, 4)
	assert.Equal(t, long, turns[0].Message)
	assert.Equal(t, "hi", turns[2].Message)
	assert.Len(t, h.replier.calls, 2)
}

func TestRun_WhitespaceReplyPersisted(t *testing.T) {
	h := newHarness(t, "hello\n/exit\n")
	h.replier.reply = "   "

	require.NoError(t, h.session.Run(context.Background()))

	assert.Equal(t, []transcript.Turn{user("hello"), bot("   ")}, h.store.Turns())
}

func TestRun_CRLFInput(t *testing.T) {
	h := newHarness(t, "hello\r\n/exit\r\n")
	require.NoError(t, h.session.Run(context.Background()))

	require.Len(t, h.store.Turns(), 2)
	assert.Equal(t, "hello", h.store.Turns()[0].Message)
}

func TestHandle_UserTextStoredAsTyped(t *testing.T) {
	h := newHarness(t, "")
	_, err := h.store.Load()
	require.NoError(t, err)

	assert.False(t, h.session.Handle(context.Background(), "  a quiet  garden "))
	assert.True(t, h.session.Handle(context.Background(), "  /exit  "))

	require.Len(t, h.store.Turns(), 2)
	assert.Equal(t, "  a quiet  garden ", h.store.Turns()[0].Message)
	assert.Equal(t, "  a quiet  garden ", h.replier.calls[0][0].Message)
}

func TestHandle_EmptyLinesIgnored(t *testing.T) {
	h := newHarness(t, "")
	_, err := h.store.Load()
	require.NoError(t, err)

	for _, line := range []string{"", "   ", "\t"} {
		assert.False(t, h.session.Handle(context.Background(), line))
	}
	assert.Empty(t, h.store.Turns())
	assert.Empty(t, h.replier.calls)
}

func TestHandle_CommandsAreCaseInsensitiveAndNotStored(t *testing.T) {
	h := newHarness(t, "")
	_, err := h.store.Load()
	require.NoError(t, err)

	assert.False(t, h.session.Handle(context.Background(), "/HELP"))
	assert.False(t, h.session.Handle(context.Background(), "/History"))
	assert.True(t, h.session.Handle(context.Background(), "/Exit"))

	assert.Empty(t, h.store.Turns())
	out := h.out.String()
	assert.Contains(t, out, "Available commands:")
	assert.Contains(t, out, "/voice - Toggle voice output")
	assert.Contains(t, out, "No chat history available.")
}

func TestHandle_UnknownSlashIsChatText(t *testing.T) {
	h := newHarness(t, "")
	_, err := h.store.Load()
	require.NoError(t, err)

	h.session.Handle(context.Background(), "/dance")
	require.Len(t, h.replier.calls, 1)
	assert.Equal(t, "/dance", h.store.Turns()[0].Message)
}

func TestHandle_History(t *testing.T) {
	h := newHarness(t, "", user("hi"), bot("hello"))
	_, err := h.store.Load()
	require.NoError(t, err)

	h.session.Handle(context.Background(), "/history")

	out := h.out.String()
	clock := fixedNow.Local().Format("15:04:05")
	assert.Contains(t, out, "=== Chat History ===")
	assert.Contains(t, out, "["+clock+"] You: hi")
	assert.Contains(t, out, "["+clock+"] Rikyu: hello")
	assert.Contains(t, out, "=== End of History ===")
}

func TestHandle_Export(t *testing.T) {
	h := newHarness(t, "", user("hi"), bot("hello"))
	_, err := h.store.Load()
	require.NoError(t, err)

	h.session.Handle(context.Background(), "/export")

	path := filepath.Join(h.dir, ExportFileName(fixedNow))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "=== Chat History with Rikyu ===\nExported on: "))
	assert.Contains(t, string(data), "You: hi\n")
	assert.Contains(t, h.out.String(), "Chat history exported to: "+path)
}

func TestHandle_VoiceToggle(t *testing.T) {
	h := newHarness(t, "")
	_, err := h.store.Load()
	require.NoError(t, err)

	h.session.Handle(context.Background(), "one")
	assert.Empty(t, h.speaker.spoken, "voice starts disabled")

	h.session.Handle(context.Background(), "/voice")
	assert.True(t, h.session.VoiceEnabled())
	assert.Contains(t, h.out.String(), "Voice output enabled.")

	h.session.Handle(context.Background(), "two")
	assert.Equal(t, []string{h.replier.reply}, h.speaker.spoken)

	h.session.Handle(context.Background(), "/voice")
	assert.False(t, h.session.VoiceEnabled())
	assert.Contains(t, h.out.String(), "Voice output disabled.")
}

func TestNewSession_RequiresCollaborators(t *testing.T) {
	_, err := NewSession(Options{})
	assert.Error(t, err)

	s, err := NewSession(Options{
		Store:    transcript.NewJSONStore(filepath.Join(t.TempDir(), "h.json")),
		Replier:  &fakeReplier{},
		Renderer: NewRenderer(&bytes.Buffer{}),
		Input:    strings.NewReader(""),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, s.ID())
}
