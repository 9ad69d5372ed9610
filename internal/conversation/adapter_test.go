package conversation

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"testing"

	"rikyu/internal/transcript"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeService records every request and answers with a canned reply or error.
type fakeService struct {
	calls []Request
	reply string
	err   error
}

func (f *fakeService) Send(_ context.Context, req Request) (string, error) {
	f.calls = append(f.calls, req)
	return f.reply, f.err
}

func newTestAdapter(svc ChatService, credential string) *Adapter {
	return NewAdapter(svc, Config{Credential: credential, Logger: zap.NewNop()})
}

func TestBuildReply_MissingCredentialShortCircuits(t *testing.T) {
	svc := &fakeService{reply: "never"}
	a := newTestAdapter(svc, "")

	reply, err := a.BuildReply(context.Background(), []transcript.Turn{user("hi")}, "persona")

	require.Error(t, err)
	assert.Empty(t, reply)
	assert.Equal(t, ConfigError, KindOf(err))
	assert.ErrorIs(t, err, ErrMissingCredential)
	assert.Zero(t, len(svc.calls), "remote service must not be called without a credential")
}

func TestBuildReply_EmptyPersona(t *testing.T) {
	svc := &fakeService{reply: "never"}
	_, err := newTestAdapter(svc, "key").BuildReply(context.Background(), nil, "  ")

	assert.Equal(t, ConfigError, KindOf(err))
	assert.ErrorIs(t, err, ErrEmptyPersona)
	assert.Empty(t, svc.calls)
}

func TestBuildReply_NilService(t *testing.T) {
	_, err := newTestAdapter(nil, "key").BuildReply(context.Background(), nil, "persona")
	assert.Equal(t, ConfigError, KindOf(err))
}

func TestBuildReply_SuccessIsVerbatim(t *testing.T) {
	raw := "  Hmm... *sips tea*\n\nLet's sit with that a moment.  "
	svc := &fakeService{reply: raw}
	a := newTestAdapter(svc, "key")

	turns := []transcript.Turn{bot("Welcome"), user("hello"), bot("hi"), user("how are you?")}
	reply, err := a.BuildReply(context.Background(), turns, "You are Rikyu.")

	require.NoError(t, err)
	assert.Equal(t, raw, reply)

	require.Len(t, svc.calls, 1, "exactly one remote attempt")
	req := svc.calls[0]
	require.Len(t, req.History, 3)
	assert.Equal(t, RoleUser, req.History[0].Role)
	assert.Equal(t, "how are you?", req.History[2].Text)
	assert.Equal(t, "You are Rikyu.\n"+DefaultInstruction, req.Final)
	assert.Equal(t, DefaultGenerationParams(), req.Params)
}

func TestBuildReply_DoesNotMutateTranscript(t *testing.T) {
	svc := &fakeService{reply: "ok"}
	turns := []transcript.Turn{bot("a"), user("b")}
	snapshot := append([]transcript.Turn(nil), turns...)

	_, err := newTestAdapter(svc, "key").BuildReply(context.Background(), turns, "p")
	require.NoError(t, err)
	assert.Equal(t, snapshot, turns)
}

func TestBuildReply_EmptyTranscript(t *testing.T) {
	svc := &fakeService{reply: "Welcome."}
	reply, err := newTestAdapter(svc, "key").BuildReply(context.Background(), nil, "p")

	require.NoError(t, err)
	assert.Equal(t, "Welcome.", reply)
	require.Len(t, svc.calls, 1)
	assert.Empty(t, svc.calls[0].History)
}

func TestBuildReply_FailureKinds(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"api key text", errors.New("[400 Bad Request] API key not valid. Please pass a valid API key."), CredentialError},
		{"network text", errors.New("fetch failed: network unreachable"), NetworkError},
		{"other text", errors.New("model overloaded"), GenericError},
		{"tagged by binding", Wrap(CredentialError, errors.New("401")), CredentialError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{err: tt.err}
			reply, err := newTestAdapter(svc, "key").BuildReply(context.Background(), []transcript.Turn{user("hi")}, "p")

			assert.Empty(t, reply)
			var replyErr *Error
			require.True(t, errors.As(err, &replyErr))
			assert.Equal(t, tt.want, replyErr.Kind)
			assert.ErrorIs(t, err, tt.err)
			assert.Len(t, svc.calls, 1, "no retries")
		})
	}
}

func TestBuildReply_EmptyReplyIsGeneric(t *testing.T) {
	svc := &fakeService{reply: ""}
	_, err := newTestAdapter(svc, "key").BuildReply(context.Background(), nil, "p")

	assert.Equal(t, GenericError, KindOf(err))
	assert.ErrorIs(t, err, ErrEmptyReply)
}

func TestClassify_TextShim(t *testing.T) {
	assert.Equal(t, CredentialError, Classify(errors.New("There seems to be an issue with the API key")))
	assert.Equal(t, NetworkError, Classify(errors.New("network error")))
	assert.Equal(t, GenericError, Classify(errors.New("something else")))
	// Credential wins over network when both appear.
	assert.Equal(t, CredentialError, Classify(errors.New("network said: API key expired")))
	// Matching is case-sensitive.
	assert.Equal(t, GenericError, Classify(errors.New("api KEY missing")))
	assert.Equal(t, GenericError, Classify(errors.New("Network down")))
	assert.Equal(t, GenericError, Classify(nil))
}

func TestClassify_Structured(t *testing.T) {
	urlErr := &url.Error{Op: "Post", URL: "https://example.invalid", Err: errors.New("dial tcp: no such host")}
	assert.Equal(t, NetworkError, Classify(fmt.Errorf("doRequest: %w", urlErr)))

	opErr := &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
	assert.Equal(t, NetworkError, Classify(opErr))

	assert.Equal(t, NetworkError, Classify(fmt.Errorf("send: %w", context.DeadlineExceeded)))
	assert.Equal(t, CredentialError, Classify(fmt.Errorf("gemini: %w", Wrap(CredentialError, errors.New("denied")))))
}

func TestErrorKind_String(t *testing.T) {
	assert.Equal(t, "config_error", ConfigError.String())
	assert.Equal(t, "credential_error", CredentialError.String())
	assert.Equal(t, "network_error", NetworkError.String())
	assert.Equal(t, "generic_error", GenericError.String())

	err := Wrap(NetworkError, errors.New("timeout"))
	assert.Equal(t, "network_error: timeout", err.Error())
}
