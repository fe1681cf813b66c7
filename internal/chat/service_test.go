package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suPer8Hu/kb-chat/internal/ai"
	"github.com/suPer8Hu/kb-chat/internal/annotate"
	"github.com/suPer8Hu/kb-chat/internal/auth"
	"github.com/suPer8Hu/kb-chat/internal/config"
)

type recordingInvoker struct {
	mu    sync.Mutex
	reply string
	err   error
	last  ai.Request
}

func (p *recordingInvoker) Invoke(ctx context.Context, req ai.Request) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.last = req
	return p.reply, p.err
}

type streamingInvoker struct {
	recordingInvoker
	chunks []string
}

func (p *streamingInvoker) InvokeStream(ctx context.Context, req ai.Request) (<-chan string, <-chan error) {
	out := make(chan string, len(p.chunks))
	errs := make(chan error, 1)
	for _, c := range p.chunks {
		out <- c
	}
	if p.err != nil {
		errs <- p.err
	}
	close(out)
	close(errs)
	return out, errs
}

type failingIdentity struct{}

func (failingIdentity) SessionToken(context.Context) (string, error) {
	return "", errors.New("session expired")
}

func (failingIdentity) Credentials(context.Context) (auth.Credentials, error) {
	return auth.Credentials{}, errors.New("session expired")
}

var identity = auth.BearerIdentity{Token: "tok"}

func newTestService(t *testing.T, inv ai.Invoker) (*Service, *Session) {
	t.Helper()
	reg := ai.NewRegistry()
	reg.Register("fake", func(ctx context.Context, model string) (ai.Invoker, error) {
		return inv, nil
	})
	svc := NewService(NewSessions(), reg, Options{DefaultProvider: "fake", ContextWindowSize: 3})
	sess, err := svc.CreateSession(context.Background(), 1, "")
	require.NoError(t, err)
	return svc, sess
}

func TestSubmit_TaggedAnswer(t *testing.T) {
	inv := &recordingInvoker{reply: "blah <answer>Check [5 clip_mp4.txt].</answer>\n<location>clip_mp4.txt</location>"}
	svc, sess := newTestService(t, inv)

	msg, err := svc.Submit(context.Background(), 1, sess.SessionID, "  where?  ", config.DefaultInference(), identity)
	require.NoError(t, err)

	assert.Equal(t, RoleAssistant, msg.Role)
	assert.False(t, msg.Error)
	assert.Equal(t, "Check |||TIMESTAMP:5:00:05:clip_mp4.txt|||.", msg.Content)
	assert.True(t, msg.Sources.Has("clip_mp4.txt"))

	segs := msg.Segments()
	require.Len(t, segs, 3)
	assert.Equal(t, annotate.SegmentCitation, segs[1].Kind)
	assert.Equal(t, "00:05", segs[1].DisplayTime)

	msgs, err := svc.ListMessages(context.Background(), 1, sess.SessionID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, Message{Role: RoleUser, Content: "where?", CreatedAt: msgs[0].CreatedAt}, msgs[0])
	assert.Equal(t, "where?", inv.last.Question)
	assert.Equal(t, "tok", inv.last.Token)
}

func TestSubmit_UntaggedAnswerHasNoSources(t *testing.T) {
	svc, sess := newTestService(t, &recordingInvoker{reply: "plain <location>x_mp4.txt</location> answer"})

	msg, err := svc.Submit(context.Background(), 1, sess.SessionID, "q", config.DefaultInference(), identity)
	require.NoError(t, err)
	assert.Nil(t, msg.Sources)
	assert.False(t, msg.HasSources())
	assert.NotContains(t, msg.Content, "<location>")
}

func TestSubmit_InvocationFailureKeepsUserMessage(t *testing.T) {
	svc, sess := newTestService(t, &recordingInvoker{err: errors.New("boom")})

	msg, err := svc.Submit(context.Background(), 1, sess.SessionID, "q", config.DefaultInference(), identity)
	require.NoError(t, err)
	assert.True(t, msg.Error)
	assert.Equal(t, "Error: boom. Please try again.", msg.Content)

	msgs, _ := svc.ListMessages(context.Background(), 1, sess.SessionID)
	require.Len(t, msgs, 2)
	assert.Equal(t, RoleUser, msgs[0].Role)
	assert.True(t, msgs[1].Error)
}

func TestSubmit_AuthFailureAppendsNothing(t *testing.T) {
	inv := &recordingInvoker{reply: "ok"}
	svc, sess := newTestService(t, inv)

	_, err := svc.Submit(context.Background(), 1, sess.SessionID, "q", config.DefaultInference(), failingIdentity{})
	assert.ErrorIs(t, err, ErrAuth)

	_, err = svc.Submit(context.Background(), 1, sess.SessionID, "q", config.DefaultInference(), nil)
	assert.ErrorIs(t, err, ErrAuth)

	msgs, _ := svc.ListMessages(context.Background(), 1, sess.SessionID)
	assert.Empty(t, msgs)
	assert.Empty(t, inv.last.Question)
}

func TestSubmit_Validation(t *testing.T) {
	svc, sess := newTestService(t, &recordingInvoker{reply: "ok"})

	_, err := svc.Submit(context.Background(), 1, sess.SessionID, "   ", config.DefaultInference(), identity)
	assert.ErrorIs(t, err, ErrEmptyQuestion)

	_, err = svc.Submit(context.Background(), 2, sess.SessionID, "q", config.DefaultInference(), identity)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSubmit_CapturesInferenceByValue(t *testing.T) {
	inv := &recordingInvoker{reply: "ok"}
	svc, sess := newTestService(t, inv)

	inf := config.Inference{GuardrailID: "g", GuardrailVersion: "1", Temperature: 0.2, TopP: 0.3, ModelID: "anthropic.claude-v2"}
	_, err := svc.Submit(context.Background(), 1, sess.SessionID, "q", inf, identity)
	require.NoError(t, err)

	inf.Temperature = 0.9
	assert.Equal(t, 0.2, inv.last.Temperature)
	assert.Equal(t, "g", inv.last.GuardrailID)
	assert.Equal(t, "anthropic.claude-v2", inv.last.ModelID)
}

func TestSubmit_UsesContextWindow(t *testing.T) {
	inv := &recordingInvoker{reply: "ok"}
	svc, sess := newTestService(t, inv)

	for i := 0; i < 3; i++ {
		_, err := svc.Submit(context.Background(), 1, sess.SessionID, "seed", config.DefaultInference(), identity)
		require.NoError(t, err)
	}
	_, err := svc.Submit(context.Background(), 1, sess.SessionID, "new", config.DefaultInference(), identity)
	require.NoError(t, err)

	assert.Len(t, inv.last.Messages, 3)
	assert.Equal(t, "new", inv.last.Question)
}

func TestSubmitStream(t *testing.T) {
	inv := &streamingInvoker{chunks: []string{"<answer>Hi [3 a_mp3.txt]", "</answer>\n<location>a_mp3.txt</location>"}}
	svc, sess := newTestService(t, inv)

	chunks, done, errs := svc.SubmitStream(context.Background(), 1, sess.SessionID, "q", config.DefaultInference(), identity)
	var b strings.Builder
	for c := range chunks {
		b.WriteString(c)
	}
	msg, ok := <-done
	require.True(t, ok)
	assert.NoError(t, <-errs)
	assert.Contains(t, b.String(), "</answer>")
	assert.Equal(t, "Hi |||TIMESTAMP:3:00:03:a_mp3.txt|||", msg.Content)
}

func TestSubmitStream_FallsBackToInvoke(t *testing.T) {
	svc, sess := newTestService(t, &recordingInvoker{reply: "hello"})

	chunks, done, errs := svc.SubmitStream(context.Background(), 1, sess.SessionID, "q", config.DefaultInference(), identity)
	var got []string
	for c := range chunks {
		got = append(got, c)
	}
	msg := <-done
	assert.NoError(t, <-errs)
	assert.Equal(t, []string{"hello"}, got)
	assert.Equal(t, "hello", msg.Content)
}

func TestSubmitStream_AuthFailure(t *testing.T) {
	svc, sess := newTestService(t, &streamingInvoker{})

	chunks, done, errs := svc.SubmitStream(context.Background(), 1, sess.SessionID, "q", config.DefaultInference(), failingIdentity{})
	for range chunks {
	}
	_, ok := <-done
	assert.False(t, ok)
	assert.ErrorIs(t, <-errs, ErrAuth)
}

func TestCreateSession_UnknownProvider(t *testing.T) {
	svc, _ := newTestService(t, &recordingInvoker{})
	_, err := svc.CreateSession(context.Background(), 1, "missing")
	assert.Error(t, err)
}

func TestConversation_AppendOnlyCopies(t *testing.T) {
	var c Conversation
	c.Append(Message{Role: RoleUser, Content: "a"})
	snap := c.Messages()
	c.Append(Message{Role: RoleAssistant, Content: "b", Error: true})
	last := c.Append(Message{Role: RoleAssistant, Content: "c"})
	assert.Equal(t, 2, last.Index)
	assert.False(t, last.CreatedAt.IsZero())

	assert.Len(t, snap, 1)
	assert.Equal(t, 3, c.Len())

	recent := c.Recent(5)
	require.Len(t, recent, 2)
	assert.Equal(t, "a", recent[0].Content)
	assert.Equal(t, "c", recent[1].Content)

	_, ok := c.Get(3)
	assert.False(t, ok)

	c.Clear()
	assert.Equal(t, 0, c.Len())
	assert.Len(t, snap, 1)
}

func TestErrorText(t *testing.T) {
	assert.Equal(t, "Error: inference failed: status 502. Please try again.",
		ErrorText(errors.New("inference failed: status 502.")))
	assert.Equal(t, "Error: unknown error. Please try again.", ErrorText(nil))
}
