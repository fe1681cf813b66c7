package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/suPer8Hu/kb-chat/internal/ai"
	"github.com/suPer8Hu/kb-chat/internal/annotate"
	"github.com/suPer8Hu/kb-chat/internal/auth"
	"github.com/suPer8Hu/kb-chat/internal/config"
	"github.com/suPer8Hu/kb-chat/internal/logging"
	"github.com/suPer8Hu/kb-chat/internal/metrics"
)

var (
	ErrEmptyQuestion = errors.New("chat: question is empty")
	// ErrAuth aborts a submission before anything is appended.
	ErrAuth = errors.New("chat: authentication failed")
)

const defaultProvider = "function"

type Options struct {
	DefaultProvider   string
	ContextWindowSize int
	InvokeTimeout     time.Duration
	Logger            *logging.Logger
	Metrics           *metrics.Metrics
}

type Service struct {
	sessions          *Sessions
	registry          *ai.Registry
	defaultProvider   string
	contextWindowSize int
	invokeTimeout     time.Duration
	log               *logging.Logger
	metrics           *metrics.Metrics
}

func NewService(sessions *Sessions, registry *ai.Registry, opts Options) *Service {
	if opts.ContextWindowSize <= 0 || opts.ContextWindowSize > 100 {
		opts.ContextWindowSize = 20
	}
	if opts.DefaultProvider == "" {
		opts.DefaultProvider = defaultProvider
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	return &Service{
		sessions:          sessions,
		registry:          registry,
		defaultProvider:   opts.DefaultProvider,
		contextWindowSize: opts.ContextWindowSize,
		invokeTimeout:     opts.InvokeTimeout,
		log:               opts.Logger,
		metrics:           opts.Metrics,
	}
}

func (s *Service) CreateSession(ctx context.Context, userID uint64, provider string) (*Session, error) {
	if provider == "" {
		provider = s.defaultProvider
	}
	provider = strings.ToLower(strings.TrimSpace(provider))
	known := false
	for _, name := range s.registry.Names() {
		if name == provider {
			known = true
			break
		}
	}
	if !known {
		return nil, fmt.Errorf("unknown ai provider: %s", provider)
	}
	return s.sessions.Create(ctx, userID, provider)
}

func (s *Service) ListMessages(ctx context.Context, userID uint64, sessionID string) ([]Message, error) {
	sess, err := s.sessions.Get(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	return sess.Conversation.Messages(), nil
}

func (s *Service) GetMessage(ctx context.Context, userID uint64, sessionID string, index int) (Message, error) {
	sess, err := s.sessions.Get(ctx, userID, sessionID)
	if err != nil {
		return Message{}, err
	}
	m, ok := sess.Conversation.Get(index)
	if !ok {
		return Message{}, ErrMessageNotFound
	}
	return m, nil
}

var ErrMessageNotFound = errors.New("chat: message not found")

func (s *Service) ClearSession(ctx context.Context, userID uint64, sessionID string) error {
	sess, err := s.sessions.Get(ctx, userID, sessionID)
	if err != nil {
		return err
	}
	sess.Conversation.Clear()
	return nil
}

// submission is a validated request that has passed the auth check.
type submission struct {
	sess    *Session
	req     ai.Request
	invoker ai.Invoker
	// a provider that cannot be built is an invocation failure, reported
	// after the user's message is in the log
	invokerErr error
	provider   string
}

// prepare runs every check that must pass before the user's message is
// appended. inf is captured by value.
func (s *Service) prepare(ctx context.Context, userID uint64, sessionID, question string, inf config.Inference, id auth.IdentityProvider) (*submission, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}
	sess, err := s.sessions.Get(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if id == nil {
		return nil, ErrAuth
	}
	token, err := id.SessionToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuth, err)
	}

	history := make([]ai.Message, 0, s.contextWindowSize)
	for _, m := range sess.Conversation.Recent(s.contextWindowSize) {
		history = append(history, ai.Message{Role: string(m.Role), Content: m.Content})
	}

	sub := &submission{
		sess:     sess,
		provider: sess.Provider,
		req: ai.Request{
			Question:         question,
			Messages:         history,
			GuardrailID:      inf.GuardrailID,
			GuardrailVersion: inf.GuardrailVersion,
			Temperature:      inf.Temperature,
			TopP:             inf.TopP,
			ModelID:          inf.ModelID,
			Token:            token,
		},
	}
	sub.invoker, sub.invokerErr = s.registry.Get(ctx, sess.Provider, inf.ModelID)
	return sub, nil
}

// Submit sends question and appends the answer. Invocation and parse
// failures are appended as an assistant error message and returned as that
// message, not as an error; the user's message always stays in the log.
func (s *Service) Submit(ctx context.Context, userID uint64, sessionID, question string, inf config.Inference, id auth.IdentityProvider) (Message, error) {
	sub, err := s.prepare(ctx, userID, sessionID, question, inf, id)
	if err != nil {
		return Message{}, err
	}
	s.appendUser(sub)

	if sub.invokerErr != nil {
		return s.appendError(sub, fmt.Errorf("%w: %v", ai.ErrInvocation, sub.invokerErr)), nil
	}

	ictx, cancel := s.invokeContext(ctx)
	defer cancel()

	start := time.Now()
	raw, err := sub.invoker.Invoke(ictx, sub.req)
	s.observeInvocation(sub.provider, start, err)
	if err != nil {
		return s.appendError(sub, err), nil
	}
	return s.appendAnswer(sub, raw), nil
}

// SubmitStream is Submit for streaming providers. Raw chunks are forwarded
// as they arrive; the answer is assembled and appended once the stream ends
// and delivered on done. Errors before the user's message is appended are
// delivered on errs. Providers without streaming deliver one chunk.
func (s *Service) SubmitStream(ctx context.Context, userID uint64, sessionID, question string, inf config.Inference, id auth.IdentityProvider) (chunks <-chan string, done <-chan Message, errs <-chan error) {
	outChunks := make(chan string, 16)
	outDone := make(chan Message, 1)
	outErrs := make(chan error, 1)

	go func() {
		defer close(outChunks)
		defer close(outDone)
		defer close(outErrs)

		sub, err := s.prepare(ctx, userID, sessionID, question, inf, id)
		if err != nil {
			outErrs <- err
			return
		}
		s.appendUser(sub)

		if sub.invokerErr != nil {
			outDone <- s.appendError(sub, fmt.Errorf("%w: %v", ai.ErrInvocation, sub.invokerErr))
			return
		}

		ictx, cancel := s.invokeContext(ctx)
		defer cancel()
		start := time.Now()

		si, ok := sub.invoker.(ai.StreamInvoker)
		if !ok {
			raw, err := sub.invoker.Invoke(ictx, sub.req)
			s.observeInvocation(sub.provider, start, err)
			if err != nil {
				outDone <- s.appendError(sub, err)
				return
			}
			select {
			case outChunks <- raw:
			case <-ctx.Done():
			}
			outDone <- s.appendAnswer(sub, raw)
			return
		}

		pChunks, pErrs := si.InvokeStream(ictx, sub.req)
		var b strings.Builder
		for c := range pChunks {
			b.WriteString(c)
			select {
			case outChunks <- c:
			case <-ctx.Done():
			}
		}
		err = <-pErrs
		s.observeInvocation(sub.provider, start, err)
		if err != nil {
			outDone <- s.appendError(sub, err)
			return
		}
		outDone <- s.appendAnswer(sub, b.String())
	}()

	return outChunks, outDone, outErrs
}

func (s *Service) invokeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.invokeTimeout > 0 {
		return context.WithTimeout(ctx, s.invokeTimeout)
	}
	return context.WithCancel(ctx)
}

func (s *Service) appendUser(sub *submission) {
	sub.sess.Conversation.Append(Message{Role: RoleUser, Content: sub.req.Question})
	s.metrics.IncMessage(string(RoleUser), "plain")
}

func (s *Service) appendError(sub *submission, err error) Message {
	s.log.Warnw("submission failed", "session_id", sub.sess.SessionID, "provider", sub.provider, "err", err)
	m := Message{
		Role:      RoleAssistant,
		Content:   ErrorText(err),
		Error:     true,
		CreatedAt: time.Now(),
	}
	m = sub.sess.Conversation.Append(m)
	s.metrics.IncMessage(string(RoleAssistant), "error")
	return m
}

// appendAnswer assembles raw into a message. A panic while parsing is
// turned into an error message so the session survives.
func (s *Service) appendAnswer(sub *submission, raw string) (m Message) {
	defer func() {
		if r := recover(); r != nil {
			m = s.appendError(sub, fmt.Errorf("could not read the response: %v", r))
		}
	}()

	parsed := annotate.ParseAnswer(raw)
	m = Message{
		Role:      RoleAssistant,
		Content:   parsed.Content(),
		Sources:   parsed.Sources(),
		CreatedAt: time.Now(),
	}
	shape := "untagged"
	if t, ok := parsed.(*annotate.Tagged); ok {
		shape = "tagged"
		s.metrics.AddCitations(t.Stats.Rewritten, t.Stats.Dropped, t.Stats.Passthrough)
	}
	m = sub.sess.Conversation.Append(m)
	s.metrics.IncMessage(string(RoleAssistant), shape)
	return m
}

func (s *Service) observeInvocation(provider string, start time.Time, err error) {
	outcome := metrics.OutcomeOK
	switch {
	case errors.Is(err, context.Canceled):
		outcome = metrics.OutcomeCanceled
	case err != nil:
		outcome = metrics.OutcomeFailed
	}
	s.metrics.ObserveInvocation(provider, outcome, time.Since(start))
}

// ErrorText is the content of a synthesized error message.
func ErrorText(err error) string {
	reason := "unknown error"
	if err != nil {
		reason = strings.TrimSuffix(err.Error(), ".")
	}
	return fmt.Sprintf("Error: %s. Please try again.", reason)
}
