package assistant

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/hyperjump/skfed/internal/completion"
	"github.com/hyperjump/skfed/internal/models"
	"go.uber.org/zap"
)

// Completer sends an assembled prompt to the completion service.
type Completer interface {
	// CheckConfig fails when the service cannot be called at all (e.g. no API key).
	CheckConfig() error
	Complete(ctx context.Context, prompt models.Prompt) (string, error)
}

// ContextGatherer builds the per-request data snapshot.
type ContextGatherer interface {
	Gather(ctx context.Context, intent Intent, message string) models.ContextData
}

// Answer is the full result of one pipeline run.
type Answer struct {
	Response     string             `json:"response"`
	Intent       Intent             `json:"intent"`
	Context      models.ContextData `json:"context"`
	ContextBlock string             `json:"context_block"`
}

// Service runs the chat pipeline. It holds no per-request state.
type Service struct {
	completer Completer
	gatherer  ContextGatherer
	template  PromptTemplate
	logger    *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithTemplate overrides DefaultPromptTemplate.
func WithTemplate(t PromptTemplate) Option {
	return func(s *Service) {
		s.template = t
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService creates a Service.
func NewService(completer Completer, gatherer ContextGatherer, opts ...Option) *Service {
	s := &Service{
		completer: completer,
		gatherer:  gatherer,
		template:  DefaultPromptTemplate(),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Respond answers message and returns only the reply text.
func (s *Service) Respond(ctx context.Context, message string) (string, error) {
	ans, err := s.Answer(ctx, message)
	if err != nil {
		return "", err
	}
	return ans.Response, nil
}

// Answer runs classify, gather, serialize, assemble and complete once, in that order.
// A configuration error stops the run before any data is read.
func (s *Service) Answer(ctx context.Context, message string) (*Answer, error) {
	if err := s.completer.CheckConfig(); err != nil {
		s.logger.Error("Completion service not configured", zap.Error(err))
		return nil, err
	}

	start := time.Now()
	intent := ClassifyIntent(message)
	data := s.gatherer.Gather(ctx, intent, message)
	block := SerializeContext(data)
	prompt := s.template.AssemblePrompt(block, message)

	s.logger.Debug("Prompt assembled",
		zap.Bool("event_search", intent.NeedsEventSearch),
		zap.Bool("announcement_search", intent.NeedsAnnouncementSearch),
		zap.Int("context_bytes", len(block)),
		zap.Duration("gather_elapsed", time.Since(start)),
	)

	reply, err := s.completer.Complete(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return &Answer{Response: reply, Intent: intent, Context: data, ContextBlock: block}, nil
}

// StatusForError maps a pipeline error to the HTTP status returned to the client.
// Upstream failures keep the completion service's status; everything else is 500.
func StatusForError(err error) int {
	var upErr *completion.UpstreamError
	if errors.As(err, &upErr) && upErr.StatusCode >= 400 && upErr.StatusCode <= 599 {
		return upErr.StatusCode
	}
	return http.StatusInternalServerError
}

// MessageForError returns the client-facing text for a pipeline error.
func MessageForError(err error) string {
	var upErr *completion.UpstreamError
	switch {
	case errors.Is(err, completion.ErrMissingAPIKey):
		return "Completion service API key is not configured"
	case errors.As(err, &upErr):
		if upErr.Message != "" {
			return upErr.Message
		}
		if text := http.StatusText(upErr.StatusCode); text != "" {
			return text
		}
		return "Completion service error"
	case errors.Is(err, completion.ErrInvalidResponseFormat):
		return "Invalid response format from completion service"
	default:
		return "Failed to process chat request"
	}
}
