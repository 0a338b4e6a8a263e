package ai

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"evalsum/internal/config"
	"evalsum/internal/logging"
	"evalsum/internal/metrics"
	"evalsum/internal/models"
)

// Summary is the text returned by the provider.
type Summary struct {
	Text         string
	Provider     string
	Model        string
	FinishReason string
}

// Summarizer sends prompts to the configured provider, one model per call.
type Summarizer struct {
	cfg      config.ProviderConfig
	timeout  time.Duration
	newModel ModelFactory
	logger   *zap.Logger
}

// NewSummarizer constructs a Summarizer. A nil factory selects NewChatModel.
func NewSummarizer(cfg config.ProviderConfig, timeout time.Duration, factory ModelFactory, logger *zap.Logger) *Summarizer {
	if factory == nil {
		factory = NewChatModel
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Summarizer{cfg: cfg, timeout: timeout, newModel: factory, logger: logger.Named("summarizer")}
}

// Provider returns the configured provider name.
func (s *Summarizer) Provider() string { return s.cfg.Name }

// Model returns the configured model identifier.
func (s *Summarizer) Model() string { return s.cfg.Model }

// Summarize sends prompt to the provider using apiKey. It does not retry.
func (s *Summarizer) Summarize(ctx context.Context, apiKey string, prompt Prompt) (*Summary, error) {
	logger := logging.FromContext(ctx)
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	chatModel, err := s.newModel(ctx, s.cfg, apiKey, s.cfg.MaxTokens)
	if err != nil {
		return nil, models.NewError(models.KindInternalError, "Failed to initialize AI client", err)
	}

	start := time.Now()
	resp, err := chatModel.Generate(ctx, prompt.Messages())
	if err != nil {
		classified := classify(err, s.cfg.Name)
		metrics.RecordSummarize(s.cfg.Name, string(classified.Kind), time.Since(start))
		logger.Warn("provider call failed",
			zap.String("provider", s.cfg.Name),
			zap.String("kind", string(classified.Kind)),
			zap.Error(err),
		)
		return nil, classified
	}

	summary := &Summary{Provider: s.cfg.Name, Model: s.cfg.Model}
	if resp != nil {
		summary.Text = strings.TrimSpace(resp.Content)
		if resp.ResponseMeta != nil {
			summary.FinishReason = resp.ResponseMeta.FinishReason
			logUsage(logger, resp.ResponseMeta)
		}
	}
	if isRefusal(summary.FinishReason) {
		metrics.RecordSummarize(s.cfg.Name, string(models.KindContentDeclined), time.Since(start))
		return nil, models.NewError(models.KindContentDeclined, MsgContentDeclined,
			errors.New("finish reason "+summary.FinishReason))
	}
	if summary.Text == "" {
		metrics.RecordSummarize(s.cfg.Name, string(models.KindProviderError), time.Since(start))
		return nil, models.NewError(models.KindProviderError, MsgProviderError, errors.New("empty response"))
	}
	metrics.RecordSummarize(s.cfg.Name, "success", time.Since(start))
	return summary, nil
}

func logUsage(logger *zap.Logger, meta *schema.ResponseMeta) {
	fields := []zap.Field{zap.String("finish_reason", meta.FinishReason)}
	if meta.Usage != nil {
		fields = append(fields,
			zap.Int("prompt_tokens", meta.Usage.PromptTokens),
			zap.Int("completion_tokens", meta.Usage.CompletionTokens),
		)
	}
	logger.Debug("provider response", fields...)
}
