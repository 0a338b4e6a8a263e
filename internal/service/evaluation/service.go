package evaluation

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"evalsum/internal/config"
	"evalsum/internal/extract"
	"evalsum/internal/logging"
	"evalsum/internal/metrics"
	"evalsum/internal/models"
	"evalsum/internal/service/ai"
	"evalsum/internal/upload"
)

// Stage is a step of the upload pipeline.
type Stage string

const (
	StageReceived      Stage = "received"
	StageFormParsed    Stage = "form_parsed"
	StageKeyValidated  Stage = "key_validated"
	StageFileValidated Stage = "file_validated"
	StageTextExtracted Stage = "text_extracted"
	StageSummarized    Stage = "summarized"
	StageResponded     Stage = "responded"
	StageErrored       Stage = "errored"
)

type Extractor interface {
	ExtractFile(ctx context.Context, path string) (*extract.Document, error)
}

type Summarizer interface {
	Summarize(ctx context.Context, apiKey string, prompt ai.Prompt) (*ai.Summary, error)
	Provider() string
	Model() string
}

type KeyFormat interface {
	ValidFormat(key string) bool
}

// RunRecorder persists the audit record of a request.
type RunRecorder interface {
	RecordRun(ctx context.Context, run *models.Run) error
}

// Options tune the pipeline.
type Options struct {
	MaxChars         int
	RequireSections  bool
	CredentialSource string
	ServerKey        string
}

// Request is one parsed upload.
type Request struct {
	APIKey string
	File   *models.UploadedFile
}

// Service runs the upload pipeline: key check, file checks, extraction,
// truncation and summarization. It owns the uploaded file once called.
type Service struct {
	keys       KeyFormat
	extractor  Extractor
	summarizer Summarizer
	runs       RunRecorder
	opts       Options
	logger     *zap.Logger
}

// NewService constructs the pipeline. runs may be nil.
func NewService(keys KeyFormat, extractor Extractor, summarizer Summarizer, runs RunRecorder, opts Options, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.CredentialSource == "" {
		opts.CredentialSource = config.CredentialFromRequest
	}
	return &Service{
		keys:       keys,
		extractor:  extractor,
		summarizer: summarizer,
		runs:       runs,
		opts:       opts,
		logger:     logger.Named("evaluation"),
	}
}

type pipelineRun struct {
	stage  Stage
	logger *zap.Logger
	record models.Run
}

func (r *pipelineRun) advance(stage Stage) {
	r.logger.Debug("stage", zap.String("from", string(r.stage)), zap.String("to", string(stage)))
	r.stage = stage
}

// Summarize runs the pipeline for req. The uploaded file is removed before
// Summarize returns, whatever the outcome.
func (s *Service) Summarize(ctx context.Context, req Request) (result *models.SummaryResult, err error) {
	start := time.Now()
	run := &pipelineRun{
		stage:  StageReceived,
		logger: logging.FromContext(ctx).With(zap.String("component", "evaluation")),
		record: models.Run{
			ID:        uuid.NewString(),
			Provider:  s.summarizer.Provider(),
			Model:     s.summarizer.Model(),
			CreatedAt: start.UTC(),
		},
	}
	if req.File != nil {
		run.record.FileName = req.File.OriginalName
		run.record.FileSize = req.File.Size
		run.record.ContentType = req.File.ContentType
	}

	defer func() {
		s.cleanup(run, req.File)
		s.finish(ctx, run, start, err)
	}()

	run.advance(StageFormParsed)

	apiKey, err := s.credential(req.APIKey)
	if err != nil {
		return nil, err
	}
	run.advance(StageKeyValidated)

	if err := s.checkFile(req.File); err != nil {
		return nil, err
	}
	metrics.RecordUpload(req.File.Size)
	run.advance(StageFileValidated)

	doc, err := s.extractor.ExtractFile(ctx, req.File.Path)
	if err != nil {
		if models.KindOf(err) == models.KindInternalError {
			err = models.NewError(models.KindExtractionFailed, "Failed to extract text from PDF", err)
		}
		return nil, err
	}
	run.record.Pages = doc.Pages
	if strings.TrimSpace(doc.Text) == "" {
		return nil, models.NewError(models.KindEmptyDocument, "No text found in PDF", nil)
	}
	run.advance(StageTextExtracted)

	text, truncated := extract.Truncate(doc.Text, s.opts.MaxChars)
	run.record.TextChars = len([]rune(text))
	run.record.Truncated = truncated
	if truncated {
		run.logger.Info("extracted text truncated", zap.Int("max_chars", s.opts.MaxChars))
	}

	summary, err := s.summarizer.Summarize(ctx, apiKey, ai.BuildPrompt(text))
	if err != nil {
		return nil, err
	}
	if s.opts.RequireSections && !ai.HasSections(summary.Text) {
		return nil, models.NewError(models.KindMalformedSummary, ai.MsgMalformedSummary,
			fmt.Errorf("section headers missing from %d-char response", len(summary.Text)))
	}
	run.advance(StageSummarized)

	return &models.SummaryResult{
		Text:      summary.Text,
		Provider:  summary.Provider,
		Model:     summary.Model,
		Pages:     doc.Pages,
		Chars:     run.record.TextChars,
		Truncated: truncated,
	}, nil
}

// credential resolves the key to use and checks its format before any
// network access.
func (s *Service) credential(requestKey string) (string, error) {
	label := ai.ProviderLabel(s.summarizer.Provider())
	if s.opts.CredentialSource == config.CredentialFromServer {
		if s.opts.ServerKey == "" {
			return "", models.NewError(models.KindNotConfigured, label+" API key not configured", nil)
		}
		return s.opts.ServerKey, nil
	}
	key := strings.TrimSpace(requestKey)
	if !s.keys.ValidFormat(key) {
		return "", models.NewError(models.KindFormatInvalid, "Valid "+label+" API key required", nil)
	}
	return key, nil
}

func (s *Service) checkFile(f *models.UploadedFile) error {
	if f == nil || f.Path == "" {
		return models.NewError(models.KindFileMissing, "No file uploaded", nil)
	}
	if !strings.EqualFold(filepath.Ext(f.OriginalName), ".pdf") {
		return models.NewError(models.KindFileInvalid, "Please upload a PDF file", nil)
	}
	info, err := os.Stat(f.Path)
	if err != nil {
		return models.NewError(models.KindFileUnreadable, "Unable to access uploaded file", err)
	}
	if !info.Mode().IsRegular() {
		return models.NewError(models.KindFileUnreadable, "Unable to access uploaded file",
			errors.New("not a regular file"))
	}
	return nil
}

func (s *Service) cleanup(run *pipelineRun, f *models.UploadedFile) {
	if err := upload.Remove(f); err != nil {
		run.logger.Error("remove uploaded file", zap.String("path", f.Path), zap.Error(err))
	}
}

func (s *Service) finish(ctx context.Context, run *pipelineRun, start time.Time, err error) {
	run.record.DurationMS = time.Since(start).Milliseconds()
	if err != nil {
		kind := models.KindOf(err)
		run.logger.Warn("evaluation failed",
			zap.String("stage", string(run.stage)),
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
		run.advance(StageErrored)
		run.record.Status = models.RunFailed
		run.record.ErrorKind = string(kind)
		run.record.HTTPStatus = models.HTTPStatus(kind)
		metrics.RecordFailure(string(kind))
	} else {
		run.advance(StageResponded)
		run.record.Status = models.RunSucceeded
		run.record.HTTPStatus = http.StatusOK
	}
	if s.runs == nil {
		return
	}
	// recorded even when the request was cancelled
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if recErr := s.runs.RecordRun(recordCtx, &run.record); recErr != nil {
		run.logger.Error("record run", zap.Error(recErr))
	}
}
