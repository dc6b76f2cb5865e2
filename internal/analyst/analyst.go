// Package analyst orchestrates one analytics request: load the authorized
// view, generate an executable fragment, run it, repair it at most once, and
// shape the outcome into an answer.
package analyst

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"shiplens/internal/authz"
	"shiplens/internal/cache"
	"shiplens/internal/dataset"
	"shiplens/internal/engine"
	"shiplens/internal/llm"
	"shiplens/internal/schema"
	"shiplens/internal/usage"
)

// EngineMode selects the execution engine for generated fragments.
type EngineMode string

const (
	// EngineSQL runs generated SQL against the materialized view.
	EngineSQL EngineMode = "sql"
	// EngineScript runs generated script fragments in the interpreter.
	EngineScript EngineMode = "script"
)

const (
	defaultSampleRows = 5

	noCodesMessage  = "I could not find any consignee codes on your account, so there is no shipment data I can analyze for you."
	noRowsMessage   = "No rows matched your filters."
	successPreamble = "Here is what I found:"
	failureMessage  = "Sorry, I could not work out an answer to that question. Please try rephrasing it."
)

// Answer is the shaped outcome of one request.
type Answer struct {
	Text       string
	Table      *engine.TableSpec
	Chart      *engine.ChartSpec
	Success    bool
	Attempts   int
	Usage      usage.TokenCounts
	Diagnostic string // internal failure detail, not for end users
}

// executor is satisfied by both execution engines.
type executor interface {
	Execute(ctx context.Context, view *dataset.Frame, fragment string) *engine.Execution
}

// Config wires a Service.
type Config struct {
	Mode       EngineMode
	SampleRows int
	Registry   *schema.Registry
	Now        func() time.Time
}

// Service answers analytics questions over per-tenant authorized views.
type Service struct {
	cache    *cache.Manager
	gen      llm.Generator
	exec     executor
	fragLang string
	reg      *schema.Registry
	tracker  *usage.Tracker
	logger   *zap.Logger
	sample   int
	now      func() time.Time
}

// NewService builds the orchestrator. A nil tracker disables usage
// accounting.
func NewService(mgr *cache.Manager, gen llm.Generator, scriptEng *engine.ScriptEngine, sqlEng *engine.SQLEngine, tracker *usage.Tracker, cfg Config, logger *zap.Logger) (*Service, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Registry == nil {
		cfg.Registry = schema.Default()
	}
	if cfg.SampleRows <= 0 {
		cfg.SampleRows = defaultSampleRows
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	s := &Service{
		cache:   mgr,
		gen:     gen,
		reg:     cfg.Registry,
		tracker: tracker,
		logger:  logger.Named("analyst"),
		sample:  cfg.SampleRows,
		now:     cfg.Now,
	}
	switch cfg.Mode {
	case EngineScript:
		if scriptEng == nil {
			return nil, fmt.Errorf("script engine mode requires a script engine")
		}
		s.exec, s.fragLang = scriptEng, "go"
	case EngineSQL, "":
		if sqlEng == nil {
			return nil, fmt.Errorf("sql engine mode requires a sql engine")
		}
		s.exec, s.fragLang = sqlEng, "sql"
	default:
		return nil, fmt.Errorf("unknown engine mode %q", cfg.Mode)
	}
	return s, nil
}

// Answer runs the full request lifecycle. Data access failures are returned
// as errors (the caller owns the apology for those); generation and
// execution failures come back as unsuccessful answers.
func (s *Service) Answer(ctx context.Context, question string, codes []string) (*Answer, error) {
	requestID := uuid.NewString()
	log := s.logger.With(zap.String("request_id", requestID))

	if len(authz.Normalize(codes)) == 0 {
		log.Info("request without consignee codes")
		return &Answer{Text: noCodesMessage, Success: false}, nil
	}

	view, err := s.cache.View(ctx, codes)
	if err != nil {
		log.Error("authorized view unavailable", zap.Error(err))
		return nil, err
	}
	log.Info("authorized view ready",
		zap.Int("rows", view.Count()),
		zap.String("engine", s.fragLang))

	ans := &Answer{}
	in := llm.PromptInput{
		Question:  question,
		Reference: s.reg.Reference(view.Columns()),
		Sample:    engine.RenderFrameText(view.Head(s.sample)),
		Today:     s.now(),
	}

	fragment, err := s.generate(ctx, ans, "generate", s.generationPrompt(in))
	if err != nil {
		return s.generationFailure(log, ans, err), nil
	}

	ans.Attempts = 1
	exec := s.exec.Execute(ctx, view, fragment)
	if !exec.OK && repairable(exec.Err) {
		exec = s.repair(ctx, log, ans, view, fragment, exec, in)
	}
	if !exec.OK {
		log.Warn("execution failed", zap.Int("attempts", ans.Attempts), zap.Error(exec.Err))
		ans.Text = failureMessage
		ans.Diagnostic = exec.Err.Error()
		return ans, nil
	}

	s.shape(question, ans, exec)
	log.Info("request answered",
		zap.Int("attempts", ans.Attempts),
		zap.Bool("table", ans.Table != nil),
		zap.Bool("chart", ans.Chart != nil))
	return ans, nil
}

// repair asks for a corrected fragment and runs it, at most once per
// request, and only when the correction is non-empty and actually different.
func (s *Service) repair(ctx context.Context, log *zap.Logger, ans *Answer, view *dataset.Frame, fragment string, failed *engine.Execution, in llm.PromptInput) *engine.Execution {
	log.Info("attempting repair", zap.Error(failed.Err))
	prompt := llm.BuildRepairPrompt(s.fragLang, fragment, failed.Err.Error(), in)
	repaired, err := s.generate(ctx, ans, "repair", prompt)
	if err != nil {
		log.Warn("repair generation failed", zap.Error(err))
		return failed
	}
	if repaired == "" || repaired == fragment {
		log.Warn("repair produced no usable change")
		return failed
	}
	ans.Attempts = 2
	return s.exec.Execute(ctx, view, repaired)
}

// generate calls the collaborator, records usage, and extracts the fragment.
func (s *Service) generate(ctx context.Context, ans *Answer, op, prompt string) (string, error) {
	resp, err := s.gen.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	ans.Usage.Add(resp.Usage)
	if s.tracker != nil {
		s.tracker.Record(s.gen.Provider(), s.gen.Model(), op, resp.Usage)
	}
	fragment := llm.ExtractFragment(resp.Text, s.fragLang)
	if fragment == "" {
		return "", &llm.GenerationError{
			Feedback: "the reply contained no executable fragment",
			Err:      fmt.Errorf("empty fragment after extraction"),
		}
	}
	return fragment, nil
}

func (s *Service) generationPrompt(in llm.PromptInput) string {
	if s.fragLang == "go" {
		return llm.BuildScriptPrompt(in)
	}
	return llm.BuildSQLPrompt(in)
}

func (s *Service) generationFailure(log *zap.Logger, ans *Answer, err error) *Answer {
	log.Error("generation failed", zap.Error(err))
	ans.Text = failureMessage
	var genErr *llm.GenerationError
	if errors.As(err, &genErr) && genErr.Feedback != "" {
		ans.Text = failureMessage + " (" + genErr.Feedback + ")"
	}
	ans.Diagnostic = err.Error()
	return ans
}

// shape turns a successful execution into the user-facing answer.
func (s *Service) shape(question string, ans *Answer, exec *engine.Execution) {
	ans.Success = true

	if emptyResult(exec.Result) {
		ans.Text = noRowsMessage
		return
	}
	body := exec.Result.RenderText()

	var b strings.Builder
	b.WriteString(successPreamble)
	b.WriteString("\n")
	b.WriteString(body)
	if exec.Preview != "" {
		b.WriteString("\n\nMatching shipments:\n")
		b.WriteString(exec.Preview)
	}
	ans.Text = b.String()

	ans.Table = engine.BuildTableSpec(exec.Result)
	ans.Chart = engine.BuildChartSpec(question, ans.Table)
}

func emptyResult(r engine.Result) bool {
	switch r.Kind {
	case engine.KindScalar:
		return r.Scalar == nil || strings.TrimSpace(dataset.CellString(r.Scalar)) == ""
	case engine.KindKeyValue:
		return len(r.Pairs) == 0
	case engine.KindTable:
		return r.Table == nil || len(r.Table.Rows) == 0
	default:
		return true
	}
}

// repairable reports whether a failure is worth one corrected attempt.
// Pre-flight rejections and execution failures are; everything else is
// fatal.
func repairable(err error) bool {
	var verr *engine.ValidationError
	var xerr *engine.ExecutionError
	return errors.As(err, &verr) || errors.As(err, &xerr)
}
