package engine

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"plan20-extraction-service/internal/models"
	"plan20-extraction-service/internal/parsers"
	"plan20-extraction-service/internal/reporter"
	"plan20-extraction-service/pkg/errors"
	"plan20-extraction-service/pkg/logger"
)

// Pipeline steps, in order.
const (
	StepReading    = "Reading workbook"
	StepTagging    = "Tagging rows"
	StepValidating = "Validating identifiers"
	StepExtracting = "Extracting fields"
	StepJoining    = "Denormalizing records"
	StepPlanning   = "Building Plan20 table"
	StepWriting    = "Writing output"
	StepCompleted  = "Completed"
)

var steps = []string{StepReading, StepTagging, StepValidating, StepExtracting, StepJoining, StepPlanning, StepWriting}

// Progress tracks a running extraction.
type Progress struct {
	RunID           string        `json:"run_id"`
	TotalSteps      int           `json:"total_steps"`
	CompletedSteps  int           `json:"completed_steps"`
	CurrentStep     string        `json:"current_step"`
	PercentComplete float64       `json:"percent_complete"`
	StartTime       time.Time     `json:"start_time"`
	ElapsedTime     time.Duration `json:"elapsed_time"`

	// Reading progress.
	Sheet    string `json:"sheet,omitempty"`
	RowsRead int    `json:"rows_read"`
}

// ProgressCallback is called on every step change and reader progress report.
type ProgressCallback func(*Progress)

// RunResult is the outcome of Service.Run.
type RunResult struct {
	*Result
	RunID     string              `json:"run_id"`
	Artifacts *reporter.Artifacts `json:"artifacts"`
	Summary   *models.RunSummary  `json:"summary"`
}

// Service runs the engine on workbook files.
type Service struct {
	engine *Engine
	reader parsers.Reader
	logger logger.Logger
	clock  func() time.Time
	newID  func() string

	progressCallbacks []ProgressCallback
	progressMutex     sync.Mutex
}

// NewService creates a service reading with the default workbook reader.
func NewService(config *Config, log logger.Logger) (*Service, error) {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	eng, err := New(config, log)
	if err != nil {
		return nil, err
	}
	reader, err := parsers.NewWorkbookReader(eng.config.Reader, log)
	if err != nil {
		return nil, err
	}
	return &Service{
		engine: eng,
		reader: reader,
		logger: log.WithComponent("extraction_service"),
		clock:  time.Now,
		newID:  uuid.NewString,
	}, nil
}

// SetReader replaces the workbook reader.
func (s *Service) SetReader(r parsers.Reader) {
	s.reader = r
}

// SetClock replaces the clock of the service, its engine and its writers.
func (s *Service) SetClock(clock func() time.Time) {
	if clock == nil {
		return
	}
	s.clock = clock
	s.engine.SetClock(clock)
}

// AddProgressCallback adds a progress callback function
func (s *Service) AddProgressCallback(callback ProgressCallback) {
	s.progressMutex.Lock()
	defer s.progressMutex.Unlock()
	s.progressCallbacks = append(s.progressCallbacks, callback)
}

// Engine returns the in-memory engine.
func (s *Service) Engine() *Engine {
	return s.engine
}

// runState is the per-call progress of Run.
type runState struct {
	svc      *Service
	progress Progress
}

func (rs *runState) update(step string, completed int) {
	rs.progress.CurrentStep = step
	rs.progress.CompletedSteps = completed
	rs.progress.PercentComplete = float64(completed) / float64(rs.progress.TotalSteps) * 100
	rs.notify()
}

func (rs *runState) notify() {
	rs.progress.ElapsedTime = rs.svc.clock().Sub(rs.progress.StartTime)

	rs.svc.progressMutex.Lock()
	callbacks := append([]ProgressCallback(nil), rs.svc.progressCallbacks...)
	rs.svc.progressMutex.Unlock()

	for _, cb := range callbacks {
		snapshot := rs.progress
		cb(&snapshot)
	}
}

func stepIndex(name string) int {
	for i, s := range steps {
		if s == name {
			return i
		}
	}
	return 0
}

// Run extracts one workbook into outputDir. An empty outputDir uses the
// configured output directory.
func (s *Service) Run(ctx context.Context, input, outputDir string) (*RunResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	runID := s.newID()
	started := s.clock()
	log := s.logger.WithFields(logger.Fields{"run_id": runID, "input": input})
	log.Info("Starting extraction run")

	rs := &runState{svc: s, progress: Progress{RunID: runID, TotalSteps: len(steps), StartTime: started}}

	outConfig := *s.engine.config.Output
	if outputDir != "" {
		outConfig.Dir = outputDir
	}
	writer, err := reporter.NewWorkbookWriter(&outConfig, s.logger)
	if err != nil {
		return nil, err
	}
	writer.SetClock(s.clock)

	rs.update(StepReading, 0)
	var wb *models.Workbook
	if pr, ok := s.reader.(parsers.ProgressReader); ok {
		wb, err = pr.ReadWithProgress(ctx, input, func(p *parsers.ProgressReport) {
			rs.progress.Sheet = p.Sheet
			rs.progress.RowsRead = p.RowsRead
			rs.notify()
		})
	} else {
		wb, err = s.reader.Read(ctx, input)
	}
	if err != nil {
		log.WithError(err).Error("Failed to read workbook")
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res, err := s.engine.process(wb, func(step string) {
		rs.update(step, stepIndex(step))
	})
	if err != nil {
		log.WithError(err).Error("Extraction failed")
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rs.update(StepWriting, stepIndex(StepWriting))
	artifacts, err := writer.Write(res.Output())
	if err != nil {
		log.WithError(err).Error("Failed to write output")
		return nil, errors.WrapIfNeeded(err, errors.CategoryOutput, errors.CodeWriteFailed, "failed to write output")
	}

	duration := s.clock().Sub(started)
	summary := BuildSummary(res, runID, input, started, duration, artifacts)
	rs.update(StepCompleted, len(steps))

	log.WithFields(logger.Fields{
		"workbook":  artifacts.Workbook,
		"records":   summary.Records,
		"plan_rows": summary.PlanRows,
		"issues":    summary.IssueCount(),
		"duration":  duration.String(),
	}).Info("Extraction run completed")

	return &RunResult{Result: res, RunID: runID, Artifacts: artifacts, Summary: summary}, nil
}
