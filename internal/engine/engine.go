// Package engine runs the Plan20 extraction pipeline.
//
// The Engine is the in-memory part: it takes a loaded workbook and returns the
// tagged rows, the extracted entities, the denormalized records and the Plan20
// table. The Service wraps it with file I/O: it reads the input workbook,
// runs the engine, writes the output workbook and builds the run summary,
// reporting progress along the way.
//
// Every call works on fresh state, so one Engine may serve concurrent calls.
//
// Example usage:
//
//	svc, err := engine.NewService(engine.DefaultConfig(), log)
//	svc.AddProgressCallback(func(p *engine.Progress) {
//		fmt.Printf("%.0f%% %s\n", p.PercentComplete, p.CurrentStep)
//	})
//	run, err := svc.Run(ctx, "plan20.xlsx", "out")
//	fmt.Println(run.Artifacts.Workbook)
package engine

import (
	"fmt"
	"time"

	"plan20-extraction-service/internal/classifier"
	"plan20-extraction-service/internal/denormalizer"
	"plan20-extraction-service/internal/extractor"
	"plan20-extraction-service/internal/hierarchy"
	"plan20-extraction-service/internal/models"
	"plan20-extraction-service/internal/parsers"
	"plan20-extraction-service/internal/planner"
	"plan20-extraction-service/internal/reporter"
	"plan20-extraction-service/pkg/errors"
	"plan20-extraction-service/pkg/logger"
)

// Config gathers the configuration of every pipeline component.
type Config struct {
	Reader       *parsers.Config        `json:"reader" mapstructure:"reader"`
	Hierarchy    *hierarchy.Config      `json:"hierarchy" mapstructure:"hierarchy"`
	Extractor    *extractor.Config      `json:"extractor" mapstructure:"extractor"`
	Denormalizer *denormalizer.Config   `json:"denormalizer" mapstructure:"denormalizer"`
	Planner      *planner.Config        `json:"planner" mapstructure:"planner"`
	Output       *reporter.OutputConfig `json:"output" mapstructure:"output"`

	// MaxIssues bounds the issues retained for the summary. Later ones are
	// only counted.
	MaxIssues int `json:"max_issues" mapstructure:"max_issues"`
}

// DefaultConfig returns the configuration used for the education plan.
func DefaultConfig() *Config {
	return &Config{
		Reader:       parsers.DefaultConfig(),
		Hierarchy:    hierarchy.DefaultConfig(),
		Extractor:    extractor.DefaultConfig(),
		Denormalizer: denormalizer.DefaultConfig(),
		Planner:      planner.DefaultConfig(),
		Output:       reporter.DefaultOutputConfig(),
		MaxIssues:    1000,
	}
}

// Validate validates every component configuration.
func (c *Config) Validate() error {
	checks := []struct {
		name    string
		missing bool
		fn      func() error
	}{
		{"reader", c.Reader == nil, func() error { return c.Reader.Validate() }},
		{"hierarchy", c.Hierarchy == nil, func() error { return c.Hierarchy.Validate() }},
		{"extractor", c.Extractor == nil, func() error { return c.Extractor.Validate() }},
		{"denormalizer", c.Denormalizer == nil, func() error { return c.Denormalizer.Validate() }},
		{"planner", c.Planner == nil, func() error { return c.Planner.Validate() }},
		{"output", c.Output == nil, func() error { return c.Output.Validate() }},
	}
	for _, ch := range checks {
		if ch.missing {
			return fmt.Errorf("%s configuration is required", ch.name)
		}
		if err := ch.fn(); err != nil {
			return fmt.Errorf("invalid %s configuration: %w", ch.name, err)
		}
	}
	if c.MaxIssues < 0 {
		return fmt.Errorf("max issues cannot be negative, got %d", c.MaxIssues)
	}
	return nil
}

// Result is the in-memory outcome of one extraction.
type Result struct {
	Workbook   *models.Workbook             `json:"-"`
	Tagging    *hierarchy.Result            `json:"tagging"`
	Extraction *extractor.Extraction        `json:"extraction"`
	Records    []*models.DenormalizedRecord `json:"records"`
	Plan       []*models.PlanRecord         `json:"plan"`
	Trail      []logger.TrailEntry          `json:"trail"`
	Issues     *errors.ErrorSummary         `json:"issues"`

	Counts    extractor.Counts   `json:"counts"`
	JoinStats denormalizer.Stats `json:"join_stats"`
	PlanStats planner.Stats      `json:"plan_stats"`
}

// Output returns what the reporter writes for this result.
func (r *Result) Output() *reporter.Output {
	return &reporter.Output{
		Tags:    r.Tagging.Tags,
		MaxCols: r.Tagging.MaxCols,
		Records: r.Records,
		Plan:    r.Plan,
		Trail:   r.Trail,
	}
}

// StepFunc is notified when a pipeline step starts.
type StepFunc func(step string)

// Engine runs the in-memory pipeline.
type Engine struct {
	config     *Config
	classifier *classifier.Classifier
	logger     logger.Logger
	clock      func() time.Time
}

// New creates an engine. A nil config uses DefaultConfig.
func New(config *Config, log logger.Logger) (*Engine, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "engine", "", err)
	}
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &Engine{
		config:     config,
		classifier: classifier.New(),
		logger:     log.WithComponent("engine"),
		clock:      time.Now,
	}, nil
}

// SetClock replaces the clock used for trail timestamps.
func (e *Engine) SetClock(clock func() time.Time) {
	if clock != nil {
		e.clock = clock
	}
}

// Config returns the engine configuration.
func (e *Engine) Config() *Config {
	return e.config
}

// Process runs tagging, validation, extraction, denormalization and planning
// on a loaded workbook.
func (e *Engine) Process(wb *models.Workbook) (*Result, error) {
	return e.process(wb, nil)
}

func (e *Engine) process(wb *models.Workbook, onStep StepFunc) (*Result, error) {
	if wb == nil {
		return nil, errors.InternalError(errors.CodeUnexpectedError, "process", fmt.Errorf("workbook cannot be nil"))
	}
	step := func(name string) {
		if onStep != nil {
			onStep(name)
		}
	}

	trail := logger.NewTrail(e.clock, e.logger)
	issues := errors.NewIssueCollector(e.config.MaxIssues)
	stage := logger.NewStageLogger("extraction", e.logger).WithField("sheets", len(wb.Sheets))

	timed := func(name string, fn func()) {
		start := e.clock()
		fn()
		trail.Record("Timing", "%s: %s", name, e.clock().Sub(start))
	}

	for _, s := range wb.Sheets {
		if !s.Truncated {
			continue
		}
		where := errors.SheetContext{Sheet: s.Name}
		if n := len(s.Rows); n > 0 {
			where.Row = s.Rows[n-1].Index
		}
		issues.Add(errors.NewIssue(errors.CodeSheetTruncated, where, "row limit reached; later rows were not read"))
		trail.Record(where.String(), "sheet truncated after %d rows", len(s.Rows))
	}

	step(StepTagging)
	var tagging *hierarchy.Result
	timed("tagging", func() {
		tagging = hierarchy.NewBuilder(e.config.Hierarchy, e.classifier, e.logger, trail, issues).Build(wb)
	})
	stage.Step("tagged", logger.Fields{"rows": len(tagging.Tags), "tagged": tagging.TaggedCount()})

	step(StepValidating)
	for _, issue := range hierarchy.Validate(tagging) {
		issues.Add(issue)
		trail.Record(issue.Where.String(), "identifier check: %s", issue.Message)
	}

	step(StepExtracting)
	var ex *extractor.Extraction
	timed("extraction", func() {
		x := extractor.New(e.config.Extractor, e.logger, trail, issues)
		x.SetClassifier(e.classifier)
		ex = x.Extract(tagging.Tags)
	})
	counts := ex.Counts()
	stage.Step("extracted", logger.Fields{"programs": counts.Programs, "buckets": counts.Buckets, "items": counts.Items})

	step(StepJoining)
	joiner, err := denormalizer.NewJoiner(e.config.Denormalizer, e.logger, trail, issues)
	if err != nil {
		stage.Failure(err, "joiner setup failed")
		return nil, err
	}
	var records []*models.DenormalizedRecord
	timed("denormalization", func() {
		records = joiner.Join(ex)
	})

	step(StepPlanning)
	p, err := planner.New(e.config.Planner, e.logger, trail)
	if err != nil {
		stage.Failure(err, "planner setup failed")
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "planner", "", err)
	}
	plan := p.Process(records)

	stage.Success(fmt.Sprintf("%d records, %d plan rows", len(records), len(plan)))

	return &Result{
		Workbook:   wb,
		Tagging:    tagging,
		Extraction: ex,
		Records:    records,
		Plan:       plan,
		Trail:      trail.Entries(),
		Issues:     issues.Summary(),
		Counts:     counts,
		JoinStats:  joiner.Stats(),
		PlanStats:  p.Stats(),
	}, nil
}
