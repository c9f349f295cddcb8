package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/couchcryptid/met-odp-etl/internal/csvio"
	"github.com/couchcryptid/met-odp-etl/internal/domain"
	"github.com/couchcryptid/met-odp-etl/internal/observability"
	"github.com/couchcryptid/storm-data-shared/retry"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// ErrFiltered is returned by a Transformer for lines the record filter drops.
var ErrFiltered = errors.New("record filtered out")

// BatchExtractor reads up to batchSize data lines from the source. It
// returns io.EOF once the source is exhausted.
type BatchExtractor interface {
	ExtractBatch(ctx context.Context, batchSize int) ([]csvio.Line, error)
}

// Transformer converts a data line into an observation.
type Transformer interface {
	Transform(ctx context.Context, line csvio.Line) (domain.Observation, error)
}

// BatchLoader writes multiple observations to a destination.
type BatchLoader interface {
	LoadBatch(ctx context.Context, batch []domain.Observation) error
}

const (
	defaultBatchSize       = 50
	defaultInitialBackoff  = 200 * time.Millisecond
	defaultMaxBackoff      = 5 * time.Second
	defaultMaxLoadAttempts = 5
)

// Options tune a Pipeline. Zero values select the defaults.
type Options struct {
	BatchSize int
	// Strict aborts the run on the first malformed line instead of skipping it.
	Strict bool
	// Source names the input in logs and errors.
	Source string
	RunID  string
	Clock  clockwork.Clock

	InitialBackoff  time.Duration
	MaxBackoff      time.Duration
	MaxLoadAttempts int
}

// Stats counts what a run did with the lines of its source.
type Stats struct {
	Lines         int `json:"lines"`
	Written       int `json:"written"`
	Filtered      int `json:"filtered"`
	ParseErrors   int `json:"parse_errors"`
	ConvertErrors int `json:"convert_errors"`
}

// Pipeline runs the extract-transform-load loop over one source.
type Pipeline struct {
	extractor   BatchExtractor
	transformer Transformer
	loaders     []BatchLoader
	logger      *slog.Logger
	metrics     *observability.Metrics
	opts        Options
	stats       Stats
}

// New creates a Pipeline with the given stages and observability. Every
// batch goes to each loader in order.
func New(e BatchExtractor, t Transformer, logger *slog.Logger, metrics *observability.Metrics, opts Options, loaders ...BatchLoader) *Pipeline {
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = defaultInitialBackoff
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = defaultMaxBackoff
	}
	if opts.MaxLoadAttempts <= 0 {
		opts.MaxLoadAttempts = defaultMaxLoadAttempts
	}
	return &Pipeline{
		extractor:   e,
		transformer: t,
		loaders:     loaders,
		logger:      logger.With("source", opts.Source, "run_id", opts.RunID),
		metrics:     metrics,
		opts:        opts,
	}
}

// Run processes the source until it is exhausted, the context is
// cancelled, or a failure stops it. The returned stats cover the lines
// handled so far in every case.
func (p *Pipeline) Run(ctx context.Context) (Stats, error) {
	p.logger.Info("pipeline started", "batch_size", p.opts.BatchSize, "strict", p.opts.Strict)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	for {
		if err := ctx.Err(); err != nil {
			p.logger.Info("pipeline stopping", "reason", err)
			return p.stats, err
		}

		done, err := p.processBatch(ctx)
		if err != nil {
			p.logger.Error("pipeline failed", "error", err, "lines", p.stats.Lines)
			return p.stats, err
		}
		if done {
			p.logger.Info("pipeline finished",
				"lines", p.stats.Lines,
				"written", p.stats.Written,
				"filtered", p.stats.Filtered,
				"parse_errors", p.stats.ParseErrors,
				"convert_errors", p.stats.ConvertErrors,
			)
			return p.stats, nil
		}
	}
}

// processBatch runs one extract-transform-load cycle. Returns true once the
// source is exhausted.
func (p *Pipeline) processBatch(ctx context.Context) (bool, error) {
	start := p.opts.Clock.Now()

	lines, err := p.extractor.ExtractBatch(ctx, p.opts.BatchSize)
	if errors.Is(err, io.EOF) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("extract batch: %w", err)
	}
	if len(lines) == 0 {
		return false, nil
	}

	p.stats.Lines += len(lines)
	p.metrics.LinesRead.Add(float64(len(lines)))
	p.metrics.BatchSize.Observe(float64(len(lines)))

	batch, err := p.transformBatch(ctx, lines)
	if err != nil {
		return false, err
	}
	if len(batch) == 0 {
		return false, nil
	}

	for _, l := range p.loaders {
		if err := p.load(ctx, l, batch); err != nil {
			return false, err
		}
	}

	p.stats.Written += len(batch)
	p.metrics.RecordsWritten.Add(float64(len(batch)))
	p.metrics.BatchProcessingDuration.Observe(p.opts.Clock.Since(start).Seconds())
	return false, nil
}

// transformBatch transforms each line, dropping filtered lines. Malformed
// lines are skipped, or abort the batch in strict mode.
func (p *Pipeline) transformBatch(ctx context.Context, lines []csvio.Line) ([]domain.Observation, error) {
	batch := make([]domain.Observation, 0, len(lines))
	for _, line := range lines {
		obs, err := p.transformer.Transform(ctx, line)
		switch {
		case err == nil:
			batch = append(batch, obs)
		case errors.Is(err, ErrFiltered):
			p.stats.Filtered++
			p.metrics.RecordsFiltered.Inc()
		default:
			p.countLineError(err)
			lineErr := &csvio.LineError{Line: line.Number, Err: err}
			if p.opts.Strict {
				return nil, fmt.Errorf("%s: %w", p.opts.Source, lineErr)
			}
			p.logger.Warn("transform failed, skipping line", "error", err, "line", line.Number)
		}
	}
	return batch, nil
}

func (p *Pipeline) countLineError(err error) {
	var convErr *domain.ConvertRecordError
	if errors.As(err, &convErr) {
		p.stats.ConvertErrors++
		p.metrics.LineErrors.WithLabelValues(observability.StageConvert).Inc()
		return
	}
	p.stats.ParseErrors++
	p.metrics.LineErrors.WithLabelValues(observability.StageParse).Inc()
}

// load hands the batch to one loader, retrying with exponential backoff.
// Only the failing loader is retried; earlier loaders do not see the batch
// again.
func (p *Pipeline) load(ctx context.Context, l BatchLoader, batch []domain.Observation) error {
	backoff := p.opts.InitialBackoff
	for attempt := 1; ; attempt++ {
		err := l.LoadBatch(ctx, batch)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if attempt >= p.opts.MaxLoadAttempts {
			return fmt.Errorf("load batch after %d attempts: %w", attempt, err)
		}

		p.logger.Error("load batch failed", "error", err, "batch_size", len(batch), "attempt", attempt)
		if !retry.SleepWithContext(ctx, backoff) {
			return ctx.Err()
		}
		backoff = retry.NextBackoff(backoff, p.opts.MaxBackoff)
	}
}
