// Package convert turns ODP input files into output files of a chosen
// format, feeding every accepted record to optional extra sinks.
package convert

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/couchcryptid/met-odp-etl/internal/archive"
	"github.com/couchcryptid/met-odp-etl/internal/csvio"
	"github.com/couchcryptid/met-odp-etl/internal/domain"
	"github.com/couchcryptid/met-odp-etl/internal/observability"
	"github.com/couchcryptid/met-odp-etl/internal/pipeline"
	"github.com/jonboulle/clockwork"
)

// Options control how files are converted.
type Options struct {
	OutputDir    string
	OutputFormat domain.CsvFormat
	Filter       *domain.RecordFilter
	// Zip writes each output as a zip archive holding the CSV file.
	Zip       bool
	Strict    bool
	BatchSize int
	RunID     string
	Clock     clockwork.Clock
}

// Result describes one converted file.
type Result struct {
	Input       string
	Output      string
	InputFormat domain.CsvFormat
	Stats       pipeline.Stats
}

// FileStatus is the outcome of one file as reported by Status.
type FileStatus struct {
	Input  string         `json:"input"`
	Output string         `json:"output,omitempty"`
	Error  string         `json:"error,omitempty"`
	Stats  pipeline.Stats `json:"stats"`
}

// Summary is a snapshot of a Converter's progress.
type Summary struct {
	Done  bool         `json:"done"`
	Files []FileStatus `json:"files"`
}

// Converter converts input files one at a time.
type Converter struct {
	opts    Options
	parser  csvio.FormatParser
	sinks   []pipeline.BatchLoader
	logger  *slog.Logger
	metrics *observability.Metrics
	done    atomic.Bool

	mu    sync.Mutex
	files []FileStatus
}

// New creates a Converter. parser may be nil to infer every header afresh.
// Records accepted from each file also go to sinks, after the output file.
func New(opts Options, parser csvio.FormatParser, logger *slog.Logger, metrics *observability.Metrics, sinks ...pipeline.BatchLoader) *Converter {
	if parser == nil {
		parser = csvio.FormatParserFunc(domain.ParseCsvFormat)
	}
	if opts.OutputDir == "" {
		opts.OutputDir = "."
	}
	return &Converter{
		opts:    opts,
		parser:  parser,
		sinks:   sinks,
		logger:  logger,
		metrics: metrics,
	}
}

// CheckReadiness returns nil once ConvertAll has gone through its inputs.
func (c *Converter) CheckReadiness(_ context.Context) error {
	if !c.done.Load() {
		return errors.New("input files have not been converted yet")
	}
	return nil
}

// Status returns the files converted so far. It satisfies the HTTP server's
// status reporter.
func (c *Converter) Status() any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Summary{Done: c.done.Load(), Files: append([]FileStatus(nil), c.files...)}
}

// ConvertAll converts every input, continuing past failed files. The
// returned error joins the failures.
func (c *Converter) ConvertAll(ctx context.Context, inputs []string) ([]Result, error) {
	results := make([]Result, 0, len(inputs))
	var errs []error
	for _, input := range inputs {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		res, err := c.ConvertFile(ctx, input)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		results = append(results, res)
	}
	c.done.Store(true)
	return results, errors.Join(errs...)
}

// ConvertFile converts one plain or zipped input file into OutputDir. A
// failed conversion leaves no output file behind.
func (c *Converter) ConvertFile(ctx context.Context, input string) (res Result, err error) {
	res = Result{Input: input}
	defer func() {
		status := FileStatus{Input: input, Output: res.Output, Stats: res.Stats}
		outcome := observability.OutcomeSuccess
		if err != nil {
			outcome = observability.OutcomeFailed
			status.Output = ""
			status.Error = err.Error()
			c.logger.Error("file conversion failed", "file", input, "error", err)
		}
		c.metrics.FilesProcessed.WithLabelValues(outcome).Inc()

		c.mu.Lock()
		c.files = append(c.files, status)
		c.mu.Unlock()
	}()

	in, name, err := archive.Open(input)
	if err != nil {
		return res, fmt.Errorf("open input: %w", err)
	}
	defer in.Close()

	rd, err := csvio.NewReader(in, csvio.WithFormatParser(c.parser))
	if err != nil {
		return res, fmt.Errorf("%s: %w", input, err)
	}
	res.InputFormat = rd.Format()

	if err := os.MkdirAll(c.opts.OutputDir, 0o755); err != nil {
		return res, fmt.Errorf("create output dir: %w", err)
	}
	res.Output = filepath.Join(c.opts.OutputDir, OutputName(name, c.opts.Zip))
	if samePath(input, res.Output) {
		return res, fmt.Errorf("%s: output would overwrite input", input)
	}

	out, err := c.create(res.Output, name)
	if err != nil {
		return res, fmt.Errorf("create output: %w", err)
	}
	defer func() {
		if err != nil {
			os.Remove(res.Output)
		}
	}()

	w := csvio.NewWriter(out, c.opts.OutputFormat)
	loaders := append([]pipeline.BatchLoader{w}, c.sinks...)
	p := pipeline.New(rd, pipeline.NewTransformer(rd.Format(), c.opts.Filter), c.logger, c.metrics, pipeline.Options{
		BatchSize: c.opts.BatchSize,
		Strict:    c.opts.Strict,
		Source:    input,
		RunID:     c.opts.RunID,
		Clock:     c.opts.Clock,
	}, loaders...)

	res.Stats, err = p.Run(ctx)
	if err != nil {
		return res, errors.Join(err, out.Close())
	}
	if err = w.Flush(); err != nil {
		return res, errors.Join(fmt.Errorf("write output: %w", err), out.Close())
	}
	if err = out.Close(); err != nil {
		return res, fmt.Errorf("close output: %w", err)
	}

	c.logger.Info("file converted", "file", input, "output", res.Output, "records", res.Stats.Written)
	return res, nil
}

func (c *Converter) create(path, entryName string) (io.WriteCloser, error) {
	if c.opts.Zip {
		return archive.Create(path, OutputName(entryName, false))
	}
	return os.Create(path)
}

// OutputName derives the output file name from the input data file's name:
// the extension is replaced with .csv, or .zip when zipped.
func OutputName(name string, zipped bool) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	if zipped {
		return base + ".zip"
	}
	return base + ".csv"
}

func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	return errA == nil && errB == nil && absA == absB
}
