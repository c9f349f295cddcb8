// Command convert rewrites ODP observation files (plain CSV or zipped) in a
// chosen output dialect, optionally keeping only some stations.
//
// Usage:
//
//	go run ./cmd/convert -out converted -align=false -delimiter , -missing null \
//	  -q=false -stations 13704,Szeged FILE...
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/met-odp-etl/internal/adapter/sqlite"
	"github.com/couchcryptid/met-odp-etl/internal/config"
	"github.com/couchcryptid/met-odp-etl/internal/convert"
	"github.com/couchcryptid/met-odp-etl/internal/domain"
	"github.com/couchcryptid/met-odp-etl/internal/formatcache"
	"github.com/couchcryptid/met-odp-etl/internal/observability"
	"github.com/couchcryptid/met-odp-etl/internal/pipeline"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/google/uuid"
)

func main() {
	defaults := config.DefaultFormatOptions()
	var format config.FormatOptions
	flag.BoolVar(&format.Align, "align", defaults.Align, "pad every column to its catalog width")
	flag.StringVar(&format.Delimiter, "delimiter", defaults.Delimiter, "column delimiter, one ASCII punctuation or whitespace character")
	flag.StringVar(&format.Missing, "missing", defaults.Missing, `literal for absent values: "-999", "null" or ""`)
	flag.BoolVar(&format.Info, "info", defaults.Info, "include station info columns")
	flag.BoolVar(&format.Values, "values", defaults.Values, "include measurement columns")
	flag.BoolVar(&format.Q, "q", defaults.Q, "include quality flag columns")
	flag.BoolVar(&format.EOR, "eor", defaults.EOR, "include the EOR column")
	flag.StringVar(&format.Include, "include", "", "comma-separated field titles to add")
	flag.StringVar(&format.Exclude, "exclude", "", "comma-separated field titles to drop")

	stations := flag.String("stations", "", "comma-separated station numbers or names to keep")
	invert := flag.Bool("invert", false, "drop the -stations instead of keeping them")
	outDir := flag.String("out", ".", "output directory")
	zipped := flag.Bool("zip", false, "write each output as a zip archive")
	strict := flag.Bool("strict", false, "abort a file on its first bad line")
	sqlitePath := flag.String("sqlite", "", "also store records in this SQLite database")
	logLevel := flag.String("log-level", "info", "debug, info, warn or error")
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(1)
	}

	logger := sharedobs.NewLogger(*logLevel, "text")
	if err := run(logger, flag.Args(), format, *stations, *invert, convert.Options{
		OutputDir: *outDir,
		Zip:       *zipped,
		Strict:    *strict,
	}, *sqlitePath); err != nil {
		fmt.Fprintf(os.Stderr, "convert: %v\n", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger, inputs []string, format config.FormatOptions, stations string, invert bool, opts convert.Options, sqlitePath string) error {
	var err error
	opts.OutputFormat, err = format.Build()
	if err != nil {
		return fmt.Errorf("output format: %w", err)
	}
	opts.Filter, err = domain.ParseRecordFilter(stations, invert)
	if err != nil {
		return err
	}
	opts.RunID = uuid.NewString()

	metrics := observability.NewMetrics()
	cache, err := formatcache.New(len(inputs), metrics)
	if err != nil {
		return err
	}

	var sinks []pipeline.BatchLoader
	if sqlitePath != "" {
		store, err := sqlite.New(sqlitePath, opts.RunID, nil)
		if err != nil {
			return err
		}
		defer store.Close()
		sinks = append(sinks, store)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	results, err := convert.New(opts, cache, logger, metrics, sinks...).ConvertAll(ctx, inputs)
	for _, res := range results {
		fmt.Printf("%s -> %s (%d records, %d filtered, %d skipped)\n", res.Input, res.Output,
			res.Stats.Written, res.Stats.Filtered, res.Stats.ParseErrors+res.Stats.ConvertErrors)
	}
	return err
}
