// Command validate checks ODP observation files (plain CSV or zipped): the
// header must yield a known format and every data line must convert to a
// typed record.
//
// Usage:
//
//	go run ./cmd/validate [-stations 13704,Szeged [-invert]] FILE...
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/couchcryptid/met-odp-etl/internal/archive"
	"github.com/couchcryptid/met-odp-etl/internal/csvio"
	"github.com/couchcryptid/met-odp-etl/internal/domain"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	stations := flag.String("stations", "", "comma-separated station numbers or names; other stations are only parsed")
	invert := flag.Bool("invert", false, "treat -stations as the stations to skip")
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(1)
	}

	filter, err := domain.ParseRecordFilter(*stations, *invert)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}

	os.Exit(run(os.Stdout, flag.Args(), filter))
}

func run(out io.Writer, files []string, filter *domain.RecordFilter) int {
	fmt.Fprintln(out, "=== ODP Observation Validation ===")
	fmt.Fprintln(out)

	header := &phase{name: "Header format inference"}
	lines := &phase{name: "Record conversion"}
	var total csvio.Report

	for _, file := range files {
		report, err := validateFile(file, filter)
		if err != nil {
			header.errorf("%s: %v", file, err)
			continue
		}
		fmt.Fprintf(out, "  %s: %d lines, %d valid, %d filtered, %d invalid\n",
			file, report.Lines, report.Valid, report.Filtered, report.Invalid)
		fmt.Fprintf(out, "    format: %s\n", report.Format)

		total.Lines += report.Lines
		total.Valid += report.Valid
		total.Filtered += report.Filtered
		total.Invalid += report.Invalid
		for _, e := range report.Errors {
			lines.errorf("%s: %v", file, e)
		}
		if omitted := report.Invalid - len(report.Errors); omitted > 0 {
			lines.errorf("%s: %d more invalid lines not shown", file, omitted)
		}
	}

	phases := []*phase{header, lines}

	fmt.Fprintln(out)
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(out, "  %-42s %s\n", p.name, status)
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "Records: %d files, %d lines, %d valid, %d filtered, %d invalid\n",
		len(files), total.Lines, total.Valid, total.Filtered, total.Invalid)

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(out, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(out, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Fprintln(out, "\nAll validations passed.")
		return 0
	}
	fmt.Fprintln(out, "\nValidation FAILED.")
	return 1
}

func validateFile(file string, filter *domain.RecordFilter) (csvio.Report, error) {
	rc, _, err := archive.Open(file)
	if err != nil {
		return csvio.Report{}, err
	}
	defer rc.Close()
	return csvio.ValidateCSV(rc, filter)
}
