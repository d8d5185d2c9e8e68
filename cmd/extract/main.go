// Command extract runs the invoice extraction pipeline over local files and writes
// one spreadsheet per successfully extracted invoice.
//
//	extract [-out dir] invoice1.pdf invoice2.pdf ...
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"

	"github.com/kirillkom/invoice-extractor/internal/bootstrap"
	"github.com/kirillkom/invoice-extractor/internal/config"
	"github.com/kirillkom/invoice-extractor/internal/core/domain"
	"github.com/kirillkom/invoice-extractor/internal/infrastructure/report/xlsx"
	"github.com/kirillkom/invoice-extractor/internal/observability/logging"
)

const serviceName = "extract"

var errNoSuccess = errors.New("no file was extracted")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		slog.Error("extract_failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	flags := flag.NewFlagSet(serviceName, flag.ContinueOnError)
	outDir := flags.String("out", ".", "directory for generated .xlsx reports")
	if err := flags.Parse(args); err != nil {
		return err
	}
	paths := flags.Args()
	if len(paths) == 0 {
		return fmt.Errorf("usage: %s [-out dir] file...", serviceName)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := logging.New(os.Stderr, serviceName, cfg.LogLevel)
	slog.SetDefault(logger)

	files, err := readFiles(paths)
	if err != nil {
		return err
	}

	pipeline, err := bootstrap.NewPipeline(ctx, cfg, logger, nil)
	if err != nil {
		return err
	}

	if cfg.BatchTimeoutSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.BatchTimeout())
		defer cancel()
	}
	result := pipeline.Coordinator.ProcessBatch(ctx, "", files)

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	assembler := xlsx.NewAssembler(logger)
	written := make(map[int]string, len(result.Outcomes))
	for _, outcome := range result.Outcomes {
		if !outcome.Succeeded() {
			continue
		}
		path, err := writeReport(assembler, *outDir, outcome)
		if err != nil {
			logger.Error("report_write_failed", "file", outcome.FileName, "error", err)
			continue
		}
		written[outcome.Index] = path
	}

	printSummary(stdout, result, written)
	if len(written) == 0 {
		return errNoSuccess
	}
	return nil
}

func readFiles(paths []string) ([]domain.UploadedFile, error) {
	files := make([]domain.UploadedFile, 0, len(paths))
	for _, path := range paths {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		files = append(files, domain.UploadedFile{Name: filepath.Base(path), Content: content})
	}
	return files, nil
}

func writeReport(assembler *xlsx.Assembler, dir string, outcome domain.FileOutcome) (string, error) {
	report, err := assembler.Render(outcome.FileName, *outcome.Record)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, report.FileName)
	if err := os.WriteFile(path, report.Content, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}

func printSummary(w io.Writer, result domain.BatchResult, written map[int]string) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tFILE\tSTATUS\tITEMS\tTOTAL\tREPORT / REASON")
	for _, outcome := range result.Outcomes {
		if outcome.Succeeded() {
			report := written[outcome.Index]
			if report == "" {
				report = "(not written)"
			}
			fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%.2f\t%s\n",
				outcome.Index, outcome.FileName, outcome.Status,
				outcome.Record.ItemCount(), outcome.Record.TotalAmount, report)
			continue
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t-\t-\t%s\n", outcome.Index, outcome.FileName, outcome.FailureKind, outcome.Reason)
	}
	fmt.Fprintf(tw, "\n%d of %d files extracted (batch %s)\n", result.SucceededCount(), len(result.Outcomes), result.BatchID)
	_ = tw.Flush()
}
