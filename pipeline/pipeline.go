package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aluiziolira/woo-export/config"
	"github.com/aluiziolira/woo-export/models"
	"github.com/aluiziolira/woo-export/projection"
	"github.com/aluiziolira/woo-export/woocommerce"
)

var (
	// ErrNilWriter is returned by Run when no output writer was supplied.
	ErrNilWriter = errors.New("pipeline: nil output writer")
	// ErrNilProjector is returned by Run when no projector was supplied.
	ErrNilProjector = errors.New("pipeline: nil projector")
)

// OutputWriter defines the interface for row output.
type OutputWriter interface {
	Write(rows []models.Row) error
	Close() error
	Validate() error
}

// PageFetcher retrieves one page of a remote collection. Pages are numbered from 1.
type PageFetcher interface {
	FetchPage(ctx context.Context, page, perPage int) ([]models.Record, error)
}

// Exporter drives the fetch, project and write loop for one run. It is not
// safe for concurrent use; one goroutine owns the page counter and the writer.
type Exporter struct {
	fetcher    PageFetcher
	projector  projection.Projector
	writer     OutputWriter
	pageSize   int
	delay      time.Duration
	maxPages   int
	outputFile string

	Metrics *Metrics
}

// NewExporter builds an exporter from cfg. outputFile is only reported in the summary.
func NewExporter(fetcher PageFetcher, projector projection.Projector, writer OutputWriter, cfg *config.Config, outputFile string) *Exporter {
	return &Exporter{
		fetcher:    fetcher,
		projector:  projector,
		writer:     writer,
		pageSize:   cfg.PageSize,
		delay:      cfg.Delay,
		maxPages:   cfg.MaxPages,
		outputFile: outputFile,
		Metrics:    NewMetrics(),
	}
}

// Run pages through the collection until a short or empty page, a failure, or
// cancellation of ctx. Rows already written are never rolled back. The error is
// non-nil only when the outcome is failed; an interrupted run returns a nil error.
func (e *Exporter) Run(ctx context.Context) (*models.ExportSummary, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	summary := &models.ExportSummary{
		StartTime:  time.Now(),
		OutputFile: e.outputFile,
	}
	finish := func(outcome models.Outcome, err error) (*models.ExportSummary, error) {
		summary.Outcome = outcome
		summary.Err = err
		summary.EndTime = time.Now()
		return summary, err
	}

	if e.writer == nil {
		return finish(models.OutcomeFailed, ErrNilWriter)
	}
	if e.projector == nil {
		return finish(models.OutcomeFailed, ErrNilProjector)
	}
	if e.pageSize <= 0 {
		return finish(models.OutcomeFailed, fmt.Errorf("page size must be positive, got %d", e.pageSize))
	}

	for page := 1; ; page++ {
		if ctx.Err() != nil {
			return e.interrupted(summary, finish)
		}

		start := time.Now()
		records, err := e.fetcher.FetchPage(ctx, page, e.pageSize)
		e.Metrics.ObserveFetch(time.Since(start))
		if err != nil {
			if ctx.Err() != nil && errors.Is(err, context.Canceled) {
				return e.interrupted(summary, finish)
			}
			label := woocommerce.ErrorTypeLabel(err)
			e.Metrics.IncError(label)
			slog.Error("page fetch failed",
				slog.Int("page", page),
				slog.String("error_type", label),
				slog.Any("error", err),
			)
			return finish(models.OutcomeFailed, fmt.Errorf("fetch page %d: %w", page, err))
		}
		summary.PagesFetched++
		e.Metrics.IncPages()

		if len(records) == 0 {
			if page == 1 {
				slog.Info("no records found", slog.String("collection", e.projector.Collection()))
			} else {
				slog.Info("no more records to fetch", slog.Int("page", page))
			}
			return finish(models.OutcomeCompleted, nil)
		}

		rows := e.project(page, records)
		skipped := len(records) - len(rows)
		if len(rows) > 0 {
			if err := e.writer.Write(rows); err != nil {
				slog.Error("write failed", slog.Int("page", page), slog.Any("error", err))
				return finish(models.OutcomeFailed, fmt.Errorf("write page %d: %w", page, err))
			}
		}
		summary.TotalRows += len(rows)
		summary.Skipped += skipped
		e.Metrics.AddRows(len(rows))
		e.Metrics.AddSkipped(skipped)

		slog.Info("page exported",
			slog.Int("page", page),
			slog.Int("rows", len(rows)),
			slog.Int("skipped", skipped),
			slog.Int("total", summary.TotalRows),
		)

		if len(records) < e.pageSize {
			slog.Info("reached the last page", slog.Int("page", page))
			return finish(models.OutcomeCompleted, nil)
		}
		if e.maxPages > 0 && page >= e.maxPages {
			slog.Warn("stopping at max pages before a short page was seen",
				slog.Int("max_pages", e.maxPages),
			)
			return finish(models.OutcomeCompleted, nil)
		}

		if err := sleepContext(ctx, e.delay); err != nil {
			return e.interrupted(summary, finish)
		}
	}
}

func (e *Exporter) project(page int, records []models.Record) []models.Row {
	rows := make([]models.Row, 0, len(records))
	for i, rec := range records {
		row, err := e.projector.Project(rec)
		if err != nil {
			slog.Warn("skipping record",
				slog.Int("page", page),
				slog.Int("index", i),
				slog.Any("id", rec["id"]),
				slog.Any("error", err),
			)
			continue
		}
		rows = append(rows, row)
	}
	return rows
}

func (e *Exporter) interrupted(summary *models.ExportSummary, finish func(models.Outcome, error) (*models.ExportSummary, error)) (*models.ExportSummary, error) {
	slog.Warn("export interrupted",
		slog.Int("pages", summary.PagesFetched),
		slog.Int("rows", summary.TotalRows),
	)
	return finish(models.OutcomeInterrupted, nil)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
