// Package cleaning applies a cleaning policy to an uploaded table.
//
// A clean call runs a fixed pipeline of named stages:
//
//	normalize -> merge -> dedup -> drop -> format
//
// merge, dedup and drop are gated by their options. The source table is
// never modified; every call derives a new table.
package cleaning

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandroruanova/phoneclean-service/internal/core/domain"
	"github.com/alejandroruanova/phoneclean-service/internal/core/services/phone"
	apperrors "github.com/alejandroruanova/phoneclean-service/internal/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Engine implements the Cleaner interface
type Engine struct {
	config Config
	stages []stage
	logger *slog.Logger
	now    func() time.Time
}

var _ Cleaner = (*Engine)(nil)

// NewEngine creates a new cleaning engine
func NewEngine(config Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if config.Workers <= 0 {
		config.Workers = 1
	}
	if config.ChunkSize <= 0 {
		config.ChunkSize = DefaultConfig().ChunkSize
	}
	if config.PreviewRows <= 0 {
		config.PreviewRows = DefaultConfig().PreviewRows
	}
	if config.LengthPolicy == "" {
		config.LengthPolicy = phone.LengthExact10
	}
	if config.CountryCodePolicy == "" {
		config.CountryCodePolicy = phone.CountryCodeDetected
	}

	e := &Engine{
		config: config,
		logger: logger,
		now:    time.Now,
	}
	e.stages = []stage{
		{name: StageNormalize, enabled: always, exec: e.normalize},
		{name: StageMerge, enabled: mergeEnabled, exec: e.merge},
		{name: StageDedup, enabled: func(r *run) bool { return r.opts.RemoveDuplicates }, exec: e.dedup},
		{name: StageDrop, enabled: func(r *run) bool { return r.opts.DropEmptyRows }, exec: e.drop},
		{name: StageFormat, enabled: always, exec: e.format},
	}
	return e
}

func mergeEnabled(r *run) bool {
	return r.opts.MergeColumns && len(r.selection) >= 2
}

// Stages returns the stage names that run for opts
func (e *Engine) Stages(opts domain.CleaningOptions) []string {
	r := &run{opts: opts, selection: opts.Selection()}
	names := make([]string, 0, len(e.stages))
	for _, s := range e.stages {
		if s.enabled(r) {
			names = append(names, s.name)
		}
	}
	return names
}

// Clean runs the pipeline over the session's table
func (e *Engine) Clean(ctx context.Context, session *domain.Session, opts domain.CleaningOptions) (*domain.CleaningResult, error) {
	startTime := e.now()

	if session == nil || session.Table == nil {
		return nil, apperrors.Internal("session has no table")
	}

	r, err := e.prepare(session.Table, opts)
	if err != nil {
		return nil, err
	}

	e.logger.Info("starting clean",
		slog.String("session_id", session.ID),
		slog.Int("row_count", session.Table.TotalRows()),
		slog.Any("columns", r.selection),
		slog.Any("stages", e.Stages(opts)))

	for _, s := range e.stages {
		if !s.enabled(r) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		stageStart := e.now()
		if err := s.exec(ctx, r); err != nil {
			return nil, fmt.Errorf("%s stage failed: %w", s.name, err)
		}
		e.logger.Debug("stage completed",
			slog.String("stage", s.name),
			slog.Duration("elapsed", e.now().Sub(stageStart)))
	}

	metrics := r.metrics()
	result := &domain.CleaningResult{
		SessionID:      session.ID,
		SourceFilename: session.Filename,
		SourceFormat:   session.Format,
		Options:        opts,
		CleanedTable:   r.output,
		Metrics:        metrics,
		BeforePreview:  session.Table.Preview(e.config.PreviewRows),
		AfterPreview:   r.output.Preview(e.config.PreviewRows),
		CleanedColumns: r.outColumns,
		CreatedAt:      e.now().UTC(),
	}

	e.logger.Info("clean completed",
		slog.String("session_id", session.ID),
		slog.Int("valid_numbers", metrics.ValidNumbers),
		slog.Int("invalid_removed", metrics.InvalidRemoved),
		slog.Int("duplicates_removed", metrics.DuplicatesRemoved),
		slog.Int("rows_after_cleaning", metrics.RowsAfterCleaning),
		slog.Int64("processing_time_ms", e.now().Sub(startTime).Milliseconds()))

	return result, nil
}

// prepare validates the selection against the table
func (e *Engine) prepare(table *domain.Table, opts domain.CleaningOptions) (*run, error) {
	selection := opts.Selection()
	if len(selection) == 0 {
		return nil, apperrors.NoColumnsSelected()
	}

	selIdx := make([]int, len(selection))
	for k, col := range selection {
		idx, ok := table.ColumnIndex(col)
		if !ok {
			return nil, apperrors.UnknownColumn(col)
		}
		selIdx[k] = idx
	}

	keep := make([]bool, table.TotalRows())
	for i := range keep {
		keep[i] = true
	}

	nzOpts := phone.OptionsFrom(opts)
	nzOpts.CountryCode = e.config.CountryCodePolicy

	return &run{
		source:     table,
		opts:       opts,
		normalizer: phone.New(nzOpts, e.config.LengthPolicy),
		selection:  selection,
		selIdx:     selIdx,
		cells:      make([][]phone.Result, table.TotalRows()),
		keep:       keep,
	}, nil
}

// normalize canonicalizes every selected cell. Rows are split into
// contiguous chunks so output order matches file order.
func (e *Engine) normalize(ctx context.Context, r *run) error {
	total := r.source.TotalRows()
	if total == 0 {
		return nil
	}

	chunk := (total + e.config.Workers - 1) / e.config.Workers
	if chunk < e.config.ChunkSize {
		chunk = e.config.ChunkSize
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.config.Workers)

	for start := 0; start < total; start += chunk {
		start := start
		end := min(start+chunk, total)
		g.Go(func() error {
			for i := start; i < end; i++ {
				if i%256 == 0 {
					if err := gctx.Err(); err != nil {
						return err
					}
				}
				row := r.source.Rows[i]
				out := make([]phone.Result, len(r.selIdx))
				for k, idx := range r.selIdx {
					out[k] = r.normalizer.Canonicalize(row[idx])
				}
				r.cells[i] = out
			}
			return nil
		})
	}

	return g.Wait()
}

// merge keeps the first valid value per row, in selection order
func (e *Engine) merge(ctx context.Context, r *run) error {
	for i, row := range r.cells {
		var first phone.Result
		for _, c := range row {
			if c.Valid {
				first = c
				break
			}
		}
		r.cells[i] = []phone.Result{first}
	}
	r.merged = true
	return nil
}

// dedup keeps the first occurrence of each canonical number, scanning
// row by row and column by column. Later occurrences become invalid.
func (e *Engine) dedup(ctx context.Context, r *run) error {
	seen := make(map[string]struct{})
	for _, row := range r.cells {
		for k, c := range row {
			if !c.Valid {
				continue
			}
			if _, dup := seen[c.Residue]; dup {
				row[k] = phone.Result{}
				r.duplicates++
				continue
			}
			seen[c.Residue] = struct{}{}
		}
	}
	return nil
}

// drop removes rows without any valid phone value
func (e *Engine) drop(ctx context.Context, r *run) error {
	for i, row := range r.cells {
		valid := false
		for _, c := range row {
			if c.Valid {
				valid = true
				break
			}
		}
		r.keep[i] = valid
	}
	return nil
}

// format renders canonical values and builds the output table
func (e *Engine) format(ctx context.Context, r *run) error {
	if r.merged {
		r.output = r.buildMerged(r.normalizer)
		return nil
	}
	r.output = r.buildInPlace(r.normalizer)
	r.outColumns = append([]string(nil), r.selection...)
	return nil
}

func (r *run) buildInPlace(nz *phone.Normalizer) *domain.Table {
	rows := make([][]domain.Cell, 0, len(r.cells))
	for i, cells := range r.cells {
		if !r.keep[i] {
			continue
		}
		out := make([]domain.Cell, len(r.source.Columns))
		copy(out, r.source.Rows[i])
		for k, idx := range r.selIdx {
			out[idx] = nz.Format(cells[k])
		}
		rows = append(rows, out)
	}
	return domain.NewTable(r.source.Columns, rows)
}

// buildMerged drops the selected columns and appends the merged one
func (r *run) buildMerged(nz *phone.Normalizer) *domain.Table {
	selected := make(map[int]bool, len(r.selIdx))
	for _, idx := range r.selIdx {
		selected[idx] = true
	}

	keepIdx := make([]int, 0, len(r.source.Columns))
	columns := make([]string, 0, len(r.source.Columns)-len(r.selIdx)+1)
	for idx, col := range r.source.Columns {
		if selected[idx] {
			continue
		}
		keepIdx = append(keepIdx, idx)
		columns = append(columns, col)
	}

	name := uniqueName(MergedColumnName, columns)
	columns = append(columns, name)
	r.outColumns = []string{name}

	rows := make([][]domain.Cell, 0, len(r.cells))
	for i, cells := range r.cells {
		if !r.keep[i] {
			continue
		}
		src := r.source.Rows[i]
		out := make([]domain.Cell, 0, len(columns))
		for _, idx := range keepIdx {
			out = append(out, src[idx])
		}
		out = append(out, nz.Format(cells[0]))
		rows = append(rows, out)
	}
	return domain.NewTable(columns, rows)
}

func uniqueName(base string, taken []string) string {
	exists := make(map[string]bool, len(taken))
	for _, c := range taken {
		exists[c] = true
	}
	if !exists[base] {
		return base
	}
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s_%d", base, n)
		if !exists[candidate] {
			return candidate
		}
	}
}

// metrics accounts for every evaluated cell
func (r *run) metrics() domain.Metrics {
	evaluated, valid := 0, 0
	for _, row := range r.cells {
		evaluated += len(row)
		for _, c := range row {
			if c.Valid {
				valid++
			}
		}
	}

	return domain.Metrics{
		TotalRecords:      r.source.TotalRows(),
		ValidNumbers:      valid,
		InvalidRemoved:    evaluated - valid - r.duplicates,
		DuplicatesRemoved: r.duplicates,
		RowsAfterCleaning: r.output.TotalRows(),
		EvaluatedUnits:    evaluated,
	}
}
