// Package pipeline drives the Readvcfs and Loaddb runs: it turns VCFs or
// persisted sample tables into a gene aggregate and exports it.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/montanaflynn/stats"
	"go.uber.org/zap"

	"github.com/inodb/vibe-burden/internal/burden"
	"github.com/inodb/vibe-burden/internal/cache"
	"github.com/inodb/vibe-burden/internal/duckdb"
	"github.com/inodb/vibe-burden/internal/files"
	"github.com/inodb/vibe-burden/internal/ledger"
	"github.com/inodb/vibe-burden/internal/metadata"
	"github.com/inodb/vibe-burden/internal/normalize"
	"github.com/inodb/vibe-burden/internal/output"
	"github.com/inodb/vibe-burden/internal/phenotype"
)

// Config holds the settings shared by both runs.
type Config struct {
	RunID       string
	Overwrite   bool
	Workers     int
	Progress    bool
	Prefixes    []string
	FieldNames  normalize.FieldNames
	Globals     string // metadata file, optional
	OutDir      string // TSV directory, defaults to the parent of the destination
	Ledger      bool
	LedgerDebug bool
}

// DefaultConfig returns a Config with the default CSQ field names and the
// ledger enabled.
func DefaultConfig() Config {
	return Config{
		FieldNames: normalize.DefaultFieldNames,
		Ledger:     true,
	}
}

// Result summarizes a completed run.
type Result struct {
	RunID         string
	Samples       int
	Computed      int
	Reused        int
	Entries       int64
	Rows          []burden.GeneAggregate
	AggregatePath string
	TSVPath       string
}

// Pipeline runs burden aggregations against one DuckDB store.
type Pipeline struct {
	cfg    Config
	store  *duckdb.Store
	logger *zap.Logger
}

// New creates a pipeline using store as the table engine.
func New(cfg Config, store *duckdb.Store) *Pipeline {
	return &Pipeline{cfg: cfg, store: store, logger: zap.NewNop()}
}

// SetLogger sets the logger for progress and warning messages.
func (p *Pipeline) SetLogger(l *zap.Logger) {
	p.logger = l
}

// NewRunID returns a run id derived from the current UTC time.
func NewRunID() string {
	return time.Now().UTC().Format("20060102T150405.000Z")
}

// RunID returns the configured run id, generating and logging one on first use.
func (p *Pipeline) RunID() string {
	if p.cfg.RunID == "" {
		p.cfg.RunID = NewRunID()
		p.logger.Info("generated run id", zap.String("run_id", p.cfg.RunID))
	}
	return p.cfg.RunID
}

func (p *Pipeline) trimmer() burden.IDTrimmer {
	return burden.IDTrimmer{Prefixes: p.cfg.Prefixes}
}

func (p *Pipeline) loadMetadata() (metadata.Map, error) {
	if p.cfg.Globals == "" {
		return nil, nil
	}
	return metadata.Load(p.cfg.Globals, p.trimmer(), p.logger)
}

// manager builds a cache manager for dest, with a ledger when enabled. The
// returned close func releases the ledger.
func (p *Pipeline) manager(ctx context.Context, dest string) (*cache.Manager, func(), error) {
	m := cache.NewManager(p.RunID(), p.cfg.Overwrite)
	m.SetLogger(p.logger)
	if !p.cfg.Ledger {
		return m, func() {}, nil
	}
	l, err := ledger.Open(ctx, filepath.Join(dest, ledger.FileName), p.cfg.LedgerDebug)
	if err != nil {
		return nil, nil, err
	}
	m.SetLedger(l)

	pending, err := l.Pending(ctx)
	if err != nil {
		l.Close()
		return nil, nil, err
	}
	for _, c := range pending {
		p.logger.Warn("destination left claimed by an earlier run",
			zap.String("path", c.Destination),
			zap.String("claimed_by", c.RunID),
			zap.Time("claimed_at", c.ClaimedAt))
	}
	return m, func() { l.Close() }, nil
}

func (p *Pipeline) tsvPath(dest string) string {
	out := p.cfg.OutDir
	if out == "" {
		out = filepath.Dir(filepath.Clean(dest))
	}
	return filepath.Join(out, fmt.Sprintf("%s%s.tsv", cache.AggregateDirName, p.RunID()))
}

// Readvcfs normalizes every VCF named by inputs into <dest>/<sample-id>,
// reusing sample tables persisted earlier, and aggregates them all into
// <dest>/gnomad_tb.
func (p *Pipeline) Readvcfs(ctx context.Context, inputs []string, dest string) (*Result, error) {
	paths, err := files.CollectVCFs(inputs)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, burden.ErrNoInput
	}

	items := make([]WorkItem, len(paths))
	owner := make(map[string]string, len(paths))
	tr := p.trimmer()
	for i, path := range paths {
		id := tr.Trim(path)
		if prev, dup := owner[id]; dup {
			return nil, fmt.Errorf("sample id %s derived from both %s and %s: %w", id, prev, path, burden.ErrAlreadyExists)
		}
		owner[id] = path
		items[i] = WorkItem{Seq: i, Path: path, SampleID: id}
	}

	md, err := p.loadMetadata()
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(dest, 0755); err != nil {
		return nil, fmt.Errorf("create destination: %w", err)
	}
	m, closeLedger, err := p.manager(ctx, dest)
	if err != nil {
		return nil, err
	}
	defer closeLedger()

	aggDest := filepath.Join(dest, cache.AggregateDirName)
	p.warnRunAggregates(aggDest)
	if _, err := m.Acquire(ctx, aggDest, false); err != nil {
		return nil, err
	}

	res, err := p.readSamples(ctx, m, md, items, dest)
	if err != nil {
		m.Abandon(context.Background(), aggDest)
		return nil, err
	}
	if err := p.aggregate(ctx, m, res.tables, aggDest, p.tsvPath(dest), &res.Result); err != nil {
		return nil, err
	}
	return &res.Result, nil
}

// warnRunAggregates lists the Loaddb run aggregates nested under aggDest,
// which share its directory and go with it on overwrite.
func (p *Pipeline) warnRunAggregates(aggDest string) {
	runs, err := cache.RunAggregates(aggDest)
	if err != nil || len(runs) == 0 {
		return
	}
	msg := "existing destination holds run aggregates"
	if p.cfg.Overwrite {
		msg = "overwrite removes run aggregates"
	}
	p.logger.Warn(msg, zap.String("path", aggDest), zap.Strings("runs", runs))
}

type sampleSet struct {
	Result
	tables []*burden.SampleTable
}

func (p *Pipeline) readSamples(ctx context.Context, m *cache.Manager, md metadata.Map,
	items []WorkItem, dest string) (*sampleSet, error) {

	n := normalize.NewNormalizer(md)
	n.SetFieldNames(p.cfg.FieldNames)
	n.SetLogger(p.logger)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := ParallelProcess(ctx, feed(ctx, items), p.cfg.Workers,
		func(ctx context.Context, it WorkItem) WorkResult {
			var st normalize.Stats
			t, d, err := m.Materialize(ctx, p.store, filepath.Join(dest, it.SampleID),
				func(context.Context) (*burden.SampleTable, error) {
					t, s, err := n.NormalizeFile(it.Path, it.SampleID)
					st = s
					return t, err
				})
			return WorkResult{Table: t, Decision: d, Stats: st, Err: err}
		})

	reg := cache.NewRegistry()
	set := &sampleSet{}
	err := OrderedCollect(results, func(r WorkResult) error {
		if r.Err != nil {
			cancel()
			return fmt.Errorf("sample %s: %w", r.Item.SampleID, r.Err)
		}
		if err := reg.Add(r.Table); err != nil {
			cancel()
			return err
		}
		if r.Decision == cache.Reuse {
			set.Reused++
			p.logger.Info("overwrite is not active, reusing existing sample table",
				zap.String("sample", r.Item.SampleID), zap.String("path", r.Table.Path))
		} else {
			set.Computed++
			p.logger.Info("normalized sample",
				zap.String("sample", r.Item.SampleID),
				zap.Int("rows", r.Stats.Rows),
				zap.Int("retained", r.Stats.Retained))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if reg.Len() != len(items) {
		return nil, fmt.Errorf("collected %d of %d samples", reg.Len(), len(items))
	}

	set.tables = reg.Tables()
	return set, nil
}

// LoaddbOptions select which persisted tables Loaddb aggregates.
type LoaddbOptions struct {
	Phenotype string // regular expression matched against phenotype metadata
	Number    int    // cap on tables after filtering; negative means all
}

// Loaddb reloads every sample table persisted under dir, optionally filters
// them by phenotype and caps their number, and aggregates the selection into
// <dir>/gnomad_tb/<run-id>.
func (p *Pipeline) Loaddb(ctx context.Context, dir string, opts LoaddbOptions) (*Result, error) {
	md, err := p.loadMetadata()
	if err != nil {
		return nil, err
	}

	reg, err := cache.LoadAll(ctx, p.store, dir, cache.LoadOptions{Progress: p.cfg.Progress, Logger: p.logger})
	if err != nil {
		return nil, err
	}
	tables := reg.Tables()

	if md != nil {
		for _, t := range tables {
			t.Metadata = md.Lookup(t.ID)
		}
	}

	selected, err := phenotype.Filter(tables, opts.Phenotype)
	if err != nil {
		return nil, err
	}
	if opts.Phenotype != "" {
		p.logger.Info("filtered tables by phenotype",
			zap.String("phenotype", opts.Phenotype), zap.Int("matched", len(selected)))
	}

	sort.SliceStable(selected, func(i, j int) bool { return selected[i].ID < selected[j].ID })
	if opts.Number >= 0 && opts.Number < len(selected) {
		selected = selected[:opts.Number]
	}
	if len(selected) == 0 {
		return nil, burden.ErrNoInput
	}

	m, closeLedger, err := p.manager(ctx, dir)
	if err != nil {
		return nil, err
	}
	defer closeLedger()

	aggDest := filepath.Join(dir, cache.AggregateDirName, p.RunID())
	if _, err := m.Acquire(ctx, aggDest, false); err != nil {
		return nil, err
	}

	res := &Result{Reused: len(selected)}
	if err := p.aggregate(ctx, m, selected, aggDest, p.tsvPath(dir), res); err != nil {
		return nil, err
	}
	return res, nil
}

// aggregate unions tables, aggregates them by gene, persists the result to
// aggDest and exports it to tsv. aggDest is abandoned on failure until it is
// committed; after that it is kept even if the export fails.
func (p *Pipeline) aggregate(ctx context.Context, m *cache.Manager, tables []*burden.SampleTable,
	aggDest, tsv string, res *Result) error {

	entries, err := p.persistAggregate(ctx, tables, aggDest)
	if err == nil {
		err = m.Commit(ctx, aggDest)
	}
	if err != nil {
		m.Abandon(context.Background(), aggDest)
		return err
	}

	agg, err := p.store.ReadAggregate(ctx, aggDest)
	if err != nil {
		return err
	}
	defer agg.Drop(context.Background())

	rows, err := agg.Rows(ctx)
	if err != nil {
		return err
	}
	if err := output.WriteFile(tsv, rows); err != nil {
		return fmt.Errorf("export aggregate %s: %w", aggDest, err)
	}

	res.RunID = p.RunID()
	res.Samples = len(tables)
	res.Entries = entries
	res.Rows = rows
	res.AggregatePath = aggDest
	res.TSVPath = tsv

	p.summarize(tables, res)
	return nil
}

// persistAggregate writes the gene aggregate of tables to aggDest and returns
// the number of entries it was built from.
func (p *Pipeline) persistAggregate(ctx context.Context, tables []*burden.SampleTable, aggDest string) (int64, error) {
	cohort, err := p.store.Union(ctx, tables)
	if err != nil {
		return 0, err
	}
	defer cohort.Drop(context.Background())

	agg, err := cohort.Aggregate(ctx)
	if err != nil {
		return 0, err
	}
	defer agg.Drop(context.Background())

	if err := agg.WriteParquet(ctx, aggDest); err != nil {
		return 0, err
	}
	return cohort.Len(), nil
}

func (p *Pipeline) summarize(tables []*burden.SampleTable, res *Result) {
	var alleles int64
	for i := range res.Rows {
		alleles += res.Rows[i].Total()
	}
	counts := make([]float64, len(tables))
	for i, t := range tables {
		counts[i] = float64(t.Len())
	}
	mean, _ := stats.Mean(counts)
	median, _ := stats.Median(counts)

	p.logger.Info("aggregated gene burden",
		zap.String("run_id", res.RunID),
		zap.Int("samples", res.Samples),
		zap.Int64("entries", res.Entries),
		zap.Int("genes", len(res.Rows)),
		zap.Int64("alt_alleles", alleles),
		zap.Float64("mean_entries_per_sample", mean),
		zap.Float64("median_entries_per_sample", median),
		zap.String("aggregate", res.AggregatePath),
		zap.String("tsv", res.TSVPath))
}
