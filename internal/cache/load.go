package cache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/cheggaaa/pb/v3"
	"go.uber.org/zap"

	"github.com/inodb/vibe-burden/internal/burden"
)

// AggregateDirName is the directory under a destination that holds aggregates.
const AggregateDirName = "gnomad_tb"

// SampleReader loads persisted sample tables.
type SampleReader interface {
	ReadSample(dir string) (*burden.SampleTable, error)
}

// LoadOptions configure LoadAll.
type LoadOptions struct {
	Progress bool // draw a progress bar instead of logging percentages
	Logger   *zap.Logger
}

// SampleDirs lists the sample table directories directly under dir, sorted by
// name. Files, hidden entries and aggregate directories are skipped.
func SampleDirs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("table directory %s: %w", dir, burden.ErrNotFound)
		}
		return nil, fmt.Errorf("read table directory: %w", err)
	}

	var dirs []string
	for _, e := range entries {
		name := e.Name()
		if !e.IsDir() || strings.HasPrefix(name, ".") || strings.Contains(name, AggregateDirName) {
			continue
		}
		dirs = append(dirs, filepath.Join(dir, name))
	}
	return dirs, nil
}

// RunAggregates lists the names of the run aggregates nested under aggDir,
// sorted. A missing aggDir has none.
func RunAggregates(aggDir string) ([]string, error) {
	entries, err := os.ReadDir(aggDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read aggregate directory: %w", err)
	}

	var runs []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			runs = append(runs, e.Name())
		}
	}
	return runs, nil
}

// LoadAll reads every sample table persisted under dir into a new registry.
// Directories without a complete table are skipped with a warning.
func LoadAll(ctx context.Context, store SampleReader, dir string, opts LoadOptions) (*Registry, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	dirs, err := SampleDirs(dir)
	if err != nil {
		return nil, err
	}

	var bar *pb.ProgressBar
	if opts.Progress && len(dirs) > 0 {
		bar = pb.StartNew(len(dirs))
		defer bar.Finish()
	}
	progress := newPercentLogger(logger, len(dirs))

	reg := NewRegistry()
	for _, d := range dirs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		t, err := store.ReadSample(d)
		switch {
		case errors.Is(err, burden.ErrIncomplete):
			logger.Warn("skipping incomplete sample table", zap.String("path", d), zap.Error(err))
		case err != nil:
			return nil, err
		default:
			if err := reg.Add(t); err != nil {
				return nil, fmt.Errorf("load %s: %w", d, err)
			}
		}

		if bar != nil {
			bar.Increment()
		} else {
			progress.step()
		}
	}

	logger.Info("loaded sample tables", zap.String("dir", dir), zap.Int("tables", reg.Len()))
	return reg, nil
}

// percentLogger logs progress each time another 10% of items is done.
type percentLogger struct {
	logger *zap.Logger
	total  int
	done   int
	next   int
}

func newPercentLogger(logger *zap.Logger, total int) *percentLogger {
	return &percentLogger{logger: logger, total: total, next: 10}
}

func (p *percentLogger) step() {
	p.done++
	pct := p.done * 100 / p.total
	if pct < p.next {
		return
	}
	p.logger.Info("loading sample tables",
		zap.Int("percent", pct),
		zap.Int("done", p.done),
		zap.Int("total", p.total))
	p.next = pct/10*10 + 10
}
