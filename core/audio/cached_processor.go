package audio

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// ReportCache keeps tool reports between runs. Misses and write failures are
// not errors; the tool simply runs again.
type ReportCache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, report string)
}

// CachedProcessor remembers peak reports per file version. Any rewrite of a
// track changes its size or modification time and so misses the cache.
type CachedProcessor struct {
	Processor
	cache ReportCache
}

func NewCachedProcessor(p Processor, cache ReportCache) *CachedProcessor {
	return &CachedProcessor{Processor: p, cache: cache}
}

// ReportKey identifies one version of input for op.
func ReportKey(op, input string) (string, bool) {
	info, err := os.Stat(input)
	if err != nil || info.IsDir() {
		return "", false
	}
	abs, err := filepath.Abs(input)
	if err != nil {
		abs = input
	}
	return fmt.Sprintf("%s|%s|%d|%d", op, abs, info.Size(), info.ModTime().UnixNano()), true
}

func (p *CachedProcessor) MeasurePeak(ctx context.Context, input string) (*Result, error) {
	key, cacheable := ReportKey(OpMeasurePeak, input)
	if cacheable {
		if report, hit := p.cache.Get(ctx, key); hit {
			return &Result{Output: report}, nil
		}
	}
	res, err := p.Processor.MeasurePeak(ctx, input)
	if err == nil && cacheable {
		if line, ok := peakLine(res.Output); ok {
			p.cache.Set(ctx, key, line)
		}
	}
	return res, err
}

// ReadTags forwards to the wrapped processor when it can read tags.
func (p *CachedProcessor) ReadTags(ctx context.Context, input string) (map[string]string, error) {
	if tr, ok := p.Processor.(TagReader); ok {
		return tr.ReadTags(ctx, input)
	}
	return nil, nil
}

var (
	_ Processor = (*CachedProcessor)(nil)
	_ TagReader = (*CachedProcessor)(nil)
)
