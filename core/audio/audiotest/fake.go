// Package audiotest provides a scripted stand-in for the external audio tools.
package audiotest

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"Rippers/core/audio"
)

// Call records one adapter invocation.
type Call struct {
	Op      string
	Inputs  []string
	Output  string
	Request interface{}
}

// Processor is an in-memory audio.Processor. Produced files contain the input
// bytes followed by a marker naming the operation, so edits are observable and
// restores can be checked byte for byte.
type Processor struct {
	mu sync.Mutex

	PeakReport     string             // returned by MeasurePeak
	SilenceReports map[string]string  // keyed by input base name
	LoudnessReport string             // returned by LoudnessAnalyze
	Durations      map[string]float64 // keyed by input base name
	Tags           map[string]map[string]string

	Fail       map[string]bool // op → exit nonzero
	SkipOutput map[string]bool // op → exit zero but write nothing

	Calls []Call
}

// New returns a fake that reports a -8.4 dB peak and no silence.
func New() *Processor {
	return &Processor{
		PeakReport:     "[Parsed_volumedetect_0 @ 0x0] max_volume: -8.4 dB",
		SilenceReports: map[string]string{},
		Durations:      map[string]float64{},
		Tags:           map[string]map[string]string{},
		Fail:           map[string]bool{},
		SkipOutput:     map[string]bool{},
	}
}

func (p *Processor) record(c Call) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = append(p.Calls, c)
}

// CallsFor returns the recorded calls of one operation.
func (p *Processor) CallsFor(op string) []Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []Call
	for _, c := range p.Calls {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// Ops lists the recorded operation names in call order.
func (p *Processor) Ops() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	ops := make([]string, 0, len(p.Calls))
	for _, c := range p.Calls {
		ops = append(ops, c.Op)
	}
	return ops
}

func (p *Processor) failure(op string) error {
	if p.Fail[op] {
		return &audio.ToolError{Op: op, ExitCode: 1, Reason: "scripted failure"}
	}
	return nil
}

func (p *Processor) produce(op, output string, inputs ...string) (*audio.Result, error) {
	if err := p.failure(op); err != nil {
		// Real tools often leave a partial file behind.
		if output != "" {
			_ = os.WriteFile(output, []byte("partial"), 0644)
		}
		return &audio.Result{ExitCode: 1}, err
	}
	if p.SkipOutput[op] {
		return &audio.Result{}, &audio.ToolError{Op: op, Reason: "expected output missing: " + output}
	}

	var buf bytes.Buffer
	for _, in := range inputs {
		data, err := os.ReadFile(in)
		if err != nil {
			return &audio.Result{ExitCode: 1}, &audio.ToolError{Op: op, ExitCode: 1, Reason: err.Error()}
		}
		buf.Write(data)
	}
	fmt.Fprintf(&buf, "|%s", op)
	if err := os.WriteFile(output, buf.Bytes(), 0644); err != nil {
		return nil, err
	}
	return &audio.Result{OutputPath: output}, nil
}

func (p *Processor) MeasurePeak(_ context.Context, input string) (*audio.Result, error) {
	p.record(Call{Op: audio.OpMeasurePeak, Inputs: []string{input}})
	if err := p.failure(audio.OpMeasurePeak); err != nil {
		return &audio.Result{ExitCode: 1}, err
	}
	return &audio.Result{Output: p.PeakReport}, nil
}

func (p *Processor) DetectSilence(_ context.Context, input string, noiseDB, minDuration float64) (*audio.Result, error) {
	p.record(Call{Op: audio.OpDetectSilence, Inputs: []string{input}, Request: [2]float64{noiseDB, minDuration}})
	if err := p.failure(audio.OpDetectSilence); err != nil {
		return &audio.Result{ExitCode: 1}, err
	}
	return &audio.Result{Output: p.SilenceReports[filepath.Base(input)]}, nil
}

func (p *Processor) Duration(_ context.Context, input string) (float64, error) {
	p.record(Call{Op: audio.OpDuration, Inputs: []string{input}})
	if err := p.failure(audio.OpDuration); err != nil {
		return 0, err
	}
	return p.Durations[filepath.Base(input)], nil
}

func (p *Processor) ReadTags(_ context.Context, input string) (map[string]string, error) {
	p.record(Call{Op: audio.OpReadTags, Inputs: []string{input}})
	return p.Tags[filepath.Base(input)], nil
}

func (p *Processor) Transcode(_ context.Context, req audio.TranscodeRequest) (*audio.Result, error) {
	p.record(Call{Op: audio.OpTranscode, Inputs: []string{req.Input}, Output: req.Output, Request: req})
	return p.produce(audio.OpTranscode, req.Output, req.Input)
}

func (p *Processor) Concat(_ context.Context, inputs []string, output string) (*audio.Result, error) {
	p.record(Call{Op: audio.OpConcat, Inputs: append([]string(nil), inputs...), Output: output})
	return p.produce(audio.OpConcat, output, inputs...)
}

func (p *Processor) LoudnessAnalyze(_ context.Context, input string, target audio.LoudnessTarget) (*audio.Result, error) {
	p.record(Call{Op: audio.OpLoudnessAnalyze, Inputs: []string{input}, Request: target})
	if err := p.failure(audio.OpLoudnessAnalyze); err != nil {
		return &audio.Result{ExitCode: 1}, err
	}
	return &audio.Result{Output: p.LoudnessReport}, nil
}

func (p *Processor) LoudnessApply(_ context.Context, req audio.LoudnessApplyRequest) (*audio.Result, error) {
	p.record(Call{Op: audio.OpLoudnessApply, Inputs: []string{req.Input}, Output: req.Output, Request: req})
	return p.produce(audio.OpLoudnessApply, req.Output, req.Input)
}

func (p *Processor) Mix(_ context.Context, req audio.MixRequest) (*audio.Result, error) {
	p.record(Call{Op: audio.OpMix, Inputs: []string{req.Foreground, req.Bed}, Output: req.Output, Request: req})
	return p.produce(audio.OpMix, req.Output, req.Foreground, req.Bed)
}

var (
	_ audio.Processor = (*Processor)(nil)
	_ audio.TagReader = (*Processor)(nil)
)
