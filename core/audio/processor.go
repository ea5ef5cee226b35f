package audio

import (
	"context"
	"errors"
	"fmt"
)

// Operation names, used in errors, logs and the test fake.
const (
	OpMeasurePeak     = "measure-peak"
	OpDetectSilence   = "detect-silence"
	OpDuration        = "get-duration"
	OpTranscode       = "transcode"
	OpConcat          = "concat"
	OpLoudnessAnalyze = "loudness-analyze"
	OpLoudnessApply   = "loudness-apply"
	OpMix             = "mix"
	OpReadTags        = "read-tags"
)

// ErrToolFailure is returned (wrapped in a *ToolError) whenever the external tool
// exits nonzero or does not produce the output file it promised.
var ErrToolFailure = errors.New("external audio tool failed")

// ToolError carries the diagnostics of a failed tool run.
type ToolError struct {
	Op       string
	ExitCode int
	Output   string
	Reason   string
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("%s failed (exit %d): %s", e.Op, e.ExitCode, e.Reason)
}

func (e *ToolError) Unwrap() error {
	return ErrToolFailure
}

// Result is what every operation reports back. Output holds the tool's
// combined stdout/stderr text; OutputPath is set when a file was produced.
type Result struct {
	ExitCode   int
	Output     string
	OutputPath string
}

// TranscodeRequest describes a single-input ffmpeg run.
type TranscodeRequest struct {
	Input         string
	Output        string
	AudioFilter   string            // -af chain
	FilterComplex string            // -filter_complex graph (waveform rendering)
	Start         *float64          // clip start in seconds, nil = beginning
	End           *float64          // clip end in seconds, nil = end of file
	StreamCopy    bool              // -c copy, no re-encode
	CopyMetadata  bool              // -map_metadata 0
	SampleRate    int               // 0 keeps the source rate
	Bitrate       string            // empty keeps the encoder default
	Channels      int               // 0 keeps the source layout
	Tags          map[string]string // -metadata key=value
	ExtraArgs     []string          // appended just before the output path
}

// LoudnessTarget is the EBU R128 target handed to loudnorm.
type LoudnessTarget struct {
	IntegratedLUFS float64
	TruePeakDBTP   float64
	LoudnessRange  float64
}

// DefaultLoudnessTarget is used for merged playlists.
var DefaultLoudnessTarget = LoudnessTarget{IntegratedLUFS: -16, TruePeakDBTP: -1.5, LoudnessRange: 11}

// LoudnessStats is the JSON block loudnorm prints after a measuring pass.
type LoudnessStats struct {
	InputI       string `json:"input_i"`
	InputTP      string `json:"input_tp"`
	InputLRA     string `json:"input_lra"`
	InputThresh  string `json:"input_thresh"`
	TargetOffset string `json:"target_offset"`
}

// LoudnessApplyRequest is the second (or only) loudnorm pass.
// Measured nil means single-pass normalization.
type LoudnessApplyRequest struct {
	Input       string
	Output      string
	Target      LoudnessTarget
	Measured    *LoudnessStats
	TrimSilence bool
	SampleRate  int
	Bitrate     string
}

// MixRequest lays a looped background bed under a foreground track.
type MixRequest struct {
	Foreground string
	Bed        string
	Output     string
	BedVolume  float64 // linear gain applied to the bed, e.g. 0.2
	SampleRate int
	Bitrate    string
}

// Processor is the narrow adapter over the external audio tools.
// Implementations must treat a nonzero exit or a missing output file as ErrToolFailure.
type Processor interface {
	MeasurePeak(ctx context.Context, input string) (*Result, error)
	DetectSilence(ctx context.Context, input string, noiseDB, minDuration float64) (*Result, error)
	Duration(ctx context.Context, input string) (float64, error)
	Transcode(ctx context.Context, req TranscodeRequest) (*Result, error)
	Concat(ctx context.Context, inputs []string, output string) (*Result, error)
	LoudnessAnalyze(ctx context.Context, input string, target LoudnessTarget) (*Result, error)
	LoudnessApply(ctx context.Context, req LoudnessApplyRequest) (*Result, error)
	Mix(ctx context.Context, req MixRequest) (*Result, error)
}

// TagReader is implemented by processors that can read embedded tags.
type TagReader interface {
	ReadTags(ctx context.Context, input string) (map[string]string, error)
}
