package audio

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strconv"
	"strings"

	"Rippers/logger"
)

const maxReportedOutput = 2000

// FFmpegProcessor implements the Processor interface using ffmpeg and ffprobe.
type FFmpegProcessor struct {
	ffmpegPath  string
	ffprobePath string
}

// NewFFmpegProcessor creates a new FFmpegProcessor. An empty ffprobePath is
// derived from the ffmpeg path.
func NewFFmpegProcessor(ffmpegPath, ffprobePath string) *FFmpegProcessor {
	if ffprobePath == "" {
		ffprobePath = strings.Replace(ffmpegPath, "ffmpeg", "ffprobe", 1)
	}
	return &FFmpegProcessor{ffmpegPath: ffmpegPath, ffprobePath: ffprobePath}
}

func truncateOutput(s string) string {
	if len(s) <= maxReportedOutput {
		return s
	}
	return "..." + s[len(s)-maxReportedOutput:]
}

// run executes one tool invocation. A nonzero exit, or a missing output when
// one is expected, is reported as a *ToolError.
func (p *FFmpegProcessor) run(ctx context.Context, op, bin string, args []string, output string) (*Result, error) {
	cmd := exec.CommandContext(ctx, bin, args...)
	var combined bytes.Buffer
	cmd.Stdout = &combined
	cmd.Stderr = &combined

	logger.Debug("Executing audio tool",
		logger.String("op", op),
		logger.String("command", bin+" "+strings.Join(args, " ")))

	err := cmd.Run()
	res := &Result{Output: combined.String()}
	if err != nil {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		code := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		}
		res.ExitCode = code
		return res, &ToolError{Op: op, ExitCode: code, Output: truncateOutput(res.Output), Reason: err.Error()}
	}

	if output != "" {
		info, statErr := os.Stat(output)
		if statErr != nil || info.IsDir() {
			return res, &ToolError{Op: op, Output: truncateOutput(res.Output), Reason: "expected output missing: " + output}
		}
		res.OutputPath = output
	}
	return res, nil
}

// MeasurePeak runs volumedetect; the report carries "max_volume: <x> dB".
func (p *FFmpegProcessor) MeasurePeak(ctx context.Context, input string) (*Result, error) {
	args := []string{"-hide_banner", "-nostats", "-i", input, "-af", "volumedetect", "-f", "null", "-"}
	return p.run(ctx, OpMeasurePeak, p.ffmpegPath, args, "")
}

// DetectSilence runs silencedetect with the given threshold and minimum length.
func (p *FFmpegProcessor) DetectSilence(ctx context.Context, input string, noiseDB, minDuration float64) (*Result, error) {
	filter := fmt.Sprintf("silencedetect=noise=%sdB:d=%s", formatFloat(noiseDB), formatFloat(minDuration))
	args := []string{"-hide_banner", "-nostats", "-i", input, "-af", filter, "-f", "null", "-"}
	return p.run(ctx, OpDetectSilence, p.ffmpegPath, args, "")
}

// ffprobeOutput defines the structure for ffprobe JSON output.
type ffprobeOutput struct {
	Format struct {
		Duration string            `json:"duration"`
		Tags     map[string]string `json:"tags"`
	} `json:"format"`
}

func (p *FFmpegProcessor) probe(ctx context.Context, op, input, entries string) (*ffprobeOutput, error) {
	args := []string{"-v", "error", "-show_entries", entries, "-of", "json", input}
	res, err := p.run(ctx, op, p.ffprobePath, args, "")
	if err != nil {
		return nil, err
	}
	var probeData ffprobeOutput
	if err := json.Unmarshal([]byte(res.Output), &probeData); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ffprobe output for %s: %w", input, err)
	}
	return &probeData, nil
}

// Duration uses ffprobe to get the duration of an audio file in seconds.
func (p *FFmpegProcessor) Duration(ctx context.Context, input string) (float64, error) {
	probeData, err := p.probe(ctx, OpDuration, input, "format=duration")
	if err != nil {
		return 0, err
	}
	if probeData.Format.Duration == "" {
		return 0, fmt.Errorf("duration not found in ffprobe output for %s", input)
	}
	duration, err := strconv.ParseFloat(probeData.Format.Duration, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse duration %q for %s: %w", probeData.Format.Duration, input, err)
	}
	return duration, nil
}

// ReadTags returns the container-level tags with lowercased keys.
func (p *FFmpegProcessor) ReadTags(ctx context.Context, input string) (map[string]string, error) {
	probeData, err := p.probe(ctx, OpReadTags, input, "format_tags")
	if err != nil {
		return nil, err
	}
	tags := make(map[string]string, len(probeData.Format.Tags))
	for k, v := range probeData.Format.Tags {
		tags[strings.ToLower(k)] = v
	}
	return tags, nil
}

func encodeArgs(sampleRate, channels int, bitrate string) []string {
	var args []string
	if sampleRate > 0 {
		args = append(args, "-ar", strconv.Itoa(sampleRate))
	}
	if channels > 0 {
		args = append(args, "-ac", strconv.Itoa(channels))
	}
	if bitrate != "" {
		args = append(args, "-b:a", bitrate)
	}
	return args
}

func tagArgs(tags map[string]string) []string {
	if len(tags) == 0 {
		return nil
	}
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	args := make([]string, 0, len(keys)*2+2)
	for _, k := range keys {
		args = append(args, "-metadata", k+"="+tags[k])
	}
	return append(args, "-id3v2_version", "3")
}

// TranscodeArgs builds the ffmpeg argument list for req.
func TranscodeArgs(req TranscodeRequest) []string {
	args := []string{"-hide_banner", "-nostats", "-y", "-i", req.Input}
	if req.Start != nil {
		args = append(args, "-ss", fmt.Sprintf("%.3f", *req.Start))
	}
	if req.End != nil {
		args = append(args, "-to", fmt.Sprintf("%.3f", *req.End))
	}
	if req.CopyMetadata {
		args = append(args, "-map_metadata", "0")
	}
	if req.AudioFilter != "" {
		args = append(args, "-af", req.AudioFilter)
	}
	if req.FilterComplex != "" {
		args = append(args, "-filter_complex", req.FilterComplex)
	}
	if req.StreamCopy {
		args = append(args, "-c", "copy")
	} else {
		args = append(args, encodeArgs(req.SampleRate, req.Channels, req.Bitrate)...)
	}
	args = append(args, tagArgs(req.Tags)...)
	args = append(args, req.ExtraArgs...)
	return append(args, req.Output)
}

func (p *FFmpegProcessor) Transcode(ctx context.Context, req TranscodeRequest) (*Result, error) {
	return p.run(ctx, OpTranscode, p.ffmpegPath, TranscodeArgs(req), req.Output)
}

// Concat joins inputs without re-encoding through the concat demuxer. The
// list file lives next to the output and is always removed.
func (p *FFmpegProcessor) Concat(ctx context.Context, inputs []string, output string) (*Result, error) {
	listPath := output + ".list.txt"
	var b strings.Builder
	for _, in := range inputs {
		b.WriteString("file '")
		b.WriteString(strings.ReplaceAll(in, "'", `'\''`))
		b.WriteString("'\n")
	}
	if err := os.WriteFile(listPath, []byte(b.String()), 0644); err != nil {
		return nil, fmt.Errorf("failed to write concat list: %w", err)
	}
	defer os.Remove(listPath)

	args := []string{"-hide_banner", "-nostats", "-y", "-f", "concat", "-safe", "0", "-i", listPath, "-c", "copy", output}
	return p.run(ctx, OpConcat, p.ffmpegPath, args, output)
}

func (p *FFmpegProcessor) LoudnessAnalyze(ctx context.Context, input string, target LoudnessTarget) (*Result, error) {
	args := []string{"-hide_banner", "-nostats", "-i", input, "-af", LoudnormAnalyzeFilter(target), "-f", "null", "-"}
	return p.run(ctx, OpLoudnessAnalyze, p.ffmpegPath, args, "")
}

// LoudnessApplyFilter is the -af chain of the applying pass.
func LoudnessApplyFilter(req LoudnessApplyRequest) string {
	filter := LoudnormFilter(req.Target, req.Measured)
	if req.TrimSilence {
		filter = SilenceGapFilter() + "," + filter
	}
	return filter
}

func (p *FFmpegProcessor) LoudnessApply(ctx context.Context, req LoudnessApplyRequest) (*Result, error) {
	args := []string{"-hide_banner", "-nostats", "-y", "-i", req.Input, "-af", LoudnessApplyFilter(req)}
	args = append(args, encodeArgs(req.SampleRate, 0, req.Bitrate)...)
	args = append(args, req.Output)
	return p.run(ctx, OpLoudnessApply, p.ffmpegPath, args, req.Output)
}

func (p *FFmpegProcessor) Mix(ctx context.Context, req MixRequest) (*Result, error) {
	args := []string{"-hide_banner", "-nostats", "-y", "-i", req.Foreground, "-i", req.Bed,
		"-filter_complex", MixFilter(req.BedVolume)}
	args = append(args, encodeArgs(req.SampleRate, 0, req.Bitrate)...)
	args = append(args, req.Output)
	return p.run(ctx, OpMix, p.ffmpegPath, args, req.Output)
}
