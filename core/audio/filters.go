package audio

import (
	"fmt"
	"strconv"
)

// Fixed parameters of the edit filter chains.
const (
	EdgeSilenceThresholdDB = -50.0
	EdgeSilenceMinDuration = 0.5
	GapSilenceThresholdDB  = -50.0
	GapSilenceMinDuration  = 5.0
	LimiterLinear          = 0.95 // about -0.45 dBFS
	LimiterAttackMS        = 5
	LimiterReleaseMS       = 50
)

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// SilenceEdgeFilter strips leading and trailing silence only; the reverse
// trick lets the same start-side silenceremove handle the tail.
func SilenceEdgeFilter() string {
	edge := fmt.Sprintf("silenceremove=start_periods=1:start_duration=%s:start_threshold=%sdB",
		formatFloat(EdgeSilenceMinDuration), formatFloat(EdgeSilenceThresholdDB))
	return edge + ",areverse," + edge + ",areverse"
}

// NormalizeFilter trims the edges, applies gain and limits the peaks.
func NormalizeFilter(gainDB float64) string {
	return fmt.Sprintf("%s,volume=%.2fdB,alimiter=limit=%s:attack=%d:release=%d",
		SilenceEdgeFilter(), gainDB, formatFloat(LimiterLinear), LimiterAttackMS, LimiterReleaseMS)
}

// SilenceGapFilter drops every silent run of GapSilenceMinDuration or longer.
func SilenceGapFilter() string {
	return fmt.Sprintf("silenceremove=stop_periods=-1:stop_duration=%s:stop_threshold=%sdB",
		formatFloat(GapSilenceMinDuration), formatFloat(GapSilenceThresholdDB))
}

// LoudnormAnalyzeFilter is the measuring pass.
func LoudnormAnalyzeFilter(t LoudnessTarget) string {
	return loudnormBase(t) + ":print_format=json"
}

// LoudnormFilter is the applying pass. With measured stats it runs in linear
// two-pass mode; without, it falls back to single-pass normalization.
func LoudnormFilter(t LoudnessTarget, measured *LoudnessStats) string {
	if measured == nil {
		return loudnormBase(t)
	}
	return fmt.Sprintf("%s:measured_I=%s:measured_TP=%s:measured_LRA=%s:measured_thresh=%s:offset=%s:linear=true",
		loudnormBase(t),
		orDefault(measured.InputI, "-24"),
		orDefault(measured.InputTP, "-2"),
		orDefault(measured.InputLRA, "7"),
		orDefault(measured.InputThresh, "-34"),
		orDefault(measured.TargetOffset, "0"),
	)
}

func loudnormBase(t LoudnessTarget) string {
	return fmt.Sprintf("loudnorm=I=%s:TP=%s:LRA=%s",
		formatFloat(t.IntegratedLUFS), formatFloat(t.TruePeakDBTP), formatFloat(t.LoudnessRange))
}

// MixFilter loops the bed, scales it and mixes it under the foreground for the
// foreground's length.
func MixFilter(bedVolume float64) string {
	return fmt.Sprintf("[1:a]aloop=loop=-1:size=2e+09,volume=%s[bed];[0:a][bed]amix=inputs=2:duration=first:dropout_transition=2:normalize=0",
		formatFloat(bedVolume))
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
