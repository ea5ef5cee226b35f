package audio

import (
	"encoding/json"
	"regexp"
	"strconv"
)

var (
	maxVolumePattern    = regexp.MustCompile(`max_volume:\s*(-?[0-9]+(?:\.[0-9]+)?)\s*dB`)
	silenceStartPattern = regexp.MustCompile(`silence_start:\s*(-?[0-9]+(?:\.[0-9]+)?)`)
	silenceEndPattern   = regexp.MustCompile(`silence_end:\s*(-?[0-9]+(?:\.[0-9]+)?)\s*\|\s*silence_duration:\s*([0-9]+(?:\.[0-9]+)?)`)
	jsonBlockPattern    = regexp.MustCompile(`(?s)\{[^{}]*\}`)
)

// ParsePeak extracts the "max_volume: <float> dB" value of a volumedetect run.
func ParsePeak(text string) (float64, bool) {
	m := maxVolumePattern.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// peakLine reduces a volumedetect report to its max_volume line.
func peakLine(text string) (string, bool) {
	m := maxVolumePattern.FindString(text)
	return m, m != ""
}

// SilenceSpan is one silent run reported by silencedetect. Open spans
// started but were never closed, i.e. the silence runs to end of file.
type SilenceSpan struct {
	Start    float64
	End      float64
	Duration float64
	Open     bool
}

// ParseSilence pairs silence_start / silence_end lines in report order.
func ParseSilence(text string) []SilenceSpan {
	starts := silenceStartPattern.FindAllStringSubmatchIndex(text, -1)
	ends := silenceEndPattern.FindAllStringSubmatchIndex(text, -1)

	var spans []SilenceSpan
	ei := 0
	for i, s := range starts {
		start, err := strconv.ParseFloat(text[s[2]:s[3]], 64)
		if err != nil {
			continue
		}
		if start < 0 {
			start = 0
		}
		nextStart := len(text)
		if i+1 < len(starts) {
			nextStart = starts[i+1][0]
		}
		for ei < len(ends) && ends[ei][0] < s[0] {
			ei++
		}
		if ei < len(ends) && ends[ei][0] < nextStart {
			end, err1 := strconv.ParseFloat(text[ends[ei][2]:ends[ei][3]], 64)
			dur, err2 := strconv.ParseFloat(text[ends[ei][4]:ends[ei][5]], 64)
			ei++
			if err1 == nil && err2 == nil {
				spans = append(spans, SilenceSpan{Start: start, End: end, Duration: dur})
				continue
			}
		}
		spans = append(spans, SilenceSpan{Start: start, Open: true})
	}
	return spans
}

// ParseLoudness finds the loudnorm JSON block in a measuring pass's output.
func ParseLoudness(text string) (*LoudnessStats, bool) {
	blocks := jsonBlockPattern.FindAllString(text, -1)
	for i := len(blocks) - 1; i >= 0; i-- {
		var stats LoudnessStats
		if err := json.Unmarshal([]byte(blocks[i]), &stats); err != nil {
			continue
		}
		if stats.InputI == "" {
			continue
		}
		return &stats, true
	}
	return nil, false
}
