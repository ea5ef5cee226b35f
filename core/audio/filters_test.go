package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeFilter(t *testing.T) {
	f := NormalizeFilter(7.4)
	assert.Contains(t, f, "silenceremove=start_periods=1:start_duration=0.5:start_threshold=-50dB")
	assert.Contains(t, f, "areverse")
	assert.Contains(t, f, "volume=7.40dB")
	assert.Contains(t, f, "alimiter=limit=0.95:attack=5:release=50")
}

func TestLoudnormFilter(t *testing.T) {
	single := LoudnormFilter(DefaultLoudnessTarget, nil)
	assert.Equal(t, "loudnorm=I=-16:TP=-1.5:LRA=11", single)

	two := LoudnormFilter(DefaultLoudnessTarget, &LoudnessStats{
		InputI: "-23.51", InputTP: "-4.20", InputLRA: "6.10", InputThresh: "-34.02",
	})
	assert.Equal(t, "loudnorm=I=-16:TP=-1.5:LRA=11:measured_I=-23.51:measured_TP=-4.20:measured_LRA=6.10:measured_thresh=-34.02:offset=0:linear=true", two)

	assert.Equal(t, "loudnorm=I=-16:TP=-1.5:LRA=11:print_format=json", LoudnormAnalyzeFilter(DefaultLoudnessTarget))
}

func TestLoudnessApplyFilterTrimSilence(t *testing.T) {
	req := LoudnessApplyRequest{Target: DefaultLoudnessTarget, TrimSilence: true}
	assert.Equal(t,
		"silenceremove=stop_periods=-1:stop_duration=5:stop_threshold=-50dB,loudnorm=I=-16:TP=-1.5:LRA=11",
		LoudnessApplyFilter(req))
}

func TestTranscodeArgs(t *testing.T) {
	start, end := 5.0, 62.5
	args := TranscodeArgs(TranscodeRequest{
		Input:        "in.mp3",
		Output:       "out.mp3",
		Start:        &start,
		End:          &end,
		StreamCopy:   true,
		CopyMetadata: true,
		SampleRate:   44100, // ignored for stream copy
		Tags:         map[string]string{"title": "Now", "artist": "Queen"},
	})

	assert.Equal(t, []string{
		"-hide_banner", "-nostats", "-y", "-i", "in.mp3",
		"-ss", "5.000", "-to", "62.500",
		"-map_metadata", "0",
		"-c", "copy",
		"-metadata", "artist=Queen", "-metadata", "title=Now", "-id3v2_version", "3",
		"out.mp3",
	}, args)
}

func TestTranscodeArgsEncode(t *testing.T) {
	args := TranscodeArgs(TranscodeRequest{
		Input:       "in.mp3",
		Output:      "out.mp3",
		AudioFilter: "volume=2dB",
		SampleRate:  44100,
		Bitrate:     "192k",
	})
	assert.Equal(t, []string{
		"-hide_banner", "-nostats", "-y", "-i", "in.mp3",
		"-af", "volume=2dB",
		"-ar", "44100", "-b:a", "192k",
		"out.mp3",
	}, args)
}
