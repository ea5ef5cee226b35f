package normalize

import (
	"context"
	"fmt"
	"os"

	"Rippers/core/audio"
	"Rippers/core/library"
)

// Tagger copies sidecar metadata into the embedded tags of a track without
// re-encoding. Callers hold the track lock.
type Tagger struct {
	layout library.Layout
	proc   audio.Processor
}

func NewTagger(layout library.Layout, proc audio.Processor) *Tagger {
	return &Tagger{layout: layout, proc: proc}
}

// Tags returns the tag set derived from the sidecar of name, or nil when
// there is nothing to write.
func (t *Tagger) Tags(name string) (map[string]string, error) {
	sc, ok, err := t.layout.ReadSidecar(name)
	if err != nil || !ok {
		return nil, err
	}
	tags := map[string]string{}
	add := func(key, value string) {
		if value != "" {
			tags[key] = value
		}
	}
	add("artist", sc.Artist)
	add("title", sc.Title)
	add("album", sc.Album)
	add("comment", sc.URL)
	if len(tags) == 0 {
		return nil, nil
	}
	return tags, nil
}

// Apply rewrites the tags of name in place.
func (t *Tagger) Apply(ctx context.Context, name string) error {
	tags, err := t.Tags(name)
	if err != nil {
		return err
	}
	if tags == nil || t.current(ctx, name, tags) {
		return nil
	}
	tmp := t.layout.TempPath(name, "tags")
	_, err = t.proc.Transcode(ctx, audio.TranscodeRequest{
		Input:      t.layout.AudioPath(name),
		Output:     tmp,
		StreamCopy: true,
		Tags:       tags,
	})
	if err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write tags of %s: %w", name, err)
	}
	if err := os.Rename(tmp, t.layout.AudioPath(name)); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace %s after tagging: %w", name, err)
	}
	return nil
}

// current reports whether the embedded tags already carry every value.
func (t *Tagger) current(ctx context.Context, name string, want map[string]string) bool {
	tr, ok := t.proc.(audio.TagReader)
	if !ok {
		return false
	}
	have, err := tr.ReadTags(ctx, t.layout.AudioPath(name))
	if err != nil {
		return false
	}
	for k, v := range want {
		if have[k] != v {
			return false
		}
	}
	return true
}
