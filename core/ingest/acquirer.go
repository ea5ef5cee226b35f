package ingest

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"sort"
	"strings"
	"time"

	"Rippers/core/library"
	"Rippers/core/metadata"
	"Rippers/logger"
	"Rippers/model"
)

// DateLayout is how activity entries print their timestamp.
const DateLayout = "2006-01-02 15:04:05"

// ActivityRecorder receives one entry per acquisition attempt.
type ActivityRecorder interface {
	Add(ctx context.Context, entry *model.ActivityEntry) error
}

// TitleSource names a URL when the fetcher cannot.
type TitleSource interface {
	Title(ctx context.Context, url string) (string, error)
}

// Acquirer downloads a URL into the track directory and records what it got.
type Acquirer struct {
	store    *library.Store
	fetcher  Fetcher
	parser   metadata.TitleParser
	pages    TitleSource
	tags     library.TagWriter
	activity ActivityRecorder
	now      func() time.Time
}

// Deps are the optional collaborators of an Acquirer; nil disables each.
type Deps struct {
	Parser   metadata.TitleParser
	Pages    TitleSource
	Tags     library.TagWriter
	Activity ActivityRecorder
}

func NewAcquirer(store *library.Store, fetcher Fetcher, deps Deps) *Acquirer {
	return &Acquirer{
		store:    store,
		fetcher:  fetcher,
		parser:   deps.Parser,
		pages:    deps.Pages,
		tags:     deps.Tags,
		activity: deps.Activity,
		now:      time.Now,
	}
}

// Result describes one successful acquisition.
type Result struct {
	Track    string
	Filesize int64
	Sidecar  *model.Sidecar
}

// ValidateURL accepts absolute http(s) URLs only.
func ValidateURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	u, err := url.ParseRequestURI(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("%w: please enter a valid URL", model.ErrInvalidArgument)
	}
	return raw, nil
}

// Acquire fetches rawURL. Title parsing and tag writing are best effort; the
// download itself and locating the new file are not.
func (a *Acquirer) Acquire(ctx context.Context, rawURL string) (*Result, error) {
	u, err := ValidateURL(rawURL)
	if err != nil {
		return nil, err
	}
	logger.Info("Acquiring", logger.String("url", u))

	videoTitle := a.title(ctx, u)

	before, err := a.snapshot()
	if err != nil {
		return nil, err
	}
	if err := a.fetcher.Extract(ctx, u, a.store.Layout().TrackDir); err != nil {
		a.record(ctx, u, "", 0, model.ActivityStatusFailed)
		return nil, fmt.Errorf("conversion failed: %w", err)
	}
	name, err := a.newest(before)
	if err != nil {
		a.record(ctx, u, "", 0, model.ActivityStatusFailed)
		return nil, err
	}

	sc := &model.Sidecar{URL: u, Timestamp: a.now().Unix(), VideoTitle: videoTitle}
	var guess *metadata.Guess
	if videoTitle != "" && a.parser != nil {
		if g, ok := a.parser.Parse(ctx, videoTitle); ok {
			guess = g
			sc.Artist, sc.Title, sc.Album = g.Artist, g.Title, g.Album
			sc.Summary, sc.LyricsURL = g.Summary, g.LyricsURL
		}
	}
	if err := a.writeSidecar(ctx, name, sc); err != nil {
		return nil, err
	}
	if guess != nil && a.tags != nil {
		if err := a.tags.WriteTags(ctx, name); err != nil {
			logger.Warn("Tag write failed", logger.Track(name), logger.ErrorField(err))
		}
	}

	var size int64
	if info, err := os.Stat(a.store.Layout().AudioPath(name)); err == nil {
		size = info.Size()
	}
	a.record(ctx, u, name, size, model.ActivityStatusSuccess)

	logger.Info("Acquired track",
		logger.String("url", u),
		logger.Track(name),
		logger.Int64("size", size),
		logger.Bool("parsed", guess != nil))
	return &Result{Track: name, Filesize: size, Sidecar: sc}, nil
}

func (a *Acquirer) title(ctx context.Context, u string) string {
	title, err := a.fetcher.Title(ctx, u)
	if err == nil && title != "" {
		return title
	}
	if err != nil {
		logger.Debug("Title lookup failed", logger.String("url", u), logger.ErrorField(err))
	}
	if a.pages == nil {
		return ""
	}
	title, err = a.pages.Title(ctx, u)
	if err != nil {
		logger.Debug("Page title lookup failed", logger.String("url", u), logger.ErrorField(err))
		return ""
	}
	return title
}

func (a *Acquirer) snapshot() (map[string]bool, error) {
	names, err := a.store.Names()
	if err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set, nil
}

// newest returns the most recently modified track that was not in before.
func (a *Acquirer) newest(before map[string]bool) (string, error) {
	names, err := a.store.Names()
	if err != nil {
		return "", err
	}
	var fresh []string
	for _, n := range names {
		if !before[n] {
			fresh = append(fresh, n)
		}
	}
	if len(fresh) == 0 {
		return "", fmt.Errorf("file was converted but could not be found")
	}
	layout := a.store.Layout()
	mtime := func(n string) time.Time {
		info, err := os.Stat(layout.AudioPath(n))
		if err != nil {
			return time.Time{}
		}
		return info.ModTime()
	}
	sort.SliceStable(fresh, func(i, j int) bool {
		ti, tj := mtime(fresh[i]), mtime(fresh[j])
		if ti.Equal(tj) {
			return fresh[i] < fresh[j]
		}
		return ti.After(tj)
	})
	return fresh[0], nil
}

func (a *Acquirer) writeSidecar(ctx context.Context, name string, sc *model.Sidecar) error {
	unlock, err := a.store.Locker().Lock(ctx, name)
	if err != nil {
		return err
	}
	defer unlock()
	return a.store.Layout().WriteSidecar(name, sc)
}

func (a *Acquirer) record(ctx context.Context, u, name string, size int64, status string) {
	if a.activity == nil {
		return
	}
	now := a.now()
	entry := &model.ActivityEntry{
		Timestamp: now.Unix(),
		Date:      now.Format(DateLayout),
		URL:       u,
		Filename:  name,
		Filesize:  size,
		Status:    status,
	}
	if err := a.activity.Add(ctx, entry); err != nil {
		logger.Warn("Failed to record activity", logger.String("url", u), logger.ErrorField(err))
	}
}
