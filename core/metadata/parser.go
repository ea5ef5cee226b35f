// Package metadata turns free-form media titles into structured track
// metadata.
package metadata

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"Rippers/logger"
)

// Guess is a best-effort reading of a title. Any field may be empty.
type Guess struct {
	Artist    string `json:"artist"`
	Title     string `json:"title"`
	Album     string `json:"album"`
	Summary   string `json:"summary"`
	LyricsURL string `json:"lyrics_url"`
}

// TitleParser maps text to a Guess. ok is false when nothing usable came back.
type TitleParser interface {
	Parse(ctx context.Context, text string) (g *Guess, ok bool)
}

const prompt = "Parse this video title and extract the artist name, song title, and album name (if mentioned). " +
	"Also write a one sentence summary of the song and, if you know one, a URL to its lyrics. " +
	"Return ONLY a JSON object with keys 'artist', 'title', 'album', 'summary' and 'lyrics_url'. " +
	"Use an empty string for anything unknown. Video title: "

// HTTPTitleParser calls an OpenAI-compatible chat completions endpoint.
type HTTPTitleParser struct {
	URL    string
	APIKey string
	Model  string
	Client *http.Client
}

func NewHTTPTitleParser(url, apiKey, model string) *HTTPTitleParser {
	return &HTTPTitleParser{
		URL:    url,
		APIKey: apiKey,
		Model:  model,
		Client: &http.Client{Timeout: 30 * time.Second},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Parse returns ok=false on any transport, status or decoding problem.
func (p *HTTPTitleParser) Parse(ctx context.Context, text string) (*Guess, bool) {
	text = strings.TrimSpace(text)
	if text == "" || p.APIKey == "" || p.URL == "" {
		return nil, false
	}
	g, err := p.parse(ctx, text)
	if err != nil {
		logger.Warn("Title parse failed", logger.String("title", text), logger.ErrorField(err))
		return nil, false
	}
	return g, true
}

func (p *HTTPTitleParser) parse(ctx context.Context, text string) (*Guess, error) {
	body, err := json.Marshal(chatRequest{
		Model:       p.Model,
		Messages:    []chatMessage{{Role: "user", Content: prompt + text}},
		Temperature: 0.3,
		MaxTokens:   300,
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.URL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.APIKey)

	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("title parser returned status %d", resp.StatusCode)
	}

	var cr chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return nil, fmt.Errorf("failed to decode title parser response: %w", err)
	}
	if len(cr.Choices) == 0 {
		return nil, fmt.Errorf("title parser returned no choices")
	}
	return DecodeGuess(cr.Choices[0].Message.Content)
}

var jsonObject = regexp.MustCompile(`\{[^}]+\}`)

// DecodeGuess reads the first JSON object in content, tolerating markdown
// fences and chatter around it.
func DecodeGuess(content string) (*Guess, error) {
	raw := content
	if m := jsonObject.FindString(content); m != "" {
		raw = m
	}
	var g Guess
	if err := json.Unmarshal([]byte(raw), &g); err != nil {
		return nil, fmt.Errorf("failed to decode guess: %w", err)
	}
	g.Artist = strings.TrimSpace(g.Artist)
	g.Title = strings.TrimSpace(g.Title)
	g.Album = strings.TrimSpace(g.Album)
	g.Summary = strings.TrimSpace(g.Summary)
	g.LyricsURL = strings.TrimSpace(g.LyricsURL)
	if g.Artist == "" && g.Title == "" {
		return nil, fmt.Errorf("guess has neither artist nor title")
	}
	return &g, nil
}

// SplitTitle is the offline fallback: "Artist - Title (Official Video)".
func SplitTitle(text string) (*Guess, bool) {
	artist, title, ok := strings.Cut(text, " - ")
	if !ok {
		return nil, false
	}
	title = noisePattern.ReplaceAllString(title, "")
	artist, title = strings.TrimSpace(artist), strings.TrimSpace(title)
	if artist == "" || title == "" {
		return nil, false
	}
	return &Guess{Artist: artist, Title: title}, true
}

var noisePattern = regexp.MustCompile(`(?i)\s*[\(\[](official|lyric|audio|video|hd|hq|music video|visualizer)[^\)\]]*[\)\]]`)

// Chain tries each parser in turn.
type Chain []TitleParser

func (c Chain) Parse(ctx context.Context, text string) (*Guess, bool) {
	for _, p := range c {
		if p == nil {
			continue
		}
		if g, ok := p.Parse(ctx, text); ok {
			return g, true
		}
	}
	return nil, false
}

// SplitParser adapts SplitTitle to TitleParser.
type SplitParser struct{}

func (SplitParser) Parse(_ context.Context, text string) (*Guess, bool) {
	return SplitTitle(text)
}
