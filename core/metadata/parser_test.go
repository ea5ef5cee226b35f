package metadata

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chatServer(t *testing.T, status int, content string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o-mini", req.Model)
		require.Len(t, req.Messages, 1)
		assert.Contains(t, req.Messages[0].Content, "Queen - Don't Stop Me Now (Official Video)")

		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": content}},
			},
		})
	}))
}

func TestHTTPTitleParser(t *testing.T) {
	srv := chatServer(t, http.StatusOK, "```json\n{\"artist\": \"Queen\", \"title\": \"Don't Stop Me Now\", \"album\": \"Jazz\", \"summary\": \"\", \"lyrics_url\": \"\"}\n```")
	defer srv.Close()

	p := NewHTTPTitleParser(srv.URL, "sk-test", "gpt-4o-mini")
	g, ok := p.Parse(context.Background(), "Queen - Don't Stop Me Now (Official Video)")
	require.True(t, ok)
	assert.Equal(t, &Guess{Artist: "Queen", Title: "Don't Stop Me Now", Album: "Jazz"}, g)
}

func TestHTTPTitleParserFailuresYieldNone(t *testing.T) {
	srv := chatServer(t, http.StatusTooManyRequests, "{}")
	defer srv.Close()
	p := NewHTTPTitleParser(srv.URL, "sk-test", "gpt-4o-mini")
	_, ok := p.Parse(context.Background(), "Queen - Don't Stop Me Now (Official Video)")
	assert.False(t, ok)

	srv2 := chatServer(t, http.StatusOK, "I could not tell, sorry.")
	defer srv2.Close()
	p = NewHTTPTitleParser(srv2.URL, "sk-test", "gpt-4o-mini")
	_, ok = p.Parse(context.Background(), "Queen - Don't Stop Me Now (Official Video)")
	assert.False(t, ok)

	p = NewHTTPTitleParser(srv.URL, "", "gpt-4o-mini")
	_, ok = p.Parse(context.Background(), "anything")
	assert.False(t, ok)
}

func TestDecodeGuess(t *testing.T) {
	g, err := DecodeGuess(`Sure! {"artist":" Blur ","title":"Song 2"} Enjoy.`)
	require.NoError(t, err)
	assert.Equal(t, "Blur", g.Artist)
	assert.Equal(t, "Song 2", g.Title)

	_, err = DecodeGuess(`{"artist":"","title":""}`)
	assert.Error(t, err)
}

func TestSplitTitleAndChain(t *testing.T) {
	g, ok := SplitTitle("Blur - Song 2 (Official Music Video)")
	require.True(t, ok)
	assert.Equal(t, "Blur", g.Artist)
	assert.Equal(t, "Song 2", g.Title)

	_, ok = SplitTitle("just a title")
	assert.False(t, ok)

	chain := Chain{NewHTTPTitleParser("", "", ""), SplitParser{}}
	g, ok = chain.Parse(context.Background(), "Moby - Porcelain [HD]")
	require.True(t, ok)
	assert.Equal(t, "Porcelain", g.Title)
}

func TestPageTitleFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/og":
			w.Write([]byte(`<html><head><title>Site</title><meta property="og:title" content="Queen - Innuendo"></head></html>`))
		case "/plain":
			w.Write([]byte(`<html><head><title> Plain Title </title></head></html>`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := NewPageTitleFetcher()
	title, err := f.Title(context.Background(), srv.URL+"/og")
	require.NoError(t, err)
	assert.Equal(t, "Queen - Innuendo", title)

	title, err = f.Title(context.Background(), srv.URL+"/plain")
	require.NoError(t, err)
	assert.Equal(t, "Plain Title", title)

	_, err = f.Title(context.Background(), srv.URL+"/missing")
	assert.Error(t, err)
}
