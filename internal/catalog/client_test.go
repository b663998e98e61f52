package catalog

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gameshelf/apiserver/config"
)

// newTestCatalog spins up fake token and query endpoints and returns a
// client pointed at them.
func newTestCatalog(t *testing.T, games string) (*Client, *int, *[]string) {
	t.Helper()

	tokenCalls := 0
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenCalls++
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse token form: %v", err)
		}
		if r.PostForm.Get("grant_type") != "client_credentials" {
			t.Errorf("unexpected grant type %q", r.PostForm.Get("grant_type"))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok-123","expires_in":3600}`))
	}))
	t.Cleanup(tokenServer.Close)

	var bodies []string
	apiServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok-123" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.Header.Get("Client-ID") != "cid" {
			t.Errorf("missing Client-ID header")
		}
		raw, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(raw))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(games))
	}))
	t.Cleanup(apiServer.Close)

	client, err := NewClient(config.CatalogConfig{
		BaseURL:      apiServer.URL,
		TokenURL:     tokenServer.URL,
		ClientID:     "cid",
		ClientSecret: "secret",
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client, &tokenCalls, &bodies
}

func TestSearchGamesQueryShape(t *testing.T) {
	client, _, bodies := newTestCatalog(t, `[{"id":1,"name":"Hades","cover":{"url":"//img/hades.jpg"}}]`)

	games, err := client.SearchGames(context.Background(), `roguelike "deck"`, 5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(games) != 1 || games[0].Name != "Hades" {
		t.Fatalf("unexpected games %+v", games)
	}
	if games[0].CoverURL != "//img/hades.jpg" {
		t.Fatalf("unexpected cover %q", games[0].CoverURL)
	}

	body := (*bodies)[0]
	if !strings.Contains(body, `search "roguelike deck";`) {
		t.Fatalf("quotes not stripped from query: %q", body)
	}
	if !strings.Contains(body, "limit 5;") {
		t.Fatalf("limit missing from query: %q", body)
	}
}

func TestSearchGamesClampsLimit(t *testing.T) {
	client, _, bodies := newTestCatalog(t, `[]`)

	if _, err := client.SearchGames(context.Background(), "zelda", 500); err != nil {
		t.Fatalf("search: %v", err)
	}
	if !strings.Contains((*bodies)[0], "limit 10;") {
		t.Fatalf("out-of-range limit not defaulted: %q", (*bodies)[0])
	}
}

func TestGetGameNotFound(t *testing.T) {
	client, _, _ := newTestCatalog(t, `[]`)

	_, err := client.GetGame(context.Background(), 42)
	if !errors.Is(err, ErrGameNotFound) {
		t.Fatalf("expected ErrGameNotFound, got %v", err)
	}
}

func TestTokenIsCachedAcrossCalls(t *testing.T) {
	client, tokenCalls, _ := newTestCatalog(t, `[]`)

	ctx := context.Background()
	if _, err := client.SearchGames(ctx, "first", 5); err != nil {
		t.Fatalf("search: %v", err)
	}
	if _, err := client.SearchGames(ctx, "second", 5); err != nil {
		t.Fatalf("search: %v", err)
	}
	if *tokenCalls != 1 {
		t.Fatalf("expected one token fetch, got %d", *tokenCalls)
	}
}

func TestUnavailableSource(t *testing.T) {
	var source Source = Unavailable{}

	if _, err := source.SearchGames(context.Background(), "any", 5); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	if _, err := source.GetGame(context.Background(), 1); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}
