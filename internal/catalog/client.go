// Package catalog proxies the external game-catalog API. Queries use the
// catalog's Apicalypse body format with a Twitch client-credentials token.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gameshelf/apiserver/config"
	"github.com/gameshelf/apiserver/types"
)

// ErrGameNotFound means the catalog has no entry for the requested id.
var ErrGameNotFound = errors.New("catalog: game not found")

// ErrNotConfigured means no catalog credentials were provided.
var ErrNotConfigured = errors.New("catalog: not configured")

// Unavailable is the Source installed when the catalog is not configured.
// Mirror rows still resolve; live lookups fail with ErrNotConfigured.
type Unavailable struct{}

func (Unavailable) SearchGames(ctx context.Context, query string, limit int) ([]types.Game, error) {
	return nil, ErrNotConfigured
}

func (Unavailable) GetGame(ctx context.Context, id int) (types.Game, error) {
	return types.Game{}, ErrNotConfigured
}

const (
	requestTimeout = 10 * time.Second
	// refresh the token slightly before the provider expires it
	tokenSlack = 2 * time.Minute
)

// Source is the lookup surface shared by the raw client and the cached
// wrapper.
type Source interface {
	SearchGames(ctx context.Context, query string, limit int) ([]types.Game, error)
	GetGame(ctx context.Context, id int) (types.Game, error)
}

// Client is the raw HTTP client for the catalog.
type Client struct {
	baseURL      string
	tokenURL     string
	clientID     string
	clientSecret string
	http         *http.Client

	mu       sync.Mutex
	token    string
	tokenExp time.Time
}

// NewClient constructs a catalog client from config.
func NewClient(cfg config.CatalogConfig) (*Client, error) {
	if strings.TrimSpace(cfg.ClientID) == "" || strings.TrimSpace(cfg.ClientSecret) == "" {
		return nil, errors.New("catalog client id and secret are required")
	}
	return &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		tokenURL:     cfg.TokenURL,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		http:         &http.Client{Timeout: requestTimeout},
	}, nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

func (c *Client) bearerToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.tokenExp) {
		return c.token, nil
	}

	form := url.Values{}
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)
	form.Set("grant_type", "client_credentials")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("catalog token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("catalog token request: status %d", resp.StatusCode)
	}

	var token tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return "", fmt.Errorf("catalog token decode: %w", err)
	}

	c.token = token.AccessToken
	c.tokenExp = time.Now().Add(time.Duration(token.ExpiresIn)*time.Second - tokenSlack)
	return c.token, nil
}

// wire shape of a catalog game row
type catalogGame struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Cover struct {
		URL string `json:"url"`
	} `json:"cover"`
}

func (g catalogGame) toGame() types.Game {
	return types.Game{
		ID:       g.ID,
		Name:     g.Name,
		CoverURL: g.Cover.URL,
		CachedAt: time.Now(),
	}
}

func (c *Client) query(ctx context.Context, endpoint, body string) ([]catalogGame, error) {
	token, err := c.bearerToken(ctx)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+endpoint, strings.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Client-ID", c.clientID)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog query: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		// token may have been revoked early; force a refresh on next call
		c.mu.Lock()
		c.token = ""
		c.mu.Unlock()
		return nil, fmt.Errorf("catalog query: unauthorized")
	}
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, fmt.Errorf("catalog query: status %d: %s", resp.StatusCode, snippet)
	}

	var games []catalogGame
	if err := json.NewDecoder(resp.Body).Decode(&games); err != nil {
		return nil, fmt.Errorf("catalog decode: %w", err)
	}
	return games, nil
}

// SearchGames runs a full-text search against the catalog.
func (c *Client) SearchGames(ctx context.Context, query string, limit int) ([]types.Game, error) {
	if limit < 1 || limit > 50 {
		limit = 10
	}
	query = strings.ReplaceAll(query, `"`, ``)

	body := fmt.Sprintf(`search "%s"; fields name,cover.url; limit %d;`, query, limit)
	rows, err := c.query(ctx, "games", body)
	if err != nil {
		return nil, err
	}

	games := make([]types.Game, 0, len(rows))
	for _, row := range rows {
		games = append(games, row.toGame())
	}
	return games, nil
}

// GetGame fetches a single catalog entry by id.
func (c *Client) GetGame(ctx context.Context, id int) (types.Game, error) {
	body := fmt.Sprintf(`fields name,cover.url; where id = %d;`, id)
	rows, err := c.query(ctx, "games", body)
	if err != nil {
		return types.Game{}, err
	}
	if len(rows) == 0 {
		return types.Game{}, ErrGameNotFound
	}
	return rows[0].toGame(), nil
}
