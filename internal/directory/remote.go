package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gameshelf/apiserver/config"
	"github.com/gameshelf/apiserver/types"
)

const remoteTimeout = 10 * time.Second

// RemoteDirectory talks to a hosted identity provider over HTTP. The
// provider owns credentials; this process only mirrors profile metadata.
type RemoteDirectory struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewRemoteDirectory builds the HTTP-backed directory from config.
func NewRemoteDirectory(cfg config.DirectoryConfig) (*RemoteDirectory, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("remote directory: base url is required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("remote directory: api key is required")
	}
	return &RemoteDirectory{
		baseURL: base,
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: remoteTimeout},
	}, nil
}

// remoteUser is the provider's wire shape for a record.
type remoteUser struct {
	ID          int    `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	AvatarKey   string `json:"avatar_key"`
	Banned      bool   `json:"banned"`
}

func (u remoteUser) toUser() types.User {
	return types.User{
		ID:          u.ID,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		AvatarKey:   u.AvatarKey,
		IsBanned:    u.Banned,
	}
}

func (d *RemoteDirectory) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, d.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+d.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode == http.StatusConflict:
		return ErrUsernameTaken
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		if strings.HasSuffix(path, "/verify") {
			return ErrInvalidCredentials
		}
		return fmt.Errorf("%w: provider rejected api key (status %d)", ErrUnavailable, resp.StatusCode)
	case resp.StatusCode >= 400:
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
		}
	}
	return nil
}

func (d *RemoteDirectory) LookupUser(ctx context.Context, id int) (types.User, error) {
	var record remoteUser
	if err := d.do(ctx, http.MethodGet, "/users/"+strconv.Itoa(id), nil, &record); err != nil {
		return types.User{}, err
	}
	return record.toUser(), nil
}

func (d *RemoteDirectory) CreateUser(ctx context.Context, username, displayName, password string) (types.User, error) {
	payload := map[string]string{
		"username":     username,
		"display_name": displayName,
		"password":     password,
	}
	var record remoteUser
	if err := d.do(ctx, http.MethodPost, "/users", payload, &record); err != nil {
		return types.User{}, err
	}
	return record.toUser(), nil
}

func (d *RemoteDirectory) VerifyCredentials(ctx context.Context, username, password string) (types.User, error) {
	payload := map[string]string{"username": username, "password": password}
	var record remoteUser
	if err := d.do(ctx, http.MethodPost, "/users/verify", payload, &record); err != nil {
		return types.User{}, err
	}
	return record.toUser(), nil
}

func (d *RemoteDirectory) UpdateUserMetadata(ctx context.Context, id int, patch MetadataPatch) error {
	return d.do(ctx, http.MethodPatch, "/users/"+strconv.Itoa(id), patch, nil)
}

func (d *RemoteDirectory) DeleteUser(ctx context.Context, id int) error {
	err := d.do(ctx, http.MethodDelete, "/users/"+strconv.Itoa(id), nil, nil)
	if err == ErrNotFound {
		// already gone; deletion is idempotent for the reconciler
		return nil
	}
	return err
}

func (d *RemoteDirectory) ListUsers(ctx context.Context, offset, limit int) ([]types.User, error) {
	q := url.Values{}
	q.Set("offset", strconv.Itoa(offset))
	q.Set("limit", strconv.Itoa(limit))

	var records []remoteUser
	if err := d.do(ctx, http.MethodGet, "/users?"+q.Encode(), nil, &records); err != nil {
		return nil, err
	}
	users := make([]types.User, 0, len(records))
	for _, record := range records {
		users = append(users, record.toUser())
	}
	return users, nil
}
