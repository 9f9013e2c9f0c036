package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// FS is a REST handle on an environment's filesystem. It is handed to the
// UI untouched; the session binding never looks inside it.
type FS struct {
	baseURL string
	env     string
	token   string
	client  *http.Client
}

// NewFS creates a handle for env served under baseURL (e.g. "https://api.usedevbook.com").
func NewFS(baseURL, env, token string, client *http.Client) *FS {
	if client == nil {
		client = http.DefaultClient
	}
	return &FS{
		baseURL: baseURL,
		env:     env,
		token:   token,
		client:  client,
	}
}

// List fetches GET /envs/{env}/fs/list?path=dir.
func (f *FS) List(ctx context.Context, dir string) ([]FileEntry, error) {
	var out []FileEntry
	if err := f.get(ctx, "/list", dir, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ReadFile fetches GET /envs/{env}/fs/file?path=name.
func (f *FS) ReadFile(ctx context.Context, name string) ([]byte, error) {
	req, err := f.newRequest(ctx, http.MethodGet, "/file", name, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("read %s: %d %s", name, resp.StatusCode, string(body))
	}
	return io.ReadAll(resp.Body)
}

// WriteFile sends PUT /envs/{env}/fs/file?path=name with data as the body.
func (f *FS) WriteFile(ctx context.Context, name string, data []byte) error {
	req, err := f.newRequest(ctx, http.MethodPut, "/file", name, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	resp, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("write %s: %d %s", name, resp.StatusCode, string(body))
	}
	return nil
}

func (f *FS) get(ctx context.Context, op, path string, out interface{}) error {
	req, err := f.newRequest(ctx, http.MethodGet, op, path, nil)
	if err != nil {
		return err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("GET %s %s: %d %s", op, path, resp.StatusCode, string(body))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (f *FS) newRequest(ctx context.Context, method, op, path string, body io.Reader) (*http.Request, error) {
	u := f.baseURL + "/envs/" + url.PathEscape(f.env) + "/fs" + op + "?path=" + url.QueryEscape(path)
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, err
	}
	if f.token != "" {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}
	return req, nil
}
