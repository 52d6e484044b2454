package deploy

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/nichedotsol/agentex/internal/model"
)

// deployGitHub creates a repository under the token's account and pushes
// every generated file through the contents API.
func (d *Dispatcher) deployGitHub(ctx context.Context, repoName string, files []model.GeneratedFile, token string) (string, error) {
	owner, repoURL, err := d.githubCreateRepo(ctx, repoName, token)
	if err != nil {
		return "", err
	}
	for _, f := range files {
		if err := d.githubPutFile(ctx, owner, repoName, f, token); err != nil {
			return "", err
		}
	}
	return repoURL, nil
}

func (d *Dispatcher) githubCreateRepo(ctx context.Context, repoName, token string) (owner, repoURL string, err error) {
	body, _ := json.Marshal(map[string]any{
		"name":        repoName,
		"private":     true,
		"description": "Generated agent project",
		"auto_init":   false,
	})
	resp, err := d.githubDo(ctx, http.MethodPost, "/user/repos", token, body)
	if err != nil {
		return "", "", fmt.Errorf("github create repo: %w", err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode >= 300 {
		return "", "", fmt.Errorf("github create repo: status %d: %s", resp.StatusCode, githubMessage(data))
	}

	var repo struct {
		HTMLURL string `json:"html_url"`
		Owner   struct {
			Login string `json:"login"`
		} `json:"owner"`
	}
	if err := json.Unmarshal(data, &repo); err != nil {
		return "", "", fmt.Errorf("github decode repo: %w", err)
	}
	if repo.Owner.Login == "" {
		return "", "", fmt.Errorf("github create repo: response missing owner")
	}
	return repo.Owner.Login, repo.HTMLURL, nil
}

func (d *Dispatcher) githubPutFile(ctx context.Context, owner, repo string, f model.GeneratedFile, token string) error {
	body, _ := json.Marshal(map[string]any{
		"message": "Add " + f.Path,
		"content": base64.StdEncoding.EncodeToString([]byte(f.Content)),
		"branch":  "main",
	})
	// Escape per segment; the contents API keeps slashes literal.
	segments := strings.Split(f.Path, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	path := fmt.Sprintf("/repos/%s/%s/contents/%s", owner, repo, strings.Join(segments, "/"))
	resp, err := d.githubDo(ctx, http.MethodPut, path, token, body)
	if err != nil {
		return fmt.Errorf("github push %s: %w", f.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return fmt.Errorf("github push %s: status %d: %s", f.Path, resp.StatusCode, githubMessage(data))
	}
	return nil
}

func (d *Dispatcher) githubDo(ctx context.Context, method, path, token string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, d.opts.GitHubBaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Content-Type", "application/json")
	return d.client.Do(req)
}

func githubMessage(data []byte) string {
	var e struct {
		Message string `json:"message"`
	}
	_ = json.Unmarshal(data, &e)
	if e.Message == "" {
		return "unknown error"
	}
	return e.Message
}
