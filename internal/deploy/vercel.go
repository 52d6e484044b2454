package deploy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/nichedotsol/agentex/internal/model"
)

// vercelError is the error envelope Vercel's API returns.
type vercelError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// deployVercel creates the project (treating "already exists" as success)
// and submits all generated files as a single production deployment. Caller
// environment variables ride along on the deployment payload.
func (d *Dispatcher) deployVercel(ctx context.Context, projectName string, files []model.GeneratedFile, token string, env map[string]string) (string, error) {
	if err := d.vercelEnsureProject(ctx, projectName, token); err != nil {
		return "", err
	}
	return d.vercelCreateDeployment(ctx, projectName, files, token, env)
}

func (d *Dispatcher) vercelEnsureProject(ctx context.Context, projectName, token string) error {
	body, _ := json.Marshal(map[string]any{
		"name":      projectName,
		"framework": "nextjs",
	})
	resp, err := d.vercelPost(ctx, "/v9/projects", token, body)
	if err != nil {
		return fmt.Errorf("vercel create project: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 300 {
		return nil
	}
	var ve vercelError
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	_ = json.Unmarshal(data, &ve)
	// An existing project is fine; the deployment targets it by name.
	if ve.Error.Code == "project_already_exists" {
		return nil
	}
	if ve.Error.Message != "" {
		return fmt.Errorf("vercel create project: %s", ve.Error.Message)
	}
	return fmt.Errorf("vercel create project: status %d", resp.StatusCode)
}

func (d *Dispatcher) vercelCreateDeployment(ctx context.Context, projectName string, files []model.GeneratedFile, token string, env map[string]string) (string, error) {
	fileMap := make(map[string]string, len(files))
	for _, f := range files {
		fileMap[f.Path] = f.Content
	}
	payload := map[string]any{
		"name":  projectName,
		"files": fileMap,
		"projectSettings": map[string]string{
			"framework":       "nextjs",
			"buildCommand":    "npm run build",
			"outputDirectory": ".next",
			"installCommand":  "npm install",
		},
		"target": "production",
	}
	if len(env) > 0 {
		payload["env"] = env
		payload["build"] = map[string]any{"env": env}
	}
	body, _ := json.Marshal(payload)
	resp, err := d.vercelPost(ctx, "/v13/deployments", token, body)
	if err != nil {
		return "", fmt.Errorf("vercel create deployment: %w", err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode >= 300 {
		var ve vercelError
		_ = json.Unmarshal(data, &ve)
		if ve.Error.Message != "" {
			return "", fmt.Errorf("vercel create deployment: %s", ve.Error.Message)
		}
		return "", fmt.Errorf("vercel create deployment: status %d", resp.StatusCode)
	}

	var deployment struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(data, &deployment); err != nil {
		return "", fmt.Errorf("vercel decode deployment: %w", err)
	}
	if deployment.URL == "" {
		return fmt.Sprintf("https://%s.vercel.app", projectName), nil
	}
	return "https://" + deployment.URL, nil
}

func (d *Dispatcher) vercelPost(ctx context.Context, path, token string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.opts.VercelBaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	return d.client.Do(req)
}
