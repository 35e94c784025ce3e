package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hiveboard/taskboard-backend/internal/core/domain"
)

// RESTClient is the HTTP implementation of MutationAPI against the
// server's /api/v1 surface.
type RESTClient struct {
	baseURL string
	token   string
	http    *http.Client
}

var _ MutationAPI = (*RESTClient)(nil)

// NewRESTClient creates a mutation API client. baseURL is the server
// root, e.g. "https://boards.example.com".
func NewRESTClient(baseURL, token string, httpClient *http.Client) *RESTClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &RESTClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    httpClient,
	}
}

// apiError is a non-2xx response from the mutation API.
type apiError struct {
	StatusCode int
	Message    string
	Code       string
}

func (e *apiError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("api error %d", e.StatusCode)
}

func (c *RESTClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var payload struct {
			Error string `json:"error"`
			Code  string `json:"code"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&payload)
		return &apiError{StatusCode: resp.StatusCode, Message: payload.Error, Code: payload.Code}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// CreateTask creates a task and returns the server-assigned entity.
func (c *RESTClient) CreateTask(ctx context.Context, params CreateTaskParams) (*domain.TaskSnapshot, error) {
	body := map[string]interface{}{
		"listId":      params.GroupID,
		"title":       params.Title,
		"description": params.Description,
		"position":    params.Position,
	}
	if params.AssigneeID != nil {
		body["assigneeId"] = *params.AssigneeID
	}

	var created domain.TaskSnapshot
	if err := c.do(ctx, http.MethodPost, "/api/v1/tasks", body, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdateTask applies a partial update to a task.
func (c *RESTClient) UpdateTask(ctx context.Context, taskID string, params UpdateTaskParams) (*domain.TaskSnapshot, error) {
	body := map[string]interface{}{}
	if params.Title != nil {
		body["title"] = *params.Title
	}
	if params.Description != nil {
		body["description"] = *params.Description
	}
	if params.Completed != nil {
		body["completed"] = *params.Completed
	}
	if params.ClearAssignee {
		body["clearAssignee"] = true
	} else if params.AssigneeID != nil {
		body["assigneeId"] = *params.AssigneeID
	}

	var updated domain.TaskSnapshot
	if err := c.do(ctx, http.MethodPatch, "/api/v1/tasks/"+taskID, body, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// MoveTask relocates a task to another group.
func (c *RESTClient) MoveTask(ctx context.Context, taskID, groupID string, position int32) (*domain.TaskSnapshot, error) {
	body := map[string]interface{}{
		"listId":   groupID,
		"position": position,
	}

	var moved domain.TaskSnapshot
	if err := c.do(ctx, http.MethodPatch, "/api/v1/tasks/"+taskID+"/move", body, &moved); err != nil {
		return nil, err
	}
	return &moved, nil
}

// DeleteTask deletes a task.
func (c *RESTClient) DeleteTask(ctx context.Context, taskID string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/tasks/"+taskID, nil, nil)
}

// FetchBoard fetches the full authoritative board state for a project.
func (c *RESTClient) FetchBoard(ctx context.Context, projectID string) (*BoardState, error) {
	var board BoardState
	if err := c.do(ctx, http.MethodGet, "/api/v1/projects/"+projectID+"/board", nil, &board); err != nil {
		return nil, err
	}
	return &board, nil
}
