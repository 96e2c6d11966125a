package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/bytedance/sonic"

	"kanban-api/domain"
)

const moveResponseMaxSize = 16 * 1024

// API talks to the board server over HTTP. It implements Mover.
type API struct {
	BaseURL string
	Bearer  string
	HTTP    *http.Client
}

// NewAPI creates an API client for the given server.
func NewAPI(baseURL, bearer string) *API {
	return &API{BaseURL: baseURL, Bearer: bearer, HTTP: &http.Client{}}
}

type moveResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// MoveTask submits a task placement and returns an error when the server
// rejects it.
func (a *API) MoveTask(ctx context.Context, req domain.MoveRequest) error {
	return a.postMove(ctx, "/api/tasks/move", req)
}

// ReorderColumns submits a column placement.
func (a *API) ReorderColumns(ctx context.Context, req domain.ColumnReorderRequest) error {
	return a.postMove(ctx, "/api/columns/reorder", req)
}

// FetchBoard retrieves the full confirmed board, used for the initial Load
// and for recovery when the local mirror goes stale.
func (a *API) FetchBoard(ctx context.Context, projectID string) (domain.BoardSnapshot, error) {
	var snap domain.BoardSnapshot
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.BaseURL+"/api/projects/"+projectID+"/board", nil)
	if err != nil {
		return snap, err
	}
	a.setAuth(req)
	resp, err := a.HTTP.Do(req)
	if err != nil {
		return snap, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return snap, fmt.Errorf("fetch board: unexpected status %d", resp.StatusCode)
	}
	if err := sonic.ConfigStd.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return snap, err
	}
	return snap, nil
}

func (a *API) postMove(ctx context.Context, path string, body any) error {
	payload, err := sonic.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	a.setAuth(req)
	resp, err := a.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, moveResponseMaxSize))
	if err != nil {
		return err
	}
	var result moveResult
	if err := sonic.Unmarshal(data, &result); err != nil {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if !result.Success {
		if result.Error != "" {
			return fmt.Errorf("server rejected move: %s", result.Error)
		}
		return fmt.Errorf("server rejected move: status %d", resp.StatusCode)
	}
	return nil
}

func (a *API) setAuth(req *http.Request) {
	if a.Bearer != "" {
		req.Header.Set("Authorization", "Bearer "+a.Bearer)
	}
}
