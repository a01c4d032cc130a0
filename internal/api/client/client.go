package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/neurobench/neurobench/internal/benchmark"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// Health checks if the daemon is healthy
func (c *Client) Health() error {
	resp, err := c.get("/api/v1/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("daemon unhealthy: status %d", resp.StatusCode)
	}

	return nil
}

// GetStatus returns the daemon status
func (c *Client) GetStatus() (map[string]interface{}, error) {
	resp, err := c.get("/api/v1/status")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var status map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, err
	}

	return status, nil
}

// Shutdown requests daemon shutdown
func (c *Client) Shutdown() error {
	resp, err := c.post("/api/v1/admin/shutdown", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("shutdown failed: status %d", resp.StatusCode)
	}

	return nil
}

// ListDatasets returns all registered datasets
func (c *Client) ListDatasets() ([]map[string]interface{}, error) {
	resp, err := c.get("/api/v1/datasets")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result struct {
		Datasets []map[string]interface{} `json:"datasets"`
		Count    int                      `json:"count"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}

	return result.Datasets, nil
}

// GetDataset returns details about a specific dataset
func (c *Client) GetDataset(code string) (map[string]interface{}, error) {
	resp, err := c.get(fmt.Sprintf("/api/v1/datasets/%s", code))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("dataset not found: %s", code)
	}

	var dataset map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&dataset); err != nil {
		return nil, err
	}

	return dataset, nil
}

// DownloadDataset fetches a dataset's subject archives into the cache
func (c *Client) DownloadDataset(code string) (map[string]interface{}, error) {
	resp, err := c.post(fmt.Sprintf("/api/v1/datasets/%s/download", code), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download failed: %v", result["error"])
	}

	return result, nil
}

// RemoveDataset evicts a dataset's cached archives
func (c *Client) RemoveDataset(code string) error {
	resp, err := c.delete(fmt.Sprintf("/api/v1/datasets/%s", code))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to remove dataset: status %d", resp.StatusCode)
	}

	return nil
}

// ListPipelines returns all loaded pipeline definitions
func (c *Client) ListPipelines() ([]map[string]interface{}, error) {
	resp, err := c.get("/api/v1/pipelines")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result struct {
		Pipelines []map[string]interface{} `json:"pipelines"`
		Count     int                      `json:"count"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}

	return result.Pipelines, nil
}

// GetPipeline returns one pipeline definition in full
func (c *Client) GetPipeline(name string) (map[string]interface{}, error) {
	resp, err := c.get(fmt.Sprintf("/api/v1/pipelines/%s", url.PathEscape(name)))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("pipeline not found: %s", name)
	}

	var pipeline map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&pipeline); err != nil {
		return nil, err
	}

	return pipeline, nil
}

// ResultsFilter narrows a results query. Context is required.
type ResultsFilter struct {
	Context  string
	Dataset  string
	Pipeline string
	Subject  int
}

// GetResults returns benchmark rows for one evaluation context
func (c *Client) GetResults(filter ResultsFilter) ([]map[string]interface{}, error) {
	params := url.Values{}
	params.Set("context", filter.Context)
	if filter.Dataset != "" {
		params.Set("dataset", filter.Dataset)
	}
	if filter.Pipeline != "" {
		params.Set("pipeline", filter.Pipeline)
	}
	if filter.Subject != 0 {
		params.Set("subject", strconv.Itoa(filter.Subject))
	}

	resp, err := c.get("/api/v1/results?" + params.Encode())
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result struct {
		Results []map[string]interface{} `json:"results"`
		Count   int                      `json:"count"`
		Error   string                   `json:"error"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("results query failed: %s", result.Error)
	}

	return result.Results, nil
}

// GetSummary returns per-pipeline aggregate scores for one evaluation context
func (c *Client) GetSummary(context, dataset string) ([]map[string]interface{}, error) {
	params := url.Values{}
	params.Set("context", context)
	if dataset != "" {
		params.Set("dataset", dataset)
	}

	resp, err := c.get("/api/v1/results/summary?" + params.Encode())
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result struct {
		Summary []map[string]interface{} `json:"summary"`
		Count   int                      `json:"count"`
		Error   string                   `json:"error"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("summary query failed: %s", result.Error)
	}

	return result.Summary, nil
}

// ListRuns returns all known benchmark runs
func (c *Client) ListRuns() ([]map[string]interface{}, error) {
	resp, err := c.get("/api/v1/runs")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result struct {
		Runs   []map[string]interface{} `json:"runs"`
		Count  int                      `json:"count"`
		Active int                      `json:"active"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}

	return result.Runs, nil
}

// SubmitRun queues a benchmark run on the daemon
func (c *Client) SubmitRun(spec *benchmark.Spec) (map[string]interface{}, error) {
	resp, err := c.post("/api/v1/runs", spec)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusAccepted {
		return nil, fmt.Errorf("run submission failed: %v", result["error"])
	}

	return result, nil
}

// GetRun returns the state of one run
func (c *Client) GetRun(id string) (map[string]interface{}, error) {
	resp, err := c.get(fmt.Sprintf("/api/v1/runs/%s", id))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("run not found: %s", id)
	}

	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}

	return result, nil
}

// CancelRun cancels a pending or running benchmark run
func (c *Client) CancelRun(id string) error {
	resp, err := c.delete(fmt.Sprintf("/api/v1/runs/%s", id))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to cancel run: status %d", resp.StatusCode)
	}

	return nil
}

// EnsureDaemon verifies the daemon is reachable
func (c *Client) EnsureDaemon() error {
	if err := c.Health(); err == nil {
		return nil
	}

	return fmt.Errorf("daemon is not running, start it with: neurobench daemon start")
}

func (c *Client) get(path string) (*http.Response, error) {
	return c.httpClient.Get(c.baseURL + path)
}

func (c *Client) post(path string, body interface{}) (*http.Response, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequest("POST", c.baseURL+path, reqBody)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	return c.httpClient.Do(req)
}

func (c *Client) delete(path string) (*http.Response, error) {
	req, err := http.NewRequest("DELETE", c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}

	return c.httpClient.Do(req)
}
