package client

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neurobench/neurobench/internal/benchmark"
)

func TestNewClient(t *testing.T) {
	client := NewClient("http://localhost:7624")
	assert.NotNil(t, client)
	assert.Equal(t, "http://localhost:7624", client.baseURL)
	assert.NotNil(t, client.httpClient)
}

func TestClientHealth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/health", r.URL.Path)
		assert.Equal(t, "GET", r.Method)

		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status": "healthy",
		})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	assert.NoError(t, client.Health())
}

func TestClientHealthError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	assert.Error(t, client.Health())
}

func TestClientGetStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/status", r.URL.Path)

		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"pid":         12345,
			"uptime":      "1h30m",
			"active_runs": 1,
		})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	status, err := client.GetStatus()
	require.NoError(t, err)
	assert.Equal(t, float64(12345), status["pid"])
}

func TestClientListDatasets(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/datasets", r.URL.Path)

		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"datasets": []map[string]interface{}{
				{"code": "FakeDataset-imagery", "paradigm": "imagery"},
				{"code": "FakeDataset-p300", "paradigm": "p300"},
			},
			"count": 2,
		})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	datasets, err := client.ListDatasets()
	require.NoError(t, err)
	require.Len(t, datasets, 2)
	assert.Equal(t, "FakeDataset-imagery", datasets[0]["code"])
}

func TestClientGetDatasetNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]interface{}{"error": "dataset X not found"})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	_, err := client.GetDataset("X")
	assert.ErrorContains(t, err, "not found")
}

func TestClientDownloadDataset(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/datasets/BNCI2014-001/download", r.URL.Path)
		assert.Equal(t, "POST", r.Method)

		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"message":  "dataset downloaded",
			"subjects": 9,
		})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	result, err := client.DownloadDataset("BNCI2014-001")
	require.NoError(t, err)
	assert.Equal(t, float64(9), result["subjects"])
}

func TestClientDownloadDatasetError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]interface{}{"error": "no downloadable archives"})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	_, err := client.DownloadDataset("FakeDataset-imagery")
	assert.ErrorContains(t, err, "no downloadable archives")
}

func TestClientListPipelines(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/pipelines", r.URL.Path)

		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"pipelines": []map[string]interface{}{
				{"name": "CSP + LDA", "steps": 3},
			},
			"count": 1,
		})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	pipelines, err := client.ListPipelines()
	require.NoError(t, err)
	require.Len(t, pipelines, 1)
	assert.Equal(t, "CSP + LDA", pipelines[0]["name"])
}

func TestClientGetPipelineEscapesName(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/pipelines/CSP + LDA", r.URL.Path)

		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]interface{}{"name": "CSP + LDA"})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	p, err := client.GetPipeline("CSP + LDA")
	require.NoError(t, err)
	assert.Equal(t, "CSP + LDA", p["name"])
}

func TestClientGetResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/results", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "MotorImagery_WithinSession", q.Get("context"))
		assert.Equal(t, "cov-mdm", q.Get("pipeline"))
		assert.Equal(t, "2", q.Get("subject"))

		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"results": []map[string]interface{}{
				{"score": 0.9, "subject": 2, "pipeline": "cov-mdm"},
			},
			"count": 1,
		})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	rows, err := client.GetResults(ResultsFilter{
		Context:  "MotorImagery_WithinSession",
		Pipeline: "cov-mdm",
		Subject:  2,
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 0.9, rows[0]["score"])
}

func TestClientGetResultsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]interface{}{"error": "context query parameter is required"})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	_, err := client.GetResults(ResultsFilter{})
	assert.ErrorContains(t, err, "context")
}

func TestClientGetSummary(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/results/summary", r.URL.Path)
		assert.Equal(t, "P300_WithinSession", r.URL.Query().Get("context"))

		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"summary": []map[string]interface{}{
				{"pipeline": "xdawn-lda", "mean_score": 0.82},
			},
			"count": 1,
		})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	summary, err := client.GetSummary("P300_WithinSession", "")
	require.NoError(t, err)
	require.Len(t, summary, 1)
	assert.Equal(t, 0.82, summary[0]["mean_score"])
}

func TestClientSubmitRun(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/runs", r.URL.Path)
		assert.Equal(t, "POST", r.Method)

		var spec benchmark.Spec
		require.NoError(t, json.NewDecoder(r.Body).Decode(&spec))
		assert.Equal(t, "WithinSession", spec.Evaluation)
		assert.Equal(t, "MotorImagery", spec.Paradigm)

		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"message": "run submitted",
			"run":     map[string]interface{}{"id": "abc", "status": "pending"},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	result, err := client.SubmitRun(&benchmark.Spec{
		Evaluation: "WithinSession",
		Paradigm:   "MotorImagery",
	})
	require.NoError(t, err)

	run := result["run"].(map[string]interface{})
	assert.Equal(t, "abc", run["id"])
}

func TestClientSubmitRunRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]interface{}{"error": `unknown paradigm "Telepathy"`})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	_, err := client.SubmitRun(&benchmark.Spec{Paradigm: "Telepathy"})
	assert.ErrorContains(t, err, "unknown paradigm")
}

func TestClientCancelRun(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/runs/abc", r.URL.Path)
		assert.Equal(t, "DELETE", r.Method)

		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]interface{}{"message": "run cancelled"})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	assert.NoError(t, client.CancelRun("abc"))
}

func TestClientEnsureDaemonDown(t *testing.T) {
	client := NewClient("http://127.0.0.1:1")
	err := client.EnsureDaemon()
	assert.ErrorContains(t, err, "daemon is not running")
}
