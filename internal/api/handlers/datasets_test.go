package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestListDatasets(t *testing.T) {
	h, d := setupTestHandlers(t)
	defer d.Shutdown()

	w, response := doRequest(t, h.ListDatasets, "GET", "/datasets", "/datasets")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(3), response["count"])

	datasets := response["datasets"].([]interface{})
	codes := make([]string, 0, len(datasets))
	for _, entry := range datasets {
		codes = append(codes, entry.(map[string]interface{})["code"].(string))
	}
	assert.Contains(t, codes, "FakeDataset-imagery")
	assert.Contains(t, codes, "FakeDataset-p300")
	assert.Contains(t, codes, "FakeDataset-ssvep")
}

func TestGetDataset(t *testing.T) {
	h, d := setupTestHandlers(t)
	defer d.Shutdown()

	w, response := doRequest(t, h.GetDataset, "GET", "/datasets/:code", "/datasets/FakeDataset-imagery")

	assert.Equal(t, http.StatusOK, w.Code)
	info := response["info"].(map[string]interface{})
	assert.Equal(t, "FakeDataset-imagery", info["code"])
	assert.Equal(t, "imagery", info["paradigm"])
	assert.Equal(t, float64(0), response["cached_subjects"])

	subjects := response["subjects"].([]interface{})
	assert.Len(t, subjects, 3)
}

func TestGetDatasetNotFound(t *testing.T) {
	h, d := setupTestHandlers(t)
	defer d.Shutdown()

	w, response := doRequest(t, h.GetDataset, "GET", "/datasets/:code", "/datasets/NoSuchDataset")

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, response["error"], "not found")
}

func TestDownloadDatasetWithoutArchives(t *testing.T) {
	h, d := setupTestHandlers(t)
	defer d.Shutdown()

	w, response := doRequest(t, h.DownloadDataset, "POST", "/datasets/:code/download", "/datasets/FakeDataset-imagery/download")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, response["error"], "no downloadable archives")
}

func TestDownloadDatasetNotFound(t *testing.T) {
	h, d := setupTestHandlers(t)
	defer d.Shutdown()

	w, _ := doRequest(t, h.DownloadDataset, "POST", "/datasets/:code/download", "/datasets/NoSuchDataset/download")

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestEvictDataset(t *testing.T) {
	h, d := setupTestHandlers(t)
	defer d.Shutdown()

	w, response := doRequest(t, h.EvictDataset, "DELETE", "/datasets/:code", "/datasets/FakeDataset-imagery")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "dataset evicted", response["message"])
}

func TestEvictDatasetNotFound(t *testing.T) {
	h, d := setupTestHandlers(t)
	defer d.Shutdown()

	w, _ := doRequest(t, h.EvictDataset, "DELETE", "/datasets/:code", "/datasets/NoSuchDataset")

	assert.Equal(t, http.StatusNotFound, w.Code)
}
