package daemon

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/neurobench/neurobench/internal/benchmark"
	"github.com/neurobench/neurobench/internal/config"
	"github.com/neurobench/neurobench/internal/dataset"
	"github.com/neurobench/neurobench/internal/pipeline"
	"github.com/neurobench/neurobench/internal/results"
	"github.com/neurobench/neurobench/internal/storage"
)

// Daemon hosts the benchmark service: the dataset and pipeline
// registries, per-context result stores and the run manager, exposed over
// a local HTTP API.
type Daemon struct {
	mu         sync.RWMutex
	ctx        context.Context
	cancel     context.CancelFunc
	config     *config.Config
	paths      *storage.Paths
	datasets   *dataset.Registry
	dsStore    *dataset.Store
	pipelines  *pipeline.Registry
	runManager *RunManager
	state      *State
	stores     map[string]*results.Store
	server     *http.Server
	apiHandler http.Handler
	workers    sync.WaitGroup
}

func New(cfg *config.Config) (*Daemon, error) {
	ctx, cancel := context.WithCancel(context.Background())

	paths, err := storage.NewPaths()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to resolve storage paths: %w", err)
	}
	if err := paths.Initialize(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	d := &Daemon{
		ctx:    ctx,
		cancel: cancel,
		config: cfg,
		paths:  paths,
		stores: make(map[string]*results.Store),
	}

	d.state = NewState(filepath.Join(paths.DaemonDir(), "state.json"))
	if err := d.state.Load(); err != nil {
		// non-fatal, continue with empty state
		fmt.Printf("Warning: could not load previous state: %v\n", err)
	}

	d.datasets = dataset.NewRegistry()
	d.datasets.RegisterBuiltins()
	store := dataset.NewStore(paths)
	if cfg != nil {
		store.RateLimit = cfg.Download.RateLimit
		store.Retries = cfg.Download.Retries
		store.Verify = cfg.Download.VerifyHashes
	}
	d.dsStore = store
	if err := d.datasets.RegisterCatalog(paths.CatalogPath(), store); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to register catalog datasets: %w", err)
	}

	d.pipelines = pipeline.NewRegistry()
	if _, err := d.pipelines.LoadDir(paths.PipelinesDir()); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to load pipelines: %w", err)
	}

	d.runManager = NewRunManager(d.state, d.newRunner)

	return d, nil
}

// newRunner builds a benchmark runner bound to one run's progress.
func (d *Daemon) newRunner(run *Run) *benchmark.Runner {
	store, err := d.StoreFor(run.Spec.Context())
	if err != nil {
		store = nil
	}
	return &benchmark.Runner{
		Datasets:  d.datasets,
		Pipelines: d.pipelines,
		Store:     store,
		ModelDir:  d.paths.ModelsDir(),
		Progress: func(done, total int) {
			d.runManager.UpdateProgress(run.ID, done, total)
		},
	}
}

// StoreFor returns the results store for a benchmark context, opening it
// on first use.
func (d *Daemon) StoreFor(context string) (*results.Store, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if s, ok := d.stores[context]; ok {
		return s, nil
	}
	s, err := results.Open(d.paths.ResultsPath(context))
	if err != nil {
		return nil, err
	}
	d.stores[context] = s
	return s, nil
}

func (d *Daemon) Start(apiPort int) error {
	d.startWorkers()

	if err := d.startAPIServer(apiPort); err != nil {
		return fmt.Errorf("failed to start API server: %w", err)
	}

	d.setupSignalHandlers()

	if err := d.writePIDFile(); err != nil {
		fmt.Printf("Warning: could not write PID file: %v\n", err)
	}

	fmt.Printf("Daemon started on port %d (PID: %d)\n", apiPort, os.Getpid())
	return nil
}

func (d *Daemon) pidFile() string {
	return filepath.Join(d.paths.DaemonDir(), "daemon.pid")
}

func (d *Daemon) writePIDFile() error {
	return os.WriteFile(d.pidFile(), []byte(strconv.Itoa(os.Getpid())), 0644)
}

func (d *Daemon) startWorkers() {
	d.workers.Add(1)
	go d.statePersistenceWorker()

	d.workers.Add(1)
	go d.cleanupWorker()
}

func (d *Daemon) statePersistenceWorker() {
	defer d.workers.Done()
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return
		case <-ticker.C:
			if err := d.state.Save(); err != nil {
				fmt.Printf("Error saving state: %v\n", err)
			}
		}
	}
}

func (d *Daemon) cleanupWorker() {
	defer d.workers.Done()
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return
		case <-ticker.C:
			d.runManager.CleanupOldRuns(7 * 24 * time.Hour)
		}
	}
}

func (d *Daemon) setupSignalHandlers() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nReceived shutdown signal, shutting down gracefully...")
		d.cancel()
	}()
}

// Wait blocks until the daemon is asked to stop.
func (d *Daemon) Wait() {
	<-d.ctx.Done()
}

// RequestStop asks the daemon to stop without tearing it down. Wait
// unblocks and the owner runs Shutdown, so in-flight API requests finish
// first.
func (d *Daemon) RequestStop() {
	d.cancel()
}

func (d *Daemon) Shutdown() error {
	if d.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := d.server.Shutdown(ctx); err != nil {
			fmt.Printf("Error shutting down API server: %v\n", err)
		}
	}

	if err := d.state.Save(); err != nil {
		fmt.Printf("Error saving final state: %v\n", err)
	}

	os.Remove(d.pidFile())

	d.cancel()
	d.workers.Wait()

	return nil
}

func (d *Daemon) startAPIServer(port int) error {
	d.mu.RLock()
	handler := d.apiHandler
	d.mu.RUnlock()

	if handler == nil {
		return fmt.Errorf("no API handler configured")
	}

	d.server = &http.Server{
		Addr:         fmt.Sprintf("127.0.0.1:%d", port),
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		if err := d.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Printf("API server error: %v\n", err)
		}
	}()

	return nil
}

// SetAPIHandler installs the HTTP handler before Start. The routes live
// in the api package, which depends on this one.
func (d *Daemon) SetAPIHandler(handler http.Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.apiHandler = handler
	if d.server != nil {
		d.server.Handler = handler
	}
}

// GetStatus returns the daemon status summary.
func (d *Daemon) GetStatus() map[string]interface{} {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return map[string]interface{}{
		"pid":         os.Getpid(),
		"uptime":      time.Since(d.state.StartTime).String(),
		"active_runs": d.runManager.ActiveCount(),
		"datasets":    len(d.datasets.List()),
		"pipelines":   len(d.pipelines.List()),
	}
}

func (d *Daemon) GetDatasets() *dataset.Registry {
	return d.datasets
}

func (d *Daemon) GetDatasetStore() *dataset.Store {
	return d.dsStore
}

func (d *Daemon) GetPipelines() *pipeline.Registry {
	return d.pipelines
}

func (d *Daemon) GetRunManager() *RunManager {
	return d.runManager
}

func (d *Daemon) GetState() *State {
	return d.state
}

func (d *Daemon) GetPaths() *storage.Paths {
	return d.paths
}
