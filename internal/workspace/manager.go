// Package workspace allocates and guarantees removal of per-job scratch
// directories mounted into containers at /app.
package workspace

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"time"
)

const (
	cleanupQueueSize   = 256
	cleanupMaxAttempts = 5
)

// Manager owns a root directory under which one subdirectory per job is
// created and torn down. Removal failures are retried in the background
// rather than surfaced to the Executor's hot path: cleanup errors are
// logged, never propagated.
type Manager struct {
	root    string
	service string

	cleanupQ chan cleanupRequest
}

type cleanupRequest struct {
	path    string
	attempt int
}

// New creates a Manager rooted at filepath.Join(root, service) and starts
// its background cleanup-retry worker.
func New(root, service string) (*Manager, error) {
	base := filepath.Join(root, service)
	if err := os.MkdirAll(base, 0o777); err != nil {
		return nil, fmt.Errorf("workspace: create root %s: %w", base, err)
	}

	m := &Manager{
		root:     base,
		service:  service,
		cleanupQ: make(chan cleanupRequest, cleanupQueueSize),
	}
	go m.runCleanupWorker()
	return m, nil
}

// Allocate idempotently creates the workspace directory for jobID and
// returns its absolute path.
func (m *Manager) Allocate(jobID string) (string, error) {
	path := filepath.Join(m.root, jobID)
	if err := os.MkdirAll(path, 0o777); err != nil {
		return "", fmt.Errorf("workspace: allocate %s: %w", jobID, err)
	}
	return path, nil
}

// Remove recursively force-removes a job's workspace. It never returns an
// error to the caller's hot path; failures are queued for background
// retry and logged.
func (m *Manager) Remove(jobID string) {
	path := filepath.Join(m.root, jobID)
	req := cleanupRequest{path: path, attempt: 1}
	if !m.enqueue(req) {
		go m.process(req)
	}
}

func (m *Manager) enqueue(req cleanupRequest) bool {
	select {
	case m.cleanupQ <- req:
		return true
	default:
		return false
	}
}

func (m *Manager) runCleanupWorker() {
	for req := range m.cleanupQ {
		m.process(req)
	}
}

func (m *Manager) process(req cleanupRequest) {
	err := os.RemoveAll(req.path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return
	}

	if req.attempt >= cleanupMaxAttempts {
		log.Printf("workspace: giving up removing %s after %d attempts: %v", req.path, req.attempt, err)
		return
	}

	delay := time.Duration(req.attempt) * time.Second
	time.Sleep(delay)
	req.attempt++
	if !m.enqueue(req) {
		go m.process(req)
	}
}

// Count returns the number of job directories currently present under the
// root — used by tests asserting that workspace directory count converges
// to zero once no job is active.
func (m *Manager) Count() (int, error) {
	entries, err := os.ReadDir(m.root)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, e := range entries {
		if e.IsDir() {
			n++
		}
	}
	return n, nil
}
