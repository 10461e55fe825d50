// Package executor implements the Container Executor: it turns an
// admitted Job into a running container, streams its output, and
// guarantees the workspace is torn down on every exit path.
// Admission is a distinct upstream step the Worker Pool owns: the
// admission check precedes the Workspace Manager and this Executor
// entirely — by the time Run is called, a slot has already been
// reserved and the caller is responsible for releasing it.
package executor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"forgerun/internal/domain"
	"forgerun/internal/runtimecatalog"
)

// Workspace allocates and tears down the per-job scratch directory mounted
// into the container. Satisfied by *workspace.Manager.
type Workspace interface {
	Allocate(jobID string) (string, error)
	Remove(jobID string)
}

// LogSink receives stdout/stderr chunks as they are produced. Satisfied by
// the Log Multiplexer.
type LogSink interface {
	Append(jobID string, logType domain.LogType, content string)
}

// Config configures an Executor's invocation of the container runtime.
type Config struct {
	// RuntimeBinary is the CLI executable on PATH, e.g. "docker" or "podman".
	RuntimeBinary string
	// ContainerNamePrefix is prepended to the job ID to form --name.
	ContainerNamePrefix string
	// Network is an optional --network value; empty means runtime default.
	Network string
}

// Executor runs one job at a time per call to Run; concurrency is the
// caller's responsibility (the Worker Pool invokes Run from many
// goroutines, one per claimed job).
type Executor struct {
	cfg       Config
	workspace Workspace
	logs      LogSink
}

// New constructs an Executor. ws and logs must not be nil.
func New(cfg Config, ws Workspace, logs LogSink) *Executor {
	if cfg.RuntimeBinary == "" {
		cfg.RuntimeBinary = "docker"
	}
	if cfg.ContainerNamePrefix == "" {
		cfg.ContainerNamePrefix = "forgerun"
	}
	return &Executor{cfg: cfg, workspace: ws, logs: logs}
}

// Result is the outcome of one container run.
type Result struct {
	ExitCode int
	TimedOut bool
}

// Run executes job to completion: allocates a workspace, materializes the
// job's source per its submission type, spawns the container via a
// tokenized argv (never a host shell), streams output to the LogSink, and
// unconditionally releases the workspace before returning — regardless of
// which step failed.
func (e *Executor) Run(ctx context.Context, job *domain.Job) (Result, error) {
	jobID := job.ID.String()

	wsPath, err := e.workspace.Allocate(jobID)
	if err != nil {
		return Result{ExitCode: -1}, fmt.Errorf("executor: allocate workspace: %w", err)
	}
	defer e.workspace.Remove(jobID)

	entry := runtimecatalog.Lookup(job.Runtime)

	if err := materialize(wsPath, job, entry); err != nil {
		return Result{ExitCode: -1}, fmt.Errorf("executor: materialize source: %w", err)
	}

	containerName := domain.ContainerName(e.cfg.ContainerNamePrefix, job.ID)

	image := entry.Image
	if job.SubmissionType == domain.SubmissionCustomImage && job.DockerImage != "" {
		image = job.DockerImage
	}

	runCmd, err := buildShellCommand(job, entry)
	if err != nil {
		return Result{ExitCode: -1}, fmt.Errorf("executor: build command: %w", err)
	}

	argv := buildRunArgv(runArgvSpec{
		Binary:        e.cfg.RuntimeBinary,
		ContainerName: containerName,
		Network:       e.cfg.Network,
		Image:         image,
		WorkspacePath: wsPath,
		MemoryLimit:   job.MemoryLimit,
		Env:           job.Env,
		ShellCommand:  runCmd,
	})

	timeout := time.Duration(job.TimeoutMS) * time.Millisecond
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, argv[0], argv[1:]...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return Result{ExitCode: -1}, fmt.Errorf("executor: stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return Result{ExitCode: -1}, fmt.Errorf("executor: stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return Result{ExitCode: -1}, fmt.Errorf("executor: start container: %w", err)
	}

	var streamWG sync.WaitGroup
	streamWG.Add(2)
	go func() {
		defer streamWG.Done()
		e.pump(jobID, domain.LogStdout, stdout)
	}()
	go func() {
		defer streamWG.Done()
		e.pump(jobID, domain.LogStderr, stderr)
	}()

	waitErr := cmd.Wait()
	streamWG.Wait()

	timedOut := errors.Is(execCtx.Err(), context.DeadlineExceeded)
	if timedOut {
		e.forceStop(containerName)
		return Result{ExitCode: -1, TimedOut: true}, fmt.Errorf("executor: job %s timed out after %s", jobID, timeout)
	}

	if waitErr == nil {
		return Result{ExitCode: 0}, nil
	}

	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		return Result{ExitCode: exitErr.ExitCode()}, fmt.Errorf("executor: container exited with status %d", exitErr.ExitCode())
	}
	return Result{ExitCode: -1}, fmt.Errorf("executor: run container: %w", waitErr)
}

// pump copies lines from a pipe into the LogSink until EOF. Partial final
// lines (no trailing newline) are still forwarded.
func (e *Executor) pump(jobID string, logType domain.LogType, r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.Contains(line, "\x00") {
			line = strings.ReplaceAll(line, "\x00", "")
		}
		e.logs.Append(jobID, logType, line)
	}
}

// forceStop issues a best-effort `docker stop` when a job is killed on
// timeout; cmd.Process.Kill alone would not reach the containerized
// process since it targets the docker CLI client, not the container.
func (e *Executor) forceStop(containerName string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = exec.CommandContext(ctx, e.cfg.RuntimeBinary, "stop", containerName).Run()
}
