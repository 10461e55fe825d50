package executor

import (
	"fmt"
	"sort"
	"strings"

	"forgerun/internal/domain"
	"forgerun/internal/runtimecatalog"
)

// runArgvSpec holds everything needed to assemble the literal
// `docker run --rm --name <prefix>-<id> ...` argv. Every element becomes
// its own argv slot; nothing here is ever joined into a single string and
// handed to a shell.
type runArgvSpec struct {
	Binary        string
	ContainerName string
	Network       string
	Image         string
	WorkspacePath string
	MemoryLimit   string
	Env           map[string]string
	ShellCommand  string
}

// buildRunArgv assembles the tokenized argv for the container runtime CLI.
// The container's entrypoint is always /bin/sh -c <command>: that shell
// runs inside the sandboxed container, not on the host, so it is the
// correct trust boundary for a user-supplied build/run command.
func buildRunArgv(spec runArgvSpec) []string {
	argv := []string{spec.Binary, "run", "--rm", "--name", spec.ContainerName}

	if spec.MemoryLimit != "" {
		argv = append(argv, fmt.Sprintf("--memory=%s", spec.MemoryLimit))
	}
	if spec.Network != "" {
		argv = append(argv, fmt.Sprintf("--network=%s", spec.Network))
	}

	argv = append(argv, "--workdir=/app", "-v", fmt.Sprintf("%s:/app", spec.WorkspacePath))

	for _, k := range sortedKeys(spec.Env) {
		argv = append(argv, "-e", fmt.Sprintf("%s=%s", k, spec.Env[k]))
	}

	argv = append(argv, spec.Image, "/bin/sh", "-c", spec.ShellCommand)
	return argv
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// buildShellCommand composes the command that runs inside the container:
// for git_repo submissions, a clone of the link into the workdir (so the
// clone runs sandboxed and within timeout_ms like everything else in the
// command); an optional cd into the job's start directory; an optional
// dependency install step; and the build/run command (the job's own or
// the runtime catalog's default for its tag).
func buildShellCommand(job *domain.Job, entry runtimecatalog.Entry) (string, error) {
	var parts []string

	if job.SubmissionType == domain.SubmissionGitRepo {
		if job.GitLink == "" {
			return "", fmt.Errorf("git_repo submission missing git_link")
		}
		parts = append(parts, fmt.Sprintf("git clone --depth 1 %s .", shellQuote(job.GitLink)))
	}

	if job.StartDirectory != "" {
		parts = append(parts, fmt.Sprintf("cd %s", shellQuote(job.StartDirectory)))
	}

	if len(job.Dependencies) > 0 && entry.InstallTemplate != "" {
		depList := strings.Join(job.Dependencies, " ")
		parts = append(parts, fmt.Sprintf(entry.InstallTemplate, shellQuote(depList)))
	}

	parts = append(parts, job.InitialCmds...)

	buildCmd := job.BuildCmd
	if buildCmd == "" {
		buildCmd = entry.DefaultBuildCmd
	}
	if buildCmd == "" {
		return "", fmt.Errorf("no build command resolved for runtime %q", job.Runtime)
	}
	parts = append(parts, buildCmd)

	return strings.Join(parts, " && "), nil
}

// shellQuote wraps a value in single quotes for the container-internal
// /bin/sh -c invocation, escaping any embedded single quote.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
