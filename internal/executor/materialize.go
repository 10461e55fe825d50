package executor

import (
	"fmt"
	"os"
	"path/filepath"

	"forgerun/internal/domain"
	"forgerun/internal/runtimecatalog"
)

// materialize lays down a job's source inside its workspace according to
// its submission type: raw_code is written to the runtime catalog's
// conventional file name; git_repo and custom_image submissions need no
// host-side source at all — a git_repo is cloned by the constructed shell
// command running inside the container (see buildShellCommand), never on
// the host, so the clone is subject to the same sandboxing and timeout as
// the rest of the job's run.
func materialize(wsPath string, job *domain.Job, entry runtimecatalog.Entry) error {
	switch job.SubmissionType {
	case domain.SubmissionGitRepo, domain.SubmissionCustomImage:
		return nil
	case domain.SubmissionRawCode:
		return writeSource(wsPath, entry.FileName, job.RawCode)
	default:
		return fmt.Errorf("materialize: unknown submission type %q", job.SubmissionType)
	}
}

func writeSource(wsPath, fileName, content string) error {
	if fileName == "" {
		fileName = "main"
	}
	path := filepath.Join(wsPath, fileName)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write source %s: %w", path, err)
	}
	return nil
}
