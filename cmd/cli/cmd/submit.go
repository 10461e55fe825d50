package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"forgerun/pkg/api"
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit a job for execution",
	Long: `Submit a job for execution. --type selects the submission type
(git_repo, raw_code, or custom_image); --git-link, --raw-code, or
--docker-image carries the matching source.

Examples:
  forgerunctl submit --type custom_image --docker-image alpine --initial-cmds "echo hello"
  forgerunctl submit --type git_repo --git-link https://github.com/acme/job.git --runtime python
  forgerunctl submit --type raw_code --raw-code "print('hi')" --runtime python`,
	Run: func(cmd *cobra.Command, args []string) {
		flags := cmd.Flags()
		submissionType, _ := flags.GetString("type")
		gitLink, _ := flags.GetString("git-link")
		rawCode, _ := flags.GetString("raw-code")
		dockerImage, _ := flags.GetString("docker-image")
		runtime, _ := flags.GetString("runtime")
		dependencies, _ := flags.GetStringSlice("dependencies")
		startDirectory, _ := flags.GetString("start-directory")
		initialCmds, _ := flags.GetStringSlice("initial-cmds")
		buildCmd, _ := flags.GetString("build-cmd")
		envPairs, _ := flags.GetStringSlice("env")
		memoryLimit, _ := flags.GetString("memory-limit")
		timeoutMS, _ := flags.GetInt("timeout")
		priority, _ := flags.GetInt("priority")
		maxAttempts, _ := flags.GetInt("max-attempts")

		url := viper.GetString("url")
		token := viper.GetString("token")

		if token == "" {
			cmd.Println("API token not found. Please set it using the --token flag or the FORGERUN_TOKEN environment variable")
			return
		}

		if submissionType == "" {
			cmd.Println("Error: --type is required (git_repo, raw_code, or custom_image)")
			return
		}

		env := map[string]string{}
		for _, pair := range envPairs {
			k, v, ok := strings.Cut(pair, "=")
			if !ok {
				cmd.Printf("Error: --env entries must be KEY=VALUE, got %q\n", pair)
				return
			}
			env[k] = v
		}

		req := api.SubmitJobRequest{
			SubmissionType: submissionType,
			GitLink:        gitLink,
			RawCode:        rawCode,
			DockerImage:    dockerImage,
			Runtime:        runtime,
			Dependencies:   dependencies,
			StartDirectory: startDirectory,
			InitialCmds:    initialCmds,
			BuildCmd:       buildCmd,
			Env:            env,
			MemoryLimit:    memoryLimit,
			TimeoutMS:      timeoutMS,
			Priority:       priority,
		}
		if flags.Changed("max-attempts") {
			req.MaxAttempts = &maxAttempts
		}

		client := NewJobClient(url, token)
		result, err := client.SubmitJob(req)
		if err != nil {
			if apiErr, ok := err.(*APIError); ok {
				cmd.Printf("Submit failed (%d): %s\n", apiErr.StatusCode, apiErr.Message)
			} else {
				cmd.Printf("Submit failed: %v\n", err)
			}
			return
		}

		cmd.Printf("Job submitted!\nID: %s\n", result.JobID)
	},
}

func init() {
	flags := submitCmd.Flags()
	flags.String("type", "", "Submission type: git_repo, raw_code, or custom_image (required)")
	flags.String("git-link", "", "Git repository URL")
	flags.String("raw-code", "", "Inline source code")
	flags.String("docker-image", "", "Prebuilt Docker image")
	flags.String("runtime", "", "Runtime identifier for git_repo/raw_code submissions")
	flags.StringSlice("dependencies", nil, "Extra dependencies to install before running")
	flags.String("start-directory", "", "Subdirectory to run from within the checked-out repo")
	flags.StringSlice("initial-cmds", nil, "Commands to run before the build/entry command")
	flags.String("build-cmd", "", "Build command to run before execution")
	flags.StringSlice("env", nil, "Environment variable as KEY=VALUE, repeatable")
	flags.String("memory-limit", "", "Container memory limit, e.g. 512MB")
	flags.Int("timeout", 0, "Execution timeout in milliseconds")
	flags.Int("priority", api.PriorityNormal, "Job priority (0-100)")
	flags.Int("max-attempts", 0, "Maximum retry attempts before dead-lettering")

	rootCmd.AddCommand(submitCmd)
}
