package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "forgerunctl",
	Short: "forgerunctl is a command line tool for interacting with the forgerun platform",
	Long: `forgerunctl is the command-line interface for the forgerun remote code
execution platform.

forgerun provides a multi-tenant service for submitting, scheduling, and
running arbitrary code (git repositories, raw code snippets, or prebuilt
Docker images) inside isolated containers.

Common workflows:

  Register a tenant and capture its API key:
    forgerunctl tenant create --name "acme-co"

  Submit a job:
    forgerunctl submit --type custom_image --docker-image alpine --initial-cmds "echo hello"

  Check job status:
    forgerunctl status <job-id>

  Stream logs:
    forgerunctl logs <job-id> --follow

  Inspect and retry the dead letter queue:
    forgerunctl dlq list
    forgerunctl dlq retry <job-id>

Configuration:
  Set the API endpoint and credentials via environment variables or a config file:
    FORGERUN_URL      API endpoint (default: http://localhost:6161)
    FORGERUN_TOKEN    Tenant API token for authentication`,
}

func Execute() error {
	return rootCmd.Execute()
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}

		// Search config in home directory with name ".forgerunctl"
		viper.AddConfigPath(home)
		viper.SetConfigName(".forgerunctl")
		viper.SetConfigType("yaml")
	}

	// Read environment variables that match "FORGERUN_VARNAME"
	viper.SetEnvPrefix("FORGERUN")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Println("Using config file:", viper.ConfigFileUsed())
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.forgerunctl.yaml)")

	rootCmd.PersistentFlags().String("url", "http://localhost:6161", "forgerun controller URL")
	viper.BindPFlag("url", rootCmd.PersistentFlags().Lookup("url"))

	rootCmd.PersistentFlags().StringP("token", "t", "", "API token for authentication")
	viper.BindPFlag("token", rootCmd.PersistentFlags().Lookup("token"))
}
