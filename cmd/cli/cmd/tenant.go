package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"forgerun/pkg/api"
)

var tenantCmd = &cobra.Command{
	Use:   "tenant",
	Short: "Manage tenants",
}

var tenantCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Register a new tenant and print its API key",
	Long: `Register a new tenant. The API key is returned exactly once, at
creation time, and must be captured immediately.`,
	Run: func(cmd *cobra.Command, args []string) {
		name, _ := cmd.Flags().GetString("name")
		if name == "" {
			cmd.Println("Error: --name is required")
			return
		}

		client := NewJobClient(viper.GetString("url"), viper.GetString("token"))
		result, err := client.CreateTenant(api.CreateTenantRequest{Name: name})
		if err != nil {
			if apiErr, ok := err.(*APIError); ok {
				cmd.Printf("Create failed (%d): %s\n", apiErr.StatusCode, apiErr.Message)
			} else {
				cmd.Printf("Create failed: %v\n", err)
			}
			return
		}

		cmd.Printf("Tenant created!\nID: %s\nAPI key: %s\n", result.ID, result.ApiKey)
		cmd.Println("Store this key now; it will not be shown again.")
	},
}

func init() {
	rootCmd.AddCommand(tenantCmd)
	tenantCmd.AddCommand(tenantCreateCmd)

	tenantCreateCmd.Flags().StringP("name", "n", "", "Tenant name (required)")
}
