package cmd

import "github.com/spf13/viper"

// resetViper clears viper config between tests for isolation.
func resetViper() {
	viper.Reset()
	viper.SetEnvPrefix("FORGERUN")
	viper.AutomaticEnv()
}
