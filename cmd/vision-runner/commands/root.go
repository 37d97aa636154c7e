package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/ST2Projects/vision-runner/cmd/vision-runner/client"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "vision-runner",
	Short: "Serve and query an image description and tagging service",
	Long: `vision-runner fronts an OpenAI-compatible or Ollama inference engine
with an image analysis HTTP API and a small upload form.

Examples:
  # Serve against a local Ollama engine
  vision-runner serve --engine ollama --model qwen2.5vl:7b

  # Describe an image through a running daemon
  vision-runner analyze photo.jpg --prompt "What is written on the sign?"

  # Generate ten tags
  vision-runner tags photo.jpg --num-tags 10`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path (e.g. vision-runner.yaml)")
	rootCmd.PersistentFlags().String("url", "http://localhost:7860", "base URL of the vision-runner daemon")
	rootCmd.PersistentFlags().String("log-level", "info", "set the logging level (e.g. debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "emit logs as JSON")

	// Bind to viper
	mustBindPFlag("url", rootCmd.PersistentFlags().Lookup("url"))
	mustBindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	mustBindPFlag("log.json", rootCmd.PersistentFlags().Lookup("log-json"))

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newAnalyzeCmd())
	rootCmd.AddCommand(newTagsCmd())
}

// initConfig reads in the config file and environment variables if set.
func initConfig() {
	if cfgFile != "" {
		if _, err := os.Stat(cfgFile); err != nil {
			fmt.Fprintf(os.Stderr, "Config file not found: %s\n", cfgFile)
			os.Exit(1)
		}

		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Search for a ".vision-runner" config file in the home directory
		// and the current directory.
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.AddConfigPath(".")
		viper.SetConfigName(".vision-runner")
	}

	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("VISION_RUNNER")                    // VISION_RUNNER_ prefix for env vars
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // Replace . with _ in env var names
	viper.AutomaticEnv()                                   // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	} else if cfgFile != "" {
		// Only error if the user explicitly specified a config file.
		fmt.Fprintf(os.Stderr, "Error reading config file [%s]: %v\n", viper.ConfigFileUsed(), err)
		os.Exit(1)
	}
}

func mustBindPFlag(key string, flag *pflag.Flag) {
	if err := viper.BindPFlag(key, flag); err != nil {
		panic(fmt.Errorf("binding flag %q: %w", key, err))
	}
}

// newClient builds a daemon client from the configured base URL.
func newClient() *client.Client {
	return client.New(viper.GetString("url"))
}
