// ABOUTME: Root command for the fastfood console CLI
// ABOUTME: Handles global flags, configuration loading and logger setup

package cmd

import (
	"os"

	"github.com/Rin111124/Fastfood-WEB-frontend-sub001/config"
	"github.com/Rin111124/Fastfood-WEB-frontend-sub001/logger"
	"github.com/spf13/cobra"
)

var (
	apiURL     string
	jsonOutput bool
)

// rootCmd is the base command
var rootCmd = &cobra.Command{
	Use:   "fastfood",
	Short: "Console client for restaurant operations",
	Long: `fastfood signs staff, admins and customers in to the restaurant backend and
shows their live dashboard, kept current by realtime events.

Environment Variables:
  FASTFOOD_API_URL             Backend API URL (default: http://localhost:8080)
  FASTFOOD_REALTIME_URL        Realtime endpoint (default: derived from the API URL)
  FASTFOOD_CONFIG_DIR          Where remembered credentials are kept
  FASTFOOD_CREDENTIAL_KEY      Base64 32-byte key sealing credential files
  FASTFOOD_ALL_PROXY           ssh+socks5://user@host:port?private-key=/path
  LOG_LEVEL, LOG_FORMAT        Logging (debug|info|warn|error, text|json)`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.Init(os.Stderr)
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "Backend API URL (overrides FASTFOOD_API_URL)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output JSON instead of human-readable text")
}

// loadConfig reads the environment and applies the --api-url override
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if apiURL != "" {
		if err := cfg.SetAPIURL(apiURL); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// IsJSONOutput returns whether JSON output is requested
func IsJSONOutput() bool {
	return jsonOutput
}
