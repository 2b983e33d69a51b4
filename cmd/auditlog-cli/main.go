package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/persistorai/auditlog/client"
)

// Build-time variables set via ldflags.
var (
	version   = "1.0.0"
	commit    = ""
	buildDate = ""
)

const defaultURL = "http://localhost:3000"

var (
	apiClient   *client.Client
	flagURL     string
	flagKey     string
	flagFmt     string
	flagProfile string
)

func versionString() string {
	if commit != "" && buildDate != "" {
		return fmt.Sprintf("auditlog version %s (commit: %s, built: %s)", version, commit, buildDate)
	}
	return fmt.Sprintf("auditlog version %s-dev", version)
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "auditlog",
		Short:   "auditlog CLI: record, search and tail tenant audit logs",
		Version: versionString(),
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			resolveConfig()
			var opts []client.Option
			if flagKey != "" {
				opts = append(opts, client.WithAPIKey(flagKey))
			}
			apiClient = client.New(flagURL, opts...)
		},
		SilenceUsage: true,
	}
	rootCmd.SetVersionTemplate("{{.Version}}\n")

	rootCmd.PersistentFlags().StringVar(&flagURL, "url", defaultURL, "Server URL (env: AUDITLOG_URL)")
	rootCmd.PersistentFlags().StringVar(&flagKey, "api-key", "", "API key or user token (env: AUDITLOG_API_KEY)")
	rootCmd.PersistentFlags().StringVar(&flagFmt, "format", "json", "Output format: json|table|quiet")
	rootCmd.PersistentFlags().StringVar(&flagProfile, "profile", "", "Config profile (env: AUDITLOG_PROFILE)")

	initCmd := newInitCmd()
	initCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {} // skip client setup

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(newDoctorCmd())
	rootCmd.AddCommand(newLogsCmd())
	rootCmd.AddCommand(newSearchesCmd())
	rootCmd.AddCommand(newOrgCmd())
	rootCmd.AddCommand(newTokenCmd())
	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func configPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".auditlog", "config.yaml"), nil
}

func loadConfigFile() (string, *profilesFile, error) {
	path, err := configPath()
	if err != nil {
		return "", nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return path, nil, err
	}
	var cfg profilesFile
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return path, nil, err
	}
	return path, &cfg, nil
}

// profile returns the selected profile: --profile, then AUDITLOG_PROFILE,
// then the file's active_profile, then "default".
func (c *profilesFile) profile() (profileConfig, bool) {
	name := flagProfile
	if name == "" {
		name = os.Getenv("AUDITLOG_PROFILE")
	}
	if name == "" {
		name = c.ActiveProfile
	}
	if name == "" {
		name = "default"
	}
	p, ok := c.Profiles[name]
	return p, ok
}

func resolveConfig() {
	_, cfg, _ := loadConfigFile()
	flagURL, flagKey = resolveSettings(cfg)
}

// resolveSettings applies the precedence flag, env, config profile to the
// server URL and API key. cfg may be nil.
func resolveSettings(cfg *profilesFile) (url, apiKey string) {
	url = flagURL
	apiKey = flagKey

	if url == defaultURL {
		if v := os.Getenv("AUDITLOG_URL"); v != "" {
			url = v
		}
	}
	if apiKey == "" {
		apiKey = os.Getenv("AUDITLOG_API_KEY")
	}

	if cfg == nil {
		return url, apiKey
	}
	if p, ok := cfg.profile(); ok {
		if url == defaultURL && p.URL != "" {
			url = p.URL
		}
		if apiKey == "" && p.APIKey != "" {
			apiKey = p.APIKey
		}
	}
	return url, apiKey
}

func fatal(msg string, err error) {
	fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
	os.Exit(1)
}
