// Command formwizard serves, renders and runs multi-step form wizards.
package main

import (
	_ "embed"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gabrielmiguelok/formwizard/internal/config"
	"github.com/gabrielmiguelok/formwizard/pkg/logging"
)

// Version set via ldflags during build.
var version = "dev"

//go:embed default.html
var defaultTemplate []byte

var (
	v          = viper.New()
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "formwizard",
	Short: "Multi-step form wizards driven from Go",
	Long: `formwizard drives multi-step HTML forms with a server-side wizard.

The same wizard runs in the browser over a live websocket (serve), as static
HTML at a chosen step (render) or in the terminal (tui).`,
	SilenceUsage: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "Config file (default: ./formwizard.yml over the global file)")
	pf.StringP("template", "t", "", "Form template (default: built-in signup form)")
	pf.String("form-id", "", "data-id or id of the form when the template has several")
	pf.String("log-level", "info", "Log level: debug, info, warn, error")
	pf.String("log-format", "text", "Log format: text or json")
	pf.String("log-file", "", "Write logs to a rotating file instead of stderr")

	for key, flag := range map[string]string{
		"template":   "template",
		"form_id":    "form-id",
		"log_level":  "log-level",
		"log_format": "log-format",
		"log_file":   "log-file",
	} {
		if err := v.BindPFlag(key, pf.Lookup(flag)); err != nil {
			panic(err)
		}
	}

	rootCmd.AddCommand(serveCmd, renderCmd, tuiCmd, configCmd, versionCmd)
}

// setup loads and validates the configuration and builds the logger.
func setup() (*config.Config, *logging.SlogLogger, io.Closer, error) {
	cfg, err := config.Load(configPath, v)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, nil, fmt.Errorf("invalid config: %w", err)
	}

	logger, closer, err := logging.New(cfg.Logging())
	if err != nil {
		return nil, nil, nil, err
	}
	logging.SetDefault(logger)
	return cfg, logger, closer, nil
}

func loadTemplate(cfg *config.Config) ([]byte, error) {
	if cfg.Template == "" {
		return defaultTemplate, nil
	}
	data, err := os.ReadFile(cfg.Template)
	if err != nil {
		return nil, fmt.Errorf("reading template: %w", err)
	}
	return data, nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "formwizard %s\n", version)
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
