package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/gabrielmiguelok/formwizard/internal/tui"
	"github.com/gabrielmiguelok/formwizard/pkg/dom"
	"github.com/gabrielmiguelok/formwizard/pkg/logging"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Fill in the wizard in the terminal",
	Long: `Tui runs the wizard in the terminal. Submitted values are printed as
YAML after the program exits.

Logs go to the log file only; without one they are discarded.`,
	RunE: runTUI,
}

func runTUI(cmd *cobra.Command, args []string) error {
	cfg, logger, closer, err := setup()
	if err != nil {
		return err
	}
	defer closer.Close()

	var log logging.Logger = logger
	if cfg.LogFile == "" {
		log = logging.NopLogger{}
	}

	template, err := loadTemplate(cfg)
	if err != nil {
		return err
	}
	var opts []dom.ParseOption
	if cfg.FormID != "" {
		opts = append(opts, dom.WithFormID(cfg.FormID))
	}
	doc, err := dom.ParseString(string(template), opts...)
	if err != nil {
		return fmt.Errorf("parse template: %w", err)
	}

	m, err := tui.New(doc, tui.WithLogger(log))
	if err != nil {
		return err
	}

	if err := tui.Run(m); err != nil {
		return err
	}

	values, ok := m.Submitted()
	if !ok {
		return nil
	}
	enc := yaml.NewEncoder(cmd.OutOrStdout())
	defer enc.Close()
	return enc.Encode(values)
}
