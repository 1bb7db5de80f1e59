package main

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/gabrielmiguelok/formwizard/pkg/dom"
	"github.com/gabrielmiguelok/formwizard/pkg/logging"
	"github.com/gabrielmiguelok/formwizard/pkg/wizard"
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Print the initialized wizard HTML at a given step",
	Long: `Render parses the template, optionally presets the active step, runs
the wizard initialization and prints the resulting HTML.

An out-of-range step fails instead of being clamped.`,
	RunE: runRender,
}

var renderOpts struct {
	step     int
	refs     bool
	formOnly bool
	output   string
}

func init() {
	f := renderCmd.Flags()
	f.IntVarP(&renderOpts.step, "step", "s", 0, "Active step to preset (default: the template's own)")
	f.BoolVar(&renderOpts.refs, "refs", false, "Include data-fw-ref attributes")
	f.BoolVar(&renderOpts.formOnly, "form-only", false, "Print only the form element")
	f.StringVarP(&renderOpts.output, "output", "o", "", "Write to a file instead of stdout")
}

func runRender(cmd *cobra.Command, args []string) error {
	cfg, logger, closer, err := setup()
	if err != nil {
		return err
	}
	defer closer.Close()

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

	markers := wizard.DefaultMarkers()
	if cmd.Flags().Changed("step") {
		doc.Form().SetAttr(markers.StepAttr, strconv.Itoa(renderOpts.step))
	}

	c, err := wizard.Attach(doc.Form(), wizard.WithLogger(logger), wizard.WithMarkers(markers))
	if err != nil {
		return err
	}
	defer c.Destroy()

	logger.Debug("rendering wizard",
		logging.Int("step", c.ActiveStep()),
		logging.Int("steps", c.TotalSteps()),
	)

	if renderOpts.output == "" {
		return writeDocument(cmd.OutOrStdout(), doc)
	}

	f, err := os.Create(renderOpts.output)
	if err != nil {
		return fmt.Errorf("creating output: %w", err)
	}
	if err := writeDocument(f, doc); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing output: %w", err)
	}
	return nil
}

func writeDocument(out io.Writer, doc *dom.Document) error {
	var ropts []dom.RenderOption
	if renderOpts.refs {
		ropts = append(ropts, dom.WithRefs())
	}

	var err error
	if renderOpts.formOnly {
		err = doc.RenderForm(out, ropts...)
	} else {
		err = doc.Render(out, ropts...)
	}
	if err != nil {
		return fmt.Errorf("render: %w", err)
	}
	_, err = fmt.Fprintln(out)
	return err
}
