package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rillToMe/CrypShare/internal/listing"
	"github.com/rillToMe/CrypShare/internal/logging"
	"github.com/rillToMe/CrypShare/internal/publish"
	"github.com/rillToMe/CrypShare/internal/retry"
	"github.com/rillToMe/CrypShare/internal/view"
)

func newRenderCmd() *cobra.Command {
	var (
		output   string
		template string
		cold     bool
		exclude  []string
	)

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render the page once and publish it",
		Long: `render fetches the listing once, renders it into the files page and
publishes the result to the configured sinks, or to stdout when none is
configured. With --cold the page is rendered from its embedded listing
without contacting the listing endpoint.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fs := cmd.Flags()
			if fs.Changed("output") {
				cfg.OutputFile = output
			}
			if fs.Changed("template") {
				cfg.TemplateFile = template
			}
			if fs.Changed("exclude") {
				cfg.Exclude = exclude
			}
			return runRender(cmd.Context(), cmd.OutOrStdout(), cold)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&output, "output", "o", "", "write the page to this file")
	f.StringVar(&template, "template", "", "local page template")
	f.BoolVar(&cold, "cold", false, "render the embedded listing without fetching")
	f.StringSliceVar(&exclude, "exclude", nil, "glob patterns of entry names to hide")

	return cmd
}

func runRender(ctx context.Context, stdout io.Writer, cold bool) error {
	filter, err := listing.NewFilter(cfg.Exclude)
	if err != nil {
		return err
	}
	c := newClient(cfg)

	page, err := loadPage(ctx, cfg, c)
	if err != nil {
		return err
	}
	session, err := newSession(page, cfg, filter)
	if err != nil {
		return err
	}
	if !session.HasTargets() {
		return view.ErrNoTargets
	}

	var snap listing.Snapshot
	if cold {
		snap = session.ColdStart()
	} else {
		fragment, err := c.FetchListing(ctx)
		if err != nil {
			return fmt.Errorf("fetch listing: %w", err)
		}
		snap = session.ProjectFragment(fragment)
	}
	logging.Info("page rendered", zap.Int("entries", len(snap)), zap.Bool("cold", cold))

	sinks, err := buildSinks(ctx, cfg)
	if err != nil {
		return err
	}
	if len(sinks) == 0 {
		sinks = append(sinks, publish.NewWriterSink(stdout))
	}
	return publish.NewPublisher(retry.DefaultConfig(), sinks...).Publish(ctx, []byte(session.Render()))
}
