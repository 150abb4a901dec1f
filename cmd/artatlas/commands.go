package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/manas-droid/ArtAtlas/engine/domain"
	"github.com/manas-droid/ArtAtlas/engine/explain"
	"github.com/manas-droid/ArtAtlas/engine/search"
	"github.com/manas-droid/ArtAtlas/engine/view"
	"github.com/manas-droid/ArtAtlas/pkg/natsutil"
)

var (
	errNoNATS      = errors.New("nats.url is not configured")
	errGraphErrors = errors.New("explanation graph has errors")
)

func (a *app) connectNATS(name string) (*nats.Conn, error) {
	if a.cfg.NATS.URL == "" {
		return nil, errNoNATS
	}
	nc, err := nats.Connect(a.cfg.NATS.URL, nats.Name(name))
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return nc, nil
}

func (a *app) resolveCmd() *cobra.Command {
	var viaNATS, ranked bool
	cmd := &cobra.Command{
		Use:   "resolve [file|-]",
		Short: "Resolve a raw backend response into the display model",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := a.readInput(args)
			if err != nil {
				return err
			}
			if viaNATS {
				nc, err := a.connectNATS("artatlas-cli")
				if err != nil {
					return err
				}
				defer nc.Close()
				ui, err := natsutil.Request[json.RawMessage, view.UIModel](cmd.Context(), nc, a.cfg.NATS.ResolveSubject, json.RawMessage(data))
				if err != nil {
					return err
				}
				return a.printJSON(ui)
			}
			res, err := view.Pipeline()(cmd.Context(), data).Unwrap()
			if err != nil {
				return err
			}
			if ranked {
				return a.printJSON(res.Ranked)
			}
			return a.printJSON(res.UI)
		},
	}
	cmd.Flags().BoolVar(&viaNATS, "nats", false, "resolve through the NATS resolver worker")
	cmd.Flags().BoolVar(&ranked, "ranked", false, "print the ranked full-result list instead")
	return cmd
}

func (a *app) searchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Query the search backend and print the display model",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query, err := domain.NormalizeQuery(strings.Join(args, " "))
			if err != nil {
				return err
			}
			s, err := a.newSearcher(a.cfg, a.logger)
			if err != nil {
				return err
			}
			resp, err := s.Search(cmd.Context(), query)
			if err != nil {
				if msg := search.UserMessage(err); msg != "" {
					return errors.New(msg)
				}
				return err
			}
			return a.printJSON(view.Compose(resp))
		},
	}
}

func (a *app) validateCmd() *cobra.Command {
	var strict, allowOrphans bool
	cmd := &cobra.Command{
		Use:   "validate [file|-]",
		Short: "Check an explanation graph; exits 1 when it has errors",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			data, err := a.readInput(args)
			if err != nil {
				return err
			}
			resp, err := domain.Decode(data)
			if err != nil {
				return err
			}
			opts := explain.DefaultValidateOpts
			opts.StrictProvenance = strict
			opts.RequireNoOrphans = !allowOrphans
			rep := explain.Validate(resp.ExplanationGraph.Value(), opts)
			if err := a.printJSON(rep); err != nil {
				return err
			}
			if !rep.OK() {
				return fmt.Errorf("%w: %d", errGraphErrors, len(rep.Errors))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "treat non-standard provenance as an error")
	cmd.Flags().BoolVar(&allowOrphans, "allow-orphans", false, "do not report nodes without edges")
	return cmd
}
