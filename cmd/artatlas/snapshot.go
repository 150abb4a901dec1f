package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/manas-droid/ArtAtlas/engine/domain"
	"github.com/manas-droid/ArtAtlas/engine/view"
)

func (a *app) withStore(ctx context.Context, f func(SnapshotStore) error) error {
	store, err := a.openStore(ctx, a.cfg)
	if err != nil {
		return err
	}
	defer store.Close(ctx)
	return f(store)
}

func (a *app) snapshotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Archive and replay backend responses in Neo4j",
	}

	save := &cobra.Command{
		Use:   "save <id> [file|-]",
		Short: "Store a raw backend response under id",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := a.readInput(args[1:])
			if err != nil {
				return err
			}
			resp, err := domain.Decode(data)
			if err != nil {
				return err
			}
			return a.withStore(cmd.Context(), func(s SnapshotStore) error {
				if err := s.Save(cmd.Context(), args[0], resp); err != nil {
					return err
				}
				a.logger.Info("snapshot saved", "id", args[0], "nodes", len(resp.Nodes()), "edges", len(resp.Edges()))
				fmt.Fprintln(cmd.OutOrStdout(), args[0])
				return nil
			})
		},
	}

	var raw bool
	explainCmd := &cobra.Command{
		Use:   "explain <id>",
		Short: "Resolve a stored snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd.Context(), func(s SnapshotStore) error {
				resp, err := s.Load(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if raw {
					return a.printJSON(resp)
				}
				return a.printJSON(view.Compose(resp))
			})
		},
	}
	explainCmd.Flags().BoolVar(&raw, "raw", false, "print the stored response instead of the display model")

	list := &cobra.Command{
		Use:   "list",
		Short: "List stored snapshots, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withStore(cmd.Context(), func(s SnapshotStore) error {
				infos, err := s.List(cmd.Context())
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tSAVED\tNODES\tEDGES\tQUERY")
				for _, in := range infos {
					fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n", in.ID, in.SavedAt.Format(time.RFC3339), in.Nodes, in.Edges, in.Query)
				}
				return tw.Flush()
			})
		},
	}

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Remove a stored snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd.Context(), func(s SnapshotStore) error {
				return s.Delete(cmd.Context(), args[0])
			})
		},
	}

	cmd.AddCommand(save, explainCmd, list, del)
	return cmd
}
