package main

import (
	"context"
	"fmt"

	"socialapp/internal/bootstrap"
	"socialapp/internal/repository"
	"socialapp/internal/service"

	"github.com/spf13/cobra"
)

func newReconcileCmd() *cobra.Command {
	var postID uint

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Recompute like and comment counters and repair drift",
		Long: `Recount likes and comments for every post (or a single post with --post)
and overwrite any denormalized counter that disagrees with the rows.

Examples:
  feedctl reconcile
  feedctl reconcile --post 42`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *bootstrap.Runtime) error {
				svc := service.NewReconcileService(
					repository.NewPostRepository(rt.DB),
					repository.NewTransactor(rt.DB),
				)

				var (
					report *service.Report
					err    error
				)
				if postID != 0 {
					report, err = svc.ReconcilePost(ctx, postID)
				} else {
					report, err = svc.ReconcileAll(ctx)
				}
				if err != nil {
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(),
					"posts scanned: %d, repaired: %d; comments scanned: %d, repaired: %d\n",
					report.PostsScanned, report.PostsRepaired,
					report.CommentsScanned, report.CommentsRepaired)
				return nil
			})
		},
	}

	cmd.Flags().UintVar(&postID, "post", 0, "reconcile only this post id")
	return cmd
}
