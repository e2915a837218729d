package main

import (
	"context"
	"fmt"

	"socialapp/internal/bootstrap"
	"socialapp/internal/seed"

	"github.com/spf13/cobra"
)

func newSeedCmd() *cobra.Command {
	opts := seed.DefaultOptions()

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Populate the database with demo users, posts, comments and likes",
		Args:  cobra.NoArgs,
		PreRunE: func(_ *cobra.Command, _ []string) error {
			if opts.NumUsers < 1 {
				return fmt.Errorf("--users must be at least 1")
			}
			if opts.ReplyRatio < 0 || opts.ReplyRatio > 1 || opts.LikeRatio < 0 || opts.LikeRatio > 1 {
				return fmt.Errorf("ratios must be between 0 and 1")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *bootstrap.Runtime) error {
				summary, err := seed.NewSeeder(rt.DB).Run(ctx, opts)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created %d users, %d posts, %d comments, %d likes\n",
					summary.Users, summary.Posts, summary.Comments, summary.Likes)
				return nil
			})
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&opts.NumUsers, "users", opts.NumUsers, "number of users to create")
	flags.IntVar(&opts.NumPosts, "posts", opts.NumPosts, "number of posts to create")
	flags.IntVar(&opts.CommentsPerPost, "comments", opts.CommentsPerPost, "comments per post")
	flags.Float64Var(&opts.ReplyRatio, "reply-ratio", opts.ReplyRatio, "share of comments posted as replies")
	flags.Float64Var(&opts.LikeRatio, "like-ratio", opts.LikeRatio, "chance that a user likes a given post or comment")
	flags.Int64Var(&opts.Seed, "seed", 0, "random seed (0 picks one)")
	return cmd
}
