// Command feedctl runs maintenance tasks against the feed database.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"socialapp/internal/bootstrap"
	"socialapp/internal/config"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "feedctl",
		Short:        "Maintenance tasks for the social feed backend",
		SilenceUsage: true,
	}
	root.AddCommand(newReconcileCmd(), newSeedCmd())
	return root
}

// withRuntime loads configuration, opens the runtime, runs fn and closes
// the runtime again.
func withRuntime(ctx context.Context, fn func(context.Context, *bootstrap.Runtime) error) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	rt, err := bootstrap.InitRuntime(cfg, bootstrap.Options{ServiceName: "socialapp-feedctl"})
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = rt.Close(closeCtx)
	}()

	return fn(ctx, rt)
}
