// entitykit serves the catalog resources over HTTP.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/binaryburst/entitykit/internal/app"
	"github.com/binaryburst/entitykit/internal/config"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configFile string

	load := func() (config.Config, error) {
		return config.Load(config.Options{ConfigFile: configFile})
	}

	root := &cobra.Command{
		Use:           "entitykit",
		Short:         "CRUD service for products and tags",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configFile, "config", "c", "", "path of a YAML configuration file")

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			gin.SetMode(gin.ReleaseMode)
			return app.Serve(cmd.Context(), cfg)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the schema of the configured store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if err := app.Migrate(cmd.Context(), cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s store is up to date\n", cfg.Store.Kind)
			return nil
		},
	})

	return root
}
