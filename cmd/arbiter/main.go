package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mistakeknot/arbiter/internal/auth"
	"github.com/mistakeknot/arbiter/internal/cli"
	"github.com/mistakeknot/arbiter/internal/config"
	"github.com/mistakeknot/arbiter/pkg/embedded"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "arbiter",
		Short: "Conflict resolution and resource transfer server for multi-agent workspaces",
	}
	root.AddCommand(serveCmd(), initCmd())
	return root
}

func serveCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the arbiter server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			srv, err := embedded.New(cfg)
			if err != nil {
				return err
			}
			if err := srv.Start(); err != nil {
				return err
			}
			log.Printf("arbiter: listening on %s", srv.Addr())

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
			<-stop

			log.Printf("arbiter: shutting down")
			return srv.Stop()
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to the YAML config file")
	return cmd
}

func initCmd() *cobra.Command {
	var (
		keysFile string
		project  string
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Generate an API key for a project and write it to the keys file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := keysFile
			if path == "" {
				path = auth.ResolveKeysPath()
			}
			key, err := cli.AddProjectKey(path, project)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "project: %s\nkeys file: %s\napi key: %s\n", project, path, key)
			return nil
		},
	}
	cmd.Flags().StringVar(&keysFile, "keys-file", "", "path to the keys file")
	cmd.Flags().StringVar(&project, "project", "dev", "project the key belongs to")
	return cmd
}
