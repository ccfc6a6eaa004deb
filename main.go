package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	configPath string
	appConfig  *Config
)

var rootCmd = &cobra.Command{
	Use:           "oasis",
	Short:         "Backup and restore the navigation database across MySQL, PostgreSQL and SQLite",
	SilenceUsage:  true,
	SilenceErrors: true,
	Version:       versionString(),
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(configPath, cmd.Flags().Changed("config"))
		if err != nil {
			return err
		}
		setupLogging(cfg.Log)
		appConfig = cfg
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath, "path to TOML config file")

	rootCmd.AddCommand(
		newBackupCmd(),
		newRestoreCmd(),
		newTransferCmd(),
		newServeCmd(),
		newTestConnectionCmd(),
		newValidateScheduleCmd(),
		newTablesCmd(),
		newCountCmd(),
		newDescribeCmd(),
		newStatusCmd(),
		newTargetCmd(),
	)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
