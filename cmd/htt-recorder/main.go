package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/holdthatthought/htt-recorder/internal/config"
	"github.com/holdthatthought/htt-recorder/internal/diaglog"
)

// Version is set at build time via -ldflags "-X main.Version=..."
var Version = "dev"

type rootOptions struct {
	configPath string
	envFile    string
	cfg        *config.Config
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "htt-recorder",
		Short: "Background microphone recorder for Hold That Thought",
		Long: "htt-recorder keeps recording audio to a file while the UI is in the\n" +
			"background or the screen is locked. Run `htt-recorder serve` as the\n" +
			"resident daemon and drive it with start/stop or the HTTP API.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadDotEnv(opts.envFile); err != nil {
				return err
			}
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			opts.cfg = cfg
			diaglog.Version = Version
			return nil
		},
	}
	root.Version = Version
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default ~/.config/htt/config.toml)")
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file with HTT_* overrides")

	root.AddCommand(
		newServeCmd(opts),
		newStartCmd(opts),
		newStopCmd(opts),
		newStatusCmd(opts),
		newDoctorCmd(opts),
		newExportDiagCmd(opts),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		// Skip config loading.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "htt-recorder %s\n", Version)
		},
	}
}
