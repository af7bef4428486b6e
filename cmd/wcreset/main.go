package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/aluiziolira/woo-export/config"
	"github.com/aluiziolira/woo-export/pipeline"
	"github.com/aluiziolira/woo-export/projection"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd(stdout io.Writer) *cobra.Command {
	var (
		dir      string
		prefixes []string
	)

	cmd := &cobra.Command{
		Use:           "wcreset",
		Short:         "Remove export files left by previous runs.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			removed, err := pipeline.Reset(dir, prefixes...)
			for _, path := range removed {
				fmt.Fprintln(stdout, "removed", path)
			}
			if len(removed) == 0 && err == nil {
				fmt.Fprintln(stdout, "nothing to remove in", dir)
			}
			if err != nil {
				slog.Error("reset incomplete", slog.String("dir", dir), slog.Any("error", err))
			}
			return err
		},
	}

	cmd.Flags().StringVar(&dir, "dir", config.DefaultConfig().OutputDir, "Directory holding export files")
	cmd.Flags().StringSliceVar(&prefixes, "prefix", projection.FilePrefixes(), "File prefixes to remove")
	return cmd
}
