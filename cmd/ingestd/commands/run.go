package commands

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the ingestion daemon, executing a full pass daily at 01:00.",
	RunE: func(cmd *cobra.Command, args []string) error {
		o, cleanup, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		err = o.Run(cmd.Context())
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

var onceCmd = &cobra.Command{
	Use:   "once",
	Short: "Run a single ingestion pass and exit.",
	RunE: func(cmd *cobra.Command, args []string) error {
		o, cleanup, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		return o.RunOnce(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(onceCmd)
}
