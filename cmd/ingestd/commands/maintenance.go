package commands

import (
	"strings"

	"github.com/spf13/cobra"
)

// One-off equivalents of the command-file verbs, for operators who want to
// run maintenance immediately instead of queueing it for the nightly pass.

var courseCmd = &cobra.Command{
	Use:   "course <dept> <page,page,...>",
	Short: "Re-scrape catalog pages for a department and replace course rows.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		o, cleanup, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		return o.ReingestCatalog(cmd.Context(), args[0], strings.Split(args[1], ","))
	},
}

var ecisCmd = &cobra.Command{
	Use:   "ecis <path> <sheet,sheet,...>",
	Short: "Re-parse the named sheets of a survey score report.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		o, cleanup, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		return o.ReingestScores(cmd.Context(), args[0], strings.Split(args[1], ","))
	},
}

var profCourseCmd = &cobra.Command{
	Use:   "prof-course <path>",
	Short: "Merge a schedule extract from local disk.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		o, cleanup, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		return o.ReingestSections(cmd.Context(), args[0])
	},
}

func init() {
	rootCmd.AddCommand(courseCmd)
	rootCmd.AddCommand(ecisCmd)
	rootCmd.AddCommand(profCourseCmd)
}
