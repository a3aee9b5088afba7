package cmd

import (
	"fmt"
	"os"

	"github.com/nofone/solmatch/internal/narrative"

	"github.com/spf13/cobra"
)

var selfcheckCmd = &cobra.Command{
	Use:   "selfcheck",
	Short: "Verify the narrative repair, validation, and fallback paths against embedded fixtures",
	Run: func(_ *cobra.Command, _ []string) {
		if err := narrative.SelfCheck(); err != nil {
			fmt.Fprintf(os.Stderr, "selfcheck failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("selfcheck passed")
	},
}

func init() {
	rootCmd.AddCommand(selfcheckCmd)
}
