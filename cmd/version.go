package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of vmlink",
		Long:  `All software has versions. This is vmlink's.`,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("vmlink version %s\n", rootCmd.Version)
		},
	}
}
