package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  `Print the version number of veloquery.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("veloquery version %s\n", appVersion)
	},
}
