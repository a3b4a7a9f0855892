package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/synote"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of synote",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("synote version %s\n", strings.TrimSpace(synote.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
