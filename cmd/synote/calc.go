package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/synote/pkg/calc"
)

var calcCmd = &cobra.Command{
	Use:   "calc [expression]",
	Short: "Evaluate an arithmetic expression the way notes do",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		result, err := calc.Eval(strings.Join(args, " "))
		if err != nil {
			fatal("Error", err)
		}
		fmt.Println(result)
	},
}

func init() {
	rootCmd.AddCommand(calcCmd)
}
