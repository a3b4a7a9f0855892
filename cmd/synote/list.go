package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/aretw0/synote/pkg/core"
)

var (
	listJSON  bool
	listMatch string
)

func printNotes(notes []core.Note, asJSON bool) error {
	if asJSON {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(notes)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tUPDATED")
	for _, n := range notes {
		updated := "-"
		if !n.UpdatedAt.IsZero() {
			updated = n.UpdatedAt.Local().Format(time.DateTime)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", n.ID, n.DisplayTitle(), updated)
	}
	return w.Flush()
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List notes, newest first",
	Long:  `List all notes of the signed-in user. --match filters titles with a glob such as "meeting-*".`,
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		withApp(func(ctx context.Context, a *app) error {
			s, err := a.session(ctx)
			if err != nil {
				return err
			}
			notes := s.Notes()
			if listMatch != "" {
				if notes, err = s.Match(listMatch); err != nil {
					return err
				}
			}
			return printNotes(notes, listJSON)
		})
	},
}

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Find notes whose title or content contains the query",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		withApp(func(ctx context.Context, a *app) error {
			s, err := a.session(ctx)
			if err != nil {
				return err
			}
			return printNotes(s.Search(strings.Join(args, " ")), listJSON)
		})
	},
}

func init() {
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Output in JSON format")
	listCmd.Flags().StringVar(&listMatch, "match", "", "Glob over note titles")
	searchCmd.Flags().BoolVar(&listJSON, "json", false, "Output in JSON format")
	rootCmd.AddCommand(listCmd, searchCmd)
}
