package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/aretw0/synote"
	"github.com/aretw0/synote/pkg/core"
)

var (
	showJSON    bool
	showYAML    bool
	writeAppend bool
	deleteYes   bool
)

// noteView is a note with its content decoded.
type noteView struct {
	ID        string    `json:"id" yaml:"id"`
	Title     string    `json:"title" yaml:"title"`
	Content   string    `json:"content" yaml:"content"`
	CreatedAt time.Time `json:"createdAt" yaml:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" yaml:"updatedAt"`
}

func lookupNote(s *synote.Session, id string) (core.Note, error) {
	for _, n := range s.Notes() {
		if n.ID == id {
			return n, nil
		}
	}
	return core.Note{}, fmt.Errorf("note %s: %w", id, core.ErrNotFound)
}

// open selects id and waits until its stored fields reached the editor.
func open(ctx context.Context, s *synote.Session, id string) error {
	if err := s.Select(id); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, readyTimeout)
	defer cancel()
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for !s.Loaded() {
		select {
		case <-ctx.Done():
			return fmt.Errorf("note %s did not load: %w", id, ctx.Err())
		case <-ticker.C:
		}
	}
	return nil
}

var showCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Print a note",
	Long:  `Print the content of a note. --json or --yaml print the whole note.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		withApp(func(ctx context.Context, a *app) error {
			s, err := a.session(ctx)
			if err != nil {
				return err
			}
			n, err := lookupNote(s, args[0])
			if err != nil {
				return err
			}
			content, _ := s.Content(n.ID)
			view := noteView{ID: n.ID, Title: n.DisplayTitle(), Content: content, CreatedAt: n.CreatedAt, UpdatedAt: n.UpdatedAt}

			switch {
			case showJSON:
				encoder := json.NewEncoder(os.Stdout)
				encoder.SetIndent("", "  ")
				return encoder.Encode(view)
			case showYAML:
				encoder := yaml.NewEncoder(os.Stdout)
				defer encoder.Close()
				return encoder.Encode(view)
			}
			fmt.Print(content)
			if content != "" && !strings.HasSuffix(content, "\n") {
				fmt.Println()
			}
			return nil
		})
	},
}

var newCmd = &cobra.Command{
	Use:   "new [title]",
	Short: "Create a note and print its id",
	Args:  cobra.ArbitraryArgs,
	Run: func(cmd *cobra.Command, args []string) {
		withApp(func(ctx context.Context, a *app) error {
			s, err := a.session(ctx)
			if err != nil {
				return err
			}
			id, err := s.NewNote(ctx)
			if err != nil {
				return err
			}
			if title := strings.Join(args, " "); title != "" {
				if err := s.Rename(ctx, id, title); err != nil {
					return err
				}
			}
			fmt.Println(id)
			return nil
		})
	},
}

var renameCmd = &cobra.Command{
	Use:   "rename [id] [title]",
	Short: "Rename a note",
	Args:  cobra.MinimumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		withApp(func(ctx context.Context, a *app) error {
			s, err := a.session(ctx)
			if err != nil {
				return err
			}
			if _, err := lookupNote(s, args[0]); err != nil {
				return err
			}
			return s.Rename(ctx, args[0], strings.Join(args[1:], " "))
		})
	},
}

var writeCmd = &cobra.Command{
	Use:   "write [id] [text]",
	Short: "Replace (or --append to) the content of a note",
	Long: `Write sets the content of a note from the arguments, or from stdin when no text is given.
A trailing "= " after an arithmetic expression is replaced by its result.`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		withApp(func(ctx context.Context, a *app) error {
			s, err := a.session(ctx)
			if err != nil {
				return err
			}
			text := strings.Join(args[1:], " ")
			if len(args) == 1 {
				raw, err := io.ReadAll(os.Stdin)
				if err != nil {
					return err
				}
				text = string(raw)
			}
			if err := open(ctx, s, args[0]); err != nil {
				return err
			}

			if writeAppend {
				err = s.Append(text)
			} else {
				var expanded string
				expanded, err = s.EditContent(text)
				if expanded != text {
					fmt.Print(expanded)
				}
			}
			if err != nil {
				return err
			}
			return s.Flush(ctx)
		})
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete [id...]",
	Short: "Delete one or more notes",
	Long:  `Delete permanently removes notes. Confirmation is asked unless --yes is given.`,
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		withApp(func(ctx context.Context, a *app) error {
			s, err := a.session(ctx)
			if err != nil {
				return err
			}
			for _, id := range args {
				if _, err := lookupNote(s, id); err != nil {
					return err
				}
			}

			request := func() (synote.Decision, error) {
				if len(args) == 1 {
					return s.Delete(ctx, args[0])
				}
				return s.BatchDelete(ctx, args)
			}

			decision, err := request()
			if err != nil || decision == synote.Confirmed {
				return err
			}
			if !deleteYes && !confirm(fmt.Sprintf("Delete %d note(s)?", len(args))) {
				fmt.Println("Cancelled")
				return nil
			}
			// The second request must land inside the confirmation window.
			if decision, err = request(); err != nil {
				return err
			}
			if decision != synote.Confirmed {
				return fmt.Errorf("confirmation window expired, run delete again")
			}
			fmt.Printf("Deleted %d note(s)\n", len(args))
			return nil
		})
	},
}

func init() {
	showCmd.Flags().BoolVar(&showJSON, "json", false, "Output in JSON format")
	showCmd.Flags().BoolVar(&showYAML, "yaml", false, "Output in YAML format")
	writeCmd.Flags().BoolVar(&writeAppend, "append", false, "Append instead of replacing")
	deleteCmd.Flags().BoolVarP(&deleteYes, "yes", "y", false, "Do not ask for confirmation")
	rootCmd.AddCommand(showCmd, newCmd, renameCmd, writeCmd, deleteCmd)
}
