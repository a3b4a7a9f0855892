package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"

	"github.com/aretw0/synote"
	synotelifecycle "github.com/aretw0/synote/pkg/adapters/lifecycle"
	"github.com/aretw0/synote/pkg/core"
)

const shellHelp = `Commands:
  ls                 list notes
  find <text>        search titles and content
  open <id>          make a note active
  new                create a note
  title <text>       edit the active note's title (saved after a pause)
  type <text>        replace the active note's content (saved after a pause)
  add <text>         append to the active note and save now
  show               print the active note
  rm [id]            delete a note (repeat to confirm)
  clear              empty the active note (repeat to confirm)
  copy | paste       clipboard to and from the active note
  status             save state of the active note
  signout            sign out (repeat to confirm)
  quit`

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Interactive session with live updates",
	Long:  `Shell keeps the session open: edits are debounced and changes made elsewhere are shown as they arrive.`,
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		withApp(func(ctx context.Context, a *app) error {
			ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
			defer stop()

			if _, err := a.session(ctx); err != nil {
				return err
			}

			// Notices and remote changes are printed as they arrive.
			src := synotelifecycle.NewSource(a.client.Events(), core.EventNotice, core.EventNoNote)
			if err := src.Start(ctx); err != nil {
				return err
			}
			go func() {
				for e := range src.Events() {
					fmt.Fprintf(os.Stderr, "\n%s\n> ", e)
				}
			}()

			fmt.Fprintln(os.Stderr, shellHelp)
			lines := make(chan string)
			go func() {
				defer close(lines)
				scanner := bufio.NewScanner(os.Stdin)
				for scanner.Scan() {
					lines <- scanner.Text()
				}
			}()

			for {
				fmt.Fprint(os.Stderr, "> ")
				select {
				case <-ctx.Done():
					return nil
				case line, ok := <-lines:
					if !ok {
						return nil
					}
					quit, err := runShellLine(ctx, a, line)
					if err != nil {
						fmt.Fprintf(os.Stderr, "error: %v\n", err)
					}
					if quit {
						return nil
					}
				}
			}
		})
	},
}

func runShellLine(ctx context.Context, a *app, line string) (quit bool, err error) {
	verb, rest, _ := strings.Cut(strings.TrimSpace(line), " ")
	rest = strings.TrimSpace(rest)

	if verb == "quit" || verb == "exit" {
		return true, nil
	}
	if verb == "" {
		return false, nil
	}
	if verb == "help" {
		fmt.Fprintln(os.Stderr, shellHelp)
		return false, nil
	}

	s := a.client.Session()
	if s == nil {
		return false, fmt.Errorf("not signed in")
	}

	switch verb {
	case "ls":
		return false, printNotes(s.Notes(), false)
	case "find":
		return false, printNotes(s.Search(rest), false)
	case "open":
		return false, open(ctx, s, rest)
	case "new":
		id, err := s.NewNote(ctx)
		if err == nil {
			fmt.Println(id)
		}
		return false, err
	case "title":
		return false, s.EditTitle(rest)
	case "type":
		expanded, err := s.EditContent(rest)
		if err == nil && expanded != rest {
			fmt.Println(expanded)
		}
		return false, err
	case "add":
		return false, s.Append(rest)
	case "show":
		ed := s.Editor()
		if ed.NoteID == "" {
			return false, core.ErrNoActiveNote
		}
		fmt.Printf("# %s\n%s\n", ed.Title, ed.Content)
		return false, nil
	case "rm":
		id := rest
		if id == "" {
			n, ok := s.Active()
			if !ok {
				return false, core.ErrNoActiveNote
			}
			id = n.ID
		}
		_, err := s.Delete(ctx, id)
		return false, err
	case "clear":
		_, err := s.Clear()
		return false, err
	case "copy":
		return false, clipboard.WriteAll(s.Editor().Content)
	case "paste":
		text, err := clipboard.ReadAll()
		if err != nil {
			return false, err
		}
		return false, s.Append(text)
	case "status":
		st := s.SaveState()
		if st.Err != nil {
			fmt.Printf("%s: %v\n", st.State, st.Err)
		} else {
			fmt.Println(st.State)
		}
		return false, nil
	case "signout":
		decision, err := a.client.SignOut(ctx)
		if err == nil && decision == synote.Confirmed {
			a.forgetToken()
			return true, nil
		}
		return false, err
	}
	return false, fmt.Errorf("unknown command %q (try help)", verb)
}

func init() {
	rootCmd.AddCommand(shellCmd)
}
