package main

import (
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildSynoteBinary builds the CLI into dir and returns its path.
func buildSynoteBinary(t *testing.T, dir string) string {
	t.Helper()
	bin := filepath.Join(dir, "synote.exe")
	buildCmd := exec.Command("go", "build", "-o", bin, ".")
	if out, err := buildCmd.CombinedOutput(); err != nil {
		t.Fatalf("Failed to build synote: %v\n%s", err, string(out))
	}
	return bin
}

// cli runs the binary against a private data directory.
type cli struct {
	t    *testing.T
	bin  string
	data string
}

func (c cli) run(stdin string, args ...string) (string, error) {
	c.t.Helper()
	cmd := exec.Command(c.bin, append([]string{"--data", c.data}, args...)...)
	cmd.Dir = c.data
	cmd.Stdin = strings.NewReader(stdin)
	cmd.Env = append(os.Environ(), "SYNOTE_DEBOUNCE_DELAY=50ms")
	out, err := cmd.Output()
	return string(out), err
}

func (c cli) mustRun(stdin string, args ...string) string {
	c.t.Helper()
	out, err := c.run(stdin, args...)
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			c.t.Fatalf("synote %v failed: %v\n%s", args, err, exitErr.Stderr)
		}
		c.t.Fatalf("synote %v failed: %v", args, err)
	}
	return out
}

func TestCLI_GuestNoteLifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("builds the binary")
	}
	tmp := t.TempDir()
	c := cli{t: t, bin: buildSynoteBinary(t, tmp), data: filepath.Join(tmp, ".synote")}
	require.NoError(t, os.MkdirAll(c.data, 0o700))

	_, err := c.run("", "list")
	require.Error(t, err, "listing before sign-in fails")

	c.mustRun("", "guest")
	assert.Contains(t, c.mustRun("", "whoami"), "guest")

	id := strings.TrimSpace(c.mustRun("", "new", "Shopping"))
	require.NotEmpty(t, id)

	c.mustRun("", "write", id, "milk")
	c.mustRun("", "write", "--append", id, " and eggs")
	assert.Equal(t, "milk and eggs\n", c.mustRun("", "show", id))

	var notes []struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	}
	require.NoError(t, json.Unmarshal([]byte(c.mustRun("", "list", "--json")), &notes))
	require.Len(t, notes, 1)
	assert.Equal(t, "Shopping", notes[0].Title)

	assert.Contains(t, c.mustRun("", "search", "EGGS"), id)
	assert.Contains(t, c.mustRun("", "list", "--match", "shop*"), id)

	// Answering no keeps the note.
	assert.Contains(t, c.mustRun("n\n", "delete", id), "Cancelled")
	c.mustRun("", "delete", "--yes", id)
	require.NoError(t, json.Unmarshal([]byte(c.mustRun("", "list", "--json")), &notes))
	assert.Empty(t, notes)

	c.mustRun("y\n", "signout")
	_, err = c.run("", "whoami")
	assert.Error(t, err)
}

func TestCLI_AccountAndCalc(t *testing.T) {
	if testing.Short() {
		t.Skip("builds the binary")
	}
	tmp := t.TempDir()
	c := cli{t: t, bin: buildSynoteBinary(t, tmp), data: filepath.Join(tmp, ".synote")}
	require.NoError(t, os.MkdirAll(c.data, 0o700))

	c.mustRun("", "signup", "ada@example.com", "--password", "secret1")
	id := strings.TrimSpace(c.mustRun("", "new", "Budget"))
	assert.Equal(t, "2+3=5", c.mustRun("", "write", id, "2+3="))
	assert.Equal(t, "2+3=5\n", c.mustRun("", "show", id))

	_, err := c.run("", "signin", "ada@example.com", "--password", "wrong-password")
	assert.Error(t, err)

	assert.Equal(t, "42\n", c.mustRun("", "calc", "6", "*", "7"))
}
