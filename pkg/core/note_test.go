package core_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/aretw0/synote/pkg/core"
)

func TestNote_DisplayTitle(t *testing.T) {
	assert.Equal(t, core.DefaultTitle, core.Note{}.DisplayTitle())
	assert.Equal(t, core.DefaultTitle, core.Note{Title: "   "}.DisplayTitle())
	assert.Equal(t, "Groceries", core.Note{Title: "Groceries"}.DisplayTitle())
}

func TestNote_SortKey(t *testing.T) {
	created := time.Unix(100, 0)
	updated := time.Unix(200, 0)
	n := core.Note{CreatedAt: created, UpdatedAt: updated}

	assert.Equal(t, created, n.SortKey(core.SortCreatedAt))
	assert.Equal(t, updated, n.SortKey(core.SortUpdatedAt))
	assert.True(t, core.SortCreatedAt.Valid())
	assert.False(t, core.SortField("title").Valid())
}

func TestPatch_Apply(t *testing.T) {
	base := core.Note{ID: "1", Title: "old", Content: "Zm9v", Compressed: true}

	assert.True(t, core.Patch{}.Empty())
	assert.Equal(t, base, core.Patch{}.Apply(base))

	// A plain content write clears the compressed flag.
	got := core.Patch{}.WithContent("plain", false).Apply(base)
	assert.Equal(t, "old", got.Title)
	assert.Equal(t, "plain", got.Content)
	assert.False(t, got.Compressed)

	ts := time.Unix(300, 0)
	got = core.Patch{}.WithTitle("new").WithUpdatedAt(ts).Apply(base)
	assert.Equal(t, "new", got.Title)
	assert.Equal(t, ts, got.UpdatedAt)
	assert.True(t, got.Compressed)
	assert.Equal(t, "old", base.Title, "apply must not mutate the input")
}

func TestErrors(t *testing.T) {
	cause := errors.New("permission denied")

	err := core.NewRepositoryError("update", "42", cause)
	var repoErr *core.RepositoryError
	assert.ErrorAs(t, err, &repoErr)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "update 42 failed: permission denied", err.Error())

	// Already-wrapped errors are not wrapped twice.
	again := core.NewRepositoryError("save", "", fmt.Errorf("context: %w", err))
	assert.ErrorAs(t, again, &repoErr)
	assert.Equal(t, "update", repoErr.Op)

	assert.Nil(t, core.NewRepositoryError("update", "1", nil))

	authErr := &core.AuthError{Op: "Sign-in", Err: cause}
	assert.Equal(t, "Sign-in failed: permission denied", authErr.Error())
	assert.ErrorIs(t, authErr, cause)

	v := &core.ValidationError{Field: "email", Message: "Please enter your email address."}
	assert.Equal(t, "Please enter your email address.", v.Error())
}

func TestEvent_String(t *testing.T) {
	assert.Equal(t, "NOTES", core.NewEvent(core.EventNotes, "").String())
	assert.Equal(t, "ACTIVE 7", core.NewEvent(core.EventActive, "7").String())
	assert.Equal(t, "NOTICE[error] boom", core.NewNotice(core.NoticeError, "boom").String())
}
