package lifecycle_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	synotelifecycle "github.com/aretw0/synote/pkg/adapters/lifecycle"
	"github.com/aretw0/synote/pkg/core"
)

func TestSource_ForwardsFilteredEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	in := make(chan core.Event, 4)
	src := synotelifecycle.NewSource(in, core.EventNotice)
	require.NoError(t, src.Start(ctx))

	in <- core.NewEvent(core.EventNotes, "")
	in <- core.NewNotice(core.NoticeSuccess, "Note deleted.")
	close(in)

	select {
	case e := <-src.Events():
		assert.Equal(t, "NOTICE[success] Note deleted.", e.String())
	case <-time.After(time.Second):
		t.Fatal("no event forwarded")
	}

	select {
	case _, ok := <-src.Events():
		assert.False(t, ok, "output closes with the input")
	case <-time.After(time.Second):
		t.Fatal("output not closed")
	}
}
