package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aretw0/synote/pkg/adapters/docstore"
	"github.com/aretw0/synote/pkg/adapters/remote"
	"github.com/aretw0/synote/pkg/codec"
	"github.com/aretw0/synote/pkg/core"
	"github.com/aretw0/synote/pkg/session"
)

func main() {
	count := flag.Int("count", 1000, "Number of notes to generate")
	keep := flag.Bool("keep", false, "Keep the benchmark database after running")
	flag.Parse()

	// 1. Setup database
	benchDir, err := os.MkdirTemp("", "synote_bench_")
	if err != nil {
		panic(err)
	}
	defer func() {
		if !*keep {
			os.RemoveAll(benchDir)
		} else {
			fmt.Printf("Keeping bench dir: %s\n", benchDir)
		}
	}()
	path := filepath.Join(benchDir, "notes.db")
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))
	ctx := context.TODO()

	db, err := docstore.OpenBolt(path, docstore.WithLogger(logger))
	if err != nil {
		panic(err)
	}
	repo, err := remote.NewRepository(db, remote.Config{UserID: "bench", Logger: logger})
	if err != nil {
		panic(err)
	}

	fmt.Printf("Generating %d notes in %s...\n", *count, path)
	z := codec.NewZstd()
	body := strings.Repeat("This is a benchmark note. ", 40)
	startGen := time.Now()
	for i := 0; i < *count; i++ {
		content, compressed, err := codec.Encode(z, body)
		if err != nil {
			panic(err)
		}
		patch := core.Patch{}.WithTitle(fmt.Sprintf("Note %d", i)).WithContent(content, compressed)
		if _, err := repo.Create(ctx, patch); err != nil {
			panic(err)
		}
	}
	fmt.Printf("Generation took: %v\n", time.Since(startGen))
	db.Close()

	// 2. Cold start: time to the first snapshot of a fresh session
	cold := firstSnapshot(ctx, path, logger)
	// 3. Warm: same again with the OS page cache populated
	warm := firstSnapshot(ctx, path, logger)

	fmt.Printf("--------------------------------------------------\n")
	fmt.Printf("Benchmark Result (%d notes):\n", *count)
	fmt.Printf("  Cold: %v\n", cold)
	fmt.Printf("  Warm: %v\n", warm)
	fmt.Printf("--------------------------------------------------\n")
}

func firstSnapshot(ctx context.Context, path string, logger *slog.Logger) time.Duration {
	start := time.Now()
	db, err := docstore.OpenBolt(path, docstore.WithLogger(logger))
	if err != nil {
		panic(err)
	}
	defer db.Close()
	repo, err := remote.NewRepository(db, remote.Config{UserID: "bench", Logger: logger})
	if err != nil {
		panic(err)
	}
	s, err := session.New(session.Config{
		User:       core.User{ID: "bench"},
		Repository: repo,
		Codec:      codec.NewZstd(),
		Logger:     logger,
	})
	if err != nil {
		panic(err)
	}
	defer s.Close(ctx)
	if err := s.Start(ctx); err != nil {
		panic(err)
	}
	<-s.Ready()
	elapsed := time.Since(start)

	// Searching decodes every body.
	startSearch := time.Now()
	hits := len(s.Search("benchmark"))
	fmt.Printf("Snapshot: %v, search: %v (%d hits, %d notes)\n", elapsed, time.Since(startSearch), hits, len(s.Notes()))
	return elapsed
}
