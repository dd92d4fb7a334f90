// Package main represents an executable file that crashes between commits
// so a second run can verify what recovery brings back.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/vinicius-lino-figueiredo/jedb"
)

type entry struct {
	Seq     int    `jedb:"seq"`
	Payload string `jedb:"payload"`
}

func main() {
	path := flag.String("path", filepath.Join("..", "workspace", "lac.db"), "datafile path")
	crash := flag.Int("crash", 0, "commit this many documents, then exit without closing")
	verify := flag.Int("verify", 0, "reopen and expect this many documents")
	flag.Parse()

	ctx := context.Background()
	switch {
	case *crash > 0:
		load(ctx, *path, *crash)
	case *verify > 0:
		check(ctx, *path, *verify)
	default:
		flag.Usage()
		os.Exit(2)
	}
}

// load commits one document at a time and dies without closing the
// database. The write-ahead log keeps the committed batches that were
// never checkpointed into the datafile, and the lock file stays behind
// the way a real crash would leave it.
func load(ctx context.Context, path string, n int) {
	db, err := jedb.Open(jedb.WithPath(path))
	if err != nil {
		log.Fatal(err)
	}
	c, err := db.Collection(ctx, "crashes")
	if err != nil {
		log.Fatal(err)
	}
	payload := strings.Repeat("x", 512)
	for i := 1; i <= n; i++ {
		if _, err := c.Put(ctx, entry{Seq: i, Payload: payload}); err != nil {
			log.Fatalf("seq %d: %v", i, err)
		}
	}
	os.Exit(1)
}

// check clears the stale lock the crashed run left, reopens the datafile
// and confirms every committed document survived recovery.
func check(ctx context.Context, path string, n int) {
	if err := os.Remove(path + ".lock"); err != nil && !os.IsNotExist(err) {
		log.Fatal(err)
	}
	db, err := jedb.Open(jedb.WithPath(path), jedb.WithCreateIfMissing(false))
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close(ctx)

	c, err := db.Collection(ctx, "crashes")
	if err != nil {
		log.Fatal(err)
	}
	count, err := c.Count(ctx, nil)
	if err != nil {
		log.Fatal(err)
	}
	if count != int64(n) {
		log.Fatalf("expected %d documents, found %d", n, count)
	}
	var got entry
	for i := 1; i <= n; i++ {
		if err := c.FindOne(ctx, map[string]any{"seq": i}, &got); err != nil {
			log.Fatalf("seq %d: %v", i, err)
		}
		if got.Seq != i || len(got.Payload) != 512 {
			log.Fatalf("seq %d: document damaged", i)
		}
	}
	fmt.Printf("all %d documents intact after recovery\n", n)
}
