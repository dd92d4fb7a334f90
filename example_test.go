package jedb_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vinicius-lino-figueiredo/jedb"
)

// M is shorthand for an unordered document literal.
type M = map[string]any

func ExampleOpen() {
	dir, _ := os.MkdirTemp("", "jedb")
	defer os.RemoveAll(dir)

	// To open a database, [Open] should be called. It opens or creates
	// the paged data file, replays the write-ahead log left by a prior
	// session and loads default interface implementations.
	db, _ := jedb.Open(
		// Path of the data file. Names ending in ".wal" or ".lock" are
		// rejected, since those suffixes are reserved for the companion
		// files kept next to it.
		jedb.WithPath(filepath.Join(dir, "app.db")),
		// Create the data file when it does not exist yet.
		jedb.WithCreateIfMissing(true),
		// Permission to open the data file with.
		jedb.WithFileMode(0o644),
		// Permission to create the data file directory with.
		jedb.WithDirMode(0o755),
		// Fsync the log on every commit. [SyncPeriodic] and [SyncManual]
		// trade durability for speed.
		jedb.WithSyncPolicy(jedb.SyncPerCommit),
		// Number of pages kept in the read cache.
		jedb.WithCacheSize(256),
	)

	// Every method receives a context, so waiting on the single writer
	// can be abandoned when cancellation occurs.
	ctx := context.Background()
	defer db.Close(ctx)

	// Data lives in named collections, created on first use. Handles are
	// shared: asking for the same name returns the same handle.
	users, _ := db.Collection(ctx, "users")

	// Inserts assign each document a monotonically growing int64 id,
	// stored in the _id field. Ids are never reused.
	id, _ := users.Put(ctx, M{"name": "Ada"})
	fmt.Println(id)

	var u struct {
		Name string `jedb:"name"`
	}
	_ = users.Get(ctx, id, &u)
	fmt.Println(u.Name)
	// Output:
	// 1
	// Ada
}

func ExampleCollection_Put() {
	dir, _ := os.MkdirTemp("", "jedb")
	defer os.RemoveAll(dir)

	ctx := context.Background()
	db, _ := jedb.Open(jedb.WithPath(filepath.Join(dir, "app.db")))
	defer db.Close(ctx)

	fighters, _ := db.Collection(ctx, "fighters")

	// A struct can be defined to make working with the db easier. The
	// struct does not need to be exported, but the fields do.
	type Character struct {
		// untagged exported fields are named as they are
		Name string
		// tagged exported fields are named after the jedb tag
		Sty string `jedb:"style"`
		// unexported fields are ignored
		country string
		// fields with "-" at the jedb tag are also ignored
		Clothes string `jedb:"-"`
		// the omitempty flag drops nil fields
		Spells   []string `jedb:",omitempty"`
		Specials []string `jedb:",omitempty"`
		// the omitzero flag drops zero-value fields
		SpecialDmg []float64 `jedb:",omitzero"`
		Games      []float64 `jedb:",omitzero"`
	}

	gief := Character{
		Name:    "Zangief",
		Sty:     "grappler",
		country: "URSS",
		Clothes: "red",
		// nil lists are dropped by the omitempty directive
		Spells: nil,
		// omitempty does not affect non-nil lists
		Specials: []string{"SPD", "Siberian express"},
		// nil is also the zero value of a list, dropped by omitzero
		SpecialDmg: nil,
		// omitzero does not affect non-empty lists
		Games: []float64{2, 3.5, 4, 5, 6},
	}

	// Put can be called with any object-like document. Since data is
	// converted into an internal representation, the received object is
	// not used afterwards. In general, maps with string keys and structs
	// are accepted as valid documents, but field names should not start
	// with "$", since that is reserved for querying and updating. The
	// _id field is reserved too: it is assigned by the engine.
	id, _ := fighters.Put(ctx, gief)

	var stored map[string]any
	_ = fighters.Get(ctx, id, &stored)

	fmt.Println(len(stored))
	fmt.Println(stored["_id"])
	fmt.Println(stored["Name"])
	fmt.Println(stored["style"])
	fmt.Println(stored["Specials"].([]any)[0])
	fmt.Println(stored["Specials"].([]any)[1])
	fmt.Println(stored["Games"])

	// Output:
	// 5
	// 1
	// Zangief
	// grappler
	// SPD
	// Siberian express
	// [2 3.5 4 5 6]
}

func ExampleCollection_Find() {
	dir, _ := os.MkdirTemp("", "jedb")
	defer os.RemoveAll(dir)

	ctx := context.Background()
	db, _ := jedb.Open(jedb.WithPath(filepath.Join(dir, "app.db")))
	defer db.Close(ctx)

	party, _ := db.Collection(ctx, "party")
	_, _ = party.PutAll(ctx,
		M{"pos": 1, "Type": "wh.mage"},
		M{"pos": 2, "Type": "bl.mage"},
		M{"pos": 3, "Type": "fighter"},
		M{"pos": 4, "Type": "rogue"},
	)

	// Find uses a mongodb-like api to fetch data from the db. Maps and
	// structs can be used to shape the query as you like.
	cur, _ := party.Find(ctx,
		M{"pos": M{"$lte": 3}},
		jedb.WithSort(jedb.Sort{{Key: "Type", Order: 1}}),
		jedb.WithProjection(M{"_id": 0, "Type": 1}),
		jedb.WithSkip(1),
		jedb.WithLimit(2),
	)
	defer cur.Close()

	types := make([]M, 0, 2)
	for cur.Next(ctx) {
		var m M
		_ = cur.Scan(&m)
		types = append(types, m)
	}

	fmt.Printf("%v", types)
	// Output: [map[Type:fighter] map[Type:wh.mage]]
}

func ExampleCollection_Update() {
	dir, _ := os.MkdirTemp("", "jedb")
	defer os.RemoveAll(dir)

	ctx := context.Background()
	db, _ := jedb.Open(jedb.WithPath(filepath.Join(dir, "app.db")))
	defer db.Close(ctx)

	notes, _ := db.Collection(ctx, "notes")
	_, _ = notes.Put(ctx, M{"date": "yesterday"})

	// A replacement document swaps the matched document wholesale; an
	// update query with operators like $set and $inc patches it in
	// place. The assigned _id survives either way.
	_, _ = notes.Update(ctx,
		M{"date": "yesterday"},
		M{"date": "today"},

		jedb.WithUpdateMulti(true),
		jedb.WithUpsert(false),
	)

	var m M
	_ = notes.FindOne(ctx, nil, &m, jedb.WithProjection(M{"_id": 0}))

	fmt.Printf("%v", m)
	// Output: map[date:today]
}

func ExampleCollection_Remove() {
	dir, _ := os.MkdirTemp("", "jedb")
	defer os.RemoveAll(dir)

	ctx := context.Background()
	db, _ := jedb.Open(jedb.WithPath(filepath.Join(dir, "app.db")))
	defer db.Close(ctx)

	checks, _ := db.Collection(ctx, "checks")
	_, _ = checks.PutAll(ctx,
		M{"valid": true},
		M{"valid": true},
		M{"valid": false},
		M{"valid": true},
		M{"valid": false},
	)

	// By default Remove deletes a single document; WithRemoveMulti
	// deletes every match.
	removed, _ := checks.Remove(ctx, M{"valid": false}, jedb.WithRemoveMulti(true))
	fmt.Println(removed)

	cur, _ := checks.Find(ctx, nil, jedb.WithProjection(M{"valid": 0}))
	defer cur.Close()

	data := make([]M, 0, 3)
	for cur.Next(ctx) {
		var m M
		_ = cur.Scan(&m)
		data = append(data, m)
	}

	fmt.Printf("%v", data)
	// Output:
	// 2
	// [map[_id:1] map[_id:2] map[_id:4]]
}

func ExampleCollection_EnsureIndex() {
	dir, _ := os.MkdirTemp("", "jedb")
	defer os.RemoveAll(dir)

	ctx := context.Background()
	db, _ := jedb.Open(jedb.WithPath(filepath.Join(dir, "app.db")))
	defer db.Close(ctx)

	users, _ := db.Collection(ctx, "users")

	// Indexes are typed: a string index orders string values, a number
	// index ints and floats, and an array index keys each string or
	// number element separately.
	err := users.EnsureIndex(ctx,
		jedb.WithEnsureIndexPath("email"),
		jedb.WithEnsureIndexKind(jedb.IndexString),
		jedb.WithEnsureIndexUnique(true),
	)

	fmt.Println(err)
	// Output: <nil>
}

func ExampleCollection_Begin() {
	dir, _ := os.MkdirTemp("", "jedb")
	defer os.RemoveAll(dir)

	ctx := context.Background()
	db, _ := jedb.Open(jedb.WithPath(filepath.Join(dir, "app.db")))
	defer db.Close(ctx)

	orders, _ := db.Collection(ctx, "orders")

	// Begin stages writes on the collection until Commit. Readers keep
	// seeing the last committed state in the meantime, without blocking.
	txn, _ := orders.Begin(ctx)
	_, _ = txn.Put(ctx, M{"sku": "tea", "qty": 2})
	_, _ = txn.Put(ctx, M{"sku": "jam", "qty": 1})

	before, _ := orders.Count(ctx, nil)
	fmt.Println(before)

	_ = txn.Commit(ctx)

	after, _ := orders.Count(ctx, nil)
	fmt.Println(after)
	// Output:
	// 0
	// 2
}
