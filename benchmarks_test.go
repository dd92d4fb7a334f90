package jedb_test

import (
	"context"
	"fmt"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/vinicius-lino-figueiredo/jedb"
)

// benchDB opens a database in a per-benchmark directory. Commits are
// flushed manually so the numbers measure the engine, not the disk.
func benchDB(b *testing.B, options ...jedb.Option) jedb.JEDB {
	b.Helper()
	options = append([]jedb.Option{
		jedb.WithPath(filepath.Join(b.TempDir(), "bench.db")),
		jedb.WithSyncPolicy(jedb.SyncManual),
	}, options...)
	db, err := jedb.Open(options...)
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { db.Close(context.Background()) })
	return db
}

func benchCollection(b *testing.B, db jedb.JEDB) jedb.Collection {
	b.Helper()
	c, err := db.Collection(context.Background(), "bench")
	if err != nil {
		b.Fatal(err)
	}
	return c
}

// seed fills the collection with size documents shaped by gen.
func seed(b *testing.B, c jedb.Collection, size int, gen func(n int) M) {
	b.Helper()
	if size == 0 {
		return
	}
	docs := make([]any, size)
	for n := range size {
		docs[n] = gen(n)
	}
	if _, err := c.PutAll(context.Background(), docs...); err != nil {
		b.Fatal(err)
	}
}

func BenchmarkOpen(b *testing.B) {
	ctx := context.Background()

	b.Run("Fresh", func(b *testing.B) {
		for b.Loop() {
			b.StopTimer()
			file := filepath.Join(b.TempDir(), "file.db")
			b.StartTimer()
			db, err := jedb.Open(jedb.WithPath(file))
			if err != nil {
				b.FailNow()
			}
			db.Close(ctx)
		}
	})

	b.Run("Existing", func(b *testing.B) {
		file := filepath.Join(b.TempDir(), "file.db")
		db, err := jedb.Open(jedb.WithPath(file))
		if err != nil {
			b.FailNow()
		}
		db.Close(ctx)

		for b.Loop() {
			db, err := jedb.Open(jedb.WithPath(file))
			if err != nil {
				b.FailNow()
			}
			db.Close(ctx)
		}
	})
}

func BenchmarkPut(b *testing.B) {
	ctx := context.Background()

	m := M{"jo": "jo"}

	b.Run("Sync=manual", func(b *testing.B) {
		c := benchCollection(b, benchDB(b))
		for b.Loop() {
			c.Put(ctx, m)
		}
	})

	b.Run("Sync=commit", func(b *testing.B) {
		c := benchCollection(b, benchDB(b, jedb.WithSyncPolicy(jedb.SyncPerCommit)))
		for b.Loop() {
			c.Put(ctx, m)
		}
	})
}

func BenchmarkPutAll(b *testing.B) {
	ctx := context.Background()

	sizes := [...]int{1, 10, 100, 1_000, 10_000}

	for _, size := range sizes {
		b.Run(fmt.Sprintf("batch=%d", size), func(b *testing.B) {
			m := make([]any, size)
			for n := range size {
				m[n] = M{"part": n + 1}
			}

			c := benchCollection(b, benchDB(b))
			for b.Loop() {
				if _, err := c.PutAll(ctx, m...); err != nil {
					b.FailNow()
				}
			}

			perItem := float64(b.Elapsed().Nanoseconds()) / float64(b.N*size)

			b.ReportMetric(perItem, "ns/item")

		})
	}

}

func BenchmarkTxn(b *testing.B) {
	ctx := context.Background()

	m := M{"jo": "jo"}

	c := benchCollection(b, benchDB(b))
	for b.Loop() {
		txn, err := c.Begin(ctx)
		if err != nil {
			b.FailNow()
		}
		for range 10 {
			txn.Put(ctx, m)
		}
		if err := txn.Commit(ctx); err != nil {
			b.FailNow()
		}
	}

	perItem := float64(b.Elapsed().Nanoseconds()) / float64(b.N*10)

	b.ReportMetric(perItem, "ns/item")
}

func BenchmarkFind(b *testing.B) {
	ctx := context.Background()

	sizes := [...]int{1, 10, 100, 1_000, 10_000}

	for _, size := range sizes {
		b.Run(fmt.Sprintf("db=%d", size), func(b *testing.B) {
			c := benchCollection(b, benchDB(b))
			seed(b, c, size, func(n int) M { return M{"code": n} })

			b.Run("Existing", func(b *testing.B) {
				for b.Loop() {
					cur, err := c.Find(ctx, M{"code": rand.Intn(size)})
					if err != nil {
						b.FailNow()
					}
					cur.Close()
				}
			})

			b.Run("NonExisting", func(b *testing.B) {
				m := M{"code": size + 12}
				for b.Loop() {
					cur, err := c.Find(ctx, m)
					if err != nil {
						b.FailNow()
					}
					cur.Close()
				}
			})

		})
	}
}

func BenchmarkFindByID(b *testing.B) {
	ctx := context.Background()

	sizes := [...]int{1, 10, 100, 1_000, 10_000}

	for _, size := range sizes {
		b.Run(fmt.Sprintf("db=%d", size), func(b *testing.B) {
			c := benchCollection(b, benchDB(b))
			seed(b, c, size, func(n int) M { return M{"code": n} })

			b.Run("Existing", func(b *testing.B) {
				for b.Loop() {
					b.StopTimer()
					id := int64(rand.Intn(size)) + 1
					b.StartTimer()
					cur, err := c.Find(ctx, M{"_id": id})
					if err != nil {
						b.FailNow()
					}
					cur.Close()
				}
			})

			b.Run("NonExisting", func(b *testing.B) {
				m := M{"_id": int64(size + 12)}
				for b.Loop() {
					cur, err := c.Find(ctx, m)
					if err != nil {
						b.FailNow()
					}
					cur.Close()
				}
			})

		})
	}
}

func BenchmarkFindWithIndex(b *testing.B) {
	ctx := context.Background()

	sizes := [...]int{1, 10, 100, 1_000, 10_000}

	for _, size := range sizes {
		b.Run(fmt.Sprintf("db=%d", size), func(b *testing.B) {
			c := benchCollection(b, benchDB(b))
			if err := c.EnsureIndex(ctx,
				jedb.WithEnsureIndexPath("code"),
				jedb.WithEnsureIndexKind(jedb.IndexNumber),
			); err != nil {
				b.FailNow()
			}
			seed(b, c, size, func(n int) M { return M{"code": n} })

			b.Run("Existing", func(b *testing.B) {
				for b.Loop() {
					b.StopTimer()
					code := rand.Intn(size)
					b.StartTimer()
					cur, err := c.Find(ctx, M{"code": code})
					if err != nil {
						b.FailNow()
					}
					cur.Close()
				}
			})

			b.Run("NonExisting", func(b *testing.B) {
				m := M{"code": size + 12}
				for b.Loop() {
					cur, err := c.Find(ctx, m)
					if err != nil {
						b.FailNow()
					}
					cur.Close()
				}
			})

		})
	}
}

func BenchmarkFindOne(b *testing.B) {
	ctx := context.Background()

	sizes := [...]int{1, 10, 100, 1_000, 10_000}

	var t M

	for _, size := range sizes {
		b.Run(fmt.Sprintf("db=%d", size), func(b *testing.B) {
			c := benchCollection(b, benchDB(b))
			seed(b, c, size, func(n int) M { return M{"code": n} })

			b.Run("Existing", func(b *testing.B) {
				for b.Loop() {
					b.StopTimer()
					code := rand.Intn(size)
					b.StartTimer()
					err := c.FindOne(ctx, M{"code": code}, &t)
					if err != nil {
						b.Log(err.Error())
						b.FailNow()
					}
				}
			})

			b.Run("NonExisting", func(b *testing.B) {
				m := M{"code": size + 12}
				for b.Loop() {
					err := c.FindOne(ctx, m, &t)
					if err == nil {
						b.FailNow()
					}
				}
			})

		})
	}
}

func BenchmarkCount(b *testing.B) {
	ctx := context.Background()

	sizes := [...]int{1, 10, 100, 1_000, 10_000}

	for _, size := range sizes {
		b.Run(fmt.Sprintf("db=%d", size), func(b *testing.B) {
			c := benchCollection(b, benchDB(b))
			seed(b, c, size, func(n int) M { return M{"phantom": n} })

			b.Run("amount=100%", func(b *testing.B) {
				for b.Loop() {
					if _, err := c.Count(ctx, nil); err != nil {
						b.FailNow()
					}
				}
			})

			c = benchCollection(b, benchDB(b))
			seed(b, c, size, func(n int) M { return M{"tendency": n, "value": n % 2} })

			b.Run("amount=50%", func(b *testing.B) {
				m := M{"value": 1}
				for b.Loop() {
					if _, err := c.Count(ctx, m); err != nil {
						b.FailNow()
					}
				}
			})

			c = benchCollection(b, benchDB(b))
			seed(b, c, size, func(n int) M { return M{"stardust": n, "value": n % 3} })

			b.Run("amount=33%", func(b *testing.B) {
				m := M{"value": 1}
				for b.Loop() {
					if _, err := c.Count(ctx, m); err != nil {
						b.FailNow()
					}
				}
			})
		})
	}
}

func BenchmarkCountWithIndex(b *testing.B) {
	ctx := context.Background()

	sizes := [...]int{1, 10, 100, 1_000, 10_000}

	for _, size := range sizes {
		b.Run(fmt.Sprintf("db=%d", size), func(b *testing.B) {
			c := benchCollection(b, benchDB(b))
			if err := c.EnsureIndex(ctx,
				jedb.WithEnsureIndexPath("value"),
				jedb.WithEnsureIndexKind(jedb.IndexNumber),
			); err != nil {
				b.FailNow()
			}
			seed(b, c, size, func(n int) M { return M{"ocean": n, "value": n % 2} })

			b.Run("amount=50%", func(b *testing.B) {
				m := M{"value": 1}
				for b.Loop() {
					if _, err := c.Count(ctx, m); err != nil {
						b.FailNow()
					}
				}
			})

			c = benchCollection(b, benchDB(b))
			if err := c.EnsureIndex(ctx,
				jedb.WithEnsureIndexPath("value"),
				jedb.WithEnsureIndexKind(jedb.IndexNumber),
			); err != nil {
				b.FailNow()
			}
			seed(b, c, size, func(n int) M { return M{"lion": n, "value": n % 4} })

			b.Run("amount=25%", func(b *testing.B) {
				m := M{"value": 1}
				for b.Loop() {
					if _, err := c.Count(ctx, m); err != nil {
						b.FailNow()
					}
				}
			})
		})
	}
}

func BenchmarkUpdate(b *testing.B) {
	ctx := context.Background()

	sizes := [...]int{1, 10, 100, 1_000, 10_000}

	nw := M{"$set": M{"up": "dated"}}

	for _, size := range sizes {
		b.Run(fmt.Sprintf("db=%d", size), func(b *testing.B) {
			c := benchCollection(b, benchDB(b))
			seed(b, c, size, func(n int) M { return M{"code": n} })

			b.Run("Existing", func(b *testing.B) {
				for b.Loop() {
					b.StopTimer()
					m := M{"code": rand.Intn(size)}
					b.StartTimer()
					cur, err := c.Update(ctx, m, nw)
					if err != nil {
						b.FailNow()
					}
					cur.Close()
				}
			})

			b.Run("NonExisting", func(b *testing.B) {
				m := M{"code": size + 12}
				for b.Loop() {
					cur, err := c.Update(ctx, m, nw)
					if err != nil {
						b.FailNow()
					}
					cur.Close()
				}
			})

		})
	}
}

func BenchmarkRemove(b *testing.B) {
	ctx := context.Background()

	sizes := [...]int{1, 10, 100, 1_000, 10_000}

	for _, size := range sizes {
		b.Run(fmt.Sprintf("db=%d", size), func(b *testing.B) {
			c := benchCollection(b, benchDB(b))
			seed(b, c, size, func(n int) M { return M{"code": n} })

			b.Run("Existing", func(b *testing.B) {
				for b.Loop() {
					b.StopTimer()
					m := M{"code": rand.Intn(size)}
					b.StartTimer()
					if _, err := c.Remove(ctx, m); err != nil {
						b.FailNow()
					}
				}
			})

			b.Run("NonExisting", func(b *testing.B) {
				m := M{"code": size + 12}
				for b.Loop() {
					if _, err := c.Remove(ctx, m); err != nil {
						b.FailNow()
					}
				}
			})

		})
	}
}

func BenchmarkEnsureIndex(b *testing.B) {
	ctx := context.Background()

	sizes := [...]int{0, 1, 10, 100, 1_000, 10_000}

	for _, size := range sizes {
		b.Run(fmt.Sprintf("db=%d", size), func(b *testing.B) {
			c := benchCollection(b, benchDB(b))
			seed(b, c, size, func(n int) M { return M{"code": n, "data": n + 1} })

			if err := c.EnsureIndex(ctx,
				jedb.WithEnsureIndexPath("code"),
				jedb.WithEnsureIndexKind(jedb.IndexNumber),
			); err != nil {
				b.FailNow()
			}

			b.Run("Existing", func(b *testing.B) {
				for b.Loop() {
					c.EnsureIndex(ctx,
						jedb.WithEnsureIndexPath("code"),
						jedb.WithEnsureIndexKind(jedb.IndexNumber),
					)
				}
			})

			b.Run("NonExisting", func(b *testing.B) {
				for b.Loop() {
					b.StopTimer()
					c.RemoveIndex(ctx, "data")
					b.StartTimer()
					c.EnsureIndex(ctx,
						jedb.WithEnsureIndexPath("data"),
						jedb.WithEnsureIndexKind(jedb.IndexNumber),
					)
				}
			})

		})
	}
}

func BenchmarkAll(b *testing.B) {
	ctx := context.Background()

	sizes := [...]int{0, 1, 10, 100, 1_000, 10_000}

	for _, size := range sizes {
		b.Run(fmt.Sprintf("db=%d", size), func(b *testing.B) {
			c := benchCollection(b, benchDB(b))
			seed(b, c, size, func(n int) M { return M{"code": n} })

			for b.Loop() {
				cur, err := c.All(ctx)
				if err != nil {
					b.FailNow()
				}
				for cur.Next(ctx) {
				}
				cur.Close()
			}

		})
	}
}

func BenchmarkSync(b *testing.B) {
	ctx := context.Background()

	db := benchDB(b)
	c := benchCollection(b, db)
	seed(b, c, 1_000, func(n int) M { return M{"code": n} })

	for b.Loop() {
		if err := db.Sync(ctx); err != nil {
			b.FailNow()
		}
	}
}

func BenchmarkFindWithSort(b *testing.B) {
	ctx := context.Background()

	sizes := [...]int{1, 10, 100, 1_000, 10_000}

	for _, size := range sizes {

		values := make([]int, size)
		for n := range size {
			values[n] = n
		}

		rand.Shuffle(size, func(i, j int) {
			values[i], values[j] = values[j], values[i]
		})

		b.Run(fmt.Sprintf("db=%d", size), func(b *testing.B) {
			c := benchCollection(b, benchDB(b))
			seed(b, c, size, func(n int) M { return M{"code": values[n]} })

			for b.Loop() {
				cur, err := c.Find(ctx, nil, jedb.WithSort(jedb.Sort{{Key: "code", Order: 1}}))
				if err != nil {
					b.FailNow()
				}
				cur.Close()
			}

		})
	}
}
