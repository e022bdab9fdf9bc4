package sqlite_test

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jl-grey-man/smbintel"
	"github.com/jl-grey-man/smbintel/sqlite"
	"github.com/stretchr/testify/require"
)

// BenchmarkLedgerInsert compares ledger write throughput between WAL and
// rollback journal modes, simulating the per-page inserts of a crawl.
func BenchmarkLedgerInsert(b *testing.B) {
	b.Run("rollback_journal", func(b *testing.B) {
		benchmarkLedgerInserts(b, "DELETE")
	})

	b.Run("wal_mode", func(b *testing.B) {
		benchmarkLedgerInserts(b, "WAL")
	})
}

func openBenchDB(b *testing.B) *sqlite.DB {
	b.Helper()
	db := sqlite.NewDB(filepath.Join(b.TempDir(), "bench.db"))
	require.NoError(b, db.Open())
	b.Cleanup(func() { db.Close() })
	return db
}

func benchRecord(i int) *smbintel.CrawlRecord {
	return &smbintel.CrawlRecord{
		SourceURL: fmt.Sprintf("https://forum.example.se/t/%d", i),
		Domain:    "example.se",
		RawText:   fmt.Sprintf("Inlägg %d: %s", i, strings.Repeat("vi för över data mellan system för hand ", 20)),
		Provenance: smbintel.Provenance{
			Term:    "manuell dataöverföring",
			Pool:    smbintel.PoolExplore,
			CycleID: "bench",
		},
	}
}

func benchmarkLedgerInserts(b *testing.B, journal string) {
	b.Helper()

	db := openBenchDB(b)
	ctx := context.Background()
	_, err := db.ExecContext(ctx, "PRAGMA journal_mode = "+journal)
	require.NoError(b, err)

	ledger := sqlite.NewLedgerService(db)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := ledger.Insert(ctx, benchRecord(i)); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkLedgerExists measures negative lookups with and without a warm
// Bloom filter.
func BenchmarkLedgerExists(b *testing.B) {
	for _, warm := range []bool{false, true} {
		name := "cold"
		if warm {
			name = "warm_filter"
		}
		b.Run(name, func(b *testing.B) {
			db := openBenchDB(b)
			ctx := context.Background()
			ledger := sqlite.NewLedgerService(db)
			for i := 0; i < 1000; i++ {
				_, err := ledger.Insert(ctx, benchRecord(i))
				require.NoError(b, err)
			}
			if warm {
				require.NoError(b, ledger.WarmFilter(ctx, 10_000, 0.01))
			}

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := ledger.Exists(ctx, fmt.Sprintf("%016x", i)); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
