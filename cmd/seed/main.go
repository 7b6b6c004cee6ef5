// Seed builds a small storage core from scratch: a parallel buffer pool,
// one table heap, and a hash index keyed by row id, then runs a handful
// of transactions against them through the lock manager and executors.
// Run: go run ./cmd/seed
package main

import (
	"fmt"
	"path/filepath"

	"coredb/bufferpool"
	"coredb/config"
	"coredb/executor"
	"coredb/hashindex"
	"coredb/lockmgr"
	"coredb/logging"
	"coredb/txn"
)

func main() {
	cfg := config.New()
	log := logging.NewDevelopment()

	pool, err := bufferpool.NewParallel(cfg.Instances, cfg.PoolSize, filepath.Join(cfg.DataDir, "shard-%d.db"), log)
	if err != nil {
		log.Fatalf("open parallel buffer pool: %v", err)
	}

	heap, ok := executor.NewTableHeap(pool, log)
	if !ok {
		log.Fatal("allocate first heap page: buffer pool exhausted")
	}

	idx, ok := hashindex.New[uint64, uint64](pool, 4, hashindex.Uint64Codec(), hashindex.Uint64Codec(), nil, log)
	if !ok {
		log.Fatal("build hash index: buffer pool exhausted")
	}

	tm := txn.NewManager()
	lm := lockmgr.New(tm, log)

	students := [][]byte{
		[]byte("S001,Alice,20"),
		[]byte("S002,Bob,21"),
		[]byte("S003,Carol,19"),
	}

	writer := tm.Begin(txn.RepeatableRead)
	ins := executor.NewInsertExecutor(heap, writer, lm, students)
	ins.Init()
	var id uint64
	for {
		row, rid, ok := ins.Next()
		if !ok {
			break
		}
		id++
		idx.Insert(id, uint64(rid.PageID)<<32|uint64(rid.Slot))
		fmt.Printf("inserted row %d: %s (page=%d slot=%d)\n", id, row, rid.PageID, rid.Slot)
	}
	tm.Commit(writer)

	fmt.Println("\n--- sequential scan under READ_COMMITTED ---")
	reader := tm.Begin(txn.ReadCommitted)
	scan := executor.NewSeqScanExecutor(heap, reader, lm)
	scan.Init()
	for {
		row, rid, ok := scan.Next()
		if !ok {
			break
		}
		fmt.Printf("scanned rid={%d,%d}: %s\n", rid.PageID, rid.Slot, row)
	}
	tm.Commit(reader)

	fmt.Println("\n--- hash index lookup ---")
	for k := uint64(1); k <= id; k++ {
		vals := idx.GetValue(k)
		fmt.Printf("GetValue(%d) = %v\n", k, vals)
	}

	pool.FlushAllPages()
}
