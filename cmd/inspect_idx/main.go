// Inspect a hash index's directory page: global depth, directory size,
// and each slot's local depth and bucket page id.
// Usage: go run ./cmd/inspect_idx <shard-db-path> <residue> <stride> <dir-page-id>
package main

import (
	"fmt"
	"os"
	"strconv"

	"coredb/bufferpool"
	"coredb/diskmgr"
	"coredb/page"
)

func main() {
	if len(os.Args) < 5 {
		fmt.Fprintf(os.Stderr, "Usage: %s <shard-db-path> <residue> <stride> <dir-page-id>\n", os.Args[0])
		os.Exit(1)
	}
	path := os.Args[1]
	residue, err := strconv.ParseInt(os.Args[2], 10, 64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bad residue: %v\n", err)
		os.Exit(1)
	}
	stride, err := strconv.ParseInt(os.Args[3], 10, 64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bad stride: %v\n", err)
		os.Exit(1)
	}
	dirPageID, err := strconv.ParseInt(os.Args[4], 10, 64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bad directory page id: %v\n", err)
		os.Exit(1)
	}

	disk, err := diskmgr.Open(path, residue, stride)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open shard: %v\n", err)
		os.Exit(1)
	}
	defer disk.Close()

	pool := bufferpool.NewInstance(4, disk, nil)
	pg, ok := pool.FetchPage(page.ID(dirPageID))
	if !ok {
		fmt.Fprintln(os.Stderr, "directory page not resident and could not be loaded")
		os.Exit(1)
	}
	defer pool.UnpinPage(pg.ID, false)

	pg.RLock()
	defer pg.RUnlock()
	dir := page.NewDirectory(pg)

	depth := dir.GlobalDepth()
	size := dir.Size()
	fmt.Printf("global depth: %d, directory size: %d\n", depth, size)
	for i := uint32(0); i < size; i++ {
		fmt.Printf("slot %3d: local_depth=%d bucket_page_id=%d\n", i, dir.LocalDepth(i), dir.BucketPageID(i))
	}
}
