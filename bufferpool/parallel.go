package bufferpool

import (
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"coredb/diskmgr"
	"coredb/logging"
	"coredb/page"
)

// Parallel is an array of N Instances, one per page-id residue class.
type Parallel struct {
	instances []*Instance
	cursor    atomic.Uint64
}

// NewParallel builds a Parallel pool of N instances, each poolSize frames,
// each backed by its own diskmgr.Manager for residue class i of N (pathFmt
// must contain exactly one %d, e.g. "data/shard-%d.db").
func NewParallel(n, poolSize int, pathFmt string, log *zap.SugaredLogger) (*Parallel, error) {
	if n < 1 {
		return nil, fmt.Errorf("bufferpool: parallel pool needs at least 1 instance, got %d", n)
	}
	log = logging.OrNop(log)

	instances := make([]*Instance, n)
	for i := 0; i < n; i++ {
		disk, err := diskmgr.Open(fmt.Sprintf(pathFmt, i), int64(i), int64(n))
		if err != nil {
			return nil, fmt.Errorf("bufferpool: opening residue %d/%d: %w", i, n, err)
		}
		instances[i] = NewInstance(poolSize, disk, log)
	}
	return &Parallel{instances: instances}, nil
}

func (p *Parallel) instanceFor(id page.ID) *Instance {
	n := int64(len(p.instances))
	return p.instances[int64(id)%n]
}

// NewPage tries each instance round-robin starting from a rotating
// cursor, returning the first successful allocation and advancing the
// cursor modulo N. It returns ok=false only after every instance has been
// tried once in this call.
func (p *Parallel) NewPage() (pg *page.Page, ok bool) {
	n := uint64(len(p.instances))
	start := p.cursor.Add(1) - 1
	for i := uint64(0); i < n; i++ {
		idx := (start + i) % n
		if pg, ok := p.instances[idx].NewPage(); ok {
			return pg, true
		}
	}
	return nil, false
}

func (p *Parallel) FetchPage(id page.ID) (*page.Page, bool) {
	return p.instanceFor(id).FetchPage(id)
}

func (p *Parallel) UnpinPage(id page.ID, isDirty bool) bool {
	return p.instanceFor(id).UnpinPage(id, isDirty)
}

func (p *Parallel) FlushPage(id page.ID) bool {
	return p.instanceFor(id).FlushPage(id)
}

func (p *Parallel) DeletePage(id page.ID) bool {
	return p.instanceFor(id).DeletePage(id)
}

// FlushAllPages flushes every instance. Instances are independent, so
// this fans out concurrently rather than serializing shard by shard.
func (p *Parallel) FlushAllPages() {
	var wg sync.WaitGroup
	for _, inst := range p.instances {
		wg.Add(1)
		go func(inst *Instance) {
			defer wg.Done()
			inst.FlushAllPages()
		}(inst)
	}
	wg.Wait()
}

// NumInstances returns N.
func (p *Parallel) NumInstances() int { return len(p.instances) }

// Instance exposes shard k directly, e.g. for diagnostics.
func (p *Parallel) Instance(k int) *Instance { return p.instances[k] }
