package linker

import (
	"context"
	goerrors "errors"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/modload/errors"
	"github.com/wippyai/modload/task"
)

// runFunc computes a module export. chain ends with the module's own id.
type runFunc func(ctx context.Context, chain []string) (any, error)

// cache memoizes loads per id and tracks which loads wait on which.
//
// The waits-for graph has an edge a -> b while the load of a is waiting on
// the unsettled load of b. Attaching to an in-flight load that can reach the
// caller's chain through these edges would never complete, so it is reported
// as a circular load instead.
type cache struct {
	ctx     context.Context
	log     *zap.Logger
	entries map[string]*cacheEntry
	waits   map[string]map[string]struct{}
	mu      sync.Mutex
}

type cacheEntry struct {
	task *task.Task
	done bool
}

func newCache(ctx context.Context, log *zap.Logger) *cache {
	return &cache{
		ctx:     ctx,
		log:     log,
		entries: make(map[string]*cacheEntry),
		waits:   make(map[string]map[string]struct{}),
	}
}

// getOrStart returns the task for id, starting run if there is none.
// The check and the insert happen under one lock acquisition, so concurrent
// callers always share a single task.
func (c *cache) getOrStart(id string, chain []string, run runFunc) (*task.Task, error) {
	if slices.Contains(chain, id) {
		return nil, errors.CircularLoad(extend(chain, id))
	}
	var parent string
	if len(chain) > 0 {
		parent = chain[len(chain)-1]
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[id]; ok {
		if !e.done && parent != "" {
			if path := c.waitPath(id, chain); path != nil {
				return nil, errors.CircularLoad(append(slices.Clone(chain), path...))
			}
			c.addWait(parent, id)
		}
		c.log.Debug("load cache hit", zap.String("id", id), zap.Bool("settled", e.done))
		return e.task, nil
	}

	e := &cacheEntry{task: task.New()}
	c.entries[id] = e
	if parent != "" {
		c.addWait(parent, id)
	}

	next := extend(chain, id)
	c.log.Debug("load started", zap.String("id", id), zap.Strings("chain", next))
	go func() {
		v, err := task.Run(func() (any, error) {
			return run(c.ctx, next)
		})
		c.settle(id, e, err)
		e.task.Settle(v, err)
	}()
	return e.task, nil
}

// settle retires id from the waits-for graph. A load that failed because of
// a cycle is evicted so that it can be retried once the cycle is broken.
func (c *cache) settle(id string, e *cacheEntry, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e.done = true
	delete(c.waits, id)
	for _, w := range c.waits {
		delete(w, id)
	}

	if err == nil {
		return
	}
	c.log.Warn("load failed", zap.String("id", id), zap.Error(err))
	if goerrors.Is(err, errors.ErrCircularLoad) && c.entries[id] == e {
		delete(c.entries, id)
	}
}

func (c *cache) addWait(from, to string) {
	w, ok := c.waits[from]
	if !ok {
		w = make(map[string]struct{})
		c.waits[from] = w
	}
	w[to] = struct{}{}
}

// waitPath returns the ids from start to the first id of chain reachable
// through waits-for edges, or nil. Caller holds c.mu.
func (c *cache) waitPath(start string, chain []string) []string {
	visited := make(map[string]bool)
	var walk func(id string) []string
	walk = func(id string) []string {
		if slices.Contains(chain, id) {
			return []string{id}
		}
		if visited[id] {
			return nil
		}
		visited[id] = true
		for next := range c.waits[id] {
			if p := walk(next); p != nil {
				return append([]string{id}, p...)
			}
		}
		return nil
	}
	return walk(start)
}

// purge drops the cached loads for ids. Loads still running finish, but
// their results are no longer shared.
func (c *cache) purge(ids ...string) {
	if len(ids) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ids {
		delete(c.entries, id)
	}
}

func (c *cache) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.entries)
	clear(c.waits)
}

// extend returns chain with id appended, never sharing chain's backing array.
func extend(chain []string, id string) []string {
	out := make([]string, len(chain)+1)
	copy(out, chain)
	out[len(chain)] = id
	return out
}
