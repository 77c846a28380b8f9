package service

import (
	"container/list"
	"sync"

	"github.com/okian/circlefit/internal/domain/types"
)

const defaultResultCacheSize = 100000

// resultCache keeps the latest statuses of async submissions, evicting the
// oldest once full.
type resultCache struct {
	mu    sync.RWMutex
	max   int
	byID  map[string]*list.Element
	order *list.List
}

func newResultCache(maxEntries int) *resultCache {
	if maxEntries < 1 {
		maxEntries = defaultResultCacheSize
	}
	return &resultCache{max: maxEntries, byID: make(map[string]*list.Element), order: list.New()}
}

func (c *resultCache) put(st types.SubmissionStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.byID[st.ID]; ok {
		el.Value = st
		return
	}
	c.byID[st.ID] = c.order.PushBack(st)
	for c.order.Len() > c.max {
		oldest := c.order.Front()
		c.order.Remove(oldest)
		delete(c.byID, oldest.Value.(types.SubmissionStatus).ID) //nolint:forcetypeassert // only statuses are stored
	}
}

func (c *resultCache) get(id string) (types.SubmissionStatus, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	el, ok := c.byID[id]
	if !ok {
		return types.SubmissionStatus{}, false
	}
	return el.Value.(types.SubmissionStatus), true //nolint:forcetypeassert // only statuses are stored
}

// update applies fn to a tracked status. It is a no-op for ids already
// evicted.
func (c *resultCache) update(id string, fn func(*types.SubmissionStatus)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.byID[id]
	if !ok {
		return
	}
	st := el.Value.(types.SubmissionStatus) //nolint:forcetypeassert // only statuses are stored
	fn(&st)
	el.Value = st
}

func (c *resultCache) remove(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.byID[id]; ok {
		c.order.Remove(el)
		delete(c.byID, id)
	}
}

func (c *resultCache) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.order.Len()
}
