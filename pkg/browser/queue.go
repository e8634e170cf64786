package browser

import (
	"sort"
	"sync"
)

// callbackQueue runs callbacks one at a time, in push order, on its own goroutine.
type callbackQueue struct {
	calls chan func()
	done  chan struct{}
	once  sync.Once
	wg    sync.WaitGroup
}

func newCallbackQueue(size int) *callbackQueue {
	q := &callbackQueue{
		calls: make(chan func(), size),
		done:  make(chan struct{}),
	}

	q.wg.Add(1)
	go q.run()
	return q
}

func (q *callbackQueue) run() {
	defer q.wg.Done()
	for {
		select {
		case <-q.done:
			return
		case fn := <-q.calls:
			fn()
		}
	}
}

// push queues fn. Calls pushed after close are dropped.
func (q *callbackQueue) push(fn func()) {
	select {
	case <-q.done:
	case q.calls <- fn:
	}
}

// close stops the queue and waits for the running callback, if any.
// It must not be called from a queued callback.
func (q *callbackQueue) close() {
	q.once.Do(func() {
		close(q.done)
	})
	q.wg.Wait()
}

// sortedFuncs returns the callbacks in registration order.
func sortedFuncs[F any](m map[uint64]F) []F {
	ids := make([]uint64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]F, 0, len(ids))
	for _, id := range ids {
		out = append(out, m[id])
	}
	return out
}
