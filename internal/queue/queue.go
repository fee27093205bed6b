// Package queue implements the work queue feeding the enrichment
// workers: priority ordering with FIFO tie-break, idempotent enqueue,
// delayed requeue after transient failures, and a dead-letter list for
// documents that exhaust their retry budget.
package queue

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/doctrove/enrich-cli/internal/model"
)

// Priority bounds. Higher dequeues first.
const (
	MinPriority = 0
	MaxPriority = 9
)

// ErrClosed is returned by Enqueue and Dequeue after DrainAndClose.
var ErrClosed = eris.New("queue: closed")

// ErrEmpty signals a non-blocking dequeue found nothing.
var ErrEmpty = eris.New("queue: empty")

// Manager owns the pending heap, the in-flight set, and the dead-letter
// list. All methods are safe for concurrent use.
type Manager struct {
	mu         sync.Mutex
	cond       *sync.Cond
	heap       itemHeap
	pending    map[int]*heapItem // document ID -> queued item
	inflight   map[int]model.WorkItem
	delayed    int // items scheduled for reinsertion by a timer
	timers     map[*time.Timer]struct{}
	dead       []model.DeadLetterEntry
	retryLimit int
	seq        uint64
	closed     bool
	aborted    bool
}

// NewManager creates an empty queue. retryLimit is the number of
// processing attempts a document gets before it is dead-lettered.
func NewManager(retryLimit int) *Manager {
	if retryLimit < 1 {
		retryLimit = 1
	}
	m := &Manager{
		pending:    make(map[int]*heapItem),
		inflight:   make(map[int]model.WorkItem),
		timers:     make(map[*time.Timer]struct{}),
		retryLimit: retryLimit,
	}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// Enqueue adds a document at the given priority. Enqueueing a document
// that is already pending or in flight is a no-op, so callers can feed
// overlapping ID lists without double-processing.
func (m *Manager) Enqueue(documentID, priority int) error {
	if priority < MinPriority || priority > MaxPriority {
		return eris.Errorf("queue: priority %d out of range [%d, %d]", priority, MinPriority, MaxPriority)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if _, ok := m.pending[documentID]; ok {
		return nil
	}
	if _, ok := m.inflight[documentID]; ok {
		return nil
	}

	m.push(model.WorkItem{
		DocumentID: documentID,
		Priority:   priority,
		EnqueuedAt: time.Now(),
	})
	m.cond.Broadcast()
	return nil
}

// push inserts an item into the heap. Caller holds the lock.
func (m *Manager) push(item model.WorkItem) {
	m.seq++
	hi := &heapItem{item: item, seq: m.seq}
	heap.Push(&m.heap, hi)
	m.pending[item.DocumentID] = hi
}

// Dequeue blocks until an item is available, the context expires, or
// the queue closes with nothing left. The returned item is in flight
// until Complete or Requeue is called for it.
func (m *Manager) Dequeue(ctx context.Context) (model.WorkItem, error) {
	// Wake every waiter when the caller's context ends so they can
	// observe the cancellation.
	stop := context.AfterFunc(ctx, func() {
		m.mu.Lock()
		m.cond.Broadcast()
		m.mu.Unlock()
	})
	defer stop()

	m.mu.Lock()
	defer m.mu.Unlock()
	for {
		if err := ctx.Err(); err != nil {
			return model.WorkItem{}, err
		}
		if m.heap.Len() > 0 {
			hi := heap.Pop(&m.heap).(*heapItem)
			delete(m.pending, hi.item.DocumentID)
			m.inflight[hi.item.DocumentID] = hi.item
			return hi.item, nil
		}
		if m.closed && m.delayed == 0 && len(m.inflight) == 0 {
			return model.WorkItem{}, ErrClosed
		}
		m.cond.Wait()
	}
}

// TryDequeue is the non-blocking variant of Dequeue.
func (m *Manager) TryDequeue() (model.WorkItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.heap.Len() == 0 {
		if m.closed && m.delayed == 0 && len(m.inflight) == 0 {
			return model.WorkItem{}, ErrClosed
		}
		return model.WorkItem{}, ErrEmpty
	}
	hi := heap.Pop(&m.heap).(*heapItem)
	delete(m.pending, hi.item.DocumentID)
	m.inflight[hi.item.DocumentID] = hi.item
	return hi.item, nil
}

// Complete marks an in-flight document as finished, in any terminal
// state. The document may be enqueued again afterwards.
func (m *Manager) Complete(documentID int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.inflight, documentID)
	m.cond.Broadcast()
}

// Requeue returns a failed in-flight item to the queue after delay,
// recording the cause. Once the item has used up its attempt budget it
// goes to the dead-letter list instead, and Requeue reports that by
// returning true.
func (m *Manager) Requeue(item model.WorkItem, cause error, delay time.Duration) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.inflight, item.DocumentID)
	if m.aborted {
		m.cond.Broadcast()
		return false
	}

	item.Attempts++
	if cause != nil {
		item.LastError = cause.Error()
	}

	if item.Attempts >= m.retryLimit {
		m.dead = append(m.dead, model.DeadLetterEntry{
			DocumentID: item.DocumentID,
			FinalError: item.LastError,
			Attempts:   item.Attempts,
			FailedAt:   time.Now(),
		})
		zap.L().Warn("document dead-lettered",
			zap.Int("document_id", item.DocumentID),
			zap.Int("attempts", item.Attempts),
			zap.String("last_error", item.LastError),
		)
		m.cond.Broadcast()
		return true
	}

	if delay <= 0 {
		m.push(item)
		m.cond.Broadcast()
		return false
	}

	m.delayed++
	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.aborted {
			return
		}
		delete(m.timers, timer)
		m.delayed--
		m.push(item)
		m.cond.Broadcast()
	})
	m.timers[timer] = struct{}{}
	return false
}

// DrainAndClose stops accepting work. Pending items, in-flight items,
// and delayed requeues still drain; Dequeue returns ErrClosed once
// everything is gone.
func (m *Manager) DrainAndClose() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.cond.Broadcast()
}

// Abort closes the queue and discards pending and delayed items.
// In-flight items are left to their workers.
func (m *Manager) Abort() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.aborted = true
	for timer := range m.timers {
		timer.Stop()
	}
	m.timers = make(map[*time.Timer]struct{})
	m.delayed = 0
	m.heap = nil
	m.pending = make(map[int]*heapItem)
	m.cond.Broadcast()
}

// PendingIDs lists queued document IDs without dequeuing them.
func (m *Manager) PendingIDs() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]int, 0, len(m.pending))
	for id := range m.pending {
		out = append(out, id)
	}
	return out
}

// DeadLetters returns a snapshot of the dead-letter list.
func (m *Manager) DeadLetters() []model.DeadLetterEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.DeadLetterEntry, len(m.dead))
	copy(out, m.dead)
	return out
}

// Len reports the number of immediately dequeuable items.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.heap.Len()
}

// heapItem orders the heap by priority descending, then by enqueue
// sequence so equal priorities stay FIFO.
type heapItem struct {
	item model.WorkItem
	seq  uint64
}

type itemHeap []*heapItem

func (h itemHeap) Len() int { return len(h) }

func (h itemHeap) Less(i, j int) bool {
	if h[i].item.Priority != h[j].item.Priority {
		return h[i].item.Priority > h[j].item.Priority
	}
	return h[i].seq < h[j].seq
}

func (h itemHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *itemHeap) Push(x any) { *h = append(*h, x.(*heapItem)) }

func (h *itemHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}
