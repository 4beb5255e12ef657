package dispatch

import (
	"container/heap"
	"errors"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/fanpulse/livewire/internal/domain/entity"
)

const metricsNamespace = "livewire"

// ErrQueueFull is returned by Push when the queue is at capacity.
var ErrQueueFull = errors.New("alert queue full")

// Queue is a bounded priority queue drained by the dispatcher tick. Highest
// priority pops first, oldest first within a tier; re-enqueued retries keep
// their original creation time so they never lose their place to newer work
// of the same priority.
type Queue struct {
	mu    sync.Mutex
	items alertHeap
	cap   int
	seq   uint64

	depth prometheus.Gauge
}

func NewQueue(capacity int, registry prometheus.Registerer) (*Queue, error) {
	depth := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Subsystem: "queue",
		Name:      "depth",
		Help:      "Alerts waiting for a dispatch tick.",
	})

	err := registry.Register(depth)
	if err != nil {
		return nil, fmt.Errorf("failed to register metric: %w", err)
	}

	return &Queue{
		cap:   capacity,
		depth: depth,
	}, nil
}

func (q *Queue) Push(alert entity.Alert) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.cap > 0 && q.items.Len() >= q.cap {
		return ErrQueueFull
	}

	q.seq++
	heap.Push(&q.items, queued{alert: alert, seq: q.seq})
	q.depth.Set(float64(q.items.Len()))

	return nil
}

// PopBatch removes and returns up to n alerts in dispatch order.
func (q *Queue) PopBatch(n int) []entity.Alert {
	q.mu.Lock()
	defer q.mu.Unlock()

	if n > q.items.Len() {
		n = q.items.Len()
	}

	if n <= 0 {
		return nil
	}

	ret := make([]entity.Alert, 0, n)

	for i := 0; i < n; i++ {
		item := heap.Pop(&q.items).(queued)
		ret = append(ret, item.alert)
	}

	q.depth.Set(float64(q.items.Len()))

	return ret
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.items.Len()
}

type queued struct {
	alert entity.Alert
	seq   uint64
}

type alertHeap []queued

func (h alertHeap) Len() int {
	return len(h)
}

func (h alertHeap) Less(i, j int) bool {
	if h[i].alert.Priority != h[j].alert.Priority {
		return h[i].alert.Priority > h[j].alert.Priority
	}

	if !h[i].alert.CreatedAt.Equal(h[j].alert.CreatedAt) {
		return h[i].alert.CreatedAt.Before(h[j].alert.CreatedAt)
	}

	// Insertion order as the final tie-break keeps pops deterministic.
	return h[i].seq < h[j].seq
}

func (h alertHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
}

func (h *alertHeap) Push(x any) {
	*h = append(*h, x.(queued))
}

func (h *alertHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = queued{}
	*h = old[:n-1]

	return item
}
