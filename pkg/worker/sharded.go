package worker

import (
	"context"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eyjolfurgudnivatne/mcp.gateway-sub003/metric"
)

// ShardedPool runs one worker per shard, each draining its own bounded
// queue. Submit hashes a key to a shard, so items sharing a key are
// processed by the same worker in submission order while distinct keys
// run in parallel. Like Pool, Submit never blocks; ErrQueueFull is the
// backpressure signal for the chosen shard.
type ShardedPool[T any] struct {
	shards    int
	queueSize int
	processor func(context.Context, T) error

	queues  []chan T
	metrics *Metrics
	wg      *sync.WaitGroup

	lifecycleMu sync.Mutex
	started     bool
	stopped     bool

	// Counters, updated atomically.
	submitted int64
	processed int64
	failed    int64
	dropped   int64

	metricsRegistry *metric.MetricsRegistry
	metricsPrefix   string
}

// ShardedOption configures a ShardedPool.
type ShardedOption[T any] func(*ShardedPool[T])

// WithShardedMetricsRegistry enables Prometheus metrics under the given
// name prefix. Instruments aggregate across all shards.
func WithShardedMetricsRegistry[T any](registry *metric.MetricsRegistry, prefix string) ShardedOption[T] {
	return func(p *ShardedPool[T]) {
		p.metricsRegistry = registry
		p.metricsPrefix = prefix
	}
}

// NewShardedPool creates a pool of shard workers, each with a queue of
// queueSize. Non-positive sizes fall back to 8 shards and queues of 128.
// A nil processor panics with ErrNilProcessor.
func NewShardedPool[T any](shards, queueSize int, processor func(context.Context, T) error, opts ...ShardedOption[T]) *ShardedPool[T] {
	if shards <= 0 {
		shards = 8
	}
	if queueSize <= 0 {
		queueSize = 128
	}
	if processor == nil {
		panic(ErrNilProcessor)
	}

	pool := &ShardedPool[T]{
		shards:    shards,
		queueSize: queueSize,
		processor: processor,
		queues:    make([]chan T, shards),
	}
	for i := range pool.queues {
		pool.queues[i] = make(chan T, queueSize)
	}

	for _, opt := range opts {
		opt(pool)
	}

	if pool.metricsRegistry != nil && pool.metricsPrefix != "" {
		pool.metrics = registerPoolMetrics(pool.metricsRegistry, pool.metricsPrefix)
	}

	return pool
}

// Submit enqueues work on the shard owning key without blocking. Returns
// ErrQueueFull when that shard's queue has no room.
func (p *ShardedPool[T]) Submit(key string, work T) error {
	p.lifecycleMu.Lock()
	defer p.lifecycleMu.Unlock()

	if !p.started {
		return ErrPoolNotStarted
	}
	if p.stopped {
		return ErrPoolStopped
	}

	queue := p.queues[p.shardFor(key)]
	select {
	case queue <- work:
		atomic.AddInt64(&p.submitted, 1)
		if p.metrics != nil {
			p.metrics.submitted.Inc()
			p.metrics.queueDepth.Set(float64(p.depth()))
		}
		return nil
	default:
		atomic.AddInt64(&p.dropped, 1)
		if p.metrics != nil {
			p.metrics.dropped.Inc()
		}
		return ErrQueueFull
	}
}

func (p *ShardedPool[T]) shardFor(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(p.shards))
}

func (p *ShardedPool[T]) depth() int {
	depth := 0
	for _, queue := range p.queues {
		depth += len(queue)
	}
	return depth
}

// Start launches one worker per shard. The context bounds their lifetime;
// a cancelled context stops workers even with items still queued.
func (p *ShardedPool[T]) Start(ctx context.Context) error {
	p.lifecycleMu.Lock()
	defer p.lifecycleMu.Unlock()

	if p.started {
		return ErrPoolAlreadyStarted
	}

	p.wg = &sync.WaitGroup{}

	for _, queue := range p.queues {
		p.wg.Add(1)
		go p.runShard(ctx, queue)
	}

	if p.metrics != nil {
		p.wg.Add(1)
		go p.gaugeLoop(ctx)
	}

	p.started = true
	return nil
}

// Stop closes every shard queue and waits up to timeout for the workers
// to drain. Returns ErrStopTimeout if they are still busy at the deadline.
func (p *ShardedPool[T]) Stop(timeout time.Duration) error {
	p.lifecycleMu.Lock()
	defer p.lifecycleMu.Unlock()

	if !p.started || p.stopped {
		return nil
	}

	for _, queue := range p.queues {
		close(queue)
	}

	done := make(chan struct{})
	go func() {
		if p.wg != nil {
			p.wg.Wait()
		}
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		p.stopped = true
		return nil
	case <-timer.C:
		return ErrStopTimeout
	}
}

// Stats returns a snapshot of the pool counters. QueueSize is per shard;
// QueueDepth sums across shards.
func (p *ShardedPool[T]) Stats() PoolStats {
	return PoolStats{
		Workers:    p.shards,
		QueueSize:  p.queueSize,
		QueueDepth: p.depth(),
		Submitted:  atomic.LoadInt64(&p.submitted),
		Processed:  atomic.LoadInt64(&p.processed),
		Failed:     atomic.LoadInt64(&p.failed),
		Dropped:    atomic.LoadInt64(&p.dropped),
	}
}

func (p *ShardedPool[T]) runShard(ctx context.Context, queue chan T) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case work, ok := <-queue:
			if !ok {
				return
			}

			start := time.Now()
			err := p.processor(ctx, work)
			duration := time.Since(start)

			atomic.AddInt64(&p.processed, 1)
			if err != nil {
				atomic.AddInt64(&p.failed, 1)
			}

			if p.metrics != nil {
				p.metrics.processed.Inc()
				status := "success"
				if err != nil {
					p.metrics.failed.Inc()
					status = "error"
				}
				p.metrics.processingTime.WithLabelValues(status).Observe(duration.Seconds())
			}
		}
	}
}

// gaugeLoop refreshes queue depth and utilization once a second.
func (p *ShardedPool[T]) gaugeLoop(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			depth := float64(p.depth())
			p.metrics.queueDepth.Set(depth)
			p.metrics.utilization.Set(depth / float64(p.queueSize*p.shards))
		}
	}
}
