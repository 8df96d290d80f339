package observability

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/dropstream/drops-miner/logging"
)

// runtimeMetrics holds the Go runtime metric collectors.
type runtimeMetrics struct {
	goroutines   prometheus.Gauge
	heapAlloc    prometheus.Gauge
	heapSys      prometheus.Gauge
	heapObjects  prometheus.Gauge
	stackInuse   prometheus.Gauge
	gcPauseTotal prometheus.Gauge
	numGC        prometheus.Gauge
	lastGC       prometheus.Gauge
}

func newRuntimeMetrics(factory promauto.Factory) *runtimeMetrics {
	gauge := func(name, help string) prometheus.Gauge {
		return factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "runtime",
			Name:      name,
			Help:      help,
		})
	}
	return &runtimeMetrics{
		goroutines:   gauge("goroutines", "Number of goroutines"),
		heapAlloc:    gauge("heap_alloc_bytes", "Bytes of allocated heap objects"),
		heapSys:      gauge("heap_sys_bytes", "Bytes of heap memory obtained from the OS"),
		heapObjects:  gauge("heap_objects", "Number of allocated heap objects"),
		stackInuse:   gauge("stack_inuse_bytes", "Bytes in stack spans"),
		gcPauseTotal: gauge("gc_pause_total_seconds", "Cumulative GC pause time"),
		numGC:        gauge("gc_cycles_total", "Completed GC cycles"),
		lastGC:       gauge("last_gc_timestamp_seconds", "Unix timestamp of the last GC"),
	}
}

// RuntimeMetricsCollectorConfig configures the collection interval.
type RuntimeMetricsCollectorConfig struct {
	// Interval between runtime stat snapshots.
	// Default: 15s
	Interval time.Duration
}

// DefaultRuntimeMetricsCollectorConfig returns sensible defaults.
func DefaultRuntimeMetricsCollectorConfig() RuntimeMetricsCollectorConfig {
	return RuntimeMetricsCollectorConfig{Interval: 15 * time.Second}
}

// RuntimeMetricsCollector periodically samples Go runtime statistics
// into Prometheus gauges.
type RuntimeMetricsCollector struct {
	logger  logging.Logger
	config  RuntimeMetricsCollectorConfig
	metrics *runtimeMetrics

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// NewRuntimeMetricsCollector creates a collector registering its gauges
// with the given factory.
func NewRuntimeMetricsCollector(
	logger logging.Logger,
	config RuntimeMetricsCollectorConfig,
	factory promauto.Factory,
) *RuntimeMetricsCollector {
	if config.Interval <= 0 {
		config.Interval = DefaultRuntimeMetricsCollectorConfig().Interval
	}
	return &RuntimeMetricsCollector{
		logger:  logging.ForComponent(logger, logging.ComponentObservability),
		config:  config,
		metrics: newRuntimeMetrics(factory),
	}
}

// Start begins periodic collection. Idempotent.
func (c *RuntimeMetricsCollector) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return nil
	}

	collectCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	c.running = true

	go c.collectLoop(collectCtx)
	return nil
}

// Stop halts collection and waits for the loop to exit.
func (c *RuntimeMetricsCollector) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	cancel := c.cancel
	done := c.done
	c.running = false
	c.mu.Unlock()

	cancel()
	<-done
}

func (c *RuntimeMetricsCollector) collectLoop(ctx context.Context) {
	defer close(c.done)

	ticker := time.NewTicker(c.config.Interval)
	defer ticker.Stop()

	c.collect()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.collect()
		}
	}
}

func (c *RuntimeMetricsCollector) collect() {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	c.metrics.goroutines.Set(float64(runtime.NumGoroutine()))
	c.metrics.heapAlloc.Set(float64(ms.HeapAlloc))
	c.metrics.heapSys.Set(float64(ms.HeapSys))
	c.metrics.heapObjects.Set(float64(ms.HeapObjects))
	c.metrics.stackInuse.Set(float64(ms.StackInuse))
	c.metrics.gcPauseTotal.Set(float64(ms.PauseTotalNs) / 1e9)
	c.metrics.numGC.Set(float64(ms.NumGC))
	if ms.LastGC > 0 {
		c.metrics.lastGC.Set(float64(ms.LastGC) / 1e9)
	}
}
