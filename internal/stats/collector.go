package stats

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shirou/gopsutil/v4/process"
	"go.opentelemetry.io/otel/metric"
)

// Sample is one reading of process resource usage.
type Sample struct {
	Elapsed    time.Duration
	HeapAlloc  uint64
	RSS        uint64
	CPUPercent float64
	Goroutines int
}

type Summary struct {
	Elapsed        time.Duration
	Samples        int
	PeakHeapAlloc  uint64
	PeakRSS        uint64
	PeakCPUPercent float64
	AvgCPUPercent  float64
	PeakGoroutines int
}

// LogValue lets a summary be passed straight to slog.
func (s Summary) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Duration("elapsed", s.Elapsed),
		slog.Int("samples", s.Samples),
		slog.String("peak_heap", humanize.IBytes(s.PeakHeapAlloc)),
		slog.String("peak_rss", humanize.IBytes(s.PeakRSS)),
		slog.String("peak_cpu", fmt.Sprintf("%.1f%%", s.PeakCPUPercent)),
		slog.String("avg_cpu", fmt.Sprintf("%.1f%%", s.AvgCPUPercent)),
		slog.Int("peak_goroutines", s.PeakGoroutines),
	)
}

// Collector samples the current process on an interval until stopped.
type Collector struct {
	mu      sync.Mutex
	samples []Sample

	interval time.Duration
	proc     *process.Process
	start    time.Time
	stop     chan struct{}
	done     chan struct{}
}

func NewCollector(interval time.Duration) (*Collector, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, fmt.Errorf("failed to get process info: %w", err)
	}

	return &Collector{
		interval: interval,
		proc:     proc,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

func (c *Collector) Start() {
	c.start = time.Now()
	go c.collect()
}

func (c *Collector) collect() {
	defer close(c.done)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.sample()
	for {
		select {
		case <-c.stop:
			c.sample()
			return
		case <-ticker.C:
			c.sample()
		}
	}
}

func (c *Collector) sample() {
	s := readSample(c.proc)
	s.Elapsed = time.Since(c.start)

	c.mu.Lock()
	c.samples = append(c.samples, s)
	c.mu.Unlock()
}

func readSample(proc *process.Process) Sample {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	s := Sample{
		HeapAlloc:  mem.HeapAlloc,
		Goroutines: runtime.NumGoroutine(),
	}
	if info, err := proc.MemoryInfo(); err == nil && info != nil {
		s.RSS = info.RSS
	}
	if cpu, err := proc.CPUPercent(); err == nil {
		s.CPUPercent = cpu
	}
	return s
}

// Stop ends collection and summarizes every sample taken.
func (c *Collector) Stop() Summary {
	close(c.stop)
	<-c.done

	c.mu.Lock()
	defer c.mu.Unlock()

	sum := Summary{
		Elapsed: time.Since(c.start),
		Samples: len(c.samples),
	}
	var totalCPU float64
	for _, s := range c.samples {
		sum.PeakHeapAlloc = max(sum.PeakHeapAlloc, s.HeapAlloc)
		sum.PeakRSS = max(sum.PeakRSS, s.RSS)
		sum.PeakCPUPercent = max(sum.PeakCPUPercent, s.CPUPercent)
		sum.PeakGoroutines = max(sum.PeakGoroutines, s.Goroutines)
		totalCPU += s.CPUPercent
	}
	if sum.Samples > 0 {
		sum.AvgCPUPercent = totalCPU / float64(sum.Samples)
	}
	return sum
}

// RegisterProcessMetrics exports process rss and cpu usage as observable
// gauges on meter.
func RegisterProcessMetrics(meter metric.Meter) error {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return fmt.Errorf("failed to get process info: %w", err)
	}

	rss, err := meter.Int64ObservableGauge("process_rss_bytes")
	if err != nil {
		return err
	}
	cpu, err := meter.Float64ObservableGauge("process_cpu_percent")
	if err != nil {
		return err
	}

	_, err = meter.RegisterCallback(func(ctx context.Context, o metric.Observer) error {
		s := readSample(proc)
		o.ObserveInt64(rss, int64(s.RSS))
		o.ObserveFloat64(cpu, s.CPUPercent)
		return nil
	}, rss, cpu)
	return err
}
