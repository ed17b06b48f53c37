package sysstat

import (
	"context"
	"sync"
	"time"

	"github.com/rileyhilliard/pgcenter/internal/logger"
)

// CPUUsage is the share of ticks spent in each state, in percent.
type CPUUsage struct {
	User      float64
	Nice      float64
	System    float64
	Idle      float64
	IOWait    float64
	Steal     float64
	HardIRQ   float64
	SoftIRQ   float64
	Guest     float64
	GuestNice float64
}

// DiffCPU converts two samples into percentages of the ticks that elapsed
// between them. No elapsed ticks yields all zeros.
func DiffCPU(prev, curr CPUSample) CPUUsage {
	d := func(a, b uint64) uint64 {
		if b < a {
			return 0
		}
		return b - a
	}
	deltas := [10]uint64{
		d(prev.User, curr.User),
		d(prev.Nice, curr.Nice),
		d(prev.System, curr.System),
		d(prev.Idle, curr.Idle),
		d(prev.IOWait, curr.IOWait),
		d(prev.Steal, curr.Steal),
		d(prev.HardIRQ, curr.HardIRQ),
		d(prev.SoftIRQ, curr.SoftIRQ),
		d(prev.Guest, curr.Guest),
		d(prev.GuestNice, curr.GuestNice),
	}
	var total uint64
	for _, v := range deltas {
		total += v
	}
	if total == 0 {
		return CPUUsage{}
	}
	pct := func(v uint64) float64 { return float64(v) / float64(total) * 100 }
	return CPUUsage{
		User:      pct(deltas[0]),
		Nice:      pct(deltas[1]),
		System:    pct(deltas[2]),
		Idle:      pct(deltas[3]),
		IOWait:    pct(deltas[4]),
		Steal:     pct(deltas[5]),
		HardIRQ:   pct(deltas[6]),
		SoftIRQ:   pct(deltas[7]),
		Guest:     pct(deltas[8]),
		GuestNice: pct(deltas[9]),
	}
}

// HostStats is one sampler tick.
type HostStats struct {
	Host   string
	CPU    CPUUsage
	Cores  int
	Load   LoadAverage
	Uptime time.Duration
	At     time.Time
	Err    error
}

// Sampler reads host counters from a Source and keeps the previous CPU
// sample between calls.
type Sampler struct {
	src Source
	log logger.Logger
	now func() time.Time

	mu   sync.Mutex
	prev *CPUSample
}

// NewSampler creates a sampler over src.
func NewSampler(src Source, log logger.Logger) *Sampler {
	if log == nil {
		log = logger.Noop()
	}
	return &Sampler{src: src, log: log, now: time.Now}
}

// SampleCPU reads the current CPU counters.
func (s *Sampler) SampleCPU(ctx context.Context) (CPUSample, error) {
	data, err := s.src.ReadFile(ctx, StatFile)
	if err != nil {
		return CPUSample{}, err
	}
	return ParseCPU(string(data))
}

// SampleLoadAverage reads /proc/loadavg.
func (s *Sampler) SampleLoadAverage(ctx context.Context) (LoadAverage, error) {
	data, err := s.src.ReadFile(ctx, LoadAvgFile)
	if err != nil {
		return LoadAverage{}, err
	}
	return ParseLoadAverage(string(data))
}

// SampleUptime reads /proc/uptime.
func (s *Sampler) SampleUptime(ctx context.Context) (time.Duration, error) {
	data, err := s.src.ReadFile(ctx, UptimeFile)
	if err != nil {
		return 0, err
	}
	return ParseUptime(string(data))
}

// Sample reads all counters and computes CPU usage since the previous call.
// The first call reports usage since boot.
func (s *Sampler) Sample(ctx context.Context) (HostStats, error) {
	stats := HostStats{Host: s.src.Name(), At: s.now()}

	cpu, err := s.SampleCPU(ctx)
	if err != nil {
		return stats, err
	}
	load, err := s.SampleLoadAverage(ctx)
	if err != nil {
		return stats, err
	}
	uptime, err := s.SampleUptime(ctx)
	if err != nil {
		return stats, err
	}

	s.mu.Lock()
	var prev CPUSample
	if s.prev != nil {
		prev = *s.prev
	}
	s.prev = &cpu
	s.mu.Unlock()

	stats.CPU = DiffCPU(prev, cpu)
	stats.Cores = cpu.Cores
	stats.Load = load
	stats.Uptime = uptime
	return stats, nil
}

// Run samples every interval until ctx is done, delivering results on out.
// Failures are delivered as HostStats with Err set.
func (s *Sampler) Run(ctx context.Context, interval time.Duration, out chan<- HostStats) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		stats, err := s.Sample(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.log.Debug("host sample failed: %v", err)
			stats.Err = err
		}
		select {
		case out <- stats:
		case <-ctx.Done():
			return
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}
