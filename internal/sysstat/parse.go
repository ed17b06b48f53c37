package sysstat

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// CPUSample holds the aggregate tick counters of /proc/stat.
type CPUSample struct {
	User      uint64
	Nice      uint64
	System    uint64
	Idle      uint64
	IOWait    uint64
	Steal     uint64
	HardIRQ   uint64
	SoftIRQ   uint64
	Guest     uint64
	GuestNice uint64
	Cores     int
}

// Total sums the ten counters.
func (s CPUSample) Total() uint64 {
	return s.User + s.Nice + s.System + s.Idle + s.IOWait +
		s.Steal + s.HardIRQ + s.SoftIRQ + s.Guest + s.GuestNice
}

// ParseCPU reads the aggregate "cpu" line and counts the per-core lines.
// Kernel field order: user nice system idle iowait irq softirq steal guest guest_nice.
// Older kernels print fewer fields; the missing ones stay zero.
func ParseCPU(procStat string) (CPUSample, error) {
	var s CPUSample
	found := false

	scanner := bufio.NewScanner(strings.NewReader(procStat))
	for scanner.Scan() {
		line := scanner.Text()

		if strings.HasPrefix(line, "cpu") && len(line) > 3 && line[3] >= '0' && line[3] <= '9' {
			s.Cores++
			continue
		}
		if !strings.HasPrefix(line, "cpu ") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 5 {
			return CPUSample{}, fmt.Errorf("invalid /proc/stat cpu line: %s", line)
		}
		vals := make([]uint64, 10)
		for i := 1; i < len(fields) && i <= len(vals); i++ {
			v, err := strconv.ParseUint(fields[i], 10, 64)
			if err != nil {
				return CPUSample{}, fmt.Errorf("failed to parse cpu field %d: %w", i, err)
			}
			vals[i-1] = v
		}
		s.User, s.Nice, s.System, s.Idle, s.IOWait = vals[0], vals[1], vals[2], vals[3], vals[4]
		s.HardIRQ, s.SoftIRQ, s.Steal, s.Guest, s.GuestNice = vals[5], vals[6], vals[7], vals[8], vals[9]
		found = true
	}
	if err := scanner.Err(); err != nil {
		return CPUSample{}, fmt.Errorf("error scanning /proc/stat: %w", err)
	}
	if !found {
		return CPUSample{}, fmt.Errorf("no aggregate cpu line in /proc/stat")
	}
	return s, nil
}

// LoadAverage is the 1, 5 and 15 minute run queue average.
type LoadAverage struct {
	One     float64
	Five    float64
	Fifteen float64
}

// ParseLoadAverage reads the first three fields of /proc/loadavg.
func ParseLoadAverage(procLoadavg string) (LoadAverage, error) {
	fields := strings.Fields(strings.TrimSpace(procLoadavg))
	if len(fields) < 3 {
		return LoadAverage{}, fmt.Errorf("invalid /proc/loadavg: %q", procLoadavg)
	}
	var vals [3]float64
	for i := range vals {
		v, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return LoadAverage{}, fmt.Errorf("failed to parse loadavg field %d: %w", i, err)
		}
		vals[i] = v
	}
	return LoadAverage{One: vals[0], Five: vals[1], Fifteen: vals[2]}, nil
}

// ParseUptime reads the first field of /proc/uptime.
func ParseUptime(procUptime string) (time.Duration, error) {
	fields := strings.Fields(strings.TrimSpace(procUptime))
	if len(fields) < 1 {
		return 0, fmt.Errorf("invalid /proc/uptime: %q", procUptime)
	}
	secs, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse uptime: %w", err)
	}
	return time.Duration(secs * float64(time.Second)), nil
}
