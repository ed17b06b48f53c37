package sysstat

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rileyhilliard/pgcenter/internal/errors"
)

const procStat = `cpu  10 0 0 90 0 0 0 0 0 0
cpu0 5 0 0 45 0 0 0 0 0 0
cpu1 5 0 0 45 0 0 0 0 0 0
intr 12345
ctxt 67890
`

// fakeSource serves file contents from a map and can be swapped between calls.
type fakeSource struct {
	mu    sync.Mutex
	files map[string]string
	err   error
}

func (f *fakeSource) ReadFile(ctx context.Context, path string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	content, ok := f.files[path]
	if !ok {
		return nil, fmt.Errorf("no such file: %s", path)
	}
	return []byte(content), nil
}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) set(path, content string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[path] = content
}

func newFakeSource() *fakeSource {
	return &fakeSource{files: map[string]string{
		StatFile:    procStat,
		LoadAvgFile: "0.52 0.58 0.59 1/389 12345\n",
		UptimeFile:  "3725.50 7000.10\n",
	}}
}

func TestParseCPU(t *testing.T) {
	s, err := ParseCPU(procStat)
	require.NoError(t, err)

	assert.Equal(t, uint64(10), s.User)
	assert.Equal(t, uint64(90), s.Idle)
	assert.Equal(t, uint64(100), s.Total())
	assert.Equal(t, 2, s.Cores)
}

func TestParseCPUFieldOrder(t *testing.T) {
	s, err := ParseCPU("cpu  1 2 3 4 5 6 7 8 9 10\n")
	require.NoError(t, err)

	assert.Equal(t, CPUSample{
		User: 1, Nice: 2, System: 3, Idle: 4, IOWait: 5,
		HardIRQ: 6, SoftIRQ: 7, Steal: 8, Guest: 9, GuestNice: 10,
	}, s)
}

func TestParseCPUShortLine(t *testing.T) {
	s, err := ParseCPU("cpu  1 2 3 4 5 6 7\n")
	require.NoError(t, err)
	assert.Equal(t, uint64(0), s.Steal)
	assert.Equal(t, uint64(28), s.Total())
}

func TestParseCPUErrors(t *testing.T) {
	_, err := ParseCPU("cpu  1 2\n")
	assert.Error(t, err)

	_, err = ParseCPU("cpu  1 2 x 4\n")
	assert.Error(t, err)

	_, err = ParseCPU("intr 1\n")
	assert.Error(t, err)
}

func TestDiffCPU(t *testing.T) {
	prev := CPUSample{User: 100, Idle: 900}
	curr := CPUSample{User: 110, Idle: 990}

	u := DiffCPU(prev, curr)
	assert.InDelta(t, 10.0, u.User, 1e-9)
	assert.InDelta(t, 90.0, u.Idle, 1e-9)
	assert.Equal(t, 0.0, u.System)
}

func TestDiffCPUAllBuckets(t *testing.T) {
	curr := CPUSample{User: 1, Nice: 1, System: 1, Idle: 1, IOWait: 1, Steal: 1, HardIRQ: 1, SoftIRQ: 1, Guest: 1, GuestNice: 1}

	u := DiffCPU(CPUSample{}, curr)
	for _, v := range []float64{u.User, u.Nice, u.System, u.Idle, u.IOWait, u.Steal, u.HardIRQ, u.SoftIRQ, u.Guest, u.GuestNice} {
		assert.InDelta(t, 10.0, v, 1e-9)
	}
}

func TestDiffCPUZeroTotal(t *testing.T) {
	s := CPUSample{User: 5, Idle: 5}
	assert.Equal(t, CPUUsage{}, DiffCPU(s, s))
}

func TestParseLoadAverage(t *testing.T) {
	l, err := ParseLoadAverage("0.52 0.58 0.59 1/389 12345\n")
	require.NoError(t, err)
	assert.Equal(t, LoadAverage{One: 0.52, Five: 0.58, Fifteen: 0.59}, l)

	_, err = ParseLoadAverage("0.5")
	assert.Error(t, err)
}

func TestParseUptime(t *testing.T) {
	d, err := ParseUptime("3725.50 7000.10\n")
	require.NoError(t, err)
	assert.Equal(t, 3725*time.Second+500*time.Millisecond, d)

	_, err = ParseUptime("")
	assert.Error(t, err)
}

func TestSamplerKeepsPreviousSample(t *testing.T) {
	src := newFakeSource()
	s := NewSampler(src, nil)
	ctx := context.Background()

	first, err := s.Sample(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 10.0, first.CPU.User, 1e-9, "first sample reports usage since boot")
	assert.Equal(t, 2, first.Cores)
	assert.Equal(t, "fake", first.Host)
	assert.Equal(t, 0.52, first.Load.One)

	src.set(StatFile, "cpu  60 0 0 140 0 0 0 0 0 0\n")
	second, err := s.Sample(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 50.0, second.CPU.User, 1e-9)
	assert.InDelta(t, 50.0, second.CPU.Idle, 1e-9)
}

func TestSamplersAreIndependent(t *testing.T) {
	ctx := context.Background()
	a := NewSampler(newFakeSource(), nil)
	b := NewSampler(newFakeSource(), nil)

	_, err := a.Sample(ctx)
	require.NoError(t, err)

	stats, err := b.Sample(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 10.0, stats.CPU.User, 1e-9, "b has no previous sample of its own")
}

func TestSamplerRunDeliversErrors(t *testing.T) {
	src := newFakeSource()
	src.err = errors.New(errors.ErrHost, "boom", "")
	s := NewSampler(src, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := make(chan HostStats)
	go s.Run(ctx, 10*time.Millisecond, out)

	select {
	case st := <-out:
		require.Error(t, st.Err)
		assert.True(t, errors.IsCode(st.Err, errors.ErrHost))
	case <-time.After(2 * time.Second):
		t.Fatal("no stats delivered")
	}
}

func TestSamplerRunStopsOnCancel(t *testing.T) {
	s := NewSampler(newFakeSource(), nil)
	ctx, cancel := context.WithCancel(context.Background())

	out := make(chan HostStats, 1)
	done := make(chan struct{})
	go func() {
		s.Run(ctx, time.Hour, out)
		close(done)
	}()

	<-out
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestLocalSourceRoot(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "proc"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "proc", "loadavg"), []byte("1.00 2.00 3.00 1/1 1\n"), 0644))

	s := NewSampler(LocalSource{Root: root}, nil)
	l, err := s.SampleLoadAverage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3.0, l.Fifteen)

	_, err = s.SampleCPU(context.Background())
	assert.True(t, errors.IsCode(err, errors.ErrHost))
}

type fakeExecutor struct {
	cmds []string
}

func (f *fakeExecutor) Exec(ctx context.Context, cmd string) ([]byte, error) {
	f.cmds = append(f.cmds, cmd)
	return []byte("4.00 5.00 6.00 1/1 1\n"), nil
}

func (f *fakeExecutor) GetHost() string { return "db-remote" }
func (f *fakeExecutor) Close() error   { return nil }

func TestSSHSource(t *testing.T) {
	exec := &fakeExecutor{}
	src := SSHSource{Client: exec}

	s := NewSampler(src, nil)
	l, err := s.SampleLoadAverage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4.0, l.One)
	assert.Equal(t, []string{"cat /proc/loadavg"}, exec.cmds)
	assert.Equal(t, "db-remote", src.Name())
}
