package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/inventaire/internal/config"
	"github.com/mamadbah2/inventaire/internal/service/importer"
)

type fakeImporter struct {
	calls   atomic.Int32
	sources chan string
	release chan struct{}
	err     error

	cancelled atomic.Bool
}

func (f *fakeImporter) Run(ctx context.Context, source string) (importer.Summary, error) {
	f.calls.Add(1)
	if f.sources != nil {
		f.sources <- source
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			f.cancelled.Store(true)
			return importer.Summary{}, ctx.Err()
		}
	}
	return importer.Summary{Rows: 1, Created: 1}, f.err
}

func TestNewSchedulerRejectsUnknownTimezone(t *testing.T) {
	_, err := NewScheduler(config.ScheduleConfig{CronSchedule: "@hourly", Timezone: "Mars/Olympus"}, &fakeImporter{}, "stock.xlsx", nil)
	assert.Error(t, err)
}

func TestStartRejectsInvalidSchedule(t *testing.T) {
	s, err := NewScheduler(config.ScheduleConfig{CronSchedule: "every now and then", Timezone: "UTC"}, &fakeImporter{}, "stock.xlsx", nil)
	require.NoError(t, err)
	assert.Error(t, s.Start(context.Background()))
}

func TestRunNow(t *testing.T) {
	imp := &fakeImporter{err: errors.New("schema mismatch")}
	s, err := NewScheduler(config.ScheduleConfig{CronSchedule: "@hourly", Timezone: "UTC"}, imp, "stock.xlsx", nil)
	require.NoError(t, err)

	s.RunNow(context.Background())
	assert.EqualValues(t, 1, imp.calls.Load())
}

func TestRunNowHonoursCancellation(t *testing.T) {
	imp := &fakeImporter{release: make(chan struct{})}
	s, err := NewScheduler(config.ScheduleConfig{CronSchedule: "@hourly", Timezone: "UTC"}, imp, "stock.xlsx", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.RunNow(ctx)
	assert.True(t, imp.cancelled.Load())
}

func TestScheduledRunsDoNotOverlap(t *testing.T) {
	imp := &fakeImporter{sources: make(chan string, 10), release: make(chan struct{})}
	s, err := NewScheduler(config.ScheduleConfig{CronSchedule: "@every 1s", Timezone: "Europe/Paris"}, imp, "stock.xlsx", nil)
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))

	select {
	case source := <-imp.sources:
		assert.Equal(t, "stock.xlsx", source)
	case <-time.After(3 * time.Second):
		t.Fatal("import was not scheduled")
	}

	// Further ticks fire while the first run is blocked.
	time.Sleep(2500 * time.Millisecond)
	assert.EqualValues(t, 1, imp.calls.Load())

	close(imp.release)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
}

func TestStopCancelsRunningImport(t *testing.T) {
	imp := &fakeImporter{sources: make(chan string, 10), release: make(chan struct{})}
	s, err := NewScheduler(config.ScheduleConfig{CronSchedule: "@every 1s", Timezone: "UTC"}, imp, "stock.xlsx", nil)
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))

	select {
	case <-imp.sources:
	case <-time.After(3 * time.Second):
		t.Fatal("import was not scheduled")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	assert.True(t, imp.cancelled.Load())
}

func TestStartContextCancelsRunningImport(t *testing.T) {
	imp := &fakeImporter{sources: make(chan string, 10), release: make(chan struct{})}
	s, err := NewScheduler(config.ScheduleConfig{CronSchedule: "@every 1s", Timezone: "UTC"}, imp, "stock.xlsx", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Start(ctx))

	select {
	case <-imp.sources:
	case <-time.After(3 * time.Second):
		t.Fatal("import was not scheduled")
	}
	cancel()

	assert.Eventually(t, imp.cancelled.Load, 2*time.Second, 10*time.Millisecond)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer stopCancel()
	require.NoError(t, s.Stop(stopCtx))
}
