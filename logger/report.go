package logger

import (
	"context"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

type channelStat struct {
	messages int64
	bytes    int64
}

var (
	errorsFeed     int64
	errorsPipeline int64
	warnsFeed      int64
	warnsPipeline  int64
	streamReads    int64
	pollReads      int64
	channels       sync.Map // map[string]*channelStat
)

func recordWarn(component string) {
	if strings.Contains(component, "feed") {
		atomic.AddInt64(&warnsFeed, 1)
	} else if strings.Contains(component, "pipeline") {
		atomic.AddInt64(&warnsPipeline, 1)
	}
}

func recordError(component string) {
	if strings.Contains(component, "feed") {
		atomic.AddInt64(&errorsFeed, 1)
	} else if strings.Contains(component, "pipeline") {
		atomic.AddInt64(&errorsPipeline, 1)
	}
}

// IncrementStreamRead records one message received on the live socket.
func IncrementStreamRead(size int) {
	atomic.AddInt64(&streamReads, 1)
	recordChannel("stream_ws", size)
}

// IncrementPollRead records one REST polling fetch.
func IncrementPollRead(size int) {
	atomic.AddInt64(&pollReads, 1)
	recordChannel("poll_rest", size)
}

func RecordChannelMessage(name string, size int) {
	recordChannel(name, size)
}

func recordChannel(name string, size int) {
	v, _ := channels.LoadOrStore(name, &channelStat{})
	cs := v.(*channelStat)
	atomic.AddInt64(&cs.messages, 1)
	atomic.AddInt64(&cs.bytes, int64(size))
}

func startReport(ctx context.Context, log *Log, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		for {
			select {
			case <-ctx.Done():
				ticker.Stop()
				return
			case <-ticker.C:
				logReport(log)
			}
		}
	}()
}

// StartReport begins periodic logging of runtime and channel statistics.
func StartReport(ctx context.Context, log *Log, interval time.Duration) {
	startReport(ctx, log, interval)
}

func logReport(log *Log) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	channelData := map[string]map[string]int64{}
	channels.Range(func(k, v any) bool {
		name := k.(string)
		cs := v.(*channelStat)
		channelData[name] = map[string]int64{
			"messages": atomic.LoadInt64(&cs.messages),
			"bytes":    atomic.LoadInt64(&cs.bytes),
		}
		return true
	})

	fields := Fields{
		"errors_feed":     atomic.LoadInt64(&errorsFeed),
		"errors_pipeline": atomic.LoadInt64(&errorsPipeline),
		"warns_feed":      atomic.LoadInt64(&warnsFeed),
		"warns_pipeline":  atomic.LoadInt64(&warnsPipeline),
		"stream_reads":    atomic.LoadInt64(&streamReads),
		"poll_reads":      atomic.LoadInt64(&pollReads),
		"goroutines":      runtime.NumGoroutine(),
		"heap_mb":         int64(mem.HeapAlloc) / 1024 / 1024,
		"channels":        channelData,
	}

	log.WithComponent("report").WithFields(fields).Info("runtime report")

	if fn := metricPublisher.Load(); fn != nil {
		(*fn)("report", "goroutines", float64(runtime.NumGoroutine()), nil)
		(*fn)("report", "heap_mb", float64(mem.HeapAlloc)/1024/1024, nil)
		(*fn)("report", "stream_reads", float64(atomic.LoadInt64(&streamReads)), nil)
		(*fn)("report", "poll_reads", float64(atomic.LoadInt64(&pollReads)), nil)
	}
}
