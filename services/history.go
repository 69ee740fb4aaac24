package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Workiva/go-datastructures/queue"

	"rag-keeper/internal/logger"
	"rag-keeper/internal/models"
)

// 单个事件写入一个sink的超时
const sinkTimeout = 5 * time.Second

// Close时等待缓冲区排空的最长时间
const drainTimeout = 2 * time.Second

/**
 * EventSink destination of process lifecycle events
 * @description
 * - Send is called from the recorder goroutine only, never from the supervisor
 */
type EventSink interface {
	Send(ctx context.Context, e models.Event) error
	Close() error
}

// EventArchive 保存已移除进程历史的sink，PostgresSink实现它
type EventArchive interface {
	Recent(ctx context.Context, name string, limit int) ([]models.Event, error)
}

/**
 * Recorder 生命周期事件的异步分发器
 * @property {*queue.RingBuffer} buffer - 有界缓冲区，满了丢弃新事件
 * @property {[]EventSink} sinks - 事件的目的地
 * @property {int64} dropped - 被丢弃的事件数
 */
type Recorder struct {
	buffer  *queue.RingBuffer
	sinks   []EventSink
	signal  chan struct{}
	done    chan struct{}
	stopped chan struct{}
	dropped atomic.Int64
	once    sync.Once
}

/**
 * Create recorder and start its worker goroutine
 * @param {int} capacity - Buffer size, rounded up to a power of two by the ring buffer
 * @param {...EventSink} sinks - Destinations, each event goes to every sink in order
 * @returns {*Recorder} Running recorder, call Close to drain and stop it
 */
func NewRecorder(capacity int, sinks ...EventSink) *Recorder {
	if capacity <= 0 {
		capacity = 1024
	}
	r := &Recorder{
		buffer:  queue.NewRingBuffer(uint64(capacity)),
		sinks:   sinks,
		signal:  make(chan struct{}, 1),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go r.run()
	return r
}

/**
 * Record queue an event without blocking
 * @param {models.Event} e - Event to record
 * @description
 * - Called under the process instance lock, so it must never wait
 * - A full buffer drops the event with a warning
 */
func (r *Recorder) Record(e models.Event) {
	ok, err := r.buffer.Offer(e)
	if err != nil {
		// 已经关闭
		return
	}
	if !ok {
		n := r.dropped.Add(1)
		logger.WithField(logger.FieldProcess, e.Name).Warnf("History buffer full, dropped %s event (%d dropped so far)", e.Type, n)
		return
	}
	select {
	case r.signal <- struct{}{}:
	default:
	}
}

// Dropped 返回因缓冲区满而丢弃的事件数
func (r *Recorder) Dropped() int64 {
	return r.dropped.Load()
}

func (r *Recorder) run() {
	defer close(r.stopped)
	for {
		select {
		case <-r.signal:
			r.drain()
		case <-r.done:
			r.drain()
			return
		}
	}
}

func (r *Recorder) drain() {
	for r.buffer.Len() != 0 {
		item, err := r.buffer.Get()
		if err != nil {
			return
		}
		e := item.(models.Event)
		for _, sink := range r.sinks {
			ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
			if err := sink.Send(ctx, e); err != nil {
				logger.WithField(logger.FieldError, err).Warnf("Failed to export %s event of '%s'", e.Type, e.Name)
			}
			cancel()
		}
	}
}

/**
 * Close drain pending events, stop the worker and close every sink
 * @returns {error} Joined sink close errors
 */
func (r *Recorder) Close() error {
	var errs []error
	r.once.Do(func() {
		close(r.done)
		select {
		case <-r.stopped:
		case <-time.After(drainTimeout):
			logger.Warnf("History recorder didn't drain in %v, %d events lost", drainTimeout, r.buffer.Len())
		}
		r.buffer.Dispose()
		for _, sink := range r.sinks {
			errs = append(errs, sink.Close())
		}
	})
	return errors.Join(errs...)
}

/**
 * MemorySink 内存中保留每个进程最近的事件，供events接口查询
 * @property {int} keep - 每个进程保留的事件数
 */
type MemorySink struct {
	keep   int
	events map[string][]models.Event
	mutex  sync.RWMutex
}

func NewMemorySink(keep int) *MemorySink {
	if keep <= 0 {
		keep = 100
	}
	return &MemorySink{keep: keep, events: make(map[string][]models.Event)}
}

func (m *MemorySink) Send(_ context.Context, e models.Event) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	list := append(m.events[e.Name], e)
	if len(list) > m.keep {
		list = append([]models.Event(nil), list[len(list)-m.keep:]...)
	}
	m.events[e.Name] = list
	return nil
}

/**
 * Events recent events of a process, oldest first
 * @param {string} name - Process name
 * @param {int} limit - Maximum number of events, <= 0 means all kept events
 * @returns {[]models.Event} Copy of the kept events
 */
func (m *MemorySink) Events(name string, limit int) []models.Event {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	list := m.events[name]
	if limit > 0 && len(list) > limit {
		list = list[len(list)-limit:]
	}
	return append([]models.Event{}, list...)
}

// Forget 删除进程的事件，进程从配置中移除时调用
func (m *MemorySink) Forget(name string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.events, name)
}

func (m *MemorySink) Close() error {
	return nil
}
