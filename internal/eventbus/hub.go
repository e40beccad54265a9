// Package eventbus 进程内事件广播，供 SSE 推送活动变更。
package eventbus

import (
	"context"
	"sync"
	"time"
)

const (
	TypeActivityCreated  = "activity.created"
	TypeActivityDeleted  = "activity.deleted"
	TypeActivityImported = "activity.imported"
	TypeBabyCreated      = "baby.created"
)

// Event 推送给订阅者的事件；BabyID 为 0 表示与具体宝宝无关
type Event struct {
	Type      string         `json:"type"`
	BabyID    int64          `json:"baby_id,omitempty"`
	Timestamp int64          `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// SubscribeOptions 订阅参数
type SubscribeOptions struct {
	Buffer int   // 通道缓冲，<=0 时取 16
	BabyID int64 // 非 0 时只接收该宝宝的事件及全局事件
}

type subscriber struct {
	ch     chan Event
	babyID int64
}

func (s *subscriber) wants(evt Event) bool {
	return s.babyID == 0 || evt.BabyID == 0 || evt.BabyID == s.babyID
}

// Hub 发布不阻塞；订阅者缓冲满时该订阅者丢事件
type Hub struct {
	mu      sync.RWMutex
	subs    map[*subscriber]struct{}
	dropped uint64
}

func NewHub() *Hub {
	return &Hub{subs: make(map[*subscriber]struct{})}
}

// Publish 广播事件；Timestamp 为 0 时填入当前毫秒时间
func (h *Hub) Publish(evt Event) {
	if h == nil {
		return
	}
	if evt.Timestamp == 0 {
		evt.Timestamp = time.Now().UnixMilli()
	}

	h.mu.RLock()
	var dropped uint64
	for s := range h.subs {
		if !s.wants(evt) {
			continue
		}
		select {
		case s.ch <- evt:
		default:
			dropped++
		}
	}
	h.mu.RUnlock()

	if dropped > 0 {
		h.mu.Lock()
		h.dropped += dropped
		h.mu.Unlock()
	}
}

// Subscribe 订阅事件，ctx 结束后退订并关闭通道
func (h *Hub) Subscribe(ctx context.Context, opts SubscribeOptions) <-chan Event {
	if opts.Buffer <= 0 {
		opts.Buffer = 16
	}
	s := &subscriber{ch: make(chan Event, opts.Buffer), babyID: opts.BabyID}

	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		delete(h.subs, s)
		h.mu.Unlock()
		close(s.ch)
	}()

	return s.ch
}

// Stats 当前订阅数与累计丢弃的事件数
func (h *Hub) Stats() (subscribers int, dropped uint64) {
	if h == nil {
		return 0, 0
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs), h.dropped
}
