// Package uploads 管理一个会话内的上传列表：校验文件，逐个异步生成提示词，合并结果
package uploads

import (
	"context"
	"sync"
	"time"

	"promptcraft/common"
	"promptcraft/internal/action"
	"promptcraft/internal/datauri"

	"github.com/sirupsen/logrus"
)

// EventType 列表变化类型
type EventType string

const (
	EventAdded   EventType = "added"
	EventUpdated EventType = "updated"
	EventRemoved EventType = "removed"
	EventCleared EventType = "cleared"
)

// Event 推送给订阅者（websocket）的列表变化
type Event struct {
	Type EventType `json:"type"`
	ID   int64     `json:"id,omitempty"`
	Item *Item     `json:"item,omitempty"`
}

const subscriberBuffer = 64

// Options 控制器配置
type Options struct {
	SessionID    string
	MaxBytes     int64
	AllowedTypes []string
}

// Controller 一个会话的上传列表
// 每个接受的文件启动一个 goroutine，结果到达时只更新对应 id 的项
type Controller struct {
	submitter action.Submitter
	maxBytes  int64
	allowed   map[string]bool
	logger    *logrus.Entry

	mu       sync.Mutex
	nextID   int64
	order    []int64 // 新的在前
	items    map[int64]Item
	previews map[int64][]byte
	subs     map[int]chan Event
	nextSub  int
	closed   bool

	wg sync.WaitGroup
}

// NewController 创建控制器
func NewController(submitter action.Submitter, opts Options) *Controller {
	maxBytes := opts.MaxBytes
	if maxBytes <= 0 {
		maxBytes = common.DefaultUploadMaxBytes
	}
	types := opts.AllowedTypes
	if len(types) == 0 {
		types = DefaultAllowedTypes
	}
	allowed := make(map[string]bool, len(types))
	for _, t := range types {
		allowed[normalizeMIMEType(t)] = true
	}

	return &Controller{
		submitter: submitter,
		maxBytes:  maxBytes,
		allowed:   allowed,
		logger:    common.WithSession(opts.SessionID),
		items:     make(map[int64]Item),
		previews:  make(map[int64][]byte),
		subs:      make(map[int]chan Event),
	}
}

// Add 校验并接受一批文件，被接受的文件以 pending 状态插入列表头部并开始处理
// 返回的 Item 是插入时的快照
func (c *Controller) Add(files ...File) ([]Item, []Rejection) {
	var rejected []Rejection
	type accepted struct {
		file     File
		mimeType string
	}
	var batch []accepted
	for _, f := range files {
		mimeType := detectMIMEType(f)
		if r := c.check(f, mimeType); r != nil {
			c.logger.WithFields(logrus.Fields{
				"file":      f.Name,
				"mime_type": mimeType,
				"size":      len(f.Data),
			}).Warn("Upload rejected")
			rejected = append(rejected, *r)
			continue
		}
		batch = append(batch, accepted{file: f, mimeType: mimeType})
	}
	if len(batch) == 0 {
		return nil, rejected
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, rejected
	}
	now := time.Now()
	added := make([]Item, 0, len(batch))
	ids := make([]int64, 0, len(batch))
	for _, a := range batch {
		c.nextID++
		item := Item{
			ID:        c.nextID,
			Name:      a.file.Name,
			MIMEType:  a.mimeType,
			Size:      int64(len(a.file.Data)),
			State:     StatePending,
			CreatedAt: now,
		}
		c.items[item.ID] = item
		c.previews[item.ID] = a.file.Data
		ids = append(ids, item.ID)
		added = append(added, item)
	}
	c.order = append(ids, c.order...)
	for _, item := range added {
		c.publishLocked(Event{Type: EventAdded, ID: item.ID, Item: &item})
	}
	c.wg.Add(len(batch))
	c.mu.Unlock()

	for i, a := range batch {
		go c.process(ids[i], a.mimeType, a.file.Data)
	}

	c.logger.WithField("count", len(added)).Info("Uploads accepted")
	return added, rejected
}

// process 在与调用方无关的 context 上运行，删除项不会取消请求
func (c *Controller) process(id int64, mimeType string, data []byte) {
	defer c.wg.Done()
	uri := datauri.Encode(mimeType, data)
	result := c.submitter.Submit(context.Background(), uri)
	c.complete(id, result)
}

func (c *Controller) complete(id int64, result action.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, ok := c.items[id]
	if !ok {
		c.logger.WithField("id", id).Debug("Dropping result for removed item")
		return
	}
	if !item.Pending() {
		return
	}

	item = Resolve(item, result)
	resolvedAt := time.Now()
	item.ResolvedAt = &resolvedAt
	c.items[id] = item
	c.publishLocked(Event{Type: EventUpdated, ID: id, Item: &item})

	c.logger.WithFields(logrus.Fields{
		"id":    id,
		"state": item.State,
		"kind":  result.Kind,
	}).Info("Upload resolved")
}

// Items 返回当前列表，新的在前
func (c *Controller) Items() []Item {
	c.mu.Lock()
	defer c.mu.Unlock()

	items := make([]Item, 0, len(c.order))
	for _, id := range c.order {
		items = append(items, c.items[id])
	}
	return items
}

// Get 按 id 获取
func (c *Controller) Get(id int64) (Item, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	item, ok := c.items[id]
	return item, ok
}

// Preview 返回预览用的原始图片，项被删除后返回 false
func (c *Controller) Preview(id int64) ([]byte, string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, ok := c.previews[id]
	if !ok {
		return nil, "", false
	}
	return data, c.items[id].MIMEType, true
}

// Remove 删除一项并释放预览，正在进行的请求不会被取消
func (c *Controller) Remove(id int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.items[id]; !ok {
		return false
	}
	delete(c.items, id)
	delete(c.previews, id)
	for i, v := range c.order {
		if v == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	c.publishLocked(Event{Type: EventRemoved, ID: id})
	return true
}

// Clear 清空列表，返回删除的数量
func (c *Controller) Clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.order)
	c.items = make(map[int64]Item)
	c.previews = make(map[int64][]byte)
	c.order = nil
	c.publishLocked(Event{Type: EventCleared})
	return n
}

// Pending 返回仍在处理中的数量
func (c *Controller) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, item := range c.items {
		if item.Pending() {
			n++
		}
	}
	return n
}

// Subscribe 订阅列表变化，返回的函数用于取消订阅
// 订阅者处理过慢时事件会被丢弃，可以通过 Items 重新同步
func (c *Controller) Subscribe() (<-chan Event, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan Event, subscriberBuffer)
	if c.closed {
		close(ch)
		return ch, func() {}
	}
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if sub, ok := c.subs[id]; ok {
				delete(c.subs, id)
				close(sub)
			}
		})
	}
}

func (c *Controller) publishLocked(ev Event) {
	for id, ch := range c.subs {
		select {
		case ch <- ev:
		default:
			c.logger.WithField("subscriber", id).Warn("Subscriber is slow, dropping event")
		}
	}
}

// Wait 等待所有进行中的请求结束
func (c *Controller) Wait() {
	c.wg.Wait()
}

// Close 释放所有项并关闭订阅，之后的 Add 不再接受文件
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	c.items = make(map[int64]Item)
	c.previews = make(map[int64][]byte)
	c.order = nil
	for id, ch := range c.subs {
		delete(c.subs, id)
		close(ch)
	}
}
