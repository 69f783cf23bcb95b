package uploads

import (
	"time"

	"promptcraft/internal/action"
)

// State 上传项的处理状态
type State string

const (
	StatePending State = "pending"
	StateSuccess State = "success"
	StateFailure State = "failure"
)

// Item 一张已接受的图片及其处理结果
type Item struct {
	ID         int64      `json:"id"`
	Name       string     `json:"name"`
	MIMEType   string     `json:"mimeType"`
	Size       int64      `json:"size"`
	State      State      `json:"state"`
	Prompt     string     `json:"prompt,omitempty"`
	Error      string     `json:"error,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	ResolvedAt *time.Time `json:"resolvedAt,omitempty"`
}

// Pending 是否仍在等待结果
func (i Item) Pending() bool {
	return i.State == StatePending
}

// Resolve 将结果合并到对应的上传项，返回新的值
// 已完成的项保持不变，因此重复或过期的结果不会覆盖第一次的结果
func Resolve(item Item, result action.Result) Item {
	if !item.Pending() {
		return item
	}
	if result.Prompt != "" {
		item.State = StateSuccess
		item.Prompt = result.Prompt
		item.Error = ""
		return item
	}
	item.State = StateFailure
	item.Prompt = ""
	item.Error = result.Error
	if item.Error == "" {
		item.Error = action.MsgUnknown
	}
	return item
}
