package engine

import (
	"sync"
	"time"
)

type NoticeLevel string

const (
	NoticeInfo    NoticeLevel = "info"
	NoticeSuccess NoticeLevel = "success"
	NoticeWarning NoticeLevel = "warning"
	NoticeError   NoticeLevel = "error"
)

const maxNotices = 50

// Notice is a short user-facing message, the toast of the rendering layer.
type Notice struct {
	Level   NoticeLevel `json:"level"`
	Message string      `json:"message"`
	At      time.Time   `json:"at"`
}

type noticeLog struct {
	mu      sync.Mutex
	now     func() time.Time
	entries []Notice
}

func newNoticeLog(now func() time.Time) *noticeLog {
	return &noticeLog{now: now}
}

func (l *noticeLog) add(level NoticeLevel, message string) Notice {
	n := Notice{Level: level, Message: message, At: l.now()}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, n)
	if len(l.entries) > maxNotices {
		l.entries = l.entries[len(l.entries)-maxNotices:]
	}
	return n
}

func (l *noticeLog) list() []Notice {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Notice, len(l.entries))
	copy(out, l.entries)
	return out
}

func (e *Engine) notify(level NoticeLevel, message string) {
	e.notices.add(level, message)
}

// Notices returns the most recent notices, oldest first.
func (e *Engine) Notices() []Notice {
	return e.notices.list()
}
