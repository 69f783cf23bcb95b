package httpapi

import (
	"context"
	"net/http"
	"sync"
	"time"

	"promptcraft/common"
	"promptcraft/internal/uploads"

	"github.com/google/uuid"
)

const (
	SessionHeader = "X-Session-ID"
	SessionCookie = "promptcraft_session"
)

type session struct {
	id         string
	ctrl       *uploads.Controller
	lastActive time.Time
	conns      int
}

// SessionStore 按会话保存上传控制器，空闲会话会被定期回收
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*session
	idle     time.Duration
	newCtrl  func(id string) *uploads.Controller
	now      func() time.Time
}

// NewSessionStore idle <= 0 时不回收
func NewSessionStore(idle time.Duration, newCtrl func(id string) *uploads.Controller) *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*session),
		idle:     idle,
		newCtrl:  newCtrl,
		now:      time.Now,
	}
}

// sessionID 依次从 header、cookie、query 中读取会话 id，非法的 id 被忽略
func sessionID(r *http.Request) string {
	candidates := []string{r.Header.Get(SessionHeader)}
	if c, err := r.Cookie(SessionCookie); err == nil {
		candidates = append(candidates, c.Value)
	}
	candidates = append(candidates, r.URL.Query().Get("session"))

	for _, id := range candidates {
		if id == "" {
			continue
		}
		if parsed, err := uuid.Parse(id); err == nil {
			return parsed.String()
		}
	}
	return ""
}

// Acquire 获取请求对应的会话，不存在时创建并通过 header 与 cookie 返回新 id
func (s *SessionStore) Acquire(w http.ResponseWriter, r *http.Request) (string, *uploads.Controller) {
	id := sessionID(r)
	if id == "" {
		id = uuid.NewString()
	}

	s.mu.Lock()
	sess, ok := s.sessions[id]
	if !ok {
		sess = &session{id: id, ctrl: s.newCtrl(id)}
		s.sessions[id] = sess
		common.WithSession(id).Info("Session created")
	}
	sess.lastActive = s.now()
	s.mu.Unlock()

	w.Header().Set(SessionHeader, id)
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return id, sess.ctrl
}

// Lookup 只查找已有会话
func (s *SessionStore) Lookup(r *http.Request) (string, *uploads.Controller, bool) {
	id := sessionID(r)
	if id == "" {
		return "", nil, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return "", nil, false
	}
	sess.lastActive = s.now()
	return id, sess.ctrl, true
}

// attach / detach 记录 websocket 连接，有连接的会话不会被回收
func (s *SessionStore) attach(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[id]; ok {
		sess.conns++
		sess.lastActive = s.now()
	}
}

func (s *SessionStore) detach(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[id]; ok {
		sess.conns--
		sess.lastActive = s.now()
	}
}

// Len 当前会话数
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep 回收空闲且没有进行中请求、没有 websocket 连接的会话
func (s *SessionStore) Sweep() int {
	if s.idle <= 0 {
		return 0
	}

	s.mu.Lock()
	var expired []*session
	deadline := s.now().Add(-s.idle)
	for id, sess := range s.sessions {
		if sess.conns > 0 || sess.lastActive.After(deadline) || sess.ctrl.Pending() > 0 {
			continue
		}
		delete(s.sessions, id)
		expired = append(expired, sess)
	}
	s.mu.Unlock()

	for _, sess := range expired {
		sess.ctrl.Close()
		common.WithSession(sess.id).Info("Idle session removed")
	}
	return len(expired)
}

// Run 定期回收空闲会话，直到 ctx 结束
func (s *SessionStore) Run(ctx context.Context) {
	if s.idle <= 0 {
		return
	}
	interval := s.idle / 4
	if interval < time.Second {
		interval = time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				common.Debugf("Swept %d idle sessions", n)
			}
		}
	}
}

// Close 等待所有进行中的请求完成后关闭全部会话
func (s *SessionStore) Close() {
	s.mu.Lock()
	sessions := make([]*session, 0, len(s.sessions))
	for id, sess := range s.sessions {
		sessions = append(sessions, sess)
		delete(s.sessions, id)
	}
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.ctrl.Wait()
		sess.ctrl.Close()
	}
}
