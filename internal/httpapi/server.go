// Package httpapi 提供 HTTP JSON 接口与 websocket 推送
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"promptcraft/common"
	"promptcraft/internal/action"
	"promptcraft/internal/uploads"

	"github.com/gorilla/mux"
)

const (
	// multipart 解析时保留在内存中的上限，超出部分写入临时文件
	multipartMemory = 32 << 20
	// 单次上传请求最多携带的文件数（按大小上限估算请求体上限）
	maxFilesPerUpload = 20
)

// FlowInfo flow 的名称与 schema
type FlowInfo interface {
	Name() string
	InputSchema() json.RawMessage
	OutputSchema() json.RawMessage
}

// Options 服务配置
type Options struct {
	Submitter    action.Submitter
	Flow         FlowInfo
	MaxBytes     int64
	AllowedTypes []string
	SessionIdle  time.Duration
}

// Server HTTP 服务
type Server struct {
	submitter action.Submitter
	flow      FlowInfo
	maxBytes  int64
	sessions  *SessionStore
	router    *mux.Router
}

// NewServer 创建服务并注册路由
func NewServer(opts Options) *Server {
	maxBytes := opts.MaxBytes
	if maxBytes <= 0 {
		maxBytes = common.DefaultUploadMaxBytes
	}

	s := &Server{
		submitter: opts.Submitter,
		flow:      opts.Flow,
		maxBytes:  maxBytes,
	}
	s.sessions = NewSessionStore(opts.SessionIdle, func(id string) *uploads.Controller {
		return uploads.NewController(opts.Submitter, uploads.Options{
			SessionID:    id,
			MaxBytes:     maxBytes,
			AllowedTypes: opts.AllowedTypes,
		})
	})

	r := mux.NewRouter()
	r.Use(enableCORS)
	r.HandleFunc("/health", s.handleHealth).Methods("GET")
	r.HandleFunc("/api/flow", s.handleFlow).Methods("GET")
	r.HandleFunc("/api/prompt", s.handlePrompt).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/uploads", s.handleAddUploads).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/uploads", s.handleListUploads).Methods("GET")
	r.HandleFunc("/api/uploads", s.handleClearUploads).Methods("DELETE")
	r.HandleFunc("/api/uploads/{id:[0-9]+}", s.handleGetUpload).Methods("GET")
	r.HandleFunc("/api/uploads/{id:[0-9]+}", s.handleRemoveUpload).Methods("DELETE", "OPTIONS")
	r.HandleFunc("/api/uploads/{id:[0-9]+}/preview", s.handlePreview).Methods("GET")
	r.HandleFunc("/ws", s.handleWebSocket)
	s.router = r

	return s
}

// Handler 返回 http.Handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Sessions 返回会话存储，用于启动回收与关闭
func (s *Server) Sessions() *SessionStore {
	return s.sessions
}

// enableCORS 允许任意来源调用
func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+SessionHeader)
		w.Header().Set("Access-Control-Expose-Headers", SessionHeader)

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		common.WithError(err).Warn("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": s.sessions.Len(),
	})
}

func (s *Server) handleFlow(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":         s.flow.Name(),
		"inputSchema":  s.flow.InputSchema(),
		"outputSchema": s.flow.OutputSchema(),
	})
}

type promptRequest struct {
	PhotoDataURI string `json:"photoDataUri"`
}

// handlePrompt 与服务端 action 一一对应：除请求体不是 JSON 外总是返回 200
func (s *Server) handlePrompt(w http.ResponseWriter, r *http.Request) {
	// base64 膨胀约 4/3，再留出 JSON 包装的余量
	limit := s.maxBytes*4/3 + 64*1024
	body := http.MaxBytesReader(w, r.Body, limit)

	var req promptRequest
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			common.WithField("limit", limit).Warn("Prompt request body too large")
			writeJSON(w, http.StatusOK, action.Failure(action.KindMalformedImage))
			return
		}
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	writeJSON(w, http.StatusOK, s.submitter.Submit(r.Context(), req.PhotoDataURI))
}

type addUploadsResponse struct {
	Items    []uploads.Item      `json:"items"`
	Rejected []uploads.Rejection `json:"rejected"`
}

func (s *Server) handleAddUploads(w http.ResponseWriter, r *http.Request) {
	_, ctrl := s.sessions.Acquire(w, r)

	r.Body = http.MaxBytesReader(w, r.Body, s.maxBytes*maxFilesPerUpload+1<<20)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		writeError(w, http.StatusBadRequest, "no files provided")
		return
	}

	files := make([]uploads.File, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			writeError(w, http.StatusBadRequest, "failed to read uploaded file")
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			writeError(w, http.StatusBadRequest, "failed to read uploaded file")
			return
		}
		files = append(files, uploads.File{
			Name: fh.Filename,
			Type: fh.Header.Get("Content-Type"),
			Data: data,
		})
	}

	items, rejected := ctrl.Add(files...)
	if items == nil {
		items = []uploads.Item{}
	}
	if rejected == nil {
		rejected = []uploads.Rejection{}
	}
	writeJSON(w, http.StatusOK, addUploadsResponse{Items: items, Rejected: rejected})
}

func (s *Server) handleListUploads(w http.ResponseWriter, r *http.Request) {
	_, ctrl := s.sessions.Acquire(w, r)
	writeJSON(w, http.StatusOK, map[string]any{"items": ctrl.Items()})
}

func (s *Server) handleClearUploads(w http.ResponseWriter, r *http.Request) {
	_, ctrl, ok := s.sessions.Lookup(r)
	if !ok {
		writeJSON(w, http.StatusOK, map[string]int{"removed": 0})
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"removed": ctrl.Clear()})
}

// itemFromRequest 解析路径中的 id 并找到会话内的上传项
func (s *Server) itemFromRequest(w http.ResponseWriter, r *http.Request) (*uploads.Controller, int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return nil, 0, false
	}
	_, ctrl, ok := s.sessions.Lookup(r)
	if !ok {
		writeError(w, http.StatusNotFound, "upload not found")
		return nil, 0, false
	}
	return ctrl, id, true
}

func (s *Server) handleGetUpload(w http.ResponseWriter, r *http.Request) {
	ctrl, id, ok := s.itemFromRequest(w, r)
	if !ok {
		return
	}
	item, found := ctrl.Get(id)
	if !found {
		writeError(w, http.StatusNotFound, "upload not found")
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) handleRemoveUpload(w http.ResponseWriter, r *http.Request) {
	ctrl, id, ok := s.itemFromRequest(w, r)
	if !ok {
		return
	}
	if !ctrl.Remove(id) {
		writeError(w, http.StatusNotFound, "upload not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	ctrl, id, ok := s.itemFromRequest(w, r)
	if !ok {
		return
	}
	data, mimeType, found := ctrl.Preview(id)
	if !found {
		writeError(w, http.StatusNotFound, "preview not found")
		return
	}
	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
