package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/nextlevelbuilder/chatclaw/internal/schedule"
	"github.com/nextlevelbuilder/chatclaw/internal/store"
)

type taskPayload struct {
	ID          int64    `json:"id,omitempty"`
	Name        string   `json:"name"`
	CronExpr    string   `json:"cron"`
	Message     string   `json:"message,omitempty"`
	MessageType string   `json:"message_type,omitempty"`
	ImageBase64 string   `json:"image_base64,omitempty"`
	Targets     []string `json:"targets"`
	Enabled     *bool    `json:"enabled,omitempty"`
	CreatedAt   string   `json:"created_at,omitempty"`
}

func taskToPayload(t *store.ScheduledTask) taskPayload {
	enabled := t.Enabled
	return taskPayload{
		ID:          t.ID,
		Name:        t.Name,
		CronExpr:    t.CronExpr,
		Message:     t.Message,
		MessageType: t.MessageType,
		ImageBase64: t.ImageBase64,
		Targets:     t.Targets,
		Enabled:     &enabled,
		CreatedAt:   t.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}

func (p taskPayload) validate() error {
	if p.Name == "" {
		return errors.New("name is required")
	}
	if err := schedule.Validate(p.CronExpr); err != nil {
		return err
	}
	if len(p.Targets) == 0 {
		return errors.New("at least one target is required")
	}
	switch p.MessageType {
	case "", store.MessageTypeText:
		if p.Message == "" {
			return errors.New("message is required for text tasks")
		}
	case store.MessageTypeImage:
		if p.ImageBase64 == "" {
			return errors.New("image_base64 is required for image tasks")
		}
	default:
		return errors.New("message_type must be text or image")
	}
	return nil
}

func (p taskPayload) toTask() *store.ScheduledTask {
	msgType := p.MessageType
	if msgType == "" {
		msgType = store.MessageTypeText
	}
	enabled := true
	if p.Enabled != nil {
		enabled = *p.Enabled
	}
	return &store.ScheduledTask{
		ID:          p.ID,
		Name:        p.Name,
		CronExpr:    p.CronExpr,
		Message:     p.Message,
		MessageType: msgType,
		ImageBase64: p.ImageBase64,
		Targets:     p.Targets,
		Enabled:     enabled,
	}
}

func (s *Server) taskStoreReady(w http.ResponseWriter) bool {
	if s.tasks == nil {
		writeError(w, http.StatusServiceUnavailable, "task store not configured")
		return false
	}
	return true
}

func (s *Server) handleTaskList(w http.ResponseWriter, r *http.Request) {
	if !s.taskStoreReady(w) {
		return
	}
	tasks, err := s.tasks.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]taskPayload, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, taskToPayload(t))
	}
	writeJSON(w, http.StatusOK, map[string]any{"tasks": out})
}

func (s *Server) handleTaskCreate(w http.ResponseWriter, r *http.Request) {
	if !s.taskStoreReady(w) {
		return
	}
	var p taskPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	if err := p.validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	task := p.toTask()
	id, err := s.tasks.Create(r.Context(), task)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	task.ID = id
	writeJSON(w, http.StatusCreated, taskToPayload(task))
}

func (s *Server) taskID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid task id")
		return 0, false
	}
	return id, true
}

func (s *Server) handleTaskGet(w http.ResponseWriter, r *http.Request) {
	if !s.taskStoreReady(w) {
		return
	}
	id, ok := s.taskID(w, r)
	if !ok {
		return
	}
	task, err := s.tasks.Get(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, taskToPayload(task))
}

func (s *Server) handleTaskUpdate(w http.ResponseWriter, r *http.Request) {
	if !s.taskStoreReady(w) {
		return
	}
	id, ok := s.taskID(w, r)
	if !ok {
		return
	}
	var p taskPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	if err := p.validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	task := p.toTask()
	task.ID = id
	if err := s.tasks.Update(r.Context(), task); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, taskToPayload(task))
}

func (s *Server) handleTaskDelete(w http.ResponseWriter, r *http.Request) {
	if !s.taskStoreReady(w) {
		return
	}
	id, ok := s.taskID(w, r)
	if !ok {
		return
	}
	if err := s.tasks.Delete(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": id})
}
