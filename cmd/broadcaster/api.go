// cmd/broadcaster/api.go
package main

import (
	"encoding/json"
	"net/http"
	"time"

	"broadcast-engine/internal/broadcast/engagement"
	"broadcast-engine/internal/broadcast/lifecycle"
	"broadcast-engine/internal/broadcast/templates"
	apperrors "broadcast-engine/internal/common/errors"
	"broadcast-engine/internal/common/logger"
	"broadcast-engine/internal/models"

	"github.com/go-chi/chi/v5"
)

// api is the administrative HTTP surface over the broadcast services.
type api struct {
	templates  *templates.Service
	lifecycle  *lifecycle.Service
	engagement *engagement.Tracker
	logger     logger.Logger
}

func newAPI(t *templates.Service, l *lifecycle.Service, e *engagement.Tracker, log logger.Logger) *api {
	return &api{templates: t, lifecycle: l, engagement: e, logger: log}
}

func (a *api) register(r chi.Router) {
	r.Post("/api/templates", a.createTemplate)
	r.Get("/api/templates", a.listTemplates)
	r.Get("/api/templates/{id}", a.getTemplate)
	r.Put("/api/templates/{id}", a.updateTemplate)
	r.Delete("/api/templates/{id}", a.deleteTemplate)

	r.Post("/api/messages", a.createMessage)
	r.Get("/api/messages/{id}", a.getMessage)
	r.Patch("/api/messages/{id}", a.editMessage)
	r.Post("/api/messages/{id}/schedule", a.scheduleMessage)
	r.Post("/api/messages/{id}/cancel", a.cancelSchedule)
	r.Post("/api/messages/{id}/send", a.sendMessage)
	r.Post("/api/messages/{id}/opens", a.recordOpen)
}

func (a *api) createTemplate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title       string             `json:"title"`
		Description string             `json:"description"`
		Content     string             `json:"content"`
		Type        models.MessageType `json:"type"`
		CreatorID   string             `json:"creatorId"`
	}
	if !a.decode(w, r, &req) {
		return
	}
	tmpl, err := a.templates.Create(r.Context(), req.Title, req.Description, req.Content, req.Type, req.CreatorID)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusCreated, tmpl)
}

func (a *api) listTemplates(w http.ResponseWriter, r *http.Request) {
	var filter *models.MessageType
	if raw := r.URL.Query().Get("type"); raw != "" {
		msgType := models.MessageType(raw)
		filter = &msgType
	}
	list, err := a.templates.List(r.Context(), filter)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, list)
}

func (a *api) getTemplate(w http.ResponseWriter, r *http.Request) {
	tmpl, err := a.templates.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, tmpl)
}

func (a *api) updateTemplate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title       *string             `json:"title"`
		Description *string             `json:"description"`
		Content     *string             `json:"content"`
		Type        *models.MessageType `json:"type"`
	}
	if !a.decode(w, r, &req) {
		return
	}
	tmpl, err := a.templates.Update(r.Context(), chi.URLParam(r, "id"), templates.Update{
		Title:       req.Title,
		Description: req.Description,
		Content:     req.Content,
		Type:        req.Type,
	})
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, tmpl)
}

func (a *api) deleteTemplate(w http.ResponseWriter, r *http.Request) {
	if err := a.templates.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		a.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) createMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title      string             `json:"title"`
		Content    string             `json:"content"`
		Type       models.MessageType `json:"type"`
		Target     string             `json:"target"`
		CreatorID  string             `json:"creatorId"`
		TemplateID string             `json:"templateId"`
	}
	if !a.decode(w, r, &req) {
		return
	}

	var (
		msg *models.Message
		err error
	)
	if req.TemplateID != "" {
		tmpl, terr := a.templates.Get(r.Context(), req.TemplateID)
		if terr != nil {
			a.writeError(w, terr)
			return
		}
		msg, err = a.lifecycle.CreateFromTemplate(r.Context(), tmpl, req.Target, req.CreatorID)
	} else {
		msg, err = a.lifecycle.Create(r.Context(), req.Title, req.Content, req.Type, req.Target, req.CreatorID)
	}
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusCreated, msg)
}

func (a *api) getMessage(w http.ResponseWriter, r *http.Request) {
	msg, err := a.lifecycle.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, msg)
}

func (a *api) editMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title   *string             `json:"title"`
		Content *string             `json:"content"`
		Type    *models.MessageType `json:"type"`
		Target  *string             `json:"target"`
	}
	if !a.decode(w, r, &req) {
		return
	}
	msg, err := a.lifecycle.Edit(r.Context(), chi.URLParam(r, "id"), lifecycle.Update{
		Title:   req.Title,
		Content: req.Content,
		Type:    req.Type,
		Target:  req.Target,
	})
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, msg)
}

func (a *api) scheduleMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		When time.Time `json:"when"`
	}
	if !a.decode(w, r, &req) {
		return
	}
	msg, err := a.lifecycle.Schedule(r.Context(), chi.URLParam(r, "id"), req.When)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, msg)
}

func (a *api) cancelSchedule(w http.ResponseWriter, r *http.Request) {
	msg, err := a.lifecycle.CancelSchedule(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, msg)
}

func (a *api) sendMessage(w http.ResponseWriter, r *http.Request) {
	history, err := a.lifecycle.SendNow(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, history)
}

func (a *api) recordOpen(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RecipientID string `json:"recipientId"`
	}
	if !a.decode(w, r, &req) {
		return
	}
	if err := a.engagement.RecordOpen(r.Context(), chi.URLParam(r, "id"), req.RecipientID); err != nil {
		a.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		a.writeError(w, apperrors.NewInvalidInputError("malformed request body"))
		return false
	}
	return true
}

func (a *api) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.WithError(err).Error("response encoding failed", nil)
	}
}

func (a *api) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch apperrors.CodeOf(err) {
	case apperrors.ErrCodeInvalidInput, apperrors.ErrCodeInvalidSchedule:
		status = http.StatusBadRequest
	case apperrors.ErrCodeNotFound, apperrors.ErrCodeUnknownTarget:
		status = http.StatusNotFound
	case apperrors.ErrCodeInvalidTransition, apperrors.ErrCodeImmutableMessage:
		status = http.StatusUnprocessableEntity
	case apperrors.ErrCodeConcurrencyConflict:
		status = http.StatusConflict
	case apperrors.ErrCodeStoreUnavailable:
		status = http.StatusServiceUnavailable
	}

	body := map[string]interface{}{"error": err.Error()}
	if stdErr, ok := err.(*apperrors.StandardError); ok {
		body["code"] = stdErr.Code
		body["message"] = stdErr.Message
		if stdErr.Details != "" {
			body["details"] = stdErr.Details
		}
	}
	a.writeJSON(w, status, body)
}
