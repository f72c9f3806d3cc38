// internal/broadcast/templates/service.go
package templates

import (
	"context"
	"encoding/json"
	"time"

	apperrors "broadcast-engine/internal/common/errors"
	"broadcast-engine/internal/common/logger"
	"broadcast-engine/internal/models"
	"broadcast-engine/internal/store"

	"github.com/google/uuid"
)

// Service manages reusable message templates. Templates are inert content:
// they never validate against message state, and deleting or editing one
// never touches messages authored from it.
type Service struct {
	store      store.DocumentStore
	logger     logger.Logger
	casRetries int
}

// Update carries the mutable template fields; nil pointers leave the stored
// value unchanged.
type Update struct {
	Title       *string
	Description *string
	Content     *string
	Type        *models.MessageType
}

func NewService(docs store.DocumentStore, log logger.Logger, casRetries int) *Service {
	if casRetries < 1 {
		casRetries = 3
	}
	return &Service{
		store:      docs,
		logger:     log.WithFields(map[string]interface{}{"component": "templates"}),
		casRetries: casRetries,
	}
}

func (s *Service) Create(ctx context.Context, title, description, content string, msgType models.MessageType, creatorID string) (*models.MessageTemplate, error) {
	if title == "" {
		return nil, apperrors.NewInvalidInputError("template title is empty")
	}
	if content == "" {
		return nil, apperrors.NewInvalidInputError("template content is empty")
	}
	if !msgType.Valid() {
		return nil, apperrors.NewInvalidInputError("unknown message type: " + string(msgType))
	}

	now := time.Now().UTC()
	tmpl := &models.MessageTemplate{
		ID:          uuid.New().String(),
		Title:       title,
		Description: description,
		Content:     content,
		Type:        msgType,
		CreatedBy:   creatorID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	data, err := json.Marshal(tmpl)
	if err != nil {
		return nil, apperrors.NewInvalidInputError(err.Error())
	}
	version, err := s.store.Put(ctx, store.CollectionTemplates, tmpl.ID, data)
	if err != nil {
		return nil, err
	}
	tmpl.Version = version

	s.logger.Info("template created", map[string]interface{}{
		"templateId": tmpl.ID,
		"type":       tmpl.Type,
	})
	return tmpl, nil
}

func (s *Service) Get(ctx context.Context, id string) (*models.MessageTemplate, error) {
	doc, err := s.store.Get(ctx, store.CollectionTemplates, id)
	if err != nil {
		return nil, err
	}
	return decode(doc)
}

// List returns templates in creation order, optionally filtered by type.
func (s *Service) List(ctx context.Context, filterType *models.MessageType) ([]*models.MessageTemplate, error) {
	var docs []store.Document
	var err error
	if filterType != nil {
		docs, err = s.store.Query(ctx, store.CollectionTemplates, "type", string(*filterType))
	} else {
		docs, err = s.store.List(ctx, store.CollectionTemplates)
	}
	if err != nil {
		return nil, err
	}

	out := make([]*models.MessageTemplate, 0, len(docs))
	for i := range docs {
		tmpl, err := decode(&docs[i])
		if err != nil {
			return nil, err
		}
		out = append(out, tmpl)
	}
	return out, nil
}

func (s *Service) Update(ctx context.Context, id string, fields Update) (*models.MessageTemplate, error) {
	if fields.Type != nil && !fields.Type.Valid() {
		return nil, apperrors.NewInvalidInputError("unknown message type: " + string(*fields.Type))
	}

	var lastErr error
	for attempt := 0; attempt < s.casRetries; attempt++ {
		tmpl, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}

		if fields.Title != nil {
			tmpl.Title = *fields.Title
		}
		if fields.Description != nil {
			tmpl.Description = *fields.Description
		}
		if fields.Content != nil {
			tmpl.Content = *fields.Content
		}
		if fields.Type != nil {
			tmpl.Type = *fields.Type
		}
		if tmpl.Title == "" || tmpl.Content == "" {
			return nil, apperrors.NewInvalidInputError("template title and content must be non-empty")
		}
		tmpl.UpdatedAt = time.Now().UTC()

		data, err := json.Marshal(tmpl)
		if err != nil {
			return nil, apperrors.NewInvalidInputError(err.Error())
		}
		version, err := s.store.Update(ctx, store.CollectionTemplates, id, data, tmpl.Version)
		if err == nil {
			tmpl.Version = version
			return tmpl, nil
		}
		if !apperrors.IsCode(err, apperrors.ErrCodeConcurrencyConflict) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

func (s *Service) Delete(ctx context.Context, id string) error {
	return s.store.Delete(ctx, store.CollectionTemplates, id)
}

func decode(doc *store.Document) (*models.MessageTemplate, error) {
	var tmpl models.MessageTemplate
	if err := json.Unmarshal(doc.Data, &tmpl); err != nil {
		return nil, apperrors.NewStoreUnavailableError(err)
	}
	tmpl.Version = doc.Version
	return &tmpl, nil
}
