// Package service orchestrates the message write and read paths: identity
// and timestamp assignment, token accounting, and translation of query
// parameters into store predicates.
package service

import (
	"context"
	"time"

	"lucerna/pkg/logger"
	"lucerna/pkg/models"
	"lucerna/pkg/store"
	"lucerna/pkg/tokens"
	"lucerna/pkg/utils"
)

// MessageService owns the in-flight message during creation and hands
// ownership to the store on persist. Both collaborators are injected.
type MessageService struct {
	store   *store.Store
	counter tokens.Counter
}

func New(st *store.Store, c tokens.Counter) *MessageService {
	return &MessageService{store: st, counter: c}
}

// QueryParams is the typed query surface. Optional filters are pointers so
// "not provided" and "provided with an empty value" stay distinct: a nil
// pointer applies no filter, a pointer to "" filters for the empty value.
type QueryParams struct {
	Start       *time.Time
	End         *time.Time
	UserID      *string
	AggregateID *string
}

// Create assigns an id and a UTC timestamp, derives the token count and
// persists the message. Token accounting failures (unknown model) and
// storage failures abort the create and propagate to the caller; there are
// no internal retries.
func (s *MessageService) Create(ctx context.Context, in models.MessageIn) (*models.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n, err := s.counter.Count(in.Content, in.Model)
	if err != nil {
		return nil, err
	}
	m := models.Message{
		ID:          utils.GenID(),
		UserID:      in.UserID,
		AggregateID: in.AggregateID,
		Model:       in.Model,
		Role:        in.Role,
		Content:     in.Content,
		TokenCount:  n,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.store.SaveMessage(m); err != nil {
		return nil, err
	}
	logger.Info("message_created", "id", m.ID, "user", m.UserID, "model", m.Model, "tokens", m.TokenCount)
	return &m, nil
}

// Ready reports whether the backing store can serve requests.
func (s *MessageService) Ready() bool {
	return s.store.Ready()
}

// Get is a passthrough point lookup; absent is (nil, false, nil).
func (s *MessageService) Get(ctx context.Context, id string) (*models.Message, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	return s.store.GetMessage(id)
}

// Query translates the typed parameters into store predicates and runs the
// filtered scan. Time bounds are normalized to UTC and inclusive on both
// ends.
func (s *MessageService) Query(ctx context.Context, p QueryParams) ([]models.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var preds []store.Predicate
	if p.Start != nil {
		preds = append(preds, store.Gte(store.FieldCreatedAt, p.Start.UTC()))
	}
	if p.End != nil {
		preds = append(preds, store.Lte(store.FieldCreatedAt, p.End.UTC()))
	}
	if p.UserID != nil {
		preds = append(preds, store.Eq(store.FieldUserID, *p.UserID))
	}
	if p.AggregateID != nil {
		preds = append(preds, store.Eq(store.FieldAggregateID, *p.AggregateID))
	}
	return s.store.Query(preds...)
}
