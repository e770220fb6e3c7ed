package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Skotchmaster/med_assist/internal/apperr"
	"github.com/Skotchmaster/med_assist/internal/events"
	"github.com/Skotchmaster/med_assist/internal/logging"
	"github.com/Skotchmaster/med_assist/internal/models"
	"github.com/Skotchmaster/med_assist/internal/repo"
	"github.com/Skotchmaster/med_assist/internal/search"
	"github.com/Skotchmaster/med_assist/internal/util"
	"github.com/Skotchmaster/med_assist/internal/validate"
)

type RecordStore[T any] interface {
	Create(ctx context.Context, rec *T) error
	Get(ctx context.Context, ownerID, id uint) (*T, error)
	List(ctx context.Context, ownerID uint, offset, limit int) ([]T, int64, error)
	Update(ctx context.Context, ownerID, id uint, apply func(*T) error) (*T, error)
	Delete(ctx context.Context, ownerID, id uint) error
}

// Owned is the pointer side of a record type.
type Owned[T any] interface {
	*T
	Claim(ownerID uint)
	RecordID() uint
	Timestamp() time.Time
	SearchText() string
}

// RecordService is the CRUD layer for one kind of health record. Callers
// have already passed the ownership guard for ownerID.
type RecordService[T any, P Owned[T]] struct {
	kind      string
	label     string
	store     RecordStore[T]
	validator *validate.Validator
	index     search.Indexer
	events    events.Publisher
}

// NewRecordService wires one record kind. index may be nil when search is off.
func NewRecordService[T any, P Owned[T]](
	kind, label string,
	store RecordStore[T],
	v *validate.Validator,
	index search.Indexer,
	pub events.Publisher,
) *RecordService[T, P] {
	if pub == nil {
		pub = events.Nop{}
	}
	return &RecordService[T, P]{
		kind:      kind,
		label:     label,
		store:     store,
		validator: v,
		index:     index,
		events:    pub,
	}
}

func (s *RecordService[T, P]) Kind() string {
	return s.kind
}

func (s *RecordService[T, P]) Label() string {
	return s.label
}

func (s *RecordService[T, P]) notFound() error {
	return apperr.WithMessage(apperr.ErrNotFound, s.label+" not found")
}

func (s *RecordService[T, P]) Create(ctx context.Context, ownerID uint, rec *T) (*T, error) {
	P(rec).Claim(ownerID)
	if err := s.validator.Struct(rec); err != nil {
		return nil, err
	}

	if err := s.store.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("service.%s.Create: %w", s.kind, err)
	}

	s.reindex(ctx, ownerID, rec)
	publish(ctx, s.events, events.New(events.RecordCreated, ownerID, s.eventData(rec)))
	return rec, nil
}

func (s *RecordService[T, P]) Get(ctx context.Context, ownerID, id uint) (*T, error) {
	rec, err := s.store.Get(ctx, ownerID, id)
	if err != nil {
		if errors.Is(err, repo.ErrRecordNotFound) {
			return nil, s.notFound()
		}
		return nil, fmt.Errorf("service.%s.Get: %w", s.kind, err)
	}
	return rec, nil
}

func (s *RecordService[T, P]) List(ctx context.Context, ownerID uint, page, perPage int) (util.Page[T], error) {
	offset, limit := util.Calculate(page, perPage)

	items, total, err := s.store.List(ctx, ownerID, offset, limit)
	if err != nil {
		return util.Page[T]{}, fmt.Errorf("service.%s.List: %w", s.kind, err)
	}
	return util.NewPage(items, total, page, limit), nil
}

// Patch merges the JSON object in body onto the stored record. Fields absent
// from body keep their value.
func (s *RecordService[T, P]) Patch(ctx context.Context, ownerID, id uint, body []byte) (*T, error) {
	if !json.Valid(body) || !bytes.HasPrefix(bytes.TrimSpace(body), []byte("{")) {
		return nil, apperr.NewValidation("body", "Must be a JSON object")
	}

	rec, err := s.store.Update(ctx, ownerID, id, func(rec *T) error {
		if err := json.Unmarshal(body, rec); err != nil {
			return apperr.NewValidation("body", "Invalid field type")
		}
		return s.validator.Struct(rec)
	})
	if err != nil {
		if errors.Is(err, repo.ErrRecordNotFound) {
			return nil, s.notFound()
		}
		if _, ok := apperr.IsValidation(err); ok {
			return nil, err
		}
		return nil, fmt.Errorf("service.%s.Patch: %w", s.kind, err)
	}

	s.reindex(ctx, ownerID, rec)
	publish(ctx, s.events, events.New(events.RecordUpdated, ownerID, s.eventData(rec)))
	return rec, nil
}

func (s *RecordService[T, P]) Delete(ctx context.Context, ownerID, id uint) error {
	if err := s.store.Delete(ctx, ownerID, id); err != nil {
		if errors.Is(err, repo.ErrRecordNotFound) {
			return s.notFound()
		}
		return fmt.Errorf("service.%s.Delete: %w", s.kind, err)
	}

	if s.index != nil {
		if err := s.index.Delete(ctx, s.kind, id); err != nil {
			logging.FromContext(ctx).Error("search_delete_failed", "kind", s.kind, "record_id", id, logging.Err(err))
		}
	}
	publish(ctx, s.events, events.New(events.RecordDeleted, ownerID, map[string]any{"kind": s.kind, "record_id": id}))
	return nil
}

func (s *RecordService[T, P]) reindex(ctx context.Context, ownerID uint, rec *T) {
	if s.index == nil {
		return
	}

	p := P(rec)
	doc := search.Document{
		Kind:       s.kind,
		RecordID:   p.RecordID(),
		UserID:     ownerID,
		Text:       p.SearchText(),
		RecordedAt: p.Timestamp(),
	}
	if err := s.index.Index(ctx, doc); err != nil {
		logging.FromContext(ctx).Error("search_index_failed", "kind", s.kind, "record_id", doc.RecordID, logging.Err(err))
	}
}

func (s *RecordService[T, P]) eventData(rec *T) map[string]any {
	return map[string]any{"kind": s.kind, "record_id": P(rec).RecordID()}
}

type UserInfoStore interface {
	Get(ctx context.Context, ownerID uint) (*models.UserInfo, error)
	Upsert(ctx context.Context, info *models.UserInfo) error
}

type UserInfoService struct {
	store     UserInfoStore
	validator *validate.Validator
}

func NewUserInfoService(store UserInfoStore, v *validate.Validator) *UserInfoService {
	return &UserInfoService{store: store, validator: v}
}

// Get returns nil, nil when the account has no info yet.
func (s *UserInfoService) Get(ctx context.Context, ownerID uint) (*models.UserInfo, error) {
	info, err := s.store.Get(ctx, ownerID)
	if err != nil {
		if errors.Is(err, repo.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("service.UserInfoService.Get: %w", err)
	}
	return info, nil
}

func (s *UserInfoService) Put(ctx context.Context, ownerID uint, info *models.UserInfo) (*models.UserInfo, error) {
	info.UserID = ownerID
	info.ID = 0
	if err := s.validator.Struct(info); err != nil {
		return nil, err
	}
	if err := s.store.Upsert(ctx, info); err != nil {
		return nil, fmt.Errorf("service.UserInfoService.Put: %w", err)
	}
	return info, nil
}

type Searcher interface {
	Search(ctx context.Context, userID uint, query string, from, size int) (int64, []search.Document, error)
}

type SearchService struct {
	searcher Searcher
}

// NewSearchService accepts a nil searcher; every query then reports
// search.ErrUnavailable.
func NewSearchService(s Searcher) *SearchService {
	return &SearchService{searcher: s}
}

func (s *SearchService) Search(ctx context.Context, ownerID uint, query string, page, size int) (util.Page[search.Document], error) {
	if s.searcher == nil {
		return util.Page[search.Document]{}, search.ErrUnavailable
	}
	if query == "" {
		return util.Page[search.Document]{}, apperr.NewValidation("q", "This field is required")
	}

	from, limit := util.Calculate(page, size)
	total, docs, err := s.searcher.Search(ctx, ownerID, query, from, limit)
	if err != nil {
		return util.Page[search.Document]{}, fmt.Errorf("service.SearchService.Search: %w", err)
	}
	return util.NewPage(docs, total, page, limit), nil
}
