package handlers

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/imuhira/backend/internal/models"
	"github.com/imuhira/backend/internal/repository"
)

// memoryStore is an in-memory DebateStore with the same write semantics as
// the Postgres repository: unique slugs, publish stamping, replace-children
// updates and cascading deletes.
type memoryStore struct {
	mu        sync.Mutex
	nextID    int64
	nextArgID int64
	debates   map[int64]models.Debate
	args      map[int64][]models.Argument
	now       func() time.Time
	calls     int
	failWith  error
}

func newMemoryStore() *memoryStore {
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return &memoryStore{
		debates: make(map[int64]models.Debate),
		args:    make(map[int64][]models.Argument),
		now: func() time.Time {
			clock = clock.Add(time.Second)
			return clock
		},
	}
}

func (s *memoryStore) slugTaken(slug string, except int64) bool {
	for id, d := range s.debates {
		if d.Slug == slug && id != except {
			return true
		}
	}
	return false
}

func (s *memoryStore) replaceArgs(id int64, req *models.DebateRequest, now time.Time) {
	rows := append(
		models.TransformArgumentsForInsert(models.FilterValidArguments(req.IdubuArguments), id, models.FactionIdubu),
		models.TransformArgumentsForInsert(models.FilterValidArguments(req.AkagaraArguments), id, models.FactionAkagara)...,
	)
	for i := range rows {
		s.nextArgID++
		rows[i].ID = s.nextArgID
		rows[i].CreatedAt = now
	}
	s.args[id] = rows
}

func (s *memoryStore) with(id int64) *models.DebateWithArguments {
	return &models.DebateWithArguments{Debate: s.debates[id], Arguments: models.PartitionArguments(s.args[id])}
}

func (s *memoryStore) Create(ctx context.Context, req *models.DebateRequest) (*models.DebateWithArguments, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.failWith != nil {
		return nil, s.failWith
	}
	req.Normalize()
	if s.slugTaken(req.Slug, 0) {
		return nil, repository.ErrSlugTaken
	}

	now := s.now()
	s.nextID++
	s.debates[s.nextID] = models.Debate{
		ID:                s.nextID,
		Title:             req.Title,
		Slug:              req.Slug,
		Topic:             req.Topic,
		Summary:           req.Summary,
		Verdict:           req.Verdict,
		YoutubeVideoID:    req.YoutubeVideoID,
		YoutubeVideoTitle: req.YoutubeVideoTitle,
		MainImageURL:      req.MainImageURL,
		AuthorName:        req.AuthorName,
		Status:            req.Status,
		CreatedAt:         now,
		UpdatedAt:         now,
		PublishedAt:       models.ResolvePublishedAt(req.Status, nil, now),
	}
	s.replaceArgs(s.nextID, req, now)
	return s.with(s.nextID), nil
}

func (s *memoryStore) Update(ctx context.Context, id int64, req *models.DebateRequest) (*models.DebateWithArguments, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.failWith != nil {
		return nil, "", s.failWith
	}
	existing, ok := s.debates[id]
	if !ok {
		return nil, "", repository.ErrDebateNotFound
	}
	req.Normalize()
	if s.slugTaken(req.Slug, id) {
		return nil, "", repository.ErrSlugTaken
	}

	now := s.now()
	s.debates[id] = models.Debate{
		ID:                id,
		Title:             req.Title,
		Slug:              req.Slug,
		Topic:             req.Topic,
		Summary:           req.Summary,
		Verdict:           req.Verdict,
		YoutubeVideoID:    req.YoutubeVideoID,
		YoutubeVideoTitle: req.YoutubeVideoTitle,
		MainImageURL:      req.MainImageURL,
		AuthorName:        req.AuthorName,
		Status:            req.Status,
		CreatedAt:         existing.CreatedAt,
		UpdatedAt:         now,
		PublishedAt:       models.ResolvePublishedAt(req.Status, existing.PublishedAt, now),
	}
	s.replaceArgs(id, req, now)
	return s.with(id), existing.Slug, nil
}

func (s *memoryStore) GetByID(ctx context.Context, id int64) (*models.DebateWithArguments, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if _, ok := s.debates[id]; !ok {
		return nil, repository.ErrDebateNotFound
	}
	return s.with(id), nil
}

func (s *memoryStore) GetPublishedBySlug(ctx context.Context, slug string) (*models.DebateWithArguments, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	for id, d := range s.debates {
		if d.Slug == slug && d.Status == models.StatusPublished {
			return s.with(id), nil
		}
	}
	return nil, repository.ErrDebateNotFound
}

func (s *memoryStore) List(ctx context.Context) ([]models.DebateWithArguments, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.failWith != nil {
		return nil, s.failWith
	}
	out := []models.DebateWithArguments{}
	for id := range s.debates {
		out = append(out, *s.with(id))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *memoryStore) ListPublished(ctx context.Context, limit int) ([]models.DebateWithArguments, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	out := []models.DebateWithArguments{}
	for id, d := range s.debates {
		if d.Status == models.StatusPublished {
			out = append(out, *s.with(id))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PublishedAt.After(*out[j].PublishedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memoryStore) Delete(ctx context.Context, id int64) (*models.Debate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	d, ok := s.debates[id]
	if !ok {
		return nil, repository.ErrDebateNotFound
	}
	delete(s.debates, id)
	delete(s.args, id)
	return &d, nil
}

func (s *memoryStore) argCount(id int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.args[id])
}

func (s *memoryStore) debateCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.debates)
}

// recordingCache is a DebateCache that remembers what it was asked to do
type recordingCache struct {
	mu          sync.Mutex
	entries     map[string]*models.DebateWithArguments
	generations map[string]int64
	invalidated []string
	events      []models.WSMessage
	getErr      error
}

func newRecordingCache() *recordingCache {
	return &recordingCache{
		entries:     make(map[string]*models.DebateWithArguments),
		generations: make(map[string]int64),
	}
}

func (r *recordingCache) GetPublishedDebate(ctx context.Context, slug string) (*models.DebateWithArguments, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return nil, r.getErr
	}
	return r.entries[slug], nil
}

func (r *recordingCache) CacheGeneration(ctx context.Context, slug string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.generations[slug], nil
}

func (r *recordingCache) SetPublishedDebate(ctx context.Context, debate *models.DebateWithArguments, generation int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.generations[debate.Slug] != generation {
		return nil
	}
	r.entries[debate.Slug] = debate
	return nil
}

func (r *recordingCache) InvalidateDebate(ctx context.Context, slugs ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, slug := range slugs {
		delete(r.entries, slug)
		r.generations[slug]++
		r.invalidated = append(r.invalidated, slug)
	}
	return nil
}

func (r *recordingCache) PublishDebateEvent(ctx context.Context, event models.WSMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

var errStorage = errors.New("connection refused")

// pausingStore holds GetPublishedBySlug after the read until release is
// closed, so a write can land while the loaded copy is in flight
type pausingStore struct {
	*memoryStore
	loaded  chan struct{}
	release chan struct{}
}

func (p *pausingStore) GetPublishedBySlug(ctx context.Context, slug string) (*models.DebateWithArguments, error) {
	debate, err := p.memoryStore.GetPublishedBySlug(ctx, slug)
	close(p.loaded)
	<-p.release
	return debate, err
}
