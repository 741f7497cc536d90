package repo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Crosspost/internal/domain"
)

// MemoryStore — хранилище постов и платформ в памяти процесса.
//
// Семантика совпадает с PostRepo/PlatformRepo: InPostTx держит
// эксклюзивную блокировку и откатывает изменения, если fn вернула ошибку.
// Используется в тестах и при запуске без Postgres.
type MemoryStore struct {
	mu        sync.Mutex
	posts     map[uuid.UUID]domain.Post
	platforms map[uuid.UUID]domain.Platform
	targets   map[uuid.UUID]map[uuid.UUID]domain.PlatformTarget
}

// NewMemoryStore создаёт пустой MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		posts:     make(map[uuid.UUID]domain.Post),
		platforms: make(map[uuid.UUID]domain.Platform),
		targets:   make(map[uuid.UUID]map[uuid.UUID]domain.PlatformTarget),
	}
}

// --- Platforms ---

// Upsert добавляет платформу или обновляет существующую с тем же типом.
func (s *MemoryStore) Upsert(_ context.Context, p *domain.Platform) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for id, existing := range s.platforms {
		if existing.Type == p.Type {
			p.ID = id
			p.CreatedAt = existing.CreatedAt
			p.UpdatedAt = now
			s.platforms[id] = *p
			return nil
		}
	}

	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.CreatedAt = now
	p.UpdatedAt = now
	s.platforms[p.ID] = *p
	return nil
}

// List возвращает все платформы.
func (s *MemoryStore) List(_ context.Context) ([]domain.Platform, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Platform, 0, len(s.platforms))
	for _, p := range s.platforms {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// GetByID возвращает платформу по ID.
func (s *MemoryStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Platform, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.platforms[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

// GetByType возвращает платформу по типу.
func (s *MemoryStore) GetByType(_ context.Context, t domain.PlatformType) (*domain.Platform, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.platforms {
		if p.Type == t {
			return &p, nil
		}
	}
	return nil, ErrNotFound
}

// --- Posts ---

// CreatePost создаёт пост и pending-target'ы.
func (s *MemoryStore) CreatePost(_ context.Context, post *domain.Post, platformIDs []uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.posts[post.ID]; exists {
		return ErrAlreadyExists
	}
	targets, err := s.newTargetsLocked(post.ID, platformIDs, post.CreatedAt)
	if err != nil {
		return err
	}

	s.posts[post.ID] = *post
	s.targets[post.ID] = targets
	return nil
}

// GetPost возвращает пост по ID.
func (s *MemoryStore) GetPost(_ context.Context, id uuid.UUID) (*domain.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	post, ok := s.posts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &post, nil
}

// ListDue возвращает посты, которые пора публиковать, по возрастанию scheduled_time.
func (s *MemoryStore) ListDue(_ context.Context, now time.Time, limit int) ([]domain.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []domain.Post
	for _, p := range s.posts {
		if p.IsDue(now) {
			due = append(due, p)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].ScheduledTime.Before(*due[j].ScheduledTime) })

	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

// ListTargets возвращает все target'ы поста.
func (s *MemoryStore) ListTargets(_ context.Context, postID uuid.UUID) ([]domain.PlatformTarget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listTargetsLocked(postID, false), nil
}

// ListPendingTargets возвращает pending-target'ы поста.
func (s *MemoryStore) ListPendingTargets(_ context.Context, postID uuid.UUID) ([]domain.PlatformTarget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listTargetsLocked(postID, true), nil
}

// GetTarget возвращает target по паре (post, platform).
func (s *MemoryStore) GetTarget(_ context.Context, postID, platformID uuid.UUID) (*domain.PlatformTarget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.targets[postID][platformID]
	if !ok {
		return nil, ErrNotFound
	}
	t.Platform = s.platforms[platformID]
	return &t, nil
}

// ReplaceTargets заменяет набор платформ поста свежими pending-target'ами.
func (s *MemoryStore) ReplaceTargets(_ context.Context, postID uuid.UUID, platformIDs []uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	post, ok := s.posts[postID]
	if !ok {
		return ErrNotFound
	}
	if post.Status.IsTerminal() {
		return ErrInvalidState
	}

	targets, err := s.newTargetsLocked(postID, platformIDs, time.Now())
	if err != nil {
		return err
	}
	s.targets[postID] = targets
	return nil
}

// InPostTx выполняет fn под эксклюзивной блокировкой хранилища.
func (s *MemoryStore) InPostTx(_ context.Context, postID uuid.UUID, fn func(PostTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	post, ok := s.posts[postID]
	if !ok {
		return ErrNotFound
	}

	// Снимок для отката.
	saved := make(map[uuid.UUID]domain.PlatformTarget, len(s.targets[postID]))
	for id, t := range s.targets[postID] {
		saved[id] = t
	}

	if err := fn(&memPostTx{store: s, postID: postID}); err != nil {
		s.posts[postID] = post
		s.targets[postID] = saved
		return err
	}
	return nil
}

// --- PostTx ---

type memPostTx struct {
	store  *MemoryStore
	postID uuid.UUID
}

func (t *memPostTx) WriteTargetStatus(_ context.Context, platformID uuid.UUID, upd TargetUpdate) (bool, error) {
	target, ok := t.store.targets[t.postID][platformID]
	if !ok {
		return false, ErrNotFound
	}
	if !target.IsPending() {
		return false, nil
	}
	target.Status = upd.Status
	target.PublishedAt = upd.PublishedAt
	target.ErrorMessage = upd.ErrorMessage
	target.UpdatedAt = time.Now()
	t.store.targets[t.postID][platformID] = target
	return true, nil
}

func (t *memPostTx) CountPendingTargets(_ context.Context) (int, error) {
	count := 0
	for _, target := range t.store.targets[t.postID] {
		if target.IsPending() {
			count++
		}
	}
	return count, nil
}

func (t *memPostTx) SetPostPublished(_ context.Context, at time.Time) (bool, error) {
	post := t.store.posts[t.postID]
	if post.Status == domain.PostStatusPublished {
		return false, nil
	}
	post.Status = domain.PostStatusPublished
	post.PublishedAt = &at
	post.UpdatedAt = at
	t.store.posts[t.postID] = post
	return true, nil
}

// --- Helpers ---

func (s *MemoryStore) newTargetsLocked(postID uuid.UUID, platformIDs []uuid.UUID, now time.Time) (map[uuid.UUID]domain.PlatformTarget, error) {
	targets := make(map[uuid.UUID]domain.PlatformTarget, len(platformIDs))
	for _, id := range platformIDs {
		if _, ok := s.platforms[id]; !ok {
			return nil, ErrNotFound
		}
		if _, dup := targets[id]; dup {
			return nil, ErrAlreadyExists
		}
		targets[id] = domain.PlatformTarget{
			PostID:     postID,
			PlatformID: id,
			Status:     domain.TargetStatusPending,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
	}
	return targets, nil
}

func (s *MemoryStore) listTargetsLocked(postID uuid.UUID, pendingOnly bool) []domain.PlatformTarget {
	var out []domain.PlatformTarget
	for id, t := range s.targets[postID] {
		if pendingOnly && !t.IsPending() {
			continue
		}
		t.Platform = s.platforms[id]
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Platform.Name < out[j].Platform.Name })
	return out
}
