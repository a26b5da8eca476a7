package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"datachat-be/internal/pkg/logger"
	"datachat-be/pkg/agent"
	"datachat-be/pkg/agent/respond"
	"datachat-be/pkg/cache"
	"datachat-be/pkg/memory"
	"datachat-be/pkg/search"
	"datachat-be/pkg/store"
)

// SchemaReader is the slice of the search client the service needs for
// schema lookups.
type SchemaReader interface {
	GetMapping(ctx context.Context, index string) ([]search.FieldMapping, error)
}

// ChatService runs conversation turns. It owns session resolution and
// the at-most-one-in-flight-pipeline-per-session invariant: turns for
// the same session are serialized, so history writes never interleave.
type ChatService struct {
	pipeline     *agent.Pipeline
	sessions     cache.SessionStore
	schemaReader SchemaReader
	memoryStore  memory.Store // optional
	logger       logger.ILogger

	defaultIndex string
	schemaCache  *gocache.Cache

	mu    sync.Mutex
	locks map[string]*sessionLock
}

// sessionLock serializes turns for one session. Entries are
// reference-counted so the map shrinks back as sessions go idle.
type sessionLock struct {
	mu   sync.Mutex
	refs int
}

func NewChatService(
	pipeline *agent.Pipeline,
	sessions cache.SessionStore,
	schemaReader SchemaReader,
	memoryStore memory.Store,
	log logger.ILogger,
	defaultIndex string,
) *ChatService {
	return &ChatService{
		pipeline:     pipeline,
		sessions:     sessions,
		schemaReader: schemaReader,
		memoryStore:  memoryStore,
		logger:       log,
		defaultIndex: defaultIndex,
		schemaCache:  gocache.New(5*time.Minute, 10*time.Minute),
		locks:        map[string]*sessionLock{},
	}
}

// ResolveSession returns the stored session, or a fresh one when the id
// is unknown or empty. The second result reports whether it was created.
func (s *ChatService) ResolveSession(ctx context.Context, sessionID string) (*store.Session, bool, error) {
	if sessionID != "" {
		session, found, err := s.sessions.Get(ctx, sessionID)
		if err != nil {
			return nil, false, err
		}
		if found {
			return session, false, nil
		}
	}

	session := store.NewSession(uuid.NewString(), "")
	session.ActiveIndex = s.defaultIndex
	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, false, err
	}
	return session, true, nil
}

// HandleTurn runs one pipeline for the session and persists the updated
// history. Concurrent turns for the same session are serialized here, so
// response order matches acceptance order.
func (s *ChatService) HandleTurn(ctx context.Context, session *store.Session, text string, onState func(agent.State)) (*respond.Response, *agent.PipelineError) {
	s.lockSession(session.ID)
	defer s.unlockSession(session.ID)

	index := session.ActiveIndex
	if index == "" {
		index = s.defaultIndex
	}

	result, pipeErr := s.pipeline.Run(ctx, agent.TurnInput{
		Session:     session,
		Utterance:   text,
		Index:       index,
		KnownFields: s.knownFields(ctx, index),
		OnState:     onState,
	})
	if pipeErr != nil {
		return nil, pipeErr
	}

	if err := s.sessions.Save(ctx, session); err != nil {
		// The turn already succeeded; a failed save only loses history
		s.logger.Warn("chat", "session save failed", map[string]interface{}{
			"session": session.ID,
			"error":   err.Error(),
		})
	}

	return result.Response, nil
}

// GetSession returns the stored session snapshot.
func (s *ChatService) GetSession(ctx context.Context, sessionID string) (*store.Session, bool, error) {
	return s.sessions.Get(ctx, sessionID)
}

// DeleteSession removes the session, its turn history, and its
// session-scoped memory records.
func (s *ChatService) DeleteSession(ctx context.Context, sessionID string) error {
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		return err
	}
	if s.memoryStore != nil {
		if err := s.memoryStore.DeleteBySession(ctx, sessionID); err != nil {
			s.logger.Warn("chat", "memory cleanup failed", map[string]interface{}{
				"session": sessionID,
				"error":   err.Error(),
			})
		}
	}
	return nil
}

func (s *ChatService) lockSession(sessionID string) {
	s.mu.Lock()
	lock, ok := s.locks[sessionID]
	if !ok {
		lock = &sessionLock{}
		s.locks[sessionID] = lock
	}
	lock.refs++
	s.mu.Unlock()

	lock.mu.Lock()
}

func (s *ChatService) unlockSession(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[sessionID]
	if !ok {
		return
	}
	lock.mu.Unlock()
	lock.refs--
	if lock.refs == 0 {
		delete(s.locks, sessionID)
	}
}

// knownFields returns the flattened field names of the index, cached
// briefly. A mapping failure degrades to no schema validation.
func (s *ChatService) knownFields(ctx context.Context, index string) []string {
	if cached, found := s.schemaCache.Get(index); found {
		return cached.([]string)
	}

	mappings, err := s.schemaReader.GetMapping(ctx, index)
	if err != nil {
		s.logger.Debug("chat", "mapping lookup failed", map[string]interface{}{
			"index": index,
			"error": err.Error(),
		})
		return nil
	}

	fields := make([]string, 0, len(mappings))
	for _, m := range mappings {
		fields = append(fields, m.Name)
	}
	s.schemaCache.Set(index, fields, gocache.DefaultExpiration)
	return fields
}
