package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

type RunState string

const (
	RunQueued    RunState = "queued"
	RunRunning   RunState = "running"
	RunCompleted RunState = "completed"
	RunFailed    RunState = "failed"
)

// RunStatus es el estado de una corrida asincronica lanzada por la API.
type RunStatus struct {
	ID        string    `json:"id"`
	State     RunState  `json:"state"`
	Models    []string  `json:"models"`
	ReportID  string    `json:"report_id,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

var ErrRunNotFound = errors.New("run not found")

// RunStore guarda el estado de corridas con expiracion.
type RunStore interface {
	Save(ctx context.Context, run RunStatus) error
	Get(ctx context.Context, id string) (RunStatus, error)
}

type memoryRunStore struct {
	mu    sync.Mutex
	ttl   time.Duration
	items map[string]memoryRunEntry
}

type memoryRunEntry struct {
	run     RunStatus
	expires time.Time
}

func NewMemoryRunStore(ttl time.Duration) RunStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &memoryRunStore{
		ttl:   ttl,
		items: make(map[string]memoryRunEntry),
	}
}

func (s *memoryRunStore) Save(_ context.Context, run RunStatus) error {
	if strings.TrimSpace(run.ID) == "" {
		return fmt.Errorf("save run: empty id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[run.ID] = memoryRunEntry{run: run, expires: time.Now().UTC().Add(s.ttl)}
	return nil
}

func (s *memoryRunStore) Get(_ context.Context, id string) (RunStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.items[id]
	if !ok {
		return RunStatus{}, ErrRunNotFound
	}
	if time.Now().UTC().After(entry.expires) {
		delete(s.items, id)
		return RunStatus{}, ErrRunNotFound
	}
	return entry.run, nil
}

type redisRunStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisRunStore comparte el estado de corridas entre replicas de la API.
func NewRedisRunStore(client *redis.Client, ttl time.Duration) RunStore {
	if client == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &redisRunStore{
		client: client,
		prefix: "bfi:run:",
		ttl:    ttl,
	}
}

func (s *redisRunStore) Save(ctx context.Context, run RunStatus) error {
	if strings.TrimSpace(run.ID) == "" {
		return fmt.Errorf("save run: empty id")
	}
	payload, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("marshal run: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	return s.client.Set(ctx, s.prefix+run.ID, payload, s.ttl).Err()
}

func (s *redisRunStore) Get(ctx context.Context, id string) (RunStatus, error) {
	if strings.TrimSpace(id) == "" {
		return RunStatus{}, ErrRunNotFound
	}
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	raw, err := s.client.Get(ctx, s.prefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return RunStatus{}, ErrRunNotFound
		}
		return RunStatus{}, err
	}
	var run RunStatus
	if err := json.Unmarshal(raw, &run); err != nil {
		return RunStatus{}, fmt.Errorf("unmarshal run: %w", err)
	}
	return run, nil
}
