package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/glebarez/go-sqlite"
)

// ErrNoActiveTask is returned by operations that need a current task.
var ErrNoActiveTask = errors.New("no active task")

const (
	keyCurrentTask    = "currentTask"
	keyCurrentStep    = "currentStep"
	keyCompletedTasks = "completedTasks"
	keyQuestions      = "questionHistory"
)

// SessionStore is the session-scoped key-value store behind the assistant.
// Values are JSON documents in a single sqlite table. Bounded lists evict
// their oldest entry once full.
type SessionStore struct {
	DB  *sql.DB
	now func() time.Time

	// guards read-modify-write of the list keys
	mu sync.Mutex
}

func NewSessionStore(dsn string) (*SessionStore, error) {
	if dsn == "" {
		dsn = ":memory:"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}
	// An in-memory database exists per connection.
	db.SetMaxOpenConns(1)

	query := `CREATE TABLE IF NOT EXISTS session (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);`
	if _, err := db.Exec(query); err != nil {
		db.Close()
		return nil, fmt.Errorf("create session table: %w", err)
	}

	return &SessionStore{DB: db, now: time.Now}, nil
}

func (s *SessionStore) Close() error {
	return s.DB.Close()
}

func (s *SessionStore) get(ctx context.Context, key string, out any) (bool, error) {
	var raw string
	err := s.DB.QueryRowContext(ctx, `SELECT value FROM session WHERE key = ?`, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (s *SessionStore) set(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	query := `INSERT INTO session (key, value, updated_at) VALUES (?, ?, datetime('now'))
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`
	if _, err := s.DB.ExecContext(ctx, query, key, string(raw)); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

func (s *SessionStore) remove(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		if _, err := s.DB.ExecContext(ctx, `DELETE FROM session WHERE key = ?`, k); err != nil {
			return fmt.Errorf("remove %s: %w", k, err)
		}
	}
	return nil
}

// CurrentTask returns the task being guided, or nil.
func (s *SessionStore) CurrentTask(ctx context.Context) (*Task, error) {
	var t Task
	ok, err := s.get(ctx, keyCurrentTask, &t)
	if err != nil || !ok {
		return nil, err
	}
	return &t, nil
}

func (s *SessionStore) SetCurrentTask(ctx context.Context, t Task) error {
	return s.set(ctx, keyCurrentTask, t)
}

// CurrentStep returns the index of the active step, 0 when unset.
func (s *SessionStore) CurrentStep(ctx context.Context) (int, error) {
	var step int
	if _, err := s.get(ctx, keyCurrentStep, &step); err != nil {
		return 0, err
	}
	return step, nil
}

// SetCurrentStep stores step clamped to [0, len(steps)] of the current task.
func (s *SessionStore) SetCurrentStep(ctx context.Context, step int) error {
	t, err := s.CurrentTask(ctx)
	if err != nil {
		return err
	}
	if t == nil {
		return ErrNoActiveTask
	}
	step = min(max(step, 0), t.Plan.Len())
	return s.set(ctx, keyCurrentStep, step)
}

// ClearCurrent drops the current task and step.
func (s *SessionStore) ClearCurrent(ctx context.Context) error {
	return s.remove(ctx, keyCurrentTask, keyCurrentStep)
}

func (s *SessionStore) CompletedTasks(ctx context.Context) ([]CompletedTask, error) {
	out := []CompletedTask{}
	if _, err := s.get(ctx, keyCompletedTasks, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ArchiveTask appends the summary of t to the completed-task log.
func (s *SessionStore) ArchiveTask(ctx context.Context, t Task) (CompletedTask, error) {
	entry := Summarize(t, s.now())
	s.mu.Lock()
	defer s.mu.Unlock()

	done, err := s.CompletedTasks(ctx)
	if err != nil {
		return entry, err
	}
	return entry, s.set(ctx, keyCompletedTasks, appendBounded(done, entry, MaxCompletedTasks))
}

// DeleteCompletedTask removes entry i. Out-of-range indexes are ignored.
func (s *SessionStore) DeleteCompletedTask(ctx context.Context, i int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	done, err := s.CompletedTasks(ctx)
	if err != nil {
		return err
	}
	if i < 0 || i >= len(done) {
		return nil
	}
	return s.set(ctx, keyCompletedTasks, append(done[:i], done[i+1:]...))
}

func (s *SessionStore) ClearTaskHistory(ctx context.Context) error {
	return s.remove(ctx, keyCompletedTasks)
}

func (s *SessionStore) Questions(ctx context.Context) ([]Question, error) {
	out := []Question{}
	if _, err := s.get(ctx, keyQuestions, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SessionStore) AddQuestion(ctx context.Context, question string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	qs, err := s.Questions(ctx)
	if err != nil {
		return err
	}
	q := Question{Question: question, AskedAt: s.now()}
	return s.set(ctx, keyQuestions, appendBounded(qs, q, MaxQuestions))
}

// DeleteQuestion removes entry i. Out-of-range indexes are ignored.
func (s *SessionStore) DeleteQuestion(ctx context.Context, i int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	qs, err := s.Questions(ctx)
	if err != nil {
		return err
	}
	if i < 0 || i >= len(qs) {
		return nil
	}
	return s.set(ctx, keyQuestions, append(qs[:i], qs[i+1:]...))
}

func (s *SessionStore) ClearQuestions(ctx context.Context) error {
	return s.remove(ctx, keyQuestions)
}

func appendBounded[T any](list []T, v T, limit int) []T {
	list = append(list, v)
	if over := len(list) - limit; over > 0 {
		list = list[over:]
	}
	return list
}
