package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mind-engage/secacademy-lms/internal/eventlog"
	"github.com/mind-engage/secacademy-lms/internal/grading"
	"github.com/mind-engage/secacademy-lms/internal/quiz"
)

// EventSink receives attempt lifecycle events. *eventlog.Repo satisfies it.
type EventSink interface {
	Append(ctx context.Context, e eventlog.Event) error
}

type ManagerConfig struct {
	TTL           time.Duration // idle time before a finished session is evicted
	SweepInterval time.Duration
	SaveTimeout   time.Duration
}

type entry struct {
	s       *Session
	touched time.Time
	saved   string // id of the last result the store accepted
}

type attemptKey struct{ quizID, userID string }

type attemptLock struct {
	mu   sync.Mutex
	refs int
}

// Manager keeps the live sessions of the service and persists graded attempts.
type Manager struct {
	store  quiz.Store
	events EventSink
	grader *grading.Grader
	clock  Clock
	cfg    ManagerConfig
	log    *slog.Logger

	mu       sync.Mutex
	sessions map[string]*entry

	// graded results not yet stored whose session was retaken or evicted
	orphans map[string]attemptKey

	locksMu sync.Mutex
	locks   map[attemptKey]*attemptLock
}

type ManagerOption func(*Manager)

func WithEventSink(e EventSink) ManagerOption { return func(m *Manager) { m.events = e } }
func WithManagerClock(c Clock) ManagerOption  { return func(m *Manager) { m.clock = c } }
func WithLogger(l *slog.Logger) ManagerOption { return func(m *Manager) { m.log = l } }

func NewManager(store quiz.Store, cfg ManagerConfig, opts ...ManagerOption) *Manager {
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * time.Minute
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}
	if cfg.SaveTimeout <= 0 {
		cfg.SaveTimeout = 5 * time.Second
	}
	m := &Manager{
		store:    store,
		grader:   grading.NewGrader(),
		clock:    RealClock,
		cfg:      cfg,
		log:      slog.Default(),
		sessions: map[string]*entry{},
		orphans:  map[string]attemptKey{},
		locks:    map[attemptKey]*attemptLock{},
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Start fetches the quiz, starts a fresh attempt for userID and registers it.
// A missing quiz or one without questions yields ErrUnavailable. A user has at
// most one attempt in progress per quiz; a second Start gets ErrAlreadyStarted.
func (m *Manager) Start(ctx context.Context, quizID, userID string) (*Session, error) {
	k := attemptKey{quizID, userID}
	unlock := m.lockAttempts(k)
	defer unlock()

	q, err := m.store.GetQuiz(ctx, quizID)
	if err != nil && !errors.Is(err, quiz.ErrNotFound) {
		return nil, fmt.Errorf("fetch quiz %s: %w", quizID, err)
	}

	var s *Session
	if err != nil {
		s = New(nil, err)
	} else {
		n, live, err := m.attempts(ctx, k)
		if err != nil {
			return nil, err
		}
		if live {
			return nil, ErrAlreadyStarted
		}
		q.Attempts = n
		s = New(&q, nil,
			WithUser(userID),
			WithClock(m.clock),
			WithGrader(m.grader),
			WithOnGraded(m.persist),
		)
	}

	if err := s.Start(); err != nil {
		if errors.Is(err, ErrUnavailable) {
			m.log.Info("quiz unavailable", "quiz", quizID, "reason", s.View().Reason)
		}
		s.Close()
		return nil, err
	}

	m.mu.Lock()
	m.sessions[s.ID()] = &entry{s: s, touched: m.clock.Now()}
	m.mu.Unlock()

	m.append(ctx, eventlog.AttemptStarted, s.ID(), map[string]string{"quizId": quizID, "userId": userID})
	m.log.Info("attempt started", "session", s.ID(), "quiz", quizID, "user", userID)
	return s, nil
}

// LockAttempts serializes attempt accounting for userID on quizID and reports
// how many attempts are used, live sessions included. Callers grading outside
// a session hold the lock until their result is stored.
func (m *Manager) LockAttempts(ctx context.Context, quizID, userID string) (int, func(), error) {
	k := attemptKey{quizID, userID}
	unlock := m.lockAttempts(k)
	n, _, err := m.attempts(ctx, k)
	if err != nil {
		unlock()
		return 0, nil, err
	}
	return n, unlock, nil
}

func (m *Manager) lockAttempts(k attemptKey) func() {
	m.locksMu.Lock()
	l, ok := m.locks[k]
	if !ok {
		l = &attemptLock{}
		m.locks[k] = l
	}
	l.refs++
	m.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		m.locksMu.Lock()
		if l.refs--; l.refs == 0 {
			delete(m.locks, k)
		}
		m.locksMu.Unlock()
	}
}

// attempts is stored results plus attempts the store does not know about yet:
// in-progress sessions and graded results still unsaved. live reports an
// in-progress session. Memory is read before the store so a result saved in
// between is counted twice rather than missed.
func (m *Manager) attempts(ctx context.Context, k attemptKey) (n int, live bool, err error) {
	m.mu.Lock()
	for _, e := range m.sessions {
		if e.s.UserID() != k.userID || e.s.QuizID() != k.quizID {
			continue
		}
		switch st, resID := e.s.attemptState(); {
		case st == InProgress:
			n++
			live = true
		case st == Graded && resID != e.saved:
			n++
		}
	}
	for _, ok := range m.orphans {
		if ok == k {
			n++
		}
	}
	m.mu.Unlock()

	stored, err := m.store.CountResults(ctx, k.quizID, k.userID)
	if err != nil {
		return 0, false, fmt.Errorf("count attempts: %w", err)
	}
	return n + stored, live, nil
}

// orphanLocked keeps counting an unsaved graded result after its session
// moves on.
func (m *Manager) orphanLocked(e *entry) {
	st, resID := e.s.attemptState()
	if st == Graded && resID != e.saved {
		m.orphans[resID] = attemptKey{e.s.QuizID(), e.s.UserID()}
	}
}

// Get returns the session if it belongs to userID.
func (m *Manager) Get(id, userID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[id]
	if !ok || e.s.UserID() != userID {
		return nil, ErrNotFound
	}
	e.touched = m.clock.Now()
	return e.s, nil
}

// Retake resets a graded session and starts the next attempt. The attempt
// count is refreshed from the store and live sessions first.
func (m *Manager) Retake(ctx context.Context, id, userID string) (*Session, error) {
	s, err := m.Get(id, userID)
	if err != nil {
		return nil, err
	}
	k := attemptKey{s.QuizID(), userID}
	unlock := m.lockAttempts(k)
	defer unlock()

	if st, _ := s.attemptState(); st != Graded {
		return nil, s.Retake() // reports why this state cannot be retaken
	}
	n, live, err := m.attempts(ctx, k)
	if err != nil {
		return nil, err
	}
	if live {
		return nil, ErrAlreadyStarted
	}
	s.setAttempts(n)

	_, prev := s.attemptState()
	m.mu.Lock()
	e, ok := m.sessions[id]
	if ok {
		m.orphanLocked(e)
	}
	m.mu.Unlock()

	if err := s.Retake(); err != nil {
		m.mu.Lock()
		delete(m.orphans, prev)
		m.mu.Unlock()
		return nil, err
	}
	if err := s.Start(); err != nil {
		return nil, err
	}
	m.append(ctx, eventlog.AttemptReset, s.ID(), map[string]string{"quizId": s.QuizID(), "userId": userID})
	return s, nil
}

// Len is the number of registered sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// persist runs as the session's graded hook.
func (m *Manager) persist(s *Session, res quiz.Result) {
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.SaveTimeout)
	defer cancel()

	if err := m.store.SaveResult(ctx, res); err != nil {
		m.log.Error("save result failed", "session", s.ID(), "result", res.ID, "err", err)
	} else {
		m.mu.Lock()
		if e, ok := m.sessions[s.ID()]; ok {
			e.saved = res.ID
		}
		delete(m.orphans, res.ID)
		m.mu.Unlock()
	}
	typ := eventlog.AttemptGraded
	if res.AutoSubmitted {
		typ = eventlog.AttemptAutoSubmitted
	}
	m.append(ctx, typ, s.ID(), map[string]any{
		"resultId": res.ID,
		"quizId":   res.QuizID,
		"userId":   res.UserID,
		"score":    res.Score,
		"passed":   res.Passed,
	})
	m.log.Info("attempt graded", "session", s.ID(), "quiz", res.QuizID, "score", res.Score,
		"passed", res.Passed, "auto", res.AutoSubmitted)
}

func (m *Manager) append(ctx context.Context, typ, key string, data any) {
	if m.events == nil {
		return
	}
	ev, err := eventlog.New(typ, key, data)
	if err == nil {
		err = m.events.Append(ctx, ev)
	}
	if err != nil {
		m.log.Warn("event log append failed", "type", typ, "key", key, "err", err)
	}
}

// Run evicts idle sessions until ctx is cancelled. Finished sessions go after
// TTL; untimed in-progress ones are discarded after TTL as abandoned. Timed
// attempts are left to their countdown.
func (m *Manager) Run(ctx context.Context) {
	t := m.clock.NewTicker(m.cfg.SweepInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C():
			if n := m.Sweep(); n > 0 {
				m.log.Debug("evicted sessions", "count", n)
			}
		}
	}
}

// Sweep runs one eviction pass and reports how many sessions were removed.
func (m *Manager) Sweep() int {
	now := m.clock.Now()
	var evicted []*Session

	m.mu.Lock()
	for id, e := range m.sessions {
		if now.Sub(e.touched) < m.cfg.TTL {
			continue
		}
		v := e.s.View()
		if v.State == InProgress && v.TimeLimit != nil {
			continue
		}
		m.orphanLocked(e)
		delete(m.sessions, id)
		evicted = append(evicted, e.s)
	}
	m.mu.Unlock()

	for _, s := range evicted {
		s.Close()
	}
	return len(evicted)
}

// Close stops every live session.
func (m *Manager) Close() {
	m.mu.Lock()
	all := m.sessions
	m.sessions = map[string]*entry{}
	m.mu.Unlock()

	for _, e := range all {
		e.s.Close()
	}
}

// NewResultID is the id format used for results graded outside a session.
func NewResultID() string { return uuid.NewString() }
