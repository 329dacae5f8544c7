package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mind-engage/secacademy-lms/internal/grading"
	"github.com/mind-engage/secacademy-lms/internal/quiz"
)

type State string

const (
	NotStarted  State = "not_started"
	InProgress  State = "in_progress"
	Graded      State = "graded"
	Unavailable State = "unavailable"
)

type Direction int

const (
	Prev Direction = -1
	Next Direction = 1
)

type EventType string

const (
	EventStarted   EventType = "started"
	EventAnswered  EventType = "answered"
	EventNavigated EventType = "navigated"
	EventTick      EventType = "tick"
	EventGraded    EventType = "graded"
	EventReset     EventType = "reset"
	EventSnapshot  EventType = "snapshot" // first event of a stream
)

type Event struct {
	Type EventType `json:"type"`
	View View      `json:"view"`
}

// View is a point-in-time snapshot safe to serve to the attempt owner.
// Answer keys only appear inside Result.
type View struct {
	ID                string         `json:"id"`
	QuizID            string         `json:"quizId"`
	UserID            string         `json:"userId"`
	State             State          `json:"state"`
	Title             string         `json:"title,omitempty"`
	Description       string         `json:"description,omitempty"`
	QuestionCount     int            `json:"questionCount"`
	PassingScore      int            `json:"passingScore"`
	TimeLimit         *int           `json:"timeLimit,omitempty"`
	AttemptsRemaining int            `json:"attemptsRemaining"` // -1 when unlimited
	Current           int            `json:"current"`
	Question          *quiz.Question `json:"question,omitempty"`
	Answers           quiz.Answers   `json:"answers,omitempty"`
	RemainingSeconds  int            `json:"remainingSeconds"`
	StartedAt         *time.Time     `json:"startedAt,omitempty"`
	Result            *quiz.Result   `json:"result,omitempty"`
	Reason            string         `json:"reason,omitempty"`
}

const subscriberBuffer = 16

// Session drives one learner through NotStarted -> InProgress -> Graded.
// Every mutation happens under mu. The countdown goroutine only calls tick,
// which re-checks the state, so a manual submit and timer expiry can never
// both grade the same attempt.
type Session struct {
	mu sync.Mutex

	id     string
	userID string
	quiz   *quiz.Quiz
	reason error

	grader   *grading.Grader
	clock    Clock
	newID    func() string
	onGraded func(*Session, quiz.Result)

	state     State
	current   int
	answers   quiz.Answers
	remaining int
	startedAt time.Time
	result    *quiz.Result
	stop      chan struct{}

	subs    map[int]chan Event
	nextSub int
	closed  bool
}

type Option func(*Session)

func WithID(id string) Option             { return func(s *Session) { s.id = id } }
func WithUser(userID string) Option       { return func(s *Session) { s.userID = userID } }
func WithClock(c Clock) Option            { return func(s *Session) { s.clock = c } }
func WithGrader(g *grading.Grader) Option { return func(s *Session) { s.grader = g } }

// WithResultIDs overrides result id generation.
func WithResultIDs(f func() string) Option { return func(s *Session) { s.newID = f } }

// WithOnGraded registers a hook called once per graded attempt, outside the
// session lock.
func WithOnGraded(f func(*Session, quiz.Result)) Option {
	return func(s *Session) { s.onGraded = f }
}

// New wraps a fetched quiz. A fetch error, a nil quiz or a quiz without
// questions yields a session stuck in Unavailable.
func New(q *quiz.Quiz, fetchErr error, opts ...Option) *Session {
	s := &Session{
		id:      uuid.NewString(),
		grader:  grading.NewGrader(),
		clock:   RealClock,
		newID:   uuid.NewString,
		state:   NotStarted,
		answers: quiz.Answers{},
		subs:    map[int]chan Event{},
	}
	for _, o := range opts {
		o(s)
	}

	switch {
	case fetchErr != nil:
		s.state, s.reason = Unavailable, fetchErr
	case q == nil:
		s.state, s.reason = Unavailable, quiz.ErrNotFound
	case len(q.Questions) == 0:
		s.state, s.reason = Unavailable, quiz.ErrNoQuestions
	}
	if q != nil {
		cp := *q
		s.quiz = &cp
		s.remaining = cp.TimeLimitSeconds()
	}
	return s
}

func (s *Session) ID() string     { return s.id }
func (s *Session) UserID() string { return s.userID }

func (s *Session) QuizID() string {
	if s.quiz == nil {
		return ""
	}
	return s.quiz.ID
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Result returns the graded result, if any.
func (s *Session) Result() (quiz.Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result == nil {
		return quiz.Result{}, false
	}
	return *s.result, true
}

// Start enters InProgress and, for timed quizzes, starts the countdown.
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case Unavailable:
		return ErrUnavailable
	case InProgress, Graded:
		return ErrAlreadyStarted
	}
	if !s.quiz.CanAttempt() {
		return ErrNoAttemptsLeft
	}

	s.state = InProgress
	s.current = 0
	s.answers = quiz.Answers{}
	s.result = nil
	s.remaining = s.quiz.TimeLimitSeconds()
	s.startedAt = s.clock.Now()

	if s.remaining > 0 && !s.closed {
		s.stop = make(chan struct{})
		go s.runTimer(s.clock.NewTicker(time.Second), s.stop)
	}
	s.publishLocked(EventStarted)
	return nil
}

func (s *Session) runTimer(t Ticker, stop <-chan struct{}) {
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C():
			if !s.tick() {
				return
			}
		}
	}
}

// Tick advances the countdown by one second. At zero the attempt is
// submitted. Ticks outside a timed InProgress attempt are ignored.
func (s *Session) Tick() { s.tick() }

// tick reports whether the countdown is still running.
func (s *Session) tick() bool {
	s.mu.Lock()
	if s.state != InProgress || s.remaining <= 0 {
		s.mu.Unlock()
		return false
	}
	s.remaining--
	if s.remaining > 0 {
		s.publishLocked(EventTick)
		s.mu.Unlock()
		return true
	}
	res := s.gradeLocked(true)
	s.mu.Unlock()

	s.graded(res)
	return false
}

// SelectAnswer records value for the question. Single-select replaces the
// stored value; multiple-select toggles value in the stored set.
func (s *Session) SelectAnswer(questionID, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireInProgressLocked(); err != nil {
		return err
	}
	q, ok := s.quiz.Question(questionID)
	if !ok {
		return ErrUnknownQuestion
	}
	if q.Type.IsMulti() {
		s.answers[questionID] = s.answers[questionID].Toggle(value)
	} else {
		s.answers[questionID] = quiz.SingleAnswer(value)
	}
	s.publishLocked(EventAnswered)
	return nil
}

// Navigate moves one question back or forward. Moving past either end is a no-op.
func (s *Session) Navigate(d Direction) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireInProgressLocked(); err != nil {
		return s.current, err
	}
	step := 1
	if d < 0 {
		step = -1
	}
	return s.moveLocked(s.current + step), nil
}

// JumpTo moves to index, clamped to the question range.
func (s *Session) JumpTo(index int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireInProgressLocked(); err != nil {
		return s.current, err
	}
	return s.moveLocked(index), nil
}

func (s *Session) moveLocked(target int) int {
	if target < 0 {
		target = 0
	}
	if last := len(s.quiz.Questions) - 1; target > last {
		target = last
	}
	if target != s.current {
		s.current = target
		s.publishLocked(EventNavigated)
	}
	return s.current
}

// Submit grades the attempt. A second call returns the first result
// unchanged together with ErrAlreadySubmitted.
func (s *Session) Submit() (quiz.Result, error) {
	s.mu.Lock()
	switch s.state {
	case Graded:
		res := *s.result
		s.mu.Unlock()
		return res, ErrAlreadySubmitted
	case Unavailable:
		s.mu.Unlock()
		return quiz.Result{}, ErrUnavailable
	case NotStarted:
		s.mu.Unlock()
		return quiz.Result{}, ErrNotInProgress
	}
	res := s.gradeLocked(false)
	s.mu.Unlock()

	s.graded(res)
	return res, nil
}

// gradeLocked stops the countdown and computes the result in one step.
func (s *Session) gradeLocked(auto bool) quiz.Result {
	if s.stop != nil {
		close(s.stop)
		s.stop = nil
	}

	sum := s.grader.Grade(s.quiz, s.answers)
	timeTaken := 0
	if limit := s.quiz.TimeLimitSeconds(); limit > 0 {
		timeTaken = limit - s.remaining
	}
	res := quiz.Result{
		ID:             s.newID(),
		QuizID:         s.quiz.ID,
		UserID:         s.userID,
		Score:          sum.Score,
		TotalQuestions: sum.TotalQuestions,
		CorrectAnswers: sum.CorrectAnswers,
		Passed:         sum.Passed,
		Answers:        s.answers.Clone(),
		Breakdown:      sum.Breakdown,
		CompletedAt:    s.clock.Now().UTC(),
		TimeTaken:      timeTaken,
		AutoSubmitted:  auto,
	}
	s.result = &res
	s.state = Graded
	s.quiz.Attempts++
	s.publishLocked(EventGraded)
	return res
}

func (s *Session) graded(res quiz.Result) {
	if s.onGraded != nil {
		s.onGraded(s, res)
	}
}

// Retake resets a graded attempt to NotStarted with cleared answers.
func (s *Session) Retake() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case Unavailable:
		return ErrUnavailable
	case NotStarted, InProgress:
		return ErrNotGraded
	}
	if !s.quiz.CanAttempt() {
		return ErrNoAttemptsLeft
	}
	s.state = NotStarted
	s.current = 0
	s.answers = quiz.Answers{}
	s.result = nil
	s.remaining = s.quiz.TimeLimitSeconds()
	s.publishLocked(EventReset)
	return nil
}

// setAttempts raises the graded-attempt count, e.g. after results were
// stored outside this session. The count never goes down.
func (s *Session) setAttempts(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.quiz != nil && n > s.quiz.Attempts {
		s.quiz.Attempts = n
	}
}

// attemptState reports the state and, once graded, the result id in one read.
func (s *Session) attemptState() (State, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result == nil {
		return s.state, ""
	}
	return s.state, s.result.ID
}

func (s *Session) requireInProgressLocked() error {
	switch s.state {
	case InProgress:
		return nil
	case Unavailable:
		return ErrUnavailable
	case Graded:
		return ErrAlreadySubmitted
	default:
		return ErrNotInProgress
	}
}

// View returns the current snapshot.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

func (s *Session) viewLocked() View {
	v := View{
		ID:                s.id,
		UserID:            s.userID,
		State:             s.state,
		Current:           s.current,
		RemainingSeconds:  s.remaining,
		AttemptsRemaining: -1,
	}
	if s.reason != nil {
		v.Reason = s.reason.Error()
	}
	if s.quiz == nil {
		return v
	}
	v.QuizID = s.quiz.ID
	v.Title = s.quiz.Title
	v.Description = s.quiz.Description
	v.QuestionCount = len(s.quiz.Questions)
	v.PassingScore = s.quiz.PassingScore
	v.TimeLimit = s.quiz.TimeLimit
	v.AttemptsRemaining = s.quiz.AttemptsRemaining()

	if s.state == InProgress || s.state == Graded {
		started := s.startedAt
		v.StartedAt = &started
	}
	switch s.state {
	case InProgress:
		q := s.quiz.Questions[s.current]
		q.CorrectAnswer = quiz.Answer{}
		q.Explanation = ""
		v.Question = &q
		v.Answers = s.answers.Clone()
	case Graded:
		res := *s.result
		v.Result = &res
		v.Answers = res.Answers
	}
	return v
}

// Subscribe returns a channel of events and a cancel func. Sends never block;
// a slow subscriber misses events rather than stalling the attempt.
func (s *Session) Subscribe() (<-chan Event, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan Event, subscriberBuffer)
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	ch <- Event{Type: EventSnapshot, View: s.viewLocked()}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if c, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(c)
			}
		})
	}
}

func (s *Session) publishLocked(t EventType) {
	if len(s.subs) == 0 {
		return
	}
	ev := Event{Type: t, View: s.viewLocked()}
	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Close stops the countdown without grading and ends every subscription.
// An in-progress attempt is discarded.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if s.stop != nil {
		close(s.stop)
		s.stop = nil
	}
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
}
