package session

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/secacademy-lms/internal/quiz"
)

func minutes(n int) *int { return &n }

func testQuiz(limit *int, maxAttempts int) *quiz.Quiz {
	return &quiz.Quiz{
		ID:           "quiz-net",
		Title:        "Network basics",
		PassingScore: 70,
		TimeLimit:    limit,
		MaxAttempts:  maxAttempts,
		Questions: []quiz.Question{
			{ID: "q1", Question: "Port for HTTPS?", Type: quiz.SingleSelect, Options: []string{"80", "443", "22"}, CorrectAnswer: quiz.SingleAnswer("443")},
			{ID: "q2", Question: "Encrypted protocols", Type: quiz.MultipleSelect, Options: []string{"SSH", "Telnet", "TLS"}, CorrectAnswer: quiz.MultiAnswer("SSH", "TLS")},
			{ID: "q3", Question: "DNS uses UDP", Type: quiz.TrueFalse, Options: []string{"True", "False"}, CorrectAnswer: quiz.SingleAnswer("True")},
			{ID: "q4", Question: "Port for SSH?", Type: quiz.SingleSelect, Options: []string{"21", "22", "23"}, CorrectAnswer: quiz.SingleAnswer("22")},
		},
	}
}

// waitRemaining waits for the countdown goroutine to process the last fired tick.
func waitRemaining(t *testing.T, s *Session, want int) {
	t.Helper()
	require.Eventually(t, func() bool { return s.View().RemainingSeconds == want }, time.Second, time.Millisecond)
}

type hookCounter struct {
	mu      sync.Mutex
	results []quiz.Result
}

func (h *hookCounter) hook(_ *Session, r quiz.Result) {
	h.mu.Lock()
	h.results = append(h.results, r)
	h.mu.Unlock()
}

func (h *hookCounter) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.results)
}

func TestUnavailableSessionRefusesEverything(t *testing.T) {
	cases := map[string]*Session{
		"empty questions": New(&quiz.Quiz{ID: "empty", Title: "Empty"}, nil),
		"nil quiz":        New(nil, nil),
		"fetch failed":    New(nil, errors.New("connection refused")),
	}
	for name, s := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, Unavailable, s.State())
			assert.ErrorIs(t, s.Start(), ErrUnavailable)
			assert.ErrorIs(t, s.SelectAnswer("q1", "a"), ErrUnavailable)
			_, err := s.Navigate(Next)
			assert.ErrorIs(t, err, ErrUnavailable)
			_, err = s.Submit()
			assert.ErrorIs(t, err, ErrUnavailable)
			assert.ErrorIs(t, s.Retake(), ErrUnavailable)
			s.Tick()

			assert.Equal(t, Unavailable, s.State())
			assert.NotEmpty(t, s.View().Reason)
		})
	}
}

func TestNotStartedShowsMetadata(t *testing.T) {
	s := New(testQuiz(minutes(5), 3), nil, WithUser("alice"))
	v := s.View()

	assert.Equal(t, NotStarted, v.State)
	assert.Equal(t, 4, v.QuestionCount)
	assert.Equal(t, 70, v.PassingScore)
	require.NotNil(t, v.TimeLimit)
	assert.Equal(t, 5, *v.TimeLimit)
	assert.Equal(t, 3, v.AttemptsRemaining)
	assert.Nil(t, v.Question)

	assert.ErrorIs(t, s.SelectAnswer("q1", "443"), ErrNotInProgress)
	_, err := s.Submit()
	assert.ErrorIs(t, err, ErrNotInProgress)
}

func TestSelectAnswer(t *testing.T) {
	s := New(testQuiz(nil, 0), nil)
	require.NoError(t, s.Start())
	assert.ErrorIs(t, s.Start(), ErrAlreadyStarted)

	require.NoError(t, s.SelectAnswer("q1", "80"))
	require.NoError(t, s.SelectAnswer("q1", "443"))

	require.NoError(t, s.SelectAnswer("q2", "SSH"))
	require.NoError(t, s.SelectAnswer("q2", "Telnet"))
	require.NoError(t, s.SelectAnswer("q2", "TLS"))
	require.NoError(t, s.SelectAnswer("q2", "Telnet"))

	// values outside the options are accepted and simply never match
	require.NoError(t, s.SelectAnswer("q3", "Maybe"))

	assert.ErrorIs(t, s.SelectAnswer("nope", "x"), ErrUnknownQuestion)

	v := s.View()
	assert.Equal(t, "443", v.Answers["q1"].Value())
	assert.Equal(t, []string{"SSH", "TLS"}, v.Answers["q2"].Values())
	assert.Equal(t, "Maybe", v.Answers["q3"].Value())
	require.NotNil(t, v.Question)
	assert.True(t, v.Question.CorrectAnswer.IsZero(), "key hidden while in progress")
}

func TestNavigationClamps(t *testing.T) {
	s := New(testQuiz(nil, 0), nil)
	_, err := s.Navigate(Next)
	assert.ErrorIs(t, err, ErrNotInProgress)
	require.NoError(t, s.Start())

	i, err := s.Navigate(Prev)
	require.NoError(t, err)
	assert.Equal(t, 0, i)

	for n := 0; n < 10; n++ {
		i, _ = s.Navigate(Next)
	}
	assert.Equal(t, 3, i)

	i, _ = s.JumpTo(1)
	assert.Equal(t, 1, i)
	i, _ = s.JumpTo(-5)
	assert.Equal(t, 0, i)
	i, _ = s.JumpTo(99)
	assert.Equal(t, 3, i)

	assert.Equal(t, "q4", s.View().Question.ID)
}

func TestSubmitFourQuestionScenario(t *testing.T) {
	hooks := &hookCounter{}
	clock := newFakeClock()
	s := New(testQuiz(nil, 0), nil, WithUser("alice"), WithClock(clock), WithOnGraded(hooks.hook),
		WithResultIDs(func() string { return "result-1" }))
	require.NoError(t, s.Start())

	require.NoError(t, s.SelectAnswer("q1", "443"))
	require.NoError(t, s.SelectAnswer("q2", "TLS"))
	require.NoError(t, s.SelectAnswer("q2", "SSH"))
	require.NoError(t, s.SelectAnswer("q3", "True"))
	require.NoError(t, s.SelectAnswer("q4", "23"))

	res, err := s.Submit()
	require.NoError(t, err)
	assert.Equal(t, "result-1", res.ID)
	assert.Equal(t, "alice", res.UserID)
	assert.Equal(t, 75, res.Score)
	assert.Equal(t, 3, res.CorrectAnswers)
	assert.Equal(t, 4, res.TotalQuestions)
	assert.True(t, res.Passed)
	assert.Equal(t, 0, res.TimeTaken, "untimed")
	assert.False(t, res.AutoSubmitted)
	assert.Equal(t, clock.Now(), res.CompletedAt)
	assert.Equal(t, Graded, s.State())

	again, err := s.Submit()
	assert.ErrorIs(t, err, ErrAlreadySubmitted)
	assert.Equal(t, res, again)
	assert.Equal(t, 1, hooks.count())

	assert.ErrorIs(t, s.SelectAnswer("q4", "22"), ErrAlreadySubmitted)
	v := s.View()
	require.NotNil(t, v.Result)
	assert.Equal(t, 75, v.Result.Score)
	assert.Equal(t, "22", v.Result.Breakdown[3].CorrectAnswer.Value(), "keys revealed after grading")
}

func TestTimerAutoSubmitsAfterSixtyTicks(t *testing.T) {
	hooks := &hookCounter{}
	clock := newFakeClock()
	s := New(testQuiz(minutes(1), 0), nil, WithClock(clock), WithOnGraded(hooks.hook))

	require.NoError(t, s.Start())
	ticker := <-clock.created
	assert.Equal(t, 60, s.View().RemainingSeconds)

	require.NoError(t, s.SelectAnswer("q1", "443"))
	clock.fire(ticker, 59)
	waitRemaining(t, s, 1)
	assert.Equal(t, InProgress, s.State())

	clock.fire(ticker, 1)
	require.Eventually(t, func() bool { return hooks.count() == 1 }, time.Second, 5*time.Millisecond)

	res, ok := s.Result()
	require.True(t, ok)
	assert.True(t, res.AutoSubmitted)
	assert.Equal(t, 60, res.TimeTaken)
	assert.Equal(t, 25, res.Score)
	assert.False(t, res.Passed)
	assert.Eventually(t, ticker.isStopped, time.Second, 5*time.Millisecond)

	s.Tick()
	_, err := s.Submit()
	assert.ErrorIs(t, err, ErrAlreadySubmitted)
	assert.Equal(t, 1, hooks.count())
}

func TestManualSubmitStopsTimer(t *testing.T) {
	hooks := &hookCounter{}
	clock := newFakeClock()
	s := New(testQuiz(minutes(1), 0), nil, WithClock(clock), WithOnGraded(hooks.hook))

	require.NoError(t, s.Start())
	ticker := <-clock.created
	clock.fire(ticker, 10)
	waitRemaining(t, s, 50)

	res, err := s.Submit()
	require.NoError(t, err)
	assert.Equal(t, 10, res.TimeTaken)
	assert.False(t, res.AutoSubmitted)
	assert.Eventually(t, ticker.isStopped, time.Second, 5*time.Millisecond)

	for i := 0; i < 60; i++ {
		s.Tick()
	}
	got, _ := s.Result()
	assert.Equal(t, res, got)
	assert.Equal(t, 1, hooks.count())
}

func TestSubmitAndExpiryRace(t *testing.T) {
	for round := 0; round < 50; round++ {
		hooks := &hookCounter{}
		clock := newFakeClock()
		s := New(testQuiz(minutes(1), 0), nil, WithClock(clock), WithOnGraded(hooks.hook))
		require.NoError(t, s.Start())
		ticker := <-clock.created
		clock.fire(ticker, 59)
		waitRemaining(t, s, 1)

		var (
			wg      sync.WaitGroup
			firstOK atomic.Int32
		)
		for i := 0; i < 4; i++ {
			wg.Add(2)
			go func() {
				defer wg.Done()
				s.Tick()
			}()
			go func() {
				defer wg.Done()
				if _, err := s.Submit(); err == nil {
					firstOK.Add(1)
				}
			}()
		}
		wg.Wait()

		require.Equal(t, 1, hooks.count(), "round %d", round)
		assert.LessOrEqual(t, firstOK.Load(), int32(1))
		s.Close()
	}
}

func TestTickIgnoredWhenUntimed(t *testing.T) {
	s := New(testQuiz(nil, 0), nil)
	require.NoError(t, s.Start())
	for i := 0; i < 100; i++ {
		s.Tick()
	}
	assert.Equal(t, InProgress, s.State())
}

func TestRetakeHonoursAttemptLimit(t *testing.T) {
	clock := newFakeClock()
	q := testQuiz(nil, 2)
	s := New(q, nil, WithClock(clock))

	assert.ErrorIs(t, s.Retake(), ErrNotGraded)
	require.NoError(t, s.Start())
	assert.ErrorIs(t, s.Retake(), ErrNotGraded)
	require.NoError(t, s.SelectAnswer("q1", "443"))
	_, err := s.Submit()
	require.NoError(t, err)
	assert.Equal(t, 1, s.View().AttemptsRemaining)

	require.NoError(t, s.Retake())
	v := s.View()
	assert.Equal(t, NotStarted, v.State)
	assert.Equal(t, 0, v.Current)
	assert.Empty(t, v.Answers)
	assert.Nil(t, v.Result)

	require.NoError(t, s.Start())
	_, ok := s.View().Answers.Lookup("q1")
	assert.False(t, ok, "fresh attempt, not a resume")
	_, err = s.Submit()
	require.NoError(t, err)

	assert.ErrorIs(t, s.Retake(), ErrNoAttemptsLeft)
	assert.Equal(t, 0, q.Attempts, "caller's quiz is not mutated")
}

func TestStartRefusedWhenAttemptsExhausted(t *testing.T) {
	q := testQuiz(nil, 1)
	q.Attempts = 1
	s := New(q, nil)
	assert.ErrorIs(t, s.Start(), ErrNoAttemptsLeft)
	assert.Equal(t, NotStarted, s.State())
}

func TestSetAttemptsNeverLowersCount(t *testing.T) {
	s := New(testQuiz(nil, 2), nil)
	require.NoError(t, s.Start())
	_, err := s.Submit()
	require.NoError(t, err)

	s.setAttempts(0) // store has not caught up with the graded attempt
	assert.Equal(t, 1, s.View().AttemptsRemaining)

	s.setAttempts(2)
	assert.Equal(t, 0, s.View().AttemptsRemaining)
	assert.ErrorIs(t, s.Retake(), ErrNoAttemptsLeft)
}

func TestRetakeResetsTimer(t *testing.T) {
	clock := newFakeClock()
	s := New(testQuiz(minutes(1), 0), nil, WithClock(clock))
	require.NoError(t, s.Start())
	first := <-clock.created
	clock.fire(first, 30)
	waitRemaining(t, s, 30)
	_, err := s.Submit()
	require.NoError(t, err)

	require.NoError(t, s.Retake())
	assert.Equal(t, 60, s.View().RemainingSeconds)
	require.NoError(t, s.Start())
	second := <-clock.created
	clock.fire(second, 5)
	waitRemaining(t, s, 55)
	s.Close()
}

func TestSubscribeStream(t *testing.T) {
	s := New(testQuiz(nil, 0), nil)
	events, cancel := s.Subscribe()

	ev := <-events
	assert.Equal(t, EventSnapshot, ev.Type)
	assert.Equal(t, NotStarted, ev.View.State)

	require.NoError(t, s.Start())
	require.NoError(t, s.SelectAnswer("q1", "443"))
	_, _ = s.Navigate(Next)
	_, err := s.Submit()
	require.NoError(t, err)

	var types []EventType
	for i := 0; i < 4; i++ {
		types = append(types, (<-events).Type)
	}
	assert.Equal(t, []EventType{EventStarted, EventAnswered, EventNavigated, EventGraded}, types)

	cancel()
	_, open := <-events
	assert.False(t, open)
	cancel()
}

func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	s := New(testQuiz(nil, 0), nil)
	_, cancel := s.Subscribe()
	defer cancel()
	require.NoError(t, s.Start())

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10*subscriberBuffer; i++ {
			_, _ = s.JumpTo(i % 4)
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publishing blocked on a full subscriber")
	}
}

func TestCloseEndsSubscriptionsAndTimer(t *testing.T) {
	clock := newFakeClock()
	s := New(testQuiz(minutes(1), 0), nil, WithClock(clock))
	events, _ := s.Subscribe()
	require.NoError(t, s.Start())
	ticker := <-clock.created

	s.Close()
	assert.Eventually(t, ticker.isStopped, time.Second, 5*time.Millisecond)
	for range events {
	}
	late, _ := s.Subscribe()
	_, open := <-late
	assert.False(t, open)
}
