// Package flow tracks the multi-step "course summary" conversation for
// each user: collect a recording, optionally a slide image, then reply
// with a generated summary.
package flow

import (
	"context"
	"crypto/rand"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/savaki/linebot-assistant/pkg/logging"
	"github.com/savaki/linebot-assistant/pkg/models"
)

// State of a user's flow
type State int

const (
	Idle State = iota
	AwaitingAudio
	AwaitingAttachment
	Summarizing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AwaitingAudio:
		return "awaiting_audio"
	case AwaitingAttachment:
		return "awaiting_attachment"
	case Summarizing:
		return "summarizing"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Summarizer produces a course summary from a recording and an optional
// slide image or document
type Summarizer interface {
	Summarize(ctx context.Context, audio models.Artifact, attachment *models.Artifact) (string, error)
}

// SummaryObserver receives the outcome of each summarization
type SummaryObserver interface {
	ObserveSummary(status string)
}

// session is one user's active flow. Idle users have no session.
// audio is non-nil exactly when state is AwaitingAttachment.
type session struct {
	id        string
	state     State
	audio     *models.Artifact
	updatedAt time.Time
}

// summaryJob owns the captured artifacts for a single summarization call
type summaryJob struct {
	sessionID  string
	audio      models.Artifact
	attachment *models.Artifact
}

// Machine holds flow state for every user behind one mutex. The mutex is
// never held across the summarization call.
type Machine struct {
	summarizer Summarizer
	logger     *logging.Logger
	observer   SummaryObserver
	ttl        time.Duration
	now        func() time.Time

	mu       sync.Mutex
	sessions map[string]*session
}

// Option configures a Machine
type Option func(*Machine)

// WithObserver reports summarization outcomes to o
func WithObserver(o SummaryObserver) Option {
	return func(m *Machine) {
		m.observer = o
	}
}

// WithSessionTTL drops flows left untouched for longer than d
func WithSessionTTL(d time.Duration) Option {
	return func(m *Machine) {
		m.ttl = d
	}
}

func withClock(now func() time.Time) Option {
	return func(m *Machine) {
		m.now = now
	}
}

// NewMachine creates a state machine with every user idle
func NewMachine(summarizer Summarizer, logger *logging.Logger, opts ...Option) *Machine {
	if logger == nil {
		logger = logging.Discard()
	}
	m := &Machine{
		summarizer: summarizer,
		logger:     logger,
		now:        time.Now,
		sessions:   make(map[string]*session),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State returns the current state for a user
func (m *Machine) State(userID string) State {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s := m.lookup(userID); s != nil {
		return s.state
	}
	return Idle
}

// Cancel drops the user's flow and any captured recording. It reports
// false when the user had no flow or a summary is already running.
func (m *Machine) Cancel(userID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.lookup(userID)
	if s == nil || s.state == Summarizing {
		return false
	}
	delete(m.sessions, userID)
	return true
}

// HandleText applies a text message to the user's flow. handled is false
// when the user is idle and the text does not start a flow; the caller
// should then treat it as ordinary chat.
func (m *Machine) HandleText(ctx context.Context, userID, text string) (reply string, handled bool) {
	cmd := strings.TrimSpace(text)

	var job *summaryJob
	m.mu.Lock()
	s := m.lookup(userID)
	switch {
	case s == nil:
		if strings.EqualFold(cmd, CommandStart) {
			s = m.start(userID)
			m.logger.Info("course summary started", "user_id", userID, "session_id", s.id)
			reply, handled = ReplyStart, true
		}
	case s.state == Summarizing:
		reply, handled = ReplyBusy, true
	case cmd == CommandCancel:
		delete(m.sessions, userID)
		m.logger.Info("course summary cancelled", "user_id", userID, "session_id", s.id, "state", s.state.String())
		reply, handled = ReplyCancelled, true
	case s.state == AwaitingAttachment && cmd == CommandSkip:
		job = m.beginSummary(s, nil)
		handled = true
	default:
		reply, handled = guidance(s.state), true
		m.touch(s)
	}
	m.mu.Unlock()

	if job != nil {
		reply = m.runSummary(ctx, userID, job)
	}
	return reply, handled
}

// HandleAudio applies a recording to the user's flow
func (m *Machine) HandleAudio(_ context.Context, userID string, audio models.Artifact) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.lookup(userID)
	switch {
	case s == nil:
		return ReplyIdleAudio
	case s.state == AwaitingAudio:
		s.audio = &audio
		s.state = AwaitingAttachment
		m.touch(s)
		m.logger.Info("course recording received", "user_id", userID, "session_id", s.id, "bytes", len(audio.Data))
		return ReplyAudioReceived
	case s.state == Summarizing:
		return ReplyBusy
	default:
		m.touch(s)
		return guidance(s.state)
	}
}

// HandleImage applies a picture to the user's flow. handled is false when
// the user is idle; the caller then treats the picture on its own.
func (m *Machine) HandleImage(ctx context.Context, userID string, image models.Artifact) (reply string, handled bool) {
	var job *summaryJob
	m.mu.Lock()
	s := m.lookup(userID)
	switch {
	case s == nil:
	case s.state == AwaitingAttachment:
		job = m.beginSummary(s, &image)
		handled = true
	case s.state == Summarizing:
		reply, handled = ReplyBusy, true
	default:
		m.touch(s)
		reply, handled = guidance(s.state), true
	}
	m.mu.Unlock()

	if job != nil {
		reply = m.runSummary(ctx, userID, job)
	}
	return reply, handled
}

// lookup returns the user's live session, dropping it if expired.
// Caller holds m.mu.
func (m *Machine) lookup(userID string) *session {
	s, ok := m.sessions[userID]
	if !ok {
		return nil
	}
	if m.ttl > 0 && s.state != Summarizing && m.now().Sub(s.updatedAt) > m.ttl {
		delete(m.sessions, userID)
		m.logger.Info("course summary expired", "user_id", userID, "session_id", s.id)
		return nil
	}
	return s
}

// start creates a new session. Caller holds m.mu.
func (m *Machine) start(userID string) *session {
	s := &session{
		id:        newSessionID(),
		state:     AwaitingAudio,
		updatedAt: m.now(),
	}
	m.sessions[userID] = s
	return s
}

func (m *Machine) touch(s *session) {
	s.updatedAt = m.now()
}

// beginSummary moves the captured artifacts out of the session into a job
// and marks the session busy. Caller holds m.mu.
func (m *Machine) beginSummary(s *session, attachment *models.Artifact) *summaryJob {
	job := &summaryJob{
		sessionID:  s.id,
		audio:      *s.audio,
		attachment: attachment,
	}
	s.audio = nil
	s.state = Summarizing
	m.touch(s)
	return job
}

// runSummary calls the summarizer without holding the lock, then returns
// the user to idle whether or not it succeeded.
func (m *Machine) runSummary(ctx context.Context, userID string, job *summaryJob) string {
	defer job.release()
	defer m.finish(userID, job.sessionID)

	start := m.now()
	summary, err := m.summarize(ctx, job)
	if err != nil {
		m.logger.Error("course summary failed",
			"user_id", userID,
			"session_id", job.sessionID,
			"with_attachment", job.attachment != nil,
			"error", err,
		)
		m.observe("error")
		return fmt.Sprintf(ReplySummaryFailed, err)
	}

	m.logger.Info("course summary completed",
		"user_id", userID,
		"session_id", job.sessionID,
		"with_attachment", job.attachment != nil,
		"duration", m.now().Sub(start).String(),
	)
	m.observe("ok")
	return summary
}

// summarize converts a summarizer panic into an error
func (m *Machine) summarize(ctx context.Context, job *summaryJob) (summary string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("summarizer panicked: %v", r)
		}
	}()
	return m.summarizer.Summarize(ctx, job.audio, job.attachment)
}

// finish drops the session that ran the job, leaving any newer one alone
func (m *Machine) finish(userID, sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[userID]; ok && s.id == sessionID {
		delete(m.sessions, userID)
	}
}

func (m *Machine) observe(status string) {
	if m.observer != nil {
		m.observer.ObserveSummary(status)
	}
}

func (j *summaryJob) release() {
	j.audio.Data = nil
	if j.attachment != nil {
		j.attachment.Data = nil
	}
}

func guidance(s State) string {
	switch s {
	case AwaitingAudio:
		return ReplyAwaitingAudio
	case AwaitingAttachment:
		return ReplyAwaitingAttachment
	case Summarizing:
		return ReplyBusy
	default:
		return ReplyIdleAudio
	}
}

func newSessionID() string {
	id, _ := ulid.New(ulid.Timestamp(time.Now()), rand.Reader)
	return "cs-" + id.String()
}
