package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prepwell/intervox/internal/gateway"
	"github.com/prepwell/intervox/internal/protocol"
	"github.com/prepwell/intervox/internal/transcript"
)

// Runtime timing defaults.
const (
	defaultHintInterval = 90 * time.Second
	defaultEndGraceGap  = 100 * time.Millisecond
	defaultEndingDelay  = 1500 * time.Millisecond
)

// Transport is the connection surface the runtime drives. Implemented by
// [gateway.Gateway].
type Transport interface {
	Connect(ctx context.Context) error
	Send(ctx context.Context, msg protocol.ClientMessage) error
	MarkEnding()
	Close() error
	Messages() <-chan protocol.ServerMessage
	Statuses() <-chan gateway.Status
}

// Capturer records one bounded clip and transcribes it. Implemented by
// capture.Client.
type Capturer interface {
	CaptureAndTranscribe(ctx context.Context) string
	StopTracks() error
}

// Speaker voices interviewer text. Implemented by voice.Controller.
type Speaker interface {
	Speak(ctx context.Context, text string)
	Cancel()
}

// SummaryStore persists the terminal session record.
type SummaryStore interface {
	SaveSummary(s Summary) error
}

// Observer receives observability callbacks from the runtime. Methods may
// be invoked from the loop goroutine or from effect goroutines; they must
// be safe for concurrent use and must not block.
type Observer interface {
	MessageReceived(msgType protocol.MessageType)
	TranscriptRejected(reason string)
	PhaseChanged(from, to Phase)

	// TurnCompleted reports the latency of one full question-answer turn,
	// measured from question receipt to the answer send.
	TurnCompleted(d time.Duration)

	// TranscriptionFinished reports one record-and-transcribe round trip.
	TranscriptionFinished(d time.Duration)

	// UtteranceSpoken reports how long one utterance held the floor, from
	// synthesis start to the idle handback.
	UtteranceSpoken(d time.Duration)

	// Reconnecting reports one reconnection attempt starting.
	Reconnecting()
}

// Config configures a [Runtime]. Zero-value durations take the package
// defaults.
type Config struct {
	// Mode selects the interview flavor; ResumeID or Topics must match it.
	Mode     Mode
	ResumeID string
	Topics   []string

	// Language reported with technical-mode code submissions.
	Language string

	// HintInterval is the idle time before an unprompted hint request in
	// technical mode. Default: 90s.
	HintInterval time.Duration

	// EndingDelay is the pause between persisting the summary and entering
	// the completed phase. Default: 1.5s.
	EndingDelay time.Duration
}

// Runtime owns the session event loop. It is the single goroutine that
// reads and writes [State]; everything else communicates with it through
// events. Construct with [NewRuntime] and drive with [Runtime.Run].
type Runtime struct {
	cfg      Config
	gw       Transport
	capturer Capturer
	speaker  Speaker
	store    SummaryStore
	filter   *transcript.Filter
	observer Observer
	now      func() time.Time

	events chan Event

	mu           sync.Mutex
	hintTimer    *time.Timer
	speakStarted time.Time

	state State
}

// RuntimeOption configures a [Runtime].
type RuntimeOption func(*Runtime)

// WithObserver installs an observability sink.
func WithObserver(o Observer) RuntimeOption {
	return func(r *Runtime) { r.observer = o }
}

// WithSummaryStore installs the terminal-record store. Without one the
// summary is logged and dropped.
func WithSummaryStore(s SummaryStore) RuntimeOption {
	return func(r *Runtime) { r.store = s }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) RuntimeOption {
	return func(r *Runtime) { r.now = now }
}

// NewRuntime assembles a runtime over its collaborators. filter must be
// non-nil; speaker and capturer may be degraded implementations but not nil.
func NewRuntime(cfg Config, gw Transport, capturer Capturer, speaker Speaker, filter *transcript.Filter, opts ...RuntimeOption) *Runtime {
	if cfg.HintInterval <= 0 {
		cfg.HintInterval = defaultHintInterval
	}
	if cfg.EndingDelay <= 0 {
		cfg.EndingDelay = defaultEndingDelay
	}
	r := &Runtime{
		cfg:      cfg,
		gw:       gw,
		capturer: capturer,
		speaker:  speaker,
		filter:   filter,
		now:      time.Now,
		events:   make(chan Event, 16),
	}
	for _, o := range opts {
		o(r)
	}
	r.state = NewState(cfg.Mode, r.now())
	return r
}

// State returns a snapshot of the current session state. Callers must not
// race it against Run; it is meant for inspection after Run returns and
// for the health endpoint's coarse phase reads.
func (r *Runtime) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// SubmitAnswer feeds a typed answer into the loop.
func (r *Runtime) SubmitAnswer(text string) { r.post(UserSubmitAnswer{Text: text}) }

// SubmitCode feeds the code editor contents into the loop.
func (r *Runtime) SubmitCode(code string) {
	r.post(UserSubmitCode{Code: code, Language: r.cfg.Language})
}

// RequestHint asks for the next hint.
func (r *Runtime) RequestHint() { r.post(UserRequestHint{}) }

// End starts the ending sequence.
func (r *Runtime) End() { r.post(UserEndInterview{}) }

// SpeechIdle reports that the current utterance finished and its cooldown
// elapsed. Wire this as the voice controller's idle callback.
func (r *Runtime) SpeechIdle() { r.post(SpeechFinished{}) }

// post enqueues an event without ever blocking the caller. A full queue
// means the loop is wedged; dropping with a log beats deadlocking a
// caller that may itself be the loop's downstream.
func (r *Runtime) post(ev Event) {
	select {
	case r.events <- ev:
	default:
		slog.Warn("session: event queue full, dropping event", "event", eventName(ev))
	}
}

// Run connects and processes events until the session completes or ctx is
// cancelled. It returns the terminal state.
func (r *Runtime) Run(ctx context.Context) (State, error) {
	r.setPhase(PhaseConnecting)
	if err := r.gw.Connect(ctx); err != nil {
		r.setPhase(PhaseDisconnected)
		return r.State(), err
	}
	r.dispatch(Connected{})

	for {
		select {
		case <-ctx.Done():
			r.teardown()
			return r.State(), ctx.Err()

		case msg, ok := <-r.gw.Messages():
			if !ok {
				r.teardown()
				return r.State(), nil
			}
			if r.observer != nil {
				r.observer.MessageReceived(msg.Type)
			}
			r.dispatch(ServerEvent{Msg: msg})

		case st := <-r.gw.Statuses():
			switch st {
			case gateway.StatusConnected:
				r.dispatch(Connected{})
			case gateway.StatusFailed:
				r.dispatch(ConnectionFailed{})
			case gateway.StatusReconnecting:
				if r.observer != nil {
					r.observer.Reconnecting()
				}
			case gateway.StatusClosed:
				// Informational; the terminal outcomes arrive as their own
				// statuses or as the ending sequence.
			}

		case ev := <-r.events:
			r.dispatch(ev)
			if r.State().Phase == PhaseCompleted {
				return r.State(), nil
			}
		}
	}
}

// dispatch runs one event through the reducer and executes its effects
// in order.
func (r *Runtime) dispatch(ev Event) {
	if _, ok := ev.(SpeechFinished); ok {
		r.mu.Lock()
		started := r.speakStarted
		r.speakStarted = time.Time{}
		r.mu.Unlock()
		if !started.IsZero() && r.observer != nil {
			r.observer.UtteranceSpoken(r.now().Sub(started))
		}
	}

	r.mu.Lock()
	before := r.state.Phase
	next, effects := Apply(r.state, ev, r.filter, r.now())
	r.state = next
	after := next.Phase
	r.mu.Unlock()

	if before != after {
		slog.Debug("session: phase change", "from", before, "to", after, "event", eventName(ev))
		if r.observer != nil {
			r.observer.PhaseChanged(before, after)
		}
	}

	for _, eff := range effects {
		r.execute(eff)
	}
}

func (r *Runtime) execute(eff Effect) {
	ctx := context.Background()
	switch eff.Kind {
	case EffectSend:
		if err := r.gw.Send(ctx, eff.Msg); err != nil {
			slog.Warn("session: send failed", "type", eff.Msg.Type, "error", err)
		}
		if eff.Msg.Type == protocol.TypeAnswer && r.observer != nil {
			if qs := r.State().QuestionStartedAt; !qs.IsZero() {
				r.observer.TurnCompleted(r.now().Sub(qs))
			}
		}

	case EffectSendInit:
		msg := protocol.Init(string(r.cfg.Mode), r.cfg.ResumeID)
		if r.cfg.Mode == ModeTechnical {
			msg = protocol.InitTechnical(r.cfg.Topics)
		}
		if err := r.gw.Send(ctx, msg); err != nil {
			slog.Warn("session: init send failed", "error", err)
		}

	case EffectSpeak:
		r.mu.Lock()
		r.speakStarted = r.now()
		r.mu.Unlock()
		r.speaker.Speak(ctx, eff.Text)

	case EffectCapture:
		go func() {
			if err := r.gw.Send(ctx, protocol.RecordAudio()); err != nil {
				slog.Debug("session: record notice failed", "error", err)
			}
			start := r.now()
			text := r.capturer.CaptureAndTranscribe(ctx)
			if r.observer != nil {
				r.observer.TranscriptionFinished(r.now().Sub(start))
			}
			if err := r.gw.Send(ctx, protocol.StopRecording()); err != nil {
				slog.Debug("session: stop-recording notice failed", "error", err)
			}
			r.post(TranscriptCaptured{Text: text})
		}()

	case EffectResetHintTimer:
		r.resetHintTimer()

	case EffectStopHintTimer:
		r.stopHintTimer()

	case EffectCancelSpeech:
		r.speaker.Cancel()

	case EffectBeginEnding:
		go r.runEnding()

	case EffectNoteRejection:
		slog.Debug("session: transcript rejected", "reason", eff.Text)
		if r.observer != nil {
			r.observer.TranscriptRejected(eff.Text)
		}

	case EffectNoteCopy:
		slog.Warn("session: code submission closely matches the question text")
	}
}

// runEnding performs the teardown steps in their required order, then
// reports completion back to the loop. The order matters: speech first so
// nothing talks over the close, ending marks before the stop messages so
// a socket drop mid-sequence cannot trigger a reconnect, media and socket
// teardown before the summary so the persisted record describes a fully
// stopped session.
func (r *Runtime) runEnding() {
	ctx := context.Background()
	state := r.State()

	r.speaker.Cancel()
	r.gw.MarkEnding()
	r.stopHintTimer()

	if err := r.gw.Send(ctx, protocol.StopInterview(state.SessionID, r.now())); err != nil {
		slog.Warn("session: stop message failed", "error", err)
	}
	time.Sleep(defaultEndGraceGap)

	legacy := protocol.End()
	if state.Mode == ModeTechnical {
		legacy = protocol.EndInterview()
	}
	if err := r.gw.Send(ctx, legacy); err != nil {
		slog.Warn("session: end message failed", "error", err)
	}

	if err := r.capturer.StopTracks(); err != nil {
		slog.Warn("session: stopping media failed", "error", err)
	}
	if err := r.gw.Close(); err != nil {
		slog.Warn("session: socket close failed", "error", err)
	}
	r.stopHintTimer()

	summary := r.State().Summarize(r.now())
	if r.store != nil {
		if err := r.store.SaveSummary(summary); err != nil {
			slog.Warn("session: summary persist failed", "error", err)
		}
	} else {
		slog.Info("session: summary",
			"session_id", summary.SessionID,
			"questions", summary.Questions,
			"score", summary.FinalScore,
		)
	}

	time.Sleep(r.cfg.EndingDelay)
	r.post(EndingFinished{})
}

// teardown releases resources on an abnormal exit (context cancellation or
// a closed message channel) without the full ending ceremony.
func (r *Runtime) teardown() {
	r.speaker.Cancel()
	r.stopHintTimer()
	if err := r.capturer.StopTracks(); err != nil {
		slog.Debug("session: stopping media on teardown", "error", err)
	}
	if err := r.gw.Close(); err != nil {
		slog.Debug("session: closing socket on teardown", "error", err)
	}
}

// resetHintTimer re-arms the single idle hint timer, replacing any pending
// one so at most one is ever outstanding.
func (r *Runtime) resetHintTimer() {
	if r.cfg.Mode != ModeTechnical {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.hintTimer != nil {
		r.hintTimer.Stop()
	}
	r.hintTimer = time.AfterFunc(r.cfg.HintInterval, func() {
		r.post(HintTimerFired{})
	})
}

func (r *Runtime) stopHintTimer() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.hintTimer != nil {
		r.hintTimer.Stop()
		r.hintTimer = nil
	}
}

// setPhase records a phase set by the runtime itself rather than the
// reducer (only the initial connect path needs this).
func (r *Runtime) setPhase(p Phase) {
	r.mu.Lock()
	before := r.state.Phase
	r.state.Phase = p
	r.mu.Unlock()
	if before != p && r.observer != nil {
		r.observer.PhaseChanged(before, p)
	}
}

func eventName(ev Event) string {
	switch ev.(type) {
	case ServerEvent:
		return "server_message"
	case Connected:
		return "connected"
	case ConnectionFailed:
		return "connection_failed"
	case SpeechFinished:
		return "speech_finished"
	case TranscriptCaptured:
		return "transcript_captured"
	case HintTimerFired:
		return "hint_timer"
	case UserSubmitAnswer:
		return "submit_answer"
	case UserSubmitCode:
		return "submit_code"
	case UserRequestHint:
		return "request_hint"
	case UserEndInterview:
		return "end_interview"
	case EndingFinished:
		return "ending_finished"
	}
	return "unknown"
}
