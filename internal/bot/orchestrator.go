package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/szaher/chatrelay/internal/billing"
	"github.com/szaher/chatrelay/internal/llm"
	"github.com/szaher/chatrelay/internal/session"
	"github.com/szaher/chatrelay/internal/telemetry"
	"github.com/szaher/chatrelay/internal/transcribe"
)

// User-facing reply texts.
const (
	welcomeText       = "Hello! I relay our conversation to a language model. Recording it from here on."
	welcomeBackText   = "You are already registered! Welcome back :)"
	notRegisteredText = "You are not registered yet! Use /start to begin."
	clearedText       = "Cleared our conversation."
	thinkingText      = "Thinking..."
	backendFailText   = "Something went wrong while talking to the model. Please try again."
	transcribeFail    = "Sorry, I could not transcribe that voice message."
	emptyTranscript   = "I could not make out any speech in that recording."
	invalidModelText  = "I don't know that model. Send the command without arguments to list the available ones."
)

// Params collects the orchestrator's collaborators and policy knobs.
type Params struct {
	Store       session.Store
	Registry    *llm.Registry
	Accountant  *billing.Accountant
	Transcriber Transcriber
	Fetcher     MediaFetcher
	Replier     Replier
	Logger      *slog.Logger
	Metrics     *telemetry.Metrics

	// DefaultModel is assigned to new sessions and used for inline
	// one-shot completions.
	DefaultModel string

	// AudioCeiling rejects voice clips longer than this duration before
	// any fetch or conversion work happens.
	AudioCeiling time.Duration

	// InlineTrigger is the suffix an inline query must carry; empty
	// answers every query.
	InlineTrigger string
}

// Orchestrator coordinates one inbound event at a time per conversation:
// load state, mutate history, dispatch to a backend, account usage,
// persist, reply.
type Orchestrator struct {
	store       session.Store
	registry    *llm.Registry
	accountant  *billing.Accountant
	transcriber Transcriber
	fetcher     MediaFetcher
	replier     Replier
	logger      *slog.Logger
	metrics     *telemetry.Metrics

	defaultModel  string
	audioCeiling  time.Duration
	inlineTrigger string

	locks *chatLocks
}

// New creates a session orchestrator.
func New(p Params) *Orchestrator {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	metrics := p.Metrics
	if metrics == nil {
		metrics = telemetry.NewMetrics()
	}
	return &Orchestrator{
		store:         p.Store,
		registry:      p.Registry,
		accountant:    p.Accountant,
		transcriber:   p.Transcriber,
		fetcher:       p.Fetcher,
		replier:       p.Replier,
		logger:        logger,
		metrics:       metrics,
		defaultModel:  p.DefaultModel,
		audioCeiling:  p.AudioCeiling,
		inlineTrigger: p.InlineTrigger,
		locks:         newChatLocks(),
	}
}

// HandleEvent processes one inbound event to completion. Handler failures
// are isolated: the returned error is for logging, never fatal to the
// event loop.
func (o *Orchestrator) HandleEvent(ctx context.Context, ev Event) error {
	ctx = telemetry.WithCorrelationID(ctx, "")
	log := telemetry.EventLogger(o.logger, ctx, string(ev.Kind), ev.ChatID)

	var err error
	switch ev.Kind {
	case KindStart:
		err = o.handleStart(ctx, ev)
	case KindClear:
		err = o.handleClear(ctx, ev)
	case KindStats:
		err = o.handleStats(ctx, ev)
	case KindSetModel:
		err = o.handleSetModel(ctx, ev)
	case KindText:
		err = o.handleText(ctx, ev)
	case KindVoice:
		err = o.handleVoice(ctx, ev)
	case KindInline:
		err = o.handleInline(ctx, ev)
	default:
		err = fmt.Errorf("unknown event kind %q", ev.Kind)
	}

	status := "ok"
	if err != nil {
		status = "error"
		log.Error("event failed", "error", err)
	}
	o.metrics.EventsTotal.WithLabelValues(string(ev.Kind), status).Inc()
	return err
}

// handleStart creates the session on first contact. Re-running start on an
// existing session is an idempotent no-op on state.
func (o *Orchestrator) handleStart(ctx context.Context, ev Event) error {
	defer o.locks.acquire(ev.ChatID)()

	_, err := o.store.Get(ctx, ev.ChatID)
	switch {
	case err == nil:
		return o.send(ctx, ev.ChatID, welcomeBackText)
	case errors.Is(err, session.ErrNotFound):
		sess := session.New(ev.ChatID, o.defaultModel)
		if err := o.store.Create(ctx, sess); err != nil && !errors.Is(err, session.ErrAlreadyExists) {
			return fmt.Errorf("create session: %w", err)
		}
		return o.send(ctx, ev.ChatID, welcomeText)
	default:
		return fmt.Errorf("load session: %w", err)
	}
}

func (o *Orchestrator) handleClear(ctx context.Context, ev Event) error {
	defer o.locks.acquire(ev.ChatID)()

	sess, err := o.store.Get(ctx, ev.ChatID)
	if errors.Is(err, session.ErrNotFound) {
		return o.send(ctx, ev.ChatID, notRegisteredText)
	}
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}

	sess.Clear()
	if err := o.store.Replace(ctx, sess); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	return o.send(ctx, ev.ChatID, clearedText)
}

func (o *Orchestrator) handleStats(ctx context.Context, ev Event) error {
	defer o.locks.acquire(ev.ChatID)()

	sess, err := o.store.Get(ctx, ev.ChatID)
	if errors.Is(err, session.ErrNotFound) {
		return o.send(ctx, ev.ChatID, notRegisteredText)
	}
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}

	// The cost estimate is display-only and may diverge from the durable
	// usage counter: early turns carry no cost annotations.
	cost := o.accountant.EstimateCost(sess.Messages)
	text := fmt.Sprintf("Model: %s\nMessages: %d\nUsage: %d units\nEstimated cost: $%s",
		sess.Model, len(sess.Messages), sess.Usage, cost.StringFixed(4))
	return o.send(ctx, ev.ChatID, text)
}

func (o *Orchestrator) handleSetModel(ctx context.Context, ev Event) error {
	defer o.locks.acquire(ev.ChatID)()

	sess, err := o.store.Get(ctx, ev.ChatID)
	if errors.Is(err, session.ErrNotFound) {
		return o.send(ctx, ev.ChatID, notRegisteredText)
	}
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}

	if ev.ModelArg == "" {
		var b strings.Builder
		fmt.Fprintf(&b, "Current model: %s\nAvailable models:\n", sess.Model)
		for _, id := range o.registry.IDs() {
			fmt.Fprintf(&b, "  %s\n", id)
		}
		return o.send(ctx, ev.ChatID, strings.TrimRight(b.String(), "\n"))
	}

	if _, err := o.registry.Resolve(ev.ModelArg); err != nil {
		return o.send(ctx, ev.ChatID, invalidModelText)
	}

	sess.Model = ev.ModelArg
	if err := o.store.Replace(ctx, sess); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	return o.send(ctx, ev.ChatID, fmt.Sprintf("Switched to %s", ev.ModelArg))
}

func (o *Orchestrator) handleText(ctx context.Context, ev Event) error {
	defer o.locks.acquire(ev.ChatID)()

	sess, err := o.store.Get(ctx, ev.ChatID)
	if errors.Is(err, session.ErrNotFound) {
		return o.send(ctx, ev.ChatID, notRegisteredText)
	}
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}

	return o.completeTurn(ctx, sess, ev.Text)
}

// completeTurn runs the shared request/response pipeline: append the user
// turn, persist, dispatch, annotate, account, persist again, reply. Shared
// by text events and voice transcripts.
//
// The first persist happens before the backend call, so a backend failure
// leaves the user turn stored with no assistant reply. That is intentional
// at-least-appended semantics; nothing is rolled back.
func (o *Orchestrator) completeTurn(ctx context.Context, sess *session.Session, userText string) error {
	sess.Append(session.Turn{Role: llm.RoleUser, Content: userText})
	if err := o.store.Replace(ctx, sess); err != nil {
		return fmt.Errorf("persist pending turn: %w", err)
	}

	// Best effort: the conversation still works without the placeholder.
	placeholderID, err := o.replier.Send(ctx, sess.ID, thinkingText)
	if err != nil {
		placeholderID = 0
	}

	start := time.Now()
	resp, err := o.registry.Complete(ctx, sess.Model, sess.History())
	o.metrics.BackendSeconds.WithLabelValues(sess.Model).Observe(time.Since(start).Seconds())
	if err != nil {
		o.deliver(ctx, sess.ID, placeholderID, backendFailText)
		return fmt.Errorf("complete: %w", err)
	}

	// Annotate the pending user turn with the prompt cost now that the
	// backend reported it, then record the assistant turn.
	last := len(sess.Messages) - 1
	sess.Messages[last].Model = sess.Model
	sess.Messages[last].Tokens = resp.Usage.InputTokens
	sess.Append(session.Turn{
		Role:    llm.RoleAssistant,
		Content: resp.Content,
		Model:   sess.Model,
		Tokens:  resp.Usage.OutputTokens,
	})

	if _, err := o.accountant.Accumulate(sess, int64(resp.Usage.Total())); err != nil {
		return fmt.Errorf("account usage: %w", err)
	}
	o.metrics.TokensTotal.WithLabelValues(sess.Model, "input").Add(float64(resp.Usage.InputTokens))
	o.metrics.TokensTotal.WithLabelValues(sess.Model, "output").Add(float64(resp.Usage.OutputTokens))

	if err := o.store.Replace(ctx, sess); err != nil {
		return fmt.Errorf("persist reply: %w", err)
	}

	o.deliver(ctx, sess.ID, placeholderID, resp.Content)
	return nil
}

func (o *Orchestrator) handleVoice(ctx context.Context, ev Event) error {
	defer o.locks.acquire(ev.ChatID)()

	sess, err := o.store.Get(ctx, ev.ChatID)
	if errors.Is(err, session.ErrNotFound) {
		return o.send(ctx, ev.ChatID, notRegisteredText)
	}
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}

	if ev.Voice == nil {
		return fmt.Errorf("voice event without audio reference")
	}
	if ev.Voice.Duration > o.audioCeiling {
		// Rejected before any fetch or transcription work; no state change.
		return o.send(ctx, ev.ChatID,
			fmt.Sprintf("Voice messages longer than %d seconds are not supported.",
				int(o.audioCeiling.Seconds())))
	}

	path, err := o.fetcher.Fetch(ctx, ev.Voice.FileID)
	if err != nil {
		o.metrics.TranscriptionsTotal.WithLabelValues("error").Inc()
		_ = o.send(ctx, ev.ChatID, transcribeFail)
		return fmt.Errorf("fetch audio: %w", err)
	}

	text, err := o.transcriber.Transcribe(ctx, path)
	if err != nil {
		o.metrics.TranscriptionsTotal.WithLabelValues("error").Inc()
		_ = o.send(ctx, ev.ChatID, transcribeFail)
		if errors.Is(err, transcribe.ErrConversionFailed) || errors.Is(err, transcribe.ErrTranscriptionFailed) {
			return err
		}
		return fmt.Errorf("transcribe audio: %w", err)
	}
	o.metrics.TranscriptionsTotal.WithLabelValues("ok").Inc()

	// Transcription usage is synthesized from clip duration, not
	// backend-reported.
	units := o.accountant.TranscriptionUnits(ev.Voice.Duration)
	if _, err := o.accountant.Accumulate(sess, units); err != nil {
		return fmt.Errorf("account transcription: %w", err)
	}

	if strings.TrimSpace(text) == "" {
		if err := o.store.Replace(ctx, sess); err != nil {
			return fmt.Errorf("persist session: %w", err)
		}
		return o.send(ctx, ev.ChatID, emptyTranscript)
	}

	// The transcript enters the conversation as a user turn and feeds the
	// same completion pipeline as a typed message.
	return o.completeTurn(ctx, sess, text)
}

// handleInline produces a one-shot completion from the query text alone.
// It neither requires nor mutates any session state.
func (o *Orchestrator) handleInline(ctx context.Context, ev Event) error {
	query := ev.Query
	if o.inlineTrigger != "" {
		if !strings.Contains(query, o.inlineTrigger) {
			return nil
		}
		query = strings.TrimSpace(strings.ReplaceAll(query, o.inlineTrigger, ""))
	}
	if query == "" {
		return nil
	}

	resp, err := o.registry.Complete(ctx, o.defaultModel,
		[]llm.Message{{Role: llm.RoleUser, Content: query}})
	if err != nil {
		return fmt.Errorf("inline complete: %w", err)
	}

	return o.replier.AnswerInline(ctx, ev.QueryID, []InlineResult{
		{
			ID:      "1",
			Title:   truncate(resp.Content, 64),
			Content: resp.Content,
		},
	})
}

// deliver edits the placeholder if one was sent, else sends a new message.
func (o *Orchestrator) deliver(ctx context.Context, chatID, placeholderID int64, text string) {
	if placeholderID != 0 {
		if err := o.replier.Edit(ctx, chatID, placeholderID, text); err == nil {
			return
		}
	}
	_ = o.send(ctx, chatID, text)
}

func (o *Orchestrator) send(ctx context.Context, chatID int64, text string) error {
	_, err := o.replier.Send(ctx, chatID, text)
	return err
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}
