package telegram

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/szaher/chatrelay/internal/bot"
)

// Handler consumes orchestrator events. Satisfied by *bot.Orchestrator.
type Handler interface {
	HandleEvent(ctx context.Context, ev bot.Event) error
}

// Poller long-polls the Bot API and feeds updates to the orchestrator,
// one at a time. Per-chat ordering relies on this sequential dispatch;
// the orchestrator additionally serializes per identity.
type Poller struct {
	client  *Client
	handler Handler
	logger  *slog.Logger

	pollTimeout int           // seconds, passed to getUpdates
	retryDelay  time.Duration // backoff after a failed poll
}

// NewPoller creates an update poller.
func NewPoller(client *Client, handler Handler, logger *slog.Logger) *Poller {
	return &Poller{
		client:      client,
		handler:     handler,
		logger:      logger,
		pollTimeout: 30,
		retryDelay:  3 * time.Second,
	}
}

// Run polls until the context is cancelled. Handler failures are logged
// and never stop the loop; transport failures back off and retry.
func (p *Poller) Run(ctx context.Context) error {
	me, err := p.client.GetMe(ctx)
	if err != nil {
		return err
	}
	p.logger.Info("bot is running", "username", me.Username, "first_name", me.FirstName)

	var offset int64
	for {
		updates, err := p.client.GetUpdates(ctx, offset, p.pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			p.logger.Warn("poll failed", "error", err)
			select {
			case <-time.After(p.retryDelay):
				continue
			case <-ctx.Done():
				return nil
			}
		}

		for _, u := range updates {
			offset = u.UpdateID + 1
			ev, ok := parseUpdate(u)
			if !ok {
				continue
			}
			// HandleEvent isolates its own failures; the error here is
			// already logged with event context, nothing to re-handle.
			_ = p.handler.HandleEvent(ctx, ev)
		}

		if ctx.Err() != nil {
			return nil
		}
	}
}

// parseUpdate translates a transport update into an orchestrator event.
// Unsupported update shapes are skipped.
func parseUpdate(u Update) (bot.Event, bool) {
	if u.InlineQuery != nil {
		return bot.Event{
			Kind:    bot.KindInline,
			QueryID: u.InlineQuery.ID,
			Query:   u.InlineQuery.Query,
		}, true
	}

	msg := u.Message
	if msg == nil {
		return bot.Event{}, false
	}

	if msg.Voice != nil {
		return bot.Event{
			ChatID: msg.Chat.ID,
			Kind:   bot.KindVoice,
			Voice: &bot.VoiceRef{
				FileID:   msg.Voice.FileID,
				Duration: time.Duration(msg.Voice.Duration) * time.Second,
			},
		}, true
	}

	text := msg.Text
	if text == "" {
		return bot.Event{}, false
	}

	if strings.HasPrefix(text, "/") {
		command, arg := splitCommand(text)
		switch command {
		case "/start":
			return bot.Event{ChatID: msg.Chat.ID, Kind: bot.KindStart}, true
		case "/clear":
			return bot.Event{ChatID: msg.Chat.ID, Kind: bot.KindClear}, true
		case "/stats":
			return bot.Event{ChatID: msg.Chat.ID, Kind: bot.KindStats}, true
		case "/model":
			return bot.Event{ChatID: msg.Chat.ID, Kind: bot.KindSetModel, ModelArg: arg}, true
		default:
			return bot.Event{}, false
		}
	}

	return bot.Event{ChatID: msg.Chat.ID, Kind: bot.KindText, Text: text}, true
}

// splitCommand separates "/model gpt-4" into the command and its argument,
// dropping a "@botname" suffix on the command.
func splitCommand(text string) (string, string) {
	command, arg, _ := strings.Cut(text, " ")
	if i := strings.Index(command, "@"); i > 0 {
		command = command[:i]
	}
	return command, strings.TrimSpace(arg)
}
