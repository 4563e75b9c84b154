package messaging

import (
	"context"
	"log/slog"
	"runtime/debug"

	"github.com/BTreeMap/PolicyPipe/internal/models"
)

// EventAction processes one inbound event. The dispatcher registers the
// intake flow's handler here so this package never imports the flow.
type EventAction func(ctx context.Context, event models.Event) error

// DefaultApologyMessage is sent when an event handler panics or errors in a
// way the flow could not absorb. The conversation state is left as last
// recorded; the user simply tries again.
const DefaultApologyMessage = "Сталася помилка(( Спробуйте ще раз або введіть /start"

// ResponseHandler is the top-level event dispatcher: it drains the transport
// events channel one event at a time, guarding every handler invocation with
// a recover so a failing interaction never terminates the loop.
type ResponseHandler struct {
	svc     Service
	action  EventAction
	apology string
}

// NewResponseHandler creates a dispatcher over the given messaging service.
func NewResponseHandler(svc Service) *ResponseHandler {
	return &ResponseHandler{
		svc:     svc,
		apology: DefaultApologyMessage,
	}
}

// SetEventAction registers the handler invoked for every inbound event.
func (rh *ResponseHandler) SetEventAction(action EventAction) {
	rh.action = action
}

// Run processes events until the channel closes or the context is cancelled.
// Events are handled sequentially, which serializes a single user's turns.
func (rh *ResponseHandler) Run(ctx context.Context) {
	slog.Info("ResponseHandler event loop starting")
	for {
		select {
		case <-ctx.Done():
			slog.Info("ResponseHandler event loop stopping", "reason", ctx.Err())
			return
		case event, ok := <-rh.svc.Events():
			if !ok {
				slog.Info("ResponseHandler events channel closed")
				return
			}
			rh.dispatch(ctx, event)
		}
	}
}

// dispatch runs the registered action for one event, recovering from panics
// and surfacing a generic apology to the user.
func (rh *ResponseHandler) dispatch(ctx context.Context, event models.Event) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("ResponseHandler recovered from panic", "panic", r, "chatID", event.ChatID, "trace", string(debug.Stack()))
			rh.sendApology(ctx, event.ChatID)
		}
	}()

	if rh.action == nil {
		slog.Warn("ResponseHandler no action registered, dropping event", "chatID", event.ChatID)
		return
	}

	slog.Debug("ResponseHandler dispatching event", "chatID", event.ChatID, "kind", event.Kind)
	if err := rh.action(ctx, event); err != nil {
		slog.Error("ResponseHandler action failed", "error", err, "chatID", event.ChatID)
		rh.sendApology(ctx, event.ChatID)
	}
}

func (rh *ResponseHandler) sendApology(ctx context.Context, chatID int64) {
	if err := rh.svc.SendMessage(ctx, chatID, rh.apology); err != nil {
		slog.Error("ResponseHandler failed to send apology", "error", err, "chatID", chatID)
	}
}
