// Package flow implements the intake conversation: passport photo, vehicle
// document photo, data confirmation, price confirmation, policy issuance.
package flow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/BTreeMap/PolicyPipe/internal/genai"
	"github.com/BTreeMap/PolicyPipe/internal/metrics"
	"github.com/BTreeMap/PolicyPipe/internal/models"
	"github.com/BTreeMap/PolicyPipe/internal/store"
)

// DefaultPriceUSD is the fixed, display-only policy price.
const DefaultPriceUSD = 100

// Commands recognized from any state.
const (
	CommandStart  = "start"
	CommandCancel = "cancel"
)

// Opts holds configuration for the intake flow.
type Opts struct {
	PriceUSD   int
	Classifier Classifier
}

// Option configures the intake flow.
type Option func(*Opts)

// WithPrice overrides the fixed policy price.
func WithPrice(usd int) Option {
	return func(o *Opts) { o.PriceUSD = usd }
}

// WithClassifier substitutes the free-text intent classifier.
func WithClassifier(c Classifier) Option {
	return func(o *Opts) { o.Classifier = c }
}

// IntakeFlow drives one linear pipeline of states per chat. Each inbound
// event is interpreted according to the chat's current state; handlers
// validate the input, call collaborators at the defined transition points,
// mutate the session, send outbound messages and record the successor state.
type IntakeFlow struct {
	stateManager StateManager
	sessions     store.Store
	extractor    DocumentExtractor
	genaiClient  genai.ClientInterface
	msgService   MessagingService
	classify     Classifier
	priceUSD     int
}

// NewIntakeFlow creates the intake state machine with its dependencies.
func NewIntakeFlow(stateManager StateManager, sessions store.Store, extractor DocumentExtractor, genaiClient genai.ClientInterface, msgService MessagingService, opts ...Option) *IntakeFlow {
	cfg := Opts{
		PriceUSD:   DefaultPriceUSD,
		Classifier: DefaultClassifier,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("Creating IntakeFlow", "priceUSD", cfg.PriceUSD, "hasGenAI", genaiClient != nil)
	return &IntakeFlow{
		stateManager: stateManager,
		sessions:     sessions,
		extractor:    extractor,
		genaiClient:  genaiClient,
		msgService:   msgService,
		classify:     cfg.Classifier,
		priceUSD:     cfg.PriceUSD,
	}
}

// ProcessEvent routes one inbound event by the chat's current state and
// returns after the successor state is recorded.
func (f *IntakeFlow) ProcessEvent(ctx context.Context, event models.Event) (err error) {
	state, err := f.stateManager.GetCurrentState(ctx, event.ChatID)
	if err != nil {
		return fmt.Errorf("get current state: %w", err)
	}

	started := time.Now()
	defer func() {
		status := "ok"
		if err != nil {
			status = "error"
		}
		metrics.EventDuration.WithLabelValues(string(state)).Observe(time.Since(started).Seconds())
		metrics.EventsProcessed.WithLabelValues(string(state), status).Inc()
	}()

	slog.Debug("IntakeFlow ProcessEvent", "chatID", event.ChatID, "state", state, "kind", event.Kind)

	if event.Kind == models.EventCommand {
		return f.handleCommand(ctx, event, state)
	}

	switch state {
	case models.StateAwaitingPassport:
		return f.handleAwaitingPassport(ctx, event, state)
	case models.StateAwaitingCarDoc:
		return f.handleAwaitingCarDoc(ctx, event, state)
	case models.StateConfirmData:
		return f.handleConfirmData(ctx, event, state)
	case models.StateConfirmPrice:
		return f.handleConfirmPrice(ctx, event, state)
	case models.StateReconfirmPrice:
		return f.handleReconfirmPrice(ctx, event, state)
	case models.StateAfterPolicy:
		return f.handleAfterPolicy(ctx, event, state)
	default:
		// No active conversation.
		return f.msgService.SendMessage(ctx, event.ChatID, MsgStartHint)
	}
}

// handleCommand handles /start and /cancel from any state.
func (f *IntakeFlow) handleCommand(ctx context.Context, event models.Event, state models.ChatState) error {
	switch event.Text {
	case CommandStart:
		if err := f.msgService.SendMessage(ctx, event.ChatID, MsgGreeting); err != nil {
			return err
		}
		return f.transition(ctx, event.ChatID, state, models.StateAwaitingPassport)
	case CommandCancel:
		if err := f.msgService.SendMessage(ctx, event.ChatID, MsgCancelled); err != nil {
			return err
		}
		return f.transition(ctx, event.ChatID, state, models.StateEnded)
	default:
		slog.Debug("IntakeFlow unknown command", "chatID", event.ChatID, "command", event.Text)
		return f.msgService.SendMessage(ctx, event.ChatID, MsgStartHint)
	}
}

// handleAwaitingPassport stores the passport photo, seeds the session with
// the extracted fields and advances to the vehicle document.
func (f *IntakeFlow) handleAwaitingPassport(ctx context.Context, event models.Event, state models.ChatState) error {
	if event.Kind != models.EventPhoto {
		return f.handleUnexpectedText(ctx, event)
	}

	fields, err := f.extractor.ExtractPassport(ctx, event.PhotoPath)
	if err != nil {
		metrics.CollaboratorFailures.WithLabelValues(metrics.CollaboratorExtraction).Inc()
		slog.Warn("IntakeFlow passport extraction degraded", "error", err, "chatID", event.ChatID)
		fields = map[string]string{
			models.FieldFullName:       models.UnknownValue,
			models.FieldPassportNumber: models.UnknownValue,
		}
	}

	// A restart overwrites the previous attempt's fields wholesale.
	if _, err := f.sessions.UpsertSession(event.ChatID, func(sess *models.Session) {
		sess.PassportImagePath = event.PhotoPath
		sess.Extracted = fields
	}); err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}

	if err := f.msgService.SendMessage(ctx, event.ChatID, MsgAskCarDoc); err != nil {
		return err
	}
	return f.transition(ctx, event.ChatID, state, models.StateAwaitingCarDoc)
}

// handleAwaitingCarDoc stores the vehicle document photo, merges the
// extracted fields into the session and asks for confirmation.
func (f *IntakeFlow) handleAwaitingCarDoc(ctx context.Context, event models.Event, state models.ChatState) error {
	if event.Kind != models.EventPhoto {
		return f.handleUnexpectedText(ctx, event)
	}

	fields, err := f.extractor.ExtractVehicle(ctx, event.PhotoPath)
	if err != nil {
		metrics.CollaboratorFailures.WithLabelValues(metrics.CollaboratorExtraction).Inc()
		slog.Warn("IntakeFlow vehicle extraction degraded", "error", err, "chatID", event.ChatID)
		fields = map[string]string{
			models.FieldCarBrand:  models.UnknownValue,
			models.FieldCarModel:  models.UnknownValue,
			models.FieldVinNumber: models.UnknownValue,
		}
	}

	sess, err := f.sessions.UpsertSession(event.ChatID, func(sess *models.Session) {
		sess.CarDocImagePath = event.PhotoPath
		if sess.Extracted == nil {
			sess.Extracted = make(map[string]string, len(fields))
		}
		for k, v := range fields {
			sess.Extracted[k] = v
		}
	})
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}

	summary := fmt.Sprintf(MsgDataSummary,
		sess.Field(models.FieldFullName),
		sess.Field(models.FieldPassportNumber),
		sess.Field(models.FieldCarBrand),
		sess.Field(models.FieldCarModel),
		sess.Field(models.FieldVinNumber),
	)
	if err := f.msgService.SendKeyboard(ctx, event.ChatID, summary, KeyboardYesNo); err != nil {
		return err
	}
	return f.transition(ctx, event.ChatID, state, models.StateConfirmData)
}

// handleUnexpectedText implements the shared fallback rules of the two photo
// states: question-like text goes through the completion explainer, anything
// else gets the fixed re-prompt. The state is left unchanged either way.
func (f *IntakeFlow) handleUnexpectedText(ctx context.Context, event models.Event) error {
	if f.classify(event.Text) == IntentQuestion {
		reply := f.completeOrFallback(ctx, unexpectedInputSystemPrompt, event.Text, FallbackUnexpectedInput)
		return f.msgService.SendMessage(ctx, event.ChatID, reply)
	}
	return f.msgService.SendMessage(ctx, event.ChatID, MsgPhotoReprompt)
}

// handleConfirmData requires the exact affirmative; anything else restarts
// photo collection.
func (f *IntakeFlow) handleConfirmData(ctx context.Context, event models.Event, state models.ChatState) error {
	if event.Kind == models.EventText && isExactYes(event.Text) {
		offer := fmt.Sprintf(MsgPriceOffer, f.priceUSD)
		if err := f.msgService.SendKeyboard(ctx, event.ChatID, offer, KeyboardYesNo); err != nil {
			return err
		}
		return f.transition(ctx, event.ChatID, state, models.StateConfirmPrice)
	}

	if err := f.msgService.SendMessage(ctx, event.ChatID, MsgResubmitPassport); err != nil {
		return err
	}
	return f.transition(ctx, event.ChatID, state, models.StateAwaitingPassport)
}

// handleConfirmPrice issues the policy on the exact affirmative, absorbs
// price objections through the completion explainer, and escalates anything
// else to the reconfirmation state.
func (f *IntakeFlow) handleConfirmPrice(ctx context.Context, event models.Event, state models.ChatState) error {
	if event.Kind == models.EventText && isExactYes(event.Text) {
		return f.issuePolicy(ctx, event.ChatID, state)
	}

	if event.Kind == models.EventText {
		switch f.classify(event.Text) {
		case IntentQuestion, IntentPriceObjection:
			system := fmt.Sprintf(priceObjectionSystemPrompt, f.priceUSD)
			reply := f.completeOrFallback(ctx, system, event.Text, FallbackPriceObjection)
			if err := f.msgService.SendMessage(ctx, event.ChatID, reply); err != nil {
				return err
			}
			offer := fmt.Sprintf(MsgPriceOffer, f.priceUSD)
			return f.msgService.SendKeyboard(ctx, event.ChatID, offer, KeyboardYesNo)
		}
	}

	fixed := fmt.Sprintf(MsgPriceFixed, f.priceUSD)
	if err := f.msgService.SendKeyboard(ctx, event.ChatID, fixed, KeyboardYesNo); err != nil {
		return err
	}
	return f.transition(ctx, event.ChatID, state, models.StateReconfirmPrice)
}

// handleReconfirmPrice accepts the wider affirmative set, ends on the
// negative set, and routes everything else through the reconfirmation
// explainer before re-asking the same binary question.
func (f *IntakeFlow) handleReconfirmPrice(ctx context.Context, event models.Event, state models.ChatState) error {
	switch {
	case event.Kind == models.EventText && isReconfirmAffirmative(event.Text):
		return f.issuePolicy(ctx, event.ChatID, state)

	case event.Kind == models.EventText && isReconfirmNegative(event.Text):
		if err := f.msgService.SendMessage(ctx, event.ChatID, MsgFarewellDecline); err != nil {
			return err
		}
		return f.transition(ctx, event.ChatID, state, models.StateEnded)

	default:
		system := fmt.Sprintf(reconfirmSystemPrompt, f.priceUSD)
		reply := f.completeOrFallback(ctx, system, event.Text, FallbackReconfirm)
		if err := f.msgService.SendMessage(ctx, event.ChatID, reply); err != nil {
			return err
		}
		reask := fmt.Sprintf(MsgReconfirmReask, f.priceUSD)
		return f.msgService.SendKeyboard(ctx, event.ChatID, reask, KeyboardYesNo)
	}
}

// handleAfterPolicy closes on a thank-you and otherwise restarts the flow.
func (f *IntakeFlow) handleAfterPolicy(ctx context.Context, event models.Event, state models.ChatState) error {
	if event.Kind == models.EventText && f.classify(event.Text) == IntentThanks {
		if err := f.msgService.SendMessage(ctx, event.ChatID, MsgFarewellThanks); err != nil {
			return err
		}
		return f.transition(ctx, event.ChatID, state, models.StateEnded)
	}

	if err := f.msgService.SendMessage(ctx, event.ChatID, MsgGreeting); err != nil {
		return err
	}
	return f.transition(ctx, event.ChatID, state, models.StateAwaitingPassport)
}

// issuePolicy renders the policy document from the session fields and sends
// it with the follow-up offer. Shared by both confirmation affirmatives.
func (f *IntakeFlow) issuePolicy(ctx context.Context, chatID int64, state models.ChatState) error {
	sess, err := f.sessions.GetSession(chatID)
	if err != nil {
		return fmt.Errorf("get session: %w", err)
	}

	document, err := RenderPolicy(sess, f.priceUSD, time.Now())
	if err != nil {
		return err
	}

	if err := f.msgService.SendMessage(ctx, chatID, MsgPolicyCreated); err != nil {
		return err
	}
	if err := f.msgService.SendMessage(ctx, chatID, document); err != nil {
		return err
	}
	if err := f.msgService.SendKeyboard(ctx, chatID, MsgOfferAnother, KeyboardAfterPolicy); err != nil {
		return err
	}

	metrics.PoliciesIssued.Inc()
	slog.Info("IntakeFlow policy issued", "chatID", chatID)
	return f.transition(ctx, chatID, state, models.StateAfterPolicy)
}

// completeOrFallback asks the completion collaborator for a contextual reply
// and degrades to the canned fallback on any failure.
func (f *IntakeFlow) completeOrFallback(ctx context.Context, systemPrompt, userPrompt, fallback string) string {
	if f.genaiClient == nil {
		return fallback
	}
	reply, err := f.genaiClient.GeneratePrompt(ctx, systemPrompt, userPrompt)
	if err != nil || reply == "" {
		metrics.CollaboratorFailures.WithLabelValues(metrics.CollaboratorCompletion).Inc()
		slog.Warn("IntakeFlow completion degraded to fallback", "error", err)
		return fallback
	}
	return reply
}

// transition records the successor state and maintains the active
// conversations gauge.
func (f *IntakeFlow) transition(ctx context.Context, chatID int64, from, to models.ChatState) error {
	if err := f.stateManager.SetCurrentState(ctx, chatID, to); err != nil {
		return fmt.Errorf("set state: %w", err)
	}
	if !from.Active() && to.Active() {
		metrics.ActiveConversations.Inc()
	} else if from.Active() && !to.Active() {
		metrics.ActiveConversations.Dec()
	}
	slog.Info("IntakeFlow state transition", "chatID", chatID, "from", from, "to", to)
	return nil
}
