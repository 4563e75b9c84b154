package flow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/BTreeMap/PolicyPipe/internal/models"
	"github.com/BTreeMap/PolicyPipe/internal/store"
	"github.com/BTreeMap/PolicyPipe/internal/testutil"
)

const testChatID int64 = 77

type fixture struct {
	flow *IntakeFlow
	msgr *testutil.MockMessenger
	ext  *testutil.MockExtractor
	ai   *testutil.MockGenAI
	st   *store.InMemoryStore
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	st := store.NewInMemoryStore()
	msgr := testutil.NewMockMessenger()
	ext := &testutil.MockExtractor{
		PassportResult: map[string]string{
			models.FieldFullName:       "Lesya Ukrainka",
			models.FieldPassportNumber: "FA123456",
		},
		VehicleResult: map[string]string{
			models.FieldCarBrand:  "Audi",
			models.FieldCarModel:  "A4",
			models.FieldVinNumber: "WAUZZZ4G6DN000000",
		},
	}
	ai := &testutil.MockGenAI{Reply: "Звісно, поясню."}
	f := NewIntakeFlow(NewStoreBasedStateManager(st), st, ext, ai, msgr, opts...)
	return &fixture{flow: f, msgr: msgr, ext: ext, ai: ai, st: st}
}

func (fx *fixture) send(t *testing.T, ev models.Event) {
	t.Helper()
	ev.ChatID = testChatID
	if err := fx.flow.ProcessEvent(context.Background(), ev); err != nil {
		t.Fatalf("ProcessEvent(%+v): %v", ev, err)
	}
}

func (fx *fixture) command(t *testing.T, name string) {
	fx.send(t, models.Event{Kind: models.EventCommand, Text: name})
}

func (fx *fixture) text(t *testing.T, body string) {
	fx.send(t, models.Event{Kind: models.EventText, Text: body})
}

func (fx *fixture) photo(t *testing.T, path string) {
	fx.send(t, models.Event{Kind: models.EventPhoto, PhotoPath: path})
}

func (fx *fixture) state(t *testing.T) models.ChatState {
	t.Helper()
	st, err := fx.st.GetChatState(testChatID)
	if err != nil {
		t.Fatalf("get state: %v", err)
	}
	return st
}

func (fx *fixture) requireState(t *testing.T, want models.ChatState) {
	t.Helper()
	if got := fx.state(t); got != want {
		t.Fatalf("expected state %s, got %s", want, got)
	}
}

func countContaining(bodies []string, substr string) int {
	n := 0
	for _, b := range bodies {
		if strings.Contains(b, substr) {
			n++
		}
	}
	return n
}

func TestStartEntersAwaitingPassport(t *testing.T) {
	fx := newFixture(t)
	fx.command(t, "start")
	fx.requireState(t, models.StateAwaitingPassport)
	if last, _ := fx.msgr.Last(); last.Body != MsgGreeting {
		t.Errorf("expected greeting, got %q", last.Body)
	}
}

func TestHappyPathIssuesExactlyOnePolicy(t *testing.T) {
	fx := newFixture(t)
	fx.command(t, "start")
	fx.photo(t, "/tmp/passport.jpg")
	fx.requireState(t, models.StateAwaitingCarDoc)
	fx.photo(t, "/tmp/cardoc.jpg")
	fx.requireState(t, models.StateConfirmData)
	fx.text(t, "так")
	fx.requireState(t, models.StateConfirmPrice)
	fx.text(t, "так")
	fx.requireState(t, models.StateAfterPolicy)

	bodies := fx.msgr.Bodies()
	if got := countContaining(bodies, "Страховий Поліс №"); got != 1 {
		t.Fatalf("expected exactly 1 policy document, got %d", got)
	}
	// The document carries the merged passport and vehicle fields.
	var doc string
	for _, b := range bodies {
		if strings.Contains(b, "Страховий Поліс №") {
			doc = b
		}
	}
	for _, want := range []string{"Lesya Ukrainka", "FA123456", "Audi A4", "WAUZZZ4G6DN000000"} {
		if !strings.Contains(doc, want) {
			t.Errorf("document missing %q:\n%s", want, doc)
		}
	}
	// The follow-up offer with its two-option keyboard comes last.
	last, _ := fx.msgr.Last()
	if last.Body != MsgOfferAnother || len(last.Options) != 2 {
		t.Errorf("expected two-option offer last, got %+v", last)
	}
}

func TestPassportPhotoSeedsSession(t *testing.T) {
	fx := newFixture(t)
	fx.command(t, "start")
	fx.photo(t, "/tmp/passport.jpg")

	sess, err := fx.st.GetSession(testChatID)
	if err != nil || sess == nil {
		t.Fatalf("expected session after passport photo, err=%v", err)
	}
	if sess.PassportImagePath != "/tmp/passport.jpg" {
		t.Errorf("passport path not stored: %+v", sess)
	}
	if sess.Field(models.FieldFullName) != "Lesya Ukrainka" {
		t.Errorf("passport fields not seeded: %+v", sess.Extracted)
	}
	if len(fx.ext.PassportCalls) != 1 {
		t.Errorf("expected 1 passport extraction call, got %d", len(fx.ext.PassportCalls))
	}
}

func TestAwaitingPassportQuestionGoesToCompletion(t *testing.T) {
	fx := newFixture(t)
	fx.command(t, "start")
	fx.text(t, "Чому потрібне фото паспорта?")

	if len(fx.ai.Calls) != 1 {
		t.Fatalf("expected 1 completion call, got %d", len(fx.ai.Calls))
	}
	if fx.ai.Calls[0].User != "Чому потрібне фото паспорта?" {
		t.Errorf("raw user text must be forwarded, got %q", fx.ai.Calls[0].User)
	}
	if last, _ := fx.msgr.Last(); last.Body != "Звісно, поясню." {
		t.Errorf("expected completion reply, got %q", last.Body)
	}
	fx.requireState(t, models.StateAwaitingPassport)
}

func TestAwaitingPassportOtherTextReprompts(t *testing.T) {
	fx := newFixture(t)
	fx.command(t, "start")
	fx.text(t, "привіт")

	if len(fx.ai.Calls) != 0 {
		t.Errorf("no completion call expected, got %d", len(fx.ai.Calls))
	}
	if last, _ := fx.msgr.Last(); last.Body != MsgPhotoReprompt {
		t.Errorf("expected fixed re-prompt, got %q", last.Body)
	}
	fx.requireState(t, models.StateAwaitingPassport)
}

func TestAwaitingPassportCompletionFailureDegrades(t *testing.T) {
	fx := newFixture(t)
	fx.ai.Err = errors.New("completion down")
	fx.command(t, "start")
	fx.text(t, "Що це за бот?")

	if last, _ := fx.msgr.Last(); last.Body != FallbackUnexpectedInput {
		t.Errorf("expected canned fallback, got %q", last.Body)
	}
	fx.requireState(t, models.StateAwaitingPassport)
}

func TestConfirmDataRejectReturnsToPassport(t *testing.T) {
	fx := newFixture(t)
	fx.command(t, "start")
	fx.photo(t, "/tmp/p.jpg")
	fx.photo(t, "/tmp/c.jpg")
	fx.text(t, "ні")

	if last, _ := fx.msgr.Last(); last.Body != MsgResubmitPassport {
		t.Errorf("expected resubmit prompt, got %q", last.Body)
	}
	fx.requireState(t, models.StateAwaitingPassport)
}

func TestConfirmStatesRequireExactYesButReconfirmDoesNot(t *testing.T) {
	// "згоден" is in the reconfirm affirmative set but must NOT satisfy the
	// exact-yes rule of ConfirmExtractedData.
	fx := newFixture(t)
	fx.command(t, "start")
	fx.photo(t, "/tmp/p.jpg")
	fx.photo(t, "/tmp/c.jpg")
	fx.text(t, "згоден")
	fx.requireState(t, models.StateAwaitingPassport)

	// Drive a fresh run into ReconfirmPrice, where "згоден" issues the policy.
	fx.photo(t, "/tmp/p.jpg")
	fx.photo(t, "/tmp/c.jpg")
	fx.text(t, "так")
	fx.text(t, "ні")
	fx.requireState(t, models.StateReconfirmPrice)
	fx.text(t, "згоден")
	fx.requireState(t, models.StateAfterPolicy)

	if got := countContaining(fx.msgr.Bodies(), "Страховий Поліс №"); got != 1 {
		t.Errorf("expected exactly 1 policy document, got %d", got)
	}
}

func TestConfirmPriceObjectionKeepsState(t *testing.T) {
	fx := newFixture(t)
	fx.command(t, "start")
	fx.photo(t, "/tmp/p.jpg")
	fx.photo(t, "/tmp/c.jpg")
	fx.text(t, "так")
	fx.requireState(t, models.StateConfirmPrice)

	fx.text(t, "а можна дешевше")
	fx.requireState(t, models.StateConfirmPrice)
	if len(fx.ai.Calls) != 1 {
		t.Fatalf("expected 1 completion call, got %d", len(fx.ai.Calls))
	}
	// Reply first, then the binary question again.
	last, _ := fx.msgr.Last()
	if last.Body != fmt.Sprintf(MsgPriceOffer, DefaultPriceUSD) || len(last.Options) != 2 {
		t.Errorf("expected re-sent price prompt with keyboard, got %+v", last)
	}
}

func TestConfirmPriceOtherEscalatesToReconfirm(t *testing.T) {
	fx := newFixture(t)
	fx.command(t, "start")
	fx.photo(t, "/tmp/p.jpg")
	fx.photo(t, "/tmp/c.jpg")
	fx.text(t, "так")
	fx.text(t, "ні")

	fx.requireState(t, models.StateReconfirmPrice)
	last, _ := fx.msgr.Last()
	if last.Body != fmt.Sprintf(MsgPriceFixed, DefaultPriceUSD) {
		t.Errorf("expected fixed-price notice, got %q", last.Body)
	}
}

func driveToReconfirm(t *testing.T, fx *fixture) {
	t.Helper()
	fx.command(t, "start")
	fx.photo(t, "/tmp/p.jpg")
	fx.photo(t, "/tmp/c.jpg")
	fx.text(t, "так")
	fx.text(t, "ні")
	fx.requireState(t, models.StateReconfirmPrice)
	fx.msgr.Reset()
}

func TestReconfirmNegativeEndsWithoutPolicy(t *testing.T) {
	fx := newFixture(t)
	driveToReconfirm(t, fx)

	fx.text(t, "ні")
	fx.requireState(t, models.StateEnded)
	bodies := fx.msgr.Bodies()
	if countContaining(bodies, "Страховий Поліс №") != 0 {
		t.Errorf("no policy expected, got %v", bodies)
	}
	if last, _ := fx.msgr.Last(); last.Body != MsgFarewellDecline {
		t.Errorf("expected farewell, got %q", last.Body)
	}
}

func TestReconfirmUnrecognizedTriggersCompletion(t *testing.T) {
	fx := newFixture(t)
	driveToReconfirm(t, fx)

	fx.text(t, "чому дорого")
	fx.requireState(t, models.StateReconfirmPrice)
	if len(fx.ai.Calls) != 1 {
		t.Fatalf("expected 1 completion call, got %d", len(fx.ai.Calls))
	}
	if fx.ai.Calls[0].User != "чому дорого" {
		t.Errorf("raw user text must be forwarded, got %q", fx.ai.Calls[0].User)
	}
	last, _ := fx.msgr.Last()
	if last.Body != fmt.Sprintf(MsgReconfirmReask, DefaultPriceUSD) || len(last.Options) != 2 {
		t.Errorf("expected binary re-ask with keyboard, got %+v", last)
	}
}

func TestReconfirmCompletionFailureSendsDegradedApology(t *testing.T) {
	fx := newFixture(t)
	driveToReconfirm(t, fx)
	fx.ai.Err = errors.New("completion down")

	fx.text(t, "чому дорого")
	fx.requireState(t, models.StateReconfirmPrice)
	bodies := fx.msgr.Bodies()
	if countContaining(bodies, FallbackReconfirm) != 1 {
		t.Errorf("expected degraded apology, got %v", bodies)
	}
}

func TestExtractionFailuresDegradeToUnknownEverywhere(t *testing.T) {
	fx := newFixture(t)
	fx.ext.PassportErr = errors.New("mindee down")
	fx.ext.VehicleErr = errors.New("mindee down")

	fx.command(t, "start")
	fx.photo(t, "/tmp/p.jpg")
	fx.requireState(t, models.StateAwaitingCarDoc)
	fx.photo(t, "/tmp/c.jpg")
	fx.requireState(t, models.StateConfirmData)

	sess, _ := fx.st.GetSession(testChatID)
	for _, key := range models.ExtractedFieldKeys {
		if sess.Field(key) != models.UnknownValue {
			t.Errorf("expected Unknown for %s, got %q", key, sess.Field(key))
		}
	}

	// Issuance still renders a complete document with Unknown in every slot.
	fx.text(t, "так")
	fx.text(t, "так")
	fx.requireState(t, models.StateAfterPolicy)
	var doc string
	for _, b := range fx.msgr.Bodies() {
		if strings.Contains(b, "Страховий Поліс №") {
			doc = b
		}
	}
	if got := strings.Count(doc, models.UnknownValue); got != 5 {
		t.Errorf("expected 5 Unknown slots in document, got %d:\n%s", got, doc)
	}
}

func TestPartialExtractionFailureStillFiveKeys(t *testing.T) {
	fx := newFixture(t)
	fx.ext.VehicleErr = errors.New("mindee down")

	fx.command(t, "start")
	fx.photo(t, "/tmp/p.jpg")
	fx.photo(t, "/tmp/c.jpg")

	sess, _ := fx.st.GetSession(testChatID)
	if len(sess.Extracted) != len(models.ExtractedFieldKeys) {
		t.Fatalf("expected %d keys, got %d: %v", len(models.ExtractedFieldKeys), len(sess.Extracted), sess.Extracted)
	}
	if sess.Field(models.FieldFullName) != "Lesya Ukrainka" {
		t.Errorf("passport fields must survive vehicle failure")
	}
	if sess.Field(models.FieldVinNumber) != models.UnknownValue {
		t.Errorf("vehicle fields must degrade to Unknown")
	}
}

func TestCancelFromEveryState(t *testing.T) {
	states := []models.ChatState{
		models.StateAwaitingPassport,
		models.StateAwaitingCarDoc,
		models.StateConfirmData,
		models.StateConfirmPrice,
		models.StateReconfirmPrice,
		models.StateAfterPolicy,
	}
	for _, st := range states {
		fx := newFixture(t)
		if err := fx.st.SetChatState(testChatID, st); err != nil {
			t.Fatalf("seed state: %v", err)
		}
		fx.command(t, "cancel")
		fx.requireState(t, models.StateEnded)
		if last, _ := fx.msgr.Last(); last.Body != MsgCancelled {
			t.Errorf("state %s: expected cancellation notice, got %q", st, last.Body)
		}
	}
}

func TestThanksAfterPolicyEndsConversation(t *testing.T) {
	fx := newFixture(t)
	fx.command(t, "start")
	fx.photo(t, "/tmp/p.jpg")
	fx.photo(t, "/tmp/c.jpg")
	fx.text(t, "так")
	fx.text(t, "так")
	fx.text(t, "Дякую")

	fx.requireState(t, models.StateEnded)
	if last, _ := fx.msgr.Last(); last.Body != MsgFarewellThanks {
		t.Errorf("expected thanks farewell, got %q", last.Body)
	}
}

func TestIssueAnotherOverwritesSession(t *testing.T) {
	fx := newFixture(t)
	fx.command(t, "start")
	fx.photo(t, "/tmp/p.jpg")
	fx.photo(t, "/tmp/c.jpg")
	fx.text(t, "так")
	fx.text(t, "так")
	fx.requireState(t, models.StateAfterPolicy)

	// The "issue another policy" branch restarts the flow.
	fx.text(t, "Створити ще один поліс")
	fx.requireState(t, models.StateAwaitingPassport)

	fx.ext.PassportResult = map[string]string{
		models.FieldFullName:       "Ivan Franko",
		models.FieldPassportNumber: "FB654321",
	}
	fx.ext.VehicleResult = map[string]string{
		models.FieldCarBrand:  "Skoda",
		models.FieldCarModel:  "Octavia",
		models.FieldVinNumber: "TMBJJ7NE3E0000000",
	}
	fx.photo(t, "/tmp/p2.jpg")
	fx.photo(t, "/tmp/c2.jpg")

	sess, _ := fx.st.GetSession(testChatID)
	if len(sess.Extracted) != len(models.ExtractedFieldKeys) {
		t.Fatalf("resubmission must overwrite, not append: %v", sess.Extracted)
	}
	if sess.Field(models.FieldFullName) != "Ivan Franko" || sess.Field(models.FieldCarBrand) != "Skoda" {
		t.Errorf("expected second run's fields, got %v", sess.Extracted)
	}
	if sess.PassportImagePath != "/tmp/p2.jpg" {
		t.Errorf("passport path not overwritten: %q", sess.PassportImagePath)
	}
}

func TestNoActiveConversationSendsHint(t *testing.T) {
	fx := newFixture(t)
	fx.text(t, "привіт")
	if last, _ := fx.msgr.Last(); last.Body != MsgStartHint {
		t.Errorf("expected start hint, got %q", last.Body)
	}

	// Same after a finished conversation.
	fx.st.SetChatState(testChatID, models.StateEnded)
	fx.text(t, "ще щось")
	if last, _ := fx.msgr.Last(); last.Body != MsgStartHint {
		t.Errorf("expected start hint after end, got %q", last.Body)
	}
}

func TestWithPriceOption(t *testing.T) {
	fx := newFixture(t, WithPrice(250))
	fx.command(t, "start")
	fx.photo(t, "/tmp/p.jpg")
	fx.photo(t, "/tmp/c.jpg")
	fx.text(t, "так")
	if last, _ := fx.msgr.Last(); last.Body != fmt.Sprintf(MsgPriceOffer, 250) {
		t.Errorf("expected configured price in offer, got %q", last.Body)
	}
}

func TestNilGenAIDegradesToFallback(t *testing.T) {
	st := store.NewInMemoryStore()
	msgr := testutil.NewMockMessenger()
	ext := &testutil.MockExtractor{}
	f := NewIntakeFlow(NewStoreBasedStateManager(st), st, ext, nil, msgr)

	if err := f.ProcessEvent(context.Background(), models.Event{ChatID: testChatID, Kind: models.EventCommand, Text: "start"}); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := f.ProcessEvent(context.Background(), models.Event{ChatID: testChatID, Kind: models.EventText, Text: "Що це?"}); err != nil {
		t.Fatalf("text: %v", err)
	}
	if last, _ := msgr.Last(); last.Body != FallbackUnexpectedInput {
		t.Errorf("expected canned fallback without genai, got %q", last.Body)
	}
}
