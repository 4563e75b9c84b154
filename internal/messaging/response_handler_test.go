package messaging

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/BTreeMap/PolicyPipe/internal/models"
	"github.com/BTreeMap/PolicyPipe/internal/testutil"
)

func runHandler(t *testing.T, mock *testutil.MockMessenger, action EventAction, events ...models.Event) {
	t.Helper()
	rh := NewResponseHandler(mock)
	rh.SetEventAction(action)

	for _, ev := range events {
		mock.Push(ev)
	}
	mock.Stop() // close the channel so Run returns after draining

	done := make(chan struct{})
	go func() {
		rh.Run(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("dispatcher did not drain events")
	}
}

func TestDispatchInvokesAction(t *testing.T) {
	mock := testutil.NewMockMessenger()
	var got []models.Event
	runHandler(t, mock, func(ctx context.Context, ev models.Event) error {
		got = append(got, ev)
		return nil
	},
		models.Event{ChatID: 1, Kind: models.EventText, Text: "привіт"},
		models.Event{ChatID: 2, Kind: models.EventPhoto, PhotoPath: "/tmp/x.jpg"},
	)

	if len(got) != 2 {
		t.Fatalf("expected 2 dispatched events, got %d", len(got))
	}
	if got[0].ChatID != 1 || got[1].ChatID != 2 {
		t.Errorf("events dispatched out of order: %+v", got)
	}
	if len(mock.Sent()) != 0 {
		t.Errorf("no apology expected for successful actions, got %v", mock.Bodies())
	}
}

func TestDispatchRecoversFromPanic(t *testing.T) {
	mock := testutil.NewMockMessenger()
	calls := 0
	runHandler(t, mock, func(ctx context.Context, ev models.Event) error {
		calls++
		if calls == 1 {
			panic("handler exploded")
		}
		return nil
	},
		models.Event{ChatID: 5, Kind: models.EventText, Text: "boom"},
		models.Event{ChatID: 5, Kind: models.EventText, Text: "still alive"},
	)

	if calls != 2 {
		t.Fatalf("loop did not survive panic: %d calls", calls)
	}
	last, ok := mock.Last()
	if !ok || last.Body != DefaultApologyMessage {
		t.Errorf("expected apology after panic, got %+v", last)
	}
}

func TestDispatchSendsApologyOnError(t *testing.T) {
	mock := testutil.NewMockMessenger()
	runHandler(t, mock, func(ctx context.Context, ev models.Event) error {
		return errors.New("unrecoverable")
	}, models.Event{ChatID: 9, Kind: models.EventText, Text: "hi"})

	last, ok := mock.Last()
	if !ok || last.Body != DefaultApologyMessage {
		t.Errorf("expected apology after action error, got %+v", last)
	}
	if last.ChatID != 9 {
		t.Errorf("apology sent to wrong chat: %d", last.ChatID)
	}
}

func TestDispatchWithoutActionDropsEvent(t *testing.T) {
	mock := testutil.NewMockMessenger()
	rh := NewResponseHandler(mock)
	mock.Push(models.Event{ChatID: 3, Kind: models.EventText, Text: "hi"})
	mock.Stop()
	rh.Run(context.Background())
	if len(mock.Sent()) != 0 {
		t.Errorf("expected dropped event with no side effects, got %v", mock.Bodies())
	}
}
