package bot

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
)

func recordingHandler(name string, calls *[]string, proceed bool, err error) Handler {
	return HandlerFunc(func(ctx context.Context, u *api.Update, chat *api.Chat, user *api.User) (bool, error) {
		*calls = append(*calls, name)
		return proceed, err
	})
}

func messageUpdate(date time.Time) *api.Update {
	return &api.Update{
		UpdateID: 1,
		Message: &api.Message{
			MessageID: 10,
			Date:      int(date.Unix()),
			Chat:      api.Chat{ID: -100},
			From:      &api.User{ID: 42, FirstName: "Test"},
			Text:      "hello",
		},
	}
}

func TestProcessStopsWhenHandlerDoesNotProceed(t *testing.T) {
	t.Parallel()

	var calls []string
	up := NewUpdateProcessor(nil,
		recordingHandler("admin", &calls, false, nil),
		recordingHandler("moderation", &calls, true, nil),
	)
	if err := up.Process(context.Background(), messageUpdate(time.Now())); err != nil {
		t.Fatalf("process: %v", err)
	}
	if strings.Join(calls, ",") != "admin" {
		t.Fatalf("unexpected calls: %v", calls)
	}
}

func TestProcessRunsWholeChain(t *testing.T) {
	t.Parallel()

	var calls []string
	up := NewUpdateProcessor(nil,
		recordingHandler("admin", &calls, true, nil),
		nil,
		recordingHandler("moderation", &calls, true, nil),
	)
	if err := up.Process(context.Background(), messageUpdate(time.Now())); err != nil {
		t.Fatalf("process: %v", err)
	}
	if strings.Join(calls, ",") != "admin,moderation" {
		t.Fatalf("unexpected calls: %v", calls)
	}
}

func TestProcessWrapsHandlerError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	var calls []string
	up := NewUpdateProcessor(nil, recordingHandler("admin", &calls, true, boom))
	err := up.Process(context.Background(), messageUpdate(time.Now()))
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestProcessApologizesForHandlerErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		err       error
		apologize bool
	}{
		{name: "unexpected error", err: errors.New("store exploded"), apologize: true},
		{name: "cancelled", err: context.Canceled, apologize: false},
		{name: "deadline", err: context.DeadlineExceeded, apologize: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var apologizedTo int64
			var calls []string
			up := NewUpdateProcessor(
				func(ctx context.Context, chat *api.Chat) { apologizedTo = chat.ID },
				recordingHandler("moderation", &calls, true, tt.err),
			)
			if err := up.Process(context.Background(), messageUpdate(time.Now())); !errors.Is(err, tt.err) {
				t.Fatalf("expected wrapped error, got %v", err)
			}
			if got := apologizedTo == -100; got != tt.apologize {
				t.Fatalf("apology sent = %v, want %v", got, tt.apologize)
			}
		})
	}
}

func TestProcessSkipsOutdatedUpdates(t *testing.T) {
	t.Parallel()

	var calls []string
	up := NewUpdateProcessor(nil, recordingHandler("admin", &calls, true, nil))
	if err := up.Process(context.Background(), messageUpdate(time.Now().Add(-time.Hour))); err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(calls) != 0 {
		t.Fatalf("outdated update reached handlers")
	}
}

func TestProcessRecoversPanics(t *testing.T) {
	t.Parallel()

	var apologizedTo int64
	up := NewUpdateProcessor(
		func(ctx context.Context, chat *api.Chat) { apologizedTo = chat.ID },
		HandlerFunc(func(ctx context.Context, u *api.Update, chat *api.Chat, user *api.User) (bool, error) {
			panic("handler exploded")
		}),
	)

	err := up.Process(context.Background(), messageUpdate(time.Now()))
	if err == nil || !strings.Contains(err.Error(), "handler exploded") {
		t.Fatalf("expected panic error, got %v", err)
	}
	if apologizedTo != -100 {
		t.Fatalf("apology not sent to the chat, got %d", apologizedTo)
	}
}

func TestProcessRejectsNilUpdate(t *testing.T) {
	t.Parallel()

	if err := NewUpdateProcessor(nil).Process(context.Background(), nil); err == nil {
		t.Fatalf("expected error for nil update")
	}
}

func TestNames(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		user     *api.User
		wantUN   string
		wantFull string
	}{
		{name: "nil", user: nil, wantUN: "", wantFull: ""},
		{name: "username and names", user: &api.User{UserName: "jdoe", FirstName: "John", LastName: "Doe"}, wantUN: "jdoe", wantFull: "John Doe"},
		{name: "first name only", user: &api.User{FirstName: "John"}, wantUN: "John", wantFull: "John"},
		{name: "username only", user: &api.User{UserName: "jdoe"}, wantUN: "jdoe", wantFull: "jdoe"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := GetUN(tt.user); got != tt.wantUN {
				t.Fatalf("GetUN() = %q, want %q", got, tt.wantUN)
			}
			if got := GetFullName(tt.user); got != tt.wantFull {
				t.Fatalf("GetFullName() = %q, want %q", got, tt.wantFull)
			}
		})
	}
}

func TestGetMessageType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		msg  *api.Message
		want MessageType
	}{
		{msg: &api.Message{Text: "hi"}, want: MessageTypeText},
		{msg: &api.Message{Voice: &api.Voice{}}, want: MessageTypeVoice},
		{msg: &api.Message{VideoNote: &api.VideoNote{}}, want: MessageTypeVideoNote},
		{msg: &api.Message{Photo: []api.PhotoSize{{}}}, want: MessageTypePhoto},
		{msg: &api.Message{Document: &api.Document{}}, want: MessageTypeDocument},
	}
	for _, tt := range tests {
		if got := GetMessageType(tt.msg); got != tt.want {
			t.Fatalf("GetMessageType() = %s, want %s", got, tt.want)
		}
	}
}
