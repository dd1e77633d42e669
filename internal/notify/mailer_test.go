package notify

import (
	"bytes"
	"context"
	"errors"
	"mime"
	"strings"
	"sync"
	"testing"
	"time"

	"gopkg.in/gomail.v2"

	"github.com/example/room-scheduler/internal/application"
	"github.com/example/room-scheduler/internal/itip"
	"github.com/example/room-scheduler/internal/secrets"
	"github.com/example/room-scheduler/internal/testfixtures"
)

// decodeHeader undoes the RFC 2047 encoding gomail applies to non-ASCII
// header values.
func decodeHeader(t *testing.T, value string) string {
	t.Helper()
	decoded, err := new(mime.WordDecoder).DecodeHeader(value)
	if err != nil {
		t.Fatalf("decode header %q: %v", value, err)
	}
	return decoded
}

type sentMessage struct {
	relay Relay
	msg   *gomail.Message
}

type transportStub struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (s *transportStub) Send(ctx context.Context, relay Relay, messages ...*gomail.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	for _, msg := range messages {
		s.sent = append(s.sent, sentMessage{relay: relay, msg: msg})
	}
	return nil
}

func (s *transportStub) recipients() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.sent))
	for _, sent := range s.sent {
		out = append(out, sent.msg.GetHeader("To")...)
	}
	return out
}

func newTestMailer(t *testing.T, transport Transport, opener SecretOpener) *Mailer {
	t.Helper()
	clock := testfixtures.NewClock(time.Time{})
	return NewMailer(Options{
		Default:   Relay{Host: "smtp.example.com", Port: 25, From: "noreply@example.com"},
		Secrets:   opener,
		Transport: transport,
		NewID:     testfixtures.NewIDGenerator("msg").NextFunc(),
		Now:       clock.NowFunc(),
	})
}

func testRoom() application.Room {
	return application.Room{ID: "sunroom", Email: "sunroom@rooms.example.com", Name: "Sunroom", Timezone: "UTC"}
}

func testEvent() itip.EventInfo {
	start := testfixtures.NextWeekday(time.Tuesday, 9, 0)
	return itip.EventInfo{
		UID:            "evt-1@example.com",
		Summary:        "Planning",
		OrganizerEmail: "alice@example.com",
		OrganizerName:  "Alice",
		Start:          start,
		End:            start.Add(time.Hour),
		HasStart:       true,
		HasEnd:         true,
	}
}

func render(t *testing.T, msg *gomail.Message) string {
	t.Helper()
	var buf bytes.Buffer
	if _, err := msg.WriteTo(&buf); err != nil {
		t.Fatalf("render message: %v", err)
	}
	return buf.String()
}

func TestMailer_OrganizerNotices(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		send    func(*Mailer, context.Context, application.Room, itip.EventInfo) error
		subject string
		method  string
	}{
		{name: "accepted", send: (*Mailer).SendAccepted, subject: "Booking confirmed: Sunroom — Planning", method: "REPLY"},
		{name: "declined", send: (*Mailer).SendDeclined, subject: "Booking declined: Sunroom — Planning", method: "REPLY"},
		{name: "conflict", send: (*Mailer).SendConflict, subject: "Booking conflict: Sunroom — Planning", method: "REPLY"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			transport := &transportStub{}
			mailer := newTestMailer(t, transport, nil)
			if err := tt.send(mailer, context.Background(), testRoom(), testEvent()); err != nil {
				t.Fatalf("send returned error: %v", err)
			}
			if len(transport.sent) != 1 {
				t.Fatalf("expected one message, got %d", len(transport.sent))
			}
			sent := transport.sent[0]
			if got := sent.msg.GetHeader("Subject"); len(got) != 1 || decodeHeader(t, got[0]) != tt.subject {
				t.Fatalf("unexpected subject %v", got)
			}
			if got := sent.msg.GetHeader("To"); len(got) != 1 || got[0] != "alice@example.com" {
				t.Fatalf("unexpected recipient %v", got)
			}
			if got := sent.msg.GetHeader("Message-ID"); len(got) != 1 || got[0] != "<msg-1@rooms.example.com>" {
				t.Fatalf("unexpected message id %v", got)
			}
			if sent.relay.Host != "smtp.example.com" {
				t.Fatalf("expected default relay, got %+v", sent.relay)
			}
			raw := render(t, sent.msg)
			if !strings.Contains(raw, "sunroom@rooms.example.com") {
				t.Fatal("expected the room mailbox as sender")
			}
			if !strings.Contains(raw, `filename="invite.ics"`) || !strings.Contains(raw, "method="+tt.method) {
				t.Fatalf("expected iTIP attachment in message:\n%s", raw)
			}
		})
	}
}

func TestMailer_NotifyManagers(t *testing.T) {
	t.Parallel()

	transport := &transportStub{}
	mailer := newTestMailer(t, transport, nil)
	managers := []application.User{
		{ID: "mgr-1", Email: "mgr1@example.com"},
		{ID: "mgr-2"},
		{ID: "mgr-3", Email: "mgr3@example.com"},
	}
	if err := mailer.NotifyManagers(context.Background(), testRoom(), testEvent(), managers); err != nil {
		t.Fatalf("NotifyManagers returned error: %v", err)
	}
	got := transport.recipients()
	if len(got) != 2 || got[0] != "mgr1@example.com" || got[1] != "mgr3@example.com" {
		t.Fatalf("unexpected recipients %v", got)
	}
	if subject := decodeHeader(t, transport.sent[0].msg.GetHeader("Subject")[0]); subject != "Booking request: Sunroom — Planning" {
		t.Fatalf("unexpected subject %q", subject)
	}
	if raw := render(t, transport.sent[0].msg); strings.Contains(raw, "invite.ics") {
		t.Fatal("approval requests carry no attachment")
	}

	if err := mailer.NotifyManagers(context.Background(), testRoom(), testEvent(), nil); err != nil {
		t.Fatalf("expected no error without managers, got %v", err)
	}
	if len(transport.sent) != 2 {
		t.Fatalf("expected no extra mail, got %d", len(transport.sent))
	}
}

func TestMailer_SendCancelled(t *testing.T) {
	t.Parallel()

	transport := &transportStub{}
	mailer := newTestMailer(t, transport, nil)
	managers := []application.User{{ID: "mgr-1", Email: "mgr1@example.com"}}

	if err := mailer.SendCancelled(context.Background(), testRoom(), testEvent(), managers); err != nil {
		t.Fatalf("SendCancelled returned error: %v", err)
	}
	got := transport.recipients()
	if len(got) != 2 || got[0] != "alice@example.com" || got[1] != "mgr1@example.com" {
		t.Fatalf("unexpected recipients %v", got)
	}
	if raw := render(t, transport.sent[0].msg); !strings.Contains(raw, "method=CANCEL") {
		t.Fatalf("expected CANCEL attachment:\n%s", raw)
	}
}

func TestMailer_RoomRelay(t *testing.T) {
	t.Parallel()

	box, err := secrets.NewBoxWithParams("key", secrets.KeyParams{Memory: 1024, Iterations: 1, Parallelism: 1, Salt: "test"})
	if err != nil {
		t.Fatalf("NewBoxWithParams: %v", err)
	}
	sealed, err := box.Seal("hunter2")
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	room := testRoom()
	room.SMTP = &application.SMTPSettings{
		Host:              "mail.rooms.example.com",
		Port:              465,
		Username:          "sunroom",
		PasswordEncrypted: sealed,
		Encryption:        EncryptionSSL,
	}

	transport := &transportStub{}
	mailer := newTestMailer(t, transport, box)
	if err := mailer.SendAccepted(context.Background(), room, testEvent()); err != nil {
		t.Fatalf("SendAccepted returned error: %v", err)
	}
	relay := transport.sent[0].relay
	if relay.Host != "mail.rooms.example.com" || relay.Password != "hunter2" || relay.Encryption != EncryptionSSL {
		t.Fatalf("expected room relay with decrypted password, got %+v", relay)
	}

	noKey := newTestMailer(t, &transportStub{}, nil)
	if err := noKey.SendAccepted(context.Background(), room, testEvent()); err == nil {
		t.Fatal("expected error without a key for an encrypted password")
	}
}

func TestMailer_Failures(t *testing.T) {
	t.Parallel()

	boom := errors.New("connection refused")
	mailer := newTestMailer(t, &transportStub{err: boom}, nil)
	if err := mailer.SendDeclined(context.Background(), testRoom(), testEvent()); !errors.Is(err, boom) {
		t.Fatalf("expected transport error, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := newTestMailer(t, &transportStub{}, nil).SendAccepted(ctx, testRoom(), testEvent()); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context error, got %v", err)
	}

	transport := &transportStub{}
	event := testEvent()
	event.OrganizerEmail = ""
	if err := newTestMailer(t, transport, nil).SendAccepted(context.Background(), testRoom(), event); err != nil {
		t.Fatalf("expected silent skip, got %v", err)
	}
	if len(transport.sent) != 0 {
		t.Fatal("no organizer means no mail")
	}

	unconfigured := NewMailer(Options{Transport: transport})
	if err := unconfigured.SendAccepted(context.Background(), testRoom(), testEvent()); err != nil {
		t.Fatalf("expected drop without relay, got %v", err)
	}
	if len(transport.sent) != 0 {
		t.Fatal("expected nothing sent without a relay")
	}
}

func TestMailer_MessageIDSources(t *testing.T) {
	t.Parallel()

	var nilGen *testfixtures.IDGenerator
	tests := []struct {
		name  string
		newID func() string
		check func(t *testing.T, id string)
	}{
		{
			name:  "nil generator renders an empty local part",
			newID: nilGen.NextFunc(),
			check: func(t *testing.T, id string) {
				if id != "<@rooms.example.com>" {
					t.Fatalf("unexpected message id %q", id)
				}
			},
		},
		{
			name:  "unset id source uses random ids",
			newID: nil,
			check: func(t *testing.T, id string) {
				if !strings.HasPrefix(id, "<") || !strings.HasSuffix(id, "@rooms.example.com>") || id == "<@rooms.example.com>" {
					t.Fatalf("expected a random message id, got %q", id)
				}
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			transport := &transportStub{}
			mailer := NewMailer(Options{
				Default:   Relay{Host: "smtp.example.com", Port: 25, From: "noreply@example.com"},
				Transport: transport,
				NewID:     tt.newID,
			})
			if err := mailer.SendAccepted(context.Background(), testRoom(), testEvent()); err != nil {
				t.Fatalf("SendAccepted returned error: %v", err)
			}
			if len(transport.sent) != 1 {
				t.Fatalf("expected one message, got %d", len(transport.sent))
			}
			got := transport.sent[0].msg.GetHeader("Message-ID")
			if len(got) != 1 {
				t.Fatalf("unexpected message id header %v", got)
			}
			tt.check(t, got[0])
		})
	}
}
