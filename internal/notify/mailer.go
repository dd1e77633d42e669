// Package notify mails booking outcomes to organizers and room managers.
//
// Organizer notices carry an iTIP attachment so calendar clients can update
// the room attendee without a round trip to the server.
package notify

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/gomail.v2"

	"github.com/example/room-scheduler/internal/application"
	"github.com/example/room-scheduler/internal/itip"
)

var _ application.Notifier = (*Mailer)(nil)

// Encryption modes accepted for relays.
const (
	EncryptionNone     = "none"
	EncryptionSTARTTLS = "tls"
	EncryptionSSL      = "ssl"
)

// Relay is an SMTP server used to send notifications.
type Relay struct {
	Host       string
	Port       int
	Username   string
	Password   string
	Encryption string
	// From is used when the room has no mailbox address.
	From string
}

// Configured reports whether the relay names a host.
func (r Relay) Configured() bool {
	return strings.TrimSpace(r.Host) != ""
}

// Transport delivers composed messages through a relay.
type Transport interface {
	Send(ctx context.Context, relay Relay, messages ...*gomail.Message) error
}

// SecretOpener decrypts stored relay passwords. *secrets.Box satisfies it.
type SecretOpener interface {
	Open(value string) (string, error)
}

// Options configures a Mailer.
type Options struct {
	Default   Relay
	Secrets   SecretOpener
	Transport Transport
	Location  func(timezone string) *time.Location
	NewID     func() string
	Now       func() time.Time
	Logger    *slog.Logger
}

// Mailer implements application.Notifier over SMTP.
type Mailer struct {
	relay     Relay
	secrets   SecretOpener
	transport Transport
	location  func(string) *time.Location
	newID     func() string
	now       func() time.Time
	logger    *slog.Logger
}

// NewMailer constructs a mailer. Rooms with their own SMTP settings use them;
// every other room uses the default relay.
func NewMailer(opts Options) *Mailer {
	m := &Mailer{
		relay:     opts.Default,
		secrets:   opts.Secrets,
		transport: opts.Transport,
		location:  opts.Location,
		newID:     opts.NewID,
		now:       opts.Now,
		logger:    opts.Logger,
	}
	if m.transport == nil {
		m.transport = DialTransport{}
	}
	if m.location == nil {
		m.location = func(string) *time.Location { return time.UTC }
	}
	if m.newID == nil {
		m.newID = uuid.NewString
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	return m
}

// SendAccepted tells the organizer the room accepted the booking.
func (m *Mailer) SendAccepted(ctx context.Context, room application.Room, event itip.EventInfo) error {
	return m.sendOrganizer(ctx, room, event, kindAccepted)
}

// SendDeclined tells the organizer the room declined the booking.
func (m *Mailer) SendDeclined(ctx context.Context, room application.Room, event itip.EventInfo) error {
	return m.sendOrganizer(ctx, room, event, kindDeclined)
}

// SendConflict tells the organizer the slot was already taken.
func (m *Mailer) SendConflict(ctx context.Context, room application.Room, event itip.EventInfo) error {
	return m.sendOrganizer(ctx, room, event, kindConflict)
}

// NotifyManagers asks the room managers to approve a tentative booking.
func (m *Mailer) NotifyManagers(ctx context.Context, room application.Room, event itip.EventInfo, managers []application.User) error {
	if len(managers) == 0 {
		m.logger.WarnContext(ctx, "no managers to notify",
			"room_id", room.ID,
			"uid", event.UID,
		)
		return nil
	}
	view := newEventView(room, event, m.location(room.Timezone))
	return m.sendManagers(ctx, room, view, kindApproval, managers)
}

// SendCancelled tells the organizer and the managers that a booking was
// cancelled. The organizer copy carries an iTIP CANCEL attachment.
func (m *Mailer) SendCancelled(ctx context.Context, room application.Room, event itip.EventInfo, managers []application.User) error {
	organizerErr := m.sendOrganizer(ctx, room, event, kindCancelled)
	view := newEventView(room, event, m.location(room.Timezone))
	return errors.Join(organizerErr, m.sendManagers(ctx, room, view, kindCancelled, managers))
}

func (m *Mailer) sendOrganizer(ctx context.Context, room application.Room, event itip.EventInfo, kind messageKind) error {
	if strings.TrimSpace(event.OrganizerEmail) == "" {
		m.logger.DebugContext(ctx, "event has no organizer address", "room_id", room.ID, "uid", event.UID)
		return nil
	}
	view := newEventView(room, event, m.location(room.Timezone))

	msg := m.compose(room, event.OrganizerEmail, kind.subject(view), kind.body(view))
	attachment, err := kind.attachment(room, event, m.now())
	if err != nil {
		return fmt.Errorf("notify: build attachment: %w", err)
	}
	if attachment != nil {
		attach(msg, attachment)
	}
	return m.deliver(ctx, room, kind, msg)
}

func (m *Mailer) sendManagers(ctx context.Context, room application.Room, view eventView, kind messageKind, managers []application.User) error {
	var errs []error
	for _, manager := range managers {
		if strings.TrimSpace(manager.Email) == "" {
			continue
		}
		msg := m.compose(room, manager.Email, kind.subject(view), kind.body(view))
		if err := m.deliver(ctx, room, kind, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *Mailer) compose(room application.Room, to, subject, body string) *gomail.Message {
	msg := gomail.NewMessage()
	from := room.Email
	if from == "" {
		from = m.relay.From
	}
	name := room.Name
	if name == "" {
		name = "Room Booking"
	}
	msg.SetAddressHeader("From", from, name)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetHeader("Message-ID", "<"+m.newID()+"@"+messageDomain(from)+">")
	msg.SetDateHeader("Date", m.now())
	msg.SetBody("text/plain", body)
	return msg
}

func (m *Mailer) deliver(ctx context.Context, room application.Room, kind messageKind, msg *gomail.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	relay, err := m.relayFor(room)
	if err != nil {
		return err
	}
	if !relay.Configured() {
		m.logger.DebugContext(ctx, "no SMTP relay configured, notification dropped", "room_id", room.ID)
		return nil
	}

	to := msg.GetHeader("To")
	if err := m.transport.Send(ctx, relay, msg); err != nil {
		m.logger.ErrorContext(ctx, "failed to send notification",
			"room_id", room.ID,
			"kind", string(kind),
			"to", to,
			"error", err,
		)
		return fmt.Errorf("notify: send %s: %w", kind, err)
	}
	m.logger.DebugContext(ctx, "notification sent", "room_id", room.ID, "kind", string(kind), "to", to)
	return nil
}

func (m *Mailer) relayFor(room application.Room) (Relay, error) {
	if room.SMTP == nil || strings.TrimSpace(room.SMTP.Host) == "" {
		return m.relay, nil
	}
	relay := Relay{
		Host:       room.SMTP.Host,
		Port:       room.SMTP.Port,
		Username:   room.SMTP.Username,
		Encryption: room.SMTP.Encryption,
		From:       room.Email,
	}
	if room.SMTP.PasswordEncrypted != "" {
		if m.secrets == nil {
			return Relay{}, fmt.Errorf("notify: room %s has an encrypted password but no key is configured", room.ID)
		}
		password, err := m.secrets.Open(room.SMTP.PasswordEncrypted)
		if err != nil {
			return Relay{}, fmt.Errorf("notify: decrypt password of room %s: %w", room.ID, err)
		}
		relay.Password = password
	}
	return relay, nil
}

func messageDomain(address string) string {
	if _, domain, ok := strings.Cut(address, "@"); ok && domain != "" {
		return domain
	}
	return "localhost"
}

// DialTransport sends through gomail's SMTP dialer.
type DialTransport struct {
	// InsecureSkipVerify disables certificate checks on TLS relays.
	InsecureSkipVerify bool
}

// Send implements Transport.
func (t DialTransport) Send(ctx context.Context, relay Relay, messages ...*gomail.Message) error {
	port := relay.Port
	if port == 0 {
		port = 587
		if strings.EqualFold(relay.Encryption, EncryptionSSL) {
			port = 465
		}
	}
	dialer := gomail.NewDialer(relay.Host, port, relay.Username, relay.Password)
	dialer.SSL = strings.EqualFold(relay.Encryption, EncryptionSSL)
	dialer.TLSConfig = &tls.Config{ServerName: relay.Host, InsecureSkipVerify: t.InsecureSkipVerify}
	return dialer.DialAndSend(messages...)
}
