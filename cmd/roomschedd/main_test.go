package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"gopkg.in/gomail.v2"

	"github.com/example/room-scheduler/internal/config"
	httptransport "github.com/example/room-scheduler/internal/http"
	"github.com/example/room-scheduler/internal/itip"
	"github.com/example/room-scheduler/internal/notify"
	"github.com/example/room-scheduler/internal/secrets"
	"github.com/example/room-scheduler/internal/testfixtures"
)

const testSeed = `
users:
  - id: alice
    email: alice@example.com
    displayName: Alice
  - id: root
    email: root@example.com
    admin: true
rooms:
  - id: sunroom
    email: sunroom@rooms.example.com
    name: Sunroom
    location: Level 3
    autoAccept: true
    permissions:
      bookers: ["user:alice"]
`

type recordingTransport struct {
	mu   sync.Mutex
	sent []*gomail.Message
}

func (r *recordingTransport) Send(ctx context.Context, relay notify.Relay, messages ...*gomail.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, messages...)
	return nil
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()
	seed := filepath.Join(dir, "seed.yaml")
	if err := os.WriteFile(seed, []byte(testSeed), 0o600); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	return config.Config{
		SQLiteDSN:         filepath.Join(dir, "rooms.db"),
		SeedFile:          seed,
		DefaultTimezone:   "UTC",
		SecretKey:         "test-key",
		SMTP:              config.SMTP{Host: "smtp.example.com", Port: 25, Encryption: "none"},
		DecisionTTL:       time.Hour,
		DecisionCacheSize: 16,
	}
}

func testOptions(transport notify.Transport) serviceOptions {
	clock := testfixtures.NewClock(time.Time{})
	return serviceOptions{
		Transport: transport,
		Now:       clock.NowFunc(),
		KeyParams: &secrets.KeyParams{Memory: 1024, Iterations: 1, Parallelism: 1, Salt: "test"},
	}
}

func TestNewService_DeliversAndListsBookings(t *testing.T) {
	t.Parallel()

	transport := &recordingTransport{}
	svc, err := newService(context.Background(), testConfig(t), testOptions(transport))
	if err != nil {
		t.Fatalf("newService returned error: %v", err)
	}
	t.Cleanup(func() { _ = svc.Close() })

	start := testfixtures.NextWeekday(time.Wednesday, 10, 0)
	event := testfixtures.NewEventFixture(
		testfixtures.WithEventUID("standup@example.com"),
		testfixtures.WithEventTimes(start, start.Add(30*time.Minute)),
		testfixtures.WithEventOrganizer("alice@example.com", "Alice"),
		testfixtures.WithRoomAttendee("sunroom@rooms.example.com", "Sunroom", string(itip.PartStatNeedsAction)),
	)
	body, _ := json.Marshal(map[string]string{
		"method":    "REQUEST",
		"sender":    "mailto:alice@example.com",
		"recipient": "mailto:sunroom@rooms.example.com",
		"calendar":  string(event.Bytes()),
	})
	req := httptest.NewRequest(http.MethodPost, "/scheduling/messages", strings.NewReader(string(body)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	svc.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var delivered struct {
		Handled    bool   `json:"handled"`
		ResultCode string `json:"result_code"`
		PartStat   string `json:"partstat"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &delivered); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !delivered.Handled || delivered.ResultCode != "1.2" || delivered.PartStat != "ACCEPTED" {
		t.Fatalf("unexpected delivery %+v", delivered)
	}
	if len(transport.sent) != 1 {
		t.Fatalf("expected one confirmation mail, got %d", len(transport.sent))
	}

	req = httptest.NewRequest(http.MethodGet, "/rooms/sunroom/bookings", nil)
	req.Header.Set(httptransport.RemoteUserHeader, "root")
	rec = httptest.NewRecorder()
	svc.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "standup@example.com") {
		t.Fatalf("expected booking in listing: %s", rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/rooms/sunroom/bookings", nil)
	req.Header.Set(httptransport.RemoteUserHeader, "alice")
	rec = httptest.NewRecorder()
	svc.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected bookers to be refused the listing, got %d", rec.Code)
	}
}

func TestNewService_StartupErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{name: "unknown timezone", mutate: func(c *config.Config) { c.DefaultTimezone = "Mars/Olympus" }},
		{name: "missing seed file", mutate: func(c *config.Config) { c.SeedFile = filepath.Join(filepath.Dir(c.SeedFile), "absent.yaml") }},
		{name: "empty secret", mutate: func(c *config.Config) { c.SecretKey = "" }},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := testConfig(t)
			tt.mutate(&cfg)
			if svc, err := newService(context.Background(), cfg, testOptions(&recordingTransport{})); err == nil {
				_ = svc.Close()
				t.Fatal("expected startup to fail")
			}
		})
	}
}
