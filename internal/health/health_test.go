package health

import (
	"testing"
	"time"

	"github.com/rickgao/bridge-sync-core/internal/model"
)

type fakeStatus struct {
	connected         bool
	connectedToBroker bool
	synchronized      bool
	symbols           []string
	specs             map[string]model.SymbolSpecification
}

func (f *fakeStatus) Connected() bool         { return f.connected }
func (f *fakeStatus) ConnectedToBroker() bool { return f.connectedToBroker }
func (f *fakeStatus) Synchronized() bool      { return f.synchronized }
func (f *fakeStatus) SubscribedSymbols() []string { return f.symbols }
func (f *fakeStatus) Specification(symbol string) (model.SymbolSpecification, bool) {
	s, ok := f.specs[symbol]
	return s, ok
}

func TestRingUptimeAllTrue(t *testing.T) {
	r := newRing(10)
	for i := 0; i < 10; i++ {
		r.add(true)
	}
	if r.uptime() != 100 {
		t.Fatalf("uptime = %d, want 100", r.uptime())
	}
}

// P5: with k/n true, uptime is round(100*k/n).
func TestRingUptimePartial(t *testing.T) {
	r := newRing(32)
	for i := 0; i < 16; i++ {
		r.add(false)
	}
	for i := 0; i < 16; i++ {
		r.add(true)
	}
	if r.uptime() != 50 {
		t.Fatalf("uptime = %d, want 50", r.uptime())
	}
}

func TestRingOverwritesOnWrap(t *testing.T) {
	r := newRing(4)
	r.add(true)
	r.add(true)
	r.add(true)
	r.add(true) // full: 4/4 true
	if r.uptime() != 100 {
		t.Fatalf("uptime = %d, want 100", r.uptime())
	}
	r.add(false) // overwrites the oldest true -> 3/4
	if r.uptime() != 75 {
		t.Fatalf("uptime = %d, want 75", r.uptime())
	}
}

// P6: message lists causes in the fixed order regardless of which flags
// are false.
func TestHealthMessageOrder(t *testing.T) {
	got := healthMessage(false, false, false, false)
	want := "Connection is not healthy because connection to API server is not established or lost and " +
		"connection to broker is not established or lost and " +
		"local terminal state is not synchronized to broker and " +
		"quotes are not streamed from the broker within reasonable time."
	if got != want {
		t.Fatalf("healthMessage() = %q, want %q", got, want)
	}
}

func TestHealthMessageHealthy(t *testing.T) {
	got := healthMessage(true, true, true, true)
	want := "Connection to broker is stable. No health issues detected."
	if got != want {
		t.Fatalf("healthMessage() = %q, want %q", got, want)
	}
}

func TestHealthStatusAndHealthy(t *testing.T) {
	fs := &fakeStatus{connected: true, connectedToBroker: true, synchronized: true}
	m := New(Config{AccountID: "acc"}, fs, nil, nil)

	st := m.HealthStatus()
	if !st.Healthy {
		t.Fatalf("expected healthy, got %+v", st)
	}

	fs.synchronized = false
	st = m.HealthStatus()
	if st.Healthy {
		t.Fatal("expected unhealthy once synchronized is false")
	}
}

func TestQuotesHealthyNoSubscriptions(t *testing.T) {
	fs := &fakeStatus{connected: true, connectedToBroker: true, synchronized: true}
	m := New(Config{AccountID: "acc"}, fs, nil, nil)

	if !m.quotesHealthy() {
		t.Fatal("expected quotesHealthy true with no subscribed symbols")
	}
}

func TestQuotesHealthyFreshInSessionPrice(t *testing.T) {
	now := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC) // Monday
	fs := &fakeStatus{
		connected: true, connectedToBroker: true, synchronized: true,
		symbols: []string{"EURUSD"},
		specs: map[string]model.SymbolSpecification{
			"EURUSD": {Symbol: "EURUSD", Sessions: []model.QuoteSession{
				{Weekday: time.Monday, StartHour: 0, EndHour: 23, EndMin: 59},
			}},
		},
	}
	m := New(Config{AccountID: "acc", Now: func() time.Time { return now }}, fs, nil, nil)
	pl := NewPriceListener(m)

	pl.OnSymbolPriceUpdated(0, model.SymbolPrice{Symbol: "EURUSD", Time: now})

	if !m.quotesHealthy() {
		t.Fatal("expected quotesHealthy true with a fresh in-session price")
	}
}

func TestQuotesHealthyStalePrice(t *testing.T) {
	base := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
	current := base
	fs := &fakeStatus{
		connected: true, connectedToBroker: true, synchronized: true,
		symbols: []string{"EURUSD"},
		specs: map[string]model.SymbolSpecification{
			"EURUSD": {Symbol: "EURUSD", Sessions: []model.QuoteSession{
				{Weekday: time.Monday, StartHour: 0, EndHour: 23, EndMin: 59},
			}},
		},
	}
	m := New(Config{AccountID: "acc", Now: func() time.Time { return current }}, fs, nil, nil)
	pl := NewPriceListener(m)
	pl.OnSymbolPriceUpdated(0, model.SymbolPrice{Symbol: "EURUSD", Time: base})

	current = base.Add(61 * time.Second)
	if m.quotesHealthy() {
		t.Fatal("expected quotesHealthy false once price is older than 60s")
	}
}
