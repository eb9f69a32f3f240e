package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yavuzozge/homeseer-dimmers/internal/auth"
)

// ticketTTL is how long a websocket ticket is valid.
const ticketTTL = 60 * time.Second

// ticketStore holds pending websocket authentication tickets.
// Tickets are single-use and expire after ticketTTL, so bearer tokens never
// appear in websocket URLs.
type ticketStore struct {
	mu      sync.Mutex
	tickets map[string]ticketEntry
	now     func() time.Time
}

type ticketEntry struct {
	subject   string
	role      auth.Role
	expiresAt time.Time
}

func newTicketStore() *ticketStore {
	return &ticketStore{
		tickets: make(map[string]ticketEntry),
		now:     time.Now,
	}
}

// issue creates a ticket for the authenticated caller.
func (ts *ticketStore) issue(subject string, role auth.Role) string {
	ticket := uuid.NewString()

	ts.mu.Lock()
	ts.tickets[ticket] = ticketEntry{
		subject:   subject,
		role:      role,
		expiresAt: ts.now().Add(ticketTTL),
	}
	ts.mu.Unlock()
	return ticket
}

// redeem validates and consumes ticket.
func (ts *ticketStore) redeem(ticket string) (ticketEntry, bool) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	entry, ok := ts.tickets[ticket]
	if !ok {
		return ticketEntry{}, false
	}
	delete(ts.tickets, ticket)

	return entry, ts.now().Before(entry.expiresAt)
}

// removeExpired drops tickets nobody redeemed.
func (ts *ticketStore) removeExpired() {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	now := ts.now()
	for ticket, entry := range ts.tickets {
		if now.After(entry.expiresAt) {
			delete(ts.tickets, ticket)
		}
	}
}

func (ts *ticketStore) len() int {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return len(ts.tickets)
}

// sweep runs removeExpired every interval until ctx is cancelled.
func (ts *ticketStore) sweep(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ts.removeExpired()
		}
	}
}

// handleWSTicket issues a single-use websocket ticket to the authenticated caller.
func (s *Server) handleWSTicket(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, r, ErrCodeUnauthorized, "authentication required")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ticket":     s.tickets.issue(claims.Subject, claims.Role),
		"expires_in": int(ticketTTL.Seconds()),
	})
}
