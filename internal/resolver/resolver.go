package resolver

import (
	"context"
	"net/http"
	"time"

	"rekber-service/internal/activity"
	"rekber-service/internal/logger"
	"rekber-service/internal/participant"
	"rekber-service/internal/session"
)

// Strategy names, in chain order. Exposed on Match for logging and for
// callers that care how a session was recovered.
const (
	StrategyIdentifier = "identifier"
	StrategyLegacyFlat = "legacy_flat"
	StrategyNamespaced = "namespaced"
	StrategyOldestFlat = "oldest_flat"
)

// PendingCookie is a cookie mutation the resolver wants applied to the
// response. The resolver never touches the ResponseWriter itself; the
// middleware (or join handler) applies these.
type PendingCookie struct {
	Name      string
	Value     string
	ExpiresAt time.Time
}

// Match is a successful resolution: the participant, the strategy that
// found it, and any cookie mutations produced by migration.
type Match struct {
	Participant *participant.Participant
	Identifier  string
	Strategy    string

	SetCookies   []PendingCookie
	ClearCookies []string
}

// Resolver finds the active participant behind a request's cookies
// through an ordered fallback chain. Order is a correctness
// requirement: during a migration window different strategies can
// match different records, and the first match must win.
type Resolver struct {
	participants participant.Repository
	activity     activity.Store
}

func New(participants participant.Repository, activityStore activity.Store) *Resolver {
	return &Resolver{
		participants: participants,
		activity:     activityStore,
	}
}

// lookup bundles the per-request inputs threaded through the chain.
type lookup struct {
	roomID     int64
	identifier string
	req        *http.Request
}

type strategy func(ctx context.Context, l *lookup) (*Match, error)

// Resolve returns the matching active participant for the room, or
// (nil, nil) when no strategy matches — the caller must treat that as
// "not authenticated for this room". The identifier is the caller's
// ensured browser identifier; it may be freshly minted, in which case
// only the token-bearing strategies can match.
func (r *Resolver) Resolve(
	ctx context.Context,
	roomID int64,
	req *http.Request,
	identifier string,
) (*Match, error) {

	l := &lookup{
		roomID:     roomID,
		identifier: identifier,
		req:        req,
	}

	chain := []strategy{
		r.byIdentifier,
		r.byLegacyFlatCookie,
		r.byNamespacedCookie,
		r.byOldestFlatCookie,
	}

	for _, s := range chain {
		m, err := s(ctx, l)
		if err != nil {
			return nil, err
		}
		if m != nil {
			// First match wins; later strategies are never consulted.
			return m, nil
		}
	}

	return nil, nil
}

// byIdentifier is the preferred path: the browser identifier directly
// names an active participant and its stored token is sane.
func (r *Resolver) byIdentifier(ctx context.Context, l *lookup) (*Match, error) {
	if l.identifier == "" {
		return nil, nil
	}

	p, err := r.participants.FindActiveByIdentifier(ctx, l.roomID, l.identifier)
	if err != nil {
		return nil, err
	}
	if p == nil || !session.IsWellFormed(p.SessionToken) {
		return nil, nil
	}

	return &Match{
		Participant: p,
		Identifier:  l.identifier,
		Strategy:    StrategyIdentifier,
	}, nil
}

// byLegacyFlatCookie handles the pre-multi-session cookie: one flat
// token per room, no role in the name. A hit migrates the client to
// the namespaced scheme.
func (r *Resolver) byLegacyFlatCookie(ctx context.Context, l *lookup) (*Match, error) {
	return r.byFlatCookie(ctx, l, session.LegacyCookieName(l.roomID), StrategyLegacyFlat)
}

// byOldestFlatCookie is the last resort: the original cookie scheme.
func (r *Resolver) byOldestFlatCookie(ctx context.Context, l *lookup) (*Match, error) {
	return r.byFlatCookie(ctx, l, session.OldestCookieName(l.roomID), StrategyOldestFlat)
}

// byFlatCookie matches a bare token carried in one of the two
// historical flat cookie formats, then migrates: the matched
// participant gets the identifier backfilled, the client gets a
// namespaced cookie, and the flat cookie is cleared. Malformed or
// dangling tokens fall through silently.
func (r *Resolver) byFlatCookie(
	ctx context.Context,
	l *lookup,
	cookieName string,
	strategyName string,
) (*Match, error) {

	cookie, err := l.req.Cookie(cookieName)
	if err != nil || cookie.Value == "" {
		return nil, nil
	}
	if !session.IsWellFormed(cookie.Value) {
		return nil, nil
	}

	p, err := r.participants.FindActiveByToken(ctx, l.roomID, cookie.Value)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, nil
	}

	// A record already bound to a different browser is not ours to
	// migrate; fall through rather than rebinding it.
	if p.Identifier != "" && p.Identifier != l.identifier {
		return nil, nil
	}

	if p.Identifier == "" && l.identifier != "" {
		if err := r.participants.AttachIdentifier(ctx, p.ID, l.identifier); err != nil {
			return nil, err
		}
		p.Identifier = l.identifier
	}

	if err := r.participants.Touch(ctx, p.ID); err != nil && err != participant.ErrNotFound {
		return nil, err
	}
	p.Online = true
	p.LastSeen = time.Now()

	r.recordMigration(ctx, p, l)

	return &Match{
		Participant: p,
		Identifier:  l.identifier,
		Strategy:    strategyName,
		SetCookies: []PendingCookie{{
			Name:      session.CookieName(l.roomID, p.Role, l.identifier),
			Value:     p.SessionToken,
			ExpiresAt: time.Now().Add(session.SessionTTL),
		}},
		ClearCookies: []string{cookieName},
	}, nil
}

// byNamespacedCookie sweeps the trading roles, recomputing the
// expected cookie name for each. GM sessions never resolve here; the
// admin path authenticates them separately.
func (r *Resolver) byNamespacedCookie(ctx context.Context, l *lookup) (*Match, error) {
	if l.identifier == "" {
		return nil, nil
	}

	for _, role := range participant.TradingRoles {
		name := session.CookieName(l.roomID, role, l.identifier)

		cookie, err := l.req.Cookie(name)
		if err != nil || cookie.Value == "" || !session.IsWellFormed(cookie.Value) {
			continue
		}

		p, err := r.participants.FindActiveByToken(ctx, l.roomID, cookie.Value)
		if err != nil {
			return nil, err
		}
		if p == nil {
			continue
		}

		// The record must belong to this browser, or to no browser
		// yet (legacy record whose cookie was already namespaced).
		if p.Identifier != "" && p.Identifier != l.identifier {
			continue
		}
		if p.Identifier == "" {
			if err := r.participants.AttachIdentifier(ctx, p.ID, l.identifier); err != nil {
				return nil, err
			}
			p.Identifier = l.identifier
		}

		if err := r.participants.Touch(ctx, p.ID); err != nil && err != participant.ErrNotFound {
			return nil, err
		}
		p.Online = true
		p.LastSeen = time.Now()

		return &Match{
			Participant: p,
			Identifier:  l.identifier,
			Strategy:    StrategyNamespaced,
		}, nil
	}

	return nil, nil
}

func (r *Resolver) recordMigration(ctx context.Context, p *participant.Participant, l *lookup) {
	if r.activity == nil {
		return
	}

	err := r.activity.Record(ctx, activity.Entry{
		RoomID:        p.RoomID,
		ParticipantID: p.ID,
		Identifier:    p.Identifier,
		Event:         activity.EventMigrated,
		Role:          string(p.Role),
		UserAgent:     l.req.UserAgent(),
		At:            time.Now(),
	})
	if err != nil {
		logger.Warn("failed to record session migration", map[string]any{
			"room_id": p.RoomID,
			"error":   err.Error(),
		})
	}
}
