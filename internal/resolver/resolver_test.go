package resolver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"rekber-service/internal/activity"
	"rekber-service/internal/participant"
	"rekber-service/internal/session"
)

func seed(t *testing.T, repo *participant.MemoryRepository, p *participant.Participant) *participant.Participant {
	t.Helper()
	if err := repo.Create(context.Background(), p); err != nil {
		t.Fatalf("seed participant: %v", err)
	}
	return p
}

func freshToken(t *testing.T) string {
	t.Helper()
	tok, err := session.NewToken()
	if err != nil {
		t.Fatalf("NewToken: %v", err)
	}
	return tok
}

func requestWithCookies(cookies ...*http.Cookie) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/rooms/7", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	return req
}

func TestResolveByIdentifier(t *testing.T) {
	repo := participant.NewMemoryRepository()
	r := New(repo, activity.NewMemoryStore())

	p := seed(t, repo, &participant.Participant{
		RoomID:       7,
		Role:         participant.RoleBuyer,
		Name:         "alice",
		SessionToken: freshToken(t),
		Identifier:   "ident-alice-000000000000",
	})

	m, err := r.Resolve(context.Background(), 7, requestWithCookies(), "ident-alice-000000000000")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if m == nil {
		t.Fatal("expected a match")
	}
	if m.Strategy != StrategyIdentifier {
		t.Errorf("expected identifier strategy, got %s", m.Strategy)
	}
	if m.Participant.ID != p.ID {
		t.Error("expected the seeded participant")
	}
	if len(m.SetCookies) != 0 || len(m.ClearCookies) != 0 {
		t.Error("identifier path must not produce cookie mutations")
	}
}

func TestResolveNothing(t *testing.T) {
	repo := participant.NewMemoryRepository()
	r := New(repo, activity.NewMemoryStore())

	m, err := r.Resolve(context.Background(), 7, requestWithCookies(), "ident-stranger-0000000000")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if m != nil {
		t.Errorf("expected no match, got strategy %s", m.Strategy)
	}
}

func TestResolveLegacyFlatCookieMigrates(t *testing.T) {
	repo := participant.NewMemoryRepository()
	store := activity.NewMemoryStore()
	r := New(repo, store)

	token := freshToken(t)
	p := seed(t, repo, &participant.Participant{
		RoomID:       7,
		Role:         participant.RoleSeller,
		Name:         "bob",
		SessionToken: token,
		// legacy record: no identifier yet
	})

	req := requestWithCookies(&http.Cookie{
		Name:  session.LegacyCookieName(7),
		Value: token,
	})

	m, err := r.Resolve(context.Background(), 7, req, "ident-bob-00000000000000")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if m == nil {
		t.Fatal("expected a match")
	}
	if m.Strategy != StrategyLegacyFlat {
		t.Errorf("expected legacy_flat strategy, got %s", m.Strategy)
	}

	// Identifier backfilled on the record.
	if m.Participant.Identifier != "ident-bob-00000000000000" {
		t.Errorf("expected identifier backfill, got %q", m.Participant.Identifier)
	}
	stored, _ := repo.FindActiveByIdentifier(context.Background(), 7, "ident-bob-00000000000000")
	if stored == nil || stored.ID != p.ID {
		t.Fatal("expected backfilled identifier to be persisted")
	}

	// Namespaced cookie out, flat cookie retired.
	wantName := session.CookieName(7, participant.RoleSeller, "ident-bob-00000000000000")
	if len(m.SetCookies) != 1 || m.SetCookies[0].Name != wantName || m.SetCookies[0].Value != token {
		t.Errorf("unexpected SetCookies %+v", m.SetCookies)
	}
	if len(m.ClearCookies) != 1 || m.ClearCookies[0] != session.LegacyCookieName(7) {
		t.Errorf("unexpected ClearCookies %v", m.ClearCookies)
	}

	// Migration leaves an audit trail.
	entries := store.Entries()
	if len(entries) != 1 || entries[0].Event != activity.EventMigrated {
		t.Errorf("expected one migration entry, got %+v", entries)
	}
}

func TestResolveMigrationIsIdempotent(t *testing.T) {
	repo := participant.NewMemoryRepository()
	r := New(repo, activity.NewMemoryStore())

	token := freshToken(t)
	p := seed(t, repo, &participant.Participant{
		RoomID:       7,
		Role:         participant.RoleBuyer,
		Name:         "carol",
		SessionToken: token,
	})

	legacy := &http.Cookie{Name: session.OldestCookieName(7), Value: token}
	id := "ident-carol-000000000000"

	first, err := r.Resolve(context.Background(), 7, requestWithCookies(legacy), id)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if first == nil || first.Strategy != StrategyOldestFlat {
		t.Fatalf("expected oldest_flat match, got %+v", first)
	}

	// Same legacy cookie again: now the identifier is bound, so step 1
	// wins and no second migration happens.
	second, err := r.Resolve(context.Background(), 7, requestWithCookies(legacy), id)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if second == nil {
		t.Fatal("expected a match on the second run")
	}
	if second.Strategy != StrategyIdentifier {
		t.Errorf("expected identifier strategy on repeat, got %s", second.Strategy)
	}
	if second.Participant.ID != p.ID {
		t.Error("expected the same participant, not a duplicate")
	}
}

func TestResolveNamespacedCookieSweep(t *testing.T) {
	repo := participant.NewMemoryRepository()
	r := New(repo, activity.NewMemoryStore())

	token := freshToken(t)
	id := "ident-dave-0000000000000"

	// Record exists but lost its identifier binding (e.g. created by a
	// build that namespaced cookies before tracking identifiers).
	p := seed(t, repo, &participant.Participant{
		RoomID:       7,
		Role:         participant.RoleSeller,
		Name:         "dave",
		SessionToken: token,
	})

	req := requestWithCookies(&http.Cookie{
		Name:  session.CookieName(7, participant.RoleSeller, id),
		Value: token,
	})

	m, err := r.Resolve(context.Background(), 7, req, id)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if m == nil || m.Strategy != StrategyNamespaced {
		t.Fatalf("expected namespaced match, got %+v", m)
	}
	if m.Participant.ID != p.ID {
		t.Error("expected the seeded participant")
	}
	if m.Participant.Identifier != id {
		t.Error("expected identifier backfill via sweep")
	}
}

func TestResolveFirstMatchWins(t *testing.T) {
	repo := participant.NewMemoryRepository()
	r := New(repo, activity.NewMemoryStore())

	id := "ident-erin-0000000000000"

	// Two records could match this request: one through the
	// identifier, another through a stale legacy cookie. The chain
	// must return the identifier match and never consult the rest.
	preferred := seed(t, repo, &participant.Participant{
		RoomID:       7,
		Role:         participant.RoleBuyer,
		Name:         "erin",
		SessionToken: freshToken(t),
		Identifier:   id,
	})
	stale := seed(t, repo, &participant.Participant{
		RoomID:       7,
		Role:         participant.RoleSeller,
		Name:         "erin-old",
		SessionToken: freshToken(t),
	})

	req := requestWithCookies(&http.Cookie{
		Name:  session.LegacyCookieName(7),
		Value: stale.SessionToken,
	})

	for i := 0; i < 3; i++ {
		m, err := r.Resolve(context.Background(), 7, req, id)
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if m == nil {
			t.Fatal("expected a match")
		}
		if m.Participant.ID != preferred.ID {
			t.Fatalf("run %d: expected the identifier match to win, got %s via %s",
				i, m.Participant.Name, m.Strategy)
		}
	}
}

func TestResolveMalformedLegacyTokenFallsThrough(t *testing.T) {
	repo := participant.NewMemoryRepository()
	r := New(repo, activity.NewMemoryStore())

	req := requestWithCookies(&http.Cookie{
		Name:  session.LegacyCookieName(7),
		Value: "not a token",
	})

	m, err := r.Resolve(context.Background(), 7, req, "ident-frank-000000000000")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if m != nil {
		t.Error("malformed legacy token must fall through, not match")
	}
}

func TestResolveDanglingLegacyTokenFallsThrough(t *testing.T) {
	repo := participant.NewMemoryRepository()
	r := New(repo, activity.NewMemoryStore())

	req := requestWithCookies(&http.Cookie{
		Name:  session.OldestCookieName(7),
		Value: freshToken(t), // matches nothing
	})

	m, err := r.Resolve(context.Background(), 7, req, "ident-gina-0000000000000")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if m != nil {
		t.Error("dangling legacy token must fall through, not match")
	}
}

func TestResolveNeverRebindsForeignRecord(t *testing.T) {
	repo := participant.NewMemoryRepository()
	r := New(repo, activity.NewMemoryStore())

	token := freshToken(t)
	seed(t, repo, &participant.Participant{
		RoomID:       7,
		Role:         participant.RoleBuyer,
		Name:         "henry",
		SessionToken: token,
		Identifier:   "ident-henry-000000000000",
	})

	// A different browser presents henry's token via a flat cookie.
	req := requestWithCookies(&http.Cookie{
		Name:  session.LegacyCookieName(7),
		Value: token,
	})

	m, err := r.Resolve(context.Background(), 7, req, "ident-intruder-000000000")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if m != nil {
		t.Error("a record bound to another identifier must not resolve")
	}

	stored, _ := repo.FindActiveByIdentifier(context.Background(), 7, "ident-henry-000000000000")
	if stored == nil {
		t.Fatal("original binding must survive")
	}
}

func TestResolveRefreshesPresenceOnFallbackMatch(t *testing.T) {
	repo := participant.NewMemoryRepository()
	r := New(repo, activity.NewMemoryStore())

	token := freshToken(t)
	p := seed(t, repo, &participant.Participant{
		RoomID:       7,
		Role:         participant.RoleBuyer,
		Name:         "iris",
		SessionToken: token,
	})
	before, _ := repo.FindActiveByToken(context.Background(), 7, token)

	req := requestWithCookies(&http.Cookie{
		Name:  session.LegacyCookieName(7),
		Value: token,
	})

	m, err := r.Resolve(context.Background(), 7, req, "ident-iris-0000000000000")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if m == nil {
		t.Fatal("expected a match")
	}

	after, _ := repo.FindActiveByToken(context.Background(), 7, token)
	if after == nil || after.ID != p.ID {
		t.Fatal("participant vanished")
	}
	if !after.Online {
		t.Error("fallback match must set online")
	}
	if after.LastSeen.Before(before.LastSeen) {
		t.Error("fallback match must refresh last_seen")
	}
}
