package participant

import (
	"context"
	"testing"
)

func newParticipant(roomID int64, role Role, identifier, token string) *Participant {
	return &Participant{
		RoomID:       roomID,
		Role:         role,
		Name:         "tester",
		SessionToken: token,
		Identifier:   identifier,
	}
}

func TestMemoryCreateAndFind(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	p := newParticipant(7, RoleBuyer, "ident-1", "token-buyer-room-seven-0001")
	if err := repo.Create(ctx, p); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !p.Online {
		t.Error("expected created participant to be online")
	}

	byID, err := repo.FindActiveByIdentifier(ctx, 7, "ident-1")
	if err != nil {
		t.Fatalf("FindActiveByIdentifier: %v", err)
	}
	if byID == nil || byID.ID != p.ID {
		t.Fatal("expected to find participant by identifier")
	}

	byToken, err := repo.FindActiveByToken(ctx, 7, p.SessionToken)
	if err != nil {
		t.Fatalf("FindActiveByToken: %v", err)
	}
	if byToken == nil || byToken.ID != p.ID {
		t.Fatal("expected to find participant by token")
	}

	byRole, err := repo.FindActiveByRole(ctx, 7, RoleBuyer)
	if err != nil {
		t.Fatalf("FindActiveByRole: %v", err)
	}
	if byRole == nil || byRole.ID != p.ID {
		t.Fatal("expected to find participant by role")
	}
}

func TestMemoryCreateRejectsOccupiedRole(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	if err := repo.Create(ctx, newParticipant(7, RoleBuyer, "ident-1", "token-one-aaaaaaaaaaaaaaaa")); err != nil {
		t.Fatalf("Create: %v", err)
	}

	err := repo.Create(ctx, newParticipant(7, RoleBuyer, "ident-2", "token-two-bbbbbbbbbbbbbbbb"))
	if err != ErrRoleTaken {
		t.Errorf("expected ErrRoleTaken, got %v", err)
	}

	// Same role in another room is fine.
	if err := repo.Create(ctx, newParticipant(8, RoleBuyer, "ident-2", "token-two-bbbbbbbbbbbbbbbb")); err != nil {
		t.Errorf("expected create in other room to succeed, got %v", err)
	}
}

func TestMemoryAttachIdentifierIsIdempotentBackfill(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	p := newParticipant(7, RoleSeller, "", "legacy-token-cccccccccccccc")
	if err := repo.Create(ctx, p); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := repo.AttachIdentifier(ctx, p.ID, "ident-1"); err != nil {
		t.Fatalf("AttachIdentifier: %v", err)
	}

	// Second attach with a different value must not rebind.
	if err := repo.AttachIdentifier(ctx, p.ID, "ident-other"); err != nil {
		t.Fatalf("AttachIdentifier: %v", err)
	}

	got, err := repo.FindActiveByIdentifier(ctx, 7, "ident-1")
	if err != nil {
		t.Fatalf("FindActiveByIdentifier: %v", err)
	}
	if got == nil {
		t.Fatal("expected identifier to stay bound to first value")
	}
}

func TestMemoryChangeRole(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	p := newParticipant(7, RoleBuyer, "ident-1", "token-one-aaaaaaaaaaaaaaaa")
	if err := repo.Create(ctx, p); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := repo.ChangeRole(ctx, p.ID, RoleSeller); err != nil {
		t.Fatalf("ChangeRole: %v", err)
	}

	moved, err := repo.FindActiveByRole(ctx, 7, RoleSeller)
	if err != nil {
		t.Fatalf("FindActiveByRole: %v", err)
	}
	if moved == nil || moved.ID != p.ID {
		t.Fatal("expected record to hold the new role")
	}
	if moved.SessionToken != p.SessionToken {
		t.Error("expected session token to survive the role change")
	}

	vacated, err := repo.FindActiveByRole(ctx, 7, RoleBuyer)
	if err != nil {
		t.Fatalf("FindActiveByRole: %v", err)
	}
	if vacated != nil {
		t.Error("expected old role to be vacant")
	}
}

func TestMemoryChangeRoleRejectsOccupiedSeat(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	buyer := newParticipant(7, RoleBuyer, "ident-1", "token-one-aaaaaaaaaaaaaaaa")
	seller := newParticipant(7, RoleSeller, "ident-2", "token-two-bbbbbbbbbbbbbbbb")
	if err := repo.Create(ctx, buyer); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := repo.Create(ctx, seller); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := repo.ChangeRole(ctx, buyer.ID, RoleSeller); err != ErrRoleTaken {
		t.Errorf("expected ErrRoleTaken, got %v", err)
	}
}

func TestMemoryFindActiveElsewhere(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	if err := repo.Create(ctx, newParticipant(7, RoleBuyer, "ident-1", "token-one-aaaaaaaaaaaaaaaa")); err != nil {
		t.Fatalf("Create: %v", err)
	}

	elsewhere, err := repo.FindActiveElsewhere(ctx, "ident-1", 8)
	if err != nil {
		t.Fatalf("FindActiveElsewhere: %v", err)
	}
	if elsewhere == nil || elsewhere.RoomID != 7 {
		t.Fatal("expected the room 7 membership to surface")
	}

	same, err := repo.FindActiveElsewhere(ctx, "ident-1", 7)
	if err != nil {
		t.Fatalf("FindActiveElsewhere: %v", err)
	}
	if same != nil {
		t.Error("expected own room to be excluded")
	}
}

func TestMemoryDelete(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	p := newParticipant(7, RoleBuyer, "ident-1", "token-one-aaaaaaaaaaaaaaaa")
	if err := repo.Create(ctx, p); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := repo.Delete(ctx, p.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	got, err := repo.FindActiveByIdentifier(ctx, 7, "ident-1")
	if err != nil {
		t.Fatalf("FindActiveByIdentifier: %v", err)
	}
	if got != nil {
		t.Error("expected participant to be gone")
	}
}
