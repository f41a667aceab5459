package accounts

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestValidateName(t *testing.T) {
	t.Parallel()
	valid := []string{"alice", "Bob_2", "X", "under_score_99"}
	for _, name := range valid {
		if err := ValidateName(name); err != nil {
			t.Errorf("ValidateName(%q) = %v", name, err)
		}
	}
	invalid := []string{"", "has space", "tabby\t", "émile", "semi;colon", "dash-ed", "dot.ted"}
	for _, name := range invalid {
		if err := ValidateName(name); !errors.Is(err, ErrInvalidName) {
			t.Errorf("ValidateName(%q) = %v, want ErrInvalidName", name, err)
		}
	}
}

func TestPasswordHashRoundTrip(t *testing.T) {
	t.Parallel()
	hash, err := HashPassword("correct horse battery")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if hash == "correct horse battery" {
		t.Fatal("hash must not equal the plaintext")
	}
	if err := VerifyPassword(hash, "correct horse battery"); err != nil {
		t.Fatalf("VerifyPassword: %v", err)
	}
	if err := VerifyPassword(hash, "wrong"); !errors.Is(err, ErrInvalidLogin) {
		t.Fatalf("wrong password = %v, want ErrInvalidLogin", err)
	}
}

func TestSessionStringRoundTrip(t *testing.T) {
	t.Parallel()
	s := Session{ID: uuid.New(), Token: uuid.New()}

	raw := s.String()
	if !strings.Contains(raw, "|") {
		t.Fatalf("String = %q", raw)
	}
	got, err := ParseSession(raw)
	if err != nil {
		t.Fatalf("ParseSession: %v", err)
	}
	if got != s {
		t.Fatalf("round trip produced %v, want %v", got, s)
	}
}

func TestParseSessionRejectsGarbage(t *testing.T) {
	t.Parallel()
	bad := []string{
		"",
		"no-separator",
		uuid.NewString(), // bare id, no token
		"not-a-uuid|" + uuid.NewString(),
		uuid.NewString() + "|not-a-uuid",
	}
	for _, raw := range bad {
		if _, err := ParseSession(raw); err == nil {
			t.Errorf("ParseSession(%q) accepted garbage", raw)
		}
	}
}

func TestMigrationsShape(t *testing.T) {
	t.Parallel()
	set := Migrations()
	if set.Module != "accounts" {
		t.Fatalf("module = %q", set.Module)
	}
	if len(set.Migrations) != 3 {
		t.Fatalf("have %d migrations, want 3", len(set.Migrations))
	}
	for i, m := range set.Migrations {
		if strings.TrimSpace(m.UpSQL) == "" || strings.TrimSpace(m.DownSQL) == "" {
			t.Fatalf("migration %d has empty sql", i)
		}
		if m.Description == "" {
			t.Fatalf("migration %d has no description", i)
		}
	}

	// Checksums must be pairwise distinct or the ledger could not tell
	// the entries apart after a reorder.
	seen := map[[64]byte]int{}
	for i, m := range set.Migrations {
		sum := m.Checksum()
		if j, dup := seen[sum]; dup {
			t.Fatalf("migrations %d and %d share a checksum", j, i)
		}
		seen[sum] = i
	}
}
