package firestore

import (
	"context"
	"testing"

	"github.com/Josebert2001/ibeno-origin-scribe/internal/repositories"
)

func TestCertificateRepositoryGetRejectsUnaddressableIDs(t *testing.T) {
	// The zero repository has no client; the ids must be rejected before any call.
	repo := &CertificateRepository{}
	for _, id := range []string{"", "a/b", "certificates/01JH0000000000000000000000", "__name__", "__x__", ".", ".."} {
		_, err := repo.Get(context.Background(), id)
		repoErr, ok := err.(repositories.RepositoryError)
		if !ok || !repoErr.IsNotFound() {
			t.Fatalf("expected not found for %q, got %v", id, err)
		}
	}
}

func TestAddressableID(t *testing.T) {
	cases := map[string]bool{
		"01JH0000000000000000000000": true,
		"IBN25 0001":                 true,
		"__":                         true,
		"_x_":                        true,
		"a/b":                        false,
		"__x__":                      false,
		"..":                         false,
	}
	for id, want := range cases {
		if got := addressableID(id); got != want {
			t.Fatalf("addressableID(%q): expected %v, got %v", id, want, got)
		}
	}
}
