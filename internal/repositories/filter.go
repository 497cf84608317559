package repositories

import (
	"strings"

	domain "github.com/Josebert2001/ibeno-origin-scribe/internal/domain"
)

// MatchesQuery reports whether the certificate matches a dashboard search term.
func MatchesQuery(certificate domain.Certificate, query string) bool {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return true
	}
	for _, field := range []string{certificate.CertificateNumber, certificate.BearerName, certificate.NativeOf, certificate.Village} {
		if strings.Contains(strings.ToLower(field), query) {
			return true
		}
	}
	return false
}
