package services

import (
	"context"
	"errors"
	"strings"

	"github.com/Josebert2001/ibeno-origin-scribe/internal/repositories"
)

// VerificationServiceDeps bundles collaborators for public lookups.
type VerificationServiceDeps struct {
	Repository repositories.CertificateRepository
}

type verificationService struct {
	repo repositories.CertificateRepository
}

// NewVerificationService constructs the public lookup service.
func NewVerificationService(deps VerificationServiceDeps) (VerificationService, error) {
	if deps.Repository == nil {
		return nil, errors.New("verification service: repository is required")
	}
	return &verificationService{repo: deps.Repository}, nil
}

// Verify matches the query against certificate numbers first and record ids second.
func (s *verificationService) Verify(ctx context.Context, query string) (VerificationResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return VerificationResult{}, newValidationError("query", "query is required")
	}

	certificate, err := s.repo.FindByNumber(ctx, query)
	if err != nil {
		if !isNotFound(err) {
			return VerificationResult{}, translateRepositoryError(err)
		}
		if !recordIDCandidate(query) {
			return VerificationResult{Found: false}, nil
		}
		certificate, err = s.repo.Get(ctx, query)
		if err != nil {
			if isNotFound(err) {
				return VerificationResult{Found: false}, nil
			}
			return VerificationResult{}, translateRepositoryError(err)
		}
	}

	projection := certificate.Project()
	return VerificationResult{Found: true, Certificate: &projection}, nil
}

// recordIDCandidate reports whether the query can name a record id. Path
// separators and reserved "__name__" forms never do.
func recordIDCandidate(query string) bool {
	if strings.Contains(query, "/") {
		return false
	}
	return !(len(query) >= 4 && strings.HasPrefix(query, "__") && strings.HasSuffix(query, "__"))
}
