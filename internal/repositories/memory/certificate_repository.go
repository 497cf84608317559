package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Josebert2001/ibeno-origin-scribe/internal/domain"
	"github.com/Josebert2001/ibeno-origin-scribe/internal/platform/pagination"
	"github.com/Josebert2001/ibeno-origin-scribe/internal/repositories"
)

// CertificateRepository keeps certificates in a mutex-guarded map.
type CertificateRepository struct {
	mu       sync.RWMutex
	byID     map[string]domain.Certificate
	byNumber map[string]string
}

var _ repositories.CertificateRepository = (*CertificateRepository)(nil)

// NewCertificateRepository constructs an empty repository.
func NewCertificateRepository() *CertificateRepository {
	return &CertificateRepository{
		byID:     make(map[string]domain.Certificate),
		byNumber: make(map[string]string),
	}
}

func (r *CertificateRepository) Insert(_ context.Context, certificate domain.Certificate) (domain.Certificate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[certificate.ID]; ok {
		return domain.Certificate{}, conflict("certificates.insert", "certificate "+certificate.ID)
	}
	if _, ok := r.byNumber[certificate.CertificateNumber]; ok {
		return domain.Certificate{}, conflict("certificates.insert", "certificate number "+certificate.CertificateNumber)
	}
	r.byID[certificate.ID] = certificate
	r.byNumber[certificate.CertificateNumber] = certificate.ID
	return certificate, nil
}

func (r *CertificateRepository) Get(_ context.Context, id string) (domain.Certificate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	certificate, ok := r.byID[id]
	if !ok {
		return domain.Certificate{}, notFound("certificates.get", "certificate")
	}
	return certificate, nil
}

func (r *CertificateRepository) FindByNumber(_ context.Context, number string) (domain.Certificate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byNumber[number]
	if !ok {
		return domain.Certificate{}, notFound("certificates.by_number", "certificate")
	}
	return r.byID[id], nil
}

func (r *CertificateRepository) List(_ context.Context, filter repositories.CertificateListFilter) (domain.CursorPage[domain.Certificate], error) {
	r.mu.RLock()
	matched := make([]domain.Certificate, 0, len(r.byID))
	for _, certificate := range r.byID {
		if filter.Status != "" && certificate.Status != filter.Status {
			continue
		}
		if repositories.MatchesQuery(certificate, filter.Query) {
			matched = append(matched, certificate)
		}
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	items, next := pagination.Window(matched, filter.Offset, filter.Pagination.PageSize)
	return domain.CursorPage[domain.Certificate]{Items: items, NextPageToken: next}, nil
}

func (r *CertificateRepository) Stats(context.Context) (domain.CertificateStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var stats domain.CertificateStats
	for _, certificate := range r.byID {
		stats.Add(certificate.Status)
	}
	return stats, nil
}

func (r *CertificateRepository) UpdateStatus(_ context.Context, id string, update repositories.StatusUpdate) (domain.Certificate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	certificate, ok := r.byID[id]
	if !ok {
		return domain.Certificate{}, notFound("certificates.update_status", "certificate")
	}
	certificate.Status = update.Status
	certificate.StatusNote = update.Note
	certificate.UpdatedAt = update.At
	r.byID[id] = certificate
	return certificate, nil
}

func (r *CertificateRepository) UpdateArtifacts(_ context.Context, id string, artifacts domain.CertificateArtifacts, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	certificate, ok := r.byID[id]
	if !ok {
		return notFound("certificates.update_artifacts", "certificate")
	}
	certificate.Artifacts = artifacts
	certificate.UpdatedAt = at
	r.byID[id] = certificate
	return nil
}

func (r *CertificateRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	certificate, ok := r.byID[id]
	if !ok {
		return notFound("certificates.delete", "certificate")
	}
	delete(r.byID, id)
	delete(r.byNumber, certificate.CertificateNumber)
	return nil
}

func (r *CertificateRepository) Ping(context.Context) error { return nil }
