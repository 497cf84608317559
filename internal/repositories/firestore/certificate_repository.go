package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/Josebert2001/ibeno-origin-scribe/internal/domain"
	pfirestore "github.com/Josebert2001/ibeno-origin-scribe/internal/platform/firestore"
	"github.com/Josebert2001/ibeno-origin-scribe/internal/platform/pagination"
	"github.com/Josebert2001/ibeno-origin-scribe/internal/repositories"
)

const certificatesCollection = "certificates"

type certificateDocument struct {
	CertificateNumber string    `firestore:"certificate_number"`
	OurRef            string    `firestore:"our_ref"`
	YourRef           string    `firestore:"your_ref"`
	BearerName        string    `firestore:"bearer_name"`
	NativeOf          string    `firestore:"native_of"`
	Village           string    `firestore:"village"`
	DateIssued        string    `firestore:"date_issued"`
	Status            string    `firestore:"status"`
	StatusNote        string    `firestore:"status_note,omitempty"`
	QRCodeData        string    `firestore:"qr_code_data"`
	PassportPhoto     string    `firestore:"passport_photo,omitempty"`
	HTMLURL           string    `firestore:"certificate_html_url,omitempty"`
	HTMLObject        string    `firestore:"certificate_html_object,omitempty"`
	PDFURL            string    `firestore:"certificate_pdf_url,omitempty"`
	PDFObject         string    `firestore:"certificate_pdf_object,omitempty"`
	CreatedBy         string    `firestore:"created_by"`
	CreatedAt         time.Time `firestore:"created_at"`
	UpdatedAt         time.Time `firestore:"updated_at"`
}

// CertificateRepository stores certificates in the "certificates" collection keyed by id.
type CertificateRepository struct {
	provider *pfirestore.Provider
	base     *pfirestore.BaseRepository[certificateDocument]
}

var _ repositories.CertificateRepository = (*CertificateRepository)(nil)

// NewCertificateRepository constructs a Firestore-backed certificate repository.
func NewCertificateRepository(provider *pfirestore.Provider) (*CertificateRepository, error) {
	if provider == nil {
		return nil, errors.New("certificate repository requires firestore provider")
	}
	return &CertificateRepository{
		provider: provider,
		base:     pfirestore.NewBaseRepository[certificateDocument](provider, certificatesCollection),
	}, nil
}

// Insert creates the record, rejecting a certificate number that is already stored.
func (r *CertificateRepository) Insert(ctx context.Context, certificate domain.Certificate) (domain.Certificate, error) {
	coll, err := r.base.CollectionRef(ctx)
	if err != nil {
		return domain.Certificate{}, err
	}
	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		existing, err := tx.Documents(coll.Where("certificate_number", "==", certificate.CertificateNumber).Limit(1)).GetAll()
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			return pfirestore.Conflict("certificates.insert", "certificate number "+certificate.CertificateNumber)
		}
		return tx.Create(coll.Doc(certificate.ID), encodeCertificate(certificate))
	})
	if err != nil {
		return domain.Certificate{}, err
	}
	return certificate, nil
}

// Get fetches a certificate by id. Ids Firestore cannot address as a document report not found.
func (r *CertificateRepository) Get(ctx context.Context, id string) (domain.Certificate, error) {
	if !addressableID(id) {
		return domain.Certificate{}, pfirestore.NotFound("certificates.get", "certificate")
	}
	doc, err := r.base.Get(ctx, id)
	if err != nil {
		return domain.Certificate{}, err
	}
	return decodeCertificate(doc), nil
}

// addressableID rejects ids that would resolve to a path or a reserved document name.
func addressableID(id string) bool {
	if id == "" || id == "." || id == ".." || strings.Contains(id, "/") {
		return false
	}
	if len(id) > 1500 {
		return false
	}
	return !(len(id) >= 4 && strings.HasPrefix(id, "__") && strings.HasSuffix(id, "__"))
}

// FindByNumber looks up the exact certificate number.
func (r *CertificateRepository) FindByNumber(ctx context.Context, number string) (domain.Certificate, error) {
	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("certificate_number", "==", number).Limit(1)
	})
	if err != nil {
		return domain.Certificate{}, err
	}
	if len(docs) == 0 {
		return domain.Certificate{}, pfirestore.NotFound("certificates.by_number", "certificate")
	}
	return decodeCertificate(docs[0]), nil
}

// List returns newest-first certificates. Free-text matching runs in process over the status-filtered set.
func (r *CertificateRepository) List(ctx context.Context, filter repositories.CertificateListFilter) (domain.CursorPage[domain.Certificate], error) {
	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		if filter.Status != "" {
			q = q.Where("status", "==", string(filter.Status))
		}
		return q.OrderBy("created_at", firestore.Desc)
	})
	if err != nil {
		return domain.CursorPage[domain.Certificate]{}, err
	}

	matched := make([]domain.Certificate, 0, len(docs))
	for _, doc := range docs {
		certificate := decodeCertificate(doc)
		if repositories.MatchesQuery(certificate, filter.Query) {
			matched = append(matched, certificate)
		}
	}
	items, next := pagination.Window(matched, filter.Offset, filter.Pagination.PageSize)
	return domain.CursorPage[domain.Certificate]{Items: items, NextPageToken: next}, nil
}

// Stats counts certificates per status with server-side aggregations.
func (r *CertificateRepository) Stats(ctx context.Context) (domain.CertificateStats, error) {
	var stats domain.CertificateStats
	for _, status := range domain.CertificateStatuses {
		status := status
		count, err := r.base.Count(ctx, func(q firestore.Query) firestore.Query {
			return q.Where("status", "==", string(status))
		})
		if err != nil {
			return domain.CertificateStats{}, err
		}
		stats.AddN(status, count)
	}
	return stats, nil
}

// UpdateStatus applies a status change and returns the updated record.
func (r *CertificateRepository) UpdateStatus(ctx context.Context, id string, update repositories.StatusUpdate) (domain.Certificate, error) {
	if err := r.base.Update(ctx, id, []firestore.Update{
		{Path: "status", Value: string(update.Status)},
		{Path: "status_note", Value: update.Note},
		{Path: "updated_at", Value: update.At},
	}); err != nil {
		return domain.Certificate{}, err
	}
	return r.Get(ctx, id)
}

// UpdateArtifacts records persisted artifact pointers.
func (r *CertificateRepository) UpdateArtifacts(ctx context.Context, id string, artifacts domain.CertificateArtifacts, at time.Time) error {
	return r.base.Update(ctx, id, []firestore.Update{
		{Path: "certificate_html_url", Value: artifacts.HTMLURL},
		{Path: "certificate_html_object", Value: artifacts.HTMLObject},
		{Path: "certificate_pdf_url", Value: artifacts.PDFURL},
		{Path: "certificate_pdf_object", Value: artifacts.PDFObject},
		{Path: "updated_at", Value: at},
	})
}

// Delete removes the record.
func (r *CertificateRepository) Delete(ctx context.Context, id string) error {
	return r.base.Delete(ctx, id)
}

// Ping verifies Firestore connectivity.
func (r *CertificateRepository) Ping(ctx context.Context) error {
	return r.provider.Ping(ctx)
}

func encodeCertificate(c domain.Certificate) certificateDocument {
	return certificateDocument{
		CertificateNumber: c.CertificateNumber,
		OurRef:            c.OurRef,
		YourRef:           c.YourRef,
		BearerName:        c.BearerName,
		NativeOf:          c.NativeOf,
		Village:           c.Village,
		DateIssued:        c.DateIssued,
		Status:            string(c.Status),
		StatusNote:        c.StatusNote,
		QRCodeData:        c.QRCodeData,
		PassportPhoto:     c.PassportPhoto,
		HTMLURL:           c.Artifacts.HTMLURL,
		HTMLObject:        c.Artifacts.HTMLObject,
		PDFURL:            c.Artifacts.PDFURL,
		PDFObject:         c.Artifacts.PDFObject,
		CreatedBy:         c.CreatedBy,
		CreatedAt:         c.CreatedAt,
		UpdatedAt:         c.UpdatedAt,
	}
}

func decodeCertificate(doc pfirestore.Document[certificateDocument]) domain.Certificate {
	d := doc.Data
	status, ok := domain.ParseCertificateStatus(d.Status)
	if !ok {
		status = domain.CertificateStatusInvalid
	}
	return domain.Certificate{
		ID:                doc.ID,
		CertificateNumber: d.CertificateNumber,
		OurRef:            d.OurRef,
		YourRef:           d.YourRef,
		BearerName:        d.BearerName,
		NativeOf:          d.NativeOf,
		Village:           d.Village,
		DateIssued:        d.DateIssued,
		Status:            status,
		StatusNote:        d.StatusNote,
		QRCodeData:        d.QRCodeData,
		PassportPhoto:     d.PassportPhoto,
		Artifacts: domain.CertificateArtifacts{
			HTMLURL:    d.HTMLURL,
			HTMLObject: d.HTMLObject,
			PDFURL:     d.PDFURL,
			PDFObject:  d.PDFObject,
		},
		CreatedBy: d.CreatedBy,
		CreatedAt: d.CreatedAt.UTC(),
		UpdatedAt: d.UpdatedAt.UTC(),
	}
}
