package domain

import (
	"strings"
	"time"
)

// CertificateStatus is the lifecycle state of an issued certificate.
type CertificateStatus string

const (
	CertificateStatusValid      CertificateStatus = "valid"
	CertificateStatusSuperseded CertificateStatus = "superseded"
	CertificateStatusRevoked    CertificateStatus = "revoked"
	CertificateStatusInvalid    CertificateStatus = "invalid"
)

// CertificateStatuses lists every accepted status in display order.
var CertificateStatuses = []CertificateStatus{
	CertificateStatusValid,
	CertificateStatusSuperseded,
	CertificateStatusRevoked,
	CertificateStatusInvalid,
}

// ParseCertificateStatus normalises raw input into a known status.
func ParseCertificateStatus(raw string) (CertificateStatus, bool) {
	candidate := CertificateStatus(strings.ToLower(strings.TrimSpace(raw)))
	for _, status := range CertificateStatuses {
		if status == candidate {
			return status, true
		}
	}
	return "", false
}

// Valid reports whether the status is one of the known values.
func (s CertificateStatus) Valid() bool {
	for _, status := range CertificateStatuses {
		if status == s {
			return true
		}
	}
	return false
}

// Certificate is the persisted certificate of origin record.
type Certificate struct {
	ID                string
	CertificateNumber string
	OurRef            string
	YourRef           string
	BearerName        string
	NativeOf          string
	Village           string
	DateIssued        string
	Status            CertificateStatus
	StatusNote        string
	QRCodeData        string
	PassportPhoto     string
	Artifacts         CertificateArtifacts
	CreatedBy         string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// ArtifactKind names a rendered artifact persisted for a certificate.
type ArtifactKind string

const (
	ArtifactHTML ArtifactKind = "html"
	ArtifactPDF  ArtifactKind = "pdf"
)

// ParseArtifactKind accepts "html" or "pdf" in any case.
func ParseArtifactKind(raw string) (ArtifactKind, bool) {
	switch ArtifactKind(strings.ToLower(strings.TrimSpace(raw))) {
	case ArtifactHTML:
		return ArtifactHTML, true
	case ArtifactPDF:
		return ArtifactPDF, true
	default:
		return "", false
	}
}

// CertificateArtifacts holds pointers to persisted rendered copies.
type CertificateArtifacts struct {
	HTMLURL    string
	HTMLObject string
	PDFURL     string
	PDFObject  string
}

// Object returns the storage object path for the given kind.
func (a CertificateArtifacts) Object(kind ArtifactKind) string {
	switch kind {
	case ArtifactHTML:
		return a.HTMLObject
	case ArtifactPDF:
		return a.PDFObject
	default:
		return ""
	}
}

// Merge keeps the previous pointers for any kind this set does not carry.
func (a CertificateArtifacts) Merge(previous CertificateArtifacts) CertificateArtifacts {
	if a.HTMLObject == "" && a.HTMLURL == "" {
		a.HTMLObject, a.HTMLURL = previous.HTMLObject, previous.HTMLURL
	}
	if a.PDFObject == "" && a.PDFURL == "" {
		a.PDFObject, a.PDFURL = previous.PDFObject, previous.PDFURL
	}
	return a
}

// Empty reports whether no artifact has been persisted.
func (a CertificateArtifacts) Empty() bool {
	return a.HTMLObject == "" && a.PDFObject == "" && a.HTMLURL == "" && a.PDFURL == ""
}

// CertificateData is the transient, validated view used for rendering. It is never persisted.
type CertificateData struct {
	OurRef            string
	YourRef           string
	DateIssued        string
	CertificateNumber string
	BearerName        string
	NativeOf          string
	Village           string
	QRCodeData        string
	PassportPhoto     string
}

// VerificationProjection is the only view of a certificate exposed to the public.
type VerificationProjection struct {
	CertificateNumber string            `json:"certificate_number"`
	DateIssued        string            `json:"date_issued"`
	Status            CertificateStatus `json:"status"`
}

// Project reduces a certificate to its public verification fields.
func (c Certificate) Project() VerificationProjection {
	return VerificationProjection{
		CertificateNumber: c.CertificateNumber,
		DateIssued:        c.DateIssued,
		Status:            c.Status,
	}
}

// CertificateStats summarises the registry for dashboards.
type CertificateStats struct {
	Total      int64
	Valid      int64
	Superseded int64
	Revoked    int64
	Invalid    int64
}

// Add counts one certificate in the given status.
func (s *CertificateStats) Add(status CertificateStatus) {
	s.AddN(status, 1)
}

// AddN counts n certificates in the given status.
func (s *CertificateStats) AddN(status CertificateStatus, n int64) {
	s.Total += n
	switch status {
	case CertificateStatusValid:
		s.Valid += n
	case CertificateStatusSuperseded:
		s.Superseded += n
	case CertificateStatusRevoked:
		s.Revoked += n
	case CertificateStatusInvalid:
		s.Invalid += n
	}
}
