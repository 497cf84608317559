package storage

import (
	"fmt"
	"strings"

	"github.com/Josebert2001/ibeno-origin-scribe/internal/domain"
)

// PathParams identify the certificate an artifact belongs to.
type PathParams struct {
	DateIssued        string
	CertificateNumber string
	Kind              domain.ArtifactKind
}

// BuildCertificatePath composes certificates/<year>/<number-slug>/certificate.<ext>.
func BuildCertificatePath(params PathParams) (string, error) {
	year := strings.TrimSpace(params.DateIssued)
	if len(year) < 4 {
		return "", fmt.Errorf("storage: issue year is required")
	}
	year, err := validateSegment("year", year[:4])
	if err != nil {
		return "", err
	}
	slug, err := validateSegment("certificateNumber", NumberSlug(params.CertificateNumber))
	if err != nil {
		return "", err
	}
	var fileName string
	switch params.Kind {
	case domain.ArtifactHTML:
		fileName = "certificate.html"
	case domain.ArtifactPDF:
		fileName = "certificate.pdf"
	default:
		return "", fmt.Errorf("storage: unsupported artifact kind %q", params.Kind)
	}
	return fmt.Sprintf("certificates/%s/%s/%s", year, slug, fileName), nil
}

// NumberSlug lowercases a certificate number and joins its parts with dashes.
func NumberSlug(number string) string {
	return strings.ToLower(strings.Join(strings.Fields(number), "-"))
}

func validateSegment(name, value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", fmt.Errorf("storage: %s is required", name)
	}
	if strings.ContainsAny(value, "/\\") {
		return "", fmt.Errorf("storage: %s contains invalid path characters", name)
	}
	if strings.Contains(value, "..") {
		return "", fmt.Errorf("storage: %s contains invalid traversal sequence", name)
	}
	return value, nil
}
