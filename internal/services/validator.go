package services

import (
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/Josebert2001/ibeno-origin-scribe/internal/domain"
)

const (
	minFreeTextLength = 2
	maxFreeTextLength = 100
)

var (
	datePattern              = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	certificateNumberPattern = regexp.MustCompile(`^IBN\d{2}\s\d{4}$`)
	bearerNamePattern        = regexp.MustCompile(`^[\p{L}\s'.-]+$`)

	requiredCertificateFields = []string{
		"ourRef", "yourRef", "dateIssued", "certificateNumber",
		"bearerName", "nativeOf", "village", "qrCodeData",
	}

	// Braces are stripped so free text can never form a template token.
	sanitizer = strings.NewReplacer("<", "", ">", "", "&", "&amp;", `"`, "", "'", "", "{", "", "}", "")
)

// ValidateCertificateInput turns a decoded request body into render data. It performs no I/O.
func ValidateCertificateInput(input map[string]any) (domain.CertificateData, error) {
	values := make(map[string]string, len(requiredCertificateFields))
	for _, field := range requiredCertificateFields {
		raw, ok := input[field].(string)
		if !ok || raw == "" {
			return domain.CertificateData{}, newValidationError(field, "missing or invalid field: "+field)
		}
		values[field] = raw
	}

	if !validDate(values["dateIssued"]) {
		return domain.CertificateData{}, newValidationError("dateIssued", "invalid date format")
	}
	if !certificateNumberPattern.MatchString(values["certificateNumber"]) {
		return domain.CertificateData{}, newValidationError("certificateNumber", "invalid certificate number format")
	}

	data := domain.CertificateData{
		OurRef:            Sanitize(values["ourRef"]),
		YourRef:           Sanitize(values["yourRef"]),
		DateIssued:        values["dateIssued"],
		CertificateNumber: values["certificateNumber"],
		BearerName:        Sanitize(values["bearerName"]),
		NativeOf:          Sanitize(values["nativeOf"]),
		Village:           Sanitize(values["village"]),
		QRCodeData:        values["qrCodeData"],
	}

	for _, check := range []struct{ field, value string }{
		{"bearerName", data.BearerName},
		{"nativeOf", data.NativeOf},
		{"village", data.Village},
	} {
		if err := checkLength(check.field, check.value); err != nil {
			return domain.CertificateData{}, err
		}
	}

	if !validAbsoluteURL(data.QRCodeData) {
		return domain.CertificateData{}, newValidationError("qrCodeData", "invalid QR code URL")
	}

	if raw, present := input["passportPhoto"]; present && raw != nil {
		photo, ok := raw.(string)
		if !ok {
			return domain.CertificateData{}, newValidationError("passportPhoto", "missing or invalid field: passportPhoto")
		}
		data.PassportPhoto = photo
	}
	return data, nil
}

// CertificateDataFromRecord builds render data from a stored record. Stored values were sanitized on create.
func CertificateDataFromRecord(certificate domain.Certificate) domain.CertificateData {
	return domain.CertificateData{
		OurRef:            certificate.OurRef,
		YourRef:           certificate.YourRef,
		DateIssued:        certificate.DateIssued,
		CertificateNumber: certificate.CertificateNumber,
		BearerName:        certificate.BearerName,
		NativeOf:          certificate.NativeOf,
		Village:           certificate.Village,
		QRCodeData:        certificate.QRCodeData,
		PassportPhoto:     certificate.PassportPhoto,
	}
}

// Sanitize normalises free text for safe inclusion in the certificate template.
func Sanitize(value string) string {
	value = norm.NFC.String(value)
	value = sanitizer.Replace(value)
	value = strings.TrimSpace(value)
	if utf8.RuneCountInString(value) > maxFreeTextLength {
		value = string([]rune(value)[:maxFreeTextLength])
	}
	return value
}

func checkLength(field, value string) error {
	n := utf8.RuneCountInString(value)
	if n < minFreeTextLength || n > maxFreeTextLength {
		return newValidationError(field, field+" must be between 2 and 100 characters")
	}
	return nil
}

func validDate(value string) bool {
	if !datePattern.MatchString(value) {
		return false
	}
	_, err := time.Parse("2006-01-02", value)
	return err == nil
}

func validAbsoluteURL(value string) bool {
	parsed, err := url.Parse(value)
	if err != nil {
		return false
	}
	return parsed.Scheme != "" && parsed.Host != ""
}
