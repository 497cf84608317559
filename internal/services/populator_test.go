package services

import (
	"errors"
	"strings"
	"testing"

	"github.com/Josebert2001/ibeno-origin-scribe/internal/domain"
)

func sampleData() domain.CertificateData {
	return domain.CertificateData{
		OurRef:            "IBN/LGA/ORG/2025/0001",
		YourRef:           "IBN/ORG/2025/0001",
		DateIssued:        "2025-01-05",
		CertificateNumber: "IBN25 0001",
		BearerName:        "Jane Doe",
		NativeOf:          "Okposo",
		Village:           "Upenekang",
		QRCodeData:        "https://origin.example.gov/verify?cert_id=IBN25%200001",
	}
}

func sampleImages() RenderImages {
	return RenderImages{QRCode: pngDataURIPrefix + "QRDATA", LogoBase64: "LOGODATA"}
}

func TestPopulateReplacesTokens(t *testing.T) {
	template := `<p>{{ourRef}}|{{ yourRef }}|{{date}}|{{certificateNumber}}|{{full_name}}|{{bearerName}}|{{clan}}|{{nativeOf}}|{{village}}</p>` +
		`<img src="data:image/png;base64,{{logoBase64}}"/><div>{{qrCode}}</div><div>{{passportPhoto}}</div>`

	html, err := Populate(template, sampleData(), sampleImages())
	if err != nil {
		t.Fatalf("populate: %v", err)
	}
	expectedText := "<p>IBN/LGA/ORG/2025/0001|IBN/ORG/2025/0001|5 January 2025|IBN25 0001|Jane Doe|Jane Doe|Okposo|Okposo|Upenekang</p>"
	if !strings.HasPrefix(html, expectedText) {
		t.Fatalf("unexpected text substitution:\n%s", html)
	}
	if !strings.Contains(html, `src="data:image/png;base64,LOGODATA"`) {
		t.Fatalf("expected logo substituted, got %s", html)
	}
	qrMarkup := `<img src="data:image/png;base64,QRDATA" alt="QR Code for Certificate Verification" style="width: 100%; height: 100%; object-fit: contain;" />`
	if !strings.Contains(html, "<div>"+qrMarkup+"</div>") {
		t.Fatalf("expected qr markup, got %s", html)
	}
	if !strings.Contains(html, "<div>Passport Photo</div>") {
		t.Fatalf("expected passport placeholder text, got %s", html)
	}
}

func TestPopulateUsesDataURIInsideAttributes(t *testing.T) {
	html, err := Populate(`<img class="qr" src="{{qrCode}}" />`, sampleData(), sampleImages())
	if err != nil {
		t.Fatalf("populate: %v", err)
	}
	if html != `<img class="qr" src="data:image/png;base64,QRDATA" />` {
		t.Fatalf("unexpected output %s", html)
	}
}

func TestPopulateLeavesUnknownTokens(t *testing.T) {
	html, err := Populate("<p>{{unknown}} {{ village }}</p>", sampleData(), sampleImages())
	if err != nil {
		t.Fatalf("populate: %v", err)
	}
	if html != "<p>{{unknown}} Upenekang</p>" {
		t.Fatalf("unexpected output %s", html)
	}
}

func TestPopulateReplacesElementContent(t *testing.T) {
	template := `<span id="bearer_name" class="field placeholder">Full name here</span>` +
		`<div id="village" class="placeholder"><b>nested</b> text</div>` +
		`<div id="qr_code_placeholder"><div>old</div></div>` +
		`<img id="logo" src="old.png" alt="logo">` +
		`<img id="qr_code" alt="qr" />`

	data := sampleData()
	images := sampleImages()
	images.PassportPhoto = "data:image/jpeg;base64,PHOTO"

	html, err := Populate(template, data, images)
	if err != nil {
		t.Fatalf("populate: %v", err)
	}
	expected := []string{
		`<span id="bearer_name" class="field">Jane Doe</span>`,
		`<div id="village">Upenekang</div>`,
		`<div id="qr_code_placeholder">` + imageMarkup(images.QRCode, qrImageAlt) + `</div>`,
		`<img id="logo" src="data:image/png;base64,LOGODATA" alt="logo">`,
		`<img id="qr_code" alt="qr" src="data:image/png;base64,QRDATA" />`,
	}
	for _, fragment := range expected {
		if !strings.Contains(html, fragment) {
			t.Fatalf("expected %s in\n%s", fragment, html)
		}
	}
}

func TestPopulateIsIdempotent(t *testing.T) {
	images := sampleImages()
	images.PassportPhoto = "data:image/jpeg;base64,PHOTO"

	first, err := Populate(embeddedTemplate, sampleData(), images)
	if err != nil {
		t.Fatalf("populate: %v", err)
	}
	if strings.Contains(first, "{{") {
		t.Fatalf("expected every token replaced in embedded template")
	}
	if strings.Contains(first, "field placeholder") || strings.Contains(first, `class="placeholder"`) {
		t.Fatalf("expected placeholder classes removed")
	}
	second, err := Populate(first, sampleData(), images)
	if err != nil {
		t.Fatalf("populate again: %v", err)
	}
	if first != second {
		t.Fatalf("expected second pass to be a no-op")
	}
}

func TestPopulateRejectsEmptyTemplate(t *testing.T) {
	_, err := Populate("   \n", sampleData(), sampleImages())
	var renderErr *RenderError
	if !errors.As(err, &renderErr) {
		t.Fatalf("expected render error, got %v", err)
	}
}

func TestFormatDisplayDate(t *testing.T) {
	cases := map[string]string{
		"2025-01-05": "5 January 2025",
		"2024-12-31": "31 December 2024",
		"yesterday":  "yesterday",
	}
	for input, expected := range cases {
		if got := FormatDisplayDate(input); got != expected {
			t.Errorf("FormatDisplayDate(%q): expected %q, got %q", input, expected, got)
		}
	}
}
