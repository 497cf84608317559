package services

import (
	"regexp"
	"strings"
	"time"

	"github.com/Josebert2001/ibeno-origin-scribe/internal/domain"
)

const (
	qrImageAlt           = "QR Code for Certificate Verification"
	passportPhotoAlt     = "Passport Photo"
	passportPhotoMissing = "Passport Photo"
	placeholderClass     = "placeholder"
)

var (
	tokenPattern     = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_]*)\s*\}\}`)
	openTagPattern   = regexp.MustCompile(`<([a-zA-Z][a-zA-Z0-9-]*)(\s[^<>]*?)?(/?)>`)
	idAttrPattern    = regexp.MustCompile(`(?:^|\s)id\s*=\s*(?:"([^"]*)"|'([^']*)')`)
	srcAttrPattern   = regexp.MustCompile(`(\s)src\s*=\s*(?:"[^"]*"|'[^']*'|[^\s"'=<>]+)`)
	classAttrPattern = regexp.MustCompile(`\sclass\s*=\s*(?:"([^"]*)"|'([^']*)')`)

	voidElements = map[string]struct{}{
		"area": {}, "base": {}, "br": {}, "col": {}, "embed": {}, "hr": {}, "img": {},
		"input": {}, "link": {}, "meta": {}, "source": {}, "track": {}, "wbr": {},
	}
)

// RenderImages are the data URIs and base64 payloads embedded into the document.
type RenderImages struct {
	QRCode        string
	LogoBase64    string
	PassportPhoto string
}

// Populate substitutes certificate values into the template. Values are inserted verbatim, so
// callers must pass sanitized data. Populating an already populated document is a no-op.
func Populate(template string, data domain.CertificateData, images RenderImages) (string, error) {
	if strings.TrimSpace(template) == "" {
		return "", &RenderError{Message: "certificate template is empty"}
	}

	date := FormatDisplayDate(data.DateIssued)
	qrMarkup := imageMarkup(images.QRCode, qrImageAlt)
	photoMarkup := passportPhotoMissing
	if images.PassportPhoto != "" {
		photoMarkup = imageMarkup(images.PassportPhoto, passportPhotoAlt)
	}

	text := map[string]string{
		"ourRef":            data.OurRef,
		"yourRef":           data.YourRef,
		"date":              date,
		"certificateNumber": data.CertificateNumber,
		"full_name":         data.BearerName,
		"bearerName":        data.BearerName,
		"clan":              data.NativeOf,
		"nativeOf":          data.NativeOf,
		"village":           data.Village,
		"logoBase64":        images.LogoBase64,
	}
	markup := map[string][2]string{
		"qrCode":        {qrMarkup, images.QRCode},
		"passportPhoto": {photoMarkup, images.PassportPhoto},
	}

	document := replaceTokens(template, func(name string, inTag bool) (string, bool) {
		if value, ok := text[name]; ok {
			return value, true
		}
		if pair, ok := markup[name]; ok {
			if inTag {
				return pair[1], true
			}
			return pair[0], true
		}
		return "", false
	})

	content := map[string]string{
		"our_ref":             data.OurRef,
		"your_ref":            data.YourRef,
		"date":                date,
		"certificate_number":  data.CertificateNumber,
		"bearer_name":         data.BearerName,
		"native_of":           data.NativeOf,
		"village":             data.Village,
		"qr_code_placeholder": qrMarkup,
		"passport_photo":      photoMarkup,
	}
	sources := map[string]string{
		"qr_code": images.QRCode,
	}
	if images.LogoBase64 != "" {
		sources["logo"] = pngDataURIPrefix + images.LogoBase64
	}
	return replaceElements(document, content, sources), nil
}

// FormatDisplayDate renders YYYY-MM-DD as "5 January 2025". Other input is returned unchanged.
func FormatDisplayDate(value string) string {
	parsed, err := time.Parse("2006-01-02", strings.TrimSpace(value))
	if err != nil {
		return value
	}
	return parsed.Format("2 January 2006")
}

func imageMarkup(src, alt string) string {
	return `<img src="` + src + `" alt="` + alt + `" style="width: 100%; height: 100%; object-fit: contain;" />`
}

func replaceTokens(document string, resolve func(name string, inTag bool) (string, bool)) string {
	matches := tokenPattern.FindAllStringSubmatchIndex(document, -1)
	if len(matches) == 0 {
		return document
	}
	var b strings.Builder
	b.Grow(len(document))
	last := 0
	for _, m := range matches {
		name := document[m[2]:m[3]]
		value, ok := resolve(name, insideTag(document, m[0]))
		if !ok {
			continue
		}
		b.WriteString(document[last:m[0]])
		b.WriteString(value)
		last = m[1]
	}
	b.WriteString(document[last:])
	return b.String()
}

func insideTag(document string, pos int) bool {
	prefix := document[:pos]
	return strings.LastIndexByte(prefix, '<') > strings.LastIndexByte(prefix, '>')
}

func replaceElements(document string, content, sources map[string]string) string {
	var b strings.Builder
	b.Grow(len(document))
	i := 0
	for i < len(document) {
		m := openTagPattern.FindStringSubmatchIndex(document[i:])
		if m == nil {
			break
		}
		start, end := i+m[0], i+m[1]
		name := document[i+m[2] : i+m[3]]
		attrs := ""
		if m[4] >= 0 {
			attrs = document[i+m[4] : i+m[5]]
		}
		selfClosing := m[7] > m[6]
		tag := strings.ToLower(name)
		id := attributeID(attrs)

		b.WriteString(document[i:start])

		if src, ok := sources[id]; ok && tag == "img" {
			b.WriteString(rebuildTag(name, setSource(attrs, src), selfClosing))
			i = end
			continue
		}
		value, ok := content[id]
		_, void := voidElements[tag]
		if !ok || selfClosing || void {
			b.WriteString(document[start:end])
			i = end
			continue
		}
		closeStart, closeEnd := findClosingTag(document, end, tag)
		if closeStart < 0 {
			b.WriteString(document[start:end])
			i = end
			continue
		}
		b.WriteString(rebuildTag(name, removeClass(attrs, placeholderClass), false))
		b.WriteString(value)
		b.WriteString(document[closeStart:closeEnd])
		i = closeEnd
	}
	b.WriteString(document[i:])
	return b.String()
}

func attributeID(attrs string) string {
	m := idAttrPattern.FindStringSubmatch(attrs)
	if m == nil {
		return ""
	}
	if m[1] != "" {
		return m[1]
	}
	return m[2]
}

func rebuildTag(name, attrs string, selfClosing bool) string {
	if selfClosing {
		return "<" + name + attrs + "/>"
	}
	return "<" + name + attrs + ">"
}

// findClosingTag returns the bounds of the close tag matching an element opened before from.
func findClosingTag(document string, from int, tag string) (int, int) {
	pattern := regexp.MustCompile(`(?i)<(/?)` + regexp.QuoteMeta(tag) + `(?:\s[^<>]*?)?(/?)>`)
	depth := 1
	offset := from
	for {
		m := pattern.FindStringSubmatchIndex(document[offset:])
		if m == nil {
			return -1, -1
		}
		start, end := offset+m[0], offset+m[1]
		closing := m[3] > m[2]
		selfClosing := m[5] > m[4]
		switch {
		case closing:
			depth--
			if depth == 0 {
				return start, end
			}
		case !selfClosing:
			depth++
		}
		offset = end
	}
}

func setSource(attrs, src string) string {
	m := srcAttrPattern.FindStringSubmatchIndex(attrs)
	if m == nil {
		return strings.TrimRight(attrs, " ") + ` src="` + src + `" `
	}
	return attrs[:m[0]] + attrs[m[2]:m[3]] + `src="` + src + `"` + attrs[m[1]:]
}

func removeClass(attrs, class string) string {
	m := classAttrPattern.FindStringSubmatchIndex(attrs)
	if m == nil {
		return attrs
	}
	value := ""
	if m[2] >= 0 {
		value = attrs[m[2]:m[3]]
	} else if m[4] >= 0 {
		value = attrs[m[4]:m[5]]
	}
	kept := make([]string, 0, 4)
	for _, name := range strings.Fields(value) {
		if name != class {
			kept = append(kept, name)
		}
	}
	if len(kept) == 0 {
		return attrs[:m[0]] + attrs[m[1]:]
	}
	return attrs[:m[0]] + ` class="` + strings.Join(kept, " ") + `"` + attrs[m[1]:]
}
