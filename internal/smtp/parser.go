package smtp

import (
	"io"
	"regexp"
	"strings"

	"github.com/jhillyerd/enmime"
	"github.com/welldanyogia/webrana-diagnostics-backend/internal/models"
	"github.com/welldanyogia/webrana-diagnostics-backend/internal/services"
)

// SUIdentifierHeader carries the service-unit identifier of an emailed report
const SUIdentifierHeader = "X-SU-Identifier"

var (
	categoryTagRe = regexp.MustCompile(`(?i)^\s*\[(normal|cr[ií]tica)\]\s*`)
	fromHeaderRe  = regexp.MustCompile(`^(?:"?([^"<]*)"?\s*)?<?([^<>]+@[^<>]+)>?$`)
	scriptStyleRe = regexp.MustCompile(`(?i)<(script|style)[^>]*>[\s\S]*?</(script|style)>`)
	htmlTagRe     = regexp.MustCompile(`<[^>]*>`)
	blankLinesRe  = regexp.MustCompile(`\n{3,}`)
)

// ParsedReport is a diagnostic report extracted from an email
type ParsedReport struct {
	Title        string
	Category     string
	SUIdentifier string
	UserName     string
	UserEmail    string
	Message      string
	Images       []services.Upload
	Videos       []services.Upload
	// Ignored counts parts that were neither images nor videos
	Ignored int
}

// Input converts the parsed email into service input
func (p *ParsedReport) Input() services.ReportInput {
	return services.ReportInput{
		Title:        p.Title,
		SUIdentifier: p.SUIdentifier,
		UserName:     p.UserName,
		UserEmail:    p.UserEmail,
		Message:      p.Message,
		Category:     p.Category,
		Source:       services.SourceSMTP,
	}
}

// ParseReportEmail parses a MIME message into a report
func ParseReportEmail(r io.Reader) (*ParsedReport, error) {
	env, err := enmime.ReadEnvelope(r)
	if err != nil {
		return nil, err
	}

	parsed := &ParsedReport{
		SUIdentifier: strings.TrimSpace(env.GetHeader(SUIdentifierHeader)),
	}
	parsed.Title, parsed.Category = splitCategoryTag(env.GetHeader("Subject"))
	parsed.UserName, parsed.UserEmail = senderOf(env)
	parsed.Message = messageBody(env.Text, env.HTML)

	for _, part := range env.Attachments {
		parsed.addPart(part)
	}
	for _, part := range env.Inlines {
		parsed.addPart(part)
	}

	return parsed, nil
}

func (p *ParsedReport) addPart(part *enmime.Part) {
	contentType := strings.ToLower(part.ContentType)
	upload := services.Upload{
		Filename:    part.FileName,
		ContentType: part.ContentType,
		Data:        part.Content,
	}

	switch {
	case strings.HasPrefix(contentType, "image/"):
		if upload.Filename == "" {
			upload.Filename = "image"
		}
		p.Images = append(p.Images, upload)
	case strings.HasPrefix(contentType, "video/"):
		if upload.Filename == "" {
			upload.Filename = "video"
		}
		p.Videos = append(p.Videos, upload)
	default:
		p.Ignored++
	}
}

// splitCategoryTag removes a leading [normal] or [critica] tag from a subject.
// An untagged subject yields an empty category.
func splitCategoryTag(subject string) (title, category string) {
	subject = strings.TrimSpace(subject)
	m := categoryTagRe.FindStringSubmatch(subject)
	if m == nil {
		return subject, ""
	}

	category = string(models.CategoryNormal)
	if !strings.EqualFold(m[1], "normal") {
		category = string(models.CategoryCritica)
	}
	return strings.TrimSpace(subject[len(m[0]):]), category
}

// senderOf returns the display name and address of the From header.
// A missing display name falls back to the address local part.
func senderOf(env *enmime.Envelope) (name, email string) {
	if list, err := env.AddressList("From"); err == nil && len(list) > 0 {
		name, email = list[0].Name, list[0].Address
	} else {
		name, email = parseFromHeader(env.GetHeader("From"))
	}

	if name == "" {
		if at := strings.LastIndex(email, "@"); at > 0 {
			name = email[:at]
		}
	}
	return strings.TrimSpace(name), strings.TrimSpace(email)
}

// parseFromHeader extracts name and email from a From header
func parseFromHeader(from string) (name, email string) {
	from = strings.TrimSpace(from)
	if from == "" {
		return "", ""
	}

	matches := fromHeaderRe.FindStringSubmatch(from)
	if len(matches) >= 3 {
		name = strings.Trim(strings.TrimSpace(matches[1]), `"`)
		email = strings.TrimSpace(matches[2])
	} else {
		email = from
	}

	return name, email
}

// messageBody prefers the plain-text part and falls back to stripped HTML
func messageBody(bodyText, bodyHTML string) string {
	text := bodyText
	if strings.TrimSpace(text) == "" && bodyHTML != "" {
		text = stripHTMLTags(bodyHTML)
	}

	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	for i, line := range lines {
		lines[i] = strings.Join(strings.Fields(line), " ")
	}
	text = blankLinesRe.ReplaceAllString(strings.Join(lines, "\n"), "\n\n")
	return strings.TrimSpace(text)
}

// stripHTMLTags removes HTML tags from a string
func stripHTMLTags(html string) string {
	html = scriptStyleRe.ReplaceAllString(html, "")
	html = htmlTagRe.ReplaceAllString(html, " ")

	// Decode common HTML entities
	html = strings.ReplaceAll(html, "&nbsp;", " ")
	html = strings.ReplaceAll(html, "&lt;", "<")
	html = strings.ReplaceAll(html, "&gt;", ">")
	html = strings.ReplaceAll(html, "&quot;", `"`)
	html = strings.ReplaceAll(html, "&#39;", "'")
	html = strings.ReplaceAll(html, "&amp;", "&")

	return html
}
