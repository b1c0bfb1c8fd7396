package jobs

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/reperio/internal/models"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// ReportAssembler merges the identification candidate and supplier results
// into the final report payload and renders it for display.
type ReportAssembler struct {
	markdown goldmark.Markdown
	logger   arbor.ILogger
}

// NewReportAssembler creates a report assembler
func NewReportAssembler(logger arbor.ILogger) *ReportAssembler {
	return &ReportAssembler{
		markdown: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(html.WithHardWraps()),
		),
		logger: logger,
	}
}

// Assemble builds the report payload. Successful suppliers are listed before
// failed ones; within each group completion order is preserved.
func (a *ReportAssembler) Assemble(candidate *models.IdentificationCandidate, results []*models.SupplierResult) *models.ReportPayload {
	suppliers := make([]*models.SupplierResult, 0, len(results))
	succeeded := 0
	for _, r := range results {
		if r.Success {
			suppliers = append(suppliers, r)
			succeeded++
		}
	}
	for _, r := range results {
		if !r.Success {
			suppliers = append(suppliers, r)
		}
	}

	return &models.ReportPayload{
		Identification: candidate,
		Suppliers:      suppliers,
		GeneratedAt:    time.Now(),
		SucceededCount: succeeded,
		FailedCount:    len(results) - succeeded,
	}
}

// RenderHTML renders the report as an HTML fragment for the preview endpoint
func (a *ReportAssembler) RenderHTML(report *models.ReportPayload) (string, error) {
	var buf bytes.Buffer
	if err := a.markdown.Convert([]byte(a.renderMarkdown(report)), &buf); err != nil {
		return "", fmt.Errorf("failed to render report: %w", err)
	}
	return buf.String(), nil
}

// renderMarkdown produces the markdown source of the report
func (a *ReportAssembler) renderMarkdown(report *models.ReportPayload) string {
	var b strings.Builder

	ident := report.Identification
	fmt.Fprintf(&b, "# %s\n\n", ident.PartName)
	if ident.Category != "" {
		fmt.Fprintf(&b, "**Category:** %s  \n", ident.Category)
	}
	fmt.Fprintf(&b, "**Confidence:** %.0f%%\n\n", ident.Confidence*100)
	if ident.RawDescription != "" {
		fmt.Fprintf(&b, "%s\n\n", ident.RawDescription)
	}

	fmt.Fprintf(&b, "## Suppliers (%d found, %d unavailable)\n\n", report.SucceededCount, report.FailedCount)

	for _, s := range report.Suppliers {
		if !s.Success {
			continue
		}
		name := s.CompanyName
		if name == "" {
			name = s.URL
		}
		fmt.Fprintf(&b, "### %s\n\n", name)
		fmt.Fprintf(&b, "<%s>\n\n", s.URL)
		if s.PriceText != "" {
			fmt.Fprintf(&b, "**Price:** %s  \n", s.PriceText)
		}
		for _, email := range s.Contact.Emails {
			fmt.Fprintf(&b, "**Email:** %s  \n", email)
		}
		for _, phone := range s.Contact.Phones {
			fmt.Fprintf(&b, "**Phone:** %s  \n", phone)
		}
		for _, addr := range s.Contact.Addresses {
			fmt.Fprintf(&b, "**Address:** %s  \n", addr)
		}
		if s.Contact.BusinessHours != "" {
			fmt.Fprintf(&b, "**Hours:** %s  \n", s.Contact.BusinessHours)
		}
		b.WriteString("\n")
	}

	if report.FailedCount > 0 {
		b.WriteString("## Unavailable suppliers\n\n")
		for _, s := range report.Suppliers {
			if s.Success {
				continue
			}
			fmt.Fprintf(&b, "- <%s> (%s)\n", s.URL, s.ErrorReason)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "_Generated %s_\n", report.GeneratedAt.Format(time.RFC1123))
	return b.String()
}
