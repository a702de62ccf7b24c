// Package report renders a stored peak run as Markdown and HTML.
package report

import (
	"fmt"
	"strings"

	"tomoseq/domain/run"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

// Markdown summarizes rec: the manifest, the peak table and the skipped genes.
func Markdown(rec *run.Record) string {
	var b strings.Builder
	m := rec.Manifest

	fmt.Fprintf(&b, "# Peak run %s\n\n", m.RunID)
	fmt.Fprintf(&b, "- Created: %s\n", m.CreatedAt)
	fmt.Fprintf(&b, "- Matrix: %d genes x %d sections\n", m.Genes, m.Sections)
	fmt.Fprintf(&b, "- Input: `%s`\n", m.InputHash.Short())
	fmt.Fprintf(&b, "- Fingerprint: `%s`\n", m.Fingerprint.Fingerprint.Short())
	seedNote := "drawn"
	if m.SeedProvided {
		seedNote = "provided"
	}
	fmt.Fprintf(&b, "- Seed: %d (%s)\n", m.Seed, seedNote)
	fmt.Fprintf(&b, "- Code version: %s\n\n", m.CodeVersion)

	p := m.Params
	b.WriteString("## Parameters\n\n")
	b.WriteString("| threshold | min length | permutations | normalization | adjustment | min count | min sections |\n")
	b.WriteString("|---|---|---|---|---|---|---|\n")
	fmt.Fprintf(&b, "| %g | %d | %d | %s | %s | %g | %d |\n\n",
		p.Threshold, p.MinLength, p.Permutations, p.NormalizeMethod, p.AdjustMethod, p.MinCount, p.MinSections)

	fmt.Fprintf(&b, "## Peak genes (%d)\n\n", len(rec.Peaks))
	if len(rec.Peaks) == 0 {
		b.WriteString("No gene has a qualifying run.\n\n")
	} else {
		b.WriteString("| gene | start | end | center | statistic | p | adjusted p |\n")
		b.WriteString("|---|---|---|---|---|---|---|\n")
		for _, r := range rec.Peaks {
			fmt.Fprintf(&b, "| %s | %d | %d | %d | %.4g | %.4g | %.4g |\n",
				escapeCell(r.Gene), r.Start, r.End, r.Center, r.Statistic, r.PValue, r.AdjustedPValue)
		}
		b.WriteString("\n")
	}

	if len(rec.Skipped) > 0 {
		fmt.Fprintf(&b, "## Skipped genes (%d)\n\n", len(rec.Skipped))
		b.WriteString("| gene | stage | reason |\n")
		b.WriteString("|---|---|---|\n")
		for _, s := range rec.Skipped {
			fmt.Fprintf(&b, "| %s | %s | %s |\n", escapeCell(s.Gene), s.Stage, s.Reason)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// HTML renders the Markdown summary as a standalone page. Gene names come
// from user input, so raw HTML is dropped and only safe links are rendered.
func HTML(rec *run.Record) []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	renderer := html.NewRenderer(html.RendererOptions{
		Flags: html.CommonFlags | html.CompletePage | html.SkipHTML | html.Safelink,
		Title: fmt.Sprintf("Peak run %s", rec.Manifest.RunID),
	})
	return markdown.ToHTML([]byte(Markdown(rec)), p, renderer)
}

// escapeCell backslash-escapes the characters that would start markup in a
// table cell.
func escapeCell(s string) string {
	var b strings.Builder
	for _, r := range s {
		if strings.ContainsRune("\\`*_[]<>|&", r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
