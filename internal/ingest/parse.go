package ingest

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"html"
	"io"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/oncotarget/engine/internal/document"
)

// headingKeywords drives PDF section inference: a line is treated as a
// section heading if its lowercased form contains one of these as a
// substring (§4.3 Stage 4).
var headingKeywords = map[string]document.SectionType{
	"abstract":     document.SectionAbstract,
	"introduction": document.SectionIntroduction,
	"method":       document.SectionMethods,
	"material":     document.SectionMethods,
	"result":       document.SectionResults,
	"discussion":   document.SectionDiscussion,
	"conclusion":   document.SectionConclusion,
}

// jatsSecTypes maps PMC/JATS sec-type attribute values to the canonical
// section enum; unrecognized values fall back to keyword matching on the
// section's own title.
var jatsSecTypes = map[string]document.SectionType{
	"abstract":    document.SectionAbstract,
	"intro":       document.SectionIntroduction,
	"introduction": document.SectionIntroduction,
	"methods":     document.SectionMethods,
	"materials":   document.SectionMethods,
	"results":     document.SectionResults,
	"discussion":  document.SectionDiscussion,
	"conclusions": document.SectionConclusion,
	"supplementary-material": document.SectionSupplementary,
}

var (
	xrefPattern = regexp.MustCompile(`<xref[^>]*\brid="([^"]+)"[^>]*>.*?</xref>`)
	tagPattern  = regexp.MustCompile(`<[^>]+>`)
)

// renderInline strips JATS markup from a paragraph's inner XML, rewriting
// bibliographic cross-references to "[ref:ID]" so the citation anchor
// survives into the chunked text (§4.3 Stage 4: "preserve inline citation
// anchors").
func renderInline(innerXML string) string {
	s := xrefPattern.ReplaceAllString(innerXML, "[ref:$1]")
	s = tagPattern.ReplaceAllString(s, "")
	return strings.TrimSpace(html.UnescapeString(s))
}

type jatsCell struct {
	Inner string `xml:",innerxml"`
}

type jatsRow struct {
	Header []jatsCell `xml:"th"`
	Cells  []jatsCell `xml:"td"`
}

type jatsTableWrap struct {
	Label string `xml:"label"`
	Rows  []jatsRow `xml:"table>tbody>tr"`
}

type jatsFigure struct {
	Label   string `xml:"label"`
	Caption struct {
		Paragraphs []jatsCell `xml:"p"`
	} `xml:"caption"`
}

type jatsParagraph struct {
	Inner string `xml:",innerxml"`
}

type jatsSection struct {
	Type        string          `xml:"sec-type,attr"`
	Title       string          `xml:"title"`
	Paragraphs  []jatsParagraph `xml:"p"`
	Tables      []jatsTableWrap `xml:"table-wrap"`
	Figures     []jatsFigure    `xml:"fig"`
	Subsections []jatsSection   `xml:"sec"`
}

type jatsArticle struct {
	XMLName xml.Name `xml:"article"`
	Body    struct {
		Sections []jatsSection `xml:"sec"`
	} `xml:"body"`
}

// sectionTypeForJATS resolves a <sec> element's canonical kind, preferring
// its sec-type attribute and falling back to keyword-matching the title the
// same way PDF parsing does.
func sectionTypeForJATS(secType, title string) document.SectionType {
	if t, ok := jatsSecTypes[strings.ToLower(secType)]; ok {
		return t
	}
	lower := strings.ToLower(title)
	for kw, t := range headingKeywords {
		if strings.Contains(lower, kw) {
			return t
		}
	}
	return document.SectionOther
}

// serializeRow renders one table row as "col: val | col: val", pairing
// each data cell positionally with the table's header labels; a cell with no
// matching label is written bare (§4.3 Stage 4: "preserve table row-groups").
func serializeRow(headers []string, row jatsRow) string {
	cells := row.Cells
	var parts []string
	for i, c := range cells {
		val := renderInline(c.Inner)
		if i < len(headers) && headers[i] != "" {
			parts = append(parts, fmt.Sprintf("%s: %s", headers[i], val))
		} else {
			parts = append(parts, val)
		}
	}
	return strings.Join(parts, " | ")
}

func headerLabels(rows []jatsRow) []string {
	for _, r := range rows {
		if len(r.Header) > 0 {
			labels := make([]string, len(r.Header))
			for i, c := range r.Header {
				labels[i] = renderInline(c.Inner)
			}
			return labels
		}
	}
	return nil
}

// ParseJATS parses PMC structured XML into ordered ParsedSections, preserving
// table row-groups and inline citation anchors (§4.3 Stage 4, tier 1 of
// Stage 3's retrieval ladder).
func ParseJATS(data []byte) ([]ParsedSection, error) {
	var article jatsArticle
	if err := xml.Unmarshal(data, &article); err != nil {
		return nil, fmt.Errorf("ingest: parse JATS XML: %w", err)
	}

	var sections []ParsedSection
	var walk func(secs []jatsSection)
	walk = func(secs []jatsSection) {
		for _, sec := range secs {
			title := sec.Title
			var content strings.Builder
			for _, p := range sec.Paragraphs {
				content.WriteString(renderInline(p.Inner))
				content.WriteString(" ")
			}
			sections = append(sections, ParsedSection{
				Type:    sectionTypeForJATS(sec.Type, title),
				Heading: nonEmptyPtr(title),
				Content: strings.TrimSpace(content.String()),
			})

			for _, tbl := range sec.Tables {
				headers := headerLabels(tbl.Rows)
				var rowGroups []string
				for _, row := range tbl.Rows {
					if len(row.Cells) == 0 {
						continue
					}
					rowGroups = append(rowGroups, serializeRow(headers, row))
				}
				if len(rowGroups) > 0 {
					sections = append(sections, ParsedSection{
						Type: document.SectionTable, Heading: nonEmptyPtr(tbl.Label), RowGroups: rowGroups,
					})
				}
			}

			for _, fig := range sec.Figures {
				var caption strings.Builder
				for _, p := range fig.Caption.Paragraphs {
					caption.WriteString(renderInline(p.Inner))
					caption.WriteString(" ")
				}
				if caption.Len() > 0 {
					sections = append(sections, ParsedSection{
						Type: document.SectionFigureCaption, Heading: nonEmptyPtr(fig.Label),
						Content: strings.TrimSpace(caption.String()),
					})
				}
			}

			walk(sec.Subsections)
		}
	}
	walk(article.Body.Sections)
	return sections, nil
}

func nonEmptyPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// ParsePDF extracts plain text from a PDF and infers section boundaries by
// case-insensitive keyword matching on short candidate heading lines (§4.3
// Stage 4, tiers 2/4/5 of the retrieval ladder).
func ParsePDF(data []byte) ([]ParsedSection, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("ingest: open PDF: %w", err)
	}
	textReader, err := r.GetPlainText()
	if err != nil {
		return nil, fmt.Errorf("ingest: extract PDF text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, textReader); err != nil {
		return nil, fmt.Errorf("ingest: read PDF text: %w", err)
	}

	return sectionizeByHeading(buf.String()), nil
}

// sectionizeByHeading is the keyword-matching inference shared by all PDF
// fetch tiers.
func sectionizeByHeading(text string) []ParsedSection {
	lines := strings.Split(text, "\n")

	var sections []ParsedSection
	current := document.SectionOther
	var buf strings.Builder

	flush := func() {
		content := strings.TrimSpace(buf.String())
		if content != "" {
			sections = append(sections, ParsedSection{Type: current, Content: content})
		}
		buf.Reset()
	}

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if matched, ok := matchHeading(trimmed); ok {
			flush()
			current = matched
			continue
		}
		buf.WriteString(line)
		buf.WriteString("\n")
	}
	flush()
	return sections
}

// matchHeading treats short lines (heading candidates, not body paragraphs)
// whose lowercased text contains a known keyword as a section boundary.
func matchHeading(line string) (document.SectionType, bool) {
	if line == "" || len(line) > 60 {
		return "", false
	}
	lower := strings.ToLower(line)
	for kw, t := range headingKeywords {
		if strings.Contains(lower, kw) {
			return t, true
		}
	}
	return "", false
}
