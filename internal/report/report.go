// Package report renders analysis results as PDF documents.
package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-pdf/fpdf"

	"github.com/techopsonedev/onedev/apimodels"
	"github.com/techopsonedev/onedev/internal/config"
)

// US Letter in points. Layout coordinates grow upwards from the bottom edge.
const (
	pageHeight = 792.0

	marginLeft   = 50.0
	indentLeft   = 70.0
	topY         = 750.0
	bottomY      = 100.0
	footerY      = 50.0
	notAvailable = "N/A"
)

// Font is a core font face.
type Font struct {
	Style string // "", "B" or "I"
	Size  float64
}

var (
	fontTitle      = Font{Style: "B", Size: 16}
	fontSection    = Font{Style: "B", Size: 14}
	fontBody       = Font{Size: 12}
	fontCategory   = Font{Style: "B", Size: 12}
	fontSuggestion = Font{Size: 10}
	fontFooter     = Font{Style: "I", Size: 10}
)

// Line is one string drawn at (X, Y).
type Line struct {
	X, Y float64
	Font Font
	Text string
}

// Page is the content of one page, without the footer.
type Page struct {
	Lines []Line
}

// Document is the computed layout of a report.
type Document struct {
	Title  string
	Footer string
	Pages  []Page
}

type Renderer struct {
	cfg   *config.ReportConfig
	group string
	now   func() time.Time
}

func NewRenderer(cfg *config.ReportConfig, group string) *Renderer {
	return &Renderer{cfg: cfg, group: group, now: time.Now}
}

// Layout places every line of the report. It always yields at least one page.
func (r *Renderer) Layout(result apimodels.AnalysisResult, projectName string) Document {
	doc := Document{
		Title:  fmt.Sprintf("%s Analysis Report - %s", r.cfg.Product, projectName),
		Footer: fmt.Sprintf("Generated by %s - %s Group - CI/CD Automation", r.cfg.Product, r.group),
	}
	page := &Page{}
	draw := func(x, y float64, f Font, text string) {
		page.Lines = append(page.Lines, Line{X: x, Y: y, Font: f, Text: text})
	}
	newPage := func() {
		doc.Pages = append(doc.Pages, *page)
		page = &Page{}
	}

	draw(marginLeft, topY, fontTitle, doc.Title)
	draw(marginLeft, 720, fontBody, "Generated on "+r.now().Format("02/01/2006 at 15:04"))
	draw(marginLeft, 700, fontBody, fmt.Sprintf("%s Group - CI/CD Automation & AI Analysis", r.group))

	y := 650.0
	draw(marginLeft, y, fontSection, "Test Statistics")
	y -= 30
	for _, stat := range []string{
		"Tests executed: " + strconv.Itoa(result.TestsExecuted),
		"Failures detected: " + strconv.Itoa(result.Failures),
		"Pipeline ID: " + orNA(result.PipelineID),
		"S3 Location: " + orNA(result.S3Location),
	} {
		draw(marginLeft, y, fontBody, stat)
		y -= 20
	}

	y -= 30
	draw(marginLeft, y, fontSection, "AI Improvement Suggestions")
	y -= 30

	for i, s := range result.Suggestions {
		if y < bottomY {
			newPage()
			y = topY
		}
		draw(marginLeft, y, fontCategory, fmt.Sprintf("%d. %s", i+1, orNA(s.Category)))
		y -= 15

		text := orNA(s.Recommendation)
		if utf8.RuneCountInString(text) <= r.cfg.WrapCols {
			draw(indentLeft, y, fontSuggestion, text)
			y -= 15
		} else {
			for _, line := range Wrap(text, r.cfg.WrapCols) {
				if y < bottomY {
					newPage()
					y = topY
				}
				draw(indentLeft, y, fontSuggestion, line)
				y -= 12
			}
		}
		y -= 10
	}
	newPage()
	return doc
}

// Render writes the report as a PDF to w.
func (r *Renderer) Render(w io.Writer, result apimodels.AnalysisResult, projectName string) error {
	doc := r.Layout(result, projectName)

	pdf := fpdf.New("P", "pt", "Letter", "")
	pdf.SetTitle(doc.Title, true)
	pdf.SetCreator(r.cfg.Product, true)
	pdf.SetAutoPageBreak(false, 0)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFooterFunc(func() {
		setFont(pdf, fontFooter)
		pdf.Text(marginLeft, pageHeight-footerY, tr(doc.Footer))
	})

	for _, page := range doc.Pages {
		pdf.AddPage()
		for _, l := range page.Lines {
			setFont(pdf, l.Font)
			pdf.Text(l.X, pageHeight-l.Y, tr(l.Text))
		}
	}
	return pdf.Output(w)
}

func setFont(pdf *fpdf.Fpdf, f Font) {
	pdf.SetFont("Helvetica", f.Style, f.Size)
}

// Wrap greedily packs the words of text into lines of at most width columns.
// A word longer than width gets a line of its own.
func Wrap(text string, width int) []string {
	var lines []string
	var current []string
	n := 0
	for _, word := range strings.Fields(text) {
		w := utf8.RuneCountInString(word)
		switch {
		case len(current) == 0:
			current, n = []string{word}, w
		case n+1+w <= width:
			current = append(current, word)
			n += 1 + w
		default:
			lines = append(lines, strings.Join(current, " "))
			current, n = []string{word}, w
		}
	}
	if len(current) > 0 {
		lines = append(lines, strings.Join(current, " "))
	}
	return lines
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return notAvailable
	}
	return s
}
