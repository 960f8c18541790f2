package exports

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"strconv"
	"strings"
	"time"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/code128"
	"github.com/jung-kurt/gofpdf"

	"kpidashboard/infrastructure/pipeline"
	"kpidashboard/models"
)

func renderQualityReportPDF(res pipeline.Result, printedAt time.Time) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Quality Report", false)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 20)
	pdf.CellFormat(0, 12, "Quality Control Report", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, "Printed: "+printedAt.Format("02/01/2006 15:04"), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, "Filters: "+describeFilters(res), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	sectionTitle(pdf, "Nonconformities by Severity")
	for _, s := range res.Quality.Severity {
		r, g, b := hexRGB(s.Severity.Color())
		pdf.SetFillColor(r, g, b)
		pdf.Rect(pdf.GetX(), pdf.GetY()+1.5, 4, 4, "F")
		pdf.SetX(pdf.GetX() + 6)
		pdf.CellFormat(40, 7, string(s.Severity), "", 0, "L", false, 0, "")
		pdf.CellFormat(20, 7, strconv.Itoa(s.Count), "", 1, "R", false, 0, "")
	}
	pdf.Ln(3)

	sectionTitle(pdf, "Pareto by Type")
	tableHeader(pdf, []string{"Type", "Count", "%", "Cumulative %"}, []float64{80, 30, 30, 40})
	for _, row := range res.Quality.ParetoByType {
		tableRow(pdf, []string{
			row.Value,
			strconv.Itoa(row.Count),
			strconv.FormatFloat(row.Percent, 'f', 1, 64),
			strconv.FormatFloat(row.Cumulative, 'f', 1, 64),
		}, []float64{80, 30, 30, 40})
	}
	pdf.Ln(3)

	sectionTitle(pdf, "Corrective Actions")
	widths := []float64{22, 22, 18, 28, 28, 72}
	tableHeader(pdf, []string{"ID", "Date", "Severity", "Type", "Product", "Corrective Action"}, widths)
	for _, r := range res.Quality.BySeverity {
		action := strings.TrimSpace(r.CorrectiveAction)
		if action == "" {
			action = "-"
		}
		tableRow(pdf, []string{
			r.ID,
			r.Date.Format("02/01/2006"),
			string(r.Severity),
			r.Type,
			r.Product,
			truncateToWidth(pdf, action, widths[5]-2),
		}, widths)
	}

	var out bytes.Buffer
	if err := pdf.Output(&out); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// HoldTagData is printed on the tag attached to a quarantined batch.
type HoldTagData struct {
	Record           models.NonconformityRecord
	CorrectiveAction string
}

func renderHoldTagPDF(tag HoldTagData, printedAt time.Time) ([]byte, error) {
	id := strings.TrimSpace(tag.Record.ID)
	if id == "" {
		return nil, fmt.Errorf("no nonconformity id to render")
	}
	barcodePNG, err := renderCode128PNG(id, 1200, 260)
	if err != nil {
		return nil, err
	}

	pdf := gofpdf.New("L", "mm", "A5", "")
	pdf.SetTitle("Nonconformity Hold Tag", false)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	pageW, pageH := pdf.GetPageSize()
	margin := 8.0
	pdf.SetLineWidth(0.5)
	pdf.Rect(margin, margin, pageW-2*margin, pageH-2*margin, "")

	r, g, b := hexRGB(tag.Record.Severity.Color())
	pdf.SetFillColor(r, g, b)
	pdf.Rect(margin, margin, pageW-2*margin, 16, "F")
	pdf.SetTextColor(255, 255, 255)
	pdf.SetFont("Helvetica", "B", 26)
	pdf.SetXY(margin, margin+1)
	pdf.CellFormat(pageW-2*margin, 14, "HOLD - "+strings.ToUpper(string(tag.Record.Severity))+" SEVERITY", "", 0, "C", false, 0, "")
	pdf.SetTextColor(0, 0, 0)

	contentW := pageW - 2*margin - 8
	pdf.SetXY(margin+4, margin+20)
	idFont := fitFontSizeForWidth(pdf, "Helvetica", "B", 30, 14, id, contentW)
	pdf.SetFont("Helvetica", "B", idFont)
	pdf.CellFormat(contentW, 13, id, "", 1, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", 12)
	lines := []string{
		"Date: " + tag.Record.Date.Format("02/01/2006"),
		"Status: " + orDash(tag.Record.Status),
		"Type: " + orDash(tag.Record.Type),
		"Product: " + orDash(tag.Record.Product),
		"Customer: " + orDash(tag.Record.Customer),
	}
	for _, line := range lines {
		pdf.SetX(margin + 4)
		pdf.CellFormat(contentW, 6.5, line, "", 1, "L", false, 0, "")
	}
	pdf.SetX(margin + 4)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(contentW, 6.5, "Corrective action:", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	pdf.SetX(margin + 4)
	pdf.MultiCell(contentW, 5.5, orDash(strings.TrimSpace(tag.CorrectiveAction)), "", "L", false)

	opt := gofpdf.ImageOptions{ImageType: "PNG", ReadDpi: false}
	imageName := "hold-tag-barcode-" + id
	pdf.RegisterImageOptionsReader(imageName, opt, bytes.NewReader(barcodePNG))
	imgW, imgH := 110.0, 22.0
	y := pageH - margin - imgH - 12
	pdf.ImageOptions(imageName, (pageW-imgW)/2, y, imgW, imgH, false, opt, 0, "")
	pdf.SetXY(margin, y+imgH+1)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(pageW-2*margin, 6, id, "", 0, "C", false, 0, "")

	pdf.SetFont("Helvetica", "", 8)
	pdf.SetXY(margin, pageH-margin-5)
	pdf.CellFormat(pageW-2*margin-3, 4, "Printed: "+printedAt.Format("02/01/2006 15:04"), "", 0, "R", false, 0, "")

	var out bytes.Buffer
	if err := pdf.Output(&out); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func describeFilters(res pipeline.Result) string {
	parts := make([]string, 0, 4)
	if res.Filters.Dates.Active() {
		parts = append(parts, res.Filters.Dates.Start.Format("02/01/2006")+" - "+res.Filters.Dates.End.Format("02/01/2006"))
	}
	if len(res.Filters.Statuses) > 0 {
		parts = append(parts, "status "+strings.Join(res.Filters.Statuses, ", "))
	}
	if len(res.Filters.Severities) > 0 {
		parts = append(parts, "severity "+strings.Join(res.Filters.Severities, ", "))
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "; ")
}

func sectionTitle(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 13)
	pdf.CellFormat(0, 8, title, "B", 1, "L", false, 0, "")
	pdf.Ln(1)
	pdf.SetFont("Helvetica", "", 10)
}

func tableHeader(pdf *gofpdf.Fpdf, cols []string, widths []float64) {
	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(230, 230, 230)
	for i, c := range cols {
		pdf.CellFormat(widths[i], 7, c, "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont("Helvetica", "", 9)
}

func tableRow(pdf *gofpdf.Fpdf, cols []string, widths []float64) {
	for i, c := range cols {
		pdf.CellFormat(widths[i], 6, c, "1", 0, "L", false, 0, "")
	}
	pdf.Ln(-1)
}

func truncateToWidth(pdf *gofpdf.Fpdf, text string, maxWidth float64) string {
	if pdf.GetStringWidth(text) <= maxWidth {
		return text
	}
	runes := []rune(text)
	for len(runes) > 0 && pdf.GetStringWidth(string(runes)+"...") > maxWidth {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "..."
}

func orDash(v string) string {
	if strings.TrimSpace(v) == "" {
		return "-"
	}
	return v
}

// hexRGB parses "#rrggbb"; anything else is black.
func hexRGB(hex string) (int, int, int) {
	v, err := strconv.ParseUint(strings.TrimPrefix(hex, "#"), 16, 32)
	if err != nil || len(hex) != 7 {
		return 0, 0, 0
	}
	return int(v >> 16 & 0xff), int(v >> 8 & 0xff), int(v & 0xff)
}

func fitFontSizeForWidth(pdf *gofpdf.Fpdf, family, style string, base, min float64, text string, maxWidth float64) float64 {
	if maxWidth <= 0 {
		return min
	}
	size := base
	pdf.SetFont(family, style, size)
	for size > min && pdf.GetStringWidth(text) > maxWidth {
		size -= 0.5
		pdf.SetFont(family, style, size)
	}
	return size
}

func renderCode128PNG(value string, width, height int) ([]byte, error) {
	code, err := code128.Encode(value)
	if err != nil {
		return nil, err
	}
	scaled, err := barcode.Scale(code, width, height)
	if err != nil {
		return nil, err
	}
	normalized := toNRGBA(scaled)
	var barcodePNG bytes.Buffer
	if err := png.Encode(&barcodePNG, normalized); err != nil {
		return nil, err
	}
	return barcodePNG.Bytes(), nil
}

func toNRGBA(src image.Image) *image.NRGBA {
	bounds := src.Bounds()
	dst := image.NewNRGBA(bounds)
	draw.Draw(dst, bounds, src, bounds.Min, draw.Src)
	return dst
}
