package report

import (
	"fmt"
	"sort"
	"strings"

	"battforge/app"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

// Markdown renders one analysis outcome as a human-readable report. The
// structure mirrors the JSON payload so the two never disagree.
func Markdown(r *app.AnalysisReport) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Analysis Report %s\n\n", r.ID)
	fmt.Fprintf(&b, "- **File:** %s\n", r.Filename)
	fmt.Fprintf(&b, "- **Dataset Type:** %s\n", r.DatasetType)
	fmt.Fprintf(&b, "- **Generated:** %s\n", r.CreatedAt.Format("2006-01-02 15:04:05 UTC"))
	if r.Summary != "" {
		fmt.Fprintf(&b, "- **Summary:** %s\n", r.Summary)
	}
	b.WriteString("\n")

	if len(r.Degraded) > 0 {
		b.WriteString("## Degraded-State Notes\n\n")
		for _, note := range r.Degraded {
			fmt.Fprintf(&b, "- %s\n", note)
		}
		b.WriteString("\n")
	}

	if r.Cycling != nil {
		writeCycling(&b, r.Cycling)
	}
	if r.Impedance != nil {
		writeImpedance(&b, r.Impedance)
	}

	return b.String()
}

// HTML renders the markdown report to an HTML fragment.
func HTML(r *app.AnalysisReport) []byte {
	md := Markdown(r)
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	doc := p.Parse([]byte(md))
	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags})
	return markdown.Render(doc, renderer)
}

func writeCycling(b *strings.Builder, c *app.CyclingResult) {
	b.WriteString("## Electrochemical Metrics\n\n")
	b.WriteString("| Metric | Value |\n|---|---|\n")
	fmt.Fprintf(b, "| Capacity | %.4f Ah |\n", c.Metrics.CapacityAh)
	fmt.Fprintf(b, "| Energy | %.4f Wh |\n", c.Metrics.EnergyWh)
	fmt.Fprintf(b, "| Duration | %.2f min |\n", c.Metrics.DurationMinutes)
	fmt.Fprintf(b, "| Avg Voltage | %.2f V |\n", c.Metrics.AvgVoltage)
	fmt.Fprintf(b, "| Max Current | %.2f A |\n", c.Metrics.MaxCurrent)
	fmt.Fprintf(b, "| Estimated C-Rate | %.2fC |\n", c.CRate)
	b.WriteString("\n")

	fmt.Fprintf(b, "## Safety Score: %.1f / 100\n\n", c.Safety.Score)
	if len(c.Safety.Breakdown) > 0 {
		keys := make([]string, 0, len(c.Safety.Breakdown))
		for k := range c.Safety.Breakdown {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(b, "- %s: %.4g\n", k, c.Safety.Breakdown[k])
		}
		b.WriteString("\n")
	}
	if c.Reference != nil {
		fmt.Fprintf(b, "Scored against a physics reference trace of %d points.\n\n", len(c.Reference.Time))
	} else {
		b.WriteString("No physics reference was available; the score leans entirely on voltage stability.\n\n")
	}
}

func writeImpedance(b *strings.Builder, imp *app.ImpedanceResult) {
	b.WriteString("## Equivalent Circuit (Randles)\n\n")
	if imp.Fit != nil {
		p := imp.Fit.Parameters
		b.WriteString("| Parameter | Value |\n|---|---|\n")
		fmt.Fprintf(b, "| R_s (ohmic) | %.4g Ohm |\n", p.Rs)
		fmt.Fprintf(b, "| R_ct (charge transfer) | %.4g Ohm |\n", p.Rct)
		fmt.Fprintf(b, "| C_dl (double layer) | %.4g F |\n", p.Cdl)
		fmt.Fprintf(b, "| Sigma (Warburg) | %.4g |\n", p.Sigma)
		fmt.Fprintf(b, "| Fit quality (SSR) | %.4g |\n", p.FitQuality)
		b.WriteString("\n")
	} else {
		fmt.Fprintf(b, "Fit unavailable: %s\n\n", imp.FitNote)
	}

	d := imp.Diagnosis
	fmt.Fprintf(b, "## Band Diagnosis (%d points)\n\n", d.DataPoints)
	fmt.Fprintf(b, "- **Ohmic (>1 kHz):** %s, %.4g Ohm. %s\n", d.Ohmic.Status, d.Ohmic.ValueOhm, d.Ohmic.Description)
	fmt.Fprintf(b, "- **Kinetics (1 Hz - 1 kHz):** %s, %.4g Ohm. %s\n", d.Kinetics.Status, d.Kinetics.ValueOhm, d.Kinetics.Description)
	fmt.Fprintf(b, "- **Diffusion (<1 Hz):** %s. %s\n", d.Diffusion.Status, d.Diffusion.Description)
	fmt.Fprintf(b, "\n**Overall Health:** %s\n\n%s\n", d.OverallHealth, d.Summary)
}
