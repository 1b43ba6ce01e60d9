package assessment

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"candle-bin-lab/internal/domain"
)

// WriteJSON writes the assessment as indented JSON.
func WriteJSON(w io.Writer, a domain.Assessment) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(a); err != nil {
		return fmt.Errorf("encode assessment: %w", err)
	}
	return nil
}

// RenderText renders a human-readable assessment. Numbers use the grouping
// rules of tag.
func RenderText(a domain.Assessment, tag language.Tag) string {
	p := message.NewPrinter(tag)
	rule := strings.Repeat("=", 60)

	var sb strings.Builder
	sb.WriteString(rule + "\n")
	p.Fprintf(&sb, "Latest assessment: %s\n", a.Symbol)
	sb.WriteString(rule + "\n\n")

	p.Fprintf(&sb, "Assessment time: %s\n", a.AssessmentTime)
	p.Fprintf(&sb, "   (UTC: %s)\n\n", a.UTCTime)

	sb.WriteString("Candle:\n")
	p.Fprintf(&sb, "   Open:  %.2f\n", a.Candle.Open)
	p.Fprintf(&sb, "   High:  %.2f\n", a.Candle.High)
	p.Fprintf(&sb, "   Low:   %.2f\n", a.Candle.Low)
	p.Fprintf(&sb, "   Close: %.2f\n\n", a.Candle.Close)

	sb.WriteString("Shape:\n")
	p.Fprintf(&sb, "   Change:       %+.2f\n", a.Analysis.PriceChange)
	p.Fprintf(&sb, "   Range:        %.2f\n", a.Analysis.PriceRange)
	p.Fprintf(&sb, "   Body:         %.2f\n", a.Analysis.BodySize)
	p.Fprintf(&sb, "   Upper shadow: %.2f\n", a.Analysis.UpperShadow)
	p.Fprintf(&sb, "   Lower shadow: %.2f\n\n", a.Analysis.LowerShadow)

	sb.WriteString("Signals:\n")
	p.Fprintf(&sb, "   Buy score:  %.3f\n", a.Signals.BuyScore)
	p.Fprintf(&sb, "   Sell score: %.3f\n\n", a.Signals.SellScore)

	p.Fprintf(&sb, "Recommendation: %s (%s)\n", a.Recommendation, a.Intent)
	sb.WriteString(rule + "\n")
	return sb.String()
}
