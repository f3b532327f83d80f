package receipt

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	seqPadRe = regexp.MustCompile(`\{SEQ(\d+)\}`)
)

const DefaultTemplate = "REC-{PEN}{YYYY}{MM}{DD}-{SEQ6}"

const DefaultPenaltyMarker = "P"

// FormatInput is everything a receipt number may encode.
type FormatInput struct {
	Template      string
	YearCode      string
	IssuedAt      time.Time
	Seq           int64
	Penalty       bool
	PenaltyMarker string
	// Entropy fills {RAND}; leave empty when the template does not use it.
	Entropy string
}

// FormatReceiptNumber renders a receipt number from a template. It is pure.
//
// Tokens: {YEAR} school-year code, {YYYY} {YY} {MM} {DD} issue date,
// {SEQ} raw and {SEQn} zero-padded sequence, {PEN} penalty marker followed
// by a dash (empty for ordinary receipts), {RAND} caller entropy.
func FormatReceiptNumber(in FormatInput) (string, error) {
	if strings.TrimSpace(in.Template) == "" {
		return "", fmt.Errorf("receipt number template is empty")
	}
	if in.Seq <= 0 {
		return "", fmt.Errorf("invalid receipt sequence: %d", in.Seq)
	}

	out := in.Template

	out = strings.ReplaceAll(out, "{YEAR}", in.YearCode)
	out = strings.ReplaceAll(out, "{YYYY}", in.IssuedAt.Format("2006"))
	out = strings.ReplaceAll(out, "{YY}", in.IssuedAt.Format("06"))
	out = strings.ReplaceAll(out, "{MM}", in.IssuedAt.Format("01"))
	out = strings.ReplaceAll(out, "{DD}", in.IssuedAt.Format("02"))

	penalty := ""
	if in.Penalty {
		marker := strings.TrimSpace(in.PenaltyMarker)
		if marker == "" {
			marker = DefaultPenaltyMarker
		}
		penalty = marker + "-"
	}
	hasPenaltyToken := strings.Contains(out, "{PEN}")
	out = strings.ReplaceAll(out, "{PEN}", penalty)
	if in.Penalty && !hasPenaltyToken {
		// Penalty receipts stay distinguishable even with a custom template.
		out = penalty + out
	}

	out = strings.ReplaceAll(out, "{RAND}", in.Entropy)

	out = strings.ReplaceAll(out, "{SEQ}", strconv.FormatInt(in.Seq, 10))
	out = seqPadRe.ReplaceAllStringFunc(out, func(m string) string {
		match := seqPadRe.FindStringSubmatch(m)
		if len(match) != 2 {
			return m
		}
		width, err := strconv.Atoi(match[1])
		if err != nil || width <= 0 {
			return m
		}
		return fmt.Sprintf("%0*d", width, in.Seq)
	})

	if strings.Contains(out, "{") || strings.Contains(out, "}") {
		return "", fmt.Errorf("unresolved token in receipt format: %s", out)
	}

	return out, nil
}
