package portal

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// balanceMarker is the portal's localized "remaining balance" label text;
// the last-update timestamp sits in a span nested under it.
const balanceMarker = "অবশিষ্ট ব্যালেন্স"

// portalTimeLayout matches the portal's verbose timestamps,
// e.g. "20 October 2025 12:00:00 AM".
const portalTimeLayout = "2 January 2006 3:04:05 PM"

// displayTimeLayout is the short form shown in messages, e.g. "20 Oct 12:00 AM".
const displayTimeLayout = "02 Jan 3:04 PM"

var (
	timestampPattern = regexp.MustCompile(`\d{1,2}\s+\w+\s+\d{4}.\d{1,2}:\d{2}:\d{2}\s?(AM|PM)?`)
	dateLikePattern  = regexp.MustCompile(`\d{1,2}\s+\w+\s+\d{4}|\d{4}`)
)

// extractBalance takes the last disabled input on the page; the portal
// renders the remaining balance there, after the recharge-history fields.
// Returns nil when no disabled input exists or its value doesn't parse.
func extractBalance(doc *goquery.Document) *float64 {
	inputs := doc.Find("input[disabled]")
	if inputs.Length() == 0 {
		return nil
	}
	val, _ := inputs.Last().Attr("value")
	val = strings.TrimSpace(val)
	val = strings.ReplaceAll(val, "\u00a0", "")
	val = strings.ReplaceAll(val, ",", "")
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return nil
	}
	return &f
}

// extractUpdateLabel locates the balance label and reads its nested span,
// falling back to a regex over the label text, then to the first span on
// the page that looks date-like. Returns "" when nothing matches.
func extractUpdateLabel(doc *goquery.Document) string {
	var raw string
	doc.Find("label").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if !strings.Contains(s.Text(), balanceMarker) {
			return true
		}
		if span := s.Find("span"); span.Length() > 0 {
			raw = strings.TrimSpace(span.First().Text())
		} else if m := timestampPattern.FindString(s.Text()); m != "" {
			raw = m
		}
		return false
	})

	if raw == "" {
		doc.Find("span").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			t := strings.TrimSpace(s.Text())
			if t != "" && dateLikePattern.MatchString(t) {
				raw = t
				return false
			}
			return true
		})
	}

	if raw == "" {
		return ""
	}
	return normalizeTimestamp(raw)
}

// normalizeTimestamp re-renders the portal's verbose timestamp in the short
// display form. The vendor has changed formats before, so anything that
// doesn't parse passes through verbatim.
func normalizeTimestamp(raw string) string {
	t, err := time.Parse(portalTimeLayout, raw)
	if err != nil {
		return raw
	}
	return t.Format(displayTimeLayout)
}
