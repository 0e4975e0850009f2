package notifier

import (
	"fmt"
	"sort"
	"strings"

	"MeterWatch/internal/model"
)

const divider = "━━━━━━━━━━━━━━━━━━━━━━━"

// markdownEscaper neutralizes Telegram Markdown control characters so a
// stray asterisk in a scraped customer number or timestamp cannot mangle
// the message around it.
var markdownEscaper = strings.NewReplacer(
	"_", "\\_",
	"*", "\\*",
	"`", "\\`",
	"[", "\\[",
)

// EscapeMarkdown escapes Markdown control characters in dynamic text.
func EscapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}

// FormatSummary renders the main per-meter summary. Every meter gets one
// block: failed fetch, low balance, or normal, in input order.
func FormatSummary(readings []model.BalanceReading, threshold float64) string {
	var b strings.Builder
	b.WriteString("💡 *Meter Balance Summary*\n")
	b.WriteString(divider + "\n")

	for _, r := range readings {
		cust := EscapeMarkdown(r.CustomerNo)
		switch {
		case !r.HasBalance():
			b.WriteString(fmt.Sprintf("❌ *Meter:* %s\n", cust))
			b.WriteString("🔸 *Status:* Could not fetch balance.\n\n")
		case model.IsLowBalance(r.Balance, threshold):
			b.WriteString(fmt.Sprintf("⚠️ *Meter:* %s\n", cust))
			b.WriteString(fmt.Sprintf("💰 *Balance:* *%.2f Taka — LOW!* ⚠️\n", *r.Balance))
			b.WriteString(fmt.Sprintf("🕒 *Updated:* %s\n\n", EscapeMarkdown(r.UpdatedLabel)))
		default:
			b.WriteString(fmt.Sprintf("✅ *Meter:* %s\n", cust))
			b.WriteString(fmt.Sprintf("💰 *Balance:* %.2f Taka\n", *r.Balance))
			b.WriteString(fmt.Sprintf("🕒 *Updated:* %s\n\n", EscapeMarkdown(r.UpdatedLabel)))
		}
	}

	b.WriteString(divider + "\n")
	b.WriteString("📅 *Auto updated by MeterWatch*")
	return b.String()
}

// FormatLowBalanceAlert renders the separate alert listing only the meters
// currently below the threshold. Callers only invoke it when at least one
// meter is low.
func FormatLowBalanceAlert(low []model.BalanceReading) string {
	var b strings.Builder
	b.WriteString("🚨 *LOW BALANCE ALERT!*\n")
	b.WriteString(divider + "\n")
	for _, r := range low {
		b.WriteString(fmt.Sprintf("⚠️ *Meter:* %s\n", EscapeMarkdown(r.CustomerNo)))
		b.WriteString(fmt.Sprintf("💰 *Current Balance:* *%.2f Taka*\n", *r.Balance))
		b.WriteString(fmt.Sprintf("🕒 *Updated:* %s\n\n", EscapeMarkdown(r.UpdatedLabel)))
	}
	b.WriteString(divider + "\n")
	b.WriteString("Please recharge soon to avoid power cut ⚡")
	return b.String()
}

// FormatStatusChange renders the threshold-crossing alert appended after
// the summary when a meter's classification flips.
func FormatStatusChange(custNo string, isLowNow bool) string {
	status := "NORMAL ✅"
	cadence := "Alerts return to the normal daily cadence."
	if isLowNow {
		status = "LOW ⚠️"
		cadence = "Alerts will now arrive more frequently."
	}
	return fmt.Sprintf("📊 *Meter %s status changed to: %s*\n\n%s",
		EscapeMarkdown(custNo), status, cadence)
}

// FormatStates renders the persisted per-meter state, for the /status
// command.
func FormatStates(states map[string]model.MeterState) string {
	if len(states) == 0 {
		return "📦 No meter state recorded yet."
	}

	custNos := make([]string, 0, len(states))
	for custNo := range states {
		custNos = append(custNos, custNo)
	}
	sort.Strings(custNos)

	var b strings.Builder
	b.WriteString("📦 *Saved Meter State*\n\n")
	for _, custNo := range custNos {
		st := states[custNo]
		b.WriteString(fmt.Sprintf("*Meter:* %s\n", EscapeMarkdown(custNo)))
		if st.LastBalance != nil {
			b.WriteString(fmt.Sprintf("Balance: %.2f Taka\n", *st.LastBalance))
		} else {
			b.WriteString("Balance: unknown\n")
		}
		b.WriteString(fmt.Sprintf("Low: %v\n", st.IsLowBalance))
		b.WriteString(fmt.Sprintf("Updated: %s\n", st.LastUpdated.Format("2006-01-02 15:04")))
		if st.LastNotification != nil {
			b.WriteString(fmt.Sprintf("Last notified: %s\n", st.LastNotification.Format("2006-01-02 15:04")))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// FormatSetupFailure renders the message reported to the chat before the
// process exits on an unrecoverable setup error.
func FormatSetupFailure(err error) string {
	return fmt.Sprintf("❌ MeterWatch setup failed: %s", EscapeMarkdown(err.Error()))
}
