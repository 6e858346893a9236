package models

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"
)

var registrationColumns = []string{
	"Registration ID", "Name", "Email", "Phone", "Registered At",
	"Payment Status", "Transaction ID", "Total Price",
}

var ticketColumns = []string{"Ticket Type", "Quantity", "Ticket Price"}

// RegistrationTable flattens registrations of event into CSV records. The
// header is the fixed columns, the ticket columns for cultural events, then
// every custom field name seen across all registrations so that each row
// has the same shape. Cultural events yield one row per selected ticket.
// User-supplied cells that a spreadsheet would evaluate as a formula are
// prefixed with a single quote.
func RegistrationTable(event *Post, regs []Registration) [][]string {
	customNames := customFieldNames(regs)
	cultural := event.Type == PostCulturalEvent

	header := append([]string{}, registrationColumns...)
	if cultural {
		header = append(header, ticketColumns...)
	}
	for _, name := range customNames {
		header = append(header, cell(name))
	}

	records := [][]string{header}
	for _, r := range regs {
		base := []string{
			r.ID.Hex(),
			cell(r.Name),
			cell(r.Email),
			cell(r.Phone),
			r.CreatedAt.UTC().Format(time.RFC3339),
			string(r.PaymentStatus),
			cell(r.TransactionID),
			formatPrice(r.TotalPrice),
		}
		custom := make([]string, len(customNames))
		for i, name := range customNames {
			custom[i] = cell(r.CustomFields[name])
		}

		if !cultural {
			records = append(records, concat(base, custom))
			continue
		}
		for _, t := range r.Tickets {
			ticket := []string{cell(t.Type), strconv.Itoa(t.Quantity), formatPrice(t.Price)}
			records = append(records, concat(base, ticket, custom))
		}
	}
	return records
}

func customFieldNames(regs []Registration) []string {
	seen := map[string]bool{}
	var names []string
	for _, r := range regs {
		for k := range r.CustomFields {
			if !seen[k] {
				seen[k] = true
				names = append(names, k)
			}
		}
	}
	sort.Strings(names)
	return names
}

// cell neutralises a leading formula trigger.
func cell(s string) string {
	if s != "" && strings.ContainsRune("=+-@\t\r", rune(s[0])) {
		return "'" + s
	}
	return s
}

func formatPrice(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func concat(parts ...[]string) []string {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	out := make([]string, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// WriteRegistrationsCSV writes RegistrationTable to w as CSV.
func WriteRegistrationsCSV(w io.Writer, event *Post, regs []Registration) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(RegistrationTable(event, regs)); err != nil {
		return fmt.Errorf("writing registrations csv: %w", err)
	}
	return nil
}
