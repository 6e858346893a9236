package models

import (
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	TitleMinLen   = 3
	TitleMaxLen   = 150
	ContentMaxLen = 5000
	CommentMaxLen = 1000
)

// ValidationError carries field-level messages for a rejected payload.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add records msg for field unless the field already has a message.
func (e *ValidationError) Add(field, msg string) {
	if e.Fields == nil {
		e.Fields = map[string]string{}
	}
	if _, ok := e.Fields[field]; !ok {
		e.Fields[field] = msg
	}
}

// Err returns nil when no field was rejected.
func (e *ValidationError) Err() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// NewValidationError builds a single-field validation error.
func NewValidationError(field, msg string) *ValidationError {
	ve := &ValidationError{}
	ve.Add(field, msg)
	return ve
}

// ValidatePost applies the per-type required field rules.
func ValidatePost(p *Post) error {
	ve := &ValidationError{}

	if !p.Type.Valid() {
		ve.Add("type", "must be one of confession, event, culturalEvent, news, showcase")
		return ve
	}

	title := strings.TrimSpace(p.Title)
	titleLen := utf8.RuneCountInString(title)
	switch {
	case p.Type == PostConfession && titleLen == 0:
	case titleLen < TitleMinLen:
		ve.Add("title", fmt.Sprintf("must be at least %d characters", TitleMinLen))
	case titleLen > TitleMaxLen:
		ve.Add("title", fmt.Sprintf("must be at most %d characters", TitleMaxLen))
	}

	content := strings.TrimSpace(p.Content)
	if content == "" {
		ve.Add("content", "is required")
	} else if utf8.RuneCountInString(content) > ContentMaxLen {
		ve.Add("content", fmt.Sprintf("must be at most %d characters", ContentMaxLen))
	}

	if p.Type.IsEvent() {
		validateEventCommon(p, ve)
	}
	switch p.Type {
	case PostEvent:
		if p.StartDate == nil || p.StartDate.IsZero() {
			ve.Add("startDate", "is required")
		}
		if strings.TrimSpace(p.Duration) == "" {
			ve.Add("duration", "is required")
		}
		if p.StartDate != nil && p.EndDate != nil && !p.EndDate.After(*p.StartDate) {
			ve.Add("endDate", "must be after startDate")
		}
	case PostCulturalEvent:
		validateCultural(p, ve)
	}

	return ve.Err()
}

func validateEventCommon(p *Post, ve *ValidationError) {
	if strings.TrimSpace(p.Location) == "" {
		ve.Add("location", "is required")
	}
	if p.Price < 0 {
		ve.Add("price", "must not be negative")
	}
	if r := p.Registration; r != nil {
		if r.ExternalLink != "" && len(r.Fields) > 0 {
			ve.Add("registration", "use either an external link or form fields, not both")
		}
		seen := map[string]bool{}
		for i, f := range r.Fields {
			name := strings.TrimSpace(f.Name)
			if name == "" {
				ve.Add(fmt.Sprintf("registration.fields[%d].name", i), "is required")
				continue
			}
			if seen[name] {
				ve.Add(fmt.Sprintf("registration.fields[%d].name", i), "must be unique")
			}
			seen[name] = true
			if f.Type == "select" && len(f.Options) == 0 {
				ve.Add(fmt.Sprintf("registration.fields[%d].options", i), "select fields need options")
			}
		}
	}
	if pay := p.Payment; pay != nil && pay.Link != "" && pay.QRImage != "" {
		ve.Add("payment", "use either a payment link or a QR image, not both")
	}
}

func validateCultural(p *Post, ve *ValidationError) {
	if len(p.TicketOptions) == 0 {
		ve.Add("ticketOptions", "at least one ticket option is required")
	}
	seen := map[string]bool{}
	for i, opt := range p.TicketOptions {
		t := strings.TrimSpace(opt.Type)
		if t == "" {
			ve.Add(fmt.Sprintf("ticketOptions[%d].type", i), "is required")
		} else if seen[t] {
			ve.Add(fmt.Sprintf("ticketOptions[%d].type", i), "must be unique")
		}
		seen[t] = true
		if opt.Price < 0 {
			ve.Add(fmt.Sprintf("ticketOptions[%d].price", i), "must not be negative")
		}
	}
	if len(p.AvailableDates) == 0 {
		ve.Add("availableDates", "at least one date is required")
	}
	for i, d := range p.AvailableDates {
		if d.IsZero() {
			ve.Add(fmt.Sprintf("availableDates[%d]", i), "is not a valid date")
		}
	}
}

// CheckShowcaseDeadline rejects showcase submissions made after deadline.
// A zero deadline disables the gate.
func CheckShowcaseDeadline(t PostType, now, deadline time.Time) error {
	if t != PostShowcase || deadline.IsZero() || !now.After(deadline) {
		return nil
	}
	return NewValidationError("type", "showcase submissions closed on "+deadline.UTC().Format(time.RFC1123))
}

// ValidateCommentText trims and bounds a comment body.
func ValidateCommentText(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", NewValidationError("text", "is required")
	}
	if utf8.RuneCountInString(text) > CommentMaxLen {
		return "", NewValidationError("text", fmt.Sprintf("must be at most %d characters", CommentMaxLen))
	}
	return text, nil
}
