package models

// FieldGroup names a set of Post fields owned by one or more variants.
type FieldGroup string

const (
	GroupEngagement FieldGroup = "engagement"
	GroupEvent      FieldGroup = "event"
	GroupCultural   FieldGroup = "cultural"
	GroupShowcase   FieldGroup = "showcase"
)

// OwnedGroups lists the field groups a post type keeps.
func OwnedGroups(t PostType) []FieldGroup {
	switch t {
	case PostConfession, PostNews:
		return []FieldGroup{GroupEngagement}
	case PostEvent:
		return []FieldGroup{GroupEngagement, GroupEvent}
	case PostCulturalEvent:
		return []FieldGroup{GroupEngagement, GroupEvent, GroupCultural}
	case PostShowcase:
		return []FieldGroup{GroupShowcase}
	}
	return nil
}

func owns(t PostType, g FieldGroup) bool {
	for _, og := range OwnedGroups(t) {
		if og == g {
			return true
		}
	}
	return false
}

// ApplyTypeHygiene clears every field belonging to a variant other than
// p.Type and re-derives the counters from their backing lists. It must run
// before every save.
func ApplyTypeHygiene(p *Post) {
	if !owns(p.Type, GroupEngagement) {
		p.Likes = 0
		p.LikedBy = nil
		p.Comments = nil
	}
	if !owns(p.Type, GroupEvent) {
		p.Location = ""
		p.StartDate = nil
		p.EndDate = nil
		p.Duration = ""
		p.Price = 0
		p.Registration = nil
		p.Payment = nil
	}
	if !owns(p.Type, GroupCultural) {
		p.TicketOptions = nil
		p.AvailableDates = nil
	}
	if !owns(p.Type, GroupShowcase) {
		p.Upvotes = 0
		p.Upvoters = nil
		p.ShowcaseComments = nil
		p.Views = 0
		p.Month = ""
		p.LaunchDate = ""
	}

	if p.Payment != nil && p.Payment.Link == "" && p.Payment.QRImage == "" {
		p.Payment = nil
	}

	syncCounters(p)
}

func syncCounters(p *Post) {
	if p.Type == PostShowcase {
		p.CommentCount = len(p.ShowcaseComments)
		p.Upvotes = len(p.Upvoters)
		return
	}
	p.CommentCount = len(p.Comments)
	p.Likes = len(p.LikedBy)
}
