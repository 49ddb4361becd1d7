// Package content defines the canonical, backend-agnostic representation of
// site content and the normalization rules that produce it from the raw
// document shapes the storage backends return.
package content

import "time"

// Type identifies a logical content type.
type Type string

const (
	TypeService    Type = "service"
	TypeIndustry   Type = "industry"
	TypeResource   Type = "resource"
	TypePage       Type = "page"
	TypeSettings   Type = "settings"
	TypeNavigation Type = "navigation"
	TypeFooter     Type = "footer"
	TypeTeamMember Type = "team-member"
)

// Status is the publication state of a document.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
)

// SlugTypes are the content types addressed by slug. The remaining types are
// singletons with exactly one instance.
var SlugTypes = []Type{TypeService, TypeIndustry, TypeResource, TypePage, TypeTeamMember}

// IsSingleton reports whether a content type has exactly one instance.
func IsSingleton(t Type) bool {
	return t == TypeSettings || t == TypeNavigation || t == TypeFooter
}

// KnownType reports whether t is one of the supported content types.
func KnownType(t Type) bool {
	switch t {
	case TypeService, TypeIndustry, TypeResource, TypePage, TypeSettings,
		TypeNavigation, TypeFooter, TypeTeamMember:
		return true
	}
	return false
}

// Node is one node in a canonical rich-text tree. Block nodes carry
// children; text leaves carry text.
type Node struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	Children []Node `json:"children,omitempty"`
}

// RichText is the canonical rich-text form: an ordered sequence of block
// nodes. The zero value is the empty tree.
type RichText struct {
	Blocks []Node `json:"blocks"`
}

// IsEmpty reports whether the tree has no blocks.
func (rt RichText) IsEmpty() bool {
	return len(rt.Blocks) == 0
}

// PlainText flattens the tree into a single string, blocks separated by
// newlines. Used for excerpt fallbacks and search indexing.
func (rt RichText) PlainText() string {
	out := ""
	for _, block := range rt.Blocks {
		text := nodeText(block)
		if text == "" {
			continue
		}
		if out != "" {
			out += "\n"
		}
		out += text
	}
	return out
}

func nodeText(n Node) string {
	if len(n.Children) == 0 {
		return n.Text
	}
	out := n.Text
	for _, child := range n.Children {
		out += nodeText(child)
	}
	return out
}

// SEO is an explicit per-document SEO override. Nil on a Document means the
// document supplied none and the fallback chain applies.
type SEO struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Document is the canonical form every backend shape normalizes into.
// Renderers and the assembler only ever see this type.
type Document struct {
	ID        string    `json:"id"`
	Type      Type      `json:"type"`
	Slug      string    `json:"slug"`
	Status    Status    `json:"status"`
	Title     string    `json:"title"`
	Excerpt   string    `json:"excerpt,omitempty"`
	Category  string    `json:"category,omitempty"`
	Body      RichText  `json:"body"`
	Features  []string  `json:"features"`
	Specs     []string  `json:"specs"`
	SEO       *SEO      `json:"seo,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Published reports whether the document is in the published state.
func (d Document) Published() bool {
	return d.Status == StatusPublished
}

// NavItem is one entry in the site navigation.
type NavItem struct {
	Label string `json:"label"`
	Path  string `json:"path"`
}

// Navigation is the header navigation singleton.
type Navigation struct {
	Items []NavItem `json:"items"`
}

// FooterColumn is one link column in the footer.
type FooterColumn struct {
	Heading string    `json:"heading"`
	Links   []NavItem `json:"links"`
}

// Footer is the footer singleton.
type Footer struct {
	Tagline string         `json:"tagline"`
	Columns []FooterColumn `json:"columns"`
	Legal   string         `json:"legal"`
}

// Settings is the site-settings singleton. SiteTitle and SiteDescription are
// the last link in the SEO fallback chain and must never be empty.
type Settings struct {
	SiteTitle       string `json:"siteTitle"`
	SiteDescription string `json:"siteDescription"`
	ContactEmail    string `json:"contactEmail"`
	Phone           string `json:"phone"`
	Address         string `json:"address"`
}
