package content

// NormalizeNavigation converts a raw navigation singleton. Malformed input
// degrades to an empty (non-nil) item list, not the site default; the
// default is reserved for a failed fetch.
func NormalizeNavigation(raw map[string]any) Navigation {
	nav := Navigation{Items: []NavItem{}}
	items, _ := raw["items"].([]any)
	for _, item := range items {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		link := normalizeNavItem(entry)
		if link.Label == "" && link.Path == "" {
			continue
		}
		nav.Items = append(nav.Items, link)
	}
	return nav
}

// NormalizeFooter converts a raw footer singleton.
func NormalizeFooter(raw map[string]any) Footer {
	footer := Footer{
		Tagline: stringValue(raw, "tagline"),
		Legal:   stringValue(raw, "legal", "copyright"),
		Columns: []FooterColumn{},
	}
	columns, _ := raw["columns"].([]any)
	for _, item := range columns {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		column := FooterColumn{
			Heading: stringValue(entry, "heading", "title"),
			Links:   []NavItem{},
		}
		links, _ := entry["links"].([]any)
		for _, rawLink := range links {
			linkEntry, ok := rawLink.(map[string]any)
			if !ok {
				continue
			}
			link := normalizeNavItem(linkEntry)
			if link.Label == "" && link.Path == "" {
				continue
			}
			column.Links = append(column.Links, link)
		}
		footer.Columns = append(footer.Columns, column)
	}
	return footer
}

// NormalizeSettings converts a raw site-settings singleton. Empty title or
// description fall back to the defaults so the SEO fallback chain stays
// total.
func NormalizeSettings(raw map[string]any) Settings {
	settings := Settings{
		SiteTitle:       stringValue(raw, "siteTitle", "title"),
		SiteDescription: stringValue(raw, "siteDescription", "description"),
		ContactEmail:    stringValue(raw, "contactEmail", "email"),
		Phone:           stringValue(raw, "phone"),
		Address:         stringValue(raw, "address"),
	}
	if settings.SiteTitle == "" {
		settings.SiteTitle = DefaultSettings().SiteTitle
	}
	if settings.SiteDescription == "" {
		settings.SiteDescription = DefaultSettings().SiteDescription
	}
	return settings
}

func normalizeNavItem(entry map[string]any) NavItem {
	return NavItem{
		Label: stringValue(entry, "label", "title"),
		Path:  stringValue(entry, "path", "href", "url"),
	}
}

// DefaultNavigation is the navigation served when the backend cannot be
// reached. It covers the site's top-level routes so the shell still renders.
func DefaultNavigation() Navigation {
	return Navigation{Items: []NavItem{
		{Label: "Home", Path: "/"},
		{Label: "Services", Path: "/services"},
		{Label: "Industries", Path: "/industries"},
		{Label: "Resources", Path: "/resources"},
		{Label: "About", Path: "/about"},
		{Label: "Contact", Path: "/contact"},
	}}
}

// DefaultFooter is the footer served when the backend cannot be reached.
func DefaultFooter() Footer {
	return Footer{
		Tagline: "Precision manufacturing, delivered on spec.",
		Columns: []FooterColumn{
			{Heading: "Company", Links: []NavItem{
				{Label: "About", Path: "/about"},
				{Label: "Contact", Path: "/contact"},
			}},
			{Heading: "Capabilities", Links: []NavItem{
				{Label: "Services", Path: "/services"},
				{Label: "Industries", Path: "/industries"},
			}},
		},
		Legal: "© Millwright Precision. All rights reserved.",
	}
}

// DefaultSettings is the site-settings fallback. SiteTitle and
// SiteDescription terminate the SEO fallback chain and are never empty.
func DefaultSettings() Settings {
	return Settings{
		SiteTitle:       "Millwright Precision",
		SiteDescription: "CNC machining, fabrication and finishing for regulated industries.",
		ContactEmail:    "info@millwrightprecision.com",
	}
}
