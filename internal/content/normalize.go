package content

import (
	"sort"
	"time"
)

// Normalize converts a raw backend document into the canonical Document.
// It is pure, performs no I/O and never fails: unrecognized shapes degrade
// to the safest empty-but-typed value. Normalizing an already-canonical
// document is a no-op.
func Normalize(typ Type, raw map[string]any) Document {
	doc := Document{
		ID:        stringValue(raw, "id", "_id"),
		Type:      typ,
		Slug:      stringValue(raw, "slug"),
		Status:    normalizeStatus(raw),
		Title:     stringValue(raw, "title", "name"),
		Excerpt:   stringValue(raw, "excerpt", "summary"),
		Category:  stringValue(raw, "category"),
		UpdatedAt: timeValue(raw, "updatedAt", "updated_at"),
	}
	if body, ok := firstPresent(raw, "body", "content"); ok {
		doc.Body = NormalizeRichText(body)
	}
	if features, ok := firstPresent(raw, "features"); ok {
		doc.Features = NormalizeStringList(features)
	}
	if specs, ok := firstPresent(raw, "specs", "specifications"); ok {
		doc.Specs = NormalizeStringList(specs)
	}
	doc.SEO = normalizeSEO(raw["seo"])
	return doc
}

// NormalizeRichText accepts the three supported rich-text encodings and
// always exits in canonical tree form:
//   - a plain string is lifted into a one-paragraph tree
//   - a node tree (canonical {"blocks": [...]}, a root node with content,
//     or a bare array of block nodes) is validated structurally
//   - anything else becomes the empty tree
func NormalizeRichText(raw any) RichText {
	switch value := raw.(type) {
	case nil:
		return RichText{}
	case RichText:
		return value
	case string:
		if value == "" {
			return RichText{}
		}
		return RichText{Blocks: []Node{{
			Type:     "paragraph",
			Children: []Node{{Type: "text", Text: value}},
		}}}
	case []any:
		return RichText{Blocks: normalizeNodes(value)}
	case []Node:
		return RichText{Blocks: value}
	case map[string]any:
		if blocks, ok := value["blocks"]; ok {
			return RichText{Blocks: normalizeNodeList(blocks)}
		}
		// A root node wrapping its blocks, e.g. {"type":"doc","content":[...]}.
		if _, ok := value["type"].(string); ok {
			if children, ok := firstPresent(value, "content", "children"); ok {
				return RichText{Blocks: normalizeNodeList(children)}
			}
			if node, ok := normalizeNode(value); ok {
				return RichText{Blocks: []Node{node}}
			}
		}
		return RichText{}
	default:
		return RichText{}
	}
}

func normalizeNodeList(raw any) []Node {
	switch value := raw.(type) {
	case []any:
		return normalizeNodes(value)
	case []Node:
		return value
	default:
		return nil
	}
}

func normalizeNodes(items []any) []Node {
	nodes := make([]Node, 0, len(items))
	for _, item := range items {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if node, ok := normalizeNode(entry); ok {
			nodes = append(nodes, node)
		}
	}
	if len(nodes) == 0 {
		return nil
	}
	return nodes
}

// normalizeNode validates a single tree node. Nodes without a type are
// dropped; text leaves default a missing text to the empty string.
func normalizeNode(entry map[string]any) (Node, bool) {
	nodeType, _ := entry["type"].(string)
	if nodeType == "" {
		return Node{}, false
	}
	node := Node{Type: nodeType}
	node.Text, _ = entry["text"].(string)
	if children, ok := firstPresent(entry, "children", "content"); ok {
		node.Children = normalizeNodeList(children)
	}
	return node, true
}

// NormalizeStringList flattens a legacy array field into an ordered string
// sequence. Elements may be bare strings or single-key objects such as
// {"feature": "..."}; heterogeneous objects are tolerated by taking the
// first string-valued key. A present-but-empty array stays an empty (non-nil)
// sequence; a missing field is the caller's concern.
func NormalizeStringList(raw any) []string {
	switch value := raw.(type) {
	case nil:
		return nil
	case []string:
		return value
	case []any:
		out := make([]string, 0, len(value))
		for _, item := range value {
			switch element := item.(type) {
			case string:
				out = append(out, element)
			case map[string]any:
				if text, ok := objectString(element); ok {
					out = append(out, text)
				}
			}
		}
		return out
	default:
		return nil
	}
}

// objectString extracts the value of a single-key object element. Known key
// names win; otherwise keys are tried in sorted order so extraction is
// deterministic for malformed multi-key elements.
func objectString(entry map[string]any) (string, bool) {
	for _, key := range []string{"feature", "spec", "item", "value", "text"} {
		if text, ok := entry[key].(string); ok {
			return text, true
		}
	}
	keys := make([]string, 0, len(entry))
	for key := range entry {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if text, ok := entry[key].(string); ok {
			return text, true
		}
	}
	return "", false
}

func normalizeSEO(raw any) *SEO {
	entry, ok := raw.(map[string]any)
	if !ok {
		return nil
	}
	seo := SEO{
		Title:       stringValue(entry, "title", "metaTitle"),
		Description: stringValue(entry, "description", "metaDescription"),
	}
	if seo.Title == "" && seo.Description == "" {
		return nil
	}
	return &seo
}

func normalizeStatus(raw map[string]any) Status {
	switch stringValue(raw, "status", "_status") {
	case string(StatusDraft):
		return StatusDraft
	default:
		// Documents stored before draft support carry no status; treat them
		// as published.
		return StatusPublished
	}
}

func firstPresent(raw map[string]any, keys ...string) (any, bool) {
	for _, key := range keys {
		if value, ok := raw[key]; ok {
			return value, true
		}
	}
	return nil, false
}

func stringValue(raw map[string]any, keys ...string) string {
	for _, key := range keys {
		if value, ok := raw[key].(string); ok && value != "" {
			return value
		}
	}
	return ""
}

func timeValue(raw map[string]any, keys ...string) time.Time {
	for _, key := range keys {
		switch value := raw[key].(type) {
		case time.Time:
			return value
		case string:
			if parsed, err := time.Parse(time.RFC3339, value); err == nil {
				return parsed
			}
		}
	}
	return time.Time{}
}
