package adf

import (
	"encoding/json"
	"strings"
)

// Sanitize turns an arbitrary description or comment payload into a
// document Jira Cloud will accept, or nil when the payload holds no usable
// content.
//
// A well-formed document root has each child cleaned recursively; anything
// else is coerced to its trimmed string form and wrapped as a
// one-paragraph document. Callers substitute DefaultDescription for a nil
// result.
func Sanitize(raw json.RawMessage) *Node {
	if isEmptyJSON(raw) {
		return nil
	}

	var root Node
	if err := json.Unmarshal(raw, &root); err == nil &&
		root.Type == KindDoc && root.Version == DocVersion && root.Content != nil {
		content := cleanChildren(root.Content)
		if len(content) == 0 {
			return nil
		}
		return &Node{Type: KindDoc, Version: DocVersion, Content: content}
	}

	return coerce(raw)
}

// cleanChildren sanitizes each child and drops the ones that prune away.
func cleanChildren(nodes []*Node) []*Node {
	var out []*Node
	for _, n := range nodes {
		if cleaned := cleanNode(n); cleaned != nil {
			out = append(out, cleaned)
		}
	}
	return out
}

// cleanNode re-emits a node with only its recognized shape, or nil when
// the node (or everything inside it) is unusable.
func cleanNode(n *Node) *Node {
	if n == nil || n.Type == "" {
		return nil
	}

	switch n.Type {
	case KindText:
		out := &Node{Type: KindText, Text: n.Text}
		for _, m := range n.Marks {
			if markKinds[m.Type] {
				out.Marks = append(out.Marks, copyMark(m))
			}
		}
		return out

	case KindParagraph:
		content := cleanChildren(n.Content)
		if len(content) == 0 {
			return nil
		}
		return &Node{Type: KindParagraph, Content: content}

	case KindHeading, KindBulletList, KindOrderedList, KindListItem,
		KindBlockquote, KindCodeBlock, KindPanel:
		out := &Node{Type: n.Type}
		switch n.Type {
		case KindHeading:
			out.Attrs = keepAttrs(n.Attrs, "level")
		case KindCodeBlock:
			out.Attrs = keepAttrs(n.Attrs, "language")
		case KindPanel:
			out.Attrs = keepAttrs(n.Attrs, "panelType")
		}
		out.Content = cleanChildren(n.Content)
		if len(out.Content) == 0 {
			return nil
		}
		return out

	case KindHardBreak, KindMention, KindEmoji:
		out := &Node{Type: n.Type}
		if len(n.Attrs) > 0 {
			out.Attrs = make(map[string]any, len(n.Attrs))
			for k, v := range n.Attrs {
				out.Attrs[k] = v
			}
		}
		return out

	case KindMedia, KindMediaSingle:
		// Media references the source instance's file store and cannot
		// survive a cross-instance copy; attachments travel separately.
		return nil

	default:
		return nil
	}
}

// coerce wraps a scalar payload as a one-paragraph document.
func coerce(raw json.RawMessage) *Node {
	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		text = string(raw)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	return Doc(Paragraph(text))
}

func copyMark(m Mark) Mark {
	out := Mark{Type: m.Type}
	if len(m.Attrs) > 0 {
		out.Attrs = make(map[string]any, len(m.Attrs))
		for k, v := range m.Attrs {
			out.Attrs[k] = v
		}
	}
	return out
}

func keepAttrs(attrs map[string]any, keys ...string) map[string]any {
	var out map[string]any
	for _, k := range keys {
		if v, ok := attrs[k]; ok {
			if out == nil {
				out = make(map[string]any, len(keys))
			}
			out[k] = v
		}
	}
	return out
}

func isEmptyJSON(raw json.RawMessage) bool {
	s := strings.TrimSpace(string(raw))
	return s == "" || s == "null"
}
