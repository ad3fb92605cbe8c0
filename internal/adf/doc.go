// Package adf models the Atlassian Document Format trees used for issue
// descriptions and comment bodies, and sanitizes documents received from
// one Jira instance before they are written to another.
package adf

// Node kinds recognized by the sanitizer. Anything else is pruned.
const (
	KindDoc         = "doc"
	KindText        = "text"
	KindParagraph   = "paragraph"
	KindHeading     = "heading"
	KindBulletList  = "bulletList"
	KindOrderedList = "orderedList"
	KindListItem    = "listItem"
	KindBlockquote  = "blockquote"
	KindCodeBlock   = "codeBlock"
	KindPanel       = "panel"
	KindHardBreak   = "hardBreak"
	KindMention     = "mention"
	KindEmoji       = "emoji"
	KindMedia       = "media"
	KindMediaSingle = "mediaSingle"
)

// DocVersion is the only ADF document version Jira Cloud accepts.
const DocVersion = 1

// Node is a single node in an ADF tree. The zero Content slice is omitted
// when marshalled, which Jira requires for leaf nodes.
type Node struct {
	Type    string         `json:"type"`
	Version int            `json:"version,omitempty"`
	Content []*Node        `json:"content,omitempty"`
	Text    string         `json:"text,omitempty"`
	Attrs   map[string]any `json:"attrs,omitempty"`
	Marks   []Mark         `json:"marks,omitempty"`
}

// Mark is an inline formatting mark attached to a text node.
type Mark struct {
	Type  string         `json:"type"`
	Attrs map[string]any `json:"attrs,omitempty"`
}

// markKinds are the inline marks kept during sanitization.
var markKinds = map[string]bool{
	"strong":    true,
	"em":        true,
	"code":      true,
	"strike":    true,
	"underline": true,
	"link":      true,
	"subsup":    true,
	"textColor": true,
}

// Doc wraps top-level content in a version-1 document root.
func Doc(content ...*Node) *Node {
	return &Node{Type: KindDoc, Version: DocVersion, Content: content}
}

// Paragraph builds a paragraph holding a single text node.
func Paragraph(text string) *Node {
	return &Node{
		Type:    KindParagraph,
		Content: []*Node{{Type: KindText, Text: text}},
	}
}

// DefaultDescription is the placeholder document substituted whenever a
// source ticket carries no usable description.
func DefaultDescription() *Node {
	return Doc(Paragraph("Ticket migrated from Integratel"))
}
