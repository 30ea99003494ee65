package formatter

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/maine/youtube_digest/internal/video"
)

const (
	// maxSummaryRunes keeps a ten-item card well under the 30 KB Feishu card limit.
	maxSummaryRunes = 2000
	ellipsis        = "..."
	dateLayout      = "2006-01-02"
	watchLabel      = "▶ Watch video"
)

// Card is a Feishu interactive message card.
type Card struct {
	Config   CardConfig `json:"config"`
	Header   CardHeader `json:"header"`
	Elements []Element  `json:"elements"`
}

// CardConfig holds display options.
type CardConfig struct {
	WideScreenMode bool `json:"wide_screen_mode"`
}

// CardHeader is the colored title bar.
type CardHeader struct {
	Title    Text   `json:"title"`
	Template string `json:"template"`
}

// Text is a plain_text or lark_md node.
type Text struct {
	Tag     string `json:"tag"`
	Content string `json:"content"`
}

// Button is a link button inside an action element.
type Button struct {
	Tag  string `json:"tag"`
	Text Text   `json:"text"`
	Type string `json:"type"`
	URL  string `json:"url"`
}

// Element is one card element. Only the fields of its tag are set.
type Element struct {
	Tag      string   `json:"tag"`
	Content  string   `json:"content,omitempty"`
	Elements []Text   `json:"elements,omitempty"`
	Actions  []Button `json:"actions,omitempty"`
}

// BuildCard renders a digest as a Feishu card: a header with the date and,
// per entry, a divider, the numbered title, a source line, the reason when
// present, the summary and a watch button.
func BuildCard(d video.Digest) Card {
	elements := make([]Element, 0, len(d.Entries)*6)
	for _, e := range d.Entries {
		it := e.Item
		elements = append(elements,
			Element{Tag: "hr"},
			Element{Tag: "markdown", Content: fmt.Sprintf("**#%d %s**", e.Position, it.Title)},
			Element{Tag: "note", Elements: []Text{{Tag: "plain_text", Content: sourceLine(it)}}},
		)
		if it.Reason != "" {
			elements = append(elements, Element{Tag: "markdown", Content: "💡 " + it.Reason})
		}
		elements = append(elements,
			Element{Tag: "markdown", Content: truncate(e.Summary, maxSummaryRunes)},
			Element{Tag: "action", Actions: []Button{{
				Tag:  "button",
				Text: Text{Tag: "plain_text", Content: watchLabel},
				Type: "primary",
				URL:  it.URL,
			}}},
		)
	}

	return Card{
		Config: CardConfig{WideScreenMode: true},
		Header: CardHeader{
			Title:    Text{Tag: "plain_text", Content: Title(d)},
			Template: "blue",
		},
		Elements: elements,
	}
}

// Title is the digest headline.
func Title(d video.Digest) string {
	return fmt.Sprintf("📹 YouTube picks of the day (%s)", d.Date.Format(dateLayout))
}

// PlainText renders a digest for logs and terminals.
func PlainText(d video.Digest) string {
	if d.Empty() {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(Title(d))
	sb.WriteString("\n")
	for _, e := range d.Entries {
		it := e.Item
		sb.WriteString("\n")
		fmt.Fprintf(&sb, "#%d %s\n", e.Position, it.Title)
		fmt.Fprintf(&sb, "%s\n", sourceLine(it))
		if it.Reason != "" {
			fmt.Fprintf(&sb, "💡 %s\n", it.Reason)
		}
		fmt.Fprintf(&sb, "%s\n", e.Summary)
		fmt.Fprintf(&sb, "%s\n", it.URL)
	}
	return sb.String()
}

func sourceLine(it video.RankedItem) string {
	return fmt.Sprintf("📺 %s · ⏱ %s · 👀 %s views",
		it.Source, video.FormatDuration(it.DurationSeconds), video.FormatViews(it.Views))
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:limit-utf8.RuneCountInString(ellipsis)])) + ellipsis
}
