// Package markdown normalises AI generated report text and converts it to the
// block list the report editor works with.
package markdown

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

type BlockType string

const (
	H1    BlockType = "h1"
	H2    BlockType = "h2"
	H3    BlockType = "h3"
	Item  BlockType = "li"
	Para  BlockType = "p"
	Break BlockType = "br"
)

type Block struct {
	Type    BlockType `json:"type"`
	Content string    `json:"content"`
}

var (
	boldLine     = regexp.MustCompile(`(?m)^[ \t]*\*\*(.*?)\*\*[ \t]*$`)
	numberedBold = regexp.MustCompile(`(?m)^[ \t]*(\d+\.)[ \t]*\*\*(.*?)\*\*[ \t]*$`)
	h1Spacing    = regexp.MustCompile(`(?m)^#[ \t]+(.*?)$`)
	boldKey      = regexp.MustCompile(`\*\*(.*?):\*\*`)
	starBullet   = regexp.MustCompile(`(?m)^([ \t]*)\*[ \t]`)
)

// CleanUp rewrites common model formatting slips: bold lines become "##"
// headers, "1. **X**" becomes "## 1. X", "**Key:**" loses its bold and "*"
// bullets become "-".
func CleanUp(text string) string {
	if text == "" {
		return ""
	}
	clean := boldLine.ReplaceAllString(text, "## $1")
	clean = numberedBold.ReplaceAllString(clean, "## $1 $2")
	clean = h1Spacing.ReplaceAllString(clean, "# $1")
	clean = boldKey.ReplaceAllString(clean, "$1:")
	clean = starBullet.ReplaceAllString(clean, "$1- ")
	return clean
}

// ParseBlocks splits markdown into one block per line. Runs of blank lines
// collapse into a single break.
func ParseBlocks(md string) []Block {
	if md == "" {
		return nil
	}
	var out []Block
	for _, line := range strings.Split(md, "\n") {
		line = strings.TrimSuffix(line, "\r")
		trimmed := strings.TrimSpace(line)

		var b Block
		switch {
		case strings.HasPrefix(line, "# "):
			b = Block{H1, line[2:]}
		case strings.HasPrefix(line, "## "):
			b = Block{H2, line[3:]}
		case strings.HasPrefix(line, "### "):
			b = Block{H3, line[4:]}
		case trimmed == "-":
			b = Block{Item, ""}
		case strings.HasPrefix(trimmed, "- "):
			b = Block{Item, line[strings.Index(line, "-")+2:]}
		case line == " " || line == "  ":
			// placeholder paragraph left by the editor
			b = Block{Para, ""}
		case trimmed == "":
			b = Block{Break, ""}
		default:
			b = Block{Para, line}
		}

		if b.Type == Break && len(out) > 0 && out[len(out)-1].Type == Break {
			continue
		}
		out = append(out, b)
	}
	return out
}

func BlocksToMarkdown(blocks []Block) string {
	lines := make([]string, 0, len(blocks))
	for _, b := range blocks {
		switch b.Type {
		case H1:
			lines = append(lines, "# "+b.Content)
		case H2:
			lines = append(lines, "## "+b.Content)
		case H3:
			lines = append(lines, "### "+b.Content)
		case Item:
			lines = append(lines, "- "+b.Content)
		case Break:
			lines = append(lines, "")
		default:
			lines = append(lines, b.Content)
		}
	}
	return strings.Join(lines, "\n")
}

var renderer = goldmark.New(goldmark.WithExtensions(extension.GFM))

// RenderHTML converts markdown to HTML. Raw HTML in the input is dropped.
func RenderHTML(md string) (string, error) {
	var buf bytes.Buffer
	if err := renderer.Convert([]byte(md), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}
