// Package htmltext turns HTML and Confluence storage-format markup into
// plain text whose paragraphs are separated by blank lines.
package htmltext

import (
	"html"
	"regexp"
	"strings"
)

var (
	titleTag      = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	dropTags      = regexp.MustCompile(`(?is)<(script|style|noscript|head|svg)[^>]*>.*?</(script|style|noscript|head|svg)>`)
	comments      = regexp.MustCompile(`(?s)<!--.*?-->`)
	cdata         = regexp.MustCompile(`(?s)<!\[CDATA\[(.*?)\]\]>`)
	blockElements = regexp.MustCompile(`(?i)</?(p|div|h[1-6]|ul|ol|table|section|article|blockquote|pre|ac:structured-macro|ac:rich-text-body)(\s[^>]*)?>`)
	lineElements  = regexp.MustCompile(`(?i)</(li|tr)>|<br\s*/?>|<hr\s*/?>`)
	cellElements  = regexp.MustCompile(`(?i)</(td|th)>`)
	allTags       = regexp.MustCompile(`<[^>]+>`)
	multiSpaces   = regexp.MustCompile(`[ \t\x{00a0}]+`)
	blankLines    = regexp.MustCompile(`\n{3,}`)
)

// Title returns the document <title>, or "" when there is none.
func Title(content string) string {
	m := titleTag.FindStringSubmatch(content)
	if len(m) < 2 {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(m[1]))
}

// ToText strips markup, keeping block boundaries as blank lines and list
// items and table rows as line breaks.
func ToText(content string) string {
	content = dropTags.ReplaceAllString(content, "")
	content = comments.ReplaceAllString(content, "")
	content = cdata.ReplaceAllString(content, "$1")

	content = blockElements.ReplaceAllString(content, "\n\n")
	content = lineElements.ReplaceAllString(content, "\n")
	content = cellElements.ReplaceAllString(content, " ")
	content = allTags.ReplaceAllString(content, "")
	content = html.UnescapeString(content)

	content = multiSpaces.ReplaceAllString(content, " ")
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	content = strings.Join(lines, "\n")
	content = blankLines.ReplaceAllString(content, "\n\n")
	return strings.TrimSpace(content)
}
