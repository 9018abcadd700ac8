package extractor

import (
	"bytes"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// decodePlainText decodes UTF-8 with replacement of undecodable bytes
func decodePlainText(data []byte) (string, error) {
	return strings.ToValidUTF8(string(data), "�"), nil
}

// decodeHTML parses the document and returns the visible text with
// single-space separators
func decodeHTML(data []byte) (string, error) {
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return "", err
	}

	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteString(" ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return strings.Join(strings.Fields(b.String()), " "), nil
}

// HTMLToText strips tags from an HTML body; used when a message carries no
// plain-text alternative
func HTMLToText(body string) string {
	text, err := decodeHTML([]byte(body))
	if err != nil {
		return ""
	}
	return text
}

var (
	rtfParRegex     = regexp.MustCompile(`\\par\b ?`)
	rtfTabRegex     = regexp.MustCompile(`\\tab\b ?`)
	rtfHexRegex     = regexp.MustCompile(`\\'[0-9a-fA-F]{2}`)
	rtfControlRegex = regexp.MustCompile(`\\[a-zA-Z]+-?\d* ?`)
)

// decodeRTF strips RTF control words and braces after mapping \par and
// \tab to their whitespace equivalents
func decodeRTF(data []byte) (string, error) {
	text := strings.ToValidUTF8(string(data), "")

	text = rtfParRegex.ReplaceAllString(text, "\n")
	text = rtfTabRegex.ReplaceAllString(text, "\t")
	text = rtfHexRegex.ReplaceAllString(text, "")
	text = rtfControlRegex.ReplaceAllString(text, "")
	text = strings.ReplaceAll(text, "{", "")
	text = strings.ReplaceAll(text, "}", "")

	return strings.TrimSpace(text), nil
}
