package htmlutil

import (
	"bytes"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

func GetText(node *html.Node) string {
	var buffer bytes.Buffer
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n == nil {
			return
		}
		if n.Type == html.TextNode {
			buffer.WriteString(n.Data)
			return
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(node)
	return buffer.String()
}

func removeNonPrintable(s string) string {
	out := strings.Builder{}
	for _, c := range s {
		if unicode.IsPrint(c) {
			out.WriteRune(c)
		}
	}
	return out.String()
}

// CleanText returns the printable, whitespace-trimmed text of a selection.
func CleanText(sel *goquery.Selection) string {
	var buffer strings.Builder
	for _, node := range sel.Nodes {
		buffer.WriteString(GetText(node))
	}
	return strings.TrimSpace(removeNonPrintable(buffer.String()))
}

// Option is one <option> entry of a <select> element.
type Option struct {
	Value string
	Label string
}

// GetOptions extracts the options of every <select> matched by the selection.
func GetOptions(sel *goquery.Selection) []Option {
	var options []Option
	sel.Find("option").Each(func(_ int, opt *goquery.Selection) {
		value, ok := opt.Attr("value")
		if !ok {
			return
		}
		options = append(options, Option{
			Value: strings.TrimSpace(value),
			Label: CleanText(opt),
		})
	})
	return options
}

// HiddenInputs collects the name/value pairs of hidden <input> elements,
// which catalog listing pages echo back as "next page" continuations.
func HiddenInputs(sel *goquery.Selection) map[string]string {
	inputs := map[string]string{}
	sel.Find(`input[type="hidden"]`).Each(func(_ int, input *goquery.Selection) {
		name, ok := input.Attr("name")
		if !ok || name == "" {
			return
		}
		inputs[name] = input.AttrOr("value", "")
	})
	return inputs
}
