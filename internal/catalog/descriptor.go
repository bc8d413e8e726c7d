package catalog

import (
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// DescriptorFields are the inputs of a descriptive string, in the order they are joined.
type DescriptorFields struct {
	Title        string
	Tags         []string
	Sources      []string
	Synonyms     []string
	Status       string
	Episodes     *int
	Description  string
	Genres       []string
	Demographics []string
}

// BuildDescriptor joins the non-empty fields with single spaces.
func BuildDescriptor(f DescriptorFields) string {
	var episodes string
	if f.Episodes != nil {
		episodes = strconv.Itoa(*f.Episodes)
	}

	parts := []string{
		f.Title,
		strings.Join(f.Tags, " "),
		strings.Join(f.Sources, " "),
		strings.Join(f.Synonyms, " "),
		f.Status,
		episodes,
		PlainText(f.Description),
		strings.Join(f.Genres, " "),
		strings.Join(f.Demographics, " "),
	}

	kept := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}

// PlainText strips markup from an HTML fragment and collapses whitespace.
func PlainText(fragment string) string {
	if !strings.ContainsAny(fragment, "<&") {
		return strings.Join(strings.Fields(fragment), " ")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return strings.Join(strings.Fields(fragment), " ")
	}
	doc.Find("br").ReplaceWithHtml(" ")
	return strings.Join(strings.Fields(doc.Text()), " ")
}
