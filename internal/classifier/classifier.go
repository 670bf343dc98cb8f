// Package classifier turns a fetched product page into a stock state.
package classifier

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"

	"github.com/ykvlv/stockwatch-bot/internal/domain"
)

// Classifier extracts a stock state from raw page content.
// Implementations must not panic and must degrade to domain.NotFound.
type Classifier interface {
	Classify(page []byte) domain.StockState
}

// Marker maps a visible phrase on the page to a stock state.
type Marker struct {
	Phrase string
	State  domain.StockState
}

// DefaultMarkers are the button captions of the retailer product page.
func DefaultMarkers() []Marker {
	return []Marker{
		{Phrase: "Sold Out", State: domain.SoldOut},
		{Phrase: "Coming Soon", State: domain.ComingSoon},
		{Phrase: "Add to Cart", State: domain.InStock},
	}
}

// Container restricts which enclosing element makes a marker count.
// An empty Class matches any element with the given Tag.
type Container struct {
	Tag   string
	Class string
}

func (c Container) matches(n *html.Node) bool {
	if n.Type != html.ElementNode || n.Data != c.Tag {
		return false
	}
	if c.Class == "" {
		return true
	}
	for _, a := range n.Attr {
		if a.Key == "class" {
			for _, cls := range strings.Fields(a.Val) {
				if cls == c.Class {
					return true
				}
			}
		}
	}
	return false
}

// MarkerClassifier scans text nodes in document order. A marker counts only
// inside Container; the last counted marker decides the state.
type MarkerClassifier struct {
	Markers   []Marker
	Container Container
}

// New returns a classifier with the default markers inside any div.
func New() *MarkerClassifier {
	return &MarkerClassifier{
		Markers:   DefaultMarkers(),
		Container: Container{Tag: "div"},
	}
}

// Classify implements Classifier.
func (c *MarkerClassifier) Classify(page []byte) domain.StockState {
	doc, err := html.Parse(bytes.NewReader(page))
	if err != nil {
		return domain.NotFound
	}

	state := domain.NotFound
	var walk func(n *html.Node, inContainer bool)
	walk = func(n *html.Node, inContainer bool) {
		switch n.Type {
		case html.ElementNode:
			switch n.Data {
			case "script", "style", "noscript", "template":
				return
			}
			inContainer = inContainer || c.Container.matches(n)
		case html.TextNode:
			if inContainer {
				if st, ok := c.match(n.Data); ok {
					state = st
				}
			}
			return
		}
		for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
			walk(ch, inContainer)
		}
	}
	walk(doc, false)
	return state
}

func (c *MarkerClassifier) match(text string) (domain.StockState, bool) {
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return domain.NotFound, false
	}
	for _, m := range c.Markers {
		if strings.EqualFold(text, m.Phrase) {
			return m.State, true
		}
	}
	return domain.NotFound, false
}
