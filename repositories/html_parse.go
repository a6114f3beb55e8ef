package repositories

import (
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"catalog-sync-worker/domain"
)

// parseListPage pulls the record links and the visible text out of a result
// page. When the catalog names a result container that is missing from the
// document the page is reported as structurally broken.
func parseListPage(doc, pageURL string, catalog domain.Catalog) (domain.Page, error) {
	root, err := html.Parse(strings.NewReader(doc))
	if err != nil {
		return domain.Page{}, err
	}

	scope := root
	if catalog.ResultContainer != "" {
		key, val, _ := strings.Cut(catalog.ResultContainer, "=")
		scope = findFirst(root, func(n *html.Node) bool {
			return n.Type == html.ElementNode && attr(n, strings.TrimSpace(key)) == strings.TrimSpace(val)
		})
		if scope == nil {
			return domain.Page{RawText: text(root)}, domain.ErrStructural
		}
	}

	base, _ := url.Parse(pageURL)
	var links []string
	walk(scope, func(n *html.Node) {
		if n.Type != html.ElementNode || n.Data != "a" {
			return
		}
		href := attr(n, "href")
		if href == "" || !matchesAny(href, catalog.LinkPatterns) {
			return
		}
		links = append(links, resolve(base, href))
	})

	return domain.Page{RecordLinks: links, RawText: text(root)}, nil
}

func matchesAny(href string, patterns []string) bool {
	if len(patterns) == 0 {
		return true
	}
	for _, p := range patterns {
		if strings.Contains(href, p) {
			return true
		}
	}
	return false
}

func resolve(base *url.URL, href string) string {
	if base == nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

func walk(n *html.Node, fn func(*html.Node)) {
	fn(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

func findFirst(n *html.Node, match func(*html.Node) bool) *html.Node {
	if match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, match); found != nil {
			return found
		}
	}
	return nil
}

func findAll(n *html.Node, match func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	walk(n, func(c *html.Node) {
		if match(c) {
			out = append(out, c)
		}
	})
	return out
}

func element(tag string) func(*html.Node) bool {
	return func(n *html.Node) bool { return n.Type == html.ElementNode && n.Data == tag }
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// text returns the whitespace-normalized visible text below n, skipping
// script and style contents.
func text(n *html.Node) string {
	var b strings.Builder
	collectText(n, &b)
	return strings.Join(strings.Fields(b.String()), " ")
}

func collectText(n *html.Node, b *strings.Builder) {
	if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style" || n.Data == "noscript") {
		return
	}
	if n.Type == html.TextNode {
		b.WriteString(n.Data)
		b.WriteString(" ")
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, b)
	}
}
