package fetch

import (
	"bytes"
	"mime"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// feedLinkTypes はフィードとして扱うlinkタグのtype属性と優先度。
var feedLinkTypes = map[string]int{
	"application/atom+xml": 10,
	"application/rss+xml":  5,
}

func isHTML(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.TrimSpace(strings.Split(contentType, ";")[0])
	}
	return strings.EqualFold(mediaType, "text/html") || strings.EqualFold(mediaType, "application/xhtml+xml")
}

// DiscoverFeedURL はHTMLのheadにある rel="alternate" のlinkタグからフィードURLを選ぶ。
// 同一ホストのフィードを優先し、次にAtomをRSSより優先する。見つからなければ空文字列を返す。
func DiscoverFeedURL(body []byte, pageURL string) string {
	base, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}

	best, bestScore := "", -1
	tokenizer := html.NewTokenizer(bytes.NewReader(body))
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return best

		case html.EndTagToken:
			if name, _ := tokenizer.TagName(); string(name) == "head" {
				return best
			}

		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := tokenizer.TagName()
			if string(name) == "body" {
				return best
			}
			if string(name) != "link" || !hasAttr {
				continue
			}

			var rel, linkType, href string
			for more := true; more; {
				var key, val []byte
				key, val, more = tokenizer.TagAttr()
				switch strings.ToLower(string(key)) {
				case "rel":
					rel = strings.ToLower(string(val))
				case "type":
					linkType = strings.ToLower(string(val))
				case "href":
					href = strings.TrimSpace(string(val))
				}
			}
			priority, ok := feedLinkTypes[linkType]
			if !ok || href == "" || !hasToken(rel, "alternate") {
				continue
			}
			ref, err := url.Parse(href)
			if err != nil {
				continue
			}
			resolved := base.ResolveReference(ref)
			if resolved.Scheme != "http" && resolved.Scheme != "https" {
				continue
			}

			score := priority
			if strings.EqualFold(resolved.Hostname(), base.Hostname()) {
				score += 100
			}
			if score > bestScore {
				best, bestScore = resolved.String(), score
			}
		}
	}
}

func hasToken(list, token string) bool {
	for _, f := range strings.Fields(list) {
		if f == token {
			return true
		}
	}
	return false
}
