package search

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"

	"github.com/grind-ai/grind/internal/config"
	"github.com/grind-ai/grind/internal/model"
)

// maxTopicRunes caps related-topic text.
const maxTopicRunes = 500

// DuckDuckGo queries the Instant Answer API. It needs no credentials.
type DuckDuckGo struct {
	cfg       config.ProviderConfig
	client    *http.Client
	endpoint  model.Endpoint
	converter *md.Converter
}

// NewDuckDuckGo creates the unstructured search backend.
func NewDuckDuckGo(cfg config.SearchConfig) *DuckDuckGo {
	return &DuckDuckGo{
		cfg:       cfg.DuckDuckGo,
		client:    model.NewHTTPClient(cfg.DuckDuckGo.Timeout()),
		endpoint:  model.Endpoint{Provider: "duckduckgo", Label: "DUCKDUCKGO"},
		converter: md.NewConverter("", true, nil),
	}
}

// Generate answers with the abstract, or the first related topic.
func (d *DuckDuckGo) Generate(ctx context.Context, req *model.Request) (*model.Response, error) {
	start := time.Now()

	params := url.Values{}
	params.Set("q", req.SearchText())
	params.Set("format", "json")
	params.Set("no_redirect", "1")
	params.Set("no_html", "0")

	raw, err := d.endpoint.Get(ctx, d.client, strings.TrimRight(d.cfg.BaseURL, "/")+"/?"+params.Encode())
	if err != nil {
		return nil, err
	}

	var resp instantAnswer
	if err := d.endpoint.Decode(raw, &resp); err != nil {
		return nil, err
	}

	text := d.answer(resp)
	if text == "" {
		return nil, d.endpoint.Fail(model.FailureNoResults, nil)
	}

	return &model.Response{
		Text:       text,
		Backend:    d.Name(),
		DurationMs: time.Since(start).Milliseconds(),
	}, nil
}

func (d *DuckDuckGo) answer(resp instantAnswer) string {
	if abstract := strings.TrimSpace(resp.AbstractText); abstract != "" {
		return abstract
	}
	if resp.Abstract != "" {
		if converted, err := d.converter.ConvertString(resp.Abstract); err == nil {
			if converted = strings.TrimSpace(converted); converted != "" {
				return converted
			}
		}
	}

	for _, topic := range flattenTopics(resp.RelatedTopics) {
		text := strings.TrimSpace(topic.Text)
		if text == "" {
			text = topicFromHTML(topic.Result)
		}
		if text != "" {
			return truncate(text, maxTopicRunes)
		}
	}
	return ""
}

// topicFromHTML renders a topic's Result markup, an anchor followed by
// a description, as a markdown link plus text.
func topicFromHTML(html string) string {
	if strings.TrimSpace(html) == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}

	anchor := doc.Find("a").First()
	title := strings.TrimSpace(anchor.Text())
	href, _ := anchor.Attr("href")
	full := strings.TrimSpace(doc.Text())
	if title == "" || href == "" {
		return full
	}
	rest := strings.TrimSpace(strings.TrimPrefix(full, title))
	if rest == "" {
		return "[" + title + "](" + href + ")"
	}
	return "[" + title + "](" + href + ") " + rest
}

func flattenTopics(topics []relatedTopic) []relatedTopic {
	var out []relatedTopic
	for _, t := range topics {
		if len(t.Topics) > 0 {
			out = append(out, flattenTopics(t.Topics)...)
			continue
		}
		out = append(out, t)
	}
	return out
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// IsAvailable reports whether an endpoint is configured. The API is keyless.
func (d *DuckDuckGo) IsAvailable() bool {
	return d != nil && d.cfg.BaseURL != ""
}

// Name returns the backend name.
func (d *DuckDuckGo) Name() string {
	return d.endpoint.Provider
}

// Label returns the tag label used in failure markers.
func (d *DuckDuckGo) Label() string {
	return d.endpoint.Label
}

type relatedTopic struct {
	Text     string         `json:"Text"`
	FirstURL string         `json:"FirstURL"`
	Result   string         `json:"Result"`
	Name     string         `json:"Name"`
	Topics   []relatedTopic `json:"Topics"`
}

type instantAnswer struct {
	Abstract       string         `json:"Abstract"`
	AbstractText   string         `json:"AbstractText"`
	AbstractSource string         `json:"AbstractSource"`
	AbstractURL    string         `json:"AbstractURL"`
	Heading        string         `json:"Heading"`
	RelatedTopics  []relatedTopic `json:"RelatedTopics"`
}
