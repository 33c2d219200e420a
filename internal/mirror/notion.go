package mirror

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/grind-ai/grind/internal/config"
	"github.com/grind-ai/grind/internal/errors"
	"github.com/grind-ai/grind/internal/memory"
	"github.com/grind-ai/grind/internal/model"
)

// Notion rejects rich text objects longer than this.
const notionTextLimit = 2000

// Notion writes each exchange as a page in a Notion database.
type Notion struct {
	cfg      config.NotionConfig
	client   *http.Client
	endpoint model.Endpoint
}

// NewNotion creates a Notion sink.
func NewNotion(cfg config.NotionConfig) *Notion {
	return &Notion{
		cfg:      cfg,
		client:   model.NewHTTPClient(cfg.Timeout()),
		endpoint: model.Endpoint{Provider: "notion", Label: "NOTION"},
	}
}

type notionText struct {
	Text struct {
		Content string `json:"content"`
	} `json:"text"`
}

type notionPage struct {
	Parent struct {
		DatabaseID string `json:"database_id"`
	} `json:"parent"`
	Properties struct {
		Name struct {
			Title []notionText `json:"title"`
		} `json:"Name"`
		Content struct {
			RichText []notionText `json:"rich_text"`
		} `json:"Content"`
	} `json:"properties"`
}

func textBlock(s string) []notionText {
	var t notionText
	t.Text.Content = s
	return []notionText{t}
}

// pageFor builds the page body: "GRIND - <date>" titled, with the
// exchange as rich text.
func (n *Notion) pageFor(rec memory.Record) notionPage {
	date := rec.Timestamp
	if len(date) > 10 {
		date = date[:10]
	}

	var page notionPage
	page.Parent.DatabaseID = n.cfg.DatabaseID
	page.Properties.Name.Title = textBlock("GRIND - " + date)
	page.Properties.Content.RichText = textBlock(clip(fmt.Sprintf("User: %s\nGRIND: %s", rec.Input, rec.Response), notionTextLimit))
	return page
}

// Mirror creates one page.
func (n *Notion) Mirror(ctx context.Context, rec memory.Record) error {
	headers := map[string]string{
		"Authorization":  "Bearer " + n.cfg.APIKey,
		"Notion-Version": n.cfg.Version,
	}
	url := strings.TrimRight(n.cfg.BaseURL, "/") + "/pages"

	if _, err := n.endpoint.PostJSON(ctx, n.client, url, headers, n.pageFor(rec)); err != nil {
		return errors.NewBuilder(errors.CodeMirrorFailed, "notion page create failed").
			Temporary().
			Wrap(err).
			WithContext("sink", n.Name()).
			Build()
	}
	return nil
}

// Name implements Sink.
func (n *Notion) Name() string {
	return "notion"
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
