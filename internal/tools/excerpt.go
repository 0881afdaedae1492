package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-shiori/go-readability"
	"github.com/microcosm-cc/bluemonday"

	"github.com/rahul/consolenano/internal/page"
)

// DefaultExcerptLimit bounds the text handed to the model.
const DefaultExcerptLimit = 4000

var strict = bluemonday.StrictPolicy()

// Article is the readable part of a page.
type Article struct {
	Title   string
	Excerpt string
	Text    string
}

func (a Article) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "TITLE: %s\n", a.Title)
	if a.Excerpt != "" {
		fmt.Fprintf(&b, "EXCERPT: %s\n", a.Excerpt)
	}
	b.WriteString("\n-- CONTENT --\n")
	b.WriteString(a.Text)
	return b.String()
}

// Excerpt extracts the readable text of rawHTML, sanitised and cut to limit
// runes (DefaultExcerptLimit when limit is not positive).
func Excerpt(rawHTML, pageURL string, limit int) (Article, error) {
	if limit <= 0 {
		limit = DefaultExcerptLimit
	}
	u, err := url.Parse(pageURL)
	if err != nil {
		return Article{}, fmt.Errorf("parse url: %w", err)
	}
	article, err := readability.FromReader(strings.NewReader(rawHTML), u)
	if err != nil {
		return Article{}, fmt.Errorf("parse article: %w", err)
	}

	text := collapse(Sanitize(article.TextContent))
	if r := []rune(text); len(r) > limit {
		text = string(r[:limit]) + "\n... (content truncated) ..."
	}
	return Article{
		Title:   collapse(Sanitize(article.Title)),
		Excerpt: collapse(Sanitize(article.Excerpt)),
		Text:    text,
	}, nil
}

// Sanitize strips every tag from s and returns plain text. Model output goes
// through it before reaching a display.
func Sanitize(s string) string {
	return html.UnescapeString(strict.Sanitize(s))
}

func collapse(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, l := range lines {
		l = strings.Join(strings.Fields(l), " ")
		if l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}

// PageTool reads the console page the user is looking at.
type PageTool struct {
	Source page.Source
	Limit  int
}

func NewPageTool(src page.Source) *PageTool {
	return &PageTool{Source: src, Limit: DefaultExcerptLimit}
}

func (p *PageTool) Name() string {
	return "current_page"
}

func (p *PageTool) Description() string {
	return "Read the main text of the AWS console page the user currently has open."
}

func (p *PageTool) Parameters() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	}
}

func (p *PageTool) Execute(ctx context.Context, input string) (string, error) {
	doc, err := p.Source.Document(ctx)
	if err != nil {
		return "", fmt.Errorf("read page: %w", err)
	}
	article, err := Excerpt(doc.HTML, doc.URL, p.Limit)
	if err != nil {
		return "", err
	}
	return article.String(), nil
}

// DocsTool fetches an AWS documentation page and returns its readable text.
type DocsTool struct {
	Client    *http.Client
	UserAgent string
	Limit     int
}

func NewDocsTool() *DocsTool {
	return &DocsTool{
		Client:    &http.Client{Timeout: 30 * time.Second},
		UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0 Safari/537.36",
		Limit:     DefaultExcerptLimit * 2,
	}
}

func (d *DocsTool) Name() string {
	return "aws_docs"
}

func (d *DocsTool) Description() string {
	return "Fetch a page from docs.aws.amazon.com or aws.amazon.com and extract its main content."
}

func (d *DocsTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url": map[string]any{
				"type":        "string",
				"description": "Full URL of the AWS documentation page",
			},
		},
		"required": []string{"url"},
	}
}

func (d *DocsTool) Execute(ctx context.Context, input string) (string, error) {
	var args struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal([]byte(input), &args); err != nil {
		return "", fmt.Errorf("invalid input: %w", err)
	}
	u, err := url.Parse(args.URL)
	if err != nil || u.Scheme != "https" || !awsHost(u.Hostname()) {
		return "", fmt.Errorf("not an AWS documentation url: %q", args.URL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", d.UserAgent)

	resp, err := d.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch url: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch url: status code %d", resp.StatusCode)
	}

	article, err := readability.FromReader(resp.Body, u)
	if err != nil {
		return "", fmt.Errorf("parse article: %w", err)
	}
	text := collapse(Sanitize(article.TextContent))
	if r := []rune(text); len(r) > d.Limit {
		text = string(r[:d.Limit]) + "\n... (content truncated) ..."
	}
	return Article{Title: article.Title, Excerpt: article.Excerpt, Text: text}.String(), nil
}

func awsHost(host string) bool {
	return host == "aws.amazon.com" || strings.HasSuffix(host, ".aws.amazon.com") ||
		host == "docs.aws.amazon.com"
}
