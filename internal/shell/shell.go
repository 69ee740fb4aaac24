// Package shell renders the chat page: a header with title and subtitle,
// and a single mount point for the chat widget.
package shell

import (
	"bytes"
	"embed"
	"html/template"
	"io"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"

	"rag-keeper/internal/config"
)

//go:embed templates/index.html
var templatesFS embed.FS

var pageTemplate = template.Must(template.ParseFS(templatesFS, "templates/index.html"))

// MountID 聊天组件挂载点的元素ID
const MountID = "chat-root"

/**
 * Page chat page shell content
 * @property {string} title - Page heading and document title
 * @property {string} subtitle - Inline markdown shown under the heading
 * @property {string} widgetScript - URL of the chat widget bundle, optional
 */
type Page struct {
	Title        string
	Subtitle     string
	WidgetScript string
}

// 副标题只保留行内元素，<p>会被去掉只留内容
var subtitlePolicy = func() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements("em", "strong", "code", "del")
	p.AllowStandardURLs()
	p.AllowAttrs("href").OnElements("a")
	p.RequireNoFollowOnLinks(true)
	return p
}()

var markdown = goldmark.New()

// DefaultPage 使用默认标题和副标题
func DefaultPage() Page {
	return Page{Title: config.DefaultTitle, Subtitle: config.DefaultSubtitle}
}

// PageFromConfig 从page配置生成页面，空字段使用默认值
func PageFromConfig(cfg config.PageConfig) Page {
	p := DefaultPage()
	if cfg.Title != "" {
		p.Title = cfg.Title
	}
	if cfg.Subtitle != "" {
		p.Subtitle = cfg.Subtitle
	}
	p.WidgetScript = cfg.WidgetScript
	return p
}

type pageData struct {
	Title        string
	Subtitle     template.HTML
	WidgetScript string
}

/**
 * Render the chat page shell
 * @param {io.Writer} w - Destination
 * @param {Page} p - Page content
 * @returns {error} Markdown or template error
 * @description
 * - Subtitle markdown is converted by goldmark and sanitized by bluemonday
 * - The output has exactly one chat widget mount element
 */
func Render(w io.Writer, p Page) error {
	subtitle, err := renderInline(p.Subtitle)
	if err != nil {
		return err
	}
	return pageTemplate.Execute(w, pageData{
		Title:        p.Title,
		Subtitle:     subtitle,
		WidgetScript: p.WidgetScript,
	})
}

func renderInline(src string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(src), &buf); err != nil {
		return "", err
	}
	clean := subtitlePolicy.SanitizeBytes(buf.Bytes())
	return template.HTML(strings.TrimSpace(string(clean))), nil
}
