// Package render localizes HTML templates.
//
// Elements opt in through marker attributes:
//
//	data-i18n="key"          replace the text content
//	data-i18n-html="key"     replace the content with an HTML fragment
//	data-i18n-md="key"       replace the content with rendered Markdown
//	data-i18n-attr="a:k; b:j" set attributes from keys
//
// Markers are removed from the output. A key that does not resolve to a
// scalar leaves the element untouched.
package render

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Marker attributes.
const (
	AttrText = "data-i18n"
	AttrHTML = "data-i18n-html"
	AttrMD   = "data-i18n-md"
	AttrAttr = "data-i18n-attr"
)

// CriticalHeadMarker names the meta tag that marks an injected head.
const CriticalHeadMarker = "i18n-critical-head"

// Options describes one page render.
type Options struct {
	// HTMLLang is written to <html lang>.
	HTMLLang string
	// RTL sets dir="rtl" on <html>; otherwise dir is removed.
	RTL bool
	// Vars are substituted for {name} in translated text.
	Vars map[string]string
	// ExemptLiterals are texts (compared trimmed) never interpolated.
	ExemptLiterals []string
	// Depth is the number of directories between the page and the output
	// root holding assets/.
	Depth int
	// CriticalHead injects the anti-flash head when non-nil.
	CriticalHead *CriticalHead
	// Sanitize filters HTML and Markdown values through the policy.
	Sanitize bool
}

// CriticalHead holds the background colors of the injected head.
type CriticalHead struct {
	DarkBG  string
	LightBG string
}

// Renderer applies translations to parsed HTML. It is safe for concurrent
// use.
type Renderer struct {
	policy *bluemonday.Policy
	md     goldmark.Markdown
}

// New returns a renderer with a UGC sanitizing policy that also keeps
// spans, class attributes and link targets.
func New() *Renderer {
	p := bluemonday.UGCPolicy()
	p.AllowElements("span")
	p.AllowAttrs("class").Globally()
	p.AllowAttrs("target").OnElements("a")
	return &Renderer{
		policy: p,
		md:     goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}
}

// Render reads a template from src and writes the localized page to w.
func (r *Renderer) Render(w io.Writer, src io.Reader, lk *Lookup, opts Options) error {
	doc, err := html.Parse(src)
	if err != nil {
		return fmt.Errorf("parsing html: %w", err)
	}
	if err := r.Apply(doc, lk, opts); err != nil {
		return err
	}
	return html.Render(w, doc)
}

// RenderString is Render over strings.
func (r *Renderer) RenderString(src string, lk *Lookup, opts Options) (string, error) {
	var buf bytes.Buffer
	if err := r.Render(&buf, strings.NewReader(src), lk, opts); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Apply localizes a parsed document in place.
func (r *Renderer) Apply(doc *html.Node, lk *Lookup, opts Options) error {
	if opts.CriticalHead != nil {
		if head := findElement(doc, atom.Head); head != nil {
			injectCriticalHead(head, *opts.CriticalHead)
		}
	}

	if root := findElement(doc, atom.Html); root != nil {
		if opts.HTMLLang != "" {
			setAttr(root, "lang", opts.HTMLLang)
		}
		if opts.RTL {
			setAttr(root, "dir", "rtl")
		} else {
			removeAttr(root, "dir")
		}
	}

	f := newFormatter(opts.Vars, opts.ExemptLiterals)

	// Each pass collects its elements first so content inserted by one
	// pass is only seen by later passes.
	for _, el := range collect(doc, AttrText) {
		key := strings.TrimSpace(getAttr(el, AttrText))
		removeAttr(el, AttrText)
		if key == "" {
			continue
		}
		if text, ok := lk.Text(key); ok {
			replaceChildren(el, &html.Node{Type: html.TextNode, Data: f.format(text)})
		}
	}

	for _, el := range collect(doc, AttrHTML) {
		key := strings.TrimSpace(getAttr(el, AttrHTML))
		removeAttr(el, AttrHTML)
		text, ok := lk.Text(key)
		if !ok || key == "" {
			continue
		}
		if err := r.setFragment(el, f.format(text), opts.Sanitize); err != nil {
			return fmt.Errorf("%s=%q: %w", AttrHTML, key, err)
		}
	}

	for _, el := range collect(doc, AttrMD) {
		key := strings.TrimSpace(getAttr(el, AttrMD))
		removeAttr(el, AttrMD)
		text, ok := lk.Text(key)
		if !ok || key == "" {
			continue
		}
		var buf bytes.Buffer
		if err := r.md.Convert([]byte(f.format(text)), &buf); err != nil {
			return fmt.Errorf("%s=%q: %w", AttrMD, key, err)
		}
		if err := r.setFragment(el, buf.String(), opts.Sanitize); err != nil {
			return fmt.Errorf("%s=%q: %w", AttrMD, key, err)
		}
	}

	for _, el := range collect(doc, AttrAttr) {
		rules := ParseAttrRules(getAttr(el, AttrAttr))
		removeAttr(el, AttrAttr)
		for _, rule := range rules {
			if text, ok := lk.Text(rule.Key); ok {
				setAttr(el, rule.Attr, f.format(text))
			}
		}
	}

	rewriteAssets(doc, opts.Depth)
	return nil
}

// setFragment replaces the children of el with the parsed fragment.
func (r *Renderer) setFragment(el *html.Node, fragment string, sanitize bool) error {
	if sanitize {
		fragment = r.policy.Sanitize(fragment)
	}
	nodes, err := html.ParseFragment(strings.NewReader(fragment), el)
	if err != nil {
		return err
	}
	replaceChildren(el, nodes...)
	return nil
}

// ---------------------------------------------------------------------------
// Attribute rules
// ---------------------------------------------------------------------------

// AttrRule maps an attribute to a translation key.
type AttrRule struct {
	Attr string
	Key  string
}

var ruleSepRe = regexp.MustCompile(`[;,]\s*`)

// ParseAttrRules parses "attr:key; attr2:key2". Commas also separate
// rules. Malformed items are skipped.
func ParseAttrRules(raw string) []AttrRule {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	var out []AttrRule
	for _, part := range ruleSepRe.Split(raw, -1) {
		attr, key, ok := strings.Cut(part, ":")
		if !ok {
			continue
		}
		attr, key = strings.TrimSpace(attr), strings.TrimSpace(key)
		if attr != "" && key != "" {
			out = append(out, AttrRule{Attr: attr, Key: key})
		}
	}
	return out
}

// ---------------------------------------------------------------------------
// Variables
// ---------------------------------------------------------------------------

var varRe = regexp.MustCompile(`\{([a-zA-Z_][a-zA-Z0-9_]*)\}`)

type formatter struct {
	vars   map[string]string
	exempt map[string]bool
}

func newFormatter(vars map[string]string, exempt []string) formatter {
	f := formatter{vars: vars, exempt: make(map[string]bool, len(exempt))}
	for _, e := range exempt {
		if e = strings.TrimSpace(e); e != "" {
			f.exempt[e] = true
		}
	}
	return f
}

// format substitutes known {name} variables. Unknown names stay as they are.
func (f formatter) format(text string) string {
	if text == "" || len(f.vars) == 0 || f.exempt[strings.TrimSpace(text)] {
		return text
	}
	return varRe.ReplaceAllStringFunc(text, func(m string) string {
		if v, ok := f.vars[m[1:len(m)-1]]; ok {
			return v
		}
		return m
	})
}

// FormatVars substitutes {name} variables in text unless the trimmed text
// is one of exempt.
func FormatVars(text string, vars map[string]string, exempt []string) string {
	return newFormatter(vars, exempt).format(text)
}

// ---------------------------------------------------------------------------
// Critical head
// ---------------------------------------------------------------------------

// injectCriticalHead prepends the color-scheme declaration, a background
// style and theme colors to head, once.
func injectCriticalHead(head *html.Node, ch CriticalHead) {
	for c := head.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == atom.Meta && getAttr(c, "name") == CriticalHeadMarker {
			return
		}
	}

	style := element(atom.Style)
	style.AppendChild(&html.Node{
		Type: html.TextNode,
		Data: fmt.Sprintf("html,body{background:%s;}@media (prefers-color-scheme: light){html,body{background:%s;}}", ch.DarkBG, ch.LightBG),
	})

	nodes := []*html.Node{
		element(atom.Meta, "name", CriticalHeadMarker, "content", "1"),
		element(atom.Meta, "name", "color-scheme", "content", "dark light"),
		style,
		element(atom.Meta, "name", "theme-color", "media", "(prefers-color-scheme: dark)", "content", ch.DarkBG),
		element(atom.Meta, "name", "theme-color", "media", "(prefers-color-scheme: light)", "content", ch.LightBG),
	}
	first := head.FirstChild
	for _, n := range nodes {
		if first == nil {
			head.AppendChild(n)
		} else {
			head.InsertBefore(n, first)
		}
	}
}

// ---------------------------------------------------------------------------
// Asset URLs
// ---------------------------------------------------------------------------

// RewriteAssetURL prefixes a relative assets/ URL with ../ per depth level.
// Absolute, external, anchor, mailto and data URLs are returned unchanged.
func RewriteAssetURL(url string, depth int) string {
	u := strings.TrimSpace(url)
	if u == "" || depth <= 0 {
		return url
	}
	for _, prefix := range []string{"http://", "https://", "//", "mailto:", "#", "data:", "/"} {
		if strings.HasPrefix(u, prefix) {
			return url
		}
	}
	if !strings.HasPrefix(u, "assets/") {
		return url
	}
	return strings.Repeat("../", depth) + u
}

func rewriteAssets(doc *html.Node, depth int) {
	walk(doc, func(n *html.Node) {
		var attr string
		switch n.DataAtom {
		case atom.Link:
			attr = "href"
		case atom.Script, atom.Img:
			attr = "src"
		default:
			return
		}
		if v := getAttr(n, attr); v != "" {
			setAttr(n, attr, RewriteAssetURL(v, depth))
		}
	})
}
