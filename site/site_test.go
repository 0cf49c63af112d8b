package site

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sxxw-site/sitei18n/config"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

// newProject lays out a small site and returns its config.
func newProject(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	cfg := &config.Config{
		Root:          dir,
		BaseLang:      "zh-hans",
		SrcDir:        src,
		DocsDir:       filepath.Join(dir, "docs"),
		LanguagesFile: filepath.Join(src, "assets", "languages.json"),
		LocalesDir:    filepath.Join(src, "locales"),
		Build: config.Build{
			Vars:           map[string]string{"company": "树下小屋", "year": "2025"},
			LangVars:       map[string]map[string]string{"en": {"company": "TreeHouse"}},
			BaseAlsoAtRoot: true,
			SanitizeHTML:   true,
		},
	}

	writeFile(t, cfg.LanguagesFile, `[
		{"code": "zh-hans", "name": "简体中文"},
		{"code": "en-GB", "name": "English (UK)", "fallbacks": ["en"]},
		{"code": "ar", "name": "العربية", "rtl": true}
	]`)
	writeFile(t, filepath.Join(src, "assets", "site.css"), "body{}")
	writeFile(t, filepath.Join(src, "assets", "img", "logo.png"), "png")
	writeFile(t, filepath.Join(src, "assets", "partial.html"), "<p>not a page</p>")
	writeFile(t, filepath.Join(src, "locales", "zh-hans.json"), `{"title": "首页", "footer": "© {year} {company}", "only.base": "基础"}`)
	writeFile(t, filepath.Join(src, "locales", "en.json"), `{"title": "Home", "footer": "© {year} {company}"}`)
	writeFile(t, filepath.Join(src, "locales", "ar.json"), `{"title": "الرئيسية"}`)

	page := `<html><head><link rel="stylesheet" href="assets/site.css"></head><body>` +
		`<h1 data-i18n="title">x</h1><p data-i18n="only.base">x</p><footer data-i18n="footer">x</footer></body></html>`
	writeFile(t, filepath.Join(src, "index.html"), page)
	writeFile(t, filepath.Join(src, "pages", "about", "team.html"), page)
	return cfg
}

func TestTemplatesAndDepth(t *testing.T) {
	cfg := newProject(t)
	writeFile(t, filepath.Join(cfg.SrcDir, "locales", "stray.html"), "")

	got, err := Templates(cfg.SrcDir)
	require.NoError(t, err)
	assert.Equal(t, []string{"index.html", filepath.Join("pages", "about", "team.html")}, got)

	assert.Equal(t, 0, PageDepth("index.html"))
	assert.Equal(t, 2, PageDepth(filepath.Join("pages", "about", "team.html")))
}

func TestBuild(t *testing.T) {
	cfg := newProject(t)
	b := NewBuilder(cfg)

	res, err := b.Build()
	require.NoError(t, err)
	assert.Equal(t, 3, res.Languages)
	assert.Equal(t, 8, res.Pages, "2 templates x 3 languages + base at root")
	assert.Equal(t, 4, res.Assets)

	assert.Equal(t, "body{}", readFile(t, filepath.Join(cfg.DocsDir, "assets", "site.css")))

	// Base at the docs root: assets are siblings.
	root := readFile(t, filepath.Join(cfg.DocsDir, "index.html"))
	assert.Contains(t, root, `<html lang="zh-CN">`)
	assert.Contains(t, root, `<h1>首页</h1>`)
	assert.Contains(t, root, `<footer>© 2025 树下小屋</footer>`)
	assert.Contains(t, root, `href="assets/site.css"`)

	// Language directory: one level deeper than the root.
	zh := readFile(t, filepath.Join(cfg.DocsDir, "zh-hans", "index.html"))
	assert.Contains(t, zh, `href="../assets/site.css"`)

	en := readFile(t, filepath.Join(cfg.DocsDir, "en-gb", "pages", "about", "team.html"))
	assert.Contains(t, en, `<html lang="en-GB">`)
	assert.Contains(t, en, `<h1>Home</h1>`, "fallback en")
	assert.Contains(t, en, `<p>基础</p>`, "base is the last fallback")
	assert.Contains(t, en, `<footer>© 2025 TreeHouse</footer>`)
	assert.Contains(t, en, `href="../../../assets/site.css"`)

	ar := readFile(t, filepath.Join(cfg.DocsDir, "ar", "index.html"))
	assert.Contains(t, ar, `<html lang="ar" dir="rtl">`)
	assert.Contains(t, ar, `<footer>© 2025 树下小屋</footer>`, "base footer with default vars")
}

func TestBuildBaseOnlyInDirectory(t *testing.T) {
	cfg := newProject(t)
	cfg.Build.BaseAlsoAtRoot = false
	cfg.Build.CriticalHead = config.CriticalHead{Enabled: true, DarkBG: "#111", LightBG: "#eee"}

	res, err := NewBuilder(cfg).Build()
	require.NoError(t, err)
	assert.Equal(t, 6, res.Pages)
	_, err = os.Stat(filepath.Join(cfg.DocsDir, "index.html"))
	assert.True(t, os.IsNotExist(err))

	page := readFile(t, filepath.Join(cfg.DocsDir, "ar", "index.html"))
	assert.Contains(t, page, `content="#111"`)
}

func TestBuildConfigurationErrors(t *testing.T) {
	t.Run("missing manifest", func(t *testing.T) {
		cfg := newProject(t)
		require.NoError(t, os.Remove(cfg.LanguagesFile))
		_, err := NewBuilder(cfg).Build()
		assert.ErrorIs(t, err, config.ErrManifestNotFound)
	})

	t.Run("missing locales", func(t *testing.T) {
		cfg := newProject(t)
		cfg.LocalesDir = filepath.Join(cfg.Root, "nowhere")
		_, err := NewBuilder(cfg).Build()
		assert.ErrorIs(t, err, ErrLocalesDirNotFound)
	})

	t.Run("no templates", func(t *testing.T) {
		cfg := newProject(t)
		require.NoError(t, os.Remove(filepath.Join(cfg.SrcDir, "index.html")))
		require.NoError(t, os.RemoveAll(filepath.Join(cfg.SrcDir, "pages")))
		_, err := NewBuilder(cfg).Build()
		assert.ErrorIs(t, err, ErrNoTemplates)
		_, statErr := os.Stat(cfg.DocsDir)
		assert.True(t, os.IsNotExist(statErr), "nothing written")
	})
}

func TestWatchRebuildsOnChange(t *testing.T) {
	cfg := newProject(t)
	b := NewBuilder(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	builds := 0
	rebuilt := make(chan struct{}, 10)
	done := make(chan error, 1)
	go func() {
		done <- b.Watch(ctx, 100*time.Millisecond, func(_ Result, err error) {
			assert.NoError(t, err)
			mu.Lock()
			builds++
			mu.Unlock()
			rebuilt <- struct{}{}
		})
	}()

	waitBuild := func() {
		t.Helper()
		select {
		case <-rebuilt:
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for build")
		}
	}
	waitBuild() // initial build

	writeFile(t, filepath.Join(cfg.LocalesDir, "en.json"), `{"title": "Welcome"}`)
	waitBuild()

	en := readFile(t, filepath.Join(cfg.DocsDir, "en-gb", "index.html"))
	assert.True(t, strings.Contains(en, "<h1>Welcome</h1>"), en)

	cancel()
	require.NoError(t, <-done)
	mu.Lock()
	assert.GreaterOrEqual(t, builds, 2)
	mu.Unlock()
}

func TestWithin(t *testing.T) {
	assert.True(t, within("/a/b/c", "/a/b"))
	assert.True(t, within("/a/b", "/a/b"))
	assert.False(t, within("/a/bc", "/a/b"))
	assert.False(t, within("/a", "/a/b"))
}
