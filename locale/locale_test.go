package locale

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// Decoding and flattening
// ---------------------------------------------------------------------------

func TestFlatten_PreservesOrder(t *testing.T) {
	v, err := Decode([]byte(`{
  "zeta": "z",
  "nav": {"home": "Home", "items": ["one", {"label": "two"}]},
  "alpha": 1.50,
  "flag": true,
  "none": null
}`))
	require.NoError(t, err)

	pairs := Flatten(v)
	var paths []string
	for _, p := range pairs {
		paths = append(paths, p.Path)
	}
	assert.Equal(t, []string{
		"zeta", "nav.home", "nav.items[0]", "nav.items[1].label", "alpha", "flag", "none",
	}, paths)

	assert.Equal(t, KindNumber, pairs[4].Value.Kind)
	assert.Equal(t, "1.50", pairs[4].Value.Num.String())
	assert.Equal(t, KindBool, pairs[5].Value.Kind)
	assert.Equal(t, KindNull, pairs[6].Value.Kind)

	d := FromPairs(pairs)
	assert.Equal(t, paths, d.Keys())
}

func TestFlatten_AlreadyFlatIsIdentity(t *testing.T) {
	data := []byte(`{"home.title": "Hi", "list[0]": "a", "plain": "b"}`)
	d, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, []string{"home.title", "list[0]", "plain"}, d.Keys())
}

func TestFlatten_EmptyAndEmptyContainers(t *testing.T) {
	v, err := Decode([]byte(`{}`))
	require.NoError(t, err)
	assert.Empty(t, Flatten(v))

	v, err = Decode([]byte(`{"a": {}, "b": [], "c": "x"}`))
	require.NoError(t, err)
	pairs := Flatten(v)
	require.Len(t, pairs, 1)
	assert.Equal(t, "c", pairs[0].Path)
}

func TestDecode_Errors(t *testing.T) {
	for _, in := range []string{`{"broken":`, ``, `{"a":1} {"b":2}`, `{1: 2}`} {
		_, err := Decode([]byte(in))
		assert.Error(t, err, in)
	}
}

func TestValueMember_LastDuplicateWins(t *testing.T) {
	v, err := Decode([]byte(`{"a": "first", "a": "second"}`))
	require.NoError(t, err)
	m, ok := v.Member("a")
	require.True(t, ok)
	assert.Equal(t, "second", m.Str)

	d := FromPairs(Flatten(v))
	assert.Equal(t, 1, d.Len())
	got, _ := d.Get("a")
	assert.Equal(t, "second", got.Str)
}

// ---------------------------------------------------------------------------
// FlatDict
// ---------------------------------------------------------------------------

func TestFlatDict_SetKeepsPosition(t *testing.T) {
	d := NewFlatDict()
	d.Set("a", String("1"))
	d.Set("b", String("2"))
	d.Set("a", String("3"))
	assert.Equal(t, []string{"a", "b"}, d.Keys())
	v, ok := d.Get("a")
	require.True(t, ok)
	assert.Equal(t, "3", v.Str)
}

func TestFlatDict_DeleteKeepsOrder(t *testing.T) {
	d := FromPairs([]Pair{
		{"a", String("1")}, {"b", String("2")}, {"c", String("3")},
	})
	assert.True(t, d.Delete("b"))
	assert.False(t, d.Delete("missing"))
	assert.Equal(t, []string{"a", "c"}, d.Keys())
	assert.False(t, d.Has("b"))
}

func TestFlatDict_CloneIsIndependent(t *testing.T) {
	d := FromPairs([]Pair{{"a", String("1")}})
	c := d.Clone()
	c.Set("b", String("2"))
	c.Set("a", String("x"))
	assert.Equal(t, 1, d.Len())
	v, _ := d.Get("a")
	assert.Equal(t, "1", v.Str)
}

func TestFlatDict_SortKeys(t *testing.T) {
	d := FromPairs([]Pair{
		{"b.c", String("")}, {"a", String("")}, {"b[2]", String("")}, {"b[1]", String("")},
	})
	assert.True(t, d.SortKeys())
	assert.Equal(t, []string{"a", "b[1]", "b[2]", "b.c"}, d.Keys())
	assert.False(t, d.SortKeys())
}

func TestFlatDict_Stats(t *testing.T) {
	d := FromPairs([]Pair{
		{"a", String("x")}, {"b", String("  ")}, {"c", Number("3")}, {"d", String("")},
	})
	total, filled := d.Stats()
	assert.Equal(t, 3, total)
	assert.Equal(t, 1, filled)
}

func TestFlatDict_MarshalNoHTMLEscaping(t *testing.T) {
	d := FromPairs([]Pair{
		{"html", String("<b>你好</b> & co")},
		{"n", Number("2")},
		{"ok", Bool(false)},
		{"nil", Null()},
	})
	out := string(d.Marshal())
	want := "{\n" +
		`  "html": "<b>你好</b> & co",` + "\n" +
		`  "n": 2,` + "\n" +
		`  "ok": false,` + "\n" +
		`  "nil": null` + "\n" +
		"}\n"
	assert.Equal(t, want, out)

	back, err := Parse([]byte(out))
	require.NoError(t, err)
	assert.Equal(t, d.Keys(), back.Keys())
}

func TestEncode_Nested(t *testing.T) {
	v := Object(
		Field{"a", Array(String("x"), Object())},
		Field{"b", Array()},
	)
	want := "{\n  \"a\": [\n    \"x\",\n    {}\n  ],\n  \"b\": []\n}\n"
	assert.Equal(t, want, string(Encode(v)))
}

// ---------------------------------------------------------------------------
// Files
// ---------------------------------------------------------------------------

func TestFileName(t *testing.T) {
	assert.Equal(t, "zh-hans.json", FileName("zh_Hans"))
	assert.Equal(t, "en.json", FileName(" EN "))
}

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "en.json")

	d := FromPairs([]Pair{{"a", String("1")}})
	require.NoError(t, WriteFile(path, d))
	d.Set("b", String("2"))
	require.NoError(t, WriteFile(path, d))

	back, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, back.Keys())

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasSuffix(e.Name(), ".tmp"), "leftover temp file %s", e.Name())
	}
}

func TestReadFileOrEmpty(t *testing.T) {
	d, err := ReadFileOrEmpty(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	assert.Equal(t, 0, d.Len())

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{"), 0644))
	_, err = ReadFileOrEmpty(bad)
	assert.Error(t, err)
}

// ---------------------------------------------------------------------------
// Pruning
// ---------------------------------------------------------------------------

func TestParsePatterns(t *testing.T) {
	got := ParsePatterns(" home.* , about., faq*, exact.key, ,*")
	assert.Equal(t, []Pattern{
		{Value: "home", Prefix: true},
		{Value: "about", Prefix: true},
		{Value: "faq", Prefix: true},
		{Value: "exact.key"},
	}, got)
}

func TestPrune(t *testing.T) {
	d := FromPairs([]Pair{
		{"home.title", String("Home")},
		{"home.sub[0]", String("x")},
		{"homepage", String("keep")},
		{"home", String("root")},
		{"about.title", String("About")},
	})
	n := d.Prune(ParsePatterns("home.*"))
	assert.Equal(t, 3, n)
	assert.Equal(t, []string{"homepage", "about.title"}, d.Keys())

	n = d.Prune(ParsePatterns("about"))
	assert.Equal(t, 0, n)
	n = d.Prune(ParsePatterns("about.title"))
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"homepage"}, d.Keys())
}
