package keypath

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want Path
	}{
		{"a", Path{Field("a")}},
		{"a.b", Path{Field("a"), Field("b")}},
		{"nav.items[2].label", Path{Field("nav"), Field("items"), Index(2), Field("label")}},
		{"list[0][1]", Path{Field("list"), Index(0), Index(1)}},
		{"x[abc]", Path{Field("x"), Field("abc")}},
		{"x[-1]", Path{Field("x"), Field("-1")}},
		{"x[3", Path{Field("x"), Field("3")}},
		{"", nil},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse(tt.in))
		})
	}
}

func TestPathStringRoundTrip(t *testing.T) {
	for _, s := range []string{"a", "a.b", "nav.items[2].label", "list[0][1]", "faq[10].q"} {
		assert.Equal(t, s, Parse(s).String(), s)
	}
}

func TestJoin(t *testing.T) {
	assert.Equal(t, "a", Join("", "a"))
	assert.Equal(t, "a.b", Join("a", "b"))
	assert.Equal(t, "a[3]", JoinIndex("a", 3))
	assert.Equal(t, "a[3].b", Join(JoinIndex("a", 3), "b"))
}

func TestCompare(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"a", "a", 0},
		{"a", "b", -1},
		{"a", "a.b", -1},
		{"b[1]", "b[2]", -1},
		{"b[2]", "b[10]", -1},
		{"b[9]", "b.c", -1},
		{"b.c", "b[0]", 1},
	}
	for _, tt := range tests {
		t.Run(tt.a+"_vs_"+tt.b, func(t *testing.T) {
			assert.Equal(t, tt.want, CompareStrings(tt.a, tt.b))
		})
	}
}

func TestSort(t *testing.T) {
	paths := []string{"b.c", "a", "b[2]", "b[1]"}
	Sort(paths)
	require.Equal(t, []string{"a", "b[1]", "b[2]", "b.c"}, paths)
}

func TestSort_NumericIndices(t *testing.T) {
	paths := []string{"items[10]", "items[2]", "items[1].name", "items[1]"}
	Sort(paths)
	require.Equal(t, []string{"items[1]", "items[1].name", "items[2]", "items[10]"}, paths)
}

func TestHasPrefix(t *testing.T) {
	assert.True(t, HasPrefix("home", "home"))
	assert.True(t, HasPrefix("home.title", "home"))
	assert.True(t, HasPrefix("home[0]", "home"))
	assert.False(t, HasPrefix("homepage", "home"))
	assert.False(t, HasPrefix("about.home", "home"))
}
