package predicate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild(t *testing.T) {
	base := TypeFilter("template-post")
	assert.Equal(t, `[at(document.type,"template-post")]`, base)

	t.Run("empty term adds no fulltext clause", func(t *testing.T) {
		got := Build(base, "")
		assert.Equal(t, base, got)
		assert.NotContains(t, got, "fulltext")
	})

	t.Run("term is appended", func(t *testing.T) {
		got := Build(base, "rust")
		assert.Equal(t, `[at(document.type,"template-post")][fulltext(document,"rust")]`, got)
	})

	t.Run("quotes are escaped", func(t *testing.T) {
		got := Build(base, `say "hi"`)
		assert.Equal(t, `[at(document.type,"template-post")][fulltext(document,"say \"hi\"")]`, got)
	})
}

func TestParseFilter(t *testing.T) {
	f, err := ParseFilter(Build(TypeFilter("template-post"), `go [generics] "now"`))
	require.NoError(t, err)
	assert.Equal(t, "template-post", f.DocumentType)
	assert.Equal(t, `go [generics] "now"`, f.Fulltext)

	f, err = ParseFilter(TypeFilter("template-post"))
	require.NoError(t, err)
	assert.Empty(t, f.Fulltext)
}

func TestParse_Errors(t *testing.T) {
	cases := map[string]string{
		"no bracket":    `at(document.type,"x")`,
		"unterminated":  `[at(document.type,"x")`,
		"unquoted arg":  `[at(document.type,x)]`,
		"single arg":    `[fulltext("x")]`,
		"missing paren": `[at]`,
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(in)
			assert.Error(t, err)
		})
	}

	_, err := ParseFilter(`[not(document.type,"x")]`)
	assert.Error(t, err)
}

func TestWrapUnwrap(t *testing.T) {
	p := Build(TypeFilter("template-post"), "go")
	assert.Equal(t, "["+p+"]", Wrap(p))
	assert.Equal(t, p, Unwrap(Wrap(p)))
	assert.Equal(t, p, Unwrap(p))
}
