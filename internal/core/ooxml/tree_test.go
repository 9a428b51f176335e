package ooxml

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/unitshift/internal/core/rules"
)

const sample = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<!-- generated -->
<root xmlns="urn:a" xmlns:x="urn:x">
  <x:item  id='1' >C05 &amp; friends</x:item>tail C03
  <empty/><open></open>
  <![CDATA[C04 <raw>]]>
</root>
`

func TestParseRoundTripIsByteExact(t *testing.T) {
	tree, err := Parse([]byte(sample))
	require.NoError(t, err)
	assert.False(t, tree.Changed())
	assert.Equal(t, sample, string(tree.Bytes()))

	root := tree.Root()
	assert.True(t, root.Is("urn:a", "root"))
	items := root.Find("urn:x", "item")
	require.Len(t, items, 1)
	assert.Equal(t, "C05 & friends", items[0].Text())
}

func TestSegmentEditsOnlyTouchEditedText(t *testing.T) {
	tree, err := Parse([]byte(sample))
	require.NoError(t, err)
	e := rules.NewEngine(rules.Rule{Name: "rev", Pattern: revPattern, Rewrite: rules.Literal("C01")})
	n := rewriteSegments(tree, e)
	assert.Equal(t, 3, n)

	want := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<!-- generated -->
<root xmlns="urn:a" xmlns:x="urn:x">
  <x:item  id='1' >C01 &amp; friends</x:item>tail C01
  <empty/><open></open>
  <![CDATA[C01 <raw>]]>
</root>
`
	assert.Equal(t, want, string(tree.Bytes()))
}

func TestSetTextOnEmptyElements(t *testing.T) {
	tree, err := Parse([]byte(`<r xmlns:w="urn:w"><w:t/><w:t xml:space="preserve" /><w:t></w:t></r>`))
	require.NoError(t, err)
	ts := tree.Root().Find("urn:w", "t")
	require.Len(t, ts, 3)
	ts[0].SetText("a<b")
	ts[1].SetText(" b ")
	ts[2].SetText("c")
	assert.Equal(t, `<r xmlns:w="urn:w"><w:t>a&lt;b</w:t><w:t xml:space="preserve"> b </w:t><w:t>c</w:t></r>`, string(tree.Bytes()))

	reparsed, err := Parse(tree.Bytes())
	require.NoError(t, err)
	assert.Equal(t, " b ", reparsed.Root().Find("urn:w", "t")[1].Text())
}

func TestParseRejectsMalformed(t *testing.T) {
	for _, doc := range []string{
		`<a><b></a>`,
		`<a>`,
		`just text`,
		`<a>&bogus;</a>`,
	} {
		_, err := Parse([]byte(doc))
		assert.Error(t, err, doc)
	}
}

func TestNextSibling(t *testing.T) {
	tree, err := Parse([]byte(`<r><a/>text<b/><c/></r>`))
	require.NoError(t, err)
	kids := tree.Root().Children
	require.Len(t, kids, 3)
	assert.Same(t, kids[1], kids[0].NextSibling())
	assert.Nil(t, kids[2].NextSibling())
	assert.Nil(t, tree.Root().NextSibling())
}
