package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractCanonical_StripsScriptStyleNavFooter(t *testing.T) {
	rawHTML := `<html><body>
		<nav>Home About Contact</nav>
		<script>var x = 1;</script>
		<style>.a{color:red}</style>
		<h1>Welcome</h1>
		<p>This company was founded in 2004 and builds tools for developers.</p>
		<footer>All rights reserved</footer>
		<aside>Sponsored content goes here</aside>
	</body></html>`

	c, err := ExtractCanonical(rawHTML)
	require.NoError(t, err)

	assert.NotContains(t, c.Text, "Home About Contact")
	assert.NotContains(t, c.Text, "var x = 1")
	assert.NotContains(t, c.Text, "color:red")
	assert.NotContains(t, c.Text, "Sponsored content")
	assert.Contains(t, c.Text, "founded in 2004")
}

func TestExtractCanonical_PartitionsByHeading(t *testing.T) {
	rawHTML := `<html><body>
		<h1>Section One</h1>
		<p>First section body text about our mission statement here today.</p>
		<h2>Section Two</h2>
		<p>Second section body text describing the product roadmap ahead.</p>
	</body></html>`

	c, err := ExtractCanonical(rawHTML)
	require.NoError(t, err)
	require.Len(t, c.Sections, 2)
	assert.Equal(t, "Section One", c.Sections[0].Heading)
	assert.Equal(t, "Section Two", c.Sections[1].Heading)
}

func TestExtractCanonical_OffsetsMatchText(t *testing.T) {
	rawHTML := `<html><body>
		<h1>Alpha</h1>
		<p>Alpha section content describing the widget assembly line process.</p>
		<h1>Beta</h1>
		<p>Beta section content describing the second widget packaging process.</p>
	</body></html>`

	c, err := ExtractCanonical(rawHTML)
	require.NoError(t, err)

	for _, s := range c.Sections {
		assert.Equal(t, s.Text, c.Text[s.CharStart:s.CharEnd])
	}
}

func TestExtractCanonical_HashIsDeterministic(t *testing.T) {
	rawHTML := `<html><body><h1>T</h1><p>Consistent content for hash stability checks here.</p></body></html>`

	c1, err := ExtractCanonical(rawHTML)
	require.NoError(t, err)
	c2, err := ExtractCanonical(rawHTML)
	require.NoError(t, err)

	assert.Equal(t, c1.Hash, c2.Hash)
	assert.Len(t, c1.Hash, 64)
}

func TestExtractCanonical_ScrubsBoilerplateLines(t *testing.T) {
	rawHTML := `<html><body>
		<h1>Pricing</h1>
		<p>Click here</p>
		<p>Our pricing starts at twenty dollars per month for the basic plan.</p>
		<p>Privacy Policy</p>
	</body></html>`

	c, err := ExtractCanonical(rawHTML)
	require.NoError(t, err)
	assert.NotContains(t, c.Text, "Click here")
	assert.NotContains(t, c.Text, "Privacy Policy")
	assert.Contains(t, c.Text, "pricing starts at twenty dollars")
}

func TestCollapseWhitespace(t *testing.T) {
	assert.Equal(t, "a b c", collapseWhitespace("  a\n\n  b \t c  "))
}
