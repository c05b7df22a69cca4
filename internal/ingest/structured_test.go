package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHarvestStructuredData_JSONLD(t *testing.T) {
	rawHTML := `<html><body>
		<script type="application/ld+json">
		{"@context":"https://schema.org","@type":"Organization","name":"Acme Corp","url":"https://acme.example"}
		</script>
	</body></html>`

	items, err := HarvestStructuredData(rawHTML)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Organization", items[0].Type)
	assert.Equal(t, "Acme Corp", items[0].Fields["name"])
	assert.Equal(t, "https://acme.example", items[0].Fields["url"])
}

func TestHarvestStructuredData_JSONLD_Array(t *testing.T) {
	rawHTML := `<html><body>
		<script type="application/ld+json">
		[{"@type":"Product","name":"Widget"},{"@type":"Product","name":"Gadget"}]
		</script>
	</body></html>`

	items, err := HarvestStructuredData(rawHTML)
	require.NoError(t, err)
	require.Len(t, items, 2)
}

func TestHarvestStructuredData_MalformedJSONLD_Skipped(t *testing.T) {
	rawHTML := `<html><body>
		<script type="application/ld+json">{not valid json</script>
	</body></html>`

	items, err := HarvestStructuredData(rawHTML)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestHarvestStructuredData_Microdata(t *testing.T) {
	rawHTML := `<html><body>
		<div itemscope itemtype="https://schema.org/Person">
			<span itemprop="name">Jane Doe</span>
			<span itemprop="jobTitle">Engineer</span>
		</div>
	</body></html>`

	items, err := HarvestStructuredData(rawHTML)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "https://schema.org/Person", items[0].Type)
	assert.Equal(t, "Jane Doe", items[0].Fields["name"])
	assert.Equal(t, "Engineer", items[0].Fields["jobTitle"])
}

func TestHarvestStructuredData_RDFa(t *testing.T) {
	rawHTML := `<html><body>
		<div typeof="schema:Organization" about="#acme">
			<span property="schema:name">Acme Corp</span>
		</div>
	</body></html>`

	items, err := HarvestStructuredData(rawHTML)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "#acme", items[0].ID)
	assert.Equal(t, "Acme Corp", items[0].Fields["schema:name"])
}

func TestDeriveID_UsesNameWhenNoExplicitID(t *testing.T) {
	id := deriveID("Organization", map[string]string{"name": "Acme"})
	assert.Equal(t, "Organization:Acme", id)
}

func TestDeriveID_FallsBackToAnonymous(t *testing.T) {
	id := deriveID("Organization", map[string]string{})
	assert.Equal(t, "Organization:anonymous", id)
}
