package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Aman-CERP/amanbeta/internal/assemble"
	"github.com/Aman-CERP/amanbeta/internal/search"
)

func TestWriter_Status_PrintsIconAndMessage(t *testing.T) {
	// Given: a writer to a buffer
	var buf bytes.Buffer
	w := New(&buf)

	// When: printing a status
	w.Status("*", "Indexing")
	w.Status("", "indented")

	// Then: icon and message are printed
	assert.Equal(t, "* Indexing\n   indented\n", buf.String())
}

func TestWriter_Levels(t *testing.T) {
	var buf bytes.Buffer
	w := New(&buf)

	w.Successf("indexed %d rows", 4)
	w.Warningf("source %s skipped", "a.db")
	w.Errorf("failed: %s", "boom")

	out := buf.String()
	assert.Contains(t, out, "✓ indexed 4 rows\n")
	assert.Contains(t, out, "! source a.db skipped\n")
	assert.Contains(t, out, "✗ failed: boom\n")
}

func TestWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	w := New(&buf)

	err := w.JSON(map[string]int{"count": 2})

	assert.NoError(t, err)
	assert.Equal(t, "{\n  \"count\": 2\n}\n", buf.String())
}

func TestWriter_Results(t *testing.T) {
	// Given: a response with one result and facets
	var buf bytes.Buffer
	w := New(&buf)
	resp := &assemble.Response{
		Q:     "things",
		Count: 1,
		Sort:  search.SortRelevance,
		Results: []assemble.Result{{
			Record: search.Record{Type: "emails.db/emails", Key: "1", Title: "Hey there", Timestamp: "2020-08-01T00:00:00"},
			Output: "<p>Email from <b>blah@example.com</b></p>\n<p>What&#39;s up</p>",
		}},
		Facets: []search.Facet{
			{Name: "type", Values: []search.FacetValue{{Value: "emails.db/emails", Count: 1, Selected: true}}},
			{Name: "category", Values: []search.FacetValue{{Value: "1", Label: "created", Count: 1}}},
			{Name: "is_public"},
		},
		Escaped: true,
	}

	// When: printing it
	w.Results(resp)

	// Then: the output is plain text without markup
	out := buf.String()
	assert.Contains(t, out, `1 result for "things", relevance`)
	assert.Contains(t, out, "query syntax was not valid")
	assert.Contains(t, out, "Hey there  emails.db/emails 1\n")
	assert.Contains(t, out, "  2020-08-01T00:00:00\n")
	assert.Contains(t, out, "  Email from blah@example.com\n")
	assert.Contains(t, out, "  What's up\n")
	assert.Contains(t, out, "type: [emails.db/emails (1)]\n")
	assert.Contains(t, out, "category: created (1)\n")
	assert.NotContains(t, out, "is_public:")
	assert.NotContains(t, out, "<p>")
}

func TestPlainText(t *testing.T) {
	assert.Equal(t, "a & b", PlainText("<div>a &amp; <script>x</script>b</div>"))
	assert.Empty(t, PlainText(""))
}
