package cmd

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/amanbeta/internal/assemble"
	berrors "github.com/Aman-CERP/amanbeta/internal/errors"
	"github.com/Aman-CERP/amanbeta/internal/sample"
)

func TestSearchCmd_Text(t *testing.T) {
	// Given: an indexed sample
	workspace(t)
	sampleIndex(t)

	// When: searching for "things"
	out, err := runCLI(t, "search", "beta.db", "mapping.yaml", "things")

	// Then: results are printed as plain text with facets
	require.NoError(t, err)
	assert.Contains(t, out, `3 results for "things", relevance`)
	assert.Contains(t, out, "Email from blah@example.com, subject Hey there #dogfest")
	assert.Contains(t, out, "type: emails.db/emails (2), github.db/commits (1)")
	assert.Contains(t, out, "category: created (1)")
	assert.NotContains(t, out, "<p>")
}

func TestSearchCmd_JSONWithFilters(t *testing.T) {
	workspace(t)
	sampleIndex(t)

	out, err := runCLI(t, "search", "beta.db", "mapping.yaml",
		"--type", "github.db/commits", "--sort", "oldest", "--format", "json")

	require.NoError(t, err)
	var resp assemble.Response
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, 2, resp.Count)
	assert.Equal(t, "oldest", resp.Sort)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, sample.OlderCommit, resp.Results[0].Key)
	assert.Equal(t, sample.NewerCommit, resp.Results[1].Key)
}

func TestSearchCmd_QueryWordsAreJoined(t *testing.T) {
	workspace(t)
	sampleIndex(t)

	out, err := runCLI(t, "search", "beta.db", "mapping.yaml", "things", "NOT", "email", "--format", "json")

	require.NoError(t, err)
	var resp assemble.Response
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "things NOT email", resp.Q)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, sample.OlderCommit, resp.Results[0].Key)
}

func TestSearchCmd_EscapedQuery(t *testing.T) {
	workspace(t)
	sampleIndex(t)

	out, err := runCLI(t, "search", "beta.db", "mapping.yaml", "#dogfest")

	require.NoError(t, err)
	assert.Contains(t, out, "query syntax was not valid")
	assert.Contains(t, out, "Hey there #dogfest")
}

func TestSearchCmd_RequiresIndexAndMapping(t *testing.T) {
	workspace(t)

	_, err := runCLI(t, "search", "beta.db")

	assert.Error(t, err)
}

func TestSearchCmd_UnknownFormat(t *testing.T) {
	workspace(t)

	_, err := runCLI(t, "search", "beta.db", "mapping.yaml", "--format", "xml")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown format")
}

func TestSearchCmd_MissingIndex(t *testing.T) {
	workspace(t)
	_, err := runCLI(t, "init")
	require.NoError(t, err)

	_, err = runCLI(t, "search", "missing.db", "mapping.yaml", "x")

	require.Error(t, err)
	assert.Equal(t, berrors.ErrCodeFileNotFound, berrors.GetCode(err))
}

func TestServeAndMCPCmd_Flags(t *testing.T) {
	root := NewRootCmd()

	serve, _, err := root.Find([]string{"serve"})
	require.NoError(t, err)
	assert.NotNil(t, serve.Flags().Lookup("addr"))

	mcpCmd, _, err := root.Find([]string{"mcp"})
	require.NoError(t, err)
	assert.Equal(t, "mcp", mcpCmd.Name())
}
