package assemble

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/amanbeta/configs"
	berrors "github.com/Aman-CERP/amanbeta/internal/errors"
	"github.com/Aman-CERP/amanbeta/internal/indexer"
	"github.com/Aman-CERP/amanbeta/internal/mapping"
	"github.com/Aman-CERP/amanbeta/internal/sample"
	"github.com/Aman-CERP/amanbeta/internal/search"
	"github.com/Aman-CERP/amanbeta/internal/store"
)

type fixture struct {
	dir    string
	rules  mapping.Rules
	engine *search.Engine
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()
	require.NoError(t, sample.Write(ctx, dir, ""))
	rules, err := mapping.Parse([]byte(configs.MappingTemplate))
	require.NoError(t, err)

	indexPath := filepath.Join(dir, "beta.db")
	_, err = indexer.Run(ctx, indexPath, rules, indexer.Options{SourceDir: dir})
	require.NoError(t, err)

	engine, err := search.Open(indexPath, "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = engine.Close() })
	return fixture{dir: dir, rules: rules, engine: engine}
}

func (f fixture) page(t *testing.T, p search.Params) *search.Page {
	t.Helper()
	page, err := f.engine.Search(context.Background(), p)
	require.NoError(t, err)
	return page
}

func (f fixture) assembler(t *testing.T, rules mapping.Rules, opts ...Option) *Assembler {
	t.Helper()
	a, err := New(rules, append([]Option{WithSourceDir(f.dir)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func outputs(resp *Response) string {
	var b strings.Builder
	for _, r := range resp.Results {
		b.WriteString(r.Output)
		b.WriteString("\n")
	}
	return b.String()
}

func TestAssemble_EnrichesAndRenders(t *testing.T) {
	// Given: the sample index and mapping
	f := newFixture(t)
	a := f.assembler(t, f.rules)

	// When: assembling the results for "things"
	resp, err := a.Assemble(context.Background(), f.page(t, search.Params{Q: "things"}), "things")

	// Then: every result carries its display row and rendered output
	require.NoError(t, err)
	assert.Equal(t, 3, resp.Count)
	require.Len(t, resp.Results, 3)
	html := outputs(resp)
	for _, fragment := range []string{
		"<p>Email from blah@example.com, subject Hey there #dogfest</p>",
		"<p>Email from blah@example.com, subject What&#39;s going on</p>",
		"<p>Commit to dogsheep/dogsheep-beta on 2020-08-01T00:05:02</p>",
		"<p>User searched for: &#34;things&#34;</p>",
	} {
		assert.Contains(t, html, fragment)
	}

	for _, r := range resp.Results {
		if r.Type == "github.db/commits" {
			assert.Equal(t, "things", r.Display["their_query"])
			assert.Equal(t, sample.OlderCommit, r.Display["sha"])
		}
	}
}

func TestAssemble_KeepsResultOrder(t *testing.T) {
	f := newFixture(t)
	a := f.assembler(t, f.rules, WithWorkers(1))
	page := f.page(t, search.Params{})

	resp, err := a.Assemble(context.Background(), page, "")

	require.NoError(t, err)
	require.Len(t, resp.Results, len(page.Results))
	for i := range page.Results {
		assert.Equal(t, page.Results[i].Key, resp.Results[i].Key)
	}
}

func TestAssemble_MissingDisplayRowIsEmpty(t *testing.T) {
	// Given: an email deleted from its source after indexing
	f := newFixture(t)
	src, err := store.Open(filepath.Join(f.dir, sample.EmailsDB), store.KeepJournal())
	require.NoError(t, err)
	_, err = src.Exec(`DELETE FROM emails WHERE id = 1`)
	require.NoError(t, err)
	require.NoError(t, src.Close())

	a := f.assembler(t, f.rules)

	// When: assembling a page that still contains it
	resp, err := a.Assemble(context.Background(), f.page(t, search.Params{Type: "emails.db/emails"}), "")

	// Then: the enrichment is empty and rendering still succeeds
	require.NoError(t, err)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "2", resp.Results[0].Key)
	assert.NotEmpty(t, resp.Results[0].Display)
	assert.Equal(t, "1", resp.Results[1].Key)
	assert.Empty(t, resp.Results[1].Display)
	assert.Empty(t, resp.Results[1].Error)
}

func TestAssemble_NoTemplateFallsBackToJSON(t *testing.T) {
	f := newFixture(t)
	rules := mapping.Rules{"emails.db": {"emails": {SQL: "select 1 as key"}}}
	a := f.assembler(t, rules)

	resp, err := a.Assemble(context.Background(), f.page(t, search.Params{Q: "dogfest"}), "dogfest")

	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.True(t, strings.HasPrefix(resp.Results[0].Output, "<pre>"))
	assert.Contains(t, resp.Results[0].Output, "Hey there #dogfest")
}

func TestAssemble_RenderFailure(t *testing.T) {
	broken := mapping.Rules{"emails.db": {"emails": {
		SQL:     "select id as key from emails",
		Display: `{{ template "missing" }}`,
	}}}

	t.Run("fatal by default", func(t *testing.T) {
		f := newFixture(t)
		a := f.assembler(t, broken)

		_, err := a.Assemble(context.Background(), f.page(t, search.Params{Q: "dogfest"}), "dogfest")

		require.Error(t, err)
		assert.True(t, errors.Is(err, berrors.ErrRender))
		assert.True(t, berrors.IsFatal(err))
	})

	t.Run("inline in debug mode", func(t *testing.T) {
		f := newFixture(t)
		a := f.assembler(t, broken, WithDebug(true))

		resp, err := a.Assemble(context.Background(), f.page(t, search.Params{Q: "dogfest"}), "dogfest")

		require.NoError(t, err)
		require.Len(t, resp.Results, 1)
		r := resp.Results[0]
		assert.Contains(t, r.Error, berrors.ErrCodeRenderFailed)
		assert.Contains(t, r.Output, `<div class="render-error">`)
		assert.Contains(t, r.Output, "<pre>")
	})
}

func TestAssemble_BadDisplaySQL(t *testing.T) {
	f := newFixture(t)
	rules := mapping.Rules{"emails.db": {"emails": {
		SQL:        "select id as key from emails",
		DisplaySQL: "select nope from emails where id = :key",
	}}}
	a := f.assembler(t, rules)

	_, err := a.Assemble(context.Background(), f.page(t, search.Params{Q: "dogfest"}), "dogfest")

	require.Error(t, err)
	assert.Equal(t, berrors.ErrCodeRenderFailed, berrors.GetCode(err))
	assert.Contains(t, err.Error(), "display_sql")
}

// countingRenderer counts calls and echoes the type.
type countingRenderer struct{ calls atomic.Int32 }

func (c *countingRenderer) Render(typeName, _ string, _ map[string]any) (string, error) {
	c.calls.Add(1)
	return typeName, nil
}

func TestAssemble_UsesInjectedRendererAndReloadsMapping(t *testing.T) {
	// Given: a mapping file on disk and a counting renderer
	f := newFixture(t)
	path := filepath.Join(f.dir, "mapping.yaml")
	require.NoError(t, writeFile(path, configs.MappingTemplate))
	r := &countingRenderer{}
	a := f.assembler(t, nil, WithRenderer(r), WithMappingPath(path))

	// When: assembling
	resp, err := a.Assemble(context.Background(), f.page(t, search.Params{}), "")

	// Then: the renderer saw every result
	require.NoError(t, err)
	assert.Equal(t, int32(4), r.calls.Load())
	assert.Equal(t, "github.db/commits", resp.Results[0].Output)

	// And: a broken mapping file fails the next response
	require.NoError(t, writeFile(path, "{not: [valid"))
	_, err = a.Assemble(context.Background(), f.page(t, search.Params{}), "")
	assert.Equal(t, berrors.ErrCodeConfigInvalid, berrors.GetCode(err))
}

func TestBindArgs(t *testing.T) {
	assert.Len(t, bindArgs("select 1", "k", "q"), 0)
	assert.Len(t, bindArgs("select * from t where id = :key", "k", "q"), 1)
	assert.Len(t, bindArgs("select :q as q from t where id = :key or other = :key", "k", "q"), 2)
	assert.Len(t, bindArgs("select :keyboard from t", "k", "q"), 0)
}
