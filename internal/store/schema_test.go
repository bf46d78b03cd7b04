package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T, opts ...Option) (*sql.DB, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "beta.db")
	db, err := Open(path, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, path
}

func newIndex(t *testing.T, tokenizer string) *sql.DB {
	t.Helper()
	db, _ := openTemp(t)
	require.NoError(t, EnsureSchema(context.Background(), db, tokenizer))
	return db
}

func ftsMatches(t *testing.T, db *sql.DB, q string) []string {
	t.Helper()
	rows, err := db.Query(`SELECT search_index."key" FROM search_index_fts
		JOIN search_index ON search_index.rowid = search_index_fts.rowid
		WHERE search_index_fts MATCH ? ORDER BY search_index."key"`, q)
	require.NoError(t, err)
	defer rows.Close()
	var keys []string
	for rows.Next() {
		var k string
		require.NoError(t, rows.Scan(&k))
		keys = append(keys, k)
	}
	require.NoError(t, rows.Err())
	return keys
}

func TestEnsureSchema_CreatesTablesAndSeeds(t *testing.T) {
	// Given: an empty database
	db := newIndex(t, "porter")

	// Then: all columns exist in order
	cols, err := tableColumns(context.Background(), db, IndexTable)
	require.NoError(t, err)
	for _, c := range IndexColumns() {
		assert.True(t, cols[c], c)
	}

	// And: categories are seeded
	var names []string
	rows, err := db.Query(`SELECT name FROM categories ORDER BY id`)
	require.NoError(t, err)
	defer rows.Close()
	for rows.Next() {
		var n string
		require.NoError(t, rows.Scan(&n))
		names = append(names, n)
	}
	assert.Equal(t, []string{"created", "saved", "received"}, names)

	// And: category carries the foreign key
	hasFK, err := hasForeignKey(context.Background(), db, IndexTable, "category", CategoriesTable)
	require.NoError(t, err)
	assert.True(t, hasFK)
}

func TestEnsureSchema_Idempotent(t *testing.T) {
	// Given: a schema with one record
	db := newIndex(t, "porter")
	_, err := db.Exec(`INSERT INTO search_index ("type", "key", title) VALUES ('a.db/t', '1', 'hello world')`)
	require.NoError(t, err)
	_, err = db.Exec(`UPDATE categories SET name = 'renamed' WHERE id = 1`)
	require.NoError(t, err)

	// When: ensuring the schema again, with a different tokenizer
	require.NoError(t, EnsureSchema(context.Background(), db, "none"))

	// Then: data survives, seeds are restored, the tokenizer is unchanged
	var n int
	require.NoError(t, db.QueryRow(`SELECT count(*) FROM search_index`).Scan(&n))
	assert.Equal(t, 1, n)
	var name string
	require.NoError(t, db.QueryRow(`SELECT name FROM categories WHERE id = 1`).Scan(&name))
	assert.Equal(t, "created", name)
	tok, err := TokenizerOf(context.Background(), db)
	require.NoError(t, err)
	assert.Equal(t, "porter", tok)
	assert.Equal(t, []string{"1"}, ftsMatches(t, db, "hello"))
}

func TestEnsureSchema_IsPublicDefaultsToZero(t *testing.T) {
	// Given: a record inserted without is_public
	db := newIndex(t, "porter")
	_, err := db.Exec(`INSERT INTO search_index ("type", "key", title) VALUES ('a.db/t', '1', 'x')`)
	require.NoError(t, err)

	// Then: it reads back as 0, category stays NULL
	var isPublic int
	var category sql.NullInt64
	require.NoError(t, db.QueryRow(`SELECT is_public, category FROM search_index`).Scan(&isPublic, &category))
	assert.Equal(t, 0, isPublic)
	assert.False(t, category.Valid)
}

func TestEnsureSchema_ReplaceKeepsFullTextInSync(t *testing.T) {
	// Given: a record indexed with one title
	db := newIndex(t, "porter")
	_, err := db.Exec(`INSERT OR REPLACE INTO search_index ("type", "key", title) VALUES ('a.db/t', '1', 'apples')`)
	require.NoError(t, err)

	// When: the same (type, key) is replaced with a new title
	_, err = db.Exec(`INSERT OR REPLACE INTO search_index ("type", "key", title, is_public) VALUES ('a.db/t', '1', 'oranges', NULL)`)
	require.NoError(t, err)

	// Then: one row, searchable only by the new title, NULL is_public fell back to 0
	var n, isPublic int
	require.NoError(t, db.QueryRow(`SELECT count(*), max(is_public) FROM search_index`).Scan(&n, &isPublic))
	assert.Equal(t, 1, n)
	assert.Equal(t, 0, isPublic)
	assert.Equal(t, []string{"1"}, ftsMatches(t, db, "oranges"))
	assert.Empty(t, ftsMatches(t, db, "apples"))
}

func TestEnsureSchema_UpdateAndDeleteTriggers(t *testing.T) {
	db := newIndex(t, "porter")
	_, err := db.Exec(`INSERT INTO search_index ("type", "key", title, search_1) VALUES ('a.db/t', '1', 'first', 'body text')`)
	require.NoError(t, err)

	_, err = db.Exec(`UPDATE search_index SET title = 'second'`)
	require.NoError(t, err)
	assert.Empty(t, ftsMatches(t, db, "first"))
	assert.Equal(t, []string{"1"}, ftsMatches(t, db, "second"))
	assert.Equal(t, []string{"1"}, ftsMatches(t, db, "body"))

	_, err = db.Exec(`DELETE FROM search_index`)
	require.NoError(t, err)
	assert.Empty(t, ftsMatches(t, db, "second"))
}

func TestEnsureSchema_Tokenizers(t *testing.T) {
	tests := []struct {
		tokenizer string
		stored    string
		stems     bool
	}{
		{"porter", "porter", true},
		{"none", "none", false},
		{"", "none", false},
		{"unicode61", "unicode61", false},
	}

	for _, tt := range tests {
		t.Run("tok_"+tt.tokenizer, func(t *testing.T) {
			db := newIndex(t, tt.tokenizer)
			_, err := db.Exec(`INSERT INTO search_index ("type", "key", title) VALUES ('a.db/t', '1', 'emails')`)
			require.NoError(t, err)

			tok, err := TokenizerOf(context.Background(), db)
			require.NoError(t, err)
			assert.Equal(t, tt.stored, tok)

			// "email" only reaches "emails" through stemming
			assert.Equal(t, tt.stems, len(ftsMatches(t, db, "email")) == 1)
		})
	}
}

func TestEnsureSchema_RejectsUnknownTokenizer(t *testing.T) {
	db, _ := openTemp(t)
	err := EnsureSchema(context.Background(), db, "porter'); DROP TABLE x; --")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported tokenizer")
}

func TestEnsureSchema_MigratesOlderTable(t *testing.T) {
	// Given: an older index table without is_public, search_2/3 and without the FK
	db, _ := openTemp(t)
	_, err := db.Exec(`CREATE TABLE search_index ("type" TEXT, "key" TEXT, title TEXT, timestamp TEXT,
		category INTEGER, search_1 TEXT, PRIMARY KEY ("type", "key"))`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO search_index VALUES ('a.db/t', '1', 'legacy row', NULL, 2, NULL)`)
	require.NoError(t, err)

	// When: ensuring the schema
	require.NoError(t, EnsureSchema(context.Background(), db, "porter"))

	// Then: the missing columns exist, the old row got defaults and is searchable
	cols, err := tableColumns(context.Background(), db, IndexTable)
	require.NoError(t, err)
	for _, c := range []string{"is_public", "search_2", "search_3"} {
		assert.True(t, cols[c], c)
	}
	var isPublic, category int
	require.NoError(t, db.QueryRow(`SELECT is_public, category FROM search_index`).Scan(&isPublic, &category))
	assert.Equal(t, 0, isPublic)
	assert.Equal(t, 2, category)
	assert.Equal(t, []string{"1"}, ftsMatches(t, db, "legacy"))

	// And: the pre-existing category column still has no foreign key
	hasFK, err := hasForeignKey(context.Background(), db, IndexTable, "category", CategoriesTable)
	require.NoError(t, err)
	assert.False(t, hasFK)
}

func TestTokenizerOf_NoTable(t *testing.T) {
	db, _ := openTemp(t)
	tok, err := TokenizerOf(context.Background(), db)
	require.NoError(t, err)
	assert.Empty(t, tok)
}

func TestCreateIndexTableSQL(t *testing.T) {
	ddl := createIndexTableSQL()
	assert.True(t, strings.HasPrefix(ddl, "CREATE TABLE search_index ("))
	assert.Contains(t, ddl, `"is_public" INTEGER NOT NULL DEFAULT 0`)
	assert.Contains(t, ddl, `"category" INTEGER REFERENCES categories(id)`)
	assert.Contains(t, ddl, `PRIMARY KEY ("type", "key")`)
}
