// Package sample creates the small emails.db and github.db source databases
// that the example mapping document indexes.
package sample

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/Aman-CERP/amanbeta/internal/store"
)

// Commit SHAs of the two sample commits.
const (
	OlderCommit = "a5b39c5049b28997528bb0eca52730ab6febabeaba54cfcba0ab5d70e7207523"
	NewerCommit = "5becbf70d64951e2910314ef5227d19b11c25b0c9586934941366da8997e57cb"
)

// Source database file names.
const (
	EmailsDB = "emails.db"
	GitHubDB = "github.db"
)

type email struct {
	id                  int
	subject, body, from string
	date                string
}

type commit struct {
	sha, message, repo, date string
}

var emails = []email{
	{1, "Hey there #dogfest", "An email about things", "blah@example.com", "2020-08-01T00:05:02"},
	{2, "What's going on", "Another email about things", "blah@example.com", "2020-08-02T00:05:02"},
}

var commits = []commit{
	{OlderCommit, "Another commit to things", "dogsheep/dogsheep-beta", "2020-08-01T00:05:02"},
	{NewerCommit, "Added some tests", "dogsheep/dogsheep-beta", "2020-08-02T12:35:48"},
}

// Write creates (or refreshes) emails.db and github.db in dir.
func Write(ctx context.Context, dir, driver string) error {
	if err := writeEmails(ctx, filepath.Join(dir, EmailsDB), driver); err != nil {
		return err
	}
	return writeCommits(ctx, filepath.Join(dir, GitHubDB), driver)
}

func writeEmails(ctx context.Context, path, driver string) error {
	db, err := store.Open(path, store.CreateDir(), store.KeepJournal(), store.WithDriver(driver))
	if err != nil {
		return err
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS emails (
		id INTEGER PRIMARY KEY,
		subject TEXT,
		body TEXT,
		from_ TEXT,
		date TEXT
	)`); err != nil {
		return fmt.Errorf("failed to create emails table: %w", err)
	}
	for _, e := range emails {
		if _, err := db.ExecContext(ctx,
			`INSERT OR REPLACE INTO emails (id, subject, body, from_, date) VALUES (?, ?, ?, ?, ?)`,
			e.id, e.subject, e.body, e.from, e.date); err != nil {
			return fmt.Errorf("failed to insert email %d: %w", e.id, err)
		}
	}
	return nil
}

func writeCommits(ctx context.Context, path, driver string) error {
	db, err := store.Open(path, store.CreateDir(), store.KeepJournal(), store.WithDriver(driver))
	if err != nil {
		return err
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS commits (
		sha TEXT PRIMARY KEY,
		message TEXT,
		repo_name TEXT,
		committer_date TEXT
	)`); err != nil {
		return fmt.Errorf("failed to create commits table: %w", err)
	}
	for _, c := range commits {
		if _, err := db.ExecContext(ctx,
			`INSERT OR REPLACE INTO commits (sha, message, repo_name, committer_date) VALUES (?, ?, ?, ?)`,
			c.sha, c.message, c.repo, c.date); err != nil {
			return fmt.Errorf("failed to insert commit %s: %w", c.sha[:7], err)
		}
	}
	return nil
}
