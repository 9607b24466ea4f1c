// Package index stores attribution results in a SQLite database so they
// can be queried and summarized after the CI job that produced them.
package index

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jensroland/git-lineage/internal/lineset"
	"github.com/jensroland/git-lineage/internal/rewrite"
)

// ErrNotFound is returned by Load for a commit that was never saved.
var ErrNotFound = errors.New("commit not in index")

const schema = `
CREATE TABLE IF NOT EXISTS commits (
	sha TEXT PRIMARY KEY,
	base TEXT NOT NULL,
	provider TEXT,
	merge_request INTEGER,
	recorded_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS files (
	commit_sha TEXT NOT NULL REFERENCES commits(sha) ON DELETE CASCADE,
	path TEXT NOT NULL,
	line_count INTEGER NOT NULL,
	human_lines TEXT NOT NULL,
	human_count INTEGER NOT NULL,
	PRIMARY KEY (commit_sha, path)
);
CREATE TABLE IF NOT EXISTS agent_lines (
	commit_sha TEXT NOT NULL REFERENCES commits(sha) ON DELETE CASCADE,
	path TEXT NOT NULL,
	agent TEXT NOT NULL,
	lines TEXT NOT NULL,
	line_count INTEGER NOT NULL,
	PRIMARY KEY (commit_sha, path, agent)
);
CREATE TABLE IF NOT EXISTS checkpoints (
	commit_sha TEXT NOT NULL REFERENCES commits(sha) ON DELETE CASCADE,
	position INTEGER NOT NULL,
	sha TEXT NOT NULL,
	agent TEXT,
	added TEXT NOT NULL,
	PRIMARY KEY (commit_sha, position)
);
CREATE INDEX IF NOT EXISTS idx_agent_lines_agent ON agent_lines(agent);
`

// Store is an open attribution index.
type Store struct {
	db *sql.DB
}

// Open opens or creates the index at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create index dir: %w", err)
	}
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// Meta describes where a Result came from.
type Meta struct {
	Provider     string
	MergeRequest int
	RecordedAt   time.Time
}

// Save records res, replacing anything previously saved for the same
// commit.
func (s *Store) Save(ctx context.Context, res *rewrite.Result, meta Meta) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM commits WHERE sha = ?`, res.Commit); err != nil {
		return fmt.Errorf("clear %s: %w", res.Commit, err)
	}
	if meta.RecordedAt.IsZero() {
		meta.RecordedAt = time.Now()
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO commits (sha, base, provider, merge_request, recorded_at) VALUES (?, ?, ?, ?, ?)`,
		res.Commit, res.Base, meta.Provider, meta.MergeRequest, meta.RecordedAt.UTC().Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("insert commit: %w", err)
	}

	for _, path := range sortedPaths(res.Files) {
		fa := res.Files[path]
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO files (commit_sha, path, line_count, human_lines, human_count) VALUES (?, ?, ?, ?, ?)`,
			res.Commit, path, fa.LineCount, fa.Human.String(), fa.Human.Len(),
		); err != nil {
			return fmt.Errorf("insert file %s: %w", path, err)
		}
		for _, agent := range fa.AgentNames() {
			ls := fa.Agents[agent]
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO agent_lines (commit_sha, path, agent, lines, line_count) VALUES (?, ?, ?, ?, ?)`,
				res.Commit, path, agent, ls.String(), ls.Len(),
			); err != nil {
				return fmt.Errorf("insert agent lines %s: %w", path, err)
			}
		}
	}

	for i, cp := range res.Checkpoints {
		added, err := json.Marshal(cp.Added)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO checkpoints (commit_sha, position, sha, agent, added) VALUES (?, ?, ?, ?, ?)`,
			res.Commit, i, cp.SHA, cp.Agent, string(added),
		); err != nil {
			return fmt.Errorf("insert checkpoint %s: %w", cp.SHA, err)
		}
	}
	return tx.Commit()
}

// Load reads back the Result saved for commit.
func (s *Store) Load(ctx context.Context, commit string) (*rewrite.Result, error) {
	res := &rewrite.Result{Commit: commit, Files: map[string]rewrite.FileAttribution{}}
	err := s.db.QueryRowContext(ctx, `SELECT base FROM commits WHERE sha = ?`, commit).Scan(&res.Base)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", commit, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	lines := map[string][]string{}
	rows, err := s.db.QueryContext(ctx, `SELECT path, line_count FROM files WHERE commit_sha = ?`, commit)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var path string
		var n int
		if err := rows.Scan(&path, &n); err != nil {
			rows.Close()
			return nil, err
		}
		attr := make([]string, n)
		for i := range attr {
			attr[i] = rewrite.Human
		}
		lines[path] = attr
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = s.db.QueryContext(ctx, `SELECT path, agent, lines FROM agent_lines WHERE commit_sha = ?`, commit)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var path, agent, compact string
		if err := rows.Scan(&path, &agent, &compact); err != nil {
			rows.Close()
			return nil, err
		}
		ls, err := lineset.Parse(compact)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("agent lines of %s: %w", path, err)
		}
		for _, n := range ls.Lines() {
			if attr := lines[path]; n <= len(attr) {
				attr[n-1] = agent
			}
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for path, attr := range lines {
		res.Files[path] = rewrite.NewFileAttribution(path, attr)
	}

	rows, err = s.db.QueryContext(ctx, `SELECT sha, agent, added FROM checkpoints WHERE commit_sha = ? ORDER BY position`, commit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var cp rewrite.CheckpointResult
		var agent sql.NullString
		var added string
		if err := rows.Scan(&cp.SHA, &agent, &added); err != nil {
			return nil, err
		}
		cp.Agent = agent.String
		if err := json.Unmarshal([]byte(added), &cp.Added); err != nil {
			return nil, fmt.Errorf("checkpoint %s: %w", cp.SHA, err)
		}
		res.Checkpoints = append(res.Checkpoints, cp)
	}
	return res, rows.Err()
}

// AgentLines is one agent's line total.
type AgentLines struct {
	Agent string `json:"agent"`
	Lines int    `json:"lines"`
}

// Stats summarizes every commit in the index.
type Stats struct {
	Commits    int          `json:"commits"`
	Files      int          `json:"files"`
	Lines      int          `json:"lines"`
	HumanLines int          `json:"human_lines"`
	Agents     []AgentLines `json:"agents"`
}

// AgentShare returns the fraction of lines attributed to any agent.
func (s Stats) AgentShare() float64 {
	if s.Lines == 0 {
		return 0
	}
	return float64(s.Lines-s.HumanLines) / float64(s.Lines)
}

// Stats aggregates line counts across the index. Agents are ordered by
// line count, largest first.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM commits`).Scan(&st.Commits); err != nil {
		return st, err
	}
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(line_count), 0), COALESCE(SUM(human_count), 0) FROM files`,
	).Scan(&st.Files, &st.Lines, &st.HumanLines); err != nil {
		return st, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT agent, SUM(line_count) AS n FROM agent_lines GROUP BY agent ORDER BY n DESC, agent`)
	if err != nil {
		return st, err
	}
	defer rows.Close()
	for rows.Next() {
		var a AgentLines
		if err := rows.Scan(&a.Agent, &a.Lines); err != nil {
			return st, err
		}
		st.Agents = append(st.Agents, a)
	}
	return st, rows.Err()
}

func sortedPaths(files map[string]rewrite.FileAttribution) []string {
	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
