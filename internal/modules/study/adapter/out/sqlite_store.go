package out

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"studysync/internal/modules/study/domain"
	studyout "studysync/internal/modules/study/port/out"
	apperrors "studysync/internal/platform/errors"
	"studysync/internal/platform/tx"

	_ "modernc.org/sqlite"
)

const timeLayout = time.RFC3339Nano

// executor is satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type txKey struct{}

// SQLiteStore persists study projects and doubles as the transaction
// manager for every operation that must observe or write a project tree as
// one unit.
type SQLiteStore struct {
	db *sql.DB
}

var (
	_ studyout.Store = (*SQLiteStore)(nil)
	_ tx.Manager     = (*SQLiteStore)(nil)
)

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	dsn := dbPath + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_txlock=immediate"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	store := &SQLiteStore{db: db}
	if err := store.ensureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) ensureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS projects (
  id TEXT PRIMARY KEY,
  source_id TEXT,
  name TEXT NOT NULL,
  status TEXT NOT NULL,
  total_segments INTEGER NOT NULL,
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_projects_source_id
  ON projects(source_id) WHERE source_id IS NOT NULL AND source_id <> '';

CREATE TABLE IF NOT EXISTS speakers (
  id TEXT PRIMARY KEY,
  project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
  label TEXT NOT NULL,
  display_name TEXT NOT NULL DEFAULT '',
  confidence REAL NOT NULL DEFAULT 0,
  evidence TEXT NOT NULL DEFAULT '',
  is_manual INTEGER NOT NULL DEFAULT 0,
  name_updated_at TEXT
);
CREATE INDEX IF NOT EXISTS idx_speakers_project ON speakers(project_id);

CREATE TABLE IF NOT EXISTS segments (
  id TEXT PRIMARY KEY,
  project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
  idx INTEGER NOT NULL,
  text TEXT NOT NULL,
  start_time REAL NOT NULL,
  end_time REAL NOT NULL,
  translation TEXT NOT NULL DEFAULT '',
  explanation_primary TEXT NOT NULL DEFAULT '',
  explanation_secondary TEXT NOT NULL DEFAULT '',
  speaker_id TEXT REFERENCES speakers(id) ON DELETE SET NULL,
  learned INTEGER NOT NULL DEFAULT 0,
  learn_count INTEGER NOT NULL DEFAULT 0,
  is_difficult INTEGER NOT NULL DEFAULT 0,
  review_count INTEGER NOT NULL DEFAULT 0,
  last_reviewed TEXT,
  UNIQUE(project_id, idx)
);

CREATE TABLE IF NOT EXISTS keywords (
  id TEXT PRIMARY KEY,
  segment_id TEXT NOT NULL REFERENCES segments(id) ON DELETE CASCADE,
  word TEXT NOT NULL,
  meaning_primary TEXT NOT NULL DEFAULT '',
  meaning_secondary TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_keywords_segment ON keywords(segment_id);
`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create study schema: %w", err)
	}
	return nil
}

// Within runs fn inside a transaction. A call made while ctx already
// carries a transaction joins it.
func (s *SQLiteStore) Within(ctx context.Context, fn func(context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return fn(ctx)
	}
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(context.WithValue(ctx, txKey{}, sqlTx)); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *SQLiteStore) conn(ctx context.Context) executor {
	if sqlTx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return sqlTx
	}
	return s.db
}

const projectColumns = `id, source_id, name, status, total_segments, created_at, updated_at`

func (s *SQLiteStore) ListProjects(ctx context.Context) ([]domain.Project, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, `SELECT `+projectColumns+` FROM projects ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()
	return scanProjects(rows)
}

func (s *SQLiteStore) GetProject(ctx context.Context, id string) (domain.Project, error) {
	row := s.conn(ctx).QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = ?`, id)
	project, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Project{}, fmt.Errorf("%w: project %s", apperrors.ErrNotFound, id)
	}
	if err != nil {
		return domain.Project{}, fmt.Errorf("get project: %w", err)
	}
	return project, nil
}

func (s *SQLiteStore) FindProjectsBySyncKey(ctx context.Context, key string) ([]domain.Project, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, `
SELECT `+projectColumns+` FROM projects
WHERE source_id = ? OR ((source_id IS NULL OR source_id = '') AND id = ?)
ORDER BY created_at, id`, key, key)
	if err != nil {
		return nil, fmt.Errorf("find projects by sync key: %w", err)
	}
	defer rows.Close()
	return scanProjects(rows)
}

func (s *SQLiteStore) ListSegments(ctx context.Context, projectID string) ([]domain.Segment, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, `
SELECT id, project_id, idx, text, start_time, end_time, translation, explanation_primary,
  explanation_secondary, speaker_id, learned, learn_count, is_difficult, review_count, last_reviewed
FROM segments WHERE project_id = ? ORDER BY idx`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list segments: %w", err)
	}
	defer rows.Close()

	out := []domain.Segment{}
	for rows.Next() {
		var (
			seg          domain.Segment
			speakerID    sql.NullString
			lastReviewed sql.NullString
		)
		if err := rows.Scan(&seg.ID, &seg.ProjectID, &seg.Index, &seg.Text, &seg.StartTime, &seg.EndTime,
			&seg.Translation, &seg.ExplanationPrimary, &seg.ExplanationSecondary, &speakerID,
			&seg.Progress.Learned, &seg.Progress.LearnCount, &seg.Progress.IsDifficult,
			&seg.Progress.ReviewCount, &lastReviewed); err != nil {
			return nil, fmt.Errorf("scan segment: %w", err)
		}
		seg.SpeakerID = speakerID.String
		if lastReviewed.Valid && lastReviewed.String != "" {
			t, err := time.Parse(timeLayout, lastReviewed.String)
			if err != nil {
				return nil, fmt.Errorf("parse last_reviewed of segment %s: %w", seg.ID, err)
			}
			seg.Progress.LastReviewed = &t
		}
		out = append(out, seg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate segments: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) ListKeywordsBySegmentIDs(ctx context.Context, segmentIDs []string) (map[string][]domain.Keyword, error) {
	out := make(map[string][]domain.Keyword, len(segmentIDs))
	if len(segmentIDs) == 0 {
		return out, nil
	}
	// Stay well below SQLITE_MAX_VARIABLE_NUMBER.
	const chunk = 500
	for start := 0; start < len(segmentIDs); start += chunk {
		end := min(start+chunk, len(segmentIDs))
		ids := segmentIDs[start:end]
		args := make([]any, len(ids))
		for i, id := range ids {
			args[i] = id
		}
		query := `SELECT id, segment_id, word, meaning_primary, meaning_secondary FROM keywords
WHERE segment_id IN (` + placeholders(len(ids)) + `) ORDER BY rowid`
		rows, err := s.conn(ctx).QueryContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("list keywords: %w", err)
		}
		for rows.Next() {
			var kw domain.Keyword
			if err := rows.Scan(&kw.ID, &kw.SegmentID, &kw.Word, &kw.MeaningPrimary, &kw.MeaningSecondary); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan keyword: %w", err)
			}
			out[kw.SegmentID] = append(out[kw.SegmentID], kw)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, fmt.Errorf("iterate keywords: %w", err)
		}
		rows.Close()
	}
	return out, nil
}

func (s *SQLiteStore) ListSpeakers(ctx context.Context, projectID string) ([]domain.Speaker, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, `
SELECT id, project_id, label, display_name, confidence, evidence, is_manual, name_updated_at
FROM speakers WHERE project_id = ? ORDER BY label, id`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list speakers: %w", err)
	}
	defer rows.Close()
	out := []domain.Speaker{}
	for rows.Next() {
		var (
			sp        domain.Speaker
			updatedAt sql.NullString
		)
		if err := rows.Scan(&sp.ID, &sp.ProjectID, &sp.Label, &sp.DisplayName, &sp.Confidence, &sp.Evidence, &sp.IsManual, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan speaker: %w", err)
		}
		if updatedAt.Valid && updatedAt.String != "" {
			t, err := time.Parse(timeLayout, updatedAt.String)
			if err != nil {
				return nil, fmt.Errorf("parse name_updated_at of speaker %s: %w", sp.ID, err)
			}
			sp.NameUpdatedAt = t
		}
		out = append(out, sp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate speakers: %w", err)
	}
	return out, nil
}

// InsertProjectTree writes the whole tree or nothing.
func (s *SQLiteStore) InsertProjectTree(ctx context.Context, tree domain.Tree) error {
	if err := tree.Validate(); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err)
	}
	return s.Within(ctx, func(ctx context.Context) error {
		db := s.conn(ctx)
		p := tree.Project
		_, err := db.ExecContext(ctx, `
INSERT INTO projects (`+projectColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			p.ID, nullable(p.SourceID), p.Name, p.Status, p.TotalSegments,
			p.CreatedAt.UTC().Format(timeLayout), p.UpdatedAt.UTC().Format(timeLayout))
		if err != nil {
			if isUniqueConstraintErr(err) && p.SourceID != "" {
				return fmt.Errorf("%w: source %s already linked", apperrors.ErrIdentityConflict, p.SourceID)
			}
			return fmt.Errorf("insert project: %w", err)
		}
		for _, sp := range tree.Speakers {
			if _, err := db.ExecContext(ctx, `
INSERT INTO speakers (id, project_id, label, display_name, confidence, evidence, is_manual, name_updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, sp.ID, sp.ProjectID, sp.Label, sp.DisplayName, sp.Confidence, sp.Evidence, sp.IsManual,
				formatZeroable(sp.NameUpdatedAt)); err != nil {
				return fmt.Errorf("insert speaker %s: %w", sp.Label, err)
			}
		}
		for _, seg := range tree.Segments {
			if _, err := db.ExecContext(ctx, `
INSERT INTO segments (id, project_id, idx, text, start_time, end_time, translation, explanation_primary,
  explanation_secondary, speaker_id, learned, learn_count, is_difficult, review_count, last_reviewed)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				seg.ID, seg.ProjectID, seg.Index, seg.Text, seg.StartTime, seg.EndTime, seg.Translation,
				seg.ExplanationPrimary, seg.ExplanationSecondary, nullable(seg.SpeakerID),
				seg.Progress.Learned, seg.Progress.LearnCount, seg.Progress.IsDifficult, seg.Progress.ReviewCount,
				formatTime(seg.Progress.LastReviewed)); err != nil {
				return fmt.Errorf("insert segment %d: %w", seg.Index, err)
			}
		}
		for _, kw := range tree.Keywords {
			if _, err := db.ExecContext(ctx, `
INSERT INTO keywords (id, segment_id, word, meaning_primary, meaning_secondary) VALUES (?, ?, ?, ?, ?)`,
				kw.ID, kw.SegmentID, kw.Word, kw.MeaningPrimary, kw.MeaningSecondary); err != nil {
				return fmt.Errorf("insert keyword %q: %w", kw.Word, err)
			}
		}
		return nil
	})
}

func (s *SQLiteStore) UpdateSegmentProgress(ctx context.Context, segmentID string, progress domain.Progress) error {
	res, err := s.conn(ctx).ExecContext(ctx, `
UPDATE segments SET learned = ?, learn_count = ?, is_difficult = ?, review_count = ?, last_reviewed = ?
WHERE id = ?`, progress.Learned, progress.LearnCount, progress.IsDifficult, progress.ReviewCount,
		formatTime(progress.LastReviewed), segmentID)
	if err != nil {
		return fmt.Errorf("update segment progress: %w", err)
	}
	return requireRow(res, "segment", segmentID)
}

func (s *SQLiteStore) UpdateSpeakerName(ctx context.Context, speakerID, displayName string, isManual bool, at time.Time) error {
	res, err := s.conn(ctx).ExecContext(ctx, `UPDATE speakers SET display_name = ?, is_manual = ?, name_updated_at = ? WHERE id = ?`,
		displayName, isManual, formatZeroable(at), speakerID)
	if err != nil {
		return fmt.Errorf("update speaker name: %w", err)
	}
	return requireRow(res, "speaker", speakerID)
}

func (s *SQLiteStore) DeleteProject(ctx context.Context, id string) error {
	res, err := s.conn(ctx).ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	return requireRow(res, "project", id)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(row rowScanner) (domain.Project, error) {
	var (
		p                    domain.Project
		sourceID             sql.NullString
		createdAt, updatedAt string
	)
	if err := row.Scan(&p.ID, &sourceID, &p.Name, &p.Status, &p.TotalSegments, &createdAt, &updatedAt); err != nil {
		return domain.Project{}, err
	}
	p.SourceID = sourceID.String
	var err error
	if p.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return domain.Project{}, fmt.Errorf("parse created_at: %w", err)
	}
	if p.UpdatedAt, err = time.Parse(timeLayout, updatedAt); err != nil {
		return domain.Project{}, fmt.Errorf("parse updated_at: %w", err)
	}
	return p, nil
}

func scanProjects(rows *sql.Rows) ([]domain.Project, error) {
	out := []domain.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate projects: %w", err)
	}
	return out, nil
}

func requireRow(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s %s", apperrors.ErrNotFound, kind, id)
	}
	return nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func formatTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(timeLayout)
}

func formatZeroable(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(timeLayout)
}

func isUniqueConstraintErr(err error) bool {
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "unique") || strings.Contains(s, "constraint failed")
}
