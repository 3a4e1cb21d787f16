package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/edgeaihub/edgeplug/pkg/plugin"
)

// IndexedManifest is a manifest together with where it was found.
type IndexedManifest struct {
	Manifest  plugin.Manifest
	Dir       string
	IndexedAt time.Time
}

// ManifestRepository maintains the manifest index.
type ManifestRepository struct {
	db *sql.DB
}

// Manifests returns the manifest repository for this store.
func (s *Store) Manifests() *ManifestRepository {
	return &ManifestRepository{db: s.db}
}

// Upsert inserts or replaces the index row for m.Manifest.ID and stamps
// IndexedAt.
func (r *ManifestRepository) Upsert(ctx context.Context, m *IndexedManifest) error {
	if m.Manifest.ID == "" {
		return errors.New("manifest id is required")
	}

	doc, err := json.Marshal(m.Manifest)
	if err != nil {
		return errors.Wrap(err, "encode manifest")
	}

	m.IndexedAt = time.Now()

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO manifests (id, name, version, description, category, author, dir, document, indexed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			version = excluded.version,
			description = excluded.description,
			category = excluded.category,
			author = excluded.author,
			dir = excluded.dir,
			document = excluded.document,
			indexed_at = excluded.indexed_at`,
		m.Manifest.ID, m.Manifest.Name, m.Manifest.Version, m.Manifest.Description,
		m.Manifest.Category, m.Manifest.Author, m.Dir, string(doc), m.IndexedAt,
	)
	return errors.Wrapf(err, "upsert manifest %s", m.Manifest.ID)
}

// GetByID retrieves an indexed manifest by plugin id.
func (r *ManifestRepository) GetByID(ctx context.Context, id string) (*IndexedManifest, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT dir, document, indexed_at FROM manifests WHERE id = ?`, id)

	m, err := scanManifest(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrapf(err, "get manifest %s", id)
	}
	return m, nil
}

// List returns every indexed manifest ordered by id.
func (r *ManifestRepository) List(ctx context.Context) ([]*IndexedManifest, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT dir, document, indexed_at FROM manifests ORDER BY id`)
	if err != nil {
		return nil, errors.Wrap(err, "list manifests")
	}
	defer rows.Close()

	var out []*IndexedManifest
	for rows.Next() {
		m, err := scanManifest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteExcept removes every row whose id is not in keep and returns how
// many rows went away. An empty keep clears the index.
func (r *ManifestRepository) DeleteExcept(ctx context.Context, keep []string) (int64, error) {
	query := `DELETE FROM manifests`
	args := make([]any, len(keep))
	if len(keep) > 0 {
		query += ` WHERE id NOT IN (?` + strings.Repeat(`, ?`, len(keep)-1) + `)`
		for i, id := range keep {
			args[i] = id
		}
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, errors.Wrap(err, "prune manifests")
	}
	return result.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanManifest(row rowScanner) (*IndexedManifest, error) {
	var (
		m   IndexedManifest
		doc string
	)
	if err := row.Scan(&m.Dir, &doc, &m.IndexedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(doc), &m.Manifest); err != nil {
		return nil, errors.Wrap(err, "decode indexed manifest")
	}
	return &m, nil
}
