package registry

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"zcas/internal/blobstore"
)

const resourceColumns = "id, content_hash, hash_algorithm, md5, size_bytes, collection, filename, media_type, codec, relative_path, created_at"

// Resource is one recorded import. Several resources may share a blob.
type Resource struct {
	ID            string    `json:"id" yaml:"id"`
	ContentHash   string    `json:"content_hash" yaml:"content_hash"`
	HashAlgorithm string    `json:"hash_algorithm" yaml:"hash_algorithm"`
	MD5           string    `json:"md5" yaml:"md5"`
	Size          int64     `json:"size" yaml:"size"`
	Collection    string    `json:"collection" yaml:"collection"`
	Filename      string    `json:"filename,omitempty" yaml:"filename,omitempty"`
	MediaType     string    `json:"media_type,omitempty" yaml:"media_type,omitempty"`
	Codec         string    `json:"codec" yaml:"codec"`
	RelativePath  string    `json:"relative_path" yaml:"relative_path"`
	CreatedAt     time.Time `json:"created_at" yaml:"created_at"`
}

// RecordInput carries the caller-supplied fields stored next to a descriptor.
type RecordInput struct {
	Filename  string
	MediaType string
}

// Record persists desc as a new resource.
func (r *Registry) Record(ctx context.Context, desc blobstore.ImportDescriptor, in RecordInput) (*Resource, error) {
	if strings.TrimSpace(desc.ContentHash) == "" {
		return nil, fmt.Errorf("content hash is required")
	}
	resource := &Resource{
		ID:            uuid.NewString(),
		ContentHash:   desc.ContentHash,
		HashAlgorithm: desc.HashAlgorithm,
		MD5:           desc.MD5,
		Size:          desc.Size,
		Collection:    desc.Collection,
		Filename:      strings.TrimSpace(in.Filename),
		MediaType:     strings.TrimSpace(in.MediaType),
		Codec:         desc.Codec,
		RelativePath:  desc.RelativePath,
		CreatedAt:     time.Now().UTC(),
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO resources (`+resourceColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		resource.ID,
		resource.ContentHash,
		resource.HashAlgorithm,
		resource.MD5,
		resource.Size,
		resource.Collection,
		nullableString(resource.Filename),
		nullableString(resource.MediaType),
		resource.Codec,
		resource.RelativePath,
		dbFormatTime(resource.CreatedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("insert resource: %w", err)
	}
	return resource, nil
}

// Get returns the resource with id, or nil when none exists.
func (r *Registry) Get(ctx context.Context, id string) (*Resource, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+resourceColumns+` FROM resources WHERE id = ?`, id)
	return scanResource(row)
}

// FindByHash returns the resources that point at contentHash, oldest first.
func (r *Registry) FindByHash(ctx context.Context, contentHash string) ([]Resource, error) {
	return r.query(ctx, `SELECT `+resourceColumns+` FROM resources WHERE content_hash = ? ORDER BY created_at ASC`, contentHash)
}

// List returns resources ordered by creation time. An empty collection
// lists every resource.
func (r *Registry) List(ctx context.Context, collection string, limit int) ([]Resource, error) {
	query := `SELECT ` + resourceColumns + ` FROM resources`
	args := []any{}
	if collection = strings.TrimSpace(collection); collection != "" {
		query += ` WHERE collection = ?`
		args = append(args, collection)
	}
	query += ` ORDER BY created_at ASC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return r.query(ctx, query, args...)
}

// CountByHash returns how many resources reference contentHash.
func (r *Registry) CountByHash(ctx context.Context, contentHash string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM resources WHERE content_hash = ?`, contentHash).Scan(&count)
	return count, err
}

// Collections returns the distinct collection names, sorted.
func (r *Registry) Collections(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT collection FROM resources ORDER BY collection`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

func (r *Registry) query(ctx context.Context, query string, args ...any) ([]Resource, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	resources := []Resource{}
	for rows.Next() {
		resource, err := scanResource(rows)
		if err != nil {
			return nil, err
		}
		if resource == nil {
			continue
		}
		resources = append(resources, *resource)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return resources, nil
}

func scanResource(scanner interface {
	Scan(dest ...any) error
}) (*Resource, error) {
	resource := Resource{}
	var filename, mediaType sql.NullString
	var createdAt string

	err := scanner.Scan(
		&resource.ID,
		&resource.ContentHash,
		&resource.HashAlgorithm,
		&resource.MD5,
		&resource.Size,
		&resource.Collection,
		&filename,
		&mediaType,
		&resource.Codec,
		&resource.RelativePath,
		&createdAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	resource.Filename = filename.String
	resource.MediaType = mediaType.String
	parsed, err := dbParseTime(createdAt)
	if err != nil {
		return nil, err
	}
	resource.CreatedAt = parsed
	return &resource, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
