package docsource

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Source yields the raw bytes of one configuration document. Implementations
// must be safe for concurrent use.
type Source interface {
	Name() string
	Load(ctx context.Context) ([]byte, error)
}

// FileSource reads a document from disk.
type FileSource struct {
	path string
}

func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

func (f *FileSource) Name() string {
	return filepath.Base(f.path)
}

func (f *FileSource) Load(_ context.Context) ([]byte, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("read document %s: %w", f.path, err)
	}
	return data, nil
}

// PGSource reads a document from the backend's _documents table, for
// deployments where configuration is edited through the admin API rather
// than shipped as files.
type PGSource struct {
	pool *pgxpool.Pool
	name string
}

func NewPGSource(pool *pgxpool.Pool, name string) *PGSource {
	return &PGSource{pool: pool, name: name}
}

func (p *PGSource) Name() string {
	return p.name
}

func (p *PGSource) Load(ctx context.Context) ([]byte, error) {
	var definition []byte
	err := p.pool.QueryRow(ctx,
		"SELECT definition FROM _documents WHERE name = $1", p.name).Scan(&definition)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("document %s not found in store", p.name)
		}
		return nil, fmt.Errorf("load document %s: %w", p.name, err)
	}
	return definition, nil
}

// Connect opens the document store pool.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect document store: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping document store: %w", err)
	}
	return pool, nil
}

// StaticSource serves fixed bytes. Used in tests and for embedded defaults.
type StaticSource struct {
	DocName string
	Data    []byte
	Err     error
}

func (s *StaticSource) Name() string {
	return s.DocName
}

func (s *StaticSource) Load(_ context.Context) ([]byte, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	return s.Data, nil
}
