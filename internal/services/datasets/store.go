// Package datasets persists uploaded CSV files and loads them back as
// normalized datasets.
package datasets

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"csvdash/internal/cache"
	"csvdash/internal/models"
	"csvdash/internal/services/dataloader"
	"csvdash/internal/services/schema"
	"csvdash/internal/services/storage"
)

// ErrNotFound is returned for unknown or malformed dataset ids
var ErrNotFound = errors.New("dataset not found")

const (
	csvExt  = ".csv"
	metaExt = ".json"
)

// Options configures a Store
type Options struct {
	// MaxRows caps the rows read from an upload; 0 means no limit
	MaxRows int
	// CacheSize is the number of parsed datasets kept in memory
	CacheSize int
	// CacheTTL is how long a parsed dataset stays cached; 0 means no expiry
	CacheTTL time.Duration
}

// Store keeps uploads as <id>.csv plus a <id>.json sidecar in storage
type Store struct {
	storage *storage.Storage
	cache   *cache.LRU[*models.Dataset]
	group   singleflight.Group
	opts    Options
	now     func() time.Time
}

// sidecar is the JSON metadata stored next to each upload
type sidecar struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	Rows       int       `json:"rows"`
	Columns    []string  `json:"columns"`
	UploadedAt time.Time `json:"uploaded_at"`
}

func (m sidecar) info() models.DatasetInfo {
	return models.DatasetInfo{
		ID:         m.ID,
		Name:       m.Name,
		Size:       m.Size,
		Rows:       m.Rows,
		Columns:    m.Columns,
		UploadedAt: m.UploadedAt,
	}
}

// New creates a Store on top of the given storage
func New(st *storage.Storage, opts Options) *Store {
	if opts.CacheSize <= 0 {
		opts.CacheSize = 16
	}
	return &Store{
		storage: st,
		cache:   cache.NewLRU[*models.Dataset](opts.CacheSize, opts.CacheTTL),
		opts:    opts,
		now:     time.Now,
	}
}

// Build runs ingestion and normalization over raw CSV bytes
func Build(data []byte, maxRows int) (*models.Dataset, error) {
	table, err := dataloader.ParseWithOptions(bytes.NewReader(data), dataloader.Options{MaxRows: maxRows})
	if err != nil {
		return nil, err
	}
	return schema.WithYearMonth(schema.Normalize(table)), nil
}

// Save validates an upload, persists it and returns the loaded dataset.
// Nothing is written when the bytes do not parse.
func (s *Store) Save(name string, data []byte) (*models.Dataset, error) {
	ds, err := Build(data, s.opts.MaxRows)
	if err != nil {
		return nil, err
	}

	meta := sidecar{
		ID:         uuid.NewString(),
		Name:       cleanName(name),
		Size:       int64(len(data)),
		Rows:       ds.Table.Len(),
		Columns:    ds.Table.ColumnNames(),
		UploadedAt: s.now().UTC(),
	}

	metaJSON, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode metadata: %w", err)
	}
	if err := s.storage.WriteFile(meta.ID+csvExt, data); err != nil {
		return nil, fmt.Errorf("failed to store upload: %w", err)
	}
	if err := s.storage.WriteFile(meta.ID+metaExt, metaJSON); err != nil {
		s.storage.Remove(meta.ID + csvExt)
		return nil, fmt.Errorf("failed to store metadata: %w", err)
	}

	ds.ID = meta.ID
	ds.Name = meta.Name
	ds.UploadedAt = meta.UploadedAt
	s.cache.Set(meta.ID, ds)

	log.Printf("Stored dataset %s (%s): %d rows, %d columns", meta.ID, meta.Name, meta.Rows, len(meta.Columns))
	return ds, nil
}

// Load returns the dataset for id, parsing it at most once per cache lifetime.
// Concurrent loads of the same id share one parse.
func (s *Store) Load(ctx context.Context, id string) (*models.Dataset, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	if ds, ok := s.cache.Get(id); ok {
		return ds, nil
	}

	ch := s.group.DoChan(id, func() (interface{}, error) {
		ds, err := s.load(id)
		if err != nil {
			return nil, err
		}
		s.cache.Set(id, ds)
		return ds, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*models.Dataset), nil
	}
}

func (s *Store) load(id string) (*models.Dataset, error) {
	meta, err := s.readMeta(id)
	if err != nil {
		return nil, err
	}

	data, err := s.Raw(id)
	if err != nil {
		return nil, err
	}

	ds, err := Build(data, s.opts.MaxRows)
	if err != nil {
		return nil, fmt.Errorf("stored dataset %s no longer parses: %w", id, err)
	}
	ds.ID = meta.ID
	ds.Name = meta.Name
	ds.UploadedAt = meta.UploadedAt
	return ds, nil
}

// Raw returns the uploaded bytes of a dataset
func (s *Store) Raw(id string) ([]byte, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	data, err := s.storage.ReadFile(id + csvExt)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset %s: %w", id, err)
	}
	return data, nil
}

// Info returns the stored metadata of a dataset
func (s *Store) Info(id string) (models.DatasetInfo, error) {
	if !validID(id) {
		return models.DatasetInfo{}, ErrNotFound
	}
	meta, err := s.readMeta(id)
	if err != nil {
		return models.DatasetInfo{}, err
	}
	return meta.info(), nil
}

func (s *Store) readMeta(id string) (sidecar, error) {
	var meta sidecar
	data, err := s.storage.ReadFile(id + metaExt)
	if errors.Is(err, fs.ErrNotExist) {
		return meta, ErrNotFound
	}
	if err != nil {
		return meta, fmt.Errorf("failed to read metadata for %s: %w", id, err)
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return meta, fmt.Errorf("failed to decode metadata for %s: %w", id, err)
	}
	return meta, nil
}

// List returns every stored dataset, newest first
func (s *Store) List() ([]models.DatasetInfo, error) {
	names, err := s.storage.List("*" + metaExt)
	if err != nil {
		return nil, fmt.Errorf("failed to list datasets: %w", err)
	}

	infos := make([]models.DatasetInfo, 0, len(names))
	for _, name := range names {
		id := strings.TrimSuffix(name, metaExt)
		if !validID(id) {
			continue
		}
		meta, err := s.readMeta(id)
		if err != nil {
			log.Printf("Warning: skipping dataset %s: %v", id, err)
			continue
		}
		infos = append(infos, meta.info())
	}

	sort.SliceStable(infos, func(i, j int) bool {
		return infos[i].UploadedAt.After(infos[j].UploadedAt)
	})
	return infos, nil
}

// Delete removes a dataset and evicts it from the cache
func (s *Store) Delete(id string) error {
	if !validID(id) {
		return ErrNotFound
	}

	err := s.storage.Remove(id + csvExt)
	if errors.Is(err, fs.ErrNotExist) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete dataset %s: %w", id, err)
	}
	if err := s.storage.Remove(id + metaExt); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("Warning: could not remove metadata for %s: %v", id, err)
	}

	s.cache.Delete(id)
	log.Printf("Deleted dataset %s", id)
	return nil
}

// CacheStats reports dataset cache usage
func (s *Store) CacheStats() cache.Stats {
	return s.cache.Stats()
}

// validID accepts only canonical UUIDs, so ids are safe as file names
func validID(id string) bool {
	parsed, err := uuid.Parse(id)
	return err == nil && parsed.String() == id
}

// cleanName keeps the base name of an uploaded file
func cleanName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return "upload.csv"
	}
	return name
}
