package filestore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/stackbound/identity-api/internal/domain/entity"
	"github.com/stackbound/identity-api/internal/domain/repository"
)

const storeFileName = "identities.json"

// Store persists identities in a single JSON document on disk.
//
// Mutations take the write lock for the whole read-verify-write cycle, so
// the duplicate-email check and the write are one atomic step. The document
// is replaced via temp-file + rename; a concurrent reader sees either the
// old or the new document, never a partial one.
type Store struct {
	mu   sync.RWMutex
	path string
}

type document struct {
	Identities []entity.Identity `json:"identities"`
}

func New(dataDir string) *Store {
	return &Store{path: filepath.Join(dataDir, storeFileName)}
}

// Init creates the data directory and an empty document if none exists.
// An existing but undecodable document is a fatal condition and is reported
// distinctly from plain I/O failure.
func (s *Store) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("%w: create data dir: %v", repository.ErrUnavailable, err)
	}
	if _, err := os.Stat(s.path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("%w: stat %s: %v", repository.ErrUnavailable, s.path, err)
		}
		return s.write(document{Identities: []entity.Identity{}})
	}
	if _, err := s.load(); err != nil {
		return err
	}
	return nil
}

func (s *Store) GetByEmail(ctx context.Context, email string) (*entity.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	email = entity.NormalizeEmail(email)
	for i := range doc.Identities {
		if entity.NormalizeEmail(doc.Identities[i].Email) == email {
			rec := doc.Identities[i]
			return &rec, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *Store) GetByID(ctx context.Context, id string) (*entity.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	for i := range doc.Identities {
		if doc.Identities[i].ID == id {
			rec := doc.Identities[i]
			return &rec, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *Store) Create(ctx context.Context, cand entity.Identity) (*entity.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return nil, err
	}

	email := entity.NormalizeEmail(cand.Email)
	for i := range doc.Identities {
		if entity.NormalizeEmail(doc.Identities[i].Email) == email {
			return nil, repository.ErrDuplicateEmail
		}
	}

	now := time.Now().UTC()
	cand.ID = uuid.NewString()
	cand.Email = email
	cand.CreatedAt = now
	cand.UpdatedAt = now

	doc.Identities = append(doc.Identities, cand)
	if err := s.write(doc); err != nil {
		return nil, err
	}
	return &cand, nil
}

func (s *Store) Update(ctx context.Context, id string, fields entity.ProfileUpdate) (*entity.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return nil, err
	}

	for i := range doc.Identities {
		if doc.Identities[i].ID != id {
			continue
		}
		if fields.Name != nil {
			doc.Identities[i].Name = *fields.Name
		}
		doc.Identities[i].UpdatedAt = time.Now().UTC()
		if err := s.write(doc); err != nil {
			return nil, err
		}
		rec := doc.Identities[i]
		return &rec, nil
	}
	return nil, repository.ErrNotFound
}

// load reads and decodes the document. Callers hold at least the read lock.
func (s *Store) load() (document, error) {
	var doc document
	b, err := os.ReadFile(s.path)
	if err != nil {
		return doc, fmt.Errorf("%w: read %s: %v", repository.ErrUnavailable, s.path, err)
	}
	if err := json.Unmarshal(b, &doc); err != nil {
		return doc, fmt.Errorf("corrupt store file %s: %w", s.path, err)
	}
	return doc, nil
}

// write replaces the document atomically: marshal to a temp file in the same
// directory, fsync, then rename over the target. Callers hold the write lock.
func (s *Store) write(doc document) error {
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode: %v", repository.ErrUnavailable, err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".identities-*.json")
	if err != nil {
		return fmt.Errorf("%w: create temp: %v", repository.ErrUnavailable, err)
	}
	tmpName := tmp.Name()

	_, werr := tmp.Write(b)
	if werr == nil {
		werr = tmp.Sync()
	}
	if cerr := tmp.Close(); werr == nil {
		werr = cerr
	}
	if werr == nil {
		werr = os.Rename(tmpName, s.path)
	}
	if werr != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w: write %s: %v", repository.ErrUnavailable, s.path, werr)
	}
	return nil
}

var _ repository.IdentityRepository = (*Store)(nil)
