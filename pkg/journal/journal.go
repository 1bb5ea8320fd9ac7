// Package journal persists session history in a bbolt database so operators
// can review past upgrades and rollbacks with "upshift history".
package journal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	bolt "go.etcd.io/bbolt"

	"github.com/stackmill/upshift/pkg/types"
)

var bucketSessions = []byte("sessions")

// Store is the bbolt-backed session history. It is advisory: sessions log
// journal write failures and keep going, so a broken journal can never block
// an upgrade or a rollback.
type Store struct {
	db *bolt.DB
}

// Open opens (creating if necessary) the journal database under dataDir.
func Open(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir %s: %w", dataDir, err)
	}

	dbPath := filepath.Join(dataDir, "upshift.db")
	db, err := bolt.Open(dbPath, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", dbPath, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketSessions)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create sessions bucket: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the journal database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record upserts a session record. Called once per state transition, so the
// stored record always reflects the session's latest known state.
func (s *Store) Record(rec *types.SessionRecord) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSessions)
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return b.Put([]byte(rec.ID), data)
	})
}

// Get returns one session record by ID.
func (s *Store) Get(id string) (*types.SessionRecord, error) {
	var rec types.SessionRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSessions)
		data := b.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("session not found: %s", id)
		}
		return json.Unmarshal(data, &rec)
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// List returns every recorded session, oldest first.
func (s *Store) List() ([]*types.SessionRecord, error) {
	var recs []*types.SessionRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSessions)
		return b.ForEach(func(k, v []byte) error {
			var rec types.SessionRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			recs = append(recs, &rec)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(recs, func(i, j int) bool {
		return recs[i].StartedAt.Before(recs[j].StartedAt)
	})
	return recs, nil
}
