package report

import (
	"fmt"
	"sync"
	"time"

	"go.etcd.io/bbolt"
)

var reportsBucket = []byte("reports")

// BoltStore persists reports to a bbolt file, keyed by report ID.
type BoltStore struct {
	db *bbolt.DB

	// mu guards closed only; bbolt serialises writers itself.
	mu     sync.RWMutex
	closed bool
}

// NewBoltStore opens or creates a bbolt report store at path.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(reportsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create bucket: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// Save implements Store.
func (s *BoltStore) Save(r *Report) error {
	if err := validate(r); err != nil {
		return err
	}
	data, err := r.Marshal()
	if err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrStoreClosed
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(reportsBucket).Put([]byte(r.ID), data)
	})
	if err != nil {
		return fmt.Errorf("save report: %w", err)
	}
	return nil
}

// Load implements Store.
func (s *BoltStore) Load(id string) (*Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	var data []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		// Get's result is only valid inside the transaction.
		if v := tx.Bucket(reportsBucket).Get([]byte(id)); v != nil {
			data = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load report: %w", err)
	}
	if data == nil {
		return nil, ErrNotFound
	}
	return Unmarshal(data)
}

// List implements Store.
func (s *BoltStore) List() ([]Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	infos := []Info{}
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(reportsBucket).ForEach(func(_, v []byte) error {
			r, err := Unmarshal(v)
			if err != nil {
				return err
			}
			infos = append(infos, r.Info())
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	sortInfos(infos)
	return infos, nil
}

// Delete implements Store.
func (s *BoltStore) Delete(id string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrStoreClosed
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(reportsBucket).Delete([]byte(id))
	})
	if err != nil {
		return fmt.Errorf("delete report: %w", err)
	}
	return nil
}

// Close implements Store.
func (s *BoltStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
