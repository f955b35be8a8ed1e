// Package storage provides persistent history for the loan risk service.
// It uses BoltDB as the underlying storage engine to keep served predictions
// and the outcome of every training run.
//
// Keys are zero-padded unix-nano timestamps followed by a bucket sequence, so
// cursor order is chronological and concurrent writes in the same nanosecond
// never collide.
package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"loan-risk/internal/common"
)

const (
	predictionsBucket  = "predictions"   // Bucket name for served predictions
	trainingRunsBucket = "training_runs" // Bucket name for training run summaries
)

// Store provides persistent storage using BoltDB. It is safe for concurrent
// use; bbolt serialises writers.
type Store struct {
	db *bbolt.DB // BoltDB database instance
}

// New creates a new storage instance under dataPath and initialises the
// buckets. Returns an error if the database cannot be opened.
func New(dataPath string) (*Store, error) {
	dbPath := filepath.Join(dataPath, common.DBFileName)

	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(predictionsBucket)); err != nil {
			return fmt.Errorf("create predictions bucket: %w", err)
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(trainingRunsBucket)); err != nil {
			return fmt.Errorf("create training runs bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database connection. Closing twice is harmless.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func timeKey(ts time.Time, seq uint64) []byte {
	return []byte(fmt.Sprintf("%020d-%010d", ts.UnixNano(), seq))
}

func timePrefix(ts time.Time) []byte {
	return []byte(fmt.Sprintf("%020d", ts.UnixNano()))
}

func (s *Store) put(bucket string, ts time.Time, v any) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucket))

		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshal %s record: %w", bucket, err)
		}

		seq, err := b.NextSequence()
		if err != nil {
			return fmt.Errorf("next sequence: %w", err)
		}
		return b.Put(timeKey(ts, seq), data)
	})
}

// latest walks a bucket newest first, handing each value to fn until fn
// returns false.
func (s *Store) latest(bucket string, fn func(v []byte) bool) error {
	return s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(bucket)).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if !fn(v) {
				return nil
			}
		}
		return nil
	})
}

// inRange walks a bucket oldest first for keys within [start, end].
func (s *Store) inRange(bucket string, start, end time.Time, fn func(v []byte)) error {
	return s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(bucket)).Cursor()
		endKey := timePrefix(end)
		for k, v := c.Seek(timePrefix(start)); k != nil; k, v = c.Next() {
			if bytes.Compare(k[:len(endKey)], endKey) > 0 {
				break
			}
			fn(v)
		}
		return nil
	})
}
