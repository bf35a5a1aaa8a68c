package output

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	bucketRuns    = []byte("runs")
	bucketTargets = []byte("targets")
)

// RunSummary is the listing view of a stored run.
type RunSummary struct {
	ID         string    `json:"id"`
	Target     string    `json:"target"`
	StartedAt  time.Time `json:"startedAt"`
	State      string    `json:"state"`
	Endpoints  int       `json:"endpoints"`
	RetryCount int       `json:"retryCount"`
}

// ErrRunNotFound is returned by Load for an unknown run ID.
var ErrRunNotFound = errors.New("run not found")

// BoltStore keeps the run history in BoltDB. Runs are keyed by ID so the
// cursor walks them in start order.
type BoltStore struct {
	db   *bolt.DB
	path string
}

// NewBoltStore opens or creates the history database at path.
func NewBoltStore(path string) (*BoltStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{
		Timeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketRuns, bucketTargets} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}

	return &BoltStore{db: db, path: path}, nil
}

// Save stores run under its ID and indexes it by target.
func (s *BoltStore) Save(run *Run) (string, error) {
	if run == nil || run.ID == "" {
		return "", fmt.Errorf("run has no ID")
	}

	data, err := json.Marshal(run)
	if err != nil {
		return "", fmt.Errorf("failed to marshal run: %w", err)
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketRuns).Put([]byte(run.ID), data); err != nil {
			return err
		}
		targets, err := tx.Bucket(bucketTargets).CreateBucketIfNotExists([]byte(run.Target))
		if err != nil {
			return err
		}
		return targets.Put([]byte(run.ID), nil)
	})
	if err != nil {
		return "", err
	}
	return s.path + "#" + run.ID, nil
}

// Load returns the run stored under id.
func (s *BoltStore) Load(id string) (*Run, error) {
	var run Run
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketRuns).Get([]byte(id))
		if data == nil {
			return ErrRunNotFound
		}
		return json.Unmarshal(data, &run)
	})
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// List returns summaries of every stored run, oldest first.
func (s *BoltStore) List() ([]RunSummary, error) {
	var out []RunSummary
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketRuns).ForEach(func(_, v []byte) error {
			var run Run
			if err := json.Unmarshal(v, &run); err != nil {
				return err
			}
			out = append(out, summarize(&run))
			return nil
		})
	})
	return out, err
}

// ListTarget returns summaries of the runs against target, oldest first.
func (s *BoltStore) ListTarget(target string) ([]RunSummary, error) {
	var out []RunSummary
	err := s.db.View(func(tx *bolt.Tx) error {
		ids := tx.Bucket(bucketTargets).Bucket([]byte(target))
		if ids == nil {
			return nil
		}
		runs := tx.Bucket(bucketRuns)
		return ids.ForEach(func(k, _ []byte) error {
			data := runs.Get(k)
			if data == nil {
				return nil
			}
			var run Run
			if err := json.Unmarshal(data, &run); err != nil {
				return err
			}
			out = append(out, summarize(&run))
			return nil
		})
	})
	return out, err
}

// Close closes the database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func summarize(run *Run) RunSummary {
	return RunSummary{
		ID:         run.ID,
		Target:     run.Target,
		StartedAt:  run.StartedAt,
		State:      run.State,
		Endpoints:  run.Summary.TotalEndpoints,
		RetryCount: run.RetryCount,
	}
}
