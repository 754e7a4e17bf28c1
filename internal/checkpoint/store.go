package checkpoint

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/cuemby/warren/internal/jobspec"
	bolt "go.etcd.io/bbolt"
)

var (
	bucketLicenses = []byte("licenses")
	bucketGangRows = []byte("gang_rows")
	bucketJobAlloc = []byte("job_licenses_allocated")
)

// Store is a bbolt-backed checkpoint of the state spec.md §6 says must
// survive a restart: the license pool, each partition's gang row job
// ordering, and every job's licenses_allocated string.
type Store struct {
	db *bolt.DB
}

// Open creates (or reopens) the checkpoint database under dataDir.
func Open(dataDir string) (*Store, error) {
	path := filepath.Join(dataDir, "scheduler.db")
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("opening checkpoint db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketLicenses, bucketGangRows, bucketJobAlloc} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("creating bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database file.
func (s *Store) Close() error {
	return s.db.Close()
}

// licenseRecord is the JSON-on-disk shape of one jobspec.License. Nodes is
// omitted: it comes back from the license configuration string on startup,
// not from checkpointed state.
type licenseRecord struct {
	LicID             jobspec.LicID
	Name              string
	Total             uint32
	Used              uint32
	ReservedForFuture uint32
	LastDeficit       uint32
	HresID            jobspec.LicID
	Mode              jobspec.HresMode
	Server            string
}

// SaveLicenses overwrites the persisted license pool snapshot.
func (s *Store) SaveLicenses(records []jobspec.License) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketLicenses)
		if err := clearBucket(b); err != nil {
			return err
		}
		for _, rec := range records {
			key := fmt.Sprintf("%d", rec.LicID)
			data, err := json.Marshal(toLicenseRecord(rec))
			if err != nil {
				return err
			}
			if err := b.Put([]byte(key), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// LoadLicenses returns the persisted license pool snapshot, empty if none
// was ever saved.
func (s *Store) LoadLicenses() ([]jobspec.License, error) {
	var out []jobspec.License
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketLicenses)
		return b.ForEach(func(k, v []byte) error {
			var rec licenseRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			out = append(out, fromLicenseRecord(rec))
			return nil
		})
	})
	return out, err
}

func toLicenseRecord(l jobspec.License) licenseRecord {
	return licenseRecord{
		LicID: l.LicID, Name: l.Name, Total: l.Total, Used: l.Used,
		ReservedForFuture: l.ReservedForFuture, LastDeficit: l.LastDeficit,
		HresID: l.HresID, Mode: l.Mode, Server: l.Server,
	}
}

func fromLicenseRecord(r licenseRecord) jobspec.License {
	return jobspec.License{
		LicID: r.LicID, Name: r.Name, Total: r.Total, Used: r.Used,
		ReservedForFuture: r.ReservedForFuture, LastDeficit: r.LastDeficit,
		HresID: r.HresID, Mode: r.Mode, Server: r.Server,
	}
}

// SaveGangRow persists a partition's gang job-list ordering, by job id.
func (s *Store) SaveGangRow(partition string, jobIDs []string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(jobIDs)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketGangRows).Put([]byte(partition), data)
	})
}

// LoadGangRow returns a partition's persisted job ordering.
func (s *Store) LoadGangRow(partition string) ([]string, error) {
	var out []string
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketGangRows).Get([]byte(partition))
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, &out)
	})
	return out, err
}

// SaveJobAllocation persists one job's licenses_allocated string.
func (s *Store) SaveJobAllocation(jobID, allocation string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if allocation == "" {
			return tx.Bucket(bucketJobAlloc).Delete([]byte(jobID))
		}
		return tx.Bucket(bucketJobAlloc).Put([]byte(jobID), []byte(allocation))
	})
}

// LoadJobAllocations returns every persisted job_id -> licenses_allocated
// entry, for restoring the license pool's Used counters on restart.
func (s *Store) LoadJobAllocations() (map[string]string, error) {
	out := make(map[string]string)
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketJobAlloc).ForEach(func(k, v []byte) error {
			out[string(k)] = string(v)
			return nil
		})
	})
	return out, err
}

func clearBucket(b *bolt.Bucket) error {
	c := b.Cursor()
	for k, _ := c.First(); k != nil; k, _ = c.First() {
		if err := b.Delete(k); err != nil {
			return err
		}
	}
	return nil
}
