// Package trace persists probe outcomes in a bbolt database for later review.
package trace

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/PentesterFlow/PanelProbe/pkg/prober"
)

var (
	bucketTraces = []byte("traces")
	bucketIndex  = []byte("index")
)

const redacted = "REDACTED"

// passwordField matches JSON string values under password-like keys,
// including a value cut off by the end of a truncated snippet.
var passwordField = regexp.MustCompile(`("(?:password|pass|pwd)"\s*:\s*)"(?:[^"\\]|\\.)*(?:"|$)`)

// Record is one stored probe. The password is never stored.
type Record struct {
	ID         string           `json:"id"`
	CreatedAt  time.Time        `json:"created_at"`
	BaseURL    string           `json:"base_url"`
	Username   string           `json:"username"`
	ProviderID string           `json:"provider_id,omitempty"`
	Success    bool             `json:"success"`
	Type       string           `json:"type,omitempty"`
	Endpoint   string           `json:"endpoint,omitempty"`
	Details    string           `json:"details,omitempty"`
	Attempts   []prober.Attempt `json:"attempts"`
	DurationMS int64            `json:"duration_ms"`
}

// NewRecord builds a record from a request and its result. Panels often
// echo credentials in their responses, so every recorded body, error and
// URL is scrubbed of the password before it reaches the record.
func NewRecord(req prober.Request, res *prober.Result) *Record {
	id := res.ID
	if id == "" {
		id = uuid.NewString()
	}

	attempts := make([]prober.Attempt, len(res.Logs))
	for i, a := range res.Logs {
		a.URL = scrub(a.URL, req.Password)
		a.Body = scrub(a.Body, req.Password)
		a.Error = scrub(a.Error, req.Password)
		attempts[i] = a
	}

	return &Record{
		ID:         id,
		CreatedAt:  time.Now().UTC(),
		BaseURL:    req.BaseURL,
		Username:   req.Username,
		ProviderID: req.ProviderID,
		Success:    res.Success,
		Type:       res.Type,
		Endpoint:   res.Endpoint,
		Details:    scrub(res.Details, req.Password),
		Attempts:   attempts,
		DurationMS: res.DurationMS,
	}
}

// scrub masks the password, in raw, JSON-escaped and URL-encoded form,
// and any JSON value stored under a password-like key.
func scrub(s, password string) string {
	if s == "" {
		return s
	}
	if password != "" {
		forms := []string{password, url.QueryEscape(password)}
		if quoted, err := json.Marshal(password); err == nil {
			forms = append(forms, strings.Trim(string(quoted), `"`))
		}
		for _, f := range forms {
			s = strings.ReplaceAll(s, f, redacted)
		}
	}
	return passwordField.ReplaceAllString(s, `${1}"`+redacted+`"`)
}

// Summary is the list view of a record.
type Summary struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	BaseURL   string    `json:"base_url"`
	Username  string    `json:"username"`
	Success   bool      `json:"success"`
	Type      string    `json:"type,omitempty"`
	Details   string    `json:"details,omitempty"`
	Attempts  int       `json:"attempts"`
}

func (r *Record) summary() Summary {
	return Summary{
		ID:        r.ID,
		CreatedAt: r.CreatedAt,
		BaseURL:   r.BaseURL,
		Username:  r.Username,
		Success:   r.Success,
		Type:      r.Type,
		Details:   r.Details,
		Attempts:  len(r.Attempts),
	}
}

// Store is a BoltDB-backed trace store.
type Store struct {
	db   *bolt.DB
	path string
}

// Open opens or creates the trace database at path.
func Open(path string) (*Store, error) {
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
		for _, name := range [][]byte{bucketTraces, bucketIndex} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create buckets: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// indexKey sorts records by creation time; the id breaks ties.
func indexKey(r *Record) []byte {
	return []byte(r.CreatedAt.UTC().Format("20060102T150405.000000000Z") + "/" + r.ID)
}

// Save stores a record, replacing any record with the same id.
func (s *Store) Save(r *Record) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}

	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal trace: %w", err)
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		traces := tx.Bucket(bucketTraces)
		index := tx.Bucket(bucketIndex)

		if old := traces.Get([]byte(r.ID)); old != nil {
			var prev Record
			if err := json.Unmarshal(old, &prev); err == nil {
				if err := index.Delete(indexKey(&prev)); err != nil {
					return err
				}
			}
		}

		if err := traces.Put([]byte(r.ID), data); err != nil {
			return err
		}
		return index.Put(indexKey(r), []byte(r.ID))
	})
}

// Get loads one record. A missing id returns (nil, nil).
func (s *Store) Get(id string) (*Record, error) {
	var rec *Record

	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketTraces).Get([]byte(id))
		if data == nil {
			return nil
		}
		rec = &Record{}
		return json.Unmarshal(data, rec)
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// List returns up to limit summaries, newest first. A limit of zero or less returns all.
func (s *Store) List(limit int) ([]Summary, error) {
	out := make([]Summary, 0)

	err := s.db.View(func(tx *bolt.Tx) error {
		traces := tx.Bucket(bucketTraces)
		c := tx.Bucket(bucketIndex).Cursor()

		for k, id := c.Last(); k != nil; k, id = c.Prev() {
			if limit > 0 && len(out) >= limit {
				break
			}
			data := traces.Get(id)
			if data == nil {
				continue
			}
			var rec Record
			if err := json.Unmarshal(data, &rec); err != nil {
				return fmt.Errorf("corrupt trace %s: %w", id, err)
			}
			out = append(out, rec.summary())
		}
		return nil
	})
	return out, err
}

// Delete removes a record.
func (s *Store) Delete(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		traces := tx.Bucket(bucketTraces)
		data := traces.Get([]byte(id))
		if data == nil {
			return nil
		}
		var rec Record
		if err := json.Unmarshal(data, &rec); err == nil {
			if err := tx.Bucket(bucketIndex).Delete(indexKey(&rec)); err != nil {
				return err
			}
		}
		return traces.Delete([]byte(id))
	})
}

// Count returns the number of stored records.
func (s *Store) Count() (int, error) {
	var n int
	err := s.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(bucketTraces).Stats().KeyN
		return nil
	})
	return n, err
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
