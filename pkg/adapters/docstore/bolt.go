package docstore

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"
)

type boltEngine struct {
	db *bolt.DB
}

// OpenBolt opens (or creates) a bbolt file backed Store.
// Each collection path is stored in its own bucket, one JSON value per document.
func OpenBolt(path string, opts ...Option) (*DB, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("docstore path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open docstore: %w", err)
	}
	return newDB(&boltEngine{db: db}, opts...), nil
}

func (b *boltEngine) name() string { return "bbolt" }

func decodeDocument(collection string, k, v []byte) (Document, error) {
	data := map[string]any{}
	dec := json.NewDecoder(bytes.NewReader(v))
	dec.UseNumber()
	if err := dec.Decode(&data); err != nil {
		return Document{}, fmt.Errorf("decode %s/%s: %w", collection, k, err)
	}
	id := string(k)
	return Document{ID: id, Path: Join(collection, id), Data: data}, nil
}

func (b *boltEngine) list(collection string) ([]Document, error) {
	var docs []Document
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(collection))
		if bucket == nil {
			return nil
		}
		return bucket.ForEach(func(k, v []byte) error {
			doc, err := decodeDocument(collection, k, v)
			if err != nil {
				return err
			}
			docs = append(docs, doc)
			return nil
		})
	})
	return docs, err
}

func (b *boltEngine) get(collection, id string) (Document, bool, error) {
	var (
		doc   Document
		found bool
	)
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(collection))
		if bucket == nil {
			return nil
		}
		raw := bucket.Get([]byte(id))
		if raw == nil {
			return nil
		}
		var err error
		doc, err = decodeDocument(collection, []byte(id), raw)
		found = err == nil
		return err
	})
	return doc, found, err
}

func (b *boltEngine) apply(ops []op) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		for _, o := range ops {
			if o.delete {
				bucket := tx.Bucket([]byte(o.collection))
				if bucket == nil {
					continue
				}
				if err := bucket.Delete([]byte(o.id)); err != nil {
					return err
				}
				continue
			}

			bucket, err := tx.CreateBucketIfNotExists([]byte(o.collection))
			if err != nil {
				return err
			}
			var (
				current map[string]any
				exists  bool
			)
			if raw := bucket.Get([]byte(o.id)); raw != nil {
				doc, err := decodeDocument(o.collection, []byte(o.id), raw)
				if err != nil {
					return err
				}
				current, exists = doc.Data, true
			}
			next, err := mergeData(current, exists, o)
			if err != nil {
				return err
			}
			encoded, err := json.Marshal(next)
			if err != nil {
				return fmt.Errorf("encode %s/%s: %w", o.collection, o.id, err)
			}
			if err := bucket.Put([]byte(o.id), encoded); err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *boltEngine) close() error {
	if b.db == nil {
		return nil
	}
	return b.db.Close()
}
