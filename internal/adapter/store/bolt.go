package store

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"helpdesk/internal/domain"
)

const boltFile = "index.db"

var bucketMeta = []byte("meta")

// boltBackend keeps each collection table in its own bucket keyed by
// insertion sequence, and the schema info in the meta bucket.
type boltBackend struct {
	db *bbolt.DB
}

func openBolt(path string, readOnly bool) (*boltBackend, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{
		Timeout:  time.Second,
		ReadOnly: readOnly,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}
	return &boltBackend{db: db}, nil
}

func (b *boltBackend) name() string { return "bolt" }

// write replaces the table contents and schema info in one transaction,
// then syncs the file.
func (b *boltBackend) write(table string, records []*record, info domain.StoreInfo) error {
	err := b.db.Update(func(tx *bbolt.Tx) error {
		if tx.Bucket([]byte(table)) != nil {
			if err := tx.DeleteBucket([]byte(table)); err != nil {
				return err
			}
		}
		bucket, err := tx.CreateBucket([]byte(table))
		if err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", table, err)
		}
		bucket.FillPercent = 1.0 // sequential keys

		for _, r := range records {
			data, err := encodeRecord(r)
			if err != nil {
				return err
			}
			if err := bucket.Put(seqKey(r.Seq), data); err != nil {
				return err
			}
		}

		meta, err := tx.CreateBucketIfNotExists(bucketMeta)
		if err != nil {
			return err
		}
		data, err := encodeInfo(info)
		if err != nil {
			return err
		}
		return meta.Put(keyStoreInfo, data)
	})
	if err != nil {
		return err
	}
	return b.db.Sync()
}

func (b *boltBackend) readInfo() (domain.StoreInfo, error) {
	var data []byte
	err := b.db.View(func(tx *bbolt.Tx) error {
		meta := tx.Bucket(bucketMeta)
		if meta == nil {
			return nil
		}
		if v := meta.Get(keyStoreInfo); v != nil {
			data = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return domain.StoreInfo{}, err
	}
	return decodeInfo(data)
}

var errNoTable = errors.New("no such table")

func (b *boltBackend) records(table string) ([]*record, error) {
	var out []*record
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(table))
		if bucket == nil {
			return fmt.Errorf("%w: %s", errNoTable, table)
		}
		return bucket.ForEach(func(k, v []byte) error {
			if len(k) != 8 {
				return fmt.Errorf("corrupt key in table %s", table)
			}
			r, err := decodeRecord(binary.BigEndian.Uint64(k), v)
			if err != nil {
				return err
			}
			out = append(out, r)
			return nil
		})
	})
	return out, err
}

// rowCount is the bucket's key count, the bolt equivalent of COUNT(*).
func (b *boltBackend) rowCount(table string) (int64, error) {
	var n int64
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(table))
		if bucket == nil {
			return fmt.Errorf("%w: %s", errNoTable, table)
		}
		n = int64(bucket.Stats().KeyN)
		return nil
	})
	return n, err
}

func (b *boltBackend) close() error {
	return b.db.Close()
}
