// Package journal persists engine events append-only in a single bbolt file
// so external auditors and indexers can replay every state transition.
package journal

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"tokenmarket/core"
)

var bucketEvents = []byte("events_by_seq")

type Journal struct {
	db *bolt.DB
}

var _ core.EventSink = (*Journal)(nil)

func Open(path string) (*Journal, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketEvents)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create events bucket: %w", err)
	}
	return &Journal{db: db}, nil
}

// Record implements core.EventSink. Sequence numbers are assigned from the
// bucket sequence, so they stay monotonic across restarts.
func (j *Journal) Record(ev core.Event) error {
	return j.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketEvents)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		ev.Seq = seq
		body, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		var key [8]byte
		binary.BigEndian.PutUint64(key[:], seq)
		return b.Put(key[:], body)
	})
}

// Events replays the journal in recorded order.
func (j *Journal) Events() ([]core.Event, error) {
	var out []core.Event
	err := j.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketEvents).ForEach(func(_, v []byte) error {
			var ev core.Event
			if err := json.Unmarshal(v, &ev); err != nil {
				return fmt.Errorf("decode event: %w", err)
			}
			out = append(out, ev)
			return nil
		})
	})
	return out, err
}

func (j *Journal) Close() error {
	return j.db.Close()
}
