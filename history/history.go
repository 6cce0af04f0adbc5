// Package history keeps the bounded recent-message window of a chat room in
// an in-memory buntdb instance with a JSON index on the message id. Ids carry
// a nanosecond prefix, so index order is append order. The store is purely
// memory-resident; nothing survives a restart.
package history

import (
	"encoding/json"
	"fmt"

	"github.com/tcriess/lightspeed-rooms/types"
	"github.com/tidwall/buntdb"
)

const indexName = "messageid"

type Log struct {
	db       *buntdb.DB
	capacity int
}

// NewLog opens an in-memory log evicting the oldest message once more than
// capacity messages are stored.
func NewLog(capacity int) (*Log, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("history capacity must be positive, got %d", capacity)
	}
	db, err := buntdb.Open(":memory:")
	if err != nil {
		return nil, err
	}
	err = db.CreateIndex(indexName, "message:*", buntdb.IndexJSON("id"))
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Log{db: db, capacity: capacity}, nil
}

// Append stores msg and evicts the oldest entries beyond the capacity.
func (l *Log) Append(msg types.Message) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return l.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set("message:"+msg.Id, string(raw), nil)
		if err != nil {
			return err
		}
		n, err := tx.Len()
		if err != nil {
			return err
		}
		if n <= l.capacity {
			return nil
		}
		evict := make([]string, 0, n-l.capacity)
		err = tx.Ascend(indexName, func(key, val string) bool {
			evict = append(evict, key)
			return len(evict) < n-l.capacity
		})
		if err != nil {
			return err
		}
		for _, key := range evict {
			if _, err := tx.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
}

// Get returns the message with the given id, or nil if it is not in the log.
func (l *Log) Get(id string) (*types.Message, error) {
	var msg *types.Message
	err := l.db.View(func(tx *buntdb.Tx) error {
		raw, err := tx.Get("message:" + id)
		if err == buntdb.ErrNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		m := types.Message{}
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			return err
		}
		msg = &m
		return nil
	})
	return msg, err
}

// Delete removes the message with the given id and reports whether it existed.
func (l *Log) Delete(id string) (bool, error) {
	deleted := false
	err := l.db.Update(func(tx *buntdb.Tx) error {
		_, err := tx.Delete("message:" + id)
		if err == buntdb.ErrNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		deleted = true
		return nil
	})
	return deleted, err
}

// Clear empties the log. Keys are removed one by one, DeleteAll would drop
// the index as well.
func (l *Log) Clear() error {
	return l.db.Update(func(tx *buntdb.Tx) error {
		keys := make([]string, 0)
		err := tx.AscendKeys("message:*", func(key, val string) bool {
			keys = append(keys, key)
			return true
		})
		if err != nil {
			return err
		}
		for _, key := range keys {
			if _, err := tx.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
}

// Messages returns all stored messages, oldest first.
func (l *Log) Messages() ([]types.Message, error) {
	messages := make([]types.Message, 0)
	err := l.db.View(func(tx *buntdb.Tx) error {
		return tx.Ascend(indexName, func(key, val string) bool {
			msg := types.Message{}
			if err := json.Unmarshal([]byte(val), &msg); err == nil {
				messages = append(messages, msg)
			}
			return true
		})
	})
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// Len returns the number of stored messages.
func (l *Log) Len() (int, error) {
	n := 0
	err := l.db.View(func(tx *buntdb.Tx) error {
		var err error
		n, err = tx.Len()
		return err
	})
	return n, err
}

func (l *Log) Close() error {
	return l.db.Close()
}
