package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"portfolio-backend/internal/models"
)

const badgerMessagePrefix = "chat:"

// BadgerMessageRepo persists the chat log in an embedded Badger database.
// Keys are "chat:{seq}" with seq zero padded to 19 digits, so a prefix scan
// returns messages in insertion order.
type BadgerMessageRepo struct {
	mu  sync.Mutex
	db  *badger.DB
	seq *badger.Sequence
}

func NewBadgerMessageRepo(db *badger.DB) (*BadgerMessageRepo, error) {
	seq, err := db.GetSequence([]byte("seq:chat"), 100)
	if err != nil {
		return nil, fmt.Errorf("failed to open message sequence: %w", err)
	}
	return &BadgerMessageRepo{db: db, seq: seq}, nil
}

// Close returns unused sequence leases to the database.
func (r *BadgerMessageRepo) Close() error {
	return r.seq.Release()
}

// Create holds mu from taking the sequence number until the write commits,
// so a reader never sees seq N+1 before seq N.
func (r *BadgerMessageRepo) Create(ctx context.Context, content string, sender models.Sender) (*models.ChatMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, err := r.seq.Next()
	if err != nil {
		return nil, storageErr("create", err)
	}

	msg := &models.ChatMessage{
		ID:        uuid.New(),
		Content:   content,
		Sender:    sender,
		Timestamp: time.Now().UTC(),
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return nil, storageErr("create", err)
	}

	key := []byte(fmt.Sprintf("%s%019d", badgerMessagePrefix, n))
	err = r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, data)
	})
	if err != nil {
		return nil, storageErr("create", err)
	}

	return msg, nil
}

func (r *BadgerMessageRepo) List(ctx context.Context) ([]models.ChatMessage, error) {
	msgs := []models.ChatMessage{}
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := []byte(badgerMessagePrefix)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			m, err := decodeBadgerItem(it.Item())
			if err != nil {
				return err
			}
			msgs = append(msgs, m)
		}
		return nil
	})
	if err != nil {
		return nil, storageErr("list", err)
	}
	return msgs, nil
}

// Recent walks the keyspace backwards from the newest key and reverses the
// result into chronological order.
func (r *BadgerMessageRepo) Recent(ctx context.Context, n int) ([]models.ChatMessage, error) {
	msgs := []models.ChatMessage{}
	if n <= 0 {
		return msgs, nil
	}

	err := r.db.View(func(txn *badger.Txn) error {
		prefix := []byte(badgerMessagePrefix)
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		seekKey := append(append([]byte{}, prefix...), []byte("9999999999999999999")...)
		for it.Seek(seekKey); it.ValidForPrefix(prefix) && len(msgs) < n; it.Next() {
			m, err := decodeBadgerItem(it.Item())
			if err != nil {
				return err
			}
			msgs = append(msgs, m)
		}
		return nil
	})
	if err != nil {
		return nil, storageErr("recent", err)
	}

	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

func decodeBadgerItem(item *badger.Item) (models.ChatMessage, error) {
	var m models.ChatMessage
	err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &m)
	})
	if err != nil {
		return m, fmt.Errorf("decode %s: %w", item.Key(), err)
	}
	if !m.Sender.Valid() {
		return m, fmt.Errorf("%s has unknown sender %q", item.Key(), m.Sender)
	}
	return m, nil
}
