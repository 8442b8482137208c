// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/dgraph-io/badger/v4"
)

// EventStore persists score events. Append-only: implementations never
// update or delete existing events.
type EventStore interface {
	// Append stores one event. Events for the same user are readable
	// back in append order.
	Append(ctx context.Context, event *ScoreEvent) error

	// ListByUser returns a user's events in append order. An unknown
	// user yields an empty slice, not an error.
	ListByUser(ctx context.Context, userID string) ([]ScoreEvent, error)

	// Close releases the store's resources.
	Close() error
}

// StoreConfig holds configuration for the Badger-backed event store.
type StoreConfig struct {
	// Path is the directory for database files.
	// Ignored when InMemory is true.
	Path string

	// InMemory enables in-memory mode (no disk persistence).
	// Useful for testing.
	InMemory bool

	// SyncWrites enables synchronous writes for durability.
	SyncWrites bool

	// Logger is the logger for Badger operations. If nil, Badger's
	// internal logging is disabled.
	Logger *slog.Logger
}

// DefaultStoreConfig returns production defaults.
func DefaultStoreConfig(path string) StoreConfig {
	return StoreConfig{Path: path, SyncWrites: true}
}

// InMemoryStoreConfig returns a configuration for tests.
func InMemoryStoreConfig() StoreConfig {
	return StoreConfig{InMemory: true}
}

// storeLogger adapts slog.Logger to Badger's Logger interface.
type storeLogger struct {
	logger *slog.Logger
}

func (l *storeLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *storeLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *storeLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *storeLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// BadgerStore is the embedded EventStore.
//
// Events are keyed `event/{userID}/{seq}` with a per-user
// zero-padded sequence so a prefix scan returns them in append order.
//
// # Thread Safety
//
// BadgerStore is safe for concurrent use.
type BadgerStore struct {
	db *badger.DB

	mu   sync.Mutex
	seqs map[string]uint64
}

// OpenStore opens a Badger-backed event store.
func OpenStore(cfg StoreConfig) (*BadgerStore, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent store")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create store directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites)
	opts = opts.WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&storeLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger store: %w", err)
	}
	store := &BadgerStore{db: db, seqs: make(map[string]uint64)}
	if err := store.loadSequences(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func eventKey(userID string, seq uint64) []byte {
	return []byte(fmt.Sprintf("event/%s/%016d", userID, seq))
}

func userPrefix(userID string) []byte {
	return []byte(fmt.Sprintf("event/%s/", userID))
}

// loadSequences rebuilds the per-user counters from the key space so
// restarts continue numbering where they left off.
func (s *BadgerStore) loadSequences() error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte("event/")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := string(it.Item().Key())
			rest := strings.TrimPrefix(key, "event/")
			slash := strings.LastIndexByte(rest, '/')
			if slash < 0 {
				continue
			}
			user := rest[:slash]
			seq, err := strconv.ParseUint(rest[slash+1:], 10, 64)
			if err != nil {
				continue
			}
			if seq+1 > s.seqs[user] {
				s.seqs[user] = seq + 1
			}
		}
		return nil
	})
}

// Append implements EventStore.
func (s *BadgerStore) Append(ctx context.Context, event *ScoreEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal score event: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	seq := s.seqs[event.UserID]
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(eventKey(event.UserID, seq), payload)
	})
	if err != nil {
		return fmt.Errorf("write score event: %w", err)
	}
	s.seqs[event.UserID] = seq + 1
	return nil
}

// ListByUser implements EventStore.
func (s *BadgerStore) ListByUser(ctx context.Context, userID string) ([]ScoreEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var events []ScoreEvent
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := userPrefix(userID)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var e ScoreEvent
				if err := json.Unmarshal(val, &e); err != nil {
					return fmt.Errorf("decode score event %s: %w", it.Item().Key(), err)
				}
				events = append(events, e)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}

// Close implements EventStore.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}
