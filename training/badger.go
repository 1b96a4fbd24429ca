// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package training

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/kelp/decision"
)

// Config holds configuration for the BadgerDB-backed sink.
type Config struct {
	// Path is the directory for BadgerDB files.
	// Required unless InMemory is true.
	Path string

	// InMemory enables in-memory mode (no disk persistence).
	// Useful for testing.
	InMemory bool

	// SyncWrites enables synchronous writes for durability.
	// Default: true for persistent databases.
	SyncWrites bool

	// Logger is the logger for BadgerDB operations.
	// If nil, BadgerDB's internal logging is disabled.
	Logger *slog.Logger
}

// DefaultConfig returns sensible defaults for production use.
func DefaultConfig(path string) Config {
	return Config{
		Path:       path,
		SyncWrites: true,
	}
}

// InMemoryConfig returns configuration optimized for testing.
func InMemoryConfig() Config {
	return Config{
		InMemory: true,
	}
}

// BadgerSink stores training records in an embedded BadgerDB.
//
// Records are keyed "training/<runID>/<seq>" so a run's records scan in
// append order under a single prefix.
//
// Thread Safety: BadgerSink is safe for concurrent use.
type BadgerSink struct {
	db     *badger.DB
	seq    atomic.Uint64
	logger *slog.Logger
}

// NewBadgerSink opens (or creates) a BadgerDB-backed sink.
//
// Inputs:
//
//	cfg - Sink configuration.
//
// Outputs:
//
//	*BadgerSink - The opened sink. Call Close when done.
//	error - Non-nil if the database cannot be opened.
func NewBadgerSink(cfg Config) (*BadgerSink, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path required for persistent sink")
	}

	opts := badger.DefaultOptions(cfg.Path).
		WithInMemory(cfg.InMemory).
		WithSyncWrites(cfg.SyncWrites)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening training sink: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &BadgerSink{db: db, logger: logger}, nil
}

// Append implements Sink.
func (s *BadgerSink) Append(ctx context.Context, record *decision.TrainingRecord) error {
	if record == nil {
		return errors.New("record must not be nil")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encoding training record: %w", err)
	}

	key := fmt.Sprintf("training/%s/%012d", record.RunID, s.seq.Add(1))
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
	if err != nil {
		return fmt.Errorf("appending training record: %w", err)
	}
	return nil
}

// ListRun returns all records for a run in append order.
//
// Outputs:
//
//	[]decision.TrainingRecord - The run's records, oldest first.
//	error - Non-nil on read failure.
func (s *BadgerSink) ListRun(runID string) ([]decision.TrainingRecord, error) {
	prefix := []byte(fmt.Sprintf("training/%s/", runID))

	var records []decision.TrainingRecord
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var rec decision.TrainingRecord
				if err := json.Unmarshal(val, &rec); err != nil {
					return fmt.Errorf("decoding training record: %w", err)
				}
				records = append(records, rec)
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
	return records, nil
}

// Close implements Sink.
func (s *BadgerSink) Close() error {
	return s.db.Close()
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}
