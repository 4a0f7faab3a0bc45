package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
	"github.com/djvang/pdftron-sign-app/interfaces"
)

const badgerKeyPrefix = "payload/"

// BadgerBackend implements a storage backend on an embedded Badger database.
// With an empty directory the database is kept in memory.
type BadgerBackend struct {
	db          *badger.DB
	log         *slog.Logger
	locationURI string
}

// NewBadgerBackend opens (or creates) a Badger database in dir. An empty dir
// opens an in-memory database.
func NewBadgerBackend(dir string, log *slog.Logger) (*BadgerBackend, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	uri := fmt.Sprintf("badger://%s", dir)
	if dir == "" {
		opts = opts.WithInMemory(true)
		uri = "badger://memory"
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}

	return &BadgerBackend{
		db:          db,
		log:         log,
		locationURI: uri,
	}, nil
}

func badgerKey(id interfaces.ContentID) []byte {
	return append([]byte(badgerKeyPrefix), id.Cid().Bytes()...)
}

// Fetch retrieves data by its content identifier.
func (b *BadgerBackend) Fetch(ctx context.Context, id interfaces.ContentID) ([]byte, error) {
	if !id.Defined() {
		return nil, interfaces.ErrContentNotFound
	}

	var data []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(badgerKey(id))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, interfaces.ErrContentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
	}

	if !id.Verify(data) {
		return nil, fmt.Errorf("%w: stored value does not match %s", interfaces.ErrPayloadIntegrity, id)
	}
	return data, nil
}

// Store saves data and returns its content identifier.
func (b *BadgerBackend) Store(ctx context.Context, data []byte) (interfaces.ContentID, error) {
	id := interfaces.ComputeContentID(data)

	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(badgerKey(id), data)
	})
	if err != nil {
		return interfaces.ContentID{}, fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
	}

	b.log.Debug("Stored content in badger",
		slog.String("content_id", id.String()),
		slog.Int("size", len(data)))

	return id, nil
}

// Available reports whether the database is open.
func (b *BadgerBackend) Available(ctx context.Context) bool {
	return !b.db.IsClosed()
}

func (b *BadgerBackend) Name() string {
	return "badger"
}

func (b *BadgerBackend) LocationURI() string {
	return b.locationURI
}

// Close closes the database.
func (b *BadgerBackend) Close() error {
	return b.db.Close()
}
