package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"salon-chat/domain"
	"salon-chat/errors"

	"github.com/dgraph-io/badger/v4"
)

const objectPrefix = "obj:"

// BadgerBackend keeps objects in an embedded badger store, for single-node deployments and local runs.
// Keys are formatted as "obj:{object_key}" so a folder is a plain prefix scan.
type BadgerBackend struct {
	db         *badger.DB
	log        *slog.Logger
	publicBase string
}

func NewBadgerBackend(db *badger.DB, log *slog.Logger, publicBase string) *BadgerBackend {
	return &BadgerBackend{db: db, log: log, publicBase: strings.TrimSuffix(publicBase, "/")}
}

// Upload overwrites any previous content stored under key.
func (b *BadgerBackend) Upload(_ context.Context, key string, body io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return errors.NewStorageFault("upload", key, err)
	}
	err = b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(objectKey(key), data)
	})
	if err != nil {
		return errors.NewStorageFault("upload", key, err)
	}
	return nil
}

// Download copies the whole value into a buffer first, so w never receives a truncated object.
func (b *BadgerBackend) Download(_ context.Context, key string, w io.Writer) error {
	var buf bytes.Buffer
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(objectKey(key))
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error {
			_, err := buf.Write(v)
			return err
		})
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			err = fmt.Errorf("%w: %w", errors.ErrObjectNotFound, err)
		}
		return errors.NewStorageFault("download", key, err)
	}
	if _, err := buf.WriteTo(w); err != nil {
		return errors.NewStorageFault("download", key, err)
	}
	return nil
}

// Delete of an absent key succeeds.
func (b *BadgerBackend) Delete(_ context.Context, key string) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(objectKey(key))
	})
	if err != nil {
		return errors.NewStorageFault("delete", key, err)
	}
	return nil
}

// DeleteFolder removes every object under prefix with one write batch.
// Objects written between the scan and the flush survive.
func (b *BadgerBackend) DeleteFolder(ctx context.Context, prefix string) error {
	objects, err := b.List(ctx, prefix)
	if err != nil {
		return err
	}
	if len(objects) == 0 {
		return nil
	}

	batch := b.db.NewWriteBatch()
	defer batch.Cancel()
	for _, object := range objects {
		if err := batch.Delete(objectKey(object.Key)); err != nil {
			return errors.NewStorageFault("delete-folder", prefix, err)
		}
	}
	if err := batch.Flush(); err != nil {
		return errors.NewStorageFault("delete-folder", prefix, err)
	}
	b.log.Debug("Folder deleted", "prefix", prefix, "objects", len(objects))
	return nil
}

func (b *BadgerBackend) List(_ context.Context, prefix string) ([]domain.ObjectInfo, error) {
	var objects []domain.ObjectInfo
	err := b.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()

		scan := objectKey(prefix)
		for it.Seek(scan); it.ValidForPrefix(scan); it.Next() {
			item := it.Item()
			objects = append(objects, domain.ObjectInfo{
				Key:  strings.TrimPrefix(string(item.Key()), objectPrefix),
				Size: item.ValueSize(),
			})
		}
		return nil
	})
	if err != nil {
		return nil, errors.NewStorageFault("list", prefix, err)
	}
	return objects, nil
}

func (b *BadgerBackend) PublicURL(key string) string {
	return b.publicBase + "/" + key
}

func objectKey(key string) []byte {
	return []byte(objectPrefix + key)
}
