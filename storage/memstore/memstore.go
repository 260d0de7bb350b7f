// SPDX-License-Identifier: EPL-2.0

// Package memstore keeps objects and records in process memory. It is used
// by tests and by deployments without persistent storage.
package memstore

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ik5/audconv/storage"
)

// Objects is an in-memory storage.ObjectStore.
type Objects struct {
	mu      sync.RWMutex
	objects map[string]storage.Object
	scheme  string
}

// NewObjects returns an empty store. Locators look like "mem://<key>".
func NewObjects() *Objects {
	return &Objects{objects: make(map[string]storage.Object), scheme: "mem://"}
}

func (o *Objects) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !storage.ValidKey(key) {
		return "", fmt.Errorf("%w: %q", storage.ErrInvalidKey, key)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.objects[key] = storage.Object{Data: slices.Clone(data), ContentType: contentType}

	return o.scheme + key, nil
}

func (o *Objects) Get(ctx context.Context, key string) (*storage.Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	o.mu.RLock()
	defer o.mu.RUnlock()
	obj, ok := o.objects[key]
	if !ok {
		return nil, fmt.Errorf("object %q: %w", key, storage.ErrNotFound)
	}

	return &storage.Object{Data: slices.Clone(obj.Data), ContentType: obj.ContentType}, nil
}

func (o *Objects) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.objects[key]; !ok {
		return fmt.Errorf("object %q: %w", key, storage.ErrNotFound)
	}
	delete(o.objects, key)

	return nil
}

// Len returns the number of stored objects.
func (o *Objects) Len() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.objects)
}

type entry struct {
	rec storage.Record
	seq uint64
}

// Records is an in-memory storage.MetadataStore.
type Records struct {
	mu      sync.RWMutex
	records map[string]entry
	seq     uint64
	now     func() time.Time
}

func NewRecords() *Records {
	return &Records{records: make(map[string]entry), now: time.Now}
}

func (r *Records) Insert(ctx context.Context, rec storage.Record) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = r.now().UTC()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[rec.ID]; ok {
		return "", fmt.Errorf("record %q already exists", rec.ID)
	}
	r.seq++
	r.records[rec.ID] = entry{rec: rec, seq: r.seq}

	return rec.ID, nil
}

func (r *Records) Get(ctx context.Context, id string) (*storage.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.records[id]
	if !ok {
		return nil, fmt.Errorf("record %q: %w", id, storage.ErrNotFound)
	}
	rec := e.rec
	return &rec, nil
}

func (r *Records) List(ctx context.Context) ([]storage.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	entries := make([]entry, 0, len(r.records))
	for _, e := range r.records {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	slices.SortFunc(entries, func(a, b entry) int {
		if c := b.rec.CreatedAt.Compare(a.rec.CreatedAt); c != 0 {
			return c
		}
		return int(b.seq) - int(a.seq)
	})

	out := make([]storage.Record, len(entries))
	for i, e := range entries {
		out[i] = e.rec
	}
	return out, nil
}

func (r *Records) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[id]; !ok {
		return fmt.Errorf("record %q: %w", id, storage.ErrNotFound)
	}
	delete(r.records, id)

	return nil
}
