package docstore

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aretw0/synote/pkg/feed"
)

// op is one document mutation inside an atomic write.
type op struct {
	collection string
	id         string
	data       map[string]any
	merge      bool
	create     bool
	delete     bool
}

// engine is the storage backend behind a DB.
type engine interface {
	name() string
	// list returns every document of a collection in unspecified order.
	list(collection string) ([]Document, error)
	get(collection, id string) (Document, bool, error)
	// apply runs ops as a single all-or-nothing write.
	apply(ops []op) error
	close() error
}

type options struct {
	logger *slog.Logger
	clock  func() time.Time
}

// Option configures a DB.
type Option func(*options)

// WithLogger sets the logger used for delivery failures.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithClock sets the clock used to resolve ServerTimestamp.
func WithClock(clock func() time.Time) Option {
	return func(o *options) { o.clock = clock }
}

type docState struct {
	doc    Document
	exists bool
}

type subscription struct {
	collection string
	query      Query
	docID      string // empty for collection queries
	snapshots  *feed.Mailbox[[]Document]
	docs       *feed.Mailbox[docState]
}

func (s *subscription) stop() {
	if s.snapshots != nil {
		s.snapshots.Stop()
	}
	if s.docs != nil {
		s.docs.Stop()
	}
}

// DB implements Store on top of an engine and fans writes out to subscribers.
type DB struct {
	engine engine
	opts   options

	// mu serializes writes with snapshot publication, so subscribers observe
	// snapshots in write order.
	mu      sync.Mutex
	subs    map[uint64]*subscription
	nextSub uint64
	writes  int
	closed  bool
}

func newDB(e engine, opts ...Option) *DB {
	o := options{clock: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &DB{engine: e, opts: o, subs: make(map[uint64]*subscription)}
}

func (db *DB) onPanic(err error) {
	db.opts.logger.Error("docstore subscriber failed", "error", err)
}

func (db *DB) query(q Query) ([]Document, error) {
	docs, err := db.engine.list(q.Collection)
	if err != nil {
		return nil, err
	}
	sortDocuments(docs, q)
	return docs, nil
}

// register must be called with db.mu held.
func (db *DB) register(ctx context.Context, sub *subscription) func() {
	db.nextSub++
	id := db.nextSub
	db.subs[id] = sub

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			sub.stop()
			db.mu.Lock()
			delete(db.subs, id)
			db.mu.Unlock()
		})
	}
	stop := context.AfterFunc(ctx, cancel)
	return func() {
		stop()
		cancel()
	}
}

// Subscribe implements Store.
func (db *DB) Subscribe(ctx context.Context, q Query, fn SnapshotFunc) (func(), error) {
	if err := validCollection(q.Collection); err != nil {
		return nil, err
	}

	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return nil, ErrClosed
	}

	docs, err := db.query(q)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", q.Collection, err)
	}
	sub := &subscription{
		collection: q.Collection,
		query:      q,
		snapshots:  feed.Start(ctx, func(d []Document) { fn(d) }, db.onPanic),
	}
	sub.snapshots.Put(docs)
	return db.register(ctx, sub), nil
}

// SubscribeDocument implements Store.
func (db *DB) SubscribeDocument(ctx context.Context, path string, fn DocumentFunc) (func(), error) {
	collection, id, err := splitDocument(path)
	if err != nil {
		return nil, err
	}

	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return nil, ErrClosed
	}

	doc, ok, err := db.engine.get(collection, id)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	sub := &subscription{
		collection: collection,
		docID:      id,
		docs:       feed.Start(ctx, func(s docState) { fn(s.doc, s.exists) }, db.onPanic),
	}
	sub.docs.Put(docState{doc: doc, exists: ok})
	return db.register(ctx, sub), nil
}

// write applies ops and publishes to every affected subscription.
func (db *DB) write(ops []op) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return ErrClosed
	}
	if err := db.engine.apply(ops); err != nil {
		return err
	}
	db.writes++

	touched := make(map[string]map[string]bool)
	for _, o := range ops {
		if touched[o.collection] == nil {
			touched[o.collection] = make(map[string]bool)
		}
		touched[o.collection][o.id] = true
	}

	for _, sub := range db.subs {
		ids, ok := touched[sub.collection]
		if !ok {
			continue
		}
		if sub.docID == "" {
			docs, err := db.query(sub.query)
			if err != nil {
				db.opts.logger.Error("docstore snapshot failed", "collection", sub.collection, "error", err)
				continue
			}
			sub.snapshots.Put(docs)
			continue
		}
		if !ids[sub.docID] {
			continue
		}
		doc, exists, err := db.engine.get(sub.collection, sub.docID)
		if err != nil {
			db.opts.logger.Error("docstore read failed", "id", sub.docID, "error", err)
			continue
		}
		sub.docs.Put(docState{doc: doc, exists: exists})
	}
	return nil
}

// Add implements Store. The new document gets a random id.
func (db *DB) Add(ctx context.Context, collection string, data map[string]any) (string, error) {
	if err := validCollection(collection); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	id := uuid.NewString()
	o := op{collection: collection, id: id, data: resolve(data, db.opts.clock().UTC()), create: true}
	if err := db.write([]op{o}); err != nil {
		return "", err
	}
	return id, nil
}

// Get implements Store.
func (db *DB) Get(ctx context.Context, path string) (Document, bool, error) {
	collection, id, err := splitDocument(path)
	if err != nil {
		return Document{}, false, err
	}
	if err := ctx.Err(); err != nil {
		return Document{}, false, err
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return Document{}, false, ErrClosed
	}
	return db.engine.get(collection, id)
}

// Set implements Store. With merge, only the given fields change and a missing
// document is created.
func (db *DB) Set(ctx context.Context, path string, data map[string]any, merge bool) error {
	collection, id, err := splitDocument(path)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return db.write([]op{{collection: collection, id: id, data: resolve(data, db.opts.clock().UTC()), merge: merge}})
}

// Delete implements Store. Deleting a missing document is not an error.
func (db *DB) Delete(ctx context.Context, path string) error {
	return db.BatchDelete(ctx, []string{path})
}

// BatchDelete implements Store. Either every document is removed or none is.
func (db *DB) BatchDelete(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	ops := make([]op, 0, len(paths))
	for _, p := range paths {
		collection, id, err := splitDocument(p)
		if err != nil {
			return err
		}
		ops = append(ops, op{collection: collection, id: id, delete: true})
	}
	return db.write(ops)
}

// Close ends every subscription and releases the backend.
func (db *DB) Close() error {
	db.mu.Lock()
	if db.closed {
		db.mu.Unlock()
		return nil
	}
	db.closed = true
	subs := db.subs
	db.subs = make(map[uint64]*subscription)
	db.mu.Unlock()

	for _, s := range subs {
		s.stop()
	}
	return db.engine.close()
}

// mergeData applies o to the current data of a document.
func mergeData(current map[string]any, exists bool, o op) (map[string]any, error) {
	if o.create && exists {
		return nil, fmt.Errorf("%w: %s/%s", ErrExists, o.collection, o.id)
	}
	if !o.merge || !exists {
		return maps.Clone(o.data), nil
	}
	out := maps.Clone(current)
	if out == nil {
		out = make(map[string]any, len(o.data))
	}
	maps.Copy(out, o.data)
	return out, nil
}

var _ Store = (*DB)(nil)
