// Package backup writes full-state snapshots, propagation records included,
// to a blob store as zstd-compressed msgpack documents and restores them.
package backup

import (
	"context"
	"errors"
	"flightcore/internal/blob"
	"flightcore/internal/core"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"
)

// FormatVersion is the document version written by Encode.
const FormatVersion = 1

const (
	// DefaultPrefix is the blob key prefix of backup documents.
	DefaultPrefix = "backups/"
	suffix        = ".msgpack.zst"
	keyLayout     = "20060102T150405Z"
)

// ErrUnsupportedVersion is returned for documents newer than FormatVersion.
var ErrUnsupportedVersion = errors.New("backup: unsupported format version")

// Document is the decoded form of a backup.
type Document struct {
	Version   int           `json:"version"`
	CreatedAt time.Time     `json:"created_at"`
	State     core.Snapshot `json:"state"`
}

// Manifest summarizes a backup.
type Manifest struct {
	Key          string    `json:"key"`
	Version      int       `json:"version"`
	CreatedAt    time.Time `json:"created_at"`
	Aircraft     int       `json:"aircraft"`
	Flights      int       `json:"flights"`
	Propagations int       `json:"propagations"`
}

func manifestOf(key string, doc Document) Manifest {
	return Manifest{
		Key:          key,
		Version:      doc.Version,
		CreatedAt:    doc.CreatedAt,
		Aircraft:     len(doc.State.Aircraft),
		Flights:      len(doc.State.Flights),
		Propagations: len(doc.State.Propagations),
	}
}

// Encode writes doc to w as zstd-compressed msgpack.
func Encode(w io.Writer, doc Document) error {
	zw, err := zstd.NewWriter(w)
	if err != nil {
		return err
	}
	enc := msgpack.NewEncoder(zw)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(doc); err != nil {
		_ = zw.Close()
		return fmt.Errorf("encode backup: %w", err)
	}
	return zw.Close()
}

// Decode reads a document written by Encode.
func Decode(r io.Reader) (Document, error) {
	zr, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(0))
	if err != nil {
		return Document{}, err
	}
	defer zr.Close()
	dec := msgpack.NewDecoder(zr)
	dec.SetCustomStructTag("json")
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return Document{}, fmt.Errorf("decode backup: %w", err)
	}
	if doc.Version > FormatVersion {
		return Document{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, doc.Version)
	}
	doc.CreatedAt = doc.CreatedAt.UTC()
	return doc, nil
}

// Manager creates, lists and restores backups in a blob store.
type Manager struct {
	store  blob.Store
	prefix string
	now    func() time.Time
	logger core.Logger
}

// Option customises a Manager.
type Option func(*Manager)

// WithPrefix sets the key prefix. Empty keeps DefaultPrefix.
func WithPrefix(prefix string) Option {
	return func(m *Manager) {
		if prefix != "" {
			m.prefix = prefix
		}
	}
}

// WithClock sets the time source used to stamp and name backups.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger core.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewManager returns a Manager over store.
func NewManager(store blob.Store, opts ...Option) *Manager {
	m := &Manager{
		store:  store,
		prefix: DefaultPrefix,
		now:    func() time.Time { return time.Now().UTC() },
		logger: core.NewNoopLogger(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create snapshots state into a new blob named after the current time. A
// second backup within the same second fails with blob.ErrExists.
func (m *Manager) Create(ctx context.Context, state core.StateStore) (Manifest, error) {
	doc := Document{Version: FormatVersion, CreatedAt: m.now().UTC(), State: state.ExportState()}
	key := m.prefix + doc.CreatedAt.Format(keyLayout) + suffix
	manifest := manifestOf(key, doc)

	pr, pw := io.Pipe()
	go func() {
		pw.CloseWithError(Encode(pw, doc))
	}()
	_, err := m.store.Put(ctx, key, pr, blob.PutOptions{
		ContentType: "application/zstd",
		Metadata: map[string]string{
			"version":      strconv.Itoa(FormatVersion),
			"aircraft":     strconv.Itoa(manifest.Aircraft),
			"flights":      strconv.Itoa(manifest.Flights),
			"propagations": strconv.Itoa(manifest.Propagations),
		},
	})
	_ = pr.Close()
	if err != nil {
		return Manifest{}, fmt.Errorf("write backup %s: %w", key, err)
	}
	m.logger.Info("backup created", "key", key, "flights", manifest.Flights, "propagations", manifest.Propagations)
	return manifest, nil
}

// List returns the stored backups, oldest first.
func (m *Manager) List(ctx context.Context) ([]blob.Info, error) {
	infos, err := m.store.List(ctx, m.prefix)
	if err != nil {
		return nil, err
	}
	out := infos[:0]
	for _, info := range infos {
		if strings.HasSuffix(info.Key, suffix) {
			out = append(out, info)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// Latest returns the key of the newest backup.
func (m *Manager) Latest(ctx context.Context) (string, error) {
	infos, err := m.List(ctx)
	if err != nil {
		return "", err
	}
	if len(infos) == 0 {
		return "", fmt.Errorf("%w: no backups under %s", blob.ErrNotFound, m.prefix)
	}
	return infos[len(infos)-1].Key, nil
}

// Restore replaces the contents of state with the backup at key. An empty
// key restores the latest backup.
func (m *Manager) Restore(ctx context.Context, state core.StateStore, key string) (Manifest, error) {
	if key == "" {
		latest, err := m.Latest(ctx)
		if err != nil {
			return Manifest{}, err
		}
		key = latest
	}
	_, rc, err := m.store.Get(ctx, key)
	if err != nil {
		return Manifest{}, fmt.Errorf("read backup %s: %w", key, err)
	}
	defer rc.Close()
	doc, err := Decode(rc)
	if err != nil {
		return Manifest{}, err
	}
	if err := state.Restore(ctx, doc.State); err != nil {
		return Manifest{}, fmt.Errorf("restore %s: %w", key, err)
	}
	manifest := manifestOf(key, doc)
	m.logger.Info("backup restored", "key", key, "flights", manifest.Flights, "propagations", manifest.Propagations)
	return manifest, nil
}
