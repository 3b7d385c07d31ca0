package persistence

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/bloomgo"
	"github.com/hupe1980/bloomgo/blobstore"
	"github.com/hupe1980/bloomgo/codec"
	"github.com/hupe1980/bloomgo/resource"
)

// ErrManagerClosed is returned by manager operations after Close.
var ErrManagerClosed = errors.New("persistence: manager is closed")

const (
	manifestKey     = "MANIFEST"
	manifestVersion = 1

	// DefaultKeepGenerations is how many snapshot generations Save
	// retains per filter before rotating old ones out.
	DefaultKeepGenerations = 3
)

// Generation records one stored snapshot of a filter.
type Generation struct {
	Number    uint64    `json:"number"`
	Key       string    `json:"key"`
	Bytes     int64     `json:"bytes"`
	Checksum  uint32    `json:"checksum"`
	Variant   string    `json:"variant"`
	CreatedAt time.Time `json:"created_at"`
}

type manifest struct {
	Version   int                     `json:"version"`
	UpdatedAt time.Time               `json:"updated_at"`
	Filters   map[string][]Generation `json:"filters"`
}

// ManagerOptions configures a Manager.
type ManagerOptions struct {
	// Codec encodes the manifest and snapshot info blocks.
	Codec codec.Codec

	// Compression applied to snapshot payloads.
	Compression Compression

	// KeepGenerations is the number of generations retained per
	// filter. Zero keeps every generation.
	KeepGenerations int

	// Controller bounds worker and IO usage of Save and Load. A nil
	// controller means unlimited.
	Controller *resource.Controller
}

// Manager keeps a named catalog of filter snapshots on a blob store.
// Each Save appends a new generation under "catalog/<name>/" and
// updates a manifest blob that records generation numbers, sizes and
// whole-blob checksums.
//
// Methods serialize on an internal mutex, so a Manager is safe for
// concurrent use within one process. The manifest blob itself is
// last-writer-wins; when several processes share a store, wrap it in a
// conditional-write store such as s3.CommitStore.
type Manager struct {
	store       blobstore.BlobStore
	codec       codec.Codec
	compression Compression
	keep        int
	rc          *resource.Controller

	mu       sync.Mutex
	manifest *manifest
	closed   bool
}

// NewManager opens the catalog stored on store, creating an empty one
// if no manifest exists yet. Close does not close the store; the
// caller owns it.
func NewManager(ctx context.Context, store blobstore.BlobStore, optFns ...func(o *ManagerOptions)) (*Manager, error) {
	if store == nil {
		return nil, fmt.Errorf("persistence: store is nil")
	}

	opts := ManagerOptions{
		Codec:           codec.Default,
		Compression:     CompressionZSTD,
		KeepGenerations: DefaultKeepGenerations,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Codec == nil {
		opts.Codec = codec.Default
	}
	if !opts.Compression.valid() {
		return nil, fmt.Errorf("persistence: unknown compression %d", opts.Compression)
	}
	if opts.KeepGenerations < 0 {
		return nil, fmt.Errorf("persistence: negative KeepGenerations %d", opts.KeepGenerations)
	}

	m := &Manager{
		store:       store,
		codec:       opts.Codec,
		compression: opts.Compression,
		keep:        opts.KeepGenerations,
		rc:          opts.Controller,
	}

	data, err := blobstore.ReadAll(ctx, store, manifestKey)
	switch {
	case errors.Is(err, blobstore.ErrNotFound):
		m.manifest = &manifest{Version: manifestVersion, Filters: map[string][]Generation{}}
	case err != nil:
		return nil, fmt.Errorf("persistence: load manifest: %w", err)
	default:
		var mf manifest
		if err := m.codec.Unmarshal(data, &mf); err != nil {
			return nil, fmt.Errorf("persistence: decode manifest: %w", err)
		}
		if mf.Version > manifestVersion {
			return nil, fmt.Errorf("persistence: unsupported manifest version %d", mf.Version)
		}
		if mf.Filters == nil {
			mf.Filters = map[string][]Generation{}
		}
		m.manifest = &mf
	}

	return m, nil
}

// Save writes f as the next generation of the named catalog entry and
// rotates out generations beyond KeepGenerations.
func (m *Manager) Save(ctx context.Context, name string, f bloomgo.Filter) (*SnapshotInfo, error) {
	if err := validateFilterName(name); err != nil {
		return nil, err
	}
	if f == nil {
		return nil, fmt.Errorf("persistence: filter is nil")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrManagerClosed
	}

	if err := m.rc.AcquireWorker(ctx); err != nil {
		return nil, err
	}
	defer m.rc.ReleaseWorker()

	var buf bytes.Buffer
	if err := WriteSnapshot(&buf, f, m.compression, m.codec); err != nil {
		return nil, err
	}

	if err := m.rc.AcquireIO(ctx, buf.Len()); err != nil {
		return nil, err
	}

	gen := Generation{
		Number:   m.nextGenerationLocked(name),
		Bytes:    int64(buf.Len()),
		Checksum: ComputeChecksum(buf.Bytes()),
		Variant:  f.Variant().String(),
	}
	gen.Key = generationKey(name, gen.Number)

	if err := m.store.Put(ctx, gen.Key, buf.Bytes()); err != nil {
		return nil, fmt.Errorf("persistence: save snapshot %q: %w", name, err)
	}

	info, err := ReadSnapshotInfo(bytes.NewReader(buf.Bytes()))
	if err != nil {
		return nil, err
	}
	gen.CreatedAt = info.CreatedAt

	gens := append(m.manifest.Filters[name], gen)

	var evicted []Generation
	if m.keep > 0 && len(gens) > m.keep {
		cut := len(gens) - m.keep
		evicted = append(evicted, gens[:cut]...)
		gens = append([]Generation(nil), gens[cut:]...)
	}
	m.manifest.Filters[name] = gens

	if err := m.writeManifestLocked(ctx); err != nil {
		return nil, err
	}

	// Rotated-out blobs are removed only after the manifest no longer
	// references them. Deletion failures leave orphans, not dangling
	// manifest entries.
	for _, g := range evicted {
		_ = m.store.Delete(ctx, g.Key)
	}

	return info, nil
}

// Load decodes the latest generation of the named filter.
func (m *Manager) Load(ctx context.Context, name string, optFns ...bloomgo.Option) (bloomgo.Filter, *SnapshotInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, nil, ErrManagerClosed
	}

	gen, err := m.latestLocked(name)
	if err != nil {
		return nil, nil, err
	}
	return m.loadGenerationLocked(ctx, gen, optFns...)
}

// LoadGeneration decodes a specific generation of the named filter.
func (m *Manager) LoadGeneration(ctx context.Context, name string, number uint64, optFns ...bloomgo.Option) (bloomgo.Filter, *SnapshotInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, nil, ErrManagerClosed
	}

	for _, g := range m.manifest.Filters[name] {
		if g.Number == number {
			return m.loadGenerationLocked(ctx, g, optFns...)
		}
	}
	return nil, nil, fmt.Errorf("persistence: filter %q generation %d: %w", name, number, blobstore.ErrNotFound)
}

func (m *Manager) loadGenerationLocked(ctx context.Context, gen Generation, optFns ...bloomgo.Option) (bloomgo.Filter, *SnapshotInfo, error) {
	if err := m.rc.AcquireIO(ctx, int(gen.Bytes)); err != nil {
		return nil, nil, err
	}

	data, err := blobstore.ReadAll(ctx, m.store, gen.Key)
	if err != nil {
		return nil, nil, fmt.Errorf("persistence: load snapshot %q: %w", gen.Key, err)
	}
	if actual := ComputeChecksum(data); actual != gen.Checksum {
		return nil, nil, fmt.Errorf("persistence: snapshot %q: %w", gen.Key, &ChecksumMismatchError{Expected: gen.Checksum, Actual: actual})
	}

	return ReadSnapshot(bytes.NewReader(data), optFns...)
}

// Info reads the info block of the latest generation without decoding
// the filter payload. On range-capable stores this fetches only the
// container directory and info section.
func (m *Manager) Info(ctx context.Context, name string) (*SnapshotInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrManagerClosed
	}

	gen, err := m.latestLocked(name)
	if err != nil {
		return nil, err
	}

	blob, err := m.store.Open(ctx, gen.Key)
	if err != nil {
		return nil, fmt.Errorf("persistence: open snapshot %q: %w", gen.Key, err)
	}
	defer blob.Close()

	return ReadSnapshotInfo(io.NewSectionReader(blob, 0, blob.Size()))
}

// Generations lists the retained generations of the named filter,
// oldest first.
func (m *Manager) Generations(name string) ([]Generation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrManagerClosed
	}

	gens := m.manifest.Filters[name]
	if len(gens) == 0 {
		return nil, fmt.Errorf("persistence: filter %q: %w", name, blobstore.ErrNotFound)
	}
	return append([]Generation(nil), gens...), nil
}

// Names lists the filters in the catalog in lexical order.
func (m *Manager) Names() ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrManagerClosed
	}

	names := make([]string, 0, len(m.manifest.Filters))
	for name := range m.manifest.Filters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Delete removes every generation of the named filter and drops it
// from the manifest. Deleting an absent name is a no-op.
func (m *Manager) Delete(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrManagerClosed
	}

	gens := m.manifest.Filters[name]
	if len(gens) == 0 {
		return nil
	}
	for _, g := range gens {
		if err := m.store.Delete(ctx, g.Key); err != nil {
			return fmt.Errorf("persistence: delete snapshot %q: %w", g.Key, err)
		}
	}
	delete(m.manifest.Filters, name)

	return m.writeManifestLocked(ctx)
}

// Close marks the manager closed. The underlying store stays open.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	return nil
}

func (m *Manager) latestLocked(name string) (Generation, error) {
	gens := m.manifest.Filters[name]
	if len(gens) == 0 {
		return Generation{}, fmt.Errorf("persistence: filter %q: %w", name, blobstore.ErrNotFound)
	}
	return gens[len(gens)-1], nil
}

func (m *Manager) nextGenerationLocked(name string) uint64 {
	gens := m.manifest.Filters[name]
	if len(gens) == 0 {
		return 1
	}
	return gens[len(gens)-1].Number + 1
}

func (m *Manager) writeManifestLocked(ctx context.Context) error {
	m.manifest.Version = manifestVersion
	m.manifest.UpdatedAt = time.Now().UTC()

	data, err := m.codec.Marshal(m.manifest)
	if err != nil {
		return fmt.Errorf("persistence: encode manifest: %w", err)
	}
	if err := m.store.Put(ctx, manifestKey, data); err != nil {
		return fmt.Errorf("persistence: write manifest: %w", err)
	}
	return nil
}

func generationKey(name string, number uint64) string {
	return fmt.Sprintf("catalog/%s/%08d.snap", name, number)
}

func validateFilterName(name string) error {
	if name == "" || name == "." || name == ".." || strings.Contains(name, "/") {
		return fmt.Errorf("persistence: invalid filter name %q", name)
	}
	return nil
}
