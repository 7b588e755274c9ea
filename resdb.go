package resdb

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/resdb/cache"
	"github.com/hupe1980/resdb/catcache"
	"github.com/hupe1980/resdb/dict"
	"github.com/hupe1980/resdb/entry"
	"github.com/hupe1980/resdb/frs"
	"github.com/hupe1980/resdb/internal/vindex"
	"github.com/hupe1980/resdb/pool"
	"github.com/hupe1980/resdb/stage"
)

// maxStageWorkers bounds the parallel staging fan-out of AddFiles. The
// resource controller's background budget applies on top when one is
// configured.
const maxStageWorkers = 8

// Extractor is an in-memory index over the result files of one or more
// solver runs. Files contribute object-group subtrees to a shared forest;
// payloads stay on disk until materialized and can be released again
// without invalidating the index.
//
// All public operations serialize on one coarse mutex: concurrent use is
// safe but not parallel, and a Search observes exactly the loads completed
// before it.
type Extractor struct {
	mu     sync.Mutex
	closed bool

	opts options

	roots     map[dict.Word]*entry.Entry
	rootOrder []dict.Word

	files []*loadedFile

	// leaves is indexed by ordinal and never shrinks; removed leaves
	// leave nil holes so surviving ordinals stay stable.
	leaves []*entry.Entry
	index  *vindex.Index

	pool *pool.Pool

	stageMu sync.Mutex
	stager  *stage.Stager

	catalogs *catcache.Cache

	logger  *Logger
	metrics MetricsCollector
}

// loadedFile ties one loaded result file to the object-group subtrees it
// contributed to the forest.
type loadedFile struct {
	ref    string // reference as given to AddFile
	staged string // local path actually opened
	file   *frs.File
	roots  []*entry.Entry
}

// AddResult reports the outcome of loading one file reference.
type AddResult struct {
	Ref     string
	Loaded  bool
	Objects int
	Err     error
}

// Stats is a point-in-time snapshot of extractor state.
type Stats struct {
	Files       int
	ObjectTypes int
	Leaves      int
	Pool        pool.Stats
}

// New creates an empty extractor. It grows via AddFile and must be
// Close()'d to release staged temporaries and the catalog cache.
func New(optFns ...Option) (*Extractor, error) {
	opts := applyOptions(optFns)

	blockCache := opts.blockCache
	if blockCache == nil && opts.cacheCapacity > 0 {
		blockCache = cache.NewLRU(opts.cacheCapacity, opts.resources)
	}

	ex := &Extractor{
		opts:    opts,
		roots:   make(map[dict.Word]*entry.Entry),
		index:   vindex.New(),
		pool:    pool.New(blockCache, opts.resources),
		logger:  opts.logger,
		metrics: opts.metricsCollector,
	}

	if opts.catalogCachePath != "" {
		cc, err := catcache.Open(opts.catalogCachePath, opts.codec)
		if err != nil {
			return nil, err
		}
		ex.catalogs = cc
	}
	return ex, nil
}

// AddFile loads one result file into the forest. The reference may be a
// local path, a compressed archive, or a blob-store key; remote and
// compressed files are staged to a local plain file first.
//
// A file that fails validation contributes nothing: the forest is exactly
// as it was, the error says why. The returned bool reports whether the
// file contributed at least one object group.
func (ex *Extractor) AddFile(ctx context.Context, ref string) (bool, error) {
	start := time.Now()

	objects := 0
	local, err := ex.resolve(ctx, ref)
	if err != nil {
		err = translateError(err)
	} else {
		objects, err = ex.addStaged(ref, local)
	}

	ex.metrics.RecordAddFile(objects, time.Since(start), err)
	ex.logger.LogAddFile(ctx, ref, objects, err)
	if err != nil {
		return false, err
	}
	return objects > 0, nil
}

// AddFiles loads many files: staging runs in parallel, bounded by
// maxStageWorkers and the background worker budget, while parsing and
// attaching stay sequential in call order so the forest order is
// deterministic. Per-file failures are collected, not fatal; loading
// continues with the remaining files.
func (ex *Extractor) AddFiles(ctx context.Context, refs ...string) []AddResult {
	results := make([]AddResult, len(refs))
	if len(refs) == 0 {
		return results
	}

	locals := make([]string, len(refs))
	stageErrs := make([]error, len(refs))

	var g errgroup.Group
	g.SetLimit(min(len(refs), maxStageWorkers))
	for i, ref := range refs {
		g.Go(func() error {
			if err := ex.opts.resources.AcquireBackground(ctx); err != nil {
				stageErrs[i] = err
				return nil
			}
			defer ex.opts.resources.ReleaseBackground()
			locals[i], stageErrs[i] = ex.resolve(ctx, ref)
			return nil
		})
	}
	// Errors stay per-file; a bad file never cancels its siblings.
	_ = g.Wait()

	for i, ref := range refs {
		start := time.Now()
		res := AddResult{Ref: ref}
		if err := stageErrs[i]; err != nil {
			res.Err = translateError(err)
		} else if n, err := ex.addStaged(ref, locals[i]); err != nil {
			res.Err = err
		} else {
			res.Objects = n
			res.Loaded = n > 0
		}
		ex.metrics.RecordAddFile(res.Objects, time.Since(start), res.Err)
		ex.logger.LogAddFile(ctx, ref, res.Objects, res.Err)
		results[i] = res
	}
	return results
}

// AddRun resolves a solver run id via the configured registry and loads
// every result file the run produced from the blob store.
func (ex *Extractor) AddRun(ctx context.Context, runID string) ([]AddResult, error) {
	if ex.opts.registry == nil {
		return nil, fmt.Errorf("resdb: AddRun %q: no registry configured", runID)
	}
	keys, err := ex.opts.registry.Resolve(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("resdb: resolve run %q: %w", runID, err)
	}
	refs := make([]string, len(keys))
	for i, k := range keys {
		refs[i] = stage.StorePrefix + k
	}
	return ex.AddFiles(ctx, refs...), nil
}

// addStaged parses and attaches one already-staged file.
func (ex *Extractor) addStaged(ref, local string) (int, error) {
	f, err := ex.openCatalog(local)
	if err != nil {
		return 0, translateError(err)
	}

	ex.mu.Lock()
	defer ex.mu.Unlock()
	if ex.closed {
		return 0, ErrClosed
	}
	return ex.attachLocked(ref, local, f)
}

// openCatalog parses the header and catalog of a local file, serving from
// the persistent catalog cache when the file's size and mtime still match.
func (ex *Extractor) openCatalog(path string) (*frs.File, error) {
	if ex.catalogs == nil {
		return frs.Open(path)
	}

	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if f, ok := ex.catalogs.Get(path, fi.Size(), fi.ModTime()); ok {
		return f, nil
	}

	f, err := frs.Open(path)
	if err != nil {
		return nil, err
	}
	// Best effort: a failed store costs a re-parse next time, nothing else.
	if err := ex.catalogs.Put(f, fi.ModTime()); err != nil {
		ex.logger.Warn("catalog cache store failed", "file", path, "error", err)
	}
	return f, nil
}

// attachLocked builds the file's object-group subtrees detached, then
// attaches them under their SOG roots and registers every variable
// reference in the search index. Ownership is exclusive, so a mid-build
// failure leaves the forest untouched.
func (ex *Extractor) attachLocked(ref, local string, f *frs.File) (int, error) {
	built := make([]*entry.Entry, 0, len(f.Objects))
	words := make([]dict.Word, 0, len(f.Objects))
	for i := range f.Objects {
		og, err := buildObject(&f.Objects[i])
		if err != nil {
			return 0, err
		}
		og.SetFile(local)
		built = append(built, og)
		words = append(words, og.Name())
	}

	var createdRoots []dict.Word
	for i, og := range built {
		w := words[i]
		sog, ok := ex.roots[w]
		if !ok {
			sog = entry.NewSuperObjectGroup(w)
			ex.roots[w] = sog
			ex.rootOrder = append(ex.rootOrder, w)
			createdRoots = append(createdRoots, w)
		}
		if err := sog.AddChild(og); err != nil {
			// Unwind everything this call attached or created.
			for _, prev := range built[:i] {
				prev.Owner().RemoveChild(prev)
			}
			for _, cw := range createdRoots {
				ex.dropRootLocked(cw)
			}
			return 0, err
		}
	}

	for _, og := range built {
		og.Walk(func(e *entry.Entry) bool {
			if e.Kind() == entry.KindVariableRef {
				ord := uint32(len(ex.leaves))
				e.SetOrdinal(ord)
				ex.leaves = append(ex.leaves, e)
				ex.index.Add(ord, entry.Derive(e))
			}
			return true
		})
	}

	ex.files = append(ex.files, &loadedFile{
		ref:    ref,
		staged: local,
		file:   f,
		roots:  built,
	})
	return len(built), nil
}

// buildObject turns one catalog object into a detached OG subtree.
func buildObject(obj *frs.ObjectDesc) (*entry.Entry, error) {
	og := entry.NewObjectGroup(dict.Intern(obj.TypeName), obj.BaseID, obj.UserID)
	if err := buildChildren(og, obj.Children); err != nil {
		return nil, err
	}
	return og, nil
}

func buildChildren(parent *entry.Entry, nodes []frs.Node) error {
	for i := range nodes {
		n := &nodes[i]
		var child *entry.Entry
		switch n.Kind {
		case frs.NodeItemGroup:
			child = entry.NewItemGroup(dict.Intern(n.Name), n.Payload)
			if err := buildChildren(child, n.Children); err != nil {
				return err
			}
		case frs.NodeVariableRef:
			child = entry.NewVariableRef(dict.Intern(n.Name), dict.Intern(n.VarType), n.Payload)
		default:
			return fmt.Errorf("resdb: unknown catalog node kind %d", n.Kind)
		}
		if err := parent.AddChild(child); err != nil {
			return err
		}
	}
	return nil
}

// Materialize returns the payload of e in canonical little-endian cell
// order, reading and byte-swapping it on first use. Repeated calls return
// the same shared buffer until the block is released; callers must treat
// it as read-only. Entries without a payload yield ErrNoPayload.
func (ex *Extractor) Materialize(ctx context.Context, e *entry.Entry) ([]byte, error) {
	start := time.Now()
	buf, err := ex.materialize(ctx, e)
	ex.metrics.RecordMaterialize(len(buf), time.Since(start), err)
	if e != nil {
		ex.logger.LogMaterialize(ctx, e.Payload().Path, len(buf), err)
	}
	return buf, err
}

func (ex *Extractor) materialize(ctx context.Context, e *entry.Entry) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ex.mu.Lock()
	defer ex.mu.Unlock()
	if ex.closed {
		return nil, ErrClosed
	}
	if e == nil || !e.HasPayload() {
		return nil, ErrNoPayload
	}

	buf, err := ex.pool.Materialize(e.Payload())
	if err != nil {
		return nil, translateError(err)
	}
	return buf, nil
}

// ReleaseMemoryBlocks drops every materialized payload block and clears
// the block cache. All metadata and payload offsets remain valid; the
// next Materialize simply reads from disk again. Returns the number of
// blocks released.
func (ex *Extractor) ReleaseMemoryBlocks() int {
	ex.mu.Lock()
	defer ex.mu.Unlock()

	n := ex.pool.ReleaseAll()
	ex.metrics.RecordRelease(n)
	ex.logger.LogRelease(context.Background(), n)
	return n
}

// RemoveFiles detaches every object-group subtree contributed by the
// named files (matched by reference or staged path), prunes SOG roots
// that become empty, and drops their payload blocks and index postings.
// Returns the number of files removed.
func (ex *Extractor) RemoveFiles(paths ...string) int {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	if ex.closed {
		return 0
	}

	removed := 0
	kept := ex.files[:0]
	for _, lf := range ex.files {
		if matchesFile(lf, paths) {
			ex.detachLocked(lf)
			removed++
		} else {
			kept = append(kept, lf)
		}
	}
	clear(ex.files[len(kept):])
	ex.files = kept

	if removed > 0 {
		ex.logger.LogRemoveFiles(context.Background(), removed)
	}
	return removed
}

func matchesFile(lf *loadedFile, paths []string) bool {
	for _, p := range paths {
		if lf.ref == p || lf.staged == p {
			return true
		}
	}
	return false
}

// detachLocked unregisters and detaches one file's subtrees. Index
// removal runs before detach because descriptor derivation needs the
// owner chain intact.
func (ex *Extractor) detachLocked(lf *loadedFile) {
	for _, og := range lf.roots {
		og.Walk(func(e *entry.Entry) bool {
			if e.Kind() == entry.KindVariableRef {
				ex.index.Remove(e.Ordinal(), entry.Derive(e))
				ex.leaves[e.Ordinal()] = nil
			}
			return true
		})
	}
	for _, og := range lf.roots {
		sog := og.Owner()
		if sog == nil {
			continue
		}
		sog.RemoveChild(og)
		if len(sog.Children()) == 0 {
			ex.dropRootLocked(sog.Name())
		}
	}
	ex.pool.ReleasePath(lf.staged)
}

func (ex *Extractor) dropRootLocked(w dict.Word) {
	delete(ex.roots, w)
	for i, rw := range ex.rootOrder {
		if rw == w {
			ex.rootOrder = append(ex.rootOrder[:i], ex.rootOrder[i+1:]...)
			break
		}
	}
}

// Files returns a summary of every loaded file, in load order.
func (ex *Extractor) Files() []frs.FileInfo {
	ex.mu.Lock()
	defer ex.mu.Unlock()

	infos := make([]frs.FileInfo, 0, len(ex.files))
	for _, lf := range ex.files {
		infos = append(infos, lf.file.Info())
	}
	return infos
}

// Stats returns a snapshot of forest and pool state.
func (ex *Extractor) Stats() Stats {
	ex.mu.Lock()
	defer ex.mu.Unlock()

	return Stats{
		Files:       len(ex.files),
		ObjectTypes: len(ex.roots),
		Leaves:      ex.index.Len(),
		Pool:        ex.pool.Stats(),
	}
}

// Close releases the forest, all materialized blocks, staged temporaries,
// and the catalog cache. The extractor is unusable afterwards; Close is
// idempotent.
func (ex *Extractor) Close() error {
	ex.mu.Lock()
	if ex.closed {
		ex.mu.Unlock()
		return nil
	}
	ex.closed = true

	ex.pool.ReleaseAll()
	ex.roots = nil
	ex.rootOrder = nil
	ex.files = nil
	ex.leaves = nil
	ex.index = vindex.New()
	ex.mu.Unlock()

	ex.stageMu.Lock()
	stager := ex.stager
	ex.stager = nil
	ex.stageMu.Unlock()

	var errs []error
	if stager != nil {
		if err := stager.Cleanup(); err != nil {
			errs = append(errs, err)
		}
	}
	if ex.catalogs != nil {
		if err := ex.catalogs.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// resolve turns a file reference into a local plain path, staging store
// keys and compressed archives. With no store configured, plain local
// paths pass through without touching the stager.
func (ex *Extractor) resolve(ctx context.Context, ref string) (string, error) {
	if !ex.needsStaging(ref) {
		return ref, nil
	}
	s, err := ex.stagerFor()
	if err != nil {
		return "", err
	}
	return s.Stage(ctx, ref)
}

func (ex *Extractor) needsStaging(ref string) bool {
	return strings.HasPrefix(ref, stage.StorePrefix) ||
		ex.opts.store != nil ||
		stage.CompressionExt(ref) != ""
}

// stagerFor creates the stager on first use so extractors that only read
// plain local files never own a stage directory.
func (ex *Extractor) stagerFor() (*stage.Stager, error) {
	ex.stageMu.Lock()
	defer ex.stageMu.Unlock()

	if ex.stager != nil {
		return ex.stager, nil
	}
	s, err := stage.New(stage.Config{
		Dir:       ex.opts.stageDir,
		Store:     ex.opts.store,
		Resources: ex.opts.resources,
	})
	if err != nil {
		return nil, err
	}
	ex.stager = s
	return s, nil
}
