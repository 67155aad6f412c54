package syncdb

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/userdb/internal/dbx"
	"github.com/dmitrijs2005/userdb/internal/provider"
	"github.com/dmitrijs2005/userdb/internal/registry"
	"github.com/stretchr/testify/require"
)

// fakeProvider keeps documents in memory. Every committed write advances a
// millisecond clock used as the document's timestamp unless a script of
// timestamps is queued.
type fakeProvider struct {
	mu sync.Mutex

	docs  map[provider.Locator][]byte
	times map[provider.Locator]provider.Timestamp
	clock int64

	script []provider.Timestamp
	drift  bool

	probeErr  error
	readErr   error
	writeErr  error
	commitErr error
	noRead    bool
	noWrite   bool

	probes, reads, writes, aborts int
	acquired, released          []provider.Locator
	releaseErr                  error
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		docs:  make(map[provider.Locator][]byte),
		times: make(map[provider.Locator]provider.Timestamp),
		clock: 1000,
	}
}

func (p *fakeProvider) put(loc provider.Locator, b []byte) provider.Timestamp {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.putLocked(loc, b)
}

func (p *fakeProvider) putLocked(loc provider.Locator, b []byte) provider.Timestamp {
	p.clock++
	p.docs[loc] = append([]byte(nil), b...)
	p.times[loc] = provider.FromMillis(p.clock)
	return p.times[loc]
}

func (p *fakeProvider) doc(loc provider.Locator) []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.docs[loc]
}

func (p *fakeProvider) counts() (probes, reads, writes int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.probes, p.reads, p.writes
}

func (p *fakeProvider) OpenRead(ctx context.Context, loc provider.Locator) (io.ReadCloser, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reads++
	if p.readErr != nil {
		return nil, p.readErr
	}
	if p.noRead {
		return nil, nil
	}
	b, ok := p.docs[loc]
	if !ok {
		return nil, provider.ErrNoStream
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (p *fakeProvider) OpenWrite(ctx context.Context, loc provider.Locator) (io.WriteCloser, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.writes++
	if p.writeErr != nil {
		return nil, p.writeErr
	}
	if p.noWrite {
		return nil, nil
	}
	return &fakeWriter{p: p, loc: loc}, nil
}

func (p *fakeProvider) LastModified(ctx context.Context, loc provider.Locator) (provider.Timestamp, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.probes++
	if p.probeErr != nil {
		return provider.Unknown, p.probeErr
	}
	if len(p.script) > 0 {
		ts := p.script[0]
		p.script = p.script[1:]
		return ts, nil
	}
	if p.drift {
		p.clock++
		p.times[loc] = provider.FromMillis(p.clock)
	}
	return p.times[loc], nil
}

func (p *fakeProvider) AcquirePersistentAccess(ctx context.Context, loc provider.Locator) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.acquired = append(p.acquired, loc)
	return nil
}

func (p *fakeProvider) ReleasePersistentAccess(ctx context.Context, loc provider.Locator) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.released = append(p.released, loc)
	return p.releaseErr
}

type fakeWriter struct {
	p   *fakeProvider
	loc provider.Locator
	buf bytes.Buffer
}

func (w *fakeWriter) Write(b []byte) (int, error) {
	return w.buf.Write(b)
}

func (w *fakeWriter) Close() error {
	w.p.mu.Lock()
	defer w.p.mu.Unlock()
	if w.p.commitErr != nil {
		return w.p.commitErr
	}
	w.p.putLocked(w.loc, w.buf.Bytes())
	return nil
}

func (w *fakeWriter) Abort() error {
	w.p.mu.Lock()
	defer w.p.mu.Unlock()
	w.p.aborts++
	return nil
}

type testEnv struct {
	eng    *Engine
	prov   *fakeProvider
	reg    *registry.SQLiteRepository
	layout *Layout
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	root := t.TempDir()

	layout, err := NewLayout(root)
	require.NoError(t, err)

	reg, err := registry.OpenSQLite(ctx, filepath.Join(root, "registry.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = reg.Close() })

	prov := newFakeProvider()
	eng, err := New(Config{
		Layout:   layout,
		Registry: reg,
		Provider: prov,
		Retry:    RetryPolicy{MaxConflictRetries: 3},
	})
	require.NoError(t, err)

	return &testEnv{eng: eng, prov: prov, reg: reg, layout: layout}
}

// makeDocument builds a SQLite database holding an items table with the
// given names and returns its bytes.
func makeDocument(t *testing.T, names ...string) []byte {
	t.Helper()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "doc.db")

	db, err := dbx.OpenSQLite(ctx, path)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `CREATE TABLE items (name TEXT NOT NULL)`)
	require.NoError(t, err)
	for _, n := range names {
		_, err = db.ExecContext(ctx, `INSERT INTO items (name) VALUES (?)`, n)
		require.NoError(t, err)
	}
	require.NoError(t, db.Close())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return b
}

// documentItems opens a copy of b and lists its items.
func documentItems(t *testing.T, b []byte) []string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "inspect.db")
	require.NoError(t, os.WriteFile(path, b, 0o600))

	db, err := dbx.OpenSQLite(context.Background(), path)
	require.NoError(t, err)
	defer db.Close()

	return queryItems(t, db)
}

func queryItems(t *testing.T, q dbx.DBTX) []string {
	t.Helper()
	rows, err := q.QueryContext(context.Background(), `SELECT name FROM items ORDER BY rowid`)
	require.NoError(t, err)
	defer rows.Close()

	var out []string
	for rows.Next() {
		var n string
		require.NoError(t, rows.Scan(&n))
		out = append(out, n)
	}
	require.NoError(t, rows.Err())
	return out
}

// linkExternal registers userID as external at loc without remembering a
// timestamp, as if the document had been chosen on another device.
func (env *testEnv) linkExternal(t *testing.T, userID string, loc provider.Locator, names ...string) {
	t.Helper()
	env.prov.put(loc, makeDocument(t, names...))
	require.NoError(t, env.reg.SetExternalLocation(context.Background(), userID, loc, provider.Unknown))
}

func (env *testEnv) cachePath(t *testing.T, userID string) string {
	t.Helper()
	p, err := env.layout.CachePath(userID)
	require.NoError(t, err)
	return p
}

func (env *testEnv) managedPath(t *testing.T, userID string) string {
	t.Helper()
	p, err := env.layout.ManagedPath(userID)
	require.NoError(t, err)
	return p
}

func listItems(ctx context.Context, tx dbx.DBTX) (Outcome[[]string], error) {
	rows, err := tx.QueryContext(ctx, `SELECT name FROM items ORDER BY rowid`)
	if err != nil {
		return Outcome[[]string]{}, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return Outcome[[]string]{}, err
		}
		out = append(out, n)
	}
	return Read(out), rows.Err()
}

func addItem(name string) Transaction[int64] {
	return func(ctx context.Context, tx dbx.DBTX) (Outcome[int64], error) {
		if _, err := tx.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS items (name TEXT NOT NULL)`); err != nil {
			return Outcome[int64]{}, err
		}
		res, err := tx.ExecContext(ctx, `INSERT INTO items (name) VALUES (?)`, name)
		if err != nil {
			return Outcome[int64]{}, err
		}
		id, err := res.LastInsertId()
		return Wrote(id), err
	}
}

var errBoom = errors.New("boom")

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 5*time.Millisecond)
}
