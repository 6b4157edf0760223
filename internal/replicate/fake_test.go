package replicate

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"sync"

	"github.com/git-pkgs/regcopy/internal/core"
)

// fakeRegistry is an in-memory Source and Destination.
type fakeRegistry struct {
	mu         sync.Mutex
	packages   map[string]*core.VersionMap
	fetchErr   map[string]error
	publishErr map[string]error // keyed by name@version
	tarballErr error

	fetched   []string
	tarballs  []*core.Tarball
	published []string
	metadata  []core.VersionRecord
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{
		packages:   make(map[string]*core.VersionMap),
		fetchErr:   make(map[string]error),
		publishErr: make(map[string]error),
	}
}

func record(name, version string, extra ...core.Field) core.VersionRecord {
	fields := []core.Field{
		{Key: "name", Value: mustRaw(name)},
		{Key: "version", Value: mustRaw(version)},
	}
	return core.NewVersionRecord(append(fields, extra...)...)
}

func mustRaw(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}

func (f *fakeRegistry) add(name string, versions ...string) *fakeRegistry {
	m, ok := f.packages[name]
	if !ok {
		m = core.NewVersionMap()
		f.packages[name] = m
	}
	for _, v := range versions {
		m.Set(v, record(name, v,
			core.Field{Key: "_npmUser", Value: mustRaw(map[string]string{"name": "someone"})},
			core.Field{Key: "description", Value: mustRaw("a package")},
			core.Field{Key: "dist", Value: mustRaw(core.Dist{Shasum: "abc", Tarball: "https://src/" + name + "-" + v + ".tgz"})},
		))
	}
	return f
}

func (f *fakeRegistry) FetchVersions(ctx context.Context, name string) (*core.VersionMap, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetched = append(f.fetched, name)
	if err := f.fetchErr[name]; err != nil {
		return nil, err
	}
	if m, ok := f.packages[name]; ok {
		return m, nil
	}
	return core.NewVersionMap(), nil
}

func (f *fakeRegistry) FetchTarball(ctx context.Context, name string, rec core.VersionRecord) (*core.Tarball, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.tarballErr != nil {
		return nil, f.tarballErr
	}
	tb := &core.Tarball{
		Body: io.NopCloser(strings.NewReader(name + "@" + rec.Version())),
		Size: -1,
		URL:  "https://src/" + name + "-" + rec.Version() + ".tgz",
	}
	f.tarballs = append(f.tarballs, tb)
	return tb, nil
}

func (f *fakeRegistry) Publish(ctx context.Context, name string, meta core.VersionRecord, tarball *core.Tarball) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := name + "@" + meta.Version()
	if err := f.publishErr[key]; err != nil {
		return err
	}
	if _, err := io.ReadAll(tarball); err != nil {
		return err
	}
	f.published = append(f.published, key)
	f.metadata = append(f.metadata, meta)
	m, ok := f.packages[name]
	if !ok {
		m = core.NewVersionMap()
		f.packages[name] = m
	}
	m.Set(meta.Version(), meta)
	return nil
}
