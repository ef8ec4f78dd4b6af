// Package remote fetches a product's bytes from its remote_url, one
// backend per URL scheme, following spec.md §4.7. A Backend never
// touches the catalogue or the store; the coordinator wires Pull's
// result into store.RetrieveFunc during a pull/ingest-by-reference.
package remote

import (
	"context"
	"sort"

	"eve.evalgo.org/muninn/muninnerr"
	"eve.evalgo.org/muninn/schema"
)

// Backend fetches the bytes named by a remote_url into targetDir,
// returning the local paths of whatever landed there (a single file,
// or the top-level entries of an auto-extracted archive).
type Backend interface {
	// Identify reports whether url belongs to this backend's scheme.
	Identify(url string) bool

	// Pull downloads core's remote_url into targetDir and returns the
	// resulting local paths.
	Pull(ctx context.Context, core schema.Struct, targetDir string) ([]string, error)
}

// Registry dispatches a remote_url to the Backend with the longest
// matching prefix, generalizing the original implementation's
// last-match-wins iteration (muninn/remote.py's retrieve_function) into
// a deterministic rule.
type Registry struct {
	backends map[string]Backend
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{backends: map[string]Backend{}}
}

// Register associates name (a configuration key, e.g. "http", "s3")
// with backend. Registering the same name twice replaces the backend.
func (r *Registry) Register(name string, backend Backend) {
	r.backends[name] = backend
}

// Names returns the registered backend names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.backends))
	for name := range r.backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// prefixed is implemented by backends whose identification rule is a
// literal URL prefix, letting Resolve break ties by specificity.
type prefixed interface {
	Prefix() string
}

// Resolve returns the backend whose prefix is the longest match for
// url. It is a UserError if no registered backend identifies url,
// matching "The protocol of '%s' is not supported" from the original.
func (r *Registry) Resolve(url string) (Backend, error) {
	var best Backend
	bestLen := -1
	for _, name := range r.Names() {
		backend := r.backends[name]
		if !backend.Identify(url) {
			continue
		}
		l := 0
		if p, ok := backend.(prefixed); ok {
			l = len(p.Prefix())
		}
		if l > bestLen {
			bestLen = l
			best = backend
		}
	}
	if best == nil {
		return nil, muninnerr.NewUserError("the protocol of %q is not supported", url)
	}
	return best, nil
}

// Fetch resolves the backend for core's remote_url, pulls it into
// targetDir, and auto-extracts any recognized archive, mirroring the
// original's retrieve_function (minus hash verification, which the
// coordinator performs once bytes are in staging since it owns the
// hash algorithm).
func (r *Registry) Fetch(ctx context.Context, core schema.Struct, targetDir string) ([]string, error) {
	url, _ := core["remote_url"].(string)
	if url == "" {
		return nil, muninnerr.NewUserError("product has no remote_url to pull from")
	}
	backend, err := r.Resolve(url)
	if err != nil {
		return nil, err
	}
	paths, err := backend.Pull(ctx, core, targetDir)
	if err != nil {
		return nil, muninnerr.NewRemoteError(err)
	}
	return paths, nil
}

func physicalName(core schema.Struct) string {
	name, _ := core["physical_name"].(string)
	return name
}
