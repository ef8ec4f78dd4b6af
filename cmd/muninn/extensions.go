package main

import (
	"fmt"

	"eve.evalgo.org/muninn/coordinator"
	"eve.evalgo.org/muninn/hooks"
	"eve.evalgo.org/muninn/remote"
)

// The original implementation locates namespace_extensions,
// product_type_extensions, remote_backend_extensions, and hook_extensions
// by dynamically importing the module names listed in an archive's
// configuration file (muninn/extension.py). Go has no equivalent runtime
// module loading, so this binary instead carries a static, compile-time
// registry: each extension name a configuration file may list under
// [archive] must have a matching entry here, the way database/sql
// drivers or image codecs register themselves by name at init time.

// productTypeFactory builds a ProductTypePlugin for one product type
// extension name.
type productTypeFactory func() coordinator.ProductTypePlugin

// remoteBackendFactory builds a remote.Backend for one remote backend
// extension name, given the loaded credential file.
type remoteBackendFactory func(creds remote.CredentialFile) remote.Backend

// hookFactory builds a hook plugin (any combination of the hooks package's
// optional interfaces) for one hook extension name.
type hookFactory func() any

var productTypeRegistry = map[string]productTypeFactory{}

var remoteBackendRegistry = map[string]remoteBackendFactory{
	"file": func(remote.CredentialFile) remote.Backend { return remote.NewFileBackend() },
	"http": func(creds remote.CredentialFile) remote.Backend { return remote.NewHTTPBackend("http", creds) },
	"https": func(creds remote.CredentialFile) remote.Backend {
		return remote.NewHTTPBackend("https", creds)
	},
}

var hookRegistry = map[string]hookFactory{}

// resolveProductTypePlugins looks up each named extension in
// productTypeRegistry, failing on the first name with no registered
// factory.
func resolveProductTypePlugins(names []string) (map[string]coordinator.ProductTypePlugin, error) {
	plugins := make(map[string]coordinator.ProductTypePlugin, len(names))
	for _, name := range names {
		factory, ok := productTypeRegistry[name]
		if !ok {
			return nil, fmt.Errorf("muninn: no registered product type extension %q", name)
		}
		plugins[name] = factory()
	}
	return plugins, nil
}

// buildRemoteRegistry registers the file and http(s) backends by default
// plus any extension named under remote_backend_extensions, matching the
// original's built-in backends (muninn/remote.py) always being present
// alongside configured ones.
func buildRemoteRegistry(names []string, creds remote.CredentialFile) (*remote.Registry, error) {
	registry := remote.NewRegistry()
	registry.Register("file", remoteBackendRegistry["file"](creds))
	registry.Register("http", remoteBackendRegistry["http"](creds))
	registry.Register("https", remoteBackendRegistry["https"](creds))
	for _, name := range names {
		if name == "file" || name == "http" || name == "https" {
			continue
		}
		factory, ok := remoteBackendRegistry[name]
		if !ok {
			return nil, fmt.Errorf("muninn: no registered remote backend extension %q", name)
		}
		registry.Register(name, factory(creds))
	}
	return registry, nil
}

// buildHookDispatcher registers each named hook extension against an
// in-process dispatcher, matching hooks run synchronously within the CLI
// process.
func buildHookDispatcher(names []string) (hooks.Dispatcher, error) {
	dispatcher := hooks.NewInProcess()
	for _, name := range names {
		factory, ok := hookRegistry[name]
		if !ok {
			return nil, fmt.Errorf("muninn: no registered hook extension %q", name)
		}
		dispatcher.Register(factory())
	}
	return dispatcher, nil
}
