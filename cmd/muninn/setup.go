package main

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/spf13/pflag"

	"eve.evalgo.org/muninn/catalog"
	"eve.evalgo.org/muninn/config"
	"eve.evalgo.org/muninn/coordinator"
	"eve.evalgo.org/muninn/remote"
	"eve.evalgo.org/muninn/store"
)

// archive bundles the open handles a CLI command needs, mirroring what
// muninn.open(archive_id) returns in the original implementation.
type archive struct {
	coordinator *coordinator.Coordinator
	cfg         *config.Config
	close       func() error
}

// openArchive loads archiveID's configuration file and wires a
// *coordinator.Coordinator from it: a PostgreSQL catalogue backend opened
// from the "database" DSN, a storage backend selected by "storage" (a
// filesystem path, an s3:// URL, or empty/"none" for a catalogue-only
// archive), the default file/http(s) remote backends plus any configured
// remote_backend_extensions, and an in-process hook dispatcher seeded
// from hook_extensions. This is the Go-idiomatic counterpart to the
// original's dynamic muninn.open, minus the dynamic module import (see
// extensions.go).
func openArchive(ctx context.Context, archiveID string, flags *pflag.FlagSet) (*archive, error) {
	path, err := config.Locate(archiveID)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(path, flags)
	if err != nil {
		return nil, err
	}

	cat, err := openCatalogue(ctx, cfg)
	if err != nil {
		return nil, err
	}

	storage, s3Client, err := openStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}

	creds, err := remote.LoadCredentialFile(cfg.AuthFile)
	if err != nil {
		return nil, fmt.Errorf("muninn: loading auth file %q: %w", cfg.AuthFile, err)
	}

	registry, err := buildRemoteRegistry(cfg.RemoteBackendExtensions, creds)
	if err != nil {
		return nil, err
	}
	if s3Client != nil {
		registry.Register("s3", remote.NewS3Backend(remote.SingleBucketResolver{Client: s3Client}))
	}

	dispatcher, err := buildHookDispatcher(cfg.HookExtensions)
	if err != nil {
		return nil, err
	}

	plugins, err := resolveProductTypePlugins(cfg.ProductTypeExtensions)
	if err != nil {
		return nil, err
	}

	coord := coordinator.New(cat, storage, registry, dispatcher, coordinator.Config{
		CascadeGracePeriod: cfg.CascadeGracePeriod,
		MaxCascadeCycles:   cfg.MaxCascadeCycles,
	})
	for name, plugin := range plugins {
		if err := coord.RegisterProductType(name, plugin); err != nil {
			return nil, err
		}
	}

	return &archive{coordinator: coord, cfg: cfg, close: func() error { return nil }}, nil
}

func openCatalogue(ctx context.Context, cfg *config.Config) (catalog.Catalogue, error) {
	if cfg.Database == "" {
		return nil, fmt.Errorf("muninn: archive configuration has no database")
	}
	cat, err := catalog.Open(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("muninn: opening catalogue: %w", err)
	}
	return cat, nil
}

// openStorage builds the storage backend named by cfg.Storage: empty or
// "none" for a catalogue-only archive (storage=None in the original),
// an s3:// URL for the S3 backend, or any other value as a filesystem
// root. It also returns the underlying store.S3Client when the storage
// backend is S3, so openArchive can reuse it as the "s3" remote backend.
func openStorage(ctx context.Context, cfg *config.Config) (store.Backend, store.S3Client, error) {
	switch {
	case cfg.Storage == "" || cfg.Storage == "none":
		return nil, nil, nil
	case strings.HasPrefix(cfg.Storage, "s3://"):
		parsed, err := url.Parse(cfg.Storage)
		if err != nil {
			return nil, nil, fmt.Errorf("muninn: parsing storage URL %q: %w", cfg.Storage, err)
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("muninn: loading AWS config: %w", err)
		}
		client := s3.NewFromConfig(awsCfg)
		uploader := manager.NewUploader(client)
		bucket := parsed.Host
		return store.NewS3(client, uploader, bucket), client, nil
	default:
		backend, err := store.NewFilesystem(cfg.Storage)
		if err != nil {
			return nil, nil, fmt.Errorf("muninn: opening filesystem storage %q: %w", cfg.Storage, err)
		}
		return backend, nil, nil
	}
}
