package store

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"eve.evalgo.org/muninn/muninnerr"
	"eve.evalgo.org/muninn/schema"
)

// Filesystem is the local-disk Backend, grounded on the original
// implementation's FilesystemStorageBackend (muninn/storage/fs.py):
// archive root resolved to an absolute path, staging directories created
// as siblings of the final destination (so the final os.Rename is
// atomic), and optional relative intra-archive symlinks.
type Filesystem struct {
	root string
}

// NewFilesystem returns a Filesystem rooted at root (resolved to an
// absolute path immediately, matching os.path.realpath in the original).
// Whether a given Put/Get uses symlinks is decided per call by the
// caller (the coordinator, from the product-type plugin's configured
// default), not fixed on the backend.
func NewFilesystem(root string) (*Filesystem, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("store: resolving archive root %q: %w", root, err)
	}
	return &Filesystem{root: abs}, nil
}

func (f *Filesystem) SupportsSymlinks() bool { return true }

func (f *Filesystem) Prepare(ctx context.Context) error {
	if err := os.MkdirAll(f.root, 0o755); err != nil {
		return fmt.Errorf("store: creating archive root %q: %w", f.root, err)
	}
	return nil
}

func (f *Filesystem) Destroy(ctx context.Context) error {
	exists, err := f.Exists(ctx)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}
	if err := os.RemoveAll(f.root); err != nil {
		return fmt.Errorf("store: removing archive root %q: %w", f.root, err)
	}
	return nil
}

func (f *Filesystem) Exists(ctx context.Context) (bool, error) {
	info, err := os.Stat(f.root)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return info.IsDir(), nil
}

func (f *Filesystem) ProductPath(core schema.Struct) string {
	return filepath.Join(f.root, coreString(core, "archive_path"), coreString(core, "physical_name"))
}

// isSubPath reports whether path lies under root, optionally allowing
// path itself to equal root.
func isSubPath(path, root string, allowEqual bool) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	if rel == "." {
		return allowEqual
	}
	return !strings.HasPrefix(rel, "..")
}

func (f *Filesystem) CurrentArchivePath(paths []string, core schema.Struct) (string, error) {
	for _, p := range paths {
		real, err := filepath.EvalSymlinks(p)
		if err != nil {
			real, err = filepath.Abs(p)
			if err != nil {
				return "", err
			}
		}
		if !isSubPath(real, f.root, true) {
			return "", muninnerr.NewUserError("cannot ingest a file in-place if it is not inside the archive root")
		}
	}

	first, err := filepath.Abs(paths[0])
	if err != nil {
		return "", err
	}
	absArchivePath := filepath.Dir(first)

	if len(paths) > 1 {
		physicalName := coreString(core, "physical_name")
		for _, p := range paths {
			abs, err := filepath.Abs(p)
			if err != nil {
				return "", err
			}
			enclosing := filepath.Base(filepath.Dir(abs))
			if enclosing != physicalName {
				return "", muninnerr.NewUserError("multi-part product has invalid enclosing directory for in-place ingestion")
			}
		}
		absArchivePath = filepath.Dir(absArchivePath)
	}

	rel, err := filepath.Rel(f.root, absArchivePath)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}

// getTmpRoot returns (and creates) the directory that os.Rename's
// destination must share a filesystem with, so the final move is
// atomic: the product's own archive_path directory, inside which the
// staging directories are created as siblings of the product.
func (f *Filesystem) getTmpRoot(core schema.Struct) (string, error) {
	root := filepath.Join(f.root, coreString(core, "archive_path"))
	if err := os.MkdirAll(root, 0o755); err != nil {
		return "", err
	}
	return root, nil
}

func copyPath(src, dstDir string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	dst := filepath.Join(dstDir, filepath.Base(src))
	if info.IsDir() {
		return copyDir(src, dst)
	}
	return copyFile(src, dst, info.Mode())
}

func copyDir(src, dst string) error {
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return err
	}
	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		srcPath := filepath.Join(src, entry.Name())
		dstPath := filepath.Join(dst, entry.Name())
		if entry.IsDir() {
			if err := copyDir(srcPath, dstPath); err != nil {
				return err
			}
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return err
		}
		if err := copyFile(srcPath, dstPath, info.Mode()); err != nil {
			return err
		}
	}
	return nil
}

func copyFile(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}

func (f *Filesystem) Put(ctx context.Context, paths []string, core schema.Struct, useEnclosingDirectory, useSymlinks bool, retrieveFiles RetrieveFunc, runForProduct RunForProductFunc) error {
	physicalName := coreString(core, "physical_name")
	archivePath := coreString(core, "archive_path")

	absArchivePath := filepath.Join(f.root, archivePath)
	absProductPath := filepath.Join(absArchivePath, physicalName)

	if len(paths) > 0 {
		if first, err := filepath.Abs(paths[0]); err == nil && isSubPath(first, absProductPath, true) {
			for _, p := range paths {
				if _, err := os.Stat(p); err != nil {
					return muninnerr.NewUserError("product source path does not exist: %s", p)
				}
				abs, _ := filepath.Abs(p)
				if !isSubPath(abs, absProductPath, true) {
					return muninnerr.NewUserError("cannot ingest product where only part of the files are already at the destination location")
				}
			}
			return nil
		}
	}

	if err := os.MkdirAll(absArchivePath, 0o755); err != nil {
		return muninnerr.NewStorageError(fmt.Errorf("creating parent destination path %q: %w", absArchivePath, err), false)
	}

	anythingStored := false

	tmpRoot, err := f.getTmpRoot(core)
	if err != nil {
		return muninnerr.NewStorageError(err, false)
	}
	tmpParent, err := os.MkdirTemp(tmpRoot, ".put-")
	if err != nil {
		return muninnerr.NewStorageError(err, false)
	}
	defer os.RemoveAll(tmpParent)

	stagePath := tmpParent
	err = func() error {
		if useEnclosingDirectory {
			stagePath = filepath.Join(tmpParent, physicalName)
			if err := os.MkdirAll(stagePath, 0o755); err != nil {
				return err
			}
		}

		if retrieveFiles != nil {
			retrieved, err := retrieveFiles(stagePath)
			if err != nil {
				return err
			}
			paths = retrieved
		} else if useSymlinks {
			linkBase := absArchivePath
			if useEnclosingDirectory {
				linkBase = absProductPath
			}
			for _, p := range paths {
				abs, _ := filepath.Abs(p)
				target := abs
				if isSubPath(abs, f.root, false) {
					rel, err := filepath.Rel(linkBase, abs)
					if err != nil {
						return err
					}
					target = rel
				}
				if err := os.Symlink(target, filepath.Join(stagePath, filepath.Base(p))); err != nil {
					return err
				}
			}
		} else {
			for _, p := range paths {
				if err := copyPath(p, stagePath); err != nil {
					return err
				}
			}
		}

		if useEnclosingDirectory {
			if err := os.Rename(stagePath, absProductPath); err != nil {
				return err
			}
		} else {
			if len(paths) != 1 || filepath.Base(paths[0]) != physicalName {
				return muninnerr.NewInternalError("single-file product path does not match physical_name")
			}
			tmpProductPath := filepath.Join(stagePath, physicalName)
			if err := os.Rename(tmpProductPath, absProductPath); err != nil {
				return err
			}
		}
		anythingStored = true

		if runForProduct != nil {
			return f.RunForProduct(ctx, core, runForProduct, useEnclosingDirectory)
		}
		return nil
	}()

	if err != nil {
		return muninnerr.NewStorageError(fmt.Errorf("transferring product to %q: %w", absProductPath, err), anythingStored)
	}
	return nil
}

func (f *Filesystem) Get(ctx context.Context, core schema.Struct, productPath, targetDir string, useEnclosingDirectory, useSymlinks bool) error {
	var err error
	if useSymlinks {
		if useEnclosingDirectory {
			entries, rerr := os.ReadDir(productPath)
			if rerr != nil {
				err = rerr
			} else {
				for _, entry := range entries {
					if err = os.Symlink(filepath.Join(productPath, entry.Name()), filepath.Join(targetDir, entry.Name())); err != nil {
						break
					}
				}
			}
		} else {
			err = os.Symlink(productPath, filepath.Join(targetDir, filepath.Base(productPath)))
		}
	} else {
		if useEnclosingDirectory {
			entries, rerr := os.ReadDir(productPath)
			if rerr != nil {
				err = rerr
			} else {
				for _, entry := range entries {
					if err = copyPath(filepath.Join(productPath, entry.Name()), targetDir); err != nil {
						break
					}
				}
			}
		} else {
			err = copyPath(productPath, targetDir)
		}
	}
	if err != nil {
		return muninnerr.NewStorageError(fmt.Errorf("retrieving product %s (%s): %w", coreString(core, "product_name"), coreString(core, "uuid"), err), false)
	}
	return nil
}

func dirSize(path string) (int64, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return 0, err
	}
	if !info.IsDir() {
		return info.Size(), nil
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, entry := range entries {
		size, err := dirSize(filepath.Join(path, entry.Name()))
		if err != nil {
			return 0, err
		}
		total += size
	}
	return total, nil
}

func (f *Filesystem) Size(ctx context.Context, path string) (int64, error) {
	return dirSize(path)
}

func (f *Filesystem) Delete(ctx context.Context, productPath string, core schema.Struct) error {
	if _, err := os.Lstat(productPath); os.IsNotExist(err) {
		return nil
	}

	tmpRoot, err := f.getTmpRoot(core)
	if err != nil {
		return muninnerr.NewStorageError(err, false)
	}
	tmpParent, err := os.MkdirTemp(tmpRoot, ".remove-")
	if err != nil {
		return muninnerr.NewStorageError(err, false)
	}
	defer os.RemoveAll(tmpParent)

	physicalName := coreString(core, "physical_name")
	if physicalName != filepath.Base(productPath) {
		return muninnerr.NewInternalError("product path %q does not match physical_name %q", productPath, physicalName)
	}
	if err := os.Rename(productPath, filepath.Join(tmpParent, filepath.Base(productPath))); err != nil {
		return muninnerr.NewStorageError(fmt.Errorf("removing product %s (%s): %w", coreString(core, "product_name"), coreString(core, "uuid"), err), false)
	}
	return nil
}

func (f *Filesystem) Move(ctx context.Context, core schema.Struct, newArchivePath string, paths []string) ([]string, error) {
	oldArchivePath := coreString(core, "archive_path")
	if oldArchivePath == newArchivePath {
		return paths, nil
	}

	absArchivePath := filepath.Join(f.root, newArchivePath)
	if err := os.MkdirAll(absArchivePath, 0o755); err != nil {
		return nil, fmt.Errorf("store: creating target archive path %q: %w", absArchivePath, err)
	}

	productPath := f.ProductPath(core)
	physicalName := coreString(core, "physical_name")
	if err := os.Rename(productPath, filepath.Join(absArchivePath, physicalName)); err != nil {
		return nil, fmt.Errorf("store: moving product to %q: %w", absArchivePath, err)
	}

	if paths == nil {
		return nil, nil
	}
	oldAbsArchivePath := filepath.Join(f.root, oldArchivePath)
	rewritten := make([]string, len(paths))
	for i, p := range paths {
		rel, err := filepath.Rel(oldAbsArchivePath, p)
		if err != nil {
			return nil, err
		}
		rewritten[i] = filepath.Join(f.root, newArchivePath, rel)
	}
	return rewritten, nil
}

func (f *Filesystem) RunForProduct(ctx context.Context, core schema.Struct, fn RunForProductFunc, useEnclosingDirectory bool) error {
	productPath := f.ProductPath(core)
	var paths []string
	if useEnclosingDirectory {
		entries, err := os.ReadDir(productPath)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			paths = append(paths, filepath.Join(productPath, entry.Name()))
		}
	} else {
		paths = []string{productPath}
	}
	return fn(paths)
}
