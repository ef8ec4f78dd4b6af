package remote

import (
	"archive/tar"
	"archive/zip"
	"compress/bzip2"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"eve.evalgo.org/muninn/schema"
)

// autoExtract inspects filePath's name against product's physical_name
// plus a known archive extension and, on a match, extracts it in place
// and removes the archive file, returning the sorted top-level entries
// it produced. A non-match returns []string{filePath} unchanged,
// mirroring the original's auto_extract.
func autoExtract(filePath string, core schema.Struct) ([]string, error) {
	dir := filepath.Dir(filePath)
	name := filepath.Base(filePath)
	physical := physicalName(core)

	if _, ok := matchExtension(name, physical, zipExtensions); ok {
		paths, err := extractZip(filePath, dir)
		if err != nil {
			return nil, err
		}
		_ = os.Remove(filePath)
		return paths, nil
	}

	if ext, ok := matchExtension(name, physical, tarExtensions); ok {
		paths, err := extractTar(filePath, dir, ext)
		if err != nil {
			return nil, err
		}
		_ = os.Remove(filePath)
		return paths, nil
	}

	return []string{filePath}, nil
}

var zipExtensions = []string{".zip"}

var tarExtensions = []string{
	".tar", ".tgz", ".tar.gz", ".txz", ".tar.xz", ".tbz", ".tb2", ".tar.bz2",
}

// matchExtension reports whether name equals physical+extension for
// any candidate extension, case-insensitively (the original checks
// both the lowercase and uppercase form of each extension).
func matchExtension(name, physical string, extensions []string) (string, bool) {
	for _, ext := range extensions {
		if strings.EqualFold(name, physical+ext) {
			return ext, true
		}
	}
	return "", false
}

// extractZip extracts zipPath into dir and returns the sorted absolute
// paths of its top-level entries.
func extractZip(zipPath, dir string) ([]string, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	cleanDir := filepath.Clean(dir) + string(os.PathSeparator)
	top := map[string]bool{}
	for _, f := range r.File {
		target := filepath.Join(dir, filepath.FromSlash(f.Name))
		if !strings.HasPrefix(filepath.Clean(target)+string(os.PathSeparator), cleanDir) && filepath.Clean(target) != filepath.Clean(dir) {
			return nil, fmt.Errorf("remote: zip entry %q escapes extraction directory", f.Name)
		}
		top[strings.SplitN(f.Name, "/", 2)[0]] = true

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return nil, err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return nil, err
		}
		if err := extractZipFile(f, target); err != nil {
			return nil, err
		}
	}
	return joinTopLevel(dir, top), nil
}

func extractZipFile(f *zip.File, target string) error {
	src, err := f.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, f.Mode())
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, src)
	return err
}

// extractTar extracts a tar archive, optionally gzip- or bzip2-
// compressed per ext, rejecting any member whose resolved path escapes
// dir (CVE-2007-4559), matching the original's commonprefix check and
// the teacher's zip-slip guard in archive/unzip.go.
func extractTar(tarPath, dir, ext string) ([]string, error) {
	f, err := os.Open(tarPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = f
	switch {
	case strings.Contains(ext, "gz") || ext == ".tgz":
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		r = gz
	case strings.Contains(ext, "bz") || ext == ".tb2":
		r = bzip2.NewReader(f)
	case strings.Contains(ext, "xz") || ext == ".txz":
		return nil, fmt.Errorf("remote: xz-compressed tar archives are not supported")
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}

	tr := tar.NewReader(r)
	top := map[string]bool{}
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		memberPath, err := filepath.Abs(filepath.Join(dir, filepath.FromSlash(hdr.Name)))
		if err != nil {
			return nil, err
		}
		if !isUnderDir(memberPath, absDir) {
			continue
		}
		top[strings.SplitN(hdr.Name, "/", 2)[0]] = true

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(memberPath, 0o755); err != nil {
				return nil, err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(memberPath), 0o755); err != nil {
				return nil, err
			}
			out, err := os.OpenFile(memberPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(hdr.Mode))
			if err != nil {
				return nil, err
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return nil, err
			}
			out.Close()
		}
	}
	return joinTopLevel(dir, top), nil
}

func isUnderDir(path, dir string) bool {
	return path == dir || strings.HasPrefix(path, dir+string(os.PathSeparator))
}

func joinTopLevel(dir string, top map[string]bool) []string {
	names := make([]string, 0, len(top))
	for name := range top {
		names = append(names, name)
	}
	sort.Strings(names)
	paths := make([]string, len(names))
	for i, name := range names {
		paths[i] = filepath.Join(dir, name)
	}
	return paths
}
