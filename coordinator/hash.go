package coordinator

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

func newHashFunc(hashType string) (func() hash.Hash, error) {
	switch hashType {
	case "md5":
		return md5.New, nil
	case "sha1":
		return sha1.New, nil
	case "sha256":
		return sha256.New, nil
	case "sha512":
		return sha512.New, nil
	default:
		return nil, fmt.Errorf("coordinator: unsupported hash type %q", hashType)
	}
}

// SplitHash separates a stored "<algo>:<hex>" hash value into its
// algorithm and digest, interpreting a value with no ":" prefix as a
// legacy sha1 digest, following spec.md §4.8's hash discipline.
func SplitHash(stored string) (algo, digest string) {
	algo, digest, found := strings.Cut(stored, ":")
	if !found {
		return "sha1", stored
	}
	return algo, digest
}

// ProductHash computes a product's content digest over paths using
// hashType, following the original implementation's util.product_hash
// algorithm: a single-part product hashes its one root directly, a
// multi-part product additionally folds in each part's sorted basename
// and entry kind before hashing its contents, so that renaming parts
// changes the digest while the order in which parts are given does not.
func ProductHash(paths []string, hashType string) (string, error) {
	newHash, err := newHashFunc(hashType)
	if err != nil {
		return "", err
	}

	if len(paths) == 1 {
		sum, err := hashPathRec(paths[0], true, newHash)
		if err != nil {
			return "", err
		}
		return hashType + ":" + hex.EncodeToString(sum), nil
	}

	sorted := append([]string(nil), paths...)
	sort.Strings(sorted)

	h := newHash()
	for _, root := range sorted {
		h.Write(hashBytes(filepath.Base(root), newHash))
		h.Write([]byte{entryKindByte(root)})
		sum, err := hashPathRec(root, true, newHash)
		if err != nil {
			return "", err
		}
		h.Write(sum)
	}
	return hashType + ":" + hex.EncodeToString(h.Sum(nil)), nil
}

func entryKindByte(path string) byte {
	info, err := os.Lstat(path)
	switch {
	case err != nil:
		return 'f'
	case info.Mode()&os.ModeSymlink != 0:
		return 'l'
	case info.IsDir():
		return 'd'
	default:
		return 'f'
	}
}

func hashBytes(s string, newHash func() hash.Hash) []byte {
	h := newHash()
	h.Write([]byte(s))
	return h.Sum(nil)
}

// hashPathRec mirrors util.py's _product_hash_rec: a top-level symlink
// (resolveRoot true) is followed to its target's content, a nested
// symlink hashes the link text instead.
func hashPathRec(root string, resolveRoot bool, newHash func() hash.Hash) ([]byte, error) {
	lstat, err := os.Lstat(root)
	if err != nil {
		return nil, err
	}
	if lstat.Mode()&os.ModeSymlink != 0 && !resolveRoot {
		target, err := os.Readlink(root)
		if err != nil {
			return nil, err
		}
		return hashBytes(target, newHash), nil
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		entries, err := os.ReadDir(root)
		if err != nil {
			return nil, err
		}
		names := make([]string, len(entries))
		for i, e := range entries {
			names[i] = e.Name()
		}
		sort.Strings(names)

		h := newHash()
		for _, name := range names {
			h.Write(hashBytes(name, newHash))
			h.Write([]byte{entryKindByte(filepath.Join(root, name))})
			sum, err := hashPathRec(filepath.Join(root, name), false, newHash)
			if err != nil {
				return nil, err
			}
			h.Write(sum)
		}
		return h.Sum(nil), nil
	}

	return hashFile(root, newHash)
}

func hashFile(path string, newHash func() hash.Hash) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	h := newHash()
	if _, err := io.Copy(h, f); err != nil {
		return nil, err
	}
	return h.Sum(nil), nil
}

// ProductSize sums the byte size of every file under paths, recursing
// into directories, following util.py's product_size.
func ProductSize(paths []string) (int64, error) {
	var total int64
	for _, root := range paths {
		size, err := pathSizeRec(root)
		if err != nil {
			return 0, err
		}
		total += size
	}
	return total, nil
}

func pathSizeRec(root string) (int64, error) {
	info, err := os.Lstat(root)
	if err != nil {
		return 0, err
	}
	if info.Mode()&os.ModeSymlink != 0 {
		return info.Size(), nil
	}
	if info.IsDir() {
		entries, err := os.ReadDir(root)
		if err != nil {
			return 0, err
		}
		var total int64
		for _, e := range entries {
			size, err := pathSizeRec(filepath.Join(root, e.Name()))
			if err != nil {
				return 0, err
			}
			total += size
		}
		return total, nil
	}
	return info.Size(), nil
}
