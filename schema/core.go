package schema

import (
	"path/filepath"
	"strings"
)

// CoreNamespace is the mandatory schema every product carries, mirroring
// the field table of the original implementation's Core mapping.
var CoreNamespace = NewFields(
	FieldPair{"uuid", Type{Name: "uuid", Kind: KindUUID, Indexed: true}},
	FieldPair{"active", Type{Name: "active", Kind: KindBoolean, Indexed: true}},
	FieldPair{"hash", Type{Name: "hash", Kind: KindText, Optional: true}},
	FieldPair{"size", Type{Name: "size", Kind: KindLong, Optional: true}},
	FieldPair{"metadata_date", Type{Name: "metadata_date", Kind: KindTimestamp, Indexed: true}},
	FieldPair{"archive_date", Type{Name: "archive_date", Kind: KindTimestamp, Optional: true, Indexed: true}},
	FieldPair{"archive_path", Type{Name: "archive_path", Kind: KindText, Optional: true}},
	FieldPair{"product_type", Type{Name: "product_type", Kind: KindText, Indexed: true}},
	FieldPair{"product_name", Type{Name: "product_name", Kind: KindText, Indexed: true}},
	FieldPair{"physical_name", Type{Name: "physical_name", Kind: KindText, Optional: true}},
	FieldPair{"validity_start", Type{Name: "validity_start", Kind: KindTimestamp, Optional: true, Indexed: true}},
	FieldPair{"validity_stop", Type{Name: "validity_stop", Kind: KindTimestamp, Optional: true, Indexed: true}},
	FieldPair{"creation_date", Type{Name: "creation_date", Kind: KindTimestamp, Optional: true, Indexed: true}},
	FieldPair{"footprint", Type{Name: "footprint", Kind: KindGeometry, Optional: true, Indexed: true}},
	FieldPair{"remote_url", Type{Name: "remote_url", Kind: KindText, Optional: true}},
)

// ValidateArchivePath rejects absolute paths and ".." segments, following
// the original implementation's ArchivePath type.
func ValidateArchivePath(value string) error {
	if filepath.IsAbs(value) {
		return &ValidationError{Message: "archive path must be relative"}
	}
	for _, part := range strings.Split(filepath.ToSlash(value), "/") {
		if part == ".." {
			return &ValidationError{Message: "archive path must not contain '..' segments"}
		}
	}
	return nil
}

// ValidateBasename rejects a value that is not already a bare basename
// (no path separators), following the original implementation's Basename
// type.
func ValidateBasename(value string) error {
	if value != filepath.Base(value) || value == "" || value == "." || value == ".." {
		return &ValidationError{Message: "physical name must be a bare basename"}
	}
	return nil
}
