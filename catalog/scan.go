package catalog

import (
	"database/sql"
	"strings"

	"eve.evalgo.org/muninn/schema"
)

// scanProducts unpacks the rows produced by Builder.BuildSearchQuery (or
// the find-without-source queries, which only ever project core
// columns) into Products. A namespace whose own uuid pseudo-column
// comes back NULL was not matched by the namespace's LEFT JOIN — i.e.
// the namespace is not defined for that product — and is omitted
// entirely, mirroring the original implementation's
// _unpack_product_properties.
func scanProducts(rows *sql.Rows) ([]*schema.Product, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []*schema.Product
	for rows.Next() {
		values := make([]any, len(cols))
		pointers := make([]any, len(cols))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, err
		}

		product := schema.NewProduct()
		nsValues := map[string]map[string]any{}
		for i, col := range cols {
			ns, field, found := strings.Cut(col, ".")
			if !found {
				product.Core[col] = values[i]
				continue
			}
			if nsValues[ns] == nil {
				nsValues[ns] = map[string]any{}
			}
			nsValues[ns][field] = values[i]
		}

		for ns, fields := range nsValues {
			if id, ok := fields["uuid"]; !ok || id == nil {
				continue
			}
			delete(fields, "uuid")
			nonNil := make(map[string]any, len(fields))
			for k, v := range fields {
				if v != nil {
					nonNil[k] = v
				}
			}
			product.SetNamespace(ns, schema.NewStruct(nonNil))
		}

		out = append(out, product)
	}
	return out, rows.Err()
}
