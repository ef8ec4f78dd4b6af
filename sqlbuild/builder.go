package sqlbuild

import (
	"fmt"
	"sort"
	"strings"

	"eve.evalgo.org/muninn/lang"
	"eve.evalgo.org/muninn/schema"
)

// NamespaceSchema describes one registered product namespace: its field
// set, used by the Builder for join planning, column rendering, and
// CREATE TABLE generation.
type NamespaceSchema struct {
	Name   string
	Fields schema.Fields
}

// SchemaRegistry resolves namespace names to their field schema.
type SchemaRegistry interface {
	Namespace(name string) (NamespaceSchema, bool)
	NamespaceNames() []string
}

// Query is a compiled statement ready for parameter binding: SQL text
// with '?' placeholders plus the positional arguments in order.
type Query struct {
	SQL  string
	Args []any
}

// OrderTerm is one ORDER BY clause element.
type OrderTerm struct {
	Expr       lang.Node
	Descending bool
}

// Aggregate is one summary-query aggregate column. Target is nil for
// count(*); the validity_duration synthetic aggregate names the owning
// namespace instead of a field.
type Aggregate struct {
	Func      string // "count", "sum", "min", "max", "avg"
	Target    lang.Node
	Namespace string // set only for the validity_duration synthetic aggregate
	Alias     string
}

// Builder compiles a parsed/analyzed expression (see package lang) plus a
// requested namespace projection into a ready-to-execute SQL query,
// following spec.md §4.4: the core namespace is always the query's base
// table; every other requested namespace is LEFT JOINed so that
// properties not defined for a given product surface as SQL NULL rather
// than excluding the row, while a namespace actually referenced by the
// WHERE or ORDER BY expression is INNER JOINed instead, since filtering
// or ordering on an extension property only makes sense for rows that
// carry it.
type Builder struct {
	Schemas   SchemaRegistry
	Rewriters *RewriterTable
}

// NewBuilder returns a Builder using the PostgreSQL rewriter table.
func NewBuilder(schemas SchemaRegistry) *Builder {
	return &Builder{Schemas: schemas, Rewriters: PostgresRewriterTable()}
}

// planJoins returns, in a stable order, every non-core namespace that
// must appear in the FROM clause: requested namespaces (LEFT JOIN unless
// also referenced) and referenced-but-not-requested namespaces (INNER
// JOIN, since the caller didn't ask for their properties but the
// expression still needs them).
func planJoins(requested []string, referenced map[string]bool) []joinPlan {
	seen := map[string]bool{}
	var plan []joinPlan
	add := func(ns string, inner bool) {
		if ns == "core" || seen[ns] {
			return
		}
		seen[ns] = true
		plan = append(plan, joinPlan{Namespace: ns, Inner: inner})
	}
	for _, ns := range requested {
		add(ns, referenced[ns])
	}
	var extra []string
	for ns := range referenced {
		if !seen[ns] && ns != "core" {
			extra = append(extra, ns)
		}
	}
	sort.Strings(extra)
	for _, ns := range extra {
		add(ns, true)
	}
	return plan
}

type joinPlan struct {
	Namespace string
	Inner     bool
}

func renderJoins(plan []joinPlan) string {
	var b strings.Builder
	for _, j := range plan {
		kind := "LEFT JOIN"
		if j.Inner {
			kind = "INNER JOIN"
		}
		fmt.Fprintf(&b, " %s %q ON %q.%q = %q.%q", kind, j.Namespace, j.Namespace, "uuid", "core", "uuid")
	}
	return b.String()
}

// BuildSearchQuery renders a SELECT of the core columns plus every
// requested namespace's columns, filtered by whereExpr (nil for no
// filter), ordered by orderBy, and bounded by limit/offset (0 means
// unbounded / no offset).
func (b *Builder) BuildSearchQuery(whereExpr lang.Node, parameters map[string]any, requested []string, orderBy []OrderTerm, limit, offset int) (*Query, error) {
	v := newExprVisitor(b.Rewriters, parameters)

	var whereSQL string
	if whereExpr != nil {
		frag, err := v.visit(whereExpr)
		if err != nil {
			return nil, err
		}
		whereSQL = frag
	}

	orderFrags := make([]string, len(orderBy))
	for i, term := range orderBy {
		frag, err := v.visit(term.Expr)
		if err != nil {
			return nil, err
		}
		if term.Descending {
			frag += " DESC"
		}
		orderFrags[i] = frag
	}

	plan := planJoins(requested, v.referenced)

	columns := []string{`"core".*`}
	for _, ns := range requested {
		if ns == "core" {
			continue
		}
		nsSchema, ok := b.Schemas.Namespace(ns)
		if !ok {
			return nil, fmt.Errorf("sqlbuild: unknown namespace %q", ns)
		}
		// The namespace's own uuid column is projected first (even
		// though it isn't a domain field) so the caller can tell a
		// LEFT JOIN that matched no row (every column NULL, including
		// uuid) from a namespace whose domain fields are legitimately
		// all-optional-and-absent.
		columns = append(columns, fmt.Sprintf("%s AS %q", namespacedColumn(ns, "uuid"), ns+".uuid"))
		for _, name := range nsSchema.Fields.Names() {
			columns = append(columns, fmt.Sprintf("%s AS %q", namespacedColumn(ns, name), ns+"."+name))
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, `SELECT %s FROM "core"`, strings.Join(columns, ", "))
	sb.WriteString(renderJoins(plan))
	if whereSQL != "" {
		fmt.Fprintf(&sb, " WHERE %s", whereSQL)
	}
	if len(orderFrags) > 0 {
		fmt.Fprintf(&sb, " ORDER BY %s", strings.Join(orderFrags, ", "))
	}
	if limit > 0 {
		fmt.Fprintf(&sb, " LIMIT %d", limit)
	}
	if offset > 0 {
		fmt.Fprintf(&sb, " OFFSET %d", offset)
	}

	return &Query{SQL: sb.String(), Args: v.args}, nil
}

// BuildCountQuery renders a SELECT COUNT(*) equivalent to the same
// filter BuildSearchQuery would apply, without projection or ordering.
func (b *Builder) BuildCountQuery(whereExpr lang.Node, parameters map[string]any) (*Query, error) {
	v := newExprVisitor(b.Rewriters, parameters)

	var whereSQL string
	if whereExpr != nil {
		frag, err := v.visit(whereExpr)
		if err != nil {
			return nil, err
		}
		whereSQL = frag
	}

	plan := planJoins(nil, v.referenced)

	var sb strings.Builder
	sb.WriteString(`SELECT COUNT(*) FROM "core"`)
	sb.WriteString(renderJoins(plan))
	if whereSQL != "" {
		fmt.Fprintf(&sb, " WHERE %s", whereSQL)
	}
	return &Query{SQL: sb.String(), Args: v.args}, nil
}

// BuildSummaryQuery renders a GROUP BY aggregate query over groupBy
// expressions (empty for an ungrouped, single-row summary), filtered by
// whereExpr.
func (b *Builder) BuildSummaryQuery(whereExpr lang.Node, parameters map[string]any, groupBy []lang.Node, aggregates []Aggregate) (*Query, error) {
	v := newExprVisitor(b.Rewriters, parameters)

	var whereSQL string
	if whereExpr != nil {
		frag, err := v.visit(whereExpr)
		if err != nil {
			return nil, err
		}
		whereSQL = frag
	}

	groupFrags := make([]string, len(groupBy))
	for i, g := range groupBy {
		frag, err := v.visit(g)
		if err != nil {
			return nil, err
		}
		groupFrags[i] = frag
	}

	selectFrags := append([]string{}, groupFrags...)
	for _, agg := range aggregates {
		var expr string
		switch {
		case agg.Func == "count" && agg.Target == nil:
			expr = "COUNT(*)"
		case agg.Namespace != "":
			expr = fmt.Sprintf("%s(%s)", strings.ToUpper(agg.Func), validityDurationExpr(agg.Namespace))
			v.referenced[agg.Namespace] = true
		default:
			frag, err := v.visit(agg.Target)
			if err != nil {
				return nil, err
			}
			expr = fmt.Sprintf("%s(%s)", strings.ToUpper(agg.Func), frag)
		}
		alias := agg.Alias
		if alias == "" {
			alias = agg.Func
		}
		selectFrags = append(selectFrags, fmt.Sprintf("%s AS %q", expr, alias))
	}
	if len(selectFrags) == 0 {
		selectFrags = []string{"COUNT(*) AS count"}
	}

	plan := planJoins(nil, v.referenced)

	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT %s FROM \"core\"", strings.Join(selectFrags, ", "))
	sb.WriteString(renderJoins(plan))
	if whereSQL != "" {
		fmt.Fprintf(&sb, " WHERE %s", whereSQL)
	}
	if len(groupFrags) > 0 {
		fmt.Fprintf(&sb, " GROUP BY %s", strings.Join(groupFrags, ", "))
	}
	return &Query{SQL: sb.String(), Args: v.args}, nil
}

// sqlType maps a schema.Kind to its PostgreSQL column type.
func sqlType(k schema.Kind) string {
	switch k {
	case schema.KindLong:
		return "BIGINT"
	case schema.KindInteger:
		return "INTEGER"
	case schema.KindReal:
		return "DOUBLE PRECISION"
	case schema.KindBoolean:
		return "BOOLEAN"
	case schema.KindText:
		return "TEXT"
	case schema.KindTimestamp:
		return "TIMESTAMP WITH TIME ZONE"
	case schema.KindUUID:
		return "UUID"
	case schema.KindGeometry:
		return "GEOGRAPHY(GEOMETRY, 4326)"
	case schema.KindJSON, schema.KindSequence, schema.KindMapping:
		return "JSONB"
	default:
		return "TEXT"
	}
}

// BuildCreateTableQuery renders the CREATE TABLE statement (plus any
// index statements for Indexed fields) that materializes ns. The core
// namespace table has no foreign key; every extension namespace's table
// is keyed by uuid referencing core(uuid) with cascading delete, per
// spec.md §4.5's "deleting a product deletes every namespace row".
func (b *Builder) BuildCreateTableQuery(ns NamespaceSchema) []string {
	var cols []string
	if ns.Name == "core" {
		cols = append(cols, `"uuid" UUID PRIMARY KEY`)
	} else {
		cols = append(cols, fmt.Sprintf(`"uuid" UUID PRIMARY KEY REFERENCES "core"("uuid") ON DELETE CASCADE`))
	}

	var indexes []string
	for _, name := range ns.Fields.Names() {
		field, _ := ns.Fields.Get(name)
		col := fmt.Sprintf("%q %s", name, sqlType(field.Kind))
		if !field.Optional {
			col += " NOT NULL"
		}
		cols = append(cols, col)
		if field.Indexed {
			indexName := fmt.Sprintf("idx_%s_%s", ns.Name, name)
			indexes = append(indexes, fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %q ON %q (%q)`, indexName, ns.Name, name))
		}
	}

	stmts := []string{fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %q (%s)`, ns.Name, strings.Join(cols, ", "))}
	return append(stmts, indexes...)
}
