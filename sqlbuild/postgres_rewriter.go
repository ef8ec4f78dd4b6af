package sqlbuild

import "fmt"

// PostgresRewriterTable extends DefaultRewriterTable with the PostgreSQL-
// specific function rewrites spec.md §4.4 and §4.5 describe: geometry
// predicates, the four-argument timestamp covers/intersects, and lineage
// predicates as subqueries against the link table. Timestamp
// subscripts/binning, text length and validity_duration are not table
// entries; the helper functions below render them.
func PostgresRewriterTable() *RewriterTable {
	t := DefaultRewriterTable()

	t.Add("covers(geometry,geometry) boolean", func(ctx RewriteContext) string {
		return fmt.Sprintf("ST_Covers(%s::geography, %s::geography)", ctx.Args[0], ctx.Args[1])
	})
	t.Add("intersects(geometry,geometry) boolean", func(ctx RewriteContext) string {
		return fmt.Sprintf("ST_Intersects(%s::geography, %s::geography)", ctx.Args[0], ctx.Args[1])
	})
	t.Add("covers(timestamp,timestamp,timestamp,timestamp) boolean", func(ctx RewriteContext) string {
		return fmt.Sprintf("(%s <= %s AND %s >= %s)", ctx.Args[0], ctx.Args[2], ctx.Args[1], ctx.Args[3])
	})
	t.Add("intersects(timestamp,timestamp,timestamp,timestamp) boolean", func(ctx RewriteContext) string {
		return fmt.Sprintf("(%s < %s AND %s > %s)", ctx.Args[0], ctx.Args[3], ctx.Args[1], ctx.Args[2])
	})

	t.Add("is_source_of(uuid) boolean", func(ctx RewriteContext) string {
		return fmt.Sprintf(`EXISTS (SELECT 1 FROM "link" WHERE "link"."source_uuid" = %s AND "link"."uuid" = %s)`, ctx.SelfUUID, ctx.Args[0])
	})
	t.Add("is_derived_from(uuid) boolean", func(ctx RewriteContext) string {
		return fmt.Sprintf(`EXISTS (SELECT 1 FROM "link" WHERE "link"."uuid" = %s AND "link"."source_uuid" = %s)`, ctx.SelfUUID, ctx.Args[0])
	})
	t.Add("is_source_of(boolean) boolean", func(ctx RewriteContext) string {
		return fmt.Sprintf(`EXISTS (SELECT 1 FROM "link" JOIN "core" ON "core"."uuid" = "link"."uuid" WHERE "link"."source_uuid" = %s AND (%s))`, ctx.SelfUUID, ctx.Args[0])
	})
	t.Add("is_derived_from(boolean) boolean", func(ctx RewriteContext) string {
		return fmt.Sprintf(`EXISTS (SELECT 1 FROM "link" JOIN "core" ON "core"."uuid" = "link"."source_uuid" WHERE "link"."uuid" = %s AND (%s))`, ctx.SelfUUID, ctx.Args[0])
	})

	return t
}

// timestampSubscriptExpr renders a timestamp subscript (year, month,
// yearmonth, day, date, hour, minute, second, time) as a PostgreSQL
// EXTRACT/to_char expression over the given column fragment.
func timestampSubscriptExpr(column, subscript string) string {
	switch subscript {
	case "year":
		return fmt.Sprintf("EXTRACT(YEAR FROM %s)", column)
	case "month":
		return fmt.Sprintf("EXTRACT(MONTH FROM %s)", column)
	case "day":
		return fmt.Sprintf("EXTRACT(DAY FROM %s)", column)
	case "hour":
		return fmt.Sprintf("EXTRACT(HOUR FROM %s)", column)
	case "minute":
		return fmt.Sprintf("EXTRACT(MINUTE FROM %s)", column)
	case "second":
		return fmt.Sprintf("EXTRACT(SECOND FROM %s)", column)
	case "yearmonth":
		return fmt.Sprintf("to_char(%s, 'YYYY-MM')", column)
	case "date":
		return fmt.Sprintf("to_char(%s, 'YYYY-MM-DD')", column)
	case "time":
		return fmt.Sprintf("to_char(%s, 'HH24:MI:SS')", column)
	default:
		return column
	}
}

// textLengthExpr renders a text-length subscript.
func textLengthExpr(column string) string {
	return fmt.Sprintf("length(%s)", column)
}

// validityDurationExpr renders the synthetic validity_duration aggregate
// property as an interval-in-seconds expression.
func validityDurationExpr(namespace string) string {
	return fmt.Sprintf(`EXTRACT(EPOCH FROM (%s - %s))`,
		namespacedColumn(namespace, "validity_stop"), namespacedColumn(namespace, "validity_start"))
}
