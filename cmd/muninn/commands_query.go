package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"eve.evalgo.org/muninn/catalog"
	"eve.evalgo.org/muninn/config"
	"eve.evalgo.org/muninn/lang"
	"eve.evalgo.org/muninn/sqlbuild"
)

var (
	searchCount bool
	searchUUID  bool
	searchPaths bool
	searchLimit int
)

var searchCmd = &cobra.Command{
	Use:   "search ARCHIVE EXPRESSION",
	Short: "Search a muninn archive for products",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := shutdownContext()
		defer cancel()
		a, err := openArchive(ctx, args[0], cmd.Flags())
		if err != nil {
			return err
		}

		where, err := a.coordinator.ParseExpression(args[1], nil)
		if err != nil {
			return err
		}

		if searchCount {
			n, err := a.coordinator.Count(ctx, where, nil)
			if err != nil {
				return err
			}
			fmt.Println(n)
			return nil
		}

		products, err := a.coordinator.Search(ctx, catalog.SearchQuery{
			Where:      where,
			Namespaces: a.coordinator.Namespaces().NamespaceNames(),
			Limit:      searchLimit,
		})
		if err != nil {
			return err
		}
		for _, p := range products {
			switch {
			case searchUUID:
				fmt.Println(p.Core["uuid"])
			case searchPaths:
				fmt.Println(p.Core["archive_path"])
			default:
				fmt.Printf("%v %v %v\n", p.Core["uuid"], p.Core["product_type"], p.Core["product_name"])
			}
		}
		return nil
	},
}

var (
	summaryGroupBy []string
	summaryAggs    []string
)

var summaryCmd = &cobra.Command{
	Use:   "summary ARCHIVE [EXPRESSION]",
	Short: "Summarize products in a muninn archive with grouped aggregates",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := shutdownContext()
		defer cancel()
		a, err := openArchive(ctx, args[0], cmd.Flags())
		if err != nil {
			return err
		}
		expression := ""
		if len(args) > 1 {
			expression = args[1]
		}
		where, err := a.coordinator.ParseExpression(expression, nil)
		if err != nil {
			return err
		}

		groupBy := make([]lang.Node, 0, len(summaryGroupBy))
		for _, field := range summaryGroupBy {
			node, err := a.coordinator.ParseExpression(field, nil)
			if err != nil {
				return fmt.Errorf("muninn: invalid group-by field %q: %w", field, err)
			}
			groupBy = append(groupBy, node)
		}

		aggregates := make([]sqlbuild.Aggregate, 0, len(summaryAggs))
		for _, spec := range summaryAggs {
			aggregate, err := parseAggregate(a, spec)
			if err != nil {
				return err
			}
			aggregates = append(aggregates, aggregate)
		}

		rows, err := a.coordinator.Summary(ctx, catalog.SummaryQuery{Where: where, GroupBy: groupBy, Aggregates: aggregates})
		if err != nil {
			return err
		}
		for _, row := range rows {
			keys := make([]string, 0, len(row))
			for k := range row {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Printf("%s=%v ", k, row[k])
			}
			fmt.Println()
		}
		return nil
	},
}

// parseAggregate parses a "-a field:func" summary flag value into a
// sqlbuild.Aggregate, following muninn/tools/summary.py's aggregate
// specifiers. A bare "func" with no field (only valid for count) builds
// a target-less aggregate.
func parseAggregate(a *archive, spec string) (sqlbuild.Aggregate, error) {
	field, fn, ok := strings.Cut(spec, ":")
	if !ok {
		fn, field = field, ""
	}
	fn = strings.ToLower(strings.TrimSpace(fn))
	if fn != "count" && field == "" {
		return sqlbuild.Aggregate{}, fmt.Errorf("muninn: aggregate %q requires a field (field:func)", spec)
	}

	var target lang.Node
	if field != "" {
		node, err := a.coordinator.ParseExpression(field, nil)
		if err != nil {
			return sqlbuild.Aggregate{}, fmt.Errorf("muninn: invalid aggregate field %q: %w", field, err)
		}
		target = node
	}

	return sqlbuild.Aggregate{Func: fn, Target: target, Alias: spec}, nil
}

var tagCmd = &cobra.Command{
	Use:   "tag ARCHIVE EXPRESSION TAG...",
	Short: "Set one or more tags on products matching an expression",
	Args:  cobra.MinimumNArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := shutdownContext()
		defer cancel()
		a, err := openArchive(ctx, args[0], cmd.Flags())
		if err != nil {
			return err
		}
		where, err := a.coordinator.ParseExpression(args[1], nil)
		if err != nil {
			return err
		}
		n, err := a.coordinator.Tag(ctx, where, nil, args[2:])
		if err != nil {
			return err
		}
		logger.Debugf("tagged %d product(s)", n)
		return nil
	},
}

var untagAll bool

var untagCmd = &cobra.Command{
	Use:   "untag ARCHIVE EXPRESSION [TAG...]",
	Short: "Remove one or more tags from products matching an expression",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := shutdownContext()
		defer cancel()
		a, err := openArchive(ctx, args[0], cmd.Flags())
		if err != nil {
			return err
		}
		where, err := a.coordinator.ParseExpression(args[1], nil)
		if err != nil {
			return err
		}
		tags := args[2:]
		if untagAll {
			tags = nil
		}
		n, err := a.coordinator.Untag(ctx, where, nil, tags)
		if err != nil {
			return err
		}
		logger.Debugf("untagged %d product(s)", n)
		return nil
	},
}

var listTagsCmd = &cobra.Command{
	Use:   "list-tags ARCHIVE EXPRESSION",
	Short: "List tags of products contained in a muninn archive",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := shutdownContext()
		defer cancel()
		a, err := openArchive(ctx, args[0], cmd.Flags())
		if err != nil {
			return err
		}
		products, err := selectProducts(ctx, a, args[1], "")
		if err != nil {
			return err
		}
		for _, p := range products {
			tags, err := a.coordinator.ProductTags(ctx, p)
			if err != nil {
				return err
			}
			fmt.Printf("%v (%v): %s\n", p.Core["product_name"], p.Core["uuid"], joinComma(tags))
		}
		return nil
	},
}

func joinComma(items []string) string {
	out := ""
	for i, s := range items {
		if i > 0 {
			out += ", "
		}
		out += s
	}
	return out
}

var infoNameOnly bool

var infoCmd = &cobra.Command{
	Use:   "info [ARCHIVE...]",
	Short: "Display generic archive information",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := shutdownContext()
		defer cancel()

		archives := args
		if len(archives) == 0 {
			var err error
			archives, err = config.ListArchives()
			if err != nil {
				return err
			}
		}
		sort.Strings(archives)

		fmt.Println("ARCHIVES")
		for _, name := range archives {
			fmt.Println("  " + name)
			if infoNameOnly {
				continue
			}
			a, err := openArchive(ctx, name, cmd.Flags())
			if err != nil {
				fmt.Println("    (could not open archive)")
				continue
			}
			fmt.Println("    NAMESPACES")
			nsNames := a.coordinator.Namespaces().NamespaceNames()
			sort.Strings(nsNames)
			for _, ns := range nsNames {
				fmt.Printf("      %s\n", ns)
				namespace, ok := a.coordinator.Namespaces().Namespace(ns)
				if !ok {
					continue
				}
				fields := namespace.Fields.Names()
				sort.Strings(fields)
				for _, field := range fields {
					fmt.Printf("        %s\n", field)
				}
			}
		}
		return nil
	},
}

func init() {
	searchCmd.Flags().BoolVarP(&searchCount, "count", "c", false, "print only the number of matching products")
	searchCmd.Flags().BoolVarP(&searchUUID, "uuid", "u", false, "print only the uuid of each matching product")
	searchCmd.Flags().BoolVar(&searchPaths, "paths", false, "print only the archive path of each matching product")
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "l", 0, "limit the number of results (0: unlimited)")

	summaryCmd.Flags().StringArrayVarP(&summaryGroupBy, "group-by", "g", nil, "group summary rows by FIELD")
	summaryCmd.Flags().StringArrayVarP(&summaryAggs, "aggregate", "a", nil, "compute an aggregate, as field:func (func: count, sum, min, max, avg)")

	untagCmd.Flags().BoolVarP(&untagAll, "all", "a", false, "remove all tags instead of the ones listed")

	infoCmd.Flags().BoolVarP(&infoNameOnly, "name-only", "n", false, "print only archive names")
}
