package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"eve.evalgo.org/muninn/catalog"
	"eve.evalgo.org/muninn/schema"
)

// selectProducts runs expression (wrapped in extraFilter if non-empty)
// against a's catalogue, returning every matching product's full
// properties, following the tool scripts' common archive.search(where)
// selection step.
func selectProducts(ctx context.Context, a *archive, expression, extraFilter string) ([]*schema.Product, error) {
	combined := expression
	switch {
	case extraFilter == "":
	case combined == "":
		combined = extraFilter
	default:
		combined = fmt.Sprintf("%s and (%s)", extraFilter, combined)
	}
	where, err := a.coordinator.ParseExpression(combined, nil)
	if err != nil {
		return nil, err
	}
	return a.coordinator.Search(ctx, catalog.SearchQuery{
		Where:      where,
		Namespaces: a.coordinator.Namespaces().NamespaceNames(),
	})
}

var (
	pullVerifyHash         bool
	pullVerifyHashDownload bool
)

var pullCmd = &cobra.Command{
	Use:   "pull ARCHIVE EXPRESSION",
	Short: "Pull remote files into the archive",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := shutdownContext()
		defer cancel()
		a, err := openArchive(ctx, args[0], cmd.Flags())
		if err != nil {
			return err
		}
		products, err := selectProducts(ctx, a, args[1], "active and is_defined(remote_url) and not is_defined(archive_path)")
		if err != nil {
			return err
		}
		return forEach(ctx, products, parallelFlag, processesFlag, func(ctx context.Context, p *schema.Product) error {
			if err := a.coordinator.Pull(ctx, p, pullVerifyHash || pullVerifyHashDownload); err != nil {
				logger.Errorf("%v: unable to pull product: %s", p.Core["uuid"], err)
			}
			return nil
		})
	},
}

var stripForce bool

var stripCmd = &cobra.Command{
	Use:   "strip ARCHIVE EXPRESSION",
	Short: "Strip products from disk, keeping their catalogue entries",
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
		if err := a.coordinator.Strip(ctx, products, stripForce, false); err != nil {
			return err
		}
		return nil
	},
}

var (
	removeCatalogueOnly bool
	removeForce         bool
)

var removeCmd = &cobra.Command{
	Use:   "remove ARCHIVE EXPRESSION",
	Short: "Remove products from a muninn archive",
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
		if removeCatalogueOnly {
			for _, p := range products {
				if err := a.coordinator.DeleteProperties(ctx, p); err != nil {
					return err
				}
			}
			return nil
		}
		return a.coordinator.Remove(ctx, products, removeForce, false)
	},
}

var (
	retrieveDirectory string
	retrieveLink      bool
)

var retrieveCmd = &cobra.Command{
	Use:   "retrieve ARCHIVE EXPRESSION",
	Short: "Retrieve products from a muninn archive",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := shutdownContext()
		defer cancel()
		a, err := openArchive(ctx, args[0], cmd.Flags())
		if err != nil {
			return err
		}
		target := retrieveDirectory
		if target == "" {
			target, err = os.Getwd()
			if err != nil {
				return err
			}
		}
		products, err := selectProducts(ctx, a, args[1], "")
		if err != nil {
			return err
		}
		return forEach(ctx, products, parallelFlag, processesFlag, func(ctx context.Context, p *schema.Product) error {
			if err := a.coordinator.Retrieve(ctx, p, target, retrieveLink); err != nil {
				logger.Errorf("%v: unable to retrieve product: %s", p.Core["uuid"], err)
			}
			return nil
		})
	},
}

var (
	updateDisableHooks bool
	updateVerifyHash   bool
	updateKeep         bool
)

var updateCmd = &cobra.Command{
	Use:   "update ACTION ARCHIVE EXPRESSION [ARGUMENT]",
	Short: "Update properties of existing products (ingest, pull, or retype)",
	Long:  "An archive maintenance command, meant to be used when the archive structure has changed. Use with care!",
	Args:  cobra.RangeArgs(3, 4),
	RunE: func(cmd *cobra.Command, args []string) error {
		action, archiveID, expression := args[0], args[1], args[2]
		var argument string
		if len(args) > 3 {
			argument = args[3]
		}
		if action != "ingest" && action != "pull" && action != "retype" {
			return fmt.Errorf("muninn: unknown update action %q (want ingest, pull, or retype)", action)
		}

		ctx, cancel := shutdownContext()
		defer cancel()
		a, err := openArchive(ctx, archiveID, cmd.Flags())
		if err != nil {
			return err
		}

		extraFilter := ""
		if action == "ingest" || action == "pull" {
			extraFilter = "is_defined(core.archive_path)"
		}
		if action == "pull" {
			extraFilter = "(" + extraFilter + ") and is_defined(remote_url)"
		}
		products, err := selectProducts(ctx, a, expression, extraFilter)
		if err != nil {
			return err
		}

		return forEach(ctx, products, parallelFlag, processesFlag, func(ctx context.Context, p *schema.Product) error {
			var err error
			switch action {
			case "ingest":
				err = a.coordinator.RebuildProperties(ctx, p, updateKeep, updateDisableHooks)
			case "pull":
				err = a.coordinator.RebuildPullProperties(ctx, p, updateKeep, updateVerifyHash, updateDisableHooks)
			case "retype":
				if argument == "" {
					return fmt.Errorf("muninn: missing argument for retype action")
				}
				err = a.coordinator.Retype(ctx, p, argument)
			}
			if err != nil {
				logger.Errorf("%v: update %s failed: %s", p.Core["uuid"], action, err)
			}
			return nil
		})
	},
}

func init() {
	pullCmd.Flags().BoolVar(&pullVerifyHash, "verify-hash", false, "verify the hash of the product after it has been put in the archive")
	pullCmd.Flags().BoolVar(&pullVerifyHashDownload, "verify-hash-download", false, "verify the hash of the pulled product; the check runs after it has been put in the archive, as with --verify-hash")

	stripCmd.Flags().BoolVarP(&stripForce, "force", "f", false, "also strip partially ingested products")

	removeCmd.Flags().BoolVarP(&removeCatalogueOnly, "catalogue-only", "c", false, "remove the catalogue entry without removing anything from storage")
	removeCmd.Flags().BoolVarP(&removeForce, "force", "f", false, "also remove partially ingested products")

	retrieveCmd.Flags().StringVarP(&retrieveDirectory, "directory", "d", "", "directory to retrieve products into (default: current working directory)")
	retrieveCmd.Flags().BoolVarP(&retrieveLink, "link", "l", false, "retrieve using symbolic links instead of copying")

	updateCmd.Flags().BoolVar(&updateDisableHooks, "disable-hooks", false, "do not run the hooks associated with the action")
	updateCmd.Flags().BoolVar(&updateVerifyHash, "verify-hash", false, "verify the hash of the product after a pull update")
	updateCmd.Flags().BoolVarP(&updateKeep, "keep", "k", false, "do not relocate the product to its plugin-specified location")
}
