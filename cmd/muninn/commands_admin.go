package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"eve.evalgo.org/muninn/coordinator"
	"eve.evalgo.org/muninn/schema"
)

var prepareForce bool

var prepareCmd = &cobra.Command{
	Use:   "prepare ARCHIVE",
	Short: "Prepare a muninn archive's catalogue and storage",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := shutdownContext()
		defer cancel()
		a, err := openArchive(ctx, args[0], cmd.Flags())
		if err != nil {
			return err
		}
		return a.coordinator.Prepare(ctx, prepareForce)
	},
}

var destroyForce bool

var destroyCmd = &cobra.Command{
	Use:   "destroy ARCHIVE",
	Short: "Destroy a muninn archive's catalogue and storage",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := shutdownContext()
		defer cancel()
		a, err := openArchive(ctx, args[0], cmd.Flags())
		if err != nil {
			return err
		}
		if !destroyForce {
			fmt.Printf("This will permanently remove archive %q and everything in it. Re-run with --force to proceed.\n", args[0])
			return nil
		}
		return a.coordinator.Destroy(ctx)
	},
}

var hashType string

var hashCmd = &cobra.Command{
	Use:   "hash",
	Short: "Compute or verify product hashes",
}

var hashCalcCmd = &cobra.Command{
	Use:   "calc PATH...",
	Short: "Calculate the hash of one or more paths",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		digest, err := coordinator.ProductHash(args, hashType)
		if err != nil {
			return err
		}
		fmt.Println(digest)
		return nil
	},
}

var hashVerifyCmd = &cobra.Command{
	Use:   "verify ARCHIVE EXPRESSION",
	Short: "Verify the hash of products matching an expression",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := shutdownContext()
		defer cancel()
		a, err := openArchive(ctx, args[0], cmd.Flags())
		if err != nil {
			return err
		}
		products, err := selectProducts(ctx, a, args[1], "is_defined(archive_path)")
		if err != nil {
			return err
		}
		failed := 0
		err = forEach(ctx, products, parallelFlag, processesFlag, func(ctx context.Context, p *schema.Product) error {
			if err := a.coordinator.VerifyHash(ctx, p); err != nil {
				logger.Errorf("%v: hash verification failed: %s", p.Core["uuid"], err)
				failed++
				return nil
			}
			fmt.Printf("%v: ok\n", p.Core["uuid"])
			return nil
		})
		if err != nil {
			return err
		}
		if failed > 0 {
			return fmt.Errorf("muninn: %d product(s) failed hash verification", failed)
		}
		return nil
	},
}

var (
	exportDirectory   string
	exportFormat      string
	exportListFormats bool
)

var exportCmd = &cobra.Command{
	Use:   "export ARCHIVE EXPRESSION",
	Short: "Export products from a muninn archive",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := shutdownContext()
		defer cancel()
		a, err := openArchive(ctx, args[0], cmd.Flags())
		if err != nil {
			return err
		}
		products, err := selectProducts(ctx, a, args[1], "is_defined(archive_path)")
		if err != nil {
			return err
		}

		if exportListFormats {
			seen := map[string]bool{}
			for _, p := range products {
				for _, f := range a.coordinator.ExportFormats(p) {
					if !seen[f] {
						seen[f] = true
						fmt.Println(f)
					}
				}
			}
			return nil
		}

		target := exportDirectory
		if target == "" {
			target, err = os.Getwd()
			if err != nil {
				return err
			}
		}
		return forEach(ctx, products, parallelFlag, processesFlag, func(ctx context.Context, p *schema.Product) error {
			paths, err := a.coordinator.Export(ctx, p, exportFormat, target)
			if err != nil {
				logger.Errorf("%v: unable to export product: %s", p.Core["uuid"], err)
				return nil
			}
			for _, path := range paths {
				fmt.Println(path)
			}
			return nil
		})
	},
}

func init() {
	prepareCmd.Flags().BoolVarP(&prepareForce, "force", "f", false, "prepare even if the catalogue or storage already exists")

	destroyCmd.Flags().BoolVarP(&destroyForce, "force", "f", false, "skip the confirmation prompt")

	hashCmd.PersistentFlags().StringVar(&hashType, "hash-type", "sha1", "hash algorithm to use (md5, sha1, sha256 or sha512)")
	hashCmd.AddCommand(hashCalcCmd, hashVerifyCmd)

	exportCmd.Flags().StringVarP(&exportDirectory, "directory", "d", "", "directory to export products into (default: current working directory)")
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "", "export format supported by the product's type plugin")
	exportCmd.Flags().BoolVarP(&exportListFormats, "list-formats", "l", false, "list the export formats supported by matching products")
}
