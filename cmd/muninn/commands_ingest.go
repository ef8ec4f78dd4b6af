package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"eve.evalgo.org/muninn/coordinator"
)

var (
	ingestProductType  string
	ingestTags         []string
	ingestLink         bool
	ingestCatalogOnly  bool
	ingestKeep         bool
	ingestForce        bool
	ingestVerifyHash   bool
	ingestExclude      []string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest ARCHIVE PATH...",
	Short: "Ingest products into a muninn archive",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := shutdownContext()
		defer cancel()
		a, err := openArchive(ctx, args[0], cmd.Flags())
		if err != nil {
			return err
		}

		return forEach(ctx, args[1:], parallelFlag, processesFlag, func(ctx context.Context, path string) error {
			abs, err := filepath.Abs(path)
			if err != nil {
				return err
			}
			paths := []string{abs}
			if ingestExclude != nil {
				paths = filterExcluded(paths, ingestExclude)
			}
			product, err := a.coordinator.Ingest(ctx, paths, coordinator.IngestOptions{
				ProductType:     ingestProductType,
				Tags:            ingestTags,
				Force:           ingestForce,
				IngestProduct:   !ingestCatalogOnly,
				UseCurrentPath:  ingestKeep,
				UseSymlinks:     ingestLink,
				VerifyHash:      ingestVerifyHash,
			})
			if err != nil {
				logger.Errorf("%s: unable to ingest product: %s", path, err)
				return nil
			}
			fmt.Println(product.Core["uuid"])
			return nil
		})
	},
}

var (
	attachProductType      string
	attachLink             bool
	attachKeep             bool
	attachForce            bool
	attachVerifyHash       bool
	attachVerifyHashBefore bool
	attachExclude          []string
)

var attachCmd = &cobra.Command{
	Use:   "attach ARCHIVE PATH...",
	Short: "Attach product files to an existing metadata entry in a muninn archive",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := shutdownContext()
		defer cancel()
		a, err := openArchive(ctx, args[0], cmd.Flags())
		if err != nil {
			return err
		}

		return forEach(ctx, args[1:], parallelFlag, processesFlag, func(ctx context.Context, path string) error {
			abs, err := filepath.Abs(path)
			if err != nil {
				return err
			}
			paths := []string{abs}
			if attachExclude != nil {
				paths = filterExcluded(paths, attachExclude)
			}
			name := filepath.Base(abs)
			if err := a.coordinator.Attach(ctx, attachProductType, name, paths, attachForce, attachKeep, false,
				attachLink, attachVerifyHashBefore, attachVerifyHash); err != nil {
				logger.Errorf("%s: unable to attach product: %s", path, err)
			}
			return nil
		})
	},
}

func filterExcluded(paths []string, patterns []string) []string {
	var out []string
	for _, p := range paths {
		excluded := false
		for _, pattern := range patterns {
			if ok, _ := filepath.Match(pattern, filepath.Base(p)); ok {
				excluded = true
				break
			}
		}
		if !excluded {
			out = append(out, p)
		}
	}
	return out
}

func init() {
	ingestCmd.Flags().StringVarP(&ingestProductType, "product-type", "t", "", "force the product type of products to ingest")
	ingestCmd.Flags().StringArrayVarP(&ingestTags, "tag", "T", nil, "tag to set on the product")
	ingestCmd.Flags().BoolVarP(&ingestLink, "link", "l", false, "ingest symbolic links to each product")
	ingestCmd.Flags().BoolVarP(&ingestCatalogOnly, "catalogue-only", "c", false, "only ingest product properties")
	ingestCmd.Flags().BoolVarP(&ingestKeep, "keep", "k", false, "ingest product using its current path")
	ingestCmd.Flags().BoolVarP(&ingestForce, "force", "f", false, "remove any existing product with the same type and name first")
	ingestCmd.Flags().BoolVar(&ingestVerifyHash, "verify-hash", false, "verify the hash of the product after it has been put in the archive")
	ingestCmd.Flags().StringArrayVarP(&ingestExclude, "exclude", "e", nil, "exclude files/directories whose basename matches PATTERN")

	attachCmd.Flags().StringVarP(&attachProductType, "product-type", "t", "", "force the product type of products to attach")
	attachCmd.Flags().BoolVarP(&attachLink, "link", "l", false, "attach symbolic links to each product")
	attachCmd.Flags().BoolVarP(&attachKeep, "keep", "k", false, "attach product using its current path")
	attachCmd.Flags().BoolVarP(&attachForce, "force", "f", false, "skip matching size check before attaching products")
	attachCmd.Flags().BoolVar(&attachVerifyHash, "verify-hash", false, "verify the hash of the product after it has been put in the archive")
	attachCmd.Flags().BoolVar(&attachVerifyHashBefore, "verify-hash-before", false, "verify the hash of the product before it is put in the archive")
	attachCmd.Flags().StringArrayVarP(&attachExclude, "exclude", "e", nil, "exclude files/directories whose basename matches PATTERN")
}
