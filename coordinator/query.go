package coordinator

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"eve.evalgo.org/muninn/catalog"
	"eve.evalgo.org/muninn/lang"
	"eve.evalgo.org/muninn/muninnerr"
	"eve.evalgo.org/muninn/schema"
)

// whereEqual builds an analyzed "field == @value" expression against the
// coordinator's catalogue namespaces, used internally wherever the
// original implementation looked a product up by a single exact-match
// property instead of accepting a caller expression.
func (c *Coordinator) whereEqual(field, paramName string, value any) (lang.Node, map[string]any, error) {
	node, err := lang.ParseAndAnalyze(fmt.Sprintf("%s == @%s", field, paramName), &lang.Analyzer{
		Functions:  c.functions,
		Namespaces: c.catalogue.Namespaces(),
		Parameters: map[string]any{paramName: value},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("coordinator: building query: %w", err)
	}
	return node, map[string]any{paramName: value}, nil
}

// getByUUID fetches the single product with the given id, including
// every registered extension namespace, failing with NotFoundError if it
// does not exist.
func (c *Coordinator) getByUUID(ctx context.Context, id uuid.UUID) (*schema.Product, error) {
	where, params, err := c.whereEqual("uuid", "id", id.String())
	if err != nil {
		return nil, err
	}
	products, err := c.catalogue.Search(ctx, catalog.SearchQuery{
		Where:      where,
		Parameters: params,
		Namespaces: c.catalogue.Namespaces().NamespaceNames(),
		Limit:      1,
	})
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return nil, muninnerr.NewNotFoundError("coordinator: product %s not found", id)
	}
	return products[0], nil
}

// findByTypeAndName looks up the (at most one) product of productType
// named name, returning (nil, false, nil) if none exists.
func (c *Coordinator) findByTypeAndName(ctx context.Context, productType, name string) (*schema.Product, bool, error) {
	node, err := lang.ParseAndAnalyze("product_type == @type and physical_name == @name", &lang.Analyzer{
		Functions:  c.functions,
		Namespaces: c.catalogue.Namespaces(),
		Parameters: map[string]any{"type": productType, "name": name},
	})
	if err != nil {
		return nil, false, fmt.Errorf("coordinator: building query: %w", err)
	}
	products, err := c.catalogue.Search(ctx, catalog.SearchQuery{
		Where:      node,
		Parameters: map[string]any{"type": productType, "name": name},
		Namespaces: c.catalogue.Namespaces().NamespaceNames(),
		Limit:      1,
	})
	if err != nil {
		return nil, false, err
	}
	if len(products) == 0 {
		return nil, false, nil
	}
	return products[0], true, nil
}
