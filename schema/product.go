package schema

// Product is one archived artifact: a mandatory Core namespace plus zero
// or more named extension namespaces, each a Struct validated against its
// own registered schema.
type Product struct {
	Core       Struct
	Extensions map[string]Struct
}

// NewProduct builds an empty Product with an initialized Core struct.
func NewProduct() *Product {
	return &Product{Core: Struct{}, Extensions: map[string]Struct{}}
}

// Namespace returns the named namespace's Struct (core for "core" or ""),
// and whether it is present on the product.
func (p *Product) Namespace(name string) (Struct, bool) {
	if name == "" || name == "core" {
		return p.Core, true
	}
	s, ok := p.Extensions[name]
	return s, ok
}

// SetNamespace assigns or replaces an extension namespace's properties.
func (p *Product) SetNamespace(name string, s Struct) {
	if name == "" || name == "core" {
		p.Core = s
		return
	}
	if p.Extensions == nil {
		p.Extensions = map[string]Struct{}
	}
	p.Extensions[name] = s
}

// NamespaceNames returns the names of all extension namespaces present on
// the product, not including "core".
func (p *Product) NamespaceNames() []string {
	names := make([]string, 0, len(p.Extensions))
	for name := range p.Extensions {
		names = append(names, name)
	}
	return names
}
