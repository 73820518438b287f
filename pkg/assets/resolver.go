package assets

// Resolver maps a logical asset name to the name it is stored under.
// *Manifest implements Resolver.
type Resolver interface {
	Resolve(name string) string
}

// passthrough stores every asset under its logical name (development mode).
type passthrough struct{}

func (passthrough) Resolve(name string) string { return name }

// NewPassthroughResolver returns a Resolver that leaves names unchanged.
func NewPassthroughResolver() Resolver {
	return passthrough{}
}

// Catalog turns server-enumerated asset names into Descriptors.
// It holds no per-request state and may be shared.
type Catalog struct {
	resolver Resolver
}

// NewCatalog creates a Catalog. A nil resolver stores assets under their
// logical names.
func NewCatalog(r Resolver) *Catalog {
	if r == nil {
		r = passthrough{}
	}
	return &Catalog{resolver: r}
}

// Describe builds fresh descriptors for names, in order. Each call returns new
// values; callers build one set per request.
func (c *Catalog) Describe(names ...string) ([]Descriptor, error) {
	out := make([]Descriptor, 0, len(names))
	for _, name := range names {
		d, err := c.describe(name)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func (c *Catalog) describe(name string) (Descriptor, error) {
	clean, ok := CleanName(name)
	if !ok {
		return Descriptor{}, &NameError{Name: name}
	}
	stored, ok := CleanName(c.resolver.Resolve(clean))
	if !ok {
		return Descriptor{}, &NameError{Name: name}
	}
	return Descriptor{
		publicPath:  "/" + stored,
		storagePath: stored,
		contentType: ContentTypeFor(clean),
	}, nil
}
