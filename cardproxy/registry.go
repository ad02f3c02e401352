package cardproxy

// variantFactories lists every known personality constructor, keyed by
// a short identifier a caller (typically the CLI) selects by name.
var variantFactories = map[string]func() Variant{
	"egk":       func() Variant { return &EGK{} },
	"hba":       func() Variant { return &HBA{} },
	"smc-b":     func() Variant { return &SMCB{} },
	"smc-k":     func() Variant { return &SMCK{} },
	"konnektor": func() Variant { return &Connector{} },
}

// NewVariant constructs the named personality, or reports
// KindUnknownCardType if name isn't registered.
func NewVariant(name string) (Variant, error) {
	factory, ok := variantFactories[name]
	if !ok {
		return nil, &Error{Kind: KindUnknownCardType, Op: "NewVariant", Err: errUnknownVariant(name)}
	}
	return factory(), nil
}

// Variants lists every registered personality name.
func Variants() []string {
	names := make([]string, 0, len(variantFactories))
	for name := range variantFactories {
		names = append(names, name)
	}
	return names
}

type errUnknownVariant string

func (e errUnknownVariant) Error() string { return "unknown card variant: " + string(e) }
