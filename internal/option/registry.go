package option

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	oerrors "github.com/opmodel/strata/internal/errors"
)

var segmentPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_-]*$`)

// Registry holds the option schema. It is populated once at startup,
// sealed, and read-only afterwards.
type Registry struct {
	mu      sync.RWMutex
	options map[string]*Option
	sealed  bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{options: make(map[string]*Option)}
}

// Setting configures an option at registration time.
type Setting func(*Option)

// WithDefault sets the option default. The value is normalized against
// the option type during Register.
func WithDefault(v any) Setting {
	return func(o *Option) {
		o.Default = v
		o.HasDefault = true
	}
}

// WithDescription sets the help text.
func WithDescription(desc string) Setting {
	return func(o *Option) {
		o.Description = desc
	}
}

// Register declares an option. An empty strategy selects the type's
// default strategy. Re-registering an identical declaration is a no-op.
func (r *Registry) Register(path string, typ Type, strategy MergeStrategy, settings ...Setting) error {
	if err := validatePath(path); err != nil {
		return oerrors.NewOptionError(oerrors.ErrValidation, path, "", "%v", err)
	}
	if strategy == "" {
		strategy = typ.DefaultStrategy()
	}
	if strategy != typ.DefaultStrategy() {
		return oerrors.NewOptionError(oerrors.ErrTypeMismatch, path, "",
			"strategy %s is incompatible with type %s (want %s)", strategy, typ, typ.DefaultStrategy())
	}

	opt := &Option{Path: path, Type: typ, Strategy: strategy}
	for _, s := range settings {
		s(opt)
	}
	if opt.HasDefault {
		def, err := Normalize(typ, opt.Default)
		if err != nil {
			return oerrors.NewOptionError(oerrors.ErrTypeMismatch, path, "", "default: %v", err)
		}
		opt.Default = def
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return oerrors.NewOptionError(oerrors.ErrValidation, path, "", "registry is sealed")
	}

	if existing, ok := r.options[path]; ok {
		if sameDeclaration(existing, opt) {
			return nil
		}
		return oerrors.NewOptionError(oerrors.ErrDuplicateOption, path, "",
			"already registered as %s", existing.Type)
	}

	for other := range r.options {
		if strings.HasPrefix(other, path+".") || strings.HasPrefix(path, other+".") {
			return oerrors.NewOptionError(oerrors.ErrDuplicateOption, path, "",
				"overlaps registered option %s", other)
		}
	}

	r.options[path] = opt
	return nil
}

func sameDeclaration(a, b *Option) bool {
	return a.Type == b.Type && a.Strategy == b.Strategy &&
		a.HasDefault == b.HasDefault && Equal(a.Default, b.Default)
}

func validatePath(path string) error {
	if path == "" {
		return fmt.Errorf("empty option path")
	}
	for _, seg := range strings.Split(path, ".") {
		if !segmentPattern.MatchString(seg) {
			return fmt.Errorf("invalid path segment %q", seg)
		}
	}
	return nil
}

// Lookup returns the option registered at path.
func (r *Registry) Lookup(path string) (*Option, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if opt, ok := r.options[path]; ok {
		return opt, nil
	}
	return nil, oerrors.NewOptionError(oerrors.ErrUnknownOption, path, "", "")
}

// IsNamespace reports whether path is a strict prefix of a registered option.
func (r *Registry) IsNamespace(path string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	prefix := path + "."
	for p := range r.options {
		if path == "" || strings.HasPrefix(p, prefix) {
			return true
		}
	}
	return false
}

// MapAncestor returns the map-typed option that path descends into, if any.
// For "outputs.image" with a registered map option "outputs" it returns the
// option and "image".
func (r *Registry) MapAncestor(path string) (*Option, string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for i := strings.LastIndex(path, "."); i > 0; i = strings.LastIndex(path[:i], ".") {
		if opt, ok := r.options[path[:i]]; ok {
			if opt.Type.Kind == KindMap {
				return opt, path[i+1:], true
			}
			return nil, "", false
		}
	}
	return nil, "", false
}

// Seal freezes the registry.
func (r *Registry) Seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}

// Sealed reports whether Seal was called.
func (r *Registry) Sealed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sealed
}

// Options returns all options sorted by path.
func (r *Registry) Options() []*Option {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Option, 0, len(r.options))
	for _, opt := range r.options {
		out = append(out, opt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}
