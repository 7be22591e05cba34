package patterns

import (
	"fmt"
	"regexp"
)

// Registry is the compiled, immutable set of detection patterns the gateway
// runs with. It is built once at startup; a malformed definition aborts
// construction so the process never serves with a partial pattern set.
type Registry struct {
	pii          []PIIPattern
	injection    []InjectionPattern
	piiSet       Set
	injectionSet Set
}

// Build compiles the pattern definitions selected by the two set names.
func Build(piiSet, injectionSet string) (*Registry, error) {
	ps, err := ParseSet(piiSet)
	if err != nil {
		return nil, fmt.Errorf("pii pattern set: %w", err)
	}
	is, err := ParseSet(injectionSet)
	if err != nil {
		return nil, fmt.Errorf("injection pattern set: %w", err)
	}

	pii, err := compilePII(piiDefinitions(), ps)
	if err != nil {
		return nil, err
	}
	injection, err := compileInjection(injectionDefinitions(), is)
	if err != nil {
		return nil, err
	}

	return &Registry{
		pii:          pii,
		injection:    injection,
		piiSet:       ps,
		injectionSet: is,
	}, nil
}

// PII returns the compiled sensitive-data patterns for the configured set,
// in stable declaration order. The slice is shared; callers must not modify it.
func (r *Registry) PII() []PIIPattern {
	return r.pii
}

// Injection returns the compiled technique signatures for the configured set,
// in stable declaration order. The slice is shared; callers must not modify it.
func (r *Registry) Injection() []InjectionPattern {
	return r.injection
}

// PIISet returns the sensitive-data pattern set the registry was built with.
func (r *Registry) PIISet() Set {
	return r.piiSet
}

// InjectionSet returns the injection pattern set the registry was built with.
func (r *Registry) InjectionSet() Set {
	return r.injectionSet
}

func compilePII(defs []PIIPattern, set Set) ([]PIIPattern, error) {
	out := make([]PIIPattern, 0, len(defs))
	for _, def := range defs {
		if !set.covers(def.MinSet) {
			continue
		}
		re, err := regexp.Compile(def.Expr)
		if err != nil {
			return nil, fmt.Errorf("compile pii pattern %q: %w", def.ID, err)
		}
		def.Regexp = re
		out = append(out, def)
	}
	return out, nil
}

func compileInjection(defs []InjectionPattern, set Set) ([]InjectionPattern, error) {
	out := make([]InjectionPattern, 0, len(defs))
	for _, def := range defs {
		if !set.covers(def.MinSet) {
			continue
		}
		re, err := regexp.Compile(def.Expr)
		if err != nil {
			return nil, fmt.Errorf("compile injection pattern %q: %w", def.ID, err)
		}
		def.Regexp = re
		out = append(out, def)
	}
	return out, nil
}
