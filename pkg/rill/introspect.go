package rill

import (
	"math"
	"sort"
	"strings"

	"github.com/samber/lo"

	"github.com/rcrsr/rill/internal/interp"
)

// ParamInfo describes one parameter of a registered function.
type ParamInfo struct {
	Name        string
	Type        string
	Description string
	HasDefault  bool
}

// FunctionInfo describes a registered function for introspection and
// documentation tooling.
type FunctionInfo struct {
	Name        string
	Params      []ParamInfo
	Description string
	ReturnType  string
}

// GetFunctions lists every registered function, sorted by name. Script
// and raw callables report return type "any".
func GetFunctions(ctx *Context) []FunctionInfo {
	registry := ctx.Functions()
	names := lo.Keys(registry)
	sort.Strings(names)

	out := make([]FunctionInfo, 0, len(names))
	for _, name := range names {
		info := FunctionInfo{Name: name, ReturnType: "any"}
		switch c := registry[name].(type) {
		case *interp.ApplicationCallable:
			info.Description = c.Description
			if c.ReturnType != "" {
				info.ReturnType = c.ReturnType
			}
			for _, p := range c.Params {
				info.Params = append(info.Params, ParamInfo{
					Name:        p.Name,
					Type:        p.Type,
					Description: p.Description,
					HasDefault:  p.HasDefault,
				})
			}
		case *interp.ScriptCallable:
			for _, p := range c.Params {
				info.Params = append(info.Params, ParamInfo{
					Name:       p.Name,
					Type:       p.TypeName,
					HasDefault: p.Default != nil,
				})
			}
		}
		out = append(out, info)
	}
	return out
}

// DocumentationCoverage summarizes how much of the registry is
// documented.
type DocumentationCoverage struct {
	Total      int
	Documented int
	Percentage float64
}

// GetDocumentationCoverage reports documentation coverage over the
// host-registered functions. A function counts as documented only when
// it and every one of its parameters carry a non-whitespace
// description. An empty registry is 100% covered; the percentage is
// rounded to two decimals.
func GetDocumentationCoverage(ctx *Context) DocumentationCoverage {
	var hosted []*interp.ApplicationCallable
	for _, c := range ctx.Functions() {
		if app, ok := c.(*interp.ApplicationCallable); ok {
			hosted = append(hosted, app)
		}
	}

	cov := DocumentationCoverage{Total: len(hosted)}
	if cov.Total == 0 {
		cov.Percentage = 100
		return cov
	}

	for _, fn := range hosted {
		if strings.TrimSpace(fn.Description) == "" {
			continue
		}
		documented := true
		for _, p := range fn.Params {
			if strings.TrimSpace(p.Description) == "" {
				documented = false
				break
			}
		}
		if documented {
			cov.Documented++
		}
	}

	cov.Percentage = math.Round(float64(cov.Documented)/float64(cov.Total)*10000) / 100
	return cov
}
