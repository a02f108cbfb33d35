// Package macro provides ${name} placeholder substitution for preset
// templates and task command arrays.
//
// Two expansion policies exist and must not be mixed up. Expand leaves an
// unresolved ${name} in place so preset templates keep unknown references
// visible. ExpandArgs erases unresolved references and drops arguments that
// become empty, so an undefined macro never produces a spurious empty CLI
// argument.
package macro

import "regexp"

// pattern matches ${name} placeholders. The name may be any run of
// characters up to the closing brace.
var pattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Expand replaces every ${name} occurrence with vars[name] when present.
// Unresolved references are preserved literally.
func Expand(template string, vars map[string]string) string {
	return pattern.ReplaceAllStringFunc(template, func(match string) string {
		name := match[2 : len(match)-1]
		if value, ok := vars[name]; ok {
			return value
		}
		return match
	})
}

// ExpandAll applies Expand to each element of templates.
func ExpandAll(templates []string, vars map[string]string) []string {
	result := make([]string, len(templates))
	for i, tmpl := range templates {
		result[i] = Expand(tmpl, vars)
	}
	return result
}

// expandErase replaces every ${name} occurrence with vars[name], using the
// empty string for unresolved references.
func expandErase(template string, vars map[string]string) string {
	return pattern.ReplaceAllStringFunc(template, func(match string) string {
		name := match[2 : len(match)-1]
		return vars[name]
	})
}

// ExpandArgs expands a command argument array. Unresolved references expand
// to the empty string, and any argument that ends up empty is dropped from
// the result. An argument that mixes literals with an empty macro keeps its
// literal text ("${a}/${b}" with only a empty still yields the slash).
func ExpandArgs(args []string, vars map[string]string) []string {
	result := make([]string, 0, len(args))
	for _, arg := range args {
		expanded := expandErase(arg, vars)
		if expanded == "" {
			continue
		}
		result = append(result, expanded)
	}
	return result
}
