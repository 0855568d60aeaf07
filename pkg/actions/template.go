package actions

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/stackflow-io/stackflow/pkg/models"
)

// TemplateValue is the resolved form of one step parameter. Plain values
// are ready to use; SecureRef values stay ciphertext until the consuming
// action opens them, so plaintext secrets never sit in variable storage.
type TemplateValue interface {
	isTemplateValue()
}

// Plain is an ordinary resolved parameter value
type Plain struct {
	Value interface{}
}

// SecureRef is a still-encrypted secret awaiting point-of-use decryption
type SecureRef struct {
	Value models.SecureValue
}

func (Plain) isTemplateValue()     {}
func (SecureRef) isTemplateValue() {}

var templatePattern = regexp.MustCompile(`\{\{\s*([a-zA-Z_][a-zA-Z0-9_.]*)\s*\}\}`)

// ResolveTemplates substitutes {{name}} references in params from the
// variable bag. A value that is exactly one reference keeps the variable's
// type; references embedded in larger strings interpolate as text. Secure
// wrappers are carried through unopened in either position.
func ResolveTemplates(params map[string]interface{}, variables map[string]interface{}) (map[string]interface{}, error) {
	if params == nil {
		return nil, nil
	}
	resolved := make(map[string]interface{}, len(params))
	for key, raw := range params {
		value, err := resolveValue(raw, variables)
		if err != nil {
			return nil, fmt.Errorf("parameter %q: %w", key, err)
		}
		resolved[key] = value
	}
	return resolved, nil
}

func resolveValue(raw interface{}, variables map[string]interface{}) (interface{}, error) {
	switch v := raw.(type) {
	case string:
		return resolveString(v, variables)
	case map[string]interface{}:
		if models.IsSecureValue(v) {
			return v, nil
		}
		out := make(map[string]interface{}, len(v))
		for k, nested := range v {
			resolved, err := resolveValue(nested, variables)
			if err != nil {
				return nil, err
			}
			out[k] = resolved
		}
		return out, nil
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, nested := range v {
			resolved, err := resolveValue(nested, variables)
			if err != nil {
				return nil, err
			}
			out[i] = resolved
		}
		return out, nil
	default:
		return raw, nil
	}
}

func resolveString(s string, variables map[string]interface{}) (interface{}, error) {
	// A whole-string reference keeps the variable's native type, which
	// is how numbers, lists and secure wrappers travel through params.
	if m := templatePattern.FindStringSubmatch(s); m != nil && m[0] == s {
		return lookupVariable(m[1], variables)
	}

	var resolveErr error
	out := templatePattern.ReplaceAllStringFunc(s, func(match string) string {
		name := templatePattern.FindStringSubmatch(match)[1]
		value, err := lookupVariable(name, variables)
		if err != nil {
			resolveErr = err
			return match
		}
		if models.IsSecureValue(value) {
			resolveErr = fmt.Errorf("secure variable %q cannot be interpolated into a string", name)
			return match
		}
		return fmt.Sprintf("%v", value)
	})
	if resolveErr != nil {
		return nil, resolveErr
	}
	return out, nil
}

func lookupVariable(name string, variables map[string]interface{}) (interface{}, error) {
	name = strings.TrimPrefix(name, "variables.")
	value, ok := variables[name]
	if !ok {
		return nil, fmt.Errorf("unknown variable %q", name)
	}
	return value, nil
}

// Classify lifts a resolved parameter into the TemplateValue sum: secure
// wrappers become SecureRef, everything else Plain.
func Classify(value interface{}) TemplateValue {
	if sv, ok := models.SecureValueFromAny(value); ok {
		return SecureRef{Value: sv}
	}
	return Plain{Value: value}
}
