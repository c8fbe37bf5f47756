// Package patch implements the SCIM PATCH engine (RFC 7644 §3.5.2):
// parsing path expressions and applying add/remove/replace operations to
// a JSON resource document. Operations run against a working copy; if any
// operation fails the whole request is rejected and the caller's original
// document is left untouched.
package patch

import (
	"encoding/json"
	"strings"

	"github.com/scimware/scim-server/pkg/errors"
	"github.com/scimware/scim-server/pkg/schema"

	jsonpatch "github.com/evanphx/json-patch"
)

// Op is one PATCH operation's verb.
type Op string

const (
	OpAdd     Op = "add"
	OpRemove  Op = "remove"
	OpReplace Op = "replace"
)

// Operation is one element of a PATCH request's Operations array.
type Operation struct {
	Op    Op          `json:"op"`
	Path  string      `json:"path,omitempty"`
	Value interface{} `json:"value,omitempty"`
}

// Document is the top-level PATCH request body.
type Document struct {
	Schemas    []string    `json:"schemas,omitempty"`
	Operations []Operation `json:"Operations"`
}

// AttributeResolver looks up an attribute definition by schema URN (""
// meaning the resource's base schema) and top-level attribute name, so the
// engine can enforce mutability without importing the schema registry's
// tenant/active-schema bookkeeping.
type AttributeResolver func(schemaURN, attrName string) *schema.AttributeDefinition

// Apply runs every operation in doc against a deep copy of resource in
// order, returning the resulting document. On any failure the returned
// error is non-nil and the caller's resource is never mutated.
func Apply(resource map[string]interface{}, doc Document, resolve AttributeResolver) (map[string]interface{}, error) {
	working, err := deepCopy(resource)
	if err != nil {
		return nil, err
	}

	for i, op := range doc.Operations {
		verb := Op(strings.ToLower(string(op.Op)))

		if err := applyOne(working, verb, op.Path, op.Value, resolve); err != nil {
			return nil, operationError(i, verb, err)
		}
	}

	return working, nil
}

// operationError passes mutability and path errors through unchanged so
// callers can still classify them, and wraps anything else as a validation
// failure naming the operation that caused it.
func operationError(index int, verb Op, err error) error {
	if errors.IsMutabilityError(err) || errors.IsInvalidPathError(err) {
		return err
	}

	return errors.NewValidationError("PATCH operation %d (%s): %v", index, verb, err)
}

func applyOne(working map[string]interface{}, verb Op, rawPath string, value interface{}, resolve AttributeResolver) error {
	var expr *PathExpr

	if rawPath != "" {
		parsed, err := ParsePath(rawPath)
		if err != nil {
			return err
		}

		expr = parsed

		if err := checkMutability(expr, resolve); err != nil {
			return err
		}
	}

	switch verb {
	case OpAdd:
		if expr == nil {
			return mergeTopLevel(working, value, resolve)
		}

		return applyAdd(working, expr, value, resolve)
	case OpRemove:
		if expr == nil {
			return errors.NewNoTargetError("remove requires a path")
		}

		return applyRemove(working, expr)
	case OpReplace:
		if expr == nil {
			return mergeTopLevel(working, value, resolve)
		}

		return applyReplace(working, expr, value, resolve)
	default:
		return errors.NewValidationError("unsupported PATCH op %q", verb)
	}
}

// checkMutability rejects any operation whose normalized, case-insensitive
// path names a readOnly attribute.
func checkMutability(expr *PathExpr, resolve AttributeResolver) error {
	if resolve == nil {
		return nil
	}

	def := resolve(expr.SchemaURN, expr.Attribute)
	if def == nil {
		return nil
	}

	if def.Mutability == schema.MutabilityReadOnly {
		return errors.NewMutabilityError("attribute %q is read-only", expr.Attribute)
	}

	if expr.SubAttribute != "" {
		if sub := def.SubAttribute(expr.SubAttribute); sub != nil && sub.Mutability == schema.MutabilityReadOnly {
			return errors.NewMutabilityError("attribute %q is read-only", expr.Attribute+"."+expr.SubAttribute)
		}
	}

	return nil
}

// container resolves the map an expr's Attribute lives directly under:
// the document root, or (for a schema-URN-qualified path) the nested
// extension namespace object, created on demand when create is true.
func container(working map[string]interface{}, expr *PathExpr, create bool) (map[string]interface{}, error) {
	if expr.SchemaURN == "" {
		return working, nil
	}

	existing, ok := working[expr.SchemaURN]
	if !ok {
		if !create {
			return nil, errors.NewNoTargetError("schema extension %q not present", expr.SchemaURN)
		}

		m := map[string]interface{}{}
		working[expr.SchemaURN] = m

		return m, nil
	}

	m, ok := existing.(map[string]interface{})
	if !ok {
		return nil, errors.NewInvalidPathError("schema extension %q is not an object", expr.SchemaURN)
	}

	return m, nil
}

func isMultiValued(expr *PathExpr, resolve AttributeResolver) bool {
	if resolve == nil {
		return false
	}

	def := resolve(expr.SchemaURN, expr.Attribute)

	return def != nil && def.MultiValued
}

func applyAdd(working map[string]interface{}, expr *PathExpr, value interface{}, resolve AttributeResolver) error {
	c, err := container(working, expr, true)
	if err != nil {
		return err
	}

	if expr.Filter != nil {
		return addToFiltered(c, expr, value)
	}

	if expr.SubAttribute != "" {
		sub, ok := c[expr.Attribute].(map[string]interface{})
		if !ok {
			sub = map[string]interface{}{}
			c[expr.Attribute] = sub
		}

		sub[expr.SubAttribute] = value

		return nil
	}

	if isMultiValued(expr, resolve) {
		existing, _ := c[expr.Attribute].([]interface{})
		c[expr.Attribute] = append(existing, toElements(value)...)

		return nil
	}

	c[expr.Attribute] = value

	return nil
}

func addToFiltered(c map[string]interface{}, expr *PathExpr, value interface{}) error {
	items, ok := c[expr.Attribute].([]interface{})
	if !ok {
		return errors.NewNoTargetError("attribute %q has no elements to match", expr.Attribute)
	}

	matched := false

	for _, item := range items {
		element, ok := item.(map[string]interface{})
		if !ok || !expr.Filter.Matches(element) {
			continue
		}

		matched = true

		if expr.SubAttribute != "" {
			element[expr.SubAttribute] = value
			continue
		}

		if valueMap, ok := value.(map[string]interface{}); ok {
			for k, v := range valueMap {
				element[k] = v
			}
		}
	}

	if !matched {
		return errors.NewNoTargetError("no element of %q matches the filter", expr.Attribute)
	}

	return nil
}

func applyReplace(working map[string]interface{}, expr *PathExpr, value interface{}, resolve AttributeResolver) error {
	c, err := container(working, expr, false)
	if err != nil {
		return err
	}

	if expr.Filter != nil {
		return addToFiltered(c, expr, value)
	}

	if expr.SubAttribute != "" {
		sub, ok := c[expr.Attribute].(map[string]interface{})
		if !ok {
			return errors.NewNoTargetError("attribute %q is not an object", expr.Attribute)
		}

		sub[expr.SubAttribute] = value

		return nil
	}

	if _, exists := c[expr.Attribute]; !exists {
		return errors.NewNoTargetError("attribute %q does not exist", expr.Attribute)
	}

	c[expr.Attribute] = value

	return nil
}

func applyRemove(working map[string]interface{}, expr *PathExpr) error {
	c, err := container(working, expr, false)
	if err != nil {
		return err
	}

	if expr.Filter != nil {
		return removeFiltered(c, expr)
	}

	if expr.SubAttribute != "" {
		sub, ok := c[expr.Attribute].(map[string]interface{})
		if !ok {
			return errors.NewNoTargetError("attribute %q is not an object", expr.Attribute)
		}

		deleteFold(sub, expr.SubAttribute)

		return nil
	}

	if _, exists := c[expr.Attribute]; !exists {
		return errors.NewNoTargetError("attribute %q does not exist", expr.Attribute)
	}

	delete(c, expr.Attribute)

	return nil
}

func removeFiltered(c map[string]interface{}, expr *PathExpr) error {
	items, ok := c[expr.Attribute].([]interface{})
	if !ok {
		return errors.NewNoTargetError("attribute %q has no elements to match", expr.Attribute)
	}

	kept := make([]interface{}, 0, len(items))
	removed := 0

	for _, item := range items {
		element, ok := item.(map[string]interface{})
		if ok && expr.Filter.Matches(element) {
			if expr.SubAttribute != "" {
				deleteFold(element, expr.SubAttribute)
				kept = append(kept, element)

				continue
			}

			removed++

			continue
		}

		kept = append(kept, item)
	}

	if removed == 0 && expr.SubAttribute == "" {
		return errors.NewNoTargetError("no element of %q matches the filter", expr.Attribute)
	}

	c[expr.Attribute] = kept

	return nil
}

// mergeTopLevel implements the "no path" add/replace case: each key of
// value is added/replaced at the top level (or, for replace, on a
// per-key-replace basis, which is the same merge semantics). Delegates to
// evanphx/json-patch's RFC 7396 JSON Merge Patch implementation, since
// that's exactly what this case is.
func mergeTopLevel(working map[string]interface{}, value interface{}, resolve AttributeResolver) error {
	valueMap, ok := value.(map[string]interface{})
	if !ok {
		return errors.NewInvalidPathError("add/replace without a path requires an object value")
	}

	for name := range valueMap {
		if resolve == nil {
			continue
		}

		if def := resolve("", name); def != nil && def.Mutability == schema.MutabilityReadOnly {
			return errors.NewMutabilityError("attribute %q is read-only", name)
		}
	}

	currentJSON, err := json.Marshal(working)
	if err != nil {
		return errors.NewValidationError("encoding working document: %v", err)
	}

	patchJSON, err := json.Marshal(valueMap)
	if err != nil {
		return errors.NewValidationError("encoding patch value: %v", err)
	}

	mergedJSON, err := jsonpatch.MergePatch(currentJSON, patchJSON)
	if err != nil {
		return errors.NewValidationError("applying merge patch: %v", err)
	}

	var merged map[string]interface{}
	if err := json.Unmarshal(mergedJSON, &merged); err != nil {
		return errors.NewValidationError("decoding merged document: %v", err)
	}

	for k := range working {
		delete(working, k)
	}

	for k, v := range merged {
		working[k] = v
	}

	return nil
}

func toElements(value interface{}) []interface{} {
	if arr, ok := value.([]interface{}); ok {
		return arr
	}

	return []interface{}{value}
}

func deleteFold(m map[string]interface{}, key string) {
	if _, ok := m[key]; ok {
		delete(m, key)
		return
	}

	for k := range m {
		if strings.EqualFold(k, key) {
			delete(m, k)
			return
		}
	}
}

func deepCopy(resource map[string]interface{}) (map[string]interface{}, error) {
	data, err := json.Marshal(resource)
	if err != nil {
		return nil, errors.NewValidationError("encoding resource for PATCH: %v", err)
	}

	var out map[string]interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, errors.NewValidationError("decoding resource for PATCH: %v", err)
	}

	return out, nil
}
