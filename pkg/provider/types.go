// Package provider implements the resource provider: the
// component that composes Storage, the Schema Registry, the Version
// Engine, and the PATCH Engine into SCIM CRUD semantics (uniqueness,
// metadata stamping, readonly enforcement, conditional operations).
package provider

import (
	"github.com/scimware/scim-server/pkg/schema"
)

// ResourceType binds a resource type name ("User", "Group", ...) to its
// base schema, any active extension schemas, and the URL path segment used
// in meta.location.
type ResourceType struct {
	Name       string
	Plural     string
	Schema     *schema.Schema
	Extensions []*schema.Schema
}

// schemaForURN returns the base schema or a registered extension matching
// urn, or nil.
func (rt *ResourceType) schemaForURN(urn string) *schema.Schema {
	if urn == "" || urn == rt.Schema.ID {
		return rt.Schema
	}

	for _, ext := range rt.Extensions {
		if ext.ID == urn {
			return ext
		}
	}

	return nil
}

// Status is the tri-state outcome of a conditional Provider operation.
type Status int

const (
	// StatusSuccess indicates the operation completed as requested.
	StatusSuccess Status = iota
	// StatusVersionMismatch indicates a conditional operation's
	// expected_version didn't match the resource's current version.
	StatusVersionMismatch
	// StatusNotFound indicates the targeted resource doesn't exist.
	StatusNotFound
)

// Result is the outcome of a conditional create/update/patch/delete call.
// Unconditional calls (no expected_version supplied) never return
// StatusVersionMismatch: with no expectation stated there is nothing to
// mismatch against.
type Result struct {
	Status          Status
	Resource        map[string]interface{}
	ExpectedVersion string
	CurrentVersion  string
}
