package provider

import (
	"time"

	"github.com/scimware/scim-server/pkg/errors"
	"github.com/scimware/scim-server/pkg/tenant"
	"github.com/scimware/scim-server/pkg/version"

	"github.com/google/uuid"
)

// newID returns a freshly generated resource ID.
func newID() string {
	return uuid.New().String()
}

// nowRFC3339 returns the current instant formatted as the ISO-8601 string
// SCIM's dateTime attributes (including meta.created/lastModified) require.
func nowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// rejectClientMeta rejects a create payload that supplies id or readonly
// meta sub-attributes; both are server-assigned.
func rejectClientMeta(data map[string]interface{}) error {
	if _, ok := data["id"]; ok {
		return errors.NewValidationErrorWithPath("id", "id must not be supplied by the client on create")
	}

	if _, ok := data["meta"]; ok {
		return errors.NewValidationErrorWithPath("meta", "meta must not be supplied by the client on create")
	}

	return nil
}

// ensureSchemas guarantees the schemas attribute names the resource type's
// base schema. When the client omitted it entirely, it is stamped with the
// base URN plus the URN of every extension namespace actually present in
// the document; when supplied, it must already include the base URN.
func ensureSchemas(data map[string]interface{}, rt *ResourceType) error {
	raw, ok := data["schemas"]
	if !ok {
		urns := []interface{}{rt.Schema.ID}

		for _, ext := range rt.Extensions {
			if _, present := data[ext.ID]; present {
				urns = append(urns, ext.ID)
			}
		}

		data["schemas"] = urns

		return nil
	}

	declared, ok := raw.([]interface{})
	if !ok {
		return errors.NewValidationErrorWithPath("schemas", "schemas must be an array of URNs")
	}

	for _, urn := range declared {
		if s, ok := urn.(string); ok && s == rt.Schema.ID {
			return nil
		}
	}

	return errors.NewValidationErrorWithPath("schemas", "schemas must include %s", rt.Schema.ID)
}

// stampCreateMeta sets id and a fresh meta block on a resource being
// created.
func stampCreateMeta(data map[string]interface{}, rt *ResourceType, id string, loc string) {
	now := nowRFC3339()

	data["id"] = id
	data["meta"] = map[string]interface{}{
		"resourceType": rt.Name,
		"created":      now,
		"lastModified": now,
		"location":     loc,
	}
}

// location renders the meta.location URL for a resource under the given
// tenant strategy and tenant ID.
func location(strategy tenant.Strategy, baseURL, scimVersion, tenantID string, rt *ResourceType, id string) (string, error) {
	return tenant.Locate(strategy, baseURL, scimVersion, tenantID, rt.Plural, id)
}

// carryForwardMeta copies id and the server-owned meta sub-attributes
// (resourceType, created, location, lastModified) from previous onto data,
// used by update/patch so that id and meta.created never change after
// creation. lastModified is carried too so that an unchanged document
// canonicalizes byte-for-byte to its pre-state and the version comparison
// in commit sees no difference; stampVersion overwrites it again when
// something actually changed.
func carryForwardMeta(data, previous map[string]interface{}) {
	data["id"] = previous["id"]

	prevMeta, _ := previous["meta"].(map[string]interface{})
	meta, ok := data["meta"].(map[string]interface{})

	if !ok {
		meta = map[string]interface{}{}
	}

	for _, key := range []string{"resourceType", "created", "location", "lastModified"} {
		if v, ok := prevMeta[key]; ok {
			meta[key] = v
		}
	}

	data["meta"] = meta
}

// stampVersion sets meta.lastModified/meta.version on data from a freshly
// computed raw version token, bumping lastModified unconditionally (the
// caller decides whether to call this at all based on whether anything
// changed).
func stampVersion(data map[string]interface{}, raw version.Raw) {
	meta, ok := data["meta"].(map[string]interface{})
	if !ok {
		meta = map[string]interface{}{}
		data["meta"] = meta
	}

	meta["lastModified"] = nowRFC3339()
	meta["version"] = string(raw)
}

// currentVersion returns the raw version token stored in meta.version, or
// "" if unset.
func currentVersion(data map[string]interface{}) string {
	meta, ok := data["meta"].(map[string]interface{})
	if !ok {
		return ""
	}

	v, _ := meta["version"].(string)

	return v
}
