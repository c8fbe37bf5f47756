package provider

import (
	"context"

	"github.com/scimware/scim-server/pkg/errors"
	"github.com/scimware/scim-server/pkg/schema"
	"github.com/scimware/scim-server/pkg/storage"
)

// checkUniqueness probes storage for every top-level attribute declared
// uniqueness=server or uniqueness=global on rt's schema, rejecting the
// write with a Conflict if a different resource already holds the same
// string value. Values are read only from the document's top level, so an
// extension attribute, which lives under its schema URN's namespace
// object, is never probed even though uniqueAttributes lists it. excludeID is the
// resource's own ID on update, so a no-op write to itself doesn't
// conflict with itself.
func (p *Provider) checkUniqueness(ctx context.Context, tenantID string, rt *ResourceType, data map[string]interface{}, excludeID string) error {
	for _, attr := range uniqueAttributes(rt) {
		value, ok := data[attr.Name]
		if !ok {
			continue
		}

		str, ok := value.(string)
		if !ok {
			continue
		}

		var matches []storage.Entry
		var err error

		switch attr.Uniqueness {
		case schema.UniquenessServer:
			matches, err = p.storage.FindByAttribute(ctx, storage.Key{TenantID: tenantID, ResourceType: rt.Name}, attr.Name, str)
		case schema.UniquenessGlobal:
			matches, err = p.findGlobal(ctx, rt.Name, attr.Name, str)
		default:
			continue
		}

		if err != nil {
			return mapStorageError(err)
		}

		for _, m := range matches {
			if m.Key.ResourceID != excludeID {
				return errors.NewConflictError("attribute %q must be unique but %q is already in use", attr.Name, str)
			}
		}
	}

	return nil
}

// findGlobal probes FindByAttribute across every known tenant, for
// uniqueness=global attributes.
func (p *Provider) findGlobal(ctx context.Context, resourceType, attrName, value string) ([]storage.Entry, error) {
	tenants, err := p.storage.ListTenants(ctx)
	if err != nil {
		return nil, err
	}

	var all []storage.Entry

	for _, tenantID := range tenants {
		matches, err := p.storage.FindByAttribute(ctx, storage.Key{TenantID: tenantID, ResourceType: resourceType}, attrName, value)
		if err != nil {
			return nil, err
		}

		all = append(all, matches...)
	}

	return all, nil
}

// uniqueAttributes returns every top-level attribute of rt's schema and
// of every extension registered on rt (whatever the tenant has activated)
// declared uniqueness=server or uniqueness=global.
func uniqueAttributes(rt *ResourceType) []*schema.AttributeDefinition {
	var out []*schema.AttributeDefinition

	collect := func(s *schema.Schema) {
		for _, a := range s.Attributes {
			if a.Uniqueness == schema.UniquenessServer || a.Uniqueness == schema.UniquenessGlobal {
				out = append(out, a)
			}
		}
	}

	collect(rt.Schema)

	for _, ext := range rt.Extensions {
		collect(ext)
	}

	return out
}
