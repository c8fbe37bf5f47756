package values

import (
	"strings"

	"github.com/scimware/scim-server/pkg/errors"
)

// Resource is the minimal shape composite validators need: attribute name
// to decoded Value, as produced by constructing every top-level attribute
// of a document with Construct.
type Resource map[string]Value

// PolicyHook is a pluggable, cross-attribute validator run after the
// universal composite checks. None are registered by default; a server
// operator opts in by calling PolicyRegistry.Add.
type PolicyHook func(Resource) error

// PolicyRegistry holds the optional policy hooks layered on top of the
// RFC-mandated composite checks.
type PolicyRegistry struct {
	hooks []PolicyHook
}

// NewPolicyRegistry returns an empty registry; no policy hooks run until
// added.
func NewPolicyRegistry() *PolicyRegistry {
	return &PolicyRegistry{}
}

// Add registers an additional policy hook, run in registration order.
func (p *PolicyRegistry) Add(hook PolicyHook) {
	p.hooks = append(p.hooks, hook)
}

// Validate runs the universal composite checks followed by every
// registered policy hook, stopping at the first failure.
func (p *PolicyRegistry) Validate(r Resource) error {
	if err := validateUniquePrimary(r); err != nil {
		return err
	}

	for _, hook := range p.hooks {
		if err := hook(r); err != nil {
			return err
		}
	}

	return nil
}

// validateUniquePrimary enforces that every multi-valued complex attribute
// in the resource has at most one element with primary=true. Per-element
// enforcement already happens in the schema validator for raw JSON
// documents; this re-checks at the Value level for callers that build a
// Resource directly from constructed values (e.g. the PATCH engine's
// working copy).
func validateUniquePrimary(r Resource) error {
	for name, v := range r {
		items, ok := v.(interface{ Elements() []Value })
		if !ok {
			continue
		}

		seen := false

		for _, item := range items.Elements() {
			cv, ok := item.(*ComplexValue)
			if !ok {
				continue
			}

			primary, ok := cv.Fields["primary"].(*BooleanValue)
			if !ok || !primary.Raw {
				continue
			}

			if seen {
				return errors.NewValidationErrorWithPath(name, "only one element may have primary set to true")
			}

			seen = true
		}
	}

	return nil
}

// ReservedUsernames returns a policy hook rejecting userName values in the
// given set, case-insensitively. Disabled by default; an operator opts in
// via PolicyRegistry.Add.
func ReservedUsernames(reserved map[string]struct{}) PolicyHook {
	return func(r Resource) error {
		userName, ok := r["userName"].(*StringValue)
		if !ok {
			return nil
		}

		if _, blocked := reserved[strings.ToLower(userName.Raw)]; blocked {
			return errors.NewValidationErrorWithPath("userName", "%q is a reserved username", userName.Raw)
		}

		return nil
	}
}

// AllowedEmailDomains returns a policy hook rejecting any email attribute
// whose domain isn't in the allowed set.
func AllowedEmailDomains(allowed map[string]struct{}) PolicyHook {
	return func(r Resource) error {
		emails, ok := r["emails"].(interface{ Elements() []Value })
		if !ok {
			return nil
		}

		for _, item := range emails.Elements() {
			email, ok := item.(*EmailAddress)
			if !ok {
				continue
			}

			value, ok := email.Fields["value"].(*StringValue)
			if !ok {
				continue
			}

			domain := domainOf(value.Raw)
			if _, ok := allowed[strings.ToLower(domain)]; !ok {
				return errors.NewValidationErrorWithPath("emails", "email domain %q is not allowed", domain)
			}
		}

		return nil
	}
}

// NameConsistency returns a policy hook requiring that when name.formatted
// is present alongside name.givenName and name.familyName, formatted
// contains both.
func NameConsistency() PolicyHook {
	return func(r Resource) error {
		name, ok := r["name"].(*Name)
		if !ok {
			return nil
		}

		formatted, hasFormatted := name.Fields["formatted"].(*StringValue)
		given, hasGiven := name.Fields["givenName"].(*StringValue)
		family, hasFamily := name.Fields["familyName"].(*StringValue)

		if !hasFormatted || !hasGiven || !hasFamily {
			return nil
		}

		if !containsFold(formatted.Raw, given.Raw) || !containsFold(formatted.Raw, family.Raw) {
			return errors.NewValidationErrorWithPath("name.formatted", "formatted name is inconsistent with given/family name")
		}

		return nil
	}
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

func domainOf(email string) string {
	for i := len(email) - 1; i >= 0; i-- {
		if email[i] == '@' {
			return email[i+1:]
		}
	}

	return ""
}
