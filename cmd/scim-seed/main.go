// scim-seed populates a SCIM deployment with demo tenants and users, for
// local development and load experiments. It either posts resources to a
// running server over HTTP (--server) or, with no server given, builds a
// standalone in-memory provider and dumps the created resources to stdout
// as NDJSON.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/scimware/scim-server/pkg/provider"
	"github.com/scimware/scim-server/pkg/schema"
	"github.com/scimware/scim-server/pkg/storage/memory"
	"github.com/scimware/scim-server/pkg/tenant"

	petname "github.com/dustinkirkland/golang-petname"
	"github.com/golang/glog"
)

const errorCode = 1

func main() {
	var (
		serverURL string
		tenants   string
		users     int
		groups    int
		random    bool
	)

	flag.StringVar(&serverURL, "server", "", "Base URL of a running scim-server to post resources to; empty means standalone NDJSON output")
	flag.StringVar(&tenants, "tenants", tenant.DefaultTenantID, "Comma-separated tenant IDs to seed")
	flag.IntVar(&users, "users", 10, "Number of users to create per tenant")
	flag.IntVar(&groups, "groups", 2, "Number of groups to create per tenant")
	flag.BoolVar(&random, "random", false, "Generate different names on every run instead of a deterministic sequence")
	flag.Parse()

	// petname draws from math/rand's default source, so seeding it is all
	// non-deterministic mode takes.
	if random {
		rand.Seed(time.Now().UnixNano())
	}

	if err := run(serverURL, strings.Split(tenants, ","), users, groups); err != nil {
		glog.Error(err)
		os.Exit(errorCode)
	}
}

func run(serverURL string, tenants []string, users, groups int) error {
	var sink seeder

	if serverURL != "" {
		sink = &httpSeeder{base: strings.TrimSuffix(serverURL, "/"), client: http.DefaultClient}
	} else {
		standalone, err := newStandaloneSeeder()
		if err != nil {
			return err
		}

		sink = standalone
	}

	for _, tenantID := range tenants {
		tenantID = strings.TrimSpace(tenantID)
		if tenantID == "" {
			continue
		}

		for i := 0; i < users; i++ {
			if err := sink.create(tenantID, "User", demoUser()); err != nil {
				return err
			}
		}

		for i := 0; i < groups; i++ {
			if err := sink.create(tenantID, "Group", demoGroup()); err != nil {
				return err
			}
		}

		glog.Infof("seeded tenant %s with %d users and %d groups", tenantID, users, groups)
	}

	return nil
}

// demoUser builds a plausible user payload around a generated pet name, so
// repeated runs produce recognizably distinct resources.
func demoUser() map[string]interface{} {
	name := petname.Generate(2, "-")
	parts := strings.SplitN(name, "-", 2)

	return map[string]interface{}{
		"schemas":     []interface{}{schema.URNUser},
		"userName":    name,
		"displayName": strings.Title(parts[0]) + " " + strings.Title(parts[1]),
		"active":      true,
		"emails": []interface{}{
			map[string]interface{}{"value": name + "@example.com", "type": "work", "primary": true},
		},
	}
}

func demoGroup() map[string]interface{} {
	return map[string]interface{}{
		"schemas":     []interface{}{schema.URNGroup},
		"displayName": petname.Generate(2, " "),
	}
}

// seeder abstracts where seeded resources go: a live server or a local
// in-memory provider.
type seeder interface {
	create(tenantID, resourceType string, data map[string]interface{}) error
}

// httpSeeder posts each resource to a running scim-server.
type httpSeeder struct {
	base   string
	client *http.Client
}

func (s *httpSeeder) create(tenantID, resourceType string, data map[string]interface{}) error {
	body, err := json.Marshal(data)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/v2/%ss", s.base, resourceType)

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/scim+json")

	if tenantID != tenant.DefaultTenantID {
		req.Header.Set("X-Tenant-Id", tenantID)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("seeding %s in tenant %s: unexpected status %d", resourceType, tenantID, resp.StatusCode)
	}

	return nil
}

// standaloneSeeder creates resources through a local in-memory provider so
// the output carries real server-stamped meta and versions, then prints
// each created resource as one JSON line.
type standaloneSeeder struct {
	provider *provider.Provider
	encoder  *json.Encoder
}

func newStandaloneSeeder() (*standaloneSeeder, error) {
	registry, err := schema.NewRegistry()
	if err != nil {
		return nil, err
	}

	userSchema, err := registry.Get(schema.URNUser)
	if err != nil {
		return nil, err
	}

	groupSchema, err := registry.Get(schema.URNGroup)
	if err != nil {
		return nil, err
	}

	p, err := provider.NewProvider(provider.Config{
		Storage:  memory.New(),
		Registry: registry,
		BaseURL:  "https://scim-seed.invalid",
	},
		&provider.ResourceType{Name: "User", Plural: "Users", Schema: userSchema},
		&provider.ResourceType{Name: "Group", Plural: "Groups", Schema: groupSchema},
	)
	if err != nil {
		return nil, err
	}

	return &standaloneSeeder{provider: p, encoder: json.NewEncoder(os.Stdout)}, nil
}

func (s *standaloneSeeder) create(tenantID, resourceType string, data map[string]interface{}) error {
	rc := &tenant.RequestContext{}
	if tenantID != tenant.DefaultTenantID {
		rc.Tenant = &tenant.Context{TenantID: tenantID, Permissions: tenant.AllPermissions()}
	}

	result, err := s.provider.Create(context.Background(), rc, resourceType, data)
	if err != nil {
		return err
	}

	return s.encoder.Encode(result.Resource)
}
