package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/scimware/scim-server/pkg/buildinfo"
	scimconfig "github.com/scimware/scim-server/pkg/config"
	"github.com/scimware/scim-server/pkg/provider"
	"github.com/scimware/scim-server/pkg/schema"
	"github.com/scimware/scim-server/pkg/server"
	"github.com/scimware/scim-server/pkg/storage"
	"github.com/scimware/scim-server/pkg/storage/k8s"
	"github.com/scimware/scim-server/pkg/storage/memory"
	"github.com/scimware/scim-server/pkg/tenant"

	"github.com/golang/glog"

	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
)

// errorCode is what the process exits with on a fatal startup error.
const errorCode = 1

// tenantStrategyFlag is the CLI-settable form of tenant.Strategy.
type tenantStrategyFlag tenant.Strategy

func (t *tenantStrategyFlag) Set(s string) error {
	switch s {
	case "single", "":
		*t = tenantStrategyFlag(tenant.SingleTenant)
	case "subdomain":
		*t = tenantStrategyFlag(tenant.Subdomain)
	case "path":
		*t = tenantStrategyFlag(tenant.PathBased)
	default:
		return fmt.Errorf("unexpected tenant strategy %q", s)
	}

	return nil
}

func (t *tenantStrategyFlag) String() string {
	switch tenant.Strategy(*t) {
	case tenant.Subdomain:
		return "subdomain"
	case tenant.PathBased:
		return "path"
	default:
		return "single"
	}
}

func (t *tenantStrategyFlag) Type() string {
	return "string"
}

func main() {
	var (
		baseURL      string
		storageKind  string
		namespace    string
		strategyFlag tenantStrategyFlag
		listenAddr   string
		extensions   stringSliceFlag
	)

	flag.StringVar(&baseURL, "base-url", "http://localhost:8080", "Base URL meta.location and $ref values are built against")
	flag.StringVar(&storageKind, "storage", "memory", "Storage backend to use, either 'memory' or 'k8s'")
	flag.StringVar(&namespace, "namespace", "default", "Kubernetes namespace to store resources in, when --storage=k8s")
	flag.StringVar(&listenAddr, "listen", ":8080", "HTTP listen address")
	flag.Var(&strategyFlag, "tenant-strategy", "URL-generation strategy for multi-tenant deployments: 'single', 'subdomain', or 'path'")
	flag.Var(&extensions, "extension-schema", "Path to an extension schema file (YAML or JSON); may be repeated")
	flag.Parse()

	glog.Infof("%s %s (git commit %s)", buildinfo.Application, buildinfo.Version, buildinfo.GitCommit)

	registry, err := schema.NewRegistry()
	if err != nil {
		glog.Fatal(err)
		os.Exit(errorCode)
	}

	for _, path := range extensions {
		if err := registry.LoadExtensionFile(path); err != nil {
			glog.Fatal(err)
			os.Exit(errorCode)
		}
	}

	builder := scimconfig.NewBuilder(registry).
		BaseURL(baseURL).
		TenantStrategy(tenant.Strategy(strategyFlag)).
		ResourceType(scimconfig.ResourceTypeConfig{
			Name:       "User",
			Plural:     "Users",
			SchemaURN:  schema.URNUser,
			Extensions: []string{schema.URNEnterpriseUser},
		}).
		ResourceType(scimconfig.ResourceTypeConfig{
			Name:      "Group",
			Plural:    "Groups",
			SchemaURN: schema.URNGroup,
		})

	cfg, err := builder.Build()
	if err != nil {
		glog.Fatal(err)
		os.Exit(errorCode)
	}

	scimconfig.Configure(cfg)

	resourceTypes, err := cfg.ResourceTypes()
	if err != nil {
		glog.Fatal(err)
		os.Exit(errorCode)
	}

	store, err := newStorage(storageKind, namespace)
	if err != nil {
		glog.Fatal(err)
		os.Exit(errorCode)
	}

	prov, err := provider.NewProvider(provider.Config{
		Storage:     store,
		Registry:    registry,
		Strategy:    cfg.Strategy,
		BaseURL:     cfg.BaseURL,
		ScimVersion: cfg.ScimVersion,
	}, resourceTypes...)
	if err != nil {
		glog.Fatal(err)
		os.Exit(errorCode)
	}

	srv, err := server.NewServer(server.Config{Provider: prov, ServerConfig: cfg})
	if err != nil {
		glog.Fatal(err)
		os.Exit(errorCode)
	}

	plurals := make([]string, 0, len(cfg.ResourceTypeConfigs))
	for _, rt := range cfg.ResourceTypeConfigs {
		plurals = append(plurals, rt.Plural)
	}

	handler := newHTTPBinding(srv, plurals)

	glog.Infof("listening on %s", listenAddr)

	if err := http.ListenAndServe(listenAddr, handler); err != nil {
		glog.Fatal(err)
		os.Exit(errorCode)
	}
}

// newStorage constructs the storage.Provider backend named by kind. The
// k8s backend builds its client from in-cluster configuration, so
// --storage=k8s only works when running inside a pod with a suitable
// service account.
func newStorage(kind, namespace string) (storage.Provider, error) {
	switch kind {
	case "memory", "":
		return memory.New(), nil
	case "k8s":
		config, err := rest.InClusterConfig()
		if err != nil {
			return nil, fmt.Errorf("building in-cluster config: %w", err)
		}

		clientset, err := kubernetes.NewForConfig(config)
		if err != nil {
			return nil, fmt.Errorf("building Kubernetes client: %w", err)
		}

		return k8s.New(clientset, namespace), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", kind)
	}
}

// stringSliceFlag accumulates repeated occurrences of a flag into a slice.
type stringSliceFlag []string

func (s *stringSliceFlag) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func (s *stringSliceFlag) String() string {
	return fmt.Sprintf("%v", []string(*s))
}
