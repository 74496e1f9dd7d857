package tenant

import (
	"net/http"
	"regexp"
	"strings"
)

// MaxSlugLength keeps routing keys DNS-label sized.
const MaxSlugLength = 63

// labelPattern matches a valid DNS label: alphanumeric start, hyphens allowed.
var labelPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)

// defaultExcludedSubdomains never resolve to a tenant so operator and
// infrastructure hosts cannot collide with customer slugs.
var defaultExcludedSubdomains = []string{"www", "api", "admin", "static", "media", "mail", "ftp"}

// ValidSlug reports whether s can serve as a routing key: a lowercase
// DNS label, at most MaxSlugLength characters.
func ValidSlug(s string) bool {
	return s != "" && len(s) <= MaxSlugLength && labelPattern.MatchString(s)
}

// Resolver extracts a routing key from an HTTP request.
// Returns empty string when the request carries no tenant; malformed hosts
// are treated as "no tenant", never as an error.
type Resolver func(r *http.Request) (string, error)

// NewSubdomainResolver returns a Resolver that takes the first DNS label of
// the request host as the routing key. Hosts with fewer than three labels,
// loopback hosts, and the excluded labels yield no tenant. When no excluded
// labels are given the default exclusion list is used.
func NewSubdomainResolver(excluded ...string) Resolver {
	if len(excluded) == 0 {
		excluded = defaultExcludedSubdomains
	}
	skip := make(map[string]struct{}, len(excluded))
	for _, s := range excluded {
		skip[strings.ToLower(s)] = struct{}{}
	}

	return func(req *http.Request) (string, error) {
		host := strings.ToLower(req.Host)

		// Strip port. Hosts are case-insensitive, so normalization above
		// happens before any comparison.
		if idx := strings.LastIndex(host, ":"); idx != -1 {
			host = host[:idx]
		}

		if host == "localhost" || strings.HasPrefix(host, "127.") {
			return "", nil
		}

		parts := strings.Split(host, ".")
		// Need room for a subdomain before a two-label base domain.
		if len(parts) < 3 {
			return "", nil
		}
		for _, p := range parts {
			if p == "" { // doubled dots or leading/trailing dot
				return "", nil
			}
		}

		key := parts[0]
		if _, ok := skip[key]; ok {
			return "", nil
		}
		if len(key) > MaxSlugLength || !labelPattern.MatchString(key) {
			return "", nil
		}

		return key, nil
	}
}

// NewHeaderResolver extracts the routing key from an HTTP header, useful
// for internal tooling that addresses tenants directly. Defaults to
// "X-Tenant-Slug" when headerName is empty.
func NewHeaderResolver(headerName string) Resolver {
	if headerName == "" {
		headerName = "X-Tenant-Slug"
	}

	return func(req *http.Request) (string, error) {
		value := strings.ToLower(strings.TrimSpace(req.Header.Get(headerName)))
		if value == "" {
			return "", nil
		}
		if len(value) > MaxSlugLength || !labelPattern.MatchString(value) {
			return "", nil
		}
		return value, nil
	}
}

// NewCompositeResolver tries resolvers in order and returns the first
// non-empty routing key.
func NewCompositeResolver(resolvers ...Resolver) Resolver {
	return func(r *http.Request) (string, error) {
		for _, resolve := range resolvers {
			key, err := resolve(r)
			if err != nil {
				return "", err
			}
			if key != "" {
				return key, nil
			}
		}
		return "", nil
	}
}
