package ports

import (
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strings"
)

// DomainSuffixes is the set of origins allowed to call the API from a browser
type DomainSuffixes struct {
	suffixes       []string
	allowLocalhost bool
}

func NewDomainSuffixes(suffixes ...string) (*DomainSuffixes, error) {
	for _, suffix := range suffixes {
		if strings.HasPrefix(suffix, ".") {
			return nil, fmt.Errorf("domain suffix %s should not start with a dot", suffix)
		}
		if strings.Contains(suffix, "://") {
			return nil, fmt.Errorf("domain suffix %s should not contain a scheme", suffix)
		}
		if strings.ContainsAny(suffix, ":/") {
			return nil, fmt.Errorf("domain suffix %s should not contain a port or path", suffix)
		}
	}
	return &DomainSuffixes{
		suffixes: slices.Clone(suffixes),
	}, nil
}

// AllowLocalhost additionally accepts http and https origins on localhost with any port.
// Only meant for development.
func (d *DomainSuffixes) AllowLocalhost() *DomainSuffixes {
	return &DomainSuffixes{
		suffixes:       d.suffixes,
		allowLocalhost: true,
	}
}

func (d *DomainSuffixes) AnyMatch(origin string) bool {
	// An origin is only scheme://host[:port]
	parsed, err := url.Parse(origin)
	if err != nil || parsed.Host == "" || parsed.User != nil || (parsed.Path != "" && parsed.Path != "/") {
		return false
	}
	host := parsed.Hostname()

	if d.allowLocalhost && isLocalhost(host) {
		return parsed.Scheme == "http" || parsed.Scheme == "https"
	}

	if parsed.Scheme != "https" || parsed.Port() != "" {
		return false
	}

	return slices.ContainsFunc(d.suffixes, func(suffix string) bool {
		return hostMatchesSuffix(host, suffix)
	})
}

func isLocalhost(host string) bool {
	return host == "localhost" || host == "127.0.0.1" || host == "::1"
}

// hostMatchesSuffix accepts the suffix itself and any subdomain of it
func hostMatchesSuffix(host string, suffix string) bool {
	return host == suffix || strings.HasSuffix(host, "."+suffix)
}

func BuildCORSMiddleware(allowedSuffixes *DomainSuffixes) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Add("Vary", "Origin")

			origin := r.Header.Get("Origin")
			if allowedSuffixes.AnyMatch(origin) {
				w.Header().Set("Access-Control-Allow-Origin", origin)

				if r.Method == http.MethodOptions {
					w.Header().Set("Access-Control-Allow-Methods", "GET,POST,DELETE")
					w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
					w.Header().Set("Access-Control-Max-Age", "3600")
					w.WriteHeader(http.StatusNoContent)
					return
				}
			}

			next(w, r)
		}
	}
}

// BuildCORSHandler answers preflight requests for a route
func BuildCORSHandler(allowedSuffixes *DomainSuffixes) http.HandlerFunc {
	return BuildCORSMiddleware(allowedSuffixes)(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
}
