package api

import (
	"net/http"

	"github.com/gregjones/httpcache"
	"github.com/gregjones/httpcache/diskcache"
)

// newCachingTransport wraps base with an in-memory HTTP cache. The API
// marks call listings with Cache-Control, so repeated dashboard polls can
// be answered without a round trip.
func newCachingTransport(base http.RoundTripper) http.RoundTripper {
	transport := httpcache.NewTransport(httpcache.NewMemoryCache())
	transport.Transport = base
	return transport
}

// NewDiskCachingHTTPClient creates an HTTP client whose cache persists
// under cacheDir across restarts. Pass it to WithHTTPClient when the
// console runs long-lived on a workstation.
func NewDiskCachingHTTPClient(cacheDir string) *http.Client {
	if cacheDir == "" {
		return &http.Client{
			Transport: httpcache.NewTransport(httpcache.NewMemoryCache()),
		}
	}

	return &http.Client{
		Transport: httpcache.NewTransport(diskcache.New(cacheDir)),
	}
}
