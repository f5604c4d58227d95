package llm

import (
	"fmt"
	"strings"
)

// Registry holds one adapter per vendor. Process-wide, initialized at
// startup, read-only thereafter.
type Registry struct {
	providers map[string]Provider
	images    map[string]ImageProvider
	videos    map[string]VideoProvider
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
		images:    make(map[string]ImageProvider),
		videos:    make(map[string]VideoProvider),
	}
}

// RegisterText adds a text provider.
func (r *Registry) RegisterText(p Provider) {
	r.providers[p.Vendor()] = p
}

// RegisterImage adds an image provider for a vendor.
func (r *Registry) RegisterImage(vendor string, p ImageProvider) {
	r.images[vendor] = p
}

// RegisterVideo adds a video provider for a vendor.
func (r *Registry) RegisterVideo(vendor string, p VideoProvider) {
	r.videos[vendor] = p
}

// SplitProviderString parses a "vendor:model" selector.
func SplitProviderString(s string) (vendor, model string, err error) {
	vendor, model, ok := strings.Cut(s, ":")
	if !ok || vendor == "" || model == "" {
		return "", "", fmt.Errorf("invalid provider string %q, want \"vendor:model\"", s)
	}
	return vendor, model, nil
}

// ResolveText returns the adapter and model for a "vendor:model" selector.
func (r *Registry) ResolveText(selector string) (Provider, string, error) {
	vendor, model, err := SplitProviderString(selector)
	if err != nil {
		return nil, "", err
	}
	p, ok := r.providers[vendor]
	if !ok {
		return nil, "", fmt.Errorf("no text provider registered for vendor %q", vendor)
	}
	return p, model, nil
}

// ResolveImage returns the image adapter and model for a selector.
func (r *Registry) ResolveImage(selector string) (ImageProvider, string, error) {
	vendor, model, err := SplitProviderString(selector)
	if err != nil {
		return nil, "", err
	}
	p, ok := r.images[vendor]
	if !ok {
		return nil, "", fmt.Errorf("no image provider registered for vendor %q", vendor)
	}
	return p, model, nil
}

// ResolveVideo returns the video adapter and model for a selector.
func (r *Registry) ResolveVideo(selector string) (VideoProvider, string, error) {
	vendor, model, err := SplitProviderString(selector)
	if err != nil {
		return nil, "", err
	}
	p, ok := r.videos[vendor]
	if !ok {
		return nil, "", fmt.Errorf("no video provider registered for vendor %q", vendor)
	}
	return p, model, nil
}
