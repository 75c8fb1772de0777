// Package store holds the registry of h5.Store backends.
// Backends register themselves in init functions;
// programs select one by name with a config map.
package store

import (
	"context"
	"fmt"
	"sort"

	"github.com/bobg/h5"
)

// Factory produces a Store from a config map.
type Factory func(context.Context, map[string]interface{}) (h5.Store, error)

var registry = make(map[string]Factory)

// Register makes a backend available to Create under the given key.
func Register(key string, f Factory) {
	registry[key] = f
}

// Create produces a Store of the registered type key.
func Create(ctx context.Context, key string, conf map[string]interface{}) (h5.Store, error) {
	f, ok := registry[key]
	if !ok {
		return nil, fmt.Errorf("key %s not found in registry", key)
	}
	return f(ctx, conf)
}

// FromConfig produces a Store from a config map
// whose "type" key names a registered backend.
// Wrapping backends use it to create their nested stores.
func FromConfig(ctx context.Context, conf map[string]interface{}) (h5.Store, error) {
	typ, ok := conf["type"].(string)
	if !ok {
		return nil, fmt.Errorf(`config missing "type"`)
	}
	return Create(ctx, typ, conf)
}

// Nested produces the Store described by the map under key in conf.
func Nested(ctx context.Context, conf map[string]interface{}, key string) (h5.Store, error) {
	sub, ok := conf[key].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf(`config missing %q`, key)
	}
	return FromConfig(ctx, sub)
}

// Keys lists the registered backend names in sorted order.
func Keys() []string {
	keys := make([]string, 0, len(registry))
	for k := range registry {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
