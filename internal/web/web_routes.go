package web

import (
	"fmt"
	"net/url"
	"strings"
	"sync"
)

// routeTable maps route names to gin path patterns so handlers and
// templates can build links without hardcoding paths
type routeTable struct {
	mux   sync.RWMutex
	paths map[string]string
}

func newRouteTable() *routeTable {
	return &routeTable{paths: make(map[string]string)}
}

func (rt *routeTable) add(name, path string) error {
	rt.mux.Lock()
	defer rt.mux.Unlock()
	if existing, ok := rt.paths[name]; ok && existing != path {
		return fmt.Errorf("route %q already registered for %s, cannot reuse it for %s", name, existing, path)
	}
	rt.paths[name] = path
	return nil
}

// reverse substitutes args, in order, for the :param and *param segments
// of the named route. Param values are path-escaped; a catch-all value
// keeps its slashes.
func (rt *routeTable) reverse(name string, args ...interface{}) (string, error) {
	rt.mux.RLock()
	pattern, ok := rt.paths[name]
	rt.mux.RUnlock()
	if !ok {
		return "", fmt.Errorf("no route named %q", name)
	}

	segments := strings.Split(pattern, "/")
	next := 0
	for i, seg := range segments {
		if seg == "" || (seg[0] != ':' && seg[0] != '*') {
			continue
		}
		if next >= len(args) {
			return "", fmt.Errorf("route %q (%s): missing value for %s", name, pattern, seg)
		}
		value := fmt.Sprint(args[next])
		next++
		if seg[0] == '*' {
			parts := strings.Split(strings.TrimPrefix(value, "/"), "/")
			for j, p := range parts {
				parts[j] = url.PathEscape(p)
			}
			segments[i] = strings.Join(parts, "/")
			continue
		}
		if value == "" {
			return "", fmt.Errorf("route %q (%s): empty value for %s", name, pattern, seg)
		}
		segments[i] = url.PathEscape(value)
	}
	if next != len(args) {
		return "", fmt.Errorf("route %q (%s): got %d args, want %d", name, pattern, len(args), next)
	}
	return strings.Join(segments, "/"), nil
}

func joinPaths(base, relative string) string {
	if relative == "" {
		return base
	}
	joined := strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(relative, "/")
	if strings.HasSuffix(relative, "/") && !strings.HasSuffix(joined, "/") {
		joined += "/"
	}
	return joined
}
