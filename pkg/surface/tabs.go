package surface

import (
	"net/url"
	"slices"
	"strings"
	"sync"
)

// TabParam is the URL fragment and query key carrying the active tab.
const TabParam = "tab"

// Tabs is the tab-selection state machine of a multi-tab surface. States are
// tab keys; it starts on the URL's tab when valid, else on the first key.
type Tabs struct {
	mu     sync.RWMutex
	keys   []string
	active string
}

// NewTabs creates the state machine. initial is usually read from the URL.
func NewTabs(keys []string, initial string) *Tabs {
	t := &Tabs{keys: append([]string(nil), keys...)}
	if len(t.keys) > 0 {
		t.active = t.keys[0]
	}
	t.Select(initial)
	return t
}

// Keys returns the tab keys in order.
func (t *Tabs) Keys() []string {
	return append([]string(nil), t.keys...)
}

// Active returns the current tab key, or "" for surfaces without tabs.
func (t *Tabs) Active() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.active
}

// Select moves to key when it is a known tab.
func (t *Tabs) Select(key string) bool {
	key = strings.TrimSpace(key)
	if !slices.Contains(t.keys, key) {
		return false
	}
	t.mu.Lock()
	t.active = key
	t.mu.Unlock()
	return true
}

// SyncURL selects the tab encoded in raw, which may be a full URL, a
// fragment ("#tab=seo" or "#seo") or a bare key.
func (t *Tabs) SyncURL(raw string) bool {
	return t.Select(TabFromURL(raw))
}

// URL returns base with the active tab written to its fragment.
func (t *Tabs) URL(base string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	active := t.Active()
	if active == "" {
		u.Fragment = ""
		return u.String()
	}
	u.Fragment = TabParam + "=" + active
	return u.String()
}

// TabFromURL extracts a tab key from a URL, fragment or bare key. The
// fragment wins over the query string.
func TabFromURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.ContainsAny(raw, "#?=/") {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if frag := strings.TrimPrefix(u.Fragment, "/"); frag != "" {
		if key, value, ok := strings.Cut(frag, "="); ok {
			if key == TabParam {
				return value
			}
		} else {
			return frag
		}
	}
	return u.Query().Get(TabParam)
}
