package config

import "strings"

const defaultMemcachedPort = "11211"

// ParseMemcached parses a Memcached server list: endpoints separated by
// ',' or ';', each "host" or "host:port" (default port 11211). Options
// are not accepted.
func ParseMemcached(s string) ([]string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, invalidFor("memcached", "empty")
	}
	var addrs []string
	for _, tok := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ';' }) {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		if strings.Contains(tok, "=") {
			return nil, invalidFor("memcached", "options are not supported")
		}
		addr, err := normalizeAddr("memcached", tok, defaultMemcachedPort)
		if err != nil {
			return nil, err
		}
		addrs = append(addrs, addr)
	}
	if len(addrs) == 0 {
		return nil, invalidFor("memcached", "no endpoint")
	}
	return addrs, nil
}
