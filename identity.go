package main

import (
	"fmt"
	"os"
	"strings"
)

// loadIdentityMap reads a file of "svnuser Name <email>" lines mapping svn
// usernames to git identities. '#' starts a comment; blank lines are fine.
// An empty filename yields an empty map.
func loadIdentityMap(filename string) (map[string]string, error) {
	identities := make(map[string]string)
	if filename == "" {
		return identities, nil
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("identity map: %w", err)
	}

	for lineno, line := range strings.Split(string(data), "\n") {
		if hash := strings.IndexByte(line, '#'); hash != -1 {
			line = line[:hash]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		user, ident, ok := strings.Cut(line, " ")
		ident = strings.TrimSpace(ident)
		if !ok || ident == "" {
			return nil, fmt.Errorf("identity map: %s line %d: expected 'svnuser Name <email>'", filename, lineno+1)
		}
		identities[user] = ident
	}

	return identities, nil
}
