package entities

import (
	"fmt"
	"strings"
)

// CommandFlags lists the capability tokens the reference host accepts in a
// command's flags string. The bridge itself passes the string through
// unchanged; only the host decides which tokens it knows.
var CommandFlags = []string{
	"write",
	"readonly",
	"admin",
	"deny-oom",
	"deny-script",
	"allow-loading",
	"pubsub",
	"random",
	"allow-stale",
	"no-monitor",
	"no-slowlog",
	"fast",
	"getkeys-api",
	"no-cluster",
	"no-auth",
	"may-replicate",
	"no-mandatory-keys",
	"blocking",
	"allow-busy",
	"getchannels-api",
	"no-async-loading",
	"internal",
}

var commandFlagSet = func() map[string]struct{} {
	m := make(map[string]struct{}, len(CommandFlags))
	for _, f := range CommandFlags {
		m[f] = struct{}{}
	}
	return m
}()

// IsCommandFlag reports whether token is part of the flag vocabulary.
func IsCommandFlag(token string) bool {
	_, ok := commandFlagSet[token]
	return ok
}

// ValidFlagToken reports whether token is well formed: non-empty and made
// of ASCII letters, digits, '-' and '_'.
func ValidFlagToken(token string) bool {
	if token == "" {
		return false
	}
	for i := 0; i < len(token); i++ {
		c := token[i]
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '-' || c == '_') {
			return false
		}
	}
	return true
}

// ParseCommandFlags splits a space-delimited flags string and rejects tokens
// outside the vocabulary. An empty string is valid and yields no tokens.
func ParseCommandFlags(flags string) ([]string, error) {
	tokens := strings.Fields(strings.ToLower(flags))
	for _, t := range tokens {
		if !IsCommandFlag(t) {
			return nil, fmt.Errorf("unknown command flag %q", t)
		}
	}
	return tokens, nil
}
