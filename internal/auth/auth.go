package auth

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
)

const (
	// RoleAsker may list databases, read schemas, normalize, ask, confirm
	// and export.
	RoleAsker = "asker"
	// RoleHistoryAdmin may delete history items.
	RoleHistoryAdmin = "history_admin"
)

type Identity struct {
	Subject string
	Roles   []string
}

func (i Identity) HasRole(role string) bool {
	return slices.Contains(i.Roles, role)
}

type APIKeyValidator interface {
	Validate(ctx context.Context, apiKey string) (Identity, bool)
}

type StaticAPIKeyValidator struct {
	keys map[string]Identity
}

// NewStaticAPIKeyValidator parses a comma separated list of
// key:subject:role|role entries.
func NewStaticAPIKeyValidator(spec string) (*StaticAPIKeyValidator, error) {
	validator := &StaticAPIKeyValidator{keys: map[string]Identity{}}
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return validator, nil
	}

	for _, entry := range strings.Split(spec, ",") {
		parts := strings.Split(strings.TrimSpace(entry), ":")
		if len(parts) != 3 {
			return nil, fmt.Errorf("invalid static key entry %q: expected key:subject:role|role", entry)
		}
		key := strings.TrimSpace(parts[0])
		subject := strings.TrimSpace(parts[1])
		if key == "" || subject == "" {
			return nil, fmt.Errorf("invalid static key entry %q: empty key/subject", entry)
		}
		if _, exists := validator.keys[key]; exists {
			return nil, fmt.Errorf("invalid static key entry %q: key is listed twice", entry)
		}
		roles := make([]string, 0, 2)
		for _, role := range strings.Split(strings.TrimSpace(parts[2]), "|") {
			role = strings.TrimSpace(role)
			if role == "" {
				continue
			}
			if role != RoleAsker && role != RoleHistoryAdmin {
				return nil, fmt.Errorf("invalid static key entry %q: unknown role %q", entry, role)
			}
			roles = append(roles, role)
		}
		if len(roles) == 0 {
			return nil, fmt.Errorf("invalid static key entry %q: at least one role is required", entry)
		}
		sort.Strings(roles)
		validator.keys[key] = Identity{Subject: subject, Roles: slices.Compact(roles)}
	}

	return validator, nil
}

func (v *StaticAPIKeyValidator) Validate(_ context.Context, apiKey string) (Identity, bool) {
	identity, ok := v.keys[apiKey]
	return identity, ok
}
