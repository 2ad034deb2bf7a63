package permissions

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/campusdesk/campusdesk-backend/pkg/enums"
)

// Grant names an action a role may perform. Grants use a "resource:verb"
// shape; the wildcard "*" matches everything.
type Grant = string

const (
	GrantCatalogRead       Grant = "catalog:read"
	GrantCatalogWrite      Grant = "catalog:write"
	GrantCartOwn           Grant = "cart:own"
	GrantFulfillmentRead   Grant = "fulfillment:read"
	GrantFulfillmentWrite  Grant = "fulfillment:write"
	GrantPaymentsConfirm   Grant = "payments:confirm"
	GrantNotificationsSend Grant = "notifications:send"
	GrantWildcard          Grant = "*"
)

// Store holds the role -> grants mapping loaded from the grants file.
type Store struct {
	mu     sync.RWMutex
	grants map[string]map[string]struct{}
}

// Load reads the grants JSON file: {"role": ["grant", ...], ...}.
func Load(path string) (*Store, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading grants file %q: %w", path, err)
	}

	var parsed map[string][]string
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parsing grants file %q: %w", path, err)
	}

	grants := make(map[string]map[string]struct{}, len(parsed))
	for role, list := range parsed {
		roleKey := strings.ToLower(strings.TrimSpace(role))
		if !enums.UserRole(roleKey).IsValid() {
			return nil, fmt.Errorf("grants file %q names unknown role %q", path, role)
		}
		set := make(map[string]struct{}, len(list))
		for _, g := range list {
			g = strings.TrimSpace(g)
			if g == "" {
				continue
			}
			set[g] = struct{}{}
		}
		grants[roleKey] = set
	}

	return &Store{grants: grants}, nil
}

// Can reports whether the role holds the grant, directly or via wildcard.
func (s *Store) Can(role enums.UserRole, grant Grant) bool {
	if s == nil {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	set, ok := s.grants[strings.ToLower(string(role))]
	if !ok {
		return false
	}
	if _, ok := set[GrantWildcard]; ok {
		return true
	}
	_, ok = set[grant]
	return ok
}

// Roles returns the roles present in the store, for diagnostics.
func (s *Store) Roles() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	roles := make([]string, 0, len(s.grants))
	for role := range s.grants {
		roles = append(roles, role)
	}
	return roles
}
