package service

import "github.com/momoworks/momo-ops/internal/core/domain"

func requireRole(p domain.Principal, r domain.Role) error {
	if !p.AtLeast(r) {
		return ErrForbidden
	}
	return nil
}

// actsFor reports whether p may act on behalf of a location. Cluster heads
// act for every location.
func actsFor(p domain.Principal, locationID string) bool {
	if p.Anonymous {
		return false
	}
	return p.Role == domain.RoleClusterHead || p.LocationID == locationID
}

func requireStaffAt(p domain.Principal, locationID string) error {
	if !actsFor(p, locationID) {
		return ErrForbidden
	}
	return nil
}
