/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package executor

import (
	"fmt"
	"regexp"

	"github.com/suparena/eserp/errors"
	"github.com/suparena/eserp/storagemodels"
)

// slugPattern admits canonical lowercase slugs only. Queries compare text
// case-insensitively, so tenant or entity ids differing only by case must not
// exist: they would tie in the _id sort that keeps pages stable.
var slugPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]*$`)

// Scope is the caller's resolved identity for one request.
type Scope struct {
	// TenantID is the tenant whose data the request addresses.
	TenantID string
	// CallerTenantID is the tenant the caller authenticated as.
	CallerTenantID string
	Actor          string
	Admin          bool
}

// Authorize checks that the caller may act on TenantID.
func (s Scope) Authorize() error {
	if !ValidTenantID(s.TenantID) {
		return errors.NewValidationError("tenantId", fmt.Sprintf("invalid tenant id %q", s.TenantID))
	}
	if s.CallerTenantID != s.TenantID {
		return errors.NewAuthorizationError(errors.ReasonTenantMismatch,
			fmt.Sprintf("caller tenant %q cannot access tenant %q", s.CallerTenantID, s.TenantID))
	}
	return nil
}

// ValidTenantID reports whether id is a usable tenant id. The SYSTEM scope is
// not a tenant.
func ValidTenantID(id string) bool {
	return id != storagemodels.SystemScope && slugPattern.MatchString(id)
}

// ValidEntityID reports whether id is a canonical entity id. Generated UUIDs
// qualify.
func ValidEntityID(id string) bool {
	return slugPattern.MatchString(id)
}
