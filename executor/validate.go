/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package executor

import (
	"fmt"
	"slices"

	"github.com/suparena/eserp/storagemodels"
)

// Issue is a non-fatal finding of attribute validation. Entities are stored
// even when issues exist.
type Issue struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidateAttributes checks attrs loosely against the effective fields of a
// type: missing required values, type mismatches and undeclared keys are
// reported, never rejected.
func ValidateAttributes(fields []storagemodels.FieldDefinition, attrs map[string]storagemodels.Value) []Issue {
	var issues []Issue
	declared := make(map[string]bool, len(fields))

	for _, f := range fields {
		declared[f.Key] = true
		v, ok := attrs[f.Key]
		if !ok || v.IsNull() {
			if f.Required {
				issues = append(issues, Issue{Field: f.Key, Message: "required value is missing"})
			}
			continue
		}
		if !f.Type.Accepts(v) {
			issues = append(issues, Issue{Field: f.Key, Message: fmt.Sprintf("expected %s, got %s", f.Type, v.Kind)})
		}
	}

	var extra []string
	for k := range attrs {
		if !declared[k] {
			extra = append(extra, k)
		}
	}
	slices.Sort(extra)
	for _, k := range extra {
		issues = append(issues, Issue{Field: k, Message: "not declared by the entity type"})
	}

	return issues
}
