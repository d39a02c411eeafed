// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package core

import (
	"fmt"
	"regexp"
	"strings"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidateTableSpec validates a TableSpec according to domain rules.
//
// Validation rules:
//   - Name must be a plain identifier, optionally qualified by one schema
//   - Fields must not be empty and each entry must be non-blank
//   - Limit must not be negative
func ValidateTableSpec(spec *TableSpec) error {
	if spec == nil {
		return fmt.Errorf("%w: spec is nil", ErrInvalidTableSpec)
	}

	if spec.Name == "" {
		return fmt.Errorf("%w: %w", ErrInvalidTableSpec, ErrEmptyTableName)
	}

	if err := ValidateTableName(spec.Name); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidTableSpec, err)
	}

	if len(spec.Fields) == 0 {
		return fmt.Errorf("%w: %w", ErrInvalidTableSpec, ErrNoFields)
	}
	for i, field := range spec.Fields {
		if strings.TrimSpace(field) == "" {
			return fmt.Errorf("%w: field %d is blank", ErrInvalidTableSpec, i)
		}
	}

	if spec.Limit < 0 {
		return fmt.Errorf("%w: %w", ErrInvalidTableSpec, ErrNegativeLimit)
	}

	return nil
}

// ValidateTableName checks that name is safe to splice into a SQL statement.
// Accepts "table" and "schema.table".
func ValidateTableName(name string) error {
	parts := strings.Split(name, ".")
	if len(parts) > 2 {
		return fmt.Errorf("%w: %q", ErrInvalidIdentifier, name)
	}
	for _, part := range parts {
		if !identifierPattern.MatchString(part) {
			return fmt.Errorf("%w: %q", ErrInvalidIdentifier, name)
		}
	}
	return nil
}
