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

import "errors"

// Pipeline error categories. Components wrap these so callers can classify
// failures with errors.Is.
var (
	// ErrConnection indicates the source store or the index service is unreachable.
	ErrConnection = errors.New("connection failed")

	// ErrSourceQuery indicates a query against the source store failed,
	// typically because the table does not exist.
	ErrSourceQuery = errors.New("source query failed")

	// ErrSubmission indicates the index service rejected or never received a payload.
	ErrSubmission = errors.New("submission failed")
)

// Domain validation errors
var (
	// ErrInvalidTableSpec indicates a TableSpec failed validation.
	ErrInvalidTableSpec = errors.New("invalid table spec")

	// ErrEmptyTableName indicates the Name field is empty.
	ErrEmptyTableName = errors.New("table name cannot be empty")

	// ErrInvalidIdentifier indicates a name that is not a plain SQL identifier.
	ErrInvalidIdentifier = errors.New("invalid identifier")

	// ErrNoFields indicates the Fields list is empty.
	ErrNoFields = errors.New("field list cannot be empty")

	// ErrNegativeLimit indicates a Limit below zero.
	ErrNegativeLimit = errors.New("limit cannot be negative")
)
