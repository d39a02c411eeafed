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


package migrate

import (
	"context"

	"github.com/poiesic/ragmigrate/core"
)

// DefaultPageSize is the default number of records fetched per page.
const DefaultPageSize = 100

// PageIterator walks a cursor page by page.
type PageIterator struct {
	cursor   Cursor
	pageSize int
}

// NewPageIterator creates a page iterator.
// pageSize: number of records to fetch per page (<= 0 uses DefaultPageSize)
func NewPageIterator(cursor Cursor, pageSize int) *PageIterator {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	return &PageIterator{
		cursor:   cursor,
		pageSize: pageSize,
	}
}

// ForEach calls fn for every non-empty page until the cursor is exhausted.
// Iteration stops on the first error from the cursor or from fn.
// Context cancellation is checked between pages.
func (it *PageIterator) ForEach(ctx context.Context, fn func([]core.Record) error) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		page, err := it.cursor.FetchPage(ctx, it.pageSize)
		if err != nil {
			return err
		}
		if len(page) == 0 {
			return nil
		}

		if err := fn(page); err != nil {
			return err
		}
	}
}
