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


// Package storage persists migration checkpoints.
//
// A checkpoint records how far a table migration got: the number of source
// rows fully accounted for, the indexed and failed counts, and whether the
// table finished. A later run loads it to skip finished tables and to resume
// unfinished ones after the consumed rows.
//
// # Constructor Return Type Pattern
//
// Public constructors return the CheckpointRepository interface:
//
//	repo, err := badger.OpenCheckpointRepository("/var/lib/ragmigrate")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer repo.Close()
//
// Use in tests with in-memory storage:
//
//	repo, err := badger.NewMemoryCheckpointRepository()
//
// # Encoding
//
// Checkpoints are encoded with MUS (github.com/mus-format/mus-go), prefixed
// by a format version.
package storage
