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


package storage

import (
	"fmt"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/ragmigrate/core"
)

// checkpointVersion prefixes every encoded checkpoint.
const checkpointVersion = 1

// CheckpointMUS encodes core.Checkpoint in the MUS format.
var CheckpointMUS = checkpointMUS{}

type checkpointMUS struct{}

func (checkpointMUS) Marshal(c core.Checkpoint, bs []byte) (n int) {
	n = varint.Uint64.Marshal(checkpointVersion, bs)
	n += ord.String.Marshal(c.Table, bs[n:])
	n += ord.String.Marshal(c.RunID, bs[n:])
	n += varint.Int64.Marshal(c.Consumed, bs[n:])
	n += varint.Int64.Marshal(c.Indexed, bs[n:])
	n += varint.Int64.Marshal(c.Failed, bs[n:])
	n += varint.Int64.Marshal(c.Dropped, bs[n:])
	n += varint.Int64.Marshal(c.Total, bs[n:])
	n += ord.Bool.Marshal(c.Done, bs[n:])
	n += varint.Uint64.Marshal(uint64(c.LastBatch), bs[n:])
	n += varint.Int64.Marshal(c.UpdatedAt.UnixMicro(), bs[n:])
	return
}

func (checkpointMUS) Unmarshal(bs []byte) (c core.Checkpoint, n int, err error) {
	version, n, err := varint.Uint64.Unmarshal(bs)
	if err != nil {
		return
	}
	if version != checkpointVersion {
		err = fmt.Errorf("%w: unknown checkpoint version %d", ErrSerializationFailed, version)
		return
	}

	var n1 int
	if c.Table, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if c.RunID, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	for _, field := range []*int64{&c.Consumed, &c.Indexed, &c.Failed, &c.Dropped, &c.Total} {
		if *field, n1, err = varint.Int64.Unmarshal(bs[n:]); err != nil {
			return
		}
		n += n1
	}
	if c.Done, n1, err = ord.Bool.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	var last uint64
	if last, n1, err = varint.Uint64.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	c.LastBatch = core.ID(last)
	var micros int64
	if micros, n1, err = varint.Int64.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	c.UpdatedAt = time.UnixMicro(micros).UTC()
	return
}

func (checkpointMUS) Size(c core.Checkpoint) (size int) {
	size = varint.Uint64.Size(checkpointVersion)
	size += ord.String.Size(c.Table)
	size += ord.String.Size(c.RunID)
	for _, v := range []int64{c.Consumed, c.Indexed, c.Failed, c.Dropped, c.Total} {
		size += varint.Int64.Size(v)
	}
	size += ord.Bool.Size(c.Done)
	size += varint.Uint64.Size(uint64(c.LastBatch))
	size += varint.Int64.Size(c.UpdatedAt.UnixMicro())
	return
}

// MarshalCheckpoint serializes a Checkpoint to bytes.
func MarshalCheckpoint(checkpoint *core.Checkpoint) []byte {
	buf := make([]byte, CheckpointMUS.Size(*checkpoint))
	CheckpointMUS.Marshal(*checkpoint, buf)
	return buf
}

// UnmarshalCheckpoint deserializes a Checkpoint from bytes.
func UnmarshalCheckpoint(data []byte) (*core.Checkpoint, error) {
	checkpoint, _, err := CheckpointMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &checkpoint, nil
}
