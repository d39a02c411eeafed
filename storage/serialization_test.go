package storage

import (
	"testing"
	"time"

	"github.com/poiesic/ragmigrate/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalUnmarshalCheckpoint(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)

	tests := []struct {
		name       string
		checkpoint *core.Checkpoint
	}{
		{"zero", &core.Checkpoint{UpdatedAt: time.UnixMicro(0).UTC()}},
		{"in progress", &core.Checkpoint{
			Table:     "sorucevap",
			RunID:     "5f1d0f4e-3b0c-4f43-9f59-0c3a3d8e8a11",
			Consumed:  420,
			Indexed:   400,
			Failed:    10,
			Dropped:   10,
			Total:     1000,
			LastBatch: core.IDFromContent("Soru: Nedir?"),
			UpdatedAt: now,
		}},
		{"done", &core.Checkpoint{
			Table:     "public.ozelgeler",
			Consumed:  200,
			Indexed:   200,
			Total:     200,
			Done:      true,
			LastBatch: core.ID(18446744073709551615),
			UpdatedAt: now,
		}},
		{"unicode table", &core.Checkpoint{Table: "danıştay_kararları", UpdatedAt: now}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := MarshalCheckpoint(tt.checkpoint)
			require.NotEmpty(t, data)
			assert.Len(t, data, CheckpointMUS.Size(*tt.checkpoint))

			decoded, err := UnmarshalCheckpoint(data)
			require.NoError(t, err)
			assert.Equal(t, tt.checkpoint, decoded)
		})
	}
}

func TestUnmarshalCheckpoint_Invalid(t *testing.T) {
	valid := MarshalCheckpoint(&core.Checkpoint{Table: "makaleler", Consumed: 12, UpdatedAt: time.Now()})

	tests := []struct {
		name string
		data []byte
	}{
		{"empty data", []byte{}},
		{"truncated", valid[:len(valid)/2]},
		{"unknown version", append([]byte{0x7f}, valid[1:]...)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UnmarshalCheckpoint(tt.data)
			assert.ErrorIs(t, err, ErrSerializationFailed)
		})
	}
}
