package domain

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "stash/pkg/domain-errors"
)

// TestParseUUID_Invariants validates the parsing invariant:
// "IDs must be valid, non-empty, non-nil UUIDs"
func TestParseUUID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseItemID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidArgument))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseItemID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidArgument))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseReservationID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidArgument))
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		validUUID := uuid.New()
		id, err := ParseItemID(validUUID.String())
		require.NoError(t, err)
		assert.Equal(t, ItemID(validUUID), id)
	})
}

// TestTypeDistinction verifies item and reservation identifiers stay distinct values.
func TestTypeDistinction(t *testing.T) {
	itemID := NewItemID()
	reservationID := NewReservationID()

	// var _ ItemID = reservationID would not compile.
	assert.NotEqual(t, uuid.UUID(itemID), uuid.UUID(reservationID))
	assert.False(t, itemID.IsNil())
	assert.True(t, ItemID{}.IsNil())
}

func TestParseID_BoundaryInputs(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"path traversal", "../../../etc/passwd", true},
		{"null byte injection", "550e8400\x00-e29b-41d4-a716-446655440000", true},
		{"oversized input", strings.Repeat("a", 1000), true},
		{"whitespace only", "   ", true},
		{"nil UUID", uuid.Nil.String(), true},
		{"uppercase valid UUID", "550E8400-E29B-41D4-A716-446655440000", false},
		{"valid UUID lowercase", "550e8400-e29b-41d4-a716-446655440000", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, errItem := ParseItemID(tt.input)
			_, errReservation := ParseReservationID(tt.input)
			if tt.wantErr {
				require.Error(t, errItem)
				require.Error(t, errReservation)
				assert.True(t, dErrors.HasCode(errItem, dErrors.CodeInvalidArgument))
				return
			}
			require.NoError(t, errItem)
			require.NoError(t, errReservation)
		})
	}
}

func TestIDsEncodeAsJSONStrings(t *testing.T) {
	type payload struct {
		ItemID        ItemID        `json:"item_id"`
		ReservationID ReservationID `json:"reservation_id"`
	}
	in := payload{ItemID: NewItemID(), ReservationID: NewReservationID()}

	raw, err := json.Marshal(in)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"item_id":"`+in.ItemID.String()+`"`)

	var out payload
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, in, out)

	err = json.Unmarshal([]byte(`{"item_id":"nope"}`), &out)
	require.Error(t, err)
}
