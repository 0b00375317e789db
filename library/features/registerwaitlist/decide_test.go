package registerwaitlist_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/library-lending-go/lending"
	"github.com/AntonStoeckl/library-lending-go/library/features/registerwaitlist"
)

func Test_Decide_Success_ItemExhausted(t *testing.T) {
	// arrange
	item := lending.Item{ID: uuid.New(), Title: "Hyperion", TotalCopies: 2, AvailableCopies: 0}
	now := time.Now().UTC()
	command := registerwaitlist.BuildCommand(uuid.New(), item.ID, "ws-7", now)

	// act
	entry, err := registerwaitlist.Decide(item, command)

	// assert
	require.NoError(t, err)
	assert.Equal(t, command.UserID, entry.UserID)
	assert.Equal(t, item.ID, entry.ItemID)
	assert.Equal(t, "ws-7", entry.ChannelID)
	assert.Equal(t, now, entry.CreatedAt)
}

func Test_Decide_AlreadyAvailable(t *testing.T) {
	// arrange
	item := lending.Item{ID: uuid.New(), TotalCopies: 2, AvailableCopies: 1}
	command := registerwaitlist.BuildCommand(uuid.New(), item.ID, "", time.Now())

	// act
	_, err := registerwaitlist.Decide(item, command)

	// assert
	assert.ErrorIs(t, err, lending.ErrAlreadyAvailable)
}

func Test_Outcome_Err(t *testing.T) {
	assert.NoError(t, registerwaitlist.Registered.Err())
	assert.ErrorIs(t, registerwaitlist.AlreadyAvailable.Err(), lending.ErrAlreadyAvailable)
	assert.ErrorIs(t, registerwaitlist.AlreadyRegistered.Err(), lending.ErrAlreadyRegistered)
}
