package workers

import (
	"testing"

	"pong-platform/models"
	"pong-platform/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newPlayersStore(t *testing.T) (*services.PlayerService, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&models.Player{}))
	return services.NewPlayerService(db), db
}

func newTestConsumer(t *testing.T) (*UserEventConsumer, *gorm.DB) {
	t.Helper()
	players, db := newPlayersStore(t)
	return NewUserEventConsumer(nil, players, "user-events", "pong-platform", "test-1"), db
}

func TestParseUserEvent(t *testing.T) {
	tests := []struct {
		name    string
		values  map[string]interface{}
		wantErr bool
		want    UserEvent
	}{
		{
			name:   "created",
			values: map[string]interface{}{"payload": `{"type":"CREATED","id":7,"username":"ada","avatar":"a.png","timestamp":1700000000000}`},
			want:   UserEvent{Type: EventUserCreated, ID: 7, Username: "ada", Avatar: "a.png", Timestamp: 1700000000000},
		},
		{
			name:   "deleted without avatar",
			values: map[string]interface{}{"payload": `{"type":"DELETED","id":7,"username":"ada","timestamp":1}`},
			want:   UserEvent{Type: EventUserDeleted, ID: 7, Username: "ada", Timestamp: 1},
		},
		{
			name:    "unknown tag rejected at the boundary",
			values:  map[string]interface{}{"payload": `{"type":"BANNED","id":7,"username":"ada"}`},
			wantErr: true,
		},
		{
			name:    "missing payload field",
			values:  map[string]interface{}{"data": `{}`},
			wantErr: true,
		},
		{
			name:    "payload is not JSON",
			values:  map[string]interface{}{"payload": "not-json"},
			wantErr: true,
		},
		{
			name:    "missing user id",
			values:  map[string]interface{}{"payload": `{"type":"CREATED","username":"ada"}`},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseUserEvent(tt.values)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestApplyStoresEventTimestamp(t *testing.T) {
	c, db := newTestConsumer(t)

	require.NoError(t, c.apply(UserEvent{Type: EventUserCreated, ID: 5, Username: "ada", Timestamp: 1700000000000}))
	var p models.Player
	require.NoError(t, db.First(&p, "id = ?", 5).Error)
	assert.Equal(t, int64(1700000000000), p.UpdatedAt.UnixMilli())

	// The update path must keep the event's timestamp too, not replace
	// it with local wall-clock time.
	require.NoError(t, c.apply(UserEvent{Type: EventUserUpdated, ID: 5, Username: "lovelace", Timestamp: 1800000000000}))
	require.NoError(t, db.First(&p, "id = ?", 5).Error)
	assert.Equal(t, int64(1800000000000), p.UpdatedAt.UnixMilli())
}

func TestApplyUpsertsAndDeletes(t *testing.T) {
	c, db := newTestConsumer(t)

	require.NoError(t, c.apply(UserEvent{Type: EventUserCreated, ID: 1, Username: "ada", Avatar: "a.png", Timestamp: 1000}))
	var p models.Player
	require.NoError(t, db.First(&p, "id = ?", 1).Error)
	assert.Equal(t, "ada", p.Username)

	// UPDATED overwrites the existing row, last write wins.
	require.NoError(t, c.apply(UserEvent{Type: EventUserUpdated, ID: 1, Username: "lovelace", Avatar: "b.png", Timestamp: 2000}))
	require.NoError(t, db.First(&p, "id = ?", 1).Error)
	assert.Equal(t, "lovelace", p.Username)
	assert.Equal(t, "b.png", p.Avatar)

	var count int64
	require.NoError(t, db.Model(&models.Player{}).Count(&count).Error)
	assert.Equal(t, int64(1), count, "update does not duplicate the row")

	require.NoError(t, c.apply(UserEvent{Type: EventUserDeleted, ID: 1, Username: "lovelace"}))
	err := db.First(&p, "id = ?", 1).Error
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	// Deleting an already absent player (redelivery) stays clean.
	require.NoError(t, c.apply(UserEvent{Type: EventUserDeleted, ID: 1}))
}
