package db

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"

	"github.com/adekerz/FreshTrack-sub004/internal/types"
)

// Configuration keys consumed by the engine. Administrators edit these
// through the settings CRUD collaborator; the engine only reads.
const (
	SettingSendTimeTelegram = "notify.telegram.sendTime"
	SettingSendTime         = "notify.sendTime"
	SettingTimezoneSystem   = "locale.timezone"
	SettingTimezoneHotel    = "display.timezone"
	SettingChannelEmail     = "notify.channels.email"
	SettingChannelTelegram  = "notify.channels.telegram"
	SettingTemplates        = "notify.templates"
)

// SettingsRepository reads the key/value settings table. A row with a NULL
// hotel_id is a system-level setting; a row with a hotel_id overrides it for
// that hotel.
type SettingsRepository struct {
	db DBTX
}

// NewSettingsRepository creates a SettingsRepository backed by the given
// database connection (pool or transaction).
func NewSettingsRepository(db DBTX) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Get returns the value for a key at the given scope. hotelID nil reads the
// system-level row. The second return reports whether the key exists.
func (r *SettingsRepository) Get(ctx context.Context, hotelID *string, key string) (string, bool, error) {
	var value string
	err := r.db.QueryRow(ctx,
		`SELECT value FROM settings
		 WHERE key = $2
		   AND (($1::text IS NULL AND hotel_id IS NULL) OR hotel_id = $1)`,
		hotelID, key,
	).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, types.NewAppError(types.ErrCodeInternalDB, "failed to read setting", err)
	}
	return value, true, nil
}

// GetWithFallback returns the hotel-level value when present, otherwise the
// system-level value. hotelID nil skips straight to system level.
func (r *SettingsRepository) GetWithFallback(ctx context.Context, hotelID *string, key string) (string, bool, error) {
	if hotelID != nil {
		v, ok, err := r.Get(ctx, hotelID, key)
		if err != nil || ok {
			return v, ok, err
		}
	}
	return r.Get(ctx, nil, key)
}

// GetBool reads a boolean setting with hotel-over-system fallback. Missing or
// unparsable values return the provided default.
func (r *SettingsRepository) GetBool(ctx context.Context, hotelID *string, key string, def bool) (bool, error) {
	v, ok, err := r.GetWithFallback(ctx, hotelID, key)
	if err != nil {
		return def, err
	}
	if !ok {
		return def, nil
	}
	b, perr := strconv.ParseBool(v)
	if perr != nil {
		return def, nil
	}
	return b, nil
}
