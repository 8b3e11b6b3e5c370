package enums

const (
	REDIS_CHANNEL_RELAY      = "syncboard:relay"
	REDIS_KEY_ROOM_MEMBERS   = "syncboard:room:%s:members"
	FILE_BUCKET_SNAPSHOTS    = "board-snapshots"
	DATABASE_DRIVER_POSTGRES = "postgres"
	DATABASE_DRIVER_SQLITE   = "sqlite"
	RELAY_BROKER_LOCAL       = "local"
	RELAY_BROKER_REDIS       = "redis"
)
