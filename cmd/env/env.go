package env

const (
	// Prefix is the shared ENV variable prefix
	Prefix = "P2PRATES"

	// DBURLSuffix is the Postgres connection string variable suffix
	DBURLSuffix = "_DB_URL"

	// RedisURLSuffix is the Redis connection string variable suffix
	RedisURLSuffix = "_REDIS_URL"
)
