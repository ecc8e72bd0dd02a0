package config

const EnvPrefix = "CONTACTS"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	StorageBackendFile = "file"
	StorageBackendSQL  = "sql"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"

	ImportModeSkip      = "skip"
	ImportModeOverwrite = "overwrite"
)

const (
	EnvAppEnv          = "CONTACTS_APP_ENV"
	EnvPort            = "CONTACTS_APP_PORT"
	EnvStorageBackend  = "CONTACTS_STORAGE_BACKEND"
	EnvDataFile        = "CONTACTS_DATA_FILE"
	EnvDBDSN           = "CONTACTS_DB_DSN"
	EnvDBDriver        = "CONTACTS_DB_DRIVER"
	EnvDBHost          = "CONTACTS_DB_HOST"
	EnvDBUser          = "CONTACTS_DB_USER"
	EnvDBName          = "CONTACTS_DB_NAME"
	EnvRedisURL        = "CONTACTS_REDIS_URL"
	EnvDefaultPageSize = "CONTACTS_DEFAULT_PAGE_SIZE"
	EnvMaxPageSize     = "CONTACTS_MAX_PAGE_SIZE"
	EnvImportMode      = "CONTACTS_IMPORT_MODE"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
