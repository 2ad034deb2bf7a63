package config

const (
	EnvPrefix = "CAMPUSDESK"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "CAMPUSDESK_DB_DSN"
	EnvDBHost = "CAMPUSDESK_DB_HOST"
	EnvDBUser = "CAMPUSDESK_DB_USER"
	EnvDBName = "CAMPUSDESK_DB_NAME"
)

var requiredDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
