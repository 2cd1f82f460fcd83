// Where: internal/constants/env.go
// What: Environment variable naming constants.
// Why: Centralize names injected into containers and read from the host environment.
package constants

const (
	// Injected into container environments
	EnvHybridlessRuntime        = "HYBRIDLESS_RUNTIME"
	EnvNodeConnectionReuse      = "AWS_NODEJS_CONNECTION_REUSE_ENABLED"
	EnvEntrypoint               = "ENTRYPOINT"
	EnvEntrypointFunc           = "ENTRYPOINT_FUNC"
	EnvPort                     = "PORT"
	EnvCORS                     = "CORS"
	EnvTimeout                  = "TIMEOUT"
	EnvCPU                      = "CPU"
	EnvMemory                   = "MEMORY"
	EnvStage                    = "STAGE"
	EnvAWSRegion                = "AWS_REGION"
	EnvAWSAccountID             = "AWS_ACCOUNT_ID"
	EnvECSContainerMetadata     = "ECS_ENABLE_CONTAINER_METADATA"
	EnvHealthRoute              = "HEALTH_ROUTE"
	EnvWebDocumentIndex         = "WEB_DOCUMENT_INDEX"
	EnvNewRelicEnabled          = "NEW_RELIC_ENABLED"
	EnvNewRelicAppName          = "NEW_RELIC_APP_NAME"
	EnvNewRelicLicenseKey       = "NEW_RELIC_LICENSE_KEY"
	EnvNewRelicLogLevel         = "NEW_RELIC_LOG_LEVEL"
	EnvNewRelicNoConfigFile     = "NEW_RELIC_NO_CONFIG_FILE"
	EnvNewRelicDistributedTrace = "NEW_RELIC_DISTRIBUTED_TRACING_ENABLED"

	// Read from the host environment
	EnvAWSEndpoint        = "HYBRIDLESS_AWS_ENDPOINT"
	EnvAWSAccessKeyID     = "HYBRIDLESS_AWS_ACCESS_KEY_ID"
	EnvAWSSecretAccessKey = "HYBRIDLESS_AWS_SECRET_ACCESS_KEY"
	EnvAWSProfile         = "AWS_PROFILE"
	EnvArtifactBucket     = "HYBRIDLESS_ARTIFACT_BUCKET"
	EnvLedgerTable        = "HYBRIDLESS_LEDGER_TABLE"
	EnvStagingDir         = "HYBRIDLESS_STAGING_DIR"
)
