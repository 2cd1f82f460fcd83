// Where: internal/meta/meta.go
// What: Project identity and lifecycle naming constants.
// Why: Keep command, hook, and directory names in one place.
package meta

const (
	// Project Identity
	AppName        = "hybridless"
	ProviderName   = "aws"
	VariableSource = "hybridless"
	EnvPrefix      = "HYBRIDLESS"

	// Directory Layout
	OutputDir      = ".hybridless"
	StagingDir     = ".hybridless/staging"
	TemplateFile   = "cloudformation-template"
	ServiceFile    = "serverless.yml"
	RepoNameSuffix = ".v3"

	// Execution role synthesized by the host for lambda functions.
	ExecutionRoleResource = "IamRoleLambdaExecution"
	ECSTasksPrincipal     = "ecs-tasks.amazonaws.com"

	// Auxiliary plugins loaded on demand.
	PluginWebpack                 = "serverless-webpack"
	PluginECS                     = "@hybridless/serverless-ecs-plugin"
	PluginLogsRetention           = "@hybridless/serverless-plugin-log-retention"
	PluginProvisionedConcurrency  = "serverless-provisioned-concurrency-autoscaling"
	ECSPluginCompileLifecycle     = "serverless-ecs-plugin:compile"
	ResolveContainerAddressPrefix = "resolveContainerAddress"
)
