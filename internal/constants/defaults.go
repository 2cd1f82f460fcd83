// Where: internal/constants/defaults.go
// What: Default values applied when configuration omits a field.
// Why: Synthesized manifests must be deterministic for a given configuration.
package constants

const (
	DefaultTimeout                 = 30
	DefaultLoadBalancerExtraTime   = 1
	DefaultLogRetentionInDays      = 90
	DefaultBuildConcurrency        = 10
	DefaultBatchAttempts           = 1
	DefaultRoutePriority           = 1
	DefaultRouteMethod             = "ANY"
	DefaultLogsMultilinePattern    = "(([a-zA-Z0-9-]* [[a-zA-Za-]*] )|([[a-zA-Za -]*] ))"
	DefaultHealthCheckInterval     = 15
	DefaultHealthCheckTimeout      = 10
	DefaultHealthCheckHealthy      = 2
	DefaultHealthCheckUnhealthy    = 5
	DefaultHealthCheckStatusCode   = "200"
	DefaultTaskCPU                 = 512
	DefaultTaskMemory              = 1024
	DefaultTaskConcurrency         = 1
	DefaultHTTPPort                = 80
	DefaultRepositoryImageLimit    = 100
	DefaultListImagesPageSize      = 100
	DefaultAuthorizerTTL           = 300
	DefaultAuthorizerIdentitySrc   = "method.request.header.Authorization"
	DefaultNewRelicLogLevel        = "info"
	DefaultContainerAppDir         = "/usr/src/app"
	DefaultTaskRoleResource        = "IamRoleLambdaExecution"
	DefaultCommandOutputLimitBytes = 10 * 1024 * 1024

	// Toolchain commands run from the service directory.
	MavenCompileCommand = "mvn clean install"
	GoCompileCommand    = "go mod tidy && go build -o ./build/"
)
