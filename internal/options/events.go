// Where: internal/options/events.go
// What: Event spec variants keyed by eventType.
// Why: Each variant carries only the attributes its synthesis reads.
package options

// EventSpec is implemented by every event variant.
type EventSpec interface {
	Type() EventType
	Common() *BaseEvent
}

// ContainerEventSpec is implemented by variants that materialize an image.
type ContainerEventSpec interface {
	EventSpec
	Container() *ContainerSpec
}

// BaseEvent holds attributes shared by all variants.
type BaseEvent struct {
	EventType           EventType      `mapstructure:"eventType"`
	Runtime             Runtime        `mapstructure:"runtime"`
	Handler             string         `mapstructure:"handler"`
	Enabled             *bool          `mapstructure:"enabled"`
	Memory              int            `mapstructure:"memory"`
	Role                string         `mapstructure:"role"`
	LogsRetentionInDays int            `mapstructure:"logsRetentionInDays"`
	Environment         map[string]any `mapstructure:"environment"`
}

func (b *BaseEvent) Common() *BaseEvent { return b }

// IsEnabled defaults to true.
func (b *BaseEvent) IsEnabled() bool { return b.Enabled == nil || *b.Enabled }

// ContainerSpec describes either an inline image or a reference to a shared one.
type ContainerSpec struct {
	DockerFile            string            `mapstructure:"dockerFile"`
	AdditionalDockerFiles []ContainerFile   `mapstructure:"additionalDockerFiles"`
	DockerBuildArgs       map[string]string `mapstructure:"dockerBuildArgs"`
	Entrypoint            any               `mapstructure:"entrypoint"`
	ImageID               string            `mapstructure:"imageId"`
}

func (c *ContainerSpec) Container() *ContainerSpec { return c }

// TaskSpec holds ECS task attributes shared by cluster-task variants.
type TaskSpec struct {
	EC2LaunchType        bool   `mapstructure:"ec2LaunchType"`
	DaemonType           bool   `mapstructure:"daemonType"`
	NewRelicKey          string `mapstructure:"newRelicKey"`
	Concurrency          int    `mapstructure:"concurrency"`
	CPU                  int    `mapstructure:"cpu"`
	LogsMultilinePattern string `mapstructure:"logsMultilinePattern"`
	AutoScale            any    `mapstructure:"autoScale"`
}

// HTTPDEvent is a load-balanced HTTP service task.
type HTTPDEvent struct {
	BaseEvent     `mapstructure:",squash"`
	ContainerSpec `mapstructure:",squash"`
	TaskSpec      `mapstructure:",squash"`
	HealthCheck   `mapstructure:",squash"`

	Routes            []Route            `mapstructure:"routes"`
	CORS              any                `mapstructure:"cors"`
	Hostname          any                `mapstructure:"hostname"`
	LimitSourceIPs    any                `mapstructure:"limitSourceIPs"`
	LimitHeader       *Header            `mapstructure:"limitHeader"`
	Priority          int                `mapstructure:"priority"`
	Port              int                `mapstructure:"port"`
	CertificateArns   []string           `mapstructure:"certificateArns"`
	CognitoAuthorizer *CognitoAuthorizer `mapstructure:"cognitoAuthorizer"`
}

func (e *HTTPDEvent) Type() EventType { return EventHTTPD }

// ProcessEvent is a long-running worker task without a load balancer.
type ProcessEvent struct {
	BaseEvent     `mapstructure:",squash"`
	ContainerSpec `mapstructure:",squash"`
	TaskSpec      `mapstructure:",squash"`
}

func (e *ProcessEvent) Type() EventType { return EventProcess }

// ScheduledTaskEvent runs a task on a schedule.
type ScheduledTaskEvent struct {
	BaseEvent     `mapstructure:",squash"`
	ContainerSpec `mapstructure:",squash"`
	TaskSpec      `mapstructure:",squash"`

	SchedulerRate  any `mapstructure:"schedulerRate"`
	SchedulerInput any `mapstructure:"schedulerInput"`
}

func (e *ScheduledTaskEvent) Type() EventType { return EventScheduledTask }

// LaunchableTaskEvent is a task definition started on demand.
type LaunchableTaskEvent struct {
	BaseEvent     `mapstructure:",squash"`
	ContainerSpec `mapstructure:",squash"`
	TaskSpec      `mapstructure:",squash"`

	PlacementStrategies      any `mapstructure:"placementStrategies"`
	PlacementConstraints     any `mapstructure:"placementConstraints"`
	CapacityProviderStrategy any `mapstructure:"capacityProviderStrategy"`
	PropagateTags            any `mapstructure:"propagateTags"`
}

func (e *LaunchableTaskEvent) Type() EventType { return EventLaunchableTask }

// LambdaSpec holds the trigger attributes shared by lambda variants.
type LambdaSpec struct {
	HealthCheck `mapstructure:",squash"`

	Protocol               Protocol           `mapstructure:"protocol"`
	ProtocolArn            any                `mapstructure:"protocolArn"`
	QueueBatchSize         int                `mapstructure:"queueBatchSize"`
	FilterPolicy           any                `mapstructure:"filterPolicy"`
	SchedulerRate          any                `mapstructure:"schedulerRate"`
	SchedulerInput         any                `mapstructure:"schedulerInput"`
	S3Bucket               string             `mapstructure:"s3bucket"`
	S3Event                string             `mapstructure:"s3event"`
	S3BucketExisting       bool               `mapstructure:"s3bucketExisting"`
	S3Rules                any                `mapstructure:"s3rules"`
	CloudWatchEventSource  any                `mapstructure:"cloudWatchEventSource"`
	CloudWatchDetailType   string             `mapstructure:"cloudWatchDetailType"`
	CloudWatchDetailState  string             `mapstructure:"cloudWatchDetailState"`
	CloudWatchLogGroup     string             `mapstructure:"cloudWatchLogGroup"`
	CloudWatchLogFilter    string             `mapstructure:"cloudWatchLogFilter"`
	CognitoTrigger         string             `mapstructure:"cognitoTrigger"`
	CognitoUserPoolArn     string             `mapstructure:"cognitoUserPoolArn"`
	EventBridgeBus         string             `mapstructure:"eventBridgeBus"`
	EventBridgePattern     any                `mapstructure:"eventBridgePattern"`
	Routes                 []Route            `mapstructure:"routes"`
	CORS                   any                `mapstructure:"cors"`
	CognitoAuthorizerArn   string             `mapstructure:"cognitoAuthorizerArn"`
	CognitoAuthorizer      *CognitoAuthorizer `mapstructure:"cognitoAuthorizer"`
	LimitHeader            *Header            `mapstructure:"limitHeader"`
	LimitSourceIPs         any                `mapstructure:"limitSourceIPs"`
	HealthCheckRoute       string             `mapstructure:"healthCheckRoute"`
	ReservedConcurrency    int                `mapstructure:"reservedConcurrency"`
	DisableTracing         bool               `mapstructure:"disableTracing"`
	ProvisionedConcurrency int                `mapstructure:"provisionedConcurrency"`
	ConcurrencyAutoscaling any                `mapstructure:"concurrencyAutoscaling"`
}

// LambdaEvent is a plain function deployed from a handler.
type LambdaEvent struct {
	BaseEvent  `mapstructure:",squash"`
	LambdaSpec `mapstructure:",squash"`

	Layers []string `mapstructure:"layers"`
}

func (e *LambdaEvent) Type() EventType { return EventLambda }

// LambdaContainerEvent is a function deployed from a container image.
type LambdaContainerEvent struct {
	BaseEvent     `mapstructure:",squash"`
	ContainerSpec `mapstructure:",squash"`
	LambdaSpec    `mapstructure:",squash"`
}

func (e *LambdaContainerEvent) Type() EventType { return EventLambdaContainer }

// JobEvent is a batch job definition.
type JobEvent struct {
	BaseEvent     `mapstructure:",squash"`
	ContainerSpec `mapstructure:",squash"`

	JobType              string            `mapstructure:"type"`
	RetryCount           int               `mapstructure:"retryCount"`
	PropagateTags        bool              `mapstructure:"propagateTags"`
	Tags                 map[string]string `mapstructure:"tags"`
	Timeout              int               `mapstructure:"timeout"`
	RunsOnFargate        bool              `mapstructure:"runsOnFargate"`
	CPU                  int               `mapstructure:"cpu"`
	SoftCPU              int               `mapstructure:"softCPU"`
	LogsMultilinePattern string            `mapstructure:"logsMultilinePattern"`
}

func (e *JobEvent) Type() EventType { return EventJob }
