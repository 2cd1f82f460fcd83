// Where: internal/options/types.go
// What: Typed configuration model for the hybridless section.
// Why: Give every stage a validated, typed view of user configuration.
package options

import (
	"github.com/hybridless/hybridless/internal/domain/value"
)

// Plugin is the decoded hybridless section.
type Plugin struct {
	Functions        map[string]*Function `mapstructure:"-"`
	Images           map[string]*Image    `mapstructure:"-"`
	DisableWebpack   bool                 `mapstructure:"disableWebpack"`
	Tags             map[string]string    `mapstructure:"tags"`
	BuildConcurrency int                  `mapstructure:"buildConcurrency"`
}

// Function is one configured application component.
type Function struct {
	Handler                 string            `mapstructure:"handler"`
	VPC                     *VPC              `mapstructure:"-"`
	Timeout                 int               `mapstructure:"timeout"`
	Memory                  int               `mapstructure:"memory"`
	Events                  []EventSpec       `mapstructure:"-"`
	ECSClusterArn           string            `mapstructure:"ecsClusterArn"`
	ECSIngressSecGroupID    string            `mapstructure:"ecsIngressSecGroupId"`
	ALBListenerArn          string            `mapstructure:"albListenerArn"`
	ALBIsPrivate            bool              `mapstructure:"albIsPrivate"`
	ALBAdditionalTimeout    int               `mapstructure:"albAdditionalTimeout"`
	EnableContainerInsights bool              `mapstructure:"enableContainerInsights"`
	UnifiedEventsContainer  bool              `mapstructure:"unifiedEventsContainer"`
	Tags                    map[string]string `mapstructure:"tags"`
	Environment             map[string]any    `mapstructure:"environment"`
}

// VPC holds either the dedicated (cidr) or shared (vpcId) network options.
// Raw keeps the block exactly as configured.
type VPC struct {
	CIDR             string         `mapstructure:"cidr"`
	Subnets          []string       `mapstructure:"subnets"`
	VpcID            string         `mapstructure:"vpcId"`
	SecurityGroupIDs []string       `mapstructure:"securityGroupIds"`
	SubnetIDs        []string       `mapstructure:"subnetIds"`
	ALBSubnetIDs     []string       `mapstructure:"albSubnetIds"`
	Raw              map[string]any `mapstructure:"-"`
}

// Dedicated reports whether the VPC is created for the function.
func (v *VPC) Dedicated() bool { return v != nil && value.IsSet(v.CIDR) }

// Shared reports whether the function joins an existing VPC.
func (v *VPC) Shared() bool { return v != nil && value.IsSet(v.VpcID) }

// Image is a reusable top-level container image.
type Image struct {
	DockerFile            string            `mapstructure:"dockerFile"`
	AdditionalDockerFiles []ContainerFile   `mapstructure:"additionalDockerFiles"`
	DockerBuildArgs       map[string]string `mapstructure:"dockerBuildArgs"`
	Enabled               *bool             `mapstructure:"enabled"`
}

// IsEnabled defaults to true.
func (i *Image) IsEnabled() bool { return i.Enabled == nil || *i.Enabled }

// ContainerFile copies From (relative to Path or the service dir) to To in the build context.
type ContainerFile struct {
	From string `mapstructure:"from"`
	To   string `mapstructure:"to"`
	Path string `mapstructure:"path"`
}

// Route is one HTTP route of an httpd or http/httpAlb lambda event.
type Route struct {
	Path     string `mapstructure:"path"`
	Method   string `mapstructure:"method"`
	Priority int    `mapstructure:"priority"`
	Hostname any    `mapstructure:"hostname"`
}

// CognitoAuthorizer guards a listener with a user pool.
type CognitoAuthorizer struct {
	PoolDomain string `mapstructure:"poolDomain"`
	PoolArn    string `mapstructure:"poolArn"`
	ClientID   string `mapstructure:"clientId"`
}

// Header restricts a load balancer rule to requests carrying a header value.
type Header struct {
	Name  string `mapstructure:"name"`
	Value any    `mapstructure:"value"`
}

// HealthCheck carries load balancer probe tuning.
type HealthCheck struct {
	HealthCheckInterval       int `mapstructure:"healthCheckInterval"`
	HealthCheckTimeout        int `mapstructure:"healthCheckTimeout"`
	HealthCheckHealthyCount   int `mapstructure:"healthCheckHealthyCount"`
	HealthCheckUnhealthyCount int `mapstructure:"healthCheckUnhealthyCount"`
}
