// Where: internal/options/runtime.go
// What: Runtime, event-type, and protocol enumerations.
// Why: Dispatch on typed values instead of scattered string comparisons.
package options

import (
	"strings"
)

// Runtime names the language runtime an event runs on (nodejs18, php7, java11, go, container).
type Runtime string

const (
	RuntimeNode10    Runtime = "nodejs10"
	RuntimeNode12    Runtime = "nodejs12"
	RuntimeNode13    Runtime = "nodejs13"
	RuntimeNode14    Runtime = "nodejs14"
	RuntimeNode16    Runtime = "nodejs16"
	RuntimeNode18    Runtime = "nodejs18"
	RuntimeNode20    Runtime = "nodejs20"
	RuntimeNode22    Runtime = "nodejs22"
	RuntimePHP5      Runtime = "php5"
	RuntimePHP7      Runtime = "php7"
	RuntimeJava8     Runtime = "java8"
	RuntimeJava8AL12 Runtime = "java8al12"
	RuntimeJava11    Runtime = "java11"
	RuntimeGo        Runtime = "go"
	RuntimeContainer Runtime = "container"
)

// Family groups runtimes that share packaging rules.
type Family int

const (
	FamilyUnknown Family = iota
	FamilyNode
	FamilyPHP
	FamilyJava
	FamilyGo
	FamilyContainer
)

func (f Family) String() string {
	switch f {
	case FamilyNode:
		return "node"
	case FamilyPHP:
		return "php"
	case FamilyJava:
		return "java"
	case FamilyGo:
		return "go"
	case FamilyContainer:
		return "container"
	}
	return "unknown"
}

// Family classifies the runtime by substring, matching how handlers are interpreted.
func (r Runtime) Family() Family {
	s := strings.ToLower(string(r))
	switch {
	case s == string(RuntimeContainer):
		return FamilyContainer
	case strings.Contains(s, "php"):
		return FamilyPHP
	case strings.Contains(s, "node"):
		return FamilyNode
	case strings.Contains(s, "java"):
		return FamilyJava
	case strings.HasPrefix(s, "go"):
		return FamilyGo
	}
	return FamilyUnknown
}

// Version returns the base-image version component, e.g. "18" for nodejs18
// or "8.al2" for java8al12. Empty for go and container.
func (r Runtime) Version() string {
	s := strings.TrimSuffix(strings.ToLower(string(r)), ".x")
	switch r.Family() {
	case FamilyNode:
		return strings.TrimPrefix(s, "nodejs")
	case FamilyPHP:
		return strings.TrimPrefix(s, "php")
	case FamilyJava:
		if s == string(RuntimeJava8AL12) {
			return "8.al2"
		}
		return strings.TrimPrefix(s, "java")
	}
	return ""
}

// EventType discriminates the event spec union.
type EventType string

const (
	EventHTTPD           EventType = "httpd"
	EventProcess         EventType = "process"
	EventScheduledTask   EventType = "scheduledTask"
	EventLaunchableTask  EventType = "launchableTask"
	EventLambda          EventType = "lambda"
	EventLambdaContainer EventType = "lambdaContainer"
	EventJob             EventType = "job"
)

var eventTypes = []EventType{
	EventHTTPD, EventProcess, EventScheduledTask, EventLaunchableTask,
	EventLambda, EventLambdaContainer, EventJob,
}

// ParseEventType matches case-insensitively against known event types.
func ParseEventType(s string) (EventType, bool) {
	for _, t := range eventTypes {
		if strings.EqualFold(string(t), s) {
			return t, true
		}
	}
	return "", false
}

// IsClusterTask reports whether events of this type contribute ECS services.
func (t EventType) IsClusterTask() bool {
	switch t {
	case EventHTTPD, EventProcess, EventScheduledTask, EventLaunchableTask:
		return true
	}
	return false
}

// Protocol is the trigger source of a lambda event.
type Protocol string

const (
	ProtocolHTTP          Protocol = "http"
	ProtocolHTTPALB       Protocol = "httpAlb"
	ProtocolSQS           Protocol = "sqs"
	ProtocolSNS           Protocol = "sns"
	ProtocolDynamoStreams Protocol = "dynamostreams"
	ProtocolScheduler     Protocol = "scheduler"
	ProtocolCloudWatch    Protocol = "cloudWatch"
	ProtocolCloudWatchLog Protocol = "cloudWatchLogstream"
	ProtocolCognito       Protocol = "cognito"
	ProtocolS3            Protocol = "s3"
	ProtocolEventBridge   Protocol = "eventBridge"
	ProtocolNone          Protocol = "none"
)

// UpstreamKey returns the event key understood by the deployment framework.
func (p Protocol) UpstreamKey() string {
	switch p {
	case ProtocolHTTPALB:
		return "alb"
	case ProtocolDynamoStreams:
		return "stream"
	case ProtocolScheduler:
		return "schedule"
	case ProtocolCloudWatch:
		return "cloudwatchEvent"
	case ProtocolCloudWatchLog:
		return "cloudwatchLog"
	case ProtocolCognito:
		return "cognitoUserPool"
	}
	return string(p)
}

// AcceptsRoutes reports whether the protocol fans out one event per route.
func (p Protocol) AcceptsRoutes() bool {
	return p == ProtocolHTTP || p == ProtocolHTTPALB
}
