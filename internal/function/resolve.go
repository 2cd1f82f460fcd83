// Where: internal/function/resolve.go
// What: Handler entrypoint derivation and VPC block resolution.
// Why: Every variant projects the same entrypoint and network rules into its synthesis.
package function

import (
	"fmt"
	"strings"

	"github.com/hybridless/hybridless/internal/options"
)

// Entrypoint splits a handler into the module (or class, or directory)
// and the symbol invoked inside it.
//
//	php   "src/index.php"          -> "src", "/index.php"
//	node  "src/handler.main"       -> "src/handler", "main"
//	java  "com.acme.App::handle"   -> "com.acme.App", "handle"
//	go    "bin/app"                -> "bin/app", ""
func Entrypoint(handler string, runtime options.Runtime) (string, string) {
	switch runtime.Family() {
	case options.FamilyPHP:
		entry := dropLast(handler, "/", false)
		return entry, strings.Replace(handler, entry, "", 1)
	case options.FamilyNode:
		entry := dropLast(handler, ".", false)
		fn := strings.Replace(handler, entry, "", 1)
		return entry, strings.Replace(fn, ".", "", 1)
	case options.FamilyJava:
		entry := dropLast(handler, "::", true)
		fn := strings.Replace(handler, entry, "", 1)
		return entry, strings.Replace(fn, "::", "", 1)
	case options.FamilyGo:
		return handler, ""
	}
	return "", ""
}

func dropLast(s, sep string, keepSingle bool) string {
	parts := strings.Split(s, sep)
	if keepSingle && len(parts) == 1 {
		return s
	}
	return strings.Join(parts[:len(parts)-1], sep)
}

// vpcBlock resolves the function network settings. Lambdas joining a
// dedicated VPC reference the security group and subnets the cluster
// synthesis creates; lambdas joining a shared VPC drop vpcId. The
// result is empty when no VPC is configured.
func (s *scope) vpcBlock(lambda bool) map[string]any {
	vpc := s.spec.VPC
	if !vpc.Dedicated() && !vpc.Shared() {
		return map[string]any{}
	}
	switch {
	case lambda && vpc.Dedicated():
		subnets := make([]any, 0, len(vpc.Subnets))
		for i := range vpc.Subnets {
			subnets = append(subnets, map[string]any{"Ref": fmt.Sprintf("SubnetName%s%d", s.env.Stage, i)})
		}
		group := fmt.Sprintf("%s%sECSServiceSecGroup%s", s.env.ServiceKey(), s.key(), s.env.Stage)
		return map[string]any{"vpc": map[string]any{
			"securityGroupIds": []any{map[string]any{"Ref": group}},
			"subnetIds":        subnets,
		}}
	case lambda:
		block := make(map[string]any, len(vpc.Raw))
		for k, v := range vpc.Raw {
			if k != "vpcId" {
				block[k] = v
			}
		}
		return map[string]any{"vpc": block}
	}
	return map[string]any{"vpc": vpc.Raw}
}
