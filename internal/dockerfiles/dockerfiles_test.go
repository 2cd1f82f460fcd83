// Where: internal/dockerfiles/dockerfiles_test.go
// What: Tests for runtime Dockerfile rendering.
// Why: Packaged images depend on the rendered entry files and their destinations.
package dockerfiles

import (
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hybridless/hybridless/internal/builder"
	"github.com/hybridless/hybridless/internal/errs"
	"github.com/hybridless/hybridless/internal/options"
)

func destinations(files []builder.File) []string {
	out := make([]string, 0, len(files))
	for _, f := range files {
		out = append(out, f.Dest)
	}
	return out
}

func TestRenderNodeHTTPDUsesModuleEntry(t *testing.T) {
	r := NewRenderer(t.TempDir())
	files, err := r.Render(Request{Kind: KindHTTPD, Runtime: options.RuntimeNode18, Port: 8080})
	require.NoError(t, err)
	require.Equal(t, []string{"Dockerfile", "index.mjs"}, destinations(files))

	content, err := os.ReadFile(files[0].Source)
	require.NoError(t, err)
	require.Contains(t, string(content), "FROM node:18-alpine")
	require.Contains(t, string(content), "EXPOSE 8080")
	require.Contains(t, string(content), "/opt/hybridless/index.mjs")
}

func TestRenderNodeLegacyUsesCommonJSEntry(t *testing.T) {
	r := NewRenderer(t.TempDir())
	files, err := r.Render(Request{Kind: KindHTTPD, Runtime: options.RuntimeNode14})
	require.NoError(t, err)
	require.Equal(t, []string{"Dockerfile", "index.js"}, destinations(files))
}

func TestRenderPHPHealthCheckLandsUnderRoute(t *testing.T) {
	r := NewRenderer(t.TempDir())
	files, err := r.Render(Request{Kind: KindHTTPD, Runtime: options.RuntimePHP7, HealthRoute: "abc"})
	require.NoError(t, err)
	require.Equal(t, []string{"Dockerfile", "app/abc/index.php"}, destinations(files))

	content, err := os.ReadFile(files[0].Source)
	require.NoError(t, err)
	if !strings.Contains(string(content), "php-apache:7.4") {
		t.Fatalf("unexpected php base image: %s", content)
	}
}

func TestRenderJobEntrypoints(t *testing.T) {
	r := NewRenderer(t.TempDir())
	files, err := r.Render(Request{Kind: KindJob, Runtime: options.RuntimeNode16})
	require.NoError(t, err)
	require.Equal(t, []string{"Dockerfile", "proxy.js"}, destinations(files))

	files, err = r.Render(Request{Kind: KindJob, Runtime: options.RuntimeJava11})
	require.NoError(t, err)
	require.Equal(t, []string{"Dockerfile", "hybridless-entrypoint.sh"}, destinations(files))
}

func TestRenderLambdaJava8AL2(t *testing.T) {
	r := NewRenderer(t.TempDir())
	files, err := r.Render(Request{Kind: KindLambda, Runtime: options.RuntimeJava8AL12, Handler: "a.B::handle"})
	require.NoError(t, err)
	require.Len(t, files, 1)
	content, err := os.ReadFile(files[0].Source)
	require.NoError(t, err)
	require.Contains(t, string(content), "public.ecr.aws/lambda/java:8.al2")
	require.Contains(t, string(content), `CMD [ "a.B::handle" ]`)
}

func TestRenderRejectsUnsupportedPairs(t *testing.T) {
	r := NewRenderer(t.TempDir())
	cases := []Request{
		{Kind: KindProcess, Runtime: options.RuntimeJava11},
		{Kind: KindLambda, Runtime: options.RuntimePHP7},
		{Kind: KindHTTPD, Runtime: options.RuntimeContainer},
	}
	for _, req := range cases {
		_, err := r.Render(req)
		if !errors.Is(err, errs.Of(errs.ConfigInvalid)) {
			t.Fatalf("%s/%s: expected config invalid, got %v", req.Kind, req.Runtime, err)
		}
	}
}

func TestSupports(t *testing.T) {
	if !Supports(KindHTTPD, options.RuntimeGo) {
		t.Fatalf("expected go httpd support")
	}
	if Supports(KindScheduled, options.RuntimeGo) {
		t.Fatalf("did not expect go scheduled support")
	}
}
