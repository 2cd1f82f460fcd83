// Where: internal/staging/staging.go
// What: Staging directory layout for rendered build assets.
// Why: Keep the renderer and the builder aligned on where rendered files land.
package staging

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hybridless/hybridless/internal/constants"
	"github.com/hybridless/hybridless/internal/meta"
)

// Key returns a stable, filesystem-safe key for a service/stage pair.
func Key(service, stage string) string {
	key := strings.ToLower(strings.TrimSpace(service))
	if key == "" {
		key = meta.AppName
	}
	seed := key
	if stage = strings.TrimSpace(stage); stage != "" {
		seed = fmt.Sprintf("%s:%s", seed, strings.ToLower(stage))
	}
	sum := sha256.Sum256([]byte(seed))
	return fmt.Sprintf("%s-%s", key, hex.EncodeToString(sum[:4]))
}

// RootDir returns the absolute staging root next to the service file.
// HYBRIDLESS_STAGING_DIR overrides the location.
func RootDir(servicePath string) (string, error) {
	if override := strings.TrimSpace(os.Getenv(constants.EnvStagingDir)); override != "" {
		root, err := absPath(override)
		if err != nil {
			return "", err
		}
		return ensureDir(root)
	}
	if strings.TrimSpace(servicePath) == "" {
		return "", fmt.Errorf("service path is empty")
	}
	root, err := absPath(filepath.Join(servicePath, meta.StagingDir))
	if err != nil {
		return "", err
	}
	ensured, err := ensureDir(root)
	if err != nil {
		return "", fmt.Errorf("staging root not writable: %s: %w", root, err)
	}
	return ensured, nil
}

// OwnerDir returns the directory holding rendered files for one image owner.
func OwnerDir(root, service, stage, owner string) (string, error) {
	name := strings.NewReplacer("/", "_", ":", "_").Replace(strings.ToLower(owner))
	return ensureDir(filepath.Join(root, Key(service, stage), name))
}

func absPath(path string) (string, error) {
	if filepath.IsAbs(path) {
		return path, nil
	}
	return filepath.Abs(path)
}

func ensureDir(path string) (string, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", err
	}
	return path, nil
}
