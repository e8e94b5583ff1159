// Package secrets resolves credentials referenced from configuration: inline
// values with ${VAR} or ${VAR:-default} references, and mounted secret files
// such as /run/secrets/jwt.
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/evmtrack/evmtrack/internal/errors"
)

// maxFileSize bounds secret file reads.
const maxFileSize = 64 * 1024

// refPattern matches ${VAR} and ${VAR:-default}. A bare $ is left alone.
var refPattern = regexp.MustCompile(`\$\{([^}]*)\}`)

// Expand replaces ${VAR} and ${VAR:-default} references with environment
// values. A reference without a default to an unset variable is an error.
func Expand(s string) (string, error) {
	if s == "" {
		return "", nil
	}

	var missing []string
	expanded := refPattern.ReplaceAllStringFunc(s, func(ref string) string {
		name, fallback, hasFallback := strings.Cut(ref[2:len(ref)-1], ":-")
		if v := os.Getenv(name); v != "" {
			return v
		}
		if !hasFallback {
			missing = append(missing, name)
		}
		return fallback
	})

	if len(missing) > 0 {
		return "", errors.Newf("missing environment variable(s): %s", strings.Join(missing, ", ")).
			Component("secrets").
			Category(errors.CategoryConfiguration).
			Build()
	}
	return expanded, nil
}

// ReadFile returns the contents of a secret file without trailing newlines.
// Warnings about group or world readable files are returned alongside the
// secret so callers can log them.
func ReadFile(path string) (secret, warning string, err error) {
	clean := filepath.Clean(path)
	info, err := os.Stat(clean)
	if err != nil {
		return "", "", fileError(clean, err)
	}
	switch {
	case !info.Mode().IsRegular():
		return "", "", fileError(clean, fmt.Errorf("not a regular file"))
	case info.Size() > maxFileSize:
		return "", "", fileError(clean, fmt.Errorf("larger than %d bytes", maxFileSize))
	}
	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		warning = fmt.Sprintf("secret file %s is accessible by group or others (mode %04o)", clean, perm)
	}

	data, err := os.ReadFile(clean)
	if err != nil {
		return "", "", fileError(clean, err)
	}
	secret = strings.TrimRight(string(data), "\r\n")
	if secret == "" {
		return "", "", fileError(clean, fmt.Errorf("file is empty"))
	}
	return secret, warning, nil
}

// Resolve returns the secret for field. A file path wins over the inline
// value; the inline value is expanded.
func Resolve(field, filePath, value string) (secret, warning string, err error) {
	if filePath != "" {
		secret, warning, err = ReadFile(filePath)
		if err != nil {
			return "", "", errors.New(err).
				Component("secrets").
				Category(errors.CategoryConfiguration).
				Context("field", field).
				Build()
		}
		return secret, warning, nil
	}
	secret, err = Expand(value)
	if err != nil {
		return "", "", errors.New(err).
			Component("secrets").
			Category(errors.CategoryConfiguration).
			Context("field", field).
			Build()
	}
	return secret, "", nil
}

func fileError(path string, err error) error {
	return errors.New(fmt.Errorf("secret file %s: %w", path, err)).
		Component("secrets").
		Category(errors.CategoryFileIO).
		Context("path", path).
		Build()
}
