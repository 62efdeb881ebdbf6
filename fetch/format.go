package fetch

import (
	"fmt"
	"net/url"

	"github.com/Masterminds/semver/v3"
)

// DefaultVersionParam is the query parameter used for cache busting.
const DefaultVersionParam = "v"

// Formatter rewrites a module URL just before it is fetched. The loader's
// identity of a module is never affected.
type Formatter interface {
	Format(url string) string
}

// FormatterFunc adapts a function to a Formatter.
type FormatterFunc func(url string) string

// Format implements Formatter.
func (f FormatterFunc) Format(url string) string {
	return f(url)
}

// Identity leaves URLs unchanged.
var Identity Formatter = FormatterFunc(func(u string) string { return u })

// VersionFormatter appends the application version as a query parameter so
// that HTTP caches are invalidated on upgrade.
type VersionFormatter struct {
	version *semver.Version
	param   string
}

// NewVersionFormatter parses version as a semantic version. An empty param
// means DefaultVersionParam.
func NewVersionFormatter(version, param string) (*VersionFormatter, error) {
	v, err := semver.NewVersion(version)
	if err != nil {
		return nil, fmt.Errorf("invalid version %q: %w", version, err)
	}
	if param == "" {
		param = DefaultVersionParam
	}
	return &VersionFormatter{version: v, param: param}, nil
}

// Version returns the normalized version string.
func (f *VersionFormatter) Version() string {
	return f.version.String()
}

// Format implements Formatter. Unparseable URLs and URLs that already carry
// the parameter are returned unchanged.
func (f *VersionFormatter) Format(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	if q.Has(f.param) {
		return raw
	}
	q.Set(f.param, f.version.String())
	u.RawQuery = q.Encode()
	return u.String()
}
