package semver

import (
	"fmt"
	"strconv"
	"strings"
)

type (
	// V is structured semantic version representation
	V struct {
		Major, Minor, Patch uint
		PreRelease          string
		BuildMetadata       []string
	}
)

func (v V) String() string {
	buf := strings.Builder{}
	buf.WriteString(strconv.FormatUint(uint64(v.Major), 10))
	buf.WriteByte('.')
	buf.WriteString(strconv.FormatUint(uint64(v.Minor), 10))
	buf.WriteByte('.')
	buf.WriteString(strconv.FormatUint(uint64(v.Patch), 10))
	if v.PreRelease != "" {
		buf.WriteByte('-')
		buf.WriteString(v.PreRelease)
	}
	if len(v.BuildMetadata) > 0 {
		buf.WriteByte('+')
		buf.WriteString(strings.Join(v.BuildMetadata, "."))
	}

	return buf.String()
}

// Parse - reads version from its string form, e.g. "1.2.3-beta+x64".
// Leading "v" is allowed.
func Parse(s string) (V, error) {
	v := V{}
	rest := strings.TrimPrefix(strings.TrimSpace(s), "v")
	if rest == "" {
		return v, fmt.Errorf("semver.Parse: empty version")
	}
	if i := strings.IndexByte(rest, '+'); i > -1 {
		if i == len(rest)-1 {
			return v, fmt.Errorf("semver.Parse: empty build metadata in %q", s)
		}
		v.BuildMetadata = strings.Split(rest[i+1:], ".")
		rest = rest[:i]
	}
	if i := strings.IndexByte(rest, '-'); i > -1 {
		if i == len(rest)-1 {
			return v, fmt.Errorf("semver.Parse: empty pre-release in %q", s)
		}
		v.PreRelease = rest[i+1:]
		rest = rest[:i]
	}
	parts := strings.Split(rest, ".")
	if len(parts) != 3 {
		return v, fmt.Errorf("semver.Parse: %q is not MAJOR.MINOR.PATCH", s)
	}
	nums := [3]uint{}
	for i, p := range parts {
		n, err := strconv.ParseUint(p, 10, 32)
		if err != nil {
			return v, fmt.Errorf("semver.Parse: invalid number %q in %q", p, s)
		}
		nums[i] = uint(n)
	}
	v.Major, v.Minor, v.Patch = nums[0], nums[1], nums[2]
	return v, nil
}

// Compatible - reports whether o can be read by software of version v,
// that is both have the same major version and o is not newer.
func (v V) Compatible(o V) bool {
	if v.Major != o.Major {
		return false
	}
	if o.Minor != v.Minor {
		return o.Minor < v.Minor
	}
	return o.Patch <= v.Patch
}
