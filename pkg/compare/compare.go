// Package compare reports differences between declared and observed
// properties that cannot be changed once a machine exists.
package compare

import (
	"strings"

	"github.com/google/go-cmp/cmp"
)

// Immutable holds the creation-time properties of a machine.
type Immutable struct {
	Image    string
	Location string
	Size     string
}

// ImmutableDiff returns the names of the properties that differ between
// desired and observed, plus a human readable diff. Empty desired values are
// treated as "not declared" and never differ.
func ImmutableDiff(desired, observed Immutable) ([]string, string) {
	want := normalize(desired, observed)
	got := normalize(observed, observed)

	r := &fieldReporter{}
	if cmp.Equal(want, got, cmp.Reporter(r)) {
		return nil, ""
	}
	return r.fields, cmp.Diff(got, want)
}

func normalize(v, fallback Immutable) Immutable {
	if v.Image == "" {
		v.Image = fallback.Image
	}
	if v.Location == "" {
		v.Location = fallback.Location
	}
	if v.Size == "" {
		v.Size = fallback.Size
	}
	return Immutable{
		Image:    strings.ToLower(strings.TrimSpace(v.Image)),
		Location: strings.ToLower(strings.ReplaceAll(v.Location, " ", "")),
		Size:     strings.ToLower(strings.TrimSpace(v.Size)),
	}
}

// fieldReporter collects the struct field names of unequal leaves.
type fieldReporter struct {
	path   cmp.Path
	fields []string
}

func (r *fieldReporter) PushStep(ps cmp.PathStep) {
	r.path = append(r.path, ps)
}

func (r *fieldReporter) Report(rs cmp.Result) {
	if rs.Equal() {
		return
	}
	for i := len(r.path) - 1; i >= 0; i-- {
		if sf, ok := r.path[i].(cmp.StructField); ok {
			r.fields = append(r.fields, strings.ToLower(sf.Name()))
			return
		}
	}
}

func (r *fieldReporter) PopStep() {
	r.path = r.path[:len(r.path)-1]
}
