// Package mains picks the camera anti-banding frequency from the local mains
// supply, inferred from the system timezone.
package mains

import (
	"strings"
	"sync"
	"time"

	tz "github.com/medama-io/go-timezone-country"
	"github.com/thlib/go-timezone-local/tzlocal"

	"github.com/linuxmatters/mediactl/internal/engine"
)

// Supported anti-banding frequencies.
const (
	Hz50 = 50
	Hz60 = 60
)

type countryLookup interface {
	GetCountry(timezone string) (string, error)
}

// Detector resolves timezones to mains frequencies. The timezone table is
// built once on first use.
type Detector struct {
	once   sync.Once
	lookup countryLookup
	err    error
	local  func() (string, error)
}

// NewDetector returns a detector reading the runtime timezone.
func NewDetector() *Detector {
	return &Detector{local: tzlocal.RuntimeTZ}
}

var defaultDetector = NewDetector()

// Local returns the anti-banding frequency for this machine.
func Local() int { return defaultDetector.Local() }

// ForTimezone returns the anti-banding frequency for an IANA timezone.
func ForTimezone(timezone string) int { return defaultDetector.ForTimezone(timezone) }

func (d *Detector) Local() int {
	name, err := d.local()
	if err != nil {
		return Hz50
	}
	return d.ForTimezone(name)
}

// ForTimezone falls back to 50 Hz, the more common supply, whenever the
// timezone has no single country.
func (d *Detector) ForTimezone(timezone string) int {
	if timezone == "UTC" || timezone == "GMT" || strings.HasPrefix(timezone, "Etc/") {
		return Hz50
	}

	d.once.Do(func() {
		m, err := tz.NewTimezoneCountryMap()
		d.lookup, d.err = m, err
	})
	if d.err != nil {
		return Hz50
	}
	country, err := d.lookup.GetCountry(timezone)
	if err != nil {
		return Hz50
	}
	return ForCountry(country)
}

// ForCountry maps a country name to its supply frequency. Japan is split by
// region; the 50 Hz east is chosen.
func ForCountry(country string) int {
	if sixtyHertz[country] {
		return Hz60
	}
	return Hz50
}

// Apply fills in the anti-banding frequency for camera sources that do not
// carry one. Other sources are returned unchanged.
func (d *Detector) Apply(src engine.SourceRef) engine.SourceRef {
	if src.Kind == engine.SourceCamera && src.AntiBandingHz == 0 {
		src.AntiBandingHz = d.Local()
	}
	return src
}

// Apply uses the package detector.
func Apply(src engine.SourceRef) engine.SourceRef { return defaultDetector.Apply(src) }

// FlickerFreeShutter returns the longest shutter time not exceeding limit
// that spans whole light-intensity cycles (twice the mains frequency).
// Limits shorter than one cycle are returned as is.
func FlickerFreeShutter(hz int, limit time.Duration) time.Duration {
	if hz <= 0 {
		return limit
	}
	cycle := time.Second / time.Duration(2*hz)
	if limit < cycle {
		return limit
	}
	return limit - limit%cycle
}

var sixtyHertz = func() map[string]bool {
	regions := [][]string{
		{"United States", "Canada", "Mexico"},
		{"Belize", "Costa Rica", "El Salvador", "Guatemala", "Honduras", "Nicaragua", "Panama"},
		{"Bahamas", "Barbados", "Cayman Islands", "Cuba", "Dominican Republic", "Haiti",
			"Jamaica", "Puerto Rico", "Trinidad and Tobago", "U.S. Virgin Islands"},
		{"Brazil", "Colombia", "Ecuador", "Guyana", "Peru", "Suriname", "Venezuela"},
		{"South Korea", "Taiwan", "Philippines", "Saudi Arabia"},
		{"Guam", "American Samoa", "Marshall Islands", "Micronesia", "Palau"},
	}
	set := make(map[string]bool)
	for _, r := range regions {
		for _, c := range r {
			set[c] = true
		}
	}
	return set
}()
