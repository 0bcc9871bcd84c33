package job

import (
	"regexp"
	"strconv"
)

// metricPatterns maps each PPA field to the regex used to pull it out of a
// synthesis tool's report tail. Report formats vary across EDA toolchains,
// so these match the loose "label: number unit" convention common to
// STA/power-report text rather than any single vendor's exact layout.
var (
	wnsPattern   = regexp.MustCompile(`(?i)\bWNS\b[^0-9\-]*(-?[0-9]+(?:\.[0-9]+)?)`)
	tnsPattern   = regexp.MustCompile(`(?i)\bTNS\b[^0-9\-]*(-?[0-9]+(?:\.[0-9]+)?)`)
	areaPattern  = regexp.MustCompile(`(?i)\barea\b[^0-9\-]*(-?[0-9]+(?:\.[0-9]+)?)`)
	powerPattern = regexp.MustCompile(`(?i)\b(?:total )?power\b[^0-9\-]*(-?[0-9]+(?:\.[0-9]+)?)`)
)

// parseMetrics scans log (most recent lines last) for WNS/TNS/area/power
// figures, keeping the last match of each since later report sections
// supersede earlier ones. Any metric never matched stays nil, matching
// the "absence is not an error" note on partial reports.
func parseMetrics(log []string) *PPA {
	var ppa PPA
	for _, line := range log {
		if v, ok := matchFloat(wnsPattern, line); ok {
			ppa.WNSns = &v
		}
		if v, ok := matchFloat(tnsPattern, line); ok {
			ppa.TNSns = &v
		}
		if v, ok := matchFloat(areaPattern, line); ok {
			ppa.AreaUm2 = &v
		}
		if v, ok := matchFloat(powerPattern, line); ok {
			ppa.PowerMw = &v
		}
	}
	if ppa.WNSns == nil && ppa.TNSns == nil && ppa.AreaUm2 == nil && ppa.PowerMw == nil {
		return nil
	}
	return &ppa
}

func matchFloat(re *regexp.Regexp, line string) (float64, bool) {
	m := re.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
