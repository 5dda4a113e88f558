package quote

import (
	"strconv"
	"strings"
	"unicode"
)

// Zone classifies a delivery address for freight handling.
type Zone string

const (
	ZoneMetro    Zone = "metro"
	ZoneRegional Zone = "regional"
	ZoneRemote   Zone = "remote"
)

type postcodeRange struct{ min, max int }

// metro delivery areas of the capital cities
var metroPostcodes = []postcodeRange{
	{6000, 6199}, {6200, 6214}, {6215, 6239}, // Perth
	{2000, 2249}, {2555, 2574}, {2740, 2786}, // Sydney
	{3000, 3207}, {3335, 3341}, {3427, 3429}, {3750, 3810}, {3910, 3978}, // Melbourne
	{4000, 4179}, {4205, 4275}, {4500, 4519}, // Brisbane
	{5000, 5199}, // Adelaide
}

// matched as whole words only
var remoteKeywords = map[string]bool{
	"mine": true, "mining": true, "quarry": true, "pit": true, "camp": true,
	"site": true, "station": true, "pastoral": true, "remote": true,
}

// ClassifyDelivery returns the delivery zone for an address. Unknown or
// malformed postcodes are regional so staff confirm freight.
func ClassifyDelivery(addr Address) Zone {
	postcode := strings.TrimSpace(addr.Postcode)
	n, err := strconv.Atoi(postcode)
	if err != nil || len(postcode) != 4 {
		return ZoneRegional
	}
	words := strings.FieldsFunc(strings.ToLower(addr.Line1+" "+addr.Suburb), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	for _, w := range words {
		if remoteKeywords[w] {
			return ZoneRemote
		}
	}
	for _, r := range metroPostcodes {
		if n >= r.min && n <= r.max {
			return ZoneMetro
		}
	}
	return ZoneRegional
}
