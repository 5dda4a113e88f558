package quote

import (
	"fmt"
	"strings"
)

// LargeOrderThreshold is the unit count above which an order is flagged.
const LargeOrderThreshold = 10

// leadTimeScale is ordered shortest first.
var leadTimeScale = []string{
	"in stock",
	"1 week",
	"1-2 weeks",
	"2-3 weeks",
	"2-4 weeks",
	"3-4 weeks",
	"4-6 weeks",
	"6-8 weeks",
	"8+ weeks",
}

const longLeadTimeIndex = 6

// Flags mark quotes that need staff attention before sending.
type Flags struct {
	TotalQuantity     int      `json:"totalQuantity"`
	DeliveryZone      Zone     `json:"deliveryZone"`
	NonMetro          bool     `json:"nonMetro"`
	Remote            bool     `json:"remote"`
	LargeOrder        bool     `json:"largeOrder"`
	LongLeadTime      bool     `json:"longLeadTime"`
	LongLeadTimeItems []string `json:"longLeadTimeItems,omitempty"`
}

// Standard reports whether no flag is raised.
func (f Flags) Standard() bool {
	return !f.NonMetro && !f.LargeOrder && !f.LongLeadTime
}

// DetectFlags inspects the items and delivery zone.
func DetectFlags(items []Item, zone Zone) Flags {
	f := Flags{DeliveryZone: zone, NonMetro: zone != ZoneMetro, Remote: zone == ZoneRemote}
	for _, it := range items {
		f.TotalQuantity += it.Quantity
		if leadTimeRank(it.LeadTime) >= longLeadTimeIndex {
			f.LongLeadTimeItems = append(f.LongLeadTimeItems, fmt.Sprintf("%s (%s)", it.Name, it.LeadTime))
		}
	}
	f.LargeOrder = f.TotalQuantity > LargeOrderThreshold
	f.LongLeadTime = len(f.LongLeadTimeItems) > 0
	return f
}

// leadTimeRank returns the first scale entry contained in leadTime, or -1.
func leadTimeRank(leadTime string) int {
	lt := strings.ToLower(strings.TrimSpace(leadTime))
	if lt == "" {
		return -1
	}
	for i, step := range leadTimeScale {
		if strings.Contains(lt, step) {
			return i
		}
	}
	return -1
}
