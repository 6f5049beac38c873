package profile

import (
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// applianceClass describes how one appliance category draws power over a
// day. The duty function returns the fraction of nameplate power consumed
// during a given hour, zero when the appliance is idle.
type applianceClass struct {
	powerWatts    int
	tempSensitive bool
	duty          func(hour int) decimal.Decimal
}

var classRegistry = map[string]applianceClass{}

func registerClass(name string, c applianceClass) {
	classRegistry[name] = c
}

// Classes returns the known appliance types in lexical order.
func Classes() []string {
	out := make([]string, 0, len(classRegistry))
	for name := range classRegistry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

var (
	dutyOff  = decimal.Zero
	dutyFull = decimal.NewFromInt(1)
)

// hourSet builds a duty function that runs at full power during the listed
// hours and is off otherwise.
func hourSet(hours ...int) func(int) decimal.Decimal {
	active := make(map[int]bool, len(hours))
	for _, h := range hours {
		active[h] = true
	}
	return func(hour int) decimal.Decimal {
		if active[hour] {
			return dutyFull
		}
		return dutyOff
	}
}

func hourRange(from, to int) func(int) decimal.Decimal {
	var hours []int
	for h := from; h <= to; h++ {
		hours = append(hours, h)
	}
	return hourSet(hours...)
}

// compressorDuty models a compressor that cycles continuously, working
// harder through the day than overnight.
func compressorDuty(hour int) decimal.Decimal {
	f := 0.8 + 0.4*math.Sin(2*math.Pi*float64(hour)/24)
	return decimal.NewFromFloat(f).Round(4)
}

// coolingDuty models an air conditioner that carries the midday heat load
// and idles at a low trickle the rest of the day.
func coolingDuty(hour int) decimal.Decimal {
	if hour >= 10 && hour <= 18 {
		return decimal.NewFromFloat(1.5)
	}
	return decimal.NewFromFloat(0.3)
}

func init() {
	registerClass("refrigerator", applianceClass{powerWatts: 150, tempSensitive: true, duty: compressorDuty})
	registerClass("washing_machine", applianceClass{powerWatts: 500, duty: hourSet(7, 19)})
	registerClass("dishwasher", applianceClass{powerWatts: 1800, tempSensitive: true, duty: hourSet(20, 21)})
	registerClass("microwave", applianceClass{powerWatts: 1200, duty: hourSet(8, 13, 19)})
	registerClass("air_conditioner", applianceClass{powerWatts: 2000, tempSensitive: true, duty: coolingDuty})
	registerClass("television", applianceClass{powerWatts: 100, duty: hourRange(18, 22)})
	registerClass("lighting", applianceClass{powerWatts: 60, duty: hourSet(6, 7, 18, 19, 20, 21, 22, 23)})
	registerClass("water_heater", applianceClass{powerWatts: 3000, tempSensitive: true, duty: hourSet(6, 7, 18, 19)})
	registerClass("ev_charger", applianceClass{powerWatts: 7200, duty: hourRange(0, 5)})
}

// Hemisphere month multipliers for temperature-sensitive appliances.
// Winter heating and summer cooling dominate in opposite halves of the
// year depending on the hemisphere.
var seasonalUsage = map[string]map[time.Month]decimal.Decimal{
	HemisphereNorthern: {
		time.January:   decimal.RequireFromString("1.25"),
		time.February:  decimal.RequireFromString("1.20"),
		time.March:     decimal.RequireFromString("1.10"),
		time.April:     decimal.RequireFromString("0.95"),
		time.May:       decimal.RequireFromString("0.90"),
		time.June:      decimal.RequireFromString("1.05"),
		time.July:      decimal.RequireFromString("1.30"),
		time.August:    decimal.RequireFromString("1.35"),
		time.September: decimal.RequireFromString("1.15"),
		time.October:   decimal.RequireFromString("1.00"),
		time.November:  decimal.RequireFromString("1.05"),
		time.December:  decimal.RequireFromString("1.20"),
	},
	HemisphereSouthern: {
		time.January:   decimal.RequireFromString("1.30"),
		time.February:  decimal.RequireFromString("1.25"),
		time.March:     decimal.RequireFromString("1.15"),
		time.April:     decimal.RequireFromString("1.00"),
		time.May:       decimal.RequireFromString("0.90"),
		time.June:      decimal.RequireFromString("0.85"),
		time.July:      decimal.RequireFromString("1.20"),
		time.August:    decimal.RequireFromString("1.25"),
		time.September: decimal.RequireFromString("1.10"),
		time.October:   decimal.RequireFromString("1.00"),
		time.November:  decimal.RequireFromString("0.95"),
		time.December:  decimal.RequireFromString("1.05"),
	},
}
