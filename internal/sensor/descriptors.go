package sensor

// DeviceClass categorises a reading for the host's entity model.
type DeviceClass string

// Device classes used by the descriptor table and derived readings.
const (
	ClassNone                   DeviceClass = ""
	ClassTemperature            DeviceClass = "temperature"
	ClassHumidity               DeviceClass = "humidity"
	ClassPressure               DeviceClass = "pressure"
	ClassWindSpeed              DeviceClass = "wind_speed"
	ClassPrecipitation          DeviceClass = "precipitation"
	ClassPrecipitationIntensity DeviceClass = "precipitation_intensity"
	ClassIrradiance             DeviceClass = "irradiance"
	ClassTimestamp              DeviceClass = "timestamp"
)

// StateClass tells the host how to aggregate a reading over time.
type StateClass string

// State classes.
const (
	StateNone            StateClass = ""
	StateMeasurement     StateClass = "measurement"
	StateTotal           StateClass = "total"
	StateTotalIncreasing StateClass = "total_increasing"
)

// Units of measurement reported by the station in its base configuration.
const (
	UnitFahrenheit     = "°F"
	UnitPercent        = "%"
	UnitMilesPerHour   = "mph"
	UnitDegree         = "°"
	UnitInchesHg       = "inHg"
	UnitInches         = "in"
	UnitInchesPerHour  = "in/h"
	UnitWattsPerSquare = "W/m²"
)

// Descriptor is the static definition of one standard reading.
// An empty Unit, DeviceClass or Icon means none.
type Descriptor struct {
	Key         string
	Name        string
	Unit        string
	DeviceClass DeviceClass
	StateClass  StateClass
	Icon        string
}

// descriptors is the ordered reading table. It is never modified.
var descriptors = []Descriptor{
	{"tempin", "Inside Temperature", UnitFahrenheit, ClassTemperature, StateMeasurement, "mdi:home-thermometer"},
	{"tempout", "Outside Temperature", UnitFahrenheit, ClassTemperature, StateMeasurement, ""},
	{"heat", "Heat Index", UnitFahrenheit, ClassTemperature, StateMeasurement, ""},
	{"chill", "Wind Chill", UnitFahrenheit, ClassTemperature, StateMeasurement, ""},
	{"humin", "Inside Humidity", UnitPercent, ClassHumidity, StateMeasurement, "mdi:water-percent"},
	{"humout", "Outside Humidity", UnitPercent, ClassHumidity, StateMeasurement, ""},
	{"cdew", "Dew Point", UnitFahrenheit, ClassTemperature, StateMeasurement, ""},
	{"windspd", "Current Wind Speed", UnitMilesPerHour, ClassWindSpeed, StateMeasurement, "mdi:weather-windy"},
	{"winddir", "Current Wind Direction", UnitDegree, ClassNone, StateMeasurement, "mdi:compass-outline"},
	{"windavg2", "2 Min Avg Wind Speed", UnitMilesPerHour, ClassWindSpeed, StateMeasurement, "mdi:weather-windy"},
	{"windavg10", "10 Min Avg Wind Speed", UnitMilesPerHour, ClassWindSpeed, StateMeasurement, "mdi:weather-windy"},
	{"gust", "10 Min Wind Gust", UnitMilesPerHour, ClassWindSpeed, StateMeasurement, "mdi:weather-windy-variant"},
	{"gustdir", "Wind Gust Direction", UnitDegree, ClassNone, StateMeasurement, "mdi:compass-outline"},
	{"bar", "Barometer", UnitInchesHg, ClassPressure, StateMeasurement, "mdi:gauge"},
	{"rainr", "Rain Rate", "", ClassPrecipitationIntensity, StateMeasurement, "mdi:weather-pouring"},
	{"raind", "Rain Daily", UnitInches, ClassPrecipitation, StateTotalIncreasing, "mdi:weather-rainy"},
	{"storm", "Rain Storm", UnitInches, ClassPrecipitation, StateTotalIncreasing, "mdi:weather-lightning-rainy"},
	{"rainmon", "Rain Month", UnitInches, ClassPrecipitation, StateTotalIncreasing, "mdi:calendar-month"},
	{"rainyear", "Rain Year", UnitInches, ClassPrecipitation, StateTotalIncreasing, "mdi:calendar-star"},
	{"rain1h", "Rain 1 Hour", UnitInches, ClassPrecipitation, StateTotal, "mdi:clock-time-one-outline"},
	{"rain24", "Rain 24 Hour", UnitInches, ClassPrecipitation, StateTotal, "mdi:clock-time-twelve-outline"},
	{"solar", "Solar Radiation", UnitWattsPerSquare, ClassIrradiance, StateMeasurement, "mdi:solar-power"},
	{"uv", "UV Index", "", ClassNone, StateMeasurement, "mdi:sun-wireless-outline"},
}

// Descriptors returns a copy of the standard reading table, in display order.
func Descriptors() []Descriptor {
	out := make([]Descriptor, len(descriptors))
	copy(out, descriptors)
	return out
}

// LookupDescriptor returns the descriptor for key.
func LookupDescriptor(key string) (Descriptor, bool) {
	for _, d := range descriptors {
		if d.Key == key {
			return d, true
		}
	}
	return Descriptor{}, false
}

// numericClasses are the device classes whose values are always numbers.
var numericClasses = map[DeviceClass]bool{
	ClassTemperature:            true,
	ClassHumidity:               true,
	ClassPressure:               true,
	ClassWindSpeed:              true,
	ClassPrecipitation:          true,
	ClassPrecipitationIntensity: true,
	ClassIrradiance:             true,
}

// NativeUnit is the unit the reading is reported in. Precipitation
// intensity without a table unit is derived from the inch rain gauge.
func (d Descriptor) NativeUnit() string {
	if d.Unit == "" && d.DeviceClass == ClassPrecipitationIntensity {
		return UnitInchesPerHour
	}
	return d.Unit
}

// Numeric reports whether values of this reading are coerced to float64.
func (d Descriptor) Numeric() bool {
	unit := d.NativeUnit()
	switch {
	case numericClasses[d.DeviceClass]:
		return true
	case unit == UnitDegree && d.DeviceClass == ClassNone:
		return true
	case d.Key == "uv" && unit == "":
		return true
	default:
		return false
	}
}
