package sensor

// Label thresholds. Values on a boundary fall into the "normal" band.
const (
	TempCold = 5.0
	TempHot  = 30.0

	HumidityDry   = 30.0
	HumidityHumid = 70.0

	PressureLow  = 990.0
	PressureHigh = 1030.0
)

// Analysis is the result of classifying a reading.
type Analysis struct {
	Temperature string `json:"temperature"`
	Humidity    string `json:"humidity"`
	Pressure    string `json:"pressure"`
	Status      string `json:"status"`
}

// Processed pairs a reading with its analysis.
type Processed struct {
	Reading  Reading  `json:"reading"`
	Analysis Analysis `json:"analysis"`
}

// Analyze labels each measurement and flags the reading as "alert" when any
// label is outside its normal band.
func Analyze(r Reading) Analysis {
	a := Analysis{
		Temperature: band(r.Temperature, TempCold, TempHot, "cold", "hot"),
		Humidity:    band(r.Humidity, HumidityDry, HumidityHumid, "dry", "humid"),
		Pressure:    band(r.Pressure, PressureLow, PressureHigh, "low", "high"),
		Status:      "ok",
	}

	if a.Temperature != "normal" || a.Humidity != "normal" || a.Pressure != "normal" {
		a.Status = "alert"
	}

	return a
}

func band(v, low, high float64, lowLabel, highLabel string) string {
	switch {
	case v < low:
		return lowLabel
	case v > high:
		return highLabel
	default:
		return "normal"
	}
}
