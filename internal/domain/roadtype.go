package domain

// roadTypeLabels maps upstream road type codes to display labels.
var roadTypeLabels = map[int]string{
	1:  "Street",
	2:  "Primary Street",
	3:  "Freeway (Interstate / Other)",
	4:  "Ramp",
	5:  "Routable Pedestrian Path",
	6:  "Major Highway",
	7:  "Minor Highway",
	8:  "Off-road / Not maintained",
	9:  "Walkway",
	10: "Non-Routable Pedestrian Path",
	15: "Ferry",
	16: "Stairway",
	17: "Private Road",
	18: "Railroad",
	19: "Runway",
	20: "Parking Lot Road",
	22: "Passageway",
}

// roadTypeColors maps road type codes to the notification accent color.
var roadTypeColors = map[int]int{
	1:  0xD5D4C4,
	2:  0xD5CF4D,
	3:  0xAF6ABA,
	4:  0x9EA99F,
	5:  0x8e44ad,
	6:  0x3CA3B9,
	7:  0x5EA978,
	8:  0x95a5a6,
	9:  0x7f8c8d,
	10: 0x34495e,
	15: 0x16a085,
	16: 0x27ae60,
	17: 0xA8A45F,
	18: 0x8e44ad,
	19: 0x2980b9,
	20: 0x979797,
	22: 0x2ecc71,
}

// DefaultRoadColor is used when a road type has no color entry.
const DefaultRoadColor = 0x3498db

// RoadTypeLabel returns the display label for a road type code, or "Unknown"
// for codes not in the table.
func RoadTypeLabel(code int) string {
	if label, ok := roadTypeLabels[code]; ok {
		return label
	}
	return "Unknown"
}

// RoadTypeColor returns the accent color for a road type code, falling back
// to DefaultRoadColor.
func RoadTypeColor(code int) int {
	if c, ok := roadTypeColors[code]; ok {
		return c
	}
	return DefaultRoadColor
}
