package models

import "sort"

const (
	ProductCarMaker        = "CarMaker"
	ProductTruckMaker      = "TruckMaker"
	ProductMotorcycleMaker = "MotorcycleMaker"
)

var fallbacks = map[string]string{
	ProductCarMaker:        "generic",
	ProductTruckMaker:      "generic_truck",
	ProductMotorcycleMaker: "generic_moto",
}

// Fallback names the placeholder model for a product. Unknown products get
// the CarMaker placeholder.
func Fallback(product string) string {
	if name, ok := fallbacks[product]; ok {
		return name
	}
	return fallbacks[ProductCarMaker]
}

func IsFallback(name string) bool {
	for _, f := range fallbacks {
		if f == name {
			return true
		}
	}
	return false
}

func Products() []string {
	names := make([]string, 0, len(fallbacks))
	for p := range fallbacks {
		names = append(names, p)
	}
	sort.Strings(names)
	return names
}
