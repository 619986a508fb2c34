// Package scene requests lifestyle images of a quoted vehicle from an image
// generation API and caches the returned references.
package scene

import (
	"fmt"
	"strings"
)

const promptSuffix = "no branding, no logos, no people, no text, ultra-realistic"

var scenes = map[string]string{
	"suv":       "parked on a beachside road trip with roof racks and gear, clear skies, warm Australian light",
	"hatch":     "driving through a modern city laneway at dusk with a cafe backdrop and sharp reflections",
	"sedan":     "parked in a quiet suburban driveway with leafy trees in soft morning light",
	"sports":    "on a winding coastal mountain pass at golden hour with dramatic lighting",
	"ute":       "on a dirt trail in rugged Australian bush with mountain bikes secured in the tray and a dust trail",
	"large_ute": "towing a camper along an outback track under a wide blue sky, red dust",
	"van":       "loaded for a family weekend outside a beach house, surfboards on the roof",
	"luxury":    "parked outside a high-end hotel on a clean footpath in dusk lighting",
	"electric":  "charging at a modern public charging station with minimalist architecture at sunrise",
}

const fallbackScene = "driving on a country road through scenic surroundings"

// Prompt builds the image prompt for a vehicle of the given cost class.
// Unknown classes get a generic scene.
func Prompt(vehicleMake, model, class string) string {
	desc := strings.Join(strings.Fields(vehicleMake+" "+model), " ")
	scene, ok := scenes[strings.ToLower(strings.TrimSpace(class))]
	if !ok {
		scene = fallbackScene
	}
	return fmt.Sprintf("%s %s, %s", desc, scene, promptSuffix)
}
