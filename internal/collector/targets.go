package collector

// Shape describes the JSON layout of a poll target's result.
type Shape int

const (
	// ShapeObject is a single object of counter fields.
	ShapeObject Shape = iota
	// ShapeList is an array of objects, one sample set per entry.
	ShapeList
)

// Target is one counter endpoint plus the rule turning its response into
// flat metrics. The set is a fixed data table: the collector stays a single
// generic interpreter, no per-endpoint branching.
type Target struct {
	// Name groups the target's metrics: fbx_<name>_<field>.
	Name string
	// Path is the API path polled with an authorized GET.
	Path string
	// Shape selects the response layout.
	Shape Shape
	// ItemLabel names the label attached to each list entry.
	ItemLabel string
	// ItemKey is the JSON field providing the label value; the entry
	// index stands in when the field is absent.
	ItemKey string
}

// DefaultTargets returns the fixed poll set: WAN throughput, system health,
// connected LAN hosts, switch ports and Wi-Fi stations.
func DefaultTargets() []Target {
	return []Target{
		{Name: "wan", Path: "/connection/", Shape: ShapeObject},
		{Name: "system", Path: "/system/", Shape: ShapeObject},
		{Name: "lan_host", Path: "/lan/browser/pub/", Shape: ShapeList, ItemLabel: "host", ItemKey: "primary_name"},
		{Name: "switch_port", Path: "/switch/status/", Shape: ShapeList, ItemLabel: "port", ItemKey: "id"},
		{Name: "wifi_station", Path: "/wifi/ap/0/stations/", Shape: ShapeList, ItemLabel: "station", ItemKey: "mac"},
	}
}
