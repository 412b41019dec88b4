package domain

// Stop is a named boarding point. The identifier doubles as the
// human-readable name used inside route stop sequences.
type Stop struct {
	ID   string  `json:"id"`
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

// Route is an ordered sequence of stop identifiers. Every forward route
// with two or more stops has a derived reverse companion whose id is the
// forward id plus the reversal marker.
type Route struct {
	ID    string   `json:"id"`
	Name  string   `json:"name"`
	Stops []string `json:"stops"`
}

// ShiftLeg is one directional schedule within a shift. Times are
// clock values ("15:04"), the date is a service date ("2006-01-02").
type ShiftLeg struct {
	Start string `json:"start"`
	End   string `json:"end"`
	Date  string `json:"date"`
}

// Shift binds a vehicle to a base route for up to two directional legs.
// Either leg may be absent; a shift with neither leg matches nothing.
type Shift struct {
	ID        string    `json:"id"`
	RouteID   string    `json:"route_id"`
	VehicleID string    `json:"vehicle_id"`
	Normal    *ShiftLeg `json:"normal,omitempty"`
	Reverse   *ShiftLeg `json:"reverse,omitempty"`
}

// Vehicle is a fleet member. Lat/Lon stay at the origin default until
// the first position report (or the geolocation fallback) fills them.
type Vehicle struct {
	ID      string  `json:"id"`
	RouteID string  `json:"route_id"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Full    bool    `json:"full"`
	Alarm   bool    `json:"alarm"`
}

// Passenger carries only a self-reported position.
type Passenger struct {
	ID  string  `json:"id"`
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// AtOrigin reports whether the vehicle still has the origin default
// coordinates, i.e. no position report has ever landed.
func (v *Vehicle) AtOrigin() bool {
	return v.Lat == 0 && v.Lon == 0
}
