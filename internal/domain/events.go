package domain

// Broadcast channel names. Observers subscribe to these; position
// reports publish to them.
const (
	ChannelVehicleLocation   = "vehicle-location"
	ChannelPassengerLocation = "passenger-location"
)

// PositionEvent is the payload fanned out on both location channels.
type PositionEvent struct {
	ID  string  `json:"id"`
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}
