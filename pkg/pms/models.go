package pms

// Reservation is a PMS reservation.
type Reservation struct {
	ID            int    `json:"id"`
	Status        string `json:"status"`
	UnitID        int    `json:"unitId"`
	ArrivalDate   string `json:"arrivalDate"`
	DepartureDate string `json:"departureDate"`
}

// Unit is a rentable PMS unit.
type Unit struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	Bedrooms  int    `json:"bedrooms"`
	Bathrooms int    `json:"bathrooms"`
}

// AmenityGroup groups amenities.
type AmenityGroup struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Amenity is a unit amenity.
type Amenity struct {
	ID    int          `json:"id"`
	Name  string       `json:"name"`
	Group AmenityGroup `json:"group"`
}
