package property

import (
	"time"

	"github.com/google/uuid"
)

// Property is a listed property. Appointments refer to it by name, which
// doubles as its address.
type Property struct {
	ID              uuid.UUID `db:"id" json:"_id"`
	PropertyName    string    `db:"property_name" json:"propertyName"`
	SellerName      string    `db:"seller_name" json:"sellerName"`
	ContactNumber   string    `db:"contact_number" json:"contactNumber"`
	PriceNegotiable bool      `db:"price_negotiable" json:"priceNegotiable"`
	PropertyPhotos  string    `db:"property_photos" json:"propertyPhotos,omitempty"`
	Description     string    `db:"description" json:"description"`
	AvailableTime   string    `db:"available_time" json:"availableTime"`
	EventDate       time.Time `db:"event_date" json:"eventDate"`
}
