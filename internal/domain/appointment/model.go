package appointment

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of an appointment.
type Status string

const (
	StatusPending   Status = "Pending"
	StatusConfirmed Status = "Confirmed"
	StatusVirtual   Status = "Virtual"
	StatusVisit     Status = "Visit"
	StatusCompleted Status = "Completed"
	StatusCancelled Status = "Cancelled"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{
	StatusPending, StatusConfirmed, StatusVirtual,
	StatusVisit, StatusCompleted, StatusCancelled,
}

func (s Status) Valid() bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}

// Terminal reports whether no transition out of s is exposed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// ParseStatus matches s case-insensitively against the status enum.
func ParseStatus(s string) (Status, error) {
	for _, v := range Statuses {
		if strings.EqualFold(strings.TrimSpace(s), string(v)) {
			return v, nil
		}
	}
	return "", fmt.Errorf("invalid appointment status: %q", s)
}

// PropertyType is the category of the property being viewed.
type PropertyType string

const (
	PropertyHouse      PropertyType = "House"
	PropertyApartment  PropertyType = "Apartment"
	PropertyLand       PropertyType = "Land"
	PropertyCommercial PropertyType = "Commercial"
	PropertyVilla      PropertyType = "Villa"
)

var propertyTypes = []PropertyType{
	PropertyHouse, PropertyApartment, PropertyLand, PropertyCommercial, PropertyVilla,
}

func ParsePropertyType(s string) (PropertyType, error) {
	for _, v := range propertyTypes {
		if strings.EqualFold(strings.TrimSpace(s), string(v)) {
			return v, nil
		}
	}
	return "", fmt.Errorf("invalid property type: %q", s)
}

// Appointment is a viewing appointment for a listed property. JSON field
// names are wire-compatible with existing clients.
type Appointment struct {
	ID              uuid.UUID    `db:"id" json:"_id"`
	ClientName      string       `db:"client_name" json:"clientName"`
	AppointmentDate time.Time    `db:"appointment_date" json:"appointmentDate"`
	PropertyAddress string       `db:"property_address" json:"propertyAddress"`
	PropertyType    PropertyType `db:"property_type" json:"propertyType"`
	ContactEmail    string       `db:"contact_email" json:"contactEmail"`
	PhoneNumber     string       `db:"phone_number" json:"phoneNumber"`
	Message         string       `db:"message" json:"message"`
	Status          Status       `db:"status" json:"status"`
	CreatedAt       time.Time    `db:"created_at" json:"createdAt"`
}

// Clone returns a copy that shares no memory with a.
func (a *Appointment) Clone() *Appointment {
	if a == nil {
		return nil
	}
	cp := *a
	return &cp
}

const (
	MaxMessageLength = 500
	phoneDigits      = 10
)

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phonePattern = regexp.MustCompile(fmt.Sprintf(`^\d{%d}$`, phoneDigits))
)

// Validate checks the data-level invariants every stored appointment holds.
func (a *Appointment) Validate() error {
	v := newValidationError("Appointment validation failed")
	if strings.TrimSpace(a.ClientName) == "" {
		v.add("clientName", "client name is required")
	}
	if a.AppointmentDate.IsZero() {
		v.add("appointmentDate", "appointment date is required")
	}
	if strings.TrimSpace(a.PropertyAddress) == "" {
		v.add("propertyAddress", "property address is required")
	}
	if a.PropertyType == "" {
		v.add("propertyType", "property type is required")
	} else if _, err := ParsePropertyType(string(a.PropertyType)); err != nil {
		v.add("propertyType", err.Error())
	}
	checkEmail(v, a.ContactEmail)
	checkPhone(v, a.PhoneNumber)
	if len([]rune(a.Message)) > MaxMessageLength {
		v.add("message", fmt.Sprintf("message cannot exceed %d characters", MaxMessageLength))
	}
	if !a.Status.Valid() {
		v.add("status", fmt.Sprintf("invalid appointment status: %q", a.Status))
	}
	return v.orNil()
}

func checkEmail(v *ValidationError, email string) {
	switch {
	case strings.TrimSpace(email) == "":
		v.add("contactEmail", "contact email is required")
	case !emailPattern.MatchString(email):
		v.add("contactEmail", "contact email is not a valid address")
	}
}

func checkPhone(v *ValidationError, phone string) {
	switch {
	case strings.TrimSpace(phone) == "":
		v.add("phoneNumber", "phone number is required")
	case !phonePattern.MatchString(phone):
		v.add("phoneNumber", fmt.Sprintf("phone number must be %d digits", phoneDigits))
	}
}

// Filter narrows FindAll. Zero values mean "no constraint"; From and To are
// inclusive bounds on AppointmentDate.
type Filter struct {
	PropertyAddress string
	From            *time.Time
	To              *time.Time
	Statuses        []Status
	ExcludeStatuses []Status
	Limit           int
	Offset          int
}

// Matches reports whether a satisfies every constraint of f except paging.
func (f Filter) Matches(a *Appointment) bool {
	if f.PropertyAddress != "" && a.PropertyAddress != f.PropertyAddress {
		return false
	}
	if f.From != nil && a.AppointmentDate.Before(*f.From) {
		return false
	}
	if f.To != nil && a.AppointmentDate.After(*f.To) {
		return false
	}
	if len(f.Statuses) > 0 && !containsStatus(f.Statuses, a.Status) {
		return false
	}
	if containsStatus(f.ExcludeStatuses, a.Status) {
		return false
	}
	return true
}

func containsStatus(list []Status, s Status) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Patch is a partial update; nil fields are left unchanged.
type Patch struct {
	ClientName      *string
	AppointmentDate *time.Time
	PropertyAddress *string
	PropertyType    *PropertyType
	ContactEmail    *string
	PhoneNumber     *string
	Message         *string
	Status          *Status
}

func (p Patch) Empty() bool {
	return p.ClientName == nil && p.AppointmentDate == nil && p.PropertyAddress == nil &&
		p.PropertyType == nil && p.ContactEmail == nil && p.PhoneNumber == nil &&
		p.Message == nil && p.Status == nil
}

// Apply writes the non-nil fields of p onto a.
func (p Patch) Apply(a *Appointment) {
	if p.ClientName != nil {
		a.ClientName = *p.ClientName
	}
	if p.AppointmentDate != nil {
		a.AppointmentDate = *p.AppointmentDate
	}
	if p.PropertyAddress != nil {
		a.PropertyAddress = *p.PropertyAddress
	}
	if p.PropertyType != nil {
		a.PropertyType = *p.PropertyType
	}
	if p.ContactEmail != nil {
		a.ContactEmail = *p.ContactEmail
	}
	if p.PhoneNumber != nil {
		a.PhoneNumber = *p.PhoneNumber
	}
	if p.Message != nil {
		a.Message = *p.Message
	}
	if p.Status != nil {
		a.Status = *p.Status
	}
}
