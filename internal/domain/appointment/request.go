package appointment

import (
	"fmt"
	"strings"
	"time"
)

// CreateRequest is the body of POST /addappointment and
// POST /schedule-property-appointment. Dates stay strings until the service
// parses them in its configured location.
type CreateRequest struct {
	ClientName      string `json:"clientName"`
	AppointmentDate string `json:"appointmentDate"`
	PropertyAddress string `json:"propertyAddress"`
	PropertyType    string `json:"propertyType"`
	ContactEmail    string `json:"contactEmail"`
	PhoneNumber     string `json:"phoneNumber"`
	Message         string `json:"message"`
	Status          string `json:"status"`
	PropertyID      string `json:"propertyId,omitempty"`
}

// UpdateRequest is the body of PUT /appointment/:id. Absent fields are left
// unchanged; _id and createdAt are not accepted.
type UpdateRequest struct {
	ClientName      *string `json:"clientName"`
	AppointmentDate *string `json:"appointmentDate"`
	PropertyAddress *string `json:"propertyAddress"`
	PropertyType    *string `json:"propertyType"`
	ContactEmail    *string `json:"contactEmail"`
	PhoneNumber     *string `json:"phoneNumber"`
	Message         *string `json:"message"`
	Status          *string `json:"status"`
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseDate accepts RFC 3339 timestamps, zone-less datetime-local values and
// bare dates. Zone-less input is read in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if loc == nil {
		loc = time.Local
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	for _, layout := range dateLayouts[1:] {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", s)
}

// build turns the request into an appointment with the given status and
// validates it. Enum values are normalised to their canonical spelling.
func (r CreateRequest) build(status Status, loc *time.Location) (*Appointment, error) {
	v := newValidationError("Appointment validation failed")
	a := &Appointment{
		ClientName:      strings.TrimSpace(r.ClientName),
		PropertyAddress: strings.TrimSpace(r.PropertyAddress),
		PropertyType:    PropertyType(r.PropertyType),
		ContactEmail:    strings.TrimSpace(r.ContactEmail),
		PhoneNumber:     strings.TrimSpace(r.PhoneNumber),
		Message:         r.Message,
		Status:          status,
	}
	if strings.TrimSpace(r.AppointmentDate) != "" {
		t, err := ParseDate(r.AppointmentDate, loc)
		if err != nil {
			v.add("appointmentDate", err.Error())
		}
		a.AppointmentDate = t
	}
	if pt, err := ParsePropertyType(r.PropertyType); err == nil {
		a.PropertyType = pt
	}
	mergeValidation(v, a.Validate())
	if err := v.orNil(); err != nil {
		return nil, err
	}
	return a, nil
}

// initialStatus honours a supplied status on the direct-create path and
// falls back to Pending.
func (r CreateRequest) initialStatus() (Status, error) {
	if strings.TrimSpace(r.Status) == "" {
		return StatusPending, nil
	}
	s, err := ParseStatus(r.Status)
	if err != nil {
		v := newValidationError("Appointment validation failed")
		v.add("status", err.Error())
		return "", v
	}
	return s, nil
}

// patch validates every present field with the create rules.
func (r UpdateRequest) patch(loc *time.Location) (Patch, error) {
	var p Patch
	v := newValidationError("Appointment update validation failed")

	if r.ClientName != nil {
		name := strings.TrimSpace(*r.ClientName)
		if name == "" {
			v.add("clientName", "client name is required")
		}
		p.ClientName = &name
	}
	if r.AppointmentDate != nil {
		t, err := ParseDate(*r.AppointmentDate, loc)
		if err != nil {
			v.add("appointmentDate", err.Error())
		}
		p.AppointmentDate = &t
	}
	if r.PropertyAddress != nil {
		addr := strings.TrimSpace(*r.PropertyAddress)
		if addr == "" {
			v.add("propertyAddress", "property address is required")
		}
		p.PropertyAddress = &addr
	}
	if r.PropertyType != nil {
		pt, err := ParsePropertyType(*r.PropertyType)
		if err != nil {
			v.add("propertyType", err.Error())
		}
		p.PropertyType = &pt
	}
	if r.ContactEmail != nil {
		email := strings.TrimSpace(*r.ContactEmail)
		checkEmail(v, email)
		p.ContactEmail = &email
	}
	if r.PhoneNumber != nil {
		phone := strings.TrimSpace(*r.PhoneNumber)
		checkPhone(v, phone)
		p.PhoneNumber = &phone
	}
	if r.Message != nil {
		if len([]rune(*r.Message)) > MaxMessageLength {
			v.add("message", fmt.Sprintf("message cannot exceed %d characters", MaxMessageLength))
		}
		p.Message = r.Message
	}
	if r.Status != nil {
		s, err := ParseStatus(*r.Status)
		if err != nil {
			v.add("status", err.Error())
		}
		p.Status = &s
	}

	if err := v.orNil(); err != nil {
		return Patch{}, err
	}
	return p, nil
}

func mergeValidation(dst *ValidationError, err error) {
	src, ok := err.(*ValidationError)
	if !ok {
		return
	}
	for k, msg := range src.Fields {
		dst.add(k, msg)
	}
}
