package models

// Field names a public profile field. The values double as JSON keys of the
// persisted profile.
type Field string

const (
	FieldFullName    Field = "fullName"
	FieldPhone       Field = "number"
	FieldCity        Field = "city"
	FieldPickupPoint Field = "novaPoshtaNo"
)

// PublicFields lists the collected fields in collection order.
var PublicFields = []Field{FieldFullName, FieldPhone, FieldCity, FieldPickupPoint}

// Identity ties a participant to the group event and their private chat.
type Identity struct {
	// ID is the participant's Telegram user id.
	ID int64 `json:"id"`
	// GroupChatID is the chat whose event the participant registers for.
	GroupChatID int64 `json:"groupChatId"`
	// PrivateChatID is where pairing results are delivered.
	PrivateChatID int64 `json:"privateChatId"`
}

// Valid reports whether all identity fields are set.
func (i Identity) Valid() bool {
	return i.ID != 0 && i.GroupChatID != 0 && i.PrivateChatID != 0
}

// IncompleteProfile is a profile still being collected. It lives only in the
// conversation session and is never persisted.
type IncompleteProfile struct {
	Identity
	FullName    string `json:"fullName,omitempty"`
	Phone       string `json:"number,omitempty"`
	City        string `json:"city,omitempty"`
	PickupPoint string `json:"novaPoshtaNo,omitempty"`
}

// NewIncompleteProfile returns a stub holding only the identity fields.
func NewIncompleteProfile(id Identity) IncompleteProfile {
	return IncompleteProfile{Identity: id}
}

// Set writes value into field. Unknown fields are ignored.
func (p *IncompleteProfile) Set(field Field, value string) {
	switch field {
	case FieldFullName:
		p.FullName = value
	case FieldPhone:
		p.Phone = value
	case FieldCity:
		p.City = value
	case FieldPickupPoint:
		p.PickupPoint = value
	}
}

// Get returns the value collected for field, or "" if none.
func (p IncompleteProfile) Get(field Field) string {
	switch field {
	case FieldFullName:
		return p.FullName
	case FieldPhone:
		return p.Phone
	case FieldCity:
		return p.City
	case FieldPickupPoint:
		return p.PickupPoint
	}
	return ""
}

// TryComplete returns the completed profile when identity and every public
// field are present.
func TryComplete(p IncompleteProfile) (CompleteProfile, bool) {
	if !p.Identity.Valid() {
		return CompleteProfile{}, false
	}
	for _, f := range PublicFields {
		if p.Get(f) == "" {
			return CompleteProfile{}, false
		}
	}
	return CompleteProfile{
		Identity:    p.Identity,
		FullName:    p.FullName,
		Phone:       p.Phone,
		City:        p.City,
		PickupPoint: p.PickupPoint,
	}, true
}

// CompleteProfile is a registered participant as stored under the chat's
// registrations. It is immutable once persisted.
type CompleteProfile struct {
	Identity
	FullName    string `json:"fullName"`
	Phone       string `json:"number"`
	City        string `json:"city"`
	PickupPoint string `json:"novaPoshtaNo"`
}

// FieldValue is one rendered line of a profile.
type FieldValue struct {
	Field Field
	Value string
}

// Public returns the public fields in collection order.
func (p CompleteProfile) Public() []FieldValue {
	return []FieldValue{
		{FieldFullName, p.FullName},
		{FieldPhone, p.Phone},
		{FieldCity, p.City},
		{FieldPickupPoint, p.PickupPoint},
	}
}
