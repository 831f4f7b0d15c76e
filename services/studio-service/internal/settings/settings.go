package settings

// WorkingHours describes the studio's opening times as display strings,
// one per group of days.
type WorkingHours struct {
	Weekdays string `json:"weekdays"`
	Saturday string `json:"saturday"`
	Sunday   string `json:"sunday"`
}

// ContactSettings is the full set of public contact details served to
// the website. Every field always has a value after loading: stored
// values win, defaults fill the gaps.
type ContactSettings struct {
	Phone        string       `json:"phone"`
	Email        string       `json:"email"`
	Whatsapp     string       `json:"whatsapp"`
	Address      string       `json:"address"`
	MapURL       string       `json:"map_url"`
	WorkingHours WorkingHours `json:"working_hours"`
}

// WorkingHoursPatch carries partial working-hours changes. Nil fields
// are left untouched.
type WorkingHoursPatch struct {
	Weekdays *string `json:"weekdays"`
	Saturday *string `json:"saturday"`
	Sunday   *string `json:"sunday"`
}

// Patch carries a partial update to the contact settings. Nil fields
// are left untouched.
type Patch struct {
	Phone        *string            `json:"phone"`
	Email        *string            `json:"email"`
	Whatsapp     *string            `json:"whatsapp"`
	Address      *string            `json:"address"`
	MapURL       *string            `json:"map_url"`
	WorkingHours *WorkingHoursPatch `json:"working_hours"`
}

// Defaults returns the built-in contact settings used when the store is
// empty or a stored document is missing fields.
func Defaults() ContactSettings {
	return ContactSettings{
		Phone:    "+1 (555) 010-0000",
		Email:    "hello@coachdesk.example",
		Whatsapp: "+15550100000",
		Address:  "12 Harbor Lane, Suite 4",
		MapURL:   "https://maps.example/coachdesk",
		WorkingHours: WorkingHours{
			Weekdays: "9:00 - 18:00",
			Saturday: "10:00 - 14:00",
			Sunday:   "closed",
		},
	}
}

// Merge overlays non-empty fields of stored on top of base. Empty
// strings in stored are treated as missing so a partially written
// document never blanks out a default.
func Merge(base, stored ContactSettings) ContactSettings {
	out := base
	if stored.Phone != "" {
		out.Phone = stored.Phone
	}
	if stored.Email != "" {
		out.Email = stored.Email
	}
	if stored.Whatsapp != "" {
		out.Whatsapp = stored.Whatsapp
	}
	if stored.Address != "" {
		out.Address = stored.Address
	}
	if stored.MapURL != "" {
		out.MapURL = stored.MapURL
	}
	if stored.WorkingHours.Weekdays != "" {
		out.WorkingHours.Weekdays = stored.WorkingHours.Weekdays
	}
	if stored.WorkingHours.Saturday != "" {
		out.WorkingHours.Saturday = stored.WorkingHours.Saturday
	}
	if stored.WorkingHours.Sunday != "" {
		out.WorkingHours.Sunday = stored.WorkingHours.Sunday
	}
	return out
}

// Apply returns current with the patch's non-nil fields replaced.
func Apply(current ContactSettings, p Patch) ContactSettings {
	out := current
	if p.Phone != nil {
		out.Phone = *p.Phone
	}
	if p.Email != nil {
		out.Email = *p.Email
	}
	if p.Whatsapp != nil {
		out.Whatsapp = *p.Whatsapp
	}
	if p.Address != nil {
		out.Address = *p.Address
	}
	if p.MapURL != nil {
		out.MapURL = *p.MapURL
	}
	if p.WorkingHours != nil {
		if p.WorkingHours.Weekdays != nil {
			out.WorkingHours.Weekdays = *p.WorkingHours.Weekdays
		}
		if p.WorkingHours.Saturday != nil {
			out.WorkingHours.Saturday = *p.WorkingHours.Saturday
		}
		if p.WorkingHours.Sunday != nil {
			out.WorkingHours.Sunday = *p.WorkingHours.Sunday
		}
	}
	return out
}
