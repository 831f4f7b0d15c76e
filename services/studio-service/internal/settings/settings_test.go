package settings

import "testing"

func TestMergeStoredWins(t *testing.T) {
	base := Defaults()
	stored := ContactSettings{
		Phone: "override",
		WorkingHours: WorkingHours{
			Sunday: "10:00 - 12:00",
		},
	}

	got := Merge(base, stored)
	if got.Phone != "override" {
		t.Fatalf("phone = %q, want stored value", got.Phone)
	}
	if got.WorkingHours.Sunday != "10:00 - 12:00" {
		t.Fatalf("sunday = %q, want stored value", got.WorkingHours.Sunday)
	}
	if got.Email != base.Email || got.WorkingHours.Weekdays != base.WorkingHours.Weekdays {
		t.Fatalf("missing stored fields must keep base values: %+v", got)
	}
}

func TestApplyNilFieldsUntouched(t *testing.T) {
	current := Defaults()

	got := Apply(current, Patch{
		Address:      strptr("1 Elm St"),
		WorkingHours: &WorkingHoursPatch{Weekdays: strptr("8:00 - 17:00")},
	})
	if got.Address != "1 Elm St" {
		t.Fatalf("address = %q", got.Address)
	}
	if got.WorkingHours.Weekdays != "8:00 - 17:00" {
		t.Fatalf("weekdays = %q", got.WorkingHours.Weekdays)
	}
	if got.Phone != current.Phone || got.WorkingHours.Sunday != current.WorkingHours.Sunday {
		t.Fatalf("nil patch fields must be untouched: %+v", got)
	}
}

func TestApplyCanSetEmptyString(t *testing.T) {
	got := Apply(Defaults(), Patch{Whatsapp: strptr("")})
	if got.Whatsapp != "" {
		t.Fatalf("whatsapp = %q, explicit empty value must be applied", got.Whatsapp)
	}
}

func TestDefaultsComplete(t *testing.T) {
	d := Defaults()
	for name, v := range map[string]string{
		"phone":    d.Phone,
		"email":    d.Email,
		"whatsapp": d.Whatsapp,
		"address":  d.Address,
		"map_url":  d.MapURL,
		"weekdays": d.WorkingHours.Weekdays,
		"saturday": d.WorkingHours.Saturday,
		"sunday":   d.WorkingHours.Sunday,
	} {
		if v == "" {
			t.Fatalf("default %s must not be empty", name)
		}
	}
}
