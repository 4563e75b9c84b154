package models

import "testing"

func TestSessionFieldUnknownFallback(t *testing.T) {
	var nilSession *Session
	if got := nilSession.Field(FieldFullName); got != UnknownValue {
		t.Errorf("nil session: expected %q, got %q", UnknownValue, got)
	}

	s := &Session{Extracted: map[string]string{
		FieldFullName:  "Taras Shevchenko",
		FieldCarBrand:  "",
		FieldVinNumber: "WAUZZZ4G6DN000000",
	}}
	if got := s.Field(FieldFullName); got != "Taras Shevchenko" {
		t.Errorf("expected extracted value, got %q", got)
	}
	if got := s.Field(FieldCarBrand); got != UnknownValue {
		t.Errorf("empty value: expected %q, got %q", UnknownValue, got)
	}
	if got := s.Field(FieldPassportNumber); got != UnknownValue {
		t.Errorf("missing key: expected %q, got %q", UnknownValue, got)
	}
}

func TestChatStateActive(t *testing.T) {
	active := []ChatState{StateAwaitingPassport, StateAwaitingCarDoc, StateConfirmData, StateConfirmPrice, StateReconfirmPrice, StateAfterPolicy}
	for _, st := range active {
		if !st.Active() {
			t.Errorf("expected %s to be active", st)
		}
	}
	for _, st := range []ChatState{StateNone, StateEnded} {
		if st.Active() {
			t.Errorf("expected %s to be inactive", st)
		}
	}
}
