package wire

import (
	"errors"
	"testing"
	"time"
)

func TestSimpleCommands(t *testing.T) {
	tests := []struct {
		code  SimpleCode
		text  string
		class ResponseClass
	}{
		{CodeStatus, "XJ", ClassNormal},
		{CodeAdmin, "XA", ClassNormal},
		{CodePing, "XP", ClassShort},
		{CodeReboot, "X6", ClassShort},
		{CodeFactoryReset, "X7", ClassShort},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			m := Simple(tt.code)
			if m.String() != tt.text {
				t.Errorf("text = %q, want %q", m.String(), tt.text)
			}
			if m.Class() != tt.class {
				t.Errorf("class = %v, want %v", m.Class(), tt.class)
			}
			if m.IsBinary() {
				t.Error("simple command should be text")
			}
		})
	}
}

func TestGetSet(t *testing.T) {
	m, err := Get(SectionSystem)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if want := `{"cmd":{"get":"system"}}`; m.String() != want {
		t.Errorf("Get = %s, want %s", m, want)
	}
	if m.Class() != ClassNormal {
		t.Errorf("Get class = %v", m.Class())
	}

	m, err = Set(SectionOutput, map[string]any{"channels": []any{}})
	if err != nil {
		t.Fatalf("Set: %v", err)
	}
	if want := `{"cmd":{"set":{"output_config":{"channels":[]}}}}`; m.String() != want {
		t.Errorf("Set = %s, want %s", m, want)
	}

	if _, err := Get("bogus"); !errors.Is(err, ErrUnknownSection) {
		t.Errorf("Get(bogus) err = %v", err)
	}
	if _, err := Set(SectionFiles, nil); !errors.Is(err, ErrUnknownSection) {
		t.Errorf("Set(files) err = %v", err)
	}
}

func TestDeleteFiles(t *testing.T) {
	m, err := DeleteFiles("a.fseq", "b.fseq")
	if err != nil {
		t.Fatalf("DeleteFiles: %v", err)
	}
	want := `{"cmd":{"delete":{"files":[{"name":"a.fseq"},{"name":"b.fseq"}]}}}`
	if m.String() != want {
		t.Errorf("DeleteFiles = %s, want %s", m, want)
	}

	if _, err := DeleteFiles(); !errors.Is(err, ErrNoFiles) {
		t.Errorf("DeleteFiles() err = %v", err)
	}
}

func TestSetTime(t *testing.T) {
	m := SetTime(time.Unix(1700000000, 0))
	want := `{"cmd":{"set":{"time":{"time_t":1700000000}}}}`
	if m.String() != want {
		t.Errorf("SetTime = %s, want %s", m, want)
	}
	if m.Class() != ClassShort {
		t.Errorf("SetTime class = %v, want SHORT", m.Class())
	}
}

func TestClassOf(t *testing.T) {
	tests := []struct {
		text string
		want ResponseClass
	}{
		{"XP", ClassShort},
		{"XPextra", ClassShort},
		{"XJ", ClassNormal},
		{"V1", ClassNormal},
		{`{"cmd":{"get":"system"}}`, ClassNormal},
		{`{"cmd":{"set":{"time":{}}}}`, ClassShort},
		{`{"cmd":{"set":{"system":{}}}}`, ClassNormal},
		{"", ClassNormal},
	}
	for _, tt := range tests {
		if got := ClassOf(tt.text); got != tt.want {
			t.Errorf("ClassOf(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestBinaryOutbound(t *testing.T) {
	src := []byte{1, 2, 3}
	m := Binary(src)
	src[0] = 9

	if !m.IsBinary() {
		t.Fatal("expected binary")
	}
	if got := m.Payload(); got[0] != 1 {
		t.Errorf("payload aliased caller slice: %v", got)
	}
	if m.String() != "<binary 3 bytes>" {
		t.Errorf("String = %q", m.String())
	}
	if m.IsZero() {
		t.Error("binary message reported zero")
	}
	if !(Outbound{}).IsZero() {
		t.Error("zero value not reported zero")
	}
}
