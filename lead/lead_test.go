package lead

import (
	"strings"
	"testing"
)

func TestDedupeKey_Permalink(t *testing.T) {
	got := DedupeKey("https://www.facebook.com/groups/1/posts/2/", "whatever")
	want := "u:https://www.facebook.com/groups/1/posts/2/"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestDedupeKey_TextPrefix(t *testing.T) {
	text := strings.Repeat("Á", 130)
	got := DedupeKey("", text)
	want := "t:" + strings.Repeat("á", 120)
	if got != want {
		t.Errorf("got %d bytes, want %d bytes", len(got), len(want))
	}
}

func TestDedupeKey_ShortText(t *testing.T) {
	if got := DedupeKey("", "Preciso de LOGO"); got != "t:preciso de logo" {
		t.Errorf("got %q", got)
	}
}

func TestStatusValid(t *testing.T) {
	for _, s := range []Status{StatusNew, StatusContacted, StatusFollowup, StatusClosed, StatusIgnored} {
		if !s.Valid() {
			t.Errorf("%q should be valid", s)
		}
	}
	if Status("archived").Valid() {
		t.Error("archived should be invalid")
	}
}
