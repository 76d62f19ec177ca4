package upgrade

import (
	"bytes"
	"strings"
	"testing"

	"github.com/andresvela/wirecore/pkg/wirecore/aggregate"
	"github.com/andresvela/wirecore/pkg/wirecore/http1"
	"github.com/andresvela/wirecore/pkg/wirecore/pipeline"
	"github.com/andresvela/wirecore/pkg/wirecore/websocket"
)

// TestHixieChallengeResponseKnownVector reproduces the worked example from
// the original Hixie-00 draft: key1 "4 @1  46546xW%0l 1 5", key2
// "12998 5 Y3 1  .P00", key3 "^n:ds[4U".
func TestHixieChallengeResponseKnownVector(t *testing.T) {
	got, err := HixieChallengeResponse(
		"4 @1  46546xW%0l 1 5",
		"12998 5 Y3 1  .P00",
		[]byte("^n:ds[4U"),
	)
	if err != nil {
		t.Fatalf("HixieChallengeResponse() error = %v", err)
	}
	if len(got) != 16 {
		t.Fatalf("response length = %d, want 16", len(got))
	}
	if want := "8jKS'y:G*Co,Wxa-"; string(got) != want {
		t.Errorf("response = %q, want %q", got, want)
	}
}

func TestHixieKeyNumberDerivation(t *testing.T) {
	// digits "250", 2 spaces: 250 / 2 = 125.
	n, err := hixieKeyNumber("2 5 0")
	if err != nil {
		t.Fatalf("hixieKeyNumber() error = %v", err)
	}
	if n != 125 {
		t.Errorf("n = %d, want 125", n)
	}
}

func TestHixieKeyNumberRejectsMissingSpacesOrDigits(t *testing.T) {
	if _, err := hixieKeyNumber("nodigitsatall"); err != ErrBadHixieKeys {
		t.Errorf("err = %v, want ErrBadHixieKeys for a key with no digits", err)
	}
	if _, err := hixieKeyNumber("12345"); err != ErrBadHixieKeys {
		t.Errorf("err = %v, want ErrBadHixieKeys for a key with no spaces", err)
	}
}

func TestHixieChallengeResponseRejectsShortBody(t *testing.T) {
	_, err := HixieChallengeResponse("1 2", "3 4", []byte("short"))
	if err != ErrBadHixieBody {
		t.Fatalf("err = %v, want ErrBadHixieBody", err)
	}
}

func TestServerHandleHixieUpgradeRequest(t *testing.T) {
	pl := pipeline.NewInmem()
	pl.Add("http1", func(any) error { return nil })
	s := NewServer(DefaultServerConfig(), pl)

	m := &http1.Message{Kind: http1.KindRequest, Method: "GET"}
	m.Header.Add("Connection", "Upgrade")
	m.Header.Add("Upgrade", "WebSocket")
	m.Header.Add("Sec-WebSocket-Key1", "4 @1  46546xW%0l 1 5")
	m.Header.Add("Sec-WebSocket-Key2", "12998 5 Y3 1  .P00")
	fm := &aggregate.FullMessage{Start: m, Content: []byte("^n:ds[4U")}

	if err := s.HandleHixieUpgradeRequest(fm, "http://example.com", "ws://example.com/chat"); err != nil {
		t.Fatalf("HandleHixieUpgradeRequest() error = %v", err)
	}

	if len(pl.Written) != 1 {
		t.Fatalf("Written = %v, want one response", pl.Written)
	}
	resp := pl.Written[0].(string)
	if !strings.HasPrefix(resp, "HTTP/1.1 101 WebSocket Protocol Handshake\r\n") {
		t.Errorf("response = %q, want Hixie-00 status line", resp)
	}
	want, _ := HixieChallengeResponse("4 @1  46546xW%0l 1 5", "12998 5 Y3 1  .P00", []byte("^n:ds[4U"))
	if !bytes.HasSuffix([]byte(resp), want) {
		t.Errorf("response did not end with the MD5 challenge bytes")
	}

	if len(pl.UserEvents) != 1 {
		t.Fatalf("UserEvents = %v, want one Accepted event", pl.UserEvents)
	}
	if accepted := pl.UserEvents[0].(Accepted); accepted.Version != websocket.Hixie00 {
		t.Errorf("Accepted.Version = %v, want Hixie00", accepted.Version)
	}
}

func TestServerHandleHixieUpgradeRequestRejectsMissingKeys(t *testing.T) {
	pl := pipeline.NewInmem()
	pl.Add("http1", func(any) error { return nil })
	s := NewServer(DefaultServerConfig(), pl)

	m := &http1.Message{Kind: http1.KindRequest, Method: "GET"}
	fm := &aggregate.FullMessage{Start: m}

	if err := s.HandleHixieUpgradeRequest(fm, "http://example.com", "ws://example.com/chat"); err != ErrNotUpgradeRequest {
		t.Fatalf("err = %v, want ErrNotUpgradeRequest", err)
	}
}
