package upgrade

import (
	"crypto/md5"
	"encoding/binary"
	"errors"
	"strings"

	"github.com/andresvela/wirecore/pkg/wirecore/aggregate"
	"github.com/andresvela/wirecore/pkg/wirecore/buf"
	"github.com/andresvela/wirecore/pkg/wirecore/websocket"
)

var (
	ErrBadHixieKeys = errors.New("upgrade: malformed Sec-WebSocket-Key1/Key2")
	ErrBadHixieBody = errors.New("upgrade: Hixie-00 handshake body must be exactly 8 bytes")
)

// hixieKeyNumber extracts the legacy Hixie-00 challenge number from a key
// header value: the digits it contains, interpreted as a decimal integer,
// divided by the number of space characters it contains (spec.md §9 Open
// Question (b) notes only the MD5 byte order was ambiguous; this extraction
// rule itself is unambiguous in the draft).
func hixieKeyNumber(key string) (uint32, error) {
	var digits strings.Builder
	spaces := 0
	for _, r := range key {
		switch {
		case r >= '0' && r <= '9':
			digits.WriteRune(r)
		case r == ' ':
			spaces++
		}
	}
	if digits.Len() == 0 || spaces == 0 {
		return 0, ErrBadHixieKeys
	}
	var n uint64
	for _, r := range digits.String() {
		n = n*10 + uint64(r-'0')
		if n > (1<<32-1)*uint64(spaces) {
			return 0, ErrBadHixieKeys
		}
	}
	if n%uint64(spaces) != 0 {
		return 0, ErrBadHixieKeys
	}
	return uint32(n / uint64(spaces)), nil
}

// HixieChallengeResponse computes the 16-byte MD5 response body for a
// Hixie-00 handshake: big-endian concatenation of the two derived 32-bit
// numbers followed by the 8 raw key3 body bytes (spec.md §9 Open Question
// (b)'s resolved interpretation).
func HixieChallengeResponse(key1, key2 string, key3 []byte) ([]byte, error) {
	if len(key3) != 8 {
		return nil, ErrBadHixieBody
	}
	n1, err := hixieKeyNumber(key1)
	if err != nil {
		return nil, err
	}
	n2, err := hixieKeyNumber(key2)
	if err != nil {
		return nil, err
	}
	var challenge [16]byte
	binary.BigEndian.PutUint32(challenge[0:4], n1)
	binary.BigEndian.PutUint32(challenge[4:8], n2)
	copy(challenge[8:16], key3)
	sum := md5.Sum(challenge[:])
	return sum[:], nil
}

// HandleHixieUpgradeRequest validates fm as a Hixie-00 upgrade request and
// writes the legacy response (status line, Upgrade/Connection/Origin/
// Location headers, and the 16-byte MD5 challenge response as the body)
// through the pipeline. Unlike the hybi path there is no Sec-WebSocket-
// Accept token: the response body itself is the proof of the handshake.
func (s *Server) HandleHixieUpgradeRequest(fm *aggregate.FullMessage, origin, location string) error {
	m := fm.Start
	key1, ok1 := m.Header.Get("Sec-WebSocket-Key1")
	key2, ok2 := m.Header.Get("Sec-WebSocket-Key2")
	if !ok1 || !ok2 {
		return ErrNotUpgradeRequest
	}
	response, err := HixieChallengeResponse(key1, key2, fm.Content)
	if err != nil {
		return err
	}

	var b strings.Builder
	b.WriteString("HTTP/1.1 101 WebSocket Protocol Handshake\r\n")
	b.WriteString("Upgrade: WebSocket\r\n")
	b.WriteString("Connection: Upgrade\r\n")
	b.WriteString("Sec-WebSocket-Origin: ")
	b.WriteString(origin)
	b.WriteString("\r\n")
	b.WriteString("Sec-WebSocket-Location: ")
	b.WriteString(location)
	b.WriteString("\r\n\r\n")
	b.Write(response)

	s.pl.WriteAndFlush(b.String())
	s.rewireHixiePipeline()
	s.pl.FireUserEvent(Accepted{Version: websocket.Hixie00})
	return nil
}

// rewireHixiePipeline installs the Hixie-00 frame codec, which has no
// FIN/mask/length-marker header at all, in place of the HTTP handler.
func (s *Server) rewireHixiePipeline() {
	dec := websocket.NewHixieDecoder()
	sink := pipelineFrameSink{pl: s.pl}
	handler := func(event any) error {
		in, ok := event.(buf.Buffer)
		if !ok {
			return nil
		}
		return dec.Decode(in, sink)
	}
	s.pl.AddAfter("hixie-codec", s.cfg.HTTPHandlerName, handler)
	if s.cfg.HTTPHandlerName != "" {
		s.pl.Remove(s.cfg.HTTPHandlerName)
	}
}
