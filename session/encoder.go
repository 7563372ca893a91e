package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"
)

// CurrentSchemaVersion is the leading byte of every encoded session.
const CurrentSchemaVersion uint8 = 1

const maxFieldLen = 255

// Encode serializes s into the compact binary layout stored in Redis:
//
//	version | len+userID | len+email | len+deviceID | len+ip | acr |
//	issuedAt | expiresAt | lastAccessedAt   (int64 unix millis, big endian)
//
// SessionID is the key and is not part of the blob.
func Encode(s Session) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(CurrentSchemaVersion)

	for _, f := range []struct {
		name, value string
	}{
		{"userID", s.UserID},
		{"email", s.Email},
		{"deviceID", s.DeviceID},
		{"ip", s.IPAddress},
	} {
		if len(f.value) > maxFieldLen {
			return nil, fmt.Errorf("%s too long", f.name)
		}
		buf.WriteByte(byte(len(f.value)))
		buf.WriteString(f.value)
	}
	buf.WriteByte(s.ACR)

	for _, t := range []time.Time{s.IssuedAt, s.ExpiresAt, s.LastAccessedAt} {
		if err := binary.Write(&buf, binary.BigEndian, unixMilli(t)); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// Decode parses a blob produced by Encode.
func Decode(data []byte) (Session, error) {
	r := bytes.NewReader(data)

	version, err := r.ReadByte()
	if err != nil {
		return Session{}, err
	}
	if version != CurrentSchemaVersion {
		return Session{}, fmt.Errorf("unsupported session schema version %d", version)
	}

	var s Session
	for _, dst := range []*string{&s.UserID, &s.Email, &s.DeviceID, &s.IPAddress} {
		if *dst, err = readString(r); err != nil {
			return Session{}, err
		}
	}
	if s.ACR, err = r.ReadByte(); err != nil {
		return Session{}, err
	}
	for _, dst := range []*time.Time{&s.IssuedAt, &s.ExpiresAt, &s.LastAccessedAt} {
		var ms int64
		if err := binary.Read(r, binary.BigEndian, &ms); err != nil {
			return Session{}, err
		}
		if ms != 0 {
			*dst = time.UnixMilli(ms).UTC()
		}
	}
	if r.Len() != 0 {
		return Session{}, errors.New("trailing bytes after session")
	}
	if s.UserID == "" {
		return Session{}, errors.New("session without user")
	}
	return s, nil
}

func unixMilli(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func readString(r *bytes.Reader) (string, error) {
	n, err := r.ReadByte()
	if err != nil {
		return "", err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}
