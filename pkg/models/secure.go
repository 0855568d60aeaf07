package models

import (
	"encoding/base64"
	"encoding/json"
	"errors"
)

// SecureValue wraps a ciphertext so it can travel through workflow-variable
// storage without ever exposing plaintext. Its JSON form is
// {"__secure": true, "encrypted": "<base64 ciphertext>"}; decryption happens
// only inside the action that consumes the value, immediately before use.
type SecureValue struct {
	Encrypted []byte
}

type secureValueJSON struct {
	Secure    bool   `json:"__secure"`
	Encrypted []byte `json:"encrypted"`
}

// MarshalJSON implements json.Marshaler
func (v SecureValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(secureValueJSON{Secure: true, Encrypted: v.Encrypted})
}

// UnmarshalJSON implements json.Unmarshaler
func (v *SecureValue) UnmarshalJSON(data []byte) error {
	var raw secureValueJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if !raw.Secure {
		return errors.New("not a secure value: missing __secure marker")
	}
	v.Encrypted = raw.Encrypted
	return nil
}

// IsSecureValue reports whether a decoded JSON value (as produced by
// encoding/json into interface{}) carries the secure-wrapper marker.
func IsSecureValue(value interface{}) bool {
	m, ok := value.(map[string]interface{})
	if !ok {
		return false
	}
	secure, ok := m["__secure"].(bool)
	return ok && secure
}

// SecureValueFromAny recovers a SecureValue from a decoded JSON value.
// encoding/json delivers the ciphertext as a base64 string inside a
// generic map; anything without the marker reports ok=false.
func SecureValueFromAny(value interface{}) (SecureValue, bool) {
	switch v := value.(type) {
	case SecureValue:
		return v, true
	case map[string]interface{}:
		if !IsSecureValue(v) {
			return SecureValue{}, false
		}
		encoded, ok := v["encrypted"].(string)
		if !ok {
			return SecureValue{}, false
		}
		ct, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return SecureValue{}, false
		}
		return SecureValue{Encrypted: ct}, true
	default:
		return SecureValue{}, false
	}
}
