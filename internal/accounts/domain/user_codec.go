package domain

import (
	"encoding/json"
	"fmt"
)

// DecodeUser parses a stored user document, upgrading older versions to
// UserDocVersion.
//
// Version 1 documents carried boolean admin/builder flags and no roles map.
func DecodeUser(body []byte) (User, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return User{}, fmt.Errorf("decode user: %w", err)
	}

	var version int
	if v, ok := raw["version"]; ok {
		if err := json.Unmarshal(v, &version); err != nil {
			return User{}, fmt.Errorf("decode user version: %w", err)
		}
	}

	if version < 2 {
		for _, key := range []string{"admin", "builder"} {
			v, ok := raw[key]
			if !ok {
				continue
			}
			var flag bool
			if err := json.Unmarshal(v, &flag); err != nil {
				// Already an object, leave it alone.
				continue
			}
			upgraded, _ := json.Marshal(Capability{Global: flag})
			raw[key] = upgraded
		}
		if _, ok := raw["roles"]; !ok {
			raw["roles"] = json.RawMessage(`{}`)
		}
		raw["version"] = json.RawMessage(fmt.Sprint(UserDocVersion))

		var err error
		body, err = json.Marshal(raw)
		if err != nil {
			return User{}, err
		}
	}

	var u User
	if err := json.Unmarshal(body, &u); err != nil {
		return User{}, fmt.Errorf("decode user: %w", err)
	}
	if u.Roles == nil {
		u.Roles = map[string]string{}
	}
	return u, nil
}

// EncodeUser serialises a user document at the current version. Rev is kept
// out of the body since the store tracks it in its own column.
func EncodeUser(u User) ([]byte, error) {
	u.Version = UserDocVersion
	u.Rev = ""
	if u.Roles == nil {
		u.Roles = map[string]string{}
	}
	return json.Marshal(u)
}
