package session

import "encoding/json"

// User is the authenticated user as reported by the API. A non-nil User
// held by the Manager is the client-side definition of "authenticated".
//
// The server is free to add attributes at any time; anything without a
// fixed field here survives a round trip via Extra.
type User struct {
	ID        string
	Email     string
	CompanyID string
	Name      string
	Extra     map[string]any
}

func (u *User) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	u.ID = stringField(raw, "id")
	u.Email = stringField(raw, "email")
	u.CompanyID = stringField(raw, "company_id")
	u.Name = stringField(raw, "name")

	for name, value := range raw {
		switch name {
		case "id", "email", "company_id", "name":
			continue
		}
		if u.Extra == nil {
			u.Extra = make(map[string]any)
		}
		u.Extra[name] = value
	}

	return nil
}

func (u *User) MarshalJSON() ([]byte, error) {
	merged := make(map[string]any, len(u.Extra)+4)
	for name, value := range u.Extra {
		merged[name] = value
	}

	merged["id"] = u.ID
	merged["email"] = u.Email
	if u.CompanyID != "" {
		merged["company_id"] = u.CompanyID
	}
	if u.Name != "" {
		merged["name"] = u.Name
	}

	return json.Marshal(merged)
}

func stringField(raw map[string]any, name string) string {
	value, _ := raw[name].(string)
	return value
}
