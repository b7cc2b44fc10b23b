package message

import (
	"bytes"
	"encoding/json"
	"fmt"
)

type envelope struct {
	Type Type `json:"type"`
}

var decoders = map[Type]func([]byte) (Request, error){
	TypeAuthStatus:               decodeAs[AuthStatus],
	TypeOpportunityFound:         decodeAs[OpportunityFound],
	TypeGroupCanInject:           decodeAs[GroupCanInject],
	TypeGroupEnable:              decodeAs[GroupEnable],
	TypeGroupDisable:             decodeAs[GroupDisable],
	TypeListGroups:               decodeAs[ListGroups],
	TypeRemoveGroup:              decodeAs[RemoveGroup],
	TypeSettingsGet:              decodeAs[SettingsGet],
	TypeSettingsSetActiveProfile: decodeAs[SettingsSetActiveProfile],
	TypeProfilesList:             decodeAs[ProfilesList],
	TypeProfilesGet:              decodeAs[ProfilesGet],
	TypeProfilesUpsert:           decodeAs[ProfilesUpsert],
	TypeProfilesRemove:           decodeAs[ProfilesRemove],
	TypeAutorunStatus:            decodeAs[AutorunStatus],
	TypeAutorunStart:             decodeAs[AutorunStart],
	TypeAutorunStop:              decodeAs[AutorunStop],
	TypeAutorunReset:             decodeAs[AutorunReset],
	TypeLeadsList:                decodeAs[LeadsList],
	TypeLeadsPatch:               decodeAs[LeadsPatch],
	TypeLeadsRemove:              decodeAs[LeadsRemove],
	TypeLeadsClear:               decodeAs[LeadsClear],
}

func decodeAs[T Request](data []byte) (Request, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return v, nil
}

// Decode parses a {"type": ..., ...fields} message.
func Decode(data []byte) (Request, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	dec, ok := decoders[env.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessage, env.Type)
	}
	return dec(data)
}

// Encode writes req as a flat JSON object with its type field first.
func Encode(req Request) ([]byte, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("message: encode %s: %w", req.Type(), err)
	}
	head, err := json.Marshal(envelope{Type: req.Type()})
	if err != nil {
		return nil, err
	}
	body = bytes.TrimSpace(body)
	if bytes.Equal(body, []byte("{}")) {
		return head, nil
	}
	// head is {"type":"X"}; splice the request fields after it.
	out := make([]byte, 0, len(head)+len(body))
	out = append(out, head[:len(head)-1]...)
	out = append(out, ',')
	out = append(out, body[1:]...)
	return out, nil
}
