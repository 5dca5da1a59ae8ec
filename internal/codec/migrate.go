package codec

import "encoding/json"

// migrations lifts an envelope from version N to N+1. Each step is a pure
// function over the serialized bytes; Decode chains them in ascending order.
var migrations = map[int]func([]byte) ([]byte, error){
	1: migrateV1toV2,
	2: migrateV2toV3,
}

// envelopeV1 carried bare relation lists and nothing else.
type envelopeV1 struct {
	Version   int                 `json:"version"`
	Relations map[string][]string `json:"relations,omitempty"`
}

// envelopeV2 added the ordered entity lists next to the relations.
type envelopeV2 struct {
	Version   int                 `json:"version"`
	Relations map[string][]string `json:"relations,omitempty"`
	Items     json.RawMessage     `json:"items,omitempty"`
}

func migrateV1toV2(data []byte) ([]byte, error) {
	var old envelopeV1
	if err := json.Unmarshal(data, &old); err != nil {
		return nil, err
	}
	return json.Marshal(envelopeV2{
		Version:   2,
		Relations: old.Relations,
	})
}

// migrateV2toV3 wraps relations and items into the state object, seeds an
// empty sequence floor, and stamps the checksum v3 requires.
func migrateV2toV3(data []byte) ([]byte, error) {
	var old envelopeV2
	if err := json.Unmarshal(data, &old); err != nil {
		return nil, err
	}

	state := struct {
		Relations map[string][]string `json:"relations,omitempty"`
		Items     json.RawMessage     `json:"items"`
		Seq       map[string]uint64   `json:"seq,omitempty"`
	}{
		Relations: old.Relations,
		Items:     old.Items,
	}
	if len(state.Items) == 0 {
		state.Items = json.RawMessage(`{}`)
	}

	stateBytes, err := json.Marshal(state)
	if err != nil {
		return nil, err
	}

	return json.Marshal(envelope{
		Version:  Version,
		Checksum: checksum(stateBytes),
		State:    stateBytes,
	})
}
