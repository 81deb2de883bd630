package statefile

import (
	"strings"
	"testing"
)

// FuzzUnmarshal checks that arbitrary bytes never panic the decoder and that
// every accepted document survives a Marshal/Unmarshal round trip.
func FuzzUnmarshal(f *testing.F) {
	f.Add([]byte(`{"schema_version":1,"state":{"id":"7b1c6f0e-8f0a-4b53-9d7c-1b2a3c4d5e6f","query":"q"}}`))
	f.Add([]byte(`{"research_query":"legacy","raw_research":[],"analyzed_findings":[]}`))
	f.Add([]byte(`{"research_query":"legacy","timestamp":"2024-01-01T10:00:00.123456"}`))
	f.Add([]byte(`{"schema_version":99}`))
	f.Add([]byte(`{"schema_version":-1}`))
	f.Add([]byte(`{"schema_version":"1"}`))
	f.Add([]byte(`{"schema_version":1,"state":null}`))
	f.Add([]byte(`{}`))
	f.Add([]byte(`[]`))
	f.Add([]byte(`null`))
	f.Add([]byte(`not json at all`))
	f.Add([]byte{0xff, 0xfe})
	f.Add([]byte(`{"research_query":"` + strings.Repeat("a", 10000) + `"}`))

	f.Fuzz(func(t *testing.T, data []byte) {
		state, err := Unmarshal(data)
		if err != nil {
			return
		}

		encoded, err := Marshal(state)
		if err != nil {
			t.Fatalf("Marshal of an accepted document failed: %v", err)
		}
		again, err := Unmarshal(encoded)
		if err != nil {
			t.Fatalf("round trip rejected its own output: %v", err)
		}
		if again.ID != state.ID || again.Query != state.Query {
			t.Errorf("round trip changed identity: %s/%q -> %s/%q", state.ID, state.Query, again.ID, again.Query)
		}
	})
}
