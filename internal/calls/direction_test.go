package calls

import "testing"

func TestClassifyDirection(t *testing.T) {
	const teamPhone = "+15550009999"

	cases := []struct {
		name         string
		from, to     string
		providerHint string
		teamPhone    string
		want         Direction
	}{
		{"pstn caller to client identity", "+15551234567", "client:abc", "outbound-dial", teamPhone, DirectionInbound},
		{"client origin without hint", "client:abc", "+15557654321", "", "", DirectionOutbound},
		{"client origin beats stale hint", "client:abc", "+15557654321", "inbound", "", DirectionOutbound},
		{"team phone dialing out", teamPhone, "+15557654321", "", teamPhone, DirectionOutbound},
		{"external caller to team phone", "+15550001111", teamPhone, "", teamPhone, DirectionInbound},
		{"provider hint outbound-api", "client:abc", "+15557654321", "outbound-api", "", DirectionOutbound},
		{"provider hint outbound-dial", "client:abc", "+15557654321", "outbound-dial", "", DirectionOutbound},
		{"provider hint inbound", "+15551234567", "+15557654321", "inbound", "", DirectionInbound},
		{"no signal at all", "anonymous", "+15557654321", "", "", DirectionUnknown},
		{"unrecognized hint passes through", "x", "y", "trunking", "", Direction("trunking")},
		{"number pattern beats provider hint", "+15551234567", "client:abc", "inbound", "", DirectionInbound},
		{"team phone beats provider hint", teamPhone, "+15557654321", "inbound", teamPhone, DirectionOutbound},
		{"short from is not pstn", "+123", "client:abc", "", "", DirectionUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ClassifyDirection(tc.from, tc.to, tc.providerHint, tc.teamPhone)
			if got != tc.want {
				t.Fatalf("ClassifyDirection(%q, %q, %q, %q) = %q, want %q",
					tc.from, tc.to, tc.providerHint, tc.teamPhone, got, tc.want)
			}
		})
	}
}

func TestDirectionKnown(t *testing.T) {
	if !DirectionInbound.Known() || !DirectionOutbound.Known() {
		t.Fatal("inbound/outbound must be known")
	}
	if DirectionUnknown.Known() || Direction("trunking").Known() {
		t.Fatal("anything else is unknown for persistence")
	}
}

func TestClientIdentityUser(t *testing.T) {
	if got := ClientIdentityUser("client:u_42"); got != "u_42" {
		t.Fatalf("got %q", got)
	}
	if got := ClientIdentityUser("+15551234567"); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
}
