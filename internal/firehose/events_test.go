package firehose

import "testing"

func TestDecodeEvent(t *testing.T) {
	cases := []struct {
		name           string
		data           string
		wantKind       string
		wantDID        string
		wantOp         string
		wantCollection string
		wantSourceID   string
	}{
		{
			name: "create_post",
			data: `{"did":"did:plc:abc","time_us":1725911162329308,"kind":"commit",` +
				`"commit":{"rev":"r1","operation":"create","collection":"app.bsky.feed.post",` +
				`"rkey":"3l3qo2vutsw2b","record":{"text":"hello"},"cid":"bafy"}}`,
			wantKind:       "commit",
			wantDID:        "did:plc:abc",
			wantOp:         "create",
			wantCollection: "app.bsky.feed.post",
			wantSourceID:   "did:plc:abc/app.bsky.feed.post/3l3qo2vutsw2b",
		},
		{
			name: "delete_like",
			data: `{"did":"did:plc:xyz","time_us":1,"kind":"commit",` +
				`"commit":{"rev":"r2","operation":"delete","collection":"app.bsky.feed.like","rkey":"k1"}}`,
			wantKind:       "commit",
			wantDID:        "did:plc:xyz",
			wantOp:         "delete",
			wantCollection: "app.bsky.feed.like",
			wantSourceID:   "did:plc:xyz/app.bsky.feed.like/k1",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ev, err := DecodeEvent([]byte(tc.data))
			if err != nil {
				t.Fatalf("DecodeEvent: %v", err)
			}
			if ev.Kind != tc.wantKind {
				t.Fatalf("Kind=%q, want %q", ev.Kind, tc.wantKind)
			}
			if ev.DID != tc.wantDID {
				t.Fatalf("DID=%q, want %q", ev.DID, tc.wantDID)
			}
			if ev.Commit == nil {
				t.Fatal("Commit is nil")
			}
			if ev.Commit.Operation != tc.wantOp {
				t.Fatalf("Operation=%q, want %q", ev.Commit.Operation, tc.wantOp)
			}
			if ev.Commit.Collection != tc.wantCollection {
				t.Fatalf("Collection=%q, want %q", ev.Commit.Collection, tc.wantCollection)
			}
			if got := ev.SourceEventID(); got != tc.wantSourceID {
				t.Fatalf("SourceEventID=%q, want %q", got, tc.wantSourceID)
			}
		})
	}
}

func TestDecodeEventNonCommit(t *testing.T) {
	ev, err := DecodeEvent([]byte(`{"did":"did:plc:abc","time_us":5,"kind":"identity"}`))
	if err != nil {
		t.Fatalf("DecodeEvent: %v", err)
	}
	if ev.Commit != nil {
		t.Fatalf("expected nil commit, got %+v", ev.Commit)
	}
	if ev.SourceEventID() != "" {
		t.Fatalf("expected empty source id for non-commit, got %q", ev.SourceEventID())
	}
}
