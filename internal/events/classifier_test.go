package events

import (
	"strings"
	"testing"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name       string
		collection string
		record     string
		want       Classified
	}{
		{
			name:       "plain_post",
			collection: CollectionPost,
			record:     `{"text":"hello world"}`,
			want:       Classified{Kind: KindPost, Text: "hello world"},
		},
		{
			name:       "post_with_alt_texted_image",
			collection: CollectionPost,
			record:     `{"text":"pic","embed":{"$type":"app.bsky.embed.images","images":[{"alt":"a cat"}]}}`,
			want:       Classified{Kind: KindPost, Text: "pic", HasImage: true, ImageHasAltText: true},
		},
		{
			name:       "post_with_one_missing_alt",
			collection: CollectionPost,
			record:     `{"text":"pics","embed":{"$type":"app.bsky.embed.images","images":[{"alt":"ok"},{"alt":""}]}}`,
			want:       Classified{Kind: KindPost, Text: "pics", HasImage: true, ImageHasAltText: false},
		},
		{
			name:       "post_with_external_embed",
			collection: CollectionPost,
			record:     `{"text":"link","embed":{"$type":"app.bsky.embed.external"}}`,
			want:       Classified{Kind: KindPost, Text: "link"},
		},
		{
			name:       "like",
			collection: CollectionLike,
			record:     `{"subject":{"uri":"at://x"}}`,
			want:       Classified{Kind: KindLike},
		},
		{
			name:       "repost",
			collection: CollectionRepost,
			record:     `{"subject":{"uri":"at://x"}}`,
			want:       Classified{Kind: KindRepost},
		},
		{
			name:       "unknown_collection",
			collection: "app.bsky.graph.follow",
			record:     `{}`,
			want:       Classified{Kind: KindUnknown},
		},
		{
			name:       "post_with_garbage_record",
			collection: CollectionPost,
			record:     `not-json`,
			want:       Classified{Kind: KindPost},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Classify(tc.collection, []byte(tc.record))
			if got != tc.want {
				t.Fatalf("Classify(%q)=%+v, want %+v", tc.collection, got, tc.want)
			}
		})
	}
}

func TestKindForCollection(t *testing.T) {
	if got := KindForCollection(CollectionRepost); got != KindRepost {
		t.Fatalf("got %q, want %q", got, KindRepost)
	}
	if got := KindForCollection("app.bsky.actor.profile"); got != KindUnknown {
		t.Fatalf("got %q, want %q", got, KindUnknown)
	}
}

func TestCalculateXP(t *testing.T) {
	cases := []struct {
		name string
		in   Classified
		want int
	}{
		{
			name: "post_text_only",
			in:   Classified{Kind: KindPost, Text: "0123456789"},
			want: 10,
		},
		{
			name: "post_with_image_no_alt",
			in:   Classified{Kind: KindPost, Text: "abc", HasImage: true},
			want: 103,
		},
		{
			name: "post_with_image_and_alt",
			in:   Classified{Kind: KindPost, Text: strings.Repeat("x", 42), HasImage: true, ImageHasAltText: true},
			want: 192,
		},
		{
			name: "like_is_flat",
			in:   Classified{Kind: KindLike, Text: "ignored"},
			want: 10,
		},
		{
			name: "repost_is_flat",
			in:   Classified{Kind: KindRepost},
			want: 10,
		},
		{
			name: "unknown_earns_nothing",
			in:   Classified{Kind: KindUnknown, Text: "whatever"},
			want: 0,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CalculateXP(tc.in); got != tc.want {
				t.Fatalf("CalculateXP=%d, want %d", got, tc.want)
			}
		})
	}
}
