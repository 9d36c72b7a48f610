// Package events classifies raw commit records into the three supported
// content kinds and owns the per-kind XP policy.
package events

import "encoding/json"

// Kind is the closed set of supported record kinds.
type Kind string

const (
	KindPost    Kind = "post"
	KindLike    Kind = "like"
	KindRepost  Kind = "repost"
	KindUnknown Kind = "unknown"
)

// Collection NSIDs the classifier understands.
const (
	CollectionPost   = "app.bsky.feed.post"
	CollectionLike   = "app.bsky.feed.like"
	CollectionRepost = "app.bsky.feed.repost"
)

// Classified is the extracted view of one record that the handlers need.
type Classified struct {
	Kind            Kind
	Text            string
	HasImage        bool
	ImageHasAltText bool
}

type postRecord struct {
	Text  string `json:"text"`
	Embed *struct {
		Type   string `json:"$type"`
		Images []struct {
			Alt string `json:"alt"`
		} `json:"images"`
	} `json:"embed"`
}

// Classify maps a raw commit record to a Classified view. Collections outside
// the supported set come back as KindUnknown; the dispatcher drops those
// without treating them as failures.
func Classify(collection string, record []byte) Classified {
	switch collection {
	case CollectionPost:
		return classifyPost(record)
	case CollectionLike:
		return Classified{Kind: KindLike}
	case CollectionRepost:
		return Classified{Kind: KindRepost}
	default:
		return Classified{Kind: KindUnknown}
	}
}

func classifyPost(record []byte) Classified {
	out := Classified{Kind: KindPost}
	var rec postRecord
	if err := json.Unmarshal(record, &rec); err != nil {
		return out
	}
	out.Text = rec.Text

	if rec.Embed != nil && rec.Embed.Type == "app.bsky.embed.images" && len(rec.Embed.Images) > 0 {
		out.HasImage = true
		// Alt-text credit is all-or-nothing across attachments.
		out.ImageHasAltText = true
		for _, img := range rec.Embed.Images {
			if img.Alt == "" {
				out.ImageHasAltText = false
				break
			}
		}
	}
	return out
}

// KindForCollection maps a collection NSID to its kind without touching the
// record payload. Used by the deletion path, where no record is present.
func KindForCollection(collection string) Kind {
	switch collection {
	case CollectionPost:
		return KindPost
	case CollectionLike:
		return KindLike
	case CollectionRepost:
		return KindRepost
	default:
		return KindUnknown
	}
}
