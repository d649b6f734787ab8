// Package aweme holds the typed item model decoded from favorites payloads.
//
// Decode is the only place that deals with the loosely shaped upstream JSON.
// Everything downstream works with Item.
package aweme

import (
	"bytes"
	"encoding/json"

	errs "dyfav/pkg/errors"
)

// Kind discriminates item variants
type Kind int

const (
	KindOther Kind = iota
	KindVideo
	KindImageSet
)

func (k Kind) String() string {
	switch k {
	case KindVideo:
		return "video"
	case KindImageSet:
		return "image_set"
	default:
		return "other"
	}
}

// Author is the item creator
type Author struct {
	UID       string
	SecUID    string
	ShortID   string
	UniqueID  string
	Nickname  string
	Signature string
	AvatarURL string

	Followers      int64
	Following      int64
	TotalFavorited int64
	Works          int64
}

// Statistics are the engagement counters at capture time
type Statistics struct {
	Likes    int64
	Comments int64
	Shares   int64
	Collects int64
}

// VideoMedia lists candidate play URLs, most preferred first
type VideoMedia struct {
	URLs      []string
	CoverURLs []string
	// Duration in milliseconds
	Duration int64
}

// ImageMedia is one image of an image set
type ImageMedia struct {
	URLs   []string
	Width  int
	Height int
}

// Item is one favorited work. Items are read-only once decoded.
type Item struct {
	ID    string
	Title string
	// HasTitle distinguishes an empty title from an absent one
	HasTitle   bool
	Desc       string
	HasDesc    bool
	Kind       Kind
	RawType    int
	Author     Author
	CreateTime int64
	IPLocation string
	ShareURL   string
	Statistics Statistics

	// Video is set for KindVideo
	Video *VideoMedia
	// Images is set for KindImageSet
	Images []ImageMedia

	// Raw is the item object exactly as captured
	Raw json.RawMessage
}

// DisplayTitle returns the title when the field is present, else the
// description when present, else the id. A present but empty title is
// returned as is.
func (it Item) DisplayTitle() string {
	switch {
	case it.HasTitle:
		return it.Title
	case it.HasDesc:
		return it.Desc
	default:
		return it.ID
	}
}

// Text returns the first non-empty of title and desc
func (it Item) Text() string {
	if it.Title != "" {
		return it.Title
	}
	return it.Desc
}

// Decode validates one aweme_list element and converts it to an Item.
// Elements that are not objects or have mistyped fields yield a parse error;
// elements without aweme_id yield a missing-field error.
func Decode(raw json.RawMessage) (Item, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Item{}, errs.New(errs.ErrorTypeParse, "item is not a JSON object")
	}

	var w wireItem
	if err := json.Unmarshal(trimmed, &w); err != nil {
		return Item{}, errs.Wrap(errs.ErrorTypeParse, err, "malformed item")
	}
	if w.AwemeID == "" {
		return Item{}, errs.New(errs.ErrorTypeMissingField, "item has no aweme_id")
	}

	it := Item{
		ID:         string(w.AwemeID),
		CreateTime: w.CreateTime,
		IPLocation: w.IPLabel,
		ShareURL:   w.ShareURL,
		Raw:        append(json.RawMessage(nil), trimmed...),
	}
	if w.Title != nil {
		it.Title, it.HasTitle = *w.Title, true
	}
	if w.Desc != nil {
		it.Desc, it.HasDesc = *w.Desc, true
	}
	if w.AwemeType != nil {
		it.RawType = *w.AwemeType
	}
	if a := w.Author; a != nil {
		it.Author = Author{
			UID:       string(a.UID),
			SecUID:    a.SecUID,
			ShortID:   string(a.ShortID),
			UniqueID:  a.UniqueID,
			Nickname:  a.Nickname,
			Signature: a.Signature,

			Followers:      int64(a.FollowerCount),
			Following:      int64(a.FollowingCount),
			TotalFavorited: int64(a.TotalFavorited),
			Works:          int64(a.AwemeCount),
		}
		if urls := a.AvatarThumb.urls(); len(urls) > 0 {
			it.Author.AvatarURL = urls[0]
		}
	}
	if s := w.Statistics; s != nil {
		it.Statistics = Statistics{
			Likes:    s.DiggCount,
			Comments: s.CommentCount,
			Shares:   s.ShareCount,
			Collects: s.CollectCount,
		}
	}

	switch it.RawType {
	case TypeVideo:
		it.Kind = KindVideo
		it.Video = &VideoMedia{}
		if v := w.Video; v != nil {
			it.Video.URLs = v.PlayAddr.urls()
			it.Video.CoverURLs = v.Cover.urls()
			it.Video.Duration = v.Duration
		}
	case TypeImageSet:
		it.Kind = KindImageSet
		it.Images = make([]ImageMedia, 0, len(w.Images))
		for _, img := range w.Images {
			urls := img.URLList
			if len(urls) == 0 {
				urls = img.DisplayImage.urls()
			}
			it.Images = append(it.Images, ImageMedia{URLs: urls, Width: img.Width, Height: img.Height})
		}
	default:
		it.Kind = KindOther
	}
	return it, nil
}

// Sidecar returns the item Document indented by two spaces
func (it Item) Sidecar() ([]byte, error) {
	doc, err := it.Document()
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, doc, "", "  "); err != nil {
		return nil, errs.Wrap(errs.ErrorTypeParse, err, "indent item "+it.ID)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}
