package aweme

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Raw aweme_type values used by the favorites listing
const (
	TypeVideo    = 0
	TypeImageSet = 68
)

// Page is one response body of the favorites listing endpoint
type Page struct {
	StatusCode int               `json:"status_code"`
	AwemeList  []json.RawMessage `json:"aweme_list"`
	HasMore    flexBool          `json:"has_more"`
	MaxCursor  int64             `json:"max_cursor"`
	MinCursor  int64             `json:"min_cursor"`
}

// HasData reports whether the body carried an aweme_list field at all.
// An empty list counts as data.
func (p Page) HasData() bool {
	return p.AwemeList != nil
}

// More reports the page's has_more flag
func (p Page) More() bool {
	return bool(p.HasMore)
}

// ParsePage decodes one response body
func ParsePage(body []byte) (Page, error) {
	var p Page
	if err := json.Unmarshal(body, &p); err != nil {
		return Page{}, err
	}
	return p, nil
}

type urlList struct {
	URLList []string `json:"url_list"`
}

func (u *urlList) urls() []string {
	if u == nil {
		return nil
	}
	return u.URLList
}

type wireItem struct {
	AwemeID    flexString  `json:"aweme_id"`
	Title      *string     `json:"title"`
	Desc       *string     `json:"desc"`
	AwemeType  *int        `json:"aweme_type"`
	CreateTime int64       `json:"create_time"`
	IPLabel    string      `json:"ip_label"`
	ShareURL   string      `json:"share_url"`
	Author     *wireAuthor `json:"author"`
	Statistics *wireStats  `json:"statistics"`
	Video      *wireVideo  `json:"video"`
	Images     []wireImage `json:"images"`
}

type wireAuthor struct {
	UID         flexString `json:"uid"`
	SecUID      string     `json:"sec_uid"`
	ShortID     flexString `json:"short_id"`
	UniqueID    string     `json:"unique_id"`
	Nickname    string     `json:"nickname"`
	Signature   string     `json:"signature"`
	AvatarThumb *urlList   `json:"avatar_thumb"`

	FollowerCount  flexInt `json:"follower_count"`
	FollowingCount flexInt `json:"following_count"`
	TotalFavorited flexInt `json:"total_favorited"`
	AwemeCount     flexInt `json:"aweme_count"`
}

type wireStats struct {
	DiggCount    int64 `json:"digg_count"`
	CommentCount int64 `json:"comment_count"`
	ShareCount   int64 `json:"share_count"`
	CollectCount int64 `json:"collect_count"`
}

type wireVideo struct {
	PlayAddr *urlList `json:"play_addr"`
	Cover    *urlList `json:"cover"`
	Duration int64    `json:"duration"`
}

type wireImage struct {
	URLList      []string `json:"url_list"`
	DisplayImage *urlList `json:"display_image"`
	Width        int      `json:"width"`
	Height       int      `json:"height"`
}

// flexString accepts a JSON string or number
type flexString string

func (s *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*s = ""
	case len(data) > 0 && data[0] == '"':
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = flexString(v)
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("expected string or number, got %s", data)
		}
		*s = flexString(n.String())
	}
	return nil
}

// flexInt accepts a JSON number or a numeric string. Counters the platform
// renders for display (such as "1.2w") decode as zero.
type flexInt int64

func (n *flexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		i, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			i = 0
		}
		*n = flexInt(i)
		return nil
	}
	if bytes.Equal(data, []byte("null")) {
		*n = 0
		return nil
	}
	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("expected number, got %s", data)
	}
	*n = flexInt(f)
	return nil
}

// flexBool accepts true/false or 0/1
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch string(data) {
	case "true":
		*b = true
	case "false", "null":
		*b = false
	default:
		n, err := strconv.ParseFloat(string(data), 64)
		if err != nil {
			return fmt.Errorf("expected bool or number, got %s", data)
		}
		*b = n != 0
	}
	return nil
}
