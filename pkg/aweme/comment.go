package aweme

import (
	"bytes"
	"encoding/json"

	errs "dyfav/pkg/errors"
)

// Comment is one comment on an item
type Comment struct {
	ID         string
	AwemeID    string
	Text       string
	CreateTime int64
	IPLocation string
	Likes      int64
	Replies    int64
	// ParentID is set for replies
	ParentID string
	Author   Author
	Pictures []string
}

type wireComment struct {
	CID               flexString  `json:"cid"`
	AwemeID           flexString  `json:"aweme_id"`
	Text              string      `json:"text"`
	CreateTime        int64       `json:"create_time"`
	IPLabel           string      `json:"ip_label"`
	DiggCount         flexInt     `json:"digg_count"`
	ReplyCommentTotal flexInt     `json:"reply_comment_total"`
	ReplyID           flexString  `json:"reply_id"`
	User              *wireAuthor `json:"user"`
	ImageList         []struct {
		OriginURL *urlList `json:"origin_url"`
	} `json:"image_list"`
}

// DecodeComments reads a comment dump: either a bare JSON array of comments
// or a comment page object carrying a "comments" array. Comments without a
// cid are dropped and counted.
func DecodeComments(data []byte) ([]Comment, int, error) {
	data = bytes.TrimSpace(data)
	var list []json.RawMessage
	switch {
	case len(data) > 0 && data[0] == '[':
		if err := json.Unmarshal(data, &list); err != nil {
			return nil, 0, errs.Wrap(errs.ErrorTypeParse, err, "comment list")
		}
	case len(data) > 0 && data[0] == '{':
		var page struct {
			Comments []json.RawMessage `json:"comments"`
		}
		if err := json.Unmarshal(data, &page); err != nil {
			return nil, 0, errs.Wrap(errs.ErrorTypeParse, err, "comment page")
		}
		list = page.Comments
	default:
		return nil, 0, errs.New(errs.ErrorTypeFormat, "comments must be a JSON array or object")
	}

	comments := make([]Comment, 0, len(list))
	dropped := 0
	for _, raw := range list {
		var w wireComment
		if err := json.Unmarshal(raw, &w); err != nil || w.CID == "" {
			dropped++
			continue
		}
		c := Comment{
			ID:         string(w.CID),
			AwemeID:    string(w.AwemeID),
			Text:       w.Text,
			CreateTime: w.CreateTime,
			IPLocation: w.IPLabel,
			Likes:      int64(w.DiggCount),
			Replies:    int64(w.ReplyCommentTotal),
		}
		if w.ReplyID != "0" {
			c.ParentID = string(w.ReplyID)
		}
		if u := w.User; u != nil {
			c.Author = Author{
				UID:       string(u.UID),
				SecUID:    u.SecUID,
				ShortID:   string(u.ShortID),
				UniqueID:  u.UniqueID,
				Nickname:  u.Nickname,
				Signature: u.Signature,
			}
			if urls := u.AvatarThumb.urls(); len(urls) > 0 {
				c.Author.AvatarURL = urls[0]
			}
		}
		for _, img := range w.ImageList {
			if urls := img.OriginURL.urls(); len(urls) > 0 {
				c.Pictures = append(c.Pictures, urls[0])
			}
		}
		comments = append(comments, c)
	}
	return comments, dropped, nil
}
